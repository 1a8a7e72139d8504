package sshexec

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
)

func testKey(t *testing.T) []byte {
	key, err := DecodeCredentialKey(hex.EncodeToString(make([]byte, 32)))

	if err != nil {
		t.Fatalf("could not build test key: %v", err)
	}

	return key
}

func TestDecodeCredentialKey(t *testing.T) {
	_, err := DecodeCredentialKey("")
	assert.Error(t, err)

	_, err = DecodeCredentialKey("not-hex")
	assert.Error(t, err)

	_, err = DecodeCredentialKey("abcd")
	assert.Error(t, err, "short keys must be refused")

	key, err := DecodeCredentialKey(hex.EncodeToString(make([]byte, 32)))
	assert.NoError(t, err)
	assert.Len(t, key, 32)
}

func TestCredentialRoundTrip(t *testing.T) {
	key := testKey(t)

	sealed, err := EncryptCredentials(key, []byte("hunter2"))
	assert.NoError(t, err)
	assert.NotContains(t, string(sealed), "hunter2")

	opened, err := DecryptCredentials(key, sealed)
	assert.NoError(t, err)

	defer opened.Destroy()

	assert.Equal(t, "hunter2", string(opened.Bytes()))
}

func TestDecryptRejectsTamperedCiphertext(t *testing.T) {
	key := testKey(t)

	sealed, err := EncryptCredentials(key, []byte("hunter2"))
	assert.NoError(t, err)

	sealed[len(sealed)-1] ^= 0xff

	_, err = DecryptCredentials(key, sealed)
	assert.Error(t, err)
}

func TestDecryptRejectsShortCiphertext(t *testing.T) {
	_, err := DecryptCredentials(testKey(t), []byte{0x01, 0x02})

	assert.Error(t, err)
}
