package sshexec

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/awnumar/memguard"
	sherrors "github.com/wpmend-dev/wpmend-agent/pkg/errors"
)

// DecodeCredentialKey parses the hex-encoded 32-byte AES key from
// configuration.
func DecodeCredentialKey(hexKey string) ([]byte, error) {
	if hexKey == "" {
		return nil, &sherrors.ValidationError{Field: "credential_key", Reason: "must not be empty"}
	}

	key, err := hex.DecodeString(hexKey)

	if err != nil {
		return nil, &sherrors.ValidationError{Field: "credential_key", Reason: "must be hex encoded"}
	}

	if len(key) != 32 {
		return nil, &sherrors.ValidationError{Field: "credential_key", Reason: "must decode to 32 bytes"}
	}

	return key, nil
}

// EncryptCredentials seals plaintext credentials with AES-256-GCM. Used by
// provisioning tooling and tests; the agent itself only decrypts.
func EncryptCredentials(key, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)

	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)

	if err != nil {
		return nil, fmt.Errorf("init gcm: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())

	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// DecryptCredentials opens stored ciphertext into an mlocked buffer. The
// caller must Destroy the buffer as soon as the credential has been handed
// to the transport; plaintext is never returned as a plain allocation.
func DecryptCredentials(key, ciphertext []byte) (*memguard.LockedBuffer, error) {
	block, err := aes.NewCipher(key)

	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)

	if err != nil {
		return nil, fmt.Errorf("init gcm: %w", err)
	}

	if len(ciphertext) < gcm.NonceSize() {
		return nil, &sherrors.ValidationError{Field: "credentials", Reason: "ciphertext too short"}
	}

	nonce, sealed := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]

	plaintext, err := gcm.Open(nil, nonce, sealed, nil)

	if err != nil {
		return nil, fmt.Errorf("open credentials: %w", err)
	}

	// NewBufferFromBytes wipes the source slice after copying it into
	// locked memory.
	return memguard.NewBufferFromBytes(plaintext), nil
}
