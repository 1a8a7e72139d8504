package sshexec

import (
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/wpmend-dev/wpmend-agent/internal/logger"
	"github.com/wpmend-dev/wpmend-agent/internal/models"

	"github.com/stretchr/testify/assert"
)

// A failed connection surfaces an error built from transport output; the
// stored credential must never appear in it.
func TestConnectFailureNeverLeaksCredential(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	assert.NoError(t, err)

	defer listener.Close()

	// accept and slam every connection so the handshake always fails
	go func() {
		for {
			conn, err := listener.Accept()

			if err != nil {
				return
			}

			conn.Close()
		}
	}()

	key := testKey(t)

	secret, err := models.GenerateRandomBytes(24)
	assert.NoError(t, err)

	sealed, err := EncryptCredentials(key, []byte(secret))
	assert.NoError(t, err)

	client := NewClient(&Conf{
		ConnectTimeout:       2 * time.Second,
		CommandTimeout:       2 * time.Second,
		MaxPoolSizePerServer: 1,
		PoolIdleTTL:          time.Minute,
		CredentialKey:        key,
	}, logger.NewConsole(false))

	host, portStr, err := net.SplitHostPort(listener.Addr().String())
	assert.NoError(t, err)

	port, err := strconv.Atoi(portStr)
	assert.NoError(t, err)

	_, err = client.Connect(context.Background(), &models.Server{
		UniqueID:             "srv-test",
		Hostname:             host,
		Port:                 port,
		Username:             "deploy",
		AuthType:             models.AuthTypePassword,
		EncryptedCredentials: sealed,
		HostKeyFingerprint:   "SHA256:pinned",
	})

	assert.Error(t, err)
	assert.NotContains(t, err.Error(), secret)

	// the plaintext is on the scrub list, so even an echo would be masked
	assert.Equal(t, "[REDACTED]", client.Redactor().Redact(secret))
}
