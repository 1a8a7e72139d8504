package sshexec

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRedactorScrubsRegisteredSecrets(t *testing.T) {
	r := NewRedactor()
	r.Register("s3cr3t-passw0rd")

	scrubbed := r.Redact("auth failed for user with password s3cr3t-passw0rd on host")

	assert.NotContains(t, scrubbed, "s3cr3t-passw0rd")
	assert.Contains(t, scrubbed, "[REDACTED]")
}

func TestRedactorScrubsEveryOccurrence(t *testing.T) {
	r := NewRedactor()
	r.Register("tok123")

	scrubbed := r.Redact("tok123 tok123 tok123")

	assert.Equal(t, "[REDACTED] [REDACTED] [REDACTED]", scrubbed)
}

func TestRedactorIgnoresBlankSecrets(t *testing.T) {
	r := NewRedactor()
	r.Register("")

	assert.Equal(t, "nothing to hide", r.Redact("nothing to hide"))
}
