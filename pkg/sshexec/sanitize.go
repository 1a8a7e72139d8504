package sshexec

import (
	"fmt"
	"strings"

	sherrors "github.com/wpmend-dev/wpmend-agent/pkg/errors"
)

// shellMetacharacters are rejected outright. They cover command chaining,
// substitution, grouping, globbing classes and redirection. Environment
// expansion is covered by '$'.
var shellMetacharacters = []string{
	";", "&", "|", "$", "`", "(", ")", "{", "}", "[", "]", ">", "<", "\n", "\r",
}

// deniedPathPrefixes can never be referenced by a remote command, whatever
// the phase. The list errs on the side of refusing.
var deniedPathPrefixes = []string{
	"/etc/passwd",
	"/etc/shadow",
	"/etc/sudoers",
	"/proc/self/mem",
	"/sys/kernel/debug",
	"/dev/sd",
	"/dev/vd",
	"/dev/nvme",
	"/dev/xvd",
	"/dev/mem",
	"/dev/kmem",
	"/boot/",
}

// deniedPathFragments are rejected anywhere inside a command, including
// relative references.
var deniedPathFragments = []string{
	".ssh/id_rsa",
	".ssh/id_dsa",
	".ssh/id_ecdsa",
	".ssh/id_ed25519",
	".ssh/authorized_keys",
}

// ValidateCommand checks a command before any network I/O. A rejection means
// the command is never transmitted to the remote host.
func ValidateCommand(command string) error {
	trimmed := strings.TrimSpace(command)

	if trimmed == "" {
		return &sherrors.CommandRejected{Reason: "empty command"}
	}

	for _, meta := range shellMetacharacters {
		if strings.Contains(command, meta) {
			return &sherrors.CommandRejected{
				Reason: fmt.Sprintf("shell metacharacter %q is not permitted", meta),
			}
		}
	}

	for _, field := range strings.Fields(command) {
		if err := ValidatePath(strings.Trim(field, `"'`)); err != nil {
			return err
		}
	}

	return nil
}

// ValidatePath rejects path traversal and references to the sensitive path
// deny list. Non-path tokens pass through untouched.
func ValidatePath(path string) error {
	if strings.Contains(path, "..") {
		return &sherrors.CommandRejected{Reason: "path traversal is not permitted"}
	}

	lower := strings.ToLower(path)

	for _, prefix := range deniedPathPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return &sherrors.CommandRejected{
				Reason: fmt.Sprintf("reference to protected path %s is not permitted", prefix),
			}
		}
	}

	for _, fragment := range deniedPathFragments {
		if strings.Contains(lower, fragment) {
			return &sherrors.CommandRejected{
				Reason: fmt.Sprintf("reference to protected path fragment %s is not permitted", fragment),
			}
		}
	}

	return nil
}

// sanitizeValue strips the metacharacter set from a template parameter value
// and caps its length. Stripping rather than rejecting keeps templates usable
// with hostile-looking but operator-supplied values.
func sanitizeValue(value string) string {
	for _, meta := range shellMetacharacters {
		value = strings.ReplaceAll(value, meta, "")
	}

	if len(value) > MaxParamValueLength {
		value = value[:MaxParamValueLength]
	}

	return value
}
