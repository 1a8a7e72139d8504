package sshexec

import (
	"fmt"
	"net"
	"regexp"

	sherrors "github.com/wpmend-dev/wpmend-agent/pkg/errors"
)

const maxHostnameLength = 253

var (
	hostnamePattern = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9-]*[a-zA-Z0-9])?(\.[a-zA-Z0-9]([a-zA-Z0-9-]*[a-zA-Z0-9])?)*$`)
	usernamePattern = regexp.MustCompile(`^[a-z_][a-z0-9_-]*$`)
)

// ValidateHostname accepts RFC 1123 hostnames and IP addresses.
func ValidateHostname(hostname string) error {
	if hostname == "" {
		return &sherrors.ValidationError{Field: "hostname", Reason: "must not be empty"}
	}

	if len(hostname) > maxHostnameLength {
		return &sherrors.ValidationError{
			Field:  "hostname",
			Reason: fmt.Sprintf("must not exceed %d characters", maxHostnameLength),
		}
	}

	if net.ParseIP(hostname) != nil {
		return nil
	}

	if !hostnamePattern.MatchString(hostname) {
		return &sherrors.ValidationError{Field: "hostname", Reason: "not a valid hostname or IP address"}
	}

	return nil
}

func ValidatePort(port int) error {
	if port < 1 || port > 65535 {
		return &sherrors.ValidationError{Field: "port", Reason: "must be between 1 and 65535"}
	}

	return nil
}

// ValidateUsername enforces a POSIX-style login name: at most 32 characters,
// must not start with a digit.
func ValidateUsername(username string) error {
	if username == "" {
		return &sherrors.ValidationError{Field: "username", Reason: "must not be empty"}
	}

	if len(username) > 32 {
		return &sherrors.ValidationError{Field: "username", Reason: "must not exceed 32 characters"}
	}

	if !usernamePattern.MatchString(username) {
		return &sherrors.ValidationError{Field: "username", Reason: "not a valid POSIX login name"}
	}

	return nil
}
