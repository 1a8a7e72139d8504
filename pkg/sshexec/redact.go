package sshexec

import (
	"strings"
	"sync"
)

const redactedPlaceholder = "[REDACTED]"

// Redactor scrubs registered secret substrings out of any string that may
// leave the substrate: log lines, stored command records, error messages.
type Redactor struct {
	mu      sync.RWMutex
	secrets []string
}

func NewRedactor() *Redactor {
	return &Redactor{}
}

// Register adds a secret to the scrub list. Blank values are ignored so a
// server with no password cannot cause every string to be rewritten.
func (r *Redactor) Register(secret string) {
	if secret == "" {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.secrets = append(r.secrets, secret)
}

func (r *Redactor) Redact(s string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, secret := range r.secrets {
		s = strings.ReplaceAll(s, secret, redactedPlaceholder)
	}

	return s
}
