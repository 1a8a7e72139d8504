package errors

import (
	"errors"
	"fmt"
)

// NoPendingItemError is returned when the notification work queue is empty.
var NoPendingItemError = errors.New("no pending item in queue")

// ErrPoolExhausted is returned when a server's session pool is at capacity
// and no session can be checked out.
var ErrPoolExhausted = errors.New("session pool exhausted")

// ErrCommandTimeout distinguishes a remote command hitting its execution
// ceiling from a rejection or a remote failure. It is always wrapped in a
// ConnectionError so it stays retryable.
var ErrCommandTimeout = errors.New("remote command timed out")

// ValidationError indicates bad input to a public operation. It is raised
// before any network traffic is generated.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Reason)
}

// CommandRejected indicates the sanitizer refused a command or path. The
// rejected input is never sent to the remote host.
type CommandRejected struct {
	Reason string
}

func (e *CommandRejected) Error() string {
	return fmt.Sprintf("command rejected: %s", e.Reason)
}

// ConnectionError indicates a network, auth or host-key failure while
// speaking to a remote server. It is the only error class the orchestrator
// retries within a phase.
type ConnectionError struct {
	ServerUID string
	Err       error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection to server %s failed: %v", e.ServerUID, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// InvalidTransition indicates a state machine misuse: the requested edge is
// not in the legal transition set.
type InvalidTransition struct {
	From string
	To   string
}

func (e *InvalidTransition) Error() string {
	return fmt.Sprintf("invalid incident transition from %s to %s", e.From, e.To)
}

// AttemptLimitExceeded indicates a fix attempt was requested past the
// incident's attempt cap.
type AttemptLimitExceeded struct {
	Attempts    int
	MaxAttempts int
}

func (e *AttemptLimitExceeded) Error() string {
	return fmt.Sprintf("fix attempt limit exceeded: %d of %d used", e.Attempts, e.MaxAttempts)
}

// LedgerConsistencyViolation indicates the append-only ledger does not
// support a safe rollback (for example a file change with no preceding
// backup). It is fatal to automation for the incident.
type LedgerConsistencyViolation struct {
	Reason string
}

func (e *LedgerConsistencyViolation) Error() string {
	return fmt.Sprintf("ledger consistency violation: %s", e.Reason)
}

// PersistenceError wraps a repository failure. It is propagated, never
// swallowed.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure during %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether err may be retried within a phase's local
// retry budget. Only connection-level failures qualify.
func IsRetryable(err error) bool {
	var connErr *ConnectionError

	return errors.As(err, &connErr)
}
