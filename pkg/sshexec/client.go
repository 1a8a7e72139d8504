package sshexec

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"time"

	"github.com/wpmend-dev/wpmend-agent/internal/envconf"
	"github.com/wpmend-dev/wpmend-agent/internal/logger"
	"github.com/wpmend-dev/wpmend-agent/internal/models"
	sherrors "github.com/wpmend-dev/wpmend-agent/pkg/errors"
	"golang.org/x/crypto/ssh"
)

type Conf struct {
	ConnectTimeout time.Duration
	CommandTimeout time.Duration

	MaxPoolSizePerServer int
	PoolIdleTTL          time.Duration
	PoolSweepInterval    time.Duration

	CredentialKey []byte
}

// ConfFromEnv builds a substrate configuration from the decoded environment,
// validating the credential key up front.
func ConfFromEnv(env *envconf.SSHConf) (*Conf, error) {
	key, err := DecodeCredentialKey(env.CredentialKey)

	if err != nil {
		return nil, err
	}

	return &Conf{
		ConnectTimeout:       time.Duration(env.ConnectTimeoutSeconds) * time.Second,
		CommandTimeout:       time.Duration(env.CommandTimeoutSeconds) * time.Second,
		MaxPoolSizePerServer: int(env.MaxPoolSizePerServer),
		PoolIdleTTL:          time.Duration(env.PoolIdleEvictSeconds) * time.Second,
		PoolSweepInterval:    time.Duration(env.PoolSweepSeconds) * time.Second,
		CredentialKey:        key,
	}, nil
}

// RunResult is the outcome of one remote command.
type RunResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
}

// Session is one established SSH connection to a server. Sessions are
// checked out of and returned to the per-server pool; callers must pair
// every Connect with a Disconnect, error paths included.
type Session struct {
	ServerUID string

	client   *ssh.Client
	lastUsed time.Time
}

type Client struct {
	conf     *Conf
	logger   *logger.Logger
	redactor *Redactor
	pool     *Pool
}

func NewClient(conf *Conf, l *logger.Logger) *Client {
	return &Client{
		conf:     conf,
		logger:   l,
		redactor: NewRedactor(),
		pool:     NewPool(conf.MaxPoolSizePerServer, conf.PoolIdleTTL),
	}
}

// Pool exposes the session pool for sweeper wiring and ops visibility.
func (c *Client) Pool() *Pool {
	return c.pool
}

// Redactor exposes the scrub list so configuration-level secrets (tokens,
// keys) can be registered at startup.
func (c *Client) Redactor() *Redactor {
	return c.redactor
}

// Connect establishes a verified session to the server, reusing a pooled
// session when a healthy one exists. Credentials are decrypted into locked
// memory for the duration of this call only.
func (c *Client) Connect(ctx context.Context, server *models.Server) (*Session, error) {
	if err := ValidateHostname(server.Hostname); err != nil {
		return nil, err
	}

	if err := ValidatePort(server.Port); err != nil {
		return nil, err
	}

	if err := ValidateUsername(server.Username); err != nil {
		return nil, err
	}

	if server.HostKeyFingerprint == "" {
		return nil, &sherrors.ValidationError{
			Field:  "host_key_fingerprint",
			Reason: "server has no pinned host key fingerprint; pin one before connecting",
		}
	}

	if session := c.pool.Checkout(server.UniqueID); session != nil {
		c.logger.Debug().Msgf("reusing pooled session for server %s", server.UniqueID)

		return session, nil
	}

	creds, err := DecryptCredentials(c.conf.CredentialKey, server.EncryptedCredentials)

	if err != nil {
		return nil, &sherrors.ConnectionError{ServerUID: server.UniqueID, Err: fmt.Errorf("credential decryption failed")}
	}

	defer creds.Destroy()

	// The scrub list must know the plaintext to be able to mask a remote
	// host echoing it back. The redactor is the only place it persists.
	c.redactor.Register(string(creds.Bytes()))

	auth, err := authMethod(server.AuthType, creds.Bytes())

	if err != nil {
		return nil, &sherrors.ConnectionError{ServerUID: server.UniqueID, Err: err}
	}

	config := &ssh.ClientConfig{
		User:            server.Username,
		Auth:            []ssh.AuthMethod{auth},
		HostKeyCallback: pinnedHostKeyCallback(server.HostKeyFingerprint),
		Timeout:         c.conf.ConnectTimeout,
	}

	addr := net.JoinHostPort(server.Hostname, fmt.Sprintf("%d", server.Port))

	dialer := &net.Dialer{Timeout: c.conf.ConnectTimeout}

	conn, err := dialer.DialContext(ctx, "tcp", addr)

	if err != nil {
		c.logger.Warn().Msgf("connection to server %s failed: %v", server.UniqueID, c.redactor.Redact(err.Error()))

		return nil, &sherrors.ConnectionError{ServerUID: server.UniqueID, Err: err}
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, config)

	if err != nil {
		conn.Close()

		c.logger.Warn().Msgf("handshake with server %s failed: %v", server.UniqueID, c.redactor.Redact(err.Error()))

		return nil, &sherrors.ConnectionError{ServerUID: server.UniqueID, Err: fmt.Errorf("ssh handshake failed: %s", c.redactor.Redact(err.Error()))}
	}

	c.logger.Info().Msgf("established verified session to server %s", server.UniqueID)

	return &Session{
		ServerUID: server.UniqueID,
		client:    ssh.NewClient(sshConn, chans, reqs),
		lastUsed:  time.Now(),
	}, nil
}

// Execute runs a sanitized command on an established session. The command is
// validated before any network I/O; a rejected command is never transmitted.
func (c *Client) Execute(ctx context.Context, session *Session, command string) (*RunResult, error) {
	if err := ValidateCommand(command); err != nil {
		c.logger.Warn().Msgf("rejected command for server %s: %v", session.ServerUID, err)

		return nil, err
	}

	sess, err := session.client.NewSession()

	if err != nil {
		return nil, &sherrors.ConnectionError{ServerUID: session.ServerUID, Err: err}
	}

	defer sess.Close()

	var stdout, stderr bytes.Buffer

	sess.Stdout = &stdout
	sess.Stderr = &stderr

	ctx, cancel := context.WithTimeout(ctx, c.conf.CommandTimeout)
	defer cancel()

	start := time.Now()

	if err := sess.Start(command); err != nil {
		return nil, &sherrors.ConnectionError{ServerUID: session.ServerUID, Err: err}
	}

	done := make(chan error, 1)

	go func() {
		done <- sess.Wait()
	}()

	select {
	case <-ctx.Done():
		sess.Signal(ssh.SIGKILL)

		return nil, &sherrors.ConnectionError{ServerUID: session.ServerUID, Err: sherrors.ErrCommandTimeout}
	case err = <-done:
	}

	result := &RunResult{
		Stdout:   c.redactor.Redact(stdout.String()),
		Stderr:   c.redactor.Redact(stderr.String()),
		Duration: time.Since(start),
	}

	if err != nil {
		exitErr, ok := err.(*ssh.ExitError)

		if !ok {
			return nil, &sherrors.ConnectionError{ServerUID: session.ServerUID, Err: fmt.Errorf("remote wait failed: %s", c.redactor.Redact(err.Error()))}
		}

		// a non-zero exit is a result, not a transport failure
		result.ExitCode = exitErr.ExitStatus()
	}

	session.lastUsed = time.Now()

	c.logger.Debug().Msgf("executed command on server %s (exit=%d, took=%s)", session.ServerUID, result.ExitCode, result.Duration)

	return result, nil
}

// Disconnect returns the session to the pool, closing it outright when the
// pool is full. Safe to call on error paths.
func (c *Client) Disconnect(session *Session) {
	if session == nil {
		return
	}

	if err := c.pool.Return(session); err != nil {
		session.close()
	}
}

// Close drains every pooled session.
func (c *Client) Close() {
	c.pool.Close()
}

func authMethod(authType models.AuthType, creds []byte) (ssh.AuthMethod, error) {
	switch authType {
	case models.AuthTypePassword:
		return ssh.Password(string(creds)), nil
	case models.AuthTypePrivateKey:
		signer, err := ssh.ParsePrivateKey(creds)

		if err != nil {
			return nil, fmt.Errorf("private key unusable")
		}

		return ssh.PublicKeys(signer), nil
	}

	return nil, fmt.Errorf("unsupported auth type %q", authType)
}

// pinnedHostKeyCallback refuses any host key whose SHA256 fingerprint does
// not match the fingerprint pinned on the server record.
func pinnedHostKeyCallback(fingerprint string) ssh.HostKeyCallback {
	return func(hostname string, remote net.Addr, key ssh.PublicKey) error {
		actual := ssh.FingerprintSHA256(key)

		if actual != fingerprint {
			return fmt.Errorf("host key mismatch for %s: got %s, pinned %s", hostname, actual, fingerprint)
		}

		return nil
	}
}
