package sshexec

import (
	"sync"
	"time"

	sherrors "github.com/wpmend-dev/wpmend-agent/pkg/errors"
)

// Pool holds idle sessions keyed by server uid. It is the only mutable state
// shared across concurrent incidents; all access goes through the mutex.
type Pool struct {
	mu sync.Mutex

	maxPerServer int
	idleTTL      time.Duration

	idle map[string][]*Session
}

func NewPool(maxPerServer int, idleTTL time.Duration) *Pool {
	if maxPerServer <= 0 {
		maxPerServer = 1
	}

	return &Pool{
		maxPerServer: maxPerServer,
		idleTTL:      idleTTL,
		idle:         make(map[string][]*Session),
	}
}

// Checkout pops the most recently used healthy session for the server, or
// nil when none is available. Unhealthy sessions are discarded, never reused.
func (p *Pool) Checkout(serverUID string) *Session {
	p.mu.Lock()
	defer p.mu.Unlock()

	sessions := p.idle[serverUID]

	for len(sessions) > 0 {
		session := sessions[len(sessions)-1]
		sessions = sessions[:len(sessions)-1]
		p.idle[serverUID] = sessions

		if session.healthy() {
			return session
		}

		session.close()
	}

	return nil
}

// Return puts the session back on the idle list. It returns ErrPoolExhausted
// when the pool for that server is at capacity, in which case the caller owns
// closing the session.
func (p *Pool) Return(session *Session) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.idle[session.ServerUID]) >= p.maxPerServer {
		return sherrors.ErrPoolExhausted
	}

	session.lastUsed = time.Now()
	p.idle[session.ServerUID] = append(p.idle[session.ServerUID], session)

	return nil
}

// EvictIdle closes sessions idle past the TTL and returns how many were
// evicted.
func (p *Pool) EvictIdle() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	cutoff := time.Now().Add(-p.idleTTL)
	evicted := 0

	for uid, sessions := range p.idle {
		kept := sessions[:0]

		for _, session := range sessions {
			if session.lastUsed.Before(cutoff) {
				session.close()
				evicted++

				continue
			}

			kept = append(kept, session)
		}

		if len(kept) == 0 {
			delete(p.idle, uid)
		} else {
			p.idle[uid] = kept
		}
	}

	return evicted
}

// Stats returns the idle session count per server uid.
func (p *Pool) Stats() map[string]int {
	p.mu.Lock()
	defer p.mu.Unlock()

	stats := make(map[string]int, len(p.idle))

	for uid, sessions := range p.idle {
		stats[uid] = len(sessions)
	}

	return stats
}

// Close drains and closes every idle session.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for uid, sessions := range p.idle {
		for _, session := range sessions {
			session.close()
		}

		delete(p.idle, uid)
	}
}

func (s *Session) close() {
	if s.client != nil {
		s.client.Close()
	}
}

// healthy probes the transport with an OpenSSH keepalive request.
func (s *Session) healthy() bool {
	if s.client == nil {
		return false
	}

	_, _, err := s.client.SendRequest("keepalive@openssh.com", true, nil)

	return err == nil
}
