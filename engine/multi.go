package engine

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// InfoKind discriminates completion-queue message kinds.
type InfoKind int

const (
	// InfoDone reports a finished transfer.
	InfoDone InfoKind = iota
)

// Info is one completion message read back via ReadInfo.
type Info struct {
	Session *Session
	Kind    InfoKind
	Code    Code
	Status  int
}

// MultiSession drives a set of sessions concurrently. The driving
// contract is non-blocking: Step launches transfers and reports how
// many remain in flight, Wait blocks until progress or a timeout, and
// ReadInfo drains completion messages. Transfers run on goroutines
// internal to the engine; callers only ever observe them through these
// three primitives.
type MultiSession struct {
	clock clock.Clock

	mu      sync.Mutex
	pending []*Session
	running map[*Session]struct{}
	infos   []Info
	closed  bool

	progress chan struct{}
}

// NewMultiSession creates an empty multi-session.
func (e *Engine) NewMultiSession() *MultiSession {
	return &MultiSession{
		clock:    clock.New(),
		running:  make(map[*Session]struct{}),
		progress: make(chan struct{}, 1),
	}
}

// Add registers s for driving on the next Step. Adding the same
// session twice is a no-op.
func (m *MultiSession) Add(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed || m.tracked(s) {
		return
	}
	m.pending = append(m.pending, s)
}

// Remove unregisters s if it has not started yet. A transfer already
// in flight keeps running; its completion message is still delivered.
func (m *MultiSession) Remove(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, p := range m.pending {
		if p == s {
			m.pending = append(m.pending[:i], m.pending[i+1:]...)
			return
		}
	}
}

// Step starts every pending transfer and returns the number still in
// flight. It never blocks on transfer I/O.
func (m *MultiSession) Step(ctx context.Context) (int, Code) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, CodeInternalError
	}

	for _, s := range m.pending {
		m.running[s] = struct{}{}
		go m.drive(ctx, s)
	}
	m.pending = nil

	return len(m.running), CodeOK
}

// Wait blocks until any transfer completes or timeout elapses.
func (m *MultiSession) Wait(timeout time.Duration) Code {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return CodeInternalError
	}
	m.mu.Unlock()

	timer := m.clock.Timer(timeout)
	defer timer.Stop()

	select {
	case <-m.progress:
	case <-timer.C:
	}

	return CodeOK
}

// ReadInfo pops the next completion message, reporting false when the
// queue is empty.
func (m *MultiSession) ReadInfo() (Info, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.infos) == 0 {
		return Info{}, false
	}

	info := m.infos[0]
	m.infos = m.infos[1:]

	return info, true
}

// Close releases the multi-session. Pending transfers are dropped;
// in-flight ones finish but their completion messages are discarded.
// Idempotent.
func (m *MultiSession) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.pending = nil
	m.infos = nil
}

func (m *MultiSession) drive(ctx context.Context, s *Session) {
	code, status := s.Perform(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.running, s)
	if !m.closed {
		m.infos = append(m.infos, Info{Session: s, Kind: InfoDone, Code: code, Status: status})
	}

	select {
	case m.progress <- struct{}{}:
	default:
	}
}

// tracked reports whether s is pending or running. Callers hold m.mu.
func (m *MultiSession) tracked(s *Session) bool {
	if _, ok := m.running[s]; ok {
		return true
	}
	for _, p := range m.pending {
		if p == s {
			return true
		}
	}
	return false
}
