package curlew

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/curlew-io/curlew/engine"
)

// pollWait bounds each wait inside the poll loop so a stalled engine
// cannot park the loop forever.
const pollWait = 1000 * time.Millisecond

// Multi drives a pool of Single handles concurrently through one poll
// loop. Pool membership and engine multi-session registration move in
// lockstep: a handle is in both or in neither.
type Multi struct {
	msess  *engine.MultiSession
	pool   []*Single
	logger *slog.Logger
}

// NewMulti creates a Multi holding the given handles, each added
// individually. It uses the shared default engine's multi-session.
func NewMulti(handles ...*Single) *Multi {
	m := &Multi{
		msess:  engine.Default().NewMultiSession(),
		logger: slog.Default(),
	}

	for _, h := range handles {
		// Add only fails for cleaned-up handles, which a fresh batch
		// should not contain; surface it loudly rather than drop it.
		if err := m.Add(h); err != nil {
			m.logger.Error("skipping handle in initial batch", "error", err)
		}
	}

	return m
}

// Add registers h in the pool and with the engine multi-session as a
// single logical operation. Adding an already-pooled handle is a
// no-op.
func (m *Multi) Add(h *Single) error {
	if m.msess == nil {
		return errors.New("add on cleaned-up multi handle")
	}
	if h == nil || h.sess == nil {
		return errors.New("cannot add a cleaned-up handle")
	}

	for _, p := range m.pool {
		if p == h {
			return nil
		}
	}

	m.msess.Add(h.sess)
	m.pool = append(m.pool, h)

	return nil
}

// Remove unregisters h from the pool and the engine multi-session.
// Returns false when h is not pooled.
func (m *Multi) Remove(h *Single) bool {
	if m.msess == nil {
		return false
	}

	for i, p := range m.pool {
		if p == h {
			m.msess.Remove(p.sess)
			m.pool = append(m.pool[:i], m.pool[i+1:]...)
			return true
		}
	}

	return false
}

// RemoveByID removes the pooled handle carrying id. A miss is a
// no-op returning false, not an error.
func (m *Multi) RemoveByID(id uuid.UUID) bool {
	for _, p := range m.pool {
		if p.id == id {
			return m.Remove(p)
		}
	}

	return false
}

// Handles returns the pooled handles in registration order.
func (m *Multi) Handles() []*Single {
	out := make([]*Single, len(m.pool))
	copy(out, m.pool)
	return out
}

// Perform runs the poll loop: step the engine, and while transfers
// remain in flight, wait (bounded) for progress and step again. Any
// non-OK code from step or wait is fatal to the whole batch and
// returned immediately.
func (m *Multi) Perform(ctx context.Context) engine.Code {
	if m.msess == nil {
		return engine.CodeInternalError
	}

	for {
		running, code := m.msess.Step(ctx)
		if code != engine.CodeOK {
			m.logger.Error("multi step failed", "code", code.String())
			return code
		}

		if running == 0 {
			return engine.CodeOK
		}

		if code := m.msess.Wait(pollWait); code != engine.CodeOK {
			m.logger.Error("multi wait failed", "code", code.String())
			return code
		}
	}
}

// Execute runs the poll loop to completion, then reconciles the
// engine's completion messages into each pooled handle's Meta store:
// end-of-stream is published to the handle's channels, its consumers
// drained, and status plus decoded error text recorded. The return
// value is the poll loop's code only; per-transfer outcomes live in
// each handle's Meta afterwards.
func (m *Multi) Execute(ctx context.Context) engine.Code {
	code := m.Perform(ctx)
	if m.msess == nil {
		return code
	}

	for {
		info, ok := m.msess.ReadInfo()
		if !ok {
			break
		}

		if info.Kind != engine.InfoDone {
			m.logger.Warn("unrecognized completion message kind", "kind", int(info.Kind))
			continue
		}

		h := m.lookup(info.Session)
		if h == nil {
			m.logger.Error("completion message for untracked session")
			continue
		}

		h.finish(info.Status)
	}

	return code
}

// lookup resolves a completion message's session back to its pooled
// handle by session identity.
func (m *Multi) lookup(sess *engine.Session) *Single {
	for _, h := range m.pool {
		if h.sess == sess {
			return h
		}
	}
	return nil
}

// Cleanup removes and cleans up every pooled handle, then releases
// the multi-session. Idempotent.
func (m *Multi) Cleanup() {
	if m.msess == nil {
		return
	}

	for _, h := range m.pool {
		if h.sess != nil {
			m.msess.Remove(h.sess)
		}
		h.Cleanup()
	}

	m.pool = nil
	m.msess.Close()
	m.msess = nil
}
