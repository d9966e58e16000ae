package curlew

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/http"
	"runtime"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/curlew-io/curlew/engine"
)

// Handle is the capability common to Single and Multi: deterministic,
// idempotent release of engine resources. Both also expose a blocking
// perform operation; the signatures differ because a Multi reports
// per-transfer outcomes through each handle's Meta store.
type Handle interface {
	Cleanup()
}

// Single is one configured, independently performable transfer
// session. Its engine session is exclusively owned: non-nil from
// construction until Cleanup, nil and inert afterwards.
type Single struct {
	id      uuid.UUID
	sess    *engine.Session
	headers []string
	meta    *Meta
	logger  *slog.Logger

	consumers sync.WaitGroup
	release   runtime.Cleanup
}

// Wrap takes ownership of a caller-obtained engine session. The
// returned handle releases the session on Cleanup or, as a safety
// net, when the handle becomes unreachable.
func Wrap(sess *engine.Session) *Single {
	h := &Single{
		id:     uuid.New(),
		sess:   sess,
		meta:   newMeta(),
		logger: slog.Default(),
	}

	h.release = runtime.AddCleanup(h, func(s *engine.Session) { s.Close() }, sess)

	return h
}

// New constructs a configured handle: parameters are validated first
// (unsupported method, missing cert/key/CA files), so a rejected
// construction allocates no engine resources, then the fixed transfer
// defaults are applied to a fresh session.
func New(optFns ...Option) (*Single, error) {
	var cfg config
	for _, opt := range optFns {
		if err := opt(&cfg); err != nil {
			return nil, fmt.Errorf("applying handle option: %w", err)
		}
	}

	if cfg.Method == MethodPut {
		return nil, &ConfigError{Option: "method", Value: cfg.Method.String(), Err: ErrUnsupportedMethod}
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	eng := cfg.Engine
	if eng == nil {
		eng = engine.Default()
	}

	sess := eng.NewSession()
	h := Wrap(sess)
	if cfg.Logger != nil {
		h.logger = cfg.Logger
	}

	if cfg.URL != "" {
		sess.SetURL(cfg.URL)
	}

	switch cfg.Method {
	case MethodGet:
		// Session default.
	case MethodPost:
		sess.SetMethod(http.MethodPost)
	case MethodHead:
		sess.SetNoBody(true)
	case MethodDelete, MethodOptions:
		// GET-mode request with a custom request-line override.
		sess.SetCustomRequest(cfg.Method.String())
	}

	sess.SetVerbose(cfg.Verbose)
	sess.SetFollowRedirects(true)
	sess.SetMaxTLSVersion(tls.VersionTLS13)
	sess.SetPreferHTTP2(true)
	// Fast open defeats connection reuse.
	sess.SetTCPFastOpen(false)
	sess.SetKeepAlive(true)
	sess.SetAcceptEncoding(true)
	// Connection reuse is the caller's job, not a resolver cache's.
	sess.SetDNSCaching(false)

	if cfg.CertPath != "" {
		sess.SetClientCert(cfg.CertPath, cfg.KeyPath)
	}
	if cfg.CACertPath != "" {
		sess.SetCACert(cfg.CACertPath)
	}
	if cfg.Timeout > 0 {
		sess.SetTimeout(cfg.Timeout)
	}

	if ua := resolveUserAgent(cfg.UserAgent); ua != "" {
		sess.SetUserAgent(ua)
	}

	return h, nil
}

func resolveUserAgent(explicit *string) string {
	if explicit != nil {
		return *explicit
	}
	return DefaultUserAgent()
}

// ID is the process-unique identifier assigned at construction. It
// correlates engine completion events back to this handle without
// relying on pointer identity alone.
func (h *Single) ID() uuid.UUID { return h.id }

// Meta is the handle's metadata store.
func (h *Single) Meta() *Meta { return h.meta }

// Session exposes the owned engine session, or nil after Cleanup.
func (h *Single) Session() *engine.Session { return h.sess }

// Cleanup terminates any registered streaming channels, frees the
// header list, and releases the engine session, leaving the handle
// inert. Idempotent.
func (h *Single) Cleanup() {
	if h.sess == nil {
		return
	}

	h.endStreams()
	h.headers = nil
	h.release.Stop()
	h.sess.Close()
	h.sess = nil
}

// Perform executes the configured transfer synchronously and returns
// the engine result code, the HTTP status, and the decoded error text
// (empty on success). A non-2xx status is not an error here; callers
// check it explicitly. The same outcome is recorded in the Meta store.
func (h *Single) Perform(ctx context.Context) (engine.Code, int, string) {
	if h.sess == nil {
		return engine.CodeInternalError, 0, "perform on cleaned-up handle"
	}

	code, status := h.sess.Perform(ctx)
	errText := h.finish(status)

	return code, status, errText
}

// finish terminates the handle's streaming channels, waits for their
// consumers to drain, and records the outcome in the Meta store. It
// runs strictly after the transfer completes, both here and in multi
// reconciliation.
func (h *Single) finish(status int) string {
	h.endStreams()

	errText := strings.TrimSpace(h.meta.takeErrText())
	h.meta.setResult(status, errText)

	return errText
}

// endStreams publishes end-of-stream on both registered channels and
// waits for every spawned consumer to exit. End is idempotent, so it
// is safe to call from finish, reconfiguration, and Cleanup alike.
func (h *Single) endStreams() {
	if ch := h.meta.DataChannel(); ch != nil {
		ch.End()
	}
	if ch := h.meta.HeaderChannel(); ch != nil {
		ch.End()
	}
	h.consumers.Wait()
}

// Escape percent-encodes s for safe URL embedding via the engine's
// escaping primitive. It is independent of any handle's configuration.
func Escape(s string) string {
	return engine.Escape(s)
}
