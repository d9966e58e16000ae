// Package engine is the transfer engine binding: the opaque capability
// that actually moves bytes. It exposes session creation and teardown,
// per-session option setters, a synchronous perform primitive,
// multi-session step/wait/info-read primitives, and percent-escaping.
//
// The default binding runs over [net/http]. Handle layers above the
// engine treat it as a black box and only ever talk to it through the
// primitives in this package.
package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"
)

// ErrMustNotBeZero is returned when an option value must be positive.
var ErrMustNotBeZero = errors.New("must be greater than zero")

// Engine is the process-level transfer factory. It owns the base
// transport shared by the sessions it creates.
type Engine struct {
	logger   *slog.Logger
	base     *http.Transport
	throttle *throttle
	metrics  *Metrics
	tracer   *Tracer
}

// Option is a functional option for configuring an [Engine] via [New].
type Option func(*options) error

type options struct {
	logger      *slog.Logger
	dialTimeout *time.Duration
	throttle    *throttleConfig
	metrics     *Metrics
	tracer      *Tracer
}

// WithLogger injects a custom [slog.Logger] into the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) error {
		o.logger = logger
		return nil
	}
}

// WithDialTimeout overrides the default connection dial timeout.
func WithDialTimeout(d time.Duration) Option {
	return func(o *options) error {
		if d <= 0 {
			return fmt.Errorf("dial timeout[%s] %w", d, ErrMustNotBeZero)
		}
		o.dialTimeout = &d
		return nil
	}
}

// WithThrottle enables token-bucket rate limiting of outbound transfers
// with the given requests per second and burst capacity.
func WithThrottle(rps, burst int) Option {
	return func(o *options) error {
		if rps <= 0 || burst <= 0 {
			return fmt.Errorf("rps[%d] and burst[%d] %w", rps, burst, ErrMustNotBeZero)
		}
		o.throttle = &throttleConfig{rps: rps, burst: burst}
		return nil
	}
}

// WithMetrics enables Prometheus transfer metrics collection.
// Build the collector with [NewMetrics].
func WithMetrics(m *Metrics) Option {
	return func(o *options) error {
		if m == nil {
			return fmt.Errorf("metrics must not be nil")
		}
		o.metrics = m
		return nil
	}
}

// WithTracer enables OpenTelemetry spans around each perform.
func WithTracer(t *Tracer) Option {
	return func(o *options) error {
		if t == nil {
			return fmt.Errorf("tracer must not be nil")
		}
		o.tracer = t
		return nil
	}
}

// New builds an Engine with the provided options applied over a
// default base transport.
func New(optFns ...Option) (*Engine, error) {
	var opts options
	for _, opt := range optFns {
		if err := opt(&opts); err != nil {
			return nil, fmt.Errorf("applying engine option: %w", err)
		}
	}

	dialTimeout := 5 * time.Second
	if opts.dialTimeout != nil {
		dialTimeout = *opts.dialTimeout
	}

	eng := &Engine{
		logger: slog.Default(),
		base: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   dialTimeout,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
		metrics: opts.metrics,
		tracer:  opts.tracer,
	}

	if opts.logger != nil {
		eng.logger = opts.logger
	}

	if opts.throttle != nil {
		t, err := newThrottle(opts.throttle.rps, opts.throttle.burst, func() *slog.Logger { return eng.logger })
		if err != nil {
			return nil, fmt.Errorf("configuring throttle: %w", err)
		}
		eng.throttle = t
	}

	return eng, nil
}

// defaultEngine backs handles that were constructed without an
// explicit engine. Built once, on first use.
var defaultEngine = sync.OnceValue(func() *Engine {
	eng, err := New()
	if err != nil {
		// New with zero options cannot fail; a failure here is a
		// defect in the engine itself.
		panic(fmt.Sprintf("engine: building default engine: %v", err))
	}
	return eng
})

// Default returns the shared process-wide engine.
func Default() *Engine {
	return defaultEngine()
}
