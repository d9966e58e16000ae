package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

var (
	// ErrThrottleWait is wrapped when the rate limiter wait fails.
	ErrThrottleWait = errors.New("limiter waiting failed")
	// ErrThrottleContext is wrapped when the request context ends
	// while throttled.
	ErrThrottleContext = errors.New("throttle context ended")
)

type throttleConfig struct {
	rps   int
	burst int
}

// throttle is an http.RoundTripper using the time/rate token bucket
// limiter to restrict outbound transfers. One limiter is shared by
// every session the engine creates.
type throttle struct {
	limiter *rate.Limiter
	rps     int
	burst   int
	next    http.RoundTripper
	logFn   func() *slog.Logger
}

// newThrottle builds a throttle without a downstream transport; wrap
// attaches one per session. logFn lazily resolves the logger at
// request time. A nil-returning logFn skips the *Limiter.Allow probes.
func newThrottle(rps, burst int, logFn func() *slog.Logger) (*throttle, error) {
	if rps <= 0 || burst <= 0 {
		return nil, fmt.Errorf("rps[%d] and burst[%d] %w", rps, burst, ErrMustNotBeZero)
	}

	return &throttle{
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		rps:     rps,
		burst:   burst,
		logFn:   logFn,
	}, nil
}

// wrap returns a RoundTripper sharing this throttle's token bucket
// with next as the downstream transport.
func (t *throttle) wrap(next http.RoundTripper) http.RoundTripper {
	cp := *t
	cp.next = next
	return &cp
}

func (t *throttle) RoundTrip(r *http.Request) (*http.Response, error) {
	if t.limiter == nil {
		return t.next.RoundTrip(r)
	}

	ctx := r.Context()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w early: %w", ErrThrottleContext, err)
	}

	var waited time.Duration
	logger := t.logFn()
	if logger != nil && !t.limiter.Allow() {
		logger.Info("throttle tokens exhausted", "rate", t.rps, "burst", t.burst, "path", r.URL.Path)

		defer func() {
			logger.Info("throttle wait complete", "waited", waited.String(), "rate", t.rps, "burst", t.burst)
		}()
	}

	start := time.Now()

	err := t.limiter.Wait(ctx)
	waited = time.Since(start)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrThrottleWait, err)
	}

	if err := ctx.Err(); err != nil { // Check context hasn't expired again.
		return nil, fmt.Errorf("%w post-wait: %w", ErrThrottleContext, err)
	}

	return t.next.RoundTrip(r)
}
