package curlew

import (
	"errors"
	"log/slog"
	"time"

	"github.com/curlew-io/curlew/engine"
)

// Option is a functional option for configuring a [Single] via [New].
type Option func(*config) error

// config collects construction parameters for validation before any
// engine resource is allocated. The json tags name the options in
// validation errors.
type config struct {
	URL        string         `json:"url" validate:"omitempty,url"`
	Method     Method         `json:"-"`
	Verbose    bool           `json:"-"`
	CertPath   string         `json:"certpath" validate:"omitempty,file"`
	KeyPath    string         `json:"keypath" validate:"omitempty,file"`
	CACertPath string         `json:"cacertpath" validate:"omitempty,file"`
	UserAgent  *string        `json:"-"`
	Timeout    time.Duration  `json:"-"`
	Engine     *engine.Engine `json:"-"`
	Logger     *slog.Logger   `json:"-"`
}

// WithURL sets the initial request target. A handle without a URL must
// be given one via SetupRequest before it can perform.
func WithURL(u string) Option {
	return func(c *config) error {
		c.URL = u
		return nil
	}
}

// WithMethod sets the request method. The default is [MethodGet];
// [MethodPut] always fails construction.
func WithMethod(m Method) Option {
	return func(c *config) error {
		c.Method = m
		return nil
	}
}

// WithVerbose enables the diagnostic callback for informational,
// header, and TLS-trace events.
func WithVerbose() Option {
	return func(c *config) error {
		c.Verbose = true
		return nil
	}
}

// WithClientCert configures a client TLS certificate/key pair. Both
// paths must exist on disk.
func WithClientCert(certPath, keyPath string) Option {
	return func(c *config) error {
		if certPath == "" || keyPath == "" {
			return errors.New("cert and key paths must both be given")
		}
		c.CertPath = certPath
		c.KeyPath = keyPath
		return nil
	}
}

// WithCACert overrides the trust store with the bundle at path. Unset
// means platform trust roots.
func WithCACert(path string) Option {
	return func(c *config) error {
		c.CACertPath = path
		return nil
	}
}

// WithUserAgent sets an explicit User-Agent, overriding the
// process-wide default. The empty string suppresses the header at
// this layer, leaving the engine's own default.
func WithUserAgent(ua string) Option {
	return func(c *config) error {
		c.UserAgent = &ua
		return nil
	}
}

// WithTimeout bounds the whole transfer; enforcement is entirely the
// engine's.
func WithTimeout(d time.Duration) Option {
	return func(c *config) error {
		if d < 0 {
			return errors.New("timeout must not be negative")
		}
		c.Timeout = d
		return nil
	}
}

// WithEngine places the handle's session on eng instead of the shared
// default engine.
func WithEngine(eng *engine.Engine) Option {
	return func(c *config) error {
		if eng == nil {
			return errors.New("engine must not be nil")
		}
		c.Engine = eng
		return nil
	}
}

// WithLogger injects a custom [slog.Logger] into the handle.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) error {
		c.Logger = logger
		return nil
	}
}
