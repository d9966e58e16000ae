package curlew

import (
	"fmt"
	"sync"

	"github.com/spf13/viper"
)

// Settings holds process-wide defaults. Intended lifecycle: load (or
// build) once at startup, apply once, read at each handle
// construction.
type Settings struct {
	UserAgent string `mapstructure:"user_agent"`
}

// LoadSettings reads a YAML settings file named filename (without
// extension) from path. Environment variables override file values.
func LoadSettings(path, filename string) (*Settings, error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName(filename)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("curlew")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading settings: %w", err)
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("unmarshaling settings: %w", err)
	}

	return &s, nil
}

// Apply installs the settings as process-wide defaults.
func (s *Settings) Apply() {
	SetDefaultUserAgent(s.UserAgent)
}

var processDefaults struct {
	mu        sync.RWMutex
	userAgent string
}

// SetDefaultUserAgent sets the user agent used by every subsequently
// constructed handle that does not carry an explicit one. The empty
// string clears it, letting the engine use its own default.
func SetDefaultUserAgent(ua string) {
	processDefaults.mu.Lock()
	defer processDefaults.mu.Unlock()
	processDefaults.userAgent = ua
}

// DefaultUserAgent returns the process-wide default user agent, or
// the empty string when none is set.
func DefaultUserAgent() string {
	processDefaults.mu.RLock()
	defer processDefaults.mu.RUnlock()
	return processDefaults.userAgent
}
