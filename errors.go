package curlew

import (
	"errors"
	"fmt"
	"strings"
)

// ErrFileNotFound is wrapped by [ConfigError] when a configured
// cert/key/CA path does not exist on disk.
var ErrFileNotFound = errors.New("file not found")

// ConfigError is returned when handle construction is given a
// parameter this layer rejects. It names the offending option and
// value, so the caller can correct it and retry; no engine resources
// are allocated for the failed construction.
type ConfigError struct {
	Option string
	Value  string
	Err    error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s[%s]: %v", e.Option, e.Value, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// ConfigErrors collects every rejected construction parameter, one
// [ConfigError] per offending option.
type ConfigErrors []*ConfigError

func (e ConfigErrors) Error() string {
	parts := make([]string, len(e))
	for i, c := range e {
		parts[i] = c.Error()
	}
	return strings.Join(parts, "; ")
}

func (e ConfigErrors) Unwrap() []error {
	errs := make([]error, len(e))
	for i, c := range e {
		errs[i] = c
	}
	return errs
}
