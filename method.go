package curlew

import "errors"

// ErrUnsupportedMethod is the sentinel error wrapped by [ConfigError]
// when a handle is constructed with a method this layer refuses.
var ErrUnsupportedMethod = errors.New("unsupported method")

// Method is the closed set of request methods a handle recognizes.
type Method int

const (
	MethodGet Method = iota
	MethodPost
	MethodHead
	MethodDelete
	MethodOptions
	// MethodPut is recognized so that its rejection is a validated
	// configuration error rather than an omission: constructing a
	// handle with it always fails.
	MethodPut
)

func (m Method) String() string {
	switch m {
	case MethodGet:
		return "GET"
	case MethodPost:
		return "POST"
	case MethodHead:
		return "HEAD"
	case MethodDelete:
		return "DELETE"
	case MethodOptions:
		return "OPTIONS"
	case MethodPut:
		return "PUT"
	default:
		return "UNKNOWN"
	}
}
