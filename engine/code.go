package engine

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"net/url"
	"syscall"
)

// Code is the engine result code returned by transfer operations.
// Transfer failures are reported as codes plus error-buffer text,
// never as panics.
type Code int

const (
	CodeOK Code = iota
	CodeUnsupportedProtocol
	CodeURLMalformat
	CodeCouldntResolveHost
	CodeCouldntConnect
	CodeOperationTimedout
	CodeSSLConnectError
	CodeSendError
	CodeRecvError
	CodeAbortedByCallback
	CodeGotNothing
	CodeInternalError
)

func (c Code) String() string {
	switch c {
	case CodeOK:
		return "ok"
	case CodeUnsupportedProtocol:
		return "unsupported protocol"
	case CodeURLMalformat:
		return "url malformat"
	case CodeCouldntResolveHost:
		return "couldn't resolve host"
	case CodeCouldntConnect:
		return "couldn't connect"
	case CodeOperationTimedout:
		return "operation timed out"
	case CodeSSLConnectError:
		return "ssl connect error"
	case CodeSendError:
		return "send error"
	case CodeRecvError:
		return "recv error"
	case CodeAbortedByCallback:
		return "aborted by callback"
	case CodeGotNothing:
		return "got nothing"
	case CodeInternalError:
		return "internal error"
	default:
		return "unknown"
	}
}

// codeFor maps a transport error onto the closed result-code set.
func codeFor(err error) Code {
	if err == nil {
		return CodeOK
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Op == "parse" {
		return CodeURLMalformat
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return CodeOperationTimedout
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return CodeCouldntResolveHost
	}

	var recordErr tls.RecordHeaderError
	var certErr *tls.CertificateVerificationError
	if errors.As(err, &recordErr) || errors.As(err, &certErr) {
		return CodeSSLConnectError
	}

	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.EHOSTUNREACH) {
		return CodeCouldntConnect
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return CodeOperationTimedout
	}

	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.EPIPE) {
		return CodeRecvError
	}

	return CodeSendError
}
