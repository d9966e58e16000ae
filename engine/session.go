package engine

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"
)

// WriteFunc receives one chunk of response body bytes. The engine may
// reuse the chunk's backing array after the call returns, so
// implementations must copy anything they keep.
type WriteFunc func(chunk []byte)

// HeaderFunc receives one raw response header line, CRLF included. The
// header section terminates with a line that is exactly "\r\n".
type HeaderFunc func(line string)

// DebugKind categorizes diagnostic callback events.
type DebugKind int

const (
	DebugInfo DebugKind = iota
	DebugHeaderIn
	DebugHeaderOut
	DebugTLSTrace
)

func (k DebugKind) String() string {
	switch k {
	case DebugInfo:
		return "info"
	case DebugHeaderIn:
		return "header-in"
	case DebugHeaderOut:
		return "header-out"
	case DebugTLSTrace:
		return "tls-trace"
	default:
		return "unknown"
	}
}

// DebugFunc receives diagnostic trace events. It fires only when the
// session is in verbose mode.
type DebugFunc func(kind DebugKind, msg string)

// Session is one configurable transfer. It is exclusively owned by its
// creator: configuring a session while a transfer is in flight is
// undefined and must be avoided.
type Session struct {
	eng    *Engine
	closed bool

	url           string
	method        string
	customRequest string
	noBody        bool
	headers       []string
	body          []byte
	userAgent     string
	timeout       time.Duration

	certFile string
	keyFile  string
	caFile   string

	maxTLSVersion   uint16
	followRedirects bool
	preferHTTP2     bool
	keepAlive       bool
	acceptEncoding  bool
	tcpFastOpen     bool
	dnsCaching      bool

	verbose  bool
	debugFn  DebugFunc
	writeFn  WriteFunc
	headerFn HeaderFunc
	errBuf   *bytes.Buffer
	private  any

	lastCode   Code
	lastStatus int
}

// NewSession creates a fresh transfer session with engine-neutral
// defaults: GET, follow redirects, keep-alive, compression on.
func (e *Engine) NewSession() *Session {
	return &Session{
		eng:             e,
		method:          http.MethodGet,
		followRedirects: true,
		preferHTTP2:     true,
		keepAlive:       true,
		acceptEncoding:  true,
	}
}

// Close releases the session. Idempotent; a closed session refuses to
// perform.
func (s *Session) Close() {
	s.closed = true
	s.writeFn = nil
	s.headerFn = nil
	s.debugFn = nil
	s.errBuf = nil
	s.body = nil
	s.headers = nil
}

func (s *Session) SetURL(u string)                { s.url = u }
func (s *Session) SetMethod(m string)             { s.method = m }
func (s *Session) SetCustomRequest(line string)   { s.customRequest = line }
func (s *Session) SetNoBody(v bool)               { s.noBody = v }
func (s *Session) SetHeaders(hs []string)         { s.headers = hs }
func (s *Session) SetBody(b []byte)               { s.body = b }
func (s *Session) SetUserAgent(ua string)         { s.userAgent = ua }
func (s *Session) SetTimeout(d time.Duration)     { s.timeout = d }
func (s *Session) SetVerbose(v bool)              { s.verbose = v }
func (s *Session) SetDebugFunc(fn DebugFunc)      { s.debugFn = fn }
func (s *Session) SetWriteFunc(fn WriteFunc)      { s.writeFn = fn }
func (s *Session) SetHeaderFunc(fn HeaderFunc)    { s.headerFn = fn }
func (s *Session) SetErrorBuffer(b *bytes.Buffer) { s.errBuf = b }
func (s *Session) SetFollowRedirects(v bool)      { s.followRedirects = v }
func (s *Session) SetMaxTLSVersion(v uint16)      { s.maxTLSVersion = v }
func (s *Session) SetPreferHTTP2(v bool)          { s.preferHTTP2 = v }
func (s *Session) SetKeepAlive(v bool)            { s.keepAlive = v }
func (s *Session) SetAcceptEncoding(v bool)       { s.acceptEncoding = v }

// SetTCPFastOpen records the TCP fast-open preference. The net/http
// binding never uses fast open, so only true is a behavior change
// request it cannot honor; it is recorded for completeness.
func (s *Session) SetTCPFastOpen(v bool) { s.tcpFastOpen = v }

// SetDNSCaching records the DNS caching preference. The net/http
// binding resolves through the platform resolver and keeps no cache of
// its own, so false is already the effective behavior.
func (s *Session) SetDNSCaching(v bool) { s.dnsCaching = v }

// SetClientCert configures a client certificate/key pair for mutual TLS.
func (s *Session) SetClientCert(certFile, keyFile string) {
	s.certFile = certFile
	s.keyFile = keyFile
}

// SetCACert overrides the trust store with the PEM bundle at path.
// Unset means platform trust roots.
func (s *Session) SetCACert(path string) { s.caFile = path }

// SetPrivate attaches an opaque per-transfer context value.
func (s *Session) SetPrivate(v any) { s.private = v }

// Private returns the value attached with SetPrivate.
func (s *Session) Private() any { return s.private }

// Closed reports whether the session has been released.
func (s *Session) Closed() bool { return s.closed }

// URL returns the session's configured target.
func (s *Session) URL() string { return s.url }

// fail records msg in the error buffer and returns code.
func (s *Session) fail(code Code, msg string) (Code, int) {
	if s.errBuf != nil {
		s.errBuf.Reset()
		s.errBuf.WriteString(msg)
	}
	return code, 0
}

// wireMethod is the method string that actually goes on the wire:
// a custom request line wins, then no-body implies HEAD.
func (s *Session) wireMethod() string {
	switch {
	case s.customRequest != "":
		return s.customRequest
	case s.noBody:
		return http.MethodHead
	default:
		return s.method
	}
}

func (s *Session) transport() (http.RoundTripper, error) {
	tlsConf := &tls.Config{
		MinVersion: tls.VersionTLS12,
	}
	if s.maxTLSVersion != 0 {
		tlsConf.MaxVersion = s.maxTLSVersion
	}

	if s.certFile != "" || s.keyFile != "" {
		cert, err := tls.LoadX509KeyPair(s.certFile, s.keyFile)
		if err != nil {
			return nil, fmt.Errorf("loading client cert: %w", err)
		}
		tlsConf.Certificates = []tls.Certificate{cert}
	}

	if s.caFile != "" {
		pem, err := os.ReadFile(s.caFile)
		if err != nil {
			return nil, fmt.Errorf("reading ca bundle: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("ca bundle %s contains no certificates", s.caFile)
		}
		tlsConf.RootCAs = pool
	}

	tr := s.eng.base.Clone()
	tr.TLSClientConfig = tlsConf
	tr.ForceAttemptHTTP2 = s.preferHTTP2
	tr.DisableKeepAlives = !s.keepAlive
	tr.DisableCompression = !s.acceptEncoding

	if s.eng.throttle != nil {
		// All sessions of a throttled engine share one token bucket.
		return s.eng.throttle.wrap(tr), nil
	}

	return tr, nil
}

// Perform executes the transfer synchronously on the calling
// goroutine: response header lines stream to the header func, body
// chunks to the write func, diagnostics to the debug func. The result
// is (code, HTTP status); failure detail lands in the error buffer.
func (s *Session) Perform(ctx context.Context) (Code, int) {
	if s.closed {
		return s.fail(CodeInternalError, "perform on closed session")
	}
	if s.url == "" {
		return s.fail(CodeURLMalformat, "no URL set")
	}
	if s.errBuf != nil {
		s.errBuf.Reset()
	}

	method := s.wireMethod()

	if s.eng.tracer != nil {
		var end func(Code, int)
		ctx, end = s.eng.tracer.start(ctx, method, s.url)
		defer func() { end(s.lastCode, s.lastStatus) }()
	}

	code, status := s.perform(ctx, method)
	s.lastCode, s.lastStatus = code, status

	return code, status
}

func (s *Session) perform(ctx context.Context, method string) (Code, int) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	var body io.Reader
	if len(s.body) > 0 {
		body = bytes.NewReader(s.body)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.url, body)
	if err != nil {
		return s.fail(codeFor(err), err.Error())
	}

	if !strings.HasPrefix(req.URL.Scheme, "http") {
		return s.fail(CodeUnsupportedProtocol, fmt.Sprintf("unsupported protocol %q", req.URL.Scheme))
	}

	for _, h := range s.headers {
		name, value, ok := strings.Cut(h, ":")
		if !ok {
			continue
		}
		req.Header.Add(strings.TrimSpace(name), strings.TrimSpace(value))
	}

	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}

	s.debug(DebugInfo, fmt.Sprintf("performing %s %s", method, s.url))
	s.debugRequestHeaders(req)

	tr, err := s.transport()
	if err != nil {
		return s.fail(CodeSSLConnectError, err.Error())
	}

	client := &http.Client{Transport: tr}
	if !s.followRedirects {
		client.CheckRedirect = func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}

	start := time.Now()
	if s.eng.metrics != nil {
		s.eng.metrics.transferStarted(req.URL.Host)
		defer s.eng.metrics.transferEnded(req.URL.Host)
	}

	resp, err := client.Do(req)
	if err != nil {
		return s.fail(codeFor(err), err.Error())
	}
	defer func() {
		if _, err := io.Copy(io.Discard, resp.Body); err != nil {
			s.eng.logger.Error("discarding unused body", "error", err)
		}
		if err := resp.Body.Close(); err != nil {
			s.eng.logger.Error("closing response body", "error", err)
		}
	}()

	if resp.TLS != nil {
		s.debug(DebugTLSTrace, fmt.Sprintf("tls connection established: %s / %s",
			tls.VersionName(resp.TLS.Version), tls.CipherSuiteName(resp.TLS.CipherSuite)))
	}

	s.deliverHeaders(resp)

	var received int64
	if !s.noBody {
		var err error
		received, err = s.deliverBody(resp)
		if err != nil {
			return s.fail(codeFor(err), err.Error())
		}
	}

	if s.eng.metrics != nil {
		s.eng.metrics.observeTransfer(method, req.URL.Host, resp.StatusCode, received, time.Since(start))
	}

	return CodeOK, resp.StatusCode
}

// deliverHeaders streams the status line, every header line, and the
// bare CRLF section terminator to the header func.
func (s *Session) deliverHeaders(resp *http.Response) {
	if s.headerFn == nil && s.debugFn == nil {
		return
	}

	emit := func(line string) {
		s.debug(DebugHeaderIn, strings.TrimRight(line, "\r\n"))
		if s.headerFn != nil {
			s.headerFn(line)
		}
	}

	emit(fmt.Sprintf("%s %s\r\n", resp.Proto, resp.Status))

	names := make([]string, 0, len(resp.Header))
	for name := range resp.Header {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		for _, value := range resp.Header[name] {
			emit(fmt.Sprintf("%s: %s\r\n", name, value))
		}
	}

	emit("\r\n")
}

// deliverBody pumps the response body to the write func chunk by
// chunk, reusing one read buffer. With no write func the body is
// discarded.
func (s *Session) deliverBody(resp *http.Response) (int64, error) {
	if s.writeFn == nil {
		return io.Copy(io.Discard, resp.Body)
	}

	var total int64
	buf := make([]byte, 32*1024)
	for {
		n, err := resp.Body.Read(buf)
		if n > 0 {
			total += int64(n)
			s.writeFn(buf[:n])
		}
		if err == io.EOF {
			return total, nil
		}
		if err != nil {
			return total, err
		}
	}
}

func (s *Session) debug(kind DebugKind, msg string) {
	if !s.verbose || s.debugFn == nil {
		return
	}
	s.debugFn(kind, msg)
}

func (s *Session) debugRequestHeaders(req *http.Request) {
	if !s.verbose || s.debugFn == nil {
		return
	}

	s.debug(DebugHeaderOut, fmt.Sprintf("%s %s %s", req.Method, req.URL.RequestURI(), req.Proto))
	for name, values := range req.Header {
		for _, value := range values {
			s.debug(DebugHeaderOut, fmt.Sprintf("%s: %s", name, value))
		}
	}
}
