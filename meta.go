package curlew

import (
	"bytes"
	"sync"

	"github.com/curlew-io/curlew/stream"
)

// Meta is the per-handle metadata store. Reserved fields are typed and
// populated internally: request headers and body, the streaming
// channels, the default data/header buffers, the transfer status and
// error text. Caller data rides alongside in a string-keyed extension
// map this layer never touches, which is how user context travels
// through asynchronous completion.
type Meta struct {
	mu sync.RWMutex

	requestHeaders []string
	requestBody    []byte
	errorBuffer    *bytes.Buffer
	dataCh         *stream.Channel
	headerCh       *stream.Channel
	data           bytes.Buffer
	headerLines    []string
	status         int
	errText        string

	ext map[string]any
}

func newMeta() *Meta {
	return &Meta{ext: make(map[string]any)}
}

// Set stores a caller-defined value under key.
func (m *Meta) Set(key string, value any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ext[key] = value
}

// Get returns the caller-defined value stored under key.
func (m *Meta) Get(key string) (any, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.ext[key]
	return v, ok
}

// Has reports whether key holds a caller-defined value.
func (m *Meta) Has(key string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.ext[key]
	return ok
}

// Delete removes the caller-defined value under key.
func (m *Meta) Delete(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.ext, key)
}

// Status is the HTTP status code of the most recent transfer.
func (m *Meta) Status() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// ErrText is the decoded engine error text of the most recent
// transfer; empty on success.
func (m *Meta) ErrText() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.errText
}

// Data returns the buffered response body accumulated by the default
// data handler, in arrival order.
func (m *Meta) Data() []byte {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return bytes.Clone(m.data.Bytes())
}

// HeaderLines returns the response header lines accumulated by the
// default header handler, excluding the terminating blank line.
func (m *Meta) HeaderLines() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, len(m.headerLines))
	copy(out, m.headerLines)
	return out
}

// RequestHeaders returns the header list configured for the current
// request.
func (m *Meta) RequestHeaders() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, len(m.requestHeaders))
	copy(out, m.requestHeaders)
	return out
}

// RequestBody returns the body configured for the current request.
func (m *Meta) RequestBody() []byte {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return bytes.Clone(m.requestBody)
}

// DataChannel returns the registered data-delivery channel, if any.
func (m *Meta) DataChannel() *stream.Channel {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.dataCh
}

// HeaderChannel returns the registered header-delivery channel, if any.
func (m *Meta) HeaderChannel() *stream.Channel {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.headerCh
}

func (m *Meta) setRequest(headers []string, body []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestHeaders = headers
	m.requestBody = body
}

func (m *Meta) setChannels(dataCh, headerCh *stream.Channel) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dataCh = dataCh
	m.headerCh = headerCh
}

func (m *Meta) setErrorBuffer(buf *bytes.Buffer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorBuffer = buf
}

func (m *Meta) setResult(status int, errText string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status = status
	m.errText = errText
}

func (m *Meta) takeErrText() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.errorBuffer == nil {
		return ""
	}
	return m.errorBuffer.String()
}

func (m *Meta) appendData(chunk []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data.Write(chunk)
}

func (m *Meta) appendHeaderLine(line string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.headerLines = append(m.headerLines, line)
}

// resetBuffers clears the per-request accumulation state so a reused
// handle starts its next request from scratch.
func (m *Meta) resetBuffers() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data.Reset()
	m.headerLines = nil
	m.status = 0
	m.errText = ""
}
