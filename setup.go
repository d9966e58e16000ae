package curlew

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/curlew-io/curlew/engine"
	"github.com/curlew-io/curlew/stream"
)

// RequestOption is a functional option for [Single.SetupRequest] and
// [Single.SetupRequestResponse].
type RequestOption func(*requestOpts) error

type requestOpts struct {
	url     *string
	body    []byte
	headers []string
	append  bool

	dataCh   *stream.Channel
	headerCh *stream.Channel

	dataHandler    stream.DataHandler
	headerHandler  stream.LineHandler
	discardData    bool
	discardHeaders bool
}

// WithRequestURL replaces the handle's target URL for this request.
func WithRequestURL(u string) RequestOption {
	return func(o *requestOpts) error {
		o.url = &u
		return nil
	}
}

// WithBody sets the request body. A non-empty body also gets a
// computed Content-Length header appended.
func WithBody(body []byte) RequestOption {
	return func(o *requestOpts) error {
		o.body = body
		return nil
	}
}

// WithHeaders sets the request headers as "Name: Value" lines. By
// default they replace any previously attached header list in full.
func WithHeaders(headers ...string) RequestOption {
	return func(o *requestOpts) error {
		o.headers = headers
		return nil
	}
}

// AppendHeaders switches header configuration to append mode, keeping
// the previously attached list.
func AppendHeaders() RequestOption {
	return func(o *requestOpts) error {
		o.append = true
		return nil
	}
}

// WithDataChannel registers ch for response body delivery. The caller
// owns consumption; SetupRequest installs only the engine callback.
func WithDataChannel(ch *stream.Channel) RequestOption {
	return func(o *requestOpts) error {
		if ch == nil {
			return errors.New("data channel must not be nil")
		}
		o.dataCh = ch
		return nil
	}
}

// WithHeaderChannel registers ch for response header-line delivery.
func WithHeaderChannel(ch *stream.Channel) RequestOption {
	return func(o *requestOpts) error {
		if ch == nil {
			return errors.New("header channel must not be nil")
		}
		o.headerCh = ch
		return nil
	}
}

// WithDataHandler supplies the response body handler for
// SetupRequestResponse. Without one, body bytes accumulate in the
// Meta data buffer.
func WithDataHandler(fn stream.DataHandler) RequestOption {
	return func(o *requestOpts) error {
		if fn == nil {
			return errors.New("data handler must not be nil; use DiscardData to disable capture")
		}
		o.dataHandler = fn
		return nil
	}
}

// WithHeaderHandler supplies the response header-line handler for
// SetupRequestResponse. Without one, lines accumulate in the Meta
// header-lines buffer.
func WithHeaderHandler(fn stream.LineHandler) RequestOption {
	return func(o *requestOpts) error {
		if fn == nil {
			return errors.New("header handler must not be nil; use DiscardHeaders to disable capture")
		}
		o.headerHandler = fn
		return nil
	}
}

// DiscardData disables response body capture entirely: no channel, no
// callback, no buffering.
func DiscardData() RequestOption {
	return func(o *requestOpts) error {
		o.discardData = true
		return nil
	}
}

// DiscardHeaders disables response header capture entirely.
func DiscardHeaders() RequestOption {
	return func(o *requestOpts) error {
		o.discardHeaders = true
		return nil
	}
}

func applyRequestOptions(optFns []RequestOption) (requestOpts, error) {
	var o requestOpts
	for _, opt := range optFns {
		if err := opt(&o); err != nil {
			return o, fmt.Errorf("applying request option: %w", err)
		}
	}
	return o, nil
}

// SetupRequest configures the handle for its next transfer: URL
// override, header list replacement (or append), body with computed
// Content-Length, streaming-channel callbacks, the diagnostic
// callback, and a fresh error buffer. It is pure configuration;
// nothing executes until Perform.
func (h *Single) SetupRequest(optFns ...RequestOption) error {
	o, err := applyRequestOptions(optFns)
	if err != nil {
		return err
	}

	if o.dataHandler != nil || o.headerHandler != nil || o.discardData || o.discardHeaders {
		return errors.New("handler options require SetupRequestResponse")
	}

	h.endStreams()

	return h.setupRequest(&o)
}

// SetupRequestResponse builds on SetupRequest: it materializes a
// streaming channel per response handler, spawns one consumer
// goroutine per channel draining into the handler until end-of-stream,
// and wires the channels in. Default handlers buffer body bytes and
// header lines into the Meta store; DiscardData/DiscardHeaders skip a
// channel entirely. A panicking handler is not contained: it takes the
// process down like any unrecovered goroutine panic.
//
// Reconfiguring before a perform ends the previous setup's channels
// first, so consumers from an earlier call always terminate.
func (h *Single) SetupRequestResponse(optFns ...RequestOption) error {
	o, err := applyRequestOptions(optFns)
	if err != nil {
		return err
	}

	if o.dataCh != nil || o.headerCh != nil {
		return errors.New("channel options require SetupRequest")
	}

	h.endStreams()
	h.meta.resetBuffers()

	if !o.discardData {
		onData := o.dataHandler
		if onData == nil {
			onData = h.meta.appendData
		}

		ch := stream.NewChannel(stream.DefaultBuffer)
		o.dataCh = ch
		h.consumers.Add(1)
		go func() {
			defer h.consumers.Done()
			stream.Consume(ch, onData, nil)
		}()
	}

	if !o.discardHeaders {
		onLine := o.headerHandler
		if onLine == nil {
			onLine = h.meta.appendHeaderLine
		}

		ch := stream.NewChannel(stream.DefaultBuffer)
		o.headerCh = ch
		h.consumers.Add(1)
		go func() {
			defer h.consumers.Done()
			stream.Consume(ch, nil, onLine)
		}()
	}

	return h.setupRequest(&o)
}

func (h *Single) setupRequest(o *requestOpts) error {
	if h.sess == nil {
		return errors.New("setup on cleaned-up handle")
	}

	if o.url != nil {
		h.sess.SetURL(*o.url)
	}

	if !o.append {
		// Replacing discards the previously attached header list.
		h.headers = nil
	}
	h.headers = append(h.headers, o.headers...)

	if len(o.body) > 0 {
		h.sess.SetBody(o.body)
		// Appended, never replacing, so it cannot clobber
		// caller-supplied headers.
		h.headers = append(h.headers, fmt.Sprintf("Content-Length: %d", len(o.body)))
	} else {
		h.sess.SetBody(nil)
	}

	h.sess.SetHeaders(h.headers)
	h.meta.setRequest(h.headers, o.body)

	if o.dataCh != nil {
		ch := o.dataCh
		h.sess.SetWriteFunc(func(chunk []byte) {
			// PublishData copies the chunk out of engine-owned memory.
			ch.PublishData(chunk)
		})
	} else {
		h.sess.SetWriteFunc(nil)
	}

	if o.headerCh != nil {
		ch := o.headerCh
		h.sess.SetHeaderFunc(func(line string) {
			if line == "\r\n" {
				// The engine's own header-section terminator becomes
				// the end-of-stream sentinel, never data.
				ch.End()
				return
			}
			ch.PublishLine(strings.TrimRight(line, "\r\n"))
		})
	} else {
		h.sess.SetHeaderFunc(nil)
	}

	h.meta.setChannels(o.dataCh, o.headerCh)

	buf := &bytes.Buffer{}
	h.meta.setErrorBuffer(buf)
	h.sess.SetErrorBuffer(buf)
	h.sess.SetDebugFunc(h.debugLog)

	return nil
}

// debugLog is the diagnostic callback. The engine fires it only in
// verbose mode and only for informational, header, and TLS-trace
// event categories.
func (h *Single) debugLog(kind engine.DebugKind, msg string) {
	h.logger.Debug("engine trace", "kind", kind.String(), "msg", msg)
}
