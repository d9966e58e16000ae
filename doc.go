// Package curlew layers single-transfer and multi-transfer handles
// over a pluggable transfer engine.
//
// # Single handles
//
// A [Single] owns one engine session. Build one with [New] and
// functional options, configure the request with
// [Single.SetupRequestResponse], then execute synchronously:
//
//	h, err := curlew.New(
//		curlew.WithURL("https://api.example.com/v1/items?limit=5"),
//		curlew.WithMethod(curlew.MethodGet),
//	)
//	if err != nil { ... }
//	defer h.Cleanup()
//
//	if err := h.SetupRequestResponse(); err != nil { ... }
//	code, status, errText := h.Perform(ctx)
//
// After Perform, the response body and header lines are buffered in
// the handle's [Meta] store unless custom handlers were supplied.
//
// # Multi handles
//
// A [Multi] pools Singles and drives them concurrently through one
// poll loop:
//
//	m := curlew.NewMulti(h1, h2, h3)
//	defer m.Cleanup()
//
//	code := m.Execute(ctx)
//	for _, h := range m.Handles() {
//		status := h.Meta().Status()
//		...
//	}
//
// Execute returns the poll loop's result code only; per-transfer
// status and error text are read from each handle's Meta store.
//
// # Streaming
//
// Response delivery runs through bounded channels in the
// [github.com/curlew-io/curlew/stream] package: the engine publishes
// chunks as they arrive, a per-channel consumer goroutine drains them
// into the handler, and a full channel applies backpressure all the
// way down to the wire.
package curlew
