package curlew_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/curlew-io/curlew"
	"github.com/curlew-io/curlew/engine"
)

func TestSetupRequestResponse_RoundTrip(t *testing.T) {
	const body = "alpha beta gamma delta epsilon"

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Header().Set("X-Round-Trip", "yes")
		io.WriteString(w, body)
	}))
	defer ts.Close()

	h, err := curlew.New(curlew.WithURL(ts.URL))
	if err != nil {
		t.Fatalf("creating handle: %v", err)
	}
	defer h.Cleanup()

	if err := h.SetupRequestResponse(); err != nil {
		t.Fatalf("setup: %v", err)
	}

	code, status, errText := h.Perform(t.Context())
	if code != engine.CodeOK {
		t.Fatalf("expected CodeOK, got %v (%s)", code, errText)
	}
	if status != http.StatusOK {
		t.Errorf("expected status 200, got %d", status)
	}
	if errText != "" {
		t.Errorf("expected empty error text, got %q", errText)
	}

	if diff := cmp.Diff(body, string(h.Meta().Data())); diff != "" {
		t.Errorf("data buffer mismatch (-want +got):\n%s", diff)
	}

	lines := h.Meta().HeaderLines()
	if len(lines) == 0 {
		t.Fatal("expected captured header lines")
	}
	if !strings.HasPrefix(lines[0], "HTTP/") {
		t.Errorf("expected status line first, got %q", lines[0])
	}
	if slices.Contains(lines, "") {
		t.Error("blank terminator line must not be delivered as data")
	}
	if !slices.Contains(lines, "X-Round-Trip: yes") {
		t.Errorf("expected X-Round-Trip header line, got %v", lines)
	}

	if h.Meta().Status() != http.StatusOK {
		t.Errorf("expected Meta status 200, got %d", h.Meta().Status())
	}
}

func TestSetupRequestResponse_CustomHandlers(t *testing.T) {
	const body = "streamed right through"

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, body)
	}))
	defer ts.Close()

	h, err := curlew.New(curlew.WithURL(ts.URL))
	if err != nil {
		t.Fatalf("creating handle: %v", err)
	}
	defer h.Cleanup()

	var mu sync.Mutex
	var chunks []byte
	var lines []string

	err = h.SetupRequestResponse(
		curlew.WithDataHandler(func(chunk []byte) {
			mu.Lock()
			defer mu.Unlock()
			chunks = append(chunks, chunk...)
		}),
		curlew.WithHeaderHandler(func(line string) {
			mu.Lock()
			defer mu.Unlock()
			lines = append(lines, line)
		}),
	)
	if err != nil {
		t.Fatalf("setup: %v", err)
	}

	if code, _, errText := h.Perform(t.Context()); code != engine.CodeOK {
		t.Fatalf("perform: %v (%s)", code, errText)
	}

	mu.Lock()
	defer mu.Unlock()

	if string(chunks) != body {
		t.Errorf("expected handler to see %q, got %q", body, string(chunks))
	}
	if len(lines) == 0 {
		t.Error("expected header handler to see lines")
	}
	if len(h.Meta().Data()) != 0 {
		t.Error("custom handler must bypass the default data buffer")
	}
}

func TestSetupRequestResponse_Discard(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "you will never see this")
	}))
	defer ts.Close()

	h, err := curlew.New(curlew.WithURL(ts.URL))
	if err != nil {
		t.Fatalf("creating handle: %v", err)
	}
	defer h.Cleanup()

	if err := h.SetupRequestResponse(curlew.DiscardData(), curlew.DiscardHeaders()); err != nil {
		t.Fatalf("setup: %v", err)
	}

	code, status, _ := h.Perform(t.Context())
	if code != engine.CodeOK {
		t.Fatalf("perform: %v", code)
	}
	if status != http.StatusOK {
		t.Errorf("expected status 200, got %d", status)
	}

	if len(h.Meta().Data()) != 0 {
		t.Error("expected no data accumulation with DiscardData")
	}
	if len(h.Meta().HeaderLines()) != 0 {
		t.Error("expected no header accumulation with DiscardHeaders")
	}
}

func TestSetupRequest_ReuseReplacesConfiguration(t *testing.T) {
	type echo struct {
		Path   string `json:"path"`
		Old    string `json:"old"`
		New    string `json:"new"`
		Length string `json:"length"`
		Body   string `json:"body"`
	}

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		json.NewEncoder(w).Encode(echo{
			Path:   r.URL.Path,
			Old:    r.Header.Get("X-Old"),
			New:    r.Header.Get("X-New"),
			Length: r.Header.Get("Content-Length"),
			Body:   string(b),
		})
	}))
	defer ts.Close()

	h, err := curlew.New(curlew.WithURL(ts.URL+"/first"), curlew.WithMethod(curlew.MethodPost))
	if err != nil {
		t.Fatalf("creating handle: %v", err)
	}
	defer h.Cleanup()

	if err := h.SetupRequestResponse(
		curlew.WithHeaders("X-Old: first"),
		curlew.WithBody([]byte("first body")),
	); err != nil {
		t.Fatalf("first setup: %v", err)
	}
	if code, _, errText := h.Perform(t.Context()); code != engine.CodeOK {
		t.Fatalf("first perform: %v (%s)", code, errText)
	}

	if err := h.SetupRequestResponse(
		curlew.WithRequestURL(ts.URL+"/second"),
		curlew.WithHeaders("X-New: second"),
		curlew.WithBody([]byte("b2")),
	); err != nil {
		t.Fatalf("second setup: %v", err)
	}
	if code, _, errText := h.Perform(t.Context()); code != engine.CodeOK {
		t.Fatalf("second perform: %v (%s)", code, errText)
	}

	var got echo
	if err := json.Unmarshal(h.Meta().Data(), &got); err != nil {
		t.Fatalf("decoding echo: %v", err)
	}

	want := echo{Path: "/second", Old: "", New: "second", Length: "2", Body: "b2"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("reused handle carried stale configuration (-want +got):\n%s", diff)
	}
}

func TestSetupRequestResponse_RepeatedSetupBeforePerform(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, r.Header.Get("X-Attempt"))
	}))
	defer ts.Close()

	h, err := curlew.New(curlew.WithURL(ts.URL))
	if err != nil {
		t.Fatalf("creating handle: %v", err)
	}
	defer h.Cleanup()

	// Two setups with no perform in between: the second supersedes
	// the first, whose consumers must still terminate.
	if err := h.SetupRequestResponse(curlew.WithHeaders("X-Attempt: one")); err != nil {
		t.Fatalf("first setup: %v", err)
	}
	if err := h.SetupRequestResponse(curlew.WithHeaders("X-Attempt: two")); err != nil {
		t.Fatalf("second setup: %v", err)
	}

	done := make(chan engine.Code, 1)
	go func() {
		code, _, _ := h.Perform(t.Context())
		done <- code
	}()

	select {
	case code := <-done:
		if code != engine.CodeOK {
			t.Fatalf("expected CodeOK, got %v", code)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("perform blocked after repeated setup")
	}

	if got := string(h.Meta().Data()); got != "two" {
		t.Errorf("expected configuration from the last setup, got %q", got)
	}
}

func TestScenario_QueryParamsAndCustomHeader(t *testing.T) {
	type echo struct {
		URI    string `json:"uri"`
		Header string `json:"header"`
	}

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(echo{
			URI:    r.URL.RequestURI(),
			Header: r.Header.Get("X-Scenario"),
		})
	}))
	defer ts.Close()

	h, err := curlew.New(curlew.WithURL(ts.URL + "/things?limit=5&cursor=abc"))
	if err != nil {
		t.Fatalf("creating handle: %v", err)
	}
	defer h.Cleanup()

	if err := h.SetupRequestResponse(curlew.WithHeaders("X-Scenario: checked")); err != nil {
		t.Fatalf("setup: %v", err)
	}

	code, status, errText := h.Perform(t.Context())
	if code != engine.CodeOK {
		t.Fatalf("expected success, got %v (%s)", code, errText)
	}
	if status != http.StatusOK {
		t.Fatalf("expected HTTP 200, got %d", status)
	}

	var got echo
	if err := json.Unmarshal(h.Meta().Data(), &got); err != nil {
		t.Fatalf("decoding echo: %v", err)
	}

	want := echo{URI: "/things?limit=5&cursor=abc", Header: "checked"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("echo mismatch (-want +got):\n%s", diff)
	}
}

func TestMeta_ExtensionKeys(t *testing.T) {
	h, err := curlew.New(curlew.WithURL("https://example.com"))
	if err != nil {
		t.Fatalf("creating handle: %v", err)
	}
	defer h.Cleanup()

	meta := h.Meta()
	if meta.Has("job") {
		t.Error("fresh store should not contain caller keys")
	}

	meta.Set("job", 42)
	if v, ok := meta.Get("job"); !ok || v.(int) != 42 {
		t.Errorf("expected job=42, got %v (%t)", v, ok)
	}

	meta.Delete("job")
	if meta.Has("job") {
		t.Error("expected key to be deleted")
	}
}
