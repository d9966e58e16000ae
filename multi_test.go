package curlew_test

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/goleak"

	"github.com/curlew-io/curlew"
	"github.com/curlew-io/curlew/engine"
)

func TestMulti_ExecuteRecordsEveryOutcome(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		status, err := strconv.Atoi(strings.TrimPrefix(r.URL.Path, "/status/"))
		if err != nil {
			status = http.StatusBadRequest
		}
		w.WriteHeader(status)
		io.WriteString(w, r.URL.Path)
	}))
	defer ts.Close()

	statuses := []int{200, 201, 204, 404, 500}

	handles := make([]*curlew.Single, 0, len(statuses))
	for _, status := range statuses {
		h, err := curlew.New(curlew.WithURL(fmt.Sprintf("%s/status/%d", ts.URL, status)))
		if err != nil {
			t.Fatalf("creating handle: %v", err)
		}
		defer h.Cleanup()

		if err := h.SetupRequestResponse(); err != nil {
			t.Fatalf("setup: %v", err)
		}
		handles = append(handles, h)
	}

	m := curlew.NewMulti(handles...)
	defer m.Cleanup()

	if code := m.Execute(t.Context()); code != engine.CodeOK {
		t.Fatalf("expected CodeOK from execute, got %v", code)
	}

	if got := len(m.Handles()); got != len(statuses) {
		t.Fatalf("expected %d pooled handles, got %d", len(statuses), got)
	}

	for i, h := range m.Handles() {
		if got := h.Meta().Status(); got != statuses[i] {
			t.Errorf("handle %d: expected status %d, got %d", i, statuses[i], got)
		}
		if errText := h.Meta().ErrText(); errText != "" {
			t.Errorf("handle %d: expected empty error text, got %q", i, errText)
		}
		want := fmt.Sprintf("/status/%d", statuses[i])
		if statuses[i] != 204 && string(h.Meta().Data()) != want {
			t.Errorf("handle %d: expected body %q, got %q", i, want, h.Meta().Data())
		}
	}
}

func TestMulti_FailedTransferSurfacesInMeta(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	// A server brought down before the transfer runs gives a
	// connection failure without touching the network beyond loopback.
	dead := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	deadURL := dead.URL
	dead.Close()

	good, err := curlew.New(curlew.WithURL(ts.URL))
	if err != nil {
		t.Fatalf("creating handle: %v", err)
	}
	defer good.Cleanup()
	bad, err := curlew.New(curlew.WithURL(deadURL))
	if err != nil {
		t.Fatalf("creating handle: %v", err)
	}
	defer bad.Cleanup()

	for _, h := range []*curlew.Single{good, bad} {
		if err := h.SetupRequestResponse(); err != nil {
			t.Fatalf("setup: %v", err)
		}
	}

	m := curlew.NewMulti(good, bad)
	defer m.Cleanup()

	if code := m.Execute(t.Context()); code != engine.CodeOK {
		t.Fatalf("poll loop itself should succeed, got %v", code)
	}

	if good.Meta().Status() != http.StatusOK {
		t.Errorf("expected good handle status 200, got %d", good.Meta().Status())
	}
	if good.Meta().ErrText() != "" {
		t.Errorf("expected good handle to carry no error text, got %q", good.Meta().ErrText())
	}

	if bad.Meta().Status() != 0 {
		t.Errorf("expected bad handle status 0, got %d", bad.Meta().Status())
	}
	if bad.Meta().ErrText() == "" {
		t.Error("expected bad handle to carry error text")
	}
}

func TestMulti_RemoveByID(t *testing.T) {
	h1, err := curlew.New(curlew.WithURL("https://example.com/a"))
	if err != nil {
		t.Fatalf("creating handle: %v", err)
	}
	defer h1.Cleanup()
	h2, err := curlew.New(curlew.WithURL("https://example.com/b"))
	if err != nil {
		t.Fatalf("creating handle: %v", err)
	}
	defer h2.Cleanup()

	m := curlew.NewMulti(h1, h2)
	defer m.Cleanup()

	if !m.RemoveByID(h1.ID()) {
		t.Error("expected removal of pooled handle to report true")
	}
	if got := len(m.Handles()); got != 1 {
		t.Fatalf("expected 1 handle after removal, got %d", got)
	}

	if m.RemoveByID(uuid.New()) {
		t.Error("expected unknown id removal to be a no-op returning false")
	}
	if got := len(m.Handles()); got != 1 {
		t.Errorf("expected pool unchanged after miss, got %d handles", got)
	}
}

func TestMulti_CleanupWithoutExecute(t *testing.T) {
	opt := goleak.IgnoreCurrent()

	handles := make([]*curlew.Single, 0, 2)
	for _, url := range []string{"https://example.com/a", "https://example.com/b"} {
		h, err := curlew.New(curlew.WithURL(url))
		if err != nil {
			t.Fatalf("creating handle: %v", err)
		}
		if err := h.SetupRequestResponse(); err != nil {
			t.Fatalf("setup: %v", err)
		}
		handles = append(handles, h)
	}

	// An aborted batch: pooled, set up, never executed.
	m := curlew.NewMulti(handles...)
	m.Cleanup()

	goleak.VerifyNone(t, opt)
}

func TestMulti_CleanupIdempotent(t *testing.T) {
	h, err := curlew.New(curlew.WithURL("https://example.com"))
	if err != nil {
		t.Fatalf("creating handle: %v", err)
	}

	m := curlew.NewMulti(h)

	m.Cleanup()
	if h.Session() != nil {
		t.Error("expected pooled handle to be cleaned up")
	}
	if len(m.Handles()) != 0 {
		t.Error("expected empty pool after cleanup")
	}

	m.Cleanup() // second call must not fault
}
