package engine

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_ObservesTransfers(t *testing.T) {
	const body = "metered bytes"

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, body)
	}))
	defer ts.Close()

	registry := prometheus.NewRegistry()
	eng := newTestEngine(t, WithMetrics(NewMetrics(registry)))

	sess := eng.NewSession()
	defer sess.Close()

	sess.SetURL(ts.URL)
	sess.SetWriteFunc(func([]byte) {})

	code, _ := sess.Perform(t.Context())
	require.Equal(t, CodeOK, code)

	families, err := registry.Gather()
	require.NoError(t, err)

	byName := make(map[string]*dto.MetricFamily, len(families))
	for _, fam := range families {
		byName[fam.GetName()] = fam
	}

	duration, ok := byName["transfer_duration_seconds"]
	require.True(t, ok, "expected duration histogram to be registered")
	require.NotEmpty(t, duration.GetMetric())
	assert.EqualValues(t, 1, duration.GetMetric()[0].GetHistogram().GetSampleCount())

	received, ok := byName["transfer_received_bytes_total"]
	require.True(t, ok, "expected received-bytes counter to be registered")
	require.NotEmpty(t, received.GetMetric())
	assert.EqualValues(t, len(body), received.GetMetric()[0].GetCounter().GetValue())

	active, ok := byName["transfer_active"]
	require.True(t, ok, "expected active gauge to be registered")
	require.NotEmpty(t, active.GetMetric())
	assert.Zero(t, active.GetMetric()[0].GetGauge().GetValue(), "no transfer should remain in flight")
}

func TestThrottle_SharedAcrossSessions(t *testing.T) {
	var hits int
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	eng := newTestEngine(t, WithThrottle(100, 10))

	for range 3 {
		sess := eng.NewSession()
		sess.SetURL(ts.URL)

		code, status := sess.Perform(t.Context())
		require.Equal(t, CodeOK, code)
		require.Equal(t, http.StatusOK, status)

		sess.Close()
	}

	assert.Equal(t, 3, hits)
}

func TestThrottle_RejectsBadConfig(t *testing.T) {
	_, err := New(WithThrottle(0, 10))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMustNotBeZero)
}
