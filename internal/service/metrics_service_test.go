package service

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsServiceCounters(t *testing.T) {
	m := NewMetricsService()
	m.RecordMutation(operationTaskMove, OutcomeApplied)
	m.RecordMutation(operationTaskMove, OutcomeApplied)
	m.RecordMutation(operationTaskMove, OutcomeNoop)
	m.RecordSideEffectWarnings("notification", 2)
	m.RecordSideEffectWarnings("audit", 0)
	m.RecordCacheOperation(true, time.Millisecond)
	m.RecordCacheOperation(false, time.Millisecond)
	m.ObserveHTTPRequest(http.MethodPost, "/api/v1/tasks/move", http.StatusOK, 20*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.mutations.WithLabelValues(operationTaskMove, OutcomeApplied)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.mutations.WithLabelValues(operationTaskMove, OutcomeNoop)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.sideEffectFails.WithLabelValues("notification")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.sideEffectFails.WithLabelValues("audit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cacheLookups.WithLabelValues("hit")))

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "mutations_total")
}

func TestMetricsServiceNilSafe(t *testing.T) {
	var m *MetricsService
	assert.NotPanics(t, func() {
		m.RecordMutation("x", OutcomeFailed)
		m.RecordSideEffectWarnings("audit", 1)
		m.RecordCacheOperation(true, time.Millisecond)
		m.ObserveCacheWrite(time.Millisecond)
		m.ObserveHTTPRequest(http.MethodGet, "/", http.StatusOK, time.Millisecond)
	})
}
