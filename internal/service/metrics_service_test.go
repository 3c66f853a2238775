package service

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/mentormatch-api/pkg/docstore"
	appErrors "github.com/noah-isme/mentormatch-api/pkg/errors"
)

func TestMetricsServiceCounters(t *testing.T) {
	m := NewMetricsService()

	m.ObserveTransaction(1, nil)
	m.ObserveTransaction(5, fmt.Errorf("%w: gave up after 5 attempts", docstore.ErrConflict))
	m.ObserveTransaction(1, errors.New("boom"))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.txOutcomes.WithLabelValues("committed")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.txOutcomes.WithLabelValues("conflict")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.txOutcomes.WithLabelValues("aborted")))

	m.ObserveWorkflow("accept_partnership", nil)
	m.ObserveWorkflow("accept_partnership", appErrors.Clone(appErrors.ErrInvalidState, "already paired"))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.workflowOps.WithLabelValues("accept_partnership", "ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.workflowOps.WithLabelValues("accept_partnership", string(appErrors.KindInvalidState))))

	m.RecordCacheOperation(true, time.Millisecond)
	m.RecordCacheOperation(false, time.Millisecond)
	m.RecordCacheOperation(true, time.Millisecond)
	m.ObserveHTTPRequest("GET", "/api/v1/dashboard", 200, time.Millisecond)

	snap := m.Snapshot()
	assert.Equal(t, uint64(2), snap.CacheHits)
	assert.Equal(t, uint64(1), snap.CacheMisses)
	assert.InDelta(t, 2.0/3.0, snap.CacheHitRatio, 0.0001)
	assert.Equal(t, uint64(1), snap.RequestsTotal)
	assert.Equal(t, uint64(1), snap.TxConflicts)
	assert.Positive(t, snap.Goroutines)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "docstore_transactions_total")
}

func TestNilMetricsServiceIsSafe(t *testing.T) {
	var m *MetricsService
	assert.NotPanics(t, func() {
		m.ObserveTransaction(1, nil)
		m.ObserveWorkflow("op", nil)
		m.ObserveNotification("event", nil)
		m.RecordCacheOperation(true, 0)
	})
	assert.Equal(t, MetricsSnapshot{}, m.Snapshot())

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
