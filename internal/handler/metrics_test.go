package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/clipfetch/clipfetch/internal/domain"
	"github.com/clipfetch/clipfetch/internal/service"
)

// testMetrics is shared across the package tests: promauto registers the
// collectors in the default registry, which tolerates one registration
// per process.
var testMetrics = NewMetrics()

func TestMetrics_Middleware(t *testing.T) {
	router := chi.NewRouter()
	router.Use(testMetrics.Middleware)
	router.Get("/api/v1/videos/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	counter := testMetrics.httpRequestsTotal.WithLabelValues("GET", "/api/v1/videos/{id}", "200")
	before := testutil.ToFloat64(counter)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/videos/abc123", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	// The path label carries the route pattern, not the concrete URL.
	assert.Equal(t, before+1, testutil.ToFloat64(counter))
}

func TestMetrics_RecordResolutionEvent(t *testing.T) {
	success := testMetrics.resolutionsTotal.WithLabelValues("youtube", "success")
	failure := testMetrics.resolutionsTotal.WithLabelValues("youtube", "failure")
	misses := testMetrics.cacheLookupsTotal.WithLabelValues("miss")
	hits := testMetrics.cacheLookupsTotal.WithLabelValues("hit")

	successBefore := testutil.ToFloat64(success)
	failureBefore := testutil.ToFloat64(failure)
	missesBefore := testutil.ToFloat64(misses)
	hitsBefore := testutil.ToFloat64(hits)

	testMetrics.RecordResolutionEvent(&service.ResolutionEvent{
		Type:       service.EventResolved,
		Source:     domain.SourceYouTube,
		DurationMS: 1200,
	})
	testMetrics.RecordResolutionEvent(&service.ResolutionEvent{
		Type:   service.EventCacheHit,
		Source: domain.SourceYouTube,
	})
	testMetrics.RecordResolutionEvent(&service.ResolutionEvent{
		Type:   service.EventFailed,
		Source: domain.SourceYouTube,
	})

	assert.Equal(t, successBefore+1, testutil.ToFloat64(success))
	assert.Equal(t, failureBefore+1, testutil.ToFloat64(failure))
	assert.Equal(t, missesBefore+1, testutil.ToFloat64(misses))
	assert.Equal(t, hitsBefore+1, testutil.ToFloat64(hits))

	// The resolved event also lands in the duration histogram.
	assert.GreaterOrEqual(t, testutil.CollectAndCount(testMetrics.resolutionDuration), 1)
}
