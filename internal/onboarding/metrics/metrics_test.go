package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBusinessCounters(t *testing.T) {
	m := New()

	m.RecordVendorCreated()
	m.RecordVendorCreated()
	m.RecordDecision("approve")
	m.RecordDecision("reject")
	m.RecordDecision("approve")
	m.RecordUploadFailure("verified-photos", "not_configured")
	m.RecordRoleFallback()
	m.RecordEarningsFallback("not_found")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.VendorsCreated))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.VendorDecisions.WithLabelValues("approve")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.VendorDecisions.WithLabelValues("reject")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PhotoUploadFailures.WithLabelValues("verified-photos", "not_configured")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RoleFallbacks))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EarningsFallbacks.WithLabelValues("not_found")))
}

func TestMiddlewareRecordsRoutePattern(t *testing.T) {
	m := New()
	mux := runtime.NewServeMux(runtime.WithMiddlewares(m.Middleware()))
	require.NoError(t, mux.HandlePath(http.MethodPost, "/v1/admin/vendors/{id}/reject", func(w http.ResponseWriter, _ *http.Request, _ map[string]string) {
		w.WriteHeader(http.StatusConflict)
	}))
	require.NoError(t, mux.HandlePath(http.MethodGet, "/v1/categories", func(w http.ResponseWriter, _ *http.Request, _ map[string]string) {
		_, _ = io.WriteString(w, "[]")
	}))

	for _, id := range []string{"a", "b"} {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/admin/vendors/"+id+"/reject", nil))
		assert.Equal(t, http.StatusConflict, rec.Code)
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/categories", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	// Both reject calls share one series keyed by the pattern, not the raw path.
	assert.Equal(t, 2, testutil.CollectAndCount(m.HTTPRequestsTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/v1/categories", "200")))
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.RecordVendorCreated()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "onboard_vendors_created_total 1")
}
