package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveUpstream(t *testing.T) {
	before := testutil.ToFloat64(upstreamRequests.WithLabelValues("GET", "/api/v1/balance", "200"))
	ObserveUpstream("GET", "/api/v1/balance", "200", 12*time.Millisecond)
	after := testutil.ToFloat64(upstreamRequests.WithLabelValues("GET", "/api/v1/balance", "200"))
	assert.Equal(t, before+1, after)
}

func TestHandlerServesRegistry(t *testing.T) {
	ObserveHTTP("GET", "/login", http.StatusOK)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "calcweb_http_requests_total")
}
