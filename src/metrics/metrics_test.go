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

func TestRegisterMetricsAndRecordersAreSafe(t *testing.T) {
	RegisterMetrics()
	RegisterMetrics()

	before := testutil.ToFloat64(operations.WithLabelValues("propose", "ok"))
	RecordOperation("propose", "ok")
	assert.Equal(t, before+1, testutil.ToFloat64(operations.WithLabelValues("propose", "ok")))

	RecordVote("for", true)
	RecordVote("against", false)
	assert.GreaterOrEqual(t, testutil.ToFloat64(votes.WithLabelValues("for", "signature")), 1.0)

	SetMembers(3)
	assert.Equal(t, 3.0, testutil.ToFloat64(members))

	RecordHTTPRequest("GET", "/v1/proposals/:id", 200, 12*time.Millisecond)
}

func TestHandlerServesCollectors(t *testing.T) {
	RecordOperation("join", "ok")

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "dao_engine_operations_total")
}
