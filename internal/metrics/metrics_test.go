package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRegistration(t *testing.T) {
	collectors := []prometheus.Collector{
		PipelineRequestsTotal,
		PipelineRequestDuration,
		SessionExpiriesTotal,
		MutationsTotal,
		MutationsInFlight,
		ReconcileOperationsTotal,
	}
	for _, c := range collectors {
		desc := make(chan *prometheus.Desc, 1)
		c.Describe(desc)
		close(desc)
		require.NotNil(t, <-desc, "metric should have a valid descriptor")
	}
}

func TestCounterIncrements(t *testing.T) {
	before := testutil.ToFloat64(MutationsTotal.WithLabelValues("device", "power", "confirmed"))
	MutationsTotal.WithLabelValues("device", "power", "confirmed").Inc()
	after := testutil.ToFloat64(MutationsTotal.WithLabelValues("device", "power", "confirmed"))
	assert.Equal(t, before+1, after)

	before = testutil.ToFloat64(ReconcileOperationsTotal.WithLabelValues("add", "failed"))
	ReconcileOperationsTotal.WithLabelValues("add", "failed").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(ReconcileOperationsTotal.WithLabelValues("add", "failed")))
}

func TestHandlerServesNamespace(t *testing.T) {
	PipelineRequestsTotal.WithLabelValues("ok").Inc()

	w := httptest.NewRecorder()
	Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "homesync_pipeline_requests_total"))
}
