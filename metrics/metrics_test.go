package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveGeneration(t *testing.T) {
	before := testutil.ToFloat64(GenerationsTotal.WithLabelValues(OutcomeComplete))

	ObserveGeneration(OutcomeComplete, time.Now().Add(-time.Second))

	after := testutil.ToFloat64(GenerationsTotal.WithLabelValues(OutcomeComplete))
	assert.Equal(t, before+1, after)
}

func TestMetricsEndpoint(t *testing.T) {
	FragmentsTotal.Inc()

	srv := NewServer(":0")
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "chatstream_fragments_total")
}
