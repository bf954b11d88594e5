package observability

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestDefaultRegistryServesBuildInfo(t *testing.T) {
	ExposeBuildInfo("")
	rr := httptest.NewRecorder()
	promhttp.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `geoview_build_info{version="dev"} 1`)
}

func TestInteractionCarriesBackend(t *testing.T) {
	SetBackend("vector")
	defer SetBackend("")
	c := interactions.WithLabelValues("polygon", "applied", "vector")
	before := testutil.ToFloat64(c)
	ObserveInteraction("polygon", "applied", 4)
	assert.Equal(t, before+1, testutil.ToFloat64(c))
}

func TestCounters(t *testing.T) {
	tests := []struct {
		name string
		do   func()
		read func() float64
	}{
		{"conversion", func() { IncConversionFailure("bbox") },
			func() float64 { return testutil.ToFloat64(conversionFailures.WithLabelValues("bbox")) }},
		{"layer query", func() { IncLayerQuery("error") },
			func() float64 { return testutil.ToFloat64(layerQueries.WithLabelValues("error")) }},
		{"cache hits", func() { AddCacheHits(2) },
			func() float64 { return testutil.ToFloat64(cacheResults.WithLabelValues("hit")) / 2 }},
		{"selection events", func() { IncSelectionEvent("dropped") },
			func() float64 { return testutil.ToFloat64(selectionEvents.WithLabelValues("dropped")) }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			before := tc.read()
			tc.do()
			assert.Equal(t, before+1, tc.read())
		})
	}
}

func TestObserveCacheOp_Result(t *testing.T) {
	ObserveCacheOp("get", errors.New("timeout"), 0.01)
	n := testutil.CollectAndCount(redisOpDuration, "redis_operation_duration_seconds")
	assert.GreaterOrEqual(t, n, 1)
	assert.Contains(t, gatherText(t), `redis_operation_duration_seconds_count{op="get",result="error"}`)
}

func gatherText(t *testing.T) string {
	t.Helper()
	rr := httptest.NewRecorder()
	promhttp.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	return rr.Body.String()
}
