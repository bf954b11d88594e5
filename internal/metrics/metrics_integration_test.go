package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mohammed-shakir/geoview/internal/core/observability"
)

func assertHasMetricLine(t *testing.T, body, metric string, wantLabels ...string) {
	t.Helper()
	for ln := range strings.SplitSeq(body, "\n") {
		if !strings.HasPrefix(ln, metric+"{") {
			continue
		}
		ok := true
		for _, s := range wantLabels {
			if !strings.Contains(ln, s) {
				ok = false
				break
			}
		}
		if ok && (len(ln) > 0 && ln[len(ln)-1] >= '0' && ln[len(ln)-1] <= '9') {
			return
		}
	}
	t.Fatalf("expected a %s line with labels %v; got:\n%s", metric, wantLabels, body)
}

func TestPrivateRegistry_ExposesGeoviewMetrics(t *testing.T) {
	p := Init(Config{Build: BuildInfo{Version: "test"}, Collectors: observability.Collectors()})
	observability.SetBackend("engine")
	observability.ExposeBuildInfo("test")

	observability.ObserveHTTP("POST", "/v1/sessions/{id}/click", 200, 0.01)
	observability.ObserveInteraction("click", "applied", 3)
	observability.ObserveInteraction("box", "stale", 0)
	observability.IncLayerQuery("ok")
	observability.AddCacheHits(3)
	observability.AddCacheMisses(1)
	observability.ObserveCacheOp("get", nil, 0.002)
	observability.IncConversionFailure("point")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	p.Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	body := rr.Body.String()
	mustContain := []string{
		`http_request_duration_seconds_bucket`,
		`redis_operation_duration_seconds_count`,
		`query_features_returned_bucket`,
		`cache_results_total{outcome="hit"} `,
		`cache_results_total{outcome="miss"} `,
		`layer_queries_total{outcome="ok"} `,
		`coordinate_conversion_failures_total{op="point"} `,
		`go_goroutines`,
	}
	for _, s := range mustContain {
		if !strings.Contains(body, s) {
			t.Fatalf("expected metrics to contain %q;\n---\n%s", s, body)
		}
	}

	assertHasMetricLine(t, body, "query_interactions_total",
		`kind="click"`, `outcome="applied"`, `backend="engine"`)
	assertHasMetricLine(t, body, "query_interactions_total",
		`kind="box"`, `outcome="stale"`)
	assertHasMetricLine(t, body, "app_build_info", `version="test"`)
	assertHasMetricLine(t, body, "geoview_build_info", `version="test"`)
}
