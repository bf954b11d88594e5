package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func scrape(t *testing.T, p *Provider) string {
	t.Helper()
	rr := httptest.NewRecorder()
	p.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d want 200", rr.Code)
	}
	return rr.Body.String()
}

func TestInit_RuntimeCollectorsAndBuildInfo(t *testing.T) {
	p := Init(Config{Build: BuildInfo{Version: "1.2.0", Revision: "abc"}})
	body := scrape(t, p)

	if !strings.Contains(body, "go_goroutines") {
		t.Fatalf("missing go_goroutines:\n%s", body)
	}
	if !strings.Contains(body, `app_build_info{branch="",build_date="",revision="abc",version="1.2.0"} 1`) {
		t.Fatalf("missing build info:\n%s", body)
	}
}

func TestInit_DefaultVersion(t *testing.T) {
	body := scrape(t, Init(Config{}))
	if !strings.Contains(body, `version="dev"`) {
		t.Fatalf("expected dev version:\n%s", body)
	}
}

func TestInit_ConfigCollectors(t *testing.T) {
	g := prometheus.NewGauge(prometheus.GaugeOpts{Name: "sessions_open", Help: "open sessions"})
	g.Set(3)
	p := Init(Config{Collectors: []prometheus.Collector{g}})

	n, err := testutil.GatherAndCount(p.Gatherer(), "sessions_open")
	if err != nil || n != 1 {
		t.Fatalf("count=%d err=%v", n, err)
	}
	if !strings.Contains(scrape(t, p), "sessions_open 3") {
		t.Fatal("gauge not exposed")
	}
}

func TestRegister_SkipsDuplicates(t *testing.T) {
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "layer_pages_total", Help: "pages"})
	p := Init(Config{})
	p.Register(c)
	p.Register(c)
	c.Inc()
	if got := testutil.ToFloat64(c); got != 1 {
		t.Fatalf("counter=%v", got)
	}
}
