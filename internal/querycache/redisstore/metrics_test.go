package redisstore

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mohammed-shakir/geoview/internal/core/observability"
	"github.com/mohammed-shakir/geoview/internal/metrics"
)

func TestOperationsAreTimed(t *testing.T) {
	p := metrics.Init(metrics.Config{Collectors: observability.Collectors()})
	c, _ := newMini(t)
	ctx := context.Background()

	_ = c.Set(ctx, "gv:v1:a:1", []byte("v"), time.Minute)
	_, _, _ = c.Get(ctx, "gv:v1:a:1")
	_, _, _ = c.Get(ctx, "gv:v1:a:2")
	_, _ = c.DeletePrefix(ctx, "gv:v1:a:")

	rr := httptest.NewRecorder()
	p.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rr.Body.String()
	for _, op := range []string{"ping", "get", "set", "delete_prefix"} {
		want := `redis_operation_duration_seconds_count{op="` + op + `",result="ok"}`
		if !strings.Contains(body, want) {
			t.Fatalf("missing %s\n%s", want, body)
		}
	}
}
