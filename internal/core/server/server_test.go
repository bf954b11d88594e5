package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mohammed-shakir/geoview/internal/aoi"
	"github.com/mohammed-shakir/geoview/internal/backend"
	_ "github.com/mohammed-shakir/geoview/internal/backend/vector"
	"github.com/mohammed-shakir/geoview/internal/catalog"
	"github.com/mohammed-shakir/geoview/internal/core/config"
	"github.com/mohammed-shakir/geoview/internal/core/health"
	"github.com/mohammed-shakir/geoview/internal/core/model"
	"github.com/mohammed-shakir/geoview/internal/core/router"
	"github.com/mohammed-shakir/geoview/internal/metrics"
	"github.com/mohammed-shakir/geoview/internal/session"
)

type emptySource struct{}

func (emptySource) FetchGetFeature(context.Context, model.QueryRequest) ([]byte, string, error) {
	return []byte(`{"type":"FeatureCollection","features":[]}`), "application/json", nil
}

func newAPI(t *testing.T) *router.API {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)
	b, err := backend.New("vector", backend.Deps{Logger: logger})
	if err != nil {
		t.Fatal(err)
	}
	cat, err := catalog.New([]catalog.Layer{{ID: "roads"}})
	if err != nil {
		t.Fatal(err)
	}
	store, err := session.NewStore(b, cat, emptySource{}, session.Options{}, logger)
	if err != nil {
		t.Fatal(err)
	}
	return router.New(store, aoi.New("", logger), logger)
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	return rr
}

func TestHandler_Probes(t *testing.T) {
	h := NewHandler(slog.New(slog.DiscardHandler), newAPI(t), Options{
		Checks: []health.Check{{Name: "catalog", Fn: func(context.Context) error { return nil }}},
	})
	if rr := get(t, h, "/healthz"); rr.Code != http.StatusOK || rr.Body.String() != "ok" {
		t.Fatalf("healthz: %d %q", rr.Code, rr.Body.String())
	}
	if rr := get(t, h, "/readyz"); rr.Code != http.StatusOK {
		t.Fatalf("readyz: %d", rr.Code)
	}
}

func TestHandler_NotReady(t *testing.T) {
	h := NewHandler(slog.New(slog.DiscardHandler), newAPI(t), Options{
		Checks: []health.Check{{Name: "redis", Fn: func(context.Context) error { return errors.New("down") }}},
	})
	if rr := get(t, h, "/readyz"); rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz: %d", rr.Code)
	}
}

func TestHandler_MetricsAndAPI(t *testing.T) {
	prov := metrics.Init(metrics.Config{})
	h := NewHandler(slog.New(slog.DiscardHandler), newAPI(t), Options{Metrics: prov.Handler(), MetricsPath: "/internal/metrics"})

	if rr := get(t, h, "/internal/metrics"); rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "app_build_info") {
		t.Fatalf("metrics: %d", rr.Code)
	}
	rr := get(t, h, "/dms?dd=40.5")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `40° 30' 00\" N`) {
		t.Fatalf("dms: %d %s", rr.Code, rr.Body.String())
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Fatal("request id middleware not applied")
	}

	req := httptest.NewRequest(http.MethodPost, "/sessions", strings.NewReader(`{"width":512,"height":512,"center":[10,50],"zoom":5}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated || !strings.Contains(rec.Body.String(), `"backend":"vector"`) {
		t.Fatalf("create: %d %s", rec.Code, rec.Body.String())
	}
}

func TestRun_ShutsDownOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	go func() {
		done <- Run(ctx, config.Config{Addr: "127.0.0.1:0"}, logger, http.NotFoundHandler())
	}()
	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
