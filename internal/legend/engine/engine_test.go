package engine

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"runtime"
	"testing"
	"weak"

	"github.com/paulmach/orb"

	"github.com/mohammed-shakir/geoview/internal/legend"
	mapengine "github.com/mohammed-shakir/geoview/internal/mapview/engine"
)

func TestGetRenderer_MapFirstThenFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"drawingInfo":{"renderer":{"type":"classBreaks"}}}`))
	}))
	defer srv.Close()

	v := mapengine.NewView(10, 10, orb.Point{}, 1)
	v.AddLayer(mapengine.Layer{ID: "parcels", Visible: true, Renderer: map[string]any{"type": "simple"}})
	v.AddLayer(mapengine.Layer{ID: "roads", Visible: true})
	p := New(weak.Make(v), legend.NewFetcher(srv.Client(), 4), slog.New(slog.DiscardHandler))
	ctx := context.Background()

	if r := p.GetRenderer(ctx, "parcels", srv.URL, ""); r == nil || r.Type != "simple" || r.Source != "map" {
		t.Fatalf("map renderer %+v", r)
	}
	if r := p.GetRenderer(ctx, "roads", srv.URL, ""); r == nil || r.Type != "classBreaks" {
		t.Fatalf("fallback renderer %+v", r)
	}
	if r := p.GetRenderer(ctx, "roads", "", ""); r != nil {
		t.Fatalf("expected nil without fallback, got %+v", r)
	}
	runtime.KeepAlive(v)
}
