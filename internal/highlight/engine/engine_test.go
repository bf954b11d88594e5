package engine

import (
	"log/slog"
	"runtime"
	"testing"
	"weak"

	"github.com/paulmach/orb"

	"github.com/mohammed-shakir/geoview/internal/core/model"
	"github.com/mohammed-shakir/geoview/internal/highlight"
	mapengine "github.com/mohammed-shakir/geoview/internal/mapview/engine"
)

var quiet = slog.New(slog.DiscardHandler)

func square(x, y, d float64) *model.Feature {
	return &model.Feature{
		Type: "Feature",
		ID:   "sq",
		Geometry: &model.Geometry{Type: "Polygon", Coordinates: []any{[]any{
			[]any{x, y}, []any{x + d, y}, []any{x + d, y + d}, []any{x, y},
		}}},
		Properties: map[string]any{"name": "parcel"},
	}
}

func point(x, y float64) *model.Feature {
	return &model.Feature{Type: "Feature", Geometry: &model.Geometry{Type: "Point", Coordinates: []any{x, y}}}
}

func setup() (*mapengine.View, *Provider) {
	v := mapengine.NewView(800, 600, orb.Point{}, 10)
	return v, New(weak.Make(v), quiet)
}

func TestHighlightFeature_ConvertsToDisplayCRS(t *testing.T) {
	v, p := setup()
	if !p.HighlightFeature(square(-111, 40, 0.1), "EPSG:4326", "sel", nil) {
		t.Fatal("highlight failed")
	}
	gs := v.Graphics()
	if len(gs) != 1 {
		t.Fatalf("graphics=%d", len(gs))
	}
	poly, ok := gs[0].Geometry.(orb.Polygon)
	if !ok {
		t.Fatalf("geometry %T", gs[0].Geometry)
	}
	if x := poly[0][0][0]; x > -12356000 || x < -12357000 {
		t.Fatalf("expected web mercator x, got %v", x)
	}
	if gs[0].Symbol.Type != "simple-fill" || gs[0].Symbol.OutlineWidth != 4 || gs[0].Symbol.Color != [4]float64{} {
		t.Fatalf("symbol %+v", gs[0].Symbol)
	}
	if gs[0].Attributes["name"] != "parcel" {
		t.Fatalf("attributes %v", gs[0].Attributes)
	}
	runtime.KeepAlive(v)
}

func TestHighlightFeature_FailuresHaveNoSideEffects(t *testing.T) {
	v, p := setup()
	bad := &model.Feature{Geometry: &model.Geometry{Type: "Point", Coordinates: []any{1.0}}}
	if p.HighlightFeature(bad, "EPSG:3857", "sel", nil) {
		t.Fatal("malformed geometry highlighted")
	}
	circle := &model.Feature{Geometry: &model.Geometry{Type: "Circle", Coordinates: []any{1.0, 2.0}}}
	if p.HighlightFeature(circle, "EPSG:4326", "sel", nil) {
		t.Fatal("unsupported geometry highlighted")
	}
	if p.HighlightFeature(square(0, 0, 1), "EPSG:1", "sel", nil) {
		t.Fatal("unknown CRS highlighted")
	}
	if len(v.Graphics()) != 0 || len(p.Tracked()) != 0 {
		t.Fatal("failed highlight left state behind")
	}
	runtime.KeepAlive(v)
}

func TestClearGraphics_ByTitle(t *testing.T) {
	v, p := setup()
	v.AddGraphics(&mapengine.Graphic{ID: "basemap"})
	other := New(weak.Make(v), quiet)
	other.HighlightFeature(point(-111, 40), "EPSG:4326", "sel", nil)

	p.HighlightFeature(square(-111, 40, 0.1), "EPSG:4326", "sel", nil)
	p.HighlightFeature(point(-111, 40), "EPSG:4326", "search", nil)
	p.CreatePinGraphic(40.5, -111.5)
	if len(v.Graphics()) != 5 {
		t.Fatalf("graphics=%d", len(v.Graphics()))
	}

	p.ClearGraphics("sel")
	if got := p.Tracked(); got["sel"] != 0 || got["search"] != 1 {
		t.Fatalf("tracked %v", got)
	}
	if len(v.Graphics()) != 4 {
		t.Fatalf("graphics after title clear=%d", len(v.Graphics()))
	}

	p.ClearGraphics("")
	gs := v.Graphics()
	if len(gs) != 2 || gs[0].ID != "basemap" {
		t.Fatalf("full clear removed foreign graphics: %v", gs)
	}
	if other.Tracked()["sel"] != 1 {
		t.Fatal("other provider lost its bookkeeping")
	}
	runtime.KeepAlive(v)
}

func TestHighlightFeatureCollection_OneGraphicPerClass(t *testing.T) {
	v, p := setup()
	fs := []*model.Feature{
		square(-111, 40, 0.1),
		point(-111.2, 40.2),
		square(-110, 40, 0.1),
		{Geometry: &model.Geometry{Type: "Point", Coordinates: []any{"x", 1.0}}},
		point(-111.3, 40.3),
	}
	if !p.HighlightFeatureCollection(fs, "EPSG:4326", highlight.DefaultTitle, nil) {
		t.Fatal("collection failed")
	}
	gs := v.Graphics()
	if len(gs) != 2 {
		t.Fatalf("graphics=%d want 2", len(gs))
	}
	if gs[0].Attributes["class"] != "polygon" || gs[0].Attributes["count"] != 2 {
		t.Fatalf("polygon graphic %v", gs[0].Attributes)
	}
	if gs[1].Attributes["class"] != "point" || gs[1].Attributes["count"] != 2 {
		t.Fatalf("point graphic %v", gs[1].Attributes)
	}

	allBad := []*model.Feature{{Geometry: &model.Geometry{Type: "Point", Coordinates: []any{1.0}}}}
	if p.HighlightFeatureCollection(allBad, "EPSG:3857", "x", nil) {
		t.Fatal("all-failed batch reported success")
	}
	runtime.KeepAlive(v)
}

func TestDeadMapIsUnavailable(t *testing.T) {
	p := New(weak.Pointer[mapengine.View]{}, quiet)
	if p.HighlightFeature(point(0, 0), "EPSG:4326", "t", nil) {
		t.Fatal("highlight on missing map")
	}
	if p.CreatePinGraphic(0, 0) {
		t.Fatal("pin on missing map")
	}
	p.ClearGraphics("")
}
