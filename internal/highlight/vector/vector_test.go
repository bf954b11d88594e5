package vector

import (
	"log/slog"
	"runtime"
	"testing"
	"weak"

	"github.com/paulmach/orb"

	"github.com/mohammed-shakir/geoview/internal/core/model"
	"github.com/mohammed-shakir/geoview/internal/highlight"
	mapvector "github.com/mohammed-shakir/geoview/internal/mapview/vector"
)

var quiet = slog.New(slog.DiscardHandler)

func square(x, y, d float64) *model.Feature {
	return &model.Feature{
		Type: "Feature",
		ID:   7,
		Geometry: &model.Geometry{Type: "Polygon", Coordinates: []any{[]any{
			[]any{x, y}, []any{x + d, y}, []any{x + d, y + d}, []any{x, y},
		}}},
		Properties: map[string]any{"name": "parcel"},
	}
}

func line(x, y float64) *model.Feature {
	return &model.Feature{Geometry: &model.Geometry{Type: "LineString", Coordinates: []any{[]any{x, y}, []any{x + 1000, y}}}}
}

func setup() (*mapvector.Map, *Provider) {
	m := mapvector.NewMap(800, 600, orb.Point{-111, 40}, 10)
	return m, New(weak.Make(m), quiet)
}

func TestHighlightFeature_SourceAndLayers(t *testing.T) {
	m, p := setup()
	if !p.HighlightFeature(square(-111, 40, 0.1), "wgs84", "sel", &highlight.Options{OutlineWidth: 2}) {
		t.Fatal("highlight failed")
	}
	ids := m.SourceIDs()
	if len(ids) != 1 {
		t.Fatalf("sources %v", ids)
	}
	fc, _ := m.Source(ids[0])
	if len(fc.Features) != 1 || fc.Features[0].ID != 7 || fc.Features[0].Properties["name"] != "parcel" {
		t.Fatalf("feature %+v", fc.Features)
	}
	layers := m.Layers()
	if len(layers) != 2 || layers[0].Type != "fill" || layers[1].Type != "line" {
		t.Fatalf("layers %+v", layers)
	}
	if layers[1].Paint["line-width"] != 2.0 || layers[0].Paint["fill-color"] != "rgba(0,0,0,0)" {
		t.Fatalf("paint %+v", layers)
	}
	runtime.KeepAlive(m)
}

func TestHighlightFeature_ConvertsFromProjected(t *testing.T) {
	m, p := setup()
	if !p.HighlightFeature(line(-12366482, 4977005), "EPSG:3857", "sel", nil) {
		t.Fatal("highlight failed")
	}
	fc, _ := m.Source(m.SourceIDs()[0])
	ls := fc.Features[0].Geometry.(orb.LineString)
	if ls[0][0] < -111.1 || ls[0][0] > -111.08 {
		t.Fatalf("expected degrees, got %v", ls)
	}
	runtime.KeepAlive(m)
}

func TestClearGraphics_ByTitleAndAll(t *testing.T) {
	m, p := setup()
	m.SetLayerVisible("parcels", true)

	p.HighlightFeature(square(-111, 40, 0.1), "EPSG:4326", "a", nil)
	p.HighlightFeature(line(-12366482, 4977005), "EPSG:3857", "b", nil)
	p.CreatePinGraphic(40, -111)

	p.ClearGraphics("a")
	if got := p.Tracked(); len(got) != 1 || got["b"] != 1 {
		t.Fatalf("tracked %v", got)
	}
	if len(m.SourceIDs()) != 2 {
		t.Fatalf("sources %v", m.SourceIDs())
	}

	p.ClearGraphics("")
	if len(m.SourceIDs()) != 0 {
		t.Fatalf("sources left %v", m.SourceIDs())
	}
	layers := m.Layers()
	if len(layers) != 1 || layers[0].ID != "parcels" {
		t.Fatalf("foreign layers touched: %+v", layers)
	}
	runtime.KeepAlive(m)
}

func TestHighlightFeatureCollection_SourcePerClass(t *testing.T) {
	m, p := setup()
	fs := []*model.Feature{
		square(-111, 40, 0.1),
		line(-111, 40),
		square(-110, 40, 0.1),
		nil,
		{Geometry: &model.Geometry{Type: "Point", Coordinates: []any{1.0}}},
	}
	if !p.HighlightFeatureCollection(fs, "EPSG:4326", highlight.DefaultTitle, nil) {
		t.Fatal("collection failed")
	}
	ids := m.SourceIDs()
	if len(ids) != 2 {
		t.Fatalf("sources %v", ids)
	}
	total := 0
	for _, id := range ids {
		fc, _ := m.Source(id)
		total += len(fc.Features)
	}
	if total != 3 {
		t.Fatalf("features drawn %d want 3", total)
	}
	if p.Tracked()[highlight.DefaultTitle] != 2 {
		t.Fatalf("tracked %v", p.Tracked())
	}
	runtime.KeepAlive(m)
}

func TestDeadMapIsUnavailable(t *testing.T) {
	p := New(weak.Pointer[mapvector.Map]{}, quiet)
	if p.HighlightFeatureCollection([]*model.Feature{square(0, 0, 1)}, "EPSG:4326", "t", nil) {
		t.Fatal("highlight on missing map")
	}
}
