package vector

import (
	"math"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

func near(a, b, eps float64) bool { return math.Abs(a-b) <= eps }

func TestMap_ProjectUnproject(t *testing.T) {
	m := NewMap(1024, 768, orb.Point{-111.09, 40.76}, 12)

	c, err := m.Project(orb.Point{-111.09, 40.76})
	if err != nil {
		t.Fatal(err)
	}
	if !near(c[0], 512, 1e-6) || !near(c[1], 384, 1e-6) {
		t.Fatalf("center projects to %v", c)
	}

	for _, sp := range []orb.Point{{0, 0}, {100, 100}, {1024, 768}, {700.5, 12.25}} {
		ll, err := m.Unproject(sp)
		if err != nil {
			t.Fatal(err)
		}
		back, _ := m.Project(ll)
		if !near(back[0], sp[0], 1e-6) || !near(back[1], sp[1], 1e-6) {
			t.Fatalf("round trip %v -> %v -> %v", sp, ll, back)
		}
	}
}

func TestMap_ScreenYGrowsSouth(t *testing.T) {
	m := NewMap(100, 100, orb.Point{0, 0}, 3)
	top, _ := m.Unproject(orb.Point{50, 0})
	bottom, _ := m.Unproject(orb.Point{50, 100})
	if !(top[1] > bottom[1]) {
		t.Fatalf("top %v bottom %v", top, bottom)
	}
}

func TestMap_NotReady(t *testing.T) {
	m := NewMap(0, 100, orb.Point{}, 3)
	if _, err := m.Unproject(orb.Point{}); err == nil {
		t.Fatal("expected error")
	}
	if _, ok := m.Bounds(); ok {
		t.Fatal("bounds should be unavailable")
	}
	m = NewMap(100, 100, orb.Point{}, math.NaN())
	if _, err := m.Project(orb.Point{}); err == nil {
		t.Fatal("expected error for NaN zoom")
	}
}

func TestMap_FitBounds(t *testing.T) {
	m := NewMap(800, 600, orb.Point{}, 1)
	target := orb.Bound{Min: orb.Point{-111.5, 40.5}, Max: orb.Point{-111, 41}}
	if err := m.FitBounds(target); err != nil {
		t.Fatal(err)
	}
	got, ok := m.Bounds()
	if !ok {
		t.Fatal("no bounds")
	}
	if got.Min[0] > target.Min[0]+1e-9 || got.Max[0] < target.Max[0]-1e-9 ||
		got.Min[1] > target.Min[1]+1e-9 || got.Max[1] < target.Max[1]-1e-9 {
		t.Fatalf("view %v does not contain %v", got, target)
	}
	if m.Zoom() < 9 || m.Zoom() > 11 {
		t.Fatalf("unexpected zoom %v", m.Zoom())
	}
}

func TestMap_SourcesAndLayers(t *testing.T) {
	m := NewMap(10, 10, orb.Point{}, 1)
	if err := m.AddLayer(StyleLayer{ID: "l", Source: "missing"}); err == nil {
		t.Fatal("expected missing source error")
	}
	if err := m.AddSource("s", geojson.NewFeatureCollection()); err != nil {
		t.Fatal(err)
	}
	if err := m.AddSource("s", geojson.NewFeatureCollection()); err == nil {
		t.Fatal("duplicate source accepted")
	}
	if err := m.AddLayer(StyleLayer{ID: "l", Type: "fill", Source: "s", Visible: true}); err != nil {
		t.Fatal(err)
	}
	if err := m.RemoveSource("s"); err == nil {
		t.Fatal("removed a source in use")
	}
	if !m.RemoveLayer("l") {
		t.Fatal("layer not removed")
	}
	if err := m.RemoveSource("s"); err != nil {
		t.Fatal(err)
	}
	if len(m.SourceIDs()) != 0 {
		t.Fatalf("sources left: %v", m.SourceIDs())
	}
}
