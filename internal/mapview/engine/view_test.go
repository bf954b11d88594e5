package engine

import (
	"errors"
	"testing"

	"github.com/paulmach/orb"

	"github.com/mohammed-shakir/geoview/internal/mapview"
)

func TestView_ToMapToScreen(t *testing.T) {
	v := NewView(800, 600, orb.Point{-12366482, 4977005}, 10)

	p, err := v.ToMap(400, 300)
	if err != nil {
		t.Fatalf("ToMap: %v", err)
	}
	if p != (orb.Point{-12366482, 4977005}) {
		t.Fatalf("center pixel = %v", p)
	}

	p, _ = v.ToMap(410, 290)
	if p[0] != -12366482+100 || p[1] != 4977005+100 {
		t.Fatalf("offset pixel = %v", p)
	}
	sx, sy, err := v.ToScreen(p)
	if err != nil || sx != 410 || sy != 290 {
		t.Fatalf("ToScreen = %v,%v,%v", sx, sy, err)
	}
}

func TestView_NotReady(t *testing.T) {
	v := NewView(0, 0, orb.Point{}, 0)
	if _, err := v.ToMap(1, 1); !errors.Is(err, mapview.ErrNotReady) {
		t.Fatalf("expected ErrNotReady, got %v", err)
	}
	if _, ok := v.Extent(); ok {
		t.Fatal("extent should be unavailable")
	}
}

func TestView_GoTo(t *testing.T) {
	v := NewView(100, 50, orb.Point{}, 1)
	if err := v.GoTo(orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{1000, 1000}}); err != nil {
		t.Fatal(err)
	}
	if got := v.Resolution(); got != 20 {
		t.Fatalf("resolution = %v want 20", got)
	}
	ext, ok := v.Extent()
	if !ok || ext.Min[0] != -500 || ext.Max[0] != 1500 || ext.Min[1] != 0 || ext.Max[1] != 1000 {
		t.Fatalf("extent = %v", ext)
	}
}

func TestView_Graphics(t *testing.T) {
	v := NewView(10, 10, orb.Point{}, 1)
	pre := v.AddGraphics(&Graphic{ID: "basemap-label"})
	ids := v.AddGraphics(&Graphic{}, nil, &Graphic{})
	if len(ids) != 2 || ids[0] == ids[1] {
		t.Fatalf("ids = %v", ids)
	}
	if n := v.RemoveGraphics(ids...); n != 2 {
		t.Fatalf("removed %d", n)
	}
	gs := v.Graphics()
	if len(gs) != 1 || gs[0].ID != pre[0] {
		t.Fatalf("left %v", gs)
	}
}

func TestView_Layers(t *testing.T) {
	v := NewView(10, 10, orb.Point{}, 1)
	if _, known := v.LayerVisible("roads"); known {
		t.Fatal("unknown layer reported known")
	}
	v.AddLayer(Layer{ID: "roads", Visible: true, Renderer: map[string]any{"type": "simple"}})
	v.SetLayerVisible("roads", false)
	vis, known := v.LayerVisible("roads")
	if vis || !known {
		t.Fatalf("visible=%v known=%v", vis, known)
	}
	l, _ := v.Layer("roads")
	if l.Renderer["type"] != "simple" {
		t.Fatalf("renderer lost: %v", l)
	}
}
