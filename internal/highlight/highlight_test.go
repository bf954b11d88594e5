package highlight

import (
	"testing"

	"github.com/paulmach/orb"

	"github.com/mohammed-shakir/geoview/internal/core/model"
)

func TestOptionsResolve(t *testing.T) {
	def := (*Options)(nil).Resolve()
	if def.FillColor != (Color{0, 0, 0, 0}) || def.OutlineColor != (Color{255, 255, 0, 1}) ||
		def.OutlineWidth != 4 || def.PointSize != 12 {
		t.Fatalf("defaults = %+v", def)
	}
	red := Color{255, 0, 0, 0.5}
	got := (&Options{FillColor: &red, PointSize: 20}).Resolve()
	if got.FillColor != red || got.PointSize != 20 || got.OutlineWidth != 4 || got.OutlineColor != def.OutlineColor {
		t.Fatalf("merged = %+v", got)
	}
}

func TestClassOf(t *testing.T) {
	cases := map[string]Class{
		"Point": ClassPoint, "MultiPoint": ClassPoint,
		"LineString": ClassLine, "MultiLineString": ClassLine,
		"Polygon": ClassPolygon, "MultiPolygon": ClassPolygon,
	}
	for typ, want := range cases {
		if got, ok := ClassOf(typ); !ok || got != want {
			t.Fatalf("ClassOf(%s) = %v,%v", typ, got, ok)
		}
	}
	if _, ok := ClassOf("GeometryCollection"); ok {
		t.Fatal("collections have no render class")
	}
}

func TestToOrb(t *testing.T) {
	g := &model.Geometry{Type: "LineString", Coordinates: []any{[]any{1.0, 2.0}, []any{3.0, 4.0}}}
	og, err := ToOrb(g)
	if err != nil {
		t.Fatal(err)
	}
	ls, ok := og.(orb.LineString)
	if !ok || len(ls) != 2 || ls[1] != (orb.Point{3, 4}) {
		t.Fatalf("got %#v", og)
	}
	if _, err := ToOrb(nil); err == nil {
		t.Fatal("expected error for nil")
	}
}

func TestIndex(t *testing.T) {
	var ix Index[string]
	ix.Add("a", "1", "2")
	ix.Add("b", "3")
	ix.Add("a", "4")
	ix.Add("c")
	if ix.Len() != 4 {
		t.Fatalf("Len=%d", ix.Len())
	}
	if c := ix.Counts(); c["a"] != 3 || c["b"] != 1 || len(c) != 2 {
		t.Fatalf("Counts=%v", c)
	}
	if got := ix.Take("a"); len(got) != 3 || got[2] != "4" {
		t.Fatalf("Take(a)=%v", got)
	}
	if got := ix.Take("a"); got != nil {
		t.Fatalf("second Take(a)=%v", got)
	}
	ix.Add("d", "5")
	if got := ix.TakeAll(); len(got) != 2 || got[0] != "3" || got[1] != "5" {
		t.Fatalf("TakeAll=%v", got)
	}
	if ix.Len() != 0 {
		t.Fatal("index not empty")
	}
}
