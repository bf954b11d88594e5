package vector

import (
	"log/slog"
	"math"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"

	"github.com/mohammed-shakir/geoview/internal/core/model"
	"github.com/mohammed-shakir/geoview/internal/crs"
	mapengine "github.com/mohammed-shakir/geoview/internal/mapview/engine"
	mapvector "github.com/mohammed-shakir/geoview/internal/mapview/vector"
)

func newAdapter() *Adapter { return New(slog.New(slog.DiscardHandler)) }

func TestScreenToMapAndBack(t *testing.T) {
	a := newAdapter()
	m := mapvector.NewMap(800, 600, orb.Point{-111.09, 40.76}, 12)

	c := a.ScreenToMap(model.ScreenPoint{X: 400, Y: 300}, m)
	assert.Equal(t, crs.WGS84, c.CRS)
	assert.InDelta(t, -111.09, c.X, 1e-9)
	assert.InDelta(t, 40.76, c.Y, 1e-9)

	p := a.ScreenToMap(model.ScreenPoint{X: 100, Y: 100}, m)
	assert.Less(t, p.X, c.X)
	assert.Greater(t, p.Y, c.Y)
	sp := a.MapToScreen(p, m)
	assert.InDelta(t, 100, sp.X, 1e-6)
	assert.InDelta(t, 100, sp.Y, 1e-6)

	merc := crs.ConvertPoint([]float64{-111.09, 40.76}, crs.WGS84, crs.WebMercator)
	sp = a.MapToScreen(model.Point{X: merc[0], Y: merc[1], CRS: crs.WebMercator}, m)
	assert.InDelta(t, 400, sp.X, 1e-3)
	assert.InDelta(t, 300, sp.Y, 1e-3)
}

func TestFailSafeToZero(t *testing.T) {
	a := newAdapter()
	assert.Equal(t, model.Point{CRS: crs.WGS84}, a.ScreenToMap(model.ScreenPoint{X: 1, Y: 1}, nil))
	assert.Equal(t, model.Point{CRS: crs.WGS84}, a.ScreenToMap(model.ScreenPoint{X: 1, Y: 1}, mapengine.NewView(10, 10, orb.Point{}, 1)))
	assert.Equal(t, model.Point{CRS: crs.WGS84}, a.ScreenToMap(model.ScreenPoint{X: 1, Y: 1}, mapvector.NewMap(0, 0, orb.Point{}, 1)))
	assert.Equal(t, model.ScreenPoint{}, a.MapToScreen(model.Point{X: 1, Y: 1, CRS: "EPSG:4326"}, nil))
	assert.Equal(t, worldBounds, a.ViewBounds(nil))
	assert.Equal(t, worldBounds, a.ViewBounds(mapvector.NewMap(0, 10, orb.Point{}, 1)))
	assert.Equal(t, FallbackResolution, a.Resolution(nil))
}

func TestResolution_ZoomFormula(t *testing.T) {
	a := newAdapter()
	m := mapvector.NewMap(10, 10, orb.Point{}, 0)
	assert.InDelta(t, EarthCircumference/512/MetersPerDegree, a.Resolution(m), 1e-12)

	r10 := ResolutionAtZoom(10)
	r11 := ResolutionAtZoom(11)
	assert.InDelta(t, r10/2, r11, 1e-15)
	assert.Equal(t, FallbackResolution, ResolutionAtZoom(math.NaN()))
	assert.Equal(t, FallbackResolution, ResolutionAtZoom(-1))
}

func TestCreateBoundingBox_Linear(t *testing.T) {
	a := newAdapter()
	p := model.Point{X: -111.09, Y: 40.76, CRS: crs.WGS84}
	res := ResolutionAtZoom(14)
	b1 := a.CreateBoundingBox(p, res, 5)
	b2 := a.CreateBoundingBox(p, res, 10)
	assert.InDelta(t, 2*b1.Width(), b2.Width(), 1e-12)
	assert.InDelta(t, p.X, b2.Center().X, 1e-12)
	assert.InDelta(t, p.Y, b2.Center().Y, 1e-12)
	assert.Equal(t, crs.WGS84, b1.SRID)
}

func TestViewBounds(t *testing.T) {
	a := newAdapter()
	m := mapvector.NewMap(800, 600, orb.Point{-111.09, 40.76}, 10)
	b := a.ViewBounds(m)
	assert.True(t, b.Valid())
	assert.Less(t, b.X1, -111.09)
	assert.Greater(t, b.X2, -111.09)
	assert.Less(t, b.Y1, 40.76)
	assert.Greater(t, b.Y2, 40.76)
}
