// Package vector adapts *vector.Map handles. Map points are EPSG:4326 degrees.
package vector

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/paulmach/orb"

	"github.com/mohammed-shakir/geoview/internal/adapter"
	"github.com/mohammed-shakir/geoview/internal/core/model"
	"github.com/mohammed-shakir/geoview/internal/crs"
	"github.com/mohammed-shakir/geoview/internal/mapview"
	mapvector "github.com/mohammed-shakir/geoview/internal/mapview/vector"
)

const (
	EarthCircumference = 40075016.686
	MetersPerDegree    = 111320.0

	// degrees per pixel used when the zoom cannot be read
	FallbackResolution = 0.0001
)

var worldBounds = model.BBox{X1: -180, Y1: -90, X2: 180, Y2: 90, SRID: crs.WGS84}

var errWrongHandle = errors.New("handle is not a vector map")

type Adapter struct {
	log *slog.Logger
}

var _ adapter.Adapter = (*Adapter)(nil)

func New(log *slog.Logger) *Adapter {
	if log == nil {
		log = slog.Default()
	}
	return &Adapter{log: log.With("component", "adapter", "backend", "vector")}
}

func (a *Adapter) CRS() string { return crs.WGS84 }

func vmap(h mapview.Handle) (*mapvector.Map, error) {
	m, ok := h.(*mapvector.Map)
	if !ok || m == nil {
		return nil, fmt.Errorf("%w: %T", errWrongHandle, h)
	}
	return m, nil
}

func (a *Adapter) ScreenToMap(sp model.ScreenPoint, h mapview.Handle) model.Point {
	zero := model.Point{CRS: crs.WGS84}
	m, err := vmap(h)
	if err != nil {
		a.log.Error("screen to map", "err", err)
		return zero
	}
	ll, err := m.Unproject(orb.Point{sp.X, sp.Y})
	if err != nil {
		a.log.Error("screen to map", "err", err)
		return zero
	}
	return model.Point{X: ll[0], Y: ll[1], CRS: crs.WGS84}
}

func (a *Adapter) MapToScreen(p model.Point, h mapview.Handle) model.ScreenPoint {
	m, err := vmap(h)
	if err != nil {
		a.log.Error("map to screen", "err", err)
		return model.ScreenPoint{}
	}
	if p.CRS != "" {
		native, ok := crs.ConvertModelPoint(p, crs.WGS84)
		if !ok {
			return model.ScreenPoint{}
		}
		p = native
	}
	sp, err := m.Project(orb.Point{p.X, p.Y})
	if err != nil {
		a.log.Error("map to screen", "err", err)
		return model.ScreenPoint{}
	}
	return model.ScreenPoint{X: sp[0], Y: sp[1]}
}

func (a *Adapter) CreateBoundingBox(p model.Point, resolution, buffer float64) model.BBox {
	return adapter.SquareBox(p, resolution, buffer, crs.WGS84)
}

func (a *Adapter) ViewBounds(h mapview.Handle) model.BBox {
	m, err := vmap(h)
	if err != nil {
		a.log.Error("view bounds", "err", err)
		return worldBounds
	}
	b, ok := m.Bounds()
	if !ok {
		return worldBounds
	}
	return model.BBox{X1: b.Min[0], Y1: b.Min[1], X2: b.Max[0], Y2: b.Max[1], SRID: crs.WGS84}
}

// Resolution is the equatorial ground resolution at the current zoom,
// expressed in degrees per pixel.
func (a *Adapter) Resolution(h mapview.Handle) float64 {
	m, err := vmap(h)
	if err != nil {
		a.log.Error("resolution", "err", err)
		return FallbackResolution
	}
	return ResolutionAtZoom(m.Zoom())
}

func ResolutionAtZoom(zoom float64) float64 {
	if math.IsNaN(zoom) || math.IsInf(zoom, 0) || zoom < 0 {
		return FallbackResolution
	}
	metersPerPixel := EarthCircumference / (mapvector.TileSize * math.Exp2(zoom))
	return metersPerPixel / MetersPerDegree
}
