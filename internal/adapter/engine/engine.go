// Package engine adapts *engine.View handles. Map points are EPSG:3857 meters.
package engine

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/paulmach/orb"

	"github.com/mohammed-shakir/geoview/internal/adapter"
	"github.com/mohammed-shakir/geoview/internal/core/model"
	"github.com/mohammed-shakir/geoview/internal/crs"
	"github.com/mohammed-shakir/geoview/internal/mapview"
	mapengine "github.com/mohammed-shakir/geoview/internal/mapview/engine"
)

// FallbackResolution is used when the view reports no resolution.
const FallbackResolution = 10.0

// projected world extent of EPSG:3857
var worldBounds = model.BBox{
	X1: -20037508.342789244, Y1: -20048966.1040146,
	X2: 20037508.342789244, Y2: 20048966.1040146,
	SRID: crs.WebMercator,
}

var errWrongHandle = errors.New("handle is not an engine view")

type Adapter struct {
	log *slog.Logger
}

var _ adapter.Adapter = (*Adapter)(nil)

func New(log *slog.Logger) *Adapter {
	if log == nil {
		log = slog.Default()
	}
	return &Adapter{log: log.With("component", "adapter", "backend", "engine")}
}

func (a *Adapter) CRS() string { return crs.WebMercator }

func view(h mapview.Handle) (*mapengine.View, error) {
	v, ok := h.(*mapengine.View)
	if !ok || v == nil {
		return nil, fmt.Errorf("%w: %T", errWrongHandle, h)
	}
	return v, nil
}

func (a *Adapter) ScreenToMap(sp model.ScreenPoint, h mapview.Handle) model.Point {
	zero := model.Point{CRS: crs.WebMercator}
	v, err := view(h)
	if err != nil {
		a.log.Error("screen to map", "err", err)
		return zero
	}
	p, err := v.ToMap(sp.X, sp.Y)
	if err != nil {
		a.log.Error("screen to map", "err", err)
		return zero
	}
	return model.Point{X: p[0], Y: p[1], CRS: crs.WebMercator}
}

func (a *Adapter) MapToScreen(p model.Point, h mapview.Handle) model.ScreenPoint {
	v, err := view(h)
	if err != nil {
		a.log.Error("map to screen", "err", err)
		return model.ScreenPoint{}
	}
	if p.CRS != "" {
		native, ok := crs.ConvertModelPoint(p, crs.WebMercator)
		if !ok {
			return model.ScreenPoint{}
		}
		p = native
	}
	x, y, err := v.ToScreen(orb.Point{p.X, p.Y})
	if err != nil {
		a.log.Error("map to screen", "err", err)
		return model.ScreenPoint{}
	}
	return model.ScreenPoint{X: x, Y: y}
}

func (a *Adapter) CreateBoundingBox(p model.Point, resolution, buffer float64) model.BBox {
	return adapter.SquareBox(p, resolution, buffer, crs.WebMercator)
}

func (a *Adapter) ViewBounds(h mapview.Handle) model.BBox {
	v, err := view(h)
	if err != nil {
		a.log.Error("view bounds", "err", err)
		return worldBounds
	}
	ext, ok := v.Extent()
	if !ok {
		return worldBounds
	}
	return model.BBox{X1: ext.Min[0], Y1: ext.Min[1], X2: ext.Max[0], Y2: ext.Max[1], SRID: crs.WebMercator}
}

// Resolution returns the view's reported meters per pixel.
func (a *Adapter) Resolution(h mapview.Handle) float64 {
	v, err := view(h)
	if err != nil {
		a.log.Error("resolution", "err", err)
		return FallbackResolution
	}
	if r := v.Resolution(); r > 0 {
		return r
	}
	return FallbackResolution
}
