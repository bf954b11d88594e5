// Package adapter translates between screen pixels and map coordinates for a
// specific map backend and builds the buffered boxes click queries use.
//
// Every method is fail-safe: an unusable handle yields the zero point (tagged
// with the adapter CRS) or whole-world bounds, and the failure is logged.
package adapter

import (
	"github.com/mohammed-shakir/geoview/internal/core/model"
	"github.com/mohammed-shakir/geoview/internal/mapview"
)

type Adapter interface {
	// CRS is the native CRS of map points produced by this adapter.
	CRS() string
	ScreenToMap(sp model.ScreenPoint, h mapview.Handle) model.Point
	MapToScreen(p model.Point, h mapview.Handle) model.ScreenPoint
	// CreateBoundingBox returns a square of half-width buffer*resolution
	// centered on p, in the adapter CRS.
	CreateBoundingBox(p model.Point, resolution, buffer float64) model.BBox
	ViewBounds(h mapview.Handle) model.BBox
	Resolution(h mapview.Handle) float64
}

// SquareBox is the shared CreateBoundingBox body.
func SquareBox(p model.Point, resolution, buffer float64, crs string) model.BBox {
	half := buffer * resolution
	return model.BBox{
		X1:   p.X - half,
		Y1:   p.Y - half,
		X2:   p.X + half,
		Y2:   p.Y + half,
		SRID: crs,
	}
}

// ToJSON returns p as a plain object, or nil.
func ToJSON(p *model.Point) map[string]any {
	if p == nil {
		return nil
	}
	out := map[string]any{"x": p.X, "y": p.Y}
	if p.CRS != "" {
		out["crs"] = p.CRS
	}
	return out
}
