// Package model defines core domain types shared across the service.
package model

import (
	"fmt"
	"math"
)

// Point is a map coordinate tagged with the CRS its numbers are expressed in.
type Point struct {
	X   float64 `json:"x"`
	Y   float64 `json:"y"`
	CRS string  `json:"crs,omitempty"`
}

// ScreenPoint is a pixel coordinate, origin top-left.
type ScreenPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type BBox struct {
	X1   float64 `json:"minX"`
	Y1   float64 `json:"minY"`
	X2   float64 `json:"maxX"`
	Y2   float64 `json:"maxY"`
	SRID string  `json:"crs,omitempty"`
}

// String representation matching wfs/wms bbox format
func (b BBox) String() string {
	return fmt.Sprintf("%.6f,%.6f,%.6f,%.6f,%s", b.X1, b.Y1, b.X2, b.Y2, b.SRID)
}

func (b BBox) Array() [4]float64 {
	return [4]float64{b.X1, b.Y1, b.X2, b.Y2}
}

func (b BBox) Width() float64  { return b.X2 - b.X1 }
func (b BBox) Height() float64 { return b.Y2 - b.Y1 }

func (b BBox) Center() Point {
	return Point{X: (b.X1 + b.X2) / 2, Y: (b.Y1 + b.Y2) / 2, CRS: b.SRID}
}

func (b BBox) Valid() bool {
	for _, v := range b.Array() {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return b.X1 <= b.X2 && b.Y1 <= b.Y2
}

func BBoxFromArray(a [4]float64, srid string) BBox {
	return BBox{X1: a[0], Y1: a[1], X2: a[2], Y2: a[3], SRID: srid}
}

// PolygonGeometry is a user-drawn area of interest. Rings[0] is the outer boundary.
type PolygonGeometry struct {
	Rings [][][]float64 `json:"rings"`
	CRS   string        `json:"crs,omitempty"`
}

func (p *PolygonGeometry) Clone() *PolygonGeometry {
	if p == nil {
		return nil
	}
	out := &PolygonGeometry{CRS: p.CRS, Rings: make([][][]float64, len(p.Rings))}
	for i, ring := range p.Rings {
		r := make([][]float64, len(ring))
		for j, c := range ring {
			r[j] = append([]float64(nil), c...)
		}
		out.Rings[i] = r
	}
	return out
}

type FilterKind string

const (
	FilterBBox    FilterKind = "bbox"
	FilterPolygon FilterKind = "polygon"
)

// SpatialFilter is the currently active drawn constraint.
type SpatialFilter struct {
	Kind    FilterKind       `json:"kind"`
	BBox    *BBox            `json:"bbox,omitempty"`
	Polygon *PolygonGeometry `json:"polygon,omitempty"`
}

type QueryRequest struct {
	Layer         string
	BBox          *BBox
	Polygon       *PolygonGeometry
	Filters       string
	GeometryField string
	SRSName       string
	Count         int
	StartIndex    int
}
