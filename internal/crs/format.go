package crs

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

// DefaultPrecision keeps roughly 0.1 m at WGS84.
const DefaultPrecision = 6

// FormatDMS renders decimal degrees as `DD° MM' SS" H` where H is N/S for
// latitudes and E/W for longitudes. Seconds are rounded and carried.
func FormatDMS(dd float64, isLongitude bool) string {
	if !finite(dd) {
		dd = 0
	}
	dir := "N"
	switch {
	case isLongitude && dd < 0:
		dir = "W"
	case isLongitude:
		dir = "E"
	case dd < 0:
		dir = "S"
	}
	total := int64(math.Round(math.Abs(dd) * 3600))
	deg := total / 3600
	minutes := (total % 3600) / 60
	sec := total % 60
	return fmt.Sprintf("%02d° %02d' %02d\" %s", deg, minutes, sec, dir)
}

// ReducePrecision rounds every ordinate of coords to decimals places. The input
// is not modified.
func ReducePrecision(coords [][]float64, decimals int) [][]float64 {
	if coords == nil {
		return nil
	}
	out := make([][]float64, len(coords))
	for i, c := range coords {
		out[i] = make([]float64, len(c))
		for j, v := range c {
			out[i][j] = Round(v, decimals)
		}
	}
	return out
}

// Round rounds v half away from zero to decimals places.
func Round(v float64, decimals int) float64 {
	if decimals < 0 || !finite(v) {
		return v
	}
	p := math.Pow(10, float64(decimals))
	r := math.Round(v*p) / p
	if !finite(r) {
		return v
	}
	return r
}

// CalculateBounds returns the lon/lat extent of coords, ignoring positions that
// are short or non-finite. It returns nil when nothing usable remains.
func CalculateBounds(coords [][]float64) *orb.Bound {
	var (
		b     orb.Bound
		found bool
	)
	for _, c := range coords {
		if len(c) < 2 || !finite(c[0]) || !finite(c[1]) {
			continue
		}
		p := orb.Point{c[0], c[1]}
		if !found {
			b = orb.Bound{Min: p, Max: p}
			found = true
			continue
		}
		b = b.Extend(p)
	}
	if !found {
		return nil
	}
	return &b
}

// zoom steps keyed by the larger span in degrees, checked in order
var zoomSteps = []struct {
	span float64
	zoom int
}{
	{1, 7},
	{0.5, 8},
	{0.2, 9},
	{0.1, 10},
	{0.05, 11},
	{0.02, 12},
}

// CalculateZoomFromBounds maps the larger side of b to a zoom level using a fixed
// step table. A nil bound yields 10.
func CalculateZoomFromBounds(b *orb.Bound) int {
	if b == nil {
		return 10
	}
	span := max(b.Max[0]-b.Min[0], b.Max[1]-b.Min[1])
	for _, s := range zoomSteps {
		if span > s.span {
			return s.zoom
		}
	}
	return 13
}
