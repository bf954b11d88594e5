package crs

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mohammed-shakir/geoview/internal/core/model"
)

// ConvertPoint converts coords ([x, y] plus optional trailing ordinates) from
// source to target. On any failure it returns coords unchanged.
func ConvertPoint(coords []float64, source, target string) []float64 {
	out, err := convertPoint(coords, source, target)
	if err != nil {
		report("point", err, "source", source, "target", target)
		return coords
	}
	return out
}

// ConvertModelPoint converts p into target. The second result is false when
// p was returned unchanged because the conversion failed.
func ConvertModelPoint(p model.Point, target string) (model.Point, bool) {
	out, err := convertPoint([]float64{p.X, p.Y}, p.CRS, target)
	if err != nil {
		report("point", err, "source", p.CRS, "target", target)
		return p, false
	}
	to, _ := NormalizeCRS(target)
	return model.Point{X: out[0], Y: out[1], CRS: to}, true
}

func convertPoint(coords []float64, source, target string) ([]float64, error) {
	if len(coords) < 2 || !finite(coords[0]) || !finite(coords[1]) {
		return nil, fmt.Errorf("%w: %v", ErrMalformedCoordinate, coords)
	}
	from, to, err := resolvePair(source, target)
	if err != nil {
		return nil, err
	}
	x, y, err := project(coords[0], coords[1], from, to)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(coords))
	out[0], out[1] = x, y
	copy(out[2:], coords[2:])
	return out, nil
}

// sources whose services sometimes deliver degrees while labelling the box projected
var degreePassthrough = map[string]struct{}{
	WebMercator: {},
	UTM12N:      {},
}

// ConvertBBox converts [minX, minY, maxX, maxY] from source to target (EPSG:4326
// when target is empty). All four corners are projected and the extrema are
// re-derived, so the result always has min <= max on both axes. On failure the
// input is returned.
func ConvertBBox(b [4]float64, source, target string) [4]float64 {
	out, err := convertBBox(b, source, target)
	if err != nil {
		report("bbox", err, "source", source, "target", target)
		return b
	}
	return out
}

// ConvertModelBBox is ConvertBBox over model.BBox. The result carries the
// target CRS unless the conversion failed.
func ConvertModelBBox(b model.BBox, target string) (model.BBox, bool) {
	if target == "" {
		target = WGS84
	}
	out, err := convertBBox(b.Array(), b.SRID, target)
	if err != nil {
		report("bbox", err, "source", b.SRID, "target", target)
		return b, false
	}
	to, _ := NormalizeCRS(target)
	return model.BBoxFromArray(out, to), true
}

func convertBBox(b [4]float64, source, target string) ([4]float64, error) {
	if target == "" {
		target = WGS84
	}
	from, to, err := resolvePair(source, target)
	if err != nil {
		return b, err
	}
	if _, ok := degreePassthrough[from]; ok && to == WGS84 && inDegreeRange(b) {
		return b, nil
	}
	for _, v := range b {
		if !finite(v) {
			return b, fmt.Errorf("%w: %v", ErrMalformedCoordinate, b)
		}
	}
	if from == to {
		return b, nil
	}

	corners := [4][2]float64{
		{b[0], b[1]},
		{b[0], b[3]},
		{b[2], b[1]},
		{b[2], b[3]},
	}
	var out [4]float64
	for i, c := range corners {
		x, y, err := project(c[0], c[1], from, to)
		if err != nil {
			return b, err
		}
		if i == 0 {
			out = [4]float64{x, y, x, y}
			continue
		}
		out[0] = min(out[0], x)
		out[1] = min(out[1], y)
		out[2] = max(out[2], x)
		out[3] = max(out[3], y)
	}
	return out, nil
}

func inDegreeRange(b [4]float64) bool {
	for i, v := range b {
		if !finite(v) {
			return false
		}
		limit := 90.0
		if i%2 == 0 {
			limit = 180
		}
		if v < -limit || v > limit {
			return false
		}
	}
	return true
}

// ConvertGeometryToWGS84 returns a converted deep copy of g, or nil when g is nil
// or any single position cannot be converted.
func ConvertGeometryToWGS84(g *model.Geometry, source string) *model.Geometry {
	if g == nil {
		logger().Warn("convert geometry: nil geometry", "source", source)
		return nil
	}
	if IsWGS84(source) {
		return g.Clone()
	}
	return ConvertGeometry(g, source, WGS84)
}

// ConvertGeometry is the general form of ConvertGeometryToWGS84. It never
// returns a partially converted geometry.
func ConvertGeometry(g *model.Geometry, source, target string) *model.Geometry {
	if g == nil {
		logger().Warn("convert geometry: nil geometry", "source", source)
		return nil
	}
	from, to, err := resolvePair(source, target)
	if err != nil {
		report("geometry", err)
		return nil
	}
	out := g.Clone()
	if err := reprojectGeometry(out, from, to); err != nil {
		report("geometry", err, "type", g.Type, "source", from, "target", to)
		return nil
	}
	return out
}

var coordDepth = map[string]int{
	"Point":           0,
	"MultiPoint":      1,
	"LineString":      1,
	"MultiLineString": 2,
	"Polygon":         2,
	"MultiPolygon":    3,
}

func reprojectGeometry(g *model.Geometry, from, to string) error {
	if g == nil {
		return errors.New("nil member geometry")
	}
	if g.Type == "GeometryCollection" {
		for i, member := range g.Geometries {
			if err := reprojectGeometry(member, from, to); err != nil {
				return fmt.Errorf("geometries[%d]: %w", i, err)
			}
		}
		return nil
	}
	depth, ok := coordDepth[g.Type]
	if !ok {
		return fmt.Errorf("unsupported geometry type %q", g.Type)
	}
	if g.Coordinates == nil {
		return fmt.Errorf("%w: %s without coordinates", ErrMalformedCoordinate, g.Type)
	}
	fn := func(x, y float64) (float64, float64, error) { return project(x, y, from, to) }
	coords, err := mapCoords(g.Coordinates, depth, fn)
	if err != nil {
		return err
	}
	g.Coordinates = coords
	return nil
}

type positionFunc func(x, y float64) (float64, float64, error)

func mapCoords(v any, depth int, fn positionFunc) (any, error) {
	if depth == 0 {
		return mapPosition(v, fn)
	}
	items, ok := asSlice(v)
	if !ok {
		return nil, fmt.Errorf("%w: expected array, got %T", ErrMalformedCoordinate, v)
	}
	out := make([]any, len(items))
	for i, item := range items {
		m, err := mapCoords(item, depth-1, fn)
		if err != nil {
			return nil, err
		}
		out[i] = m
	}
	return out, nil
}

func mapPosition(v any, fn positionFunc) (any, error) {
	switch p := v.(type) {
	case []float64:
		if len(p) < 2 {
			return nil, fmt.Errorf("%w: position %v has fewer than two ordinates", ErrMalformedCoordinate, p)
		}
		x, y, err := fn(p[0], p[1])
		if err != nil {
			return nil, err
		}
		out := append([]float64{x, y}, p[2:]...)
		return out, nil
	case []any:
		if len(p) < 2 {
			return nil, fmt.Errorf("%w: position %v has fewer than two ordinates", ErrMalformedCoordinate, p)
		}
		x, okX := toFloat(p[0])
		y, okY := toFloat(p[1])
		if !okX || !okY {
			return nil, fmt.Errorf("%w: non-numeric position %v", ErrMalformedCoordinate, p)
		}
		nx, ny, err := fn(x, y)
		if err != nil {
			return nil, err
		}
		out := make([]any, len(p))
		copy(out, p)
		out[0], out[1] = nx, ny
		return out, nil
	default:
		return nil, fmt.Errorf("%w: position of type %T", ErrMalformedCoordinate, v)
	}
}

func asSlice(v any) ([]any, bool) {
	switch t := v.(type) {
	case []any:
		return t, true
	case [][]float64:
		out := make([]any, len(t))
		for i := range t {
			out[i] = t[i]
		}
		return out, true
	case [][][]float64:
		out := make([]any, len(t))
		for i := range t {
			out[i] = t[i]
		}
		return out, true
	case [][][][]float64:
		out := make([]any, len(t))
		for i := range t {
			out[i] = t[i]
		}
		return out, true
	default:
		return nil, false
	}
}

func toFloat(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		x, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = x
	default:
		return 0, false
	}
	return f, finite(f)
}

// ConvertPolygon converts every ring position of p into target. Unlike
// ConvertPoint it is all-or-nothing: any bad position yields nil. An empty
// p.CRS is read as fallbackCRS.
func ConvertPolygon(p *model.PolygonGeometry, fallbackCRS, target string) *model.PolygonGeometry {
	if p == nil || len(p.Rings) == 0 {
		report("polygon", errors.New("empty polygon"))
		return nil
	}
	source := p.CRS
	if source == "" {
		source = fallbackCRS
	}
	to, ok := NormalizeCRS(target)
	if !ok {
		report("polygon", fmt.Errorf("%w: %q", ErrUnsupportedCRS, target))
		return nil
	}
	out := &model.PolygonGeometry{CRS: to, Rings: make([][][]float64, len(p.Rings))}
	for i, ring := range p.Rings {
		r := make([][]float64, len(ring))
		for j, pos := range ring {
			c, err := convertPoint(pos, source, to)
			if err != nil {
				report("polygon", err, "source", source, "target", to, "ring", i, "index", j)
				return nil
			}
			r[j] = c
		}
		out.Rings[i] = r
	}
	return out
}
