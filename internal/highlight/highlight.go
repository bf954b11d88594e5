// Package highlight defines the provider that draws and clears feature
// emphasis on a map, plus the pieces both backends share: render options,
// geometry classes and the title index.
package highlight

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/mohammed-shakir/geoview/internal/core/model"
)

// DefaultTitle groups query result highlights.
const DefaultTitle = "query-results"

type Provider interface {
	// HighlightFeature converts f into the display CRS and draws it under
	// title. It reports false, with no side effects, when the geometry cannot
	// be converted or drawn.
	HighlightFeature(f *model.Feature, sourceCRS, title string, opts *Options) bool
	// HighlightFeatureCollection draws fs with one render source per geometry
	// class. Features that fail conversion are skipped; it reports whether
	// anything was drawn.
	HighlightFeatureCollection(fs []*model.Feature, sourceCRS, title string, opts *Options) bool
	// ClearGraphics removes what this provider added under title, or
	// everything it added when title is empty.
	ClearGraphics(title string)
	CreatePinGraphic(lat, lon float64) bool
	// Tracked returns the number of render resources per title.
	Tracked() map[string]int
}

type Color [4]float64

type Options struct {
	FillColor    *Color  `json:"fillColor,omitempty"`
	OutlineColor *Color  `json:"outlineColor,omitempty"`
	OutlineWidth float64 `json:"outlineWidth,omitempty"`
	PointSize    float64 `json:"pointSize,omitempty"`
}

// Style is a fully resolved Options.
type Style struct {
	FillColor    Color
	OutlineColor Color
	OutlineWidth float64
	PointSize    float64
}

func DefaultStyle() Style {
	return Style{
		FillColor:    Color{0, 0, 0, 0},
		OutlineColor: Color{255, 255, 0, 1},
		OutlineWidth: 4,
		PointSize:    12,
	}
}

// Resolve merges o over the defaults.
func (o *Options) Resolve() Style {
	s := DefaultStyle()
	if o == nil {
		return s
	}
	if o.FillColor != nil {
		s.FillColor = *o.FillColor
	}
	if o.OutlineColor != nil {
		s.OutlineColor = *o.OutlineColor
	}
	if o.OutlineWidth > 0 {
		s.OutlineWidth = o.OutlineWidth
	}
	if o.PointSize > 0 {
		s.PointSize = o.PointSize
	}
	return s
}

// CSS renders c as an rgba() color.
func (c Color) CSS() string {
	return fmt.Sprintf("rgba(%g,%g,%g,%g)", c[0], c[1], c[2], c[3])
}

type Class string

const (
	ClassPoint   Class = "point"
	ClassLine    Class = "line"
	ClassPolygon Class = "polygon"
)

// Classes in draw order, bottom first.
var Classes = []Class{ClassPolygon, ClassLine, ClassPoint}

// ClassOf maps a GeoJSON geometry type to its render class.
func ClassOf(geomType string) (Class, bool) {
	switch geomType {
	case "Point", "MultiPoint":
		return ClassPoint, true
	case "LineString", "MultiLineString":
		return ClassLine, true
	case "Polygon", "MultiPolygon":
		return ClassPolygon, true
	default:
		return "", false
	}
}

// ToOrb decodes a converted geometry into an orb geometry.
func ToOrb(g *model.Geometry) (orb.Geometry, error) {
	if g == nil {
		return nil, fmt.Errorf("nil geometry")
	}
	raw, err := json.Marshal(g)
	if err != nil {
		return nil, fmt.Errorf("marshal geometry: %w", err)
	}
	gg, err := geojson.UnmarshalGeometry(raw)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", g.Type, err)
	}
	return gg.Geometry(), nil
}

// Index tracks render resources by title. It is not safe for concurrent use;
// providers guard it together with the map mutation it describes.
type Index[T any] struct {
	titles map[string][]T
	order  []string
}

func (ix *Index[T]) Add(title string, items ...T) {
	if len(items) == 0 {
		return
	}
	if ix.titles == nil {
		ix.titles = make(map[string][]T)
	}
	if _, ok := ix.titles[title]; !ok {
		ix.order = append(ix.order, title)
	}
	ix.titles[title] = append(ix.titles[title], items...)
}

// Take removes and returns the items under title.
func (ix *Index[T]) Take(title string) []T {
	items, ok := ix.titles[title]
	if !ok {
		return nil
	}
	delete(ix.titles, title)
	ix.order = slices.DeleteFunc(ix.order, func(t string) bool { return t == title })
	return items
}

// TakeAll empties the index, returning items in insertion order of titles.
func (ix *Index[T]) TakeAll() []T {
	var out []T
	for _, t := range ix.order {
		out = append(out, ix.titles[t]...)
	}
	ix.titles = nil
	ix.order = nil
	return out
}

func (ix *Index[T]) Counts() map[string]int {
	out := make(map[string]int, len(ix.titles))
	for t, items := range ix.titles {
		out[t] = len(items)
	}
	return out
}

func (ix *Index[T]) Len() int {
	n := 0
	for _, items := range ix.titles {
		n += len(items)
	}
	return n
}
