// Package catalog loads the layer catalog: which WFS layers the viewer knows about,
// their draw order, and how to query them.
package catalog

import (
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/mohammed-shakir/geoview/internal/crs"
)

const DefaultGeometryField = "geom"

type Layer struct {
	ID            string `toml:"id" json:"id"`
	Title         string `toml:"title" json:"title"`
	TypeName      string `toml:"type_name" json:"typeName"`
	GeometryField string `toml:"geometry_field" json:"geometryField"`
	CRS           string `toml:"crs" json:"crs"`
	// DrawOrder: larger values are drawn above smaller ones.
	DrawOrder   int            `toml:"draw_order" json:"drawOrder"`
	Visible     *bool          `toml:"visible" json:"visible,omitempty"`
	Queryable   *bool          `toml:"queryable" json:"queryable,omitempty"`
	MinZoom     float64        `toml:"min_zoom" json:"minZoom,omitempty"`
	MaxZoom     float64        `toml:"max_zoom" json:"maxZoom,omitempty"`
	LegendURL   string         `toml:"legend_url" json:"legendUrl,omitempty"`
	LegendLayer string         `toml:"legend_layer" json:"legendLayer,omitempty"`
	Renderer    map[string]any `toml:"renderer" json:"renderer,omitempty"`
}

func (l Layer) IsVisible() bool   { return l.Visible == nil || *l.Visible }
func (l Layer) IsQueryable() bool { return l.Queryable == nil || *l.Queryable }

// InZoomRange reports whether the layer is drawn at zoom. A zero MaxZoom means unbounded.
func (l Layer) InZoomRange(zoom float64) bool {
	if zoom < l.MinZoom {
		return false
	}
	return l.MaxZoom == 0 || zoom <= l.MaxZoom
}

type file struct {
	Layers []Layer `toml:"layers"`
}

type ErrDuplicateLayer struct {
	ID string
}

func (e ErrDuplicateLayer) Error() string {
	return fmt.Sprintf("catalog: duplicate layer id %q", e.ID)
}

type ErrInvalidLayer struct {
	Index  int
	ID     string
	Reason string
}

func (e ErrInvalidLayer) Error() string {
	return fmt.Sprintf("catalog: layer %d (%q): %s", e.Index, e.ID, e.Reason)
}

// Catalog is immutable after construction.
type Catalog struct {
	layers []Layer
	byID   map[string]int
}

func Load(path string) (*Catalog, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(b)
}

func Parse(data []byte) (*Catalog, error) {
	var f file
	md, err := toml.Decode(string(data), &f)
	if err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	var unknown []string
	for _, k := range md.Undecoded() {
		// renderers are free-form JSON-shaped tables
		if len(k) >= 2 && k[0] == "layers" && k[1] == "renderer" {
			continue
		}
		unknown = append(unknown, k.String())
	}
	if len(unknown) > 0 {
		return nil, fmt.Errorf("catalog: unknown keys %s", strings.Join(unknown, ", "))
	}
	return New(f.Layers)
}

// New validates layers, fills defaults, and orders them topmost first.
// Layers with equal draw order keep their declaration order.
func New(layers []Layer) (*Catalog, error) {
	c := &Catalog{byID: make(map[string]int, len(layers))}
	seen := map[string]struct{}{}
	for i, l := range layers {
		l.ID = strings.TrimSpace(l.ID)
		if l.ID == "" {
			return nil, ErrInvalidLayer{Index: i, Reason: "missing id"}
		}
		if _, dup := seen[l.ID]; dup {
			return nil, ErrDuplicateLayer{ID: l.ID}
		}
		seen[l.ID] = struct{}{}

		if l.TypeName == "" {
			l.TypeName = l.ID
		}
		if l.Title == "" {
			l.Title = l.ID
		}
		if l.GeometryField == "" {
			l.GeometryField = DefaultGeometryField
		}
		if l.CRS == "" {
			l.CRS = crs.WGS84
		}
		norm, ok := crs.NormalizeCRS(l.CRS)
		if !ok {
			return nil, ErrInvalidLayer{Index: i, ID: l.ID, Reason: fmt.Sprintf("unsupported crs %q", l.CRS)}
		}
		l.CRS = norm
		if l.MaxZoom != 0 && l.MaxZoom < l.MinZoom {
			return nil, ErrInvalidLayer{Index: i, ID: l.ID, Reason: "max_zoom below min_zoom"}
		}
		c.layers = append(c.layers, l)
	}
	slices.SortStableFunc(c.layers, func(a, b Layer) int { return b.DrawOrder - a.DrawOrder })
	for i, l := range c.layers {
		c.byID[l.ID] = i
	}
	return c, nil
}

// Layers returns all layers, topmost first.
func (c *Catalog) Layers() []Layer {
	return slices.Clone(c.layers)
}

func (c *Catalog) Layer(id string) (Layer, bool) {
	i, ok := c.byID[id]
	if !ok {
		return Layer{}, false
	}
	return c.layers[i], true
}

func (c *Catalog) Len() int { return len(c.layers) }

// Queryable returns the layers a spatial query should hit at zoom, topmost first.
// visible overrides the catalog default for layers the map knows about; it may be nil.
func (c *Catalog) Queryable(zoom float64, visible func(id string) (vis, known bool)) []Layer {
	var out []Layer
	for _, l := range c.layers {
		if !l.IsQueryable() || !l.InZoomRange(zoom) {
			continue
		}
		vis := l.IsVisible()
		if visible != nil {
			if v, known := visible(l.ID); known {
				vis = v
			}
		}
		if vis {
			out = append(out, l)
		}
	}
	return out
}
