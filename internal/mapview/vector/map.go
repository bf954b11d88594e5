// Package vector models the WebGL vector-tile map: a lon/lat camera at a
// fractional zoom over 512 px mercator tiles, with style sources and layers
// keyed by id.
package vector

import (
	"fmt"
	"math"
	"slices"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/project"

	"github.com/mohammed-shakir/geoview/internal/mapview"
)

const (
	SpatialReference = "EPSG:4326"
	TileSize         = 512
	MaxZoom          = 22

	maxLat = 85.0511287798066
	// half the mercator world width in meters
	originShift = 20037508.342789244
)

// StyleLayer is a rendered layer bound to a source.
type StyleLayer struct {
	ID      string         `json:"id"`
	Type    string         `json:"type"` // fill, line, circle, symbol
	Source  string         `json:"source"`
	Paint   map[string]any `json:"paint,omitempty"`
	Visible bool           `json:"visible"`
}

type Map struct {
	mu     sync.RWMutex
	width  int
	height int
	center orb.Point
	zoom   float64

	sources map[string]*geojson.FeatureCollection
	layers  []*StyleLayer
}

func NewMap(width, height int, center orb.Point, zoom float64) *Map {
	return &Map{
		width:   width,
		height:  height,
		center:  center,
		zoom:    zoom,
		sources: make(map[string]*geojson.FeatureCollection),
	}
}

func (m *Map) Kind() mapview.Kind { return mapview.KindVector }

func (m *Map) ready() error {
	if m.width <= 0 || m.height <= 0 {
		return fmt.Errorf("%w: size %dx%d", mapview.ErrNotReady, m.width, m.height)
	}
	if math.IsNaN(m.zoom) || m.zoom < 0 || m.zoom > MaxZoom {
		return fmt.Errorf("%w: zoom %g", mapview.ErrNotReady, m.zoom)
	}
	return nil
}

func worldSize(zoom float64) float64 {
	return TileSize * math.Exp2(zoom)
}

// worldPixel returns the global pixel position of a lon/lat at zoom.
func worldPixel(ll orb.Point, zoom float64) orb.Point {
	ll[1] = max(-maxLat, min(maxLat, ll[1]))
	m := project.WGS84.ToMercator(ll)
	ws := worldSize(zoom)
	return orb.Point{
		(m[0] + originShift) / (2 * originShift) * ws,
		(originShift - m[1]) / (2 * originShift) * ws,
	}
}

func lonLatAt(px orb.Point, zoom float64) orb.Point {
	ws := worldSize(zoom)
	m := orb.Point{
		px[0]/ws*2*originShift - originShift,
		originShift - px[1]/ws*2*originShift,
	}
	return project.Mercator.ToWGS84(m)
}

// Project converts lon/lat to a screen pixel.
func (m *Map) Project(ll orb.Point) (orb.Point, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.ready(); err != nil {
		return orb.Point{}, err
	}
	c := worldPixel(m.center, m.zoom)
	p := worldPixel(ll, m.zoom)
	return orb.Point{
		p[0] - c[0] + float64(m.width)/2,
		p[1] - c[1] + float64(m.height)/2,
	}, nil
}

// Unproject converts a screen pixel to lon/lat.
func (m *Map) Unproject(sp orb.Point) (orb.Point, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.ready(); err != nil {
		return orb.Point{}, err
	}
	c := worldPixel(m.center, m.zoom)
	px := orb.Point{
		c[0] + sp[0] - float64(m.width)/2,
		c[1] + sp[1] - float64(m.height)/2,
	}
	return lonLatAt(px, m.zoom), nil
}

// Bounds returns the visible lon/lat bounds.
func (m *Map) Bounds() (orb.Bound, bool) {
	nw, err := m.Unproject(orb.Point{0, 0})
	if err != nil {
		return orb.Bound{}, false
	}
	w, h := m.Size()
	se, err := m.Unproject(orb.Point{float64(w), float64(h)})
	if err != nil {
		return orb.Bound{}, false
	}
	return orb.Bound{Min: orb.Point{nw[0], se[1]}, Max: orb.Point{se[0], nw[1]}}, true
}

func (m *Map) Zoom() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.zoom
}

func (m *Map) Center() orb.Point {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.center
}

func (m *Map) Size() (int, int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.width, m.height
}

func (m *Map) SetCamera(center orb.Point, zoom float64) {
	m.mu.Lock()
	m.center = center
	m.zoom = zoom
	m.mu.Unlock()
}

func (m *Map) SetSize(width, height int) {
	m.mu.Lock()
	m.width, m.height = width, height
	m.mu.Unlock()
}

// FitBounds centers on b and picks the largest zoom that shows all of it.
func (m *Map) FitBounds(b orb.Bound) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.width <= 0 || m.height <= 0 {
		return fmt.Errorf("%w: no size", mapview.ErrNotReady)
	}
	nw := worldPixel(orb.Point{b.Min[0], b.Max[1]}, 0)
	se := worldPixel(orb.Point{b.Max[0], b.Min[1]}, 0)
	dx, dy := se[0]-nw[0], se[1]-nw[1]
	zoom := float64(MaxZoom)
	if dx > 0 || dy > 0 {
		zx := math.Log2(float64(m.width) / max(dx, 1e-12))
		zy := math.Log2(float64(m.height) / max(dy, 1e-12))
		zoom = max(0, min(float64(MaxZoom), zx, zy))
	}
	m.center = lonLatAt(orb.Point{(nw[0] + se[0]) / 2, (nw[1] + se[1]) / 2}, 0)
	m.zoom = zoom
	return nil
}

func (m *Map) State() mapview.ViewState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return mapview.ViewState{
		Width:  m.width,
		Height: m.height,
		Center: [2]float64{m.center[0], m.center[1]},
		Zoom:   m.zoom,
		CRS:    SpatialReference,
	}
}

func (m *Map) AddSource(id string, fc *geojson.FeatureCollection) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sources[id]; ok {
		return fmt.Errorf("source %q already exists", id)
	}
	m.sources[id] = fc
	return nil
}

func (m *Map) Source(id string) (*geojson.FeatureCollection, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	fc, ok := m.sources[id]
	return fc, ok
}

// RemoveSource fails while a layer still references the source.
func (m *Map) RemoveSource(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.layers {
		if l.Source == id {
			return fmt.Errorf("source %q in use by layer %q", id, l.ID)
		}
	}
	delete(m.sources, id)
	return nil
}

func (m *Map) AddLayer(l StyleLayer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if slices.ContainsFunc(m.layers, func(x *StyleLayer) bool { return x.ID == l.ID }) {
		return fmt.Errorf("layer %q already exists", l.ID)
	}
	if l.Source != "" {
		if _, ok := m.sources[l.Source]; !ok {
			return fmt.Errorf("layer %q references missing source %q", l.ID, l.Source)
		}
	}
	cp := l
	m.layers = append(m.layers, &cp)
	return nil
}

func (m *Map) RemoveLayer(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.layers)
	m.layers = slices.DeleteFunc(m.layers, func(l *StyleLayer) bool { return l.ID == id })
	return len(m.layers) != n
}

func (m *Map) Layer(id string) (StyleLayer, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, l := range m.layers {
		if l.ID == id {
			return *l, true
		}
	}
	return StyleLayer{}, false
}

// Layers returns the style layers in draw order, bottom first.
func (m *Map) Layers() []StyleLayer {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]StyleLayer, len(m.layers))
	for i, l := range m.layers {
		out[i] = *l
	}
	return out
}

func (m *Map) SourceIDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.sources))
	for id := range m.sources {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (m *Map) LayerVisible(id string) (bool, bool) {
	l, ok := m.Layer(id)
	return l.Visible, ok
}

// SetLayerVisible toggles an existing style layer or registers a data layer
// placeholder with no source.
func (m *Map) SetLayerVisible(id string, visible bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.layers {
		if l.ID == id {
			l.Visible = visible
			return
		}
	}
	m.layers = append(m.layers, &StyleLayer{ID: id, Visible: visible})
}
