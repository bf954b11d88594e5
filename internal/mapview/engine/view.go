// Package engine models the GIS-engine map view: a projected (EPSG:3857)
// camera with a reported resolution and an id-keyed graphics layer.
package engine

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/paulmach/orb"

	"github.com/mohammed-shakir/geoview/internal/mapview"
)

const (
	SpatialReference = "EPSG:3857"

	// resolution at zoom 0 for 256 px tiles
	zoom0Resolution = 156543.03392804097
)

type Symbol struct {
	Type         string     `json:"type"`
	Color        [4]float64 `json:"color"`
	OutlineColor [4]float64 `json:"outlineColor"`
	OutlineWidth float64    `json:"outlineWidth"`
	Size         float64    `json:"size,omitempty"`
}

type Graphic struct {
	ID         string         `json:"id"`
	Geometry   orb.Geometry   `json:"-"`
	Symbol     Symbol         `json:"symbol"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// Layer is a data layer known to the view.
type Layer struct {
	ID       string
	Title    string
	Visible  bool
	Renderer map[string]any
}

type View struct {
	mu         sync.RWMutex
	width      int
	height     int
	center     orb.Point
	resolution float64

	graphics []*Graphic
	layers   map[string]*Layer
	seq      atomic.Uint64
}

func NewView(width, height int, center orb.Point, resolution float64) *View {
	return &View{
		width:      width,
		height:     height,
		center:     center,
		resolution: resolution,
		layers:     make(map[string]*Layer),
	}
}

func (v *View) Kind() mapview.Kind { return mapview.KindEngine }

func (v *View) ready() error {
	if v.width <= 0 || v.height <= 0 || !(v.resolution > 0) {
		return fmt.Errorf("%w: size %dx%d resolution %g", mapview.ErrNotReady, v.width, v.height, v.resolution)
	}
	return nil
}

// ToMap converts a screen pixel to a map point in SpatialReference.
func (v *View) ToMap(sx, sy float64) (orb.Point, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if err := v.ready(); err != nil {
		return orb.Point{}, err
	}
	x := v.center[0] + (sx-float64(v.width)/2)*v.resolution
	y := v.center[1] - (sy-float64(v.height)/2)*v.resolution
	return orb.Point{x, y}, nil
}

// ToScreen is the inverse of ToMap.
func (v *View) ToScreen(p orb.Point) (float64, float64, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if err := v.ready(); err != nil {
		return 0, 0, err
	}
	sx := (p[0]-v.center[0])/v.resolution + float64(v.width)/2
	sy := (v.center[1]-p[1])/v.resolution + float64(v.height)/2
	return sx, sy, nil
}

// Extent returns the visible map extent. ok is false before the view has a size.
func (v *View) Extent() (orb.Bound, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.ready() != nil {
		return orb.Bound{}, false
	}
	hw := float64(v.width) / 2 * v.resolution
	hh := float64(v.height) / 2 * v.resolution
	return orb.Bound{
		Min: orb.Point{v.center[0] - hw, v.center[1] - hh},
		Max: orb.Point{v.center[0] + hw, v.center[1] + hh},
	}, true
}

// Resolution is the reported map units per pixel.
func (v *View) Resolution() float64 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.resolution
}

func (v *View) Zoom() float64 {
	r := v.Resolution()
	if !(r > 0) {
		return 0
	}
	return math.Log2(zoom0Resolution / r)
}

func (v *View) Center() orb.Point {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.center
}

func (v *View) Size() (int, int) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.width, v.height
}

func (v *View) SetCamera(center orb.Point, resolution float64) {
	v.mu.Lock()
	v.center = center
	v.resolution = resolution
	v.mu.Unlock()
}

func (v *View) SetZoom(zoom float64) {
	v.mu.Lock()
	v.resolution = zoom0Resolution / math.Exp2(zoom)
	v.mu.Unlock()
}

func (v *View) SetSize(width, height int) {
	v.mu.Lock()
	v.width, v.height = width, height
	v.mu.Unlock()
}

// GoTo centers the view on extent and picks the resolution that fits it.
func (v *View) GoTo(extent orb.Bound) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.width <= 0 || v.height <= 0 {
		return fmt.Errorf("%w: no size", mapview.ErrNotReady)
	}
	res := max(
		(extent.Max[0]-extent.Min[0])/float64(v.width),
		(extent.Max[1]-extent.Min[1])/float64(v.height),
	)
	if !(res > 0) {
		res = v.resolution
	}
	v.center = extent.Center()
	v.resolution = res
	return nil
}

func (v *View) State() mapview.ViewState {
	v.mu.RLock()
	defer v.mu.RUnlock()
	zoom := 0.0
	if v.resolution > 0 {
		zoom = math.Log2(zoom0Resolution / v.resolution)
	}
	return mapview.ViewState{
		Width:      v.width,
		Height:     v.height,
		Center:     [2]float64{v.center[0], v.center[1]},
		Zoom:       zoom,
		Resolution: v.resolution,
		CRS:        SpatialReference,
	}
}

// AddGraphics appends gs to the graphics layer, assigning ids where missing,
// and returns the ids in order.
func (v *View) AddGraphics(gs ...*Graphic) []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	ids := make([]string, 0, len(gs))
	for _, g := range gs {
		if g == nil {
			continue
		}
		if g.ID == "" {
			g.ID = "g" + strconv.FormatUint(v.seq.Add(1), 10)
		}
		v.graphics = append(v.graphics, g)
		ids = append(ids, g.ID)
	}
	return ids
}

// RemoveGraphics drops graphics by id and returns how many were removed.
func (v *View) RemoveGraphics(ids ...string) int {
	if len(ids) == 0 {
		return 0
	}
	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	before := len(v.graphics)
	v.graphics = slices.DeleteFunc(v.graphics, func(g *Graphic) bool {
		_, ok := drop[g.ID]
		return ok
	})
	return before - len(v.graphics)
}

// Graphics returns a snapshot of the graphics layer.
func (v *View) Graphics() []*Graphic {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return slices.Clone(v.graphics)
}

func (v *View) AddLayer(l Layer) {
	v.mu.Lock()
	defer v.mu.Unlock()
	cp := l
	v.layers[l.ID] = &cp
}

func (v *View) Layer(id string) (Layer, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	l, ok := v.layers[id]
	if !ok {
		return Layer{}, false
	}
	return *l, true
}

func (v *View) LayerVisible(id string) (bool, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	l, ok := v.layers[id]
	if !ok {
		return false, false
	}
	return l.Visible, true
}

func (v *View) SetLayerVisible(id string, visible bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if l, ok := v.layers[id]; ok {
		l.Visible = visible
		return
	}
	v.layers[id] = &Layer{ID: id, Visible: visible}
}
