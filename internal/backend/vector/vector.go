// Package vector wires the WebGL vector-tile backend: lon/lat maps with style sources and layers.
package vector

import (
	"fmt"
	"log/slog"
	"weak"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/mohammed-shakir/geoview/internal/adapter"
	advector "github.com/mohammed-shakir/geoview/internal/adapter/vector"
	"github.com/mohammed-shakir/geoview/internal/backend"
	"github.com/mohammed-shakir/geoview/internal/catalog"
	"github.com/mohammed-shakir/geoview/internal/highlight"
	hlvector "github.com/mohammed-shakir/geoview/internal/highlight/vector"
	"github.com/mohammed-shakir/geoview/internal/legend"
	lgvector "github.com/mohammed-shakir/geoview/internal/legend/vector"
	"github.com/mohammed-shakir/geoview/internal/mapview"
	mapvector "github.com/mohammed-shakir/geoview/internal/mapview/vector"
	"github.com/mohammed-shakir/geoview/internal/registry"
)

func init() {
	backend.Register(mapview.KindVector, New)
}

type Backend struct {
	log        *slog.Logger
	fetcher    *legend.Fetcher
	adapter    *advector.Adapter
	highlights *registry.Registry[mapvector.Map, *hlvector.Provider]
	legends    *registry.Registry[mapvector.Map, *lgvector.Provider]
}

var _ backend.Backend = (*Backend)(nil)

func New(deps backend.Deps) (backend.Backend, error) {
	log := deps.Logger.With("backend", string(mapview.KindVector))
	return &Backend{
		log:        log,
		fetcher:    deps.Legends,
		adapter:    advector.New(log),
		highlights: registry.New[mapvector.Map, *hlvector.Provider](),
		legends:    registry.New[mapvector.Map, *lgvector.Provider](),
	}, nil
}

func (b *Backend) Kind() mapview.Kind { return mapview.KindVector }

func (b *Backend) Adapter() adapter.Adapter { return b.adapter }

// style layer type and color paint property per renderer symbol type
var symbolStyle = map[string][2]string{
	"esriSFS": {"fill", "fill-color"},
	"esriSLS": {"line", "line-color"},
	"esriSMS": {"circle", "circle-color"},
	"fill":    {"fill", "fill-color"},
	"line":    {"line", "line-color"},
	"circle":  {"circle", "circle-color"},
}

// styleFor derives a style layer from a catalog renderer; ok is false when
// the renderer has no usable default symbol.
func styleFor(l catalog.Layer) (mapvector.StyleLayer, bool) {
	if len(l.Renderer) == 0 {
		return mapvector.StyleLayer{}, false
	}
	r, err := legend.FromMap(l.Renderer)
	if err != nil || r.DefaultSymbol == nil || r.DefaultSymbol.CSSColor == "" {
		return mapvector.StyleLayer{}, false
	}
	st, ok := symbolStyle[r.DefaultSymbol.Type]
	if !ok {
		return mapvector.StyleLayer{}, false
	}
	paint := map[string]any{st[1]: r.DefaultSymbol.CSSColor}
	if r.DefaultSymbol.Size > 0 && st[0] != "fill" {
		paint[st[0]+"-width"] = r.DefaultSymbol.Size
	}
	return mapvector.StyleLayer{ID: l.ID, Type: st[0], Source: l.ID, Paint: paint, Visible: l.IsVisible()}, true
}

func (b *Backend) NewHandle(cam backend.Camera, layers []catalog.Layer) (mapview.Handle, error) {
	if err := cam.Validate(); err != nil {
		return nil, err
	}
	m := mapvector.NewMap(cam.Width, cam.Height, orb.Point(cam.Center), cam.Zoom)
	// catalog lists layers topmost first; the style stack is bottom first
	for i := len(layers) - 1; i >= 0; i-- {
		l := layers[i]
		st, ok := styleFor(l)
		if !ok {
			m.SetLayerVisible(l.ID, l.IsVisible())
			continue
		}
		if err := m.AddSource(l.ID, geojson.NewFeatureCollection()); err != nil {
			return nil, fmt.Errorf("layer %s: %w", l.ID, err)
		}
		if err := m.AddLayer(st); err != nil {
			return nil, fmt.Errorf("layer %s: %w", l.ID, err)
		}
	}
	return m, nil
}

func (b *Backend) SetCamera(h mapview.Handle, cam backend.Camera) error {
	m, ok := h.(*mapvector.Map)
	if !ok || m == nil {
		return fmt.Errorf("%w: %T", mapview.ErrNotReady, h)
	}
	if err := cam.Validate(); err != nil {
		return err
	}
	m.SetSize(cam.Width, cam.Height)
	m.SetCamera(orb.Point(cam.Center), cam.Zoom)
	return nil
}

func vmap(h mapview.Handle) *mapvector.Map {
	m, _ := h.(*mapvector.Map)
	return m
}

func (b *Backend) Highlighter(h mapview.Handle) highlight.Provider {
	return b.highlights.Get(vmap(h), func(w weak.Pointer[mapvector.Map]) *hlvector.Provider {
		return hlvector.New(w, b.log)
	})
}

func (b *Backend) Legend(h mapview.Handle) legend.Provider {
	return b.legends.Get(vmap(h), func(w weak.Pointer[mapvector.Map]) *lgvector.Provider {
		return lgvector.New(w, b.fetcher, b.log)
	})
}

func (b *Backend) Providers() (int, int) {
	return b.highlights.Len(), b.legends.Len()
}
