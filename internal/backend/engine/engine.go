// Package engine wires the GIS-engine backend: EPSG:3857 views with a graphics layer.
package engine

import (
	"fmt"
	"log/slog"
	"weak"

	"github.com/paulmach/orb"

	"github.com/mohammed-shakir/geoview/internal/adapter"
	adengine "github.com/mohammed-shakir/geoview/internal/adapter/engine"
	"github.com/mohammed-shakir/geoview/internal/backend"
	"github.com/mohammed-shakir/geoview/internal/catalog"
	"github.com/mohammed-shakir/geoview/internal/core/model"
	"github.com/mohammed-shakir/geoview/internal/crs"
	"github.com/mohammed-shakir/geoview/internal/highlight"
	hlengine "github.com/mohammed-shakir/geoview/internal/highlight/engine"
	"github.com/mohammed-shakir/geoview/internal/legend"
	lgengine "github.com/mohammed-shakir/geoview/internal/legend/engine"
	"github.com/mohammed-shakir/geoview/internal/mapview"
	mapengine "github.com/mohammed-shakir/geoview/internal/mapview/engine"
	"github.com/mohammed-shakir/geoview/internal/registry"
)

func init() {
	backend.Register(mapview.KindEngine, New)
}

type Backend struct {
	log        *slog.Logger
	fetcher    *legend.Fetcher
	adapter    *adengine.Adapter
	highlights *registry.Registry[mapengine.View, *hlengine.Provider]
	legends    *registry.Registry[mapengine.View, *lgengine.Provider]
}

var _ backend.Backend = (*Backend)(nil)

func New(deps backend.Deps) (backend.Backend, error) {
	log := deps.Logger.With("backend", string(mapview.KindEngine))
	return &Backend{
		log:        log,
		fetcher:    deps.Legends,
		adapter:    adengine.New(log),
		highlights: registry.New[mapengine.View, *hlengine.Provider](),
		legends:    registry.New[mapengine.View, *lgengine.Provider](),
	}, nil
}

func (b *Backend) Kind() mapview.Kind { return mapview.KindEngine }

func (b *Backend) Adapter() adapter.Adapter { return b.adapter }

func center(cam backend.Camera) (orb.Point, error) {
	p, ok := crs.ConvertModelPoint(model.Point{X: cam.Center[0], Y: cam.Center[1], CRS: crs.WGS84}, mapengine.SpatialReference)
	if !ok {
		return orb.Point{}, fmt.Errorf("%w: center %v", backend.ErrInvalidCamera, cam.Center)
	}
	return orb.Point{p.X, p.Y}, nil
}

func (b *Backend) NewHandle(cam backend.Camera, layers []catalog.Layer) (mapview.Handle, error) {
	if err := cam.Validate(); err != nil {
		return nil, err
	}
	c, err := center(cam)
	if err != nil {
		return nil, err
	}
	v := mapengine.NewView(cam.Width, cam.Height, c, 0)
	v.SetZoom(cam.Zoom)
	for _, l := range layers {
		v.AddLayer(mapengine.Layer{ID: l.ID, Title: l.Title, Visible: l.IsVisible(), Renderer: l.Renderer})
	}
	return v, nil
}

func (b *Backend) SetCamera(h mapview.Handle, cam backend.Camera) error {
	v, ok := h.(*mapengine.View)
	if !ok || v == nil {
		return fmt.Errorf("%w: %T", mapview.ErrNotReady, h)
	}
	if err := cam.Validate(); err != nil {
		return err
	}
	c, err := center(cam)
	if err != nil {
		return err
	}
	v.SetSize(cam.Width, cam.Height)
	v.SetCamera(c, v.Resolution())
	v.SetZoom(cam.Zoom)
	return nil
}

func view(h mapview.Handle) *mapengine.View {
	v, _ := h.(*mapengine.View)
	return v
}

func (b *Backend) Highlighter(h mapview.Handle) highlight.Provider {
	return b.highlights.Get(view(h), func(w weak.Pointer[mapengine.View]) *hlengine.Provider {
		return hlengine.New(w, b.log)
	})
}

func (b *Backend) Legend(h mapview.Handle) legend.Provider {
	return b.legends.Get(view(h), func(w weak.Pointer[mapengine.View]) *lgengine.Provider {
		return lgengine.New(w, b.fetcher, b.log)
	})
}

func (b *Backend) Providers() (int, int) {
	return b.highlights.Len(), b.legends.Len()
}
