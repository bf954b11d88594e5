// Package backend selects the adapter, highlight and legend implementations
// for one map backend. The choice is made once at startup from MAP_BACKEND.
package backend

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/paulmach/orb"

	"github.com/mohammed-shakir/geoview/internal/adapter"
	"github.com/mohammed-shakir/geoview/internal/catalog"
	"github.com/mohammed-shakir/geoview/internal/core/model"
	"github.com/mohammed-shakir/geoview/internal/crs"
	"github.com/mohammed-shakir/geoview/internal/highlight"
	"github.com/mohammed-shakir/geoview/internal/legend"
	"github.com/mohammed-shakir/geoview/internal/mapview"
	mapengine "github.com/mohammed-shakir/geoview/internal/mapview/engine"
	mapvector "github.com/mohammed-shakir/geoview/internal/mapview/vector"
)

const MaxZoom = 22

var ErrInvalidCamera = errors.New("invalid camera")

// Camera is a backend-neutral camera; Center is lon/lat.
type Camera struct {
	Width  int        `json:"width"`
	Height int        `json:"height"`
	Center [2]float64 `json:"center"`
	Zoom   float64    `json:"zoom"`
}

func (c Camera) Validate() error {
	switch {
	case c.Width <= 0 || c.Height <= 0:
		return fmt.Errorf("%w: size %dx%d", ErrInvalidCamera, c.Width, c.Height)
	case math.IsNaN(c.Zoom) || c.Zoom < 0 || c.Zoom > MaxZoom:
		return fmt.Errorf("%w: zoom %g", ErrInvalidCamera, c.Zoom)
	case math.Abs(c.Center[0]) > 180 || math.Abs(c.Center[1]) > 85.0511287798066:
		return fmt.Errorf("%w: center %v", ErrInvalidCamera, c.Center)
	}
	return nil
}

type Deps struct {
	Logger  *slog.Logger
	Legends *legend.Fetcher
}

type Backend interface {
	Kind() mapview.Kind
	Adapter() adapter.Adapter
	// NewHandle creates a map handle and registers the catalog layers on it.
	NewHandle(cam Camera, layers []catalog.Layer) (mapview.Handle, error)
	SetCamera(h mapview.Handle, cam Camera) error
	// Highlighter returns the provider bound to h; repeated calls with the
	// same handle return the same provider.
	Highlighter(h mapview.Handle) highlight.Provider
	Legend(h mapview.Handle) legend.Provider
	// Providers reports how many maps currently have cached providers.
	Providers() (highlights, legends int)
}

type Factory func(deps Deps) (Backend, error)

var (
	mu  sync.RWMutex
	reg = map[mapview.Kind]Factory{}
)

func Register(kind mapview.Kind, f Factory) {
	mu.Lock()
	reg[kind] = f
	mu.Unlock()
}

// New builds the backend named name. Unknown names fall back to the engine backend.
func New(name string, deps Deps) (Backend, error) {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	kind, err := mapview.ParseKind(name)
	if err != nil {
		deps.Logger.Warn("unknown map backend; falling back to engine", "backend", name)
		kind = mapview.KindEngine
	}
	mu.RLock()
	f, ok := reg[kind]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no factory registered for backend %q", kind)
	}
	return f(deps)
}

// ZoomTo frames b on h. b may be in any supported CRS; it is converted to the
// handle's native CRS first.
func ZoomTo(h mapview.Handle, b model.BBox) error {
	if h == nil {
		return mapview.ErrNotReady
	}
	switch h.Kind() {
	case mapview.KindEngine:
		v, ok := h.(*mapengine.View)
		if !ok || v == nil {
			return fmt.Errorf("%w: engine handle of type %T", mapview.ErrNotReady, h)
		}
		nb, ok := crs.ConvertModelBBox(b, mapengine.SpatialReference)
		if !ok {
			return fmt.Errorf("zoom to %s: conversion failed", b)
		}
		return v.GoTo(toBound(nb))
	case mapview.KindVector:
		m, ok := h.(*mapvector.Map)
		if !ok || m == nil {
			return fmt.Errorf("%w: vector handle of type %T", mapview.ErrNotReady, h)
		}
		nb, ok := crs.ConvertModelBBox(b, mapvector.SpatialReference)
		if !ok {
			return fmt.Errorf("zoom to %s: conversion failed", b)
		}
		return m.FitBounds(toBound(nb))
	default:
		return fmt.Errorf("zoom to: unknown backend %q", h.Kind())
	}
}

func toBound(b model.BBox) orb.Bound {
	return orb.Bound{Min: orb.Point{b.X1, b.Y1}, Max: orb.Point{b.X2, b.Y2}}
}
