// Package engine resolves legends from layer renderers on an *engine.View.
package engine

import (
	"context"
	"log/slog"
	"weak"

	"github.com/mohammed-shakir/geoview/internal/legend"
	mapengine "github.com/mohammed-shakir/geoview/internal/mapview/engine"
)

type Provider struct {
	view    weak.Pointer[mapengine.View]
	fetcher *legend.Fetcher
	log     *slog.Logger
}

var _ legend.Provider = (*Provider)(nil)

func New(view weak.Pointer[mapengine.View], fetcher *legend.Fetcher, log *slog.Logger) *Provider {
	if log == nil {
		log = slog.Default()
	}
	return &Provider{view: view, fetcher: fetcher, log: log.With("component", "legend", "backend", "engine")}
}

// GetRenderer prefers the layer's own renderer and falls back to the layer
// metadata at fallbackURL. fallbackLayerName is not needed by this backend.
func (p *Provider) GetRenderer(ctx context.Context, layerID, fallbackURL, _ string) *legend.Renderer {
	if v := p.view.Value(); v != nil {
		if l, ok := v.Layer(layerID); ok && len(l.Renderer) > 0 {
			r, err := legend.FromMap(l.Renderer)
			if err == nil {
				return r
			}
			p.log.Warn("layer renderer unreadable", "layer", layerID, "err", err)
		}
	} else {
		p.log.Error("legend: map view unavailable", "layer", layerID)
	}
	if fallbackURL == "" || p.fetcher == nil {
		return nil
	}
	r, err := p.fetcher.LayerRenderer(ctx, fallbackURL)
	if err != nil {
		p.log.Warn("legend fallback failed", "layer", layerID, "url", fallbackURL, "err", err)
		return nil
	}
	return r
}
