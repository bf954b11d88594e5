// Package vector resolves legends from style layer paint on a *vector.Map.
package vector

import (
	"context"
	"log/slog"
	"weak"

	"github.com/mohammed-shakir/geoview/internal/legend"
	mapvector "github.com/mohammed-shakir/geoview/internal/mapview/vector"
)

type Provider struct {
	m       weak.Pointer[mapvector.Map]
	fetcher *legend.Fetcher
	log     *slog.Logger
}

var _ legend.Provider = (*Provider)(nil)

func New(m weak.Pointer[mapvector.Map], fetcher *legend.Fetcher, log *slog.Logger) *Provider {
	if log == nil {
		log = slog.Default()
	}
	return &Provider{m: m, fetcher: fetcher, log: log.With("component", "legend", "backend", "vector")}
}

// paint property holding the primary color per layer type
var colorProperty = map[string]string{
	"fill":   "fill-color",
	"line":   "line-color",
	"circle": "circle-color",
	"symbol": "icon-color",
}

func fromStyle(l mapvector.StyleLayer) *legend.Renderer {
	prop, ok := colorProperty[l.Type]
	if !ok {
		return nil
	}
	color, ok := l.Paint[prop].(string)
	if !ok {
		return nil
	}
	sym := &legend.Symbol{Type: l.Type, CSSColor: color}
	if w, ok := l.Paint[l.Type+"-width"].(float64); ok {
		sym.Size = w
	}
	return &legend.Renderer{Type: "simple", DefaultSymbol: sym, DefaultLabel: l.ID, Source: "map"}
}

// GetRenderer reads the style layer's paint, falling back to the service
// legend entry named fallbackLayerName.
func (p *Provider) GetRenderer(ctx context.Context, layerID, fallbackURL, fallbackLayerName string) *legend.Renderer {
	if m := p.m.Value(); m != nil {
		if l, ok := m.Layer(layerID); ok {
			if r := fromStyle(l); r != nil {
				return r
			}
		}
	} else {
		p.log.Error("legend: map unavailable", "layer", layerID)
	}
	if fallbackURL == "" || p.fetcher == nil {
		return nil
	}
	if fallbackLayerName == "" {
		fallbackLayerName = layerID
	}
	r, err := p.fetcher.ServiceLegend(ctx, fallbackURL, fallbackLayerName)
	if err != nil {
		p.log.Warn("legend fallback failed", "layer", layerID, "url", fallbackURL, "err", err)
		return nil
	}
	return r
}
