// Package engine draws highlights as graphics on an *engine.View.
package engine

import (
	"fmt"
	"log/slog"
	"sync"
	"weak"

	"github.com/paulmach/orb"

	"github.com/mohammed-shakir/geoview/internal/core/model"
	"github.com/mohammed-shakir/geoview/internal/core/observability"
	"github.com/mohammed-shakir/geoview/internal/crs"
	"github.com/mohammed-shakir/geoview/internal/highlight"
	mapengine "github.com/mohammed-shakir/geoview/internal/mapview/engine"
)

const backendName = "engine"

type Provider struct {
	view weak.Pointer[mapengine.View]
	log  *slog.Logger

	mu    sync.Mutex
	index highlight.Index[string]
	pins  []string
}

var _ highlight.Provider = (*Provider)(nil)

// New binds a provider to view without keeping it alive.
func New(view weak.Pointer[mapengine.View], log *slog.Logger) *Provider {
	if log == nil {
		log = slog.Default()
	}
	return &Provider{view: view, log: log.With("component", "highlight", "backend", backendName)}
}

func (p *Provider) target() (*mapengine.View, bool) {
	v := p.view.Value()
	if v == nil {
		p.log.Error("highlight: map view unavailable")
		return nil, false
	}
	return v, true
}

func symbolFor(class highlight.Class, st highlight.Style) mapengine.Symbol {
	switch class {
	case highlight.ClassPoint:
		return mapengine.Symbol{
			Type:         "simple-marker",
			Color:        st.OutlineColor,
			OutlineColor: st.OutlineColor,
			OutlineWidth: st.OutlineWidth,
			Size:         st.PointSize,
		}
	case highlight.ClassLine:
		return mapengine.Symbol{
			Type:         "simple-line",
			Color:        st.OutlineColor,
			OutlineWidth: st.OutlineWidth,
		}
	default:
		return mapengine.Symbol{
			Type:         "simple-fill",
			Color:        st.FillColor,
			OutlineColor: st.OutlineColor,
			OutlineWidth: st.OutlineWidth,
		}
	}
}

// prepare converts f into display coordinates.
func (p *Provider) prepare(f *model.Feature, sourceCRS string) (orb.Geometry, highlight.Class, error) {
	if f == nil || f.Geometry == nil {
		return nil, "", fmt.Errorf("feature without geometry")
	}
	class, ok := highlight.ClassOf(f.Geometry.Type)
	if !ok {
		return nil, "", fmt.Errorf("unsupported geometry type %q", f.Geometry.Type)
	}
	if sourceCRS == "" {
		sourceCRS = crs.WGS84
	}
	g := crs.ConvertGeometry(f.Geometry, sourceCRS, mapengine.SpatialReference)
	if g == nil {
		return nil, "", fmt.Errorf("geometry conversion from %s failed", sourceCRS)
	}
	og, err := highlight.ToOrb(g)
	if err != nil {
		return nil, "", err
	}
	return og, class, nil
}

func (p *Provider) HighlightFeature(f *model.Feature, sourceCRS, title string, opts *highlight.Options) bool {
	v, ok := p.target()
	if !ok {
		return false
	}
	g, class, err := p.prepare(f, sourceCRS)
	if err != nil {
		p.log.Warn("highlight feature skipped", "title", title, "err", err)
		return false
	}
	graphic := &mapengine.Graphic{
		Geometry:   g,
		Symbol:     symbolFor(class, opts.Resolve()),
		Attributes: f.Properties,
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	ids := v.AddGraphics(graphic)
	p.index.Add(title, ids...)
	observability.AddHighlights(backendName, len(ids))
	return true
}

// HighlightFeatureCollection adds one graphic per geometry class holding every
// converted feature of that class.
func (p *Provider) HighlightFeatureCollection(fs []*model.Feature, sourceCRS, title string, opts *highlight.Options) bool {
	v, ok := p.target()
	if !ok {
		return false
	}
	groups := make(map[highlight.Class]orb.Collection)
	skipped := 0
	for _, f := range fs {
		g, class, err := p.prepare(f, sourceCRS)
		if err != nil {
			skipped++
			p.log.Debug("collection member skipped", "title", title, "err", err)
			continue
		}
		groups[class] = append(groups[class], g)
	}
	if skipped > 0 {
		p.log.Warn("features skipped while highlighting", "title", title, "skipped", skipped, "total", len(fs))
	}
	if len(groups) == 0 {
		return false
	}

	st := opts.Resolve()
	graphics := make([]*mapengine.Graphic, 0, len(groups))
	for _, class := range highlight.Classes {
		members, ok := groups[class]
		if !ok {
			continue
		}
		graphics = append(graphics, &mapengine.Graphic{
			Geometry:   members,
			Symbol:     symbolFor(class, st),
			Attributes: map[string]any{"class": string(class), "count": len(members)},
		})
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	ids := v.AddGraphics(graphics...)
	p.index.Add(title, ids...)
	observability.AddHighlights(backendName, len(ids))
	return true
}

func (p *Provider) ClearGraphics(title string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var ids []string
	if title == "" {
		ids = append(p.index.TakeAll(), p.pins...)
		p.pins = nil
	} else {
		ids = p.index.Take(title)
	}
	if len(ids) == 0 {
		return
	}
	observability.AddHighlights(backendName, -len(ids))
	if v := p.view.Value(); v != nil {
		v.RemoveGraphics(ids...)
	}
}

func (p *Provider) CreatePinGraphic(lat, lon float64) bool {
	v, ok := p.target()
	if !ok {
		return false
	}
	pt, ok := crs.ConvertModelPoint(model.Point{X: lon, Y: lat, CRS: crs.WGS84}, mapengine.SpatialReference)
	if !ok {
		return false
	}
	st := highlight.DefaultStyle()
	g := &mapengine.Graphic{
		Geometry: orb.Point{pt.X, pt.Y},
		Symbol: mapengine.Symbol{
			Type:         "picture-marker",
			Color:        highlight.Color{226, 119, 40, 1},
			OutlineColor: highlight.Color{255, 255, 255, 1},
			OutlineWidth: 1,
			Size:         st.PointSize * 2,
		},
		Attributes: map[string]any{"lat": lat, "lon": lon},
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.pins = append(p.pins, v.AddGraphics(g)...)
	observability.AddHighlights(backendName, 1)
	return true
}

func (p *Provider) Tracked() map[string]int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.index.Counts()
}
