// Package vector draws highlights as GeoJSON sources and style layers on a
// *vector.Map.
package vector

import (
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"weak"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/mohammed-shakir/geoview/internal/core/model"
	"github.com/mohammed-shakir/geoview/internal/core/observability"
	"github.com/mohammed-shakir/geoview/internal/crs"
	"github.com/mohammed-shakir/geoview/internal/highlight"
	mapvector "github.com/mohammed-shakir/geoview/internal/mapview/vector"
)

const backendName = "vector"

// entry is one source plus the style layers drawing it.
type entry struct {
	source string
	layers []string
}

type Provider struct {
	m   weak.Pointer[mapvector.Map]
	log *slog.Logger
	seq atomic.Uint64

	mu    sync.Mutex
	index highlight.Index[entry]
	pins  []entry
}

var _ highlight.Provider = (*Provider)(nil)

func New(m weak.Pointer[mapvector.Map], log *slog.Logger) *Provider {
	if log == nil {
		log = slog.Default()
	}
	return &Provider{m: m, log: log.With("component", "highlight", "backend", backendName)}
}

func (p *Provider) target() (*mapvector.Map, bool) {
	m := p.m.Value()
	if m == nil {
		p.log.Error("highlight: map unavailable")
		return nil, false
	}
	return m, true
}

func (p *Provider) nextID(prefix string) string {
	return prefix + "-" + strconv.FormatUint(p.seq.Add(1), 10)
}

func (p *Provider) toFeature(f *model.Feature, sourceCRS string) (*geojson.Feature, highlight.Class, error) {
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
	g := crs.ConvertGeometry(f.Geometry, sourceCRS, mapvector.SpatialReference)
	if g == nil {
		return nil, "", fmt.Errorf("geometry conversion from %s failed", sourceCRS)
	}
	og, err := highlight.ToOrb(g)
	if err != nil {
		return nil, "", err
	}
	gf := geojson.NewFeature(og)
	gf.ID = f.ID
	for k, v := range f.Properties {
		gf.Properties[k] = v
	}
	return gf, class, nil
}

func styleLayers(id, source string, class highlight.Class, st highlight.Style) []mapvector.StyleLayer {
	switch class {
	case highlight.ClassPoint:
		return []mapvector.StyleLayer{{
			ID: id + "-circle", Type: "circle", Source: source, Visible: true,
			Paint: map[string]any{
				"circle-radius":       st.PointSize / 2,
				"circle-color":        st.OutlineColor.CSS(),
				"circle-stroke-color": st.OutlineColor.CSS(),
				"circle-stroke-width": 1,
			},
		}}
	case highlight.ClassLine:
		return []mapvector.StyleLayer{{
			ID: id + "-line", Type: "line", Source: source, Visible: true,
			Paint: map[string]any{
				"line-color": st.OutlineColor.CSS(),
				"line-width": st.OutlineWidth,
			},
		}}
	default:
		return []mapvector.StyleLayer{
			{
				ID: id + "-fill", Type: "fill", Source: source, Visible: true,
				Paint: map[string]any{"fill-color": st.FillColor.CSS()},
			},
			{
				ID: id + "-outline", Type: "line", Source: source, Visible: true,
				Paint: map[string]any{
					"line-color": st.OutlineColor.CSS(),
					"line-width": st.OutlineWidth,
				},
			},
		}
	}
}

// draw adds one source and its layers. A layer failure rolls the source back.
func (p *Provider) draw(m *mapvector.Map, fc *geojson.FeatureCollection, class highlight.Class, st highlight.Style) (entry, error) {
	id := p.nextID("highlight-" + string(class))
	if err := m.AddSource(id, fc); err != nil {
		return entry{}, err
	}
	e := entry{source: id}
	for _, l := range styleLayers(id, id, class, st) {
		if err := m.AddLayer(l); err != nil {
			p.remove(m, e)
			return entry{}, err
		}
		e.layers = append(e.layers, l.ID)
	}
	return e, nil
}

func (p *Provider) remove(m *mapvector.Map, e entry) {
	for _, l := range e.layers {
		m.RemoveLayer(l)
	}
	if err := m.RemoveSource(e.source); err != nil {
		p.log.Warn("remove highlight source", "source", e.source, "err", err)
	}
}

func (p *Provider) HighlightFeature(f *model.Feature, sourceCRS, title string, opts *highlight.Options) bool {
	m, ok := p.target()
	if !ok {
		return false
	}
	gf, class, err := p.toFeature(f, sourceCRS)
	if err != nil {
		p.log.Warn("highlight feature skipped", "title", title, "err", err)
		return false
	}
	fc := geojson.NewFeatureCollection().Append(gf)

	p.mu.Lock()
	defer p.mu.Unlock()
	e, err := p.draw(m, fc, class, opts.Resolve())
	if err != nil {
		p.log.Error("highlight feature", "title", title, "err", err)
		return false
	}
	p.index.Add(title, e)
	observability.AddHighlights(backendName, 1)
	return true
}

// HighlightFeatureCollection creates one source per geometry class.
func (p *Provider) HighlightFeatureCollection(fs []*model.Feature, sourceCRS, title string, opts *highlight.Options) bool {
	m, ok := p.target()
	if !ok {
		return false
	}
	groups := make(map[highlight.Class]*geojson.FeatureCollection)
	skipped := 0
	for _, f := range fs {
		gf, class, err := p.toFeature(f, sourceCRS)
		if err != nil {
			skipped++
			p.log.Debug("collection member skipped", "title", title, "err", err)
			continue
		}
		if groups[class] == nil {
			groups[class] = geojson.NewFeatureCollection()
		}
		groups[class].Append(gf)
	}
	if skipped > 0 {
		p.log.Warn("features skipped while highlighting", "title", title, "skipped", skipped, "total", len(fs))
	}
	if len(groups) == 0 {
		return false
	}

	st := opts.Resolve()
	p.mu.Lock()
	defer p.mu.Unlock()
	drawn := 0
	for _, class := range highlight.Classes {
		fc, ok := groups[class]
		if !ok {
			continue
		}
		e, err := p.draw(m, fc, class, st)
		if err != nil {
			p.log.Error("highlight collection", "title", title, "class", class, "err", err)
			continue
		}
		p.index.Add(title, e)
		drawn++
	}
	observability.AddHighlights(backendName, drawn)
	return drawn > 0
}

func (p *Provider) ClearGraphics(title string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var entries []entry
	if title == "" {
		entries = append(p.index.TakeAll(), p.pins...)
		p.pins = nil
	} else {
		entries = p.index.Take(title)
	}
	if len(entries) == 0 {
		return
	}
	observability.AddHighlights(backendName, -len(entries))
	m := p.m.Value()
	if m == nil {
		return
	}
	for _, e := range entries {
		p.remove(m, e)
	}
}

func (p *Provider) CreatePinGraphic(lat, lon float64) bool {
	m, ok := p.target()
	if !ok {
		return false
	}
	fc := geojson.NewFeatureCollection().Append(geojson.NewFeature(orb.Point{lon, lat}))
	id := p.nextID("pin")

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := m.AddSource(id, fc); err != nil {
		p.log.Error("pin", "err", err)
		return false
	}
	e := entry{source: id, layers: []string{id + "-marker"}}
	err := m.AddLayer(mapvector.StyleLayer{
		ID: id + "-marker", Type: "symbol", Source: id, Visible: true,
		Paint: map[string]any{"icon-image": "marker", "icon-size": 1},
	})
	if err != nil {
		p.remove(m, entry{source: id})
		p.log.Error("pin", "err", err)
		return false
	}
	p.pins = append(p.pins, e)
	observability.AddHighlights(backendName, 1)
	return true
}

func (p *Provider) Tracked() map[string]int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.index.Counts()
}
