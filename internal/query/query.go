// Package query turns click, box and polygon gestures into per-layer WFS
// queries, merges the answers in draw order and applies them to the
// session's selection and highlights.
package query

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/destel/rill"

	"github.com/mohammed-shakir/geoview/internal/adapter"
	"github.com/mohammed-shakir/geoview/internal/aggregate"
	"github.com/mohammed-shakir/geoview/internal/aggregate/geojsonagg"
	"github.com/mohammed-shakir/geoview/internal/catalog"
	"github.com/mohammed-shakir/geoview/internal/core/executor"
	"github.com/mohammed-shakir/geoview/internal/core/model"
	"github.com/mohammed-shakir/geoview/internal/core/observability"
	"github.com/mohammed-shakir/geoview/internal/crs"
	"github.com/mohammed-shakir/geoview/internal/highlight"
	"github.com/mohammed-shakir/geoview/internal/mapview"
	"github.com/mohammed-shakir/geoview/internal/selection"
)

var (
	ErrBoxSelectDisabled = errors.New("box select disabled at this zoom")
	ErrInvalidPolygon    = errors.New("polygon cannot be converted to the query crs")
)

type Kind string

const (
	KindClick   Kind = "click"
	KindBox     Kind = "box"
	KindPolygon Kind = "polygon"
	// KindClear tags the result of an explicit ClearSelection.
	KindClear Kind = "clear"
)

var kinds = [...]Kind{KindClick, KindBox, KindPolygon, KindClear}

const zoomEpsilon = 1e-9

type Config struct {
	ClickTolerancePx float64
	BoxSizePx        float64
	BoxMinZoom       int
	PageSize         int
	MaxPages         int
	Concurrency      int
	HighlightTitle   string
}

func DefaultConfig() Config {
	return Config{
		ClickTolerancePx: 10,
		BoxSizePx:        200,
		BoxMinZoom:       9,
		PageSize:         500,
		MaxPages:         10,
		Concurrency:      4,
		HighlightTitle:   highlight.DefaultTitle,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.ClickTolerancePx <= 0 {
		c.ClickTolerancePx = d.ClickTolerancePx
	}
	if c.BoxSizePx <= 0 {
		c.BoxSizePx = d.BoxSizePx
	}
	if c.BoxMinZoom <= 0 {
		c.BoxMinZoom = d.BoxMinZoom
	}
	if c.PageSize <= 0 {
		c.PageSize = d.PageSize
	}
	if c.MaxPages <= 0 {
		c.MaxPages = d.MaxPages
	}
	if c.Concurrency <= 0 {
		c.Concurrency = d.Concurrency
	}
	if c.HighlightTitle == "" {
		c.HighlightTitle = d.HighlightTitle
	}
	return c
}

// Deps are the collaborators of one session's orchestrator.
type Deps struct {
	Catalog     *catalog.Catalog
	Source      executor.Interface
	Adapter     adapter.Adapter
	Handle      mapview.Handle
	Highlighter highlight.Provider
	Logger      *slog.Logger
	// Observer, when set, is called after every applied interaction.
	Observer func(Result)
}

// LayerOutcome reports what one layer contributed to an interaction.
type LayerOutcome struct {
	Layer     string `json:"layer"`
	Features  int    `json:"features"`
	Pages     int    `json:"pages"`
	Dropped   int    `json:"dropped,omitempty"`
	Truncated bool   `json:"truncated,omitempty"`
	Err       string `json:"error,omitempty"`
}

type Result struct {
	Kind     Kind                   `json:"kind"`
	Seq      uint64                 `json:"seq"`
	Additive bool                   `json:"additive"`
	BBox     *model.BBox            `json:"bbox,omitempty"`
	Polygon  *model.PolygonGeometry `json:"polygon,omitempty"`
	Features []*model.Feature       `json:"features"`
	Layers   []LayerOutcome         `json:"layers"`
	// Stale is set when a newer interaction of the same kind started before
	// this one finished; a stale result is not applied.
	Stale    bool                   `json:"stale,omitempty"`
	Applied  bool                   `json:"applied"`
	Cleared  bool                   `json:"cleared,omitempty"`
	Selected int                    `json:"selected"`
	Diag     geojsonagg.Diagnostics `json:"diagnostics"`

	tagged []geojsonagg.Tagged
}

// Orchestrator is safe for concurrent use. Interactions of the same kind
// follow latest-wins; selection and highlight updates are serialized.
type Orchestrator struct {
	cfg    Config
	deps   Deps
	log    *slog.Logger
	pages  aggregate.PageMerger
	merger *geojsonagg.Aggregator
	sel    *selection.Set

	seq map[Kind]*atomic.Uint64

	mu     sync.Mutex
	filter *model.SpatialFilter
}

func New(cfg Config, deps Deps) (*Orchestrator, error) {
	switch {
	case deps.Catalog == nil:
		return nil, errors.New("query: catalog is required")
	case deps.Source == nil:
		return nil, errors.New("query: feature source is required")
	case deps.Adapter == nil || deps.Handle == nil:
		return nil, errors.New("query: adapter and map handle are required")
	case deps.Highlighter == nil:
		return nil, errors.New("query: highlighter is required")
	}
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	o := &Orchestrator{
		cfg:    cfg.withDefaults(),
		deps:   deps,
		log:    log.With("component", "query"),
		pages:  geojsonagg.New(true),
		merger: geojsonagg.New(true),
		sel:    selection.New(),
		seq:    make(map[Kind]*atomic.Uint64, len(kinds)),
	}
	for _, k := range kinds {
		o.seq[k] = new(atomic.Uint64)
	}
	return o, nil
}

func (o *Orchestrator) Config() Config { return o.cfg }

func (o *Orchestrator) Selection() *selection.Set { return o.sel }

type ClickRequest struct {
	Screen model.ScreenPoint `json:"screen"`
	// Tolerance is the full pixel width of the click square; zero uses the default.
	Tolerance float64 `json:"tolerance,omitempty"`
	Additive  bool    `json:"additive"`
}

// ClickBox returns the buffered query box for a click, in the adapter CRS.
func (o *Orchestrator) ClickBox(screen model.ScreenPoint, tolerance float64) model.BBox {
	if tolerance <= 0 {
		tolerance = o.cfg.ClickTolerancePx
	}
	a, h := o.deps.Adapter, o.deps.Handle
	p := a.ScreenToMap(screen, h)
	return a.CreateBoundingBox(p, a.Resolution(h), tolerance/2)
}

func (o *Orchestrator) Click(ctx context.Context, req ClickRequest) (*Result, error) {
	seq := o.seq[KindClick].Add(1)
	bbox := o.ClickBox(req.Screen, req.Tolerance)
	res := o.run(ctx, KindClick, seq, req.Additive, func(l catalog.Layer) model.QueryRequest {
		b := bbox
		return model.QueryRequest{Layer: l.TypeName, BBox: &b, GeometryField: l.GeometryField}
	})
	res.BBox = &bbox
	return o.apply(res), nil
}

// BoxEnabled reports whether the current view is zoomed in far enough for box select.
func (o *Orchestrator) BoxEnabled() (bool, float64) {
	zoom := o.deps.Handle.State().Zoom
	if math.IsNaN(zoom) {
		return false, 0
	}
	// Camera zooms derived from a resolution land a hair below whole levels.
	return zoom+zoomEpsilon >= float64(o.cfg.BoxMinZoom), zoom
}

// SelectionBox returns the fixed-size square centered on the viewport, in the adapter CRS.
func (o *Orchestrator) SelectionBox() model.BBox {
	st := o.deps.Handle.State()
	cx, cy := float64(st.Width)/2, float64(st.Height)/2
	half := o.cfg.BoxSizePx / 2
	a, h := o.deps.Adapter, o.deps.Handle
	p1 := a.ScreenToMap(model.ScreenPoint{X: cx - half, Y: cy - half}, h)
	p2 := a.ScreenToMap(model.ScreenPoint{X: cx + half, Y: cy + half}, h)
	return model.BBox{
		X1:   min(p1.X, p2.X),
		Y1:   min(p1.Y, p2.Y),
		X2:   max(p1.X, p2.X),
		Y2:   max(p1.Y, p2.Y),
		SRID: a.CRS(),
	}
}

func (o *Orchestrator) Box(ctx context.Context, additive bool) (*Result, error) {
	if ok, zoom := o.BoxEnabled(); !ok {
		observability.ObserveInteraction(string(KindBox), "disabled", 0)
		return nil, fmt.Errorf("%w: zoom %.2f < %d", ErrBoxSelectDisabled, zoom, o.cfg.BoxMinZoom)
	}
	seq := o.seq[KindBox].Add(1)
	bbox := o.SelectionBox()
	res := o.run(ctx, KindBox, seq, additive, func(l catalog.Layer) model.QueryRequest {
		b := bbox
		return model.QueryRequest{Layer: l.TypeName, BBox: &b, GeometryField: l.GeometryField}
	})
	res.BBox = &bbox
	res = o.apply(res)
	if res.Applied {
		o.SetFilter(&model.SpatialFilter{Kind: model.FilterBBox, BBox: &bbox})
	}
	return res, nil
}

type PolygonRequest struct {
	// Polygon rings; an empty CRS means the adapter CRS.
	Polygon  *model.PolygonGeometry `json:"polygon"`
	Additive bool                   `json:"additive"`
}

func (o *Orchestrator) Polygon(ctx context.Context, req PolygonRequest) (*Result, error) {
	wgs := crs.ConvertPolygon(req.Polygon, o.deps.Adapter.CRS(), crs.WGS84)
	if wgs == nil {
		observability.ObserveInteraction(string(KindPolygon), "invalid", 0)
		return nil, ErrInvalidPolygon
	}
	seq := o.seq[KindPolygon].Add(1)
	res := o.run(ctx, KindPolygon, seq, req.Additive, func(l catalog.Layer) model.QueryRequest {
		return model.QueryRequest{Layer: l.TypeName, Polygon: wgs, GeometryField: l.GeometryField}
	})
	res.Polygon = wgs
	res = o.apply(res)
	if res.Applied {
		o.SetFilter(&model.SpatialFilter{Kind: model.FilterPolygon, Polygon: wgs})
	}
	return res, nil
}

type layerResult struct {
	outcome  LayerOutcome
	features []*model.Feature
}

func (o *Orchestrator) run(ctx context.Context, kind Kind, seq uint64, additive bool, build func(catalog.Layer) model.QueryRequest) *Result {
	zoom := o.deps.Handle.State().Zoom
	layers := o.deps.Catalog.Queryable(zoom, o.deps.Handle.LayerVisible)

	res := &Result{Kind: kind, Seq: seq, Additive: additive, Layers: make([]LayerOutcome, 0, len(layers))}
	if len(layers) == 0 {
		return res
	}

	in := rill.FromSlice(layers, nil)
	out := rill.OrderedMap(in, o.cfg.Concurrency, func(l catalog.Layer) (layerResult, error) {
		return o.queryLayer(ctx, l, build(l)), nil
	})

	parts := make([]geojsonagg.LayerPart, 0, len(layers))
	for t := range out {
		if t.Error != nil {
			continue
		}
		lr := t.Value
		res.Layers = append(res.Layers, lr.outcome)
		parts = append(parts, geojsonagg.LayerPart{Layer: lr.outcome.Layer, Features: lr.features})
	}

	res.tagged, res.Diag = o.merger.MergeLayers(parts)
	res.Features = make([]*model.Feature, len(res.tagged))
	for i, t := range res.tagged {
		res.Features[i] = t.Feature
	}
	return res
}

// queryLayer pages through one layer. Errors stay local to the layer; pages
// fetched before a failure are kept.
func (o *Orchestrator) queryLayer(ctx context.Context, l catalog.Layer, q model.QueryRequest) layerResult {
	start := time.Now()
	lr := layerResult{outcome: LayerOutcome{Layer: l.ID}}
	size := o.cfg.PageSize
	pages := make([][]byte, 0, 1)

	var failure error
	for page := range o.cfg.MaxPages {
		q.Count = size
		q.StartIndex = page * size
		body, _, err := o.deps.Source.FetchGetFeature(ctx, q)
		if err != nil {
			failure = err
			break
		}
		n, err := countFeatures(body)
		if err != nil {
			failure = err
			break
		}
		pages = append(pages, body)
		lr.outcome.Pages++
		if n < size {
			break
		}
		if page == o.cfg.MaxPages-1 {
			lr.outcome.Truncated = true
		}
	}

	if len(pages) > 0 {
		merged, err := o.pages.Merge(pages)
		if err == nil {
			var fc *model.FeatureCollection
			fc, err = model.ParseFeatureCollection(merged)
			if err == nil {
				lr.features = o.normalize(fc.Features, l, &lr.outcome)
			}
		}
		if err != nil && failure == nil {
			failure = err
		}
	}

	lr.outcome.Features = len(lr.features)
	if failure != nil {
		lr.outcome.Err = failure.Error()
		observability.IncLayerQuery("error")
		o.log.Warn("layer query failed",
			"layer", l.ID, "type_name", l.TypeName, "pages", lr.outcome.Pages,
			"elapsed", time.Since(start), "err", failure)
	} else {
		observability.IncLayerQuery("ok")
		o.log.Debug("layer query", "layer", l.ID, "features", lr.outcome.Features,
			"pages", lr.outcome.Pages, "elapsed", time.Since(start))
	}
	return lr
}

func countFeatures(body []byte) (int, error) {
	var page struct {
		Features []json.RawMessage `json:"features"`
	}
	if err := json.Unmarshal(body, &page); err != nil {
		return 0, fmt.Errorf("decode page: %w", err)
	}
	return len(page.Features), nil
}

// normalize reprojects feature geometries from the layer CRS to WGS84 and
// drops the ones that cannot be converted.
func (o *Orchestrator) normalize(fs []*model.Feature, l catalog.Layer, out *LayerOutcome) []*model.Feature {
	kept := fs[:0]
	for _, f := range fs {
		if f == nil {
			continue
		}
		if f.Geometry != nil {
			g := crs.ConvertGeometryToWGS84(f.Geometry, l.CRS)
			if g == nil {
				out.Dropped++
				continue
			}
			f.Geometry = g
		}
		kept = append(kept, f)
	}
	return kept
}

func failedAll(ls []LayerOutcome) bool {
	if len(ls) == 0 {
		return false
	}
	for _, l := range ls {
		if l.Err == "" {
			return false
		}
	}
	return true
}

func (o *Orchestrator) apply(res *Result) *Result {
	kind := string(res.Kind)

	o.mu.Lock()
	defer o.mu.Unlock()

	if res.Seq != o.seq[res.Kind].Load() {
		res.Stale = true
		res.Selected = o.sel.Len()
		observability.ObserveInteraction(kind, "stale", len(res.Features))
		o.log.Debug("discarding superseded result", "kind", kind, "seq", res.Seq)
		return res
	}
	if failedAll(res.Layers) {
		res.Selected = o.sel.Len()
		observability.ObserveInteraction(kind, "failed", 0)
		return res
	}

	switch {
	case res.Additive && len(res.tagged) == 0:
	default:
		o.sel.Apply(res.tagged, res.Additive)
		res.Cleared = !res.Additive && len(res.tagged) == 0
		o.refreshHighlightsLocked()
	}
	res.Applied = true
	res.Selected = o.sel.Len()

	observability.ObserveInteraction(kind, "applied", len(res.Features))
	o.log.Info("interaction applied", "kind", kind, "seq", res.Seq, "additive", res.Additive,
		"features", len(res.Features), "selected", res.Selected, "cleared", res.Cleared)

	if o.deps.Observer != nil {
		o.deps.Observer(*res)
	}
	return res
}

// refreshHighlightsLocked redraws the selection under the result title. o.mu must be held.
func (o *Orchestrator) refreshHighlightsLocked() {
	title := o.cfg.HighlightTitle
	o.deps.Highlighter.ClearGraphics(title)
	fs := o.sel.Features()
	if len(fs) == 0 {
		return
	}
	if !o.deps.Highlighter.HighlightFeatureCollection(fs, crs.WGS84, title, nil) {
		o.log.Warn("selection could not be highlighted", "features", len(fs))
	}
}

// ClearSelection empties the selection and removes its highlights.
func (o *Orchestrator) ClearSelection() {
	seq := o.seq[KindClear].Add(1)
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sel.Clear()
	o.deps.Highlighter.ClearGraphics(o.cfg.HighlightTitle)
	observability.ObserveInteraction(string(KindClear), "cleared", 0)
	if o.deps.Observer != nil {
		o.deps.Observer(Result{
			Kind:     KindClear,
			Seq:      seq,
			Cleared:  true,
			Applied:  true,
			Features: []*model.Feature{},
			Layers:   []LayerOutcome{},
		})
	}
}

func (o *Orchestrator) Filter() *model.SpatialFilter {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.filter == nil {
		return nil
	}
	f := *o.filter
	f.Polygon = o.filter.Polygon.Clone()
	return &f
}

func (o *Orchestrator) SetFilter(f *model.SpatialFilter) {
	o.mu.Lock()
	o.filter = f
	o.mu.Unlock()
}
