// Package router exposes map sessions, interactions and the stateless
// coordinate helpers over HTTP.
package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mohammed-shakir/geoview/internal/aoi"
	"github.com/mohammed-shakir/geoview/internal/backend"
	"github.com/mohammed-shakir/geoview/internal/core/model"
	"github.com/mohammed-shakir/geoview/internal/crs"
	mylog "github.com/mohammed-shakir/geoview/internal/logger"
	"github.com/mohammed-shakir/geoview/internal/query"
	"github.com/mohammed-shakir/geoview/internal/session"
)

const maxBodyBytes = 1 << 20

// CacheInvalidator drops cached GetFeature pages of one WFS type name.
type CacheInvalidator interface {
	InvalidateLayer(ctx context.Context, typeName string) (int, error)
}

type API struct {
	sessions *session.Store
	codec    *aoi.Codec
	cache    CacheInvalidator
	logger   *slog.Logger
}

func New(sessions *session.Store, codec *aoi.Codec, logger *slog.Logger) *API {
	if logger == nil {
		logger = slog.Default()
	}
	if codec == nil {
		codec = aoi.New(sessions.Backend().Adapter().CRS(), logger)
	}
	return &API{sessions: sessions, codec: codec, logger: logger}
}

// WithCache enables DELETE /cache/{layer}.
func (a *API) WithCache(c CacheInvalidator) *API {
	a.cache = c
	return a
}

// Routes mounts every API endpoint on r.
func (a *API) Routes(r chi.Router) {
	r.Get("/convert/point", a.convertPoint)
	r.Get("/convert/bbox", a.convertBBox)
	r.Get("/dms", a.dms)
	r.Get("/layers", a.layers)
	r.Delete("/cache/{layer}", a.invalidateCache)

	r.Post("/sessions", a.createSession)
	r.Route("/sessions/{id}", func(r chi.Router) {
		r.Use(a.withSession)
		r.Get("/", a.getSession)
		r.Delete("/", a.deleteSession)
		r.Get("/view", a.getView)
		r.Put("/view", a.putView)
		r.Post("/zoom", a.zoomTo)
		r.Post("/click", a.click)
		r.Post("/box", a.box)
		r.Post("/polygon", a.polygon)
		r.Get("/selection", a.getSelection)
		r.Delete("/selection", a.clearSelection)
		r.Get("/graphics", a.getGraphics)
		r.Delete("/graphics", a.clearGraphics)
		r.Post("/pin", a.pin)
		r.Get("/filter", a.getFilter)
		r.Put("/filter", a.putFilter)
		r.Get("/legend/{layer}", a.legend)
	})
}

type ctxSessionKey struct{}

func (a *API) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		sess, err := a.sessions.Get(id)
		if err != nil {
			a.fail(w, r, err)
			return
		}
		ctx := mylog.WithSession(r.Context(), id)
		ctx = contextWithSession(ctx, sess)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *API) createSession(w http.ResponseWriter, r *http.Request) {
	var cam backend.Camera
	if err := decodeBody(w, r, &cam); err != nil {
		a.fail(w, r, err)
		return
	}
	sess, err := a.sessions.Create(cam)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sessionView(sess, string(a.sessions.Backend().Kind())))
}

func sessionView(s *session.Session, kind string) map[string]any {
	return map[string]any{
		"id":      s.ID,
		"backend": kind,
		"created": s.Created,
		"view":    s.Handle.State(),
	}
}

func (a *API) getSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, sessionView(sessionFrom(r), string(a.sessions.Backend().Kind())))
}

func (a *API) deleteSession(w http.ResponseWriter, r *http.Request) {
	a.sessions.Delete(sessionFrom(r).ID)
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) getView(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, sessionFrom(r).Handle.State())
}

func (a *API) putView(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	var cam backend.Camera
	if err := decodeBody(w, r, &cam); err != nil {
		a.fail(w, r, err)
		return
	}
	if err := a.sessions.Backend().SetCamera(sess.Handle, cam); err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.Handle.State())
}

// zoomTo fits the view to a bbox given in any supported CRS.
func (a *API) zoomTo(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	var b model.BBox
	if err := decodeBody(w, r, &b); err != nil {
		a.fail(w, r, err)
		return
	}
	if b.SRID == "" {
		b.SRID = crs.WGS84
	}
	if !b.Valid() {
		a.fail(w, r, badRequest("invalid bbox"))
		return
	}
	if err := backend.ZoomTo(sess.Handle, b); err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.Handle.State())
}

type clickBody struct {
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Tolerance float64 `json:"tolerance"`
	Additive  bool    `json:"additive"`
}

func (a *API) click(w http.ResponseWriter, r *http.Request) {
	var body clickBody
	if err := decodeBody(w, r, &body); err != nil {
		a.fail(w, r, err)
		return
	}
	if body.Tolerance < 0 {
		a.fail(w, r, badRequest("tolerance must not be negative"))
		return
	}
	ctx := mylog.WithInteraction(r.Context(), string(query.KindClick))
	res, err := sessionFrom(r).Query.Click(ctx, query.ClickRequest{
		Screen:    model.ScreenPoint{X: body.X, Y: body.Y},
		Tolerance: body.Tolerance,
		Additive:  body.Additive,
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *API) box(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Additive bool `json:"additive"`
	}
	if err := decodeOptionalBody(w, r, &body); err != nil {
		a.fail(w, r, err)
		return
	}
	ctx := mylog.WithInteraction(r.Context(), string(query.KindBox))
	res, err := sessionFrom(r).Query.Box(ctx, body.Additive)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type polygonBody struct {
	Rings    [][][]float64 `json:"rings"`
	CRS      string        `json:"crs"`
	AOI      string        `json:"aoi"`
	Additive bool          `json:"additive"`
}

func (a *API) polygon(w http.ResponseWriter, r *http.Request) {
	var body polygonBody
	if err := decodeBody(w, r, &body); err != nil {
		a.fail(w, r, err)
		return
	}
	var poly *model.PolygonGeometry
	switch {
	case body.AOI != "":
		poly = a.codec.Deserialize(body.AOI)
		if poly == nil {
			a.fail(w, r, badRequest("unreadable aoi"))
			return
		}
	case len(body.Rings) > 0:
		poly = &model.PolygonGeometry{Rings: body.Rings, CRS: body.CRS}
	default:
		a.fail(w, r, badRequest("rings or aoi required"))
		return
	}
	ctx := mylog.WithInteraction(r.Context(), string(query.KindPolygon))
	res, err := sessionFrom(r).Query.Polygon(ctx, query.PolygonRequest{Polygon: poly, Additive: body.Additive})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type selectedFeature struct {
	Layer   string         `json:"layer"`
	Key     string         `json:"key"`
	Feature *model.Feature `json:"feature"`
}

func (a *API) getSelection(w http.ResponseWriter, r *http.Request) {
	sel := sessionFrom(r).Query.Selection()
	items := sel.Items()
	out := make([]selectedFeature, 0, len(items))
	for _, it := range items {
		out = append(out, selectedFeature{Layer: it.Layer, Key: it.Key, Feature: it.Feature})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":    len(out),
		"layers":   sel.Layers(),
		"features": out,
	})
}

func (a *API) clearSelection(w http.ResponseWriter, r *http.Request) {
	sessionFrom(r).Query.ClearSelection()
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) getGraphics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"titles": a.sessions.Highlighter(sessionFrom(r)).Tracked(),
	})
}

// clearGraphics removes one title's graphics, or all of them without ?title=.
func (a *API) clearGraphics(w http.ResponseWriter, r *http.Request) {
	a.sessions.Highlighter(sessionFrom(r)).ClearGraphics(r.URL.Query().Get("title"))
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) pin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Lat *float64 `json:"lat"`
		Lon *float64 `json:"lon"`
	}
	if err := decodeBody(w, r, &body); err != nil {
		a.fail(w, r, err)
		return
	}
	if body.Lat == nil || body.Lon == nil {
		a.fail(w, r, badRequest("lat and lon required"))
		return
	}
	if !a.sessions.Highlighter(sessionFrom(r)).CreatePinGraphic(*body.Lat, *body.Lon) {
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: "pin could not be placed"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) getFilter(w http.ResponseWriter, r *http.Request) {
	f := sessionFrom(r).Query.Filter()
	if f == nil {
		writeJSON(w, http.StatusOK, map[string]any{"filter": nil})
		return
	}
	poly := f.Polygon
	if f.Kind == model.FilterBBox && f.BBox != nil {
		poly = bboxPolygon(*f.BBox)
	}
	encoded, _ := a.codec.Serialize(poly)
	writeJSON(w, http.StatusOK, map[string]any{"filter": f, aoi.Param: encoded})
}

// putFilter installs a polygon filter from ?aoi=; an empty value clears it.
func (a *API) putFilter(w http.ResponseWriter, r *http.Request) {
	o := sessionFrom(r).Query
	raw := r.URL.Query().Get(aoi.Param)
	if raw == "" {
		o.SetFilter(nil)
		w.WriteHeader(http.StatusNoContent)
		return
	}
	poly := a.codec.Deserialize(raw)
	if poly == nil {
		a.fail(w, r, badRequest("unreadable aoi"))
		return
	}
	wgs := crs.ConvertPolygon(poly, a.codec.WorkingCRS, crs.WGS84)
	if wgs == nil {
		a.fail(w, r, query.ErrInvalidPolygon)
		return
	}
	f := &model.SpatialFilter{Kind: model.FilterPolygon, Polygon: wgs}
	o.SetFilter(f)
	writeJSON(w, http.StatusOK, map[string]any{"filter": f})
}

func (a *API) legend(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "layer")
	l, ok := a.sessions.Catalog().Layer(id)
	if !ok {
		a.fail(w, r, fmt.Errorf("%w: layer %s", errNotFound, id))
		return
	}
	rend := a.sessions.Legend(sessionFrom(r)).GetRenderer(r.Context(), l.ID, l.LegendURL, l.LegendLayer)
	if rend == nil {
		a.fail(w, r, fmt.Errorf("%w: no legend for %s", errNotFound, id))
		return
	}
	writeJSON(w, http.StatusOK, rend)
}

func (a *API) layers(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"layers": a.sessions.Catalog().Layers()})
}

func (a *API) invalidateCache(w http.ResponseWriter, r *http.Request) {
	if a.cache == nil {
		a.fail(w, r, fmt.Errorf("query cache disabled: %w", errNotFound))
		return
	}
	l, ok := a.sessions.Catalog().Layer(chi.URLParam(r, "layer"))
	if !ok {
		a.fail(w, r, fmt.Errorf("layer %q: %w", chi.URLParam(r, "layer"), errNotFound))
		return
	}
	n, err := a.cache.InvalidateLayer(r.Context(), l.TypeName)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"layer": l.ID, "removed": n})
}

func (a *API) convertPoint(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	x, err := parseFloat(q.Get("x"))
	if err != nil {
		a.fail(w, r, badRequest("x: "+err.Error()))
		return
	}
	y, err := parseFloat(q.Get("y"))
	if err != nil {
		a.fail(w, r, badRequest("y: "+err.Error()))
		return
	}
	from, to, err := crsPair(q.Get("from"), q.Get("to"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	out := crs.ConvertPoint([]float64{x, y}, from, to)
	writeJSON(w, http.StatusOK, model.Point{X: out[0], Y: out[1], CRS: to})
}

func (a *API) convertBBox(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	b, err := parseBBOX(q.Get("bbox"))
	if err != nil {
		a.fail(w, r, badRequest("bbox: "+err.Error()))
		return
	}
	from, to, err := crsPair(q.Get("from"), q.Get("to"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	out := crs.ConvertBBox(b, from, to)
	writeJSON(w, http.StatusOK, model.BBoxFromArray(out, to))
}

func (a *API) dms(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	dd, err := parseFloat(q.Get("dd"))
	if err != nil {
		a.fail(w, r, badRequest("dd: "+err.Error()))
		return
	}
	lon, _ := strconv.ParseBool(q.Get("lon"))
	writeJSON(w, http.StatusOK, map[string]string{"dms": crs.FormatDMS(dd, lon)})
}

func crsPair(from, to string) (string, string, error) {
	if from == "" {
		from = crs.WGS84
	}
	if to == "" {
		to = crs.WebMercator
	}
	f, ok := crs.NormalizeCRS(from)
	if !ok {
		return "", "", badRequest(fmt.Sprintf("unsupported crs %q", from))
	}
	t, ok := crs.NormalizeCRS(to)
	if !ok {
		return "", "", badRequest(fmt.Sprintf("unsupported crs %q", to))
	}
	return f, t, nil
}

// parseBBOX reads minx,miny,maxx,maxy.
func parseBBOX(raw string) ([4]float64, error) {
	parts := strings.Split(raw, ",")
	if len(parts) != 4 {
		return [4]float64{}, errors.New("expected 4 comma-separated values: minx,miny,maxx,maxy")
	}
	var out [4]float64
	for i, p := range parts {
		f, err := parseFloat(p)
		if err != nil {
			return [4]float64{}, fmt.Errorf("value %d: %w", i+1, err)
		}
		out[i] = f
	}
	if out[2] < out[0] || out[3] < out[1] {
		return [4]float64{}, errors.New("coordinates must satisfy maxx>=minx and maxy>=miny")
	}
	return out, nil
}

func parseFloat(v string) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0, fmt.Errorf("parse float: %w", err)
	}
	return f, nil
}

func bboxPolygon(b model.BBox) *model.PolygonGeometry {
	return &model.PolygonGeometry{
		CRS: b.SRID,
		Rings: [][][]float64{{
			{b.X1, b.Y1}, {b.X2, b.Y1}, {b.X2, b.Y2}, {b.X1, b.Y2}, {b.X1, b.Y1},
		}},
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return badRequest("invalid json body: " + err.Error())
	}
	return nil
}

// decodeOptionalBody accepts an empty body and leaves v untouched.
func decodeOptionalBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return badRequest("invalid json body: " + err.Error())
	}
	return nil
}
