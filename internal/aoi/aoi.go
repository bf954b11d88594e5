// Package aoi encodes user-drawn polygons into the compact WGS84 form used in
// deep links and decodes them back into the map's working CRS.
//
// The wire form is {"rings":[[[lng,lat],...],...]} with six decimal places.
package aoi

import (
	"encoding/json"
	"log/slog"
	"net/url"

	"github.com/mohammed-shakir/geoview/internal/core/model"
	"github.com/mohammed-shakir/geoview/internal/crs"
)

// Param is the query parameter the encoded polygon travels in.
const Param = "aoi"

type wire struct {
	Rings [][][]float64 `json:"rings"`
}

type Codec struct {
	// WorkingCRS is the CRS polygons are drawn in and decoded into.
	WorkingCRS string
	Precision  int
	Log        *slog.Logger
}

// New returns a codec for workingCRS, defaulting to Web Mercator.
func New(workingCRS string, log *slog.Logger) *Codec {
	if workingCRS == "" {
		workingCRS = crs.WebMercator
	}
	if log == nil {
		log = slog.Default()
	}
	return &Codec{WorkingCRS: workingCRS, Precision: crs.DefaultPrecision, Log: log}
}

// Serialize converts p to WGS84, reduces precision and returns the JSON text.
// ok is false when p is nil or has no rings.
func (c *Codec) Serialize(p *model.PolygonGeometry) (string, bool) {
	if p == nil || p.Rings == nil {
		c.Log.Warn("aoi serialize: polygon without rings")
		return "", false
	}
	source := p.CRS
	if source == "" {
		source = c.WorkingCRS
	}
	w := wire{Rings: make([][][]float64, len(p.Rings))}
	for i, ring := range p.Rings {
		out := make([][]float64, 0, len(ring))
		for _, pos := range ring {
			if !crs.IsWGS84(source) {
				pos = crs.ConvertPoint(pos, source, crs.WGS84)
			}
			out = append(out, pos)
		}
		w.Rings[i] = crs.ReducePrecision(out, c.Precision)
	}
	b, err := json.Marshal(w)
	if err != nil {
		c.Log.Error("aoi serialize: marshal", "err", err)
		return "", false
	}
	return string(b), true
}

// Deserialize accepts the JSON text, raw or percent-encoded, and returns the
// rings converted into the working CRS. It returns nil for anything it cannot
// read.
func (c *Codec) Deserialize(s string) *model.PolygonGeometry {
	if s == "" {
		return nil
	}
	decoded, err := url.QueryUnescape(s)
	if err != nil {
		c.Log.Error("aoi deserialize: bad escaping", "err", err)
		return nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(decoded), &raw); err != nil {
		c.Log.Error("aoi deserialize: invalid json", "err", err)
		return nil
	}
	ringsRaw, ok := raw["rings"]
	if !ok {
		c.Log.Warn("aoi deserialize: missing rings")
		return nil
	}
	var rings [][][]float64
	if err := json.Unmarshal(ringsRaw, &rings); err != nil || rings == nil {
		c.Log.Warn("aoi deserialize: rings is not an array of positions", "err", err)
		return nil
	}

	out := &model.PolygonGeometry{Rings: make([][][]float64, len(rings)), CRS: c.WorkingCRS}
	for i, ring := range rings {
		conv := make([][]float64, 0, len(ring))
		for j, pos := range ring {
			if len(pos) < 2 {
				c.Log.Warn("aoi deserialize: position needs x and y", "ring", i, "position", j, "ordinates", len(pos))
				return nil
			}
			if !crs.IsWGS84(c.WorkingCRS) {
				pos = crs.ConvertPoint(pos, crs.WGS84, c.WorkingCRS)
			}
			conv = append(conv, pos)
		}
		out.Rings[i] = conv
	}
	return out
}

// Encode is Serialize followed by percent-encoding for direct URL use.
func (c *Codec) Encode(p *model.PolygonGeometry) (string, bool) {
	s, ok := c.Serialize(p)
	if !ok {
		return "", false
	}
	return url.QueryEscape(s), true
}
