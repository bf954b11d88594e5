package geojsonagg

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/mohammed-shakir/geoview/internal/core/model"
)

// MergeLayers concatenates parts in the given order (callers pass topmost layer first)
// and keeps service order inside each part. Features already seen under the same key
// are dropped when DeduplicateByID is set.
func (a *Aggregator) MergeLayers(parts []LayerPart) ([]Tagged, Diagnostics) {
	var diag Diagnostics
	out := make([]Tagged, 0, 64)
	seen := map[string]struct{}{}

	for _, p := range parts {
		for _, f := range p.Features {
			if f == nil {
				continue
			}
			diag.TotalIn++
			key, byID, err := a.FeatureKey(p.Layer, f)
			if err != nil {
				diag.Invalid++
				continue
			}
			if a.DeduplicateByID {
				if _, dup := seen[key]; dup {
					if byID {
						diag.DedupByID++
					} else {
						diag.DedupByGH++
					}
					continue
				}
				seen[key] = struct{}{}
			}
			out = append(out, Tagged{Layer: p.Layer, Key: key, Feature: f})
		}
	}
	diag.TotalOut = len(out)
	return out, diag
}

// FeatureKey identifies f within layer: "<layer>|<id>" when the feature has an id,
// otherwise "<layer>|<geometry hash>:<properties hash>". byID reports which form was used.
func (a *Aggregator) FeatureKey(layer string, f *model.Feature) (key string, byID bool, err error) {
	id, err := CanonicalID(f.ID)
	if err != nil {
		return "", false, err
	}
	if id != "" {
		return layer + "|" + id, true, nil
	}

	geomRaw := json.RawMessage("null")
	if f.Geometry != nil {
		if geomRaw, err = json.Marshal(f.Geometry); err != nil {
			return "", false, fmt.Errorf("marshal geometry: %w", err)
		}
	}
	prec := a.GeomPrecision
	if prec <= 0 {
		prec = DefaultGeomPrecision
	}
	gh, err := GeometryHash(geomRaw, prec)
	if err != nil {
		return "", false, err
	}
	props, err := json.Marshal(f.Properties)
	if err != nil {
		return "", false, fmt.Errorf("marshal properties: %w", err)
	}

	var b strings.Builder
	b.WriteString(layer)
	b.WriteByte('|')
	b.WriteString(gh)
	fmt.Fprintf(&b, ":%016x", xxhash.Sum64(props))
	return b.String(), false, nil
}
