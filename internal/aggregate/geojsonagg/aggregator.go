package geojsonagg

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/mohammed-shakir/geoview/internal/aggregate"
)

// DefaultGeomPrecision rounds to about a centimeter at WGS84.
const DefaultGeomPrecision = 7

// Aggregator merges WFS pages and per-layer results.
type Aggregator struct {
	DeduplicateByID bool
	GeomPrecision   int
}

var _ aggregate.PageMerger = (*Aggregator)(nil)

func New(dedup bool) *Aggregator {
	return &Aggregator{DeduplicateByID: dedup, GeomPrecision: DefaultGeomPrecision}
}

// Merge concatenates the features of WFS pages in page order. With
// DeduplicateByID set, a feature whose id was already seen on an earlier page
// is dropped; servers without a stable sort order repeat features across pages.
func (a *Aggregator) Merge(pages [][]byte) ([]byte, error) {
	out := struct {
		Type     string            `json:"type"`
		Features []json.RawMessage `json:"features"`
	}{Type: "FeatureCollection", Features: []json.RawMessage{}}

	seen := map[string]struct{}{}
	for i, p := range pages {
		feats, err := pageFeatures(p)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		for j, fr := range feats {
			key, err := featureIDKey(fr)
			if err != nil {
				return nil, fmt.Errorf("page %d feature %d: %w", i, j, err)
			}
			if a.DeduplicateByID && key != "" {
				if _, dup := seen[key]; dup {
					continue
				}
				seen[key] = struct{}{}
			}
			out.Features = append(out.Features, fr)
		}
	}

	buf, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("marshal merged FeatureCollection: %w", err)
	}
	return buf, nil
}

// pageFeatures checks that p is a FeatureCollection and returns its raw features.
func pageFeatures(p []byte) ([]json.RawMessage, error) {
	var root struct {
		Type     *string          `json:"type"`
		Features *json.RawMessage `json:"features"`
	}
	if err := json.Unmarshal(p, &root); err != nil {
		return nil, fmt.Errorf("parse json: %w", err)
	}
	switch {
	case root.Type == nil:
		return nil, errors.New(`missing required member "type"`)
	case *root.Type != "FeatureCollection":
		return nil, fmt.Errorf(`type is %q (want "FeatureCollection")`, *root.Type)
	case root.Features == nil:
		return nil, errors.New(`missing required member "features"`)
	}
	var feats []json.RawMessage
	if err := json.Unmarshal(*root.Features, &feats); err != nil {
		return nil, fmt.Errorf(`"features" must be an array: %w`, err)
	}
	return feats, nil
}

// featureIDKey validates one raw feature and returns its canonical id key,
// empty when the feature has none.
func featureIDKey(raw json.RawMessage) (string, error) {
	var f struct {
		Type *string         `json:"type"`
		ID   json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(raw, &f); err != nil {
		return "", fmt.Errorf("not a JSON object: %w", err)
	}
	if f.Type == nil {
		return "", errors.New(`missing "type"`)
	}
	if *f.Type != "Feature" {
		return "", fmt.Errorf(`type is %q (want "Feature")`, *f.Type)
	}
	if len(f.ID) == 0 {
		return "", nil
	}
	key, err := canonicalIDKey(f.ID)
	if err != nil {
		return "", fmt.Errorf("invalid id: %w", err)
	}
	return key, nil
}

// canonicalIDKey accepts string and number ids; null maps to "".
func canonicalIDKey(idRaw json.RawMessage) (string, error) {
	trim := strings.TrimSpace(string(idRaw))
	if trim == "" || trim == "null" {
		return "", nil
	}

	dec := json.NewDecoder(bytes.NewReader(idRaw))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return "", fmt.Errorf("parse id: %w", err)
	}
	return CanonicalID(v)
}

// CanonicalID maps a decoded feature id to a type-tagged key so "1" and 1 stay distinct.
// Empty ids map to "".
func CanonicalID(id any) (string, error) {
	switch t := id.(type) {
	case nil:
		return "", nil
	case string:
		if t == "" {
			return "", nil
		}
		return "s:" + t, nil
	case json.Number:
		return "n:" + t.String(), nil
	case float64:
		return "n:" + strconv.FormatFloat(t, 'f', -1, 64), nil
	case int:
		return "n:" + strconv.Itoa(t), nil
	case int64:
		return "n:" + strconv.FormatInt(t, 10), nil
	default:
		return "", fmt.Errorf("id must be string or number (got %T)", id)
	}
}
