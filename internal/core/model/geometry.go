package model

import (
	"encoding/json"
	"fmt"
)

// Geometry is a GeoJSON-shaped geometry. Coordinates keep the nested []any shape
// produced by encoding/json so malformed positions survive decoding and can be
// rejected explicitly.
type Geometry struct {
	Type        string      `json:"type"`
	Coordinates any         `json:"coordinates,omitempty"`
	Geometries  []*Geometry `json:"geometries,omitempty"`
}

func ParseGeometry(raw []byte) (*Geometry, error) {
	var g Geometry
	if err := json.Unmarshal(raw, &g); err != nil {
		return nil, fmt.Errorf("parse geometry: %w", err)
	}
	return &g, nil
}

// Clone returns a structural deep copy.
func (g *Geometry) Clone() *Geometry {
	if g == nil {
		return nil
	}
	out := &Geometry{Type: g.Type, Coordinates: cloneCoords(g.Coordinates)}
	if g.Geometries != nil {
		out.Geometries = make([]*Geometry, len(g.Geometries))
		for i, c := range g.Geometries {
			out.Geometries[i] = c.Clone()
		}
	}
	return out
}

func cloneCoords(v any) any {
	switch t := v.(type) {
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = cloneCoords(t[i])
		}
		return out
	case []float64:
		return append([]float64(nil), t...)
	case [][]float64:
		out := make([]any, len(t))
		for i := range t {
			out[i] = cloneCoords(t[i])
		}
		return out
	case [][][]float64:
		out := make([]any, len(t))
		for i := range t {
			out[i] = cloneCoords(t[i])
		}
		return out
	case [][][][]float64:
		out := make([]any, len(t))
		for i := range t {
			out[i] = cloneCoords(t[i])
		}
		return out
	default:
		return t
	}
}

// Feature is a GeoJSON feature as returned by the feature query service.
type Feature struct {
	Type       string         `json:"type"`
	ID         any            `json:"id,omitempty"`
	Geometry   *Geometry      `json:"geometry"`
	Properties map[string]any `json:"properties"`
}

type FeatureCollection struct {
	Type     string     `json:"type"`
	Features []*Feature `json:"features"`
}

func ParseFeatureCollection(raw []byte) (*FeatureCollection, error) {
	var fc FeatureCollection
	if err := json.Unmarshal(raw, &fc); err != nil {
		return nil, fmt.Errorf("parse feature collection: %w", err)
	}
	if fc.Type != "" && fc.Type != "FeatureCollection" {
		return nil, fmt.Errorf(`type is %q (want "FeatureCollection")`, fc.Type)
	}
	return &fc, nil
}
