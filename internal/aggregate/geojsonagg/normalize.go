package geojsonagg

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"slices"

	"github.com/cespare/xxhash/v2"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"
	"github.com/paulmach/orb/geojson"
)

// GeometryHash hashes a GeoJSON geometry after rounding to precision decimals
// and normalizing ring orientation and multi-part order, so the same shape
// from different pages or services hashes equal.
func GeometryHash(geomRaw json.RawMessage, precision int) (string, error) {
	if len(bytes.TrimSpace(geomRaw)) == 0 || bytes.Equal(geomRaw, []byte("null")) {
		return "gh:null", nil
	}
	g, err := geojson.UnmarshalGeometry(geomRaw)
	if err != nil {
		return "", fmt.Errorf("parse geometry: %w", err)
	}
	geom := g.Geometry()
	if geom == nil {
		return "", fmt.Errorf("parse geometry: empty %q", g.Type)
	}
	buf, err := canonicalWKB(normalize(geom, precision))
	if err != nil {
		return "", fmt.Errorf("encode normalized geometry: %w", err)
	}
	return fmt.Sprintf("gh:%016x", xxhash.Sum64(buf)), nil
}

func canonicalWKB(g orb.Geometry) ([]byte, error) {
	return wkb.Marshal(g, binary.LittleEndian)
}

func normalize(g orb.Geometry, precision int) orb.Geometry {
	factor := int(math.Pow10(precision))
	switch t := g.(type) {
	case orb.Polygon:
		return orientPolygon(orb.Round(t.Clone(), factor).(orb.Polygon))
	case orb.MultiPolygon:
		mp := orb.Round(t.Clone(), factor).(orb.MultiPolygon)
		for i := range mp {
			mp[i] = orientPolygon(mp[i])
		}
		sortByWKB(mp)
		return mp
	case orb.Collection:
		out := make(orb.Collection, 0, len(t))
		for _, c := range t {
			out = append(out, normalize(c, precision))
		}
		sortByWKB(out)
		return out
	default:
		return orb.Round(orb.Clone(g), factor)
	}
}

// orientPolygon makes the outer ring counter-clockwise and holes clockwise.
func orientPolygon(p orb.Polygon) orb.Polygon {
	for i, r := range p {
		want := orb.CW
		if i == 0 {
			want = orb.CCW
		}
		if len(r) > 2 && r.Orientation() != want {
			r.Reverse()
		}
	}
	return p
}

func sortByWKB[S ~[]E, E orb.Geometry](s S) {
	keys := make(map[int][]byte, len(s))
	idx := make([]int, len(s))
	for i := range s {
		idx[i] = i
		keys[i], _ = canonicalWKB(s[i])
	}
	slices.SortStableFunc(idx, func(a, b int) int { return bytes.Compare(keys[a], keys[b]) })
	sorted := make(S, len(s))
	for i, j := range idx {
		sorted[i] = s[j]
	}
	copy(s, sorted)
}
