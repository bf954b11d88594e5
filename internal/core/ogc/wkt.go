package ogc

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
)

// wktPrecision rounds vertices to 1e-8 CRS units so cql_filter strings and
// the cache keys derived from them stay stable.
const wktPrecision = 100_000_000

// PolygonToWKT renders rings as a WKT POLYGON. Open rings are closed.
func PolygonToWKT(rings [][][]float64) (string, error) {
	poly, err := ToPolygon(rings)
	if err != nil {
		return "", err
	}
	return wkt.MarshalString(orb.Round(poly, wktPrecision)), nil
}

// ToPolygon converts [x,y] rings into an orb.Polygon, closing open rings.
func ToPolygon(rings [][][]float64) (orb.Polygon, error) {
	if len(rings) == 0 {
		return nil, errors.New("empty polygon")
	}
	poly := make(orb.Polygon, 0, len(rings))
	for i, ring := range rings {
		r := make(orb.Ring, 0, len(ring)+1)
		for _, xy := range ring {
			if len(xy) < 2 {
				return nil, fmt.Errorf("ring %d: coordinate must be [x,y]", i)
			}
			r = append(r, orb.Point{xy[0], xy[1]})
		}
		if n := distinct(r); n < 3 {
			return nil, fmt.Errorf("ring %d has %d distinct points, need 3", i, n)
		}
		if r[0] != r[len(r)-1] {
			r = append(r, r[0])
		}
		poly = append(poly, r)
	}
	return poly, nil
}

func distinct(r orb.Ring) int {
	seen := make(map[orb.Point]struct{}, len(r))
	for _, p := range r {
		seen[p] = struct{}{}
	}
	return len(seen)
}

// EWKT prefixes wkt with the SRID taken from an EPSG identifier.
func EWKT(crs, wkt string) (string, error) {
	code, ok := strings.CutPrefix(strings.ToUpper(strings.TrimSpace(crs)), "EPSG:")
	n, err := strconv.Atoi(code)
	if !ok || err != nil {
		return "", fmt.Errorf("crs %q has no numeric srid", crs)
	}
	return "SRID=" + strconv.Itoa(n) + ";" + wkt, nil
}
