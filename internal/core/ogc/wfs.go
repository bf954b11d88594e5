package ogc

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/mohammed-shakir/geoview/internal/core/model"
)

const defaultGeometryField = "geom"

func OWSEndpoint(geoServerBase string) string {
	return strings.TrimRight(geoServerBase, "/") + "/ows"
}

// BuildGetFeatureParams builds a WFS 2.0 GetFeature query. A polygon wins over
// a bbox and is sent as an INTERSECTS cql filter combined with q.Filters.
func BuildGetFeatureParams(q model.QueryRequest) (url.Values, error) {
	params := url.Values{}
	params.Set("service", "WFS")
	params.Set("version", "2.0.0")
	params.Set("request", "GetFeature")
	params.Set("typeNames", q.Layer)
	params.Set("outputFormat", "application/json")
	if q.SRSName != "" {
		params.Set("srsName", q.SRSName)
	}

	switch {
	case q.Polygon != nil:
		cql, err := IntersectsFilter(q.Polygon, q.GeometryField)
		if err != nil {
			return nil, err
		}
		if q.Filters != "" {
			cql = fmt.Sprintf("(%s) AND (%s)", q.Filters, cql)
		}
		params.Set("cql_filter", cql)
	case q.BBox != nil:
		params.Set("bbox", q.BBox.String())
		if q.Filters != "" {
			params.Set("cql_filter", q.Filters)
		}
	case q.Filters != "":
		params.Set("cql_filter", q.Filters)
	}

	if q.Count > 0 {
		params.Set("count", strconv.Itoa(q.Count))
		params.Set("startIndex", strconv.Itoa(max(0, q.StartIndex)))
	}
	return params, nil
}

// IntersectsFilter renders INTERSECTS(field, SRID=n;POLYGON(...)).
func IntersectsFilter(p *model.PolygonGeometry, field string) (string, error) {
	if field == "" {
		field = defaultGeometryField
	}
	wkt, err := PolygonToWKT(p.Rings)
	if err != nil {
		return "", fmt.Errorf("polygon filter: %w", err)
	}
	srs := p.CRS
	if srs == "" {
		srs = "EPSG:4326"
	}
	ewkt, err := EWKT(srs, wkt)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("INTERSECTS(%s, %s)", field, ewkt), nil
}
