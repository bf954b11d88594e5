package aoi

import (
	"log/slog"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohammed-shakir/geoview/internal/core/model"
	"github.com/mohammed-shakir/geoview/internal/crs"
)

func quietCodec(working string) *Codec {
	return New(working, slog.New(slog.DiscardHandler))
}

func TestSerialize_PrecisionReduction(t *testing.T) {
	c := quietCodec(crs.WebMercator)
	p := &model.PolygonGeometry{
		Rings: [][][]float64{{{-111.123456789, 40.987654321}, {-111.0, 41.0}, {-110.5, 40.5}, {-111.123456789, 40.987654321}}},
		CRS:   "EPSG:4326",
	}
	s, ok := c.Serialize(p)
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(s, `{"rings":[[[-111.123457,40.987654],`), s)
	assert.NotContains(t, s, "crs")
}

func TestSerialize_Invalid(t *testing.T) {
	c := quietCodec("")
	_, ok := c.Serialize(nil)
	assert.False(t, ok)
	_, ok = c.Serialize(&model.PolygonGeometry{CRS: crs.WebMercator})
	assert.False(t, ok)
}

func TestRoundTrip_WebMercator(t *testing.T) {
	c := quietCodec(crs.WebMercator)
	src := [][]float64{{-111.09, 40.76}, {-110.8, 40.76}, {-110.8, 40.9}, {-111.09, 40.76}}
	ring := make([][]float64, len(src))
	for i, p := range src {
		ring[i] = crs.ConvertPoint(p, crs.WGS84, crs.WebMercator)
	}
	p := &model.PolygonGeometry{Rings: [][][]float64{ring}, CRS: crs.WebMercator}

	s, ok := c.Serialize(p)
	require.True(t, ok)
	got := c.Deserialize(s)
	require.NotNil(t, got)
	assert.Equal(t, crs.WebMercator, got.CRS)
	require.Len(t, got.Rings, 1)
	require.Len(t, got.Rings[0], len(ring))
	for i := range ring {
		// 1e-6 degrees is about 0.11 m at the equator in Web Mercator
		assert.InDelta(t, ring[i][0], got.Rings[0][i][0], 0.2)
		assert.InDelta(t, ring[i][1], got.Rings[0][i][1], 0.2)
	}
}

func TestRoundTrip_UTMWorkingCRS(t *testing.T) {
	c := quietCodec(crs.UTM12N)
	p := &model.PolygonGeometry{
		Rings: [][][]float64{{{450000, 4400000}, {460000, 4400000}, {460000, 4410000}, {450000, 4400000}}},
		CRS:   crs.UTM12N,
	}
	enc, ok := c.Encode(p)
	require.True(t, ok)
	got := c.Deserialize(enc)
	require.NotNil(t, got)
	for i, pos := range p.Rings[0] {
		assert.InDelta(t, pos[0], got.Rings[0][i][0], 0.2)
		assert.InDelta(t, pos[1], got.Rings[0][i][1], 0.2)
	}
}

func TestDeserialize_PercentEncoded(t *testing.T) {
	c := quietCodec(crs.WGS84)
	s := url.QueryEscape(`{"rings":[[[-111.5,40.1],[-111.4,40.1],[-111.4,40.2],[-111.5,40.1]]]}`)
	got := c.Deserialize(s)
	require.NotNil(t, got)
	assert.Equal(t, crs.WGS84, got.CRS)
	assert.Equal(t, []float64{-111.4, 40.2}, got.Rings[0][2])
}

func TestDeserialize_Invalid(t *testing.T) {
	c := quietCodec(crs.WebMercator)
	for _, s := range []string{
		"",
		"not json",
		`{"rings":`,
		`{"polygon":[]}`,
		`{"rings":"abc"}`,
		`{"rings":null}`,
		`{"rings":[[[-111.5,40.1],[1],[-111.4,40.2]]]}`,
		`{"rings":[[[-111.5,40.1],[-111.4,40.1],[-111.4,40.2]],[[]]]}`,
		"%zz",
	} {
		assert.Nil(t, c.Deserialize(s), s)
	}
}
