package keys

import (
	"regexp"
	"strings"
	"testing"
	"unicode"

	"github.com/stretchr/testify/assert"
)

const bbox = "-111.100000,40.700000,-111.000000,40.800000,EPSG:4326"

func parcels() Page {
	return Page{Layer: "demo:parcels", SRS: "EPSG:4326", Spatial: bbox, StartIndex: 0, Count: 500, Filter: "zone='R1'"}
}

func TestKey_Layout(t *testing.T) {
	k := Key(parcels())
	assert.Regexp(t, `^gv:v1:demo:parcels:EPSG:4326:0\+500:[0-9a-f]{16}$`, k)
	assert.True(t, strings.HasPrefix(k, LayerPrefix("demo:parcels")))
	assert.Equal(t, k, Key(parcels()))
}

func TestKey_NormalizesSpacingAndCase(t *testing.T) {
	a := parcels()
	a.Layer, a.SRS, a.Spatial = " demo:parcels ", "epsg:4326", "  "+bbox
	a.Filter = "  zone  =   'R1' "
	assert.Equal(t, Key(parcels()), Key(a))
}

func TestKey_DistinctInputs(t *testing.T) {
	base := Key(parcels())
	mutate := []func(*Page){
		func(p *Page) { p.StartIndex = 500 },
		func(p *Page) { p.Count = 100 },
		func(p *Page) { p.SRS = "EPSG:3857" },
		func(p *Page) { p.Layer = "demo:roads" },
		func(p *Page) { p.Filter = "zone='R2'" },
		func(p *Page) { p.Spatial = "INTERSECTS(geom, SRID=4326;POLYGON((0 0, 1 0, 1 1, 0 0)))" },
		// spatial and filter must not bleed into each other
		func(p *Page) { p.Spatial, p.Filter = bbox+"zone='R1'", "" },
	}
	for i, m := range mutate {
		p := parcels()
		m(&p)
		assert.NotEqual(t, base, Key(p), "variant %d", i)
	}
}

func TestKey_ASCIIOnly(t *testing.T) {
	p := parcels()
	p.Layer = "demo:platser Göteborg"
	p.Filter = "name = '雪'"
	k := Key(p)
	for _, r := range k {
		if r > unicode.MaxASCII {
			t.Fatalf("non-ASCII rune %q in %s", r, k)
		}
	}
	assert.True(t, regexp.MustCompile(`^[A-Za-z0-9:_+\-]+$`).MatchString(k), k)
	assert.Contains(t, k, "demo:platser_G-teborg")
}

func TestNormalizeFilter(t *testing.T) {
	assert.Equal(t, "use IN('res','mixed')", NormalizeFilter("use  IN ( 'res' , 'mixed' ) "))
	assert.Equal(t, "", NormalizeFilter("   "))
}
