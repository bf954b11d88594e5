// Package keys builds deterministic Redis keys for cached WFS pages.
package keys

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Version is bumped whenever the cached payload or the key layout changes so
// stale entries age out instead of being misread.
const Version = "v1"

// Page identifies one GetFeature page request.
type Page struct {
	Layer string
	SRS   string
	// Spatial is the bbox string or the CQL INTERSECTS filter.
	Spatial    string
	Filter     string
	StartIndex int
	Count      int
}

// Key renders p as
//
//	gv:<version>:<layer>:<srs>:<start>+<count>:<digest>
//
// Layer and SRS stay readable for SCAN/DEL by prefix. Spatial and filter
// text only contribute to the digest.
func Key(p Page) string {
	h := xxhash.New()
	for _, part := range []string{strings.TrimSpace(p.Spatial), NormalizeFilter(p.Filter)} {
		_, _ = h.WriteString(part)
		_, _ = h.Write([]byte{0})
	}
	return fmt.Sprintf("gv:%s:%s:%s:%s:%016x",
		Version,
		token(strings.TrimSpace(p.Layer)),
		token(strings.ToUpper(strings.TrimSpace(p.SRS))),
		strconv.Itoa(p.StartIndex)+"+"+strconv.Itoa(p.Count),
		h.Sum64())
}

// LayerPrefix matches every cached page of layer, for invalidation.
func LayerPrefix(layer string) string {
	return "gv:" + Version + ":" + token(strings.TrimSpace(layer)) + ":"
}

var (
	wsRun      = regexp.MustCompile(`\s+`)
	punctSpace = regexp.MustCompile(`\s*([=<>!.,()])\s*`)
)

// NormalizeFilter makes CQL text that differs only in spacing hash equal.
func NormalizeFilter(s string) string {
	s = wsRun.ReplaceAllString(strings.TrimSpace(s), " ")
	return punctSpace.ReplaceAllString(s, "$1")
}

// token keeps ASCII letters, digits, ':' '_' and '-'; whitespace runs become
// '_' and anything else '-'.
func token(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	var prev byte
	for _, r := range s {
		var c byte
		switch {
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			c = '_'
		case r < 0x80 && (r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == ':' || r == '_' || r == '-'):
			c = byte(r)
		default:
			c = '-'
		}
		if (c == '_' || c == '-') && c == prev {
			continue
		}
		b.WriteByte(c)
		prev = c
	}
	return b.String()
}
