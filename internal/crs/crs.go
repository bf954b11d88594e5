// Package crs converts points, bounding boxes and GeoJSON geometries between the
// small set of coordinate reference systems the viewer works with.
//
// Conversion is best-effort: point and bbox conversion return their input on
// failure, geometry conversion returns nil. Failures are reported through the
// package logger and the coordinate_conversion_failures_total counter.
package crs

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/wroge/wgs84"

	"github.com/mohammed-shakir/geoview/internal/core/observability"
)

const (
	WGS84       = "EPSG:4326"
	WebMercator = "EPSG:3857"
	UTM12N      = "EPSG:26912"
	UTM13N      = "EPSG:26913"
)

var (
	ErrUnsupportedCRS      = errors.New("unsupported crs")
	ErrMalformedCoordinate = errors.New("malformed coordinate")
	ErrProjection          = errors.New("projection failed")
)

// codes served by the projection repository
var supported = map[int]struct{}{
	4326:  {},
	3857:  {},
	26912: {},
	26913: {},
}

var aliases = map[int]int{
	900913: 3857,
	102100: 3857,
	102113: 3857,
}

var pkgLogger atomic.Pointer[slog.Logger]

// SetLogger sets the logger conversion diagnostics are written to.
func SetLogger(l *slog.Logger) {
	pkgLogger.Store(l)
}

func logger() *slog.Logger {
	if l := pkgLogger.Load(); l != nil {
		return l
	}
	return slog.Default()
}

// report is the side channel for recovered failures
func report(op string, err error, attrs ...any) {
	observability.IncConversionFailure(op)
	args := append([]any{"op", op, "err", err}, attrs...)
	logger().Error("coordinate conversion failed", args...)
}

// NormalizeCRS canonicalizes a CRS identifier to "EPSG:<code>". The bare aliases
// "4326", "WGS84" and "CRS84" map to EPSG:4326. ok is false for identifiers the
// engine cannot project.
func NormalizeCRS(s string) (string, bool) {
	v := strings.ToUpper(strings.TrimSpace(s))
	switch v {
	case "":
		return "", false
	case "4326", "WGS84", "WGS 84", "CRS84", "EPSG:4326", "URN:OGC:DEF:CRS:OGC:1.3:CRS84":
		return WGS84, true
	}
	v = strings.TrimPrefix(v, "URN:OGC:DEF:CRS:EPSG::")
	v = strings.TrimPrefix(v, "EPSG:")
	n, err := strconv.Atoi(v)
	if err != nil {
		return "", false
	}
	if to, ok := aliases[n]; ok {
		n = to
	}
	code := "EPSG:" + strconv.Itoa(n)
	_, ok := supported[n]
	return code, ok
}

// IsWGS84 reports whether s names EPSG:4326, case-insensitively.
func IsWGS84(s string) bool {
	c, ok := NormalizeCRS(s)
	return ok && c == WGS84
}

type spheroid struct {
	a, fi float64
}

func (s spheroid) A() float64 {
	return s.a
}
func (s spheroid) Fi() float64 {
	return s.fi
}

type transformFunc func(a, b, c float64) (float64, float64, float64, error)

var (
	transformsOnce sync.Once
	transforms     map[string]transformFunc
)

// NAD83 / UTM zones 12N and 13N
// +proj=utm +zone=12 +ellps=GRS80 +towgs84=0,0,0,0,0,0,0 +units=m +no_defs
// Points outside a zone's six-degree strip are rejected rather than projected.
func buildTransforms() {
	epsg := wgs84.EPSG()
	epsg.Add(26912, nad83UTM(12))
	epsg.Add(26913, nad83UTM(13))

	transforms = make(map[string]transformFunc, len(supported)*len(supported))
	for from := range supported {
		for to := range supported {
			if from == to {
				continue
			}
			key := pairKey("EPSG:"+strconv.Itoa(from), "EPSG:"+strconv.Itoa(to))
			transforms[key] = transformFunc(wgs84.SafeTransform(epsg.Code(from), epsg.Code(to)))
		}
	}
}

func pairKey(from, to string) string { return from + ">" + to }

func transformer(from, to string) (transformFunc, error) {
	transformsOnce.Do(buildTransforms)
	fn, ok := transforms[pairKey(from, to)]
	if !ok {
		return nil, fmt.Errorf("%w: no transform %s -> %s", ErrUnsupportedCRS, from, to)
	}
	return fn, nil
}

// project runs one coordinate through the projection library. Panics raised by
// the library are recovered here.
func project(x, y float64, from, to string) (ox, oy float64, err error) {
	if from == to {
		return x, y, nil
	}
	defer func() {
		if r := recover(); r != nil {
			ox, oy = x, y
			err = fmt.Errorf("%w: %v", ErrProjection, r)
		}
	}()
	fn, err := transformer(from, to)
	if err != nil {
		return x, y, err
	}
	ox, oy, _, err = fn(x, y, 0)
	if err != nil {
		return x, y, fmt.Errorf("%w: (%g, %g) %s -> %s: %w", ErrProjection, x, y, from, to, err)
	}
	if !finite(ox) || !finite(oy) {
		return x, y, fmt.Errorf("%w: (%g, %g) %s -> %s yields non-finite result", ErrProjection, x, y, from, to)
	}
	return ox, oy, nil
}

// resolvePair normalizes both identifiers
func resolvePair(source, target string) (string, string, error) {
	from, ok := NormalizeCRS(source)
	if !ok {
		return "", "", fmt.Errorf("%w: source %q", ErrUnsupportedCRS, source)
	}
	to, ok := NormalizeCRS(target)
	if !ok {
		return "", "", fmt.Errorf("%w: target %q", ErrUnsupportedCRS, target)
	}
	return from, to, nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
