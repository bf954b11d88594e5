package crs

import (
	"math"

	"github.com/wroge/wgs84"
)

// zoneEpsilon admits points that land on a zone edge after the geocentric round trip.
const zoneEpsilon = 1e-9

// utmZone is a northern-hemisphere UTM projection using Krüger's series to
// third order in n. Forward and inverse agree to well under a millimetre
// inside the zone.
type utmZone struct {
	zone int
}

func (z utmZone) centralMeridian() float64 { return float64(z.zone*6 - 183) }

// contains reports whether lon, lat falls inside the zone's six-degree strip.
func (z utmZone) contains(lon, lat float64) bool {
	west := float64(z.zone*6 - 186)
	east := west + 6
	return lon >= west-zoneEpsilon && lon <= east+zoneEpsilon && lat >= -zoneEpsilon && lat <= 84
}

const (
	utmScale     = 0.9996
	utmFalseEast = 500000.0
)

type kruger struct {
	e, rect float64
	alpha   [3]float64
	beta    [3]float64
	delta   [3]float64
}

func newKruger(s wgs84.Spheroid) kruger {
	f := 1 / s.Fi()
	n := f / (2 - f)
	n2, n3 := n*n, n*n*n
	return kruger{
		e:    2 * math.Sqrt(n) / (1 + n),
		rect: s.A() / (1 + n) * (1 + n2/4 + n2*n2/64),
		alpha: [3]float64{
			n/2 - 2*n2/3 + 5*n3/16,
			13*n2/48 - 3*n3/5,
			61 * n3 / 240,
		},
		beta: [3]float64{
			n/2 - 2*n2/3 + 37*n3/96,
			n2/48 + n3/15,
			17 * n3 / 480,
		},
		delta: [3]float64{
			2*n - 2*n2/3 - 2*n3,
			7*n2/3 - 8*n3/5,
			56 * n3 / 15,
		},
	}
}

func (z utmZone) FromLonLat(lon, lat float64, s wgs84.Spheroid) (east, north float64) {
	k := newKruger(s)
	phi := lat * math.Pi / 180
	dl := (lon - z.centralMeridian()) * math.Pi / 180

	sinPhi := math.Sin(phi)
	t := math.Sinh(math.Atanh(sinPhi) - k.e*math.Atanh(k.e*sinPhi))
	xi := math.Atan2(t, math.Cos(dl))
	eta := math.Atanh(math.Sin(dl) / math.Sqrt(1+t*t))

	x, y := eta, xi
	for j, a := range k.alpha {
		m := float64(2 * (j + 1))
		x += a * math.Cos(m*xi) * math.Sinh(m*eta)
		y += a * math.Sin(m*xi) * math.Cosh(m*eta)
	}
	return utmFalseEast + utmScale*k.rect*x, utmScale * k.rect * y
}

func (z utmZone) ToLonLat(east, north float64, s wgs84.Spheroid) (lon, lat float64) {
	k := newKruger(s)
	xi := north / (utmScale * k.rect)
	eta := (east - utmFalseEast) / (utmScale * k.rect)

	xp, ep := xi, eta
	for j, b := range k.beta {
		m := float64(2 * (j + 1))
		xp -= b * math.Sin(m*xi) * math.Cosh(m*eta)
		ep -= b * math.Cos(m*xi) * math.Sinh(m*eta)
	}
	chi := math.Asin(math.Sin(xp) / math.Cosh(ep))
	phi := chi
	for j, d := range k.delta {
		phi += d * math.Sin(float64(2*(j+1))*chi)
	}
	dl := math.Atan2(math.Sinh(ep), math.Cos(xp))
	return z.centralMeridian() + dl*180/math.Pi, phi * 180 / math.Pi
}

// nad83UTM builds EPSG:269xx: NAD83 (GRS80, no datum shift) on a UTM zone.
func nad83UTM(zone int) wgs84.ProjectedReferenceSystem {
	z := utmZone{zone: zone}
	return wgs84.ProjectedReferenceSystem{
		Datum: wgs84.Datum{
			Spheroid: spheroid{a: 6378137, fi: 298.257222101},
			Area:     wgs84.AreaFunc(func(_, lat float64) bool { return lat >= -zoneEpsilon && lat <= 84 }),
		},
		Projection: z,
		Area:       wgs84.AreaFunc(z.contains),
	}
}
