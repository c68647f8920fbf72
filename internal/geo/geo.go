package geo

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// WGS-84 ellipsoid
const (
	semiMajorAxis = 6378137.0
	flattening    = 1 / 298.257223563
	eccentricity2 = flattening * (2 - flattening)

	// EarthRadius is the mean radius used for great-circle distances
	EarthRadius = 6371000.0

	// FeetToMetres converts barometric altitude to metres
	FeetToMetres = 0.3048
)

// Station is the receiver position. Altitude is in metres above the ellipsoid.
type Station struct {
	Latitude  float64 `yaml:"latitude" json:"latitude"`
	Longitude float64 `yaml:"longitude" json:"longitude"`
	Altitude  float64 `yaml:"altitude" json:"altitude"`
}

// Validate checks the coordinates are on the globe
func (s Station) Validate() error {
	if math.IsNaN(s.Latitude) || s.Latitude < -90 || s.Latitude > 90 {
		return fmt.Errorf("station latitude %.4f out of range", s.Latitude)
	}
	if math.IsNaN(s.Longitude) || s.Longitude < -180 || s.Longitude > 180 {
		return fmt.Errorf("station longitude %.4f out of range", s.Longitude)
	}
	return nil
}

// AzEl is the look angle and slant range from a station to a target
type AzEl struct {
	Azimuth   float64 // degrees clockwise from true north, [0,360)
	Elevation float64 // degrees above the local horizon
	Range     float64 // metres
}

func radians(d float64) float64 { return d * math.Pi / 180 }
func degrees(r float64) float64 { return r * 180 / math.Pi }

// ECEF converts geodetic coordinates to earth-centred earth-fixed metres
func ECEF(lat, lon, alt float64) r3.Vec {
	phi, lambda := radians(lat), radians(lon)
	sinPhi := math.Sin(phi)
	n := semiMajorAxis / math.Sqrt(1-eccentricity2*sinPhi*sinPhi)
	return r3.Vec{
		X: (n + alt) * math.Cos(phi) * math.Cos(lambda),
		Y: (n + alt) * math.Cos(phi) * math.Sin(lambda),
		Z: (n*(1-eccentricity2) + alt) * sinPhi,
	}
}

// Compute returns the azimuth, elevation and slant range from the station to
// a target at lat/lon and alt metres.
func (s Station) Compute(lat, lon, alt float64) AzEl {
	d := r3.Sub(ECEF(lat, lon, alt), ECEF(s.Latitude, s.Longitude, s.Altitude))
	rng := r3.Norm(d)
	if rng == 0 {
		return AzEl{}
	}

	phi, lambda := radians(s.Latitude), radians(s.Longitude)
	east := r3.Vec{X: -math.Sin(lambda), Y: math.Cos(lambda)}
	north := r3.Vec{
		X: -math.Sin(phi) * math.Cos(lambda),
		Y: -math.Sin(phi) * math.Sin(lambda),
		Z: math.Cos(phi),
	}
	up := r3.Vec{
		X: math.Cos(phi) * math.Cos(lambda),
		Y: math.Cos(phi) * math.Sin(lambda),
		Z: math.Sin(phi),
	}

	e, n, u := r3.Dot(d, east), r3.Dot(d, north), r3.Dot(d, up)
	return AzEl{
		Azimuth:   NormalizeHeading(degrees(math.Atan2(e, n))),
		Elevation: degrees(math.Asin(u / rng)),
		Range:     rng,
	}
}

// Distance returns the great-circle distance in metres between two points
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	// https://www.movable-type.co.uk/scripts/latlong.html
	p1, p2 := radians(lat1), radians(lat2)
	dlat, dlon := p2-p1, radians(lon2-lon1)

	x := math.Pow(math.Sin(dlat/2), 2) + math.Cos(p1)*math.Cos(p2)*math.Pow(math.Sin(dlon/2), 2)
	return EarthRadius * 2 * math.Atan2(math.Sqrt(x), math.Sqrt(1-x))
}

// NormalizeHeading reduces h to [0,360)
func NormalizeHeading(h float64) float64 {
	h = math.Mod(h, 360)
	if h < 0 {
		h += 360
	}
	return h
}

// HeadingChange returns the signed turn from a to b in (-180,180]
func HeadingChange(a, b float64) float64 {
	d := math.Mod(b-a+540, 360) - 180
	if d == -180 {
		return 180
	}
	return d
}
