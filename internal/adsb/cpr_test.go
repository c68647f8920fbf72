package adsb

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// metresPerDegree is the length of one degree of latitude
const metresPerDegree = 111320.0

func cprFrame(lat, lon uint32) CPRFrame {
	return CPRFrame{Lat: float64(lat) / CPRScale, Lon: float64(lon) / CPRScale}
}

func assertNear(t *testing.T, wantLat, wantLon, lat, lon, metres float64) {
	t.Helper()
	assert.InDelta(t, wantLat, lat, metres/metresPerDegree)
	lonTol := metres / (metresPerDegree * math.Cos(wantLat*math.Pi/180))
	diff := math.Abs(Modulus(lon-wantLon+180, 360) - 180)
	assert.LessOrEqual(t, diff, lonTol, "longitude %.6f want %.6f", lon, wantLon)
}

// TestLatitudeZoneCount tests the NL function
func TestLatitudeZoneCount(t *testing.T) {
	tests := []struct {
		name string
		lat  float64
		want int
	}{
		{"Equator", 0, 59},
		{"87 north", 87, 2},
		{"87 south", -87, 2},
		{"88 north", 88, 1},
		{"Pole", -90, 1},
		{"Just below first transition", 10.47, 59},
		{"Just above first transition", 10.48, 58},
		{"Amsterdam", 52.2572, 36},
		{"Symmetric", -52.2572, 36},
		{"Last two-zone band", 86.9, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, LatitudeZoneCount(tt.lat))
		})
	}
}

// TestZoneCount tests the parity adjusted zone count
func TestZoneCount(t *testing.T) {
	assert.Equal(t, 59, ZoneCount(0, false))
	assert.Equal(t, 58, ZoneCount(0, true))
	assert.Equal(t, 1, ZoneCount(89, true))
	assert.Equal(t, 1, ZoneCount(89, false))
}

// TestModulus tests the floored modulus
func TestModulus(t *testing.T) {
	assert.Equal(t, 59.0, Modulus(-1, 60))
	assert.Equal(t, 1.0, Modulus(61, 60))
	assert.Equal(t, 0.0, Modulus(-60, 60))
	assert.InDelta(t, 5.5, Modulus(-0.5, 6), 1e-12)
	assert.NotEqual(t, math.Mod(-1, 60), Modulus(-1, 60))
}

// TestGlobalDecodeKnownPair tests a published even/odd pair
func TestGlobalDecodeKnownPair(t *testing.T) {
	var even, odd Frame
	copy(even[:], mustHex(t, "8D40621D58C382D690C8AC2863A7"))
	copy(odd[:], mustHex(t, "8D40621D58C386435CC412692AD6"))

	evenOdd, evenLat, evenLon := even.CPR()
	oddOdd, oddLat, oddLon := odd.CPR()
	require.False(t, evenOdd)
	require.True(t, oddOdd)

	lat, lon, err := GlobalDecode(CPRFrame{evenLat, evenLon}, CPRFrame{oddLat, oddLon}, true, false)
	require.NoError(t, err)
	assert.InDelta(t, 52.2572, lat, 1e-4)
	assert.InDelta(t, 3.91937, lon, 1e-4)

	alt, ok := DecodeAltitude(even.AltitudeField())
	assert.True(t, ok)
	assert.Equal(t, 38000, alt)
}

// TestGlobalDecodeRoundTrip tests encode then decode at positions around the globe
func TestGlobalDecodeRoundTrip(t *testing.T) {
	positions := []struct {
		name string
		lat  float64
		lon  float64
	}{
		{"Amsterdam", 52.2572, 3.91937},
		{"Sydney", -33.9461, 151.1772},
		{"New York", 40.6413, -73.7781},
		{"Null island", 0, 0},
		{"Antimeridian", -0.5, -179.9},
		{"Antimeridian east", 12.3, 179.95},
		{"Reykjavik", 64.13, -21.94},
		{"Far north", 82.5, 10},
		{"Far south", -77.85, 166.67},
	}

	for _, p := range positions {
		t.Run(p.name, func(t *testing.T) {
			eLat, eLon := EncodeCPR(p.lat, p.lon, false, false)
			oLat, oLon := EncodeCPR(p.lat, p.lon, true, false)

			for _, evenIsNewer := range []bool{true, false} {
				lat, lon, err := GlobalDecode(cprFrame(eLat, eLon), cprFrame(oLat, oLon), evenIsNewer, false)
				require.NoError(t, err)
				assertNear(t, p.lat, p.lon, lat, lon, 5)
			}
		})
	}
}

// TestGlobalDecodeAmbiguous tests a pair straddling a latitude zone boundary
func TestGlobalDecodeAmbiguous(t *testing.T) {
	eLat, eLon := EncodeCPR(10.45, 20.0, false, false)
	oLat, oLon := EncodeCPR(10.49, 20.0, true, false)

	_, _, err := GlobalDecode(cprFrame(eLat, eLon), cprFrame(oLat, oLon), true, false)
	assert.ErrorIs(t, err, ErrAmbiguousPair)
}

// TestGlobalDecodeSurface tests surface pairs resolved against a reference
func TestGlobalDecodeSurface(t *testing.T) {
	_, _, err := GlobalDecode(CPRFrame{}, CPRFrame{}, true, true)
	assert.ErrorIs(t, err, ErrSurfaceReference)

	tests := []struct {
		name   string
		lat    float64
		lon    float64
		refLat float64
		refLon float64
	}{
		{"Schiphol", 52.3086, 4.7639, 52.3, 4.76},
		{"Sydney", -33.94, 151.17, -33.9, 151.2},
		{"JFK", 40.64, -73.78, 40.7, -74.0},
		{"Rio", -22.81, -43.25, -22.9, -43.2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eLat, eLon := EncodeCPR(tt.lat, tt.lon, false, true)
			oLat, oLon := EncodeCPR(tt.lat, tt.lon, true, true)

			lat, lon, err := GlobalDecodeSurface(cprFrame(eLat, eLon), cprFrame(oLat, oLon), true, tt.refLat, tt.refLon)
			require.NoError(t, err)
			assertNear(t, tt.lat, tt.lon, lat, lon, 2)
		})
	}
}

// TestLocalDecode tests single frame decoding against a reference position
func TestLocalDecode(t *testing.T) {
	tests := []struct {
		name      string
		lat       float64
		lon       float64
		refLat    float64
		refLon    float64
		odd       bool
		onSurface bool
	}{
		{"Airborne even", 52.2572, 3.91937, 52.0, 4.5, false, false},
		{"Airborne odd", 52.2572, 3.91937, 52.0, 4.5, true, false},
		{"Southern hemisphere", -33.9461, 151.1772, -34.5, 150.9, false, false},
		{"Western hemisphere", 40.6413, -73.7781, 41.2, -73.1, true, false},
		{"Surface", 52.3086, 4.7639, 52.31, 4.76, false, true},
		{"Surface odd south", -22.81, -43.25, -22.9, -43.2, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cLat, cLon := EncodeCPR(tt.lat, tt.lon, tt.odd, tt.onSurface)
			lat, lon := LocalDecode(tt.refLat, tt.refLon, cprFrame(cLat, cLon), tt.odd, tt.onSurface)
			assertNear(t, tt.lat, tt.lon, lat, lon, 5)
		})
	}
}

// TestLocalRange tests the local decode acceptance radius
func TestLocalRange(t *testing.T) {
	assert.Equal(t, 80000.0, LocalRange(true))
	assert.Equal(t, 320000.0, LocalRange(false))
}
