package adsb

import (
	"errors"
	"math"
)

// CPR decode failures. None of these are fatal: the caller keeps the previous
// position and waits for more frames.
var (
	ErrAmbiguousPair = errors.New("cpr pair spans latitude zones")
	ErrLatitudeRange = errors.New("cpr latitude out of range")
	ErrOutOfRange    = errors.New("local cpr position too far from reference")

	ErrSurfaceReference = errors.New("surface cpr pair needs a reference position")
)

// CPRFrame is one parity slot of a CPR encoded position
type CPRFrame struct {
	Lat float64 // [0,1)
	Lon float64 // [0,1)
}

// LatitudeZoneCount returns the number of longitude zones (NL) at the given latitude
func LatitudeZoneCount(lat float64) int {
	lat = math.Abs(lat)
	switch {
	case lat == 0:
		return 59
	case lat == 87:
		return 2
	case lat > 87:
		return 1
	}

	a := 1 - math.Cos(math.Pi/(2*cprLatZones))
	c := math.Cos(math.Pi / 180 * lat)
	return int(math.Floor(2 * math.Pi / math.Acos(1-a/(c*c))))
}

// ZoneCount returns the number of longitude zones for a frame of the given parity
func ZoneCount(lat float64, odd bool) int {
	n := LatitudeZoneCount(lat)
	if odd {
		n--
	}
	if n < 1 {
		return 1
	}
	return n
}

// Modulus returns x mod y with the sign of y. math.Mod truncates and gives the
// wrong zone index for negative values.
func Modulus(x, y float64) float64 {
	return x - y*math.Floor(x/y)
}

func cprSpan(onSurface bool) float64 {
	if onSurface {
		return 90.0
	}
	return 360.0
}

func parity(odd bool) int {
	if odd {
		return 1
	}
	return 0
}

// GlobalDecode resolves an airborne position from an even and an odd frame
// received close together. The latitude of the more recent frame is returned.
// Surface pairs need a reference position and are rejected with
// ErrSurfaceReference; use GlobalDecodeSurface for them.
func GlobalDecode(even, odd CPRFrame, evenIsNewer, onSurface bool) (lat, lon float64, err error) {
	if onSurface {
		return 0, 0, ErrSurfaceReference
	}

	latEven, latOdd := globalLatitudes(even, odd, 360)
	if latEven >= 270 {
		latEven -= 360
	}
	if latOdd >= 270 {
		latOdd -= 360
	}

	lat, lonCPR, nl, err := pickGlobal(even, odd, latEven, latOdd, evenIsNewer)
	if err != nil {
		return 0, 0, err
	}

	lon = globalLongitude(even, odd, lat, lonCPR, nl, evenIsNewer, 360)
	if lon > 180 {
		lon -= 360
	}
	return lat, lon, nil
}

// GlobalDecodeSurface resolves a surface position pair. Surface CPR spans 90
// degrees, so the hemisphere and longitude quadrant nearest the reference
// are selected.
func GlobalDecodeSurface(even, odd CPRFrame, evenIsNewer bool, refLat, refLon float64) (lat, lon float64, err error) {
	latEven, latOdd := globalLatitudes(even, odd, 90)
	if math.Abs(latEven-90-refLat) < math.Abs(latEven-refLat) {
		latEven -= 90
	}
	if math.Abs(latOdd-90-refLat) < math.Abs(latOdd-refLat) {
		latOdd -= 90
	}

	lat, lonCPR, nl, err := pickGlobal(even, odd, latEven, latOdd, evenIsNewer)
	if err != nil {
		return 0, 0, err
	}

	base := globalLongitude(even, odd, lat, lonCPR, nl, evenIsNewer, 90)
	lon = base
	bestDiff := math.Inf(1)
	for k := -2; k <= 2; k++ {
		cand := base + float64(k)*90
		if cand <= -180 || cand > 180 {
			continue
		}
		diff := math.Abs(Modulus(cand-refLon+180, 360) - 180)
		if diff < bestDiff {
			lon, bestDiff = cand, diff
		}
	}
	return lat, lon, nil
}

func globalLatitudes(even, odd CPRFrame, span float64) (float64, float64) {
	j := math.Floor(59*even.Lat - 60*odd.Lat + 0.5)
	latEven := span / 60 * (Modulus(j, 60) + even.Lat)
	latOdd := span / 59 * (Modulus(j, 59) + odd.Lat)
	return latEven, latOdd
}

func pickGlobal(even, odd CPRFrame, latEven, latOdd float64, evenIsNewer bool) (lat, lonCPR float64, nl int, err error) {
	lat, lonCPR = latOdd, odd.Lon
	if evenIsNewer {
		lat, lonCPR = latEven, even.Lon
	}
	if lat < -90 || lat > 90 {
		return 0, 0, 0, ErrLatitudeRange
	}

	nl = LatitudeZoneCount(latEven)
	if nl != LatitudeZoneCount(latOdd) {
		return 0, 0, 0, ErrAmbiguousPair
	}
	return lat, lonCPR, nl, nil
}

func globalLongitude(even, odd CPRFrame, lat, lonCPR float64, nl int, evenIsNewer bool, span float64) float64 {
	ni := float64(ZoneCount(lat, !evenIsNewer))
	m := math.Floor(even.Lon*float64(nl-1) - odd.Lon*float64(nl) + 0.5)
	return span / ni * (Modulus(m, ni) + lonCPR)
}

// LocalDecode resolves a single CPR frame against a reference position. The
// result is the candidate nearest the reference; callers must check it lies
// within LocalRange of the reference.
func LocalDecode(refLat, refLon float64, frame CPRFrame, odd, onSurface bool) (lat, lon float64) {
	span := cprSpan(onSurface)
	dLat := span / float64(60-parity(odd))

	j := math.Floor(refLat/dLat) + math.Floor(Modulus(refLat, dLat)/dLat-frame.Lat+0.5)
	lat = dLat * (j + frame.Lat)

	zones := LatitudeZoneCount(lat) - parity(odd)
	dLon := span
	if zones > 0 {
		dLon = span / float64(zones)
	}

	m := math.Floor(refLon/dLon) + math.Floor(Modulus(refLon, dLon)/dLon-frame.Lon+0.5)
	lon = dLon * (m + frame.Lon)
	return lat, lon
}

// LocalRange returns the maximum distance in metres a local decode may be
// from its reference.
func LocalRange(onSurface bool) float64 {
	if onSurface {
		return LocalRangeSurface
	}
	return LocalRangeAirborne
}

// EncodeCPR encodes a position into the 17-bit CPR values of the given parity.
// It is the inverse of the decoders and is used to synthesise frames.
func EncodeCPR(lat, lon float64, odd, onSurface bool) (uint32, uint32) {
	span := cprSpan(onSurface)
	dLat := span / float64(60-parity(odd))

	yz := math.Floor(CPRScale*Modulus(lat, dLat)/dLat + 0.5)
	rlat := dLat * (yz/CPRScale + math.Floor(lat/dLat))

	zones := LatitudeZoneCount(rlat) - parity(odd)
	dLon := span
	if zones > 0 {
		dLon = span / float64(zones)
	}
	xz := math.Floor(CPRScale*Modulus(lon, dLon)/dLon + 0.5)

	mask := uint32(CPRScale - 1)
	return uint32(yz) & mask, uint32(xz) & mask
}
