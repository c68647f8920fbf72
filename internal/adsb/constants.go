package adsb

// FrameLength is the size of a Mode S extended squitter in bytes (112 bits)
const FrameLength = 14

// Downlink formats carrying ADS-B
const (
	DFExtendedSquitter = 17
	DFNonTransponder   = 18
)

// idMap translates the 6-bit callsign character codes. Unassigned codes map to '#'.
const idMap = "#ABCDEFGHIJKLMNOPQRSTUVWXYZ##### ############-##0123456789######"

// CPR encoding constants
const (
	CPRBits  = 17
	CPRScale = 131072.0 // 2^17

	// Number of latitude zones (NZ)
	cprLatZones = 15
)

// Local decode acceptance radius around the reference position. The nominal
// maxima are 333 km airborne and a quarter of that on the surface; these are
// tightened to allow for error in the reference position.
const (
	LocalRangeAirborne = 320000.0 // metres
	LocalRangeSurface  = 80000.0  // metres
)

// SurfaceAltitude is reported for aircraft on the surface. Presentation layers
// clip it to the airfield elevation.
const SurfaceAltitude = -200

// Surface movement field sentinels
const (
	MovementUnknown = 0
	MovementStopped = 1
	MovementMax     = 124 // speed >= 175 kt
)
