package adsb

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidFrameLength is returned when a frame is not exactly FrameLength bytes
var ErrInvalidFrameLength = errors.New("invalid frame length")

// Frame is a 112-bit Mode S extended squitter
type Frame [FrameLength]byte

// Fields holds the header fields common to every extended squitter
type Fields struct {
	DF       uint8
	CA       uint8
	ICAO     uint32
	TypeCode uint8
	Subtype  uint8
	Frame    Frame
}

// Extract decodes the header fields of a Mode S frame. The payload fields are
// available through the typed views on Frame.
func Extract(b []byte) (Fields, error) {
	if len(b) != FrameLength {
		return Fields{}, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidFrameLength, len(b), FrameLength)
	}

	var f Fields
	copy(f.Frame[:], b)
	f.DF = f.Frame.DF()
	f.CA = f.Frame.CA()
	f.ICAO = f.Frame.ICAO()
	f.TypeCode = f.Frame.TypeCode()
	f.Subtype = f.Frame.Subtype()
	return f, nil
}

// IsADSB reports whether the frame is ADS-B or a rebroadcast of ADS-B (ADS-R).
// DF18 with other capability codes is TIS-B or reserved.
func (f Fields) IsADSB() bool {
	if f.DF == DFExtendedSquitter {
		return true
	}
	return f.DF == DFNonTransponder && (f.CA == 0 || f.CA == 1 || f.CA == 6)
}

// DF returns the downlink format
func (f *Frame) DF() uint8 {
	return (f[0] >> 3) & 0x1f
}

// CA returns the capability (or code format for DF18)
func (f *Frame) CA() uint8 {
	return f[0] & 0x07
}

// ICAO returns the 24-bit aircraft address
func (f *Frame) ICAO() uint32 {
	return uint32(f[1])<<16 | uint32(f[2])<<8 | uint32(f[3])
}

// TypeCode returns the ME type code
func (f *Frame) TypeCode() uint8 {
	return (f[4] >> 3) & 0x1f
}

// Subtype returns the 3 bits following the type code. For identification
// frames this is the emitter category.
func (f *Frame) Subtype() uint8 {
	return f[4] & 0x07
}

// Identification decodes the emitter category and callsign of a TC 1-4 frame.
func (f *Frame) Identification() (category uint8, callsign string) {
	c := [8]byte{
		f[5] >> 2,
		(f[5]&3)<<4 | f[6]>>4,
		(f[6]&0xf)<<2 | f[7]>>6,
		f[7] & 0x3f,
		f[8] >> 2,
		(f[8]&3)<<4 | f[9]>>4,
		(f[9]&0xf)<<2 | f[10]>>6,
		f[10] & 0x3f,
	}

	var sb strings.Builder
	for _, code := range c {
		sb.WriteByte(idMap[code])
	}
	return f.Subtype(), strings.TrimSpace(sb.String())
}

// CPR returns the parity flag and the normalised CPR latitude/longitude, both in [0,1).
func (f *Frame) CPR() (odd bool, lat, lon float64) {
	odd = (f[6]>>2)&1 == 1
	rawLat := uint32(f[6]&3)<<15 | uint32(f[7])<<7 | uint32(f[8])>>1
	rawLon := uint32(f[8]&1)<<16 | uint32(f[9])<<8 | uint32(f[10])
	return odd, float64(rawLat) / CPRScale, float64(rawLon) / CPRScale
}

// AltitudeField returns the 12-bit altitude field of an airborne position frame
func (f *Frame) AltitudeField() uint16 {
	return uint16(f[5])<<4 | uint16(f[6])>>4
}

// Movement returns the 7-bit surface movement (ground speed) field
func (f *Frame) Movement() uint8 {
	return (f[4]&7)<<4 | f[5]>>4
}

// GroundTrack returns the surface ground track status and value in degrees
func (f *Frame) GroundTrack() (valid bool, degrees float64) {
	valid = (f[5]>>3)&1 == 1
	raw := (f[5]&7)<<4 | f[6]>>4
	return valid, float64(raw) * 360.0 / 128.0
}

// VelocityFields holds the raw contents of an airborne velocity frame (TC 19)
type VelocityFields struct {
	Subtype uint8

	// Subtypes 1 and 2: ground speed components
	WestSign   bool
	EastWest   uint16
	SouthSign  bool
	NorthSouth uint16

	// Subtypes 3 and 4: heading and airspeed
	HeadingValid bool
	HeadingRaw   uint16
	TrueAirspeed bool
	Airspeed     uint16

	VerticalRateDown bool
	VerticalRateRaw  uint16
}

// Velocity decodes the fields of an airborne velocity frame
func (f *Frame) Velocity() VelocityFields {
	v := VelocityFields{Subtype: f.Subtype()}
	if v.Subtype == 1 || v.Subtype == 2 {
		v.WestSign = (f[5]>>2)&1 == 1
		v.EastWest = uint16(f[5]&3)<<8 | uint16(f[6])
		v.SouthSign = f[7]>>7 == 1
		v.NorthSouth = uint16(f[7]&0x7f)<<3 | uint16(f[8])>>5
	} else {
		v.HeadingValid = (f[5]>>2)&1 == 1
		v.HeadingRaw = uint16(f[5]&3)<<8 | uint16(f[6])
		v.TrueAirspeed = f[7]>>7 == 1
		v.Airspeed = uint16(f[7]&0x7f)<<3 | uint16(f[8])>>5
	}
	v.VerticalRateDown = (f[8]>>3)&1 == 1
	v.VerticalRateRaw = uint16(f[8]&7)<<6 | uint16(f[9])>>2
	return v
}

// VerticalRate returns the signed vertical rate in ft/min. A raw value of 0
// means no information.
func (v VelocityFields) VerticalRate() (int, bool) {
	if v.VerticalRateRaw == 0 {
		return 0, false
	}
	rate := (int(v.VerticalRateRaw) - 1) * 64
	if v.VerticalRateDown {
		rate = -rate
	}
	return rate, true
}

// Status decodes the emergency state and Mode A field of a TC 28 subtype 1 frame
func (f *Frame) Status() (emergency uint8, modeA uint16) {
	emergency = (f[5] >> 5) & 7
	modeA = (uint16(f[5])<<8)&0x1f00 | uint16(f[6])
	return emergency, modeA
}
