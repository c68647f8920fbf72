package adsb

import "strings"

// ME is the 56-bit extended squitter message field
type ME [7]byte

// NewFrame assembles an extended squitter and fills in its parity field
func NewFrame(df, ca uint8, icao uint32, me ME) Frame {
	var f Frame
	f[0] = df<<3 | ca&7
	f[1] = byte(icao >> 16)
	f[2] = byte(icao >> 8)
	f[3] = byte(icao)
	copy(f[4:11], me[:])

	crc := Checksum(f[:11])
	f[11] = byte(crc >> 16)
	f[12] = byte(crc >> 8)
	f[13] = byte(crc)
	return f
}

// IdentificationME encodes an identification message. Characters outside
// the callsign alphabet are sent as code 0.
func IdentificationME(tc, category uint8, callsign string) ME {
	var codes [8]uint64
	padded := (strings.ToUpper(callsign) + "        ")[:8]
	for i := 0; i < 8; i++ {
		if idx := strings.IndexByte(idMap[1:], padded[i]); idx >= 0 {
			codes[i] = uint64(idx + 1)
		}
	}

	v := uint64(tc)<<51 | uint64(category&7)<<48
	for i, c := range codes {
		v |= c << (42 - 6*uint(i))
	}
	return packME(v)
}

// AirbornePositionME encodes an airborne position message
func AirbornePositionME(tc uint8, altitude uint16, odd bool, latCPR, lonCPR uint32) ME {
	v := uint64(tc)<<51 | uint64(altitude&0xfff)<<36
	if odd {
		v |= 1 << 34
	}
	v |= uint64(latCPR&0x1ffff)<<17 | uint64(lonCPR&0x1ffff)
	return packME(v)
}

// SurfacePositionME encodes a surface position message
func SurfacePositionME(tc, movement uint8, trackValid bool, track uint8, odd bool, latCPR, lonCPR uint32) ME {
	v := uint64(tc)<<51 | uint64(movement&0x7f)<<44
	if trackValid {
		v |= 1 << 43
	}
	v |= uint64(track&0x7f) << 36
	if odd {
		v |= 1 << 34
	}
	v |= uint64(latCPR&0x1ffff)<<17 | uint64(lonCPR&0x1ffff)
	return packME(v)
}

// GroundVelocityME encodes a subtype 1 velocity message from signed east and
// north components in knots and a vertical rate in ft/min.
func GroundVelocityME(east, north, verticalRate int) ME {
	v := uint64(19)<<51 | 1<<48
	v |= signMagnitude(east, 10) << 32
	v |= signMagnitude(north, 10) << 21
	v |= verticalRateBits(verticalRate) << 10
	return packME(v)
}

// AirspeedVelocityME encodes a subtype 3 velocity message
func AirspeedVelocityME(heading float64, trueAirspeed bool, airspeed, verticalRate int) ME {
	v := uint64(19)<<51 | 3<<48
	v |= 1 << 42
	v |= uint64(heading/360*1024) & 0x3ff << 32
	if trueAirspeed {
		v |= 1 << 31
	}
	v |= uint64(airspeed+1) & 0x3ff << 21
	v |= verticalRateBits(verticalRate) << 10
	return packME(v)
}

// StatusME encodes an aircraft status (TC 28 subtype 1) message
func StatusME(emergency uint8, modeA uint16) ME {
	v := uint64(28)<<51 | 1<<48 | uint64(emergency&7)<<45 | uint64(modeA&0x1fff)<<32
	return packME(v)
}

// signMagnitude encodes a velocity component as a sign bit and value+1
func signMagnitude(value int, bits uint) uint64 {
	var sign uint64
	if value < 0 {
		sign = 1
		value = -value
	}
	return sign<<bits | uint64(value+1)&(1<<bits-1)
}

func verticalRateBits(rate int) uint64 {
	var sign uint64
	if rate < 0 {
		sign = 1
		rate = -rate
	}
	return sign<<9 | uint64(rate/64+1)&0x1ff
}

func packME(v uint64) ME {
	var me ME
	for i := 0; i < 7; i++ {
		me[i] = byte(v >> (48 - 8*uint(i)))
	}
	return me
}
