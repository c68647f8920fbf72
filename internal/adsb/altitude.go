package adsb

// Linear altitude step sizes
const (
	AltitudeStep25  = 25
	AltitudeStep100 = 100
)

// LinearAltitude converts a linear altitude code to feet
func LinearAltitude(n, step int) int {
	return n*step - 1000
}

// DecodeAltitude decodes the 12-bit altitude field of an airborne position
// frame. With the Q bit set the remaining 11 bits are a 25 ft linear code,
// otherwise they are a Gillham (Gray) code in 100 ft increments. ok is false
// for an all-zero field or an illegal Gillham code.
func DecodeAltitude(field uint16) (feet int, ok bool) {
	if field == 0 {
		return 0, false
	}

	n := int((field>>1)&0x7f0 | field&0xf)
	if field&0x10 != 0 {
		return LinearAltitude(n, AltitudeStep25), true
	}
	return gillhamAltitude(n)
}

// gillhamAltitude decodes 11 bits ordered C1 A1 C2 A2 C4 A4 B1 B2 D2 B4 D4
func gillhamAltitude(n int) (int, bool) {
	bit := func(i int) int { return (n >> i) & 1 }
	c1, a1, c2, a2, c4, a4 := bit(10), bit(9), bit(8), bit(7), bit(6), bit(5)
	b1, b2, d2, b4, d4 := bit(4), bit(3), bit(2), bit(1), bit(0)

	n500 := grayToBinary(d2<<7 | d4<<6 | a1<<5 | a2<<4 | a4<<3 | b1<<2 | b2<<1 | b4)
	n100 := grayToBinary(c1<<2|c2<<1|c4) - 1

	// C bits only take the Gray values 1..5
	switch n100 {
	case -1, 4, 5:
		return 0, false
	case 6:
		n100 = 4
	}
	if n500%2 != 0 {
		n100 = 4 - n100
	}
	return -1200 + n500*500 + n100*100, true
}

func grayToBinary(gray int) int {
	for mask := gray >> 1; mask != 0; mask >>= 1 {
		gray ^= mask
	}
	return gray
}

// DecodeSquawk converts the 13-bit Mode A identity field into its four octal
// digits written as a decimal number (7700 for an emergency squawk). The bits
// are ordered C1 A1 C2 A2 C4 A4 X B1 D1 B2 D2 B4 D4.
func DecodeSquawk(m uint16) int {
	c := (m>>12)&1 | (m>>9)&2 | (m>>6)&4
	a := (m>>11)&1 | (m>>8)&2 | (m>>5)&4
	b := (m>>5)&1 | (m>>2)&2 | (m<<1)&4
	d := (m>>4)&1 | (m>>1)&2 | (m<<2)&4
	return int(a)*1000 + int(b)*100 + int(c)*10 + int(d)
}

// IdentActive reports whether the SPI/ident bit of the Mode A field is set
func IdentActive(m uint16) bool {
	return m&0x40 != 0
}

type movementBand struct {
	upper  uint8 // last movement value in the band
	base   float64
	step   float64
	adjust uint8
}

var movementBands = []movementBand{
	{8, 0.125, 0.125, 2},
	{12, 1, 0.25, 9},
	{38, 2, 0.5, 13},
	{93, 15, 1, 39},
	{108, 70, 2, 94},
	{MovementMax, 100, 5, 109},
}

// MovementSpeed converts the surface movement field to ground speed in knots.
// 0 means no information and 125..127 are reserved; 124 encodes 175 kt or more.
func MovementSpeed(movement uint8) (float64, bool) {
	switch {
	case movement == MovementUnknown || movement > MovementMax:
		return 0, false
	case movement == MovementStopped:
		return 0, true
	}
	for _, b := range movementBands {
		if movement <= b.upper {
			return b.base + float64(movement-b.adjust)*b.step, true
		}
	}
	return 0, false
}
