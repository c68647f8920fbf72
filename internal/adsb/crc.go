package adsb

// Mode S CRC-24 generator polynomial
const crcGenerator = 0xfff409

const frameBits = FrameLength * 8

// Pre-computed CRC table
var crcTable [256]uint32

// Syndromes of single and double bit errors over a full 112-bit frame
var (
	crcSingleBit = make(map[uint32]int, frameBits)
	crcTwoBit    = make(map[uint32][2]int, frameBits*(frameBits-1)/2)
)

func init() {
	for i := 0; i < 256; i++ {
		c := uint32(i) << 16
		for j := 0; j < 8; j++ {
			if c&0x800000 != 0 {
				c = (c << 1) ^ crcGenerator
			} else {
				c <<= 1
			}
		}
		crcTable[i] = c & 0xffffff
	}

	var msg Frame
	for i := 0; i < frameBits; i++ {
		flipBit(&msg, i)
		crcSingleBit[Checksum(msg[:])] = i
		for j := i + 1; j < frameBits; j++ {
			flipBit(&msg, j)
			crcTwoBit[Checksum(msg[:])] = [2]int{i, j}
			flipBit(&msg, j)
		}
		flipBit(&msg, i)
	}
}

func flipBit(f *Frame, bit int) {
	f[bit/8] ^= 1 << (7 - uint(bit%8))
}

// Checksum returns the CRC-24 remainder of data. For a complete extended
// squitter including its parity field the remainder is zero.
func Checksum(data []byte) uint32 {
	var rem uint32
	for _, b := range data {
		rem = (rem << 8) ^ crcTable[b^byte(rem>>16)]
		rem &= 0xffffff
	}
	return rem
}

// Validate checks the parity of an extended squitter and repairs up to maxBits
// (0, 1 or 2) bit errors in place. It returns the number of bits corrected.
// Errors in the first 5 bits are never corrected since they would change the
// downlink format.
func Validate(f *Frame, maxBits int) (corrected int, ok bool) {
	syndrome := Checksum(f[:])
	if syndrome == 0 {
		return 0, true
	}

	if maxBits >= 1 {
		if bit, found := crcSingleBit[syndrome]; found && bit >= 5 {
			flipBit(f, bit)
			return 1, true
		}
	}
	if maxBits >= 2 {
		if bits, found := crcTwoBit[syndrome]; found && bits[0] >= 5 {
			flipBit(f, bits[0])
			flipBit(f, bits[1])
			return 2, true
		}
	}
	return 0, false
}
