package adsb

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestLinearAltitude tests the Q-bit linear altitude path
func TestLinearAltitude(t *testing.T) {
	assert.Equal(t, 1500, LinearAltitude(100, AltitudeStep25))
	assert.Equal(t, 3000, LinearAltitude(40, AltitudeStep100))
	assert.Equal(t, -1000, LinearAltitude(0, AltitudeStep25))
}

// TestDecodeAltitude tests the 12-bit altitude field decoder
func TestDecodeAltitude(t *testing.T) {
	tests := []struct {
		name  string
		field uint16
		want  int
		ok    bool
	}{
		{"Empty field", 0x000, 0, false},
		{"Q bit, n=100", 0x0D4, 1500, true},
		{"Q bit, 38000 ft", 0xC38, 38000, true},
		{"Q bit, 25000 ft", 0x830, 25000, true},
		{"Gillham -1000 ft", 0x200, -1000, true},
		{"Gillham -200 ft", 0x08A, -200, true},
		{"Gillham 0 ft", 0x20A, 0, true},
		{"Gillham 3000 ft", 0x260, 3000, true},
		{"Gillham 10000 ft", 0x362, 10000, true},
		{"Gillham 12300 ft", 0x928, 12300, true},
		{"Gillham 30000 ft", 0x602, 30000, true},
		{"Gillham C bits zero", 0x002, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := DecodeAltitude(tt.field)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

// TestGillhamUnique tests that every legal Gillham code maps to a distinct altitude
func TestGillhamUnique(t *testing.T) {
	seen := make(map[int]uint16)
	for field := uint16(1); field < 0x1000; field++ {
		if field&0x10 != 0 {
			continue
		}
		alt, ok := DecodeAltitude(field)
		if !ok {
			continue
		}
		prev, dup := seen[alt]
		assert.False(t, dup, "fields %03x and %03x both decode to %d", prev, field, alt)
		seen[alt] = field
		assert.Zero(t, alt%100)
	}
	assert.Len(t, seen, 1280)
}

// TestGrayToBinary tests Gray code conversion
func TestGrayToBinary(t *testing.T) {
	for i := 0; i < 256; i++ {
		gray := i ^ (i >> 1)
		assert.Equal(t, i, grayToBinary(gray))
	}
}

// TestDecodeSquawk tests the Mode A bit interleave
func TestDecodeSquawk(t *testing.T) {
	tests := []struct {
		name  string
		modeA uint16
		want  int
	}{
		{"Zero", 0x0000, 0},
		{"VFR 1200", 0x0808, 1200},
		{"Emergency 7700", 0x0AAA, 7700},
		{"Radio failure 7600", 0x0A8A, 7600},
		{"Hijack 7500", 0x0AA2, 7500},
		{"All ones", 0x1FBF, 7777},
		{"Ident bit ignored", 0x0808 | 0x40, 1200},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DecodeSquawk(tt.modeA))
		})
	}
	assert.True(t, IdentActive(0x40))
	assert.False(t, IdentActive(0x808))
}

// TestMovementSpeed tests the surface movement table
func TestMovementSpeed(t *testing.T) {
	tests := []struct {
		name     string
		movement uint8
		want     float64
		ok       bool
	}{
		{"No information", 0, 0, false},
		{"Stopped", 1, 0, true},
		{"First band start", 2, 0.125, true},
		{"First band end", 8, 0.875, true},
		{"Second band", 9, 1, true},
		{"Third band", 13, 2, true},
		{"Fourth band", 39, 15, true},
		{"Fifth band", 94, 70, true},
		{"Sixth band", 109, 100, true},
		{"Maximum", 124, 175, true},
		{"Reserved", 125, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := MovementSpeed(tt.movement)
			assert.Equal(t, tt.ok, ok)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}
