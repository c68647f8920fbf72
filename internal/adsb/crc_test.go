package adsb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var knownFrames = []string{
	"8D4840D6202CC371C32CE0576098",
	"8D40621D58C382D690C8AC2863A7",
	"8D40621D58C386435CC412692AD6",
	"8D485020994409940838175B284F",
	"8DA05F219B06B6AF189400CBC33F",
}

// TestChecksum tests that valid frames leave a zero remainder
func TestChecksum(t *testing.T) {
	for _, s := range knownFrames {
		t.Run(s, func(t *testing.T) {
			assert.Zero(t, Checksum(mustHex(t, s)))
		})
	}

	f := NewFrame(17, 5, 0x123456, StatusME(0, 0x808))
	assert.Zero(t, Checksum(f[:]))
}

// TestValidate tests error detection and correction
func TestValidate(t *testing.T) {
	var original Frame
	copy(original[:], mustHex(t, knownFrames[0]))

	t.Run("Clean frame", func(t *testing.T) {
		f := original
		corrected, ok := Validate(&f, 2)
		assert.True(t, ok)
		assert.Zero(t, corrected)
	})

	t.Run("Single bit error", func(t *testing.T) {
		for _, bit := range []int{5, 8, 40, 87, 111} {
			f := original
			flipBit(&f, bit)

			_, ok := Validate(&f, 0)
			assert.False(t, ok, "bit %d accepted without correction", bit)

			corrected, ok := Validate(&f, 1)
			require.True(t, ok, "bit %d", bit)
			assert.Equal(t, 1, corrected)
			assert.Equal(t, original, f)
		}
	})

	t.Run("Two bit error", func(t *testing.T) {
		f := original
		flipBit(&f, 20)
		flipBit(&f, 77)

		f1 := f
		_, ok := Validate(&f1, 1)
		assert.False(t, ok)

		corrected, ok := Validate(&f, 2)
		require.True(t, ok)
		assert.Equal(t, 2, corrected)
		assert.Equal(t, original, f)
	})

	t.Run("Downlink format bits are not corrected", func(t *testing.T) {
		f := original
		flipBit(&f, 2)
		_, ok := Validate(&f, 2)
		assert.False(t, ok)
	})
}

// TestSyndromeTablesSize tests that every error position has a distinct syndrome
func TestSyndromeTablesSize(t *testing.T) {
	assert.Len(t, crcSingleBit, frameBits)
	assert.Len(t, crcTwoBit, frameBits*(frameBits-1)/2)
}
