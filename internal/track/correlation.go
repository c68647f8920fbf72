package track

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// CorrelationWindow is the number of samples in the moving average
const CorrelationWindow = 100

// Correlation keeps the extremes and a moving average of the preamble
// correlation of received frames. Values are linear power.
type Correlation struct {
	Min     float64   `json:"-"`
	Max     float64   `json:"-"`
	Samples []float64 `json:"-"`
	Next    int       `json:"-"`
}

// Add records a sample
func (c *Correlation) Add(v float64) {
	if len(c.Samples) == 0 {
		c.Min, c.Max = v, v
	} else {
		c.Min = math.Min(c.Min, v)
		c.Max = math.Max(c.Max, v)
	}

	if len(c.Samples) < CorrelationWindow {
		c.Samples = append(c.Samples, v)
		return
	}
	c.Samples[c.Next] = v
	c.Next = (c.Next + 1) % CorrelationWindow
}

// Average returns the mean of the samples in the window
func (c *Correlation) Average() float64 {
	if len(c.Samples) == 0 {
		return 0
	}
	return stat.Mean(c.Samples, nil)
}

// Decibels returns min, average and max in dB
func (c *Correlation) Decibels() (min, avg, max float64) {
	return Decibels(c.Min), Decibels(c.Average()), Decibels(c.Max)
}

// Decibels converts a linear power to dB. Non-positive values give -100 dB.
func Decibels(power float64) float64 {
	if power <= 0 {
		return -100
	}
	return 10 * math.Log10(power)
}
