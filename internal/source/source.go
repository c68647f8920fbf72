// Package source provides the frame inputs: a Beast TCP feed, CSV capture
// replay and the CSV frame log the replay reads.
package source

import (
	"context"
	"time"
)

// Frame is one received Mode S frame with its receive time and signal scores
type Frame struct {
	Data            []byte
	Time            time.Time
	Correlation     float64
	CorrelationOnes float64
}

// Source delivers frames until its input ends or ctx is cancelled
type Source interface {
	Run(ctx context.Context, out chan<- Frame) error
}

func send(ctx context.Context, out chan<- Frame, f Frame) error {
	select {
	case out <- f:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
