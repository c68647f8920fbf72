package app

import (
	"sync"

	"adsbtrack/internal/decode"
	"adsbtrack/internal/geo"
	"adsbtrack/internal/track"
)

// Tracker guards a processor so HTTP and WebSocket readers can take
// snapshots while the decode loop updates tracks
type Tracker struct {
	mutex     sync.RWMutex
	processor *decode.Processor
}

// NewTracker wraps p
func NewTracker(p *decode.Processor) *Tracker {
	return &Tracker{processor: p}
}

// Update runs fn with exclusive access to the processor. Aircraft pointers
// seen inside fn must not escape it.
func (t *Tracker) Update(fn func(p *decode.Processor)) {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	fn(t.processor)
}

// Snapshot returns copies of every track ordered by address
func (t *Tracker) Snapshot() []*track.Aircraft {
	t.mutex.RLock()
	defer t.mutex.RUnlock()
	return t.processor.Table().Snapshot()
}

// Aircraft returns a copy of one track
func (t *Tracker) Aircraft(icao uint32) (*track.Aircraft, bool) {
	t.mutex.RLock()
	defer t.mutex.RUnlock()

	a, ok := t.processor.Table().Get(icao)
	if !ok {
		return nil, false
	}
	return a.Snapshot(), true
}

// Target returns a copy of the followed track, if any
func (t *Tracker) Target() (*track.Aircraft, bool) {
	t.mutex.RLock()
	defer t.mutex.RUnlock()

	a, ok := t.processor.Table().Target()
	if !ok {
		return nil, false
	}
	return a.Snapshot(), true
}

// Len returns the number of tracks
func (t *Tracker) Len() int {
	t.mutex.RLock()
	defer t.mutex.RUnlock()
	return t.processor.Table().Len()
}

// SignalLevel returns the average correlation levels in dB
func (t *Tracker) SignalLevel() (correlation, ones float64) {
	t.mutex.RLock()
	defer t.mutex.RUnlock()
	return t.processor.SignalLevel()
}

// Station returns the receiver position, if one is set
func (t *Tracker) Station() (geo.Station, bool) {
	t.mutex.RLock()
	defer t.mutex.RUnlock()
	return t.processor.Station()
}

// SetStation moves the receiver and recomputes look angles for every track
func (t *Tracker) SetStation(s geo.Station) {
	t.Update(func(p *decode.Processor) {
		p.SetStation(s)
	})
}
