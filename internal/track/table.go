package track

import (
	"sort"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultRemoveTimeout is how long a track survives without frames
const DefaultRemoveTimeout = 60 * time.Second

// Expired is emitted for each track removed by an eviction sweep
type Expired struct {
	ICAO uint32 `json:"-"`
	Hex  string `json:"icao"`
}

// Table is the set of tracked aircraft keyed by address. It is not safe for
// concurrent use.
type Table struct {
	aircraft      map[uint32]*Aircraft
	removeTimeout time.Duration
	target        uint32
	hasTarget     bool
	logger        *logrus.Logger
}

// NewTable creates an empty table
func NewTable(removeTimeout time.Duration, logger *logrus.Logger) *Table {
	if removeTimeout <= 0 {
		removeTimeout = DefaultRemoveTimeout
	}
	return &Table{
		aircraft:      make(map[uint32]*Aircraft),
		removeTimeout: removeTimeout,
		logger:        logger,
	}
}

// GetOrCreate returns the track for icao, creating it on first observation
func (t *Table) GetOrCreate(icao uint32, now time.Time) (a *Aircraft, created bool) {
	if a, ok := t.aircraft[icao]; ok {
		return a, false
	}
	a = NewAircraft(icao, now)
	t.aircraft[icao] = a
	t.logger.WithField("icao", a.Hex).Debug("New aircraft")
	return a, true
}

// Get returns the track for icao if present
func (t *Table) Get(icao uint32) (*Aircraft, bool) {
	a, ok := t.aircraft[icao]
	return a, ok
}

// Len returns the number of tracks
func (t *Table) Len() int {
	return len(t.aircraft)
}

// ForEach calls fn for every track in unspecified order
func (t *Table) ForEach(fn func(a *Aircraft)) {
	for _, a := range t.aircraft {
		fn(a)
	}
}

// Snapshot returns deep copies of every track ordered by address
func (t *Table) Snapshot() []*Aircraft {
	out := make([]*Aircraft, 0, len(t.aircraft))
	for _, a := range t.aircraft {
		out = append(out, a.Snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ICAO < out[j].ICAO })
	return out
}

// RemoveTimeout returns the eviction timeout
func (t *Table) RemoveTimeout() time.Duration {
	return t.removeTimeout
}

// SetRemoveTimeout changes the eviction timeout
func (t *Table) SetRemoveTimeout(d time.Duration) {
	if d > 0 {
		t.removeTimeout = d
	}
}

// SetTarget marks a track as the one being followed. The table keeps only
// the address so the reference cannot outlive the track.
func (t *Table) SetTarget(icao uint32) bool {
	if _, ok := t.aircraft[icao]; !ok {
		return false
	}
	t.target = icao
	t.hasTarget = true
	return true
}

// Target returns the followed track, if any
func (t *Table) Target() (*Aircraft, bool) {
	if !t.hasTarget {
		return nil, false
	}
	return t.Get(t.target)
}

// ClearTarget stops following the current target
func (t *Table) ClearTarget() {
	t.target = 0
	t.hasTarget = false
}

// EvictExpired removes every track that has not been seen for the remove
// timeout. The target reference is cleared before its track is deleted.
func (t *Table) EvictExpired(now time.Time) []Expired {
	var expired []Expired
	for icao, a := range t.aircraft {
		if a.Age(now) < t.removeTimeout {
			continue
		}
		if t.hasTarget && t.target == icao {
			t.ClearTarget()
		}
		delete(t.aircraft, icao)
		expired = append(expired, Expired{ICAO: icao, Hex: a.Hex})
	}

	if len(expired) > 0 {
		sort.Slice(expired, func(i, j int) bool { return expired[i].ICAO < expired[j].ICAO })
		t.logger.WithFields(logrus.Fields{
			"expired":   len(expired),
			"remaining": len(t.aircraft),
		}).Debug("Evicted aircraft")
	}
	return expired
}
