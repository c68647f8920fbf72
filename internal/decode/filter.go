package decode

import (
	"time"

	"github.com/patrickmn/go-cache"

	"adsbtrack/internal/adsb"
	"adsbtrack/internal/track"
)

// DefaultSeenTTL is how long an address stays in the recently seen set
const DefaultSeenTTL = 60 * time.Second

// Verdict is the outcome of parity checking a frame
type Verdict int

const (
	Accepted Verdict = iota
	Corrected
	Rejected
	UnknownAddress
)

var verdictNames = [...]string{"accepted", "corrected", "rejected", "unknown_address"}

func (v Verdict) String() string {
	return verdictNames[v]
}

// Filter validates frame parity. Frames with a clean CRC register their
// address as recently seen. Repaired frames are only let through for
// addresses already seen, since a bit error can equally have hit the address.
type Filter struct {
	maxBits int
	seen    *cache.Cache
}

// NewFilter creates a filter repairing up to maxBits bit errors
func NewFilter(maxBits int, ttl time.Duration) *Filter {
	if ttl <= 0 {
		ttl = DefaultSeenTTL
	}
	return &Filter{
		maxBits: maxBits,
		seen:    cache.New(ttl, 10*time.Second),
	}
}

// Check validates f in place, repairing it when possible
func (flt *Filter) Check(f *adsb.Frame) Verdict {
	corrected, ok := adsb.Validate(f, flt.maxBits)
	if !ok {
		return Rejected
	}

	key := track.FormatICAO(f.ICAO())
	if corrected == 0 {
		flt.seen.SetDefault(key, struct{}{})
		return Accepted
	}
	if _, found := flt.seen.Get(key); !found {
		return UnknownAddress
	}
	return Corrected
}

// Seen reports whether the address passed a clean parity check recently
func (flt *Filter) Seen(icao uint32) bool {
	_, found := flt.seen.Get(track.FormatICAO(icao))
	return found
}
