package decode

import (
	"adsbtrack/internal/animation"
	"adsbtrack/internal/track"
)

// Kind identifies what a decoded frame updated
type Kind int

const (
	KindOther Kind = iota
	KindIdentification
	KindSurfacePosition
	KindAirbornePosition
	KindVelocity
	KindStatus
	KindImport
)

var kindNames = [...]string{"other", "identification", "surface_position", "airborne_position", "velocity", "status", "import"}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "other"
	}
	return kindNames[k]
}

// Event describes the effect of one frame on the track table. Aircraft points
// at the live track and is only valid until the next call into the processor.
type Event struct {
	Kind            Kind
	Aircraft        *track.Aircraft
	Animations      []animation.Intent
	IsNew           bool
	CallsignChanged bool
	CategoryChanged bool
	PositionAdded   bool
	PositionUpdated bool
	Ident           bool
}

// Observer receives decoder quality signals. Implementations must not block.
type Observer interface {
	FrameDecoded(kind Kind)
	FrameIgnored(df uint8)
	PositionResolved(method string)
	PositionRejected(err error)
}

type nopObserver struct{}

func (nopObserver) FrameDecoded(Kind)       {}
func (nopObserver) FrameIgnored(uint8)      {}
func (nopObserver) PositionResolved(string) {}
func (nopObserver) PositionRejected(error)  {}
