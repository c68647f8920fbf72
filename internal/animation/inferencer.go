package animation

import (
	"math"
	"time"

	"github.com/sirupsen/logrus"
)

// Phase is the inferred flight phase of an aircraft
type Phase int

const (
	OnGround Phase = iota
	Rotation
	Climb
	Cruise
	Descent
	Approach
	Landed
)

var phaseNames = [...]string{"on ground", "rotation", "climb", "cruise", "descent", "approach", "landed"}

func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return "unknown"
	}
	return phaseNames[p]
}

// Airborne reports whether the phase is one of the in-flight phases
func (p Phase) Airborne() bool {
	return p == Rotation || p == Climb || p == Cruise || p == Descent || p == Approach
}

// Flap settings
const (
	FlapsUp       = 0.0
	FlapsTakeoff  = 0.25
	FlapsApproach = 0.25
	FlapsLanding  = 0.5
	FlapsFull     = 1.0
)

// Surface speed limits in knots
const (
	taxiSpeed       = 20.0
	takeoffRunSpeed = 30.0
	rollOutSpeed    = 80.0
	touchdownSpeed  = 130.0
	rotateRate      = 300.0
	maxRoll         = 15.0
)

// Thresholds are the tunable limits driving the phase model
type Thresholds struct {
	GearDownSpeed        float64 `yaml:"gear_down_speed"`        // knots
	GearUpAltitude       float64 `yaml:"gear_up_altitude"`       // feet above runway
	GearUpVerticalRate   float64 `yaml:"gear_up_vertical_rate"`  // ft/min
	AccelerationHeight   float64 `yaml:"acceleration_height"`    // feet above runway
	FlapsRetractAltitude float64 `yaml:"flaps_retract_altitude"` // feet above runway
	FlapsCleanSpeed      float64 `yaml:"flaps_clean_speed"`      // knots
}

// DefaultThresholds returns the limits used for typical airliner traffic
func DefaultThresholds() Thresholds {
	return Thresholds{
		GearDownSpeed:        150,
		GearUpAltitude:       200,
		GearUpVerticalRate:   1000,
		AccelerationHeight:   1500,
		FlapsRetractAltitude: 2000,
		FlapsCleanSpeed:      200,
	}
}

// State is the per-aircraft animation state carried between frames
type State struct {
	Phase           Phase     `json:"phase"`
	GearDown        bool      `json:"gearDown"`
	Flaps           float64   `json:"flaps"`
	Pitch           float64   `json:"pitch"`
	Roll            float64   `json:"roll"`
	EngineStarted   bool      `json:"engineStarted"`
	RotorStarted    bool      `json:"rotorStarted"`
	PrevHeading     float64   `json:"-"`
	PrevHeadingTime time.Time `json:"-"`
}

// Reset returns the model controls to their initial positions. It is used
// when the emitter category changes and a different model is drawn.
func (s *State) Reset() {
	s.GearDown = false
	s.Flaps = FlapsUp
	s.EngineStarted = false
	s.RotorStarted = false
}

// Kinematics is the decoded aircraft state the model is driven by
type Kinematics struct {
	OnSurface           bool
	Rotorcraft          bool
	Speed               float64
	SpeedValid          bool
	VerticalRate        float64
	VerticalRateValid   bool
	Altitude            float64
	RunwayAltitude      float64
	RunwayAltitudeValid bool
	Heading             float64
	HeadingValid        bool
	HeadingTime         time.Time
}

func (k Kinematics) aboveRunway(height float64) bool {
	return k.RunwayAltitudeValid && k.Altitude > k.RunwayAltitude+height
}

func (k Kinematics) climbingFaster(rate float64) bool {
	return k.VerticalRateValid && k.VerticalRate > rate
}

func (k Kinematics) descending() bool {
	return k.VerticalRateValid && k.VerticalRate < 0
}

// Inferencer derives gear, flaps, engine, pitch and roll changes from
// successive kinematic updates
type Inferencer struct {
	Thresholds Thresholds
	logger     *logrus.Logger
}

// NewInferencer creates an inferencer using the given thresholds
func NewInferencer(thresholds Thresholds, logger *logrus.Logger) *Inferencer {
	return &Inferencer{Thresholds: thresholds, logger: logger}
}

// Infer updates s from k and returns the animations to play. clearRunway is
// set once the climb-out is complete and the latched runway altitude should
// be discarded.
func (inf *Inferencer) Infer(s *State, k Kinematics, now time.Time) (intents []Intent, clearRunway bool) {
	th := inf.Thresholds

	// Gear is down on the surface. Speed is checked as surface and airborne
	// positions can be mixed during the takeoff roll.
	if k.OnSurface && !s.GearDown && (!k.SpeedValid || k.Speed < rollOutSpeed) {
		intents = append(intents, gearIntent(now, false))
		s.GearDown = true
	}

	if k.OnSurface && k.SpeedValid {
		if k.Speed <= taxiSpeed && s.Flaps != FlapsUp {
			intents = append(intents, flapsIntent(now, s.Flaps, FlapsUp), slatsIntent(now, true))
			s.Flaps = FlapsUp
		} else if k.Speed >= takeoffRunSpeed && s.Flaps < FlapsTakeoff {
			intents = append(intents, flapsIntent(now, s.Flaps, FlapsTakeoff), slatsIntent(now, false))
			s.Flaps = FlapsTakeoff
		}
	}

	if s.GearDown && !k.OnSurface && (k.climbingFaster(rotateRate) || k.aboveRunway(th.GearUpAltitude/2)) {
		s.Pitch = 5
	}

	if s.GearDown && !k.OnSurface && (k.climbingFaster(th.GearUpVerticalRate) || k.aboveRunway(th.GearUpAltitude)) {
		s.Pitch = 10
		intents = append(intents, gearIntent(now.Add(2*time.Second), true))
		s.GearDown = false
	}

	if s.Flaps > FlapsUp && k.aboveRunway(th.AccelerationHeight) {
		s.Pitch = 5
	}

	if s.Flaps > FlapsUp && (k.aboveRunway(th.FlapsRetractAltitude) || (k.SpeedValid && k.Speed > th.FlapsCleanSpeed)) {
		intents = append(intents, flapsIntent(now, s.Flaps, FlapsUp), slatsIntent(now, true))
		s.Flaps = FlapsUp
		k.RunwayAltitudeValid = false
		clearRunway = true
	}

	// Airport elevation is unknown so the approach is judged on speed and
	// descent only. Descent during the climb-out is excluded by the runway latch.
	if !k.OnSurface && !k.RunwayAltitudeValid && k.descending() && k.SpeedValid &&
		k.Speed < th.FlapsCleanSpeed && s.Flaps < FlapsApproach {
		intents = append(intents, flapsIntent(now, s.Flaps, FlapsApproach))
		s.Flaps = FlapsApproach
		s.Pitch = 1
	}

	if !s.GearDown && !k.OnSurface && !k.RunwayAltitudeValid && k.descending() &&
		k.SpeedValid && k.Speed < th.GearDownSpeed {
		intents = append(intents,
			flapsIntent(now, s.Flaps, FlapsLanding),
			slatsIntent(now, false),
			gearIntent(now.Add(8*time.Second), false),
			flapsIntent(now.Add(16*time.Second), FlapsLanding, FlapsFull),
		)
		s.GearDown = true
		s.Flaps = FlapsFull
		s.Pitch = 3
	}

	intents = append(intents, inf.engines(s, k, now)...)
	inf.attitude(s, k)

	if phase := nextPhase(s, k); phase != s.Phase {
		if inf.logger != nil {
			inf.logger.WithFields(logrus.Fields{
				"from": s.Phase,
				"to":   phase,
			}).Debug("Flight phase changed")
		}
		s.Phase = phase
	}
	return intents, clearRunway
}

func (inf *Inferencer) engines(s *State, k Kinematics, now time.Time) []Intent {
	if k.Rotorcraft {
		switch {
		case !s.RotorStarted && !k.OnSurface:
			s.RotorStarted = true
			return []Intent{rotorIntent(now, false)}
		case s.RotorStarted && k.OnSurface:
			s.RotorStarted = false
			return []Intent{rotorIntent(now, true)}
		}
		return nil
	}

	switch {
	case !s.EngineStarted && k.SpeedValid && k.Speed > 0:
		s.EngineStarted = true
		return []Intent{engineIntent(now, 1, false), engineIntent(now, 2, false)}
	case s.EngineStarted && k.SpeedValid && k.Speed == 0:
		s.EngineStarted = false
		return []Intent{engineIntent(now, 1, true), engineIntent(now, 2, true)}
	}
	return nil
}

// attitude estimates pitch and roll so the model looks plausible
func (inf *Inferencer) attitude(s *State, k Kinematics) {
	if k.OnSurface {
		if k.SpeedValid {
			if k.Speed < rollOutSpeed {
				s.Pitch = 0
			} else if k.Speed < touchdownSpeed && s.Pitch >= 2 {
				s.Pitch = 1
			}
		}
	} else if s.Flaps < FlapsApproach && k.VerticalRateValid {
		s.Pitch = math.Abs(k.VerticalRate / 400)
	}

	if k.OnSurface || (k.RunwayAltitudeValid && k.Altitude < k.RunwayAltitude+inf.Thresholds.AccelerationHeight) {
		s.Roll = 0
		return
	}
	if !k.HeadingValid {
		return
	}
	if !s.PrevHeadingTime.IsZero() {
		if secs := k.HeadingTime.Sub(s.PrevHeadingTime).Seconds(); secs > 0 {
			turn := math.Mod(k.Heading-s.PrevHeading+540, 360) - 180
			s.Roll = math.Max(-maxRoll, math.Min(maxRoll, turn/secs))
		}
	}
	s.PrevHeading = k.Heading
	s.PrevHeadingTime = k.HeadingTime
}

func nextPhase(s *State, k Kinematics) Phase {
	if k.OnSurface {
		switch {
		case s.Phase.Airborne():
			return Landed
		case s.Phase == Landed && k.SpeedValid && k.Speed > taxiSpeed:
			return Landed
		}
		return OnGround
	}

	switch {
	case k.RunwayAltitudeValid && s.GearDown:
		return Rotation
	case k.RunwayAltitudeValid || k.climbingFaster(rotateRate):
		return Climb
	case s.GearDown || s.Flaps >= FlapsApproach:
		return Approach
	case k.VerticalRateValid && k.VerticalRate < -rotateRate:
		return Descent
	}
	return Cruise
}
