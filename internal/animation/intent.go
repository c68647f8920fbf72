package animation

import (
	"fmt"
	"math"
	"time"
)

// Control names understood by the 3D model renderer
const (
	GearControl  = "libxplanemp/controls/gear_ratio"
	FlapsControl = "libxplanemp/controls/flap_ratio"
	SlatsControl = "libxplanemp/controls/slat_ratio"
	RotorControl = "Take 001"
	engineFormat = "libxplanemp/engines/engine_rotation_angle_deg%d"
)

// Intent asks the presentation layer to play a named model animation
type Intent struct {
	Name        string    `json:"name"`
	Start       time.Time `json:"start"`
	Reverse     bool      `json:"reverse"`
	Loop        bool      `json:"loop"`
	Duration    float64   `json:"duration,omitempty"` // seconds
	Multiplier  float64   `json:"multiplier"`
	StartOffset float64   `json:"startOffset,omitempty"`
	Stop        bool      `json:"stop,omitempty"`
}

func gearIntent(start time.Time, up bool) Intent {
	return Intent{
		Name:       GearControl,
		Start:      start,
		Reverse:    up,
		Duration:   5,
		Multiplier: 0.2,
	}
}

func flapsIntent(start time.Time, current, target float64) Intent {
	retract := target < current
	offset := current
	if retract {
		offset = 1 - current
	}
	return Intent{
		Name:        FlapsControl,
		Start:       start,
		Reverse:     retract,
		Duration:    5 * math.Abs(target-current),
		Multiplier:  0.2,
		StartOffset: offset,
	}
}

func slatsIntent(start time.Time, retract bool) Intent {
	return Intent{
		Name:       SlatsControl,
		Start:      start,
		Reverse:    retract,
		Duration:   5,
		Multiplier: 0.2,
	}
}

func rotorIntent(start time.Time, stop bool) Intent {
	return Intent{
		Name:       RotorControl,
		Start:      start,
		Loop:       true,
		Multiplier: 1,
		Stop:       stop,
	}
}

// EngineControl returns the control name for engine n (1-based)
func EngineControl(n int) string {
	return fmt.Sprintf(engineFormat, n)
}

func engineIntent(start time.Time, engine int, stop bool) Intent {
	return Intent{
		Name:       EngineControl(engine),
		Start:      start,
		Loop:       true,
		Multiplier: 1,
		Stop:       stop,
	}
}
