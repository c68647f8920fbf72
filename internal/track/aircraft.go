package track

import (
	"fmt"
	"regexp"
	"time"

	"github.com/brunoga/deep"

	"adsbtrack/internal/animation"
	"adsbtrack/internal/geo"
)

// MaxHistory bounds the position trail kept per aircraft
const MaxHistory = 512

var (
	flightNumberExp     = regexp.MustCompile(`^[A-Z]{2,3}[0-9]{1,4}$`)
	suffixedFlightNoExp = regexp.MustCompile(`^([A-Z]{2,3})([0-9]{1,4})[A-Z]?$`)
)

// CPRSlot holds the last CPR frame of one parity
type CPRSlot struct {
	Lat   float64
	Lon   float64
	Valid bool
	Time  time.Time
}

// Fix is a point in the position history
type Fix struct {
	Latitude  float64   `json:"lat"`
	Longitude float64   `json:"lon"`
	Altitude  int       `json:"alt"`
	Time      time.Time `json:"time"`
}

// Aircraft is the decoded state of one transponder address
type Aircraft struct {
	ICAO     uint32   `json:"-"`
	Hex      string   `json:"icao"`
	Callsign string   `json:"callsign,omitempty"`
	Flight   string   `json:"flight,omitempty"`
	Category Category `json:"category"`

	OnSurface           bool `json:"onSurface"`
	Altitude            int  `json:"altitude"`
	AltitudeValid       bool `json:"altitudeValid"`
	AltitudeGNSS        bool `json:"altitudeGnss,omitempty"`
	RunwayAltitude      int  `json:"-"`
	RunwayAltitudeValid bool `json:"-"`

	Latitude      float64    `json:"latitude"`
	Longitude     float64    `json:"longitude"`
	PositionValid bool       `json:"positionValid"`
	PositionTime  time.Time  `json:"positionTime"`
	History       []Fix      `json:"-"`
	CPR           [2]CPRSlot `json:"-"`

	Heading           float64   `json:"heading"`
	HeadingValid      bool      `json:"headingValid"`
	HeadingTime       time.Time `json:"-"`
	Speed             float64   `json:"speed"`
	SpeedValid        bool      `json:"speedValid"`
	SpeedType         SpeedType `json:"speedType"`
	VerticalRate      int       `json:"verticalRate"`
	VerticalRateValid bool      `json:"verticalRateValid"`

	Squawk      int       `json:"squawk"`
	SquawkValid bool      `json:"squawkValid"`
	Ident       bool      `json:"ident,omitempty"`
	Emergency   Emergency `json:"emergency"`

	Range     float64 `json:"range"`
	Azimuth   float64 `json:"azimuth"`
	Elevation float64 `json:"elevation"`

	Animation animation.State `json:"animation"`

	LastSeen    time.Time   `json:"lastSeen"`
	Frames      uint64      `json:"frames"`
	Correlation Correlation `json:"-"`
	Notified    bool        `json:"-"`
}

// NewAircraft creates a track for the given address
func NewAircraft(icao uint32, now time.Time) *Aircraft {
	return &Aircraft{
		ICAO:     icao,
		Hex:      FormatICAO(icao),
		LastSeen: now,
	}
}

// FormatICAO formats an address as six upper-case hex digits
func FormatICAO(icao uint32) string {
	return fmt.Sprintf("%06X", icao&0xffffff)
}

// FlightNumber derives an IATA-style flight number from a callsign. Single
// letter suffixes are stripped. Anything else gives an empty string.
func FlightNumber(callsign string) string {
	if flightNumberExp.MatchString(callsign) {
		return callsign
	}
	if m := suffixedFlightNoExp.FindStringSubmatch(callsign); m != nil {
		return m[1] + m[2]
	}
	return ""
}

// SetIdentification records the emitter category and callsign
func (a *Aircraft) SetIdentification(category Category, callsign string) (callsignChanged, categoryChanged bool) {
	callsignChanged = a.Callsign != callsign
	categoryChanged = a.Category != category
	a.Category = category
	a.Callsign = callsign
	a.Flight = FlightNumber(callsign)
	return callsignChanged, categoryChanged
}

// SetSurface updates the air/ground state. Surface and airborne CPR frames
// use different scaling so both slots are dropped on a transition.
func (a *Aircraft) SetSurface(onSurface bool) (changed bool) {
	if a.OnSurface == onSurface {
		return false
	}
	a.OnSurface = onSurface
	a.InvalidateCPR()
	return true
}

// InvalidateCPR drops both CPR slots
func (a *Aircraft) InvalidateCPR() {
	a.CPR[0].Valid = false
	a.CPR[1].Valid = false
}

// StoreCPR stores a CPR frame in the slot for its parity
func (a *Aircraft) StoreCPR(odd bool, lat, lon float64, ts time.Time) {
	i := 0
	if odd {
		i = 1
	}
	a.CPR[i] = CPRSlot{Lat: lat, Lon: lon, Valid: true, Time: ts}
}

// CPRPair reports whether both slots hold frames received within window of
// each other and which of them is more recent.
func (a *Aircraft) CPRPair(window time.Duration) (evenIsNewer, ok bool) {
	even, odd := a.CPR[0], a.CPR[1]
	if !even.Valid || !odd.Valid {
		return false, false
	}
	d := even.Time.Sub(odd.Time)
	if d < 0 {
		d = -d
	}
	return !even.Time.Before(odd.Time), d <= window
}

// SetPosition records a decoded position. It returns true the first time the
// track gets a position.
func (a *Aircraft) SetPosition(lat, lon float64, ts time.Time) (first bool) {
	first = !a.PositionValid
	a.Latitude = lat
	a.Longitude = lon
	a.PositionValid = true
	a.PositionTime = ts

	a.History = append(a.History, Fix{Latitude: lat, Longitude: lon, Altitude: a.Altitude, Time: ts})
	if n := len(a.History); n > MaxHistory {
		a.History = append(a.History[:0], a.History[n-MaxHistory:]...)
	}
	return first
}

// UpdateAzEl derives range and look angles from the station to the current position
func (a *Aircraft) UpdateAzEl(station geo.Station) {
	if !a.PositionValid {
		return
	}
	azel := station.Compute(a.Latitude, a.Longitude, float64(a.Altitude)*geo.FeetToMetres)
	a.Range = azel.Range
	a.Azimuth = azel.Azimuth
	a.Elevation = azel.Elevation
}

// PresentationAltitude adjusts barometric altitude by the airfield elevation
// so that aircraft appear to take off and land on the runway.
func (a *Aircraft) PresentationAltitude(airfieldElevation int) int {
	if a.OnSurface || a.AltitudeGNSS {
		return a.Altitude
	}
	return a.Altitude - airfieldElevation
}

// Kinematics returns the inputs for animation inference
func (a *Aircraft) Kinematics() animation.Kinematics {
	return animation.Kinematics{
		OnSurface:           a.OnSurface,
		Rotorcraft:          a.Category == CategoryRotorcraft,
		Speed:               a.Speed,
		SpeedValid:          a.SpeedValid,
		VerticalRate:        float64(a.VerticalRate),
		VerticalRateValid:   a.VerticalRateValid,
		Altitude:            float64(a.Altitude),
		RunwayAltitude:      float64(a.RunwayAltitude),
		RunwayAltitudeValid: a.RunwayAltitudeValid,
		Heading:             a.Heading,
		HeadingValid:        a.HeadingValid,
		HeadingTime:         a.HeadingTime,
	}
}

// ClearRunway discards the latched runway altitude
func (a *Aircraft) ClearRunway() {
	a.RunwayAltitude = 0
	a.RunwayAltitudeValid = false
}

// Seen records receipt of a frame
func (a *Aircraft) Seen(now time.Time, correlation float64) {
	a.LastSeen = now
	a.Frames++
	a.Correlation.Add(correlation)
}

// Age returns the time since the last frame
func (a *Aircraft) Age(now time.Time) time.Duration {
	return now.Sub(a.LastSeen)
}

// Snapshot returns a deep copy safe to hand to other goroutines
func (a *Aircraft) Snapshot() *Aircraft {
	c := deep.MustCopy(*a)

	// deep copies the *time.Location too, which drops the Local zone.
	// Times are immutable values so the originals are shared as is.
	c.PositionTime = a.PositionTime
	c.HeadingTime = a.HeadingTime
	c.LastSeen = a.LastSeen
	c.Animation.PrevHeadingTime = a.Animation.PrevHeadingTime
	for i := range c.CPR {
		c.CPR[i].Time = a.CPR[i].Time
	}
	for i := range c.History {
		c.History[i].Time = a.History[i].Time
	}
	return &c
}
