package decode

import (
	"math"
	"strconv"
	"time"

	"adsbtrack/internal/opensky"
	"adsbtrack/internal/track"
)

// ApplyImported merges an externally sourced state vector into the table.
// The position is only taken if it is newer than the one already held, and
// both CPR slots are dropped so stale frames are not paired with it.
func (p *Processor) ApplyImported(s opensky.State, now time.Time) *Event {
	a, created := p.table.GetOrCreate(s.ICAO, now)
	ev := &Event{Kind: KindImport, Aircraft: a, IsNew: created}

	if s.Callsign != "" {
		ev.CallsignChanged = a.Callsign != s.Callsign
		a.Callsign = s.Callsign
		a.Flight = track.FlightNumber(s.Callsign)
	}
	if s.LastContact.After(a.LastSeen) {
		a.LastSeen = s.LastContact
	}
	a.Frames++

	a.SetSurface(s.OnGround)
	if s.TimePosition.After(a.PositionTime) {
		if s.BaroAltitude != nil {
			a.Altitude = int(*s.BaroAltitude * opensky.MetresToFeet)
			a.AltitudeValid = true
			a.AltitudeGNSS = false
		}
		if s.Latitude != nil && s.Longitude != nil {
			ev.PositionAdded = a.SetPosition(*s.Latitude, *s.Longitude, s.TimePosition)
			ev.PositionUpdated = true
			a.InvalidateCPR()
			if p.hasStation {
				a.UpdateAzEl(p.station)
			}
		}
		a.PositionTime = s.TimePosition
	}

	if s.Velocity != nil {
		a.Speed = math.Round(*s.Velocity * opensky.MetresPerSecToKt)
		a.SpeedType = track.GroundSpeed
		a.SpeedValid = true
	}
	if s.TrueTrack != nil {
		a.Heading = *s.TrueTrack
		a.HeadingValid = true
		a.HeadingTime = s.LastContact
	}
	if s.VerticalRate != nil {
		a.VerticalRate = int(math.Round(*s.VerticalRate * opensky.MetresPerSecToFtPM))
		a.VerticalRateValid = true
	}
	if squawk, err := strconv.Atoi(s.Squawk); err == nil {
		a.Squawk = squawk
		a.SquawkValid = true
	}

	p.observer.FrameDecoded(KindImport)
	if a.PositionValid {
		ev.Animations = p.animate(a, now)
	}
	return ev
}
