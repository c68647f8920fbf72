package decode

import (
	"errors"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"adsbtrack/internal/adsb"
	"adsbtrack/internal/animation"
	"adsbtrack/internal/geo"
	"adsbtrack/internal/track"
)

// DefaultPairWindow is the largest gap between an even and odd CPR frame
// accepted for global decoding. It is tighter than the nominal 10 s because
// frame timestamps are taken when buffered samples are demodulated.
const DefaultPairWindow = 8500 * time.Millisecond

// Position resolution methods reported to the observer
const (
	MethodGlobal        = "global"
	MethodGlobalSurface = "global_surface"
	MethodLocal         = "local"
)

// Config holds the decoder tunables
type Config struct {
	PairWindow      time.Duration
	RemoveTimeout   time.Duration
	SurfaceAltitude int
	Thresholds      animation.Thresholds
}

// DefaultConfig returns the decoder defaults
func DefaultConfig() Config {
	return Config{
		PairWindow:      DefaultPairWindow,
		RemoveTimeout:   track.DefaultRemoveTimeout,
		SurfaceAltitude: adsb.SurfaceAltitude,
		Thresholds:      animation.DefaultThresholds(),
	}
}

// Processor applies ADS-B frames to a track table. Frames must be processed
// by a single goroutine in arrival order.
type Processor struct {
	cfg        Config
	table      *track.Table
	inferencer *animation.Inferencer
	observer   Observer
	logger     *logrus.Logger

	station    geo.Station
	hasStation bool

	correlation     track.Correlation
	correlationOnes track.Correlation
}

// NewProcessor creates a processor with an empty track table
func NewProcessor(cfg Config, logger *logrus.Logger) *Processor {
	if cfg.PairWindow <= 0 {
		cfg.PairWindow = DefaultPairWindow
	}
	return &Processor{
		cfg:        cfg,
		table:      track.NewTable(cfg.RemoveTimeout, logger),
		inferencer: animation.NewInferencer(cfg.Thresholds, logger),
		observer:   nopObserver{},
		logger:     logger,
	}
}

// SetObserver installs an observer for decoder quality signals
func (p *Processor) SetObserver(o Observer) {
	if o == nil {
		o = nopObserver{}
	}
	p.observer = o
}

// Table returns the track table owned by the processor
func (p *Processor) Table() *track.Table {
	return p.table
}

// Station returns the receiver position and whether one is set
func (p *Processor) Station() (geo.Station, bool) {
	return p.station, p.hasStation
}

// SetStation moves the receiver and recomputes range and look angles for
// every positioned track. Positions are not decoded again.
func (p *Processor) SetStation(s geo.Station) {
	p.station = s
	p.hasStation = true
	p.table.ForEach(func(a *track.Aircraft) {
		a.UpdateAzEl(s)
	})
	p.logger.WithFields(logrus.Fields{
		"latitude":  s.Latitude,
		"longitude": s.Longitude,
		"altitude":  s.Altitude,
		"aircraft":  p.table.Len(),
	}).Info("Station position updated")
}

// Evict removes tracks that have timed out
func (p *Processor) Evict(now time.Time) []track.Expired {
	return p.table.EvictExpired(now)
}

// SignalLevel returns the average correlation and all-ones correlation over
// recent frames from every aircraft, in dB
func (p *Processor) SignalLevel() (correlation, ones float64) {
	return track.Decibels(p.correlation.Average()), track.Decibels(p.correlationOnes.Average())
}

// Process decodes one 14-byte frame received at ts. Only a wrong frame length
// is reported as an error. Frames that are not ADS-B return a nil event.
func (p *Processor) Process(frame []byte, ts time.Time, correlation, correlationOnes float64) (*Event, error) {
	fields, err := adsb.Extract(frame)
	if err != nil {
		return nil, err
	}

	if !fields.IsADSB() {
		if fields.DF == adsb.DFNonTransponder {
			p.logger.WithFields(logrus.Fields{
				"cf":   fields.CA,
				"icao": track.FormatICAO(fields.ICAO),
			}).Debug("TIS-B frame ignored")
		}
		p.observer.FrameIgnored(fields.DF)
		return nil, nil
	}

	a, created := p.table.GetOrCreate(fields.ICAO, ts)
	a.Seen(ts, correlation)
	p.correlation.Add(correlation)
	p.correlationOnes.Add(correlationOnes)

	ev := &Event{Aircraft: a, IsNew: created}
	f := &fields.Frame
	tc := fields.TypeCode

	switch {
	case tc >= 1 && tc <= 4:
		ev.Kind = KindIdentification
		category, callsign := f.Identification()
		ev.CallsignChanged, ev.CategoryChanged = a.SetIdentification(track.CategoryFor(tc, category), callsign)
		if ev.CallsignChanged {
			p.logger.WithFields(logrus.Fields{
				"icao":     a.Hex,
				"callsign": a.Callsign,
				"category": a.Category,
			}).Debug("Identification")
		}

	case (tc >= 5 && tc <= 18) || (tc >= 20 && tc <= 22):
		ev.Kind = KindAirbornePosition
		if tc <= 8 {
			ev.Kind = KindSurfacePosition
		}
		ev.PositionUpdated, ev.PositionAdded = p.position(a, f, tc, ts)

	case tc == 19:
		ev.Kind = KindVelocity
		p.velocity(a, f.Velocity(), ts)

	case tc == 28 && fields.Subtype == 1:
		ev.Kind = KindStatus
		emergency, modeA := f.Status()
		a.Emergency = track.Emergency(emergency)
		a.Squawk = adsb.DecodeSquawk(modeA)
		a.SquawkValid = true
		a.Ident = adsb.IdentActive(modeA)
		ev.Ident = a.Ident

	default:
		// TC 28/2 (ACAS RA), 29 (target state) and 31 (operational status)
		// carry nothing tracked here
		ev.Kind = KindOther
	}
	p.observer.FrameDecoded(ev.Kind)

	if a.PositionValid {
		ev.Animations = p.animate(a, ts)
	}
	// The renderer switches model on a category change so the controls are
	// reset after this frame's animations have been issued.
	if ev.CategoryChanged {
		a.Animation.Reset()
	}
	return ev, nil
}

func (p *Processor) animate(a *track.Aircraft, ts time.Time) []animation.Intent {
	intents, clearRunway := p.inferencer.Infer(&a.Animation, a.Kinematics(), ts)
	if clearRunway {
		a.ClearRunway()
	}
	return intents
}

// position handles surface and airborne position frames
func (p *Processor) position(a *track.Aircraft, f *adsb.Frame, tc uint8, ts time.Time) (updated, first bool) {
	onSurface := tc <= 8
	wasOnSurface := a.OnSurface
	a.SetSurface(onSurface)

	if onSurface {
		a.Altitude = p.cfg.SurfaceAltitude
		a.AltitudeValid = true
		a.AltitudeGNSS = false

		movement := f.Movement()
		if speed, ok := adsb.MovementSpeed(movement); ok {
			a.Speed = speed
			a.SpeedType = track.GroundSpeed
			a.SpeedValid = true
		} else if movement == adsb.MovementUnknown {
			a.SpeedValid = false
		}
		if valid, heading := f.GroundTrack(); valid {
			a.Heading = heading
			a.HeadingValid = true
			a.HeadingTime = ts
		}
	} else {
		alt, ok := adsb.DecodeAltitude(f.AltitudeField())
		if ok {
			a.Altitude = alt
		}
		a.AltitudeValid = ok
		a.AltitudeGNSS = tc >= 20
		// Runway elevation is taken to be the first airborne altitude
		if wasOnSurface && ok {
			a.RunwayAltitude = alt
			a.RunwayAltitudeValid = true
		}
	}

	odd, cprLat, cprLon := f.CPR()
	a.StoreCPR(odd, cprLat, cprLon, ts)

	lat, lon, method, err := p.resolve(a, odd, adsb.CPRFrame{Lat: cprLat, Lon: cprLon})
	if err != nil {
		p.observer.PositionRejected(err)
		if errors.Is(err, adsb.ErrAmbiguousPair) || errors.Is(err, adsb.ErrLatitudeRange) {
			a.InvalidateCPR()
		}
		p.logger.WithFields(logrus.Fields{
			"icao":   a.Hex,
			"method": method,
		}).WithError(err).Debug("Position rejected")
		return false, false
	}
	if method == "" {
		return false, false
	}

	first = a.SetPosition(lat, lon, ts)
	if p.hasStation {
		a.UpdateAzEl(p.station)
	}
	p.observer.PositionResolved(method)
	return true, first
}

// resolve picks global decoding when a usable pair is held and falls back to
// local decoding against the station otherwise. An empty method with a nil
// error means there was nothing to decode against.
func (p *Processor) resolve(a *track.Aircraft, odd bool, frame adsb.CPRFrame) (lat, lon float64, method string, err error) {
	if evenIsNewer, ok := a.CPRPair(p.cfg.PairWindow); ok {
		even := adsb.CPRFrame{Lat: a.CPR[0].Lat, Lon: a.CPR[0].Lon}
		oddFrame := adsb.CPRFrame{Lat: a.CPR[1].Lat, Lon: a.CPR[1].Lon}

		switch {
		case !a.OnSurface:
			lat, lon, err = adsb.GlobalDecode(even, oddFrame, evenIsNewer, false)
			return lat, lon, MethodGlobal, err
		case p.hasStation:
			lat, lon, err = adsb.GlobalDecodeSurface(even, oddFrame, evenIsNewer, p.station.Latitude, p.station.Longitude)
			return lat, lon, MethodGlobalSurface, err
		}
	}

	if !p.hasStation {
		return 0, 0, "", nil
	}
	lat, lon = adsb.LocalDecode(p.station.Latitude, p.station.Longitude, frame, odd, a.OnSurface)
	azel := p.station.Compute(lat, lon, float64(a.Altitude)*geo.FeetToMetres)
	if azel.Range >= adsb.LocalRange(a.OnSurface) {
		return 0, 0, MethodLocal, adsb.ErrOutOfRange
	}
	return lat, lon, MethodLocal, nil
}

// velocity handles airborne velocity frames
func (p *Processor) velocity(a *track.Aircraft, v adsb.VelocityFields, ts time.Time) {
	switch v.Subtype {
	case 1, 2:
		if v.EastWest != 0 && v.NorthSouth != 0 {
			we := float64(v.EastWest) - 1
			if v.WestSign {
				we = -we
			}
			sn := float64(v.NorthSouth) - 1
			if v.SouthSign {
				sn = -sn
			}
			if v.Subtype == 2 {
				we, sn = we*4, sn*4
			}
			a.Speed = math.Round(math.Hypot(we, sn))
			a.SpeedType = track.GroundSpeed
			a.SpeedValid = true
			a.Heading = geo.NormalizeHeading(math.Atan2(we, sn) * 180 / math.Pi)
			a.HeadingValid = true
			a.HeadingTime = ts
		}
	case 3, 4:
		if v.HeadingValid {
			a.Heading = float64(v.HeadingRaw) / 1024 * 360
			a.HeadingValid = true
			a.HeadingTime = ts
		}
		if v.Airspeed != 0 {
			speed := float64(v.Airspeed) - 1
			if v.Subtype == 4 {
				speed *= 4
			}
			a.Speed = speed
			a.SpeedType = track.IndicatedAirspeed
			if v.TrueAirspeed {
				a.SpeedType = track.TrueAirspeed
			}
			a.SpeedValid = true
		}
	default:
		return
	}

	if rate, ok := v.VerticalRate(); ok {
		a.VerticalRate = rate
		a.VerticalRateValid = true
	}
}
