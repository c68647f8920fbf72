// Package basestation writes decoded events as SBS-1 BaseStation lines.
package basestation

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"adsbtrack/internal/decode"
	"adsbtrack/internal/track"
)

// BaseStation message types
const (
	MessageSEL = "SEL" // selection change
	MessageID  = "ID"  // new callsign
	MessageAIR = "AIR" // new aircraft
	MessageSTA = "STA" // status change
	MessageCLK = "CLK" // click
	MessageMSG = "MSG" // transmission
)

// BaseStation transmission types
const (
	TransmissionIdentification = 1 // ES identification and category
	TransmissionSurface        = 2 // ES surface position
	TransmissionAirborne       = 3 // ES airborne position
	TransmissionVelocity       = 4 // ES airborne velocity
	TransmissionSurveillance   = 5 // surveillance altitude
	TransmissionSquawk         = 6 // surveillance ID, squawk and emergency
	TransmissionAirToAir       = 7 // air to air
	TransmissionAllCall        = 8 // all call reply
)

// StatusRemoved is the STA status sent when a track times out
const StatusRemoved = "RM"

// Destination supplies the writer for the next line. The daily rotator
// implements it.
type Destination interface {
	GetWriter() (io.Writer, error)
}

// WriterDestination adapts a fixed io.Writer such as stdout
type WriterDestination struct {
	io.Writer
}

// GetWriter returns the wrapped writer
func (d WriterDestination) GetWriter() (io.Writer, error) {
	return d.Writer, nil
}

// Message is one BaseStation line
type Message struct {
	MessageType      string
	TransmissionType int
	SessionID        int
	AircraftID       int
	HexIdent         string
	FlightID         int
	Generated        time.Time
	Logged           time.Time
	Callsign         string
	Altitude         string
	GroundSpeed      string
	Track            string
	Latitude         string
	Longitude        string
	VerticalRate     string
	Squawk           string
	Alert            string
	Emergency        string
	SPI              string
	IsOnGround       string
}

// Writer converts events to BaseStation lines and writes them to every
// destination
type Writer struct {
	destinations []Destination
	logger       *logrus.Logger
	now          func() time.Time

	mutex       sync.Mutex
	sessionID   int
	aircraftIDs map[uint32]int
	nextID      int
}

// NewWriter creates a writer with a fresh session number
func NewWriter(logger *logrus.Logger, destinations ...Destination) *Writer {
	return &Writer{
		destinations: destinations,
		logger:       logger,
		now:          time.Now,
		sessionID:    int(uuid.New().ID() % 100000),
		aircraftIDs:  make(map[uint32]int),
		nextID:       1,
	}
}

// SessionID returns the session number written in every line
func (w *Writer) SessionID() int {
	return w.sessionID
}

// WriteEvent writes the lines for one decoded event: an AIR line for a new
// track, an ID line for a changed callsign, then the MSG line.
func (w *Writer) WriteEvent(ev *decode.Event, generated time.Time) error {
	if ev == nil || ev.Aircraft == nil {
		return fmt.Errorf("event cannot be nil")
	}

	w.mutex.Lock()
	defer w.mutex.Unlock()

	a := ev.Aircraft
	logged := w.now()
	var lines []string
	if ev.IsNew {
		lines = append(lines, w.formatCSV(w.header(MessageAIR, a.ICAO, generated, logged)))
	}
	if ev.CallsignChanged && a.Callsign != "" {
		m := w.header(MessageID, a.ICAO, generated, logged)
		m.Callsign = a.Callsign
		lines = append(lines, w.formatCSV(m))
	}
	if m := w.convert(ev, generated, logged); m != nil {
		lines = append(lines, w.formatCSV(m))
	}
	return w.write(lines)
}

// WriteExpired writes a removal status line for an evicted track
func (w *Writer) WriteExpired(e track.Expired, at time.Time) error {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	m := w.header(MessageSTA, e.ICAO, at, w.now())
	m.Callsign = StatusRemoved
	line := w.formatCSV(m)
	delete(w.aircraftIDs, e.ICAO)
	return w.write([]string{line})
}

func (w *Writer) write(lines []string) error {
	if len(lines) == 0 {
		return nil
	}
	data := []byte(strings.Join(lines, "\n") + "\n")
	for _, d := range w.destinations {
		writer, err := d.GetWriter()
		if err != nil {
			return fmt.Errorf("failed to get log writer: %w", err)
		}
		if _, err := writer.Write(data); err != nil {
			return fmt.Errorf("failed to write to log: %w", err)
		}
	}
	return nil
}

func (w *Writer) header(messageType string, icao uint32, generated, logged time.Time) *Message {
	id, ok := w.aircraftIDs[icao]
	if !ok {
		id = w.nextID
		w.nextID++
		w.aircraftIDs[icao] = id
	}
	return &Message{
		MessageType: messageType,
		SessionID:   w.sessionID,
		AircraftID:  id,
		HexIdent:    track.FormatICAO(icao),
		FlightID:    id,
		Generated:   generated,
		Logged:      logged,
	}
}

// convert builds the MSG line for an event, or nil when the event carries
// nothing BaseStation can show
func (w *Writer) convert(ev *decode.Event, generated, logged time.Time) *Message {
	a := ev.Aircraft
	m := w.header(MessageMSG, a.ICAO, generated, logged)

	switch ev.Kind {
	case decode.KindIdentification:
		m.TransmissionType = TransmissionIdentification
		m.Callsign = a.Callsign

	case decode.KindSurfacePosition:
		m.TransmissionType = TransmissionSurface
		m.Altitude = altitude(a)
		if a.SpeedValid {
			m.GroundSpeed = strconv.Itoa(int(math.Round(a.Speed)))
		}
		if a.HeadingValid {
			m.Track = strconv.FormatFloat(a.Heading, 'f', 1, 64)
		}
		if ev.PositionUpdated {
			m.Latitude, m.Longitude = position(a)
		}
		m.IsOnGround = flag(true)

	case decode.KindAirbornePosition:
		m.TransmissionType = TransmissionAirborne
		m.Altitude = altitude(a)
		if ev.PositionUpdated {
			m.Latitude, m.Longitude = position(a)
		}
		m.Alert = flag(false)
		m.Emergency = flag(a.Emergency != track.EmergencyNone)
		m.SPI = flag(a.Ident)
		m.IsOnGround = flag(false)

	case decode.KindVelocity:
		m.TransmissionType = TransmissionVelocity
		if a.SpeedValid && a.SpeedType == track.GroundSpeed {
			m.GroundSpeed = strconv.Itoa(int(math.Round(a.Speed)))
		}
		if a.HeadingValid {
			m.Track = strconv.FormatFloat(a.Heading, 'f', 1, 64)
		}
		if a.VerticalRateValid {
			m.VerticalRate = strconv.Itoa(a.VerticalRate)
		}

	case decode.KindStatus:
		m.TransmissionType = TransmissionSquawk
		if a.SquawkValid {
			m.Squawk = fmt.Sprintf("%04d", a.Squawk)
		}
		m.Alert = flag(false)
		m.Emergency = flag(a.Emergency != track.EmergencyNone)
		m.SPI = flag(ev.Ident)
		m.IsOnGround = flag(a.OnSurface)

	case decode.KindImport:
		m.TransmissionType = TransmissionAirborne
		if a.OnSurface {
			m.TransmissionType = TransmissionSurface
		}
		m.Callsign = a.Callsign
		m.Altitude = altitude(a)
		if a.SpeedValid {
			m.GroundSpeed = strconv.Itoa(int(math.Round(a.Speed)))
		}
		if a.HeadingValid {
			m.Track = strconv.FormatFloat(a.Heading, 'f', 1, 64)
		}
		if ev.PositionUpdated {
			m.Latitude, m.Longitude = position(a)
		}
		if a.VerticalRateValid {
			m.VerticalRate = strconv.Itoa(a.VerticalRate)
		}
		if a.SquawkValid {
			m.Squawk = fmt.Sprintf("%04d", a.Squawk)
		}
		m.IsOnGround = flag(a.OnSurface)

	default:
		return nil
	}
	return m
}

// formatCSV formats a BaseStation message as CSV
func (w *Writer) formatCSV(msg *Message) string {
	transmission := ""
	if msg.TransmissionType != 0 {
		transmission = strconv.Itoa(msg.TransmissionType)
	}
	fields := []string{
		msg.MessageType,
		transmission,
		strconv.Itoa(msg.SessionID),
		strconv.Itoa(msg.AircraftID),
		msg.HexIdent,
		strconv.Itoa(msg.FlightID),
		msg.Generated.Format("2006/01/02"),
		msg.Generated.Format("15:04:05.000"),
		msg.Logged.Format("2006/01/02"),
		msg.Logged.Format("15:04:05.000"),
		msg.Callsign,
		msg.Altitude,
		msg.GroundSpeed,
		msg.Track,
		msg.Latitude,
		msg.Longitude,
		msg.VerticalRate,
		msg.Squawk,
		msg.Alert,
		msg.Emergency,
		msg.SPI,
		msg.IsOnGround,
	}

	return strings.Join(fields, ",")
}

func altitude(a *track.Aircraft) string {
	if !a.AltitudeValid {
		return ""
	}
	return strconv.Itoa(a.Altitude)
}

func position(a *track.Aircraft) (string, string) {
	return strconv.FormatFloat(a.Latitude, 'f', 5, 64), strconv.FormatFloat(a.Longitude, 'f', 5, 64)
}

func flag(v bool) string {
	if v {
		return "-1"
	}
	return "0"
}
