package opensky

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// DefaultBaseURL is the public OpenSky Network REST endpoint
const DefaultBaseURL = "https://opensky-network.org/api"

// Unit conversions for the metric values OpenSky reports
const (
	MetresToFeet       = 3.28084
	MetresPerSecToKt   = 1.943844
	MetresPerSecToFtPM = 196.850394
)

// positionAge is assumed for states that carry no position time
const positionAge = 15 * time.Second

// BoundingBox limits an import to an area, in degrees
type BoundingBox struct {
	MinLatitude  float64 `yaml:"min_latitude"`
	MaxLatitude  float64 `yaml:"max_latitude"`
	MinLongitude float64 `yaml:"min_longitude"`
	MaxLongitude float64 `yaml:"max_longitude"`
}

// IsZero reports whether no box is set
func (b BoundingBox) IsZero() bool {
	return b == BoundingBox{}
}

// State is one aircraft state vector. Optional values are nil when OpenSky
// reports null.
type State struct {
	ICAO         uint32
	Callsign     string
	Country      string
	TimePosition time.Time
	LastContact  time.Time
	Longitude    *float64
	Latitude     *float64
	BaroAltitude *float64 // metres
	OnGround     bool
	Velocity     *float64 // m/s
	TrueTrack    *float64 // degrees
	VerticalRate *float64 // m/s
	GeoAltitude  *float64 // metres
	Squawk       string
}

// States is the response of /states/all
type States struct {
	Time   time.Time
	States []State
}

// Client fetches state vectors from the OpenSky Network
type Client struct {
	BaseURL  string
	Username string
	Password string
	BBox     BoundingBox
	client   *http.Client
}

// NewClient creates a client with a request timeout
func NewClient(baseURL, username, password string, bbox BoundingBox, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		BaseURL:  strings.TrimRight(baseURL, "/"),
		Username: username,
		Password: password,
		BBox:     bbox,
		client:   &http.Client{Timeout: timeout},
	}
}

// Fetch requests all state vectors inside the bounding box
func (c *Client) Fetch(ctx context.Context) (*States, error) {
	u := c.BaseURL + "/states/all"
	if !c.BBox.IsZero() {
		q := url.Values{}
		q.Set("lamin", strconv.FormatFloat(c.BBox.MinLatitude, 'f', -1, 64))
		q.Set("lamax", strconv.FormatFloat(c.BBox.MaxLatitude, 'f', -1, 64))
		q.Set("lomin", strconv.FormatFloat(c.BBox.MinLongitude, 'f', -1, 64))
		q.Set("lomax", strconv.FormatFloat(c.BBox.MaxLongitude, 'f', -1, 64))
		u += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return nil, err
	}
	if c.Username != "" {
		req.SetBasicAuth(c.Username, c.Password)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("OpenSky API returned status %d", resp.StatusCode)
	}
	return ParseStates(resp.Body)
}

type statesResponse struct {
	Time   *int64  `json:"time"`
	States [][]any `json:"states"`
}

// ParseStates decodes a /states/all response body
func ParseStates(r io.Reader) (*States, error) {
	var raw statesResponse
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode states: %w", err)
	}
	if raw.Time == nil {
		return nil, fmt.Errorf("response has no time field")
	}

	out := &States{Time: time.Unix(*raw.Time, 0).UTC()}
	for i, row := range raw.States {
		s, err := parseState(row, out.Time)
		if err != nil {
			return nil, fmt.Errorf("state %d: %w", i, err)
		}
		out.States = append(out.States, s)
	}
	return out, nil
}

func parseState(row []any, now time.Time) (State, error) {
	if len(row) < 15 {
		return State{}, fmt.Errorf("expected at least 15 fields, got %d", len(row))
	}

	icaoHex, _ := row[0].(string)
	icao, err := strconv.ParseUint(strings.TrimSpace(icaoHex), 16, 24)
	if err != nil {
		return State{}, fmt.Errorf("invalid icao24 %q: %w", icaoHex, err)
	}

	s := State{
		ICAO:         uint32(icao),
		Callsign:     strings.TrimSpace(str(row[1])),
		Country:      str(row[2]),
		TimePosition: now.Add(-positionAge),
		LastContact:  now,
		Longitude:    num(row[5]),
		Latitude:     num(row[6]),
		BaroAltitude: num(row[7]),
		Velocity:     num(row[9]),
		TrueTrack:    num(row[10]),
		VerticalRate: num(row[11]),
		GeoAltitude:  num(row[13]),
		Squawk:       str(row[14]),
	}
	if t := num(row[3]); t != nil {
		s.TimePosition = time.Unix(int64(*t), 0).UTC()
	}
	if t := num(row[4]); t != nil {
		s.LastContact = time.Unix(int64(*t), 0).UTC()
	}
	s.OnGround, _ = row[8].(bool)
	return s, nil
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

func num(v any) *float64 {
	f, ok := v.(float64)
	if !ok {
		return nil
	}
	return &f
}
