package opensky

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const statesBody = `{
  "time": 1700000000,
  "states": [
    ["4840d6", "KLM1023 ", "Kingdom of the Netherlands", 1699999995, 1699999999, 4.7639, 52.3086, 1219.2, false, 128.6, 270.5, -5.2, null, 1250.0, "7700", false, 0],
    ["a05f21", null, "United States", null, 1699999990, null, null, null, true, null, null, null, null, null, null, false, 0]
  ]
}`

// TestParseStates tests state vector decoding
func TestParseStates(t *testing.T) {
	states, err := ParseStates(strings.NewReader(statesBody))
	require.NoError(t, err)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), states.Time)
	require.Len(t, states.States, 2)

	s := states.States[0]
	assert.Equal(t, uint32(0x4840D6), s.ICAO)
	assert.Equal(t, "KLM1023", s.Callsign)
	assert.Equal(t, time.Unix(1699999995, 0).UTC(), s.TimePosition)
	require.NotNil(t, s.Latitude)
	assert.Equal(t, 52.3086, *s.Latitude)
	require.NotNil(t, s.BaroAltitude)
	assert.Equal(t, 1219.2, *s.BaroAltitude)
	assert.False(t, s.OnGround)
	require.NotNil(t, s.VerticalRate)
	assert.Equal(t, -5.2, *s.VerticalRate)
	assert.Equal(t, "7700", s.Squawk)

	empty := states.States[1]
	assert.Equal(t, uint32(0xA05F21), empty.ICAO)
	assert.Empty(t, empty.Callsign)
	assert.Nil(t, empty.Latitude)
	assert.Nil(t, empty.Velocity)
	assert.True(t, empty.OnGround)
	assert.Equal(t, states.Time.Add(-positionAge), empty.TimePosition)
}

// TestParseStatesErrors tests malformed responses
func TestParseStatesErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"Not JSON", "<html>"},
		{"No time", `{"states": []}`},
		{"Short state", `{"time": 1, "states": [["4840d6"]]}`},
		{"Bad address", `{"time": 1, "states": [["zzzzzz", null, null, null, null, null, null, null, false, null, null, null, null, null, null]]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseStates(strings.NewReader(tt.body))
			assert.Error(t, err)
		})
	}
}

// TestFetch tests the HTTP request and bounding box parameters
func TestFetch(t *testing.T) {
	var gotQuery string
	var gotUser string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/states/all", r.URL.Path)
		gotQuery = r.URL.RawQuery
		gotUser, _, _ = r.BasicAuth()
		w.Write([]byte(statesBody))
	}))
	defer srv.Close()

	bbox := BoundingBox{MinLatitude: 50, MaxLatitude: 54.5, MinLongitude: 2, MaxLongitude: 8}
	c := NewClient(srv.URL+"/api/", "user", "secret", bbox, 5*time.Second)

	states, err := c.Fetch(context.Background())
	require.NoError(t, err)
	assert.Len(t, states.States, 2)
	assert.Equal(t, "lamax=54.5&lamin=50&lomax=8&lomin=2", gotQuery)
	assert.Equal(t, "user", gotUser)
}

// TestFetchStatus tests non-200 responses
func TestFetchStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", "", BoundingBox{}, time.Second)
	_, err := c.Fetch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}
