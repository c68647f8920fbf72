package app

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adsbtrack/internal/config"
	"adsbtrack/internal/notify"
	"adsbtrack/internal/publish"
	"adsbtrack/internal/source"
)

const (
	identFrame    = "8D4840D6202CC371C32CE0576098"
	oddFrame      = "8D40621D58C386435CC412692AD6"
	evenFrame     = "8D40621D58C382D690C8AC2863A7"
	velocityFrame = "8D485020994409940838175B284F"
	// single bit error in the payload of a frame from an unseen address
	corruptFrame = "8DA05F219B07B6AF189400CBC33F"
	shortFrame   = "5D4840D6F3B4C7"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.HTTP.Listen = ""
	cfg.SBS.Stdout = true
	return cfg
}

func newTestApp(cfg *config.Config) (*Application, *bytes.Buffer) {
	var stdout bytes.Buffer
	app := NewApplication(cfg, quietLogger())
	app.stdout = &stdout
	return app, &stdout
}

func capture(frames ...string) string {
	var b strings.Builder
	b.WriteString(strings.Join(source.FrameLogHeader, ",") + "\n")
	for _, f := range frames {
		b.WriteString("2024-03-01,12:00:00.000," + f + ",0.5\n")
	}
	return b.String()
}

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	require.NoError(t, err)
	return b
}

func runReplay(t *testing.T, app *Application, frames ...string) {
	t.Helper()
	app.AddSource(source.NewReplay(strings.NewReader(capture(frames...)), app.logger))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, app.Run(ctx))
}

// TestRunReplay tests the full pipeline from a CSV capture to SBS output
func TestRunReplay(t *testing.T) {
	app, stdout := newTestApp(testConfig())
	runReplay(t, app, identFrame, oddFrame, evenFrame, velocityFrame, corruptFrame, shortFrame)

	assert.Equal(t, int64(6), app.stats.frames.Load())
	assert.Equal(t, int64(1), app.stats.invalid.Load())
	assert.Equal(t, int64(1), app.stats.rejected.Load())
	assert.Equal(t, int64(4), app.stats.events.Load())

	aircraft := app.tracker.Snapshot()
	require.Len(t, aircraft, 3)
	assert.Equal(t, "40621D", aircraft[0].Hex)
	assert.Equal(t, "4840D6", aircraft[1].Hex)
	assert.Equal(t, "485020", aircraft[2].Hex)

	assert.Equal(t, "KLM1023", aircraft[1].Callsign)
	assert.True(t, aircraft[0].PositionValid)
	assert.InDelta(t, 52.2572, aircraft[0].Latitude, 1e-3)
	assert.InDelta(t, 3.91937, aircraft[0].Longitude, 1e-3)
	assert.Equal(t, 38000, aircraft[0].Altitude)
	assert.True(t, aircraft[2].SpeedValid)

	_, ok := app.tracker.Aircraft(0xA05F21)
	assert.False(t, ok, "corrected frame from an unseen address must be dropped")

	out := stdout.String()
	assert.Equal(t, 3, strings.Count(out, "AIR,"))
	assert.Contains(t, out, "ID,")
	assert.Contains(t, out, "KLM1023")
	assert.Contains(t, out, "52.25720")
}

// TestRunFrameLog tests that received frames are appended to the frame log
func TestRunFrameLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frames.csv")
	cfg := testConfig()
	cfg.SBS.Stdout = false
	cfg.Input.FrameLog = path

	app, stdout := newTestApp(cfg)
	runReplay(t, app, identFrame, velocityFrame)
	assert.Empty(t, stdout.String())

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, strings.Join(source.FrameLogHeader, ","), strings.TrimSpace(lines[0]))
	assert.Contains(t, lines[1], identFrame)

	// a second run appends without another header
	app, _ = newTestApp(cfg)
	runReplay(t, app, oddFrame)
	content, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(content), "Date,Time"))
	assert.Equal(t, 4, strings.Count(strings.TrimSpace(string(content)), "\n")+1)
}

// TestFrameLogConcurrentFlush tests that periodic flushes do not interleave
// with rows written by the decode loop
func TestFrameLogConcurrentFlush(t *testing.T) {
	const n = 2000

	path := filepath.Join(t.TempDir(), "frames.csv")
	cfg := testConfig()
	cfg.SBS.Stdout = false
	cfg.Input.FrameLog = path

	app, _ := newTestApp(cfg)
	require.NoError(t, app.initializeComponents())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			assert.NoError(t, app.frameLog.Flush())
		}
	}()

	frame := mustHex(t, identFrame)
	for i := 0; i < n; i++ {
		app.handleFrame(source.Frame{Data: frame, Time: time.Now(), Correlation: 0.5})
	}
	wg.Wait()
	app.close()

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	require.Len(t, lines, n+1)
	for _, line := range lines[1:] {
		fields := strings.Split(strings.TrimSpace(line), ",")
		require.Len(t, fields, 4, "malformed row %q", line)
		assert.Equal(t, identFrame, fields[2])
	}
}

// TestRunNotificationAutoTarget tests that a matching rule targets the aircraft
func TestRunNotificationAutoTarget(t *testing.T) {
	cfg := testConfig()
	cfg.Notifications.Rules = []notify.Rule{
		{Column: notify.ColumnCallsign, Match: "^KLM", Message: "${callsign} seen", AutoTarget: true},
	}

	app, _ := newTestApp(cfg)
	runReplay(t, app, oddFrame, identFrame, identFrame)

	target, ok := app.tracker.Target()
	require.True(t, ok)
	assert.Equal(t, "4840D6", target.Hex)
}

// TestRunSBSFiles tests that SBS lines go to the daily file
func TestRunSBSFiles(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig()
	cfg.SBS.Stdout = false
	cfg.SBS.Dir = dir
	cfg.SBS.UTC = true

	app, _ := newTestApp(cfg)
	runReplay(t, app, identFrame)

	files, err := filepath.Glob(filepath.Join(dir, "adsb_*.log"))
	require.NoError(t, err)
	require.Len(t, files, 1)
	content, err := os.ReadFile(files[0])
	require.NoError(t, err)
	assert.Contains(t, string(content), "KLM1023")
}

// TestRunBadSource tests that a failing source stops the application
func TestRunBadSource(t *testing.T) {
	app, _ := newTestApp(testConfig())
	app.AddSource(source.NewReplay(strings.NewReader("Date,Time,Frame\n"), app.logger))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := app.Run(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "source failed")
}

// TestRunInvalidNotifications tests that component errors are reported
func TestRunInvalidNotifications(t *testing.T) {
	cfg := testConfig()
	cfg.Notifications.Rules = []notify.Rule{{Column: "colour", Match: "."}}

	app, _ := newTestApp(cfg)
	err := app.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to initialize components")
}

// TestEvict tests track removal output
func TestEvict(t *testing.T) {
	app, stdout := newTestApp(testConfig())
	runReplay(t, app, identFrame, velocityFrame)
	stdout.Reset()

	assert.Empty(t, app.evict(time.Now()))

	expired := app.evict(time.Now().Add(2 * time.Minute))
	assert.Len(t, expired, 2)
	assert.Equal(t, 0, app.tracker.Len())
	assert.Equal(t, 2, strings.Count(stdout.String(), "STA,"))
	assert.Contains(t, stdout.String(), "RM")
}

func startHTTP(t *testing.T) (*Application, *httptest.Server) {
	t.Helper()
	cfg := testConfig()
	cfg.SBS.Stdout = false
	cfg.HTTP.Listen = "127.0.0.1:0"

	app, _ := newTestApp(cfg)
	app.now = func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }
	require.NoError(t, app.initializeComponents())
	t.Cleanup(app.close)

	for _, f := range []string{identFrame, oddFrame, evenFrame} {
		app.handleFrame(source.Frame{Data: mustHex(t, f), Time: time.Now(), Correlation: 0.5})
	}

	server := httptest.NewServer(app.routes())
	t.Cleanup(server.Close)
	return app, server
}

// TestHTTPAircraft tests the snapshot endpoints
func TestHTTPAircraft(t *testing.T) {
	_, server := startHTTP(t)

	tests := []struct {
		name   string
		path   string
		status int
		check  func(t *testing.T, body []byte)
	}{
		{
			name:   "List",
			path:   "/aircraft",
			status: http.StatusOK,
			check: func(t *testing.T, body []byte) {
				var list struct {
					Now      int64            `json:"now"`
					Count    int              `json:"count"`
					Aircraft []map[string]any `json:"aircraft"`
				}
				require.NoError(t, json.Unmarshal(body, &list))
				assert.Equal(t, 2, list.Count)
				assert.Equal(t, int64(1709294400), list.Now)
				assert.Equal(t, "40621D", list.Aircraft[0]["icao"])
			},
		},
		{
			name:   "One aircraft",
			path:   "/aircraft/4840d6",
			status: http.StatusOK,
			check: func(t *testing.T, body []byte) {
				var a map[string]any
				require.NoError(t, json.Unmarshal(body, &a))
				assert.Equal(t, "KLM1023", a["callsign"])
			},
		},
		{name: "Unknown aircraft", path: "/aircraft/ABCDEF", status: http.StatusNotFound},
		{name: "Bad address", path: "/aircraft/XYZ", status: http.StatusBadRequest},
		{name: "Address too long", path: "/aircraft/1234567", status: http.StatusBadRequest},
		{
			name:   "Metrics",
			path:   "/metrics",
			status: http.StatusOK,
			check: func(t *testing.T, body []byte) {
				assert.Contains(t, string(body), "adsbtrack_frames_decoded_total")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Get(server.URL + tt.path)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tt.status, resp.StatusCode)
			body, err := io.ReadAll(resp.Body)
			require.NoError(t, err)
			if tt.check != nil {
				tt.check(t, body)
			}
		})
	}
}

// TestHTTPStation tests moving the receiver at runtime
func TestHTTPStation(t *testing.T) {
	app, server := startHTTP(t)

	put := func(t *testing.T, body string) *http.Response {
		t.Helper()
		req, err := http.NewRequest(http.MethodPut, server.URL+"/station", strings.NewReader(body))
		require.NoError(t, err)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		t.Cleanup(func() { resp.Body.Close() })
		return resp
	}

	resp, err := http.Get(server.URL + "/station")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	a, ok := app.tracker.Aircraft(0x40621D)
	require.True(t, ok)
	require.True(t, a.PositionValid)
	assert.Zero(t, a.Range)

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"Malformed", `{"latitude":`, http.StatusBadRequest},
		{"Unknown field", `{"lat": 52.3}`, http.StatusBadRequest},
		{"Out of range", `{"latitude": 91, "longitude": 4.76}`, http.StatusBadRequest},
		{"Valid", `{"latitude": 52.3, "longitude": 4.76, "altitude": -3}`, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.status, put(t, tt.body).StatusCode)
		})
	}

	station, ok := app.tracker.Station()
	require.True(t, ok)
	assert.Equal(t, 52.3, station.Latitude)
	assert.Equal(t, 4.76, station.Longitude)

	resp, err = http.Get(server.URL + "/station")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var got map[string]float64
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, 52.3, got["latitude"])

	// tracks already positioned get look angles from the new station
	a, ok = app.tracker.Aircraft(0x40621D)
	require.True(t, ok)
	assert.Greater(t, a.Range, 50000.0)
	assert.Less(t, a.Range, 70000.0)
	assert.Greater(t, a.Azimuth, 180.0)
	assert.Less(t, a.Azimuth, 360.0)
}

// TestHTTPWebSocket tests the snapshot and live updates on /ws
func TestHTTPWebSocket(t *testing.T) {
	app, server := startHTTP(t)

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	var msg struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, publish.TypeSnapshot, msg.Type)

	var snapshot []map[string]any
	require.NoError(t, json.Unmarshal(msg.Data, &snapshot))
	assert.Len(t, snapshot, 2)

	require.Eventually(t, func() bool { return app.hub.Len() == 1 }, time.Second, 10*time.Millisecond)
	app.handleFrame(source.Frame{Data: mustHex(t, velocityFrame), Time: time.Now(), Correlation: 0.5})

	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, publish.TypeAircraft, msg.Type)
	var a map[string]any
	require.NoError(t, json.Unmarshal(msg.Data, &a))
	assert.Equal(t, "485020", a["icao"])
}

// TestShowVersion tests the version banner
func TestShowVersion(t *testing.T) {
	var buf bytes.Buffer
	ShowVersion(&buf)
	assert.Contains(t, buf.String(), "Version: "+Version)
	assert.Contains(t, buf.String(), "Git Commit: "+GitCommit)
}
