package app

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"adsbtrack/internal/geo"
	"adsbtrack/internal/track"
)

// aircraftList is the /aircraft response
type aircraftList struct {
	Now      int64             `json:"now"`
	Count    int               `json:"count"`
	Target   string            `json:"target,omitempty"`
	Aircraft []*track.Aircraft `json:"aircraft"`
}

// routes builds the HTTP handler for metrics, snapshots and the event stream
func (app *Application) routes() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", app.metrics.Handler())
	mux.HandleFunc("GET /aircraft", app.handleAircraftList)
	mux.HandleFunc("GET /aircraft/{icao}", app.handleAircraft)
	mux.HandleFunc("GET /station", app.handleStation)
	mux.HandleFunc("PUT /station", app.handleSetStation)
	if app.hub != nil {
		mux.Handle("GET /ws", app.hub)
	}
	return mux
}

func (app *Application) handleAircraftList(w http.ResponseWriter, r *http.Request) {
	list := aircraftList{
		Now:      app.now().Unix(),
		Aircraft: app.tracker.Snapshot(),
	}
	list.Count = len(list.Aircraft)
	if target, ok := app.tracker.Target(); ok {
		list.Target = target.Hex
	}
	app.writeJSON(w, http.StatusOK, list)
}

func (app *Application) handleAircraft(w http.ResponseWriter, r *http.Request) {
	hex := strings.TrimSpace(r.PathValue("icao"))
	icao, err := strconv.ParseUint(hex, 16, 32)
	if err != nil || len(hex) > 6 {
		http.Error(w, "invalid ICAO address", http.StatusBadRequest)
		return
	}

	a, ok := app.tracker.Aircraft(uint32(icao))
	if !ok {
		http.Error(w, "aircraft not found", http.StatusNotFound)
		return
	}
	app.writeJSON(w, http.StatusOK, a)
}

func (app *Application) handleStation(w http.ResponseWriter, r *http.Request) {
	s, ok := app.tracker.Station()
	if !ok {
		http.Error(w, "station position not set", http.StatusNotFound)
		return
	}
	app.writeJSON(w, http.StatusOK, s)
}

// handleSetStation moves the receiver while tracks are live
func (app *Application) handleSetStation(w http.ResponseWriter, r *http.Request) {
	var s geo.Station
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&s); err != nil {
		http.Error(w, "invalid station: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	app.tracker.SetStation(s)
	app.writeJSON(w, http.StatusOK, s)
}

func (app *Application) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		app.logger.WithError(err).Debug("Failed to write HTTP response")
	}
}
