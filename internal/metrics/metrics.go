// Package metrics exposes decoder and tracker counters to Prometheus.
package metrics

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"adsbtrack/internal/adsb"
	"adsbtrack/internal/decode"
)

// Metrics holds the collectors. It implements decode.Observer.
type Metrics struct {
	gatherer prometheus.Gatherer

	framesDecoded     *prometheus.CounterVec // by event kind
	framesIgnored     *prometheus.CounterVec // by downlink format
	framesInvalid     prometheus.Counter
	crcVerdicts       *prometheus.CounterVec
	positionsResolved *prometheus.CounterVec // by method
	positionsRejected *prometheus.CounterVec // by reason
	aircraftTracked   prometheus.Gauge
	aircraftExpired   prometheus.Counter
	signalCorrelation prometheus.Gauge
	notifications     prometheus.Counter
	importedStates    prometheus.Counter
	websocketClients  prometheus.Gauge
}

var _ decode.Observer = (*Metrics)(nil)

// New registers the collectors with reg
func New(reg *prometheus.Registry) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		gatherer: reg,
		framesDecoded: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "adsbtrack_frames_decoded_total",
				Help: "ADS-B frames decoded by message kind",
			},
			[]string{"kind"},
		),
		framesIgnored: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "adsbtrack_frames_ignored_total",
				Help: "Frames that are not ADS-B by downlink format",
			},
			[]string{"df"},
		),
		framesInvalid: f.NewCounter(prometheus.CounterOpts{
			Name: "adsbtrack_frames_invalid_total",
			Help: "Frames with the wrong length",
		}),
		crcVerdicts: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "adsbtrack_crc_verdicts_total",
				Help: "Parity check outcomes",
			},
			[]string{"verdict"},
		),
		positionsResolved: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "adsbtrack_positions_resolved_total",
				Help: "CPR positions decoded by method",
			},
			[]string{"method"},
		),
		positionsRejected: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "adsbtrack_positions_rejected_total",
				Help: "CPR positions discarded by reason",
			},
			[]string{"reason"},
		),
		aircraftTracked: f.NewGauge(prometheus.GaugeOpts{
			Name: "adsbtrack_aircraft_tracked",
			Help: "Aircraft currently in the track table",
		}),
		aircraftExpired: f.NewCounter(prometheus.CounterOpts{
			Name: "adsbtrack_aircraft_expired_total",
			Help: "Aircraft removed after the timeout",
		}),
		signalCorrelation: f.NewGauge(prometheus.GaugeOpts{
			Name: "adsbtrack_signal_correlation_db",
			Help: "Average frame correlation over recent frames in dB",
		}),
		notifications: f.NewCounter(prometheus.CounterOpts{
			Name: "adsbtrack_notifications_total",
			Help: "Notification rules matched",
		}),
		importedStates: f.NewCounter(prometheus.CounterOpts{
			Name: "adsbtrack_imported_states_total",
			Help: "State vectors merged from OpenSky",
		}),
		websocketClients: f.NewGauge(prometheus.GaugeOpts{
			Name: "adsbtrack_websocket_clients",
			Help: "Connected WebSocket clients",
		}),
	}
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// FrameDecoded implements decode.Observer
func (m *Metrics) FrameDecoded(kind decode.Kind) {
	m.framesDecoded.WithLabelValues(kind.String()).Inc()
}

// FrameIgnored implements decode.Observer
func (m *Metrics) FrameIgnored(df uint8) {
	m.framesIgnored.WithLabelValues(strconv.Itoa(int(df))).Inc()
}

// PositionResolved implements decode.Observer
func (m *Metrics) PositionResolved(method string) {
	m.positionsResolved.WithLabelValues(method).Inc()
}

// PositionRejected implements decode.Observer
func (m *Metrics) PositionRejected(err error) {
	m.positionsRejected.WithLabelValues(RejectReason(err)).Inc()
}

// FrameInvalid counts a frame of the wrong length
func (m *Metrics) FrameInvalid() {
	m.framesInvalid.Inc()
}

// CRCVerdict counts a parity check outcome
func (m *Metrics) CRCVerdict(v decode.Verdict) {
	m.crcVerdicts.WithLabelValues(v.String()).Inc()
}

// SetAircraft records the size of the track table
func (m *Metrics) SetAircraft(n int) {
	m.aircraftTracked.Set(float64(n))
}

// AircraftExpired counts evicted tracks
func (m *Metrics) AircraftExpired(n int) {
	m.aircraftExpired.Add(float64(n))
}

// SetSignal records the average correlation in dB
func (m *Metrics) SetSignal(db float64) {
	m.signalCorrelation.Set(db)
}

// Notified counts matched notification rules
func (m *Metrics) Notified(n int) {
	m.notifications.Add(float64(n))
}

// Imported counts merged OpenSky state vectors
func (m *Metrics) Imported(n int) {
	m.importedStates.Add(float64(n))
}

// SetWebSocketClients records the number of WebSocket clients
func (m *Metrics) SetWebSocketClients(n int) {
	m.websocketClients.Set(float64(n))
}

// RejectReason maps a position error to a metric label
func RejectReason(err error) string {
	switch {
	case errors.Is(err, adsb.ErrAmbiguousPair):
		return "ambiguous_pair"
	case errors.Is(err, adsb.ErrLatitudeRange):
		return "latitude_range"
	case errors.Is(err, adsb.ErrOutOfRange):
		return "out_of_range"
	case errors.Is(err, adsb.ErrSurfaceReference):
		return "surface_reference"
	default:
		return "other"
	}
}
