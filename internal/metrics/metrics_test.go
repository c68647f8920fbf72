package metrics

import (
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adsbtrack/internal/adsb"
	"adsbtrack/internal/decode"
)

// TestRejectReason tests error to label mapping
func TestRejectReason(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{adsb.ErrAmbiguousPair, "ambiguous_pair"},
		{fmt.Errorf("pair: %w", adsb.ErrLatitudeRange), "latitude_range"},
		{adsb.ErrOutOfRange, "out_of_range"},
		{adsb.ErrSurfaceReference, "surface_reference"},
		{errors.New("other"), "other"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, RejectReason(tt.err))
		})
	}
}

// TestObserver tests the decode observer counters
func TestObserver(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.FrameDecoded(decode.KindVelocity)
	m.FrameDecoded(decode.KindVelocity)
	m.FrameIgnored(11)
	m.PositionResolved(decode.MethodGlobal)
	m.PositionRejected(adsb.ErrOutOfRange)
	m.CRCVerdict(decode.Corrected)
	m.FrameInvalid()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.framesDecoded.WithLabelValues("velocity")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.framesIgnored.WithLabelValues("11")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.positionsResolved.WithLabelValues("global")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.positionsRejected.WithLabelValues("out_of_range")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.crcVerdicts.WithLabelValues("corrected")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.framesInvalid))
}

// TestGauges tests tracker gauges and counters
func TestGauges(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.SetAircraft(12)
	m.AircraftExpired(3)
	m.AircraftExpired(2)
	m.SetSignal(-12.5)
	m.Notified(2)
	m.Imported(40)
	m.SetWebSocketClients(4)

	assert.Equal(t, 12.0, testutil.ToFloat64(m.aircraftTracked))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.aircraftExpired))
	assert.Equal(t, -12.5, testutil.ToFloat64(m.signalCorrelation))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.notifications))
	assert.Equal(t, 40.0, testutil.ToFloat64(m.importedStates))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.websocketClients))
}

// TestHandler tests the exposition endpoint
func TestHandler(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.FrameDecoded(decode.KindIdentification)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `adsbtrack_frames_decoded_total{kind="identification"} 1`)
}
