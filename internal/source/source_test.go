package source

import (
	"bytes"
	"context"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adsbtrack/internal/beast"
)

var identFrame = []byte{0x8D, 0x48, 0x40, 0xD6, 0x20, 0x2C, 0xC3, 0x71, 0xC3, 0x2C, 0xE0, 0x57, 0x60, 0x98}

var fixedTime = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func collect(t *testing.T, src Source, ctx context.Context) ([]Frame, error) {
	t.Helper()
	out := make(chan Frame)
	done := make(chan error, 1)
	go func() {
		done <- src.Run(ctx, out)
		close(out)
	}()

	var frames []Frame
	for f := range out {
		frames = append(frames, f)
	}
	return frames, <-done
}

// TestReplay tests reading frames from a CSV capture
func TestReplay(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		frames  int
		skipped int
		wantErr bool
	}{
		{
			name:   "Frame log layout",
			input:  "Date,Time,Data,Correlation\n2024-03-01,10:00:00.000,8D4840D6202CC371C32CE0576098,12.5\n2024-03-01,10:00:00.100,8D40621D58C382D690C8AC2863A7,3\n",
			frames: 2,
		},
		{
			name:   "Reordered columns",
			input:  "Correlation,Extra,Data\n1.5,x,8D4840D6202CC371C32CE0576098\n",
			frames: 1,
		},
		{
			name:    "Bad rows skipped",
			input:   "Data,Correlation\nZZZZ,1\n8D4840D6202CC371C32CE0576098\n8D4840D6202CC371C32CE0576098,2\n",
			frames:  1,
			skipped: 2,
		},
		{
			name:    "Missing column",
			input:   "Date,Time,Data\n2024-03-01,10:00:00.000,8D4840D6202CC371C32CE0576098\n",
			wantErr: true,
		},
		{
			name:    "Empty file",
			input:   "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rp := NewReplay(strings.NewReader(tt.input), testLogger())
			rp.now = func() time.Time { return fixedTime }

			frames, err := collect(t, rp, context.Background())
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, frames, tt.frames)
			assert.Equal(t, tt.frames, rp.Rows())
			assert.Equal(t, tt.skipped, rp.Skipped())
			for _, f := range frames {
				assert.Equal(t, fixedTime, f.Time)
				assert.Len(t, f.Data, 14)
			}
		})
	}
}

// TestReplayCancel tests that a cancelled replay stops between frames
func TestReplayCancel(t *testing.T) {
	var b strings.Builder
	b.WriteString("Data,Correlation\n")
	for i := 0; i < 100; i++ {
		b.WriteString("8D4840D6202CC371C32CE0576098,1\n")
	}

	ctx, cancel := context.WithCancel(context.Background())
	rp := NewReplay(strings.NewReader(b.String()), testLogger())
	out := make(chan Frame)
	done := make(chan error, 1)
	go func() { done <- rp.Run(ctx, out) }()

	<-out
	<-out
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("replay did not stop")
	}
	assert.Less(t, rp.Rows(), 100)
}

// TestFrameLogRoundTrip tests that logged frames replay unchanged
func TestFrameLogRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	l, err := NewFrameLog(&buf, true)
	require.NoError(t, err)

	require.NoError(t, l.Write(Frame{Data: identFrame, Time: fixedTime.Add(1500 * time.Millisecond), Correlation: 12.25}))
	require.NoError(t, l.Write(Frame{Data: identFrame, Time: fixedTime, Correlation: 0.5}))
	require.NoError(t, l.Flush())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Date,Time,Data,Correlation", lines[0])
	assert.Equal(t, "2024-03-01,10:00:01.500,8D4840D6202CC371C32CE0576098,12.25", lines[1])

	rp := NewReplay(&buf, testLogger())
	frames, err := collect(t, rp, context.Background())
	require.NoError(t, err)
	require.Len(t, frames, 2)
	assert.Equal(t, identFrame, frames[0].Data)
	assert.Equal(t, 12.25, frames[0].Correlation)
	assert.Equal(t, 0.5, frames[1].CorrelationOnes)
}

// TestFrameLogAppend tests that appending skips the header
func TestFrameLogAppend(t *testing.T) {
	var buf bytes.Buffer
	l, err := NewFrameLog(&buf, false)
	require.NoError(t, err)
	require.NoError(t, l.Write(Frame{Data: identFrame, Time: fixedTime, Correlation: 1}))
	require.NoError(t, l.Flush())
	assert.Equal(t, "2024-03-01,10:00:00.000,8D4840D6202CC371C32CE0576098,1\n", buf.String())
}

// TestBeastClient tests reading frames from a Beast feed
func TestBeastClient(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		var stream []byte
		stream = append(stream, (&beast.Message{Type: beast.ModeAC, Data: []byte{1, 2}}).Encode()...)
		stream = append(stream, (&beast.Message{Type: beast.ModeSLong, Timestamp: 0x1A, Signal: 255, Data: identFrame}).Encode()...)
		stream = append(stream, (&beast.Message{Type: beast.ModeS, Data: identFrame[:7]}).Encode()...)
		stream = append(stream, (&beast.Message{Type: beast.ModeSLong, Signal: 0x1A, Data: identFrame}).Encode()...)
		_, _ = conn.Write(stream)
		// Hold the connection open until the client goes away
		_, _ = io.Copy(io.Discard, conn)
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := NewBeastClient(ln.Addr().String(), 50*time.Millisecond, testLogger())
	client.now = func() time.Time { return fixedTime }
	out := make(chan Frame)
	done := make(chan error, 1)
	go func() { done <- client.Run(ctx, out) }()

	var frames []Frame
	for len(frames) < 2 {
		select {
		case f := <-out:
			frames = append(frames, f)
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for frames")
		}
	}
	assert.Equal(t, identFrame, frames[0].Data)
	assert.InDelta(t, 1.0, frames[0].Correlation, 1e-12)
	assert.Equal(t, fixedTime, frames[0].Time)
	assert.InDelta(t, (26.0/255)*(26.0/255), frames[1].Correlation, 1e-12)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("client did not stop")
	}
}

// TestBeastClientRetry tests that an unreachable feed is retried until cancelled
func TestBeastClientRetry(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	client := NewBeastClient(addr, 20*time.Millisecond, testLogger())
	assert.NoError(t, client.Run(ctx, make(chan Frame)))
}
