package source

import (
	"encoding/csv"
	"encoding/hex"
	"io"
	"strconv"
	"strings"
	"sync"
)

// FrameLogHeader is the column layout written by FrameLog
var FrameLogHeader = []string{"Date", "Time", "Data", "Correlation"}

// FrameLog records received frames as CSV that Replay can read back. It is
// safe for concurrent use.
type FrameLog struct {
	mutex sync.Mutex
	w     *csv.Writer
}

// NewFrameLog creates a frame log. The header is written when writeHeader is
// set, which callers do for a new or empty file.
func NewFrameLog(w io.Writer, writeHeader bool) (*FrameLog, error) {
	l := &FrameLog{w: csv.NewWriter(w)}
	if writeHeader {
		if err := l.w.Write(FrameLogHeader); err != nil {
			return nil, err
		}
	}
	return l, nil
}

// Write appends one frame
func (l *FrameLog) Write(f Frame) error {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	return l.w.Write([]string{
		f.Time.Format("2006-01-02"),
		f.Time.Format("15:04:05.000"),
		strings.ToUpper(hex.EncodeToString(f.Data)),
		strconv.FormatFloat(f.Correlation, 'f', -1, 64),
	})
}

// Flush writes buffered rows to the underlying writer
func (l *FrameLog) Flush() error {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	l.w.Flush()
	return l.w.Error()
}
