package source

import (
	"context"
	"encoding/csv"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
)

// ProgressInterval is the number of rows between replay progress reports
const ProgressInterval = 100000

// Replay feeds frames from a CSV capture. The file needs Data (hex frame)
// and Correlation columns; other columns are ignored.
type Replay struct {
	r      io.Reader
	logger *logrus.Logger
	now    func() time.Time

	rows    int
	skipped int
}

// NewReplay creates a replay over r
func NewReplay(r io.Reader, logger *logrus.Logger) *Replay {
	return &Replay{r: r, logger: logger, now: time.Now}
}

// Rows returns the number of frames delivered
func (rp *Replay) Rows() int {
	return rp.rows
}

// Skipped returns the number of rows that could not be parsed
func (rp *Replay) Skipped() int {
	return rp.skipped
}

// Run sends every row to out. Frames are stamped with the current time so
// they are not evicted as soon as they are applied. Cancellation is checked
// between frames and returned as the context error.
func (rp *Replay) Run(ctx context.Context, out chan<- Frame) error {
	reader := csv.NewReader(rp.r)
	reader.FieldsPerRecord = -1
	reader.ReuseRecord = true

	header, err := reader.Read()
	if err != nil {
		return fmt.Errorf("failed to read header: %w", err)
	}
	dataCol, corrCol := -1, -1
	for i, name := range header {
		switch name {
		case "Data":
			dataCol = i
		case "Correlation":
			corrCol = i
		}
	}
	if dataCol < 0 || corrCol < 0 {
		return fmt.Errorf("missing Data or Correlation column in header %v", header)
	}
	maxCol := max(dataCol, corrCol)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read row %d: %w", rp.rows+rp.skipped+1, err)
		}
		if len(record) <= maxCol {
			rp.skipped++
			continue
		}

		data, err := hex.DecodeString(record[dataCol])
		if err != nil {
			rp.skipped++
			rp.logger.WithError(err).Debug("Skipping row with bad frame data")
			continue
		}
		// Unparseable correlation is replayed as zero
		corr, _ := strconv.ParseFloat(record[corrCol], 64)

		f := Frame{Data: data, Time: rp.now(), Correlation: corr, CorrelationOnes: corr}
		if err := send(ctx, out, f); err != nil {
			return err
		}
		rp.rows++
		if rp.rows%ProgressInterval == 0 {
			rp.logger.WithField("rows", rp.rows).Info("Replay progress")
		}
	}

	rp.logger.WithFields(logrus.Fields{
		"rows":    rp.rows,
		"skipped": rp.skipped,
	}).Info("Replay complete")
	return nil
}
