package logging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/sirupsen/logrus"
)

const dateLayout = "2006-01-02"

// ErrClosed is returned when writing to a closed rotator
var ErrClosed = errors.New("log rotator closed")

// Rotator writes to one file per day. When the date changes the previous
// file is closed and compressed in the background.
type Rotator struct {
	dir           string
	prefix        string
	useUTC        bool
	checkInterval time.Duration
	now           func() time.Time
	logger        *logrus.Logger

	mu      sync.Mutex
	file    *os.File
	date    string
	closed  bool
	pending sync.WaitGroup
}

// NewRotator creates dir if needed and opens the file for today
func NewRotator(dir, prefix string, useUTC bool, logger *logrus.Logger) (*Rotator, error) {
	return newRotator(dir, prefix, useUTC, time.Now, logger)
}

func newRotator(dir, prefix string, useUTC bool, now func() time.Time, logger *logrus.Logger) (*Rotator, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory %s: %w", dir, err)
	}

	r := &Rotator{
		dir:           dir,
		prefix:        prefix,
		useUTC:        useUTC,
		checkInterval: time.Minute,
		now:           now,
		logger:        logger,
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.openLocked(r.today()); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Rotator) today() string {
	now := r.now()
	if r.useUTC {
		now = now.UTC()
	}
	return now.Format(dateLayout)
}

func (r *Rotator) filename(date string) string {
	return filepath.Join(r.dir, fmt.Sprintf("%s_%s.log", r.prefix, date))
}

// Write appends p to the file for the current date
func (r *Rotator) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return 0, ErrClosed
	}
	if date := r.today(); date != r.date {
		if err := r.rotateLocked(date); err != nil {
			return 0, err
		}
	}
	return r.file.Write(p)
}

// GetWriter returns the rotator itself while it is open
func (r *Rotator) GetWriter() (io.Writer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrClosed
	}
	return r, nil
}

// Rotate switches to a new file if the date has changed
func (r *Rotator) Rotate() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrClosed
	}
	date := r.today()
	if date == r.date {
		return nil
	}
	return r.rotateLocked(date)
}

func (r *Rotator) rotateLocked(date string) error {
	old := r.date
	r.logger.WithFields(logrus.Fields{
		"old_date": old,
		"new_date": date,
	}).Info("Rotating log file")

	if r.file != nil {
		if err := r.file.Close(); err != nil {
			r.logger.WithError(err).Error("Failed to close old log file")
		}
		r.file = nil

		r.pending.Add(1)
		go func() {
			defer r.pending.Done()
			if err := r.compress(old); err != nil {
				r.logger.WithError(err).WithField("date", old).Error("Failed to compress log file")
			}
		}()
	}

	return r.openLocked(date)
}

func (r *Rotator) openLocked(date string) error {
	path := r.filename(date)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to create log file %s: %w", path, err)
	}

	r.file = file
	r.date = date
	r.logger.WithField("file", path).Info("Created new log file")
	return nil
}

// compress gzips the file for date and removes the original
func (r *Rotator) compress(date string) error {
	source := r.filename(date)
	target := source + ".gz"

	src, err := os.Open(source)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to open %s: %w", source, err)
	}
	defer src.Close()

	dst, err := os.Create(target)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", target, err)
	}

	gz, err := gzip.NewWriterLevel(dst, gzip.BestCompression)
	if err != nil {
		dst.Close()
		return err
	}
	gz.Name = filepath.Base(source)
	gz.ModTime = r.now()

	if _, err := io.Copy(gz, src); err != nil {
		gz.Close()
		dst.Close()
		return fmt.Errorf("failed to compress %s: %w", source, err)
	}
	if err := gz.Close(); err != nil {
		dst.Close()
		return fmt.Errorf("failed to flush %s: %w", target, err)
	}
	if err := dst.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", target, err)
	}
	src.Close()

	if err := os.Remove(source); err != nil {
		return fmt.Errorf("failed to remove %s: %w", source, err)
	}

	r.logger.WithField("file", target).Info("Log file compressed")
	return nil
}

// Run checks for a date change until ctx is done. When retainDays is
// positive, files older than that are removed at start and after each
// rotation.
func (r *Rotator) Run(ctx context.Context, retainDays int) {
	ticker := time.NewTicker(r.checkInterval)
	defer ticker.Stop()

	cleanup := func() {
		if retainDays <= 0 {
			return
		}
		if _, err := r.Cleanup(retainDays); err != nil {
			r.logger.WithError(err).Warn("Failed to clean up old log files")
		}
	}
	cleanup()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			before := r.Path()
			if err := r.Rotate(); err != nil {
				if errors.Is(err, ErrClosed) {
					return
				}
				r.logger.WithError(err).Error("Failed to rotate log file")
				continue
			}
			if r.Path() != before {
				cleanup()
			}
		}
	}
}

// Path returns the file currently written to
func (r *Rotator) Path() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.date == "" {
		return ""
	}
	return r.filename(r.date)
}

// Files lists every file written by the rotator, compressed or not
func (r *Rotator) Files() ([]string, error) {
	files, err := filepath.Glob(filepath.Join(r.dir, r.prefix+"_*.log*"))
	if err != nil {
		return nil, fmt.Errorf("failed to list log files: %w", err)
	}
	return files, nil
}

// Cleanup removes files last modified more than maxDays ago and returns how
// many were removed. The current file is never removed.
func (r *Rotator) Cleanup(maxDays int) (int, error) {
	if maxDays <= 0 {
		return 0, fmt.Errorf("maxDays must be positive, got %d", maxDays)
	}

	files, err := r.Files()
	if err != nil {
		return 0, err
	}

	cutoff := r.now().AddDate(0, 0, -maxDays)
	current := r.Path()

	removed := 0
	for _, file := range files {
		if file == current {
			continue
		}
		info, err := os.Stat(file)
		if err != nil {
			r.logger.WithError(err).WithField("file", file).Warn("Failed to stat log file")
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(file); err != nil {
			r.logger.WithError(err).WithField("file", file).Error("Failed to remove old log file")
			continue
		}
		r.logger.WithField("file", file).Info("Removed old log file")
		removed++
	}

	return removed, nil
}

// Close closes the current file and waits for pending compressions
func (r *Rotator) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true

	var err error
	if r.file != nil {
		err = r.file.Close()
		r.file = nil
	}
	r.mu.Unlock()

	r.pending.Wait()
	return err
}
