package source

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/sirupsen/logrus"

	"adsbtrack/internal/beast"
)

// DefaultRetryInterval is the wait between Beast reconnection attempts
const DefaultRetryInterval = 5 * time.Second

// BeastClient reads Mode S frames from a Beast binary TCP feed, reconnecting
// until cancelled
type BeastClient struct {
	addr   string
	retry  time.Duration
	logger *logrus.Logger
	dialer net.Dialer
	now    func() time.Time
}

// NewBeastClient creates a client for the feed at addr
func NewBeastClient(addr string, retry time.Duration, logger *logrus.Logger) *BeastClient {
	if retry <= 0 {
		retry = DefaultRetryInterval
	}
	return &BeastClient{
		addr:   addr,
		retry:  retry,
		logger: logger,
		dialer: net.Dialer{Timeout: 10 * time.Second},
		now:    time.Now,
	}
}

// Run connects and forwards every long Mode S frame to out. Short frames and
// Mode A/C replies are dropped. Run only returns once ctx is cancelled.
func (c *BeastClient) Run(ctx context.Context, out chan<- Frame) error {
	for {
		err := c.session(ctx, out)
		if ctx.Err() != nil {
			return nil
		}
		c.logger.WithFields(logrus.Fields{
			"addr":  c.addr,
			"retry": c.retry,
		}).WithError(err).Warn("Beast feed disconnected")

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(c.retry):
		}
	}
}

func (c *BeastClient) session(ctx context.Context, out chan<- Frame) error {
	conn, err := c.dialer.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", c.addr, err)
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	c.logger.WithField("addr", c.addr).Info("Connected to Beast feed")

	decoder := beast.NewDecoder(c.logger)
	buf := make([]byte, 4096)
	for {
		n, err := conn.Read(buf)
		for _, msg := range decoder.Decode(buf[:n]) {
			if !msg.IsLong() {
				continue
			}
			power := msg.Power()
			f := Frame{Data: msg.Data, Time: c.now(), Correlation: power, CorrelationOnes: power}
			if err := send(ctx, out, f); err != nil {
				return err
			}
		}
		if err != nil {
			if errors.Is(err, net.ErrClosed) && ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read from %s: %w", c.addr, err)
		}
	}
}
