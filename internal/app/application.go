package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"adsbtrack/internal/adsb"
	"adsbtrack/internal/basestation"
	"adsbtrack/internal/config"
	"adsbtrack/internal/decode"
	"adsbtrack/internal/logging"
	"adsbtrack/internal/metrics"
	"adsbtrack/internal/notify"
	"adsbtrack/internal/opensky"
	"adsbtrack/internal/publish"
	"adsbtrack/internal/source"
	"adsbtrack/internal/track"
)

const (
	shutdownTimeout = 5 * time.Second
	frameBuffer     = 1024
)

// counters are the totals reported in the periodic statistics line
type counters struct {
	frames    atomic.Int64
	invalid   atomic.Int64
	rejected  atomic.Int64
	corrected atomic.Int64
	events    atomic.Int64
	imported  atomic.Int64
}

// Application wires the frame sources, the tracker and every output
type Application struct {
	config *config.Config
	logger *logrus.Logger
	stdout io.Writer
	now    func() time.Time

	sources []source.Source

	tracker  *Tracker
	filter   *decode.Filter
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	notifier *notify.Notifier

	rotator     *logging.Rotator
	baseStation *basestation.Writer

	frameLogFile *os.File
	frameLog     *source.FrameLog

	mqtt       *publish.MQTTPublisher
	hub        *publish.Hub
	publishers publish.Multi

	opensky *opensky.Client
	server  *http.Server

	stats counters
}

// NewApplication creates a new application instance
func NewApplication(cfg *config.Config, logger *logrus.Logger) *Application {
	return &Application{
		config: cfg,
		logger: logger,
		stdout: os.Stdout,
		now:    time.Now,
	}
}

// SetStdout redirects SBS output selected by sbs.stdout
func (app *Application) SetStdout(w io.Writer) {
	app.stdout = w
}

// AddSource adds a frame input. Without any source the Beast client for
// the configured address is used.
func (app *Application) AddSource(s source.Source) {
	app.sources = append(app.sources, s)
}

// Start runs until SIGINT or SIGTERM
func (app *Application) Start() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return app.Run(ctx)
}

// Run starts every component and blocks until ctx is cancelled or all
// sources have finished
func (app *Application) Run(ctx context.Context) error {
	app.logger.WithFields(logrus.Fields{
		"version":    Version,
		"build_time": BuildTime,
		"git_commit": GitCommit,
	}).Info("Starting ADS-B tracker")

	if err := app.initializeComponents(); err != nil {
		app.close()
		return fmt.Errorf("failed to initialize components: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	frames := make(chan source.Frame, frameBuffer)

	var producers sync.WaitGroup
	for _, src := range app.sources {
		producers.Add(1)
		g.Go(func() error {
			defer producers.Done()
			if err := src.Run(gctx, frames); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("source failed: %w", err)
			}
			return nil
		})
	}
	go func() {
		producers.Wait()
		close(frames)
	}()

	g.Go(func() error {
		app.processFrames(gctx, frames)
		// all sources finished, stop the periodic tasks
		cancel()
		return nil
	})

	g.Go(func() error {
		app.runEviction(gctx)
		return nil
	})

	g.Go(func() error {
		app.reportStatistics(gctx)
		return nil
	})

	if app.rotator != nil {
		g.Go(func() error {
			app.rotator.Run(gctx, app.config.SBS.RetainDays)
			return nil
		})
	}

	if app.opensky != nil {
		g.Go(func() error {
			app.runImport(gctx)
			return nil
		})
	}

	if app.server != nil {
		g.Go(func() error {
			app.logger.WithField("listen", app.server.Addr).Info("HTTP server listening")
			if err := app.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server failed: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, done := context.WithTimeout(context.Background(), shutdownTimeout)
			defer done()
			app.hub.Close()
			return app.server.Shutdown(shutdownCtx)
		})
	}

	app.logger.Info("All components started successfully")

	err := app.wait(gctx, g)
	app.close()
	app.logStatistics()
	app.logger.Info("Shutdown completed")
	return err
}

// wait returns when every goroutine has finished, or shutdownTimeout after
// ctx is done
func (app *Application) wait(ctx context.Context, g *errgroup.Group) error {
	done := make(chan error, 1)
	go func() {
		done <- g.Wait()
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
	}

	app.logger.Info("Shutting down application")
	select {
	case err := <-done:
		app.logger.Info("All goroutines finished")
		return err
	case <-time.After(shutdownTimeout):
		app.logger.Warn("Shutdown timeout, forcing exit")
		return nil
	}
}

// initializeComponents initializes all application components
func (app *Application) initializeComponents() error {
	cfg := app.config
	var err error

	processor := decode.NewProcessor(cfg.DecodeConfig(), app.logger)
	if cfg.Station != nil {
		processor.SetStation(*cfg.Station)
	}

	app.registry = prometheus.NewRegistry()
	app.metrics = metrics.New(app.registry)
	processor.SetObserver(app.metrics)

	app.tracker = NewTracker(processor)
	app.filter = decode.NewFilter(cfg.Decoder.CRCMaxBits, cfg.Decoder.SeenTTL)

	app.notifier, err = notify.NewNotifier(cfg.Notifications.Rules, cfg.Notifications.TTL, app.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize notifications: %w", err)
	}

	var destinations []basestation.Destination
	if cfg.SBS.Dir != "" {
		app.rotator, err = logging.NewRotator(cfg.SBS.Dir, cfg.SBS.Prefix, cfg.SBS.UTC, app.logger)
		if err != nil {
			return fmt.Errorf("failed to initialize log rotator: %w", err)
		}
		destinations = append(destinations, app.rotator)
	}
	if cfg.SBS.Stdout {
		destinations = append(destinations, basestation.WriterDestination{Writer: app.stdout})
	}
	if len(destinations) > 0 {
		app.baseStation = basestation.NewWriter(app.logger, destinations...)
	}

	if cfg.Input.FrameLog != "" {
		if err := app.openFrameLog(cfg.Input.FrameLog); err != nil {
			return err
		}
	}

	if cfg.MQTT.Broker != "" {
		app.mqtt, err = publish.NewMQTTPublisher(cfg.MQTT, app.logger)
		if err != nil {
			return fmt.Errorf("failed to initialize MQTT: %w", err)
		}
		app.publishers = append(app.publishers, app.mqtt)
	}

	if cfg.HTTP.Listen != "" {
		app.hub = publish.NewHub(app.tracker.Snapshot, app.logger)
		app.publishers = append(app.publishers, app.hub)
		app.server = &http.Server{
			Addr:              cfg.HTTP.Listen,
			Handler:           app.routes(),
			ReadHeaderTimeout: 10 * time.Second,
		}
	}

	if cfg.OpenSky.Enabled {
		app.opensky = opensky.NewClient(cfg.OpenSky.BaseURL, cfg.OpenSky.Username, cfg.OpenSky.Password, cfg.OpenSky.BBox, cfg.OpenSky.Timeout)
	}

	if len(app.sources) == 0 {
		app.sources = append(app.sources, source.NewBeastClient(cfg.Input.BeastAddr, cfg.Input.RetryInterval, app.logger))
	}

	return nil
}

func (app *Application) openFrameLog(path string) error {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open frame log %s: %w", path, err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return fmt.Errorf("failed to stat frame log %s: %w", path, err)
	}

	app.frameLog, err = source.NewFrameLog(file, info.Size() == 0)
	if err != nil {
		file.Close()
		return fmt.Errorf("failed to write frame log header: %w", err)
	}
	app.frameLogFile = file
	return nil
}

// processFrames runs the decode loop until frames is closed or ctx is done
func (app *Application) processFrames(ctx context.Context, frames <-chan source.Frame) {
	for {
		select {
		case <-ctx.Done():
			app.logger.Info("Frame processing stopped")
			return
		case f, ok := <-frames:
			if !ok {
				app.logger.Info("All frame sources finished")
				return
			}
			app.handleFrame(f)
		}
	}
}

// handleFrame validates one frame, applies it to the tracks and fans the
// result out to the outputs
func (app *Application) handleFrame(f source.Frame) {
	app.stats.frames.Add(1)

	if app.frameLog != nil {
		if err := app.frameLog.Write(f); err != nil {
			app.logger.WithError(err).Debug("Failed to write frame log")
		}
	}

	if len(f.Data) != adsb.FrameLength {
		app.stats.invalid.Add(1)
		app.metrics.FrameInvalid()
		return
	}

	var frame adsb.Frame
	copy(frame[:], f.Data)

	if df := frame.DF(); df == adsb.DFExtendedSquitter || df == adsb.DFNonTransponder {
		verdict := app.filter.Check(&frame)
		app.metrics.CRCVerdict(verdict)
		switch verdict {
		case decode.Rejected, decode.UnknownAddress:
			app.stats.rejected.Add(1)
			return
		case decode.Corrected:
			app.stats.corrected.Add(1)
		}
	}

	var (
		snapshot      *track.Aircraft
		notifications []notify.Notification
	)
	app.tracker.Update(func(p *decode.Processor) {
		ev, err := p.Process(frame[:], f.Time, f.Correlation, f.CorrelationOnes)
		if err != nil {
			app.stats.invalid.Add(1)
			app.metrics.FrameInvalid()
			return
		}
		if ev == nil {
			return
		}
		snapshot, notifications = app.applyEvent(p, ev, f.Time)
	})

	app.publish(snapshot, notifications)
}

// applyEvent writes the SBS lines for ev and runs the notification rules.
// It returns a copy of the track for the publishers when there are any.
func (app *Application) applyEvent(p *decode.Processor, ev *decode.Event, ts time.Time) (*track.Aircraft, []notify.Notification) {
	app.stats.events.Add(1)

	if app.baseStation != nil {
		if err := app.baseStation.WriteEvent(ev, ts); err != nil {
			app.logger.WithError(err).Debug("Failed to write SBS message")
		}
	}

	for _, intent := range ev.Animations {
		app.logger.WithFields(logrus.Fields{
			"icao":    ev.Aircraft.Hex,
			"control": intent.Name,
			"start":   intent.Start,
			"reverse": intent.Reverse,
		}).Debug("Animation")
	}

	notifications := app.notifier.Check(ev.Aircraft, ts)
	for _, n := range notifications {
		app.logger.WithFields(logrus.Fields{
			"icao":   n.Hex,
			"column": n.Column,
		}).Info(n.Message)
		if n.AutoTarget {
			p.Table().SetTarget(n.ICAO)
		}
	}
	if len(notifications) > 0 {
		app.metrics.Notified(len(notifications))
	}

	if len(app.publishers) == 0 {
		return nil, notifications
	}
	return ev.Aircraft.Snapshot(), notifications
}

func (app *Application) publish(a *track.Aircraft, notifications []notify.Notification) {
	if len(app.publishers) == 0 {
		return
	}
	if a != nil {
		app.publishers.PublishAircraft(a)
	}
	for _, n := range notifications {
		app.publishers.PublishNotification(n)
	}
}

// runEviction removes timed out tracks every eviction interval
func (app *Application) runEviction(ctx context.Context) {
	ticker := time.NewTicker(app.config.Track.EvictionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			app.evict(app.now())
		}
	}
}

func (app *Application) evict(now time.Time) []track.Expired {
	var (
		expired   []track.Expired
		remaining int
	)
	app.tracker.Update(func(p *decode.Processor) {
		expired = p.Evict(now)
		remaining = p.Table().Len()
	})

	for _, e := range expired {
		app.logger.WithField("icao", e.Hex).Debug("Aircraft expired")
		if app.baseStation != nil {
			if err := app.baseStation.WriteExpired(e, now); err != nil {
				app.logger.WithError(err).Debug("Failed to write SBS message")
			}
		}
		if len(app.publishers) > 0 {
			app.publishers.PublishExpired(e)
		}
	}

	app.metrics.AircraftExpired(len(expired))
	app.metrics.SetAircraft(remaining)
	return expired
}

// runImport polls the OpenSky Network every configured interval
func (app *Application) runImport(ctx context.Context) {
	ticker := time.NewTicker(app.config.OpenSky.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := app.importStates(ctx); err != nil && ctx.Err() == nil {
				app.logger.WithError(err).Warn("OpenSky import failed")
			}
		}
	}
}

// importStates fetches state vectors once and merges them into the tracks
func (app *Application) importStates(ctx context.Context) error {
	states, err := app.opensky.Fetch(ctx)
	if err != nil {
		return err
	}

	type update struct {
		aircraft      *track.Aircraft
		notifications []notify.Notification
	}
	var updates []update

	now := app.now()
	app.tracker.Update(func(p *decode.Processor) {
		for _, s := range states.States {
			ev := p.ApplyImported(s, now)
			if ev == nil {
				continue
			}
			a, n := app.applyEvent(p, ev, now)
			updates = append(updates, update{a, n})
		}
	})

	for _, u := range updates {
		app.publish(u.aircraft, u.notifications)
	}

	app.stats.imported.Add(int64(len(states.States)))
	app.metrics.Imported(len(states.States))
	app.logger.WithFields(logrus.Fields{
		"states":  len(states.States),
		"applied": len(updates),
	}).Debug("OpenSky states imported")
	return nil
}

// reportStatistics reports processing statistics periodically
func (app *Application) reportStatistics(ctx context.Context) {
	ticker := time.NewTicker(app.config.StatsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if app.frameLog != nil {
				if err := app.frameLog.Flush(); err != nil {
					app.logger.WithError(err).Warn("Failed to flush frame log")
				}
			}
			app.logStatistics()
		}
	}
}

func (app *Application) logStatistics() {
	if app.tracker == nil {
		return
	}

	correlation, ones := app.tracker.SignalLevel()
	app.metrics.SetSignal(correlation)
	if app.hub != nil {
		app.metrics.SetWebSocketClients(app.hub.Len())
	}

	app.logger.WithFields(logrus.Fields{
		"frames":          app.stats.frames.Load(),
		"invalid":         app.stats.invalid.Load(),
		"crc_rejected":    app.stats.rejected.Load(),
		"crc_corrected":   app.stats.corrected.Load(),
		"events":          app.stats.events.Load(),
		"imported":        app.stats.imported.Load(),
		"aircraft":        app.tracker.Len(),
		"correlation_db":  fmt.Sprintf("%.1f", correlation),
		"correlation_one": fmt.Sprintf("%.1f", ones),
	}).Info("Tracker statistics")
}

// close releases files and connections
func (app *Application) close() {
	if app.frameLog != nil {
		if err := app.frameLog.Flush(); err != nil {
			app.logger.WithError(err).Warn("Failed to flush frame log")
		}
	}
	if app.frameLogFile != nil {
		app.frameLogFile.Close()
	}
	if app.rotator != nil {
		if err := app.rotator.Close(); err != nil {
			app.logger.WithError(err).Error("Failed to close log rotator")
		}
	}
	if app.mqtt != nil {
		app.mqtt.Disconnect()
	}
}
