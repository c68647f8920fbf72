package config

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"adsbtrack/internal/geo"
)

// Flag names
const (
	FlagConfig        = "config"
	FlagBeast         = "beast"
	FlagLatitude      = "lat"
	FlagLongitude     = "lon"
	FlagAltitude      = "alt"
	FlagRemoveTimeout = "remove-timeout"
	FlagLogDir        = "log-dir"
	FlagUTC           = "log-rotate-utc"
	FlagStdout        = "stdout"
	FlagFrameLog      = "frame-log"
	FlagHTTP          = "http"
	FlagMQTT          = "mqtt-broker"
	FlagOpenSky       = "opensky"
	FlagVerbose       = "verbose"
	FlagLogFile       = "log-file"
	FlagLogFormat     = "log-format"
)

// Flags holds command line values before they are merged into a Config
type Flags struct {
	ConfigFile string

	beast         string
	latitude      float64
	longitude     float64
	altitude      float64
	removeTimeout time.Duration
	logDir        string
	utc           bool
	stdout        bool
	frameLog      string
	http          string
	mqtt          string
	opensky       bool
	verbose       bool
	logFile       string
	logFormat     string
}

// RegisterFlags adds the configuration flags to fs
func RegisterFlags(fs *pflag.FlagSet) *Flags {
	f := &Flags{}
	d := Default()

	fs.StringVarP(&f.ConfigFile, FlagConfig, "c", "", "YAML configuration file")
	fs.StringVar(&f.beast, FlagBeast, d.Input.BeastAddr, "Beast TCP source address (host:port)")
	fs.Float64Var(&f.latitude, FlagLatitude, 0, "Station latitude in degrees")
	fs.Float64Var(&f.longitude, FlagLongitude, 0, "Station longitude in degrees")
	fs.Float64Var(&f.altitude, FlagAltitude, 0, "Station altitude in metres")
	fs.DurationVar(&f.removeTimeout, FlagRemoveTimeout, d.Track.RemoveTimeout, "Remove aircraft not heard from for this long")
	fs.StringVarP(&f.logDir, FlagLogDir, "l", "", "Directory for daily SBS files")
	fs.BoolVar(&f.utc, FlagUTC, false, "Rotate SBS files at UTC midnight")
	fs.BoolVar(&f.stdout, FlagStdout, false, "Also write SBS messages to stdout")
	fs.StringVar(&f.frameLog, FlagFrameLog, "", "Append received frames to this CSV file")
	fs.StringVar(&f.http, FlagHTTP, d.HTTP.Listen, "HTTP listen address for /metrics, /aircraft and /ws (empty disables)")
	fs.StringVar(&f.mqtt, FlagMQTT, "", "MQTT broker URL (empty disables)")
	fs.BoolVar(&f.opensky, FlagOpenSky, false, "Import state vectors from the OpenSky Network")
	fs.BoolVarP(&f.verbose, FlagVerbose, "v", false, "Verbose logging")
	fs.StringVar(&f.logFile, FlagLogFile, "", "Also write the process log to this file")
	fs.StringVar(&f.logFormat, FlagLogFormat, d.Log.Format, "Process log format (text or json)")

	return f
}

// Apply overrides cfg with the flags the user set on fs
func (f *Flags) Apply(fs *pflag.FlagSet, cfg *Config) error {
	if fs.Changed(FlagBeast) {
		cfg.Input.BeastAddr = f.beast
	}

	if fs.Changed(FlagLatitude) || fs.Changed(FlagLongitude) || fs.Changed(FlagAltitude) {
		station := geo.Station{}
		if cfg.Station != nil {
			station = *cfg.Station
		}
		if fs.Changed(FlagLatitude) {
			station.Latitude = f.latitude
		}
		if fs.Changed(FlagLongitude) {
			station.Longitude = f.longitude
		}
		if fs.Changed(FlagAltitude) {
			station.Altitude = f.altitude
		}
		cfg.Station = &station
	}

	if fs.Changed(FlagRemoveTimeout) {
		cfg.Track.RemoveTimeout = f.removeTimeout
	}

	if fs.Changed(FlagLogDir) {
		cfg.SBS.Dir = f.logDir
	}
	if fs.Changed(FlagUTC) {
		cfg.SBS.UTC = f.utc
	}
	if fs.Changed(FlagStdout) {
		cfg.SBS.Stdout = f.stdout
	}
	if fs.Changed(FlagFrameLog) {
		cfg.Input.FrameLog = f.frameLog
	}
	if fs.Changed(FlagHTTP) {
		cfg.HTTP.Listen = f.http
	}
	if fs.Changed(FlagMQTT) {
		cfg.MQTT.Broker = f.mqtt
	}
	if fs.Changed(FlagOpenSky) {
		cfg.OpenSky.Enabled = f.opensky
	}
	if fs.Changed(FlagVerbose) && f.verbose {
		cfg.Log.Level = logrus.DebugLevel.String()
	}
	if fs.Changed(FlagLogFile) {
		cfg.Log.File = f.logFile
	}
	if fs.Changed(FlagLogFormat) {
		cfg.Log.Format = f.logFormat
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}
	return nil
}

// Resolve loads the configuration file named by the flags, or the defaults,
// and applies the changed flags over it
func (f *Flags) Resolve(fs *pflag.FlagSet) (*Config, error) {
	cfg := Default()
	if f.ConfigFile != "" {
		loaded, err := Load(f.ConfigFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if err := f.Apply(fs, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
