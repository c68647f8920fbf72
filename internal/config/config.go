package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"adsbtrack/internal/animation"
	"adsbtrack/internal/decode"
	"adsbtrack/internal/geo"
	"adsbtrack/internal/logging"
	"adsbtrack/internal/notify"
	"adsbtrack/internal/opensky"
	"adsbtrack/internal/publish"
	"adsbtrack/internal/source"
	"adsbtrack/internal/track"
)

// Default configuration constants
const (
	DefaultBeastAddr        = "localhost:30005"
	DefaultHTTPListen       = ":8090"
	DefaultEvictionInterval = 10 * time.Second
	DefaultCRCMaxBits       = 1
	DefaultSBSPrefix        = "adsb"
	DefaultStatsInterval    = 30 * time.Second
	DefaultOpenSkyInterval  = 15 * time.Second
	DefaultOpenSkyTimeout   = 10 * time.Second
)

// Config holds application configuration
type Config struct {
	Station       *geo.Station         `yaml:"station"`
	Input         InputConfig          `yaml:"input"`
	Decoder       DecoderConfig        `yaml:"decoder"`
	Track         TrackConfig          `yaml:"track"`
	Animation     animation.Thresholds `yaml:"animation"`
	SBS           SBSConfig            `yaml:"sbs"`
	Log           logging.Config       `yaml:"log"`
	HTTP          HTTPConfig           `yaml:"http"`
	MQTT          publish.MQTTConfig   `yaml:"mqtt"`
	OpenSky       OpenSkyConfig        `yaml:"opensky"`
	Notifications NotifyConfig         `yaml:"notifications"`
	StatsInterval time.Duration        `yaml:"stats_interval"`
}

// InputConfig selects where frames come from
type InputConfig struct {
	BeastAddr     string        `yaml:"beast_addr"`
	RetryInterval time.Duration `yaml:"retry_interval"`
	FrameLog      string        `yaml:"frame_log"`
}

// DecoderConfig holds the frame decoder tunables
type DecoderConfig struct {
	PairWindow      time.Duration `yaml:"pair_window"`
	CRCMaxBits      int           `yaml:"crc_max_bits"`
	SeenTTL         time.Duration `yaml:"seen_ttl"`
	SurfaceAltitude int           `yaml:"surface_altitude"`
}

// TrackConfig controls track lifetime
type TrackConfig struct {
	RemoveTimeout    time.Duration `yaml:"remove_timeout"`
	EvictionInterval time.Duration `yaml:"eviction_interval"`
}

// SBSConfig controls BaseStation output
type SBSConfig struct {
	Dir        string `yaml:"dir"`
	Prefix     string `yaml:"prefix"`
	UTC        bool   `yaml:"utc"`
	Stdout     bool   `yaml:"stdout"`
	RetainDays int    `yaml:"retain_days"`
}

// HTTPConfig controls the metrics, snapshot and WebSocket server
type HTTPConfig struct {
	Listen string `yaml:"listen"`
}

// OpenSkyConfig controls the OpenSky Network import
type OpenSkyConfig struct {
	Enabled  bool                `yaml:"enabled"`
	BaseURL  string              `yaml:"base_url"`
	Username string              `yaml:"username"`
	Password string              `yaml:"password"`
	BBox     opensky.BoundingBox `yaml:"bbox"`
	Interval time.Duration       `yaml:"interval"`
	Timeout  time.Duration       `yaml:"timeout"`
}

// NotifyConfig holds the notification rules
type NotifyConfig struct {
	Rules []notify.Rule `yaml:"rules"`
	TTL   time.Duration `yaml:"ttl"`
}

// Default returns the built in configuration
func Default() *Config {
	return &Config{
		Input: InputConfig{
			BeastAddr:     DefaultBeastAddr,
			RetryInterval: source.DefaultRetryInterval,
		},
		Decoder: DecoderConfig{
			PairWindow:      decode.DefaultPairWindow,
			CRCMaxBits:      DefaultCRCMaxBits,
			SeenTTL:         decode.DefaultSeenTTL,
			SurfaceAltitude: decode.DefaultConfig().SurfaceAltitude,
		},
		Track: TrackConfig{
			RemoveTimeout:    track.DefaultRemoveTimeout,
			EvictionInterval: DefaultEvictionInterval,
		},
		Animation: animation.DefaultThresholds(),
		SBS: SBSConfig{
			Prefix: DefaultSBSPrefix,
		},
		Log:  logging.DefaultConfig(),
		HTTP: HTTPConfig{Listen: DefaultHTTPListen},
		MQTT: publish.DefaultMQTTConfig(),
		OpenSky: OpenSkyConfig{
			BaseURL:  opensky.DefaultBaseURL,
			Interval: DefaultOpenSkyInterval,
			Timeout:  DefaultOpenSkyTimeout,
		},
		Notifications: NotifyConfig{TTL: notify.DefaultNotifiedTTL},
		StatsInterval: DefaultStatsInterval,
	}
}

// Load reads a YAML file over the defaults. Keys missing from the file keep
// their default values.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports the first invalid setting
func (c *Config) Validate() error {
	if c.Station != nil {
		if err := c.Station.Validate(); err != nil {
			return err
		}
	}

	if c.Decoder.PairWindow <= 0 || c.Decoder.PairWindow > 10*time.Second {
		return fmt.Errorf("decoder pair_window %s must be in (0s, 10s]", c.Decoder.PairWindow)
	}
	if c.Decoder.CRCMaxBits < 0 || c.Decoder.CRCMaxBits > 2 {
		return fmt.Errorf("decoder crc_max_bits %d must be 0, 1 or 2", c.Decoder.CRCMaxBits)
	}
	if c.Decoder.SeenTTL <= 0 {
		return errors.New("decoder seen_ttl must be positive")
	}

	if c.Track.RemoveTimeout <= 0 {
		return errors.New("track remove_timeout must be positive")
	}
	if c.Track.EvictionInterval <= 0 {
		return errors.New("track eviction_interval must be positive")
	}
	if c.Input.RetryInterval <= 0 {
		return errors.New("input retry_interval must be positive")
	}
	if c.StatsInterval <= 0 {
		return errors.New("stats_interval must be positive")
	}

	if err := c.Log.Validate(); err != nil {
		return err
	}

	if c.MQTT.QoS > 2 {
		return fmt.Errorf("mqtt qos %d must be 0, 1 or 2", c.MQTT.QoS)
	}

	if c.OpenSky.Enabled {
		if c.OpenSky.Interval < 5*time.Second {
			return fmt.Errorf("opensky interval %s is below the 5s minimum", c.OpenSky.Interval)
		}
		b := c.OpenSky.BBox
		if !b.IsZero() && (b.MinLatitude >= b.MaxLatitude || b.MinLongitude >= b.MaxLongitude) {
			return errors.New("opensky bbox minimum must be below maximum")
		}
	}

	for i, r := range c.Notifications.Rules {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("notification rule %d: %w", i, err)
		}
	}

	return nil
}

// DecodeConfig returns the processor configuration
func (c *Config) DecodeConfig() decode.Config {
	return decode.Config{
		PairWindow:      c.Decoder.PairWindow,
		RemoveTimeout:   c.Track.RemoveTimeout,
		SurfaceAltitude: c.Decoder.SurfaceAltitude,
		Thresholds:      c.Animation,
	}
}
