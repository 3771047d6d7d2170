package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/goliatone/go-config/cfgx"
)

// Config captures service-level configuration knobs. The stream endpoint,
// client controller, and persistence layer pull from these nested structs.
type Config struct {
	Server      ServerConfig      `mapstructure:"server" json:"server"`
	Stream      StreamConfig      `mapstructure:"stream" json:"stream"`
	Client      ClientConfig      `mapstructure:"client" json:"client"`
	Persistence PersistenceConfig `mapstructure:"persistence" json:"persistence"`
}

// ServerConfig holds the HTTP listener address.
type ServerConfig struct {
	Host string `mapstructure:"host" json:"host"`
	Port string `mapstructure:"port" json:"port"`
}

// StreamConfig controls the server side of the notification stream.
type StreamConfig struct {
	Enabled           bool          `mapstructure:"enabled" json:"enabled"`
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval" json:"heartbeat_interval"`
}

// ClientConfig controls reconnect/backoff behavior of the stream client
// and its polling fallback.
type ClientConfig struct {
	BaseDelay        time.Duration `mapstructure:"base_delay" json:"base_delay"`
	MaxDelay         time.Duration `mapstructure:"max_delay" json:"max_delay"`
	MaxAttempts      int           `mapstructure:"max_attempts" json:"max_attempts"`
	HeartbeatTimeout time.Duration `mapstructure:"heartbeat_timeout" json:"heartbeat_timeout"`
	PollInterval     time.Duration `mapstructure:"poll_interval" json:"poll_interval"`
}

// PersistenceConfig selects the notification store backend. An empty DSN
// keeps notifications in process memory.
type PersistenceConfig struct {
	DSN string `mapstructure:"dsn" json:"dsn"`
}

// Defaults returns the baseline configuration.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Host: "localhost",
			Port: "8080",
		},
		Stream: StreamConfig{
			Enabled:           true,
			HeartbeatInterval: 30 * time.Second,
		},
		Client: ClientConfig{
			BaseDelay:        time.Second,
			MaxDelay:         30 * time.Second,
			MaxAttempts:      5,
			HeartbeatTimeout: 60 * time.Second,
			PollInterval:     30 * time.Second,
		},
		Persistence: PersistenceConfig{
			DSN: "file::memory:?cache=shared",
		},
	}
}

// Validate ensures required fields are present and sane.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if c.Stream.HeartbeatInterval <= 0 {
		return fmt.Errorf("stream.heartbeat_interval must be > 0")
	}
	if c.Client.BaseDelay <= 0 {
		return fmt.Errorf("client.base_delay must be > 0")
	}
	if c.Client.MaxDelay < c.Client.BaseDelay {
		return fmt.Errorf("client.max_delay must be >= client.base_delay")
	}
	if c.Client.MaxAttempts < 0 {
		return fmt.Errorf("client.max_attempts must be >= 0")
	}
	return nil
}

// Load decodes arbitrary input (struct, map, cfg struct) using cfgx helpers.
// While cfgx.Build still returns zero values, we fallback to a lightweight
// decoder to keep smoke tests meaningful.
func Load(input any, opts ...LoadOption) (Config, error) {
	settings := loadOptions{}
	for _, opt := range opts {
		opt(&settings)
	}

	cfg, err := cfgx.Build(input, settings.buildOpts...)
	if err != nil {
		return Config{}, err
	}

	if isZero(cfg) {
		if err := decodeFallback(input, &cfg); err != nil {
			return Config{}, err
		}
	}

	cfg = cfg.withDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// LoadOption lets callers amend cfgx build options.
type LoadOption func(*loadOptions)

type loadOptions struct {
	buildOpts []cfgx.Option[Config]
}

// WithBuildOptions forwards cfgx options (duration hooks, preprocessors, etc.).
func WithBuildOptions(opts ...cfgx.Option[Config]) LoadOption {
	return func(lo *loadOptions) {
		lo.buildOpts = append(lo.buildOpts, opts...)
	}
}

func (c Config) withDefaults() Config {
	defaults := Defaults()

	if c.Server.Host == "" {
		c.Server.Host = defaults.Server.Host
	}
	if c.Server.Port == "" {
		c.Server.Port = defaults.Server.Port
	}
	if !c.Stream.Enabled {
		c.Stream.Enabled = defaults.Stream.Enabled
	}
	if c.Stream.HeartbeatInterval == 0 {
		c.Stream.HeartbeatInterval = defaults.Stream.HeartbeatInterval
	}
	if c.Client.BaseDelay == 0 {
		c.Client.BaseDelay = defaults.Client.BaseDelay
	}
	if c.Client.MaxDelay == 0 {
		c.Client.MaxDelay = defaults.Client.MaxDelay
	}
	if c.Client.MaxAttempts == 0 {
		c.Client.MaxAttempts = defaults.Client.MaxAttempts
	}
	if c.Client.HeartbeatTimeout == 0 {
		c.Client.HeartbeatTimeout = defaults.Client.HeartbeatTimeout
	}
	if c.Client.PollInterval == 0 {
		c.Client.PollInterval = defaults.Client.PollInterval
	}
	if c.Persistence.DSN == "" {
		c.Persistence.DSN = defaults.Persistence.DSN
	}
	return c
}

func isZero(cfg Config) bool {
	return reflect.DeepEqual(cfg, Config{})
}

func decodeFallback(input any, cfg *Config) error {
	switch v := input.(type) {
	case nil:
		return nil
	case Config:
		*cfg = v
		return nil
	case *Config:
		if v != nil {
			*cfg = *v
		}
		return nil
	case map[string]any:
		return decodeMap(v, cfg)
	default:
		return fmt.Errorf("unsupported config input type: %T", input)
	}
}

func decodeMap(input map[string]any, cfg *Config) error {
	if input == nil {
		return nil
	}
	payload, err := json.Marshal(input)
	if err != nil {
		return err
	}
	return json.Unmarshal(payload, cfg)
}
