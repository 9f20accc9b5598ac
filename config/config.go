// Package config gathers the settings of the angle command and service.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const Prefix = "ANGLE"

var ErrConfig = errors.New("invalid configuration")

type Config struct {
	Log     LogConfig
	Engine  EngineConfig
	Fetch   FetchConfig
	Service ServiceConfig
}

type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Format      string `envconfig:"LOG_FORMAT" default:"console"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
	Disabled    bool   `envconfig:"LOG_DISABLED" default:"false"`
}

// EngineConfig bounds the work of a transformation. Zero values select the
// defaults of the engine.
type EngineConfig struct {
	Slice     int `envconfig:"SLICE" default:"10000"`
	MaxDepth  int `envconfig:"MAX_DEPTH" default:"4096"`
	MaxOutput int `envconfig:"MAX_OUTPUT" default:"0"`
}

type FetchConfig struct {
	Retry   int           `envconfig:"HTTP_RETRY" default:"2"`
	Timeout time.Duration `envconfig:"HTTP_TIMEOUT" default:"30s"`
}

type ServiceConfig struct {
	Addr     string        `envconfig:"ADDR" default:":8080"`
	Metrics  bool          `envconfig:"METRICS" default:"true"`
	Deadline time.Duration `envconfig:"DEADLINE" default:"1m"`
	Root     string        `envconfig:"ROOT" default:"."`
}

// Load reads the configuration from the environment variables prefixed
// with ANGLE_.
func Load() (*Config, error) {
	var (
		cfg  Config
		sets = []any{&cfg.Log, &cfg.Engine, &cfg.Fetch, &cfg.Service}
	)
	for _, spec := range sets {
		if err := envconfig.Process(Prefix, spec); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrConfig, err)
		}
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func Default() *Config {
	return &Config{
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Engine: EngineConfig{
			Slice:    10000,
			MaxDepth: 4096,
		},
		Fetch: FetchConfig{
			Retry:   2,
			Timeout: 30 * time.Second,
		},
		Service: ServiceConfig{
			Addr:     ":8080",
			Metrics:  true,
			Deadline: time.Minute,
			Root:     ".",
		},
	}
}

func (c *Config) validate() error {
	if c.Engine.Slice < 0 || c.Engine.MaxDepth < 0 || c.Engine.MaxOutput < 0 {
		return fmt.Errorf("%w: engine limits must not be negative", ErrConfig)
	}
	if c.Fetch.Retry < 0 {
		return fmt.Errorf("%w: negative retry count", ErrConfig)
	}
	switch c.Log.Format {
	case "", "console", "json":
	default:
		return fmt.Errorf("%w: %s: unknown log format", ErrConfig, c.Log.Format)
	}
	return nil
}

// Logger builds the logger described by c.
func (c LogConfig) Logger() (*zap.Logger, error) {
	if c.Disabled {
		return zap.NewNop(), nil
	}
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(c.Level)); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrConfig, c.Level, err)
	}
	encoder := zap.NewProductionEncoderConfig()
	if c.Development {
		encoder = zap.NewDevelopmentEncoderConfig()
	}
	encoder.TimeKey = "time"
	encoder.EncodeTime = zapcore.ISO8601TimeEncoder

	format := c.Format
	if format == "" {
		format = "console"
	}
	zc := zap.Config{
		Level:             zap.NewAtomicLevelAt(level),
		Development:       c.Development,
		Encoding:          format,
		EncoderConfig:     encoder,
		OutputPaths:       []string{"stderr"},
		ErrorOutputPaths:  []string{"stderr"},
		DisableStacktrace: !c.Development,
	}
	return zc.Build()
}
