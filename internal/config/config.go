// Package config loads monbridge settings from a YAML file and MONBRIDGE_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"

	"github.com/roach88/monbridge/internal/bridge"
)

// EnvPrefix is the prefix of every environment override, e.g.
// MONBRIDGE_STORE_PATH for store.path.
const EnvPrefix = "MONBRIDGE"

type Config struct {
	Posture     string        `mapstructure:"posture" yaml:"posture"`
	FramePolicy string        `mapstructure:"frame_policy" yaml:"frame_policy"`
	Store       StoreConfig   `mapstructure:"store" yaml:"store"`
	Metrics     MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
	Log         LogConfig     `mapstructure:"log" yaml:"log"`
}

type StoreConfig struct {
	// Path of the SQLite session database. Empty disables recording.
	Path string `mapstructure:"path" yaml:"path"`
}

type MetricsConfig struct {
	Addr      string `mapstructure:"addr" yaml:"addr"`
	Namespace string `mapstructure:"namespace" yaml:"namespace"`
}

type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
}

// keys lists every setting so environment overrides apply even when the
// config file omits them.
var keys = []string{
	"posture",
	"frame_policy",
	"store.path",
	"metrics.addr",
	"metrics.namespace",
	"log.level",
}

// Load reads path (optional) and the environment, applies defaults and
// validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, k := range keys {
		if err := v.BindEnv(k); err != nil {
			return nil, fmt.Errorf("bind %s: %w", k, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

func (c *Config) applyDefaults() {
	if c.Posture == "" {
		c.Posture = bridge.PostureRelease.String()
	}
	if c.FramePolicy == "" {
		c.FramePolicy = bridge.PadFrames.String()
	}
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = ":9464"
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = "monbridge"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

func (c *Config) validate() error {
	var errs []error
	if _, err := bridge.ParsePosture(c.Posture); err != nil {
		errs = append(errs, fmt.Errorf("posture: %w", err))
	}
	if _, err := bridge.ParseFramePolicy(c.FramePolicy); err != nil {
		errs = append(errs, fmt.Errorf("frame_policy: %w", err))
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if c.Metrics.Addr == "" {
		errs = append(errs, errors.New("metrics.addr is required"))
	}
	return errors.Join(errs...)
}

// BridgeOptions converts the validated settings to bridge options.
func (c *Config) BridgeOptions() []bridge.Option {
	posture, _ := bridge.ParsePosture(c.Posture)
	policy, _ := bridge.ParseFramePolicy(c.FramePolicy)
	return []bridge.Option{
		bridge.WithPosture(posture),
		bridge.WithFramePolicy(policy),
	}
}

// LogLevel returns the configured zap level.
func (c *Config) LogLevel() zapcore.Level {
	lvl, err := zapcore.ParseLevel(c.Log.Level)
	if err != nil {
		return zapcore.InfoLevel
	}
	return lvl
}
