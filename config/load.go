package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"ohlcvc-builder/infrastructure/logger"
)

// Duration parses yaml values like "1m" or "5s" via time.ParseDuration.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("bad duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the standard library duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// AppConfig holds the main runtime configuration.
type AppConfig struct {
	Interval       Duration `yaml:"interval"`
	Alignment      string   `yaml:"alignment"`     // epoch 或 session
	SessionOffset  Duration `yaml:"sessionOffset"` // session 开盘相对当日零点的偏移
	LatenessWindow Duration `yaml:"latenessWindow"`

	UnknownConditionPolicy string `yaml:"unknownConditionPolicy"` // includeByDefault, excludeByDefault, reject
	CountPolicy            string `yaml:"countPolicy"`            // allTrades, eligibleOnly
	InvalidTradePolicy     string `yaml:"invalidTradePolicy"`     // skip, abort

	Partitions   int    `yaml:"partitions"`
	OutputFormat string `yaml:"outputFormat"` // csv, json, parquet
	MetricsAddr  string `yaml:"metricsAddr"`

	Paths  PathsConfig   `yaml:"paths"`
	Logger logger.Config `yaml:"logger"`
}

// PathsConfig 输入输出文件路径
type PathsConfig struct {
	Trades     string `yaml:"trades"`
	Conditions string `yaml:"conditions"`
	Exchanges  string `yaml:"exchanges"`
	Output     string `yaml:"output"`
}

// Default returns a config with working defaults for everything but paths.
func Default() AppConfig {
	return AppConfig{
		Interval:               Duration(time.Minute),
		Alignment:              "epoch",
		LatenessWindow:         Duration(5 * time.Second),
		UnknownConditionPolicy: "includeByDefault",
		CountPolicy:            "allTrades",
		InvalidTradePolicy:     "skip",
		Partitions:             4,
		OutputFormat:           "csv",
		Logger:                 logger.DefaultConfig(),
	}
}

// Load reads YAML config from path and applies basic validation.
func Load(path string) (AppConfig, error) {
	cfg := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadWithEnvOverrides loads config then overrides file paths from env vars
// if present.
func LoadWithEnvOverrides(path string) (AppConfig, error) {
	cfg, err := Load(path)
	if err != nil {
		return cfg, err
	}
	if v := os.Getenv("OHLCVC_TRADES"); v != "" {
		cfg.Paths.Trades = v
	}
	if v := os.Getenv("OHLCVC_OUTPUT"); v != "" {
		cfg.Paths.Output = v
	}
	return cfg, Validate(cfg)
}
