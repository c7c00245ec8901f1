package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	apperrors "timeblock/internal/platform/errors"
)

const (
	DefaultScope        = "default-time-blocker"
	DefaultTickInterval = time.Second
	DefaultPollInterval = 500 * time.Millisecond
	fileName            = "config.yaml"
)

type Config struct {
	DataDir      string
	DBPath       string
	Store        string
	Scope        string
	TickInterval time.Duration
	PollInterval time.Duration
	Notifier     string
	Audio        string
	LogLevel     string
}

// fileConfig mirrors the optional <data>/.timeblock/config.yaml document.
type fileConfig struct {
	Scope        string `yaml:"scope"`
	DBPath       string `yaml:"db_path"`
	Store        string `yaml:"store"`
	TickInterval string `yaml:"tick_interval"`
	PollInterval string `yaml:"poll_interval"`
	Notifier     string `yaml:"notifier"`
	Audio        string `yaml:"audio"`
	LogLevel     string `yaml:"log_level"`
}

func New(dataDir string) (Config, error) {
	if dataDir == "" {
		return Config{}, fmt.Errorf("data dir is required: %w", apperrors.ErrInvalidInput)
	}
	cfg := Config{
		DataDir:      dataDir,
		DBPath:       filepath.Join(dataDir, ".timeblock", "timeblock.db"),
		Store:        "sqlite",
		Scope:        DefaultScope,
		TickInterval: DefaultTickInterval,
		PollInterval: DefaultPollInterval,
		Notifier:     "auto",
		Audio:        "bell",
		LogLevel:     "info",
	}
	if err := cfg.overlay(filepath.Join(dataDir, ".timeblock", fileName)); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) overlay(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	file := fileConfig{}
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return fmt.Errorf("decode config %s: %w", path, err)
	}
	if v := strings.TrimSpace(file.Scope); v != "" {
		c.Scope = v
	}
	if v := strings.TrimSpace(file.DBPath); v != "" {
		if !filepath.IsAbs(v) {
			v = filepath.Join(c.DataDir, v)
		}
		c.DBPath = v
	}
	if v := strings.TrimSpace(file.Store); v != "" {
		c.Store = v
	}
	if v := strings.TrimSpace(file.TickInterval); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("tick_interval %q: %w", v, apperrors.ErrInvalidInput)
		}
		c.TickInterval = d
	}
	if v := strings.TrimSpace(file.PollInterval); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("poll_interval %q: %w", v, apperrors.ErrInvalidInput)
		}
		c.PollInterval = d
	}
	if v := strings.TrimSpace(file.Notifier); v != "" {
		c.Notifier = v
	}
	if v := strings.TrimSpace(file.Audio); v != "" {
		c.Audio = v
	}
	if v := strings.TrimSpace(file.LogLevel); v != "" {
		c.LogLevel = v
	}
	return nil
}

func (c Config) Validate() error {
	if c.TickInterval <= 0 {
		return fmt.Errorf("tick interval must be positive: %w", apperrors.ErrInvalidInput)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive: %w", apperrors.ErrInvalidInput)
	}
	if strings.TrimSpace(c.Scope) == "" {
		return fmt.Errorf("scope is required: %w", apperrors.ErrInvalidInput)
	}
	switch c.Store {
	case "sqlite", "memory":
	default:
		return fmt.Errorf("unsupported store %q: %w", c.Store, apperrors.ErrInvalidInput)
	}
	switch c.Notifier {
	case "auto", "desktop", "log", "none":
	default:
		return fmt.Errorf("unsupported notifier %q: %w", c.Notifier, apperrors.ErrInvalidInput)
	}
	switch c.Audio {
	case "bell", "none":
	default:
		return fmt.Errorf("unsupported audio cue %q: %w", c.Audio, apperrors.ErrInvalidInput)
	}
	return nil
}
