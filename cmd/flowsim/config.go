package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/rendis/flowsim/internal/engine"
	"github.com/rendis/flowsim/internal/scheduler"
)

// Config holds all flowsim configuration.
// Priority: flags > env vars > settings.yaml > defaults.
type Config struct {
	ListenAddr   string          `yaml:"listen_addr" validate:"required"`
	LogLevel     string          `yaml:"log_level" validate:"oneof=debug info warn warning error"`
	LogFormat    string          `yaml:"log_format" validate:"oneof=text json"`
	PoolSize     int             `yaml:"pool_size" validate:"min=1,max=256"`
	CatalogPath  string          `yaml:"catalog_path"`
	ASCIIBinDir  string          `yaml:"ascii_bin_dir"`
	EdgeStrategy string          `yaml:"edge_strategy" validate:"oneof=first priority"`
	Delays       engine.Delays   `yaml:"delays"`
	Schedules    []scheduler.Job `yaml:"schedules" validate:"dive"`
}

func defaultConfig() Config {
	return Config{
		ListenAddr:   ":4100",
		LogLevel:     "info",
		LogFormat:    "text",
		PoolSize:     4,
		EdgeStrategy: string(engine.FirstOutgoing),
		Delays:       engine.DefaultDelays(),
	}
}

func flowsimDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".flowsim"
	}
	return filepath.Join(home, ".flowsim")
}

func settingsPath() string {
	return filepath.Join(flowsimDir(), "settings.yaml")
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// loadConfig layers defaults, the settings file and FLOWSIM_* variables.
// A missing settings file is not an error.
func loadConfig(path string, getenv func(string) string) (Config, error) {
	cfg := defaultConfig()

	// Layer 2: settings.yaml.
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return cfg, fmt.Errorf("read settings: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse settings %s: %w", path, err)
			}
		}
	}

	// Layer 3: env vars override.
	strs := map[string]*string{
		"FLOWSIM_LISTEN_ADDR":   &cfg.ListenAddr,
		"FLOWSIM_LOG_LEVEL":     &cfg.LogLevel,
		"FLOWSIM_LOG_FORMAT":    &cfg.LogFormat,
		"FLOWSIM_CATALOG_PATH":  &cfg.CatalogPath,
		"FLOWSIM_ASCII_BIN_DIR": &cfg.ASCIIBinDir,
		"FLOWSIM_EDGE_STRATEGY": &cfg.EdgeStrategy,
	}
	for key, dst := range strs {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	if v := getenv("FLOWSIM_POOL_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("FLOWSIM_POOL_SIZE: %w", err)
		}
		cfg.PoolSize = n
	}

	return cfg, nil
}

// check validates the merged configuration.
func (c Config) check() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Delays.Task < 0 || c.Delays.Approval < 0 || c.Delays.Automated < 0 {
		return errors.New("invalid config: delays must not be negative")
	}
	return nil
}

// configDiff describes what changed between two configurations.
type configDiff struct {
	HandlerChanged   bool     // components behind the HTTP handler must be rebuilt
	SchedulesChanged bool     // jobs must be resynced with the scheduler
	RestartNeeded    []string // fields that require a server restart
}

func diffConfigs(old, new Config) configDiff {
	var d configDiff
	if old.LogLevel != new.LogLevel || old.LogFormat != new.LogFormat ||
		old.CatalogPath != new.CatalogPath || old.ASCIIBinDir != new.ASCIIBinDir ||
		old.EdgeStrategy != new.EdgeStrategy || old.Delays != new.Delays ||
		old.PoolSize != new.PoolSize {
		d.HandlerChanged = true
	}
	if old.ListenAddr != new.ListenAddr {
		d.RestartNeeded = append(d.RestartNeeded, "listen_addr")
	}
	if !slices.EqualFunc(old.Schedules, new.Schedules, sameJob) {
		d.SchedulesChanged = true
	}
	return d
}

func sameJob(a, b scheduler.Job) bool {
	return a.Name == b.Name && a.Spec == b.Spec && a.Path == b.Path && slices.Equal(a.Expect, b.Expect)
}
