// Package config provides unified configuration loading for aifamily.
// It supports loading from a YAML file, a .env file, and environment
// variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/adubusi/AI-Family/internal/adapter"
	"github.com/adubusi/AI-Family/internal/house"
	"github.com/adubusi/AI-Family/internal/household"
	"github.com/adubusi/AI-Family/internal/publish"
	"github.com/adubusi/AI-Family/internal/store"
	"github.com/adubusi/AI-Family/internal/tariff"
)

// FileName is the config file inside the data directory.
const FileName = "config.yaml"

// Config contains every aifamily setting.
type Config struct {
	Engine    EngineConfig     `json:"engine" yaml:"engine"`
	Tariff    tariff.Schedule  `json:"tariff" yaml:"tariff"`
	House     house.Model      `json:"house" yaml:"house"`
	Household household.Config `json:"household" yaml:"household"`
	Store     StoreConfig      `json:"store" yaml:"store"`
	Channel   ChannelConfig    `json:"channel" yaml:"channel"`
	Publish   publish.Config   `json:"publish" yaml:"publish"`
	API       APIConfig        `json:"api" yaml:"api"`
	Logging   LoggingConfig    `json:"logging" yaml:"logging"`
}

// EngineConfig names the thermal engine and how the bridge drives it.
type EngineConfig struct {
	// Command is the engine executable, looked up on PATH.
	Command string   `json:"command" yaml:"command"`
	Args    []string `json:"args,omitempty" yaml:"args,omitempty"`
	// WeatherFile is the EPW file passed with -w.
	WeatherFile string `json:"weather_file" yaml:"weather_file"`
	// WorkDir receives the building description. Empty uses a temp dir.
	WorkDir string `json:"work_dir,omitempty" yaml:"work_dir,omitempty"`

	adapter.Config `yaml:",inline"`
}

// StoreConfig locates the history database.
type StoreConfig struct {
	// Path of the SQLite file. Empty uses ~/.aifamily/history.db.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
}

// ChannelConfig optionally backs the shared channel with a file.
type ChannelConfig struct {
	// File is mmap'd so other processes can read the live state.
	File string `json:"file,omitempty" yaml:"file,omitempty"`
}

// APIConfig configures the HTTP status API.
type APIConfig struct {
	// Listen is the address to serve on. Empty disables the API.
	Listen string `json:"listen" yaml:"listen"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	// Level sets the log verbosity: "warn", "info" (default), "debug", or
	// "trace". "debug" and "trace" also write steps.jsonl.
	Level string `json:"level" yaml:"level"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Engine: EngineConfig{
			Command:     "thermalsim",
			WeatherFile: "weather.epw",
			Config:      adapter.DefaultConfig(),
		},
		Tariff:    tariff.DefaultSchedule(),
		House:     house.DefaultModel(),
		Household: household.DefaultConfig(),
		Publish:   publish.DefaultConfig(),
		API:       APIConfig{Listen: "127.0.0.1:8080"},
		Logging:   LoggingConfig{Level: "info"},
	}
}

// Dir returns the aifamily data directory (~/.aifamily).
func Dir() (string, error) {
	return store.GlobalDataPath()
}

// DefaultPath returns ~/.aifamily/config.yaml.
func DefaultPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, FileName), nil
}

// Load loads configuration from the default locations.
// Order: defaults -> ~/.aifamily/config.yaml -> ./.env -> AIFAMILY_* env.
func Load() (*Config, error) {
	path, err := DefaultPath()
	if err != nil {
		path = ""
	}
	return LoadFrom(path, ".env")
}

// LoadFrom loads configuration from path and envFile, either of which may
// be empty or missing, then applies environment overrides and validates.
// Variables already set in the process environment win over envFile.
func LoadFrom(path, envFile string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if _, statErr := os.Stat(path); statErr == nil {
			fileConfig, loadErr := LoadFromFile(path)
			if loadErr != nil {
				return nil, fmt.Errorf("loading config file: %w", loadErr)
			}
			cfg = fileConfig
		}
	}

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("loading %s: %w", envFile, err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadFromFile loads configuration from a specific YAML file on top of the
// defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	cfg.Engine.WeatherFile = expandEnvVars(cfg.Engine.WeatherFile)
	cfg.Engine.Command = expandEnvVars(cfg.Engine.Command)
	cfg.Store.Path = expandEnvVars(cfg.Store.Path)
	return cfg, nil
}

// Save writes cfg to path as YAML, creating the directory if needed.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.Engine.Command == "" {
		return fmt.Errorf("engine.command must be set")
	}
	if err := c.Engine.Config.Validate(); err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	if err := c.Tariff.Validate(); err != nil {
		return fmt.Errorf("tariff: %w", err)
	}
	if err := c.House.Validate(); err != nil {
		return fmt.Errorf("house: %w", err)
	}
	if err := c.Household.Validate(); err != nil {
		return err
	}
	if err := c.Publish.Validate(); err != nil {
		return fmt.Errorf("publish: %w", err)
	}

	validLevels := map[string]bool{"warn": true, "info": true, "debug": true, "trace": true}
	if c.Logging.Level != "" && !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (valid: warn, info, debug, trace, or empty for default)", c.Logging.Level)
	}
	return nil
}

// applyEnvOverrides applies AIFAMILY_* environment variables.
func applyEnvOverrides(cfg *Config) error {
	for _, o := range envOverrides {
		v, ok := os.LookupEnv(o.env)
		if !ok || v == "" {
			continue
		}
		if err := cfg.Set(o.key, v); err != nil {
			return fmt.Errorf("%s: %w", o.env, err)
		}
	}
	return nil
}

var envOverrides = []struct{ env, key string }{
	{"AIFAMILY_ENGINE_COMMAND", "engine.command"},
	{"AIFAMILY_WEATHER_FILE", "engine.weather_file"},
	{"AIFAMILY_WORK_DIR", "engine.work_dir"},
	{"AIFAMILY_STEP_DELAY", "engine.step_delay"},
	{"AIFAMILY_TARIFF_VALLEY", "tariff.valley"},
	{"AIFAMILY_TARIFF_FLAT", "tariff.flat"},
	{"AIFAMILY_TARIFF_PEAK", "tariff.peak"},
	{"AIFAMILY_DAILY_BUDGET", "household.daily_budget"},
	{"AIFAMILY_DB_PATH", "store.path"},
	{"AIFAMILY_CHANNEL_FILE", "channel.file"},
	{"AIFAMILY_MQTT_BROKER", "publish.mqtt.broker"},
	{"AIFAMILY_MQTT_TOPIC", "publish.mqtt.topic"},
	{"AIFAMILY_KAFKA_BROKERS", "publish.kafka.brokers"},
	{"AIFAMILY_KAFKA_TOPIC", "publish.kafka.topic"},
	{"AIFAMILY_API_LISTEN", "api.listen"},
	{"AIFAMILY_LOG_LEVEL", "logging.level"},
}

// expandEnvVars expands ${VAR} patterns in a string with environment variable values.
func expandEnvVars(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return os.Expand(s, os.Getenv)
}

func parseFloat(key, v string) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number for %s: %s", key, v)
	}
	return f, nil
}
