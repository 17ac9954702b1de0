// Package config loads loopviz.yaml, the optional .env file and the
// LOOPVIZ_* environment overrides into one validated Config.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the top-level loopviz.yaml configuration.
type Config struct {
	Scenarios ScenariosConfig `yaml:"scenarios"`
	Play      PlayConfig      `yaml:"play"`
	Engine    EngineConfig    `yaml:"engine"`
	Progress  ProgressConfig  `yaml:"progress"`
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`

	// Color is one of auto, always or never.
	Color string `yaml:"color,omitempty"`

	// Path is the file the configuration was read from; empty when only
	// defaults and environment apply.
	Path string `yaml:"-"`
}

// ScenariosConfig lists directories with user scenarios. Relative entries
// are resolved against the directory holding loopviz.yaml.
type ScenariosConfig struct {
	Dirs []string `yaml:"dirs,omitempty"`
}

// PlayConfig controls autoplay.
type PlayConfig struct {
	// Interval is a Go duration string such as "800ms".
	Interval string `yaml:"interval,omitempty"`

	// AutoReset rewinds a finished session before playing it again.
	AutoReset bool `yaml:"auto_reset,omitempty"`

	interval time.Duration
}

type EngineConfig struct {
	MaxCallDepth int `yaml:"max_call_depth,omitempty"`
}

type ProgressConfig struct {
	// Path of the sqlite database. Defaults to
	// $XDG_DATA_HOME/loopviz/progress.db.
	Path string `yaml:"path,omitempty"`
}

type ServerConfig struct {
	Address string `yaml:"address,omitempty"`
}

type LogConfig struct {
	Verbosity int    `yaml:"verbosity,omitempty"`
	File      string `yaml:"file,omitempty"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	cfg := &Config{}
	cfg.setDefaults()
	_ = cfg.validate("defaults")
	return cfg
}

// LoadConfig reads and parses a loopviz.yaml file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	return ParseConfig(data, path)
}

// ParseConfig parses loopviz.yaml content from bytes.
// The path argument is used for error messages and to resolve relative
// scenario directories.
func ParseConfig(data []byte, path string) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	cfg.Path = path
	cfg.setDefaults()
	if err := cfg.validate(path); err != nil {
		return nil, err
	}
	if path != "" {
		dir := filepath.Dir(path)
		for i, d := range cfg.Scenarios.Dirs {
			if !filepath.IsAbs(d) {
				cfg.Scenarios.Dirs[i] = filepath.Join(dir, d)
			}
		}
	}
	return &cfg, nil
}

// FindConfig searches for loopviz.yaml starting from dir and walking up
// to parent directories.
// Returns the path to the config file and nil error if found,
// or empty string and nil error if not found.
func FindConfig(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving directory: %w", err)
	}

	for {
		for _, name := range []string{FileName, AltFileName} {
			candidate := filepath.Join(dir, name)
			if _, err := os.Stat(candidate); err == nil {
				return candidate, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil
		}
		dir = parent
	}
}

// Resolve produces the effective configuration: .env from workDir, then
// the explicit file (or the one found from workDir), then environment
// overrides.
func Resolve(explicit, workDir string) (*Config, error) {
	envFile := filepath.Join(workDir, EnvFileName)
	if _, err := os.Stat(envFile); err == nil {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("loading %s: %w", envFile, err)
		}
	}

	path := explicit
	if path == "" {
		found, err := FindConfig(workDir)
		if err != nil {
			return nil, err
		}
		path = found
	}

	cfg := Default()
	if path != "" {
		loaded, err := LoadConfig(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from environment variables read through getenv.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if v := getenv(EnvPlayInterval); v != "" {
		c.Play.Interval = v
	}
	if v := getenv(EnvProgressPath); v != "" {
		c.Progress.Path = v
	}
	if v := getenv(EnvServerAddress); v != "" {
		c.Server.Address = v
	}
	if v := getenv(EnvLogFile); v != "" {
		c.Log.File = v
	}
	if v := getenv(EnvLogVerbosity); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvLogVerbosity, err)
		}
		c.Log.Verbosity = n
	}
	if v := getenv(EnvScenarioDirs); v != "" {
		c.Scenarios.Dirs = append(c.Scenarios.Dirs, filepath.SplitList(v)...)
	}
	if v := getenv(EnvColor); v != "" {
		c.Color = v
	} else if getenv(EnvNoColor) != "" {
		c.Color = ColorNever
	}
	return c.validate("environment")
}

// PlayInterval is the parsed autoplay interval.
func (c *Config) PlayInterval() time.Duration {
	return c.Play.interval
}

// ErrInvalid is wrapped by validation failures.
var ErrInvalid = errors.New("invalid configuration")

// Validate checks the configuration after callers changed fields directly,
// for example from command-line flags.
func (c *Config) Validate() error {
	source := c.Path
	if source == "" {
		source = "flags"
	}
	return c.validate(source)
}

// validate checks the configuration for semantic errors.
func (c *Config) validate(path string) error {
	d, err := time.ParseDuration(c.Play.Interval)
	if err != nil {
		return fmt.Errorf("%w: %s: play.interval: %v", ErrInvalid, path, err)
	}
	if d <= 0 {
		return fmt.Errorf("%w: %s: play.interval must be positive, got %s", ErrInvalid, path, c.Play.Interval)
	}
	c.Play.interval = d

	if c.Engine.MaxCallDepth < 0 {
		return fmt.Errorf("%w: %s: engine.max_call_depth must not be negative", ErrInvalid, path)
	}
	switch c.Color {
	case ColorAuto, ColorAlways, ColorNever:
	default:
		return fmt.Errorf("%w: %s: color must be %s, %s or %s, got %q", ErrInvalid, path, ColorAuto, ColorAlways, ColorNever, c.Color)
	}
	return nil
}

// setDefaults fills in default values for optional fields.
func (c *Config) setDefaults() {
	if c.Play.Interval == "" {
		c.Play.Interval = DefaultPlayInterval
	}
	if c.Engine.MaxCallDepth == 0 {
		c.Engine.MaxCallDepth = DefaultMaxCallDepth
	}
	if c.Server.Address == "" {
		c.Server.Address = DefaultServerAddress
	}
	if c.Color == "" {
		c.Color = ColorAuto
	}
	if c.Progress.Path == "" {
		c.Progress.Path = defaultProgressPath()
	}
}

func defaultProgressPath() string {
	base := os.Getenv(EnvDataHome)
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(os.TempDir(), AppDirName, DefaultProgressFile)
		}
		base = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(base, AppDirName, DefaultProgressFile)
}
