package config

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment override
const EnvPrefix = "AUTOSTART_"

// Point is a screen coordinate in device pixels
type Point struct {
	X int `yaml:"x"`
	Y int `yaml:"y"`
}

// ImagePoint converts to image.Point
func (p Point) ImagePoint() image.Point {
	return image.Pt(p.X, p.Y)
}

// Timings holds the waits between automation steps
type Timings struct {
	RetryDelay    time.Duration `yaml:"retry_delay" env:"RETRY_DELAY"`
	LoadTimeout   time.Duration `yaml:"load_timeout" env:"LOAD_TIMEOUT"`
	PollInterval  time.Duration `yaml:"poll_interval" env:"POLL_INTERVAL"`
	DismissSettle time.Duration `yaml:"dismiss_settle" env:"DISMISS_SETTLE"`
	VerifyDelay   time.Duration `yaml:"verify_delay" env:"VERIFY_DELAY"`
	GenericSettle time.Duration `yaml:"generic_settle" env:"GENERIC_SETTLE"`
	FallbackDelay time.Duration `yaml:"fallback_delay" env:"FALLBACK_DELAY"`
	FinalSettle   time.Duration `yaml:"final_settle" env:"FINAL_SETTLE"`
}

type Config struct {
	// Emulator
	MemucPath          string        `yaml:"memuc_path" env:"MEMUC_PATH"`
	CommandTimeout     time.Duration `yaml:"command_timeout" env:"COMMAND_TIMEOUT"`
	MinScreenshotBytes int64         `yaml:"min_screenshot_bytes" env:"MIN_SCREENSHOT_BYTES"`

	// Detection
	TemplatesDir        string  `yaml:"templates_dir" env:"TEMPLATES_DIR"`
	ConfidenceThreshold float64 `yaml:"confidence_threshold" env:"CONFIDENCE_THRESHOLD"`

	// Launch behaviour
	MaxRetries     int     `yaml:"max_retries" env:"MAX_RETRIES"`
	AdAttempts     int     `yaml:"ad_attempts" env:"AD_ATTEMPTS"`
	MaxConcurrent  int     `yaml:"max_concurrent" env:"MAX_CONCURRENT"`
	DismissPoint   Point   `yaml:"dismiss_point"`
	FallbackPoints []Point `yaml:"fallback_points"`
	Timings        Timings `yaml:"timings" envPrefix:"TIMING_"`

	// Auto startup
	AutoStartup     []string      `yaml:"auto_startup" env:"AUTO_STARTUP" envSeparator:","`
	StartupCooldown time.Duration `yaml:"startup_cooldown" env:"STARTUP_COOLDOWN"`
	StartupSettle   time.Duration `yaml:"startup_settle" env:"STARTUP_SETTLE"`
	MonitorInterval time.Duration `yaml:"monitor_interval" env:"MONITOR_INTERVAL"`

	// Integrations
	WebhookURL string `yaml:"webhook_url" env:"WEBHOOK_URL"`
	ServeAddr  string `yaml:"serve_addr" env:"SERVE_ADDR"`

	// UI / logging
	LogLevel   string `yaml:"log_level" env:"LOG_LEVEL"`
	ColorTheme string `yaml:"color_theme" env:"COLOR_THEME"`
}

var (
	ErrInvalidThreshold = errors.New("confidence_threshold must be in (0, 1]")
	ErrInvalidLogLevel  = errors.New("unknown log_level")
	ErrInvalidTimings   = errors.New("timings must not be negative")
)

// DefaultMemucPath returns the platform default location of memuc
func DefaultMemucPath() string {
	if runtime.GOOS == "windows" {
		return `C:\Program Files\Microvirt\MEmu\memuc.exe`
	}
	return "memuc"
}

// DefaultConfig returns a Config struct with default values
func DefaultConfig() *Config {
	return &Config{
		MemucPath:           DefaultMemucPath(),
		CommandTimeout:      15 * time.Second,
		MinScreenshotBytes:  10000,
		TemplatesDir:        "",
		ConfidenceThreshold: 0.6,
		MaxRetries:          3,
		AdAttempts:          5,
		MaxConcurrent:       4,
		DismissPoint:        Point{X: 240, Y: 400},
		FallbackPoints: []Point{
			{X: 240, Y: 600},
			{X: 240, Y: 500},
			{X: 240, Y: 300},
			{X: 400, Y: 300},
			{X: 80, Y: 300},
		},
		Timings: Timings{
			RetryDelay:    10 * time.Second,
			LoadTimeout:   60 * time.Second,
			PollInterval:  time.Second,
			DismissSettle: 2 * time.Second,
			VerifyDelay:   time.Second,
			GenericSettle: 3 * time.Second,
			FallbackDelay: time.Second,
			FinalSettle:   3 * time.Second,
		},
		AutoStartup:     nil,
		StartupCooldown: 5 * time.Minute,
		StartupSettle:   8 * time.Second,
		MonitorInterval: 30 * time.Second,
		WebhookURL:      "",
		ServeAddr:  "127.0.0.1:8085",
		LogLevel:   "info",
		ColorTheme: "auto",
	}
}

// Load reads configuration from the specified file path.
// Precedence: AUTOSTART_* environment variables, then the file, then defaults.
func Load(path string) (*Config, error) {
	fileCfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, fileCfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("failed to read environment overrides: %w", err)
	}

	if err := mergo.Merge(cfg, fileCfg); err != nil {
		return nil, fmt.Errorf("failed to merge config file: %w", err)
	}
	if err := mergo.Merge(cfg, DefaultConfig()); err != nil {
		return nil, fmt.Errorf("failed to apply defaults: %w", err)
	}

	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// normalize replaces out-of-range counters with their defaults
func (c *Config) normalize() {
	defaults := DefaultConfig()

	if c.MaxRetries <= 0 {
		c.MaxRetries = defaults.MaxRetries
	}
	if c.AdAttempts <= 0 {
		c.AdAttempts = defaults.AdAttempts
	}
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = defaults.MaxConcurrent
	}
	if c.MinScreenshotBytes < 0 {
		c.MinScreenshotBytes = defaults.MinScreenshotBytes
	}
	if c.MonitorInterval <= 0 {
		c.MonitorInterval = defaults.MonitorInterval
	}
	if !isValidTheme(c.ColorTheme) {
		c.ColorTheme = defaults.ColorTheme
	}
	c.AutoStartup = cleanNames(c.AutoStartup)
}

// cleanNames trims instance names and drops blanks and duplicates
func cleanNames(names []string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}

// Validate reports every invalid setting at once
func (c *Config) Validate() error {
	var errs []error

	if c.ConfidenceThreshold <= 0 || c.ConfidenceThreshold > 1 {
		errs = append(errs, fmt.Errorf("%w: got %v", ErrInvalidThreshold, c.ConfidenceThreshold))
	}

	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("%w: %q", ErrInvalidLogLevel, c.LogLevel))
	}

	t := c.Timings
	for _, d := range []time.Duration{
		t.RetryDelay, t.LoadTimeout, t.PollInterval, t.DismissSettle,
		t.VerifyDelay, t.GenericSettle, t.FallbackDelay, t.FinalSettle,
		c.CommandTimeout, c.StartupCooldown, c.StartupSettle,
	} {
		if d < 0 {
			errs = append(errs, ErrInvalidTimings)
			break
		}
	}

	return errors.Join(errs...)
}

// ResolveTemplatesDir returns the templates directory, falling back to the workspace one
func (c *Config) ResolveTemplatesDir(workspaceTemplates string) string {
	if c.TemplatesDir != "" {
		return c.TemplatesDir
	}
	return workspaceTemplates
}

// AutoStarts reports whether the named instance is configured for auto startup
func (c *Config) AutoStarts(name string) bool {
	for _, n := range c.AutoStartup {
		if n == name {
			return true
		}
	}
	return false
}

// LoadPolls returns how many times the load wait polls before giving up
func (c *Config) LoadPolls() int {
	if c.Timings.PollInterval <= 0 {
		return int(c.Timings.LoadTimeout / time.Second)
	}
	return int(c.Timings.LoadTimeout / c.Timings.PollInterval)
}

// Save persists the current configuration to the specified file path
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func isValidTheme(theme string) bool {
	switch theme {
	case "auto", "dark", "light":
		return true
	}
	return false
}
