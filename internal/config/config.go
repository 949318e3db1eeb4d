package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/vango-dev/fiber/internal/errors"
)

const (
	// ConfigFileName is the name of the configuration file.
	ConfigFileName = "fiber.json"

	// DefaultAddr is the default server listen address.
	DefaultAddr = "localhost:7070"

	// DefaultFrameBudget is the default scheduler frame length.
	DefaultFrameBudget = "5ms"

	// DefaultFallbackThrottle is how long a committed fallback stays up
	// before a retry may replace it.
	DefaultFallbackThrottle = "500ms"

	// DefaultNestedUpdateLimit bounds synchronous updates scheduled from
	// commit-phase callbacks.
	DefaultNestedUpdateLimit = 50

	// DefaultNamespace is the default Prometheus namespace.
	DefaultNamespace = "fiber"
)

// Config represents the complete fiber.json configuration.
type Config struct {
	// Name is the project name.
	Name string `json:"name,omitempty"`

	// Scheduler contains scheduler timing.
	Scheduler SchedulerConfig `json:"scheduler,omitempty"`

	// Renderer contains reconciler settings.
	Renderer RendererConfig `json:"renderer,omitempty"`

	// Server contains HTTP server settings.
	Server ServerConfig `json:"server,omitempty"`

	// Metrics contains Prometheus settings.
	Metrics MetricsConfig `json:"metrics,omitempty"`

	// CommitLog contains commit log storage settings.
	CommitLog CommitLogConfig `json:"commitlog,omitempty"`

	// Log contains logging settings.
	Log LogConfig `json:"log,omitempty"`

	// Scenarios is the directory scenario files are looked up in.
	Scenarios string `json:"scenarios,omitempty"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// SchedulerConfig contains scheduler timing. Durations use Go syntax
// ("5ms", "1s").
type SchedulerConfig struct {
	// FrameBudget is how long a frame may run before yielding.
	FrameBudget string `json:"frameBudget,omitempty"`

	// FallbackThrottle is the minimum time a suspense fallback is shown.
	FallbackThrottle string `json:"fallbackThrottle,omitempty"`
}

// RendererConfig contains reconciler settings.
type RendererConfig struct {
	// Mode is "legacy" or "concurrent".
	Mode string `json:"mode,omitempty"`

	// NestedUpdateLimit is the maximum number of nested synchronous
	// updates before the renderer gives up.
	NestedUpdateLimit int `json:"nestedUpdateLimit,omitempty"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	// Addr is the listen address.
	Addr string `json:"addr,omitempty"`

	// Tick is the interval of the demo update in `fiberctl serve`.
	Tick string `json:"tick,omitempty"`
}

// MetricsConfig contains Prometheus settings.
type MetricsConfig struct {
	// Disabled hides /metrics and skips metric collection.
	Disabled bool `json:"disabled,omitempty"`

	// Namespace is the metrics namespace.
	Namespace string `json:"namespace,omitempty"`
}

// CommitLogConfig contains commit log storage settings.
type CommitLogConfig struct {
	// Path is a JSON lines file records are appended to.
	Path string `json:"path,omitempty"`

	// S3Bucket uploads records to S3 when set.
	S3Bucket string `json:"s3Bucket,omitempty"`

	// S3Prefix is the key prefix for uploaded batches.
	S3Prefix string `json:"s3Prefix,omitempty"`

	// S3Region is the bucket region.
	S3Region string `json:"s3Region,omitempty"`

	// Limit is the number of records kept in memory (default: 1000).
	Limit int `json:"limit,omitempty"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	// Level is debug, info, warn or error.
	Level string `json:"level,omitempty"`

	// Format is text or json.
	Format string `json:"format,omitempty"`
}

// New creates a new Config with default values.
func New() *Config {
	return &Config{
		Scheduler: SchedulerConfig{
			FrameBudget:      DefaultFrameBudget,
			FallbackThrottle: DefaultFallbackThrottle,
		},
		Renderer: RendererConfig{
			Mode:              "concurrent",
			NestedUpdateLimit: DefaultNestedUpdateLimit,
		},
		Server: ServerConfig{
			Addr: DefaultAddr,
			Tick: "1s",
		},
		Metrics: MetricsConfig{
			Namespace: DefaultNamespace,
		},
		CommitLog: CommitLogConfig{
			S3Prefix: "commits/",
			Limit:    1000,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Scenarios: "scenarios",
	}
}

// Load reads configuration from the specified directory.
// It looks for fiber.json in the directory.
func Load(dir string) (*Config, error) {
	return LoadFile(filepath.Join(dir, ConfigFileName))
}

// LoadFile reads configuration from the specified file path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("F060").
				WithDetail("No fiber.json found in " + filepath.Dir(path))
		}
		return nil, errors.New("F061").Wrap(err)
	}

	cfg := New()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, errors.New("F061").
			WithDetail("Failed to parse fiber.json: " + err.Error()).
			WithSuggestion("Check that fiber.json is valid JSON")
	}

	cfg.configPath = path
	cfg.applyDefaults()

	return cfg, nil
}

// Save writes the configuration to the file it was loaded from.
func (c *Config) Save() error {
	if c.configPath == "" {
		return errors.Newf(errors.CategoryConfig, "no config path set")
	}
	return c.SaveTo(c.configPath)
}

// SaveTo writes the configuration to the specified path.
func (c *Config) SaveTo(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return errors.New("F061").Wrap(err)
	}

	// Add newline at end of file
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.New("F061").Wrap(err)
	}

	c.configPath = path
	return nil
}

// Path returns the path where the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

// Dir returns the directory containing the config file.
func (c *Config) Dir() string {
	if c.configPath == "" {
		return ""
	}
	return filepath.Dir(c.configPath)
}

// applyDefaults fills in default values for empty fields.
func (c *Config) applyDefaults() {
	// Scheduler
	if c.Scheduler.FrameBudget == "" {
		c.Scheduler.FrameBudget = DefaultFrameBudget
	}
	if c.Scheduler.FallbackThrottle == "" {
		c.Scheduler.FallbackThrottle = DefaultFallbackThrottle
	}

	// Renderer
	if c.Renderer.Mode == "" {
		c.Renderer.Mode = "concurrent"
	}
	if c.Renderer.NestedUpdateLimit == 0 {
		c.Renderer.NestedUpdateLimit = DefaultNestedUpdateLimit
	}

	// Server
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultAddr
	}
	if c.Server.Tick == "" {
		c.Server.Tick = "1s"
	}

	// Metrics
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = DefaultNamespace
	}

	// Log
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}

	if c.Scenarios == "" {
		c.Scenarios = "scenarios"
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	for name, value := range map[string]string{
		"scheduler.frameBudget":      c.Scheduler.FrameBudget,
		"scheduler.fallbackThrottle": c.Scheduler.FallbackThrottle,
		"server.tick":                c.Server.Tick,
	} {
		d, err := time.ParseDuration(value)
		if err != nil || d <= 0 {
			return errors.New("F061").
				WithSubject("%s", name).
				WithDetail(strconv.Quote(value) + " is not a positive duration")
		}
	}
	switch c.Renderer.Mode {
	case "legacy", "concurrent":
	default:
		return errors.New("F061").
			WithSubject("renderer.mode").
			WithDetail("Mode must be \"legacy\" or \"concurrent\", got " + strconv.Quote(c.Renderer.Mode))
	}
	if c.Renderer.NestedUpdateLimit < 1 {
		return errors.New("F061").
			WithSubject("renderer.nestedUpdateLimit").
			WithDetail("The limit must be at least 1")
	}
	if c.CommitLog.Limit < 0 {
		return errors.New("F061").
			WithSubject("commitlog.limit").
			WithDetail("The limit must not be negative")
	}
	if c.CommitLog.S3Bucket != "" && c.CommitLog.S3Region == "" {
		return errors.New("F061").
			WithSubject("commitlog.s3Region").
			WithDetail("A region is required when s3Bucket is set")
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return errors.New("F061").
			WithSubject("log.level").
			WithDetail("Level must be debug, info, warn or error")
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return errors.New("F061").
			WithSubject("log.format").
			WithDetail("Format must be text or json")
	}
	return nil
}

// FrameBudget returns the parsed frame budget. Call Validate first.
func (c *Config) FrameBudget() time.Duration {
	return mustDuration(c.Scheduler.FrameBudget, DefaultFrameBudget)
}

// FallbackThrottle returns the parsed fallback throttle.
func (c *Config) FallbackThrottle() time.Duration {
	return mustDuration(c.Scheduler.FallbackThrottle, DefaultFallbackThrottle)
}

// Tick returns the parsed demo tick interval.
func (c *Config) Tick() time.Duration {
	return mustDuration(c.Server.Tick, "1s")
}

func mustDuration(value, fallback string) time.Duration {
	if d, err := time.ParseDuration(value); err == nil && d > 0 {
		return d
	}
	d, _ := time.ParseDuration(fallback)
	return d
}

// CommitLogPath returns the absolute path of the commit log file, or ""
// when none is configured.
func (c *Config) CommitLogPath() string {
	return c.resolve(c.CommitLog.Path)
}

// ScenariosPath returns the absolute path to the scenarios directory.
func (c *Config) ScenariosPath() string {
	return c.resolve(c.Scenarios)
}

func (c *Config) resolve(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.Dir(), path)
}

// Exists checks if a config file exists in the given directory.
func Exists(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, ConfigFileName))
	return err == nil
}

// FindProjectRoot walks up directories to find the project root.
// Returns the directory containing fiber.json, or an error if not found.
func FindProjectRoot(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	for {
		if Exists(dir) {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New("F060").
				WithDetail("No fiber.json found in " + startDir + " or any parent directory")
		}
		dir = parent
	}
}

// LoadFromWorkingDir loads configuration from the current working
// directory or its nearest parent that has a fiber.json.
func LoadFromWorkingDir() (*Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}

	root, err := FindProjectRoot(wd)
	if err != nil {
		return nil, err
	}

	return Load(root)
}
