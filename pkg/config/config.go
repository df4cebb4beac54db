package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
	"k8s.io/client-go/util/homedir"
)

const (
	DefaultBackendURL = "http://127.0.0.1:8000"
	DefaultReportName = "final_diagnostic_report.pdf"
	DefaultLogLevel   = "warn"
	DefaultLogFormat  = "console"
)

// Environment variables that override file settings.
const (
	EnvBackendURL = "DIAG_BACKEND_URL"
	EnvTimeout    = "DIAG_TIMEOUT"
	EnvReportName = "DIAG_REPORT_NAME"
	EnvLogLevel   = "DIAG_LOG_LEVEL"
	EnvLogFormat  = "DIAG_LOG_FORMAT"
)

// Config holds client settings.
type Config struct {
	BackendURL string        `yaml:"backend_url"`
	Timeout    time.Duration `yaml:"timeout"`
	ReportName string        `yaml:"report_name"`
	LogLevel   string        `yaml:"log_level"`
	LogFormat  string        `yaml:"log_format"`
}

// Default returns the built-in settings. A zero Timeout keeps the transport default.
func Default() Config {
	return Config{
		BackendURL: DefaultBackendURL,
		ReportName: DefaultReportName,
		LogLevel:   DefaultLogLevel,
		LogFormat:  DefaultLogFormat,
	}
}

// DefaultPath is ~/.diag-analyzer/config.yaml, or "" when there is no home directory.
func DefaultPath() string {
	home := homedir.HomeDir()
	if home == "" {
		return ""
	}
	return filepath.Join(home, ".diag-analyzer", "config.yaml")
}

// Load layers defaults, the YAML file at path, a .env file in the working
// directory and the environment, in that order. A missing file at the
// default path or a missing .env is not an error.
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			if explicit || !errors.Is(err, os.ErrNotExist) {
				return Config{}, err
			}
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) loadFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv(EnvBackendURL); v != "" {
		c.BackendURL = v
	}
	if v := os.Getenv(EnvTimeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvTimeout, err)
		}
		c.Timeout = d
	}
	if v := os.Getenv(EnvReportName); v != "" {
		c.ReportName = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv(EnvLogFormat); v != "" {
		c.LogFormat = v
	}
	return nil
}

// Validate checks the settings are usable.
func (c Config) Validate() error {
	u, err := url.Parse(c.BackendURL)
	if err != nil {
		return fmt.Errorf("invalid backend_url %q: %w", c.BackendURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid backend_url %q: scheme must be http or https", c.BackendURL)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid backend_url %q: missing host", c.BackendURL)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("invalid timeout %s: must not be negative", c.Timeout)
	}
	if strings.TrimSpace(c.ReportName) == "" || strings.ContainsRune(c.ReportName, os.PathSeparator) {
		return fmt.Errorf("invalid report_name %q", c.ReportName)
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log_level: %w", err)
	}
	switch c.LogFormat {
	case "console", "json":
	default:
		return fmt.Errorf("invalid log_format %q (supported: console, json)", c.LogFormat)
	}
	return nil
}
