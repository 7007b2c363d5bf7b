package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/vixbridge/internal/domain/vix"
)

// Config holds the vixbridge configuration.
type Config struct {
	Logging   LoggingConfig   `yaml:"logging"`
	Host      string          `yaml:"host"` // field.host override (default: machine host name)
	Metrics   MetricsConfig   `yaml:"metrics"`
	Providers ProvidersConfig `yaml:"providers"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// MetricsConfig holds Pushgateway export settings. Export is off when
// PushgatewayURL is empty.
type MetricsConfig struct {
	PushgatewayURL string `yaml:"pushgateway_url"`
	Job            string `yaml:"job"`
	PushTimeoutSec int    `yaml:"push_timeout_sec"`
}

// ProvidersConfig holds connection defaults per provider name. Keys match the
// family-stripped request properties, which override them.
type ProvidersConfig map[string]map[string]any

// Defaults returns the configured defaults of provider name as properties.
// Null values (an unset ${VAR}) are omitted.
func (p ProvidersConfig) Defaults(name string) (vix.Properties, error) {
	values := p[name]
	props := make(vix.Properties, len(values))
	for k, v := range values {
		if v == nil {
			continue
		}
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("providers.%s.%s: %w", name, k, err)
		}
		props[k] = raw
	}
	return props, nil
}

// Load reads configuration for an environment name (local, dev, prod). A
// missing file is not an error: the bridge is launched from arbitrary working
// directories, so defaults apply.
func Load(env string) (Config, error) {
	path := findConfigPath(env)
	cfg, err := LoadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		cfg = Config{}
		cfg.ApplyDefaults()
		return cfg, nil
	}
	return cfg, err
}

// LoadFile reads configuration from an explicit path.
func LoadFile(path string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.Metrics.Job == "" {
		c.Metrics.Job = "vixbridge"
	}
	if c.Metrics.PushTimeoutSec <= 0 {
		c.Metrics.PushTimeoutSec = 5
	}
	if c.Providers == nil {
		c.Providers = ProvidersConfig{}
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Logging.Level) {
	case "", "debug", "info", "warn", "error":
		// ok
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level)
	}
	if c.Metrics.PushgatewayURL != "" {
		u, err := url.Parse(c.Metrics.PushgatewayURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("metrics.pushgateway_url must be an http(s) URL, got %q", c.Metrics.PushgatewayURL)
		}
	}
	names := make([]string, 0, len(c.Providers))
	for name := range c.Providers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if _, err := c.Providers.Defaults(name); err != nil {
			return err
		}
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check next to the executable
	if exe, err := os.Executable(); err == nil {
		if path := filepath.Join(filepath.Dir(exe), "config", filename); fileExists(path) {
			return path
		}
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
