package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/giantswarm/microerror"
	"gopkg.in/yaml.v3"
)

// Config represents the hitmatch configuration
type Config struct {
	DefaultEnvironment string                    `yaml:"defaultEnvironment,omitempty" json:"defaultEnvironment,omitempty"`
	BaseURL            string                    `yaml:"baseUrl,omitempty" json:"baseUrl,omitempty"`
	Timeout            int                       `yaml:"timeout,omitempty" json:"timeout,omitempty"` // milliseconds
	FollowRedirects    *bool                     `yaml:"followRedirects,omitempty" json:"followRedirects,omitempty"`
	MaxRedirects       int                       `yaml:"maxRedirects,omitempty" json:"maxRedirects,omitempty"`
	ValidateSSL        *bool                     `yaml:"validateSSL,omitempty" json:"validateSSL,omitempty"`
	Proxy              string                    `yaml:"proxy,omitempty" json:"proxy,omitempty"`
	MaxBodySize        int64                     `yaml:"maxBodySize,omitempty" json:"maxBodySize,omitempty"`
	Headers            map[string]string         `yaml:"headers,omitempty" json:"headers,omitempty"` // Default headers for all requests
	IgnoreArrayOrder   *bool                     `yaml:"ignoreArrayOrder,omitempty" json:"ignoreArrayOrder,omitempty"`
	FailOnStatus       *bool                     `yaml:"failOnStatus,omitempty" json:"failOnStatus,omitempty"`
	Reporters          []string                  `yaml:"reporters,omitempty" json:"reporters,omitempty"`
	OutputDir          string                    `yaml:"outputDir,omitempty" json:"outputDir,omitempty"`
	Parallel           *bool                     `yaml:"parallel,omitempty" json:"parallel,omitempty"`
	Concurrency        int                       `yaml:"concurrency,omitempty" json:"concurrency,omitempty"`
	Rate               float64                   `yaml:"rate,omitempty" json:"rate,omitempty"` // requests per second, 0 is unlimited
	Bail               *bool                     `yaml:"bail,omitempty" json:"bail,omitempty"`
	Verbose            *bool                     `yaml:"verbose,omitempty" json:"verbose,omitempty"`
	NoColor            *bool                     `yaml:"noColor,omitempty" json:"noColor,omitempty"`
	History            string                    `yaml:"history,omitempty" json:"history,omitempty"` // sqlite file, empty disables
	Environments       map[string]map[string]any `yaml:"environments,omitempty" json:"environments,omitempty"`
}

// BoolPtr returns a pointer to b, for setting tri-state fields.
func BoolPtr(b bool) *bool {
	return &b
}

// getBool returns the value of a bool pointer, or the default if nil
func getBool(b *bool, defaultVal bool) bool {
	if b == nil {
		return defaultVal
	}
	return *b
}

// GetFollowRedirects returns the follow redirects setting, defaulting to true
func (c *Config) GetFollowRedirects() bool {
	return getBool(c.FollowRedirects, true)
}

// GetValidateSSL returns the validate SSL setting, defaulting to true
func (c *Config) GetValidateSSL() bool {
	return getBool(c.ValidateSSL, true)
}

// GetIgnoreArrayOrder returns the body comparison mode, defaulting to true
func (c *Config) GetIgnoreArrayOrder() bool {
	return getBool(c.IgnoreArrayOrder, true)
}

// GetFailOnStatus reports whether a wrong status skips header and body
// checks, defaulting to true
func (c *Config) GetFailOnStatus() bool {
	return getBool(c.FailOnStatus, true)
}

// GetParallel returns the parallel setting, defaulting to false
func (c *Config) GetParallel() bool {
	return getBool(c.Parallel, false)
}

// GetBail returns the bail setting, defaulting to false
func (c *Config) GetBail() bool {
	return getBool(c.Bail, false)
}

// GetVerbose returns the verbose setting, defaulting to false
func (c *Config) GetVerbose() bool {
	return getBool(c.Verbose, false)
}

// GetNoColor returns the no color setting, defaulting to false
func (c *Config) GetNoColor() bool {
	return getBool(c.NoColor, false)
}

// TimeoutDuration converts Timeout to a duration.
func (c *Config) TimeoutDuration() time.Duration {
	return time.Duration(c.Timeout) * time.Millisecond
}

// ConfigFilenames contains the possible config file names, in search order
var ConfigFilenames = []string{
	".hitmatch.yaml",
	".hitmatch.yml",
	"hitmatch.config.json",
}

// LoadConfig loads configuration from the specified path or searches for config files
func LoadConfig(path string) (*Config, error) {
	if path != "" {
		return loadConfigFromFile(path)
	}

	return FindAndLoadConfig(".")
}

// FindAndLoadConfig searches for a config file in the given directory
func FindAndLoadConfig(dir string) (*Config, error) {
	for _, filename := range ConfigFilenames {
		configPath := filepath.Join(dir, filename)
		if _, err := os.Stat(configPath); err == nil {
			return loadConfigFromFile(configPath)
		}
	}

	return DefaultConfig(), nil
}

// loadConfigFromFile reads YAML or JSON; JSON is parsed as YAML.
func loadConfigFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, microerror.Maskf(invalidConfigFileError, "%s: %s", path, err.Error())
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, microerror.Maskf(invalidConfigFileError, "%s: %s", path, err.Error())
	}

	return config, nil
}

// Merge merges another config into this one, with other taking precedence
func (c *Config) Merge(other *Config) *Config {
	if other == nil {
		return c
	}

	result := *c

	if other.DefaultEnvironment != "" {
		result.DefaultEnvironment = other.DefaultEnvironment
	}
	if other.BaseURL != "" {
		result.BaseURL = other.BaseURL
	}
	if other.Timeout > 0 {
		result.Timeout = other.Timeout
	}
	if other.MaxRedirects > 0 {
		result.MaxRedirects = other.MaxRedirects
	}
	if other.Proxy != "" {
		result.Proxy = other.Proxy
	}
	if other.MaxBodySize > 0 {
		result.MaxBodySize = other.MaxBodySize
	}
	if other.OutputDir != "" {
		result.OutputDir = other.OutputDir
	}
	if other.Concurrency > 0 {
		result.Concurrency = other.Concurrency
	}
	if other.Rate > 0 {
		result.Rate = other.Rate
	}
	if other.History != "" {
		result.History = other.History
	}

	// Boolean flags - only override if explicitly set in other config
	if other.FollowRedirects != nil {
		result.FollowRedirects = other.FollowRedirects
	}
	if other.ValidateSSL != nil {
		result.ValidateSSL = other.ValidateSSL
	}
	if other.IgnoreArrayOrder != nil {
		result.IgnoreArrayOrder = other.IgnoreArrayOrder
	}
	if other.FailOnStatus != nil {
		result.FailOnStatus = other.FailOnStatus
	}
	if other.Parallel != nil {
		result.Parallel = other.Parallel
	}
	if other.Bail != nil {
		result.Bail = other.Bail
	}
	if other.Verbose != nil {
		result.Verbose = other.Verbose
	}
	if other.NoColor != nil {
		result.NoColor = other.NoColor
	}

	if len(other.Headers) > 0 {
		headers := make(map[string]string, len(result.Headers)+len(other.Headers))
		for k, v := range result.Headers {
			headers[k] = v
		}
		for k, v := range other.Headers {
			headers[k] = v
		}
		result.Headers = headers
	}

	if len(other.Reporters) > 0 {
		result.Reporters = other.Reporters
	}

	if len(other.Environments) > 0 {
		envs := make(map[string]map[string]any, len(result.Environments)+len(other.Environments))
		for k, v := range result.Environments {
			envs[k] = v
		}
		for k, v := range other.Environments {
			envs[k] = v
		}
		result.Environments = envs
	}

	return &result
}

// SaveConfig writes the configuration as YAML.
func (c *Config) SaveConfig(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return microerror.Mask(err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return microerror.Mask(err)
	}
	return nil
}
