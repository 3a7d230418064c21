package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/apex/log"
	"gopkg.in/yaml.v3"
)

// Config represents the global configuration for the walkthrough
type Config struct {
	Walkthrough WalkthroughConfig `yaml:"walkthrough" json:"walkthrough"`
	Logs        LogConfig         `yaml:"logs" json:"logs"`
}

type LogConfig struct {
	Level string `yaml:"level" json:"level"`
	Color bool   `yaml:"color" json:"color"`
}

// WalkthroughConfig describes the service under test and the test account
type WalkthroughConfig struct {
	BaseURL          string `yaml:"base_url" json:"base_url"`
	Email            string `yaml:"email" json:"email"`
	Password         string `yaml:"password" json:"password"`
	Goal             string `yaml:"goal" json:"goal"`
	Timeout          string `yaml:"timeout" json:"timeout"`
	UserAgent        string `yaml:"user_agent" json:"user_agent"`
	FailOnLoginError bool   `yaml:"fail_on_login_error" json:"fail_on_login_error"`
}

const (
	DefaultBaseURL   = "http://localhost:8080"
	DefaultEmail     = "testuser@example.com"
	DefaultPassword  = "TestPassword123!"
	DefaultGoal      = "Marathon"
	DefaultTimeout   = "5s"
	DefaultUserAgent = "mycyclecoach-walkthrough/1.0"
)

// Global configuration instance
var globalConfig *Config

// Default returns the configuration used when no file or environment
// overrides are present.
func Default() *Config {
	return &Config{
		Walkthrough: WalkthroughConfig{
			BaseURL:   DefaultBaseURL,
			Email:     DefaultEmail,
			Password:  DefaultPassword,
			Goal:      DefaultGoal,
			Timeout:   DefaultTimeout,
			UserAgent: DefaultUserAgent,
		},
		Logs: LogConfig{
			Level: "info",
			Color: true,
		},
	}
}

// Load loads configuration from file and environment variables
func Load() (*Config, error) {
	environment := os.Getenv("MYCYCLECOACH_ENV")
	if environment == "" {
		environment = "development"
	}

	configPath := fmt.Sprintf("./configs/%s.yaml", environment)

	config := Default()

	// The file is optional; defaults reproduce the fixed test account.
	if fileExists(configPath) {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
		}

		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
		}
	}

	if err := overrideWithEnv(config); err != nil {
		return nil, fmt.Errorf("invalid environment: %w", err)
	}

	if err := validate(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	globalConfig = config
	return config, nil
}

// Get returns the global configuration instance
func Get() *Config {
	if globalConfig == nil {
		panic("configuration not loaded, call Load() first")
	}
	return globalConfig
}

// RequestTimeout returns the parsed per-call timeout.
func (c *WalkthroughConfig) RequestTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil || d <= 0 {
		d, _ = time.ParseDuration(DefaultTimeout)
	}
	return d
}

// overrideWithEnv overrides configuration with environment variables
func overrideWithEnv(config *Config) error {
	if val := os.Getenv("MYCYCLECOACH_BASE_URL"); val != "" {
		config.Walkthrough.BaseURL = val
	}
	if val := os.Getenv("MYCYCLECOACH_EMAIL"); val != "" {
		config.Walkthrough.Email = val
	}
	if val := os.Getenv("MYCYCLECOACH_PASSWORD"); val != "" {
		config.Walkthrough.Password = val
	}
	if val := os.Getenv("MYCYCLECOACH_GOAL"); val != "" {
		config.Walkthrough.Goal = val
	}
	if val := os.Getenv("MYCYCLECOACH_TIMEOUT"); val != "" {
		config.Walkthrough.Timeout = val
	}
	if val := os.Getenv("MYCYCLECOACH_FAIL_ON_LOGIN_ERROR"); val != "" {
		b, err := strconv.ParseBool(val)
		if err != nil {
			return fmt.Errorf("MYCYCLECOACH_FAIL_ON_LOGIN_ERROR must be a boolean, got %q", val)
		}
		config.Walkthrough.FailOnLoginError = b
	}

	if val := os.Getenv("MYCYCLECOACH_LOG_LEVEL"); val != "" {
		config.Logs.Level = val
	}
	if val := os.Getenv("MYCYCLECOACH_LOG_COLOR"); val != "" {
		b, err := strconv.ParseBool(val)
		if err != nil {
			return fmt.Errorf("MYCYCLECOACH_LOG_COLOR must be a boolean, got %q", val)
		}
		config.Logs.Color = b
	}

	return nil
}

// validate validates the configuration
func validate(config *Config) error {
	w := config.Walkthrough

	u, err := url.Parse(w.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid walkthrough.base_url %q: %w", w.BaseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("walkthrough.base_url must use http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("walkthrough.base_url must include a host")
	}

	if w.Email == "" {
		return fmt.Errorf("walkthrough.email cannot be empty")
	}
	if w.Password == "" {
		return fmt.Errorf("walkthrough.password cannot be empty")
	}
	if w.Goal == "" {
		return fmt.Errorf("walkthrough.goal cannot be empty")
	}

	d, err := time.ParseDuration(w.Timeout)
	if err != nil {
		return fmt.Errorf("invalid walkthrough.timeout %q: %w", w.Timeout, err)
	}
	if d <= 0 {
		return fmt.Errorf("walkthrough.timeout must be positive, got %s", d)
	}

	if _, err := log.ParseLevel(config.Logs.Level); err != nil {
		return fmt.Errorf("invalid logs.level %q: %w", config.Logs.Level, err)
	}

	return nil
}

// fileExists checks if a file exists
func fileExists(filename string) bool {
	info, err := os.Stat(filename)
	if os.IsNotExist(err) {
		return false
	}
	return err == nil && !info.IsDir()
}
