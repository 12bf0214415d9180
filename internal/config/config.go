package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/inkforge/inkforge/internal/jobs"
)

// Config is the full service configuration.
type Config struct {
	Server     ServerConfig    `mapstructure:"server" yaml:"server"`
	Pipeline   PipelineConfig  `mapstructure:"pipeline" yaml:"pipeline"`
	RateLimit  RateLimitConfig `mapstructure:"rate_limit" yaml:"rate_limit"`
	Store      StoreConfig     `mapstructure:"store" yaml:"store"`
	Submission jobs.Limits     `mapstructure:"submission" yaml:"submission"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port string `mapstructure:"port" yaml:"port"`
}

// PipelineConfig holds settings for the upstream generation pipeline.
// Secret supports ${ENV_VAR} references resolved at use time.
type PipelineConfig struct {
	BaseURL        string `mapstructure:"base_url" yaml:"base_url"`
	Secret         string `mapstructure:"secret" yaml:"secret"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
}

// Timeout returns the pipeline request timeout.
func (p PipelineConfig) Timeout() time.Duration {
	return time.Duration(p.TimeoutSeconds) * time.Second
}

// ResolveSecret expands any ${ENV_VAR} reference in the shared secret.
func (p PipelineConfig) ResolveSecret() string {
	return ResolveEnvVars(p.Secret)
}

// RateLimitConfig holds submission admission settings. Backend "memory" is
// per-instance; "redis" shares one budget across instances.
type RateLimitConfig struct {
	Limit         int    `mapstructure:"limit" yaml:"limit"`
	WindowSeconds int    `mapstructure:"window_seconds" yaml:"window_seconds"`
	Backend       string `mapstructure:"backend" yaml:"backend"`
	RedisURL      string `mapstructure:"redis_url" yaml:"redis_url"`
}

// Window returns the rate-limit window duration.
func (r RateLimitConfig) Window() time.Duration {
	return time.Duration(r.WindowSeconds) * time.Second
}

// StoreConfig selects the job record store. Backend "memory" loses records
// on restart and is for development only; "postgres" is the durable option.
type StoreConfig struct {
	Backend     string `mapstructure:"backend" yaml:"backend"`
	PostgresURL string `mapstructure:"postgres_url" yaml:"postgres_url"`
}

// Manager handles loading and hot-reloading configuration.
type Manager struct {
	mu        sync.RWMutex
	config    *Config
	callbacks []func(*Config)
}

// NewManager creates a new config manager and loads initial config.
func NewManager(cfgFile string) (*Manager, error) {
	cm := &Manager{
		callbacks: make([]func(*Config), 0),
	}

	if err := cm.initViper(cfgFile); err != nil {
		return nil, err
	}

	cfg, err := cm.load()
	if err != nil {
		return nil, err
	}
	cm.config = cfg

	return cm, nil
}

// initViper sets up viper with defaults and config file.
func (cm *Manager) initViper(cfgFile string) error {
	defaults := DefaultConfig()
	viper.SetDefault("server", defaults.Server)
	viper.SetDefault("pipeline", defaults.Pipeline)
	viper.SetDefault("rate_limit", defaults.RateLimit)
	viper.SetDefault("store", defaults.Store)
	viper.SetDefault("submission", defaults.Submission)

	// Environment variables with INKFORGE_ prefix
	viper.SetEnvPrefix("INKFORGE")
	viper.AutomaticEnv()

	// Config file
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.inkforge")
	}

	// Try to read config file (not required)
	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	return nil
}

// load parses the current viper state into a Config struct.
func (cm *Manager) load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Get returns the current configuration (thread-safe).
func (cm *Manager) Get() *Config {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.config
}

// OnChange registers a callback for config changes.
func (cm *Manager) OnChange(fn func(*Config)) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.callbacks = append(cm.callbacks, fn)
}

// WatchConfig enables hot-reloading of configuration.
func (cm *Manager) WatchConfig() {
	viper.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := cm.load()
		if err != nil {
			return
		}

		cm.mu.Lock()
		cm.config = cfg
		callbacks := make([]func(*Config), len(cm.callbacks))
		copy(callbacks, cm.callbacks)
		cm.mu.Unlock()

		for _, fn := range callbacks {
			fn(cfg)
		}
	})
	viper.WatchConfig()
}

// ResolveEnvVars expands ${ENV_VAR} references in a string.
func ResolveEnvVars(value string) string {
	if value == "" {
		return value
	}
	pattern := regexp.MustCompile(`\$\{([^}]+)\}`)
	return pattern.ReplaceAllStringFunc(value, func(match string) string {
		varName := match[2 : len(match)-1]
		return os.Getenv(varName)
	})
}

// WriteDefault writes the default configuration to the specified path.
func WriteDefault(path string) error {
	cfg := DefaultConfig()
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# Inkforge configuration
# The pipeline secret uses ${ENV_VAR} syntax to reference environment variables
# Set it in your shell: export INKFORGE_PIPELINE_SECRET=xxx

`)
	return os.WriteFile(path, append(header, data...), 0o644)
}
