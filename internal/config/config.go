// Package config loads client and simulator settings from configs/config.yml
// with HOMESYNC_ environment overrides.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix          = "HOMESYNC"
	defaultConfigDir   = "configs"
	defaultConfigName  = "config"
	defaultBaseURL     = "http://localhost:8080"
	defaultTimeout     = 10 * time.Second
	defaultJournalPath = ":memory:"
	defaultConcurrency = 4
	defaultPort        = "8080"
	defaultTokenTTL    = time.Hour

	PolicyClear   = "clear"
	PolicyRestore = "restore"
)

type Config struct {
	API       APIConfig
	Auth      AuthConfig
	Session   SessionConfig
	Journal   JournalConfig
	Log       LogConfig
	Reconcile ReconcileConfig
	Backend   BackendConfig
}

type APIConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type AuthConfig struct {
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// SessionConfig decides what happens to a previously stored credential at startup.
type SessionConfig struct {
	StartupPolicy string `mapstructure:"startup_policy"` // clear | restore
	Token         string `mapstructure:"token"`
}

type JournalConfig struct {
	Path string `mapstructure:"path"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type ReconcileConfig struct {
	Concurrency int `mapstructure:"concurrency"`
}

// BackendConfig is only read by the simulator.
type BackendConfig struct {
	Port      string            `mapstructure:"port"`
	JWTSecret string            `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration     `mapstructure:"token_ttl"`
	Users     map[string]string `mapstructure:"users"`
}

// Load reads the config file at path. An empty path searches configs/config.yml.
// A missing file is not an error; defaults and environment still apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(defaultConfigDir)
		v.SetConfigName(defaultConfigName)
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || path != "" {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.base_url", defaultBaseURL)
	v.SetDefault("api.timeout", defaultTimeout)
	v.SetDefault("auth.username", "")
	v.SetDefault("auth.password", "")
	v.SetDefault("session.startup_policy", PolicyClear)
	v.SetDefault("session.token", "")
	v.SetDefault("journal.path", defaultJournalPath)
	v.SetDefault("log.level", "info")
	v.SetDefault("reconcile.concurrency", defaultConcurrency)
	v.SetDefault("backend.port", defaultPort)
	v.SetDefault("backend.jwt_secret", "")
	v.SetDefault("backend.token_ttl", defaultTokenTTL)
}

// Validate checks values that would otherwise fail late and obscurely.
func (c *Config) Validate() error {
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid api.base_url %q", c.API.BaseURL)
	}
	if c.API.Timeout <= 0 {
		return fmt.Errorf("api.timeout must be positive, got %s", c.API.Timeout)
	}
	switch c.Session.StartupPolicy {
	case PolicyClear, PolicyRestore:
	default:
		return fmt.Errorf("invalid session.startup_policy %q: must be %q or %q",
			c.Session.StartupPolicy, PolicyClear, PolicyRestore)
	}
	if c.Reconcile.Concurrency < 1 {
		return fmt.Errorf("reconcile.concurrency must be >= 1, got %d", c.Reconcile.Concurrency)
	}
	if c.Backend.TokenTTL <= 0 {
		return fmt.Errorf("backend.token_ttl must be positive, got %s", c.Backend.TokenTTL)
	}
	return nil
}
