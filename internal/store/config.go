package store

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

const configFileName = "config.yaml"

type Config struct {
	// Server is the base URL of the journal API.
	Server string `mapstructure:"server"`
	Token  string `mapstructure:"token"`
	// Timezone is sent with every date-windowed query. Empty means the local zone.
	Timezone          string `mapstructure:"timezone"`
	CompletedPageSize int    `mapstructure:"completedPageSize"`
	// Dir holds the session cache. Empty means the config dir.
	Dir string `mapstructure:"dir"`
	// Redis, when set, keeps the session in Redis instead of the local SQLite file.
	Redis string `mapstructure:"redis"`
}

func ConfigDir() (string, error) {
	// Keeps tests from touching ~/.bulletjournal.
	if v := strings.TrimSpace(os.Getenv("BULLETJOURNAL_CONFIG_DIR")); v != "" {
		return v, nil
	}
	home, err := homedir.Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".bulletjournal"), nil
}

func ConfigPath() (string, error) {
	if v := strings.TrimSpace(os.Getenv("BULLETJOURNAL_CONFIG")); v != "" {
		return v, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFileName), nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetDefault("server", "http://localhost:8080")
	v.SetDefault("token", "")
	v.SetDefault("timezone", "")
	v.SetDefault("completedPageSize", 50)
	v.SetDefault("dir", "")
	v.SetDefault("redis", "")
	v.SetConfigType("yaml")
	v.SetEnvPrefix("BULLETJOURNAL")
	v.AutomaticEnv()
	return v
}

// LoadConfig reads the config file (missing is fine) with BULLETJOURNAL_* environment overrides.
func LoadConfig() (Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return Config{}, err
	}
	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return Config{}, err
		}
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	cfg.Server = strings.TrimRight(strings.TrimSpace(cfg.Server), "/")
	if cfg.CompletedPageSize <= 0 {
		cfg.CompletedPageSize = 50
	}
	if strings.TrimSpace(cfg.Dir) == "" {
		dir, err := ConfigDir()
		if err != nil {
			return Config{}, err
		}
		cfg.Dir = dir
	}
	if cfg.Dir, err = homedir.Expand(cfg.Dir); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// SaveConfig writes cfg to the config file.
func SaveConfig(cfg Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	v := viper.New()
	v.SetConfigType("yaml")
	v.Set("server", cfg.Server)
	v.Set("token", cfg.Token)
	v.Set("timezone", cfg.Timezone)
	v.Set("completedPageSize", cfg.CompletedPageSize)
	if cfg.Dir != "" {
		v.Set("dir", cfg.Dir)
	}
	if cfg.Redis != "" {
		v.Set("redis", cfg.Redis)
	}
	return v.WriteConfigAs(path)
}
