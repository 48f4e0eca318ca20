package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

const (
	envPrefix = "MALL"
	envName   = "MALL_ENV"
)

// Loader owns a viper instance and the most recently loaded config
type Loader struct {
	v    *viper.Viper
	path string

	mu  sync.RWMutex
	cfg *Config
}

// NewLoader creates a loader for the given file; an empty path searches the default locations
func NewLoader(configPath string) *Loader {
	v := viper.New()
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath("../configs")
		v.AddConfigPath("/etc/mall")
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvs(v, reflect.TypeOf(Config{}), "")

	return &Loader{v: v, path: configPath}
}

// Load reads the base file, overlays config.<env>.yaml and env vars, then defaults and validates
func (l *Loader) Load() (*Config, error) {
	if err := l.v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if used := l.v.ConfigFileUsed(); used != "" {
		envFile := filepath.Join(filepath.Dir(used), fmt.Sprintf("config.%s.yaml", Env()))
		if _, err := os.Stat(envFile); err == nil {
			l.v.SetConfigFile(envFile)
			if err := l.v.MergeInConfig(); err != nil {
				return nil, fmt.Errorf("failed to merge %s: %w", envFile, err)
			}
			l.v.SetConfigFile(used)
		}
	}

	cfg := &Config{}
	if err := l.v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	l.mu.Lock()
	l.cfg = cfg
	l.mu.Unlock()
	return cfg, nil
}

// Config returns the last successfully loaded config
func (l *Loader) Config() *Config {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cfg
}

// Watch reloads on file change. A reload that fails validation keeps the previous config.
func (l *Loader) Watch(onChange func(*Config), onError func(error)) {
	l.v.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := l.Load()
		if err != nil {
			if onError != nil {
				onError(fmt.Errorf("reload %s: %w", e.Name, err))
			}
			return
		}
		if onChange != nil {
			onChange(cfg)
		}
	})
	l.v.WatchConfig()
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig(configPath string) (*Config, error) {
	return NewLoader(configPath).Load()
}

// Env returns the deployment environment name
func Env() string {
	if env := os.Getenv(envName); env != "" {
		return env
	}
	return "dev"
}

// IsProduction returns true if running in production mode
func IsProduction() bool {
	env := Env()
	return env == "prod" || env == "production"
}

// bindEnvs registers every mapstructure key so AutomaticEnv also covers keys absent from the file
func bindEnvs(v *viper.Viper, t reflect.Type, prefix string) {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		tag := f.Tag.Get("mapstructure")
		if tag == "" || tag == "-" {
			continue
		}
		key := tag
		if prefix != "" {
			key = prefix + "." + tag
		}
		if f.Type.Kind() == reflect.Struct {
			bindEnvs(v, f.Type, key)
			continue
		}
		_ = v.BindEnv(key)
	}
}
