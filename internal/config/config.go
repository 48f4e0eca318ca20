package config

import (
	"fmt"
	"time"
)

// Config represents the global configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Log       LogConfig       `mapstructure:"log"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Security  SecurityConfig  `mapstructure:"security"`
	Promotion PromotionConfig `mapstructure:"promotion"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Mode         string        `mapstructure:"mode"` // debug, release, test
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	MaxHeaderMB  int           `mapstructure:"max_header_mb"`
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // mysql, sqlite
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	Charset         string        `mapstructure:"charset"`
	ParseTime       bool          `mapstructure:"parse_time"`
	Loc             string        `mapstructure:"loc"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	LogLevel        string        `mapstructure:"log_level"` // silent, error, warn, info
	SlowThreshold   time.Duration `mapstructure:"slow_threshold"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// RedisConfig represents Redis configuration
type RedisConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	MaxRetries   int           `mapstructure:"max_retries"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	PoolTimeout  time.Duration `mapstructure:"pool_timeout"`
}

// LogConfig represents logging configuration
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	Filename   string `mapstructure:"filename"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxAge     int    `mapstructure:"max_age"`
	MaxBackups int    `mapstructure:"max_backups"`
	Compress   bool   `mapstructure:"compress"`
}

// MetricsConfig represents metrics configuration
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Path      string `mapstructure:"path"`
	Namespace string `mapstructure:"namespace"`
}

// TracingConfig represents tracing configuration
type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	ServiceName string  `mapstructure:"service_name"`
	Endpoint    string  `mapstructure:"endpoint"`
	SampleRate  float64 `mapstructure:"sample_rate"`
}

// LimitRule a single rate limit rule
type LimitRule struct {
	RPS    int           `mapstructure:"rps"`
	Burst  int           `mapstructure:"burst"`
	TTL    time.Duration `mapstructure:"ttl"`
	Window time.Duration `mapstructure:"window"`
}

// RateLimitConfig represents rate limiting configuration
type RateLimitConfig struct {
	Enabled bool      `mapstructure:"enabled"`
	PerUser LimitRule `mapstructure:"per_user"`
	PerIP   LimitRule `mapstructure:"per_ip"`
	// Callback guards the payment callback endpoint
	Callback LimitRule `mapstructure:"callback"`
}

// CacheConfig represents cache configuration
type CacheConfig struct {
	Local struct {
		Enabled         bool          `mapstructure:"enabled"`
		Shards          int           `mapstructure:"shards"`
		TTL             time.Duration `mapstructure:"ttl"`
		CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
		MaxSizeMB       int           `mapstructure:"max_size_mb"`
	} `mapstructure:"local"`
	Redis struct {
		Enabled    bool          `mapstructure:"enabled"`
		KeyPrefix  string        `mapstructure:"key_prefix"`
		DefaultTTL time.Duration `mapstructure:"default_ttl"`
	} `mapstructure:"redis"`
	Breaker struct {
		FailureThreshold uint32        `mapstructure:"failure_threshold"`
		OpenTimeout      time.Duration `mapstructure:"open_timeout"`
	} `mapstructure:"breaker"`
}

// SecurityConfig represents security configuration
type SecurityConfig struct {
	JWT struct {
		Secret string        `mapstructure:"secret"`
		Expire time.Duration `mapstructure:"expire"`
		Issuer string        `mapstructure:"issuer"`
	} `mapstructure:"jwt"`
	CORS struct {
		Enabled          bool     `mapstructure:"enabled"`
		AllowOrigins     []string `mapstructure:"allow_origins"`
		AllowMethods     []string `mapstructure:"allow_methods"`
		AllowHeaders     []string `mapstructure:"allow_headers"`
		ExposeHeaders    []string `mapstructure:"expose_headers"`
		AllowCredentials bool     `mapstructure:"allow_credentials"`
		MaxAge           int      `mapstructure:"max_age"`
	} `mapstructure:"cors"`
}

// PromotionConfig promotion engine settings
type PromotionConfig struct {
	// Timezone wall clock used for flash-sale slot hours
	Timezone          string        `mapstructure:"timezone"`
	TeamWindow        time.Duration `mapstructure:"team_window"`
	BargainMinCut     int64         `mapstructure:"bargain_min_cut"` // cents
	SweepInterval     time.Duration `mapstructure:"sweep_interval"`
	SweepLockTTL      time.Duration `mapstructure:"sweep_lock_ttl"`
	SweepEnabled      bool          `mapstructure:"sweep_enabled"`
	EventBufferSize   int           `mapstructure:"event_buffer_size"`
	EventPublishAfter time.Duration `mapstructure:"event_publish_timeout"`
}

// Location returns the configured slot timezone, falling back to local time
func (p *PromotionConfig) Location() *time.Location {
	if p.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// GetAddr returns the server address
func (s *ServerConfig) GetAddr() string {
	host := s.Host
	if host == "" {
		host = "0.0.0.0"
	}
	port := s.Port
	if port == 0 {
		port = 8080
	}
	return fmt.Sprintf("%s:%d", host, port)
}

// GetDSN returns the database DSN
func (d *DatabaseConfig) GetDSN() string {
	if d.Driver == "sqlite" {
		return d.DBName
	}
	charset := d.Charset
	if charset == "" {
		charset = "utf8mb4"
	}
	loc := d.Loc
	if loc == "" {
		loc = "Local"
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=%t&loc=%s",
		d.Username, d.Password, d.Host, d.Port, d.DBName, charset, d.ParseTime, loc)
}

// GetAddr returns the Redis address
func (r *RedisConfig) GetAddr() string {
	host := r.Host
	if host == "" {
		host = "localhost"
	}
	port := r.Port
	if port == 0 {
		port = 6379
	}
	return fmt.Sprintf("%s:%d", host, port)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	switch c.Database.Driver {
	case "mysql":
		if c.Database.Host == "" {
			return fmt.Errorf("database host is required")
		}
		if c.Database.Username == "" {
			return fmt.Errorf("database username is required")
		}
	case "sqlite":
	default:
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}

	if c.Database.DBName == "" {
		return fmt.Errorf("database name is required")
	}

	if c.Redis.Enabled && c.Redis.Host == "" {
		return fmt.Errorf("redis host is required")
	}

	if c.Security.JWT.Secret == "" {
		return fmt.Errorf("JWT secret is required")
	}

	if c.Promotion.Timezone != "" {
		if _, err := time.LoadLocation(c.Promotion.Timezone); err != nil {
			return fmt.Errorf("invalid promotion timezone %q: %w", c.Promotion.Timezone, err)
		}
	}
	if c.Promotion.BargainMinCut <= 0 {
		return fmt.Errorf("bargain minimum cut must be positive")
	}
	if c.Promotion.SweepLockTTL < c.Promotion.SweepInterval/2 {
		return fmt.Errorf("sweep lock ttl %s too short for interval %s",
			c.Promotion.SweepLockTTL, c.Promotion.SweepInterval)
	}

	return nil
}

// SetDefaults sets default values for configuration
func (c *Config) SetDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "localhost"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.Mode == "" {
		c.Server.Mode = "debug"
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 30 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 30 * time.Second
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = 60 * time.Second
	}
	if c.Server.MaxHeaderMB == 0 {
		c.Server.MaxHeaderMB = 1
	}

	if c.Database.Driver == "" {
		c.Database.Driver = "mysql"
	}
	if c.Database.Driver == "mysql" {
		if c.Database.Host == "" {
			c.Database.Host = "localhost"
		}
		if c.Database.Port == 0 {
			c.Database.Port = 3306
		}
		if c.Database.Charset == "" {
			c.Database.Charset = "utf8mb4"
		}
		if c.Database.Loc == "" {
			c.Database.Loc = "Local"
		}
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 100
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = 10
	}
	if c.Database.ConnMaxLifetime == 0 {
		c.Database.ConnMaxLifetime = time.Hour
	}
	if c.Database.ConnMaxIdleTime == 0 {
		c.Database.ConnMaxIdleTime = 10 * time.Minute
	}
	if c.Database.LogLevel == "" {
		c.Database.LogLevel = "warn"
	}
	if c.Database.SlowThreshold == 0 {
		c.Database.SlowThreshold = 200 * time.Millisecond
	}

	if c.Redis.Host == "" {
		c.Redis.Host = "localhost"
	}
	if c.Redis.Port == 0 {
		c.Redis.Port = 6379
	}
	if c.Redis.PoolSize == 0 {
		c.Redis.PoolSize = 100
	}
	if c.Redis.MinIdleConns == 0 {
		c.Redis.MinIdleConns = 10
	}
	if c.Redis.MaxRetries == 0 {
		c.Redis.MaxRetries = 3
	}
	if c.Redis.DialTimeout == 0 {
		c.Redis.DialTimeout = 5 * time.Second
	}
	if c.Redis.ReadTimeout == 0 {
		c.Redis.ReadTimeout = 3 * time.Second
	}
	if c.Redis.WriteTimeout == 0 {
		c.Redis.WriteTimeout = 3 * time.Second
	}
	if c.Redis.PoolTimeout == 0 {
		c.Redis.PoolTimeout = 4 * time.Second
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Log.Output == "" {
		c.Log.Output = "stdout"
	}

	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = "mall"
	}
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = "mall-api"
	}
	if c.Tracing.SampleRate == 0 {
		c.Tracing.SampleRate = 0.1
	}

	setRuleDefaults(&c.RateLimit.PerUser, 20, 40)
	setRuleDefaults(&c.RateLimit.PerIP, 50, 100)
	setRuleDefaults(&c.RateLimit.Callback, 200, 400)

	if c.Cache.Local.Shards == 0 {
		c.Cache.Local.Shards = 64
	}
	if c.Cache.Local.TTL == 0 {
		c.Cache.Local.TTL = time.Minute
	}
	if c.Cache.Local.CleanupInterval == 0 {
		c.Cache.Local.CleanupInterval = 5 * time.Minute
	}
	if c.Cache.Local.MaxSizeMB == 0 {
		c.Cache.Local.MaxSizeMB = 64
	}
	if c.Cache.Redis.KeyPrefix == "" {
		c.Cache.Redis.KeyPrefix = "mall:cache:"
	}
	if c.Cache.Redis.DefaultTTL == 0 {
		c.Cache.Redis.DefaultTTL = 10 * time.Minute
	}
	if c.Cache.Breaker.FailureThreshold == 0 {
		c.Cache.Breaker.FailureThreshold = 5
	}
	if c.Cache.Breaker.OpenTimeout == 0 {
		c.Cache.Breaker.OpenTimeout = 30 * time.Second
	}

	if c.Security.JWT.Expire == 0 {
		c.Security.JWT.Expire = 2 * time.Hour
	}
	if c.Security.JWT.Issuer == "" {
		c.Security.JWT.Issuer = "mall"
	}

	if c.Promotion.TeamWindow == 0 {
		c.Promotion.TeamWindow = 24 * time.Hour
	}
	if c.Promotion.BargainMinCut == 0 {
		c.Promotion.BargainMinCut = 1
	}
	if c.Promotion.SweepInterval == 0 {
		c.Promotion.SweepInterval = time.Minute
	}
	if c.Promotion.SweepLockTTL == 0 {
		c.Promotion.SweepLockTTL = c.Promotion.SweepInterval
	}
	if c.Promotion.EventBufferSize == 0 {
		c.Promotion.EventBufferSize = 1024
	}
	if c.Promotion.EventPublishAfter == 0 {
		c.Promotion.EventPublishAfter = time.Second
	}
}

func setRuleDefaults(r *LimitRule, rps, burst int) {
	if r.RPS == 0 {
		r.RPS = rps
	}
	if r.Burst == 0 {
		r.Burst = burst
	}
	if r.TTL == 0 {
		r.TTL = 10 * time.Minute
	}
	if r.Window == 0 {
		r.Window = time.Second
	}
}
