package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Log       LogConfig
	HTTP      HTTPConfig
	Monitor   MonitorConfig
	Optimizer OptimizerConfig
	Benchmark BenchmarkConfig
	Telemetry TelemetryConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// DatabaseConfig holds database connection settings. Driver selects the
// backend: "sqlite" uses Path, "postgres" uses the remaining fields.
type DatabaseConfig struct {
	Driver          string
	Path            string // sqlite file path, ":memory:" for ephemeral
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
}

// RedisConfig holds Redis connection settings for the cooldown store
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// JWTConfig holds settings for the optional admin-token auth layer
type JWTConfig struct {
	Enabled               bool
	Secret                string
	AccessTokenExpiration time.Duration
	Issuer                string
	// AdminUsername and AdminPasswordHash (bcrypt) are the single operator
	// credential accepted by the login endpoint
	AdminUsername     string
	AdminPasswordHash string
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int
	MaxBodySize       int64
	RateLimitEnabled  bool
	RateLimitRequests int
	RateLimitWindow   time.Duration
	CORSAllowOrigins  []string
	CORSAllowMethods  []string
	CORSAllowHeaders  []string
	TrustedProxies    []string
}

// MonitorConfig holds metric collection settings
type MonitorConfig struct {
	Enabled            bool
	CollectionInterval time.Duration // how often system metrics are sampled
	WindowCapacity     int           // in-memory sample ring size
	CleanupEnabled     bool
	Retention          time.Duration // persisted sample retention
	CleanupInterval    time.Duration
}

// OptimizerConfig holds issue detection and auto-optimization settings
type OptimizerConfig struct {
	Enabled              bool
	Interval             time.Duration // optimization cycle cadence
	CooldownPeriod       time.Duration // per-action recommendation cooldown
	MaxConcurrent        int           // active optimization ceiling
	MinConfidence        float64       // safety gate confidence floor
	TrendSlopeThreshold  float64       // least-squares slope that counts as growth
	VarianceThreshold    float64       // response-time variance that counts as instability
	DegradationThreshold float64       // normalized worsening that triggers rollback
	MaxSideEffects       int           // side-effect count that triggers rollback
	StabilityErrorRate   float64       // max recent error rate for a stable system
	StabilityWindow      time.Duration // error-rate lookback
	FailureWindow        time.Duration // optimization failure lookback
	MaxRecentFailures    int           // failures tolerated inside FailureWindow
}

// BenchmarkConfig holds benchmark runner settings
type BenchmarkConfig struct {
	TargetBaseURL  string        // where virtual users send requests
	RequestTimeout time.Duration // per-request client timeout
	MaxDuration    time.Duration // upper bound on a single run
	Score          ScoreConfig
}

// ScoreConfig tunes the composite benchmark score
type ScoreConfig struct {
	ResponseTimePenaltyMax float64
	ResponseTimeDivisorMS  float64
	ThroughputBonusMax     float64
	ThroughputDivisorRPS   float64
	ErrorPenaltyMax        float64
	ErrorMultiplier        float64
	ResourcePenaltyMax     float64
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool
	CollectorEndpoint string
	SamplingRatio     float64
	ServiceName       string
	Insecure          bool
	DBTraceEnabled    bool
	DBSlowQueryThresh time.Duration
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with VECTORCRAFT_ prefix (e.g., VECTORCRAFT_DATABASE_PASSWORD)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	v.SetEnvPrefix("VECTORCRAFT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			Driver:          v.GetString("database.driver"),
			Path:            v.GetString("database.path"),
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
		},
		Redis: RedisConfig{
			Enabled:  v.GetBool("redis.enabled"),
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		JWT: JWTConfig{
			Enabled:               v.GetBool("jwt.enabled"),
			Secret:                v.GetString("jwt.secret"),
			AccessTokenExpiration: v.GetDuration("jwt.access_token_expiration"),
			Issuer:                v.GetString("jwt.issuer"),
			AdminUsername:         v.GetString("jwt.admin_username"),
			AdminPasswordHash:     v.GetString("jwt.admin_password_hash"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:       v.GetDuration("http.read_timeout"),
			WriteTimeout:      v.GetDuration("http.write_timeout"),
			IdleTimeout:       v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes:    v.GetInt("http.max_header_bytes"),
			MaxBodySize:       v.GetInt64("http.max_body_size"),
			RateLimitEnabled:  v.GetBool("http.rate_limit_enabled"),
			RateLimitRequests: v.GetInt("http.rate_limit_requests"),
			RateLimitWindow:   v.GetDuration("http.rate_limit_window"),
			CORSAllowOrigins:  v.GetStringSlice("http.cors_allow_origins"),
			CORSAllowMethods:  v.GetStringSlice("http.cors_allow_methods"),
			CORSAllowHeaders:  v.GetStringSlice("http.cors_allow_headers"),
			TrustedProxies:    v.GetStringSlice("http.trusted_proxies"),
		},
		Monitor: MonitorConfig{
			Enabled:            v.GetBool("monitor.enabled"),
			CollectionInterval: v.GetDuration("monitor.collection_interval"),
			WindowCapacity:     v.GetInt("monitor.window_capacity"),
			CleanupEnabled:     v.GetBool("monitor.cleanup_enabled"),
			Retention:          v.GetDuration("monitor.retention"),
			CleanupInterval:    v.GetDuration("monitor.cleanup_interval"),
		},
		Optimizer: OptimizerConfig{
			Enabled:              v.GetBool("optimizer.enabled"),
			Interval:             v.GetDuration("optimizer.interval"),
			CooldownPeriod:       v.GetDuration("optimizer.cooldown_period"),
			MaxConcurrent:        v.GetInt("optimizer.max_concurrent"),
			MinConfidence:        v.GetFloat64("optimizer.min_confidence"),
			TrendSlopeThreshold:  v.GetFloat64("optimizer.trend_slope_threshold"),
			VarianceThreshold:    v.GetFloat64("optimizer.variance_threshold"),
			DegradationThreshold: v.GetFloat64("optimizer.degradation_threshold"),
			MaxSideEffects:       v.GetInt("optimizer.max_side_effects"),
			StabilityErrorRate:   v.GetFloat64("optimizer.stability_error_rate"),
			StabilityWindow:      v.GetDuration("optimizer.stability_window"),
			FailureWindow:        v.GetDuration("optimizer.failure_window"),
			MaxRecentFailures:    v.GetInt("optimizer.max_recent_failures"),
		},
		Benchmark: BenchmarkConfig{
			TargetBaseURL:  v.GetString("benchmark.target_base_url"),
			RequestTimeout: v.GetDuration("benchmark.request_timeout"),
			MaxDuration:    v.GetDuration("benchmark.max_duration"),
			Score: ScoreConfig{
				ResponseTimePenaltyMax: v.GetFloat64("benchmark.score.response_time_penalty_max"),
				ResponseTimeDivisorMS:  v.GetFloat64("benchmark.score.response_time_divisor_ms"),
				ThroughputBonusMax:     v.GetFloat64("benchmark.score.throughput_bonus_max"),
				ThroughputDivisorRPS:   v.GetFloat64("benchmark.score.throughput_divisor_rps"),
				ErrorPenaltyMax:        v.GetFloat64("benchmark.score.error_penalty_max"),
				ErrorMultiplier:        v.GetFloat64("benchmark.score.error_multiplier"),
				ResourcePenaltyMax:     v.GetFloat64("benchmark.score.resource_penalty_max"),
			},
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			DBTraceEnabled:    v.GetBool("telemetry.db_trace_enabled"),
			DBSlowQueryThresh: v.GetDuration("telemetry.db_slow_query_threshold"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "vectorcraft-tuner"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8090"
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite"
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "vectorcraft.db"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "vectorcraft"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.JWT.AccessTokenExpiration == 0 {
		cfg.JWT.AccessTokenExpiration = 15 * time.Minute
	}
	if cfg.JWT.Issuer == "" {
		cfg.JWT.Issuer = "vectorcraft-tuner"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 15 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 1 << 20 // 1MB, tuning payloads are small
	}
	if cfg.HTTP.RateLimitRequests == 0 {
		cfg.HTTP.RateLimitRequests = 100
	}
	if cfg.HTTP.RateLimitWindow == 0 {
		cfg.HTTP.RateLimitWindow = time.Minute
	}
	// CORS origins default to empty: no cross-origin access until configured
	if len(cfg.HTTP.CORSAllowMethods) == 0 {
		cfg.HTTP.CORSAllowMethods = []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"}
	}
	if len(cfg.HTTP.CORSAllowHeaders) == 0 {
		cfg.HTTP.CORSAllowHeaders = []string{"Content-Type", "Authorization", "X-Request-ID"}
	}
	if cfg.Monitor.CollectionInterval == 0 {
		cfg.Monitor.CollectionInterval = 30 * time.Second
	}
	if cfg.Monitor.WindowCapacity == 0 {
		cfg.Monitor.WindowCapacity = 10000
	}
	if cfg.Monitor.Retention == 0 {
		cfg.Monitor.Retention = 720 * time.Hour // 30 days
	}
	if cfg.Monitor.CleanupInterval == 0 {
		cfg.Monitor.CleanupInterval = time.Hour
	}
	if cfg.Optimizer.Interval == 0 {
		cfg.Optimizer.Interval = 60 * time.Second
	}
	if cfg.Optimizer.CooldownPeriod == 0 {
		cfg.Optimizer.CooldownPeriod = time.Hour
	}
	if cfg.Optimizer.MaxConcurrent == 0 {
		cfg.Optimizer.MaxConcurrent = 3
	}
	if cfg.Optimizer.MinConfidence == 0 {
		cfg.Optimizer.MinConfidence = 0.7
	}
	if cfg.Optimizer.TrendSlopeThreshold == 0 {
		cfg.Optimizer.TrendSlopeThreshold = 0.1
	}
	if cfg.Optimizer.VarianceThreshold == 0 {
		cfg.Optimizer.VarianceThreshold = 100
	}
	if cfg.Optimizer.DegradationThreshold == 0 {
		cfg.Optimizer.DegradationThreshold = 0.10
	}
	if cfg.Optimizer.MaxSideEffects == 0 {
		cfg.Optimizer.MaxSideEffects = 2
	}
	if cfg.Optimizer.StabilityErrorRate == 0 {
		cfg.Optimizer.StabilityErrorRate = 0.05
	}
	if cfg.Optimizer.StabilityWindow == 0 {
		cfg.Optimizer.StabilityWindow = 5 * time.Minute
	}
	if cfg.Optimizer.FailureWindow == 0 {
		cfg.Optimizer.FailureWindow = 30 * time.Minute
	}
	if cfg.Optimizer.MaxRecentFailures == 0 {
		cfg.Optimizer.MaxRecentFailures = 2
	}
	if cfg.Benchmark.TargetBaseURL == "" {
		cfg.Benchmark.TargetBaseURL = "http://localhost:" + cfg.App.Port
	}
	if cfg.Benchmark.RequestTimeout == 0 {
		cfg.Benchmark.RequestTimeout = 30 * time.Second
	}
	if cfg.Benchmark.MaxDuration == 0 {
		cfg.Benchmark.MaxDuration = 30 * time.Minute
	}
	if cfg.Benchmark.Score.ResponseTimePenaltyMax == 0 {
		cfg.Benchmark.Score.ResponseTimePenaltyMax = 50
	}
	if cfg.Benchmark.Score.ResponseTimeDivisorMS == 0 {
		cfg.Benchmark.Score.ResponseTimeDivisorMS = 20
	}
	if cfg.Benchmark.Score.ThroughputBonusMax == 0 {
		cfg.Benchmark.Score.ThroughputBonusMax = 20
	}
	if cfg.Benchmark.Score.ThroughputDivisorRPS == 0 {
		cfg.Benchmark.Score.ThroughputDivisorRPS = 5
	}
	if cfg.Benchmark.Score.ErrorPenaltyMax == 0 {
		cfg.Benchmark.Score.ErrorPenaltyMax = 30
	}
	if cfg.Benchmark.Score.ErrorMultiplier == 0 {
		cfg.Benchmark.Score.ErrorMultiplier = 1000
	}
	if cfg.Benchmark.Score.ResourcePenaltyMax == 0 {
		cfg.Benchmark.Score.ResourcePenaltyMax = 10
	}
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "vectorcraft-tuner"
	}
	if cfg.Telemetry.DBSlowQueryThresh == 0 {
		cfg.Telemetry.DBSlowQueryThresh = 200 * time.Millisecond
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c.Database.Driver != "sqlite" && c.Database.Driver != "postgres" {
		return fmt.Errorf("database.driver must be 'sqlite' or 'postgres', got %q", c.Database.Driver)
	}
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}

	if c.Optimizer.MinConfidence < 0 || c.Optimizer.MinConfidence > 1 {
		return fmt.Errorf("optimizer.min_confidence must be between 0.0 and 1.0, got %f", c.Optimizer.MinConfidence)
	}
	if c.Optimizer.DegradationThreshold <= 0 || c.Optimizer.DegradationThreshold >= 1 {
		return fmt.Errorf("optimizer.degradation_threshold must be between 0.0 and 1.0 exclusive, got %f", c.Optimizer.DegradationThreshold)
	}
	if c.Optimizer.MaxConcurrent <= 0 {
		return fmt.Errorf("optimizer.max_concurrent must be positive")
	}
	if c.Monitor.WindowCapacity <= 0 {
		return fmt.Errorf("monitor.window_capacity must be positive")
	}

	if c.JWT.Enabled {
		if c.JWT.AdminUsername == "" || c.JWT.AdminPasswordHash == "" {
			return fmt.Errorf("jwt.admin_username and jwt.admin_password_hash are required when jwt is enabled")
		}
	}

	if c.App.Env == "production" {
		if c.JWT.Enabled {
			if c.JWT.Secret == "" {
				return fmt.Errorf("jwt.secret is required in production")
			}
			if len(c.JWT.Secret) < 32 {
				return fmt.Errorf("jwt.secret must be at least 32 characters in production")
			}
		}
		if c.Database.Driver == "postgres" {
			if c.Database.Password == "" {
				return fmt.Errorf("database.password is required in production")
			}
			if c.Database.SSLMode == "disable" {
				return fmt.Errorf("database.sslmode cannot be 'disable' in production")
			}
		}
		for _, origin := range c.HTTP.CORSAllowOrigins {
			if origin == "*" {
				return fmt.Errorf("cors_allow_origins cannot be '*' in production (use specific origins)")
			}
		}
	}

	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}

	return nil
}

// DSN returns the postgres connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}
