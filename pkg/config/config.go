package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment" default:"development" validate:"required"`
	Server      struct {
		Host            string        `yaml:"host" default:"0.0.0.0"`
		Port            int           `yaml:"port" default:"8080" validate:"min=1,max=65535"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"15s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"60s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
		AllowedOrigins  []string      `yaml:"allowed_origins"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
		Format string `yaml:"format" default:"json" validate:"oneof=json console"`
		Output string `yaml:"output" default:"stdout"`
	} `yaml:"log"`
	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	Model    ModelConfig    `yaml:"model"`
	Forecast ForecastConfig `yaml:"forecast"`
	Weather  WeatherConfig  `yaml:"weather"`
	Holidays struct {
		Fixed []string `yaml:"fixed"` // MM-DD, every year
		Dates []string `yaml:"dates"` // YYYY-MM-DD
	} `yaml:"holidays"`
	History struct {
		Backend  string `yaml:"backend" default:"clickhouse" validate:"oneof=clickhouse bolt memory"`
		Table    string `yaml:"table" default:"hourly_actuals"`
		BoltPath string `yaml:"bolt_path" default:"data/actuals.db"`
		SeedFile string `yaml:"seed_file"` // JSON observations loaded into the memory backend
	} `yaml:"history"`
	ClickHouse struct {
		Host             string        `yaml:"host" default:"localhost"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"gridcast"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"30s"`
		WriteTimeout     time.Duration `yaml:"write_timeout" default:"30s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"60s"`
	} `yaml:"clickhouse"`
	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Host     string `yaml:"host" default:"localhost"`
		Port     int    `yaml:"port" default:"6379"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		PoolSize int    `yaml:"pool_size" default:"10"`
		Prefix   string `yaml:"prefix" default:"gridcast"`
	} `yaml:"redis"`
	Cache struct {
		Backend    string        `yaml:"backend" default:"memory" validate:"oneof=memory redis layered"`
		MaxSize    int           `yaml:"max_size" default:"10000"`
		DefaultTTL time.Duration `yaml:"default_ttl" default:"10m"`
	} `yaml:"cache"`
	Kafka struct {
		Enabled       bool     `yaml:"enabled"`
		Brokers       []string `yaml:"brokers"`
		ActualsTopic  string   `yaml:"actuals_topic" default:"gridcast.actuals"`
		ForecastTopic string   `yaml:"forecast_topic" default:"gridcast.forecasts"`
		LogTopic      string   `yaml:"log_topic" default:"gridcast.logs"`
		RequiredAcks  int      `yaml:"required_acks" default:"1"`
		Compression   string   `yaml:"compression" default:"snappy"`
		Consumer      struct {
			GroupID    string        `yaml:"group_id" default:"gridcast-actuals"`
			Workers    int           `yaml:"workers" default:"2"`
			BufferSize int           `yaml:"buffer_size" default:"256"`
			RetryMax   int           `yaml:"retry_max" default:"3"`
			BackoffMin time.Duration `yaml:"backoff_min" default:"200ms"`
			BackoffMax time.Duration `yaml:"backoff_max" default:"5s"`
			DLQTopic   string        `yaml:"dlq_topic" default:"gridcast.actuals.dlq"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	Queue struct {
		Enabled    bool          `yaml:"enabled"`
		Name       string        `yaml:"name" default:"gridcast:jobs"`
		Workers    int           `yaml:"workers" default:"2"`
		RetryLimit int           `yaml:"retry_limit" default:"3"`
		RetryDelay time.Duration `yaml:"retry_delay" default:"30s"`
	} `yaml:"queue"`
	Scheduler struct {
		Enabled         bool          `yaml:"enabled" default:"true"`
		WeatherInterval time.Duration `yaml:"weather_interval" default:"30m"`
		RefreshInterval time.Duration `yaml:"refresh_interval" default:"1h"`
	} `yaml:"scheduler"`
	RateLimit struct {
		Enabled           bool `yaml:"enabled" default:"true"`
		RequestsPerMinute int  `yaml:"requests_per_minute" default:"60" validate:"min=1"`
	} `yaml:"ratelimit"`
}

type ModelConfig struct {
	ArtifactDir  string  `yaml:"artifact_dir" default:"artifacts" validate:"required"`
	Manifest     string  `yaml:"manifest" default:"manifest.json"`
	WindowSize   int     `yaml:"window_size" default:"168" validate:"min=1"`
	FeatureCount int     `yaml:"feature_count" default:"17" validate:"min=1"`
	ValueUnit    string  `yaml:"value_unit" default:"MW" validate:"required"`
	ScaleFactor  float64 `yaml:"scale_factor" default:"1.0" validate:"gt=0"`
	// RemoteURL is used by artifacts whose kind is "remote".
	RemoteURL     string        `yaml:"remote_url"`
	RemoteTimeout time.Duration `yaml:"remote_timeout" default:"2s"`
}

type ForecastConfig struct {
	Timezone        string        `yaml:"timezone" default:"UTC"`
	DefaultHorizon  int           `yaml:"default_horizon" default:"24" validate:"min=1"`
	MaxHorizon      int           `yaml:"max_horizon" default:"168" validate:"min=1"`
	RequestTimeout  time.Duration `yaml:"request_timeout" default:"20s"`
	CacheTTL        time.Duration `yaml:"cache_ttl" default:"10m"`
	MinSeedCoverage float64       `yaml:"min_seed_coverage" default:"0.9" validate:"gt=0,lte=1"`
	ResidualPolicy  string        `yaml:"residual_policy" default:"true_where_available" validate:"oneof=true_where_available predicted"`
	FallbackBase    float64       `yaml:"fallback_base" default:"3000" validate:"gt=0"`
}

type WeatherConfig struct {
	Enabled       bool          `yaml:"enabled" default:"true"`
	ForecastURL   string        `yaml:"forecast_url" default:"https://api.open-meteo.com/v1/forecast"`
	ArchiveURL    string        `yaml:"archive_url" default:"https://archive-api.open-meteo.com/v1/archive"`
	Latitude      float64       `yaml:"latitude" default:"28.6139"`
	Longitude     float64       `yaml:"longitude" default:"77.2090"`
	Timeout       time.Duration `yaml:"timeout" default:"3s"`
	RangeHours    int           `yaml:"range_hours" default:"120" validate:"min=1"`
	CacheTTL      time.Duration `yaml:"cache_ttl" default:"10m"`
	PrefetchHours int           `yaml:"prefetch_hours" default:"48"`
	MaxRetries    int           `yaml:"max_retries" default:"2"`
	BaseTemp      float64       `yaml:"base_temperature" default:"25"`
}

// Load reads, defaults and validates a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse is Load without the file system.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

// LoadWithEnv loads .env (if present), the YAML file, then applies
// GRIDCAST_* overrides.
func LoadWithEnv(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	c, err := Load(path)
	if err != nil {
		return nil, err
	}
	c.applyEnv()
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("GRIDCAST_ENV"); v != "" {
		c.Environment = v
	}
	if v := os.Getenv("GRIDCAST_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Server.Port = p
		}
	}
	if v := os.Getenv("GRIDCAST_ARTIFACT_DIR"); v != "" {
		c.Model.ArtifactDir = v
	}
	if v := os.Getenv("GRIDCAST_HISTORY_BACKEND"); v != "" {
		c.History.Backend = v
	}
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := os.Getenv("CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHouse.Password = v
	}
	if v := os.Getenv("REDIS_HOST"); v != "" {
		c.Redis.Host = v
		c.Redis.Enabled = true
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
		c.Kafka.Enabled = true
	}
}

var validate = validator.New()

// Validate checks field constraints and the cross-field rules tags can't
// express.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.Forecast.DefaultHorizon > c.Forecast.MaxHorizon {
		return fmt.Errorf("forecast.default_horizon %d exceeds max_horizon %d", c.Forecast.DefaultHorizon, c.Forecast.MaxHorizon)
	}
	if _, err := time.LoadLocation(c.Forecast.Timezone); err != nil {
		return fmt.Errorf("forecast.timezone: %w", err)
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if (c.Cache.Backend == "redis" || c.Cache.Backend == "layered") && !c.Redis.Enabled {
		return fmt.Errorf("cache.backend %q requires redis.enabled", c.Cache.Backend)
	}
	if c.Queue.Enabled && !c.Redis.Enabled {
		return fmt.Errorf("queue requires redis.enabled")
	}
	for _, d := range c.Holidays.Dates {
		if _, err := time.Parse("2006-01-02", d); err != nil {
			return fmt.Errorf("holidays.dates: %q: %w", d, err)
		}
	}
	return nil
}

// Location returns the configured forecast time zone.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Forecast.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
