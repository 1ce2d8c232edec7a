package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"MarketGate/pkg/util"
)

type Config struct {
	Environment string           `yaml:"environment" default:"development" validate:"required,oneof=development staging production test"`
	Server      ServerConfig     `yaml:"server"`
	Log         LogConfig        `yaml:"log"`
	Gateway     GatewayConfig    `yaml:"gateway"`
	Providers   ProvidersConfig  `yaml:"providers"`
	Symbols     SymbolsConfig    `yaml:"symbols"`
	Redis       RedisConfig      `yaml:"redis"`
	ClickHouse  ClickHouseConfig `yaml:"clickhouse"`
	Kafka       KafkaConfig      `yaml:"kafka"`
}

type ServerConfig struct {
	Port            int           `yaml:"port" default:"8080" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `yaml:"read_timeout" default:"15s" validate:"gt=0"`
	WriteTimeout    time.Duration `yaml:"write_timeout" default:"30s" validate:"gt=0"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s" validate:"gt=0"`
	SlowRequest     time.Duration `yaml:"slow_request" default:"2s"`
	CORS            bool          `yaml:"cors" default:"true"`
	CORSOrigins     []string      `yaml:"cors_origins"`
}

type LogConfig struct {
	Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" default:"console" validate:"oneof=json console"`
	Output string `yaml:"output" default:"stdout" validate:"required"`
}

// GatewayConfig carries the resilience policy.
type GatewayConfig struct {
	ProviderOrder    []string      `yaml:"provider_order" default:"[\"finnhub\",\"stooq\",\"yahoo\"]" validate:"required,min=1,unique,dive,oneof=finnhub yahoo stooq history"`
	IntradayApproved []string      `yaml:"intraday_approved" validate:"unique,dive,oneof=finnhub yahoo stooq history"`
	MinCompleteness  float64       `yaml:"min_completeness" default:"0.5" validate:"gt=0,lte=1"`
	ProviderTimeout  time.Duration `yaml:"provider_timeout" default:"10s" validate:"gt=0"`
	BatchConcurrency int           `yaml:"batch_concurrency" default:"8" validate:"min=1,max=64"`
	Breaker          struct {
		FailureThreshold int           `yaml:"failure_threshold" default:"4" validate:"min=1"`
		FailureWindow    time.Duration `yaml:"failure_window" default:"10m" validate:"gt=0"`
		BaseBackoff      time.Duration `yaml:"base_backoff" default:"10m" validate:"gt=0"`
		BackoffFactor    float64       `yaml:"backoff_factor" default:"2" validate:"gte=1"`
		MaxBackoff       time.Duration `yaml:"max_backoff" default:"1h" validate:"gtefield=BaseBackoff"`
	} `yaml:"breaker"`
	Quarantine struct {
		Threshold int           `yaml:"threshold" default:"5" validate:"min=1"`
		Cooldown  time.Duration `yaml:"cooldown" default:"24h" validate:"gt=0"`
	} `yaml:"quarantine"`
	TTL struct {
		Quote          time.Duration `yaml:"quote" default:"5m" validate:"gt=0"`
		OHLCVMax       time.Duration `yaml:"ohlcv_max" default:"30m" validate:"gtefield=Min"`
		Historical     time.Duration `yaml:"historical" default:"24h" validate:"gt=0"`
		Min            time.Duration `yaml:"min" default:"1m" validate:"gt=0"`
		RefreshHourUTC int           `yaml:"refresh_hour_utc" default:"22" validate:"min=0,max=23"`
	} `yaml:"ttl"`
}

type ProvidersConfig struct {
	HTTPTimeout time.Duration `yaml:"http_timeout" default:"15s" validate:"gt=0"`
	UserAgent   string        `yaml:"user_agent" default:"marketgate/1.0"`
	Finnhub     struct {
		APIKey  string `yaml:"api_key"`
		BaseURL string `yaml:"base_url" default:"https://finnhub.io/api/v1" validate:"url"`
		Limit   Limit  `yaml:"limit"`
	} `yaml:"finnhub"`
	Yahoo struct {
		BaseURL string `yaml:"base_url" default:"https://query1.finance.yahoo.com" validate:"url"`
		Limit   Limit  `yaml:"limit"`
	} `yaml:"yahoo"`
	Stooq struct {
		BaseURL string `yaml:"base_url" default:"https://stooq.com" validate:"url"`
		Limit   Limit  `yaml:"limit"`
	} `yaml:"stooq"`
	History struct {
		Table string `yaml:"table" default:"ohlcv_daily" validate:"required"`
	} `yaml:"history"`
}

// Limit is a per-provider token bucket. Zero capacity disables limiting.
type Limit struct {
	Capacity     float64 `yaml:"capacity" default:"30" validate:"gte=0"`
	RefillPerSec float64 `yaml:"refill_per_sec" default:"1" validate:"gte=0"`
}

type SymbolsConfig struct {
	Aliases   map[string]string `yaml:"aliases"`
	Banned    []string          `yaml:"banned"`
	MaxLength int               `yaml:"max_length" default:"16" validate:"min=1"`
}

type RedisConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Addr         string        `yaml:"addr" default:"localhost:6379" validate:"required_if=Enabled true"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db" validate:"min=0"`
	PoolSize     int           `yaml:"pool_size" default:"20"`
	MinIdleConns int           `yaml:"min_idle_conns" default:"2"`
	Prefix       string        `yaml:"prefix" default:"marketgate"`
	OpTimeout    time.Duration `yaml:"op_timeout" default:"200ms" validate:"gt=0"`
	L1MaxSize    int           `yaml:"l1_max_size" default:"10000" validate:"min=1"`
}

type ClickHouseConfig struct {
	Enabled     bool          `yaml:"enabled"`
	Host        string        `yaml:"host" default:"localhost" validate:"required_if=Enabled true"`
	Port        int           `yaml:"port" default:"9000"`
	Database    string        `yaml:"database" default:"marketdata"`
	User        string        `yaml:"user" default:"default"`
	Password    string        `yaml:"password"`
	UseHTTP     bool          `yaml:"use_http"`
	DialTimeout time.Duration `yaml:"dial_timeout" default:"5s"`
	ReadTimeout time.Duration `yaml:"read_timeout" default:"10s"`
	MaxExecTime time.Duration `yaml:"max_exec_time" default:"5s"`
}

type KafkaConfig struct {
	Enabled       bool     `yaml:"enabled"`
	Brokers       []string `yaml:"brokers" validate:"required_if=Enabled true"`
	EventsTopic   string   `yaml:"events_topic" default:"marketgate.events"`
	PrefetchTopic string   `yaml:"prefetch_topic" default:"marketgate.prefetch"`
	LogsTopic     string   `yaml:"logs_topic"`
	RequiredAcks  int      `yaml:"required_acks" default:"1"`
	Compression   string   `yaml:"compression" default:"snappy" validate:"oneof=none gzip snappy lz4 zstd"`
	Producer      struct {
		MaxAttempts  int           `yaml:"max_attempts" default:"3"`
		BatchSize    int           `yaml:"batch_size" default:"100"`
		BatchTimeout time.Duration `yaml:"batch_timeout" default:"50ms"`
		WriteTimeout time.Duration `yaml:"write_timeout" default:"5s"`
		ReadTimeout  time.Duration `yaml:"read_timeout" default:"5s"`
	} `yaml:"producer"`
	Consumer struct {
		GroupID     string        `yaml:"group_id" default:"marketgate-prefetch"`
		StartOffset string        `yaml:"start_offset" default:"latest" validate:"oneof=earliest latest"`
		Workers     int           `yaml:"workers" default:"2" validate:"min=1"`
		RetryMax    int           `yaml:"retry_max" default:"3"`
		BackoffMin  time.Duration `yaml:"backoff_min" default:"100ms"`
		BackoffMax  time.Duration `yaml:"backoff_max" default:"2s"`
		DLQTopic    string        `yaml:"dlq_topic"`
	} `yaml:"consumer"`
}

var validate = validator.New()

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	c, err := parse(b)
	if err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	c, err := parse(b)
	if err != nil {
		return nil, err
	}
	if err := c.applyEnv(os.Getenv); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// Default returns a configuration carrying only default values.
func Default() (*Config, error) {
	return parse(nil)
}

// parse applies defaults before decoding so explicit zero values in YAML win.
func parse(b []byte) (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &c, nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	if v := getenv("APP_ENV"); v != "" {
		c.Environment = v
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := getenv("FINNHUB_API_KEY"); v != "" {
		c.Providers.Finnhub.APIKey = v
	}
	if v := getenv("REDIS_ADDR"); v != "" {
		c.Redis.Enabled = true
		c.Redis.Addr = v
	}
	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Enabled = true
		c.Kafka.Brokers = util.SplitList(v)
	}
	if v := getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Enabled = true
		c.ClickHouse.Host = v
	}
	if v := getenv("MD_PROVIDER_ORDER"); v != "" {
		c.Gateway.ProviderOrder = util.SplitList(v)
	}
	if v, ok := getenvPresent(getenv, "MD_INTRADAY_PROVIDERS"); ok {
		c.Gateway.IntradayApproved = util.SplitList(v)
	}
	if v := getenv("MD_MIN_COMPLETENESS"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("env MD_MIN_COMPLETENESS: %w", err)
		}
		c.Gateway.MinCompleteness = f
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"MD_CB_FAIL_THRESHOLD", &c.Gateway.Breaker.FailureThreshold},
		{"MD_SYMBOL_FAIL_THRESHOLD", &c.Gateway.Quarantine.Threshold},
	}
	for _, e := range ints {
		if err := envInt(getenv, e.key, e.dst); err != nil {
			return err
		}
	}

	seconds := []struct {
		key string
		dst *time.Duration
	}{
		{"MD_CB_COOLDOWN_SECONDS", &c.Gateway.Breaker.BaseBackoff},
		{"MD_QUOTE_TTL_SECONDS", &c.Gateway.TTL.Quote},
		{"MD_OHLCV_TTL_SECONDS", &c.Gateway.TTL.OHLCVMax},
		{"MD_SYMBOL_FAIL_TTL_SECONDS", &c.Gateway.Quarantine.Cooldown},
		{"MD_PROVIDER_TIMEOUT_SECONDS", &c.Gateway.ProviderTimeout},
	}
	for _, e := range seconds {
		if err := envSeconds(getenv, e.key, e.dst); err != nil {
			return err
		}
	}
	// a raised base backoff drags the cap along with it
	if c.Gateway.Breaker.MaxBackoff < c.Gateway.Breaker.BaseBackoff {
		c.Gateway.Breaker.MaxBackoff = c.Gateway.Breaker.BaseBackoff
	}
	return nil
}

func envInt(getenv func(string) string, key string, dst *int) error {
	v := getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("env %s: %w", key, err)
	}
	*dst = n
	return nil
}

func envSeconds(getenv func(string) string, key string, dst *time.Duration) error {
	var n int
	if err := envInt(getenv, key, &n); err != nil || getenv(key) == "" {
		return err
	}
	*dst = time.Duration(n) * time.Second
	return nil
}

// getenvPresent treats "-" as an explicit empty list.
func getenvPresent(getenv func(string) string, key string) (string, bool) {
	v := getenv(key)
	if v == "" {
		return "", false
	}
	if v == "-" {
		return "", true
	}
	return v, true
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	for _, p := range c.Gateway.IntradayApproved {
		if !contains(c.Gateway.ProviderOrder, p) {
			return fmt.Errorf("gateway.intraday_approved: %q is not in provider_order", p)
		}
	}
	if contains(c.Gateway.ProviderOrder, "history") && !c.ClickHouse.Enabled {
		return fmt.Errorf("gateway.provider_order: history requires clickhouse.enabled")
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
