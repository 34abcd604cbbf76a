package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"
)

var knownSnapshotFields = map[string]struct{}{
	"market_snapshot": {},
	"market_score":    {},
	"market_state":    {},
	"capital_advice":  {},
}

type Config struct {
	Environment string `yaml:"environment"`
	Log         struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		Output string `yaml:"output"`
	} `yaml:"log"`
	Server struct {
		Host            string        `yaml:"host"`
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
		RunRateLimit    struct {
			Capacity     int     `yaml:"capacity"`
			RefillPerSec float64 `yaml:"refill_per_sec"`
		} `yaml:"run_rate_limit"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
	ClickHouse struct {
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port"`
		Database         string        `yaml:"database"`
		User             string        `yaml:"user"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		MaxOpenConns     int           `yaml:"max_open_conns"`
		MaxIdleConns     int           `yaml:"max_idle_conns"`
		DialTimeout      time.Duration `yaml:"dial_timeout"`
		ReadTimeout      time.Duration `yaml:"read_timeout"`
		WriteTimeout     time.Duration `yaml:"write_timeout"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
		InitSchema       bool          `yaml:"init_schema"`
	} `yaml:"clickhouse"`
	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Prefix   string `yaml:"prefix"`
	} `yaml:"redis"`
	Kafka struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers"`
		RequestTopic string   `yaml:"request_topic"`
		EventTopic   string   `yaml:"event_topic"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts"`
			RequiredAcks int           `yaml:"required_acks"`
			Compression  string        `yaml:"compression"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id"`
			Workers    int           `yaml:"workers"`
			RetryMax   int           `yaml:"retry_max"`
			BackoffMin time.Duration `yaml:"backoff_min"`
			BackoffMax time.Duration `yaml:"backoff_max"`
			DLQTopic   string        `yaml:"dlq_topic"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	Queue struct {
		Workers    int           `yaml:"workers"`
		Size       int           `yaml:"size"`
		RetryLimit int           `yaml:"retry_limit"`
		RetryDelay time.Duration `yaml:"retry_delay"`
	} `yaml:"queue"`
	TWSE struct {
		BaseURL   string        `yaml:"base_url"`
		Endpoint  string        `yaml:"endpoint"`
		Market    string        `yaml:"market"`
		Timeout   time.Duration `yaml:"timeout"`
		Retries   int           `yaml:"retries"`
		Backoff   time.Duration `yaml:"backoff"`
		UserAgent string        `yaml:"user_agent"`
	} `yaml:"twse"`
	Report struct {
		SnapshotFields []string      `yaml:"snapshot_fields"`
		RunLockTTL     time.Duration `yaml:"run_lock_ttl"`
		CacheTTL       time.Duration `yaml:"cache_ttl"`
		Timezone       string        `yaml:"timezone"`
	} `yaml:"report"`
}

// Load reads and parses a YAML configuration file, fills defaults and validates it.
func Load(path string) (*Config, error) {
	c, err := parse(path)
	if err != nil {
		return nil, err
	}
	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables
// before validation.
func LoadWithEnv(path string) (*Config, error) {
	c, err := parse(path)
	if err != nil {
		return nil, err
	}
	c.applyEnv(os.Getenv)
	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func parse(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &c, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	if v := getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := getenv("CLICKHOUSE_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.ClickHouse.Port = p
		}
	}
	if v := getenv("CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHouse.Password = v
	}
	if v := getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
		c.Redis.Enabled = true
	}
	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := getenv("TWSE_BASE_URL"); v != "" {
		c.TWSE.BaseURL = v
	}
}

func (c *Config) applyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Log.Output == "" {
		c.Log.Output = "stdout"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.Server.RunRateLimit.Capacity == 0 {
		c.Server.RunRateLimit.Capacity = 3
	}
	if c.Server.RunRateLimit.RefillPerSec == 0 {
		c.Server.RunRateLimit.RefillPerSec = 0.05
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
	if c.ClickHouse.Port == 0 {
		c.ClickHouse.Port = 9000
	}
	if c.ClickHouse.Database == "" {
		c.ClickHouse.Database = "default"
	}
	if c.Kafka.RequestTopic == "" {
		c.Kafka.RequestTopic = "marketpulse.daily.requests"
	}
	if c.Kafka.EventTopic == "" {
		c.Kafka.EventTopic = "marketpulse.daily.reports"
	}
	if c.Kafka.Consumer.GroupID == "" {
		c.Kafka.Consumer.GroupID = "marketpulse"
	}
	if c.Queue.Workers == 0 {
		c.Queue.Workers = 1
	}
	if c.Queue.RetryDelay == 0 {
		c.Queue.RetryDelay = 30 * time.Second
	}
	if c.TWSE.BaseURL == "" {
		c.TWSE.BaseURL = "https://openapi.twse.com.tw/v1"
	}
	if c.TWSE.Endpoint == "" {
		c.TWSE.Endpoint = "/exchangeReport/STOCK_DAY_ALL"
	}
	if c.TWSE.Market == "" {
		c.TWSE.Market = "TWSE"
	}
	if c.TWSE.Timeout == 0 {
		c.TWSE.Timeout = 20 * time.Second
	}
	if c.Report.SnapshotFields == nil {
		c.Report.SnapshotFields = []string{"market_snapshot", "market_score", "market_state", "capital_advice"}
	}
	if c.Report.RunLockTTL == 0 {
		c.Report.RunLockTTL = 10 * time.Minute
	}
	if c.Report.CacheTTL == 0 {
		c.Report.CacheTTL = 5 * time.Minute
	}
	if c.Report.Timezone == "" {
		c.Report.Timezone = "Asia/Taipei"
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.ClickHouse.Host == "" {
		return fmt.Errorf("clickhouse.host is required")
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required when redis is enabled")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	for _, f := range c.Report.SnapshotFields {
		if _, ok := knownSnapshotFields[f]; !ok {
			return fmt.Errorf("report.snapshot_fields: unknown field '%s'", f)
		}
	}
	if _, err := time.LoadLocation(c.Report.Timezone); err != nil {
		return fmt.Errorf("report.timezone: %w", err)
	}
	return nil
}

// Location returns the exchange timezone used to resolve "today".
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Report.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
