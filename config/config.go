package config

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

var secretTokenPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,256}$`)

// Storage drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

// Lock backends.
const (
	LockLocal = "local"
	LockRedis = "redis"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Lock     LockConfig     `mapstructure:"lock"`
	Ledger   LedgerConfig   `mapstructure:"ledger"`
	OTP      OTPConfig      `mapstructure:"otp"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug, release, test
}

type StorageConfig struct {
	Driver     string `mapstructure:"driver"` // postgres, sqlite, memory
	SQLitePath string `mapstructure:"sqlite_path"`
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DSN returns the PostgreSQL connection string with credentials escaped.
func (d DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:     "/" + d.DBName,
		RawQuery: url.Values{"sslmode": {d.SSLMode}}.Encode(),
	}
	return u.String()
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns the Redis address string.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type LockConfig struct {
	Backend    string        `mapstructure:"backend"` // local, redis
	Expiry     time.Duration `mapstructure:"expiry"`
	Tries      int           `mapstructure:"tries"`
	RetryDelay time.Duration `mapstructure:"retry_delay"`
}

type LedgerConfig struct {
	StartingBalance       string `mapstructure:"starting_balance"`
	RecipientBalance      string `mapstructure:"recipient_balance"`
	RequirePositiveAmount bool   `mapstructure:"require_positive_amount"`
	HistoryLimit          int    `mapstructure:"history_limit"`
}

// Balances parses the starting and recipient balances.
func (l LedgerConfig) Balances() (starting, recipient decimal.Decimal, err error) {
	starting, err = decimal.NewFromString(l.StartingBalance)
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("ledger.starting_balance: %w", err)
	}
	recipient, err = decimal.NewFromString(l.RecipientBalance)
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("ledger.recipient_balance: %w", err)
	}
	return starting, recipient, nil
}

type OTPConfig struct {
	TTL              time.Duration `mapstructure:"ttl"` // 0 = never expires
	ConsumeOnSuccess bool          `mapstructure:"consume_on_success"`
	MaxAttempts      int64         `mapstructure:"max_attempts"`
	AttemptWindow    time.Duration `mapstructure:"attempt_window"`
}

type TelegramConfig struct {
	Token       string `mapstructure:"token"`
	WebhookURL  string `mapstructure:"webhook_url"`
	WebhookPath string `mapstructure:"webhook_path"`
	// SecretToken is echoed by Telegram in X-Telegram-Bot-Api-Secret-Token.
	// The webhook route is only mounted when it is set.
	SecretToken string `mapstructure:"secret_token"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

// Load reads configuration from file and environment variables.
// Environment variables override file values. Prefix: SENDIT_.
// Nested keys use underscore: SENDIT_STORAGE_DRIVER, SENDIT_TELEGRAM_TOKEN, etc.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 5001)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("storage.driver", DriverPostgres)
	v.SetDefault("storage.sqlite_path", "sendit.db")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "sendit")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("redis.enabled", true)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("lock.backend", LockLocal)
	v.SetDefault("lock.expiry", "10s")
	v.SetDefault("lock.tries", 32)
	v.SetDefault("lock.retry_delay", "50ms")
	v.SetDefault("ledger.starting_balance", "1000.00")
	v.SetDefault("ledger.recipient_balance", "0.00")
	v.SetDefault("ledger.require_positive_amount", true)
	v.SetDefault("ledger.history_limit", 20)
	v.SetDefault("otp.ttl", "10m")
	v.SetDefault("otp.consume_on_success", true)
	v.SetDefault("otp.max_attempts", 5)
	v.SetDefault("otp.attempt_window", "10m")
	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.webhook_url", "")
	v.SetDefault("telegram.webhook_path", "/webhook")
	v.SetDefault("telegram.secret_token", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// SENDIT_STORAGE_DRIVER -> storage.driver
	v.SetEnvPrefix("SENDIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// A missing file is fine; env vars can suffice.
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks cross-field constraints that viper cannot express.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case DriverPostgres, DriverSQLite, DriverMemory:
	default:
		return fmt.Errorf("storage.driver: unknown driver %q", c.Storage.Driver)
	}

	switch c.Lock.Backend {
	case LockLocal:
	case LockRedis:
		if !c.Redis.Enabled {
			return fmt.Errorf("lock.backend %q requires redis.enabled", LockRedis)
		}
	default:
		return fmt.Errorf("lock.backend: unknown backend %q", c.Lock.Backend)
	}

	if _, _, err := c.Ledger.Balances(); err != nil {
		return err
	}

	if c.Telegram.WebhookPath == "" || c.Telegram.WebhookPath[0] != '/' {
		return fmt.Errorf("telegram.webhook_path must start with /")
	}
	if c.Telegram.WebhookURL != "" && c.Telegram.SecretToken == "" {
		return fmt.Errorf("telegram.secret_token is required with telegram.webhook_url")
	}
	if c.Telegram.SecretToken != "" && !secretTokenPattern.MatchString(c.Telegram.SecretToken) {
		return fmt.Errorf("telegram.secret_token must be 1-256 characters of A-Z, a-z, 0-9, _ and -")
	}

	return nil
}
