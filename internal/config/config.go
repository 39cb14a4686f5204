// Package config loads the server configuration from the environment.
//
// Every key has a default; values are overridden by a .env file and then by environment variables with the
// TRANSFERFLOW_ prefix, nested keys joined by an underscore (grpc.api_token -> TRANSFERFLOW_GRPC_API_TOKEN).
package config

import (
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvVarPrefix = "TRANSFERFLOW"
	DotEnvFile   = ".env"
)

const (
	BankModeMemory = "memory"
	BankModeHTTP   = "http"

	StoreMemory   = "memory"
	StoreMongo    = "mongo"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
)

type Config struct {
	GRPC     GRPCConfig     `mapstructure:"grpc"`
	Log      LogConfig      `mapstructure:"log"`
	Bank     BankConfig     `mapstructure:"bank"`
	Store    StoreConfig    `mapstructure:"store"`
	Mongo    MongoConfig    `mapstructure:"mongo"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	Retry    RetryConfig    `mapstructure:"retry"`
	Saga     SagaConfig     `mapstructure:"saga"`
}

type GRPCConfig struct {
	Listen   string `mapstructure:"listen"`
	APIToken string `mapstructure:"api_token"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type BankConfig struct {
	Mode    string        `mapstructure:"mode"`
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
	Breaker BreakerConfig `mapstructure:"breaker"`
}

type BreakerConfig struct {
	MaxRequests         uint32        `mapstructure:"max_requests"`
	Interval            time.Duration `mapstructure:"interval"`
	Timeout             time.Duration `mapstructure:"timeout"`
	ConsecutiveFailures uint32        `mapstructure:"consecutive_failures"`
}

// StoreConfig selects the backend of each store
type StoreConfig struct {
	Session    string `mapstructure:"session"`
	Checkpoint string `mapstructure:"checkpoint"`
	Transfer   string `mapstructure:"transfer"`
}

type MongoConfig struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

type RedisConfig struct {
	Addr       string        `mapstructure:"addr"`
	SessionTTL time.Duration `mapstructure:"session_ttl"`
}

type PostgresConfig struct {
	DSN string `mapstructure:"dsn"`
}

type RetryConfig struct {
	MaxAttempts    uint          `mapstructure:"max_attempts"`
	WaitMin        time.Duration `mapstructure:"wait_min"`
	WaitMax        time.Duration `mapstructure:"wait_max"`
	BackOffEnabled bool          `mapstructure:"backoff_enabled"`
	MaxJitter      time.Duration `mapstructure:"max_jitter"`
}

type SagaConfig struct {
	CompensationTimeout time.Duration `mapstructure:"compensation_timeout"`
	RecoveryInterval    time.Duration `mapstructure:"recovery_interval"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("grpc.listen", ":8080")
	v.SetDefault("grpc.api_token", "dev-token")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("bank.mode", BankModeMemory)
	v.SetDefault("bank.url", "")
	v.SetDefault("bank.timeout", 10*time.Second)
	v.SetDefault("bank.breaker.max_requests", 1)
	v.SetDefault("bank.breaker.interval", time.Minute)
	v.SetDefault("bank.breaker.timeout", 30*time.Second)
	v.SetDefault("bank.breaker.consecutive_failures", 5)

	v.SetDefault("store.session", StoreMemory)
	v.SetDefault("store.checkpoint", StoreMemory)
	v.SetDefault("store.transfer", StoreMemory)

	v.SetDefault("mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("mongo.database", "transferflow")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.session_ttl", time.Duration(0))

	v.SetDefault("postgres.dsn", "host=localhost port=5432 user=postgres password=postgres dbname=transferflow sslmode=disable")

	v.SetDefault("retry.max_attempts", 5)
	v.SetDefault("retry.wait_min", 200*time.Millisecond)
	v.SetDefault("retry.wait_max", 5*time.Second)
	v.SetDefault("retry.backoff_enabled", true)
	v.SetDefault("retry.max_jitter", 50*time.Millisecond)

	v.SetDefault("saga.compensation_timeout", 30*time.Second)
	v.SetDefault("saga.recovery_interval", 30*time.Second)
}

// Load reads the configuration from dotEnvFile (when present) and the environment, then validates it
func Load(dotEnvFile string) (*Config, error) {
	return LoadFromViper(viper.New(), dotEnvFile)
}

// LoadFromViper is Load on a caller provided viper session; values Set on it take precedence
func LoadFromViper(v *viper.Viper, dotEnvFile string) (*Config, error) {
	setDefaults(v)

	if dotEnvFile != "" {
		// A missing .env file is not an error
		_ = godotenv.Load(dotEnvFile)
	}

	v.SetEnvPrefix(EnvVarPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AllowEmptyEnv(false)
	v.AutomaticEnv()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct, %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that the selected backends are known and have what they need to connect
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.GRPC),
		validation.Field(&c.Log),
		validation.Field(&c.Bank),
		validation.Field(&c.Store),
		validation.Field(&c.Mongo, validation.Skip.When(!c.usesMongo())),
		validation.Field(&c.Redis, validation.Skip.When(c.Store.Session != StoreRedis)),
		validation.Field(&c.Postgres, validation.Skip.When(c.Store.Transfer != StorePostgres)),
		validation.Field(&c.Retry),
		validation.Field(&c.Saga),
	)
}

func (c Config) usesMongo() bool {
	return c.Store.Session == StoreMongo || c.Store.Checkpoint == StoreMongo
}

func (c GRPCConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Listen, validation.Required),
		validation.Field(&c.APIToken, validation.Required),
	)
}

func (c LogConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Level, validation.In("trace", "debug", "info", "warn", "warning", "error")),
		validation.Field(&c.Format, validation.In("text", "json")),
	)
}

func (c BankConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Mode, validation.Required, validation.In(BankModeMemory, BankModeHTTP)),
		validation.Field(&c.URL, validation.When(c.Mode == BankModeHTTP, validation.Required, is.URL)),
		validation.Field(&c.Timeout, validation.Min(time.Duration(0))),
	)
}

func (c StoreConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Session, validation.Required, validation.In(StoreMemory, StoreMongo, StoreRedis)),
		validation.Field(&c.Checkpoint, validation.Required, validation.In(StoreMemory, StoreMongo)),
		validation.Field(&c.Transfer, validation.Required, validation.In(StoreMemory, StorePostgres)),
	)
}

func (c MongoConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.URI, validation.Required),
		validation.Field(&c.Database, validation.Required),
	)
}

func (c RedisConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Addr, validation.Required),
		validation.Field(&c.SessionTTL, validation.Min(time.Duration(0))),
	)
}

func (c PostgresConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.DSN, validation.Required),
	)
}

func (c RetryConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.MaxAttempts, validation.Required, validation.Min(uint(1))),
		validation.Field(&c.WaitMax, validation.Min(c.WaitMin)),
	)
}

func (c SagaConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.CompensationTimeout, validation.Required),
		validation.Field(&c.RecoveryInterval, validation.Required),
	)
}
