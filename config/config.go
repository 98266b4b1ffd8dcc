package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	AMQP     AMQPConfig     `mapstructure:"amqp"`
	Chain    ChainConfig    `mapstructure:"chain"`
	Pool     PoolConfig     `mapstructure:"pool"`
	Watcher  WatcherConfig  `mapstructure:"watcher"`
	Queue    QueueConfig    `mapstructure:"queue"`
	Fees     FeesConfig     `mapstructure:"fees"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
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

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns the Redis address string.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type AMQPConfig struct {
	URL      string `mapstructure:"url"`
	Exchange string `mapstructure:"exchange"`
}

type ChainConfig struct {
	RPCURL          string        `mapstructure:"rpc_url"`
	RelayerKey      string        `mapstructure:"relayer_key"` // Hex-encoded private key
	ReceiptInterval time.Duration `mapstructure:"receipt_interval"`
	ReceiptTimeout  time.Duration `mapstructure:"receipt_timeout"`
}

type PoolConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type WatcherConfig struct {
	Interval time.Duration `mapstructure:"interval"` // Poll cycle period
	Expiry   time.Duration `mapstructure:"expiry"`   // Pending-transfer timeout
}

type QueueConfig struct {
	SettleDelay time.Duration `mapstructure:"settle_delay"` // Pause between consecutive transfers
}

type FeesConfig struct {
	FixedUnits       int64 `mapstructure:"fixed_units"`
	VariableBps      int64 `mapstructure:"variable_bps"`
	SweepBufferUnits int64 `mapstructure:"sweep_buffer_units"`
	MinAmountUnits   int64 `mapstructure:"min_amount_units"`
	MaxAmountUnits   int64 `mapstructure:"max_amount_units"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

// Load reads configuration from file and environment variables.
// Environment variables override file values. Prefix: PTR_ (Private Transfer Relay).
// Nested keys use underscore: PTR_DATABASE_HOST, PTR_CHAIN_RPC_URL, etc.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "transfer_relay")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("amqp.url", "")
	v.SetDefault("amqp.exchange", "relay.notifications")
	v.SetDefault("chain.rpc_url", "")
	v.SetDefault("chain.relayer_key", "")
	v.SetDefault("chain.receipt_interval", "2s")
	v.SetDefault("chain.receipt_timeout", "2m")
	v.SetDefault("pool.base_url", "")
	v.SetDefault("pool.timeout", "90s")
	v.SetDefault("watcher.interval", "5s")
	v.SetDefault("watcher.expiry", "30m")
	v.SetDefault("queue.settle_delay", "10s")
	v.SetDefault("fees.fixed_units", 7_000_000)
	v.SetDefault("fees.variable_bps", 35)
	v.SetDefault("fees.sweep_buffer_units", 5_000)
	v.SetDefault("fees.min_amount_units", 20_000_000)
	v.SetDefault("fees.max_amount_units", 100_000_000_000)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	// File config
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variables: PTR_DATABASE_HOST -> database.host
	v.SetEnvPrefix("PTR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (not required — env vars can suffice)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}
