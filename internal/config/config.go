// Package config loads runtime configuration for the fan-out server: the
// listener, the filter limits, and the ambient logging/metrics settings
// (spec.md §4.2, §9).
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all runtime configuration for the fan-out server.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Hub     HubConfig     `mapstructure:"hub"`
	Limits  LimitsConfig  `mapstructure:"limits"`
	Auth      AuthConfig      `mapstructure:"auth"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig contains network-level settings for the subscription
// listener.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ReadBufferSize  int           `mapstructure:"read_buffer_size"`
	WriteBufferSize int           `mapstructure:"write_buffer_size"`
}

// HubConfig controls the fan-out hub's sharding and per-session queueing.
type HubConfig struct {
	ShardCount       int `mapstructure:"shard_count"`
	QueueSize        int `mapstructure:"queue_size"`
	SessionQueueSize int `mapstructure:"session_queue_size"`
}

// LimitsConfig mirrors filter/limits.Limits in a viper-unmarshalable
// shape; internal/config's own package assembles the concrete
// limits.Limits value, keeping internal/filter/limits free of a viper
// dependency.
type LimitsConfig struct {
	FilterNameMaxLen   int `mapstructure:"filter_name_max_len"`
	FilterNameMaxCount int `mapstructure:"filter_name_max_count"`

	AccountsMax          int      `mapstructure:"accounts_max"`
	AccountsAny          bool     `mapstructure:"accounts_any"`
	AccountsAccountMax   int      `mapstructure:"accounts_account_max"`
	AccountsOwnerMax     int      `mapstructure:"accounts_owner_max"`
	AccountsDataSliceMax int      `mapstructure:"accounts_data_slice_max"`
	AccountsAccountReject []string `mapstructure:"accounts_account_reject"`
	AccountsOwnerReject   []string `mapstructure:"accounts_owner_reject"`

	SlotsMax int `mapstructure:"slots_max"`

	TransactionsMax               int `mapstructure:"transactions_max"`
	TransactionsAny               bool `mapstructure:"transactions_any"`
	TransactionsAccountIncludeMax int `mapstructure:"transactions_account_include_max"`
	TransactionsAccountExcludeMax int `mapstructure:"transactions_account_exclude_max"`
	TransactionsAccountRequiredMax int `mapstructure:"transactions_account_required_max"`

	TransactionsStatusMax               int `mapstructure:"transactions_status_max"`
	TransactionsStatusAny               bool `mapstructure:"transactions_status_any"`
	TransactionsStatusAccountIncludeMax int `mapstructure:"transactions_status_account_include_max"`
	TransactionsStatusAccountExcludeMax int `mapstructure:"transactions_status_account_exclude_max"`
	TransactionsStatusAccountRequiredMax int `mapstructure:"transactions_status_account_required_max"`

	EntriesMax int `mapstructure:"entries_max"`

	BlocksMax                 int  `mapstructure:"blocks_max"`
	BlocksAccountIncludeAny   bool `mapstructure:"blocks_account_include_any"`
	BlocksAccountIncludeMax   int  `mapstructure:"blocks_account_include_max"`
	BlocksIncludeTransactions bool `mapstructure:"blocks_include_transactions"`
	BlocksIncludeAccounts     bool `mapstructure:"blocks_include_accounts"`
	BlocksIncludeEntries      bool `mapstructure:"blocks_include_entries"`

	BlocksMetaMax int `mapstructure:"blocks_meta_max"`
}

// AuthConfig controls the bearer-token gate (spec.md §6 "Authentication").
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Secret  string `mapstructure:"secret"`
}

// RateLimitConfig controls the accept-loop admission limiter.
type RateLimitConfig struct {
	IPBurst     int     `mapstructure:"ip_burst"`
	IPRate      float64 `mapstructure:"ip_rate"`
	IPTTL       time.Duration `mapstructure:"ip_ttl"`
	GlobalBurst int     `mapstructure:"global_burst"`
	GlobalRate  float64 `mapstructure:"global_rate"`
}

// MetricsConfig controls the Prometheus diagnostics endpoint.
type MetricsConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	ListenAddr string `mapstructure:"listen_addr"`
	Endpoint   string `mapstructure:"endpoint"`
}

// LoggingConfig controls zap logger level/encoding.
type LoggingConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// Load reads configuration from environment variables and an optional
// config file, the way the teacher's viper setup does.
func Load() (Config, error) {
	v := viper.New()

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 10000)
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)
	v.SetDefault("server.idle_timeout", 120*time.Second)
	v.SetDefault("server.read_buffer_size", 16<<10)
	v.SetDefault("server.write_buffer_size", 16<<10)

	v.SetDefault("hub.shard_count", 64)
	v.SetDefault("hub.queue_size", 4096)
	v.SetDefault("hub.session_queue_size", 256)

	v.SetDefault("limits.filter_name_max_len", 64)
	v.SetDefault("limits.filter_name_max_count", 1024)
	v.SetDefault("limits.accounts_max", 100)
	v.SetDefault("limits.accounts_account_max", 100_000)
	v.SetDefault("limits.accounts_owner_max", 100_000)
	v.SetDefault("limits.accounts_data_slice_max", 10)
	v.SetDefault("limits.slots_max", 100)
	v.SetDefault("limits.transactions_max", 100)
	v.SetDefault("limits.transactions_account_include_max", 100_000)
	v.SetDefault("limits.transactions_account_exclude_max", 100_000)
	v.SetDefault("limits.transactions_account_required_max", 100_000)
	v.SetDefault("limits.transactions_status_max", 100)
	v.SetDefault("limits.transactions_status_account_include_max", 100_000)
	v.SetDefault("limits.transactions_status_account_exclude_max", 100_000)
	v.SetDefault("limits.transactions_status_account_required_max", 100_000)
	v.SetDefault("limits.entries_max", 100)
	v.SetDefault("limits.blocks_max", 100)
	v.SetDefault("limits.blocks_account_include_max", 100_000)
	v.SetDefault("limits.blocks_include_transactions", true)
	v.SetDefault("limits.blocks_include_accounts", true)
	v.SetDefault("limits.blocks_include_entries", true)
	v.SetDefault("limits.blocks_meta_max", 100)

	v.SetDefault("auth.enabled", false)

	v.SetDefault("rate_limit.ip_burst", 10)
	v.SetDefault("rate_limit.ip_rate", 1.0)
	v.SetDefault("rate_limit.ip_ttl", 5*time.Minute)
	v.SetDefault("rate_limit.global_burst", 300)
	v.SetDefault("rate_limit.global_rate", 50.0)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.listen_addr", ":9095")
	v.SetDefault("metrics.endpoint", "/metrics")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.development", false)

	v.SetConfigName("fanout")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.SetEnvPrefix("FANOUT")
	v.AutomaticEnv()

	_ = v.ReadInConfig()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config unmarshal: %w", err)
	}

	if cfg.Hub.ShardCount <= 0 {
		cfg.Hub.ShardCount = 64
	}
	if cfg.Hub.SessionQueueSize <= 0 {
		cfg.Hub.SessionQueueSize = 256
	}

	return cfg, nil
}
