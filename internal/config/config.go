// Package config defines all configuration for the exchange, loaded from a
// YAML file with EXCHANGE_* environment variable overrides, adapted from
// the teacher pack's viper-based config.Load (0xtitan6-polymarket-mm).
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the top-level configuration, mapped directly from YAML.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Matching    MatchingConfig    `mapstructure:"matching"`
	Exchange    ExchangeConfig    `mapstructure:"exchange"`
	Coordinator CoordinatorConfig `mapstructure:"coordinator"`
	Fanout      FanoutConfig      `mapstructure:"fanout"`
	Fees        map[string]FeeConfig        `mapstructure:"fees"`
	Roles       map[string]RoleConfig       `mapstructure:"roles"`
	Phases      PhasesConfig      `mapstructure:"phases"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

type ServerConfig struct {
	ListenAddr string `mapstructure:"listen_addr"`
	MetricsAddr string `mapstructure:"metrics_addr"`
}

// MatchingConfig selects the matching engine and its pricing strategy
// (only consulted when Mode is "batch").
type MatchingConfig struct {
	Mode                 string `mapstructure:"mode"`                   // continuous | batch
	BatchPricingStrategy string `mapstructure:"batch_pricing_strategy"` // equilibrium | maximum_volume
}

type ExchangeConfig struct {
	PhaseCheckIntervalMs int  `mapstructure:"phase_check_interval_ms"`
	OrderQueueTimeoutMs  int  `mapstructure:"order_queue_timeout_ms"`
	AllowSelfTrade       bool `mapstructure:"allow_self_trade"`
	QueueDepth           int  `mapstructure:"queue_depth"`
}

type CoordinatorConfig struct {
	DefaultTimeoutMs     int `mapstructure:"default_timeout_ms"`
	MaxPendingRequests   int `mapstructure:"max_pending_requests"`
	CleanupIntervalMs    int `mapstructure:"cleanup_interval_ms"`
	CleanupTTLMs         int `mapstructure:"cleanup_ttl_ms"`
}

type FanoutConfig struct {
	SubscriberBufferSize int `mapstructure:"subscriber_buffer_size"`
}

// FeeConfig is one role's maker/taker schedule, keyed by role name in the
// Fees map.
type FeeConfig struct {
	MakerRebate string `mapstructure:"maker_rebate"`
	TakerFee    string `mapstructure:"taker_fee"`
}

// ConstraintConfig is one typed constraint entry in a role's list; only
// the fields relevant to Kind are populated, mirroring the way the venue
// constructs constraints.Constraint.
type ConstraintConfig struct {
	Kind                      string   `mapstructure:"kind"`
	MaxAbsolutePosition       int64    `mapstructure:"max_absolute_position"`
	Symmetric                 bool     `mapstructure:"symmetric"`
	MaxPortfolioAbsolute      int64    `mapstructure:"max_portfolio_absolute"`
	MinOrderQuantity          int64    `mapstructure:"min_order_quantity"`
	MaxOrderQuantity          int64    `mapstructure:"max_order_quantity"`
	MaxOrdersPerSecond        int      `mapstructure:"max_orders_per_second"`
	AllowedOrderTypes         []string `mapstructure:"allowed_order_types"`
	AllowedInstruments        []string `mapstructure:"allowed_instruments"`
	AllowedPhases             []string `mapstructure:"allowed_phases"`
	MinPrice                  string   `mapstructure:"min_price"`
	MaxPrice                  string   `mapstructure:"max_price"`
}

// RoleConfig is a role's ordered constraint list.
type RoleConfig struct {
	Constraints []ConstraintConfig `mapstructure:"constraints"`
}

// PhaseIntervalConfig is one {start, end, phase} schedule entry; Start and
// End are "HH:MM" wall-clock strings.
type PhaseIntervalConfig struct {
	Start string `mapstructure:"start"`
	End   string `mapstructure:"end"`
	Phase string `mapstructure:"phase"`
}

type PhasesConfig struct {
	Schedule []PhaseIntervalConfig `mapstructure:"schedule"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads config from a YAML file with EXCHANGE_* env var overrides
// and applies defaults for every key spec.md §6 lists.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	v.SetEnvPrefix("EXCHANGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.listen_addr", ":8080")
	v.SetDefault("server.metrics_addr", ":9090")
	v.SetDefault("matching.mode", "continuous")
	v.SetDefault("matching.batch_pricing_strategy", "maximum_volume")
	v.SetDefault("exchange.phase_check_interval_ms", 100)
	v.SetDefault("exchange.order_queue_timeout_ms", 10)
	v.SetDefault("exchange.queue_depth", 1024)
	v.SetDefault("exchange.allow_self_trade", true)
	v.SetDefault("coordinator.default_timeout_ms", 5000)
	v.SetDefault("coordinator.max_pending_requests", 1000)
	v.SetDefault("coordinator.cleanup_interval_ms", 30000)
	v.SetDefault("coordinator.cleanup_ttl_ms", 60000)
	v.SetDefault("fanout.subscriber_buffer_size", 256)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Validate checks required fields and value ranges.
func (c *Config) Validate() error {
	switch c.Matching.Mode {
	case "continuous", "batch":
	default:
		return fmt.Errorf("matching.mode must be one of: continuous, batch")
	}
	if c.Matching.Mode == "batch" {
		switch c.Matching.BatchPricingStrategy {
		case "equilibrium", "maximum_volume":
		default:
			return fmt.Errorf("matching.batch_pricing_strategy must be one of: equilibrium, maximum_volume")
		}
	}
	if c.Exchange.PhaseCheckIntervalMs <= 0 {
		return fmt.Errorf("exchange.phase_check_interval_ms must be > 0")
	}
	if c.Coordinator.MaxPendingRequests <= 0 {
		return fmt.Errorf("coordinator.max_pending_requests must be > 0")
	}
	if len(c.Phases.Schedule) == 0 {
		return fmt.Errorf("phases.schedule must have at least one interval")
	}
	return nil
}

func (c *ExchangeConfig) PhaseCheckInterval() time.Duration {
	return time.Duration(c.PhaseCheckIntervalMs) * time.Millisecond
}

func (c *ExchangeConfig) OrderQueueTimeout() time.Duration {
	return time.Duration(c.OrderQueueTimeoutMs) * time.Millisecond
}

func (c *CoordinatorConfig) DefaultTimeout() time.Duration {
	return time.Duration(c.DefaultTimeoutMs) * time.Millisecond
}

func (c *CoordinatorConfig) CleanupInterval() time.Duration {
	return time.Duration(c.CleanupIntervalMs) * time.Millisecond
}

func (c *CoordinatorConfig) CleanupTTL() time.Duration {
	return time.Duration(c.CleanupTTLMs) * time.Millisecond
}
