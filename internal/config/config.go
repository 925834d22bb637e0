package config

import (
	"log"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Exchange ExchangeConfig `mapstructure:"exchange"`
	Risk     RiskConfig     `mapstructure:"risk"`
	Breaker  BreakerConfig  `mapstructure:"breaker"`
	Arena    ArenaConfig    `mapstructure:"arena"`
	Oracle   OracleConfig   `mapstructure:"oracle"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Database DatabaseConfig `mapstructure:"database"`
	Stream   StreamConfig   `mapstructure:"stream"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	LogLevel string         `mapstructure:"log_level"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
}

type ExchangeConfig struct {
	BaseURL       string `mapstructure:"base_url"`
	ApiKey        string `mapstructure:"api_key"`
	ApiSecret     string `mapstructure:"api_secret"`
	ApiPassphrase string `mapstructure:"api_passphrase"`
	TimeoutMs     int    `mapstructure:"timeout_ms"`

	// Token bucket sizing. Rates are tokens per second.
	ConnCapacity      float64 `mapstructure:"conn_capacity"`
	ConnRefillRate    float64 `mapstructure:"conn_refill_rate"`
	AccountCapacity   float64 `mapstructure:"account_capacity"`
	AccountRefillRate float64 `mapstructure:"account_refill_rate"`
	OrderCapacity     float64 `mapstructure:"order_capacity"`
	OrderRefillRate   float64 `mapstructure:"order_refill_rate"`
}

type RiskConfig struct {
	MaxLeverage           int     `mapstructure:"max_leverage"`            // global hard cap
	ConfiguredLeverageCap int     `mapstructure:"configured_leverage_cap"` // operator-set cap
	MaxPositionSizePct    float64 `mapstructure:"max_position_size_pct"`
	MinPositionSizePct    float64 `mapstructure:"min_position_size_pct"`
	BasePositionPct       float64 `mapstructure:"base_position_pct"`
	MinConfidence         float64 `mapstructure:"min_confidence"`
	MinAgreement          int     `mapstructure:"min_agreement"`
	FallbackTakeProfitPct float64 `mapstructure:"fallback_take_profit_pct"`
	FallbackStopLossPct   float64 `mapstructure:"fallback_stop_loss_pct"`
	MaxStopDistancePct    float64 `mapstructure:"max_stop_distance_pct"`
	MarginMode            string  `mapstructure:"margin_mode"`
}

type BreakerConfig struct {
	BenchmarkSymbol   string  `mapstructure:"benchmark_symbol"`
	YellowMovePct     float64 `mapstructure:"yellow_move_pct"`
	OrangeMovePct     float64 `mapstructure:"orange_move_pct"`
	RedMovePct        float64 `mapstructure:"red_move_pct"`
	YellowDrawdownPct float64 `mapstructure:"yellow_drawdown_pct"`
	OrangeDrawdownPct float64 `mapstructure:"orange_drawdown_pct"`
	RedDrawdownPct    float64 `mapstructure:"red_drawdown_pct"`
	YellowFundingPct  float64 `mapstructure:"yellow_funding_pct"`
	OrangeFundingPct  float64 `mapstructure:"orange_funding_pct"`
	RedFundingPct     float64 `mapstructure:"red_funding_pct"`
}

type ArenaConfig struct {
	Selectors       []string `mapstructure:"selectors"`
	Universe        []string `mapstructure:"universe"`
	StageTimeoutMs  int      `mapstructure:"stage_timeout_ms"`
	BatchIntervalMs int      `mapstructure:"batch_interval_ms"`
	ComplianceWords int      `mapstructure:"compliance_words"`
}

type OracleConfig struct {
	BaseURL   string `mapstructure:"base_url"`
	TimeoutMs int    `mapstructure:"timeout_ms"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type DatabaseConfig struct {
	DSN string `mapstructure:"dsn"`
}

type StreamConfig struct {
	MaxSubscriptions  int `mapstructure:"max_subscriptions"`
	MaxFrameBytes     int `mapstructure:"max_frame_bytes"`
	PingIntervalSec   int `mapstructure:"ping_interval_sec"`
	PongTimeoutSec    int `mapstructure:"pong_timeout_sec"`
	ShutdownTimeoutMs int `mapstructure:"shutdown_timeout_ms"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./configs")

	// Environment variables support, e.g. ARENA_EXCHANGE_API_KEY
	viper.SetEnvPrefix("arena")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("server.port", "8080")
	viper.SetDefault("log_level", "info")

	viper.SetDefault("exchange.base_url", "https://fapi.hypercore.exchange")
	viper.SetDefault("exchange.timeout_ms", 10000)
	viper.SetDefault("exchange.conn_capacity", 300)
	viper.SetDefault("exchange.conn_refill_rate", 30)
	viper.SetDefault("exchange.account_capacity", 120)
	viper.SetDefault("exchange.account_refill_rate", 10)
	viper.SetDefault("exchange.order_capacity", 5)
	viper.SetDefault("exchange.order_refill_rate", 5)

	viper.SetDefault("risk.max_leverage", 5)
	viper.SetDefault("risk.configured_leverage_cap", 5)
	viper.SetDefault("risk.max_position_size_pct", 20.0)
	viper.SetDefault("risk.min_position_size_pct", 1.0)
	viper.SetDefault("risk.base_position_pct", 10.0)
	viper.SetDefault("risk.min_confidence", 60.0)
	viper.SetDefault("risk.min_agreement", 2)
	viper.SetDefault("risk.fallback_take_profit_pct", 5.0)
	viper.SetDefault("risk.fallback_stop_loss_pct", 3.0)
	viper.SetDefault("risk.max_stop_distance_pct", 8.0)
	viper.SetDefault("risk.margin_mode", "isolated")

	viper.SetDefault("breaker.benchmark_symbol", "BTCUSDT")
	viper.SetDefault("breaker.yellow_move_pct", 5.0)
	viper.SetDefault("breaker.orange_move_pct", 7.0)
	viper.SetDefault("breaker.red_move_pct", 10.0)
	viper.SetDefault("breaker.yellow_drawdown_pct", 7.0)
	viper.SetDefault("breaker.orange_drawdown_pct", 10.0)
	viper.SetDefault("breaker.red_drawdown_pct", 15.0)
	viper.SetDefault("breaker.yellow_funding_pct", 0.15)
	viper.SetDefault("breaker.orange_funding_pct", 0.2)
	viper.SetDefault("breaker.red_funding_pct", 0.3)

	viper.SetDefault("arena.selectors", []string{"selector-macro", "selector-flow", "selector-derivs"})
	viper.SetDefault("arena.universe", []string{
		"BTCUSDT", "ETHUSDT", "SOLUSDT", "BNBUSDT",
		"UNIUSDT", "AAVEUSDT", "LINKUSDT",
		"ARBUSDT", "OPUSDT",
		"DOGEUSDT", "PEPEUSDT",
	})
	viper.SetDefault("arena.stage_timeout_ms", 45000)
	viper.SetDefault("arena.batch_interval_ms", 2000)
	viper.SetDefault("arena.compliance_words", 500)

	viper.SetDefault("oracle.base_url", "http://localhost:9090")
	viper.SetDefault("oracle.timeout_ms", 60000)

	viper.SetDefault("stream.max_subscriptions", 50)
	viper.SetDefault("stream.max_frame_bytes", 65536)
	viper.SetDefault("stream.ping_interval_sec", 15)
	viper.SetDefault("stream.pong_timeout_sec", 45)
	viper.SetDefault("stream.shutdown_timeout_ms", 5000)

	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.path", "/metrics")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Println("No config file found, using defaults and env vars")
		} else {
			return nil, err
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
