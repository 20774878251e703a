package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/SetProtocol/set-protocol-strategies-sub003/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   logging.Config  `mapstructure:"logging"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Ethereum  EthereumConfig  `mapstructure:"ethereum"`
	Feed      FeedConfig      `mapstructure:"feed"`
	Analytics AnalyticsConfig `mapstructure:"analytics"`
	Trigger   TriggerConfig   `mapstructure:"trigger"`
	Band      BandConfig      `mapstructure:"band"`
	Alerting  AlertingConfig  `mapstructure:"alerting"`
	Export    ExportConfig    `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsPath  string        `mapstructure:"migrations_path"`
}

// SchedulerConfig governs the check loop. The check interval is finer than
// feed.update_interval so confirmation windows opening mid-interval are
// still reachable; the feed's own admission gate rejects early pokes.
type SchedulerConfig struct {
	CheckInterval   time.Duration `mapstructure:"check_interval"`
	AlignToSlot     bool          `mapstructure:"align_to_slot"`
	AdvisoryLockKey int64         `mapstructure:"advisory_lock_key"`
	StartupDelay    time.Duration `mapstructure:"startup_delay"`
}

// EthereumConfig covers on-chain data access.
type EthereumConfig struct {
	RPCURL            string        `mapstructure:"rpc_url"`
	MedianizerAddress string        `mapstructure:"medianizer_address"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout"`
}

// FeedConfig parameterises the historical price feed.
type FeedConfig struct {
	UpdateInterval         time.Duration `mapstructure:"update_interval"`
	MaxDataPoints          int           `mapstructure:"max_data_points"`
	Description            string        `mapstructure:"description"`
	InterpolationThreshold time.Duration `mapstructure:"interpolation_threshold"`
}

// AnalyticsConfig sizes the derived-oracle windows.
type AnalyticsConfig struct {
	MovingAverageWindow int `mapstructure:"moving_average_window"`
	RSIPeriod           int `mapstructure:"rsi_period"`
}

// TriggerConfig bounds the crossover confirmation window.
type TriggerConfig struct {
	ConfirmationMinTime time.Duration `mapstructure:"confirmation_min_time"`
	ConfirmationMaxTime time.Duration `mapstructure:"confirmation_max_time"`
	InitialBullish      bool          `mapstructure:"initial_bullish"`
}

// BandConfig parameterises the RSI band trigger.
type BandConfig struct {
	LowerBound        int64 `mapstructure:"lower_bound"`
	UpperBound        int64 `mapstructure:"upper_bound"`
	InitialAllocation int64 `mapstructure:"initial_allocation"`
	Hysteretic        bool  `mapstructure:"hysteretic"`
}

// AlertingConfig defines alert routing.
type AlertingConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Channels []string       `mapstructure:"channels"`
	Telegram TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig describes Telegram delivery parameters.
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	APIBase  string `mapstructure:"api_base"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("TRENDWATCHER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "trendwatcher")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("scheduler.check_interval", "1h")
	v.SetDefault("scheduler.align_to_slot", true)
	v.SetDefault("scheduler.advisory_lock_key", int64(0x74726e64))
	v.SetDefault("scheduler.startup_delay", "0s")

	v.SetDefault("ethereum.request_timeout", "10s")

	v.SetDefault("feed.update_interval", "24h")
	v.SetDefault("feed.max_data_points", 200)
	v.SetDefault("feed.description", "eth_usd_daily")
	v.SetDefault("feed.interpolation_threshold", "6h")

	v.SetDefault("analytics.moving_average_window", 20)
	v.SetDefault("analytics.rsi_period", 14)

	v.SetDefault("trigger.confirmation_min_time", "6h")
	v.SetDefault("trigger.confirmation_max_time", "12h")
	v.SetDefault("trigger.initial_bullish", false)

	v.SetDefault("band.lower_bound", 40)
	v.SetDefault("band.upper_bound", 60)
	v.SetDefault("band.initial_allocation", 0)
	v.SetDefault("band.hysteretic", true)

	v.SetDefault("alerting.enabled", false)
	v.SetDefault("alerting.channels", []string{"telegram"})
	v.SetDefault("alerting.telegram.enabled", false)
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")

	v.SetDefault("export.max_data_points", 100000)

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.migrations_path", "migrations")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Feed.UpdateInterval <= 0 {
		return fmt.Errorf("feed.update_interval must be greater than zero")
	}
	if c.Scheduler.CheckInterval <= 0 {
		return fmt.Errorf("scheduler.check_interval must be greater than zero")
	}
	if c.Scheduler.CheckInterval > c.Feed.UpdateInterval {
		return fmt.Errorf("scheduler.check_interval cannot exceed feed.update_interval")
	}
	if c.Feed.MaxDataPoints <= 0 {
		return fmt.Errorf("feed.max_data_points must be greater than zero")
	}
	if c.Feed.InterpolationThreshold < 0 {
		return fmt.Errorf("feed.interpolation_threshold cannot be negative")
	}
	if c.Analytics.MovingAverageWindow <= 0 {
		return fmt.Errorf("analytics.moving_average_window must be greater than zero")
	}
	if c.Analytics.MovingAverageWindow > c.Feed.MaxDataPoints {
		return fmt.Errorf("analytics.moving_average_window cannot exceed feed.max_data_points")
	}
	if c.Analytics.RSIPeriod <= 0 {
		return fmt.Errorf("analytics.rsi_period must be greater than zero")
	}
	if c.Analytics.RSIPeriod+1 > c.Feed.MaxDataPoints {
		return fmt.Errorf("analytics.rsi_period requires more history than feed.max_data_points")
	}
	if c.Trigger.ConfirmationMinTime > c.Trigger.ConfirmationMaxTime {
		return fmt.Errorf("trigger.confirmation_min_time cannot exceed confirmation_max_time")
	}
	if c.Band.LowerBound > c.Band.UpperBound {
		return fmt.Errorf("band.lower_bound cannot exceed band.upper_bound")
	}
	if c.Band.InitialAllocation != 0 && c.Band.InitialAllocation != 100 {
		return fmt.Errorf("band.initial_allocation must be 0 or 100")
	}
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	if c.Alerting.Telegram.Enabled {
		if c.Alerting.Telegram.BotToken == "" {
			return fmt.Errorf("alerting.telegram.bot_token is required")
		}
		if c.Alerting.Telegram.ChatID == "" {
			return fmt.Errorf("alerting.telegram.chat_id is required")
		}
	}
	return nil
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}
