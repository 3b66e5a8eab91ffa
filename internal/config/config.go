package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Config stores all configuration for both binaries.
// The values are read by viper from a config file or environment variables.
type Config struct {
	LogLevel  string `mapstructure:"log_level"`
	Monitor   MonitorConfig
	Facade    FacadeConfig
	Gateway   GatewayConfig
	Database  DatabaseConfig
	Exchanges map[string]ExchangeConfig
}

// MonitorConfig defines the synchronization core settings.
type MonitorConfig struct {
	GatewayURL     string        `mapstructure:"gateway_url"`
	PollInterval   time.Duration `mapstructure:"poll_interval"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	ToggleTimeout  time.Duration `mapstructure:"toggle_timeout"`
	BaseCurrency   string        `mapstructure:"base_currency"`
	MaxSignals     int           `mapstructure:"max_signals"`
	MaxTrades      int           `mapstructure:"max_trades"`
}

// FacadeConfig defines the read/toggle HTTP surface of the monitor.
type FacadeConfig struct {
	Addr        string  `mapstructure:"addr"`
	ToggleRate  float64 `mapstructure:"toggle_rate"`
	ToggleBurst int     `mapstructure:"toggle_burst"`
}

// GatewayConfig defines the reference account gateway settings.
type GatewayConfig struct {
	Addr         string         `mapstructure:"addr"`
	BaseCurrency string         `mapstructure:"base_currency"`
	MaxTrades    int            `mapstructure:"max_trades"`
	TradesFile   string         `mapstructure:"trades_file"`
	SignalsFile  string         `mapstructure:"signals_file"`
	Wallets      []WalletConfig `mapstructure:"wallets"`
}

// WalletConfig describes one balance held at the venue.
type WalletConfig struct {
	Symbol     string  `mapstructure:"symbol"`
	Name       string  `mapstructure:"name"`
	Balance    float64 `mapstructure:"balance"`
	EntryPrice float64 `mapstructure:"entry_price"`
	ShadowTP   float64 `mapstructure:"shadow_tp"`
	DeadZoneSL float64 `mapstructure:"dead_zone_sl"`
}

// DatabaseConfig defines the audit journal connection settings.
type DatabaseConfig struct {
	Enabled  bool
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
}

// DSN builds a postgres connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s", d.User, d.Password, d.Host, d.Port, d.DBName)
}

// ExchangeConfig defines settings for a specific exchange price stream.
type ExchangeConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Pairs   []string `mapstructure:"pairs"`
}

// LoadConfig reads configuration from file or environment variables.
// A missing config file is not an error, defaults apply.
func LoadConfig(path string) (config Config, err error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err = v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return config, errors.Wrap(err, "read config")
		}
	}

	if err = v.Unmarshal(&config); err != nil {
		return config, errors.Wrap(err, "unmarshal config")
	}

	config.Monitor.BaseCurrency = strings.ToUpper(strings.TrimSpace(config.Monitor.BaseCurrency))
	config.Gateway.BaseCurrency = strings.ToUpper(strings.TrimSpace(config.Gateway.BaseCurrency))

	err = config.Validate()
	return
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")

	v.SetDefault("monitor.gateway_url", "http://localhost:8080")
	v.SetDefault("monitor.poll_interval", 5*time.Second)
	v.SetDefault("monitor.request_timeout", 4*time.Second)
	v.SetDefault("monitor.toggle_timeout", 10*time.Second)
	v.SetDefault("monitor.base_currency", "EUR")
	v.SetDefault("monitor.max_signals", 10)
	v.SetDefault("monitor.max_trades", 20)

	v.SetDefault("facade.addr", ":8090")
	v.SetDefault("facade.toggle_rate", 1.0)
	v.SetDefault("facade.toggle_burst", 3)

	v.SetDefault("gateway.addr", ":8080")
	v.SetDefault("gateway.base_currency", "EUR")
	v.SetDefault("gateway.max_trades", 20)

	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "sentinel")
	v.SetDefault("database.dbname", "sentinel")
}

// Validate rejects settings the loop cannot run with.
func (c Config) Validate() error {
	if c.Monitor.PollInterval <= 0 {
		return errors.New("monitor.poll_interval must be positive")
	}
	if c.Monitor.RequestTimeout <= 0 {
		return errors.New("monitor.request_timeout must be positive")
	}
	if c.Monitor.ToggleTimeout <= 0 {
		return errors.New("monitor.toggle_timeout must be positive")
	}
	if c.Monitor.BaseCurrency == "" {
		return errors.New("monitor.base_currency is required")
	}
	if c.Gateway.BaseCurrency == "" {
		return errors.New("gateway.base_currency is required")
	}
	if c.Facade.ToggleRate <= 0 || c.Facade.ToggleBurst <= 0 {
		return errors.New("facade.toggle_rate and facade.toggle_burst must be positive")
	}
	return nil
}

// Level maps log_level to a slog level. Unknown values fall back to info.
func (c Config) Level() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
