package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Binance  Binance  `mapstructure:"binance"`
	Bot      Bot      `mapstructure:"bot"`
	Logger   Logger   `mapstructure:"logger"`
	Server   Server   `mapstructure:"server"`
	Database Database `mapstructure:"database"`
	Security Security `mapstructure:"security"`
}

// Binance holds the configuration for the Binance API.
// Credentials are per user and live in the database, not here.
type Binance struct {
	BaseURL        string        `mapstructure:"base_url"`
	Testnet        bool          `mapstructure:"testnet"`
	RateLimit      float64       `mapstructure:"rate_limit"`
	RateLimitBurst int           `mapstructure:"rate_limit_burst"`
	Timeout        time.Duration `mapstructure:"timeout"`
	RecvWindow     int64         `mapstructure:"recv_window"`
	MaxRetries     int           `mapstructure:"max_retries"`
}

// Bot holds the configuration for the trading cycle.
type Bot struct {
	Simulation    bool          `mapstructure:"simulation"`
	Interval      time.Duration `mapstructure:"interval"`
	KlineInterval string        `mapstructure:"kline_interval"`
	KlineLimit    int           `mapstructure:"kline_limit"`
	MinCandles    int           `mapstructure:"min_candles"`
	Workers       int           `mapstructure:"workers"`
	SignalRule    string        `mapstructure:"signal_rule"`
	RSIOverbought float64       `mapstructure:"rsi_overbought"`
	RSIPeriod     int           `mapstructure:"rsi_period"`
	FeeRate       float64       `mapstructure:"fee_rate"`
}

// Server holds the configuration for the status server.
type Server struct {
	Port int `mapstructure:"port"`
}

// Database holds the configuration for the database.
type Database struct {
	DSN string `mapstructure:"dsn"`
}

// Security holds the key used to decrypt stored exchange credentials.
// An empty key means credentials are stored in plain text.
type Security struct {
	EncryptionKey string `mapstructure:"encryption_key"`
}

// Logger holds the configuration for the logger.
type Logger struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(path string) (config Config, err error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yml")

	// Allow environment variables to override config file
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err = v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return
		}
		err = nil
	}

	err = v.Unmarshal(&config)
	return
}

// setDefaults registers every key, so AutomaticEnv can override it even
// without a config file.
func setDefaults(v *viper.Viper) {
	v.SetDefault("binance.base_url", "")
	v.SetDefault("binance.testnet", false)
	v.SetDefault("binance.rate_limit", 20)      // requests per second
	v.SetDefault("binance.rate_limit_burst", 5) // burst size
	v.SetDefault("binance.timeout", 10*time.Second)
	v.SetDefault("binance.recv_window", 5000)
	v.SetDefault("binance.max_retries", 3)

	v.SetDefault("bot.simulation", true)
	v.SetDefault("bot.interval", 30*time.Second)
	v.SetDefault("bot.kline_interval", "5m")
	v.SetDefault("bot.kline_limit", 50)
	v.SetDefault("bot.min_candles", 20)
	v.SetDefault("bot.workers", 4)
	v.SetDefault("bot.signal_rule", "all")
	v.SetDefault("bot.rsi_overbought", 70)
	v.SetDefault("bot.rsi_period", 14)
	v.SetDefault("bot.fee_rate", 0)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("server.port", 8080)
	v.SetDefault("database.dsn", "bot.db")
	v.SetDefault("security.encryption_key", "")
}
