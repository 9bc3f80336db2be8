package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Environment string         `mapstructure:"environment" validate:"oneof=dev prod test"`
	Server      ServerConfig   `mapstructure:"server"`
	Binance     BinanceConfig  `mapstructure:"binance"`
	Session     SessionConfig  `mapstructure:"session"`
	Symbols     SymbolsConfig  `mapstructure:"symbols"`
	Log         LogConfig      `mapstructure:"log"`
	Postgres    PostgresConfig `mapstructure:"postgres"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port" validate:"gt=0,lte=65535"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	SendBuffer      int           `mapstructure:"send_buffer" validate:"gt=0"`
	WriteWait       time.Duration `mapstructure:"write_wait" validate:"gt=0"`
	PongWait        time.Duration `mapstructure:"pong_wait" validate:"gt=0"`
	PingPeriod      time.Duration `mapstructure:"ping_period" validate:"gt=0,ltfield=PongWait"`
	MaxMessageSize  int64         `mapstructure:"max_message_size" validate:"gt=0"`
}

type BinanceConfig struct {
	REST RESTConfig `mapstructure:"rest"`
	WS   WSConfig   `mapstructure:"ws"`
}

type RESTConfig struct {
	BaseURL           string        `mapstructure:"base_url" validate:"required,url"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
	APIKey            string        `mapstructure:"api_key"`
}

type WSConfig struct {
	URL                  string        `mapstructure:"url" validate:"required,url"`
	HandshakeTimeout     time.Duration `mapstructure:"handshake_timeout"`
	ReadTimeout          time.Duration `mapstructure:"read_timeout"`
	WriteTimeout         time.Duration `mapstructure:"write_timeout"`
	PingInterval         time.Duration `mapstructure:"ping_interval"`
	ReconnectDelay       time.Duration `mapstructure:"reconnect_delay" validate:"gt=0"`
	MaxReconnectAttempts int           `mapstructure:"max_reconnect_attempts" validate:"gt=0"`
	MaxReconnectDelay    time.Duration `mapstructure:"max_reconnect_delay"` // 0 means uncapped
}

type SessionConfig struct {
	MaxTradeBuffer             int           `mapstructure:"max_trade_buffer" validate:"gte=2"`
	MaxFootprintHistory        int           `mapstructure:"max_footprint_history" validate:"gt=0"`
	TradeHistorySize           int           `mapstructure:"trade_history_size" validate:"gte=2"`
	ResubscribeGrace           time.Duration `mapstructure:"resubscribe_grace"`
	SupportResistanceThreshold float64       `mapstructure:"support_resistance_threshold" validate:"gt=0,lte=1"`
	InboxSize                  int           `mapstructure:"inbox_size" validate:"gt=0"`
}

type SymbolsConfig struct {
	RefreshOnStart bool   `mapstructure:"refresh_on_start"`
	DailyRefresh   bool   `mapstructure:"daily_refresh"`
	QuoteAsset     string `mapstructure:"quote_asset"`
}

// LogConfig defines the logger configuration options.
type LogConfig struct {
	Level       string `mapstructure:"level"`       // log level: "debug", "info", "warn", "error"
	Format      string `mapstructure:"format"`      // log format: "json" or "console"
	OutputFile  string `mapstructure:"output_file"` // file path to store logs (optional)
	Environment string `mapstructure:"environment"` // environment: "dev" or "prod"
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "dev")

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 4000)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.allowed_origins", []string{})
	v.SetDefault("server.send_buffer", 256)
	v.SetDefault("server.write_wait", 10*time.Second)
	v.SetDefault("server.pong_wait", 60*time.Second)
	v.SetDefault("server.ping_period", 54*time.Second)
	v.SetDefault("server.max_message_size", 64*1024)

	v.SetDefault("binance.rest.base_url", "https://api.binance.com")
	v.SetDefault("binance.rest.timeout", 10*time.Second)
	v.SetDefault("binance.rest.requests_per_second", 10)
	v.SetDefault("binance.rest.burst", 10)
	v.SetDefault("binance.rest.api_key", "")

	v.SetDefault("binance.ws.url", "wss://stream.binance.com:9443")
	v.SetDefault("binance.ws.handshake_timeout", 10*time.Second)
	v.SetDefault("binance.ws.read_timeout", 5*time.Minute)
	v.SetDefault("binance.ws.write_timeout", 10*time.Second)
	v.SetDefault("binance.ws.ping_interval", time.Minute)
	v.SetDefault("binance.ws.reconnect_delay", 3*time.Second)
	v.SetDefault("binance.ws.max_reconnect_attempts", 10)
	v.SetDefault("binance.ws.max_reconnect_delay", 0)

	v.SetDefault("session.max_trade_buffer", 10000)
	v.SetDefault("session.max_footprint_history", 500)
	v.SetDefault("session.trade_history_size", 50000)
	v.SetDefault("session.resubscribe_grace", 100*time.Millisecond)
	v.SetDefault("session.support_resistance_threshold", 0.1)
	v.SetDefault("session.inbox_size", 256)

	v.SetDefault("symbols.refresh_on_start", false)
	v.SetDefault("symbols.daily_refresh", false)
	v.SetDefault("symbols.quote_asset", "USDT")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.output_file", "")

	v.SetDefault("postgres.enabled", false)
	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "postgres")
	v.SetDefault("postgres.password", "")
	v.SetDefault("postgres.dbname", "flowrelay")
	v.SetDefault("postgres.sslmode", "disable")
	v.SetDefault("postgres.timezone", "UTC")
	v.SetDefault("postgres.max_open_conns", 10)
	v.SetDefault("postgres.max_idle_conns", 5)
	v.SetDefault("postgres.conn_max_lifetime", 30*time.Minute)
	v.SetDefault("postgres.ssm.host", "FLOWRELAY_DB_HOST")
	v.SetDefault("postgres.ssm.user", "FLOWRELAY_DB_USER")
	v.SetDefault("postgres.ssm.password", "FLOWRELAY_DB_PASSWORD")
}

// Load loads application configuration using Viper.
// It reads from config.yaml and overrides with environment variables.
func Load() *Config {
	cfg, err := LoadFrom()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

// LoadFrom reads config.yaml from the given directories (or the default search path when none
// are given), applies .env and environment overrides, and validates the result. A missing
// config file is not an error: every key has a default.
func LoadFrom(paths ...string) (*Config, error) {
	// .env is optional
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config") // config.yaml
	v.SetConfigType("yaml")
	if len(paths) == 0 {
		paths = defaultSearchPaths()
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	// Support environment variables with dot notation (e.g., BINANCE_WS_URL)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// Shorter names kept for compatibility with existing deployments
	_ = v.BindEnv("binance.rest.api_key", "BINANCE_REST_API_KEY", "BINANCE_API_KEY")
	_ = v.BindEnv("binance.rest.base_url", "BINANCE_REST_BASE_URL", "BINANCE_REST_URL")
	_ = v.BindEnv("server.port", "SERVER_PORT", "PORT")
	_ = v.BindEnv("server.host", "SERVER_HOST", "HOST")
	_ = v.BindEnv("log.environment", "LOG_ENVIRONMENT")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if cfg.Log.Environment == "" {
		cfg.Log.Environment = cfg.Environment
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func defaultSearchPaths() []string {
	paths := []string{".", "./config"}

	ex, _ := os.Executable()
	if strings.Contains(ex, "go-build") {
		// go run / go test
		pwd, _ := os.Getwd()
		paths = append(paths, filepath.Join(pwd, "../config"), filepath.Join(pwd, "../../config"))
	} else {
		paths = append(paths, filepath.Join(filepath.Dir(ex), "../config"))
	}
	return paths
}
