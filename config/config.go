package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

type Config struct {
	Environment string         `mapstructure:"environment" validate:"oneof=dev prod"`
	Log         LogConfig      `mapstructure:"log"`
	Monitor     MonitorConfig  `mapstructure:"monitor"`
	Source      SourceConfig   `mapstructure:"source"`
	Dispatch    DispatchConfig `mapstructure:"dispatch"`
	Telegram    TelegramConfig `mapstructure:"telegram"`
	SMS         SMSConfig      `mapstructure:"sms"`
	Relay       RelayConfig    `mapstructure:"relay"`
	Kafka       KafkaConfig    `mapstructure:"kafka"`
	State       StateConfig    `mapstructure:"state"`
	Redis       RedisConfig    `mapstructure:"redis"`
	Postgres    PostgresConfig `mapstructure:"postgres"`
	Server      ServerConfig   `mapstructure:"server"`
}

// LogConfig defines the logger configuration options.
type LogConfig struct {
	Level      string `mapstructure:"level"`       // log level: "debug", "info", "warn", "error"
	Format     string `mapstructure:"format"`      // log format: "json" or "console"
	OutputFile string `mapstructure:"output_file"` // file path to store logs (optional)
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

type MonitorConfig struct {
	Interval    time.Duration `mapstructure:"interval" validate:"gt=0"` // pause between the end of one sweep and the next
	Workers     int           `mapstructure:"workers" validate:"min=1,max=64"`
	AlertWorthy []string      `mapstructure:"alert_worthy" validate:"min=1,dive,required"`
}

type SourceConfig struct {
	BaseURL        string        `mapstructure:"base_url" validate:"required,url"`
	Screener       string        `mapstructure:"screener" validate:"required"`
	Interval       string        `mapstructure:"interval" validate:"required"`
	Venues         []string      `mapstructure:"venues" validate:"min=1,dive,required"` // priority order
	VenueTimeout   time.Duration `mapstructure:"venue_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

type DispatchConfig struct {
	ChannelTimeout  time.Duration `mapstructure:"channel_timeout"`
	RequireDelivery bool          `mapstructure:"require_delivery"` // withhold state advance until one channel succeeds
	Log             bool          `mapstructure:"log"`              // also write every alert to the log channel
}

type TelegramConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	BaseURL     string        `mapstructure:"base_url"`
	Token       string        `mapstructure:"token"`
	TokenParam  string        `mapstructure:"token_param"` // SSM parameter name, prod only
	Mode        string        `mapstructure:"mode" validate:"oneof=polling webhook"`
	WebhookHost string        `mapstructure:"webhook_host" validate:"required_if=Mode webhook"`
	PollTimeout time.Duration `mapstructure:"poll_timeout"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

type SMSConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	BaseURL        string        `mapstructure:"base_url"`
	AccountSID     string        `mapstructure:"account_sid" validate:"required_if=Enabled true"`
	AuthToken      string        `mapstructure:"auth_token"`
	AuthTokenParam string        `mapstructure:"auth_token_param"`
	From           string        `mapstructure:"from" validate:"required_if=Enabled true"`
	To             []string      `mapstructure:"to"`
	Timeout        time.Duration `mapstructure:"timeout"`
}

type RelayConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url" validate:"required_if=Enabled true"`
}

type KafkaConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic" validate:"required_if=Enabled true"`
}

type StateConfig struct {
	Backend string `mapstructure:"backend" validate:"oneof=memory redis postgres"`
	// PersistSubscriptions writes the registry through to postgres and restores it on start.
	PersistSubscriptions bool `mapstructure:"persist_subscriptions"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

type ServerConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

var validate = validator.New()

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "dev")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.output_file", "")
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 7)
	v.SetDefault("log.compress", true)

	v.SetDefault("monitor.interval", 300*time.Second)
	v.SetDefault("monitor.workers", 4)
	v.SetDefault("monitor.alert_worthy", []string{"STRONG_BUY", "STRONG_SELL"})

	v.SetDefault("source.base_url", "https://scanner.tradingview.com")
	v.SetDefault("source.screener", "forex")
	v.SetDefault("source.interval", "5m")
	v.SetDefault("source.venues", []string{"OANDA", "FOREXCOM", "FX_IDC", "SAXO", "CURRENCYCOM"})
	v.SetDefault("source.venue_timeout", 10*time.Second)
	v.SetDefault("source.request_timeout", 15*time.Second)

	v.SetDefault("dispatch.channel_timeout", 10*time.Second)
	v.SetDefault("dispatch.require_delivery", false)
	v.SetDefault("dispatch.log", true)

	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.base_url", "https://api.telegram.org")
	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.token_param", "")
	v.SetDefault("telegram.mode", "polling")
	v.SetDefault("telegram.webhook_host", "")
	v.SetDefault("telegram.poll_timeout", 30*time.Second)
	v.SetDefault("telegram.timeout", 10*time.Second)

	v.SetDefault("sms.enabled", false)
	v.SetDefault("sms.base_url", "https://api.twilio.com")
	v.SetDefault("sms.account_sid", "")
	v.SetDefault("sms.auth_token", "")
	v.SetDefault("sms.auth_token_param", "")
	v.SetDefault("sms.from", "")
	v.SetDefault("sms.to", []string{})
	v.SetDefault("sms.timeout", 10*time.Second)

	v.SetDefault("relay.enabled", false)
	v.SetDefault("relay.url", "")

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "signal-alerts")

	v.SetDefault("state.backend", "memory")
	v.SetDefault("state.persist_subscriptions", false)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "signalwatch")

	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "postgres")
	v.SetDefault("postgres.password", "")
	v.SetDefault("postgres.password_param", "")
	v.SetDefault("postgres.dbname", "signalwatch")
	v.SetDefault("postgres.sslmode", "disable")
	v.SetDefault("postgres.timezone", "UTC")
	v.SetDefault("postgres.create_db", false)
	v.SetDefault("postgres.max_open_conns", 10)
	v.SetDefault("postgres.max_idle_conns", 5)
	v.SetDefault("postgres.conn_max_lifetime", time.Hour)

	v.SetDefault("server.enabled", true)
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
}

// Load loads application configuration using Viper.
// It reads from path (or config.yaml in the usual places) and overrides with environment variables.
// A missing config.yaml is fine when no explicit path was given.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config") // config.yaml
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
		if ex, err := os.Executable(); err == nil {
			v.AddConfigPath(filepath.Join(filepath.Dir(ex), "../config"))
		}
	}

	// Support environment variables with dot notation (e.g., TELEGRAM_TOKEN, MONITOR_INTERVAL)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}

	if c.SMS.Enabled && len(c.SMS.To) == 0 {
		return errors.New("invalid config: sms.to needs at least one number")
	}
	if c.Telegram.Enabled && c.Telegram.Mode == "webhook" && !c.Server.Enabled {
		return errors.New("invalid config: telegram webhook mode needs server.enabled")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return errors.New("invalid config: kafka.brokers needs at least one broker")
	}
	return nil
}
