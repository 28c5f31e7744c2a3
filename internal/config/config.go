package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port        string `mapstructure:"PORT"`
	Env         string `mapstructure:"ENV"`
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32  `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32  `mapstructure:"DB_MIN_CONNS"`

	KafkaBrokers     []string `mapstructure:"KAFKA_BROKERS"`
	KafkaGroupID     string   `mapstructure:"KAFKA_GROUP_ID"`
	AppointmentTopic string   `mapstructure:"KAFKA_TOPIC_APPOINTMENTS"`
	OrderTopic       string   `mapstructure:"KAFKA_TOPIC_ORDERS"`

	TwilioAccountSID          string `mapstructure:"TWILIO_ACCOUNT_SID"`
	TwilioAuthToken           string `mapstructure:"TWILIO_AUTH_TOKEN"`
	TwilioPhoneNumber         string `mapstructure:"TWILIO_PHONE_NUMBER"`
	TwilioMessagingServiceSID string `mapstructure:"TWILIO_MESSAGING_SERVICE_SID"`
	DefaultCountryCode        string `mapstructure:"DEFAULT_COUNTRY_CODE"`
	SMSSendTimeoutSeconds     int    `mapstructure:"SMS_SEND_TIMEOUT_SECONDS"`

	NotificationPoolCore  int `mapstructure:"NOTIFICATION_POOL_CORE"`
	NotificationPoolMax   int `mapstructure:"NOTIFICATION_POOL_MAX"`
	NotificationPoolQueue int `mapstructure:"NOTIFICATION_POOL_QUEUE"`
	GatewayPoolSize       int `mapstructure:"GATEWAY_POOL_SIZE"`
	DatabasePoolCore      int `mapstructure:"DATABASE_POOL_CORE"`
	DatabasePoolMax       int `mapstructure:"DATABASE_POOL_MAX"`
	DatabasePoolQueue     int `mapstructure:"DATABASE_POOL_QUEUE"`
	PoolShutdownGraceSecs int `mapstructure:"POOL_SHUTDOWN_GRACE_SECONDS"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("KAFKA_BROKERS", "localhost:9092")
	v.SetDefault("KAFKA_GROUP_ID", "careops-notifier")
	v.SetDefault("KAFKA_TOPIC_APPOINTMENTS", "appointments")
	v.SetDefault("KAFKA_TOPIC_ORDERS", "orders")
	v.SetDefault("DEFAULT_COUNTRY_CODE", "+1")
	v.SetDefault("SMS_SEND_TIMEOUT_SECONDS", 10)
	v.SetDefault("NOTIFICATION_POOL_CORE", 5)
	v.SetDefault("NOTIFICATION_POOL_MAX", 20)
	v.SetDefault("NOTIFICATION_POOL_QUEUE", 200)
	v.SetDefault("GATEWAY_POOL_SIZE", 5)
	v.SetDefault("DATABASE_POOL_CORE", 3)
	v.SetDefault("DATABASE_POOL_MAX", 10)
	v.SetDefault("DATABASE_POOL_QUEUE", 100)
	v.SetDefault("POOL_SHUTDOWN_GRACE_SECONDS", 30)

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("KAFKA_BROKERS")
	v.BindEnv("KAFKA_GROUP_ID")
	v.BindEnv("KAFKA_TOPIC_APPOINTMENTS")
	v.BindEnv("KAFKA_TOPIC_ORDERS")
	v.BindEnv("TWILIO_ACCOUNT_SID")
	v.BindEnv("TWILIO_AUTH_TOKEN")
	v.BindEnv("TWILIO_PHONE_NUMBER")
	v.BindEnv("TWILIO_MESSAGING_SERVICE_SID")
	v.BindEnv("DEFAULT_COUNTRY_CODE")
	v.BindEnv("SMS_SEND_TIMEOUT_SECONDS")
	v.BindEnv("NOTIFICATION_POOL_CORE")
	v.BindEnv("NOTIFICATION_POOL_MAX")
	v.BindEnv("NOTIFICATION_POOL_QUEUE")
	v.BindEnv("GATEWAY_POOL_SIZE")
	v.BindEnv("DATABASE_POOL_CORE")
	v.BindEnv("DATABASE_POOL_MAX")
	v.BindEnv("DATABASE_POOL_QUEUE")
	v.BindEnv("POOL_SHUTDOWN_GRACE_SECONDS")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.KafkaBrokers == nil {
		brokers := v.GetString("KAFKA_BROKERS")
		if brokers != "" {
			cfg.KafkaBrokers = strings.Split(brokers, ",")
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// SMSSendTimeout returns the hard bound on a single gateway send.
func (c *Config) SMSSendTimeout() time.Duration {
	if c.SMSSendTimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.SMSSendTimeoutSeconds) * time.Second
}

// PoolShutdownGrace returns how long the worker pools may drain at shutdown.
func (c *Config) PoolShutdownGrace() time.Duration {
	if c.PoolShutdownGraceSecs <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.PoolShutdownGraceSecs) * time.Second
}

// TwilioConfigured reports whether credentials and a sender identity are
// present. Missing credentials do not stop a development server — every send
// fails with not-configured instead — but production refuses to start.
func (c *Config) TwilioConfigured() bool {
	return c.TwilioAccountSID != "" && c.TwilioAuthToken != "" &&
		(c.TwilioMessagingServiceSID != "" || c.TwilioPhoneNumber != "")
}

// Validate checks that the configuration is safe to run.
func (c *Config) Validate() error {
	if len(c.KafkaBrokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required")
	}
	if c.IsProduction() && !c.TwilioConfigured() {
		return fmt.Errorf("TWILIO_ACCOUNT_SID, TWILIO_AUTH_TOKEN and a sender identity " +
			"(TWILIO_MESSAGING_SERVICE_SID or TWILIO_PHONE_NUMBER) are required in production")
	}
	if c.NotificationPoolCore < 1 || c.NotificationPoolMax < c.NotificationPoolCore {
		return fmt.Errorf("invalid notification pool sizing: core=%d max=%d",
			c.NotificationPoolCore, c.NotificationPoolMax)
	}
	if c.GatewayPoolSize < 1 {
		return fmt.Errorf("GATEWAY_POOL_SIZE must be >= 1, got %d", c.GatewayPoolSize)
	}
	if c.DatabasePoolCore < 1 || c.DatabasePoolMax < c.DatabasePoolCore {
		return fmt.Errorf("invalid database pool sizing: core=%d max=%d",
			c.DatabasePoolCore, c.DatabasePoolMax)
	}
	if c.DefaultCountryCode != "" && strings.TrimLeft(strings.TrimPrefix(c.DefaultCountryCode, "+"), "0123456789") != "" {
		return fmt.Errorf("DEFAULT_COUNTRY_CODE must be digits with an optional leading +, got %q", c.DefaultCountryCode)
	}
	return nil
}
