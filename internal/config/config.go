package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

type Config struct {
	AppPort  string
	LogLevel string

	DatabaseDriver string
	DatabaseDSN    string

	JWTSecret string

	RabbitMQURL      string
	RabbitMQExchange string

	RedisAddr       string
	CheckoutLockTTL time.Duration

	GSTRate        decimal.Decimal
	ShippingCharge decimal.Decimal
	Currency       string

	RazorpayBaseURL   string
	RazorpayKeyID     string
	RazorpayKeySecret string
	RefundSpeed       string
	GatewayTimeout    time.Duration

	ExportBatchSize int
}

// SetDefaults registers every key with its default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("APP_PORT", ":8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DATABASE_DRIVER", "postgres")
	v.SetDefault("DATABASE_DSN", "host=127.0.0.1 user=postgres password=postgres dbname=toko port=5432 sslmode=disable")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("RABBITMQ_URL", "")
	v.SetDefault("RABBITMQ_EXCHANGE", "order_events")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("CHECKOUT_LOCK_TTL", "30s")
	v.SetDefault("GST_RATE", "0.18")
	v.SetDefault("SHIPPING_CHARGE", "50")
	v.SetDefault("CURRENCY", "INR")
	v.SetDefault("RAZORPAY_BASE_URL", "https://api.razorpay.com")
	v.SetDefault("RAZORPAY_KEY_ID", "")
	v.SetDefault("RAZORPAY_KEY_SECRET", "")
	v.SetDefault("REFUND_SPEED", "normal")
	v.SetDefault("GATEWAY_TIMEOUT", "10s")
	v.SetDefault("EXPORT_BATCH_SIZE", 100)
}

// Load reads .env (if present) and the environment into a Config.
func Load() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil {
		slog.Debug("no .env file, using process environment", "error", err)
	}
	v := viper.New()
	SetDefaults(v)
	v.AutomaticEnv()
	return FromViper(v)
}

// FromViper builds a Config from v and validates it.
func FromViper(v *viper.Viper) (*Config, error) {
	gst, err := decimal.NewFromString(v.GetString("GST_RATE"))
	if err != nil {
		return nil, fmt.Errorf("GST_RATE: %w", err)
	}
	shipping, err := decimal.NewFromString(v.GetString("SHIPPING_CHARGE"))
	if err != nil {
		return nil, fmt.Errorf("SHIPPING_CHARGE: %w", err)
	}

	cfg := &Config{
		AppPort:           v.GetString("APP_PORT"),
		LogLevel:          v.GetString("LOG_LEVEL"),
		DatabaseDriver:    strings.ToLower(v.GetString("DATABASE_DRIVER")),
		DatabaseDSN:       v.GetString("DATABASE_DSN"),
		JWTSecret:         v.GetString("JWT_SECRET"),
		RabbitMQURL:       v.GetString("RABBITMQ_URL"),
		RabbitMQExchange:  v.GetString("RABBITMQ_EXCHANGE"),
		RedisAddr:         v.GetString("REDIS_ADDR"),
		CheckoutLockTTL:   v.GetDuration("CHECKOUT_LOCK_TTL"),
		GSTRate:           gst,
		ShippingCharge:    shipping,
		Currency:          v.GetString("CURRENCY"),
		RazorpayBaseURL:   v.GetString("RAZORPAY_BASE_URL"),
		RazorpayKeyID:     v.GetString("RAZORPAY_KEY_ID"),
		RazorpayKeySecret: v.GetString("RAZORPAY_KEY_SECRET"),
		RefundSpeed:       v.GetString("REFUND_SPEED"),
		GatewayTimeout:    v.GetDuration("GATEWAY_TIMEOUT"),
		ExportBatchSize:   v.GetInt("EXPORT_BATCH_SIZE"),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch {
	case c.JWTSecret == "":
		return fmt.Errorf("JWT_SECRET is required")
	case c.GSTRate.IsNegative():
		return fmt.Errorf("GST_RATE must not be negative")
	case c.ShippingCharge.IsNegative():
		return fmt.Errorf("SHIPPING_CHARGE must not be negative")
	case c.GatewayTimeout <= 0:
		return fmt.Errorf("GATEWAY_TIMEOUT must be positive")
	case c.ExportBatchSize <= 0:
		return fmt.Errorf("EXPORT_BATCH_SIZE must be positive")
	case c.DatabaseDriver != "postgres" && c.DatabaseDriver != "sqlite":
		return fmt.Errorf("unsupported DATABASE_DRIVER %q", c.DatabaseDriver)
	}
	return nil
}
