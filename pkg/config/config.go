package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config is loaded from the environment. Monetary values are integer minor
// units: the 5000/200 defaults mean free shipping from 50.00 with a 2.00
// flat fee below it.
type Config struct {
	Port     string `envconfig:"PORT" default:"8080"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// empty DATABASE_URL selects the in-memory store
	DatabaseURL string `envconfig:"DATABASE_URL" default:""`

	// empty KAFKA_BROKERS disables event publishing
	KafkaBrokers    string `envconfig:"KAFKA_BROKERS" default:""`
	OrderEventTopic string `envconfig:"ORDER_EVENTS_TOPIC" default:"order-events"`

	StoreName      string `envconfig:"STORE_NAME" default:"Elegant La Vie"`
	Currency       string `envconfig:"CURRENCY" default:"usd"`
	CurrencySymbol string `envconfig:"CURRENCY_SYMBOL" default:"$"`

	FreeShippingThreshold int64 `envconfig:"FREE_SHIPPING_THRESHOLD" default:"5000"`
	ShippingFee           int64 `envconfig:"SHIPPING_FEE" default:"200"`
	GiftWrapStandardFee   int64 `envconfig:"GIFT_WRAP_STANDARD_FEE" default:"250"`
	GiftWrapPremiumFee    int64 `envconfig:"GIFT_WRAP_PREMIUM_FEE" default:"500"`

	StripeAPIKey        string        `envconfig:"STRIPE_API_KEY" default:""`
	StripeWebhookSecret string        `envconfig:"STRIPE_WEBHOOK_SECRET" default:""`
	StripeTimeout       time.Duration `envconfig:"STRIPE_TIMEOUT" default:"10s"`

	// digits only, international format, e.g. 923001234567
	WhatsAppNumber string `envconfig:"WHATSAPP_NUMBER" default:""`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
