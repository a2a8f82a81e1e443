// Package config loads service configuration from the environment.
package config

import (
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
)

// Config holds all service configuration
type Config struct {
	Port   string `envconfig:"PORT" default:"8000"`
	AppURL string `envconfig:"APP_URL" default:"http://localhost:3000"`

	MongoURI      string `envconfig:"MONGO_URI" default:"mongodb://localhost:27017"`
	MongoDatabase string `envconfig:"MONGO_DATABASE" default:"ecommerce"`

	RedisAddr     string        `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword string        `envconfig:"REDIS_PASSWORD"`
	RedisDB       int           `envconfig:"REDIS_DB" default:"0"`
	CartTTL       time.Duration `envconfig:"CART_TTL" default:"720h"`

	JWTSecret string `envconfig:"JWT_SECRET" required:"true"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`

	EmailProvider  string `envconfig:"EMAIL_PROVIDER" default:"postmark"`
	PostmarkToken  string `envconfig:"POSTMARK_API_TOKEN"`
	SendgridAPIKey string `envconfig:"SENDGRID_API_KEY"`
	EmailSender    string `envconfig:"EMAIL_SENDER" default:"no-reply@localhost"`

	MidtransServerKey  string `envconfig:"MIDTRANS_SERVER_KEY"`
	MidtransClientKey  string `envconfig:"MIDTRANS_CLIENT_KEY"`
	MidtransProduction bool   `envconfig:"MIDTRANS_PRODUCTION" default:"false"`

	PaymentWindowTTL    time.Duration `envconfig:"PAYMENT_WINDOW_TTL" default:"15m"`
	CheckoutSessionIdle time.Duration `envconfig:"CHECKOUT_SESSION_IDLE" default:"1h"`

	UploadDir    string `envconfig:"UPLOAD_DIR" default:"uploads"`
	CODThreshold int64  `envconfig:"COD_THRESHOLD" default:"5000000"`
	Country      string `envconfig:"SHIPPING_COUNTRY" default:"Indonesia"`
}

// Load reads .env (when present) and then the process environment
func Load() (*Config, error) {
	// a missing .env is fine, the environment may already be populated
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, errors.Wrap(err, "read environment")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks combinations envconfig cannot express
func (c *Config) Validate() error {
	switch c.EmailProvider {
	case "postmark", "sendgrid", "none":
	default:
		return errors.Errorf("unknown EMAIL_PROVIDER %q", c.EmailProvider)
	}
	switch c.LogFormat {
	case "json", "text":
	default:
		return errors.Errorf("unknown LOG_FORMAT %q", c.LogFormat)
	}
	if c.PaymentWindowTTL >= c.CheckoutSessionIdle {
		return errors.New("PAYMENT_WINDOW_TTL must be shorter than CHECKOUT_SESSION_IDLE")
	}
	if c.CODThreshold <= 0 {
		return errors.New("COD_THRESHOLD must be positive")
	}
	return nil
}
