package config

import (
	"fmt"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/sirupsen/logrus"
)

// Config is read from flags, falling back to environment variables.
type Config struct {
	HTTPAddr string `long:"http-addr" env:"HTTP_ADDR" default:":8080" description:"HTTP listen address"`

	PostgresURL string `long:"postgres-url" env:"POSTGRES_URL" required:"true" description:"Postgres connection string"`
	RedisAddr   string `long:"redis-addr" env:"REDIS_ADDR" required:"true" description:"Redis address"`

	GatewayAddr    string `long:"gateway-addr" env:"GATEWAY_ADDR" description:"Address of the gateway exposing the payments API"`
	JaegerEndpoint string `long:"jaeger-endpoint" env:"JAEGER_ENDPOINT" description:"Jaeger collector endpoint, defaults to the one behind the gateway"`

	LogLevel string `long:"log-level" env:"LOG_LEVEL" default:"info" description:"Log level"`

	DefaultCurrency      string `long:"default-currency" env:"DEFAULT_CURRENCY" default:"INR" description:"Currency of bookings created without one"`
	PaymentProvider      string `long:"payment-provider" env:"PAYMENT_PROVIDER" default:"razorpay" description:"Gateway provider recorded on new payments"`
	GatewayWebhookSecret string `long:"gateway-webhook-secret" env:"GATEWAY_WEBHOOK_SECRET" description:"HMAC secret of gateway callbacks, empty disables the check"`

	LockTTL           time.Duration `long:"lock-ttl" env:"LOCK_TTL" default:"30s" description:"Lease of a booking lock"`
	LockWait          time.Duration `long:"lock-wait" env:"LOCK_WAIT" default:"10s" description:"How long to wait for a booking lock"`
	MaxUpdateAttempts int           `long:"max-update-attempts" env:"MAX_UPDATE_ATTEMPTS" default:"5" description:"Attempts of a read-modify-write before a version conflict is returned"`

	RebuildReadModel bool `long:"rebuild-read-model" env:"REBUILD_READ_MODEL" description:"Replay the data lake into the ops read model on start"`
}

func Load(args []string) (Config, error) {
	var cfg Config

	parser := flags.NewParser(&cfg, flags.HelpFlag|flags.PassDoubleDash)
	if _, err := parser.ParseArgs(args); err != nil {
		return Config{}, fmt.Errorf("could not parse config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) validate() error {
	if c.PostgresURL == "" {
		return fmt.Errorf("postgres url is required")
	}
	if c.RedisAddr == "" {
		return fmt.Errorf("redis addr is required")
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	if c.LockTTL <= 0 {
		return fmt.Errorf("lock ttl must be positive, got %s", c.LockTTL)
	}
	if c.LockWait <= 0 {
		return fmt.Errorf("lock wait must be positive, got %s", c.LockWait)
	}
	if c.MaxUpdateAttempts < 1 {
		return fmt.Errorf("max update attempts must be at least 1, got %d", c.MaxUpdateAttempts)
	}
	return nil
}

func (c Config) Level() logrus.Level {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return level
}
