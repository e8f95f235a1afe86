// Package config loads the runtime configuration from the environment.
package config

import (
	"fmt"
	"log"
	"time"

	"github.com/caarlos0/env/v11"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"cybnity/internal/metrics"
	"cybnity/internal/tracing"
	"cybnity/internal/validator"
)

const (
	TransportCouchbase = "couchbase"
	TransportMemory    = "memory"
)

type Config struct {
	CouchbaseConnectionString   string        `env:"COUCHBASE_CONNECTION_STRING" envDefault:"couchbase://localhost"`
	CouchbaseUsername           string        `env:"COUCHBASE_USERNAME" envDefault:"Administrator"`
	CouchbasePassword           string        `env:"COUCHBASE_PASSWORD" envDefault:"password"`
	CouchbaseBucketName         string        `env:"COUCHBASE_BUCKET_NAME" envDefault:"cybnity"`
	CouchbaseScopeName          string        `env:"COUCHBASE_SCOPE_NAME" envDefault:"routing"`
	CouchbaseTransactionTimeout time.Duration `env:"COUCHBASE_TRANSACTION_TIMEOUT" envDefault:"10s"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	Transport string `env:"BUS_TRANSPORT" envDefault:"couchbase"`

	ServiceName          string   `env:"SERVICE_NAME" envDefault:"recipients-manager"`
	AnnouncesChannel     string   `env:"ANNOUNCES_CHANNEL" envDefault:"processing-units-announces"`
	NotificationChannels []string `env:"NOTIFICATION_CHANNELS" envDefault:"processing-units-notifications"`
	Subscription         string   `env:"SUBSCRIPTION"`

	// UnitRoutes are the routes a processing unit announces, e.g.
	// "TENANT_CREATED:ac-stream-1,TENANT_DELETED:".
	UnitRoutes map[string]string `env:"UNIT_ROUTES" envKeyValSeparator:":"`

	PollInterval        time.Duration `env:"POLL_INTERVAL" envDefault:"100ms"`
	ConsumerBatchSize   int           `env:"CONSUMER_BATCH_SIZE" envDefault:"50"`
	ConsumerConcurrency int           `env:"CONSUMER_CONCURRENCY" envDefault:"4"`

	Metrics metrics.ServerConfig
	Tracing tracing.Config
}

// Load reads the configuration from the process environment.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse environment variables: %w", err)
	}

	return cfg, cfg.Validate()
}

// LoadFrom reads the configuration from vars instead of the environment.
func LoadFrom(vars map[string]string) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: vars}); err != nil {
		return Config{}, fmt.Errorf("failed to parse environment variables: %w", err)
	}

	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	switch c.Transport {
	case TransportCouchbase, TransportMemory:
	default:
		return fmt.Errorf("unknown bus transport %q: %w", c.Transport, validator.ErrInvalidArgument)
	}
	if err := validator.Mandatory("service name", c.ServiceName); err != nil {
		return err
	}
	if err := validator.Mandatory("announces channel", c.AnnouncesChannel); err != nil {
		return err
	}
	if c.PollInterval <= 0 || c.ConsumerBatchSize <= 0 || c.ConsumerConcurrency <= 0 {
		return fmt.Errorf("poll interval, consumer batch size and concurrency must be positive: %w", validator.ErrInvalidArgument)
	}
	for name := range c.UnitRoutes {
		if err := validator.Mandatory("unit route event type", name); err != nil {
			return err
		}
	}

	return nil
}

// SubscriptionName is the consumer subscription, the service name unless set.
func (c Config) SubscriptionName() string {
	if c.Subscription != "" {
		return c.Subscription
	}
	return c.ServiceName
}

// NewLogger builds the production logger at LogLevel, falling back to info.
func (c Config) NewLogger() (*zap.Logger, error) {
	config := zap.NewProductionConfig()

	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(c.LogLevel)); err != nil {
		log.Printf("invalid log level %q, defaulting to info: %v", c.LogLevel, err)
		zapLevel = zapcore.InfoLevel
	}
	config.Level = zap.NewAtomicLevelAt(zapLevel)

	logger, err := config.Build(zap.AddCaller())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return logger, nil
}
