package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	ServiceName string `env:"SERVICE_NAME" envDefault:"revoshop"`
	ServerPort  int    `env:"SERVER_PORT" envDefault:"8080"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	DBDriver    string `env:"DB_DRIVER" envDefault:"sqlite"`
	DatabaseURL string `env:"DATABASE_URL" envDefault:"revoshop.db"`

	ShopAPIURL     string        `env:"SHOP_API_URL" envDefault:"https://api.escuelajs.co/api/v1"`
	ShopAPITimeout time.Duration `env:"SHOP_API_TIMEOUT" envDefault:"10s"`

	SessionSecret string        `env:"SESSION_SECRET"`
	SessionTTL    time.Duration `env:"SESSION_TTL" envDefault:"720h"`
	CartSecret    string        `env:"CART_SECRET"`
	CookieSecure  bool          `env:"COOKIE_SECURE" envDefault:"false"`

	CartBackend string        `env:"CART_BACKEND" envDefault:"db"`
	RedisURL    string        `env:"REDIS_URL"`
	CartTTL     time.Duration `env:"CART_TTL" envDefault:"720h"`

	EventsBackend string   `env:"EVENTS_BACKEND" envDefault:"none"`
	KafkaBrokers  []string `env:"KAFKA_BROKERS" envSeparator:","`
	RabbitMQURL   string   `env:"RABBITMQ_URL"`

	ESURL      string `env:"ES_URL"`
	ESUser     string `env:"ES_USER"`
	ESPassword string `env:"ES_PASSWORD"`
	ESIndex    string `env:"ES_INDEX" envDefault:"products"`

	OTelEndpoint string `env:"OTEL_ENDPOINT"`

	UsersFile string `env:"USERS_FILE" envDefault:"config/users.yaml"`
}

func Load() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Notice: .env file not found: %v. Using system environment variables", err)
	}
	return Parse()
}

// Parse reads the process environment only.
func Parse() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.KafkaBrokers = CSV(strings.Join(cfg.KafkaBrokers, ","))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.SessionSecret == "" {
		errs = append(errs, missing("SESSION_SECRET"))
	}
	if c.CartSecret == "" {
		errs = append(errs, missing("CART_SECRET"))
	}
	if c.DatabaseURL == "" {
		errs = append(errs, missing("DATABASE_URL"))
	}

	switch c.DBDriver {
	case "sqlite", "postgres", "mysql":
	default:
		errs = append(errs, fmt.Errorf("DB_DRIVER %q is not one of sqlite, postgres, mysql", c.DBDriver))
	}

	switch c.CartBackend {
	case "db", "memory":
	case "redis":
		if c.RedisURL == "" {
			errs = append(errs, fmt.Errorf("CART_BACKEND=redis needs REDIS_URL"))
		}
	default:
		errs = append(errs, fmt.Errorf("CART_BACKEND %q is not one of db, redis, memory", c.CartBackend))
	}

	switch c.EventsBackend {
	case "none":
	case "kafka":
		if len(c.KafkaBrokers) == 0 {
			errs = append(errs, fmt.Errorf("EVENTS_BACKEND=kafka needs KAFKA_BROKERS"))
		}
	case "rabbitmq":
		if c.RabbitMQURL == "" {
			errs = append(errs, fmt.Errorf("EVENTS_BACKEND=rabbitmq needs RABBITMQ_URL"))
		}
	default:
		errs = append(errs, fmt.Errorf("EVENTS_BACKEND %q is not one of none, kafka, rabbitmq", c.EventsBackend))
	}

	return errors.Join(errs...)
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.ServerPort)
}

func CSV(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func missing(name string) error {
	return fmt.Errorf("missing required env %s", name)
}
