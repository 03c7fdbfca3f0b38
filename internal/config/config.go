package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/imrishuroy/go-pizza-storefront/internal/catalog"
	"github.com/imrishuroy/go-pizza-storefront/internal/orders"
)

type Config struct {
	RunLocal   bool
	ServerPort string
	LogLevel   string

	AWSRegion           string
	AWSEndpointOverride string

	PizzasTable      string
	OrdersTable      string
	IdempotencyTable string
	IdempotencyTTL   time.Duration
	OrdersStreamARN  string
	StreamPoll       time.Duration
	OrdersQueueURL   string
	MetricsNamespace string

	RedisURL        string
	CartTTL         time.Duration
	CatalogCacheTTL time.Duration

	TransitionPolicy  orders.TransitionPolicy
	CatalogReadPolicy catalog.ReadPolicy

	AdminToken string
}

// Load reads the environment, after a .env file if one exists.
func Load() (*Config, error) {
	_ = godotenv.Load()

	policy, err := orders.ParsePolicy(getEnv("ORDER_TRANSITION_POLICY", string(orders.PolicyAny)))
	if err != nil {
		return nil, fmt.Errorf("ORDER_TRANSITION_POLICY: %w", err)
	}
	readPolicy, err := catalog.ParseReadPolicy(getEnv("CATALOG_READ_POLICY", string(catalog.FailOpen)))
	if err != nil {
		return nil, fmt.Errorf("CATALOG_READ_POLICY: %w", err)
	}

	cfg := &Config{
		RunLocal:   getEnvAsBool("RUN_LOCAL", false),
		ServerPort: getEnv("SERVER_PORT", "8080"),
		LogLevel:   getEnv("LOG_LEVEL", "info"),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		PizzasTable:      getEnv("PIZZAS_TABLE", "pizzas"),
		OrdersTable:      getEnv("ORDERS_TABLE", "orders"),
		IdempotencyTable: getEnv("IDEMPOTENCY_TABLE", "idempotency"),
		IdempotencyTTL:   getEnvAsDuration("IDEMPOTENCY_TTL", 24*time.Hour),
		OrdersStreamARN:  getEnv("ORDERS_STREAM_ARN", ""),
		StreamPoll:       getEnvAsDuration("ORDERS_STREAM_POLL", time.Second),
		OrdersQueueURL:   getEnv("ORDERS_QUEUE_URL", ""),
		MetricsNamespace: getEnv("METRICS_NAMESPACE", "PizzaStorefront"),

		RedisURL:        getEnv("REDIS_URL", ""),
		CartTTL:         getEnvAsDuration("CART_TTL", 30*24*time.Hour),
		CatalogCacheTTL: getEnvAsDuration("CATALOG_CACHE_TTL", 0),

		TransitionPolicy:  policy,
		CatalogReadPolicy: readPolicy,

		AdminToken: getEnv("ADMIN_TOKEN", ""),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.PizzasTable == "" || c.OrdersTable == "" || c.IdempotencyTable == "" {
		return fmt.Errorf("table names must not be empty")
	}
	if c.StreamPoll <= 0 {
		return fmt.Errorf("ORDERS_STREAM_POLL must be positive, got %s", c.StreamPoll)
	}
	if c.CatalogCacheTTL > 0 && c.RedisURL == "" {
		return fmt.Errorf("CATALOG_CACHE_TTL needs REDIS_URL")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// getEnvAsDuration accepts Go durations ("90s") or plain seconds ("90").
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
