// Package config loads storefront settings from defaults, an optional YAML
// file and STOREFRONT_* environment variables, in increasing priority.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fjod/go_cart/storefront/internal/orders"
	"github.com/fjod/go_cart/storefront/internal/pricing"
	"github.com/fjod/go_cart/storefront/internal/storage"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

const EnvPrefix = "STOREFRONT"

type Config struct {
	HTTP      HTTPConfig      `mapstructure:"http"`
	Log       LogConfig       `mapstructure:"log"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Inventory InventoryConfig `mapstructure:"inventory"`
	Orders    OrdersConfig    `mapstructure:"orders"`
	Events    EventsConfig    `mapstructure:"events"`
	Pricing   PricingConfig   `mapstructure:"pricing"`
	Checkout  CheckoutConfig  `mapstructure:"checkout"`
	Session   SessionConfig   `mapstructure:"session"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

type HTTPConfig struct {
	Port            int           `mapstructure:"port" validate:"min=1,max=65535"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes" validate:"gt=0"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format" validate:"oneof=json console"`
}

type StorageConfig struct {
	Backend         string        `mapstructure:"backend" validate:"oneof=memory file sqlite redis mongo"`
	FilePath        string        `mapstructure:"file_path" validate:"required_if=Backend file"`
	SQLitePath      string        `mapstructure:"sqlite_path" validate:"required_if=Backend sqlite"`
	RedisAddr       string        `mapstructure:"redis_addr" validate:"required_if=Backend redis"`
	RedisPassword   string        `mapstructure:"redis_password"`
	RedisDB         int           `mapstructure:"redis_db" validate:"min=0"`
	TTL             time.Duration `mapstructure:"ttl" validate:"min=0"`
	MongoURI        string        `mapstructure:"mongo_uri" validate:"required_if=Backend mongo"`
	MongoDatabase   string        `mapstructure:"mongo_database" validate:"required_if=Backend mongo"`
	MongoCollection string        `mapstructure:"mongo_collection" validate:"required_if=Backend mongo"`
}

type InventoryConfig struct {
	Backend  string        `mapstructure:"backend" validate:"oneof=memory http"`
	BaseURL  string        `mapstructure:"base_url" validate:"required_if=Backend http,omitempty,url"`
	Timeout  time.Duration `mapstructure:"timeout" validate:"gt=0"`
	SeedFile string        `mapstructure:"seed_file"`
}

type OrdersConfig struct {
	Backend  string         `mapstructure:"backend" validate:"oneof=memory http postgres"`
	BaseURL  string         `mapstructure:"base_url" validate:"required_if=Backend http,omitempty,url"`
	Timeout  time.Duration  `mapstructure:"timeout" validate:"gt=0"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

type PostgresConfig struct {
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	User       string `mapstructure:"user"`
	Password   string `mapstructure:"password"`
	DBName     string `mapstructure:"dbname"`
	Migrations string `mapstructure:"migrations"`
}

type EventsConfig struct {
	Backend       string   `mapstructure:"backend" validate:"oneof=none kafka rabbitmq"`
	KafkaBrokers  []string `mapstructure:"kafka_brokers"`
	KafkaTopic    string   `mapstructure:"kafka_topic"`
	RabbitMQURL   string   `mapstructure:"rabbitmq_url" validate:"required_if=Backend rabbitmq"`
	RabbitMQQueue string   `mapstructure:"rabbitmq_queue"`
}

type PricingConfig struct {
	FreeShippingThreshold string `mapstructure:"free_shipping_threshold" validate:"required"`
	FlatShippingFee       string `mapstructure:"flat_shipping_fee" validate:"required"`
	Currency              string `mapstructure:"currency" validate:"required"`
}

type CheckoutConfig struct {
	LookupConcurrency int `mapstructure:"lookup_concurrency" validate:"min=1"`
}

type SessionConfig struct {
	MaxSessions int           `mapstructure:"max_sessions" validate:"min=1"`
	IdleTTL     time.Duration `mapstructure:"idle_ttl" validate:"gt=0"`
}

type TelemetryConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	ServiceName  string `mapstructure:"service_name"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.request_timeout", 30*time.Second)
	v.SetDefault("http.shutdown_timeout", 10*time.Second)
	v.SetDefault("http.max_body_bytes", 1<<20)

	v.SetDefault("session.max_sessions", 10000)
	v.SetDefault("session.idle_ttl", 30*time.Minute)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("storage.backend", "memory")
	v.SetDefault("storage.file_path", "./data/storefront.json")
	v.SetDefault("storage.sqlite_path", "./data/storefront.db")
	v.SetDefault("storage.redis_addr", "localhost:6379")
	v.SetDefault("storage.redis_password", "")
	v.SetDefault("storage.redis_db", 0)
	v.SetDefault("storage.ttl", time.Duration(0))
	v.SetDefault("storage.mongo_uri", "mongodb://localhost:27017")
	v.SetDefault("storage.mongo_database", "storefront")
	v.SetDefault("storage.mongo_collection", "kv")

	v.SetDefault("inventory.backend", "memory")
	v.SetDefault("inventory.base_url", "")
	v.SetDefault("inventory.timeout", 5*time.Second)
	v.SetDefault("inventory.seed_file", "")

	v.SetDefault("orders.backend", "memory")
	v.SetDefault("orders.base_url", "")
	v.SetDefault("orders.timeout", 5*time.Second)
	v.SetDefault("orders.postgres.host", "localhost")
	v.SetDefault("orders.postgres.port", 5432)
	v.SetDefault("orders.postgres.user", "storefront")
	v.SetDefault("orders.postgres.password", "")
	v.SetDefault("orders.postgres.dbname", "storefront")
	v.SetDefault("orders.postgres.migrations", "./internal/orders/migrations")

	v.SetDefault("events.backend", "none")
	v.SetDefault("events.kafka_brokers", []string{"localhost:9092"})
	v.SetDefault("events.kafka_topic", "order-placed")
	v.SetDefault("events.rabbitmq_url", "")
	v.SetDefault("events.rabbitmq_queue", "order_placed")

	v.SetDefault("pricing.free_shipping_threshold", pricing.DefaultFreeShippingThreshold.String())
	v.SetDefault("pricing.flat_shipping_fee", pricing.DefaultFlatShippingFee.String())
	v.SetDefault("pricing.currency", "CLP")

	v.SetDefault("checkout.lookup_concurrency", 4)

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.otlp_endpoint", "localhost:4318")
	v.SetDefault("telemetry.service_name", "storefront")
}

// New returns a viper instance with defaults and env binding in place.
func New() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads path (when set) over the defaults and validates the result.
func Load(path string) (*Config, error) {
	return LoadFrom(New(), path)
}

func LoadFrom(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %s", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := c.Pricing.Policy(); err != nil {
		return err
	}
	return nil
}

func (p PricingConfig) Policy() (pricing.Policy, error) {
	threshold, err := decimal.NewFromString(p.FreeShippingThreshold)
	if err != nil {
		return pricing.Policy{}, fmt.Errorf("invalid pricing.free_shipping_threshold: %w", err)
	}
	fee, err := decimal.NewFromString(p.FlatShippingFee)
	if err != nil {
		return pricing.Policy{}, fmt.Errorf("invalid pricing.flat_shipping_fee: %w", err)
	}
	if threshold.IsNegative() || fee.IsNegative() {
		return pricing.Policy{}, errors.New("invalid pricing: amounts must not be negative")
	}
	return pricing.Policy{FreeShippingThreshold: threshold, FlatFee: fee}, nil
}

func (s StorageConfig) Options() storage.Options {
	return storage.Options{
		Backend:         s.Backend,
		FilePath:        s.FilePath,
		SQLitePath:      s.SQLitePath,
		RedisAddr:       s.RedisAddr,
		RedisPassword:   s.RedisPassword,
		RedisDB:         s.RedisDB,
		TTL:             s.TTL,
		MongoURI:        s.MongoURI,
		MongoDatabase:   s.MongoDatabase,
		MongoCollection: s.MongoCollection,
	}
}

func (p PostgresConfig) Credentials() *orders.Credentials {
	return &orders.Credentials{
		Host:              p.Host,
		Port:              p.Port,
		User:              p.User,
		Password:          p.Password,
		DBName:            p.DBName,
		MigrationsDirPath: p.Migrations,
	}
}
