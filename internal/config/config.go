package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
)

const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

type Config struct {
	ServiceName string `envconfig:"SERVICE_NAME" default:"order-service"`
	ServiceID   string `envconfig:"SERVICE_ID"`
	HTTPPort    int    `envconfig:"HTTP_PORT" default:"8082"`
	GRPCPort    int    `envconfig:"GRPC_PORT" default:"9090"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat   string `envconfig:"LOG_FORMAT" default:"json"`

	// StorageBackend selects the order-service store: memory or postgres.
	StorageBackend string `envconfig:"STORAGE_BACKEND" default:"memory"`
	// HistoryBackend selects the notification-service history: memory or redis.
	HistoryBackend string `envconfig:"HISTORY_BACKEND" default:"memory"`

	Postgres     PostgresConfig
	Redis        RedisConfig
	RabbitMQ     RabbitMQConfig
	Consul       ConsulConfig
	Notification NotificationConfig
	Gateway      GatewayConfig

	OTELEndpoint string `envconfig:"OTEL_ENDPOINT"`
}

type PostgresConfig struct {
	Host         string `envconfig:"POSTGRES_HOST" default:"localhost"`
	Port         int    `envconfig:"POSTGRES_PORT" default:"5432"`
	User         string `envconfig:"POSTGRES_USER" default:"ordersys"`
	Password     string `envconfig:"POSTGRES_PASSWORD" default:"ordersys123"`
	DBName       string `envconfig:"POSTGRES_DB" default:"ordersys"`
	SSLMode      string `envconfig:"POSTGRES_SSLMODE" default:"disable"`
	MaxOpenConns int    `envconfig:"POSTGRES_MAX_OPEN_CONNS" default:"10"`
}

type RedisConfig struct {
	Host      string `envconfig:"REDIS_HOST" default:"localhost"`
	Port      int    `envconfig:"REDIS_PORT" default:"6379"`
	Password  string `envconfig:"REDIS_PASSWORD"`
	DB        int    `envconfig:"REDIS_DB" default:"0"`
	KeyPrefix string `envconfig:"REDIS_KEY_PREFIX" default:"notifications"`
}

type RabbitMQConfig struct {
	Enabled  bool   `envconfig:"RABBITMQ_ENABLED" default:"false"`
	Host     string `envconfig:"RABBITMQ_HOST" default:"localhost"`
	Port     int    `envconfig:"RABBITMQ_PORT" default:"5672"`
	User     string `envconfig:"RABBITMQ_USER" default:"guest"`
	Password string `envconfig:"RABBITMQ_PASSWORD" default:"guest"`
	Prefetch int    `envconfig:"RABBITMQ_PREFETCH" default:"10"`
}

type ConsulConfig struct {
	Enabled bool   `envconfig:"CONSUL_ENABLED" default:"false"`
	Host    string `envconfig:"CONSUL_HOST" default:"localhost"`
	Port    int    `envconfig:"CONSUL_PORT" default:"8500"`
}

type NotificationConfig struct {
	ServiceName string        `envconfig:"NOTIFICATION_SERVICE" default:"notification-service"`
	Addr        string        `envconfig:"NOTIFICATION_ADDR" default:"localhost:9090"`
	Timeout     time.Duration `envconfig:"NOTIFICATION_TIMEOUT" default:"3s"`
}

type GatewayConfig struct {
	Port            int           `envconfig:"GATEWAY_PORT" default:"8080"`
	OrderServiceURL string        `envconfig:"ORDER_SERVICE_URL" default:"http://order-service:8082"`
	RefreshInterval time.Duration `envconfig:"GATEWAY_REFRESH_INTERVAL" default:"10s"`
}

// Load reads the environment. Every setting has a default, so an empty
// environment yields a runnable in-memory configuration.
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, errors.Wrap(err, "failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// InstanceID is the Consul service id, SERVICE_ID or "<service name>-1".
func (c Config) InstanceID() string {
	if c.ServiceID != "" {
		return c.ServiceID
	}
	return c.ServiceName + "-1"
}

func (c Config) Validate() error {
	switch c.StorageBackend {
	case BackendMemory, BackendPostgres:
	default:
		return errors.Errorf("unknown STORAGE_BACKEND %q", c.StorageBackend)
	}
	switch c.HistoryBackend {
	case BackendMemory, BackendRedis:
	default:
		return errors.Errorf("unknown HISTORY_BACKEND %q", c.HistoryBackend)
	}
	if c.Notification.Timeout <= 0 {
		return errors.New("NOTIFICATION_TIMEOUT must be positive")
	}
	if c.HTTPPort <= 0 || c.GRPCPort <= 0 || c.Gateway.Port <= 0 {
		return errors.New("ports must be positive")
	}
	return nil
}
