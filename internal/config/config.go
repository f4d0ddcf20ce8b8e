package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

const (
	// MinPort is the minimum valid port number
	MinPort = 1
	// MaxPort is the maximum valid port number
	MaxPort = 65535
)

// Storage drivers
const (
	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"
)

// Event fan-out modes
const (
	EventsModeInProcess = "inprocess"
	EventsModeRabbitMQ  = "rabbitmq"
)

// Config represents the complete application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Database  DatabaseConfig  `yaml:"database"`
	RabbitMQ  RabbitMQConfig  `yaml:"rabbitmq"`
	Events    EventsConfig    `yaml:"events"`
	Auth      AuthConfig      `yaml:"auth"`
	Realtime  RealtimeConfig  `yaml:"realtime"`
	Messaging MessagingConfig `yaml:"messaging"`
	Logging   LoggingConfig   `yaml:"logging"`
	App       AppConfig       `yaml:"app"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port" env:"GIGFLOW_SERVER_PORT"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// StorageConfig selects the persistence backend
type StorageConfig struct {
	Driver string `yaml:"driver" env:"GIGFLOW_STORAGE_DRIVER"`
}

// DatabaseConfig holds PostgreSQL connection configuration
type DatabaseConfig struct {
	Host            string        `yaml:"host" env:"GIGFLOW_DATABASE_HOST"`
	Port            int           `yaml:"port" env:"GIGFLOW_DATABASE_PORT"`
	User            string        `yaml:"user" env:"GIGFLOW_DATABASE_USER"`
	Password        string        `yaml:"password" env:"GIGFLOW_DATABASE_PASSWORD"`
	Database        string        `yaml:"database" env:"GIGFLOW_DATABASE_NAME"`
	SSLMode         string        `yaml:"sslmode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
	ConnectTimeout  time.Duration `yaml:"connect_timeout"`
}

// RabbitMQConfig holds RabbitMQ connection and exchange/queue configuration
type RabbitMQConfig struct {
	Host       string           `yaml:"host" env:"GIGFLOW_RABBITMQ_HOST"`
	Port       int              `yaml:"port" env:"GIGFLOW_RABBITMQ_PORT"`
	User       string           `yaml:"user" env:"GIGFLOW_RABBITMQ_USER"`
	Password   string           `yaml:"password" env:"GIGFLOW_RABBITMQ_PASSWORD"`
	VHost      string           `yaml:"vhost"`
	Exchange   ExchangeConfig   `yaml:"exchange"`
	Queue      QueueConfig      `yaml:"queue"`
	RoutingKey string           `yaml:"routing_key"`
	Connection ConnectionConfig `yaml:"connection"`
	Publish    PublishConfig    `yaml:"publish"`
	Consumer   ConsumerConfig   `yaml:"consumer"`
}

// ExchangeConfig holds RabbitMQ exchange configuration
type ExchangeConfig struct {
	Name       string `yaml:"name"`
	Type       string `yaml:"type"`
	Durable    bool   `yaml:"durable"`
	AutoDelete bool   `yaml:"auto_delete"`
}

// QueueConfig holds RabbitMQ queue configuration. An empty name gives every
// instance its own broker-named queue.
type QueueConfig struct {
	Name       string `yaml:"name"`
	Durable    bool   `yaml:"durable"`
	AutoDelete bool   `yaml:"auto_delete"`
	Exclusive  bool   `yaml:"exclusive"`
}

// ConnectionConfig holds RabbitMQ connection settings
type ConnectionConfig struct {
	RetryAttempts int           `yaml:"retry_attempts"`
	RetryInterval time.Duration `yaml:"retry_interval"`
	Heartbeat     time.Duration `yaml:"heartbeat"`
}

// PublishConfig holds RabbitMQ publish retry settings
type PublishConfig struct {
	RetryAttempts     int           `yaml:"retry_attempts"`
	RetryInterval     time.Duration `yaml:"retry_interval"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier"`
}

// ConsumerConfig holds RabbitMQ consumer settings
type ConsumerConfig struct {
	PrefetchCount   int           `yaml:"prefetch_count"`
	Concurrency     int           `yaml:"concurrency"`
	DeliveryTimeout time.Duration `yaml:"delivery_timeout"`
}

// EventsConfig selects how hire notices and chat messages reach connections
type EventsConfig struct {
	Mode          string        `yaml:"mode" env:"GIGFLOW_EVENTS_MODE"`
	NotifyTimeout time.Duration `yaml:"notify_timeout"`
}

// AuthConfig holds token verification settings
type AuthConfig struct {
	JWTSecret  string `yaml:"jwt_secret" env:"GIGFLOW_AUTH_JWT_SECRET"`
	Issuer     string `yaml:"issuer"`
	CookieName string `yaml:"cookie_name"`
}

// RealtimeConfig holds websocket settings
type RealtimeConfig struct {
	SendBuffer     int           `yaml:"send_buffer"`
	WriteWait      time.Duration `yaml:"write_wait"`
	PongWait       time.Duration `yaml:"pong_wait"`
	PingInterval   time.Duration `yaml:"ping_interval"`
	MaxMessageSize int64         `yaml:"max_message_size"`
	EventTimeout   time.Duration `yaml:"event_timeout"`
	AllowedOrigins []string      `yaml:"allowed_origins" env:"GIGFLOW_REALTIME_ALLOWED_ORIGINS" envSeparator:","`
}

// MessagingConfig holds chat rules
type MessagingConfig struct {
	MaxTextLength          int  `yaml:"max_text_length"`
	HistoryAfterCompletion bool `yaml:"history_after_completion"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level        string `yaml:"level" env:"GIGFLOW_LOG_LEVEL"`
	Format       string `yaml:"format"`
	Output       string `yaml:"output"`
	EnableCaller bool   `yaml:"enable_caller"`
	NoColor      bool   `yaml:"no_color"`
}

// AppConfig holds application metadata
type AppConfig struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Environment string `yaml:"environment" env:"GIGFLOW_ENVIRONMENT"`
}

// Default returns the configuration used for anything the file leaves out
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Storage: StorageConfig{Driver: StorageDriverPostgres},
		Database: DatabaseConfig{
			Port:            5432,
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
			ConnMaxIdleTime: 5 * time.Minute,
			ConnectTimeout:  5 * time.Second,
		},
		RabbitMQ: RabbitMQConfig{
			Port:     5672,
			VHost:    "/",
			Exchange: ExchangeConfig{Name: "gigflow.events", Type: "fanout"},
			Queue:    QueueConfig{AutoDelete: true, Exclusive: true},
			Connection: ConnectionConfig{
				RetryAttempts: 5,
				RetryInterval: 2 * time.Second,
				Heartbeat:     10 * time.Second,
			},
			Publish: PublishConfig{
				RetryAttempts:     3,
				RetryInterval:     100 * time.Millisecond,
				BackoffMultiplier: 2,
			},
			Consumer: ConsumerConfig{
				PrefetchCount:   64,
				Concurrency:     4,
				DeliveryTimeout: 5 * time.Second,
			},
		},
		Events: EventsConfig{
			Mode:          EventsModeInProcess,
			NotifyTimeout: 5 * time.Second,
		},
		Auth: AuthConfig{CookieName: "token"},
		Realtime: RealtimeConfig{
			SendBuffer:     64,
			WriteWait:      10 * time.Second,
			PongWait:       60 * time.Second,
			PingInterval:   54 * time.Second,
			MaxMessageSize: 8 * 1024,
			EventTimeout:   10 * time.Second,
			AllowedOrigins: []string{"http://localhost:5173"},
		},
		Messaging: MessagingConfig{MaxTextLength: 1000},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
			Output: "stdout",
		},
		App: AppConfig{
			Name:        "gigflow-api",
			Environment: "development",
		},
	}
}

// Load reads the configuration file over the defaults, then applies
// environment overrides
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := env.Parse(config); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	return config, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port < MinPort || c.Server.Port > MaxPort {
		return fmt.Errorf("invalid server port: %d (must be between %d and %d)", c.Server.Port, MinPort, MaxPort)
	}

	switch c.Storage.Driver {
	case StorageDriverPostgres:
		if err := c.validateDatabase(); err != nil {
			return err
		}
	case StorageDriverMemory:
	default:
		return fmt.Errorf("unknown storage driver: %q (must be %q or %q)", c.Storage.Driver, StorageDriverPostgres, StorageDriverMemory)
	}

	switch c.Events.Mode {
	case EventsModeInProcess:
	case EventsModeRabbitMQ:
		if err := c.validateRabbitMQ(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown events mode: %q (must be %q or %q)", c.Events.Mode, EventsModeInProcess, EventsModeRabbitMQ)
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth jwt_secret is required")
	}

	if c.Messaging.MaxTextLength <= 0 {
		return fmt.Errorf("messaging max_text_length must be greater than 0")
	}

	if c.Realtime.PongWait <= 0 || c.Realtime.PingInterval <= 0 {
		return fmt.Errorf("realtime pong_wait and ping_interval must be greater than 0")
	}

	if c.Realtime.PingInterval >= c.Realtime.PongWait {
		return fmt.Errorf("realtime ping_interval (%s) must be shorter than pong_wait (%s)", c.Realtime.PingInterval, c.Realtime.PongWait)
	}

	if c.Realtime.SendBuffer <= 0 {
		return fmt.Errorf("realtime send_buffer must be greater than 0")
	}

	for _, origin := range c.Realtime.AllowedOrigins {
		if strings.TrimSpace(origin) == "*" {
			return fmt.Errorf("realtime allowed_origins must list explicit origins, %q is not allowed with credentials", origin)
		}
	}

	return nil
}

func (c *Config) validateDatabase() error {
	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}

	if c.Database.Port < MinPort || c.Database.Port > MaxPort {
		return fmt.Errorf("invalid database port: %d (must be between %d and %d)", c.Database.Port, MinPort, MaxPort)
	}

	if c.Database.Database == "" {
		return fmt.Errorf("database name is required")
	}

	return nil
}

func (c *Config) validateRabbitMQ() error {
	if c.RabbitMQ.Host == "" {
		return fmt.Errorf("rabbitmq host is required")
	}

	if c.RabbitMQ.Port < MinPort || c.RabbitMQ.Port > MaxPort {
		return fmt.Errorf("invalid rabbitmq port: %d (must be between %d and %d)", c.RabbitMQ.Port, MinPort, MaxPort)
	}

	if c.RabbitMQ.Exchange.Name == "" {
		return fmt.Errorf("rabbitmq exchange name is required")
	}

	if c.RabbitMQ.Exchange.Type != "fanout" {
		return fmt.Errorf("rabbitmq exchange type must be fanout, got %q", c.RabbitMQ.Exchange.Type)
	}

	if c.RabbitMQ.Consumer.Concurrency <= 0 {
		return fmt.Errorf("rabbitmq consumer concurrency must be greater than 0")
	}

	return nil
}
