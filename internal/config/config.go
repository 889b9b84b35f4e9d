// Package config handles loading and parsing application configuration.
// It supports two sources for the file location (in priority order):
//  1. A command-line flag:      --config=/path/to/config.yaml
//  2. An environment variable:  CONFIG_PATH=/path/to/config.yaml
//
// Every value in the file can be overridden by the environment variable
// named in its env:"..." tag.
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config is the root configuration structure.
type Config struct {
	// Env controls log format and verbosity.
	// Valid values: "dev", "staging", "prod"
	Env string `yaml:"env" env:"ENV" env-default:"dev"`

	// ServiceName is attached to every log line.
	ServiceName string `yaml:"service_name" env:"SERVICE_NAME" env-default:"campus-api"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`

	Database Database `yaml:"database"`

	// HTTPServer is embedded so cfg.Addr works as well as cfg.HTTPServer.Addr.
	HTTPServer `yaml:"http_server"`

	// GRPCHealthAddr enables the gRPC health listener when non-empty.
	GRPCHealthAddr string `yaml:"grpc_health_address" env:"GRPC_HEALTH_ADDR"`

	Auth     Auth     `yaml:"auth"`
	Chat     Chat     `yaml:"chat"`
	Realtime Realtime `yaml:"realtime"`
}

// Database selects the relational backend.
type Database struct {
	// Driver is "sqlite" or "postgres".
	Driver string `yaml:"driver" env:"DB_DRIVER" env-default:"sqlite"`

	// StoragePath is the filesystem path to the SQLite .db file.
	StoragePath string `yaml:"storage_path" env:"STORAGE_PATH" env-default:"storage/campus.db"`

	// DSN is the PostgreSQL connection string, used when Driver is "postgres".
	DSN string `yaml:"dsn" env:"PG_DSN"`
}

// HTTPServer holds settings specific to the HTTP server.
type HTTPServer struct {
	// Addr is the TCP address the server listens on, e.g. "localhost:8082".
	Addr string `yaml:"address" env:"HTTP_SERVER_ADDR" env-required:"true"`

	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"HTTP_SHUTDOWN_TIMEOUT" env-default:"5s"`
}

// Auth configures session tokens.
type Auth struct {
	JWTSecret string        `yaml:"jwt_secret" env:"JWT_SECRET" env-required:"true"`
	TokenTTL  time.Duration `yaml:"token_ttl" env:"TOKEN_TTL" env-default:"72h"`
}

// Chat configures the chatbot proxy.
//
// The credential itself is never stored here: APIKeyEnv names the
// environment variable that is read on every request.
type Chat struct {
	// Provider is "gateway" (OpenAI-compatible endpoint) or "gemini".
	Provider   string `yaml:"provider" env:"CHAT_PROVIDER" env-default:"gateway"`
	GatewayURL string `yaml:"gateway_url" env:"CHAT_GATEWAY_URL" env-default:"https://ai.gateway.lovable.dev/v1/chat/completions"`
	Model      string `yaml:"model" env:"CHAT_MODEL" env-default:"google/gemini-2.5-flash"`
	APIKeyEnv  string `yaml:"api_key_env" env:"CHAT_API_KEY_ENV" env-default:"LOVABLE_API_KEY"`
}

// Realtime configures the change feed.
type Realtime struct {
	// RabbitMQURL routes changes through a broker when set; otherwise the
	// in-process hub is used directly.
	RabbitMQURL      string `yaml:"rabbitmq_url" env:"RABBITMQ_URL"`
	SubscriberBuffer int    `yaml:"subscriber_buffer" env:"REALTIME_SUBSCRIBER_BUFFER" env-default:"64"`
}

// Load reads the config file at path (or CONFIG_PATH when path is empty)
// and applies environment overrides.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		return nil, errors.New("config path is not set: use --config flag or CONFIG_PATH env var")
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %s", path)
	}

	var cfg Config
	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return nil, fmt.Errorf("cannot read config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// MustLoad is Load for callers that cannot continue without a config.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		log.Fatal(err)
	}
	return cfg
}

func (c *Config) validate() error {
	switch c.Database.Driver {
	case "sqlite":
		if c.Database.StoragePath == "" {
			return errors.New("database.storage_path is required for the sqlite driver")
		}
	case "postgres":
		if c.Database.DSN == "" {
			return errors.New("database.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}

	switch c.Chat.Provider {
	case "gateway", "gemini":
	default:
		return fmt.Errorf("unsupported chat provider %q", c.Chat.Provider)
	}

	if c.Chat.APIKeyEnv == "" {
		return errors.New("chat.api_key_env must name an environment variable")
	}

	return nil
}
