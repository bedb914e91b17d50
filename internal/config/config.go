package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Server   ServerConfig
	DB       DBConfig
	Redis    RedisConfig
	AMQP     AMQPConfig
	JWT      JWTConfig
	Dispatch DispatchConfig
	Storage  StorageConfig
	CORS     CORSConfig
	Log      LogConfig
}

type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8080"`
}

type DBConfig struct {
	Host         string `envconfig:"DB_HOST" default:"localhost"`
	Port         string `envconfig:"DB_PORT" default:"5432"`
	User         string `envconfig:"DB_USER" required:"true"`
	Password     string `envconfig:"DB_PASSWORD" required:"true"`
	Name         string `envconfig:"DB_NAME" required:"true"`
	SSLMode      string `envconfig:"DB_SSL_MODE" default:"disable"`
	MaxIdleConns int    `envconfig:"DB_MAX_IDLE_CONNS" default:"10"`
	MaxOpenConns int    `envconfig:"DB_MAX_OPEN_CONNS" default:"100"`
}

// RedisConfig enables the cross-replica relay when URL is set
type RedisConfig struct {
	URL     string `envconfig:"REDIS_URL"`
	Channel string `envconfig:"REDIS_EVENTS_CHANNEL" default:"pickup:events"`
}

// AMQPConfig enables the RabbitMQ relay when URL is set and Redis is not
type AMQPConfig struct {
	URL      string `envconfig:"AMQP_URL"`
	Exchange string `envconfig:"AMQP_EXCHANGE" default:"pickup.events"`
}

type JWTConfig struct {
	Secret   string        `envconfig:"JWT_SECRET" required:"true"`
	Duration time.Duration `envconfig:"JWT_DURATION" default:"168h"`
}

type DispatchConfig struct {
	PickupTTL           time.Duration `envconfig:"PICKUP_TTL" default:"10m"`
	PendingPageSize     int           `envconfig:"PENDING_PAGE_SIZE" default:"20"`
	ExpirySweepInterval time.Duration `envconfig:"EXPIRY_SWEEP_INTERVAL" default:"30s"`
	BusBuffer           int           `envconfig:"BUS_BUFFER" default:"256"`
}

// StorageConfig selects S3 when AWS credentials and a bucket are present,
// otherwise uploads are looked up under UploadDir.
type StorageConfig struct {
	AWSRegion    string `envconfig:"AWS_REGION"`
	AWSAccessKey string `envconfig:"AWS_ACCESS_KEY_ID"`
	AWSSecretKey string `envconfig:"AWS_SECRET_ACCESS_KEY"`
	Bucket       string `envconfig:"S3_BUCKET"`
	UploadDir    string `envconfig:"UPLOAD_DIR"`
}

type CORSConfig struct {
	AllowOrigins []string `envconfig:"CORS_ALLOW_ORIGINS" default:"*"`
}

type LogConfig struct {
	Level string `envconfig:"LOG_LEVEL" default:"info"`
}

func (c DBConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		c.Host, c.User, c.Password, c.Name, c.Port, c.SSLMode,
	)
}

func (c StorageConfig) UseS3() bool {
	return c.AWSRegion != "" && c.AWSAccessKey != "" && c.AWSSecretKey != "" && c.Bucket != ""
}

func (c LogConfig) SlogLevel() slog.Level {
	switch strings.ToLower(c.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Load reads an optional .env file and then the process environment
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", "error", err)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to process env config: %w", err)
	}
	if cfg.Dispatch.PickupTTL <= 0 {
		return Config{}, fmt.Errorf("PICKUP_TTL must be positive, got %s", cfg.Dispatch.PickupTTL)
	}
	if cfg.Dispatch.PendingPageSize <= 0 {
		cfg.Dispatch.PendingPageSize = 20
	}
	return cfg, nil
}
