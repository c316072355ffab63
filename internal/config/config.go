package config

import (
	"time"

	"github.com/carvio/listing-service/internal/platform/logger"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Config holds all configuration for the service.
type Config struct {
	ServiceName           string `mapstructure:"SERVICE_NAME"`
	HTTPPort              string `mapstructure:"HTTP_PORT"`
	PrometheusMetricsPort string `mapstructure:"PROMETHEUS_METRICS_PORT"`

	MongoURI      string `mapstructure:"MONGO_URI"`
	MongoDatabase string `mapstructure:"MONGO_DATABASE"`

	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`

	NATSURL string `mapstructure:"NATS_URL"`

	S3Endpoint  string `mapstructure:"S3_ENDPOINT"`
	S3AccessKey string `mapstructure:"S3_ACCESS_KEY"`
	S3SecretKey string `mapstructure:"S3_SECRET_KEY"`
	S3Bucket    string `mapstructure:"S3_BUCKET"`
	S3UseSSL    bool   `mapstructure:"S3_USE_SSL"`

	JWTSecret string `mapstructure:"JWT_SECRET"`

	// Lifecycle
	RetentionDays          int    `mapstructure:"RETENTION_DAYS"`
	SweepEnabled           bool   `mapstructure:"SWEEP_ENABLED"`
	SweepDailyTime         string `mapstructure:"SWEEP_DAILY_TIME"` // "HH:MM"
	ImageDeleteTimeoutSecs int    `mapstructure:"IMAGE_DELETE_TIMEOUT_SECONDS"`

	LogLevel               string `mapstructure:"LOG_LEVEL"`
	LogFormat              string `mapstructure:"LOG_FORMAT"`
	OTExporterOTLPEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
}

// RetentionWindow is the delay between a sale and sweep eligibility.
func (c *Config) RetentionWindow() time.Duration {
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}

// ImageDeleteTimeout bounds each individual object-storage deletion call.
func (c *Config) ImageDeleteTimeout() time.Duration {
	return time.Duration(c.ImageDeleteTimeoutSecs) * time.Second
}

// LoadConfig reads configuration from environment variables.
func LoadConfig(appLogger *logger.Logger) (*Config, error) {
	viper.SetDefault("SERVICE_NAME", "listing-service")
	viper.SetDefault("HTTP_PORT", "8081")
	viper.SetDefault("PROMETHEUS_METRICS_PORT", "9091")
	viper.SetDefault("MONGO_URI", "mongodb://localhost:27017")
	viper.SetDefault("MONGO_DATABASE", "carvio_listings")
	viper.SetDefault("REDIS_ADDR", "localhost:6379")
	viper.SetDefault("REDIS_PASSWORD", "")
	viper.SetDefault("NATS_URL", "nats://localhost:4222")
	viper.SetDefault("S3_ENDPOINT", "localhost:9000")
	viper.SetDefault("S3_ACCESS_KEY", "minioadmin")
	viper.SetDefault("S3_SECRET_KEY", "minioadmin")
	viper.SetDefault("S3_BUCKET", "listing-images")
	viper.SetDefault("S3_USE_SSL", false)
	viper.SetDefault("JWT_SECRET", "")
	viper.SetDefault("RETENTION_DAYS", 7)
	viper.SetDefault("SWEEP_ENABLED", true)
	viper.SetDefault("SWEEP_DAILY_TIME", "03:00")
	viper.SetDefault("IMAGE_DELETE_TIMEOUT_SECONDS", 10)
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("LOG_FORMAT", "json")
	viper.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")

	viper.AutomaticEnv()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		appLogger.Error("Failed to unmarshal configuration", zap.Error(err))
		return nil, err
	}

	if cfg.MongoURI == "" {
		appLogger.Fatal("MONGO_URI is not set. This is required.")
	}
	if cfg.MongoDatabase == "" {
		appLogger.Fatal("MONGO_DATABASE is not set. This is required.")
	}
	if cfg.JWTSecret == "" {
		appLogger.Warn("JWT_SECRET is empty. Set a strong secret in your environment.")
	}
	if cfg.RetentionDays <= 0 {
		appLogger.Warn("RETENTION_DAYS must be positive, falling back to 7", zap.Int("configured", cfg.RetentionDays))
		cfg.RetentionDays = 7
	}

	appLogger.Debug("Configuration loaded",
		zap.String("service_name", cfg.ServiceName),
		zap.String("http_port", cfg.HTTPPort),
		zap.String("mongo_database", cfg.MongoDatabase),
		zap.String("nats_url", cfg.NATSURL),
		zap.String("s3_endpoint", cfg.S3Endpoint),
		zap.Int("retention_days", cfg.RetentionDays),
		zap.Bool("sweep_enabled", cfg.SweepEnabled),
		zap.String("sweep_daily_time", cfg.SweepDailyTime),
	)

	return &cfg, nil
}
