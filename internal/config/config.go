package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Environment string `envconfig:"ENV" default:"production" validate:"oneof=development production test"`
	Port        string `envconfig:"PORT" default:"5000" validate:"required,numeric"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat   string `envconfig:"LOG_FORMAT" default:"json" validate:"oneof=json text"`
	Storage     StorageConfig
	Limits      LimitsConfig
	RateLimit   RateLimitConfig
	Server      ServerConfig
}

type StorageConfig struct {
	UploadDir     string `envconfig:"UPLOAD_FOLDER" default:"uploads" validate:"required"`
	OutputDir     string `envconfig:"OUTPUT_FOLDER" default:"outputs" validate:"required"`
	ConversionDir string `envconfig:"CONVERSION_TEMP_DIR"`
}

type LimitsConfig struct {
	MaxContentLength   int64 `envconfig:"MAX_CONTENT_LENGTH" default:"1073741824" validate:"gt=0"`
	MaxFileSize        int64 `envconfig:"MAX_FILE_SIZE" default:"104857600" validate:"gt=0"`
	MaxFilesPerRequest int   `envconfig:"MAX_FILES_PER_REQUEST" default:"1" validate:"min=1"`
	MaxMultipartMemory int64 `envconfig:"MAX_MULTIPART_MEMORY" default:"33554432" validate:"gt=0"`
	ReclaimMemory      bool  `envconfig:"RECLAIM_MEMORY" default:"true"`
}

type RateLimitConfig struct {
	Enabled  bool   `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
	RedisURL string `envconfig:"REDIS_URL"`
	Upload   string `envconfig:"RATE_LIMIT_UPLOAD" default:"10 per minute"`
	Default  string `envconfig:"RATE_LIMIT_DEFAULT" default:"200 per day;50 per hour"`
}

type ServerConfig struct {
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"5m"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"10m"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"15s"`
}

// Load reads the configuration from the environment. Nested fields are
// looked up under their short names, e.g. UPLOAD_FOLDER.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}
	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
