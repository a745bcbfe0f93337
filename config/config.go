package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// DatabaseConfig holds postgres connection settings for the gorm-backed store.
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"sslmode"`
}

// S3Config holds settings for the s3 blob backend.
type S3Config struct {
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	Bucket    string `mapstructure:"bucket"`
	KeyID     string `mapstructure:"key_id"`
	AccessKey string `mapstructure:"access_key"`
	Timeout   string `mapstructure:"timeout"`
	URLExpiry string `mapstructure:"url_expiry"`
}

// BlobConfig selects and configures the blob backend.
type BlobConfig struct {
	// Type is one of "memory", "filesystem" or "s3".
	Type      string   `mapstructure:"type"`
	Directory string   `mapstructure:"directory"`
	BaseURL   string   `mapstructure:"base_url"`
	S3        S3Config `mapstructure:"s3"`
}

// StorageConfig selects the metadata backend.
type StorageConfig struct {
	// Type is one of "memory" or "postgres".
	Type string `mapstructure:"type"`
}

type AppConfig struct {
	Port     int    `mapstructure:"port"`
	LogLevel string `mapstructure:"log_level"`

	Storage  StorageConfig  `mapstructure:"storage"`
	Database DatabaseConfig `mapstructure:"database"`
	Blob     BlobConfig     `mapstructure:"blob"`
}

var Cfg = &AppConfig{}

// Load populates Cfg from defaults, an optional config file, and environment
// variables (e.g. storage.type -> REGISTRY_STORAGE_TYPE).
func Load() error {
	viper.SetDefault("port", 3000)
	viper.SetDefault("log_level", "info")
	viper.SetDefault("storage.type", "memory")
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.username", "postgres")
	viper.SetDefault("database.password", "")
	viper.SetDefault("database.database", "release_registry")
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("blob.type", "memory")
	viper.SetDefault("blob.directory", "blobs")
	viper.SetDefault("blob.base_url", "")
	viper.SetDefault("blob.s3.timeout", "30s")
	viper.SetDefault("blob.s3.url_expiry", "1h")

	viper.SetEnvPrefix("REGISTRY")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("/etc/release-registry/")

	// Reading a config file is optional
	_ = viper.ReadInConfig()

	if err := viper.Unmarshal(Cfg); err != nil {
		return fmt.Errorf("failed to parse configuration: %w", err)
	}

	if Cfg.Port < 1 || Cfg.Port > 65535 {
		return fmt.Errorf("invalid port %d", Cfg.Port)
	}

	return nil
}
