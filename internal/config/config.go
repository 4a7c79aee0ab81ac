// Package config loads runtime configuration from environment,
// optional config file, and bound flags.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix          = "STUDYSHELF"
	defaultHTTPAddress = "0.0.0.0:8080"
	defaultDatabaseDSN = "studyshelf.db"
	defaultLogLevel    = "info"
	defaultTokenTTL    = 24 * time.Hour
	defaultMinioBucket = "studyshelf-notes"
)

// AppConfig captures runtime configuration for the API server.
type AppConfig struct {
	HTTPAddress   string
	DatabaseDSN   string
	SigningSecret string
	TokenTTL      time.Duration
	LogLevel      string

	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("database.dsn", defaultDatabaseDSN)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("auth.token_ttl", defaultTokenTTL.String())
	configViper.SetDefault("minio.bucket", defaultMinioBucket)
	configViper.SetDefault("minio.use_ssl", false)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:    configViper.GetString("http.address"),
		DatabaseDSN:    configViper.GetString("database.dsn"),
		SigningSecret:  configViper.GetString("auth.signing_secret"),
		TokenTTL:       configViper.GetDuration("auth.token_ttl"),
		LogLevel:       configViper.GetString("log.level"),
		MinioEndpoint:  configViper.GetString("minio.endpoint"),
		MinioAccessKey: configViper.GetString("minio.access_key"),
		MinioSecretKey: configViper.GetString("minio.secret_key"),
		MinioBucket:    configViper.GetString("minio.bucket"),
		MinioUseSSL:    configViper.GetBool("minio.use_ssl"),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.SigningSecret) == "" {
		return fmt.Errorf("auth.signing_secret is required")
	}
	if strings.TrimSpace(c.DatabaseDSN) == "" {
		return fmt.Errorf("database.dsn is required")
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("auth.token_ttl must be positive")
	}
	return nil
}
