// Package config loads the service configuration from a YAML file, with
// endpoints and credentials overridable from the environment or a .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gartstein/onboard/internal/onboarding/db"
	"github.com/gartstein/onboard/internal/onboarding/events"
	"github.com/gartstein/onboard/internal/onboarding/models"
	"github.com/gartstein/onboard/internal/onboarding/storage"
	"github.com/gartstein/onboard/internal/onboarding/validation"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultPath is used when neither a flag nor ONBOARD_CONFIG names a file.
var DefaultPath = filepath.Join("internal", "onboarding", "config", "config.yaml")

// Config struct for YAML configuration
type Config struct {
	GRPCPort int    `yaml:"GRPC_PORT"`
	HTTPPort int    `yaml:"HTTP_PORT"`
	LogLevel string `yaml:"LOG_LEVEL"`

	DBHost     string `yaml:"DB_HOST"`
	DBPort     int    `yaml:"DB_PORT"`
	DBUser     string `yaml:"DB_USER"`
	DBPassword string `yaml:"DB_PASSWORD"`
	DBName     string `yaml:"DB_NAME"`
	DBSSLMode  string `yaml:"DB_SSLMODE"`

	KafkaBrokers []string `yaml:"KAFKA_BROKERS"`
	Topic        string   `yaml:"TOPIC"`

	JWTSecret string `yaml:"JWT_SECRET"`

	S3Region             string `yaml:"S3_REGION"`
	S3Endpoint           string `yaml:"S3_ENDPOINT"`
	S3AccessKeyID        string `yaml:"S3_ACCESS_KEY_ID"`
	S3SecretAccessKey    string `yaml:"S3_SECRET_ACCESS_KEY"`
	S3UsePathStyle       bool   `yaml:"S3_USE_PATH_STYLE"`
	VerifiedPhotosBucket string `yaml:"VERIFIED_PHOTOS_BUCKET"`
	BusinessPhotosBucket string `yaml:"BUSINESS_PHOTOS_BUCKET"`
	MaxPhotoBytes        int64  `yaml:"MAX_PHOTO_BYTES"`

	// DefaultRole answers role lookups for users without a role row. An
	// explicit empty string disables the fallback.
	DefaultRole       *string `yaml:"DEFAULT_ROLE"`
	StrictTransitions bool    `yaml:"STRICT_TRANSITIONS"`
}

// Load reads path (or ONBOARD_CONFIG, or DefaultPath), applies a .env file
// from the working directory when present and then environment overrides.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	if path == "" {
		path = os.Getenv("ONBOARD_CONFIG")
	}
	if path == "" {
		path = DefaultPath
	}

	file, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(file)
}

// Parse decodes YAML, applies environment overrides and fills defaults.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() error {
	setString := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}
	setString("DB_HOST", &c.DBHost)
	setString("DB_USER", &c.DBUser)
	setString("DB_PASSWORD", &c.DBPassword)
	setString("DB_NAME", &c.DBName)
	setString("DB_SSLMODE", &c.DBSSLMode)
	setString("JWT_SECRET", &c.JWTSecret)
	setString("S3_REGION", &c.S3Region)
	setString("S3_ENDPOINT", &c.S3Endpoint)
	setString("S3_ACCESS_KEY_ID", &c.S3AccessKeyID)
	setString("S3_SECRET_ACCESS_KEY", &c.S3SecretAccessKey)

	if v, ok := os.LookupEnv("DB_PORT"); ok {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid DB_PORT %q: %w", v, err)
		}
		c.DBPort = port
	}
	if v, ok := os.LookupEnv("KAFKA_BROKERS"); ok {
		c.KafkaBrokers = splitList(v)
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.GRPCPort == 0 {
		c.GRPCPort = 50051
	}
	if c.HTTPPort == 0 {
		c.HTTPPort = 8080
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.DBSSLMode == "" {
		c.DBSSLMode = "disable"
	}
	if c.Topic == "" {
		c.Topic = events.DefaultTopic
	}
	if c.S3Region == "" {
		c.S3Region = "us-east-1"
	}
	if c.VerifiedPhotosBucket == "" {
		c.VerifiedPhotosBucket = storage.DefaultVerifiedBucket
	}
	if c.BusinessPhotosBucket == "" {
		c.BusinessPhotosBucket = storage.DefaultBusinessBucket
	}
	if c.MaxPhotoBytes <= 0 {
		c.MaxPhotoBytes = validation.DefaultMaxPhotoBytes
	}
	if c.DefaultRole == nil {
		role := string(models.RoleSalesperson)
		c.DefaultRole = &role
	}
}

// Validate rejects settings the service cannot start with.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET must be set")
	}
	if c.DefaultRole != nil && *c.DefaultRole != "" && !models.Role(*c.DefaultRole).Valid() {
		return fmt.Errorf("DEFAULT_ROLE %q is not a known role", *c.DefaultRole)
	}
	return nil
}

// Database returns the connection settings for the repository.
func (c *Config) Database() *db.Config {
	return &db.Config{
		Host:     c.DBHost,
		Port:     c.DBPort,
		User:     c.DBUser,
		Password: c.DBPassword,
		DBName:   c.DBName,
		SSLMode:  c.DBSSLMode,
	}
}

// Storage returns the object storage settings.
func (c *Config) Storage() storage.Config {
	return storage.Config{
		Region:          c.S3Region,
		Endpoint:        c.S3Endpoint,
		AccessKeyID:     c.S3AccessKeyID,
		SecretAccessKey: c.S3SecretAccessKey,
		UsePathStyle:    c.S3UsePathStyle,
		VerifiedBucket:  c.VerifiedPhotosBucket,
		BusinessBucket:  c.BusinessPhotosBucket,
	}
}

// FallbackRole is the role for users without a row, empty when disabled.
func (c *Config) FallbackRole() models.Role {
	if c.DefaultRole == nil {
		return ""
	}
	return models.Role(*c.DefaultRole)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
