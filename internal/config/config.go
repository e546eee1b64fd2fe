package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Brevo   BrevoConfig   `yaml:"brevo"`
	Storage StorageConfig `yaml:"storage"`
	Logging LoggingConfig `yaml:"logging"`
	CORS    CORSConfig    `yaml:"cors"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

// GetHost returns the server host, with container detection
func (c ServerConfig) GetHost() string {
	// On ECS/container, listen on all interfaces
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return "0.0.0.0"
	}
	// Allow override via environment
	if host := os.Getenv("SERVER_HOST"); host != "" {
		return host
	}
	return c.Host
}

// BrevoConfig holds Brevo API configuration. Per-account API keys live in
// the account store, not here; this only covers the endpoint itself.
type BrevoConfig struct {
	BaseURL        string `yaml:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Timeout returns the configured timeout as a duration
func (c BrevoConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// StorageConfig holds account-store configuration
type StorageConfig struct {
	Type         string `yaml:"type"` // "file", "postgres" or "s3"
	FilePath     string `yaml:"file_path"`
	DatabaseURL  string `yaml:"database_url"`
	S3Bucket     string `yaml:"s3_bucket"`
	S3Key        string `yaml:"s3_key"`
	AWSRegion    string `yaml:"aws_region"`
	AWSProfile   string `yaml:"aws_profile"` // Empty string uses default credential chain (IAM role on ECS)
	AWSAccessKey string `yaml:"aws_access_key"`
	AWSSecretKey string `yaml:"aws_secret_key"`
}

// GetAWSProfile returns the AWS profile, with environment variable override
func (c StorageConfig) GetAWSProfile() string {
	if envProfile := os.Getenv("AWS_PROFILE_OVERRIDE"); envProfile != "" {
		if envProfile == "none" || envProfile == "iam" {
			return "" // Use default credential chain (IAM role)
		}
		return envProfile
	}
	// On ECS/Lambda, don't use a profile - use IAM role
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return ""
	}
	return c.AWSProfile
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level     string `yaml:"level"` // debug, info, warn, error
	RedactPII *bool  `yaml:"redact_pii"`
}

// PIIRedactionEnabled reports whether emails/API keys should be masked in
// logs. Defaults to true when unset.
func (c LoggingConfig) PIIRedactionEnabled() bool {
	if c.RedactPII == nil {
		return true
	}
	return *c.RedactPII
}

// CORSConfig holds allowed browser origins for the console UI
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	// Set defaults
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Brevo.BaseURL == "" {
		cfg.Brevo.BaseURL = "https://api.brevo.com/v3"
	}
	if cfg.Brevo.TimeoutSeconds == 0 {
		cfg.Brevo.TimeoutSeconds = 30
	}
	if cfg.Storage.Type == "" {
		cfg.Storage.Type = "file"
	}
	if cfg.Storage.FilePath == "" {
		cfg.Storage.FilePath = "./data/accounts.json"
	}
	if cfg.Storage.S3Key == "" {
		cfg.Storage.S3Key = "console/accounts.json"
	}
	if cfg.Storage.AWSRegion == "" {
		cfg.Storage.AWSRegion = "us-east-1"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if len(cfg.CORS.AllowedOrigins) == 0 {
		cfg.CORS.AllowedOrigins = []string{"http://localhost:5173", "http://localhost:8080"}
	}

	return &cfg, nil
}

// LoadFromEnv loads configuration with environment variable overrides.
// It automatically loads a .env file (if present) before reading env vars,
// so secrets can live in .env locally and in real env vars on ECS.
func LoadFromEnv(path string) (*Config, error) {
	// Load .env file if it exists (no error if missing)
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	// Override with environment variables if present
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = p
		}
	}
	if baseURL := os.Getenv("BREVO_BASE_URL"); baseURL != "" {
		cfg.Brevo.BaseURL = baseURL
	}
	if storageType := os.Getenv("STORAGE_TYPE"); storageType != "" {
		cfg.Storage.Type = storageType
	}
	if filePath := os.Getenv("ACCOUNTS_FILE"); filePath != "" {
		cfg.Storage.FilePath = filePath
	}

	// Database override (for deployments where config.yaml has local defaults)
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		cfg.Storage.DatabaseURL = dbURL
		if cfg.Storage.Type == "" || cfg.Storage.Type == "file" {
			cfg.Storage.Type = "postgres"
		}
	}

	// S3 overrides
	if bucket := os.Getenv("ACCOUNTS_S3_BUCKET"); bucket != "" {
		cfg.Storage.S3Bucket = bucket
	}
	if key := os.Getenv("ACCOUNTS_S3_KEY"); key != "" {
		cfg.Storage.S3Key = key
	}
	if region := os.Getenv("AWS_REGION"); region != "" {
		cfg.Storage.AWSRegion = region
	}
	if accessKey := os.Getenv("AWS_ACCESS_KEY_ID"); accessKey != "" {
		cfg.Storage.AWSAccessKey = accessKey
	}
	if secretKey := os.Getenv("AWS_SECRET_ACCESS_KEY"); secretKey != "" {
		cfg.Storage.AWSSecretKey = secretKey
	}

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}

	return cfg, nil
}
