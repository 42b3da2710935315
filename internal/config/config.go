package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/postpilot/backend/internal/upload"
)

const (
	// MinPort is the minimum valid port number
	MinPort = 1
	// MaxPort is the maximum valid port number
	MaxPort = 65535
)

// Config represents the complete application configuration
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	RabbitMQ   RabbitMQConfig   `yaml:"rabbitmq"`
	Storage    StorageConfig    `yaml:"storage"`
	Scraper    ScraperConfig    `yaml:"scraper"`
	Transcoder TranscoderConfig `yaml:"transcoder"`
	Upload     UploadConfig     `yaml:"upload"`
	Publisher  PublisherConfig  `yaml:"publisher"`
	Logging    LoggingConfig    `yaml:"logging"`
	App        AppConfig        `yaml:"app"`
	Worker     WorkerConfig     `yaml:"worker"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig holds PostgreSQL connection configuration
type DatabaseConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	SSLMode         string        `yaml:"sslmode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
}

// RabbitMQConfig holds RabbitMQ connection and exchange/queue configuration
type RabbitMQConfig struct {
	Host       string           `yaml:"host"`
	Port       int              `yaml:"port"`
	User       string           `yaml:"user"`
	Password   string           `yaml:"password"`
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

// QueueConfig holds RabbitMQ queue configuration
type QueueConfig struct {
	Name       string `yaml:"name"`
	Durable    bool   `yaml:"durable"`
	AutoDelete bool   `yaml:"auto_delete"`
	Exclusive  bool   `yaml:"exclusive"`
}

// ConnectionConfig holds RabbitMQ connection settings
type ConnectionConfig struct {
	RetryAttempts     int           `yaml:"retry_attempts"`
	RetryInterval     time.Duration `yaml:"retry_interval"`
	Heartbeat         time.Duration `yaml:"heartbeat"`
	ConnectionTimeout time.Duration `yaml:"connection_timeout"`
}

// PublishConfig holds RabbitMQ publish retry settings
type PublishConfig struct {
	RetryAttempts     int           `yaml:"retry_attempts"`
	RetryInterval     time.Duration `yaml:"retry_interval"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier"`
}

// ConsumerConfig holds RabbitMQ consumer settings. There is no auto-ack
// knob: deliveries are always acked manually, because the worker's requeue
// decision rides on the ack/nack.
type ConsumerConfig struct {
	PrefetchCount int  `yaml:"prefetch_count"`
	Exclusive     bool `yaml:"exclusive"`
}

// StorageConfig holds MinIO object storage configuration. AccessKey and
// SecretKey fall back to MINIO_ACCESS_KEY / MINIO_SECRET_KEY when empty so
// credentials stay out of checked-in config files.
type StorageConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	UseSSL    bool   `yaml:"use_ssl"`
	Bucket    string `yaml:"bucket"`
}

// ScraperConfig holds the external scraping service configuration. Token
// falls back to SCRAPER_API_TOKEN when empty.
type ScraperConfig struct {
	BaseURL string `yaml:"base_url"`
	Token   string `yaml:"token"`
	Quality string `yaml:"quality"`
}

// TranscoderConfig holds the transcoding service configuration. APIKey falls
// back to TRANSCODER_API_KEY when empty. WebhookURL is the publicly
// reachable completion callback endpoint.
type TranscoderConfig struct {
	BaseURL    string        `yaml:"base_url"`
	APIKey     string        `yaml:"api_key"`
	WebhookURL string        `yaml:"webhook_url"`
	PresignTTL time.Duration `yaml:"presign_ttl"`
}

// UploadConfig holds the platform media upload configuration and the
// pre-upload screening limits. Token falls back to UPLOAD_API_TOKEN.
type UploadConfig struct {
	BaseURL               string `yaml:"base_url"`
	Token                 string `yaml:"token"`
	MaxFileSizeMB         int    `yaml:"max_file_size_mb"`
	MaxDurationSeconds    int    `yaml:"max_duration_seconds"`
	MonthlyTranscodeLimit int    `yaml:"monthly_transcode_limit"`
}

// Limits converts the screening fields into upload.Limits.
func (u UploadConfig) Limits() upload.Limits {
	return upload.Limits{
		MaxFileSizeMB:         u.MaxFileSizeMB,
		MaxDurationSeconds:    u.MaxDurationSeconds,
		MonthlyTranscodeLimit: u.MonthlyTranscodeLimit,
	}
}

// PublisherConfig holds the internal publication service configuration.
type PublisherConfig struct {
	BaseURL string `yaml:"base_url"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level            string `yaml:"level"`
	Format           string `yaml:"format"`
	Output           string `yaml:"output"`
	EnableCaller     bool   `yaml:"enable_caller"`
	EnableStackTrace bool   `yaml:"enable_stack_trace"`
}

// AppConfig holds application metadata
type AppConfig struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Environment string `yaml:"environment"`
}

// WorkerConfig holds worker service configuration
type WorkerConfig struct {
	Concurrency       int           `yaml:"concurrency"`
	MaxJobs           int           `yaml:"max_jobs"`
	JobTimeout        time.Duration `yaml:"job_timeout"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`
}

// Load reads and parses the configuration file, then applies environment
// overrides for secrets.
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.applyEnvOverrides()

	return &config, nil
}

func (c *Config) applyEnvOverrides() {
	overrideFromEnv(&c.Database.Password, "DATABASE_PASSWORD")
	overrideFromEnv(&c.RabbitMQ.Password, "RABBITMQ_PASSWORD")
	overrideFromEnv(&c.Storage.AccessKey, "MINIO_ACCESS_KEY")
	overrideFromEnv(&c.Storage.SecretKey, "MINIO_SECRET_KEY")
	overrideFromEnv(&c.Scraper.Token, "SCRAPER_API_TOKEN")
	overrideFromEnv(&c.Transcoder.APIKey, "TRANSCODER_API_KEY")
	overrideFromEnv(&c.Upload.Token, "UPLOAD_API_TOKEN")
}

func overrideFromEnv(target *string, key string) {
	if *target != "" {
		return
	}
	if v := os.Getenv(key); v != "" {
		*target = v
	}
}

// ValidateAPIConfig checks the fields the API service depends on.
func (c *Config) ValidateAPIConfig() error {
	if c.Server.Port < MinPort || c.Server.Port > MaxPort {
		return fmt.Errorf("invalid server port: %d (must be between %d and %d)", c.Server.Port, MinPort, MaxPort)
	}

	if err := c.validateShared(); err != nil {
		return err
	}

	if c.Publisher.BaseURL == "" {
		return fmt.Errorf("publisher base_url is required")
	}

	return nil
}

// ValidateWorkerConfig checks the fields the worker service depends on.
func (c *Config) ValidateWorkerConfig() error {
	if c.Worker.Concurrency <= 0 {
		return fmt.Errorf("worker concurrency must be greater than 0")
	}

	if c.Worker.JobTimeout <= 0 {
		return fmt.Errorf("worker job_timeout must be greater than 0")
	}

	if c.Worker.ShutdownTimeout <= 0 {
		return fmt.Errorf("worker shutdown_timeout must be greater than 0")
	}

	if err := c.validateShared(); err != nil {
		return err
	}

	if c.Scraper.BaseURL == "" {
		return fmt.Errorf("scraper base_url is required")
	}

	if c.Transcoder.BaseURL == "" {
		return fmt.Errorf("transcoder base_url is required")
	}

	if c.Transcoder.WebhookURL == "" {
		return fmt.Errorf("transcoder webhook_url is required")
	}

	if c.Upload.BaseURL == "" {
		return fmt.Errorf("upload base_url is required")
	}

	if c.Publisher.BaseURL == "" {
		return fmt.Errorf("publisher base_url is required")
	}

	return nil
}

func (c *Config) validateShared() error {
	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}

	if c.Database.Port < MinPort || c.Database.Port > MaxPort {
		return fmt.Errorf("invalid database port: %d (must be between %d and %d)", c.Database.Port, MinPort, MaxPort)
	}

	if c.Database.Database == "" {
		return fmt.Errorf("database name is required")
	}

	if c.RabbitMQ.Host == "" {
		return fmt.Errorf("rabbitmq host is required")
	}

	if c.RabbitMQ.Port < MinPort || c.RabbitMQ.Port > MaxPort {
		return fmt.Errorf("invalid rabbitmq port: %d (must be between %d and %d)", c.RabbitMQ.Port, MinPort, MaxPort)
	}

	if c.RabbitMQ.Exchange.Name == "" {
		return fmt.Errorf("rabbitmq exchange name is required")
	}

	if c.RabbitMQ.Queue.Name == "" {
		return fmt.Errorf("rabbitmq queue name is required")
	}

	if c.Storage.Endpoint == "" {
		return fmt.Errorf("storage endpoint is required")
	}

	if c.Storage.Bucket == "" {
		return fmt.Errorf("storage bucket is required")
	}

	return nil
}
