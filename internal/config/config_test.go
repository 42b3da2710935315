package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{Port: 8080},
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			Database: "postpilot_db",
		},
		RabbitMQ: RabbitMQConfig{
			Host:     "localhost",
			Port:     5672,
			Exchange: ExchangeConfig{Name: "video_jobs_exchange"},
			Queue:    QueueConfig{Name: "video_jobs_queue"},
		},
		Storage: StorageConfig{
			Endpoint: "localhost:9000",
			Bucket:   "postpilot-media",
		},
		Scraper: ScraperConfig{
			BaseURL: "https://scraper.example.com/api/v2",
		},
		Transcoder: TranscoderConfig{
			BaseURL:    "https://transcoder.example.com/api/v1",
			WebhookURL: "https://app.example.com/api/v1/webhooks/transcode",
		},
		Upload: UploadConfig{
			BaseURL: "https://platform.example.com/api",
		},
		Publisher: PublisherConfig{
			BaseURL: "http://publisher:8081",
		},
		Worker: WorkerConfig{
			Concurrency:     5,
			JobTimeout:      15 * time.Minute,
			ShutdownTimeout: 30 * time.Second,
		},
	}
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name      string
		filePath  string
		wantErr   bool
		errString string
	}{
		{
			name:     "valid config file",
			filePath: "testdata/valid_config.yaml",
			wantErr:  false,
		},
		{
			name:      "non-existent file",
			filePath:  "testdata/nonexistent.yaml",
			wantErr:   true,
			errString: "failed to read config file",
		},
		{
			name:      "malformed yaml",
			filePath:  "testdata/malformed.yaml",
			wantErr:   true,
			errString: "failed to parse config file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(tt.filePath)

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
				assert.Nil(t, cfg)
			} else {
				require.NoError(t, err)
				require.NotNil(t, cfg)

				// Verify some key fields are populated
				assert.Equal(t, 8080, cfg.Server.Port)
				assert.Equal(t, "localhost", cfg.Database.Host)
				assert.Equal(t, "postpilot_db", cfg.Database.Database)
				assert.Equal(t, "video_jobs_exchange", cfg.RabbitMQ.Exchange.Name)
				assert.Equal(t, 3, cfg.RabbitMQ.Publish.RetryAttempts)
				assert.Equal(t, time.Second, cfg.RabbitMQ.Publish.RetryInterval)
				assert.Equal(t, 2.0, cfg.RabbitMQ.Publish.BackoffMultiplier)
				assert.Equal(t, 10, cfg.RabbitMQ.Consumer.PrefetchCount)
				assert.False(t, cfg.RabbitMQ.Consumer.Exclusive)
				assert.Equal(t, "postpilot-media", cfg.Storage.Bucket)
				assert.Equal(t, "high", cfg.Scraper.Quality)
				assert.Equal(t, 2*time.Hour, cfg.Transcoder.PresignTTL)
				assert.Equal(t, 512, cfg.Upload.MaxFileSizeMB)
				assert.Equal(t, 10, cfg.Upload.MonthlyTranscodeLimit)
				assert.Equal(t, "video-api-service", cfg.App.Name)
			}
		})
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SCRAPER_API_TOKEN", "env-scraper-token")
	t.Setenv("DATABASE_PASSWORD", "env-db-password")

	cfg, err := Load("testdata/valid_config.yaml")
	require.NoError(t, err)

	// File values win when present.
	assert.Equal(t, "test-scraper-token", cfg.Scraper.Token)
	assert.Equal(t, "postpilot", cfg.Database.Password)

	// Env fills in what the file leaves empty.
	cfg.Scraper.Token = ""
	cfg.applyEnvOverrides()
	assert.Equal(t, "env-scraper-token", cfg.Scraper.Token)
}

func TestValidateAPIConfig(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		errString string
	}{
		{
			name:   "valid config",
			mutate: func(_ *Config) {},
		},
		{
			name:      "invalid server port - too low",
			mutate:    func(c *Config) { c.Server.Port = 0 },
			errString: "invalid server port",
		},
		{
			name:      "invalid server port - too high",
			mutate:    func(c *Config) { c.Server.Port = 70000 },
			errString: "invalid server port",
		},
		{
			name:      "empty database host",
			mutate:    func(c *Config) { c.Database.Host = "" },
			errString: "database host is required",
		},
		{
			name:      "empty database name",
			mutate:    func(c *Config) { c.Database.Database = "" },
			errString: "database name is required",
		},
		{
			name:      "empty rabbitmq host",
			mutate:    func(c *Config) { c.RabbitMQ.Host = "" },
			errString: "rabbitmq host is required",
		},
		{
			name:      "empty exchange name",
			mutate:    func(c *Config) { c.RabbitMQ.Exchange.Name = "" },
			errString: "rabbitmq exchange name is required",
		},
		{
			name:      "empty queue name",
			mutate:    func(c *Config) { c.RabbitMQ.Queue.Name = "" },
			errString: "rabbitmq queue name is required",
		},
		{
			name:      "empty storage endpoint",
			mutate:    func(c *Config) { c.Storage.Endpoint = "" },
			errString: "storage endpoint is required",
		},
		{
			name:      "empty storage bucket",
			mutate:    func(c *Config) { c.Storage.Bucket = "" },
			errString: "storage bucket is required",
		},
		{
			name:      "empty publisher url",
			mutate:    func(c *Config) { c.Publisher.BaseURL = "" },
			errString: "publisher base_url is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.ValidateAPIConfig()
			if tt.errString != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestValidateWorkerConfig(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		errString string
	}{
		{
			name:   "valid config",
			mutate: func(_ *Config) {},
		},
		{
			name:      "zero concurrency",
			mutate:    func(c *Config) { c.Worker.Concurrency = 0 },
			errString: "worker concurrency must be greater than 0",
		},
		{
			name:      "zero job timeout",
			mutate:    func(c *Config) { c.Worker.JobTimeout = 0 },
			errString: "worker job_timeout must be greater than 0",
		},
		{
			name:      "zero shutdown timeout",
			mutate:    func(c *Config) { c.Worker.ShutdownTimeout = 0 },
			errString: "worker shutdown_timeout must be greater than 0",
		},
		{
			name:      "empty scraper url",
			mutate:    func(c *Config) { c.Scraper.BaseURL = "" },
			errString: "scraper base_url is required",
		},
		{
			name:      "empty transcoder url",
			mutate:    func(c *Config) { c.Transcoder.BaseURL = "" },
			errString: "transcoder base_url is required",
		},
		{
			name:      "empty webhook url",
			mutate:    func(c *Config) { c.Transcoder.WebhookURL = "" },
			errString: "transcoder webhook_url is required",
		},
		{
			name:      "empty upload url",
			mutate:    func(c *Config) { c.Upload.BaseURL = "" },
			errString: "upload base_url is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.ValidateWorkerConfig()
			if tt.errString != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestUploadConfig_Limits(t *testing.T) {
	u := UploadConfig{
		MaxFileSizeMB:         512,
		MaxDurationSeconds:    6000,
		MonthlyTranscodeLimit: 10,
	}

	limits := u.Limits()
	assert.Equal(t, 512, limits.MaxFileSizeMB)
	assert.Equal(t, 6000, limits.MaxDurationSeconds)
	assert.Equal(t, 10, limits.MonthlyTranscodeLimit)
}
