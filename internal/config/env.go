package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

var (
	ErrMissingRequired = errors.New("missing required configuration")
	ErrInvalidConfig   = errors.New("invalid configuration")
)

const (
	EmbedProviderGemini = "gemini"
	EmbedProviderOpenAI = "openai"

	TriggerInProcess = "inprocess"
	TriggerNSQ       = "nsq"
)

type Config struct {
	DatabaseURL   string `envconfig:"DATABASE_URL"`
	Port          string `envconfig:"PORT" default:"8080"`
	JWTSecret     string `envconfig:"JWT_SECRET"`
	InternalToken string `envconfig:"INTERNAL_TOKEN"`
	CorsOrigins   string `envconfig:"CORS_ORIGINS" default:"http://localhost:3000"`
	LogLevel      string `envconfig:"LOG_LEVEL" default:"info"`

	// Object storage
	AwsAccessKey string `envconfig:"AWS_ACCESS_KEY"`
	AwsSecretKey string `envconfig:"AWS_SECRET_KEY"`
	AwsRegion    string `envconfig:"AWS_REGION" default:"us-east-2"`
	S3Endpoint   string `envconfig:"S3_ENDPOINT"` // MinIO or other S3-compatible endpoint
	BucketName   string `envconfig:"BUCKET_NAME" default:"workflow-documents"`

	// Embeddings
	EmbedProvider   string  `envconfig:"EMBED_PROVIDER" default:"gemini"`
	GeminiAPIKey    string  `envconfig:"GEMINI_API_KEY"`
	OpenAIAPIKey    string  `envconfig:"OPENAI_API_KEY"`
	EmbedModel      string  `envconfig:"EMBED_MODEL"`
	EmbedDim        int     `envconfig:"EMBED_DIM" default:"768"`
	EmbedBatchSize  int     `envconfig:"EMBED_BATCH_SIZE" default:"100"`
	EmbedConcurrent int     `envconfig:"EMBED_CONCURRENCY" default:"1"`
	EmbedRatePerSec float64 `envconfig:"EMBED_RATE_PER_SEC" default:"0"`

	// Ingestion
	ChunkSize             int `envconfig:"CHUNK_SIZE" default:"1000"`
	ChunkOverlap          int `envconfig:"CHUNK_OVERLAP" default:"100"`
	KBInsertBatchSize     int `envconfig:"KB_INSERT_BATCH_SIZE" default:"50"`
	MaxUploadSizeMB       int `envconfig:"MAX_UPLOAD_SIZE_MB" default:"10"`
	MaxFilesPerBatch      int `envconfig:"MAX_FILES_PER_BATCH" default:"5"`
	IngestWorkers         int `envconfig:"INGEST_WORKERS" default:"4"`
	ProcessTimeoutSeconds int `envconfig:"PROCESS_TIMEOUT_SECONDS" default:"300"`

	// Trigger transport
	TriggerMode string `envconfig:"TRIGGER_MODE" default:"inprocess"`
	NSQDHost    string `envconfig:"NSQD_HOST" default:"nsqd:4150"`
	NSQLookupd  string `envconfig:"NSQ_LOOKUPD" default:"nsqlookupd:4161"`
	NSQTopic    string `envconfig:"NSQ_TOPIC" default:"documents.process"`
	NSQChannel  string `envconfig:"NSQ_CHANNEL" default:"ingestor"`

	// nsqd redelivers a message not touched within this window.
	NSQMsgTimeoutSeconds int `envconfig:"NSQ_MSG_TIMEOUT_SECONDS" default:"60"`
}

// LoadConfig loads .env (when present) and the process environment.
func LoadConfig() (*Config, error) {
	// A missing .env is fine; the variables may come from the shell.
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("%w: DATABASE_URL", ErrMissingRequired)
	}
	if c.ChunkSize <= c.ChunkOverlap || c.ChunkOverlap < 0 {
		return fmt.Errorf("%w: CHUNK_SIZE (%d) must be greater than CHUNK_OVERLAP (%d) >= 0",
			ErrInvalidConfig, c.ChunkSize, c.ChunkOverlap)
	}
	if c.EmbedBatchSize <= 0 || c.KBInsertBatchSize <= 0 {
		return fmt.Errorf("%w: batch sizes must be positive", ErrInvalidConfig)
	}
	if c.ProcessTimeoutSeconds <= 0 {
		return fmt.Errorf("%w: PROCESS_TIMEOUT_SECONDS must be positive", ErrInvalidConfig)
	}
	if c.EmbedDim <= 0 {
		return fmt.Errorf("%w: EMBED_DIM must be positive", ErrInvalidConfig)
	}
	switch c.EmbedProvider {
	case EmbedProviderGemini, EmbedProviderOpenAI:
	default:
		return fmt.Errorf("%w: EMBED_PROVIDER %q", ErrInvalidConfig, c.EmbedProvider)
	}
	switch c.TriggerMode {
	case TriggerInProcess, TriggerNSQ:
	default:
		return fmt.Errorf("%w: TRIGGER_MODE %q", ErrInvalidConfig, c.TriggerMode)
	}
	return nil
}

// ValidateServe checks the settings only the HTTP server needs.
func (c *Config) ValidateServe() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("%w: JWT_SECRET", ErrMissingRequired)
	}
	return nil
}

func (c *Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadSizeMB) << 20
}

func (c *Config) ProcessTimeout() time.Duration {
	return time.Duration(c.ProcessTimeoutSeconds) * time.Second
}

func (c *Config) NSQMsgTimeout() time.Duration {
	return time.Duration(c.NSQMsgTimeoutSeconds) * time.Second
}

func (c *Config) AllowedOrigins() []string {
	var out []string
	for _, o := range strings.Split(c.CorsOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
