package common

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	Pipeline PipelineConfig `yaml:"pipeline"`
	OCR      OCRConfig      `yaml:"ocr"`
	Output   OutputConfig   `yaml:"output"`
	Database DatabaseConfig `yaml:"database"`
	Storage  StorageConfig  `yaml:"storage"`
	Queue    QueueConfig    `yaml:"queue"`
	Server   ServerConfig   `yaml:"server"`
	Batch    BatchConfig    `yaml:"batch"`
}

// PipelineConfig holds recognition thresholds
type PipelineConfig struct {
	MaxWidth         int     `yaml:"max_width"`
	RegionConfidence float64 `yaml:"region_confidence"`
	MinConfidence    float64 `yaml:"min_confidence"`
	Dedup            bool    `yaml:"dedup"`
	Strict           bool    `yaml:"strict"`
	GrammarFile      string  `yaml:"grammar_file"`
}

// OCRConfig holds OCR-related configuration
type OCRConfig struct {
	Engine           string        `yaml:"engine"`
	Tesseract        string        `yaml:"tesseract"`
	Lang             string        `yaml:"lang"`
	PSM              int           `yaml:"psm"`
	TessdataDir      string        `yaml:"tessdata_dir"`
	Whitelist        string        `yaml:"whitelist"`
	HeicConverter    string        `yaml:"heic_converter"`
	ArtifactCacheDir string        `yaml:"artifact_cache_dir"`
	Timeout          time.Duration `yaml:"timeout"`
	AWSRegion        string        `yaml:"aws_region"`
}

// OutputConfig holds report destinations
type OutputConfig struct {
	Dir       string `yaml:"dir"`
	WriteXLSX bool   `yaml:"write_xlsx"`
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	Driver           string        `yaml:"driver"`
	DSN              string        `yaml:"dsn"`
	MaxConns         int32         `yaml:"max_conns"`
	MinConns         int32         `yaml:"min_conns"`
	MaxConnLifetime  time.Duration `yaml:"max_conn_lifetime"`
	MaxConnIdleTime  time.Duration `yaml:"max_conn_idle_time"`
	DialTimeout      time.Duration `yaml:"dial_timeout"`
	StatementTimeout time.Duration `yaml:"statement_timeout"`
}

// StorageConfig holds MinIO artifact upload configuration
type StorageConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// QueueConfig holds Redis job queue configuration
type QueueConfig struct {
	RedisURL    string        `yaml:"redis_url"`
	Name        string        `yaml:"name"`
	Concurrency int           `yaml:"concurrency"`
	PollTimeout time.Duration `yaml:"poll_timeout"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	HTTPAddr     string `yaml:"http_addr"`
	GRPCAddr     string `yaml:"grpc_addr"`
	MaxUploadMiB int64  `yaml:"max_upload_mib"`
}

// BatchConfig holds worker pool settings
type BatchConfig struct {
	Workers      int           `yaml:"workers"`
	QueueSize    int           `yaml:"queue_size"`
	ImageTimeout time.Duration `yaml:"image_timeout"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Pipeline: PipelineConfig{
			MaxWidth:         1200,
			RegionConfidence: 0.7,
		},
		OCR: OCRConfig{
			Engine:           "tesseract",
			Tesseract:        "tesseract",
			Lang:             "eng",
			PSM:              7,
			Whitelist:        "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789-",
			HeicConverter:    "magick",
			ArtifactCacheDir: "./tmp",
			Timeout:          30 * time.Second,
			AWSRegion:        "eu-west-1",
		},
		Output: OutputConfig{
			Dir: "./data/output",
		},
		Database: DatabaseConfig{
			Driver:          "sqlite",
			MaxConns:        20,
			MinConns:        5,
			MaxConnLifetime: 30 * time.Minute,
			MaxConnIdleTime: 5 * time.Minute,
			DialTimeout:     3 * time.Second,
		},
		Storage: StorageConfig{
			Bucket: "plates",
		},
		Queue: QueueConfig{
			Name:        "plates:jobs",
			Concurrency: 2,
			PollTimeout: 5 * time.Second,
		},
		Server: ServerConfig{
			HTTPAddr:     ":8080",
			GRPCAddr:     ":9090",
			MaxUploadMiB: 16,
		},
		Batch: BatchConfig{
			Workers:      4,
			QueueSize:    256,
			ImageTimeout: 2 * time.Minute,
		},
	}
}

// LoadConfig loads configuration from defaults, an optional YAML file named by
// PLATES_CONFIG_FILE, and environment variables (a local .env is honoured).
// Environment variables win over the file.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, NewAppError(CodeConfig, "failed to read .env", err)
	}

	cfg := DefaultConfig()
	if path := os.Getenv("PLATES_CONFIG_FILE"); path != "" {
		if err := cfg.overlayFile(path); err != nil {
			return nil, err
		}
	}
	cfg.overlayEnv()
	return cfg, nil
}

func (c *Config) overlayFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return NewAppError(CodeConfig, fmt.Sprintf("failed to read config file %s", path), err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return NewAppError(CodeConfig, fmt.Sprintf("failed to parse config file %s", path), err)
	}
	return nil
}

func (c *Config) overlayEnv() {
	c.Pipeline.MaxWidth = getEnvAsInt("PLATE_MAX_WIDTH", c.Pipeline.MaxWidth)
	c.Pipeline.RegionConfidence = getEnvAsFloat64("PLATE_REGION_CONFIDENCE", c.Pipeline.RegionConfidence)
	c.Pipeline.MinConfidence = getEnvAsFloat64("PLATE_MIN_CONFIDENCE", c.Pipeline.MinConfidence)
	c.Pipeline.Dedup = getEnvAsBool("PLATE_DEDUP", c.Pipeline.Dedup)
	c.Pipeline.Strict = getEnvAsBool("PLATE_STRICT", c.Pipeline.Strict)
	c.Pipeline.GrammarFile = getEnv("PLATE_GRAMMAR_FILE", c.Pipeline.GrammarFile)

	c.OCR.Engine = getEnv("OCR_ENGINE", c.OCR.Engine)
	c.OCR.Tesseract = getEnv("TESSERACT_BIN", c.OCR.Tesseract)
	c.OCR.Lang = getEnv("TESSERACT_LANG", c.OCR.Lang)
	c.OCR.PSM = getEnvAsInt("TESSERACT_PSM", c.OCR.PSM)
	c.OCR.TessdataDir = getEnv("TESSDATA_PREFIX", c.OCR.TessdataDir)
	c.OCR.Whitelist = getEnv("TESSERACT_WHITELIST", c.OCR.Whitelist)
	c.OCR.HeicConverter = getEnv("HEIC_CONVERTER", c.OCR.HeicConverter)
	c.OCR.ArtifactCacheDir = getEnv("ARTIFACT_CACHE_DIR", c.OCR.ArtifactCacheDir)
	c.OCR.Timeout = getEnvAsDuration("OCR_TIMEOUT", c.OCR.Timeout)
	c.OCR.AWSRegion = getEnv("AWS_REGION", c.OCR.AWSRegion)

	c.Output.Dir = getEnv("OUTPUT_DIR", c.Output.Dir)
	c.Output.WriteXLSX = getEnvAsBool("OUTPUT_XLSX", c.Output.WriteXLSX)

	c.Database.Driver = getEnv("DB_DRIVER", c.Database.Driver)
	c.Database.DSN = getEnv("DB_URL", c.Database.DSN)
	c.Database.MaxConns = getEnvAsInt32("DB_MAX_CONNS", c.Database.MaxConns)
	c.Database.MinConns = getEnvAsInt32("DB_MIN_CONNS", c.Database.MinConns)
	c.Database.MaxConnLifetime = getEnvAsDuration("DB_MAX_CONN_LIFETIME", c.Database.MaxConnLifetime)
	c.Database.MaxConnIdleTime = getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", c.Database.MaxConnIdleTime)
	c.Database.DialTimeout = getEnvAsDuration("DB_DIAL_TIMEOUT", c.Database.DialTimeout)
	c.Database.StatementTimeout = getEnvAsDuration("DB_STATEMENT_TIMEOUT", c.Database.StatementTimeout)

	c.Storage.Endpoint = getEnv("MINIO_ENDPOINT", c.Storage.Endpoint)
	c.Storage.AccessKey = getEnv("MINIO_ACCESS_KEY", c.Storage.AccessKey)
	c.Storage.SecretKey = getEnv("MINIO_SECRET_KEY", c.Storage.SecretKey)
	c.Storage.Bucket = getEnv("MINIO_BUCKET", c.Storage.Bucket)
	c.Storage.UseSSL = getEnvAsBool("MINIO_USE_SSL", c.Storage.UseSSL)

	c.Queue.RedisURL = getEnv("QUEUE_REDIS_URL", c.Queue.RedisURL)
	c.Queue.Name = getEnv("QUEUE_NAME", c.Queue.Name)
	c.Queue.Concurrency = getEnvAsInt("QUEUE_CONCURRENCY", c.Queue.Concurrency)
	c.Queue.PollTimeout = getEnvAsDuration("QUEUE_POLL_TIMEOUT", c.Queue.PollTimeout)

	c.Server.HTTPAddr = getEnv("HTTP_ADDR", c.Server.HTTPAddr)
	c.Server.GRPCAddr = getEnv("GRPC_ADDR", c.Server.GRPCAddr)
	c.Server.MaxUploadMiB = int64(getEnvAsInt("MAX_UPLOAD_MIB", int(c.Server.MaxUploadMiB)))

	c.Batch.Workers = getEnvAsInt("BATCH_WORKERS", c.Batch.Workers)
	c.Batch.QueueSize = getEnvAsInt("BATCH_QUEUE_SIZE", c.Batch.QueueSize)
	c.Batch.ImageTimeout = getEnvAsDuration("BATCH_IMAGE_TIMEOUT", c.Batch.ImageTimeout)
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if c.Pipeline.MaxWidth <= 0 {
		return NewAppError(CodeConfig, "PLATE_MAX_WIDTH must be positive", ErrInvalidInput)
	}
	if c.Pipeline.RegionConfidence < 0.5 || c.Pipeline.RegionConfidence > 0.7 {
		return NewAppError(CodeConfig, "PLATE_REGION_CONFIDENCE must be within [0.5,0.7]", ErrInvalidInput)
	}
	if c.Pipeline.MinConfidence < 0 || c.Pipeline.MinConfidence > 1 {
		return NewAppError(CodeConfig, "PLATE_MIN_CONFIDENCE must be within [0,1]", ErrInvalidInput)
	}
	switch c.OCR.Engine {
	case "tesseract", "gosseract", "rekognition":
	default:
		return NewAppError(CodeConfig, fmt.Sprintf("unknown OCR_ENGINE %q", c.OCR.Engine), ErrInvalidInput)
	}
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return NewAppError(CodeConfig, fmt.Sprintf("unknown DB_DRIVER %q", c.Database.Driver), ErrInvalidInput)
	}
	if c.Database.Driver == "postgres" && c.Database.DSN == "" {
		return NewAppError(CodeConfig, "DB_URL is required for postgres", ErrInvalidInput)
	}
	if c.Batch.Workers <= 0 {
		return NewAppError(CodeConfig, "BATCH_WORKERS must be positive", ErrInvalidInput)
	}
	return nil
}
