package common

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Store    StoreConfig
	OCR      OCRConfig
	Report   ReportConfig
	Limits   LimitsConfig
	Database DatabaseConfig
	Queue    QueueConfig
	Watch    WatchConfig
	Log      LogConfig
}

// ServerConfig holds listener addresses for the invocation boundaries
type ServerConfig struct {
	HTTPAddr string
	GRPCAddr string
}

// StoreConfig selects and configures the persistence gateway
type StoreConfig struct {
	Backend           string // s3 | fs | memory
	Bucket            string
	Prefix            string
	FSRoot            string
	Region            string
	Endpoint          string // optional S3-compatible endpoint
	ConditionalWrites bool
}

// OCRConfig holds OCR and rasterization configuration
type OCRConfig struct {
	Engine      string // cli | gosseract
	Tesseract   string
	Pdftoppm    string
	TessdataDir string
	Lang        string
	DPI         int
	MaxPages    int
}

// ReportConfig holds spreadsheet report options
type ReportConfig struct {
	EmbedMode string // memory | tempfile
	TempDir   string
}

// LimitsConfig holds per-invocation limits
type LimitsConfig struct {
	MaxBodyBytes       int64
	PersistMaxAttempts int
}

// DatabaseConfig holds run-ledger configuration
type DatabaseConfig struct {
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// QueueConfig holds async worker configuration
type QueueConfig struct {
	Workers        int
	Size           int
	ProcessTimeout time.Duration
}

// WatchConfig holds inbox watcher configuration
type WatchConfig struct {
	Dirs     []string
	Debounce time.Duration
}

// LogConfig holds logger configuration
type LogConfig struct {
	Level  string // debug | info | warn | error
	Format string // json | text
}

// DefaultMaxBodyBytes is the inbound payload bound (5 MiB).
const DefaultMaxBodyBytes int64 = 5 << 20

// LoadDotEnv loads variables from the given .env files (default ".env") without
// overriding the process environment. A missing file is not an error.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return NewAppError("CONFIG_ERROR", "load "+f, err)
		}
	}
	return nil
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPAddr: getEnv("HTTP_ADDR", ":8080"),
			GRPCAddr: getEnv("GRPC_ADDR", ":9090"),
		},
		Store: StoreConfig{
			Backend:           strings.ToLower(getEnv("STORE_BACKEND", "s3")),
			Bucket:            getEnv("S3_BUCKET", "ocr-envelopes"),
			Prefix:            getEnv("REPORT_PREFIX", "ocr-results"),
			FSRoot:            getEnv("FS_STORE_ROOT", "./tmp/store"),
			Region:            getEnv("AWS_REGION", ""),
			Endpoint:          getEnv("S3_ENDPOINT", ""),
			ConditionalWrites: getEnvAsBool("CONDITIONAL_WRITES", true),
		},
		OCR: OCRConfig{
			Engine:      strings.ToLower(getEnv("OCR_ENGINE", "cli")),
			Tesseract:   getEnv("TESSERACT_BIN", "tesseract"),
			Pdftoppm:    getEnv("PDFTOPPM_BIN", "pdftoppm"),
			TessdataDir: getEnv("TESSDATA_PREFIX", ""),
			Lang:        getEnv("OCR_LANG", "eng"),
			DPI:         getEnvAsInt("RASTER_DPI", 300),
			MaxPages:    getEnvAsInt("MAX_PAGES", 0),
		},
		Report: ReportConfig{
			EmbedMode: strings.ToLower(getEnv("EMBED_MODE", "memory")),
			TempDir:   getEnv("REPORT_TMP_DIR", ""),
		},
		Limits: LimitsConfig{
			MaxBodyBytes:       getEnvAsInt64("MAX_BODY_BYTES", DefaultMaxBodyBytes),
			PersistMaxAttempts: getEnvAsInt("PERSIST_MAX_ATTEMPTS", 3),
		},
		Database: DatabaseConfig{
			DSN:              getEnv("DB_URL", ""),
			MaxConns:         getEnvAsInt32("DB_MAX_CONNS", 10),
			MinConns:         getEnvAsInt32("DB_MIN_CONNS", 1),
			MaxConnLifetime:  getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime:  getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:      getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
			StatementTimeout: getEnvAsDuration("DB_STATEMENT_TIMEOUT", 0),
		},
		Queue: QueueConfig{
			Workers:        getEnvAsInt("QUEUE_WORKERS", 1),
			Size:           getEnvAsInt("QUEUE_SIZE", 64),
			ProcessTimeout: getEnvAsDuration("PROCESS_TIMEOUT", 3*time.Minute),
		},
		Watch: WatchConfig{
			Dirs:     getEnvAsList("WATCH_DIRS"),
			Debounce: getEnvAsDuration("WATCH_DEBOUNCE", 500*time.Millisecond),
		},
		Log: LogConfig{
			Level:  strings.ToLower(getEnv("LOG_LEVEL", "info")),
			Format: strings.ToLower(getEnv("LOG_FORMAT", "json")),
		},
	}
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

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
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

func getEnvAsList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case "s3":
		if c.Store.Bucket == "" {
			return NewAppError("CONFIG_ERROR", "S3_BUCKET is required for the s3 backend", ErrInvalidInput)
		}
	case "fs":
		if c.Store.FSRoot == "" {
			return NewAppError("CONFIG_ERROR", "FS_STORE_ROOT is required for the fs backend", ErrInvalidInput)
		}
	case "memory":
	default:
		return NewAppError("CONFIG_ERROR", "STORE_BACKEND must be one of s3|fs|memory", ErrInvalidInput)
	}
	if c.OCR.Engine != "cli" && c.OCR.Engine != "gosseract" {
		return NewAppError("CONFIG_ERROR", "OCR_ENGINE must be cli or gosseract", ErrInvalidInput)
	}
	if c.Report.EmbedMode != "memory" && c.Report.EmbedMode != "tempfile" {
		return NewAppError("CONFIG_ERROR", "EMBED_MODE must be memory or tempfile", ErrInvalidInput)
	}
	if c.Limits.MaxBodyBytes <= 0 {
		return NewAppError("CONFIG_ERROR", "MAX_BODY_BYTES must be positive", ErrInvalidInput)
	}
	if c.Limits.PersistMaxAttempts < 1 {
		return NewAppError("CONFIG_ERROR", "PERSIST_MAX_ATTEMPTS must be at least 1", ErrInvalidInput)
	}
	return nil
}
