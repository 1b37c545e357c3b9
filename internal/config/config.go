package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"
)

const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"

	MirrorNone   = "none"
	MirrorSheets = "sheets"
	MirrorMemory = "memory"
)

type Config struct {
	// HTTP Server
	Port                 string
	APIRequestsPerMinute int
	TrustProxyHeaders    bool
	ShutdownTimeout      time.Duration

	LogLevel      string
	AppConfigPath string

	// State storage
	StateBackend string
	StatePath    string
	SQLiteDBPath string

	// Spend-log mirror
	MirrorBackend           string
	GoogleSpreadsheetID     string
	GoogleSheetName         string
	SheetsRequestsPerMinute int
	SheetsCacheTTL          time.Duration

	// AMQP, optional
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Worker
	SyncBatchSize int
	SyncInterval  time.Duration
}

func Load() *Config {
	return &Config{
		Port:                 getEnv("PORT", "8080"),
		APIRequestsPerMinute: getEnvInt("API_REQUESTS_PER_MINUTE", 60),
		TrustProxyHeaders:    getEnv("TRUST_PROXY_HEADERS", "false") == "true",
		ShutdownTimeout:      getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),

		LogLevel:      getEnv("LOG_LEVEL", "info"),
		AppConfigPath: getEnv("APP_CONFIG_PATH", "./config/cashflow.yaml"),

		StateBackend: getEnv("STATE_BACKEND", BackendFile),
		StatePath:    getEnv("STATE_PATH", "./data/state.json"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/cashflow.db"),

		MirrorBackend:           getEnv("MIRROR_BACKEND", MirrorNone),
		GoogleSpreadsheetID:     getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:         getEnv("GOOGLE_SHEET_NAME", "Spends"),
		SheetsRequestsPerMinute: getEnvInt("SHEETS_REQUESTS_PER_MINUTE", 60),
		SheetsCacheTTL:          getEnvDuration("SHEETS_CACHE_TTL", time.Minute),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "cashflow"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "spend_log_sync"),

		SyncBatchSize: getEnvInt("SYNC_BATCH_SIZE", 50),
		SyncInterval:  getEnvDuration("SYNC_INTERVAL", 5*time.Minute),
	}
}

// Validate checks every setting and reports all problems at once.
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.APIRequestsPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid API rate limit %d: must be at least 1 request per minute", c.APIRequestsPerMinute))
	}

	if c.ShutdownTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("invalid shutdown timeout %v: must be positive", c.ShutdownTimeout))
	}

	if c.AppConfigPath == "" {
		errors = append(errors, "APP_CONFIG_PATH cannot be empty")
	}

	validBackends := []string{BackendFile, BackendSQLite, BackendMemory}
	if !slices.Contains(validBackends, c.StateBackend) {
		errors = append(errors, fmt.Sprintf("invalid state backend '%s': must be one of %v", c.StateBackend, validBackends))
	}

	switch c.StateBackend {
	case BackendFile:
		if c.StatePath == "" {
			errors = append(errors, "state path cannot be empty when using file backend")
		} else if err := ensureDir(c.StatePath); err != nil {
			errors = append(errors, err.Error())
		}
	case BackendSQLite:
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else if err := ensureDir(c.SQLiteDBPath); err != nil {
			errors = append(errors, err.Error())
		}
	}

	validMirrors := []string{MirrorNone, MirrorSheets, MirrorMemory}
	if !slices.Contains(validMirrors, c.MirrorBackend) {
		errors = append(errors, fmt.Sprintf("invalid mirror backend '%s': must be one of %v", c.MirrorBackend, validMirrors))
	}
	if c.MirrorBackend == MirrorSheets {
		if c.GoogleSpreadsheetID == "" {
			errors = append(errors, "Google Spreadsheet ID is required when using sheets mirror")
		}
		if c.GoogleSheetName == "" {
			errors = append(errors, "Google Sheet name is required when using sheets mirror")
		}
		if c.SheetsRequestsPerMinute < 1 {
			errors = append(errors, fmt.Sprintf("invalid Sheets rate limit %d: must be at least 1 request per minute", c.SheetsRequestsPerMinute))
		}
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.SyncBatchSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid sync batch size %d: must be at least 1", c.SyncBatchSize))
	} else if c.SyncBatchSize > 1000 {
		errors = append(errors, fmt.Sprintf("invalid sync batch size %d: must be at most 1000", c.SyncBatchSize))
	}

	if c.SyncInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid sync interval %v: must be at least 1 second", c.SyncInterval))
	} else if c.SyncInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid sync interval %v: must be at most 24 hours", c.SyncInterval))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

// ensureDir creates the parent directory of path when it is missing.
func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("cannot create directory '%s': %v", dir, err)
		}
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
