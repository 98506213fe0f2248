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

// Backends accepted by DATA_BACKEND and MIRROR_BACKEND.
var Backends = []string{"memory", "sqlite", "postgres", "redis", "sheets"}

type Config struct {
	// HTTP Server
	Port               string
	AllowedOrigins     []string
	RateLimitPerMinute int
	ShutdownTimeout    time.Duration

	// Backend selection
	DataBackend   string
	MirrorBackend string
	DataDir       string

	// SQLite
	SQLiteDBPath string

	// PostgreSQL
	PostgresURL string

	// Redis
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string

	// AMQP, optional: when empty no change events are published
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets
	GoogleSpreadsheetID      string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string
	GoogleOAuthClientJSON    string
	GoogleOAuthClientFile    string
	GoogleOAuthTokenFile     string
	GoogleCategoriesTab      string
	GoogleTransactionsTab    string

	// Sync dispatcher
	SyncWorkers    int
	SyncQueueSize  int
	SyncMaxRetries int
	SyncRetryBase  time.Duration
	SyncOpTimeout  time.Duration

	// Mirror worker: how often to diff the mirror against DATA_BACKEND (0 disables)
	ReconcileInterval time.Duration

	// Ledger
	Currency         string
	LegacyEditTotals bool

	// Logging
	LogLevel  string
	LogFormat string
}

func Load() *Config {
	cfg := &Config{
		Port:               getEnv("PORT", "8081"),
		AllowedOrigins:     getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 60),
		ShutdownTimeout:    getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),

		DataBackend:   getEnv("DATA_BACKEND", "memory"),
		MirrorBackend: getEnv("MIRROR_BACKEND", "sheets"),
		DataDir:       getEnv("DATA_DIR", "data"),

		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/tracker.db"),
		PostgresURL:  getEnv("POSTGRES_URL", ""),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		RedisPrefix:   getEnv("REDIS_PREFIX", "tracker"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "tracker"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "record_changes"),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),
		GoogleOAuthClientJSON:    getEnv("GOOGLE_OAUTH_CLIENT_JSON", ""),
		GoogleOAuthClientFile:    getEnv("GOOGLE_OAUTH_CLIENT_FILE", ""),
		GoogleOAuthTokenFile:     getEnv("GOOGLE_OAUTH_TOKEN_FILE", ""),
		GoogleCategoriesTab:      getEnv("GOOGLE_CATEGORIES_TAB", "Categories"),
		GoogleTransactionsTab:    getEnv("GOOGLE_TRANSACTIONS_TAB", "Transactions"),

		SyncWorkers:    getEnvInt("SYNC_WORKERS", 4),
		SyncQueueSize:  getEnvInt("SYNC_QUEUE_SIZE", 256),
		SyncMaxRetries: getEnvInt("SYNC_MAX_RETRIES", 3),
		SyncRetryBase:  getEnvDuration("SYNC_RETRY_BASE", 500*time.Millisecond),
		SyncOpTimeout:  getEnvDuration("SYNC_OP_TIMEOUT", 30*time.Second),

		ReconcileInterval: getEnvDuration("RECONCILE_INTERVAL", time.Hour),

		Currency:         getEnv("CURRENCY", "EUR"),
		LegacyEditTotals: getEnvBool("LEGACY_EDIT_TOTALS", false),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
	}

	return cfg
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if !slices.Contains(Backends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, Backends))
	}
	if c.MirrorBackend != "" && !slices.Contains(Backends, c.MirrorBackend) {
		errors = append(errors, fmt.Sprintf("invalid mirror backend '%s': must be one of %v", c.MirrorBackend, Backends))
	}

	errors = append(errors, c.validateBackend(c.DataBackend)...)

	// Validate AMQP URL if provided
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

	// Validate sync dispatcher
	if c.SyncWorkers < 1 || c.SyncWorkers > 64 {
		errors = append(errors, fmt.Sprintf("invalid sync workers %d: must be between 1 and 64", c.SyncWorkers))
	}
	if c.SyncQueueSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid sync queue size %d: must be at least 1", c.SyncQueueSize))
	}
	if c.SyncMaxRetries < 1 {
		errors = append(errors, fmt.Sprintf("invalid sync max retries %d: must be at least 1", c.SyncMaxRetries))
	}
	if c.SyncRetryBase < time.Millisecond {
		errors = append(errors, fmt.Sprintf("invalid sync retry base %v: must be at least 1ms", c.SyncRetryBase))
	}

	if c.ReconcileInterval < 0 {
		errors = append(errors, fmt.Sprintf("invalid reconcile interval %v: must not be negative", c.ReconcileInterval))
	}

	if len(strings.TrimSpace(c.Currency)) != 3 {
		errors = append(errors, fmt.Sprintf("invalid currency '%s': must be a three letter code", c.Currency))
	}
	if c.RateLimitPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1", c.RateLimitPerMinute))
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be 'text' or 'json'", c.LogFormat))
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// ValidateWorker checks what the mirror worker needs on top of Validate:
// a broker to consume from and a usable mirror backend.
func (c *Config) ValidateWorker() error {
	var errors []string
	if err := c.Validate(); err != nil {
		errors = append(errors, strings.TrimPrefix(err.Error(), "configuration validation failed:\n- "))
	}
	if c.AMQPURL == "" {
		errors = append(errors, "AMQP_URL is required for the mirror worker")
	}
	if c.MirrorBackend == "" {
		errors = append(errors, "MIRROR_BACKEND is required for the mirror worker")
	} else if c.MirrorBackend != c.DataBackend {
		errors = append(errors, c.validateBackend(c.MirrorBackend)...)
	}
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

func (c *Config) validateBackend(backend string) []string {
	var errors []string
	switch backend {
	case "sqlite":
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
			break
		}
		// Check if directory exists or can be created
		dir := filepath.Dir(c.SQLiteDBPath)
		if dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}

	case "postgres":
		if c.PostgresURL == "" {
			errors = append(errors, "POSTGRES_URL is required when using postgres backend")
		} else if u, err := url.Parse(c.PostgresURL); err != nil || (u.Scheme != "postgres" && u.Scheme != "postgresql") {
			errors = append(errors, fmt.Sprintf("invalid POSTGRES_URL '%s': must be a postgres:// URL", c.PostgresURL))
		}

	case "redis":
		if c.RedisAddr == "" {
			errors = append(errors, "REDIS_ADDR is required when using redis backend")
		}
		if c.RedisDB < 0 {
			errors = append(errors, fmt.Sprintf("invalid redis db %d: must not be negative", c.RedisDB))
		}

	case "sheets":
		if c.GoogleSpreadsheetID == "" {
			errors = append(errors, "Google Spreadsheet ID is required when using sheets backend")
		}
		if c.GoogleOAuthTokenFile != "" {
			if c.GoogleOAuthClientJSON == "" && c.GoogleOAuthClientFile == "" {
				errors = append(errors, "GOOGLE_OAUTH_TOKEN_FILE requires GOOGLE_OAUTH_CLIENT_JSON or GOOGLE_OAUTH_CLIENT_FILE")
			}
			if _, err := os.Stat(c.GoogleOAuthTokenFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google OAuth token file does not exist: %s (run tracker-oauth-init)", c.GoogleOAuthTokenFile))
			}
			break
		}
		hasFile := c.GoogleServiceAccountFile != ""
		hasJSON := c.GoogleServiceAccountJSON != ""
		if !hasFile && !hasJSON {
			errors = append(errors, "either GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_SERVICE_ACCOUNT_JSON must be provided for sheets backend")
		}
		if hasFile {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}
	}
	return errors
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

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
