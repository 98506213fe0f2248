package backend

import (
	"fmt"

	"tracker/internal/config"
)

// FromAppConfig builds the config for the primary store (DATA_BACKEND).
// Writes are announced over AMQP when AMQP_URL is set.
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}
	cfg := fromApp(appConfig, BackendType(appConfig.DataBackend))
	cfg.AMQPURL = appConfig.AMQPURL
	cfg.AMQPExchange = appConfig.AMQPExchange
	cfg.AMQPQueue = appConfig.AMQPQueue
	return cfg, cfg.Validate()
}

// MirrorFromAppConfig builds the config for the worker's mirror store
// (MIRROR_BACKEND). The mirror never publishes: it is the consumer.
func MirrorFromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}
	cfg := fromApp(appConfig, BackendType(appConfig.MirrorBackend))
	return cfg, cfg.Validate()
}

func fromApp(appConfig *config.Config, bt BackendType) Config {
	return Config{
		Type: bt,

		DataDirectory: appConfig.DataDir,
		SQLiteDBPath:  appConfig.SQLiteDBPath,
		PostgresURL:   appConfig.PostgresURL,

		RedisAddr:     appConfig.RedisAddr,
		RedisPassword: appConfig.RedisPassword,
		RedisDB:       appConfig.RedisDB,
		RedisPrefix:   appConfig.RedisPrefix,

		GoogleSpreadsheetID:      appConfig.GoogleSpreadsheetID,
		GoogleServiceAccountJSON: appConfig.GoogleServiceAccountJSON,
		GoogleServiceAccountFile: appConfig.GoogleServiceAccountFile,
		GoogleOAuthClientJSON:    appConfig.GoogleOAuthClientJSON,
		GoogleOAuthClientFile:    appConfig.GoogleOAuthClientFile,
		GoogleOAuthTokenFile:     appConfig.GoogleOAuthTokenFile,
		GoogleCategoriesTab:      appConfig.GoogleCategoriesTab,
		GoogleTransactionsTab:    appConfig.GoogleTransactionsTab,
	}
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}

	switch c.Type {
	case SQLiteBackend:
		if c.SQLiteDBPath == "" {
			return fmt.Errorf("SQLite database path is required for sqlite backend")
		}

	case PostgresBackend:
		if c.PostgresURL == "" {
			return fmt.Errorf("PostgreSQL URL is required for postgres backend")
		}

	case RedisBackend:
		if c.RedisAddr == "" {
			return fmt.Errorf("Redis address is required for redis backend")
		}

	case SheetsBackend:
		if c.GoogleSpreadsheetID == "" {
			return fmt.Errorf("Google Spreadsheet ID is required for sheets backend")
		}
		if c.GoogleOAuthTokenFile != "" {
			if c.GoogleOAuthClientJSON == "" && c.GoogleOAuthClientFile == "" {
				return fmt.Errorf("an OAuth client must be provided with GoogleOAuthTokenFile for sheets backend")
			}
		} else if c.GoogleServiceAccountFile == "" && c.GoogleServiceAccountJSON == "" {
			return fmt.Errorf("either GoogleServiceAccountFile or GoogleServiceAccountJSON must be provided for sheets backend")
		}

	case MemoryBackend:
		// DataDirectory defaults to "data" if empty
	}

	if c.AMQPURL != "" && (c.AMQPExchange == "" || c.AMQPQueue == "") {
		return fmt.Errorf("AMQP exchange and queue are required when AMQP URL is set")
	}
	return nil
}

// GetBackendTypes returns all valid backend types
func GetBackendTypes() []BackendType {
	return []BackendType{MemoryBackend, SQLiteBackend, PostgresBackend, RedisBackend, SheetsBackend}
}

// GetBackendTypeStrings returns all valid backend type strings
func GetBackendTypeStrings() []string {
	types := GetBackendTypes()
	strings := make([]string, len(types))
	for i, t := range types {
		strings[i] = t.String()
	}
	return strings
}
