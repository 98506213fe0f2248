package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"tracker/internal/amqp"
	"tracker/internal/cache"
	"tracker/internal/gateway"
	"tracker/internal/gateway/google"
	"tracker/internal/gateway/memory"
	"tracker/internal/gateway/postgres"
	"tracker/internal/gateway/redis"
	"tracker/internal/gateway/sqlite"
	applog "tracker/internal/log"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
	// dialAMQP is swapped in tests.
	dialAMQP func(url, exchange, queue string) (amqpConn, error)
}

type amqpConn interface {
	amqp.Publisher
	Close() error
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger.With(applog.FieldComponent, applog.ComponentBackend),
		dialAMQP: func(url, exchange, queue string) (amqpConn, error) {
			return amqp.NewClient(url, exchange, queue)
		},
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		res *BackendResult
		err error
	)
	switch config.Type {
	case MemoryBackend:
		res = f.createMemoryBackend(config)
	case SQLiteBackend:
		res, err = f.createSQLiteBackend(config)
	case PostgresBackend:
		res, err = f.createPostgresBackend(ctx, config)
	case RedisBackend:
		res, err = f.createRedisBackend(ctx, config)
	case SheetsBackend:
		res, err = f.createSheetsBackend(ctx, config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
	if err != nil {
		return nil, err
	}

	f.wrapPublishing(res, config)
	return res, nil
}

// wrapPublishing announces writes over AMQP when configured. A broker that
// is down at startup is not fatal: the store works without announcements.
func (f *DefaultFactory) wrapPublishing(res *BackendResult, config Config) {
	if config.AMQPURL == "" {
		return
	}
	client, err := f.dialAMQP(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
	if err != nil {
		f.logger.Warn("Failed to initialize AMQP client, continuing without change events", "error", err)
		return
	}
	f.logger.Info("Initialized AMQP client",
		"exchange", config.AMQPExchange,
		"queue", config.AMQPQueue)

	res.Store = amqp.NewPublishingStore(res.Store, client)
	res.Publishing = true
	inner := res.Cleanup
	res.Cleanup = func() error {
		return errors.Join(client.Close(), inner())
	}
}

func noCleanup() error { return nil }

func (f *DefaultFactory) createMemoryBackend(config Config) *BackendResult {
	dataDir := config.DataDirectory
	if dataDir == "" {
		dataDir = "data" // Default directory
	}

	store := memory.NewFromFiles(dataDir)

	f.logger.Info("Initialized memory backend", "data_directory", dataDir,
		"seeded_categories", store.Len(gateway.KindCategories))

	return &BackendResult{Store: store, Cleanup: noCleanup}
}

func (f *DefaultFactory) createSQLiteBackend(config Config) (*BackendResult, error) {
	store, err := sqlite.New(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite store: %w", err)
	}

	f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)

	return &BackendResult{Store: store, Cleanup: store.Close, Ping: store.Ping}, nil
}

func (f *DefaultFactory) createPostgresBackend(ctx context.Context, config Config) (*BackendResult, error) {
	store, err := postgres.Open(ctx, config.PostgresURL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize PostgreSQL store: %w", err)
	}

	f.logger.Info("Initialized PostgreSQL backend")

	return &BackendResult{Store: store, Cleanup: store.Close, Ping: store.Ping}, nil
}

func (f *DefaultFactory) createRedisBackend(ctx context.Context, config Config) (*BackendResult, error) {
	store := redis.New(redis.Options{
		Addr:     config.RedisAddr,
		Password: config.RedisPassword,
		DB:       config.RedisDB,
		Prefix:   config.RedisPrefix,
	})
	if err := store.Ping(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", config.RedisAddr, err)
	}

	f.logger.Info("Initialized Redis backend", "addr", config.RedisAddr, "prefix", config.RedisPrefix)

	return &BackendResult{Store: store, Cleanup: store.Close, Ping: store.Ping}, nil
}

func (f *DefaultFactory) createSheetsBackend(ctx context.Context, config Config) (*BackendResult, error) {
	store, err := google.New(ctx, google.Options{
		SpreadsheetID:   config.GoogleSpreadsheetID,
		CredentialsJSON: config.GoogleServiceAccountJSON,
		CredentialsFile: config.GoogleServiceAccountFile,
		OAuthTokenFile:  config.GoogleOAuthTokenFile,
		OAuthClientJSON: config.GoogleOAuthClientJSON,
		OAuthClientFile: config.GoogleOAuthClientFile,
		CategoriesTab:   config.GoogleCategoriesTab,
		TransactionsTab: config.GoogleTransactionsTab,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}
	if err := store.EnsureHeaders(ctx); err != nil {
		return nil, fmt.Errorf("failed to prepare Google Sheets tabs: %w", err)
	}

	// Expired row positions are dropped in the background.
	sweeper := cache.NewManager()
	sweeper.Register(store.RowCache())
	sweeper.StartCleanup(context.Background(), time.Minute)

	f.logger.Info("Initialized Google Sheets backend")

	return &BackendResult{Store: store, Cleanup: func() error {
		sweeper.Stop()
		return nil
	}}, nil
}
