package backend

import (
	"context"
	"fmt"
	"log/slog"

	"finboard/internal/amqp"
	"finboard/internal/manual/file"
	"finboard/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger,
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		result *BackendResult
		err    error
	)
	switch config.Type {
	case PostgresBackend:
		result, err = f.createPostgresBackend(ctx, config)
	case SQLiteBackend:
		result, err = f.createRelationalBackend(ctx, storage.Options{Dialect: storage.DialectSQLite, DSN: config.SQLiteDBPath})
	case FileBackend:
		result, err = f.createFileBackend(config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
	if err != nil {
		return nil, err
	}

	f.attachPublisher(result, config)
	return result, nil
}

func (f *DefaultFactory) createPostgresBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if config.DatabaseURL == "" {
		f.logger.Warn("Manual data enabled but DATABASE_URL not set; writes will be unavailable")
		return &BackendResult{}, nil
	}
	result, err := f.createRelationalBackend(ctx, storage.Options{
		Dialect: storage.DialectPostgres,
		DSN:     config.DatabaseURL,
		SSL:     config.PGSSL,
	})
	if err != nil {
		return nil, err
	}
	result.Migrator = result.DB
	return result, nil
}

func (f *DefaultFactory) createRelationalBackend(ctx context.Context, opts storage.Options) (*BackendResult, error) {
	db, err := storage.Open(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s backend: %w", opts.Dialect, err)
	}

	f.logger.Info("Initialized relational manual data backend", "dialect", opts.Dialect)

	return &BackendResult{
		RentRoll: storage.NewRentRollStore(db),
		Fields:   storage.NewFieldStore(db),
		Slugs:    storage.NewSlugStore(db),
		Pinger:   db,
		DB:       db,
		Cleanup:  db.Close,
	}, nil
}

func (f *DefaultFactory) createFileBackend(config Config) (*BackendResult, error) {
	store := file.New(config.ManualDataFile)

	f.logger.Info("Initialized file manual data backend", "path", store.Path())

	return &BackendResult{
		RentRoll: store,
		Cleanup:  store.Close,
	}, nil
}

// attachPublisher connects the optional AMQP publisher and folds its Close
// into the result's cleanup.
func (f *DefaultFactory) attachPublisher(result *BackendResult, config Config) {
	result.Publisher = amqp.NoopPublisher{}
	if config.AMQPURL == "" {
		return
	}

	client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange)
	if err != nil {
		f.logger.Warn("Failed to initialize AMQP client, continuing without change events", "error", err)
		return
	}
	f.logger.Info("Initialized AMQP client", "exchange", config.AMQPExchange)
	result.Publisher = client
}
