package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"github.com/nsqio/go-nsq"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"

	wstore "github.com/JulioPeixoto/veritas/internal/adapter/weaviate"
	"github.com/JulioPeixoto/veritas/internal/config"
	"github.com/JulioPeixoto/veritas/internal/vector"
	"github.com/JulioPeixoto/veritas/internal/worker"
)

// Dependencies are the external resources the service runs on. DB and
// Producer are nil when the catalog or the queue is disabled.
type Dependencies struct {
	DB        *sql.DB
	Backend   vector.Backend
	Publisher worker.Publisher
	Producer  *nsq.Producer
}

// SchemaStore is a backend whose Open call prepares its schema.
type SchemaStore interface {
	Open(ctx context.Context) error
}

func Bootstrap(ctx context.Context, cfg *config.Config) (*Dependencies, error) {
	deps := &Dependencies{Publisher: worker.NoopPublisher{}}
	retryDelay := time.Duration(cfg.BootstrapRetryDelaySeconds) * time.Second

	// Catalog database
	if cfg.CatalogEnabled() {
		db, err := openDatabase(ctx, cfg, retryDelay)
		if err != nil {
			return nil, err
		}
		deps.DB = db
	}

	// Vector backend
	switch cfg.VectorBackend {
	case config.BackendWeaviate:
		wClient, err := weaviate.NewClient(weaviate.Config{Host: cfg.WeaviateHost, Scheme: cfg.WeaviateScheme})
		if err != nil {
			deps.Close()
			return nil, fmt.Errorf("weaviate client error: %w", err)
		}
		store := wstore.NewStore(wClient)
		if err := EnsureSchemaWithRetry(ctx, store, cfg.BootstrapRetryAttempts, retryDelay); err != nil {
			deps.Close()
			return nil, fmt.Errorf("weaviate schema error: %w", err)
		}
		deps.Backend = store
	default:
		deps.Backend = vector.NewSQLiteStore(cfg.PathDBFile, cfg.VectorTable)
	}

	// NSQ Producer
	if cfg.NSQEnabled {
		producer, err := nsq.NewProducer(cfg.NSQDHost, nsq.NewConfig())
		if err != nil {
			deps.Close()
			return nil, fmt.Errorf("nsq producer error: %w", err)
		}
		deps.Producer = producer
		deps.Publisher = worker.NewNSQPublisher(producer)
		createTopics(cfg.NSQDHTTP)
	}

	return deps, nil
}

func openDatabase(ctx context.Context, cfg *config.Config, retryDelay time.Duration) (*sql.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPass, cfg.DBName)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}

	// Retry loop
	for i := 0; i < cfg.BootstrapRetryAttempts; i++ {
		if err := db.PingContext(ctx); err == nil {
			break
		}
		slog.Warn("failed to ping db, retrying...", "attempt", i+1)
		time.Sleep(retryDelay)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("migration driver error: %w", err)
	}
	m, err := migrate.NewWithDatabaseInstance(cfg.MigrationPath, "postgres", driver)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("migration instance error: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		db.Close()
		return nil, fmt.Errorf("migration up error: %w", err)
	}
	slog.Info("catalog migrations applied")
	return db, nil
}

func (d *Dependencies) Close() {
	if d.Producer != nil {
		d.Producer.Stop()
	}
	if d.Backend != nil {
		if err := d.Backend.Close(); err != nil {
			slog.Warn("failed to close vector backend", "error", err)
		}
	}
	if d.DB != nil {
		if err := d.DB.Close(); err != nil {
			slog.Warn("failed to close db", "error", err)
		}
	}
}

func createTopics(nsqdHTTP string) {
	create := func(topic string) {
		url := fmt.Sprintf("http://%s/topic/create?topic=%s", nsqdHTTP, topic)
		resp, err := http.Post(url, "application/json", nil) // #nosec G107 -- URL is built from internal NSQ config, not user input
		if err != nil {
			slog.Warn("failed to create NSQ topic", "topic", topic, "error", err)
			return
		}
		if closeErr := resp.Body.Close(); closeErr != nil {
			slog.Warn("failed to close NSQ topic creation response body", "error", closeErr)
		}
	}

	go func() {
		time.Sleep(2 * time.Second)
		create(config.TopicDocumentIndexed)
		create(config.TopicScrapingETL)
	}()
}

// EnsureSchemaWithRetry opens the store until it succeeds or attempts run out.
func EnsureSchemaWithRetry(ctx context.Context, store SchemaStore, attempts int, delay time.Duration) error {
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for i := 0; i < attempts; i++ {
		if err = store.Open(ctx); err == nil {
			return nil
		}
		slog.Warn("failed to ensure vector schema, retrying...", "attempt", i+1, "error", err)
		if i < attempts-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}
	return err
}
