package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tableside/internal/config"
	"tableside/internal/errs"
	"tableside/internal/logger"
	"tableside/internal/money"
)

// Postgres is the production Store: one documents table, JSONB bodies, a
// BIGINT version column incremented on every write. The version compare in
// CompareAndPut plus application-level retry is the optimistic-concurrency
// emulation for a store without native document transactions.
type Postgres struct {
	Pool   *pgxpool.Pool
	logger *logger.Logger
}

// NewPostgres connects to PostgreSQL, retrying briefly so a terminal booting
// alongside the database does not flap.
func NewPostgres(cfg *config.Config, log *logger.Logger) (*Postgres, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL())
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	poolConfig.MaxConns = 25
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = time.Minute * 30

	var pool *pgxpool.Pool
	maxRetries := 5
	for i := 0; i < maxRetries; i++ {
		pool, err = pgxpool.NewWithConfig(context.Background(), poolConfig)
		if err == nil {
			pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			err = pool.Ping(pingCtx)
			cancel()
			if err == nil {
				break
			}
			pool.Close()
		}

		if i < maxRetries-1 {
			waitTime := time.Duration(i+1) * 2 * time.Second
			log.Error("db_connection_failed",
				fmt.Sprintf("Failed to connect to database, retrying in %v", waitTime),
				"startup", err, nil)
			time.Sleep(waitTime)
		}
	}

	if err != nil {
		return nil, fmt.Errorf("failed to connect to database after %d attempts: %w", maxRetries, err)
	}

	return &Postgres{Pool: pool, logger: log}, nil
}

// Close closes the connection pool.
func (p *Postgres) Close() {
	if p.Pool != nil {
		p.Pool.Close()
	}
}

// Ping tests the database connection.
func (p *Postgres) Ping(ctx context.Context) error {
	return p.Pool.Ping(ctx)
}

// Get returns the document or errs.ErrNotFound.
func (p *Postgres) Get(ctx context.Context, collection, id string) (*Document, error) {
	doc := &Document{Collection: collection, ID: id}
	var data []byte
	err := p.Pool.QueryRow(ctx, GetDocumentSQL, collection, id).
		Scan(&data, &doc.Version, &doc.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("get %s/%s: %w", collection, id, errs.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	doc.Data = json.RawMessage(data)
	return doc, nil
}

// List returns every document in a collection.
func (p *Postgres) List(ctx context.Context, collection string) ([]*Document, error) {
	rows, err := p.Pool.Query(ctx, ListDocumentsSQL, collection)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}
	defer rows.Close()

	var docs []*Document
	for rows.Next() {
		doc := &Document{Collection: collection}
		var data []byte
		if err := rows.Scan(&doc.ID, &data, &doc.Version, &doc.UpdatedAt); err != nil {
			return nil, fmt.Errorf("list %s: %w", collection, err)
		}
		doc.Data = json.RawMessage(data)
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// Put unconditionally upserts and bumps the version.
func (p *Postgres) Put(ctx context.Context, collection, id string, data json.RawMessage) (*Document, error) {
	doc := &Document{Collection: collection, ID: id, Data: data}
	err := p.Pool.QueryRow(ctx, UpsertDocumentSQL, collection, id, []byte(data)).
		Scan(&doc.Version, &doc.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("put %s/%s: %w", collection, id, err)
	}
	return doc, nil
}

// CompareAndPut writes only when the stored version matches expectedVersion.
func (p *Postgres) CompareAndPut(ctx context.Context, collection, id string, data json.RawMessage, expectedVersion int64) (*Document, error) {
	doc := &Document{Collection: collection, ID: id, Data: data}

	if expectedVersion == 0 {
		err := p.Pool.QueryRow(ctx, InsertDocumentSQL, collection, id, []byte(data)).
			Scan(&doc.Version, &doc.UpdatedAt)
		if errors.Is(err, pgx.ErrNoRows) {
			// Someone created it first.
			return nil, fmt.Errorf("create %s/%s: %w", collection, id, errs.ErrVersionConflict)
		}
		if err != nil {
			return nil, fmt.Errorf("create %s/%s: %w", collection, id, err)
		}
		return doc, nil
	}

	err := p.Pool.QueryRow(ctx, CompareAndPutSQL, collection, id, []byte(data), expectedVersion).
		Scan(&doc.Version, &doc.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("compare-and-put %s/%s at v%d: %w", collection, id, expectedVersion, errs.ErrVersionConflict)
	}
	if err != nil {
		return nil, fmt.Errorf("compare-and-put %s/%s: %w", collection, id, err)
	}
	return doc, nil
}

// TransactionalUpdate runs fn under a row lock so concurrent updates to the
// same document are serialized by the database.
func (p *Postgres) TransactionalUpdate(ctx context.Context, collection, id string, fn UpdateFunc) (*Document, error) {
	tx, err := p.Pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin update %s/%s: %w", collection, id, err)
	}
	defer tx.Rollback(ctx)

	var (
		current   []byte
		version   int64
		updatedAt time.Time
	)
	err = tx.QueryRow(ctx, GetDocumentForUpdateSQL, collection, id).
		Scan(&current, &version, &updatedAt)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("lock %s/%s: %w", collection, id, err)
	}

	next, err := fn(json.RawMessage(current), version)
	if err != nil {
		return nil, err
	}

	doc := &Document{Collection: collection, ID: id, Data: next}
	if version == 0 {
		err = tx.QueryRow(ctx, InsertDocumentSQL, collection, id, []byte(next)).
			Scan(&doc.Version, &doc.UpdatedAt)
	} else {
		err = tx.QueryRow(ctx, UpdateDocumentSQL, collection, id, []byte(next)).
			Scan(&doc.Version, &doc.UpdatedAt)
	}
	if err != nil {
		return nil, fmt.Errorf("write %s/%s: %w", collection, id, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit %s/%s: %w", collection, id, err)
	}
	return doc, nil
}

// AtomicIncrement adds deltas to numeric fields inside a transaction.
func (p *Postgres) AtomicIncrement(ctx context.Context, collection, id string, deltas map[string]money.Money) (*Document, error) {
	return p.TransactionalUpdate(ctx, collection, id, func(current json.RawMessage, _ int64) (json.RawMessage, error) {
		return ApplyIncrements(current, deltas)
	})
}
