package library

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"go.etcd.io/bbolt"

	"github.com/Adithya-Monish-Kumar-K/term-proximity-network/internal/retrieval"
	apperrors "github.com/Adithya-Monish-Kumar-K/term-proximity-network/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/term-proximity-network/pkg/postgres"
)

// Store persists library documents between restarts.
type Store interface {
	Put(ctx context.Context, doc retrieval.Document) error
	All(ctx context.Context) ([]retrieval.Document, error)
	Close() error
}

// Restore loads every document held by s into l.
func (l *Library) Restore(ctx context.Context, s Store) (int, error) {
	docs, err := s.All(ctx)
	if err != nil {
		return 0, fmt.Errorf("restoring library: %w", err)
	}
	return l.AddAll(docs), nil
}

const createDocumentsTable = `CREATE TABLE IF NOT EXISTS documents (
	id         TEXT PRIMARY KEY,
	title      TEXT NOT NULL DEFAULT '',
	abstract   TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// PostgresStore keeps documents in the documents table.
type PostgresStore struct {
	client *postgres.Client
}

func NewPostgresStore(ctx context.Context, client *postgres.Client) (*PostgresStore, error) {
	if err := client.Migrate(ctx, createDocumentsTable); err != nil {
		return nil, fmt.Errorf("migrating documents table: %w", err)
	}
	return &PostgresStore{client: client}, nil
}

func (s *PostgresStore) Put(ctx context.Context, doc retrieval.Document) error {
	return s.client.InTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO documents (id, title, abstract) VALUES ($1, $2, $3)`,
			doc.ID, doc.Title, doc.Abstract,
		)
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return fmt.Errorf("document %s: %w", doc.ID, apperrors.ErrDocumentExists)
		}
		if err != nil {
			return fmt.Errorf("inserting document: %w", err)
		}
		return nil
	})
}

func (s *PostgresStore) All(ctx context.Context) ([]retrieval.Document, error) {
	rows, err := s.client.DB.QueryContext(ctx,
		`SELECT id, title, abstract FROM documents ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	var docs []retrieval.Document
	for rows.Next() {
		var d retrieval.Document
		if err := rows.Scan(&d.ID, &d.Title, &d.Abstract); err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

func (s *PostgresStore) Close() error {
	return s.client.Close()
}

var bucketDocuments = []byte("documents")

// BoltStore keeps documents in a local bbolt file, keyed by ID.
type BoltStore struct {
	db *bbolt.DB
}

func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketDocuments)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create bucket %s: %w", bucketDocuments, err)
	}
	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Put(_ context.Context, doc retrieval.Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketDocuments)
		if b.Get([]byte(doc.ID)) != nil {
			return fmt.Errorf("document %s: %w", doc.ID, apperrors.ErrDocumentExists)
		}
		return b.Put([]byte(doc.ID), data)
	})
}

// All returns documents in key order.
func (s *BoltStore) All(_ context.Context) ([]retrieval.Document, error) {
	var docs []retrieval.Document
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketDocuments).ForEach(func(k, v []byte) error {
			var d retrieval.Document
			if err := json.Unmarshal(v, &d); err != nil {
				return fmt.Errorf("decoding document %s: %w", k, err)
			}
			docs = append(docs, d)
			return nil
		})
	})
	return docs, err
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}
