package blob

import (
	"bytes"
	"context"
	"errors"
	"io"

	"github.com/jackc/pgx/v5"

	"taskscore/internal/platform/querier"
)

// PostgresStore keeps blobs in the proof_blobs table. Used when no object
// store is configured.
type PostgresStore struct {
	DB querier.Querier
}

func NewPostgresStore(db querier.Querier) *PostgresStore {
	return &PostgresStore{DB: db}
}

func (s *PostgresStore) Put(ctx context.Context, key, contentType string, data []byte) error {
	_, err := s.DB.Exec(ctx, `
    INSERT INTO proof_blobs (key, content_type, data)
    VALUES ($1,$2,$3)
  `, key, contentType, data)
	return err
}

func (s *PostgresStore) Open(ctx context.Context, key string) (Object, error) {
	var contentType string
	var data []byte
	err := s.DB.QueryRow(ctx, `
    SELECT content_type, data
    FROM proof_blobs
    WHERE key = $1
  `, key).Scan(&contentType, &data)
	if errors.Is(err, pgx.ErrNoRows) {
		return Object{}, ErrNotFound
	}
	if err != nil {
		return Object{}, err
	}
	return Object{
		Body:        io.NopCloser(bytes.NewReader(data)),
		ContentType: contentType,
		Size:        int64(len(data)),
	}, nil
}
