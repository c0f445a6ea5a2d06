package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/codebuildervaibhav/meeting-transcriber/internal/types"
)

// AddUnknown stores the embedding of an unidentified segment and returns its row ID.
func (mdb *MetadataDB) AddUnknown(ctx context.Context, s types.UnknownSample) (int64, error) {
	embedding, err := json.Marshal(s.Embedding)
	if err != nil {
		return 0, fmt.Errorf("encode embedding: %w", err)
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now()
	}
	res, err := mdb.db.ExecContext(ctx, `
	INSERT INTO unknown_samples (session_id, file, start_sec, end_sec, embedding, created_at)
	VALUES (?, ?, ?, ?, ?, ?)`,
		s.SessionID, s.File, s.Start, s.End, string(embedding), s.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("failed to store unknown sample: %w", err)
	}
	return res.LastInsertId()
}

// ListUnknown returns every accumulated sample in insertion order.
func (mdb *MetadataDB) ListUnknown(ctx context.Context) ([]types.UnknownSample, error) {
	return mdb.queryUnknown(ctx, `SELECT id, session_id, file, start_sec, end_sec, embedding, created_at
	FROM unknown_samples ORDER BY id`)
}

// GetUnknown returns the samples with the given IDs, in ID order. Missing IDs
// are ignored.
func (mdb *MetadataDB) GetUnknown(ctx context.Context, ids []int64) ([]types.UnknownSample, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := fmt.Sprintf(`SELECT id, session_id, file, start_sec, end_sec, embedding, created_at
	FROM unknown_samples WHERE id IN (%s) ORDER BY id`, placeholders(len(ids)))
	return mdb.queryUnknown(ctx, query, int64Args(ids)...)
}

// DeleteUnknown removes samples by row ID and reports how many were deleted.
func (mdb *MetadataDB) DeleteUnknown(ctx context.Context, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res, err := mdb.db.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM unknown_samples WHERE id IN (%s)`, placeholders(len(ids))),
		int64Args(ids)...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete unknown samples: %w", err)
	}
	return res.RowsAffected()
}

func (mdb *MetadataDB) queryUnknown(ctx context.Context, query string, args ...interface{}) ([]types.UnknownSample, error) {
	rows, err := mdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query unknown samples: %w", err)
	}
	defer rows.Close()

	var out []types.UnknownSample
	for rows.Next() {
		var (
			s         types.UnknownSample
			embedding string
		)
		if err := rows.Scan(&s.ID, &s.SessionID, &s.File, &s.Start, &s.End, &embedding, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan unknown sample: %w", err)
		}
		if err := json.Unmarshal([]byte(embedding), &s.Embedding); err != nil {
			return nil, fmt.Errorf("decode embedding of sample %d: %w", s.ID, err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func int64Args(ids []int64) []interface{} {
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}
