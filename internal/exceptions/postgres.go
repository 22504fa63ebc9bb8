package exceptions

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PostgresStore persists exceptions in the export_exceptions table.
// Offending values are stored as JSONB.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the table if it does not exist yet.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS export_exceptions (
			id UUID PRIMARY KEY,
			dataset_id TEXT NOT NULL,
			model TEXT NOT NULL,
			row_ptr TEXT NOT NULL,
			error_code TEXT NOT NULL,
			hint TEXT NOT NULL DEFAULT '',
			offending JSONB NOT NULL DEFAULT '{}',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_export_exceptions_dataset
			ON export_exceptions (dataset_id, model)`)
	if err != nil {
		return fmt.Errorf("ensure export_exceptions schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Add(ctx context.Context, datasetID, model, rowPtr, code, hint string, offending map[string]interface{}) (uuid.UUID, error) {
	id := uuid.New()
	offJSON, err := json.Marshal(offending)
	if err != nil {
		offJSON = []byte("{}")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO export_exceptions (id, dataset_id, model, row_ptr, error_code, hint, offending, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		id, datasetID, model, rowPtr, code, hint, offJSON, time.Now().UTC())
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert exception: %w", err)
	}
	return id, nil
}

func (s *PostgresStore) List(ctx context.Context, datasetID, model string) ([]Record, error) {
	query := `SELECT id, dataset_id, model, row_ptr, error_code, hint, offending, created_at
		FROM export_exceptions WHERE dataset_id = $1`
	args := []interface{}{datasetID}
	if model != "" {
		query += ` AND model = $2`
		args = append(args, model)
	}
	query += ` ORDER BY created_at ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list exceptions: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		var offJSON []byte
		if err := rows.Scan(&rec.ID, &rec.DatasetID, &rec.Model, &rec.RowPtr,
			&rec.Code, &rec.Hint, &offJSON, &rec.CreatedAt); err != nil {
			return nil, err
		}
		if len(offJSON) > 0 {
			_ = json.Unmarshal(offJSON, &rec.Offending)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Clear(ctx context.Context, datasetID, model string) (int, error) {
	query := `DELETE FROM export_exceptions WHERE dataset_id = $1`
	args := []interface{}{datasetID}
	if model != "" {
		query += ` AND model = $2`
		args = append(args, model)
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("clear exceptions: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (s *PostgresStore) Count(ctx context.Context, datasetID, model string) (int, error) {
	query := `SELECT COUNT(*) FROM export_exceptions WHERE dataset_id = $1`
	args := []interface{}{datasetID}
	if model != "" {
		query += ` AND model = $2`
		args = append(args, model)
	}
	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count exceptions: %w", err)
	}
	return n, nil
}
