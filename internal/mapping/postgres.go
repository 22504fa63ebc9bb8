package mapping

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/ignite/odoo-bridge/internal/transform"
)

// PostgresStore persists mappings in the dataset_mappings table.
// Transform chains are stored as JSONB.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the table if it does not exist yet.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS dataset_mappings (
			id UUID PRIMARY KEY,
			dataset_id TEXT NOT NULL,
			sheet TEXT NOT NULL,
			source_column TEXT NOT NULL,
			target_model TEXT NOT NULL,
			target_field TEXT NOT NULL,
			transforms JSONB NOT NULL DEFAULT '[]',
			state TEXT NOT NULL DEFAULT 'suggested',
			UNIQUE (dataset_id, sheet, source_column, target_model, target_field)
		);
		CREATE INDEX IF NOT EXISTS idx_dataset_mappings_lookup
			ON dataset_mappings (dataset_id, target_model, state)`)
	if err != nil {
		return fmt.Errorf("ensure dataset_mappings schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Put(ctx context.Context, m Mapping) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	chainJSON, err := json.Marshal(m.Transforms)
	if err != nil {
		chainJSON = []byte("[]")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO dataset_mappings (id, dataset_id, sheet, source_column, target_model, target_field, transforms, state)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (dataset_id, sheet, source_column, target_model, target_field) DO UPDATE SET
			transforms = EXCLUDED.transforms,
			state = EXCLUDED.state`,
		m.ID, m.DatasetID, m.Sheet, m.SourceColumn, m.TargetModel, m.TargetField, chainJSON, m.State)
	if err != nil {
		return fmt.Errorf("upsert mapping: %w", err)
	}
	return nil
}

func (s *PostgresStore) Confirmed(ctx context.Context, datasetID, model string) ([]Mapping, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, dataset_id, sheet, source_column, target_model, target_field, transforms, state
		 FROM dataset_mappings
		 WHERE dataset_id = $1 AND target_model = $2 AND state = $3
		 ORDER BY sheet, source_column`,
		datasetID, model, StateConfirmed)
	if err != nil {
		return nil, fmt.Errorf("query mappings: %w", err)
	}
	defer rows.Close()

	var out []Mapping
	for rows.Next() {
		var m Mapping
		var chainJSON []byte
		if err := rows.Scan(&m.ID, &m.DatasetID, &m.Sheet, &m.SourceColumn,
			&m.TargetModel, &m.TargetField, &chainJSON, &m.State); err != nil {
			return nil, err
		}
		if len(chainJSON) > 0 {
			var steps []transform.Step
			if err := json.Unmarshal(chainJSON, &steps); err == nil {
				m.Transforms = steps
			}
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
