package mapping

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/odoo-bridge/internal/transform"
)

func TestPostgresPutUpserts(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewPostgresStore(db)
	m := Mapping{
		ID:           uuid.New(),
		DatasetID:    "ds1",
		Sheet:        "contacts.csv",
		SourceColumn: "Email Address",
		TargetModel:  "res.partner",
		TargetField:  "email",
		Transforms:   []transform.Step{{Name: "trim"}, {Name: "email_normalize"}},
		State:        StateConfirmed,
	}
	chainJSON, _ := json.Marshal(m.Transforms)

	mock.ExpectExec("INSERT INTO dataset_mappings").
		WithArgs(m.ID, m.DatasetID, m.Sheet, m.SourceColumn, m.TargetModel, m.TargetField, chainJSON, m.State).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.Put(context.Background(), m))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresConfirmedDecodesTransforms(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewPostgresStore(db)
	id := uuid.New()

	rows := sqlmock.NewRows([]string{"id", "dataset_id", "sheet", "source_column", "target_model", "target_field", "transforms", "state"}).
		AddRow(id, "ds1", "contacts.csv", "Email Address", "res.partner", "email",
			[]byte(`[{"name":"trim"},{"name":"email_normalize"}]`), "confirmed")

	mock.ExpectQuery("SELECT id, dataset_id, sheet, source_column").
		WithArgs("ds1", "res.partner", StateConfirmed).
		WillReturnRows(rows)

	got, err := store.Confirmed(context.Background(), "ds1", "res.partner")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, id, got[0].ID)
	assert.Equal(t, "email", got[0].TargetField)
	require.Len(t, got[0].Transforms, 2)
	assert.Equal(t, "trim", got[0].Transforms[0].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresEnsureSchema(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS dataset_mappings").
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.NoError(t, NewPostgresStore(db).EnsureSchema(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
