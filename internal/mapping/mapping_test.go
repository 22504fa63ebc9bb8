package mapping

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreConfirmedFiltersAndSorts(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	put := func(sheet, col, model string, state State) {
		require.NoError(t, store.Put(ctx, Mapping{
			DatasetID:    "ds1",
			Sheet:        sheet,
			SourceColumn: col,
			TargetModel:  model,
			TargetField:  col,
			State:        state,
		}))
	}

	put("b.csv", "name", "res.partner", StateConfirmed)
	put("a.csv", "email", "res.partner", StateConfirmed)
	put("a.csv", "city", "res.partner", StateConfirmed)
	put("a.csv", "stage", "crm.lead", StateConfirmed)
	put("a.csv", "rejected", "res.partner", StateRejected)
	put("a.csv", "suggested", "res.partner", StateSuggested)

	got, err := store.Confirmed(ctx, "ds1", "res.partner")
	require.NoError(t, err)
	require.Len(t, got, 3)

	// Ordered by (sheet, source column).
	assert.Equal(t, "city", got[0].SourceColumn)
	assert.Equal(t, "email", got[1].SourceColumn)
	assert.Equal(t, "name", got[2].SourceColumn)

	other, err := store.Confirmed(ctx, "ds2", "res.partner")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestMemoryStorePutAssignsID(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	m := Mapping{DatasetID: "ds1", Sheet: "a", SourceColumn: "x", TargetModel: "m", TargetField: "x", State: StateConfirmed}
	require.NoError(t, store.Put(ctx, m))

	got, err := store.Confirmed(ctx, "ds1", "m")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.NotEqual(t, "00000000-0000-0000-0000-000000000000", got[0].ID.String())
}
