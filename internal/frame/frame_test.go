package frame

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cells(vals ...interface{}) []*string {
	out := make([]*string, len(vals))
	for i, v := range vals {
		if v == nil {
			continue
		}
		s := v.(string)
		out[i] = &s
	}
	return out
}

func TestSetColumnLengthMismatch(t *testing.T) {
	f := New(3)
	err := f.SetColumn("a", cells("x"))
	assert.Error(t, err)
	assert.False(t, f.Has("a"))
}

func TestGetMissingColumnIsNull(t *testing.T) {
	f := New(2)
	assert.Nil(t, f.Get(0, "ghost"))
}

func TestRename(t *testing.T) {
	f := New(2)
	require.NoError(t, f.SetColumn("old", cells("a", "b")))
	require.NoError(t, f.SetColumn("other", cells("x", "y")))

	f.Rename("old", "new")
	assert.Equal(t, []string{"new", "other"}, f.Columns())
	assert.Equal(t, "a", *f.Get(0, "new"))

	// Renaming onto an existing column replaces it and drops the slot.
	f.Rename("new", "other")
	assert.Equal(t, []string{"other"}, f.Columns())
	assert.Equal(t, "a", *f.Get(0, "other"))
}

func TestFillNull(t *testing.T) {
	f := New(3)
	require.NoError(t, f.SetColumn("a", cells("x", nil, nil)))
	f.FillNull("a", "d")
	assert.Equal(t, "x", *f.Get(0, "a"))
	assert.Equal(t, "d", *f.Get(1, "a"))
	assert.Equal(t, "d", *f.Get(2, "a"))
}

func TestSelectMaterializesMissingColumns(t *testing.T) {
	f := New(2)
	require.NoError(t, f.SetColumn("b", cells("1", "2")))
	require.NoError(t, f.SetColumn("a", cells("x", "y")))

	out := f.Select([]string{"a", "missing", "b"})
	assert.Equal(t, []string{"a", "missing", "b"}, out.Columns())
	assert.Equal(t, "x", *out.Get(0, "a"))
	assert.Nil(t, out.Get(0, "missing"))
	assert.Equal(t, 2, out.Len())
}

func TestTake(t *testing.T) {
	f := New(4)
	require.NoError(t, f.SetColumn("a", cells("w", "x", "y", "z")))

	out := f.Take([]int{3, 1})
	assert.Equal(t, 2, out.Len())
	assert.Equal(t, "z", *out.Get(0, "a"))
	assert.Equal(t, "x", *out.Get(1, "a"))
}

func TestSortByNullsFirstAndStable(t *testing.T) {
	f := New(4)
	require.NoError(t, f.SetColumn("k", cells("b", nil, "a", "a")))
	require.NoError(t, f.SetColumn("tag", cells("1", "2", "3", "4")))

	f.SortBy("k")

	assert.Nil(t, f.Get(0, "k"))
	assert.Equal(t, "a", *f.Get(1, "k"))
	assert.Equal(t, "a", *f.Get(2, "k"))
	assert.Equal(t, "b", *f.Get(3, "k"))
	// Equal keys keep their original relative order.
	assert.Equal(t, "3", *f.Get(1, "tag"))
	assert.Equal(t, "4", *f.Get(2, "tag"))
}

func TestRows(t *testing.T) {
	f := New(2)
	require.NoError(t, f.SetColumn("a", cells("x", nil)))

	rows := f.Rows()
	require.Len(t, rows, 2)
	assert.Equal(t, 0, rows[0].Index())
	assert.Equal(t, "x", rows[0].Text("a"))
	assert.Nil(t, rows[1].Get("a"))
	assert.Equal(t, "", rows[1].Text("a"))
}

func TestWriteCSVQuoting(t *testing.T) {
	f := New(4)
	require.NoError(t, f.SetColumn("id", cells("a1", "a2", "a3", "a4")))
	require.NoError(t, f.SetColumn("name", cells(
		"plain",
		"has,comma",
		`has"quote`,
		"has\nnewline",
	)))
	require.NoError(t, f.SetColumn("note", cells(" lead", nil, "trail ", "ok")))

	var buf strings.Builder
	require.NoError(t, f.WriteCSV(&buf))

	want := "id,name,note\n" +
		"a1,plain, lead\n" +
		"a2,\"has,comma\",\n" +
		"a3,\"has\"\"quote\",trail \n" +
		"a4,\"has\nnewline\",ok\n"
	assert.Equal(t, want, buf.String())
}

func TestWriteCSVHeaderOnly(t *testing.T) {
	f := New(0)
	require.NoError(t, f.SetColumn("id", nil))
	require.NoError(t, f.SetColumn("name", nil))

	var buf strings.Builder
	require.NoError(t, f.WriteCSV(&buf))
	assert.Equal(t, "id,name\n", buf.String())
}

func TestWriteCSVDeterministic(t *testing.T) {
	f := New(2)
	require.NoError(t, f.SetColumn("id", cells("x", "y")))
	require.NoError(t, f.SetColumn("v", cells("1", nil)))

	var a, b strings.Builder
	require.NoError(t, f.WriteCSV(&a))
	require.NoError(t, f.WriteCSV(&b))
	assert.Equal(t, a.String(), b.String())
}
