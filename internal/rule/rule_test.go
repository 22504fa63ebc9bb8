package rule

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/odoo-bridge/internal/frame"
)

func makeRow(t *testing.T, cols map[string]*string) frame.Row {
	t.Helper()
	f := frame.New(1)
	for name, v := range cols {
		require.NoError(t, f.SetColumn(name, []*string{v}))
	}
	return f.Rows()[0]
}

func str(s string) *string { return &s }

func evalOn(t *testing.T, src string, cols map[string]*string) *string {
	t.Helper()
	ex, err := Parse(src)
	require.NoError(t, err, "parse %q", src)
	v, err := ex.Eval(makeRow(t, cols))
	require.NoError(t, err, "eval %q", src)
	return v
}

func TestEvalLiteralsAndIdents(t *testing.T) {
	cols := map[string]*string{"name": str("Acme"), "empty": str(""), "missing_val": nil}

	assert.Equal(t, "Acme", *evalOn(t, "name", cols))
	assert.Equal(t, "hello", *evalOn(t, "'hello'", cols))
	assert.Equal(t, "42", *evalOn(t, "42", cols))
	assert.Equal(t, "true", *evalOn(t, "true", cols))
	assert.Nil(t, evalOn(t, "missing_val", cols))
}

func TestEvalIsset(t *testing.T) {
	cols := map[string]*string{"a": str("x"), "b": nil}
	assert.Equal(t, "true", *evalOn(t, "isset(a)", cols))
	assert.Equal(t, "false", *evalOn(t, "isset(b)", cols))
}

func TestEvalCoalesce(t *testing.T) {
	cols := map[string]*string{"a": nil, "b": str("second"), "c": str("third")}
	assert.Equal(t, "second", *evalOn(t, "or(a, b, c)", cols))
	assert.Nil(t, evalOn(t, "or(a, a)", cols))
	assert.Equal(t, "fallback", *evalOn(t, "or(a, 'fallback')", cols))
	// Empty string is non-null, so coalesce keeps it.
	cols["a"] = str("")
	assert.Equal(t, "", *evalOn(t, "or(a, b)", cols))
}

func TestEvalEquality(t *testing.T) {
	cols := map[string]*string{"stage": str("won"), "blank": nil}
	assert.Equal(t, "true", *evalOn(t, "stage == 'won'", cols))
	assert.Equal(t, "false", *evalOn(t, "stage == 'lost'", cols))
	// Null never equals anything, including another null.
	assert.Equal(t, "false", *evalOn(t, "blank == 'won'", cols))
	assert.Equal(t, "false", *evalOn(t, "blank == blank", cols))
}

func TestEvalLogic(t *testing.T) {
	cols := map[string]*string{"a": str("x"), "b": nil, "f": str("false")}
	assert.Equal(t, "true", *evalOn(t, "isset(a) and isset(a)", cols))
	assert.Equal(t, "false", *evalOn(t, "isset(a) and isset(b)", cols))
	assert.Equal(t, "true", *evalOn(t, "isset(b) or isset(a)", cols))
	assert.Equal(t, "false", *evalOn(t, "isset(b) or f", cols))
	// "false" text is falsy.
	assert.Equal(t, "false", *evalOn(t, "f and isset(a)", cols))
}

func TestEvalTernary(t *testing.T) {
	cols := map[string]*string{"vip": str("true"), "name": str("Acme"), "alt": str("Other")}
	assert.Equal(t, "Acme", *evalOn(t, "vip ? name : alt", cols))

	cols["vip"] = str("false")
	assert.Equal(t, "Other", *evalOn(t, "vip ? name : alt", cols))

	cols["vip"] = nil
	assert.Equal(t, "Other", *evalOn(t, "vip ? name : alt", cols))

	// Nested in the else branch.
	assert.Equal(t, "n", *evalOn(t, "vip ? 'y' : isset(name) ? 'n' : 'm'", cols))
}

func TestEvalCombined(t *testing.T) {
	cols := map[string]*string{"email": str("a@b.co"), "phone": nil}
	got := evalOn(t, "isset(email) or isset(phone) ? 'reachable' : 'dark'", cols)
	assert.Equal(t, "reachable", *got)
}

func TestParseErrors(t *testing.T) {
	bad := []string{
		"",
		"a ==",
		"a ? b",
		"(a",
		"or(a",
		"or(a; b)",
		"a @@ b",
		"'unterminated",
		"a b",
	}
	for _, src := range bad {
		_, err := Parse(src)
		require.Error(t, err, "expected parse failure for %q", src)
		var rerr *Error
		assert.ErrorAs(t, err, &rerr, "source %q", src)
	}
}

func TestValidateUnknownIdentifier(t *testing.T) {
	ex, err := Parse("isset(ghost) ? name : 'x'")
	require.NoError(t, err)

	has := func(col string) bool { return col == "name" }
	err = ex.Validate(has)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown identifier "ghost"`)

	ok, err2 := Parse("isset(name)")
	require.NoError(t, err2)
	assert.NoError(t, ok.Validate(has))
}

func TestIdentifiersWithDotsAndSlashes(t *testing.T) {
	cols := map[string]*string{"partner_id/id": str("p1"), "crm.stage": str("won")}
	assert.Equal(t, "p1", *evalOn(t, "partner_id/id", cols))
	assert.Equal(t, "true", *evalOn(t, "crm.stage == 'won'", cols))
}
