package rule

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/odoo-bridge/internal/frame"
	"github.com/ignite/odoo-bridge/internal/registry"
)

func TestApplyDefaultsBeforeRules(t *testing.T) {
	f := frame.New(2)
	require.NoError(t, f.SetColumn("name", []*string{str("Acme"), str("Globex")}))
	require.NoError(t, f.SetColumn("country", []*string{str("US"), nil}))

	def := "US"
	model := registry.ModelSpec{
		Name:    "res.partner",
		Headers: []string{"id", "name", "country", "domestic"},
		Fields: map[string]registry.FieldSpec{
			"country":  {Name: "country", Default: &def},
			"domestic": {Name: "domestic", Rule: "country == 'US'"},
		},
	}

	engine := NewEngine()
	require.NoError(t, engine.Apply(f, model))

	assert.Equal(t, "US", *f.Get(1, "country"))
	assert.Equal(t, "true", *f.Get(0, "domestic"))
	assert.Equal(t, "true", *f.Get(1, "domestic"))
}

func TestApplyCreatesMissingDefaultColumn(t *testing.T) {
	f := frame.New(1)
	require.NoError(t, f.SetColumn("name", []*string{str("x")}))

	def := "draft"
	model := registry.ModelSpec{
		Headers: []string{"id", "name", "state"},
		Fields: map[string]registry.FieldSpec{
			"state": {Name: "state", Default: &def},
		},
	}
	require.NoError(t, NewEngine().Apply(f, model))
	assert.Equal(t, "draft", *f.Get(0, "state"))
}

func TestApplyRuleChainInHeaderOrder(t *testing.T) {
	// "level2" depends on "level1", which is itself rule-produced.
	// Header order guarantees level1 is computed first.
	f := frame.New(1)
	require.NoError(t, f.SetColumn("raw", []*string{str("yes")}))

	model := registry.ModelSpec{
		Headers: []string{"id", "raw", "level1", "level2"},
		Fields: map[string]registry.FieldSpec{
			"level1": {Name: "level1", Rule: "raw == 'yes' ? 'on' : 'off'"},
			"level2": {Name: "level2", Rule: "level1 == 'on'"},
		},
	}
	require.NoError(t, NewEngine().Apply(f, model))
	assert.Equal(t, "on", *f.Get(0, "level1"))
	assert.Equal(t, "true", *f.Get(0, "level2"))
}

func TestApplyUnknownIdentifierIsFatal(t *testing.T) {
	f := frame.New(1)
	require.NoError(t, f.SetColumn("name", []*string{str("x")}))

	model := registry.ModelSpec{
		Headers: []string{"id", "name", "bad"},
		Fields: map[string]registry.FieldSpec{
			"bad": {Name: "bad", Rule: "isset(no_such_column)"},
		},
	}
	err := NewEngine().Apply(f, model)
	require.Error(t, err)
	var rerr *Error
	assert.ErrorAs(t, err, &rerr)
}

func TestApplyParseErrorIsFatal(t *testing.T) {
	f := frame.New(1)
	require.NoError(t, f.SetColumn("name", []*string{str("x")}))

	model := registry.ModelSpec{
		Headers: []string{"id", "name", "bad"},
		Fields: map[string]registry.FieldSpec{
			"bad": {Name: "bad", Rule: "name =="},
		},
	}
	assert.Error(t, NewEngine().Apply(f, model))
}

func TestEngineCachesParsedRules(t *testing.T) {
	engine := NewEngine()
	a, err := engine.compile("isset(x)")
	require.NoError(t, err)
	b, err := engine.compile("isset(x)")
	require.NoError(t, err)
	assert.Same(t, a, b)
}
