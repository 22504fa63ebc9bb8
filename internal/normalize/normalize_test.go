package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPhoneUS(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"(415) 555-2671", "14155552671", false},
		{"415-555-2671", "14155552671", false},
		{"1 (415) 555-2671", "14155552671", false},
		{"14155552671", "14155552671", false},
		{"+1 415 555 2671", "14155552671", false},
		{"555-2671", "", true},
		{"24155552671", "", true}, // 11 digits, no leading 1
		{"", "", true},
		{"not a phone", "", true},
	}
	for _, tt := range tests {
		got, err := PhoneUS(tt.in)
		if tt.wantErr {
			assert.Error(t, err, "input %q", tt.in)
			continue
		}
		require.NoError(t, err, "input %q", tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestEmail(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"User@Example.COM", "user@example.com", false},
		{"  padded@example.org  ", "padded@example.org", false},
		{"a@b.co", "a@b.co", false},
		{"@example.com", "", true},
		{"two@@example.com", "", true},
		{"nodomain@", "", true},
		{"nodot@example", "", true},
		{"empty@label..com", "", true},
		{"plain", "", true},
	}
	for _, tt := range tests {
		got, err := Email(tt.in)
		if tt.wantErr {
			assert.Error(t, err, "input %q", tt.in)
			continue
		}
		require.NoError(t, err, "input %q", tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestDateAny(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"2024-03-04", "2024-03-04", false},
		{"03/04/2024", "2024-03-04", false}, // ambiguous reads US: March 4
		{"03-04-2024", "2024-03-04", false},
		{"25/12/2024", "2024-12-25", false}, // unambiguous EU
		{"2024/03/04", "2024-03-04", false},
		{"March 4, 2024", "2024-03-04", false},
		{"Mar 4, 2024", "2024-03-04", false},
		{"4 March 2024", "2024-03-04", false},
		{"20240304", "2024-03-04", false},
		{"2024-03-04T10:30:00Z", "2024-03-04", false},
		{"2024-03-04 10:30:00", "2024-03-04", false},
		{"45385", "2024-04-03", false}, // spreadsheet serial
		{"", "", true},
		{"yesterday", "", true},
		{"2024-13-40", "", true},
		{"0.5", "", true},    // serials at or below 1 rejected
		{"999999", "", true}, // serial out of range
	}
	for _, tt := range tests {
		got, err := DateAny(tt.in)
		if tt.wantErr {
			assert.Error(t, err, "input %q", tt.in)
			continue
		}
		require.NoError(t, err, "input %q", tt.in)
		assert.Equal(t, tt.want, got, "input %q", tt.in)
	}
}

func TestBool(t *testing.T) {
	truthy := []string{"true", "TRUE", "t", "yes", "Y", "1", " yes "}
	for _, in := range truthy {
		got, err := Bool(in)
		require.NoError(t, err, "input %q", in)
		assert.Equal(t, "true", got)
	}
	falsy := []string{"false", "F", "no", "N", "0"}
	for _, in := range falsy {
		got, err := Bool(in)
		require.NoError(t, err, "input %q", in)
		assert.Equal(t, "false", got)
	}
	for _, in := range []string{"", "maybe", "2", "ja"} {
		_, err := Bool(in)
		assert.Error(t, err, "input %q", in)
	}
}

type fakeSeed struct {
	synonyms  map[string]string
	canonical map[string]bool
}

func (s fakeSeed) Resolve(alias string) (string, bool) {
	v, ok := s.synonyms[alias]
	return v, ok
}

func (s fakeSeed) IsCanonical(v string) bool { return s.canonical[v] }

func TestEnumResolutionOrder(t *testing.T) {
	seed := fakeSeed{
		synonyms:  map[string]string{"New": "stage_new"},
		canonical: map[string]bool{"stage_new": true, "stage_won": true},
	}
	inline := map[string]string{"Qualified": "stage_qualified", "New": "inline_should_lose"}

	// Seed synonym wins over the inline key.
	got, err := Enum("New", inline, seed)
	require.NoError(t, err)
	assert.Equal(t, "stage_new", got)

	// Inline key.
	got, err = Enum("Qualified", inline, seed)
	require.NoError(t, err)
	assert.Equal(t, "stage_qualified", got)

	// Inline value passes through.
	got, err = Enum("stage_qualified", inline, seed)
	require.NoError(t, err)
	assert.Equal(t, "stage_qualified", got)

	// Seed canonical passes through.
	got, err = Enum("stage_won", inline, seed)
	require.NoError(t, err)
	assert.Equal(t, "stage_won", got)

	// Exact match only: no case folding.
	_, err = Enum("new", inline, seed)
	assert.Error(t, err)

	_, err = Enum("unknown", inline, seed)
	assert.Error(t, err)
}

func TestEnumNilSeed(t *testing.T) {
	got, err := Enum("k", map[string]string{"k": "v"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "v", got)
}

// Every normalizer must be idempotent over its accepted domain.
func TestIdempotency(t *testing.T) {
	phones := []string{"(415) 555-2671", "14155552671"}
	for _, in := range phones {
		once, err := PhoneUS(in)
		require.NoError(t, err)
		twice, err := PhoneUS(once)
		require.NoError(t, err)
		assert.Equal(t, once, twice)
	}

	emails := []string{"User@Example.COM", "a@b.co"}
	for _, in := range emails {
		once, err := Email(in)
		require.NoError(t, err)
		twice, err := Email(once)
		require.NoError(t, err)
		assert.Equal(t, once, twice)
	}

	dates := []string{"03/04/2024", "2024-12-25", "45385"}
	for _, in := range dates {
		once, err := DateAny(in)
		require.NoError(t, err)
		twice, err := DateAny(once)
		require.NoError(t, err)
		assert.Equal(t, once, twice)
	}

	bools := []string{"YES", "0"}
	for _, in := range bools {
		once, err := Bool(in)
		require.NoError(t, err)
		twice, err := Bool(once)
		require.NoError(t, err)
		assert.Equal(t, once, twice)
	}
}

func TestByName(t *testing.T) {
	for _, name := range []string{"phone_us", "normalize_email", "date_any", "coerce_bool"} {
		_, ok := ByName(name)
		assert.True(t, ok, name)
	}
	_, ok := ByName("does_not_exist")
	assert.False(t, ok)
}
