// Package normalize holds the idempotent value canonicalizers used at
// validation and emit time. Every function satisfies f(f(x)) == f(x) over
// its accepted domain and returns an error with a user-facing hint
// otherwise; callers translate failures into exception records.
package normalize

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// PhoneUS canonicalizes a US phone number to 11 digits with a leading 1.
func PhoneUS(s string) (string, error) {
	var digits strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	d := digits.String()
	switch {
	case len(d) == 10:
		return "1" + d, nil
	case len(d) == 11 && d[0] == '1':
		return d, nil
	default:
		return "", fmt.Errorf("expected 10 or 11 digits, got %d", len(d))
	}
}

// Email trims, lowercases, and checks the basic shape: a single @ with a
// non-empty local part and a dotted domain whose labels are all non-empty.
func Email(s string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(s))
	at := strings.Index(email, "@")
	if at < 1 || at != strings.LastIndex(email, "@") {
		return "", fmt.Errorf("expected exactly one @ with a non-empty local part")
	}
	domain := email[at+1:]
	labels := strings.Split(domain, ".")
	if len(labels) < 2 {
		return "", fmt.Errorf("domain %q has no dot", domain)
	}
	for _, l := range labels {
		if l == "" {
			return "", fmt.Errorf("domain %q has an empty label", domain)
		}
	}
	return email, nil
}

var isoDate = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// dateLayouts are tried in order. US formats deliberately precede EU ones:
// an ambiguous string like 03/04/2024 reads as March 4.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"01/02/2006",
	"01-02-2006",
	"02/01/2006",
	"02-01-2006",
	"2006/01/02",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
	"2 Jan 2006",
	"January 2 2006",
	"20060102",
}

// serialEpoch is the spreadsheet day-zero (Lotus convention).
var serialEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

// DateAny parses a date in any of the supported shapes and renders it as
// YYYY-MM-DD. Valid ISO dates pass through unchanged.
func DateAny(s string) (string, error) {
	v := strings.TrimSpace(s)
	if v == "" {
		return "", fmt.Errorf("empty date")
	}
	if isoDate.MatchString(v) {
		if _, err := time.Parse("2006-01-02", v); err == nil {
			return v, nil
		}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t.Format("2006-01-02"), nil
		}
	}
	// Spreadsheet serial: days since 1899-12-30.
	if serial, err := strconv.ParseFloat(v, 64); err == nil {
		if serial > 1 && serial < 100000 {
			t := serialEpoch.AddDate(0, 0, int(serial))
			return t.Format("2006-01-02"), nil
		}
	}
	return "", fmt.Errorf("unrecognized date %q", v)
}

// Bool coerces truthy/falsy tokens to the strings "true" / "false".
func Bool(s string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "t", "yes", "y", "1":
		return "true", nil
	case "false", "f", "no", "n", "0":
		return "false", nil
	default:
		return "", fmt.Errorf("expected a yes/no value, got %q", s)
	}
}

// SeedVocabulary is the seed view Enum needs. Implemented by
// registry.SeedSpec; declared here so normalize stays leaf-level.
type SeedVocabulary interface {
	Resolve(alias string) (string, bool)
	IsCanonical(v string) bool
}

// Enum resolves a raw value to a canonical enum ID. Resolution order: seed
// synonym, inline map key, inline map value, seed canonical. First hit
// wins. Lookup is exact-match; case folding is a product decision that has
// not been made.
func Enum(s string, inline map[string]string, seed SeedVocabulary) (string, error) {
	if seed != nil {
		if v, ok := seed.Resolve(s); ok {
			return v, nil
		}
	}
	if v, ok := inline[s]; ok {
		return v, nil
	}
	for _, v := range inline {
		if v == s {
			return s, nil
		}
	}
	if seed != nil && seed.IsCanonical(s) {
		return s, nil
	}
	return "", fmt.Errorf("value %q is not a known enum value or synonym", s)
}

// ByName resolves an emit-time transform name from a FieldSpec to its
// normalizer. Enum is handled separately because it needs the seed.
func ByName(name string) (func(string) (string, error), bool) {
	switch name {
	case "phone", "phone_us", "normalize_phone_us":
		return PhoneUS, true
	case "email", "normalize_email":
		return Email, true
	case "date", "date_any", "normalize_date_any":
		return DateAny, true
	case "bool", "coerce_bool":
		return Bool, true
	default:
		return nil, false
	}
}
