// Package transform is the mapping-time transform catalog. Transforms run
// before validation; a failing transform leaves the original value in
// place rather than rejecting the row. User-supplied per-row lambdas are
// not supported: a mapping can only select a pre-compiled transform by
// name, which keeps configuration-driven pipelines free of code injection.
package transform

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/ignite/odoo-bridge/internal/normalize"
)

// Params carries the per-mapping options for a transform step, decoded
// from the mapping's configuration.
type Params map[string]interface{}

func (p Params) str(key string) string {
	if v, ok := p[key].(string); ok {
		return v
	}
	return ""
}

func (p Params) num(key string, fallback int) int {
	switch v := p[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

// Func is one transform. Returning an error tells the caller to keep the
// original value.
type Func func(value string, params Params) (string, error)

var titleCaser = cases.Title(language.English)

// catalog maps transform names to implementations. The set below is the
// minimum contract the mapping collaborator relies on.
var catalog = map[string]Func{
	"trim": func(v string, _ Params) (string, error) {
		return strings.TrimSpace(v), nil
	},
	"lower": func(v string, _ Params) (string, error) {
		return strings.ToLower(v), nil
	},
	"upper": func(v string, _ Params) (string, error) {
		return strings.ToUpper(v), nil
	},
	"titlecase": func(v string, _ Params) (string, error) {
		return titleCaser.String(strings.ToLower(v)), nil
	},
	"phone_normalize": func(v string, _ Params) (string, error) {
		return normalize.PhoneUS(v)
	},
	"email_normalize": func(v string, _ Params) (string, error) {
		return normalize.Email(v)
	},
	"parse_date": func(v string, _ Params) (string, error) {
		return normalize.DateAny(v)
	},
	"parse_bool": func(v string, _ Params) (string, error) {
		return normalize.Bool(v)
	},
	"currency_to_float": currencyToFloat,
	"split":             splitTransform,
	"map":               mapTransform,
	"default_if_empty": func(v string, p Params) (string, error) {
		if strings.TrimSpace(v) == "" {
			return p.str("default"), nil
		}
		return v, nil
	},
	"add_prefix": func(v string, p Params) (string, error) {
		return p.str("prefix") + v, nil
	},
	"add_suffix": func(v string, p Params) (string, error) {
		return v + p.str("suffix"), nil
	},
	"round":         roundTransform,
	"replace":       replaceTransform,
	"regex_extract": regexExtract,
}

// Lookup returns the named transform.
func Lookup(name string) (Func, bool) {
	f, ok := catalog[name]
	return f, ok
}

// Names returns every registered transform name.
func Names() []string {
	out := make([]string, 0, len(catalog))
	for name := range catalog {
		out = append(out, name)
	}
	return out
}

var currencyJunk = strings.NewReplacer("$", "", "€", "", "£", "", ",", "", " ", "")

func currencyToFloat(v string, _ Params) (string, error) {
	cleaned := currencyJunk.Replace(strings.TrimSpace(v))
	if cleaned == "" {
		return "", fmt.Errorf("empty amount")
	}
	// Accounting negatives: (12.50) means -12.50.
	neg := false
	if strings.HasPrefix(cleaned, "(") && strings.HasSuffix(cleaned, ")") {
		neg = true
		cleaned = cleaned[1 : len(cleaned)-1]
	}
	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return "", fmt.Errorf("not a currency amount: %q", v)
	}
	if neg {
		f = -f
	}
	return strconv.FormatFloat(f, 'f', -1, 64), nil
}

func splitTransform(v string, p Params) (string, error) {
	sep := p.str("sep")
	if sep == "" {
		sep = ","
	}
	parts := strings.Split(v, sep)
	idx := p.num("index", 0)
	if idx < 0 || idx >= len(parts) {
		return "", fmt.Errorf("split index %d out of range (%d parts)", idx, len(parts))
	}
	return strings.TrimSpace(parts[idx]), nil
}

func mapTransform(v string, p Params) (string, error) {
	values, ok := p["values"].(map[string]interface{})
	if !ok {
		return "", fmt.Errorf("map transform needs a values table")
	}
	if mapped, ok := values[v]; ok {
		return fmt.Sprintf("%v", mapped), nil
	}
	return "", fmt.Errorf("value %q not in map", v)
}

func roundTransform(v string, p Params) (string, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return "", fmt.Errorf("not a number: %q", v)
	}
	decimals := p.num("decimals", 0)
	shift := math.Pow(10, float64(decimals))
	return strconv.FormatFloat(math.Round(f*shift)/shift, 'f', -1, 64), nil
}

func replaceTransform(v string, p Params) (string, error) {
	return strings.ReplaceAll(v, p.str("old"), p.str("new")), nil
}

func regexExtract(v string, p Params) (string, error) {
	pattern := p.str("pattern")
	re, err := regexp.Compile(pattern)
	if err != nil {
		return "", fmt.Errorf("bad pattern %q: %v", pattern, err)
	}
	m := re.FindStringSubmatch(v)
	if m == nil {
		return "", fmt.Errorf("no match")
	}
	group := p.num("group", 0)
	if group < 0 || group >= len(m) {
		return "", fmt.Errorf("group %d out of range", group)
	}
	return m[group], nil
}

// Chain applies transform steps in order. A step that fails (or names an
// unknown transform) is skipped, leaving the value as it was before that
// step; the caller may log but the row proceeds to validation untouched.
func Chain(value string, steps []Step) string {
	for _, step := range steps {
		f, ok := Lookup(step.Name)
		if !ok {
			continue
		}
		out, err := f(value, step.Params)
		if err != nil {
			continue
		}
		value = out
	}
	return value
}

// Step is one named stage in a mapping's transform chain.
type Step struct {
	Name   string `json:"name" yaml:"name"`
	Params Params `json:"params,omitempty" yaml:"params,omitempty"`
}
