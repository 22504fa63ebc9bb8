package rule

import (
	"sort"

	"github.com/ignite/odoo-bridge/internal/frame"
	"github.com/ignite/odoo-bridge/internal/registry"
)

// Engine applies a model's defaults and derived-field rules to a frame.
// Parsed expressions are cached by source text, so re-running the same
// registry across models or exports does not re-parse.
type Engine struct {
	parsed map[string]*Expr
}

func NewEngine() *Engine {
	return &Engine{parsed: make(map[string]*Expr)}
}

func (e *Engine) compile(src string) (*Expr, error) {
	if ex, ok := e.parsed[src]; ok {
		return ex, nil
	}
	ex, err := Parse(src)
	if err != nil {
		return nil, err
	}
	e.parsed[src] = ex
	return ex, nil
}

// Apply fills defaults into null cells and evaluates rule expressions as
// new or overwriting columns. Defaults go first so rules can observe them.
// Fields are processed in header order (derived-only fields last, sorted)
// so rule-on-rule dependencies resolve the same way every run.
// Any parse or identifier error is fatal for the model.
func (e *Engine) Apply(fr *frame.Frame, model registry.ModelSpec) error {
	order := fieldOrder(model)

	for _, name := range order {
		field := model.Fields[name]
		if field.Default == nil {
			continue
		}
		if !fr.Has(name) {
			fr.SetColumn(name, make([]*string, fr.Len()))
		}
		fr.FillNull(name, *field.Default)
	}

	for _, name := range order {
		field := model.Fields[name]
		if field.Rule == "" {
			continue
		}
		ex, err := e.compile(field.Rule)
		if err != nil {
			return err
		}
		if err := ex.Validate(fr.Has); err != nil {
			return err
		}
		cells := make([]*string, fr.Len())
		for _, row := range fr.Rows() {
			v, err := ex.Eval(row)
			if err != nil {
				return err
			}
			cells[row.Index()] = v
		}
		fr.SetColumn(name, cells)
	}
	return nil
}

func fieldOrder(model registry.ModelSpec) []string {
	order := make([]string, 0, len(model.Fields))
	inHeaders := make(map[string]bool, len(model.Headers))
	for _, h := range model.Headers {
		if _, ok := model.Fields[h]; ok {
			order = append(order, h)
			inHeaders[h] = true
		}
	}
	var extra []string
	for name := range model.Fields {
		if !inHeaders[name] {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)
	return append(order, extra...)
}
