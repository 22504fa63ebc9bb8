// Package validate decides row admission for one model. It records at most
// one exception per row per pass (the first failing check wins) and never
// mutates cell values; canonicalization happens at emit time.
package validate

import (
	"context"
	"fmt"

	"github.com/ignite/odoo-bridge/internal/exceptions"
	"github.com/ignite/odoo-bridge/internal/frame"
	"github.com/ignite/odoo-bridge/internal/normalize"
	"github.com/ignite/odoo-bridge/internal/registry"
)

// FKLookup answers whether a parent model has emitted a given external ID
// in this run. Satisfied by the orchestrator's FK cache.
type FKLookup interface {
	Has(model, id string) bool
}

// Result summarizes one validation pass.
type Result struct {
	Valid          *frame.Frame
	ExceptionCount int
	ByCode         map[string]int
}

// Validator runs the ordered per-row checks for a model.
type Validator struct {
	store exceptions.Store
}

func New(store exceptions.Store) *Validator {
	return &Validator{store: store}
}

// Run checks every row of fr against the model spec. Rows that fail are
// excluded from the returned frame and recorded as exceptions keyed by the
// row's source_ptr.
func (v *Validator) Run(ctx context.Context, fr *frame.Frame, model registry.ModelSpec, seeds map[string]registry.SeedSpec, fk FKLookup, datasetID string) (Result, error) {
	res := Result{ByCode: make(map[string]int)}

	var keep []int
	for _, row := range fr.Rows() {
		code, field, hint := v.checkRow(row, model, seeds, fk)
		if code == "" {
			keep = append(keep, row.Index())
			continue
		}
		offending := map[string]interface{}{"field": field}
		if raw := row.Get(field); raw != nil {
			offending["value"] = *raw
		}
		if _, err := v.store.Add(ctx, datasetID, model.Name, row.Text("source_ptr"), code, hint, offending); err != nil {
			return Result{}, fmt.Errorf("record exception: %w", err)
		}
		res.ExceptionCount++
		res.ByCode[code]++
	}

	res.Valid = fr.Take(keep)
	return res, nil
}

// checkRow runs the checks in taxonomy order and reports the first
// failure. Fields within each check are visited in header order.
func (v *Validator) checkRow(row frame.Row, model registry.ModelSpec, seeds map[string]registry.SeedSpec, fk FKLookup) (code, field, hint string) {
	// Required.
	for _, h := range model.Headers {
		f, ok := model.Field(h)
		if !ok || !f.Required {
			continue
		}
		if cell := row.Get(h); cell == nil || *cell == "" {
			return exceptions.CodeReqMissing, h, fmt.Sprintf("required field %q is empty", h)
		}
	}

	// Typed checks, one type at a time so the taxonomy order holds.
	for _, check := range typedChecks {
		for _, h := range model.Headers {
			f, ok := model.Field(h)
			if !ok || f.Type != check.fieldType {
				continue
			}
			cell := row.Get(h)
			if cell == nil || *cell == "" {
				if check.fieldType == registry.TypeEnum && cell == nil && !f.Optional && !f.Required {
					return exceptions.CodeEnumUnknown, h, fmt.Sprintf("enum field %q is null and not optional", h)
				}
				continue
			}
			if hint := check.fn(*cell, f, seeds, fk); hint != "" {
				return check.code, h, hint
			}
		}
	}

	return "", "", ""
}

type typedCheck struct {
	fieldType registry.FieldType
	code      string
	fn        func(value string, f registry.FieldSpec, seeds map[string]registry.SeedSpec, fk FKLookup) string
}

var typedChecks = []typedCheck{
	{registry.TypeEmail, exceptions.CodeInvalidEmail, func(v string, _ registry.FieldSpec, _ map[string]registry.SeedSpec, _ FKLookup) string {
		if _, err := normalize.Email(v); err != nil {
			return err.Error()
		}
		return ""
	}},
	{registry.TypePhone, exceptions.CodeInvalidPhone, func(v string, _ registry.FieldSpec, _ map[string]registry.SeedSpec, _ FKLookup) string {
		if _, err := normalize.PhoneUS(v); err != nil {
			return err.Error()
		}
		return ""
	}},
	{registry.TypeDate, exceptions.CodeDateParseFail, func(v string, _ registry.FieldSpec, _ map[string]registry.SeedSpec, _ FKLookup) string {
		if _, err := normalize.DateAny(v); err != nil {
			return err.Error()
		}
		return ""
	}},
	{registry.TypeBool, exceptions.CodeBoolParseFail, func(v string, _ registry.FieldSpec, _ map[string]registry.SeedSpec, _ FKLookup) string {
		if _, err := normalize.Bool(v); err != nil {
			return err.Error()
		}
		return ""
	}},
	{registry.TypeEnum, exceptions.CodeEnumUnknown, func(v string, f registry.FieldSpec, seeds map[string]registry.SeedSpec, _ FKLookup) string {
		var seed normalize.SeedVocabulary
		if f.MapFromSeed != "" {
			if s, ok := seeds[f.MapFromSeed]; ok {
				seed = s
			}
		}
		if _, err := normalize.Enum(v, f.Values, seed); err != nil {
			return err.Error()
		}
		return ""
	}},
	{registry.TypeM2O, exceptions.CodeFKUnresolved, func(v string, f registry.FieldSpec, _ map[string]registry.SeedSpec, fk FKLookup) string {
		if fk == nil || !fk.Has(f.Target, v) {
			return fmt.Sprintf("%q does not reference an emitted %s record", v, f.Target)
		}
		return ""
	}},
}
