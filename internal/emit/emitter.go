// Package emit turns a validated frame into exactly one deterministic CSV
// artifact per model. Rows are ordered by external ID, not input order;
// that ordering is what makes repeat runs byte-identical.
package emit

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ignite/odoo-bridge/internal/exceptions"
	"github.com/ignite/odoo-bridge/internal/extid"
	"github.com/ignite/odoo-bridge/internal/frame"
	"github.com/ignite/odoo-bridge/internal/normalize"
	"github.com/ignite/odoo-bridge/internal/pkg/logger"
	"github.com/ignite/odoo-bridge/internal/registry"
	"github.com/ignite/odoo-bridge/internal/rule"
)

// IntegrityError means the written artifact does not start with the exact
// header line the registry demands. It is fatal for the export.
type IntegrityError struct {
	Model string
	Want  string
	Got   string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("model %s: header mismatch: want %q, got %q", e.Model, e.Want, e.Got)
}

// Emitter writes model CSVs and reports duplicate external IDs as
// exceptions.
type Emitter struct {
	store exceptions.Store
	rules *rule.Engine
}

func New(store exceptions.Store) *Emitter {
	return &Emitter{store: store, rules: rule.NewEngine()}
}

// EmitModel writes model.CSVFilename under outDir from the valid frame and
// returns the set of emitted external IDs. The frame must carry a
// source_ptr column; it is consumed for DUP_EXT_ID exceptions and excluded
// from the artifact.
func (e *Emitter) EmitModel(ctx context.Context, fr *frame.Frame, model registry.ModelSpec, seeds map[string]registry.SeedSpec, datasetID, outDir string) (map[string]struct{}, string, error) {
	// Render external IDs in frame order with a fresh tracker; duplicate
	// bases keep flowing with an _N suffix but are recorded.
	tracker := extid.NewDedupTracker()
	ids := make([]*string, fr.Len())
	for _, row := range fr.Rows() {
		id, dup := extid.Render(model.IDTemplate, row.Text, tracker)
		ids[row.Index()] = &id
		if dup {
			_, err := e.store.Add(ctx, datasetID, model.Name, row.Text("source_ptr"),
				exceptions.CodeDupExtID,
				fmt.Sprintf("external id %q already used in this file; emitted with suffix", id),
				map[string]interface{}{"field": "id", "value": id})
			if err != nil {
				return nil, "", fmt.Errorf("record duplicate id: %w", err)
			}
		}
	}
	fr.SetColumn("id", ids)

	// Emit-time normalizers. Validation already rejected bad rows, so a
	// failure here is a latent bug: surface it in logs, write null.
	for _, h := range model.Headers {
		f, ok := model.Field(h)
		if !ok || f.Transform == "" || !fr.Has(h) {
			continue
		}
		e.applyTransform(fr, model, f, seeds)
	}

	if err := e.rules.Apply(fr, model); err != nil {
		return nil, "", err
	}

	out := fr.Select(model.Headers)
	for _, h := range model.Headers {
		out.FillNull(h, "")
	}
	out.SortBy("id")

	path := filepath.Join(outDir, model.CSVFilename)
	file, err := os.Create(path)
	if err != nil {
		return nil, "", fmt.Errorf("create %s: %w", path, err)
	}
	if err := out.WriteCSV(file); err != nil {
		file.Close()
		return nil, "", fmt.Errorf("write %s: %w", path, err)
	}
	if err := file.Close(); err != nil {
		return nil, "", fmt.Errorf("close %s: %w", path, err)
	}

	if err := verifyHeader(path, model); err != nil {
		return nil, "", err
	}

	emitted := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		emitted[*id] = struct{}{}
	}
	return emitted, path, nil
}

func (e *Emitter) applyTransform(fr *frame.Frame, model registry.ModelSpec, f registry.FieldSpec, seeds map[string]registry.SeedSpec) {
	cells := fr.Column(f.Name)

	if f.Transform == "enum" || f.Transform == "coerce_enum" {
		var seed normalize.SeedVocabulary
		if f.MapFromSeed != "" {
			if s, ok := seeds[f.MapFromSeed]; ok {
				seed = s
			}
		}
		for i, cell := range cells {
			if cell == nil {
				continue
			}
			v, err := normalize.Enum(*cell, f.Values, seed)
			if err != nil {
				logger.Warn("emit-time enum failure after validation", "model", model.Name, "field", f.Name)
				cells[i] = nil
				continue
			}
			cells[i] = &v
		}
		return
	}

	fn, ok := normalize.ByName(f.Transform)
	if !ok {
		logger.Warn("unknown transform on field", "model", model.Name, "field", f.Name, "transform", f.Transform)
		return
	}
	for i, cell := range cells {
		if cell == nil {
			continue
		}
		v, err := fn(*cell)
		if err != nil {
			logger.Warn("emit-time normalize failure after validation", "model", model.Name, "field", f.Name)
			cells[i] = nil
			continue
		}
		cells[i] = &v
	}
}

// verifyHeader re-reads the artifact and requires its first line to equal
// join(headers, ",") exactly.
func verifyHeader(path string, model registry.ModelSpec) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("verify %s: %w", path, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	var first string
	if scanner.Scan() {
		first = scanner.Text()
	}
	want := strings.Join(model.Headers, ",")
	if first != want {
		return &IntegrityError{Model: model.Name, Want: want, Got: first}
	}
	return nil
}
