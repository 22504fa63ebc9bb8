// Package export drives one deterministic export run: wipe exceptions,
// walk the registry import order, validate and emit each model, feed the
// FK cache, and bundle the artifacts. Given the same dataset snapshot,
// registry, and mappings, two runs produce byte-identical output.
package export

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ignite/odoo-bridge/internal/dataset"
	"github.com/ignite/odoo-bridge/internal/emit"
	"github.com/ignite/odoo-bridge/internal/exceptions"
	"github.com/ignite/odoo-bridge/internal/frame"
	"github.com/ignite/odoo-bridge/internal/mapping"
	"github.com/ignite/odoo-bridge/internal/pkg/logger"
	"github.com/ignite/odoo-bridge/internal/registry"
	"github.com/ignite/odoo-bridge/internal/rule"
	"github.com/ignite/odoo-bridge/internal/transform"
	"github.com/ignite/odoo-bridge/internal/validate"
)

// Orchestrator owns the per-run pipeline. It is single-threaded within a
// run; parallelism across datasets comes from the task runner, with one
// Orchestrator FK cache and dedup tracker per run.
type Orchestrator struct {
	registryPath string
	loader       *registry.Loader
	mappings     mapping.Store
	store        exceptions.Store
	source       dataset.Source
	artifactRoot string
}

func NewOrchestrator(registryPath string, loader *registry.Loader, mappings mapping.Store, store exceptions.Store, source dataset.Source, artifactRoot string) *Orchestrator {
	return &Orchestrator{
		registryPath: registryPath,
		loader:       loader,
		mappings:     mappings,
		store:        store,
		source:       source,
		artifactRoot: artifactRoot,
	}
}

// Export runs the full pipeline for one dataset. Per-row failures land in
// the exceptions store and never abort; a fatal failure returns an
// *ExportError and leaves any already-emitted artifacts on disk.
func (o *Orchestrator) Export(ctx context.Context, datasetID string) (*Result, error) {
	reg, err := o.loader.Load(o.registryPath)
	if err != nil {
		return nil, &ExportError{Kind: KindRegistryInvalid, Err: err}
	}

	if _, err := o.store.Clear(ctx, datasetID, ""); err != nil {
		return nil, &ExportError{Kind: KindIOError, Err: fmt.Errorf("clear exceptions: %w", err)}
	}

	outDir := filepath.Join(o.artifactRoot, datasetID)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, &ExportError{Kind: KindIOError, Err: err}
	}

	fkCache := NewFKCache()
	emitter := emit.New(o.store)
	validator := validate.New(o.store)
	rules := rule.NewEngine()

	result := &Result{DatasetID: datasetID, ByCode: make(map[string]int)}
	var artifacts []string

	for _, modelName := range reg.ImportOrder {
		model, _ := reg.Model(modelName)

		maps, err := o.mappings.Confirmed(ctx, datasetID, modelName)
		if err != nil {
			return nil, &ExportError{Kind: KindIOError, Model: modelName, Err: err}
		}
		if len(maps) == 0 {
			result.Models = append(result.Models, ModelSummary{Model: modelName, Skipped: true})
			continue
		}

		fr, err := o.buildFrame(ctx, datasetID, maps)
		if err != nil {
			return nil, &ExportError{Kind: KindIOError, Model: modelName, Err: err}
		}

		// Defaults and derived rules run before validation so a registry
		// default can satisfy a required field. The emitter re-applies
		// them after the normalizers; both passes are idempotent.
		if err := rules.Apply(fr, model); err != nil {
			return nil, &ExportError{Kind: KindRuleError, Model: modelName, Err: err}
		}

		vres, err := validator.Run(ctx, fr, model, reg.Seeds, fkCache, datasetID)
		if err != nil {
			return nil, &ExportError{Kind: KindIOError, Model: modelName, Err: err}
		}

		summary := ModelSummary{Model: modelName, ExceptionsCount: vres.ExceptionCount}
		for code, n := range vres.ByCode {
			result.ByCode[code] += n
		}
		result.TotalExceptions += vres.ExceptionCount

		// An all-invalid model still emits an empty CSV so the bundle
		// shape is stable; dependents will fail FK_UNRESOLVED on their own.
		emitted, path, err := emitter.EmitModel(ctx, vres.Valid, model, reg.Seeds, datasetID, outDir)
		if err != nil {
			return nil, o.classifyEmitErr(modelName, err)
		}
		dupes, err := o.store.Count(ctx, datasetID, modelName)
		if err == nil && dupes > summary.ExceptionsCount {
			diff := dupes - summary.ExceptionsCount
			summary.ExceptionsCount = dupes
			result.TotalExceptions += diff
			result.ByCode[exceptions.CodeDupExtID] += diff
		}

		fkCache.Merge(modelName, emitted)
		summary.RowsEmitted = vres.Valid.Len()
		result.TotalRows += summary.RowsEmitted
		result.Models = append(result.Models, summary)
		artifacts = append(artifacts, path)

		logger.Info("model emitted",
			"dataset", datasetID, "model", modelName,
			"rows", summary.RowsEmitted, "exceptions", summary.ExceptionsCount)
	}

	zipPath, err := o.bundle(datasetID, outDir, artifacts)
	if err != nil {
		return nil, &ExportError{Kind: KindIOError, Err: err}
	}
	result.ZipPath = zipPath

	logger.Info("export complete",
		"dataset", datasetID, "rows", result.TotalRows,
		"exceptions", result.TotalExceptions, "zip", zipPath)
	return result, nil
}

// buildFrame fetches the sheet(s) the mappings reference, renames source
// columns to target fields, applies each mapping's transform chain, and
// guarantees a source_ptr column.
func (o *Orchestrator) buildFrame(ctx context.Context, datasetID string, maps []mapping.Mapping) (*frame.Frame, error) {
	bySheet := make(map[string][]mapping.Mapping)
	var sheetOrder []string
	for _, m := range maps {
		if _, ok := bySheet[m.Sheet]; !ok {
			sheetOrder = append(sheetOrder, m.Sheet)
		}
		bySheet[m.Sheet] = append(bySheet[m.Sheet], m)
	}

	var frames []*frame.Frame
	for _, sheet := range sheetOrder {
		raw, err := o.source.Frame(ctx, datasetID, sheet)
		if err != nil {
			return nil, err
		}

		out := frame.New(raw.Len())
		if ptr := raw.Column("source_ptr"); ptr != nil {
			cells := make([]*string, raw.Len())
			copy(cells, ptr)
			out.SetColumn("source_ptr", cells)
		}
		for _, m := range bySheet[sheet] {
			src := raw.Column(m.SourceColumn)
			cells := make([]*string, raw.Len())
			if src != nil {
				for i, cell := range src {
					if cell == nil {
						continue
					}
					v := transform.Chain(*cell, m.Transforms)
					if v == "" {
						continue
					}
					cells[i] = &v
				}
			}
			out.SetColumn(m.TargetField, cells)
		}
		frames = append(frames, out)
	}

	fr := concat(frames)

	// Synthesize stable row pointers when ingest did not provide them.
	if !fr.Has("source_ptr") {
		cells := make([]*string, fr.Len())
		for i := range cells {
			v := fmt.Sprintf("row_%d", i)
			cells[i] = &v
		}
		fr.SetColumn("source_ptr", cells)
	} else {
		for i, cell := range fr.Column("source_ptr") {
			if cell == nil {
				v := fmt.Sprintf("row_%d", i)
				fr.Set(i, "source_ptr", &v)
			}
		}
	}
	return fr, nil
}

// concat stacks frames vertically; the column set is the union, with
// missing columns reading as null.
func concat(frames []*frame.Frame) *frame.Frame {
	if len(frames) == 1 {
		return frames[0]
	}
	total := 0
	var cols []string
	seen := make(map[string]bool)
	for _, f := range frames {
		total += f.Len()
		for _, c := range f.Columns() {
			if !seen[c] {
				seen[c] = true
				cols = append(cols, c)
			}
		}
	}
	out := frame.New(total)
	for _, c := range cols {
		cells := make([]*string, 0, total)
		for _, f := range frames {
			if src := f.Column(c); src != nil {
				cells = append(cells, src...)
			} else {
				cells = append(cells, make([]*string, f.Len())...)
			}
		}
		out.SetColumn(c, cells)
	}
	return out
}

// bundle zips the emitted CSVs, entries in import order at archive root.
func (o *Orchestrator) bundle(datasetID, outDir string, artifacts []string) (string, error) {
	zipPath := filepath.Join(outDir, "odoo_export_"+datasetID+".zip")
	zf, err := os.Create(zipPath)
	if err != nil {
		return "", err
	}
	zw := zip.NewWriter(zf)

	for _, artifact := range artifacts {
		src, err := os.Open(artifact)
		if err != nil {
			zw.Close()
			zf.Close()
			return "", err
		}
		// zip.Writer.Create uses deflate; timestamps are omitted so the
		// archive bytes depend only on entry names and contents.
		w, err := zw.Create(filepath.Base(artifact))
		if err == nil {
			_, err = io.Copy(w, src)
		}
		src.Close()
		if err != nil {
			zw.Close()
			zf.Close()
			return "", err
		}
	}
	if err := zw.Close(); err != nil {
		zf.Close()
		return "", err
	}
	return zipPath, zf.Close()
}

func (o *Orchestrator) classifyEmitErr(model string, err error) error {
	var ie *emit.IntegrityError
	if errors.As(err, &ie) {
		return &ExportError{Kind: KindOutputIntegrity, Model: model, Err: err}
	}
	var re *rule.Error
	if errors.As(err, &re) {
		return &ExportError{Kind: KindRuleError, Model: model, Err: err}
	}
	return &ExportError{Kind: KindIOError, Model: model, Err: err}
}
