package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ignite/odoo-bridge/internal/exceptions"
	"github.com/ignite/odoo-bridge/internal/mapping"
	"github.com/ignite/odoo-bridge/internal/pkg/httputil"
	"github.com/ignite/odoo-bridge/internal/registry"
	"github.com/ignite/odoo-bridge/internal/task"
)

// Handlers holds the dependencies the HTTP endpoints need.
type Handlers struct {
	runner       *task.Runner
	store        exceptions.Store
	mappings     mapping.Store
	loader       *registry.Loader
	registryPath string
	startedAt    time.Time
}

func NewHandlers(runner *task.Runner, store exceptions.Store, mappings mapping.Store, loader *registry.Loader, registryPath string) *Handlers {
	return &Handlers{
		runner:       runner,
		store:        store,
		mappings:     mappings,
		loader:       loader,
		registryPath: registryPath,
		startedAt:    time.Now().UTC(),
	}
}

// HealthCheck reports liveness and uptime.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, map[string]interface{}{
		"status":         "ok",
		"uptime_seconds": int(time.Since(h.startedAt).Seconds()),
	})
}

// SubmitExport queues an export run for the dataset and returns 202 with
// the task id. With the inline runner the task is already finished when
// the response goes out.
func (h *Handlers) SubmitExport(w http.ResponseWriter, r *http.Request) {
	datasetID := chi.URLParam(r, "datasetID")
	if datasetID == "" {
		httputil.BadRequest(w, "dataset id is required")
		return
	}

	t, err := h.runner.Submit(r.Context(), datasetID)
	if err != nil {
		if errors.Is(err, task.ErrShutdown) {
			httputil.Error(w, http.StatusServiceUnavailable, "server is shutting down")
			return
		}
		httputil.InternalError(w, err)
		return
	}
	httputil.Accepted(w, map[string]interface{}{
		"task_id":    t.ID.String(),
		"dataset_id": t.DatasetID,
		"status":     string(t.Status),
	})
}

// TaskStatus returns the current snapshot of a task.
func (h *Handlers) TaskStatus(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "taskID"))
	if err != nil {
		httputil.BadRequest(w, "invalid task id")
		return
	}
	t, err := h.runner.Status(id)
	if err != nil {
		if errors.Is(err, task.ErrNotFound) {
			httputil.NotFound(w, "task not found")
			return
		}
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, t)
}

// ListExceptions returns exception records for a dataset, optionally
// filtered by ?model=.
func (h *Handlers) ListExceptions(w http.ResponseWriter, r *http.Request) {
	datasetID := chi.URLParam(r, "datasetID")
	model := r.URL.Query().Get("model")

	records, err := h.store.List(r.Context(), datasetID, model)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	if records == nil {
		records = []exceptions.Record{}
	}
	httputil.OK(w, map[string]interface{}{
		"dataset_id": datasetID,
		"count":      len(records),
		"exceptions": records,
	})
}

// ExceptionsSummary aggregates exception counts by model and error code.
func (h *Handlers) ExceptionsSummary(w http.ResponseWriter, r *http.Request) {
	datasetID := chi.URLParam(r, "datasetID")

	records, err := h.store.List(r.Context(), datasetID, "")
	if err != nil {
		httputil.InternalError(w, err)
		return
	}

	byCode := make(map[string]int)
	byModel := make(map[string]int)
	for _, rec := range records {
		byCode[rec.Code]++
		byModel[rec.Model]++
	}
	httputil.OK(w, map[string]interface{}{
		"dataset_id": datasetID,
		"total":      len(records),
		"by_code":    byCode,
		"by_model":   byModel,
	})
}

// ClearExceptions deletes exception records for a dataset.
func (h *Handlers) ClearExceptions(w http.ResponseWriter, r *http.Request) {
	datasetID := chi.URLParam(r, "datasetID")
	model := r.URL.Query().Get("model")

	n, err := h.store.Clear(r.Context(), datasetID, model)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]interface{}{"cleared": n})
}

// ListMappings returns the confirmed mappings for a dataset and model.
func (h *Handlers) ListMappings(w http.ResponseWriter, r *http.Request) {
	datasetID := chi.URLParam(r, "datasetID")
	model := r.URL.Query().Get("model")
	if model == "" {
		httputil.BadRequest(w, "model query parameter is required")
		return
	}

	maps, err := h.mappings.Confirmed(r.Context(), datasetID, model)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	if maps == nil {
		maps = []mapping.Mapping{}
	}
	httputil.OK(w, map[string]interface{}{
		"dataset_id": datasetID,
		"model":      model,
		"mappings":   maps,
	})
}

// ReloadRegistry forces a fresh parse of the registry file, bypassing the
// mtime cache. Validation failures come back as 409 so a bad edit is
// visible without restarting the server.
func (h *Handlers) ReloadRegistry(w http.ResponseWriter, r *http.Request) {
	reg, err := h.loader.ForceReload(h.registryPath)
	if err != nil {
		var verr *registry.ValidationError
		if errors.As(err, &verr) {
			httputil.Conflict(w, verr.Error())
			return
		}
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]interface{}{
		"version":      reg.Version,
		"models":       len(reg.Models),
		"import_order": reg.ImportOrder,
	})
}

// RegistryInfo describes the currently loaded registry.
func (h *Handlers) RegistryInfo(w http.ResponseWriter, r *http.Request) {
	reg, err := h.loader.Load(h.registryPath)
	if err != nil {
		httputil.Conflict(w, err.Error())
		return
	}

	models := make([]map[string]interface{}, 0, len(reg.ImportOrder))
	for _, name := range reg.ImportOrder {
		m, _ := reg.Model(name)
		models = append(models, map[string]interface{}{
			"name":         m.Name,
			"csv_filename": m.CSVFilename,
			"headers":      m.Headers,
			"fields":       len(m.Fields),
		})
	}
	httputil.OK(w, map[string]interface{}{
		"version":      reg.Version,
		"import_order": reg.ImportOrder,
		"models":       models,
	})
}
