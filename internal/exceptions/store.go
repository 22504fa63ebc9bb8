// Package exceptions is the sole authority on per-row data-quality events.
// Records are inserted or bulk-cleared, never mutated; validators and the
// emitter report through it rather than through return codes.
package exceptions

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// The closed error-code taxonomy. Adding a code is a registry and
// documentation change, not a local edit.
const (
	CodeReqMissing    = "REQ_MISSING"
	CodeInvalidEmail  = "INVALID_EMAIL"
	CodeInvalidPhone  = "INVALID_PHONE"
	CodeDateParseFail = "DATE_PARSE_FAIL"
	CodeBoolParseFail = "BOOL_PARSE_FAIL"
	CodeEnumUnknown   = "ENUM_UNKNOWN"
	CodeFKUnresolved  = "FK_UNRESOLVED"
	CodeDupExtID      = "DUP_EXT_ID"
)

// Codes lists every valid error code.
var Codes = []string{
	CodeReqMissing, CodeInvalidEmail, CodeInvalidPhone, CodeDateParseFail,
	CodeBoolParseFail, CodeEnumUnknown, CodeFKUnresolved, CodeDupExtID,
}

// Record is one per-row exception. RowPtr is the source pointer attached at
// ingest, so a user can locate the offending spreadsheet row.
type Record struct {
	ID        uuid.UUID              `json:"id"`
	DatasetID string                 `json:"dataset_id"`
	Model     string                 `json:"model"`
	RowPtr    string                 `json:"row_ptr"`
	Code      string                 `json:"error_code"`
	Hint      string                 `json:"hint"`
	Offending map[string]interface{} `json:"offending"`
	CreatedAt time.Time              `json:"created_at"`
}

// Store persists exception records. Implementations must support
// concurrent Adds from parallel exports; no intra-export locking beyond
// that is required.
type Store interface {
	// Add inserts a record and returns its id.
	Add(ctx context.Context, datasetID, model, rowPtr, code, hint string, offending map[string]interface{}) (uuid.UUID, error)
	// List returns records for a dataset, optionally filtered by model
	// (empty model means all).
	List(ctx context.Context, datasetID, model string) ([]Record, error)
	// Clear deletes records for a dataset (optionally one model) and
	// returns how many were removed.
	Clear(ctx context.Context, datasetID, model string) (int, error)
	// Count returns the number of records for a dataset/model.
	Count(ctx context.Context, datasetID, model string) (int, error)
}

// MemoryStore is the in-process Store used by inline runs and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	records []Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Add(ctx context.Context, datasetID, model, rowPtr, code, hint string, offending map[string]interface{}) (uuid.UUID, error) {
	rec := Record{
		ID:        uuid.New(),
		DatasetID: datasetID,
		Model:     model,
		RowPtr:    rowPtr,
		Code:      code,
		Hint:      hint,
		Offending: offending,
		CreatedAt: time.Now().UTC(),
	}
	s.mu.Lock()
	s.records = append(s.records, rec)
	s.mu.Unlock()
	return rec.ID, nil
}

func (s *MemoryStore) List(ctx context.Context, datasetID, model string) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Record
	for _, r := range s.records {
		if r.DatasetID == datasetID && (model == "" || r.Model == model) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) Clear(ctx context.Context, datasetID, model string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.records[:0]
	removed := 0
	for _, r := range s.records {
		if r.DatasetID == datasetID && (model == "" || r.Model == model) {
			removed++
			continue
		}
		kept = append(kept, r)
	}
	s.records = kept
	return removed, nil
}

func (s *MemoryStore) Count(ctx context.Context, datasetID, model string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, r := range s.records {
		if r.DatasetID == datasetID && (model == "" || r.Model == model) {
			n++
		}
	}
	return n, nil
}
