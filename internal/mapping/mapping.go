// Package mapping holds confirmed column-to-target-field associations.
// Mapping generation and the review UI live upstream; the export pipeline
// only ever consumes mappings in state confirmed.
package mapping

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/ignite/odoo-bridge/internal/transform"
)

// State is the mapping lifecycle state.
type State string

const (
	StateSuggested State = "suggested"
	StateConfirmed State = "confirmed"
	StateRejected  State = "rejected"
)

// Mapping associates one source column of one sheet with a target
// (model, field), optionally through a transform chain.
type Mapping struct {
	ID           uuid.UUID        `json:"id"`
	DatasetID    string           `json:"dataset_id"`
	Sheet        string           `json:"sheet"`
	SourceColumn string           `json:"source_column"`
	TargetModel  string           `json:"target_model"`
	TargetField  string           `json:"target_field"`
	Transforms   []transform.Step `json:"transforms,omitempty"`
	State        State            `json:"state"`
}

// Store serves mappings to the orchestrator.
type Store interface {
	// Confirmed returns the confirmed mappings for (dataset, model).
	Confirmed(ctx context.Context, datasetID, model string) ([]Mapping, error)
	// Put inserts or replaces a mapping.
	Put(ctx context.Context, m Mapping) error
}

// MemoryStore keeps mappings in process; used by inline runs and tests.
type MemoryStore struct {
	mu       sync.RWMutex
	mappings map[uuid.UUID]Mapping
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{mappings: make(map[uuid.UUID]Mapping)}
}

func (s *MemoryStore) Put(ctx context.Context, m Mapping) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	s.mu.Lock()
	s.mappings[m.ID] = m
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Confirmed(ctx context.Context, datasetID, model string) ([]Mapping, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Mapping
	for _, m := range s.mappings {
		if m.DatasetID == datasetID && m.TargetModel == model && m.State == StateConfirmed {
			out = append(out, m)
		}
	}
	sortMappings(out)
	return out, nil
}

// sortMappings orders by (sheet, source column) so frame construction is
// deterministic regardless of map iteration order.
func sortMappings(ms []Mapping) {
	sort.Slice(ms, func(i, j int) bool {
		if ms[i].Sheet != ms[j].Sheet {
			return ms[i].Sheet < ms[j].Sheet
		}
		return ms[i].SourceColumn < ms[j].SourceColumn
	})
}
