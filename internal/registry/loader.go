package registry

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// ValidationError is returned when a registry document parses but violates
// a structural invariant. The export orchestrator treats it as fatal.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return "registry invalid: " + e.Msg }

func invalidf(format string, args ...interface{}) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// Loader parses registry files and caches the result by (path, mtime).
// A changed file on disk is picked up on the next Load without restarts.
type Loader struct {
	mu    sync.Mutex
	cache map[string]cachedRegistry
}

type cachedRegistry struct {
	mtime time.Time
	reg   *Registry
}

func NewLoader() *Loader {
	return &Loader{cache: make(map[string]cachedRegistry)}
}

// Load returns the validated registry at path, reusing the cached copy when
// the file's mtime is unchanged.
func (l *Loader) Load(path string) (*Registry, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat registry: %w", err)
	}

	l.mu.Lock()
	if c, ok := l.cache[path]; ok && c.mtime.Equal(info.ModTime()) {
		l.mu.Unlock()
		return c.reg, nil
	}
	l.mu.Unlock()

	return l.ForceReload(path)
}

// ForceReload bypasses the mtime cache and re-reads the file.
func (l *Loader) ForceReload(path string) (*Registry, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat registry: %w", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read registry: %w", err)
	}

	reg, err := Parse(data)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	l.cache[path] = cachedRegistry{mtime: info.ModTime(), reg: reg}
	l.mu.Unlock()
	return reg, nil
}

// Parse decodes a registry document and runs the full validation pass.
// It either returns a fully-typed Registry or a ValidationError; a Registry
// obtained here never needs re-checking downstream.
func Parse(data []byte) (*Registry, error) {
	var reg Registry
	if err := yaml.Unmarshal(data, &reg); err != nil {
		return nil, invalidf("yaml: %v", err)
	}
	if err := reg.validate(); err != nil {
		return nil, err
	}
	return &reg, nil
}

func (r *Registry) validate() error {
	if len(r.ImportOrder) == 0 {
		return invalidf("import_order is empty")
	}

	// Rule 1: import_order entries are unique and known.
	seen := make(map[string]bool, len(r.ImportOrder))
	for _, name := range r.ImportOrder {
		if seen[name] {
			return invalidf("duplicate model %q in import_order", name)
		}
		seen[name] = true
		if _, ok := r.Models[name]; !ok {
			return invalidf("import_order references unknown model %q", name)
		}
	}

	position := make(map[string]int, len(r.ImportOrder))
	for i, name := range r.ImportOrder {
		position[name] = i
	}

	for name, model := range r.Models {
		model.Name = name
		r.Models[name] = model

		if model.CSVFilename == "" {
			return invalidf("model %q has no csv_filename", name)
		}

		// Rule 2: headers are unique.
		headerSet := make(map[string]bool, len(model.Headers))
		for _, h := range model.Headers {
			if headerSet[h] {
				return invalidf("model %q: duplicate header %q", name, h)
			}
			headerSet[h] = true
		}
		if !headerSet["id"] {
			return invalidf("model %q: headers must include id", name)
		}
		// id is always produced by the ID template, never mapped from a
		// source column.
		if f, ok := model.Fields["id"]; ok && !f.Derived {
			return invalidf("model %q: field id must be derived", name)
		}

		for fname, field := range model.Fields {
			if field.Name == "" {
				field.Name = fname
				model.Fields[fname] = field
			}
			if field.Type != "" && !validTypes[field.Type] {
				return invalidf("model %q field %q: unknown type %q", name, fname, field.Type)
			}

			// Rule 3: every non-derived field appears in headers.
			if !headerSet[fname] && !field.Derived {
				return invalidf("model %q field %q: not in headers and not derived", name, fname)
			}

			// Rule 4: m2o targets exist and precede the referencing model.
			if field.Type == TypeM2O {
				tpos, ok := position[field.Target]
				if !ok {
					return invalidf("model %q field %q: m2o target %q not in import_order", name, fname, field.Target)
				}
				if tpos >= position[name] {
					return invalidf("model %q field %q: m2o target %q does not precede it in import_order", name, fname, field.Target)
				}
			}

			// Rule 5: enum seeds are defined.
			if field.Type == TypeEnum && field.MapFromSeed != "" {
				if _, ok := r.Seeds[field.MapFromSeed]; !ok {
					return invalidf("model %q field %q: map_from_seed %q is not a defined seed", name, fname, field.MapFromSeed)
				}
			}
		}
	}

	// Rule 6: every synonym resolves into the canonical set.
	for sname, seed := range r.Seeds {
		seed.canonicalSet = make(map[string]bool, len(seed.Canonical))
		for _, c := range seed.Canonical {
			seed.canonicalSet[c] = true
		}
		for alias, target := range seed.Synonyms {
			if !seed.canonicalSet[target] {
				return invalidf("seed %q: synonym %q -> %q is not canonical", sname, alias, target)
			}
		}
		r.Seeds[sname] = seed
	}

	// Rule 7: import_order must equal the canonical topological sort of the
	// FK graph. The recomputation is stable: among ready models, the one
	// listed earliest in import_order wins, so a valid declared order always
	// reproduces itself.
	canonical, err := r.topoSort(position)
	if err != nil {
		return err
	}
	for i := range canonical {
		if canonical[i] != r.ImportOrder[i] {
			return invalidf("import_order disagrees with FK topology:\n  declared:  %s\n  canonical: %s",
				strings.Join(r.ImportOrder, ", "), strings.Join(canonical, ", "))
		}
	}

	return nil
}

// topoSort runs Kahn's algorithm over the m2o dependency graph.
func (r *Registry) topoSort(position map[string]int) ([]string, error) {
	indegree := make(map[string]int, len(r.ImportOrder))
	children := make(map[string][]string, len(r.ImportOrder))
	for _, name := range r.ImportOrder {
		indegree[name] = 0
	}
	for _, name := range r.ImportOrder {
		for _, field := range r.Models[name].Fields {
			if field.Type != TypeM2O || field.Target == name {
				continue
			}
			children[field.Target] = append(children[field.Target], name)
			indegree[name]++
		}
	}

	var ready []string
	for _, name := range r.ImportOrder {
		if indegree[name] == 0 {
			ready = append(ready, name)
		}
	}

	var order []string
	for len(ready) > 0 {
		// Pick the ready model earliest in the declared order.
		best := 0
		for i := 1; i < len(ready); i++ {
			if position[ready[i]] < position[ready[best]] {
				best = i
			}
		}
		name := ready[best]
		ready = append(ready[:best], ready[best+1:]...)
		order = append(order, name)

		for _, child := range children[name] {
			indegree[child]--
			if indegree[child] == 0 {
				ready = append(ready, child)
			}
		}
	}

	if len(order) != len(r.ImportOrder) {
		return nil, invalidf("m2o graph contains a cycle")
	}
	return order, nil
}
