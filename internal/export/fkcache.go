package export

// FKCache holds the external IDs emitted for each parent model during one
// export run. Only the orchestrator writes; validators read through the
// validate.FKLookup interface. It lives exactly as long as the run.
type FKCache struct {
	ids map[string]map[string]struct{}
}

func NewFKCache() *FKCache {
	return &FKCache{ids: make(map[string]map[string]struct{})}
}

// Merge records a model's emitted IDs.
func (c *FKCache) Merge(model string, emitted map[string]struct{}) {
	set, ok := c.ids[model]
	if !ok {
		set = make(map[string]struct{}, len(emitted))
		c.ids[model] = set
	}
	for id := range emitted {
		set[id] = struct{}{}
	}
}

// Has reports whether a model has emitted the given external ID.
func (c *FKCache) Has(model, id string) bool {
	_, ok := c.ids[model][id]
	return ok
}

// Len returns the number of IDs cached for a model.
func (c *FKCache) Len(model string) int {
	return len(c.ids[model])
}
