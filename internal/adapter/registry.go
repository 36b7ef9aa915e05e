package adapter

import (
	"errors"
	"sort"

	"github.com/rotisserie/eris"

	"github.com/sells-group/bitegraph/internal/model"
)

// ErrUnknownSource is returned when no registered adapter matches.
var ErrUnknownSource = eris.New("adapter: unknown source")

// IsUnknownSource reports whether err is ErrUnknownSource.
func IsUnknownSource(err error) bool {
	return errors.Is(err, ErrUnknownSource)
}

// Registry holds adapters keyed by source id, remembering registration order.
type Registry struct {
	adapters map[string]Adapter
	order    []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]Adapter)}
}

// Register adds an adapter. Duplicate source ids are rejected.
func (r *Registry) Register(a Adapter) error {
	id := a.SourceID()
	if id == "" {
		return eris.New("adapter: empty source id")
	}
	if _, exists := r.adapters[id]; exists {
		return eris.Errorf("adapter: source %q already registered", id)
	}
	r.adapters[id] = a
	r.order = append(r.order, id)
	return nil
}

// Get returns the adapter for a source id.
func (r *Registry) Get(sourceID string) (Adapter, error) {
	a, ok := r.adapters[sourceID]
	if !ok {
		return nil, eris.Wrapf(ErrUnknownSource, "adapter: get %q (registered: %v)", sourceID, r.SourceIDs())
	}
	return a, nil
}

// Find returns the first adapter, in registration order, that can parse meta.
func (r *Registry) Find(meta model.Metadata) (Adapter, error) {
	for _, id := range r.order {
		if a := r.adapters[id]; a.CanParse(meta) {
			return a, nil
		}
	}
	return nil, eris.Wrapf(ErrUnknownSource, "adapter: find source %q format %q", meta.Source, meta.Format)
}

// All returns adapters in registration order.
func (r *Registry) All() []Adapter {
	out := make([]Adapter, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.adapters[id])
	}
	return out
}

// SourceIDs returns the registered ids sorted alphabetically.
func (r *Registry) SourceIDs() []string {
	ids := make([]string, len(r.order))
	copy(ids, r.order)
	sort.Strings(ids)
	return ids
}
