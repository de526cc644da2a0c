package datatype

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Registry resolves data type ids. It is never mutated after construction,
// so concurrent reads need no locking.
type Registry struct {
	types map[string]DataType
	ids   []string
}

// NewRegistry builds a registry from types whose ids are non-empty, unpadded and unique.
func NewRegistry(types ...DataType) (*Registry, error) {
	r := &Registry{types: make(map[string]DataType, len(types))}
	for _, t := range types {
		if t == nil {
			return nil, fmt.Errorf("nil data type")
		}
		id := t.ID()
		if strings.TrimSpace(id) == "" {
			return nil, fmt.Errorf("data type %q has an empty id", t.Name())
		}
		if strings.TrimSpace(id) != id {
			return nil, fmt.Errorf("data type id %q has surrounding whitespace", id)
		}
		if _, exists := r.types[id]; exists {
			return nil, fmt.Errorf("duplicate data type id %q", id)
		}
		r.types[id] = t
		r.ids = append(r.ids, id)
	}
	sort.Strings(r.ids)
	return r, nil
}

// MustNewRegistry is NewRegistry for static type sets; it panics on error.
func MustNewRegistry(types ...DataType) *Registry {
	r, err := NewRegistry(types...)
	if err != nil {
		panic(err)
	}
	return r
}

var builtin = sync.OnceValue(func() *Registry {
	return MustNewRegistry(
		Erase(SeverityCountsType()),
		Erase(PercentageType()),
		Erase(NumberType()),
		Erase(FractionType()),
		Erase(TestSummaryType()),
		Erase(BooleanType()),
	)
})

// Builtin returns the process-wide registry of built-in data types.
func Builtin() *Registry {
	return builtin()
}

// Resolve returns the type registered under id, ignoring surrounding whitespace.
func (r *Registry) Resolve(id string) (DataType, error) {
	t, ok := r.types[strings.TrimSpace(id)]
	if !ok {
		return nil, &NotFoundError{TypeID: id}
	}
	return t, nil
}

// Types lists the registered data types ordered by id.
func (r *Registry) Types() []DataType {
	out := make([]DataType, 0, len(r.ids))
	for _, id := range r.ids {
		out = append(out, r.types[id])
	}
	return out
}
