// Package registry implements the Tag Registry: the process-wide,
// append-only set of live tags, keyed by unique name, bounded by a
// configured capacity.
//
// The internal index is a sync.RWMutex-guarded map plus a parallel
// append-only slice for insertion-ordered enumeration: register any time
// under admin exclusivity, returning a typed error on a duplicate name.
package registry

import (
	"sync"
	"time"

	"github.com/hmsnyder/tagfd/internal/cell"
	"github.com/hmsnyder/tagfd/internal/tagerr"
	"github.com/hmsnyder/tagfd/internal/tagtype"
)

// Tag is the client-visible name entry for a live tag: its identity, name,
// immutable dtype, and the Value Cell backing it.
type Tag struct {
	ID    int
	Name  string
	DType tagtype.DType
	Cell  *cell.Cell
}

// Registry owns all Value Cells for a process. The zero value is not
// usable; construct with New.
type Registry struct {
	mu       sync.RWMutex
	capacity int
	byName   map[string]*Tag
	ordered  []*Tag
	nextID   int
}

// New constructs an empty Registry bounded by capacity live tags.
func New(capacity int) *Registry {
	return &Registry{
		capacity: capacity,
		byName:   make(map[string]*Tag),
	}
}

// nowMillis is overridable in tests; production code always uses
// time.Now().
var nowMillis = func() uint64 {
	return uint64(time.Now().UnixMilli())
}

// Create validates and installs a new tag: name non-empty and within
// length bounds, charset-valid, dtype in the closed set, registry below
// capacity, name not already taken. The first violated condition is
// returned; no partial tag is ever installed on failure.
//
// Creation is expected to be serialized by the Administrative Endpoint's
// single-writer exclusivity; Create itself only takes the registry's write
// lock for the duration of validation + append + publish, so a concurrent
// Lookup never observes a name that exists without a usable Cell behind
// it.
func (r *Registry) Create(dtype tagtype.DType, name string) (*Tag, error) {
	if name == "" {
		return nil, tagerr.NameInvalid
	}
	if len(name) > tagtype.MaxNameLength {
		return nil, tagerr.NameInvalid
	}
	if !tagtype.ValidName(name) {
		return nil, tagerr.NameInvalid
	}
	if !dtype.Valid() {
		return nil, tagerr.DTypeInvalid
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.ordered) >= r.capacity {
		return nil, tagerr.CapacityExhausted
	}
	if _, exists := r.byName[name]; exists {
		return nil, tagerr.NameTaken
	}

	initial := tagtype.NewZero(dtype, nowMillis())
	tag := &Tag{
		ID:    r.nextID,
		Name:  name,
		DType: dtype,
		Cell:  cell.New(initial),
	}
	r.nextID++
	r.byName[name] = tag
	r.ordered = append(r.ordered, tag)
	return tag, nil
}

// Lookup resolves a tag by name. It takes only the read lock, so it can
// proceed concurrently with other lookups, and either observes a name
// before Create's append or after Create's publish — never in between,
// because Create holds the write lock for its entire append+publish
// sequence.
func (r *Registry) Lookup(name string) (*Tag, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tag, ok := r.byName[name]
	return tag, ok
}

// List returns every live tag in creation order. Callers that want
// alphabetical order sort the result themselves.
func (r *Registry) List() []*Tag {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Tag, len(r.ordered))
	copy(out, r.ordered)
	return out
}

// Len reports the current number of live tags.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.ordered)
}

// Capacity reports the configured maximum number of live tags.
func (r *Registry) Capacity() int {
	return r.capacity
}
