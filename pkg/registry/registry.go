// Package registry maps stream identities to their render surfaces.
package registry

import (
	"errors"
	"sort"
	"sync"

	"github.com/user/vidsurface/pkg/surface"
)

// ErrMiss reports a lookup for an id with no registered surface.
// A miss is expected while decoding races view attachment.
var ErrMiss = errors.New("registry: no surface registered")

// Registry is a concurrent-safe, non-owning map from id to surface.
//
// The registry never closes a surface and never holds its lock while a
// caller works with a surface it looked up.
type Registry struct {
	mu sync.Mutex
	m  map[string]*surface.Surface
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{m: make(map[string]*surface.Surface)}
}

// Register associates id with s, last writer wins. The surface previously
// registered under id, if any, is returned; it is now detached from the
// registry and its lifecycle belongs to the caller.
func (r *Registry) Register(id string, s *surface.Surface) (previous *surface.Surface) {
	r.mu.Lock()
	defer r.mu.Unlock()
	previous = r.m[id]
	r.m[id] = s
	return previous
}

// Unregister removes the association for id and returns the removed
// surface, or nil.
func (r *Registry) Unregister(id string) *surface.Surface {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.m[id]
	delete(r.m, id)
	return s
}

// UnregisterIf removes id only while it still maps to s. It reports
// whether the entry was removed.
func (r *Registry) UnregisterIf(id string, s *surface.Surface) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.m[id]; ok && cur == s {
		delete(r.m, id)
		return true
	}
	return false
}

// Lookup returns the surface registered under id. It never blocks on
// anything but the map lock.
func (r *Registry) Lookup(id string) (*surface.Surface, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.m[id]
	return s, ok
}

// Find is Lookup with an error result: ErrMiss when nothing is registered.
func (r *Registry) Find(id string) (*surface.Surface, error) {
	if s, ok := r.Lookup(id); ok {
		return s, nil
	}
	return nil, ErrMiss
}

// IDs returns the registered ids in sorted order.
func (r *Registry) IDs() []string {
	r.mu.Lock()
	ids := make([]string, 0, len(r.m))
	for id := range r.m {
		ids = append(ids, id)
	}
	r.mu.Unlock()
	sort.Strings(ids)
	return ids
}

// Len returns the number of registered surfaces.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.m)
}
