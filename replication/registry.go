package replication

import (
	"sync"

	"github.com/greedyvox/netsync/shared/gamemath"
)

// Spatial is anything with a world pose.
type Spatial interface {
	Pose() gamemath.Pose
}

// Networked is a spatial object that may carry a network identity.
type Networked interface {
	Spatial
	NetworkID() (uint64, bool)
}

// Registry maps network object ids to live objects. It is passed to every
// monitor explicitly and cleared on scene unload.
type Registry struct {
	mu      sync.RWMutex
	objects map[uint64]Networked
}

func NewRegistry() *Registry {
	return &Registry{objects: make(map[uint64]Networked)}
}

func (r *Registry) Register(id uint64, obj Networked) {
	r.mu.Lock()
	r.objects[id] = obj
	r.mu.Unlock()
}

func (r *Registry) Unregister(id uint64) {
	r.mu.Lock()
	delete(r.objects, id)
	r.mu.Unlock()
}

func (r *Registry) Lookup(id uint64) (Networked, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	obj, ok := r.objects[id]
	return obj, ok
}

// Clear drops every entry.
func (r *Registry) Clear() {
	r.mu.Lock()
	r.objects = make(map[uint64]Networked)
	r.mu.Unlock()
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.objects)
}
