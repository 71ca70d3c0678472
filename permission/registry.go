package permission

import (
	"errors"
	"sync"
)

const maxBits = 64

// Registry maps (module, action) pairs to bit positions within a [Mask64].
type Registry struct {
	mu        sync.RWMutex
	nameToBit map[string]int
	bitToName map[int]string
	frozen    bool
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		nameToBit: make(map[string]int),
		bitToName: make(map[int]string),
	}
}

// NewDefaultRegistry registers every known module with every action and
// freezes the result.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	for _, m := range Modules() {
		for _, a := range Actions() {
			// Modules()*Actions() is far below 64 and has no duplicates.
			_, _ = r.Register(m, a)
		}
	}
	r.Freeze()
	return r
}

// Name returns the canonical permission name "module:action".
func Name(m Module, a Action) string {
	return string(m) + ":" + string(a)
}

// Register assigns the next available bit to (m, a). Must be called before
// [Registry.Freeze].
func (r *Registry) Register(m Module, a Action) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return -1, errors.New("registry frozen")
	}
	if m == "" || a == "" {
		return -1, errors.New("permission module and action cannot be empty")
	}

	name := Name(m, a)
	if _, exists := r.nameToBit[name]; exists {
		return -1, errors.New("permission already registered")
	}

	nextBit := len(r.nameToBit)
	if nextBit >= maxBits {
		return -1, errors.New("permission limit exceeded")
	}

	r.nameToBit[name] = nextBit
	r.bitToName[nextBit] = name

	return nextBit, nil
}

// Bit returns the bit index for (m, a), or false if not registered.
func (r *Registry) Bit(m Module, a Action) (int, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	bit, ok := r.nameToBit[Name(m, a)]
	return bit, ok
}

// NameOf returns the permission name for the given bit index, or false if unassigned.
func (r *Registry) NameOf(bit int) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	name, ok := r.bitToName[bit]
	return name, ok
}

// Freeze prevents further registrations.
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true
}

// Count returns the number of registered permissions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.nameToBit)
}
