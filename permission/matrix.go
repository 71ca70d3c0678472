package permission

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Grant is one row of the permission table: the actions a role may perform
// on a module.
type Grant struct {
	Role      Role
	Module    Module
	CanView   bool
	CanEdit   bool
	CanDelete bool
}

// Allows reports whether g permits a.
func (g Grant) Allows(a Action) bool {
	switch a {
	case ActionView:
		return g.CanView
	case ActionEdit:
		return g.CanEdit
	case ActionDelete:
		return g.CanDelete
	default:
		return false
	}
}

// Matrix answers role/module/action questions from a frozen set of grants.
//
// A Matrix is built once and then only read; HasPermission takes no lock
// after Freeze.
type Matrix struct {
	registry *Registry

	mu     sync.RWMutex
	roles  map[Role]Mask64
	grants map[Role]map[Module]Grant
	frozen bool
}

// NewMatrix returns an empty matrix over registry. A nil registry selects
// [NewDefaultRegistry].
func NewMatrix(registry *Registry) *Matrix {
	if registry == nil {
		registry = NewDefaultRegistry()
	}
	return &Matrix{
		registry: registry,
		roles:    make(map[Role]Mask64),
		grants:   make(map[Role]map[Module]Grant),
	}
}

// Compile builds and freezes a matrix from grants.
func Compile(grants []Grant) (*Matrix, error) {
	m := NewMatrix(nil)
	for _, g := range grants {
		if err := m.Add(g); err != nil {
			return nil, err
		}
	}
	m.Freeze()
	return m, nil
}

// Add records g. A second grant for the same (role, module) pair is rejected,
// mirroring the compound unique key of the persisted table.
func (m *Matrix) Add(g Grant) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.frozen {
		return errors.New("permission matrix frozen")
	}
	if !g.Role.Valid() {
		return fmt.Errorf("unknown role %q", g.Role)
	}
	if _, ok := ParseModule(string(g.Module)); !ok {
		return fmt.Errorf("unknown module %q", g.Module)
	}

	byModule, ok := m.grants[g.Role]
	if !ok {
		byModule = make(map[Module]Grant)
		m.grants[g.Role] = byModule
	}
	if _, exists := byModule[g.Module]; exists {
		return fmt.Errorf("duplicate grant for %s/%s", g.Role, g.Module)
	}
	byModule[g.Module] = g

	mask := m.roles[g.Role]
	for _, a := range Actions() {
		if !g.Allows(a) {
			continue
		}
		bit, ok := m.registry.Bit(g.Module, a)
		if !ok {
			return fmt.Errorf("permission not registered: %s", Name(g.Module, a))
		}
		mask.Set(bit)
	}
	m.roles[g.Role] = mask

	return nil
}

/*
====================================
FREEZE
*/

// Freeze prevents further grants.
func (m *Matrix) Freeze() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.frozen = true
}

func (m *Matrix) readLock() func() {
	// Frozen matrices are immutable, so readers skip the lock entirely.
	m.mu.RLock()
	if m.frozen {
		m.mu.RUnlock()
		return func() {}
	}
	return m.mu.RUnlock
}

/*
====================================
LOOKUPS
*/

// HasPermission reports whether role may perform action on module. Unknown
// roles, modules and actions yield false.
func (m *Matrix) HasPermission(role Role, module Module, action Action) bool {
	if m == nil {
		return false
	}
	bit, ok := m.registry.Bit(module, action)
	if !ok {
		return false
	}

	unlock := m.readLock()
	defer unlock()

	mask, ok := m.roles[role]
	if !ok {
		return false
	}
	return mask.Has(bit)
}

// Mask returns the compiled permission set of role.
func (m *Matrix) Mask(role Role) (Mask64, bool) {
	unlock := m.readLock()
	defer unlock()

	mask, ok := m.roles[role]
	return mask, ok
}

// Permissions lists the "module:action" names granted to role in bit order.
func (m *Matrix) Permissions(role Role) []string {
	mask, ok := m.Mask(role)
	if !ok {
		return nil
	}
	out := make([]string, 0, m.registry.Count())
	for bit := 0; bit < maxBits; bit++ {
		if !mask.Has(bit) {
			continue
		}
		if name, ok := m.registry.NameOf(bit); ok {
			out = append(out, name)
		}
	}
	return out
}

// Grants returns every grant sorted by role then module.
func (m *Matrix) Grants() []Grant {
	unlock := m.readLock()
	defer unlock()

	out := make([]Grant, 0, len(m.grants)*len(Modules()))
	for _, byModule := range m.grants {
		for _, g := range byModule {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Role != out[j].Role {
			return out[i].Role < out[j].Role
		}
		return out[i].Module < out[j].Module
	})
	return out
}
