package permission

import "strings"

// Role is the closed set of account roles. Values outside the set parse to
// RoleUnknown, which holds no permissions.
type Role string

const (
	RoleUnknown Role = ""
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleAnalyst Role = "analyst"
	RoleUser    Role = "user"
)

// Roles lists every valid role from most to least privileged.
func Roles() []Role {
	return []Role{RoleAdmin, RoleManager, RoleAnalyst, RoleUser}
}

// ParseRole maps a stored role name onto the enumeration. Matching is exact
// and case-sensitive; " admin " is RoleUnknown.
func ParseRole(name string) Role {
	switch Role(name) {
	case RoleAdmin:
		return RoleAdmin
	case RoleManager:
		return RoleManager
	case RoleAnalyst:
		return RoleAnalyst
	case RoleUser:
		return RoleUser
	default:
		return RoleUnknown
	}
}

// Valid reports whether r is one of the enumerated roles.
func (r Role) Valid() bool {
	return ParseRole(string(r)) != RoleUnknown
}

func (r Role) String() string {
	return string(r)
}

// Module is a functional area of the platform gated by the matrix.
type Module string

const (
	ModuleDashboard  Module = "dashboard"
	ModuleDataImport Module = "data_import"
	ModuleFinance    Module = "finance"
	ModuleCRM        Module = "crm"
	ModuleHR         Module = "hr"
	ModuleInventory  Module = "inventory"
	ModuleAdmin      Module = "admin"
)

// Modules lists every gated module in registration order.
func Modules() []Module {
	return []Module{
		ModuleDashboard,
		ModuleDataImport,
		ModuleFinance,
		ModuleCRM,
		ModuleHR,
		ModuleInventory,
		ModuleAdmin,
	}
}

// ParseModule returns the module named by name and whether it is known.
func ParseModule(name string) (Module, bool) {
	m := Module(name)
	for _, known := range Modules() {
		if m == known {
			return m, true
		}
	}
	return "", false
}

// Action is an operation on a module.
type Action string

const (
	ActionView   Action = "view"
	ActionEdit   Action = "edit"
	ActionDelete Action = "delete"
)

// Actions lists every action.
func Actions() []Action {
	return []Action{ActionView, ActionEdit, ActionDelete}
}

// ParseAction accepts both the bare action name and its column form
// ("can_view", "can_edit", "can_delete").
func ParseAction(name string) (Action, bool) {
	a := Action(strings.TrimPrefix(name, "can_"))
	switch a {
	case ActionView, ActionEdit, ActionDelete:
		return a, true
	default:
		return "", false
	}
}
