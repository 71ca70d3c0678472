package permission

// DefaultGrants returns the seed permission table.
//
//	admin:   every module, view/edit/delete
//	manager: dashboard, finance, crm with view/edit
//	analyst: dashboard, finance with view
//	user:    dashboard with view
func DefaultGrants() []Grant {
	grants := AdminGrants()

	for _, m := range []Module{ModuleDashboard, ModuleFinance, ModuleCRM} {
		grants = append(grants, Grant{Role: RoleManager, Module: m, CanView: true, CanEdit: true})
	}
	for _, m := range []Module{ModuleDashboard, ModuleFinance} {
		grants = append(grants, Grant{Role: RoleAnalyst, Module: m, CanView: true})
	}
	grants = append(grants, Grant{Role: RoleUser, Module: ModuleDashboard, CanView: true})

	return grants
}

// AdminGrants returns the full-access rows of the admin role.
func AdminGrants() []Grant {
	modules := Modules()
	grants := make([]Grant, 0, len(modules))
	for _, m := range modules {
		grants = append(grants, Grant{Role: RoleAdmin, Module: m, CanView: true, CanEdit: true, CanDelete: true})
	}
	return grants
}

// DefaultMatrix compiles [DefaultGrants].
func DefaultMatrix() *Matrix {
	m, err := Compile(DefaultGrants())
	if err != nil {
		panic("permission: default grants do not compile: " + err.Error())
	}
	return m
}
