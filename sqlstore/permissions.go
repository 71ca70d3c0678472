package sqlstore

import (
	"context"

	"github.com/pymesuite/authcore/permission"
)

type permissionRow struct {
	Role      string `db:"role"`
	Module    string `db:"module"`
	CanView   bool   `db:"can_view"`
	CanEdit   bool   `db:"can_edit"`
	CanDelete bool   `db:"can_delete"`
}

const (
	seedPermissionSQL = `
		INSERT INTO permissions (role, module, can_view, can_edit, can_delete)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (role, module) DO NOTHING`

	upsertPermissionSQL = `
		INSERT INTO permissions (role, module, can_view, can_edit, can_delete)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (role, module) DO UPDATE SET
			can_view = excluded.can_view,
			can_edit = excluded.can_edit,
			can_delete = excluded.can_delete`
)

// SeedPermissions inserts grants whose (role, module) pair is not yet
// stored. Existing rows, including operator edits, are kept.
func (s *Store) SeedPermissions(ctx context.Context, grants []permission.Grant) error {
	return s.writeGrants(ctx, seedPermissionSQL, grants)
}

// UpsertPermissions writes grants, replacing stored flags.
func (s *Store) UpsertPermissions(ctx context.Context, grants []permission.Grant) error {
	return s.writeGrants(ctx, upsertPermissionSQL, grants)
}

func (s *Store) writeGrants(ctx context.Context, query string, grants []permission.Grant) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return dbErr(err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PreparexContext(ctx, s.q(query))
	if err != nil {
		return dbErr(err)
	}
	defer stmt.Close()

	for _, g := range grants {
		if _, err := stmt.ExecContext(ctx, string(g.Role), string(g.Module), g.CanView, g.CanEdit, g.CanDelete); err != nil {
			return dbErr(err)
		}
	}
	return dbErr(tx.Commit())
}

// LoadPermissions returns the whole table ordered by role and module.
func (s *Store) LoadPermissions(ctx context.Context) ([]permission.Grant, error) {
	var rows []permissionRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT role, module, can_view, can_edit, can_delete
		FROM permissions ORDER BY role, module`)
	if err != nil {
		return nil, dbErr(err)
	}

	out := make([]permission.Grant, 0, len(rows))
	for _, r := range rows {
		out = append(out, permission.Grant{
			Role:      permission.Role(r.Role),
			Module:    permission.Module(r.Module),
			CanView:   r.CanView,
			CanEdit:   r.CanEdit,
			CanDelete: r.CanDelete,
		})
	}
	return out, nil
}
