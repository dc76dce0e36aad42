package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hirelink/hireauth"
	"github.com/hirelink/hireauth/internal/db/models"
	"github.com/hirelink/hireauth/rbac"
	"github.com/uptrace/bun"
)

// edgeRow is the projection every stratum query scans into.
type edgeRow struct {
	Subject string `bun:"subject"`
	Object  string `bun:"object"`
}

// BunPolicyRepository serves the three policy strata from the join tables
// and implements [rbac.PolicySource].
type BunPolicyRepository struct {
	db *bun.DB
}

var _ rbac.PolicySource = (*BunPolicyRepository)(nil)

// NewBunPolicyRepository creates a policy repository over db.
func NewBunPolicyRepository(db *bun.DB) *BunPolicyRepository {
	return &BunPolicyRepository{db: db}
}

// Ping checks that the database answers.
func (r *BunPolicyRepository) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping policy database: %w", err)
	}
	return nil
}

// UserGroups returns account to role group edges.
func (r *BunPolicyRepository) UserGroups(ctx context.Context) ([]rbac.Edge, error) {
	var rows []edgeRow
	err := r.db.NewSelect().
		TableExpr("account_role_groups AS arg").
		ColumnExpr("a.account AS subject").
		ColumnExpr("rg.name AS object").
		Join("JOIN accounts AS a ON a.id = arg.account_id").
		Join("JOIN role_groups AS rg ON rg.id = arg.role_group_id").
		OrderExpr("a.account, rg.name").
		Scan(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("load user groups: %w", err)
	}
	return toEdges(rows), nil
}

// GroupRoles returns role group to role edges.
func (r *BunPolicyRepository) GroupRoles(ctx context.Context) ([]rbac.Edge, error) {
	var rows []edgeRow
	err := r.db.NewSelect().
		TableExpr("role_group_roles AS rgr").
		ColumnExpr("rg.name AS subject").
		ColumnExpr("r.name AS object").
		Join("JOIN role_groups AS rg ON rg.id = rgr.role_group_id").
		Join("JOIN roles AS r ON r.id = rgr.role_id").
		OrderExpr("rg.name, r.name").
		Scan(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("load group roles: %w", err)
	}
	return toEdges(rows), nil
}

// RolePermissions returns role to permission edges.
func (r *BunPolicyRepository) RolePermissions(ctx context.Context) ([]rbac.Edge, error) {
	var rows []edgeRow
	err := r.db.NewSelect().
		TableExpr("role_permissions AS rp").
		ColumnExpr("r.name AS subject").
		ColumnExpr("p.name AS object").
		Join("JOIN roles AS r ON r.id = rp.role_id").
		Join("JOIN permissions AS p ON p.id = rp.permission_id").
		OrderExpr("r.name, p.name").
		Scan(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("load role permissions: %w", err)
	}
	return toEdges(rows), nil
}

func toEdges(rows []edgeRow) []rbac.Edge {
	edges := make([]rbac.Edge, 0, len(rows))
	for _, row := range rows {
		edges = append(edges, rbac.Edge{Subject: row.Subject, Object: row.Object})
	}
	return edges
}

// AddAccountToGroup makes account a member of group, creating the group if
// needed. The account must exist.
func (r *BunPolicyRepository) AddAccountToGroup(ctx context.Context, account, group string) error {
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		acc := new(models.Account)
		err := tx.NewSelect().Model(acc).Column("id").Where("account = ?", account).Scan(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("%w: %s", hireauth.ErrAccountNotFound, account)
			}
			return fmt.Errorf("get account: %w", err)
		}
		rg := &models.RoleGroup{Name: group}
		if err := ensureNamed(ctx, tx, rg, &rg.ID, group); err != nil {
			return err
		}
		return link(ctx, tx, &models.AccountRoleGroup{AccountID: acc.ID, RoleGroupID: rg.ID})
	})
}

// RemoveAccountFromGroup drops the membership. Missing rows are ignored.
func (r *BunPolicyRepository) RemoveAccountFromGroup(ctx context.Context, account, group string) error {
	_, err := r.db.NewDelete().
		Model((*models.AccountRoleGroup)(nil)).
		Where("account_id IN (?)", r.db.NewSelect().Model((*models.Account)(nil)).Column("id").Where("account = ?", account)).
		Where("role_group_id IN (?)", r.db.NewSelect().Model((*models.RoleGroup)(nil)).Column("id").Where("name = ?", group)).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("remove account from group: %w", err)
	}
	return nil
}

// GrantRole adds role to group, creating either if needed.
func (r *BunPolicyRepository) GrantRole(ctx context.Context, group, role string) error {
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		rg := &models.RoleGroup{Name: group}
		if err := ensureNamed(ctx, tx, rg, &rg.ID, group); err != nil {
			return err
		}
		ro := &models.Role{Name: role}
		if err := ensureNamed(ctx, tx, ro, &ro.ID, role); err != nil {
			return err
		}
		return link(ctx, tx, &models.RoleGroupRole{RoleGroupID: rg.ID, RoleID: ro.ID})
	})
}

// GrantPermission adds a "resource:action" permission to role, creating
// either if needed.
func (r *BunPolicyRepository) GrantPermission(ctx context.Context, role, permission string) error {
	if permission == "" {
		return errors.New("permission is empty")
	}
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		ro := &models.Role{Name: role}
		if err := ensureNamed(ctx, tx, ro, &ro.ID, role); err != nil {
			return err
		}
		p := &models.Permission{Name: permission}
		if err := ensureNamed(ctx, tx, p, &p.ID, permission); err != nil {
			return err
		}
		return link(ctx, tx, &models.RolePermission{RoleID: ro.ID, PermissionID: p.ID})
	})
}

// ensureNamed inserts model unless a row with the same name exists, then
// loads its id into id.
func ensureNamed(ctx context.Context, tx bun.Tx, model any, id *int64, name string) error {
	_, err := tx.NewInsert().
		Model(model).
		On("CONFLICT (name) DO NOTHING").
		Returning("NULL").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("insert %T %q: %w", model, name, err)
	}
	err = tx.NewSelect().
		Model(model).
		Column("id").
		Where("name = ?", name).
		Scan(ctx, id)
	if err != nil {
		return fmt.Errorf("lookup %T %q: %w", model, name, err)
	}
	return nil
}

func link(ctx context.Context, tx bun.Tx, model any) error {
	_, err := tx.NewInsert().
		Model(model).
		On("CONFLICT DO NOTHING").
		Returning("NULL").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("insert %T: %w", model, err)
	}
	return nil
}
