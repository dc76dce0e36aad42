// Package models holds the bun table models of the relational store.
package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Account is a login identity with its credential hash.
type Account struct {
	bun.BaseModel `bun:"table:accounts,alias:a"`

	ID           int64     `bun:"id,pk,autoincrement"`
	Account      string    `bun:"account,notnull,unique"`
	Nickname     string    `bun:"nickname,notnull,default:''"`
	PasswordHash string    `bun:"password_hash,notnull,default:''"`
	Enabled      bool      `bun:"enabled,notnull,default:true"`
	CreatedAt    time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt    time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

// RoleGroup bundles roles; accounts are members of groups, never of roles
// directly.
type RoleGroup struct {
	bun.BaseModel `bun:"table:role_groups,alias:rg"`

	ID   int64  `bun:"id,pk,autoincrement"`
	Name string `bun:"name,notnull,unique"`
}

// Role is a named bundle of permissions such as USER or HR.
type Role struct {
	bun.BaseModel `bun:"table:roles,alias:r"`

	ID   int64  `bun:"id,pk,autoincrement"`
	Name string `bun:"name,notnull,unique"`
}

// Permission is a "resource:action" string.
type Permission struct {
	bun.BaseModel `bun:"table:permissions,alias:p"`

	ID   int64  `bun:"id,pk,autoincrement"`
	Name string `bun:"name,notnull,unique"`
}

// AccountRoleGroup links an account to a role group.
type AccountRoleGroup struct {
	bun.BaseModel `bun:"table:account_role_groups,alias:arg"`

	AccountID   int64 `bun:"account_id,pk"`
	RoleGroupID int64 `bun:"role_group_id,pk"`
}

// RoleGroupRole links a role group to a role.
type RoleGroupRole struct {
	bun.BaseModel `bun:"table:role_group_roles,alias:rgr"`

	RoleGroupID int64 `bun:"role_group_id,pk"`
	RoleID      int64 `bun:"role_id,pk"`
}

// RolePermission links a role to a permission.
type RolePermission struct {
	bun.BaseModel `bun:"table:role_permissions,alias:rp"`

	RoleID       int64 `bun:"role_id,pk"`
	PermissionID int64 `bun:"permission_id,pk"`
}

// AccessLog is one authenticated request.
type AccessLog struct {
	bun.BaseModel `bun:"table:access_logs,alias:al"`

	ID         string    `bun:"id,pk"`
	Timestamp  time.Time `bun:"logged_at,notnull"`
	Account    string    `bun:"account,notnull,default:''"`
	UserID     int64     `bun:"user_id,notnull,default:0"`
	SessionID  string    `bun:"session_id,notnull,default:''"`
	Method     string    `bun:"method,notnull"`
	Path       string    `bun:"path,notnull"`
	Status     int       `bun:"status,notnull"`
	DurationMS int64     `bun:"duration_ms,notnull,default:0"`
	IP         string    `bun:"ip,notnull,default:''"`
	UserAgent  string    `bun:"user_agent,notnull,default:''"`
}
