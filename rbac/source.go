package rbac

import (
	"context"
	"slices"
	"sync"
)

// Stratum names one of the three relations a policy is assembled from.
type Stratum string

const (
	StratumUserGroup      Stratum = "user-group"
	StratumGroupRole      Stratum = "group-role"
	StratumRolePermission Stratum = "role-permission"
)

// Strata lists the relations in load order.
func Strata() []Stratum {
	return []Stratum{StratumUserGroup, StratumGroupRole, StratumRolePermission}
}

// Edge is one allow edge of a stratum. For user-group edges Subject is the
// account and Object the role group; for group-role edges Subject is the
// group and Object the role; for role-permission edges Subject is the role
// and Object a "resource:action" permission.
type Edge struct {
	Subject string
	Object  string
}

// PolicySource is the read-only relational backend the adapter loads from.
//
// Ping reports whether the backend is reachable at all. The per-stratum
// fetches may fail independently.
type PolicySource interface {
	Ping(ctx context.Context) error
	UserGroups(ctx context.Context) ([]Edge, error)
	GroupRoles(ctx context.Context) ([]Edge, error)
	RolePermissions(ctx context.Context) ([]Edge, error)
}

// StaticSource is an in-memory PolicySource. Replace swaps all strata at
// once, which makes it handy for tests and single-binary demos.
type StaticSource struct {
	mu    sync.RWMutex
	edges map[Stratum][]Edge
	errs  map[Stratum]error
	down  error
}

// NewStaticSource returns a source holding the given edges.
func NewStaticSource(userGroups, groupRoles, rolePermissions []Edge) *StaticSource {
	s := &StaticSource{}
	s.Replace(userGroups, groupRoles, rolePermissions)
	return s
}

// Replace swaps every stratum.
func (s *StaticSource) Replace(userGroups, groupRoles, rolePermissions []Edge) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.edges = map[Stratum][]Edge{
		StratumUserGroup:      slices.Clone(userGroups),
		StratumGroupRole:      slices.Clone(groupRoles),
		StratumRolePermission: slices.Clone(rolePermissions),
	}
}

// FailStratum makes fetches of stratum return err until cleared with nil.
func (s *StaticSource) FailStratum(stratum Stratum, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.errs == nil {
		s.errs = make(map[Stratum]error)
	}
	if err == nil {
		delete(s.errs, stratum)
		return
	}
	s.errs[stratum] = err
}

// SetUnavailable makes Ping return err until cleared with nil.
func (s *StaticSource) SetUnavailable(err error) {
	s.mu.Lock()
	s.down = err
	s.mu.Unlock()
}

func (s *StaticSource) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.down
}

func (s *StaticSource) UserGroups(ctx context.Context) ([]Edge, error) {
	return s.fetch(ctx, StratumUserGroup)
}

func (s *StaticSource) GroupRoles(ctx context.Context) ([]Edge, error) {
	return s.fetch(ctx, StratumGroupRole)
}

func (s *StaticSource) RolePermissions(ctx context.Context) ([]Edge, error) {
	return s.fetch(ctx, StratumRolePermission)
}

func (s *StaticSource) fetch(ctx context.Context, stratum Stratum) ([]Edge, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.errs[stratum]; err != nil {
		return nil, err
	}
	return slices.Clone(s.edges[stratum]), nil
}
