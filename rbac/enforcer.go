package rbac

import (
	"context"
	_ "embed"
	"fmt"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"
)

//go:embed model.conf
var modelConf string

const defaultCacheSize = 1024

// Options tunes an [Enforcer].
type Options struct {
	// CacheSize bounds the per-snapshot role and permission caches.
	CacheSize int
	// LoadTimeout bounds a single policy load.
	LoadTimeout time.Duration
	Logger      logrus.FieldLogger
}

type snapshot struct {
	enforcer   *casbin.SyncedEnforcer
	generation uint64
	stats      LoadStats
	roles      *lru.Cache[string, []string]
	perms      *lru.Cache[string, []string]
}

// Enforcer answers authorization queries against the last successfully
// loaded policy.
//
// Every load builds a fresh Casbin enforcer and swaps it in with a single
// pointer store, so a query sees either the old or the new policy in full.
// Resolved roles and permissions are cached per snapshot; a swap drops them
// together with the policy they came from.
type Enforcer struct {
	source PolicySource
	opts   Options
	log    logrus.FieldLogger

	current  atomic.Pointer[snapshot]
	reloadMu sync.Mutex
	reloads  atomic.Uint64
	failures atomic.Uint64
}

// NewEnforcer loads the initial policy from source. A failure here is fatal:
// there is no last-known-good policy to fall back to yet.
func NewEnforcer(ctx context.Context, source PolicySource, opts Options) (*Enforcer, error) {
	if source == nil {
		return nil, fmt.Errorf("rbac: nil policy source")
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = defaultCacheSize
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}

	e := &Enforcer{
		source: source,
		opts:   opts,
		log:    opts.Logger,
	}
	snap, err := e.build(ctx, 1)
	if err != nil {
		return nil, fmt.Errorf("rbac: initial policy load: %w", err)
	}
	e.current.Store(snap)
	return e, nil
}

func (e *Enforcer) build(ctx context.Context, generation uint64) (*snapshot, error) {
	m, err := model.NewModelFromString(modelConf)
	if err != nil {
		return nil, fmt.Errorf("parse model: %w", err)
	}
	adapter := NewAdapter(e.source, e.opts.LoadTimeout, e.log).WithContext(ctx)

	ce, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, err
	}

	roles, err := lru.New[string, []string](e.opts.CacheSize)
	if err != nil {
		return nil, err
	}
	perms, err := lru.New[string, []string](e.opts.CacheSize)
	if err != nil {
		return nil, err
	}

	return &snapshot{
		enforcer:   ce,
		generation: generation,
		stats:      adapter.LastLoad(),
		roles:      roles,
		perms:      perms,
	}, nil
}

// ReloadPolicy rebuilds the policy from the source. On failure the previous
// policy stays in force and the error is returned.
func (e *Enforcer) ReloadPolicy(ctx context.Context) error {
	e.reloadMu.Lock()
	defer e.reloadMu.Unlock()

	prev := e.current.Load()
	snap, err := e.build(ctx, prev.generation+1)
	if err != nil {
		e.failures.Add(1)
		e.log.WithFields(logrus.Fields{
			"generation": prev.generation,
			"error":      err.Error(),
		}).Error("rbac: policy reload failed, keeping previous policy")
		return fmt.Errorf("rbac: reload policy: %w", err)
	}

	e.current.Store(snap)
	e.reloads.Add(1)
	e.log.WithFields(logrus.Fields{
		"generation":       snap.generation,
		"user_groups":      snap.stats.Edges[StratumUserGroup],
		"group_roles":      snap.stats.Edges[StratumGroupRole],
		"role_permissions": snap.stats.Edges[StratumRolePermission],
		"skipped":          len(snap.stats.Skipped),
	}).Info("rbac: policy reloaded")
	return nil
}

// Enforce reports whether subject may perform action on object. Anything
// not granted by an edge is denied.
func (e *Enforcer) Enforce(subject, object, action string) bool {
	if subject == "" || object == "" || action == "" {
		return false
	}
	ok, err := e.current.Load().enforcer.Enforce(subject, object, action)
	if err != nil {
		e.log.WithFields(logrus.Fields{
			"subject": subject,
			"object":  object,
			"action":  action,
			"error":   err.Error(),
		}).Warn("rbac: enforce failed")
		return false
	}
	return ok
}

// EnforcePermission is Enforce with a "resource:action" permission.
func (e *Enforcer) EnforcePermission(subject, permission string) bool {
	obj, act := SplitPermission(permission)
	return e.Enforce(subject, obj, act)
}

// HasRole reports whether account holds role, directly or through a group.
func (e *Enforcer) HasRole(account, role string) bool {
	return slices.Contains(e.GetRolesForUser(account), role)
}

// GetRolesForUser returns the sorted role names account holds.
func (e *Enforcer) GetRolesForUser(account string) []string {
	snap := e.current.Load()
	if cached, ok := snap.roles.Get(account); ok {
		return slices.Clone(cached)
	}

	implicit, err := snap.enforcer.GetImplicitRolesForUser(account)
	if err != nil {
		e.log.WithFields(logrus.Fields{"account": account, "error": err.Error()}).Warn("rbac: role lookup failed")
		return []string{}
	}
	roles := make([]string, 0, len(implicit))
	for _, r := range implicit {
		if name, ok := strings.CutPrefix(r, rolePrefix); ok {
			roles = append(roles, name)
		}
	}
	slices.Sort(roles)
	roles = slices.Compact(roles)

	snap.roles.Add(account, roles)
	return slices.Clone(roles)
}

// GetPermissionsForUser returns the sorted "resource:action" permissions
// granted to account through its roles.
func (e *Enforcer) GetPermissionsForUser(account string) []string {
	snap := e.current.Load()
	if cached, ok := snap.perms.Get(account); ok {
		return slices.Clone(cached)
	}

	rules, err := snap.enforcer.GetImplicitPermissionsForUser(account)
	if err != nil {
		e.log.WithFields(logrus.Fields{"account": account, "error": err.Error()}).Warn("rbac: permission lookup failed")
		return []string{}
	}
	perms := make([]string, 0, len(rules))
	for _, rule := range rules {
		if len(rule) < 3 {
			continue
		}
		perms = append(perms, rule[1]+":"+rule[2])
	}
	slices.Sort(perms)
	perms = slices.Compact(perms)

	snap.perms.Add(account, perms)
	return slices.Clone(perms)
}

// Generation increases by one with every successful load.
func (e *Enforcer) Generation() uint64 {
	return e.current.Load().generation
}

// LastLoad returns the load stats behind the policy currently in force.
func (e *Enforcer) LastLoad() LoadStats {
	return e.current.Load().stats
}

// ReloadCounts returns successful and failed reloads since creation. The
// initial load is not counted.
func (e *Enforcer) ReloadCounts() (succeeded, failed uint64) {
	return e.reloads.Load(), e.failures.Load()
}
