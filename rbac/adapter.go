package rbac

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/casbin/casbin/v2/model"
	"github.com/sirupsen/logrus"
)

var (
	// ErrSourceUnavailable is returned when the policy source cannot be reached.
	ErrSourceUnavailable = errors.New("policy source unavailable")
	// ErrUnsupported is returned by SavePolicy; policy is administered in the
	// relational store and reloaded, never written back.
	ErrUnsupported = errors.New("policy write-back not supported")
)

const (
	groupPrefix = "group:"
	rolePrefix  = "role:"

	// wildcardAction is used for permissions without an action part.
	wildcardAction = "*"
)

// LoadStats describes the outcome of the most recent load.
type LoadStats struct {
	Edges    map[Stratum]int
	Skipped  []Stratum
	Duration time.Duration
	LoadedAt time.Time
}

// Adapter turns a [PolicySource] into Casbin grouping and policy rules.
//
// Accounts keep their own name, groups become "group:<name>" and roles
// "role:<name>" so the three strata cannot collide inside one role graph.
type Adapter struct {
	source  PolicySource
	timeout time.Duration
	log     logrus.FieldLogger
	ctx     context.Context

	mu    sync.Mutex
	stats LoadStats
}

// NewAdapter creates an adapter. timeout bounds a whole load; zero means no
// deadline beyond the caller's.
func NewAdapter(source PolicySource, timeout time.Duration, log logrus.FieldLogger) *Adapter {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Adapter{
		source:  source,
		timeout: timeout,
		log:     log,
	}
}

// WithContext returns a copy of a whose loads run under ctx. The copy keeps
// its own load stats.
func (a *Adapter) WithContext(ctx context.Context) *Adapter {
	return &Adapter{
		source:  a.source,
		timeout: a.timeout,
		log:     a.log,
		ctx:     ctx,
	}
}

// LoadPolicy loads all strata into m. An unreachable source fails the load;
// a single failing stratum is logged and left out.
func (a *Adapter) LoadPolicy(m model.Model) error {
	ctx := a.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	return a.load(ctx, m)
}

func (a *Adapter) load(ctx context.Context, m model.Model) error {
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}
	started := time.Now()

	if err := a.source.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}

	stats := LoadStats{Edges: make(map[Stratum]int, 3)}
	fetchers := map[Stratum]func(context.Context) ([]Edge, error){
		StratumUserGroup:      a.source.UserGroups,
		StratumGroupRole:      a.source.GroupRoles,
		StratumRolePermission: a.source.RolePermissions,
	}

	for _, stratum := range Strata() {
		edges, err := fetchers[stratum](ctx)
		if err != nil {
			a.log.WithFields(logrus.Fields{
				"stratum": string(stratum),
				"error":   err.Error(),
			}).Warn("rbac: policy stratum skipped")
			stats.Skipped = append(stats.Skipped, stratum)
			continue
		}

		seen := make(map[Edge]struct{}, len(edges))
		for _, e := range edges {
			if e.Subject == "" || e.Object == "" {
				continue
			}
			if _, dup := seen[e]; dup {
				continue
			}
			seen[e] = struct{}{}

			sec, rule := edgeRule(stratum, e)
			if err := m.AddPolicy(sec, sec, rule); err != nil {
				return fmt.Errorf("add %s rule %v: %w", stratum, rule, err)
			}
			stats.Edges[stratum]++
		}
	}

	stats.LoadedAt = time.Now()
	stats.Duration = stats.LoadedAt.Sub(started)
	a.mu.Lock()
	a.stats = stats
	a.mu.Unlock()
	return nil
}

func edgeRule(stratum Stratum, e Edge) (string, []string) {
	switch stratum {
	case StratumUserGroup:
		return "g", []string{e.Subject, groupPrefix + e.Object}
	case StratumGroupRole:
		return "g", []string{groupPrefix + e.Subject, rolePrefix + e.Object}
	default:
		obj, act := SplitPermission(e.Object)
		return "p", []string{rolePrefix + e.Subject, obj, act}
	}
}

// SplitPermission splits "resource:action" at its last colon. A permission
// without a colon grants every action on the resource.
func SplitPermission(perm string) (object, action string) {
	i := strings.LastIndexByte(perm, ':')
	if i <= 0 || i == len(perm)-1 {
		return strings.TrimSuffix(perm, ":"), wildcardAction
	}
	return perm[:i], perm[i+1:]
}

// LastLoad returns the stats of the last successful load.
func (a *Adapter) LastLoad() LoadStats {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := a.stats
	out.Edges = make(map[Stratum]int, len(a.stats.Edges))
	for k, v := range a.stats.Edges {
		out.Edges[k] = v
	}
	out.Skipped = append([]Stratum(nil), a.stats.Skipped...)
	return out
}

func (a *Adapter) SavePolicy(model.Model) error {
	return ErrUnsupported
}

func (a *Adapter) AddPolicy(string, string, []string) error {
	return nil
}

func (a *Adapter) RemovePolicy(string, string, []string) error {
	return nil
}

func (a *Adapter) RemoveFilteredPolicy(string, string, int, ...string) error {
	return nil
}
