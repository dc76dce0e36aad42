package hireauth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/hirelink/hireauth/internal/dispatch"
	"github.com/hirelink/hireauth/internal/flows"
	"github.com/hirelink/hireauth/internal/rate"
	"github.com/hirelink/hireauth/password"
	"github.com/hirelink/hireauth/rbac"
	"github.com/hirelink/hireauth/session"
)

// Names of the background queues reported in [MetricsSnapshot.Dropped].
const (
	QueueAccessLog      = "access_log"
	QueueSessionRefresh = "session_refresh"
)

// Engine is the session and authorization core. Build it with [Builder].
type Engine struct {
	config Config
	log    logrus.FieldLogger
	now    func() time.Time

	redis        redis.UniversalClient
	sessionStore *session.Store
	errorStats   *session.ErrorStats
	enforcer     *rbac.Enforcer
	rateLimiter  *rate.Limiter
	lockout      *rate.Lockout
	passwordHash *password.Argon2
	accounts     AccountProvider
	accessSink   AccessLogSink
	accessLog    *dispatch.Dispatcher[AccessLogEntry]
	refresher    *dispatch.Dispatcher[string]
	metrics      *Metrics
	flow         flows.Service
}

// Close drains the background refresh and access log queues. Redis and the
// policy source are owned by the caller and stay open.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.refresher.Close()
	e.accessLog.Close()
}

// Config returns a copy of the configuration the engine was built with.
func (e *Engine) Config() Config {
	if e == nil {
		return Config{}
	}
	return cloneConfig(e.config)
}

// Logger returns the engine's logger.
func (e *Engine) Logger() logrus.FieldLogger {
	if e == nil || e.log == nil {
		return logrus.StandardLogger()
	}
	return e.log
}

// Enforcer exposes the policy enforcer for callers that need raw
// subject/object/action checks.
func (e *Engine) Enforcer() *rbac.Enforcer {
	if e == nil {
		return nil
	}
	return e.enforcer
}

// Ping checks connectivity to Redis.
func (e *Engine) Ping(ctx context.Context) error {
	if e == nil || e.redis == nil {
		return ErrEngineNotReady
	}
	ctx, cancel := e.storeContext(ctx)
	defer cancel()
	if err := e.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// AccessLogDropped returns the number of access log entries discarded
// under backpressure.
func (e *Engine) AccessLogDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.accessLog.Dropped()
}

// MetricsSnapshot returns engine counters together with the serialization
// recovery counters and background queue drops.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	var snap MetricsSnapshot
	if e == nil || e.metrics == nil {
		snap = MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	} else {
		snap = e.metrics.Snapshot()
	}
	if e == nil {
		return snap
	}

	stats := e.ErrorStatistics()
	snap.Serialization = make(map[string]uint64, len(stats))
	for cat, n := range stats {
		snap.Serialization[cat.String()] = n
	}
	snap.Dropped = map[string]uint64{
		QueueAccessLog:      e.accessLog.Dropped(),
		QueueSessionRefresh: e.refresher.Dropped(),
	}
	return snap
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// storeContext bounds a store round-trip by Session.StoreTimeout.
func (e *Engine) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if e.config.Session.StoreTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, e.config.Session.StoreTimeout)
}

// mapStoreError folds backend failures of the internal stores onto the
// public taxonomy.
func mapStoreError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrStoreUnavailable):
		return err
	case errors.Is(err, session.ErrRedisUnavailable), errors.Is(err, rate.ErrRedisUnavailable):
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	case errors.Is(err, rate.ErrRateLimited):
		return ErrLoginRateLimited
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return err
}

func (e *Engine) warn(msg string, kv ...any) {
	e.log.WithFields(fieldsOf(kv)).Warn(msg)
}

func fieldsOf(kv []any) logrus.Fields {
	fields := make(logrus.Fields, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		fields[key] = kv[i+1]
	}
	return fields
}
