package hireauth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/hirelink/hireauth/internal"
	"github.com/hirelink/hireauth/internal/dispatch"
	"github.com/hirelink/hireauth/internal/flows"
	"github.com/hirelink/hireauth/internal/rate"
	"github.com/hirelink/hireauth/password"
	"github.com/hirelink/hireauth/rbac"
	"github.com/hirelink/hireauth/session"
)

// Builder assembles an [Engine].
//
// Builder instances are configured during initialization and used for a
// single Build call.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	policySource rbac.PolicySource
	accounts     AccountProvider
	accessSink   AccessLogSink
	logger       logrus.FieldLogger
	clock        func() time.Time

	built bool
}

// New returns a builder holding [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the configuration. The config is copied; later
// changes to cfg do not affect the builder.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the client used for sessions, disabled markers and login
// throttling. Required.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithPolicySource sets where RBAC edges are loaded from. Required.
func (b *Builder) WithPolicySource(src rbac.PolicySource) *Builder {
	b.policySource = src
	return b
}

// WithAccountProvider enables [Engine.Login].
func (b *Builder) WithAccountProvider(p AccountProvider) *Builder {
	b.accounts = p
	return b
}

// WithAccessLogSink sets where access log entries go when the access log
// is enabled.
func (b *Builder) WithAccessLogSink(sink AccessLogSink) *Builder {
	b.accessSink = sink
	return b
}

// WithLogger sets the logger shared by the engine, the adapter and the
// enforcer. Defaults to the logrus standard logger.
func (b *Builder) WithLogger(log logrus.FieldLogger) *Builder {
	b.logger = log
	return b
}

// WithMetricsEnabled toggles in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the validate latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// WithClock overrides the time source. Intended for tests.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.clock = now
	return b
}

// Build validates the configuration, performs the initial policy load and
// returns a ready engine. A policy source that cannot be reached fails the
// build: there is no earlier policy to fall back to.
func (b *Builder) Build() (*Engine, error) {
	return b.BuildContext(context.Background())
}

// BuildContext is Build with a context bounding the initial policy load.
func (b *Builder) BuildContext(ctx context.Context) (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.policySource == nil {
		return nil, errors.New("policy source required")
	}

	log := b.logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	now := b.clock
	if now == nil {
		now = time.Now
	}

	// -------- RBAC --------
	enforcer, err := rbac.NewEnforcer(ctx, b.policySource, rbac.Options{
		CacheSize:   cfg.RBAC.CacheSize,
		LoadTimeout: cfg.RBAC.LoadTimeout,
		Logger:      log,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPolicyUnavailable, err)
	}

	// -------- SESSION STORE --------
	stats := session.NewErrorStats()
	codec := session.NewCodec(cfg.Serialization.AliasTable(), stats)
	store := session.NewStore(b.redis, cfg.Session.RedisPrefix, codec)

	ph, err := password.NewArgon2(cfg.Password.Argon2Config())
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		config:       cloneConfig(cfg),
		log:          log,
		now:          now,
		redis:        b.redis,
		sessionStore: store,
		errorStats:   stats,
		enforcer:     enforcer,
		passwordHash: ph,
		accounts:     b.accounts,
		metrics:      NewMetrics(cfg.Metrics),
	}

	engine.rateLimiter = rate.New(b.redis, rate.Config{
		KeyPrefix:             cfg.Session.RedisPrefix,
		EnableIPThrottle:      cfg.Security.EnableIPThrottle,
		MaxLoginAttempts:      cfg.Security.MaxLoginAttempts,
		LoginCooldownDuration: cfg.Security.LoginCooldownDuration,
	})
	engine.lockout = rate.NewLockout(b.redis, rate.LockoutConfig{
		KeyPrefix: cfg.Session.RedisPrefix,
		Enabled:   cfg.Security.LockoutEnabled,
		Threshold: cfg.Security.LockoutThreshold,
		Window:    cfg.Security.LockoutWindow,
	})

	// -------- BACKGROUND WORK --------
	if cfg.Session.AsyncRefresh {
		engine.refresher = dispatch.New(dispatch.Config{
			Enabled:     true,
			BufferSize:  cfg.Session.RefreshBufferSize,
			DropIfFull:  true,
			TaskTimeout: cfg.Session.RefreshTimeout,
		}, engine.refreshInBackground)
	}
	if cfg.AccessLog.Enabled {
		engine.accessSink = b.accessSink
		if engine.accessSink == nil {
			engine.accessSink = NoOpAccessLogSink{}
		}
		engine.accessLog = dispatch.New(dispatch.Config{
			Enabled:     true,
			BufferSize:  cfg.AccessLog.BufferSize,
			DropIfFull:  cfg.AccessLog.DropIfFull,
			TaskTimeout: cfg.AccessLog.WriteTimeout,
		}, engine.emitAccess)
	}

	engine.flow = flows.New(engine.flowDeps())

	b.built = true
	log.WithFields(logrus.Fields{
		"policy_generation": enforcer.Generation(),
		"alias_version":     codec.Aliases().Version,
		"session_ttl":       cfg.Session.TTL.String(),
	}).Info("hireauth engine ready")

	return engine, nil
}

func (e *Engine) flowDeps() flows.Deps {
	metricInc := func(id int) { e.metricInc(MetricID(id)) }

	return flows.Deps{
		Create: flows.CreateDeps{
			Now:           e.now,
			TTL:           e.config.Session.TTL,
			SingleSession: e.config.Session.SingleSession,
			NewSessionID: func() (string, error) {
				sid, err := internal.NewSessionID()
				if err != nil {
					return "", err
				}
				return sid.String(), nil
			},
			SessionStore:  e.sessionStore,
			MapStoreError: mapStoreError,
			MetricInc:     metricInc,
			Warn:          e.warn,
			Metrics: flows.CreateMetrics{
				SessionCreated:   int(MetricSessionCreated),
				SessionDisplaced: int(MetricSessionDisplaced),
			},
			Errors: flows.CreateErrors{
				EngineNotReady:   ErrEngineNotReady,
				InvalidRequest:   ErrInvalidSessionRequest,
				CreationFailed:   ErrSessionCreationFailed,
				StoreUnavailable: ErrStoreUnavailable,
			},
		},
		Validate: flows.ValidateDeps{
			Now:                e.now,
			SessionStore:       e.sessionStore,
			ResolveRoles:       e.enforcer.GetRolesForUser,
			ResolvePermissions: e.enforcer.GetPermissionsForUser,
			MetricInc:          metricInc,
			Warn:               e.warn,
			Metrics: flows.ValidateMetrics{
				SessionValidated: int(MetricSessionValidated),
				SessionExpired:   int(MetricSessionExpired),
				SessionDisabled:  int(MetricSessionDisabled),
				SessionCorrupt:   int(MetricSessionCorrupt),
				SessionDegraded:  int(MetricSessionDegraded),
			},
		},
		Refresh: flows.RefreshDeps{
			Now:          e.now,
			TTL:          e.config.Session.TTL,
			SessionStore: e.sessionStore,
			MetricInc:    metricInc,
			Metrics: flows.RefreshMetrics{
				SessionRefreshed:     int(MetricSessionRefreshed),
				SessionRefreshFailed: int(MetricSessionRefreshFailed),
			},
		},
		Login: flows.LoginDeps{
			PasswordUpgradeOnLogin: e.config.Password.UpgradeOnLogin,
			TTL:                    e.config.Session.TTL,
			Now:                    e.now,
			ClientIPFromContext:    clientIPFromContext,
			CheckLoginRate: func(ctx context.Context, account, ip string) error {
				return mapStoreError(e.rateLimiter.CheckLogin(ctx, account, ip))
			},
			IncrementLoginRate: func(ctx context.Context, account, ip string) error {
				return mapStoreError(e.rateLimiter.IncrementLogin(ctx, account, ip))
			},
			ResetLoginRate: func(ctx context.Context, account, ip string) error {
				return mapStoreError(e.rateLimiter.ResetLogin(ctx, account, ip))
			},
			RecordLockoutFailure: e.lockout.RecordFailure,
			ResetLockout:         e.lockout.Reset,
			LockAccount:          e.lockAccount,
			GetAccount:           e.loginAccount,
			IsDisabled: func(ctx context.Context, account string) (bool, error) {
				disabled, err := e.sessionStore.IsDisabled(ctx, account)
				return disabled, mapStoreError(err)
			},
			UpdatePasswordHash: func(ctx context.Context, account, hash string) error {
				return e.accounts.UpdatePasswordHash(ctx, account, hash)
			},
			VerifyPassword:       e.passwordHash.Verify,
			PasswordNeedsUpgrade: e.passwordHash.NeedsUpgrade,
			HashPassword:         e.passwordHash.Hash,
			CreateSession:        e.loginSession,
			MetricInc:            metricInc,
			Warn:                 e.warn,
			Metrics: flows.LoginMetrics{
				LoginSuccess:     int(MetricLoginSuccess),
				LoginFailure:     int(MetricLoginFailure),
				LoginRateLimited: int(MetricLoginRateLimited),
				AccountLocked:    int(MetricAccountLocked),
			},
			Errors: flows.LoginErrors{
				EngineNotReady:     ErrEngineNotReady,
				InvalidCredentials: ErrInvalidCredentials,
				LoginRateLimited:   ErrLoginRateLimited,
				AccountDisabled:    ErrAccountDisabled,
				AccountNotFound:    ErrAccountNotFound,
			},
		},
	}
}
