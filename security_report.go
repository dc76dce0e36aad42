package hireauth

import "time"

// SecurityReport is a read-only snapshot of the engine's security posture,
// returned by [Engine.SecurityReport].
type SecurityReport struct {
	SessionTTL          time.Duration
	SingleSession       bool
	LoginThrottleActive bool
	IPThrottleActive    bool
	LockoutActive       bool
	AsyncRefresh        bool
	AccessLogActive     bool
	ExcludedPaths       []string
	Argon2              PasswordConfigReport
	PolicyGeneration    uint64
	AliasVersion        int
}

// PasswordConfigReport contains the Argon2 parameters active in the engine.
type PasswordConfigReport struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}

	throttle := e.config.Security.MaxLoginAttempts > 0 &&
		e.config.Security.LoginCooldownDuration > 0

	report := SecurityReport{
		SessionTTL:          e.config.Session.TTL,
		SingleSession:       e.config.Session.SingleSession,
		LoginThrottleActive: throttle,
		IPThrottleActive:    throttle && e.config.Security.EnableIPThrottle,
		LockoutActive:       e.config.Security.LockoutEnabled,
		AsyncRefresh:        e.refresher != nil,
		AccessLogActive:     e.accessLog != nil,
		ExcludedPaths:       append([]string(nil), e.config.Interceptor.ExcludePaths...),
		Argon2: PasswordConfigReport{
			Memory:      e.config.Password.Memory,
			Time:        e.config.Password.Time,
			Parallelism: e.config.Password.Parallelism,
			SaltLength:  e.config.Password.SaltLength,
			KeyLength:   e.config.Password.KeyLength,
		},
	}
	if e.enforcer != nil {
		report.PolicyGeneration = e.enforcer.Generation()
	}
	if e.sessionStore != nil {
		report.AliasVersion = e.sessionStore.Codec().Aliases().Version
	}
	return report
}
