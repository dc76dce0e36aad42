package hireauth

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/hirelink/hireauth/password"
	"github.com/hirelink/hireauth/session"
)

// Config holds every tunable of the engine and the daemon around it.
//
// Config values are copied into the engine at Build time and treated as
// immutable afterwards. Only the serialization alias table can be replaced
// at runtime, through [Engine.SetAliases].
type Config struct {
	Session       SessionConfig       `mapstructure:"session"`
	Serialization SerializationConfig `mapstructure:"serialization"`
	RBAC          RBACConfig          `mapstructure:"rbac"`
	Interceptor   InterceptorConfig   `mapstructure:"interceptor"`
	CORS          CORSConfig          `mapstructure:"cors"`
	Security      SecurityConfig      `mapstructure:"security"`
	Password      PasswordConfig      `mapstructure:"password"`
	AccessLog     AccessLogConfig     `mapstructure:"access_log"`
	Metrics       MetricsConfig       `mapstructure:"metrics"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Server        ServerConfig        `mapstructure:"server"`
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig controls session lifetime and storage.
type SessionConfig struct {
	RedisPrefix string        `mapstructure:"redis_prefix"`
	TTL         time.Duration `mapstructure:"ttl"`
	// SingleSession keeps at most one active session per account; a new
	// login displaces the previous session.
	SingleSession bool          `mapstructure:"single_session"`
	StoreTimeout  time.Duration `mapstructure:"store_timeout"`
	// AsyncRefresh extends the TTL of every successfully authenticated
	// session in the background.
	AsyncRefresh      bool          `mapstructure:"async_refresh"`
	RefreshBufferSize int           `mapstructure:"refresh_buffer_size"`
	RefreshTimeout    time.Duration `mapstructure:"refresh_timeout"`
}

/*
====================================
SERIALIZATION CONFIG
====================================
*/

// SerializationConfig extends the alias table shipped with the build.
// Renames are lists rather than maps because config keys are
// case-insensitive and type names are not.
type SerializationConfig struct {
	AliasVersion int         `mapstructure:"alias_version"`
	TypeAliases  []AliasPair `mapstructure:"type_aliases"`
	FieldAliases []AliasPair `mapstructure:"field_aliases"`
}

// AliasPair maps a retired name onto its current spelling.
type AliasPair struct {
	From string `mapstructure:"from"`
	To   string `mapstructure:"to"`
}

// AliasTable returns the built-in alias table extended with the configured
// renames.
func (c SerializationConfig) AliasTable() session.AliasTable {
	extra := session.AliasTable{
		Version: c.AliasVersion,
		Types:   make(map[string]string, len(c.TypeAliases)),
		Fields:  make(map[string]string, len(c.FieldAliases)),
	}
	for _, p := range c.TypeAliases {
		extra.Types[p.From] = p.To
	}
	for _, p := range c.FieldAliases {
		extra.Fields[p.From] = p.To
	}
	return session.DefaultAliasTable().Merge(extra)
}

/*
====================================
RBAC CONFIG
====================================
*/

// RBACConfig tunes the policy enforcer.
type RBACConfig struct {
	CacheSize      int           `mapstructure:"cache_size"`
	LoadTimeout    time.Duration `mapstructure:"load_timeout"`
	ReloadInterval time.Duration `mapstructure:"reload_interval"`
}

/*
====================================
INTERCEPTOR CONFIG
====================================
*/

// InterceptorConfig controls the authentication middleware.
type InterceptorConfig struct {
	TokenHeader string `mapstructure:"token_header"`
	// ExcludePaths are doublestar patterns matched against the request path.
	ExcludePaths []string `mapstructure:"exclude_paths"`
}

/*
====================================
CORS CONFIG
====================================
*/

// CORSConfig configures cross-origin handling. An empty AllowedOrigins
// accepts every origin while still allowing credentials.
type CORSConfig struct {
	Enabled          bool     `mapstructure:"enabled"`
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

/*
====================================
SECURITY CONFIG
====================================
*/

// SecurityConfig controls login throttling and lockout.
type SecurityConfig struct {
	EnableIPThrottle      bool          `mapstructure:"enable_ip_throttle"`
	MaxLoginAttempts      int           `mapstructure:"max_login_attempts"`
	LoginCooldownDuration time.Duration `mapstructure:"login_cooldown_duration"`

	// LockoutEnabled disables an account after LockoutThreshold failed
	// passwords within LockoutWindow. LockoutDuration bounds the disabled
	// marker; zero keeps it until an administrator re-enables the account.
	LockoutEnabled   bool          `mapstructure:"lockout_enabled"`
	LockoutThreshold int           `mapstructure:"lockout_threshold"`
	LockoutWindow    time.Duration `mapstructure:"lockout_window"`
	LockoutDuration  time.Duration `mapstructure:"lockout_duration"`
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig holds argon2id parameters.
type PasswordConfig struct {
	Memory         uint32 `mapstructure:"memory"` // in KB
	Time           uint32 `mapstructure:"time"`
	Parallelism    uint8  `mapstructure:"parallelism"`
	SaltLength     uint32 `mapstructure:"salt_length"`
	KeyLength      uint32 `mapstructure:"key_length"`
	UpgradeOnLogin bool   `mapstructure:"upgrade_on_login"`

	// MaxBytes bounds plaintext length; zero uses the hasher default.
	MaxBytes int `mapstructure:"max_bytes"`
}

// Argon2Config converts the section into hasher parameters.
func (c PasswordConfig) Argon2Config() password.Config {
	return password.Config{
		Memory:      c.Memory,
		Time:        c.Time,
		Parallelism: c.Parallelism,
		SaltLength:  c.SaltLength,
		KeyLength:   c.KeyLength,

		MaxPasswordBytes: c.MaxBytes,
	}
}

/*
====================================
ACCESS LOG CONFIG
====================================
*/

// AccessLogConfig controls asynchronous access logging.
//
// DropIfFull must stay true while the access log is enabled: entries are
// queued from the request goroutine, which may not wait for the sink.
// Validate rejects the blocking combination.
type AccessLogConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	BufferSize   int           `mapstructure:"buffer_size"`
	DropIfFull   bool          `mapstructure:"drop_if_full"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// MetricsConfig toggles in-process metric collection.
type MetricsConfig struct {
	Enabled                 bool `mapstructure:"enabled"`
	EnableLatencyHistograms bool `mapstructure:"enable_latency_histograms"`
}

/*
====================================
INFRASTRUCTURE CONFIG
====================================
*/

// DatabaseConfig points at the relational store holding accounts, policy
// edges and access logs. Driver is "postgres" or "sqlite".
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// RedisConfig holds connection settings. A single address yields a plain
// client; several yield a cluster client.
type RedisConfig struct {
	Addrs       []string      `mapstructure:"addrs"`
	Username    string        `mapstructure:"username"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

// ServerConfig holds HTTP listener settings for the daemon.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultExcludePaths are reachable without a session.
var DefaultExcludePaths = []string{
	"/login",
	"/logout",
	"/health",
	"/actuator/**",
	"/swagger-ui/**",
	"/v3/api-docs/**",
	"/doc.html",
	"/webjars/**",
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		Session: SessionConfig{
			RedisPrefix:       "",
			TTL:               24 * time.Hour,
			SingleSession:     true,
			StoreTimeout:      2 * time.Second,
			AsyncRefresh:      true,
			RefreshBufferSize: 1024,
			RefreshTimeout:    2 * time.Second,
		},
		Serialization: SerializationConfig{
			AliasVersion: session.DefaultAliasTable().Version,
		},
		RBAC: RBACConfig{
			CacheSize:      4096,
			LoadTimeout:    10 * time.Second,
			ReloadInterval: 0,
		},
		Interceptor: InterceptorConfig{
			TokenHeader:  "Authorization",
			ExcludePaths: slices.Clone(DefaultExcludePaths),
		},
		CORS: CORSConfig{
			Enabled:          true,
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"*"},
			AllowCredentials: true,
			MaxAge:           3600,
		},
		Security: SecurityConfig{
			EnableIPThrottle:      false,
			MaxLoginAttempts:      5,
			LoginCooldownDuration: 15 * time.Minute,
			LockoutEnabled:        false,
			LockoutThreshold:      10,
			LockoutWindow:         time.Hour,
			LockoutDuration:       30 * time.Minute,
		},
		Password: PasswordConfig{
			Memory:         65536,
			Time:           3,
			Parallelism:    2,
			SaltLength:     16,
			KeyLength:      32,
			UpgradeOnLogin: true,
		},
		AccessLog: AccessLogConfig{
			Enabled:      false,
			BufferSize:   1024,
			DropIfFull:   true,
			WriteTimeout: 2 * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
		Database: DatabaseConfig{
			Driver:          "sqlite",
			DSN:             "file:hireauth.db?cache=shared",
			MaxOpenConns:    25,
			ConnMaxLifetime: 30 * time.Minute,
			AutoMigrate:     false,
		},
		Redis: RedisConfig{
			Addrs:       []string{"localhost:6379"},
			DialTimeout: 5 * time.Second,
		},
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Serialization.TypeAliases = slices.Clone(cfg.Serialization.TypeAliases)
	out.Serialization.FieldAliases = slices.Clone(cfg.Serialization.FieldAliases)
	out.Interceptor.ExcludePaths = slices.Clone(cfg.Interceptor.ExcludePaths)
	out.CORS.AllowedOrigins = slices.Clone(cfg.CORS.AllowedOrigins)
	out.CORS.AllowedMethods = slices.Clone(cfg.CORS.AllowedMethods)
	out.CORS.AllowedHeaders = slices.Clone(cfg.CORS.AllowedHeaders)
	out.Redis.Addrs = slices.Clone(cfg.Redis.Addrs)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first setting that cannot work.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}

	// Session
	if c.Session.TTL <= 0 {
		return errors.New("Session TTL must be > 0")
	}
	if c.Session.StoreTimeout < 0 {
		return errors.New("Session StoreTimeout must be >= 0")
	}
	if c.Session.AsyncRefresh {
		if c.Session.RefreshBufferSize <= 0 {
			return errors.New("Session RefreshBufferSize must be > 0 when async refresh is enabled")
		}
		if c.Session.RefreshTimeout <= 0 {
			return errors.New("Session RefreshTimeout must be > 0 when async refresh is enabled")
		}
	}
	if strings.ContainsAny(c.Session.RedisPrefix, " \t\r\n") {
		return errors.New("Session RedisPrefix must not contain whitespace")
	}

	// Serialization
	for _, p := range append(slices.Clone(c.Serialization.TypeAliases), c.Serialization.FieldAliases...) {
		if p.From == "" || p.To == "" {
			return errors.New("Serialization alias entries need both from and to")
		}
		if p.From == p.To {
			return fmt.Errorf("Serialization alias %q maps onto itself", p.From)
		}
	}

	// RBAC
	if c.RBAC.CacheSize < 0 {
		return errors.New("RBAC CacheSize must be >= 0")
	}
	if c.RBAC.LoadTimeout <= 0 {
		return errors.New("RBAC LoadTimeout must be > 0")
	}
	if c.RBAC.ReloadInterval < 0 {
		return errors.New("RBAC ReloadInterval must be >= 0")
	}

	// Interceptor
	if strings.TrimSpace(c.Interceptor.TokenHeader) == "" {
		return errors.New("Interceptor TokenHeader is required")
	}
	for _, p := range c.Interceptor.ExcludePaths {
		if !strings.HasPrefix(p, "/") {
			return fmt.Errorf("Interceptor exclude path %q must start with /", p)
		}
		if !doublestar.ValidatePattern(p) {
			return fmt.Errorf("Interceptor exclude path %q is not a valid pattern", p)
		}
	}

	// CORS
	if c.CORS.MaxAge < 0 {
		return errors.New("CORS MaxAge must be >= 0")
	}

	// Security
	if c.Security.MaxLoginAttempts <= 0 {
		return errors.New("MaxLoginAttempts must be > 0")
	}
	if c.Security.LoginCooldownDuration <= 0 {
		return errors.New("LoginCooldownDuration must be > 0")
	}
	if c.Security.LockoutEnabled {
		if c.Security.LockoutThreshold <= 0 {
			return errors.New("LockoutThreshold must be > 0 when lockout is enabled")
		}
		if c.Security.LockoutWindow <= 0 {
			return errors.New("LockoutWindow must be > 0 when lockout is enabled")
		}
		if c.Security.LockoutDuration < 0 {
			return errors.New("LockoutDuration must be >= 0")
		}
	}

	// Access log
	if c.AccessLog.Enabled && c.AccessLog.BufferSize <= 0 {
		return errors.New("AccessLog BufferSize must be > 0 when access log is enabled")
	}
	if c.AccessLog.Enabled && !c.AccessLog.DropIfFull {
		return errors.New("AccessLog DropIfFull must be true when access log is enabled; a full queue would block responses")
	}

	// Database
	switch c.Database.Driver {
	case "", "postgres", "sqlite":
	default:
		return fmt.Errorf("Database Driver %q is not supported", c.Database.Driver)
	}

	return nil
}
