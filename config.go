package goTokens

import (
	"bytes"
	"errors"
	"time"
)

// Config defines a public type used by goTokens APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	Token      TokenConfig
	Refresh    RefreshConfig
	Store      StoreConfig
	Reconciler ReconcilerConfig
	Audit      AuditConfig
	Metrics    MetricsConfig
}

/*
====================================
TOKEN CONFIG
====================================
*/

// TokenConfig defines a public type used by goTokens APIs.
//
// TokenConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type TokenConfig struct {
	SessionTTL    time.Duration
	RefreshTTL    time.Duration
	SessionSecret []byte
	RefreshSecret []byte
	Issuer        string
	Leeway        time.Duration
}

/*
====================================
REFRESH CONFIG
====================================
*/

// RefreshConfig defines a public type used by goTokens APIs.
//
// RefreshConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type RefreshConfig struct {
	MaxActivePerSubject int
}

/*
====================================
STORE CONFIG
====================================
*/

// StoreConfig defines a public type used by goTokens APIs.
//
// StoreConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type StoreConfig struct {
	RedisPrefix string
}

/*
====================================
RECONCILER CONFIG
====================================
*/

// ReconcilerConfig defines a public type used by goTokens APIs.
//
// ReconcilerConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type ReconcilerConfig struct {
	Enabled             bool
	ResubscribeMinDelay time.Duration
	ResubscribeMaxDelay time.Duration
}

// AuditConfig defines a public type used by goTokens APIs.
//
// AuditConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig defines a public type used by goTokens APIs.
//
// MetricsConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the baseline configuration. Signing secrets are
// intentionally empty and must be supplied before Build.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Token: TokenConfig{
			SessionTTL: 5 * time.Minute,
			RefreshTTL: 7 * 24 * time.Hour,
			Leeway:     0,
		},
		Refresh: RefreshConfig{
			MaxActivePerSubject: 5,
		},
		Store: StoreConfig{
			RedisPrefix: "tk",
		},
		Reconciler: ReconcilerConfig{
			Enabled:             true,
			ResubscribeMinDelay: 500 * time.Millisecond,
			ResubscribeMaxDelay: 30 * time.Second,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Token.SessionSecret = cloneBytes(cfg.Token.SessionSecret)
	out.Token.RefreshSecret = cloneBytes(cfg.Token.RefreshSecret)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate describes the validate operation and its observable behavior.
//
// Validate may return an error when input validation, dependency calls, or security checks fail.
// Validate does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Config) Validate() error {
	// Token
	if c.Token.SessionTTL <= 0 {
		return errors.New("Token SessionTTL must be > 0")
	}
	if c.Token.RefreshTTL <= 0 {
		return errors.New("Token RefreshTTL must be > 0")
	}
	if c.Token.RefreshTTL < c.Token.SessionTTL {
		return errors.New("Token RefreshTTL must be >= SessionTTL")
	}
	if len(c.Token.SessionSecret) < 32 {
		return errors.New("Token SessionSecret must be >= 32 bytes")
	}
	if len(c.Token.RefreshSecret) < 32 {
		return errors.New("Token RefreshSecret must be >= 32 bytes")
	}
	if bytes.Equal(c.Token.SessionSecret, c.Token.RefreshSecret) {
		return errors.New("Token SessionSecret and RefreshSecret must differ")
	}
	if c.Token.Leeway < 0 || c.Token.Leeway > 2*time.Minute {
		return errors.New("Token Leeway must be between 0 and 2m")
	}

	// Refresh
	if c.Refresh.MaxActivePerSubject <= 0 {
		return errors.New("Refresh MaxActivePerSubject must be > 0")
	}

	// Store
	if c.Store.RedisPrefix == "" {
		return errors.New("Store RedisPrefix must not be empty")
	}

	// Reconciler
	if c.Reconciler.Enabled {
		if c.Reconciler.ResubscribeMinDelay <= 0 {
			return errors.New("Reconciler ResubscribeMinDelay must be > 0")
		}
		if c.Reconciler.ResubscribeMaxDelay < c.Reconciler.ResubscribeMinDelay {
			return errors.New("Reconciler ResubscribeMaxDelay must be >= ResubscribeMinDelay")
		}
	}

	// Audit
	if c.Audit.Enabled {
		if c.Audit.BufferSize <= 0 {
			return errors.New("Audit BufferSize must be > 0 when audit is enabled")
		}
	}

	return nil
}
