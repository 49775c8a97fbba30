package goTokens

import (
	"testing"
	"time"
)

func validTestConfig() Config {
	cfg := defaultConfig()
	cfg.Token.SessionSecret = []byte("test-session-secret-0123456789abcdef")
	cfg.Token.RefreshSecret = []byte("test-refresh-secret-0123456789abcdef")
	return cfg
}

func TestDefaultConfigValues(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Token.SessionTTL != 5*time.Minute {
		t.Fatalf("unexpected session ttl %v", cfg.Token.SessionTTL)
	}
	if cfg.Token.RefreshTTL != 7*24*time.Hour {
		t.Fatalf("unexpected refresh ttl %v", cfg.Token.RefreshTTL)
	}
	if cfg.Refresh.MaxActivePerSubject != 5 {
		t.Fatalf("unexpected quota %d", cfg.Refresh.MaxActivePerSubject)
	}
	if cfg.Store.RedisPrefix != "tk" {
		t.Fatalf("unexpected prefix %q", cfg.Store.RedisPrefix)
	}
	if !cfg.Reconciler.Enabled {
		t.Fatal("reconciler should be enabled by default")
	}
	if cfg.Audit.Enabled || cfg.Metrics.Enabled {
		t.Fatal("audit and metrics should be opt-in")
	}

	// Defaults alone must not validate: secrets are required.
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected default config without secrets to fail validation")
	}
}

func TestConfigValidate(t *testing.T) {
	valid := validTestConfig()
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero session ttl", func(c *Config) { c.Token.SessionTTL = 0 }},
		{"zero refresh ttl", func(c *Config) { c.Token.RefreshTTL = 0 }},
		{"refresh shorter than session", func(c *Config) {
			c.Token.SessionTTL = time.Hour
			c.Token.RefreshTTL = time.Minute
		}},
		{"short session secret", func(c *Config) { c.Token.SessionSecret = []byte("short") }},
		{"short refresh secret", func(c *Config) { c.Token.RefreshSecret = []byte("short") }},
		{"identical secrets", func(c *Config) { c.Token.RefreshSecret = c.Token.SessionSecret }},
		{"negative leeway", func(c *Config) { c.Token.Leeway = -time.Second }},
		{"excessive leeway", func(c *Config) { c.Token.Leeway = time.Hour }},
		{"zero quota", func(c *Config) { c.Refresh.MaxActivePerSubject = 0 }},
		{"empty prefix", func(c *Config) { c.Store.RedisPrefix = "" }},
		{"zero resubscribe delay", func(c *Config) { c.Reconciler.ResubscribeMinDelay = 0 }},
		{"max delay below min", func(c *Config) {
			c.Reconciler.ResubscribeMinDelay = time.Second
			c.Reconciler.ResubscribeMaxDelay = time.Millisecond
		}},
		{"audit enabled without buffer", func(c *Config) {
			c.Audit.Enabled = true
			c.Audit.BufferSize = 0
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validTestConfig()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation to fail")
			}
		})
	}
}

func TestCloneConfigIsolatesSecrets(t *testing.T) {
	cfg := validTestConfig()
	clone := cloneConfig(cfg)

	clone.Token.SessionSecret[0] = 'X'
	if cfg.Token.SessionSecret[0] == 'X' {
		t.Fatal("clone shares the session secret backing array")
	}
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("SESSION_SIGNING_SECRET", "env-session-secret-0123456789abcdef")
	t.Setenv("REFRESH_SIGNING_SECRET", "env-refresh-secret-0123456789abcdef")
	t.Setenv("SESSION_TOKEN_TTL", "10m")
	t.Setenv("REFRESH_TOKEN_TTL", "48h")
	t.Setenv("TOKEN_ISSUER", "env-issuer")
	t.Setenv("MAX_ACTIVE_REFRESH_TOKENS_PER_SUBJECT", "9")
	t.Setenv("REDIS_KEY_PREFIX", "envtk")
	t.Setenv("METRICS_ENABLED", "true")

	cfg, err := LoadConfigFromEnv()
	if err != nil {
		t.Fatalf("LoadConfigFromEnv failed: %v", err)
	}

	if cfg.Token.SessionTTL != 10*time.Minute {
		t.Fatalf("unexpected session ttl %v", cfg.Token.SessionTTL)
	}
	if cfg.Token.RefreshTTL != 48*time.Hour {
		t.Fatalf("unexpected refresh ttl %v", cfg.Token.RefreshTTL)
	}
	if cfg.Token.Issuer != "env-issuer" {
		t.Fatalf("unexpected issuer %q", cfg.Token.Issuer)
	}
	if cfg.Refresh.MaxActivePerSubject != 9 {
		t.Fatalf("unexpected quota %d", cfg.Refresh.MaxActivePerSubject)
	}
	if cfg.Store.RedisPrefix != "envtk" {
		t.Fatalf("unexpected prefix %q", cfg.Store.RedisPrefix)
	}
	if !cfg.Metrics.Enabled {
		t.Fatal("expected metrics enabled from env")
	}

	// Untouched fields keep their defaults.
	if !cfg.Reconciler.Enabled {
		t.Fatal("expected reconciler default to survive")
	}
}

func TestLoadConfigFromEnvRejectsInvalid(t *testing.T) {
	t.Setenv("SESSION_SIGNING_SECRET", "env-session-secret-0123456789abcdef")
	t.Setenv("REFRESH_SIGNING_SECRET", "short")

	if _, err := LoadConfigFromEnv(); err == nil {
		t.Fatal("expected invalid env config to fail validation")
	}
}
