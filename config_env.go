package goTokens

import "github.com/spf13/viper"

// LoadConfigFromEnv reads .env (if present), then builds and validates a
// [Config] from the environment via Viper. Missing .env is ignored (e.g. in
// CI). Env vars override .env. Fields not present in the environment keep
// their defaults from the default configuration.
func LoadConfigFromEnv() (Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	cfg := defaultConfig()

	v.SetDefault("SESSION_TOKEN_TTL", cfg.Token.SessionTTL)
	v.SetDefault("REFRESH_TOKEN_TTL", cfg.Token.RefreshTTL)
	v.SetDefault("SESSION_SIGNING_SECRET", "")
	v.SetDefault("REFRESH_SIGNING_SECRET", "")
	v.SetDefault("TOKEN_ISSUER", "")
	v.SetDefault("TOKEN_LEEWAY", cfg.Token.Leeway)
	v.SetDefault("MAX_ACTIVE_REFRESH_TOKENS_PER_SUBJECT", cfg.Refresh.MaxActivePerSubject)
	v.SetDefault("REDIS_KEY_PREFIX", cfg.Store.RedisPrefix)
	v.SetDefault("RECONCILER_ENABLED", cfg.Reconciler.Enabled)
	v.SetDefault("RECONCILER_RESUBSCRIBE_MIN_DELAY", cfg.Reconciler.ResubscribeMinDelay)
	v.SetDefault("RECONCILER_RESUBSCRIBE_MAX_DELAY", cfg.Reconciler.ResubscribeMaxDelay)
	v.SetDefault("AUDIT_ENABLED", cfg.Audit.Enabled)
	v.SetDefault("AUDIT_BUFFER_SIZE", cfg.Audit.BufferSize)
	v.SetDefault("AUDIT_DROP_IF_FULL", cfg.Audit.DropIfFull)
	v.SetDefault("METRICS_ENABLED", cfg.Metrics.Enabled)
	v.SetDefault("METRICS_LATENCY_HISTOGRAMS", cfg.Metrics.EnableLatencyHistograms)

	cfg.Token.SessionTTL = v.GetDuration("SESSION_TOKEN_TTL")
	cfg.Token.RefreshTTL = v.GetDuration("REFRESH_TOKEN_TTL")
	cfg.Token.SessionSecret = []byte(v.GetString("SESSION_SIGNING_SECRET"))
	cfg.Token.RefreshSecret = []byte(v.GetString("REFRESH_SIGNING_SECRET"))
	cfg.Token.Issuer = v.GetString("TOKEN_ISSUER")
	cfg.Token.Leeway = v.GetDuration("TOKEN_LEEWAY")
	cfg.Refresh.MaxActivePerSubject = v.GetInt("MAX_ACTIVE_REFRESH_TOKENS_PER_SUBJECT")
	cfg.Store.RedisPrefix = v.GetString("REDIS_KEY_PREFIX")
	cfg.Reconciler.Enabled = v.GetBool("RECONCILER_ENABLED")
	cfg.Reconciler.ResubscribeMinDelay = v.GetDuration("RECONCILER_RESUBSCRIBE_MIN_DELAY")
	cfg.Reconciler.ResubscribeMaxDelay = v.GetDuration("RECONCILER_RESUBSCRIBE_MAX_DELAY")
	cfg.Audit.Enabled = v.GetBool("AUDIT_ENABLED")
	cfg.Audit.BufferSize = v.GetInt("AUDIT_BUFFER_SIZE")
	cfg.Audit.DropIfFull = v.GetBool("AUDIT_DROP_IF_FULL")
	cfg.Metrics.Enabled = v.GetBool("METRICS_ENABLED")
	cfg.Metrics.EnableLatencyHistograms = v.GetBool("METRICS_LATENCY_HISTOGRAMS")

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}
