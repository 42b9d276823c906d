package config

import "github.com/spf13/viper"

// Settlement defaults. The withholding fallback lives here rather than in the
// engine so operators can see and override it.
const (
	DefaultWithholdingPercent       = "10"
	DefaultStepTimeoutMs            = 3000
	DefaultRollbackMaxAttempts      = 3
	DefaultRollbackInitialBackoffMs = 100
	DefaultSideEffectMaxAttempts    = 2
	DefaultSideEffectTimeoutMs      = 10000
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.timeout_seconds", 30)
	v.SetDefault("server.environment", "development")

	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")

	v.SetDefault("nats.url", "nats://127.0.0.1:4222")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("observability.service_name", "simorq_settlement")

	v.SetDefault("settlement.default_withholding_percent", DefaultWithholdingPercent)
	v.SetDefault("settlement.step_timeout_ms", DefaultStepTimeoutMs)
	v.SetDefault("settlement.rollback_max_attempts", DefaultRollbackMaxAttempts)
	v.SetDefault("settlement.rollback_initial_backoff_ms", DefaultRollbackInitialBackoffMs)
	v.SetDefault("settlement.side_effect_max_attempts", DefaultSideEffectMaxAttempts)
	v.SetDefault("settlement.side_effect_timeout_ms", DefaultSideEffectTimeoutMs)
	v.SetDefault("settlement.rate_cache_ttl_seconds", 0)
	v.SetDefault("settlement.lock_ttl_seconds", 0)
	v.SetDefault("settlement.invoice.key_prefix", "invoices")
}
