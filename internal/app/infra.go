package app

import (
	"context"
	"log/slog"

	"entgo.io/ent/dialect"
	"github.com/bsm/redislock"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"

	"github.com/Alijeyrad/simorq_settlement/config"
	"github.com/Alijeyrad/simorq_settlement/internal/store"
	"github.com/Alijeyrad/simorq_settlement/pkg/database"
	"github.com/Alijeyrad/simorq_settlement/pkg/email"
	"github.com/Alijeyrad/simorq_settlement/pkg/observability"
	redispkg "github.com/Alijeyrad/simorq_settlement/pkg/redis"
	s3pkg "github.com/Alijeyrad/simorq_settlement/pkg/s3"
	"github.com/Alijeyrad/simorq_settlement/pkg/sms"
)

// InfraModule provides all infrastructure dependencies.
var InfraModule = fx.Module("infra",
	fx.Provide(ProvideDriver),
	fx.Provide(ProvideStore),
	fx.Provide(ProvideRedis),
	fx.Provide(ProvideLocker),
	fx.Provide(ProvideEmailClient),
	fx.Provide(ProvideSMSClient),
	fx.Provide(ProvideOTel),
	fx.Provide(ProvideS3Client),
	fx.Provide(ProvideNatsClient),
)

func ProvideDriver(lc fx.Lifecycle, cfg *config.Config) (dialect.Driver, error) {
	drv, err := database.NewDriver(cfg.Database)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if !cfg.Database.Migrations.AutoMigrate {
				return nil
			}
			slog.Info("running schema migration", "safe_mode", cfg.Database.Migrations.SafeMode)
			return store.Migrate(ctx, drv, store.MigrateOptions{SafeMode: cfg.Database.Migrations.SafeMode})
		},
		OnStop: func(ctx context.Context) error {
			slog.Debug("closing main database connection")
			return drv.Close()
		},
	})
	return drv, nil
}

func ProvideStore(drv dialect.Driver) *store.Store {
	return store.New(drv)
}

// ProvideRedis returns nil when no address is configured; the rate cache,
// settlement lock and shared rate limiter are then disabled.
func ProvideRedis(lc fx.Lifecycle, cfg *config.Config) (*redis.Client, error) {
	if cfg.Redis.Addr == "" {
		return nil, nil
	}
	rdb, err := redispkg.NewRedisFromCentral(cfg.Redis)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			slog.Debug("closing Redis connection")
			return rdb.Close()
		},
	})
	return rdb, nil
}

func ProvideLocker(rdb *redis.Client) *redislock.Client {
	if rdb == nil {
		return nil
	}
	return redispkg.NewLocker(rdb)
}

func ProvideEmailClient(cfg *config.Config) *email.Client {
	return email.NewFromCentral(cfg.Email)
}

func ProvideSMSClient(cfg *config.Config) (*sms.Client, error) {
	return sms.NewFromConfig(cfg.SMS)
}

// ProvideS3Client returns nil when no bucket is configured, which disables
// invoice documents.
func ProvideS3Client(cfg *config.Config) (*s3pkg.Client, error) {
	if cfg.S3.Bucket == "" {
		return nil, nil
	}
	return s3pkg.New(context.Background(), cfg.S3)
}

// ProvideNatsClient returns nil when NATS is disabled. The session-ended
// worker and NATS alerts are then off; the HTTP API still settles.
func ProvideNatsClient(lc fx.Lifecycle, cfg *config.Config) (*nats.Conn, error) {
	if !cfg.Nats.Enabled {
		return nil, nil
	}
	nc, err := nats.Connect(cfg.Nats.URL, nats.Name(cfg.Observability.ServiceName))
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			slog.Debug("draining NATS connection")
			return nc.Drain()
		},
	})
	return nc, nil
}

func ProvideOTel(lc fx.Lifecycle, cfg *config.Config) (*observability.Provider, error) {
	if !cfg.Observability.Enabled {
		return nil, nil
	}
	provider, err := observability.InitTelemetry(context.Background(), observability.FromCentralConfig(cfg))
	if err != nil {
		return nil, err
	}
	slog.Info("observability initialized",
		"tracing", cfg.Observability.Tracing.Enabled,
		"metrics", cfg.Observability.Metrics.Enabled,
	)
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			slog.Debug("shutting down observability providers")
			return provider.Shutdown(ctx)
		},
	})
	return provider, nil
}
