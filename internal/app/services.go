package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/bsm/redislock"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"

	"github.com/Alijeyrad/simorq_settlement/config"
	"github.com/Alijeyrad/simorq_settlement/internal/alert"
	"github.com/Alijeyrad/simorq_settlement/internal/invoice"
	"github.com/Alijeyrad/simorq_settlement/internal/notify"
	"github.com/Alijeyrad/simorq_settlement/internal/settlement"
	"github.com/Alijeyrad/simorq_settlement/internal/store"
	"github.com/Alijeyrad/simorq_settlement/pkg/email"
	pasetotoken "github.com/Alijeyrad/simorq_settlement/pkg/paseto"
	s3pkg "github.com/Alijeyrad/simorq_settlement/pkg/s3"
	"github.com/Alijeyrad/simorq_settlement/pkg/sms"
)

// ServiceModule provides all application service dependencies.
var ServiceModule = fx.Module("services",
	fx.Provide(
		ProvideRateSource,
		ProvideAlerts,
		ProvideRecorders,
		ProvideSettlementService,
		ProvidePasetoManager,
	),
)

// ProvideRateSource serves rates from the store, through the Redis snapshot
// cache when a TTL is configured.
func ProvideRateSource(st *store.Store, rdb *redis.Client, cfg *config.Config) store.RateSource {
	ttl := time.Duration(cfg.Settlement.RateCacheTTLSeconds) * time.Second
	if rdb == nil || ttl <= 0 {
		return st
	}
	return store.NewRateCache(st, rdb, ttl)
}

func ProvideAlerts(cfg *config.Config, nc *nats.Conn, mailer *email.Client, smsCli *sms.Client) alert.Sender {
	a := cfg.Settlement.Alerts
	var channels []alert.Channel
	if nc != nil {
		channels = append(channels, alert.NewNATSChannel(nc))
	}
	if mailer.Enabled() && len(a.EmailTo) > 0 {
		channels = append(channels, alert.NewEmailChannel(mailer, a.EmailTo))
	}
	if smsCli.IsEnabled() && len(a.SMSTo) > 0 {
		channels = append(channels, alert.NewSMSChannel(smsCli, a.SMSTo, a.SMSTemplateID))
	}
	return alert.NewDispatcher(slog.Default(), 10*time.Second, channels...)
}

type RecorderParams struct {
	fx.In

	Cfg    *config.Config
	Store  *store.Store
	NC     *nats.Conn    `optional:"true"`
	S3     *s3pkg.Client `optional:"true"`
	Mailer *email.Client
}

func ProvideRecorders(p RecorderParams) []settlement.Recorder {
	var pub notify.Publisher
	if p.NC != nil {
		pub = p.NC
	}
	recorders := []settlement.Recorder{
		settlement.CommissionRecorder{Store: p.Store},
		notify.New(p.Store, pub),
	}

	inv := p.Cfg.Settlement.Invoice
	switch {
	case !inv.Enabled:
	case p.S3 == nil:
		slog.Warn("invoice documents enabled but no S3 bucket configured, skipping invoices")
	default:
		recorders = append(recorders, invoice.New(inv, p.S3, p.Store, p.Store, p.Mailer))
	}
	return recorders
}

type SettlementParams struct {
	fx.In

	Lc        fx.Lifecycle
	Cfg       *config.Config
	Store     *store.Store
	Rates     store.RateSource
	Alerts    alert.Sender
	Recorders []settlement.Recorder
	Locker    *redislock.Client `optional:"true"`
}

func ProvideSettlementService(p SettlementParams) (settlement.Service, error) {
	deps := settlement.Deps{
		Ledger:    p.Store,
		Rates:     p.Rates,
		Alerts:    p.Alerts,
		Recorders: p.Recorders,
		Logger:    slog.Default(),
		Config:    p.Cfg.Settlement,
	}
	if p.Locker != nil && p.Cfg.Settlement.LockTTLSeconds > 0 {
		deps.Locker = settlement.NewRedisLocker(p.Locker)
	}

	svc, err := settlement.New(deps)
	if err != nil {
		return nil, err
	}
	p.Lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			slog.Debug("waiting for settlement side effects")
			return svc.Wait(ctx)
		},
	})
	return svc, nil
}

// ProvidePasetoManager gives the API a verify-only token manager.
func ProvidePasetoManager(cfg *config.Config) (*pasetotoken.Manager, error) {
	return pasetotoken.NewVerifier(cfg)
}
