package router

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"go.uber.org/fx"

	"github.com/Alijeyrad/simorq_settlement/config"
	"github.com/Alijeyrad/simorq_settlement/internal/api/http/handler"
	"github.com/Alijeyrad/simorq_settlement/internal/api/http/middleware"
	"github.com/Alijeyrad/simorq_settlement/internal/settlement"
	"github.com/Alijeyrad/simorq_settlement/internal/store"
	"github.com/Alijeyrad/simorq_settlement/pkg/observability"
	pasetotoken "github.com/Alijeyrad/simorq_settlement/pkg/paseto"
	s3pkg "github.com/Alijeyrad/simorq_settlement/pkg/s3"
)

// Module provides the Router to the fx graph.
var Module = fx.Module("router", fx.Provide(NewRouter))

type Params struct {
	fx.In

	Cfg           *config.Config
	Store         *store.Store
	SettlementSvc settlement.Service
	PasetoMgr     *pasetotoken.Manager
	S3            *s3pkg.Client           `optional:"true"`
	OTel          *observability.Provider `optional:"true"`
}

type Router struct {
	p Params
}

func NewRouter(p Params) *Router {
	return &Router{p: p}
}

func (r *Router) Register(app *fiber.App) {
	r.registerSystemRoutes(app)

	authRequired := middleware.ServiceAuth(r.p.PasetoMgr)

	var presign handler.Presigner
	if r.p.S3 != nil {
		presign = r.p.S3
	}
	settlementH := handler.NewSettlementHandler(r.p.SettlementSvc, r.p.Store, presign)
	ledgerH := handler.NewLedgerHandler(r.p.Store)

	api := app.Group("/api/v1", authRequired)

	registerSettlementRoutes(api, settlementH)
	registerLedgerRoutes(api, ledgerH)
}

func (r *Router) registerSystemRoutes(app *fiber.App) {
	app.Get(healthcheck.LivenessEndpoint, healthcheck.New())
	app.Get(healthcheck.ReadinessEndpoint, healthcheck.New(healthcheck.Config{
		Probe: func(c fiber.Ctx) bool {
			ctx, cancel := context.WithTimeout(c.Context(), 2*time.Second)
			defer cancel()
			return r.p.Store.Ping(ctx) == nil
		},
	}))
	app.Get(healthcheck.StartupEndpoint, healthcheck.New())

	if r.p.OTel != nil && r.p.Cfg.Observability.Metrics.Enabled {
		path := r.p.Cfg.Observability.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		app.Get(path, adaptor.HTTPHandler(r.p.OTel.MetricsHandler()))
	}
}
