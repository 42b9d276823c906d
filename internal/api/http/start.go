package http

import (
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v3"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/Alijeyrad/simorq_settlement/config"
	"github.com/Alijeyrad/simorq_settlement/internal/api/http/router"
	"github.com/Alijeyrad/simorq_settlement/internal/app"
)

// Start runs the API server and the session-ended worker until the process
// is signalled, then drains in-flight work within timeout.
func Start(cfg *config.Config, log *slog.Logger, timeout time.Duration) {
	fx.New(
		fx.Supply(cfg),
		app.InfraModule,
		app.ServiceModule,
		app.WorkerModule,
		router.Module,
		Module,

		// NewServer registers the listen hook; invoking it forces construction.
		fx.Invoke(func(*fiber.App) {}),

		fx.StopTimeout(timeout),
		fx.WithLogger(func() fxevent.Logger { return &fxevent.SlogLogger{Logger: log} }),
	).Run()
}
