package router

import (
	"github.com/gofiber/fiber/v3"

	"github.com/Alijeyrad/simorq_settlement/internal/api/http/handler"
	"github.com/Alijeyrad/simorq_settlement/internal/api/http/middleware"
	pasetotoken "github.com/Alijeyrad/simorq_settlement/pkg/paseto"
)

func registerLedgerRoutes(api fiber.Router, lh *handler.LedgerHandler) {
	ledger := api.Group("/ledger", middleware.RequireScope(pasetotoken.ScopeRead))
	ledger.Get("/:ownerId/balance", lh.Balance)
	ledger.Get("/:ownerId/entries", lh.Entries)
}
