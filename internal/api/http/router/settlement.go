package router

import (
	"github.com/gofiber/fiber/v3"

	"github.com/Alijeyrad/simorq_settlement/internal/api/http/handler"
	"github.com/Alijeyrad/simorq_settlement/internal/api/http/middleware"
	pasetotoken "github.com/Alijeyrad/simorq_settlement/pkg/paseto"
)

func registerSettlementRoutes(api fiber.Router, sh *handler.SettlementHandler) {
	write := middleware.RequireScope(pasetotoken.ScopeSettle)
	read := middleware.RequireScope(pasetotoken.ScopeRead)

	settlements := api.Group("/settlements")
	settlements.Post("/", write, sh.Settle)
	settlements.Post("/quote", read, sh.Quote)
	settlements.Get("/:sessionId", read, sh.Get)
	settlements.Get("/:sessionId/invoice", read, sh.Invoice)
}
