package handler

import (
	"context"
	"strconv"

	"github.com/gofiber/fiber/v3"

	"github.com/Alijeyrad/simorq_settlement/internal/store"
)

type LedgerReader interface {
	Balance(ctx context.Context, ownerID string) (int64, error)
	ListEntries(ctx context.Context, ownerID string, limit, offset int) ([]store.LedgerEntry, int, error)
}

type LedgerHandler struct {
	ledger LedgerReader
}

func NewLedgerHandler(l LedgerReader) *LedgerHandler {
	return &LedgerHandler{ledger: l}
}

// GET /ledger/:ownerId/balance
func (h *LedgerHandler) Balance(c fiber.Ctx) error {
	owner := c.Params("ownerId")
	bal, err := h.ledger.Balance(c.Context(), owner)
	if err != nil {
		return internalError(c)
	}
	return ok(c, fiber.Map{"ownerId": owner, "balance": bal})
}

// GET /ledger/:ownerId/entries?page=&perPage=
func (h *LedgerHandler) Entries(c fiber.Ctx) error {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	perPage, _ := strconv.Atoi(c.Query("perPage", "20"))
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	entries, total, err := h.ledger.ListEntries(c.Context(), c.Params("ownerId"), perPage, (page-1)*perPage)
	if err != nil {
		return internalError(c)
	}
	if entries == nil {
		entries = []store.LedgerEntry{}
	}
	return c.JSON(fiber.Map{
		"data": entries,
		"meta": fiber.Map{"page": page, "perPage": perPage, "total": total},
	})
}
