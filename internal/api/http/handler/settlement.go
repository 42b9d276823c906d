package handler

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v3"

	"github.com/Alijeyrad/simorq_settlement/internal/settlement"
	"github.com/Alijeyrad/simorq_settlement/internal/store"
)

// InvoiceLocator finds a session's stored invoice document.
type InvoiceLocator interface {
	InvoiceBySession(ctx context.Context, sessionID string) (store.InvoiceDocument, error)
}

// Presigner issues a temporary download link for an object key.
type Presigner interface {
	PresignGet(ctx context.Context, key string) (string, error)
}

type SettlementHandler struct {
	svc      settlement.Service
	invoices InvoiceLocator
	presign  Presigner
}

// NewSettlementHandler returns a handler. invoices and presign may be nil,
// which disables the invoice endpoint.
func NewSettlementHandler(svc settlement.Service, invoices InvoiceLocator, presign Presigner) *SettlementHandler {
	return &SettlementHandler{svc: svc, invoices: invoices, presign: presign}
}

// statusFor maps a failure kind to its HTTP status.
func statusFor(k settlement.Kind) int {
	switch k {
	case settlement.KindInvalidRequest:
		return fiber.StatusBadRequest
	case settlement.KindAlreadySettled:
		return fiber.StatusConflict
	case settlement.KindInsufficientFunds:
		return fiber.StatusPaymentRequired
	case settlement.KindInvalidSettlementBreakdown:
		return fiber.StatusUnprocessableEntity
	case settlement.KindRateResolutionFailed, settlement.KindLedgerWriteFailed:
		return fiber.StatusServiceUnavailable
	case settlement.KindRollbackFailed, settlement.KindLedgerConflict:
		return fiber.StatusInternalServerError
	default:
		return fiber.StatusInternalServerError
	}
}

func mapSettlementError(c fiber.Ctx, err error) error {
	var se *settlement.Error
	if !errors.As(err, &se) {
		return internalError(c)
	}
	return c.Status(statusFor(se.Kind)).JSON(fiber.Map{
		"error":     se.Kind.UserMessage(),
		"errorKind": se.Kind,
		"retryable": se.Retryable(),
		"details":   se.Details,
	})
}

// POST /settlements
func (h *SettlementHandler) Settle(c fiber.Ctx) error {
	var req settlement.Request
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	res, err := h.svc.Settle(c.Context(), req)
	if err != nil {
		return c.Status(statusFor(res.ErrorKind)).JSON(fiber.Map{"error": res.Message, "data": res})
	}
	return ok(c, res)
}

// POST /settlements/quote
func (h *SettlementHandler) Quote(c fiber.Ctx) error {
	var req settlement.Request
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	q, err := h.svc.Quote(c.Context(), req)
	if err != nil {
		return mapSettlementError(c, err)
	}
	return ok(c, q)
}

// GET /settlements/:sessionId
func (h *SettlementHandler) Get(c fiber.Ctx) error {
	s, err := h.svc.Lookup(c.Context(), c.Params("sessionId"))
	if errors.Is(err, settlement.ErrNotSettled) {
		return notFound(c, err.Error())
	}
	if err != nil {
		return internalError(c)
	}
	return ok(c, s)
}

// GET /settlements/:sessionId/invoice
func (h *SettlementHandler) Invoice(c fiber.Ctx) error {
	if h.invoices == nil || h.presign == nil {
		return notFound(c, "invoices are not enabled")
	}

	doc, err := h.invoices.InvoiceBySession(c.Context(), c.Params("sessionId"))
	if errors.Is(err, store.ErrNotFound) {
		return notFound(c, "invoice not found")
	}
	if err != nil {
		return internalError(c)
	}

	url, err := h.presign.PresignGet(c.Context(), doc.ObjectKey)
	if err != nil {
		return internalError(c)
	}
	return ok(c, fiber.Map{"url": url, "document": doc})
}
