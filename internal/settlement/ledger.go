package settlement

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/Alijeyrad/simorq_settlement/internal/store"
)

// Ledger is the ledger storage the engine writes through. Each call is a
// single-row operation; there are no multi-row transactions.
type Ledger interface {
	FindLiveEntry(ctx context.Context, settlementKey string) (store.LedgerEntry, error)
	GetEntry(ctx context.Context, id uuid.UUID) (store.LedgerEntry, error)
	Balance(ctx context.Context, ownerID string) (int64, error)
	AppendGuardedDebit(ctx context.Context, e store.LedgerEntry) (store.LedgerEntry, error)
	AppendEntry(ctx context.Context, e store.LedgerEntry) (store.LedgerEntry, error)
	ReverseEntry(ctx context.Context, id uuid.UUID, reason string) error
}

// guard is the fast-path duplicate check. The unique settlement key is what
// actually prevents a second debit.
type guard struct {
	ledger      Ledger
	stepTimeout time.Duration
}

func (g *guard) check(ctx context.Context, sessionID string) error {
	ctx, cancel := withStepTimeout(ctx, g.stepTimeout)
	defer cancel()

	existing, err := g.ledger.FindLiveEntry(ctx, store.DebitKey(sessionID))
	switch {
	case errors.Is(err, store.ErrNotFound):
		return nil
	case err != nil:
		return newError(KindLedgerWriteFailed, "idempotency check failed before any write", err,
			map[string]any{"stage": "idempotency_check"})
	default:
		return alreadySettled(existing)
	}
}

func alreadySettled(debit store.LedgerEntry) *Error {
	return newError(KindAlreadySettled, "session already settled", nil, map[string]any{
		"payerEntryId": debit.ID.String(),
		"settlementId": debit.SettlementID.String(),
	})
}

// verifier checks the payer can cover the post-tax total. It is advisory:
// the guarded debit is the authoritative check.
type verifier struct {
	ledger      Ledger
	stepTimeout time.Duration
}

func (v *verifier) verify(ctx context.Context, payerID string, required int64) error {
	ctx, cancel := withStepTimeout(ctx, v.stepTimeout)
	defer cancel()

	balance, err := v.ledger.Balance(ctx, payerID)
	if err != nil {
		return newError(KindLedgerWriteFailed, "balance lookup failed before any write", err,
			map[string]any{"stage": "balance_check"})
	}
	if balance < required {
		return insufficientFunds(balance, required, false)
	}
	return nil
}

func insufficientFunds(balance, required int64, late bool) *Error {
	details := map[string]any{"required": required, "late": late}
	if !late {
		details["balance"] = balance
		details["shortfall"] = required - balance
	}
	return newError(KindInsufficientFunds, "payer balance does not cover the payer total", nil, details)
}
