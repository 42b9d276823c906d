package settlement

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"

	"github.com/Alijeyrad/simorq_settlement/internal/alert"
	"github.com/Alijeyrad/simorq_settlement/internal/store"
)

// writer applies a breakdown to the ledger as a two-step saga: payer debit,
// then payee credit, with a compensating reversal of the debit when the
// credit cannot be written.
type writer struct {
	ledger          Ledger
	alerts          alert.Sender
	metrics         *metrics
	log             *slog.Logger
	stepTimeout     time.Duration
	rollbackTries   uint
	rollbackBackoff time.Duration
}

type writeInput struct {
	settlementID uuid.UUID
	req          Request
	breakdown    Breakdown
	metadata     json.RawMessage
}

func (w *writer) write(ctx context.Context, in writeInput) (TransactionRefs, error) {
	log := w.log.With("session_id", in.req.SessionID, "settlement_id", in.settlementID)
	state := StatePending
	transition := func(to State) {
		log.DebugContext(ctx, "settlement: state", "from", state, "to", to)
		state = to
	}

	debit, err := w.debit(ctx, in)
	if err != nil {
		transition(StateFailed)
		return TransactionRefs{}, err
	}
	transition(StatePayerDebited)

	// The payer has been charged; from here the saga runs to Settled or
	// Failed regardless of the caller going away.
	ctx = context.WithoutCancel(ctx)

	credit, creditErr := w.credit(ctx, in)
	if creditErr == nil {
		transition(StateSettled)
		return TransactionRefs{PayerEntryID: debit.ID, PayeeEntryID: credit.ID}, nil
	}

	transition(StateRollingBack)
	log.WarnContext(ctx, "settlement: payee credit failed, reversing payer debit",
		"payer_entry_id", debit.ID, "err", creditErr)

	if err := w.rollback(ctx, debit.ID, creditErr); err != nil {
		transition(StateFailed)
		w.metrics.rollback(ctx, "exhausted")
		log.ErrorContext(ctx, "settlement: rollback exhausted, payer debited without payee credit",
			"payer_entry_id", debit.ID, "amount", debit.Amount, "err", err)

		details := map[string]any{
			"stage":        "rollback",
			"payerEntryId": debit.ID.String(),
			"payerId":      in.req.PayerID,
			"amount":       -debit.Amount,
		}
		w.alerts.Send(ctx, alert.Alert{
			Kind:      string(KindRollbackFailed),
			Severity:  alert.SeverityCritical,
			SessionID: in.req.SessionID,
			Summary:   "payer debit could not be reversed after a failed payee credit",
			Details:   details,
		})
		return TransactionRefs{}, newError(KindRollbackFailed, "payer debit could not be reversed", err, details)
	}

	transition(StateFailed)
	w.metrics.rollback(ctx, "success")

	var orphan *orphanCreditError
	if errors.As(creditErr, &orphan) {
		details := map[string]any{
			"stage":              "payee_credit",
			"rolledBack":         true,
			"payerEntryId":       debit.ID.String(),
			"payeeEntryId":       orphan.entry.ID.String(),
			"orphanSettlementId": orphan.entry.SettlementID.String(),
			"orphanOwnerId":      orphan.entry.OwnerID,
			"orphanAmount":       orphan.entry.Amount,
		}
		log.ErrorContext(ctx, "settlement: payee credit held by another settlement",
			"payee_entry_id", orphan.entry.ID, "orphan_settlement_id", orphan.entry.SettlementID)
		w.alerts.Send(ctx, alert.Alert{
			Kind:      string(KindLedgerConflict),
			Severity:  alert.SeverityCritical,
			SessionID: in.req.SessionID,
			Summary:   "a payee credit from another settlement blocks this session; payer debit reversed",
			Details:   details,
		})
		return TransactionRefs{}, newError(KindLedgerConflict, "payee credit held by another settlement", creditErr, details)
	}

	return TransactionRefs{}, newError(KindLedgerWriteFailed, "payee credit failed, payer debit reversed", creditErr,
		map[string]any{
			"stage":        "payee_credit",
			"rolledBack":   true,
			"payerEntryId": debit.ID.String(),
		})
}

func (w *writer) debit(ctx context.Context, in writeInput) (store.LedgerEntry, error) {
	entry := store.LedgerEntry{
		OwnerID:       in.req.PayerID,
		SessionID:     in.req.SessionID,
		SettlementID:  in.settlementID,
		Kind:          store.EntryKindDebit,
		Purpose:       store.PurposeSessionPayment,
		Amount:        -in.breakdown.PayerTotal,
		Status:        store.EntryStatusCompleted,
		SettlementKey: store.DebitKey(in.req.SessionID),
		Description:   fmt.Sprintf("Payment for %s session %s", categoryLabel(in.req.Category), in.req.SessionID),
		Metadata:      in.metadata,
	}

	stepCtx, cancel := withStepTimeout(ctx, w.stepTimeout)
	written, err := w.ledger.AppendGuardedDebit(stepCtx, entry)
	cancel()

	switch {
	case err == nil:
		return written, nil
	case errors.Is(err, store.ErrInsufficientBalance):
		return store.LedgerEntry{}, insufficientFunds(0, in.breakdown.PayerTotal, true)
	case errors.Is(err, store.ErrDuplicateEntry):
		existing, lookupErr := w.findLive(ctx, store.DebitKey(in.req.SessionID))
		if lookupErr != nil {
			return store.LedgerEntry{}, newError(KindLedgerWriteFailed, "concurrent settlement detected", err,
				map[string]any{"stage": "payer_debit"})
		}
		return store.LedgerEntry{}, alreadySettled(existing)
	}

	// A timeout does not prove the insert was not applied. If our own debit
	// is live the saga continues from PayerDebited.
	if existing, lookupErr := w.findLive(ctx, store.DebitKey(in.req.SessionID)); lookupErr == nil {
		if existing.SettlementID == in.settlementID {
			return existing, nil
		}
		return store.LedgerEntry{}, alreadySettled(existing)
	}

	return store.LedgerEntry{}, newError(KindLedgerWriteFailed, "payer debit failed before any write", err,
		map[string]any{"stage": "payer_debit"})
}

func (w *writer) credit(ctx context.Context, in writeInput) (store.LedgerEntry, error) {
	entry := store.LedgerEntry{
		OwnerID:       in.req.PayeeID,
		SessionID:     in.req.SessionID,
		SettlementID:  in.settlementID,
		Kind:          store.EntryKindCredit,
		Purpose:       store.PurposeSessionEarning,
		Amount:        in.breakdown.PayeeNet,
		Status:        store.EntryStatusCompleted,
		SettlementKey: store.CreditKey(in.req.SessionID),
		Description:   fmt.Sprintf("Earning for %s session %s", categoryLabel(in.req.Category), in.req.SessionID),
		Metadata:      in.metadata,
	}

	stepCtx, cancel := withStepTimeout(ctx, w.stepTimeout)
	written, err := w.ledger.AppendEntry(stepCtx, entry)
	cancel()
	if err == nil {
		return written, nil
	}

	// Reversing the debit while our credit is actually live would pay the
	// payee for nothing, so confirm before rolling back.
	existing, lookupErr := w.findLive(ctx, store.CreditKey(in.req.SessionID))
	if lookupErr != nil {
		return store.LedgerEntry{}, err
	}
	if existing.SettlementID == in.settlementID {
		return existing, nil
	}

	// The live debit is ours, so a live credit from another settlement was
	// left behind by an attempt whose debit was reversed. It pays exactly
	// what this settlement owes when owner and amount match.
	if existing.OwnerID == in.req.PayeeID && existing.Amount == in.breakdown.PayeeNet {
		w.log.WarnContext(ctx, "settlement: adopting orphaned payee credit",
			"session_id", in.req.SessionID, "settlement_id", in.settlementID,
			"payee_entry_id", existing.ID, "orphan_settlement_id", existing.SettlementID)
		w.alerts.Send(ctx, alert.Alert{
			Kind:      "OrphanCreditAdopted",
			Severity:  alert.SeverityWarning,
			SessionID: in.req.SessionID,
			Summary:   "payee credit from a reversed attempt was matched to the new payer debit",
			Details: map[string]any{
				"payeeEntryId":       existing.ID.String(),
				"orphanSettlementId": existing.SettlementID.String(),
				"settlementId":       in.settlementID.String(),
			},
		})
		return existing, nil
	}
	return store.LedgerEntry{}, &orphanCreditError{entry: existing, err: err}
}

// orphanCreditError reports a live payee credit held by another settlement
// that does not match this one. Retrying cannot clear it.
type orphanCreditError struct {
	entry store.LedgerEntry
	err   error
}

func (e *orphanCreditError) Error() string {
	return fmt.Sprintf("payee credit %s is held by settlement %s: %v", e.entry.ID, e.entry.SettlementID, e.err)
}

func (e *orphanCreditError) Unwrap() error { return e.err }

func (w *writer) rollback(ctx context.Context, debitID uuid.UUID, cause error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = w.rollbackBackoff
	b.MaxInterval = 10 * w.rollbackBackoff

	reason := "payee credit failed: " + cause.Error()
	attempt := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		stepCtx, cancel := withStepTimeout(ctx, w.stepTimeout)
		defer cancel()
		err := w.ledger.ReverseEntry(stepCtx, debitID, reason)
		if err != nil {
			w.log.WarnContext(ctx, "settlement: reversal attempt failed",
				"payer_entry_id", debitID, "attempt", attempt, "err", err)
		}
		return struct{}{}, err
	}, backoff.WithBackOff(b), backoff.WithMaxTries(w.rollbackTries))
	return err
}

func (w *writer) findLive(ctx context.Context, key string) (store.LedgerEntry, error) {
	stepCtx, cancel := withStepTimeout(context.WithoutCancel(ctx), w.stepTimeout)
	defer cancel()
	return w.ledger.FindLiveEntry(stepCtx, key)
}

func categoryLabel(c string) string {
	if c == "" {
		return "paid"
	}
	return c
}
