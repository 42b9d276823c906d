package settlement

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/sourcegraph/conc"

	"github.com/Alijeyrad/simorq_settlement/internal/store"
)

// Settled describes a completed settlement to the side-effect recorders.
type Settled struct {
	SettlementID uuid.UUID
	Request      Request
	Breakdown    Breakdown
	Rates        Rates
	Refs         TransactionRefs
	SettledAt    time.Time
}

// Recorder is one best-effort consequence of a settlement. Record must be
// safe to call twice for the same settlement.
type Recorder interface {
	Name() string
	Record(ctx context.Context, s Settled) error
}

// effects runs recorders in the background after a settlement succeeds.
type effects struct {
	recorders []Recorder
	tries     uint
	timeout   time.Duration
	backoff   time.Duration
	metrics   *metrics
	log       *slog.Logger

	inflight conc.WaitGroup
}

// dispatch starts every recorder and returns immediately.
func (e *effects) dispatch(ctx context.Context, s Settled) {
	if len(e.recorders) == 0 {
		return
	}
	ctx = context.WithoutCancel(ctx)

	e.inflight.Go(func() {
		var wg conc.WaitGroup
		for _, r := range e.recorders {
			wg.Go(func() { e.run(ctx, r, s) })
		}
		if rec := wg.WaitAndRecover(); rec != nil {
			e.log.ErrorContext(ctx, "settlement: side effect panicked",
				"settlement_id", s.SettlementID, "panic", rec.Value, "stack", string(rec.Stack))
		}
	})
}

func (e *effects) run(ctx context.Context, r Recorder, s Settled) {
	log := e.log.With("recorder", r.Name(), "settlement_id", s.SettlementID, "session_id", s.Request.SessionID)

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = e.backoff

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		stepCtx, cancel := withStepTimeout(ctx, e.timeout)
		defer cancel()
		return struct{}{}, r.Record(stepCtx, s)
	}, backoff.WithBackOff(b), backoff.WithMaxTries(e.tries))

	if err != nil {
		e.metrics.effect(ctx, r.Name(), "failed")
		log.WarnContext(ctx, "settlement: side effect failed", "err", err)
		return
	}
	e.metrics.effect(ctx, r.Name(), "ok")
	log.DebugContext(ctx, "settlement: side effect recorded")
}

// wait blocks until every dispatched recorder has finished or ctx ends.
func (e *effects) wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		e.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// CommissionStore persists platform commission records.
type CommissionStore interface {
	InsertCommission(ctx context.Context, r store.CommissionRecord) error
}

// CommissionRecorder books the platform's cut of a settlement.
type CommissionRecorder struct {
	Store CommissionStore
}

func (CommissionRecorder) Name() string { return "commission" }

func (c CommissionRecorder) Record(ctx context.Context, s Settled) error {
	rec := store.CommissionRecord{
		SettlementID: s.SettlementID,
		SessionID:    s.Request.SessionID,
		PayeeID:      s.Request.PayeeID,
		Amount:       s.Breakdown.Commission,
		Withholding:  s.Breakdown.Withholding,
		CreatedAt:    s.SettledAt,
	}
	if s.Rates.Tier != nil {
		id := s.Rates.Tier.ID
		rec.TierID = &id
	}
	return c.Store.InsertCommission(ctx, rec)
}
