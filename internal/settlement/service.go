package settlement

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Alijeyrad/simorq_settlement/config"
	"github.com/Alijeyrad/simorq_settlement/internal/alert"
	"github.com/Alijeyrad/simorq_settlement/internal/store"
	"github.com/Alijeyrad/simorq_settlement/pkg/reqctx"
)

// ---------------------------------------------------------------------------
// Interface
// ---------------------------------------------------------------------------

type Service interface {
	// Settle applies the financial consequences of one ended session. The
	// returned Result is always populated; err is the *Error behind a
	// failed Result.
	Settle(ctx context.Context, req Request) (Result, error)
	// Quote computes the breakdown Settle would apply without writing.
	Quote(ctx context.Context, req Request) (Quote, error)
	// Lookup returns the live ledger entries of a settled session.
	Lookup(ctx context.Context, sessionID string) (Settlement, error)
	// Wait blocks until background side effects finish.
	Wait(ctx context.Context) error
}

// Deps are the collaborators of the engine. Locker and Recorders are
// optional.
type Deps struct {
	Ledger    Ledger
	Rates     store.RateSource
	Alerts    alert.Sender
	Locker    Locker
	Recorders []Recorder
	Logger    *slog.Logger
	Config    config.SettlementConfig
}

// ---------------------------------------------------------------------------
// Implementation
// ---------------------------------------------------------------------------

type service struct {
	ledger   Ledger
	guard    *guard
	verifier *verifier
	resolver *resolver
	writer   *writer
	effects  *effects
	alerts   alert.Sender
	locker   Locker
	lockTTL  time.Duration
	metrics  *metrics
	log      *slog.Logger
	now      func() time.Time
}

func New(d Deps) (Service, error) {
	if d.Ledger == nil || d.Rates == nil {
		return nil, errors.New("settlement: ledger and rate source are required")
	}
	if d.Alerts == nil {
		return nil, errors.New("settlement: alert sender is required")
	}
	log := d.Logger
	if log == nil {
		log = slog.Default()
	}
	cfg := d.Config

	fallback := config.DefaultWithholdingPercent
	if cfg.DefaultWithholdingPercent != "" {
		fallback = cfg.DefaultWithholdingPercent
	}
	fallbackPct, err := decimal.NewFromString(fallback)
	if err != nil {
		return nil, fmt.Errorf("settlement: default withholding percent: %w", err)
	}

	stepTimeout := millisOr(cfg.StepTimeoutMs, config.DefaultStepTimeoutMs)
	m := newMetrics()

	s := &service{
		ledger:   d.Ledger,
		guard:    &guard{ledger: d.Ledger, stepTimeout: stepTimeout},
		verifier: &verifier{ledger: d.Ledger, stepTimeout: stepTimeout},
		resolver: &resolver{
			src:                  d.Rates,
			platformJurisdiction: cfg.PlatformJurisdiction,
			fallbackWithholding:  fallbackPct,
			stepTimeout:          stepTimeout,
			log:                  log,
		},
		writer: &writer{
			ledger:          d.Ledger,
			alerts:          d.Alerts,
			metrics:         m,
			log:             log,
			stepTimeout:     stepTimeout,
			rollbackTries:   triesOr(cfg.RollbackMaxAttempts, config.DefaultRollbackMaxAttempts),
			rollbackBackoff: millisOr(cfg.RollbackInitialBackoffMs, config.DefaultRollbackInitialBackoffMs),
		},
		effects: &effects{
			recorders: d.Recorders,
			tries:     triesOr(cfg.SideEffectMaxAttempts, config.DefaultSideEffectMaxAttempts),
			timeout:   millisOr(cfg.SideEffectTimeoutMs, config.DefaultSideEffectTimeoutMs),
			backoff:   500 * time.Millisecond,
			metrics:   m,
			log:       log,
		},
		alerts:  d.Alerts,
		locker:  d.Locker,
		lockTTL: time.Duration(cfg.LockTTLSeconds) * time.Second,
		metrics: m,
		log:     log,
		now:     func() time.Time { return time.Now().UTC() },
	}
	return s, nil
}

func (s *service) Settle(ctx context.Context, req Request) (Result, error) {
	started := time.Now()
	ctx, span := tracer.Start(ctx, "settlement.Settle", trace.WithAttributes(
		attribute.String("settlement.session_id", req.SessionID),
		attribute.Int64("settlement.base_amount", req.BaseAmount),
	))
	defer span.End()

	res, err := s.settle(ctx, req)
	if err != nil {
		res = failure(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, string(res.ErrorKind))
		s.metrics.outcome(ctx, string(res.ErrorKind), started)
		s.logFailure(ctx, req, err)
		return res, err
	}

	s.metrics.outcome(ctx, "Settled", started)
	return res, nil
}

func (s *service) settle(ctx context.Context, req Request) (Result, error) {
	if err := req.Validate(); err != nil {
		return Result{}, newError(KindInvalidRequest, err.Error(), err, nil)
	}
	log := s.log.With(reqctx.LogAttrs(ctx)...).With("session_id", req.SessionID)

	if s.locker != nil && s.lockTTL > 0 {
		unlock, err := s.locker.Lock(ctx, lockKey(req.SessionID), s.lockTTL)
		switch {
		case errors.Is(err, errLockHeld):
			return Result{}, newError(KindLedgerWriteFailed, "settlement already in progress", err,
				map[string]any{"stage": "lock"})
		case err != nil:
			log.WarnContext(ctx, "settlement: lock unavailable, relying on ledger uniqueness", "err", err)
		default:
			defer func() {
				if err := unlock(context.WithoutCancel(ctx)); err != nil {
					log.WarnContext(ctx, "settlement: lock release failed", "err", err)
				}
			}()
		}
	}

	if err := s.step(ctx, "guard", func(ctx context.Context) error {
		return s.guard.check(ctx, req.SessionID)
	}); err != nil {
		return Result{}, err
	}

	rates, breakdown, err := s.price(ctx, req)
	if err != nil {
		return Result{}, err
	}

	if err := s.step(ctx, "verify_balance", func(ctx context.Context) error {
		return s.verifier.verify(ctx, req.PayerID, breakdown.PayerTotal)
	}); err != nil {
		return Result{}, err
	}

	settlementID := uuid.Must(uuid.NewV7())
	meta, err := entryMetadata(settlementID, req, breakdown, rates)
	if err != nil {
		return Result{}, newError(KindLedgerWriteFailed, "encode entry metadata", err, nil)
	}

	var refs TransactionRefs
	if err := s.step(ctx, "write", func(ctx context.Context) (err error) {
		refs, err = s.writer.write(ctx, writeInput{
			settlementID: settlementID,
			req:          req,
			breakdown:    breakdown,
			metadata:     meta,
		})
		return err
	}); err != nil {
		return Result{}, err
	}

	log.InfoContext(ctx, "settlement: settled",
		"settlement_id", settlementID,
		"payer_total", breakdown.PayerTotal,
		"payee_net", breakdown.PayeeNet,
		"payer_entry_id", refs.PayerEntryID,
		"payee_entry_id", refs.PayeeEntryID)

	s.effects.dispatch(ctx, Settled{
		SettlementID: settlementID,
		Request:      req,
		Breakdown:    breakdown,
		Rates:        rates,
		Refs:         refs,
		SettledAt:    s.now(),
	})

	return Result{
		Settled:         true,
		SettlementID:    &settlementID,
		TransactionRefs: &refs,
		Breakdown:       &breakdown,
	}, nil
}

// price resolves rates and calculates the breakdown.
func (s *service) price(ctx context.Context, req Request) (Rates, Breakdown, error) {
	var rates Rates
	if err := s.step(ctx, "resolve_rates", func(ctx context.Context) (err error) {
		rates, err = s.resolver.resolve(ctx, req)
		return err
	}); err != nil {
		return Rates{}, Breakdown{}, err
	}

	breakdown, err := Calculate(req.BaseAmount, rates)
	if err != nil {
		if KindOf(err) == KindInvalidSettlementBreakdown {
			var se *Error
			errors.As(err, &se)
			s.alerts.Send(ctx, alert.Alert{
				Kind:      string(KindInvalidSettlementBreakdown),
				Severity:  alert.SeverityWarning,
				SessionID: req.SessionID,
				Summary:   "rate configuration produced an invalid settlement: " + se.Message,
				Details:   se.Details,
			})
		}
		return Rates{}, Breakdown{}, err
	}
	return rates, breakdown, nil
}

func (s *service) Quote(ctx context.Context, req Request) (Quote, error) {
	ctx, span := tracer.Start(ctx, "settlement.Quote")
	defer span.End()

	if err := req.Validate(); err != nil {
		return Quote{}, newError(KindInvalidRequest, err.Error(), err, nil)
	}
	rates, breakdown, err := s.price(ctx, req)
	if err != nil {
		span.RecordError(err)
		return Quote{}, err
	}
	return Quote{Breakdown: breakdown, Rates: rates}, nil
}

func (s *service) Lookup(ctx context.Context, sessionID string) (Settlement, error) {
	debit, err := s.findLive(ctx, store.DebitKey(sessionID))
	if errors.Is(err, store.ErrNotFound) {
		return Settlement{}, ErrNotSettled
	}
	if err != nil {
		return Settlement{}, fmt.Errorf("lookup payer entry: %w", err)
	}

	out := Settlement{SessionID: sessionID, PayerEntry: debit}
	credit, err := s.findLive(ctx, store.CreditKey(sessionID))
	switch {
	case err == nil:
		out.PayeeEntry = &credit
	case !errors.Is(err, store.ErrNotFound):
		return Settlement{}, fmt.Errorf("lookup payee entry: %w", err)
	}
	return out, nil
}

func (s *service) findLive(ctx context.Context, key string) (store.LedgerEntry, error) {
	stepCtx, cancel := withStepTimeout(ctx, s.guard.stepTimeout)
	defer cancel()
	return s.ledger.FindLiveEntry(stepCtx, key)
}

func (s *service) Wait(ctx context.Context) error {
	return s.effects.wait(ctx)
}

// step wraps one orchestration stage in a span.
func (s *service) step(ctx context.Context, name string, fn func(context.Context) error) error {
	ctx, span := tracer.Start(ctx, "settlement."+name)
	defer span.End()

	if err := fn(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(KindOf(err)))
		return err
	}
	return nil
}

func (s *service) logFailure(ctx context.Context, req Request, err error) {
	kind := KindOf(err)
	attrs := append(reqctx.LogAttrs(ctx), "session_id", req.SessionID, "kind", kind, "err", err)
	switch kind {
	case KindAlreadySettled, KindInsufficientFunds, KindInvalidRequest:
		s.log.InfoContext(ctx, "settlement: rejected", attrs...)
	case KindRollbackFailed:
		// Already logged at error level by the writer.
	default:
		s.log.WarnContext(ctx, "settlement: failed", attrs...)
	}
}

type entryMeta struct {
	SettlementID        uuid.UUID  `json:"settlementId"`
	SessionID           string     `json:"sessionId"`
	PayerID             string     `json:"payerId"`
	PayeeID             string     `json:"payeeId"`
	Category            string     `json:"category,omitempty"`
	DurationMinutes     int        `json:"durationMinutes"`
	Breakdown           Breakdown  `json:"breakdown"`
	TierID              *uuid.UUID `json:"tierId,omitempty"`
	WithholdingPct      string     `json:"withholdingPercent"`
	WithholdingFallback bool       `json:"withholdingFallback,omitempty"`
	Jurisdiction        string     `json:"jurisdiction,omitempty"`
	TaxScope            TaxScope   `json:"taxScope"`
}

func entryMetadata(id uuid.UUID, req Request, b Breakdown, r Rates) (json.RawMessage, error) {
	m := entryMeta{
		SettlementID:        id,
		SessionID:           req.SessionID,
		PayerID:             req.PayerID,
		PayeeID:             req.PayeeID,
		Category:            req.Category,
		DurationMinutes:     req.DurationMinutes,
		Breakdown:           b,
		WithholdingPct:      r.WithholdingPercent.String(),
		WithholdingFallback: r.WithholdingFallback,
		Jurisdiction:        r.Jurisdiction,
		TaxScope:            r.Scope,
	}
	if r.Tier != nil {
		id := r.Tier.ID
		m.TierID = &id
	}
	return json.Marshal(m)
}

func millisOr(v, def int) time.Duration {
	if v > 0 {
		return time.Duration(v) * time.Millisecond
	}
	return time.Duration(def) * time.Millisecond
}

func triesOr(v, def int) uint {
	if v > 0 {
		return uint(v)
	}
	return uint(def)
}
