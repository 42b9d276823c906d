package settlement

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/Alijeyrad/simorq_settlement/internal/store"
)

// resolver loads the rate snapshot for one settlement. The four reads are
// independent and run concurrently; "no row" is never an error here.
type resolver struct {
	src                  store.RateSource
	platformJurisdiction string
	fallbackWithholding  decimal.Decimal
	stepTimeout          time.Duration
	log                  *slog.Logger
}

func (r *resolver) resolve(ctx context.Context, req Request) (Rates, error) {
	var (
		tiers    []store.CommissionTier
		wh       store.WithholdingRate
		whFound  bool
		profile  store.PayerProfile
		taxTable []store.JurisdictionTaxRate
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return r.step(gctx, "commission tiers", func(ctx context.Context) (err error) {
			tiers, err = r.src.ActiveCommissionTiers(ctx)
			return err
		})
	})
	g.Go(func() error {
		return r.step(gctx, "withholding rate", func(ctx context.Context) error {
			rate, err := r.src.ActiveWithholdingRate(ctx)
			if errors.Is(err, store.ErrNotFound) {
				return nil
			}
			wh, whFound = rate, err == nil
			return err
		})
	})
	g.Go(func() error {
		return r.step(gctx, "payer profile", func(ctx context.Context) error {
			p, err := r.src.PayerProfile(ctx, req.PayerID)
			if errors.Is(err, store.ErrNotFound) {
				return nil
			}
			profile = p
			return err
		})
	})
	g.Go(func() error {
		return r.step(gctx, "jurisdiction rates", func(ctx context.Context) (err error) {
			taxTable, err = r.src.JurisdictionRates(ctx)
			return err
		})
	})
	if err := g.Wait(); err != nil {
		return Rates{}, newError(KindRateResolutionFailed, "rate store unavailable", err, nil)
	}

	rates := Rates{
		Tier:               selectTier(tiers, req.BaseAmount),
		WithholdingPercent: wh.Percent,
		Scope:              TaxScopeNone,
	}

	if rates.Tier == nil {
		r.log.WarnContext(ctx, "settlement: no commission tier covers amount, charging no commission",
			"session_id", req.SessionID, "base_amount", req.BaseAmount)
	}

	if !whFound {
		rates.WithholdingPercent = r.fallbackWithholding
		rates.WithholdingFallback = true
		r.log.WarnContext(ctx, "settlement: no active withholding rate, using configured fallback",
			"session_id", req.SessionID, "percent", r.fallbackWithholding.String())
	}

	code := strings.TrimSpace(profile.JurisdictionCode)
	rates.Jurisdiction = code
	tax, ok := findJurisdiction(taxTable, code)
	switch {
	case code == "":
		r.log.WarnContext(ctx, "settlement: payer has no jurisdiction on file, applying no tax",
			"session_id", req.SessionID, "payer_id", req.PayerID)
	case !ok:
		r.log.WarnContext(ctx, "settlement: no tax rates for payer jurisdiction, applying no tax",
			"session_id", req.SessionID, "payer_id", req.PayerID, "jurisdiction", code)
	default:
		rates.Tax = tax
		rates.Scope = r.scopeFor(code)
	}

	return rates, nil
}

func (r *resolver) scopeFor(payerJurisdiction string) TaxScope {
	switch {
	case r.platformJurisdiction == "":
		return TaxScopeAll
	case strings.EqualFold(payerJurisdiction, r.platformJurisdiction):
		return TaxScopeLocal
	default:
		return TaxScopeInterstate
	}
}

func (r *resolver) step(ctx context.Context, name string, fn func(context.Context) error) error {
	ctx, cancel := withStepTimeout(ctx, r.stepTimeout)
	defer cancel()
	if err := fn(ctx); err != nil {
		return &stepError{step: name, err: err}
	}
	return nil
}

// selectTier picks the active tier covering amount. Overlaps resolve to the
// most recently created tier.
func selectTier(tiers []store.CommissionTier, amount int64) *store.CommissionTier {
	var best *store.CommissionTier
	for i := range tiers {
		t := &tiers[i]
		if !t.Active || !t.Covers(amount) {
			continue
		}
		if best == nil || t.CreatedAt.After(best.CreatedAt) {
			best = t
		}
	}
	if best == nil {
		return nil
	}
	out := *best
	return &out
}

func findJurisdiction(table []store.JurisdictionTaxRate, code string) (store.JurisdictionTaxRate, bool) {
	if code == "" {
		return store.JurisdictionTaxRate{}, false
	}
	for _, r := range table {
		if strings.EqualFold(r.Code, code) {
			return r, true
		}
	}
	return store.JurisdictionTaxRate{}, false
}

type stepError struct {
	step string
	err  error
}

func (e *stepError) Error() string { return e.step + ": " + e.err.Error() }
func (e *stepError) Unwrap() error { return e.err }

func withStepTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
