package settlement

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"github.com/Alijeyrad/simorq_settlement/internal/store"
)

var maxAmount = decimal.NewFromInt(math.MaxInt64)

// percentOf returns base * pct / 100 rounded half-up to a whole subunit.
// Amounts are non-negative, so decimal's away-from-zero rounding is half-up.
func percentOf(base decimal.Decimal, pct decimal.Decimal) decimal.Decimal {
	return base.Mul(pct).Shift(-2).Round(0)
}

// Calculate derives the full breakdown for base under rates. It performs no
// I/O and returns InvalidSettlementBreakdown instead of clamping a negative
// payee net. Sums are taken in decimal and rejected when the payer total
// does not fit in int64.
func Calculate(base int64, rates Rates) (Breakdown, error) {
	if base <= 0 {
		return Breakdown{}, newError(KindInvalidSettlementBreakdown, "base amount must be positive", nil,
			map[string]any{"baseAmount": base})
	}
	if err := checkPercents(rates); err != nil {
		return Breakdown{}, err
	}

	d := decimal.NewFromInt(base)
	local, regional, interstate := decimal.Zero, decimal.Zero, decimal.Zero
	switch rates.Scope {
	case TaxScopeLocal:
		local = percentOf(d, rates.Tax.LocalPercent)
		regional = percentOf(d, rates.Tax.RegionalPercent)
	case TaxScopeInterstate:
		interstate = percentOf(d, rates.Tax.InterstatePercent)
	case TaxScopeAll:
		local = percentOf(d, rates.Tax.LocalPercent)
		regional = percentOf(d, rates.Tax.RegionalPercent)
		interstate = percentOf(d, rates.Tax.InterstatePercent)
	}

	// Every tax is non-negative, so a payer total in range bounds them all.
	payerTotal := d.Add(local).Add(regional).Add(interstate)
	if payerTotal.GreaterThan(maxAmount) {
		return Breakdown{}, newError(KindInvalidSettlementBreakdown, "payer total exceeds the ledger amount range", nil,
			map[string]any{
				"baseAmount": base,
				"payerTotal": payerTotal.String(),
			})
	}

	comm := decimal.Min(commission(d, rates.Tier), d)
	withholding := percentOf(d, rates.WithholdingPercent)
	if comm.Add(withholding).GreaterThan(d) {
		return Breakdown{}, newError(KindInvalidSettlementBreakdown,
			"commission and withholding exceed the base amount", nil,
			map[string]any{
				"baseAmount":  base,
				"commission":  comm.String(),
				"withholding": withholding.String(),
			})
	}

	b := Breakdown{
		BaseAmount:    base,
		LocalTax:      local.IntPart(),
		RegionalTax:   regional.IntPart(),
		InterstateTax: interstate.IntPart(),
		PayerTotal:    payerTotal.IntPart(),
		Commission:    comm.IntPart(),
		Withholding:   withholding.IntPart(),
	}
	b.TotalTax = b.LocalTax + b.RegionalTax + b.InterstateTax
	b.PayeeNet = base - b.Commission - b.Withholding

	return b, nil
}

func commission(base decimal.Decimal, tier *store.CommissionTier) decimal.Decimal {
	if tier == nil {
		return decimal.Zero
	}
	if tier.Type == store.TierTypeFixed {
		return tier.Value.Round(0)
	}
	return percentOf(base, tier.Value)
}

func checkPercents(r Rates) error {
	type named struct {
		name string
		v    decimal.Decimal
	}
	checks := []named{
		{"withholding", r.WithholdingPercent},
		{"local", r.Tax.LocalPercent},
		{"regional", r.Tax.RegionalPercent},
		{"interstate", r.Tax.InterstatePercent},
	}
	if r.Tier != nil {
		checks = append(checks, named{"commission", r.Tier.Value})
	}
	for _, c := range checks {
		if c.v.IsNegative() {
			return newError(KindInvalidSettlementBreakdown, fmt.Sprintf("negative %s rate %s", c.name, c.v), nil,
				map[string]any{"rate": c.name})
		}
	}
	return nil
}
