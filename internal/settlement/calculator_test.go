package settlement

import (
	"math"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Alijeyrad/simorq_settlement/internal/store"
)

func percentTier(v string) *store.CommissionTier {
	return &store.CommissionTier{ID: uuid.New(), Type: store.TierTypePercentage, Value: pct(v), Active: true}
}

func localRates(tier *store.CommissionTier, withholding, local, regional string) Rates {
	return Rates{
		Tier:               tier,
		WithholdingPercent: pct(withholding),
		Scope:              TaxScopeLocal,
		Tax: store.JurisdictionTaxRate{
			Code:              "07",
			LocalPercent:      pct(local),
			RegionalPercent:   pct(regional),
			InterstatePercent: decimal.Zero,
		},
	}
}

func TestCalculateReferenceExample(t *testing.T) {
	got, err := Calculate(100000, localRates(percentTier("10"), "10", "9", "9"))
	if err != nil {
		t.Fatalf("Calculate() error = %v", err)
	}
	want := Breakdown{
		BaseAmount:    100000,
		LocalTax:      9000,
		RegionalTax:   9000,
		InterstateTax: 0,
		TotalTax:      18000,
		PayerTotal:    118000,
		Commission:    10000,
		Withholding:   10000,
		PayeeNet:      80000,
	}
	if got != want {
		t.Fatalf("Calculate() = %+v, want %+v", got, want)
	}
}

func TestCalculate(t *testing.T) {
	fixed := func(v string) *store.CommissionTier {
		return &store.CommissionTier{Type: store.TierTypeFixed, Value: pct(v), Active: true}
	}

	tests := []struct {
		name  string
		base  int64
		rates Rates
		check func(t *testing.T, b Breakdown)
	}{
		{
			name:  "rounds half up",
			base:  5,
			rates: localRates(percentTier("10"), "0", "10", "0"),
			check: func(t *testing.T, b Breakdown) {
				// 5 * 10% = 0.5 -> 1
				if b.LocalTax != 1 || b.Commission != 1 {
					t.Errorf("localTax=%d commission=%d, want 1 and 1", b.LocalTax, b.Commission)
				}
			},
		},
		{
			name:  "fixed tier",
			base:  100000,
			rates: localRates(fixed("2500"), "10", "0", "0"),
			check: func(t *testing.T, b Breakdown) {
				if b.Commission != 2500 || b.PayeeNet != 87500 {
					t.Errorf("commission=%d net=%d, want 2500 and 87500", b.Commission, b.PayeeNet)
				}
			},
		},
		{
			name:  "fixed tier clamped to base",
			base:  1000,
			rates: localRates(fixed("5000"), "0", "0", "0"),
			check: func(t *testing.T, b Breakdown) {
				if b.Commission != 1000 || b.PayeeNet != 0 {
					t.Errorf("commission=%d net=%d, want 1000 and 0", b.Commission, b.PayeeNet)
				}
			},
		},
		{
			name: "interstate only",
			base: 100000,
			rates: Rates{
				Tier:               percentTier("10"),
				WithholdingPercent: pct("10"),
				Scope:              TaxScopeInterstate,
				Tax:                store.JurisdictionTaxRate{LocalPercent: pct("9"), RegionalPercent: pct("9"), InterstatePercent: pct("5")},
			},
			check: func(t *testing.T, b Breakdown) {
				if b.LocalTax != 0 || b.RegionalTax != 0 || b.InterstateTax != 5000 || b.PayerTotal != 105000 {
					t.Errorf("got %+v", b)
				}
			},
		},
		{
			name:  "no tax scope",
			base:  100000,
			rates: Rates{Tier: percentTier("10"), WithholdingPercent: pct("10"), Scope: TaxScopeNone},
			check: func(t *testing.T, b Breakdown) {
				if b.TotalTax != 0 || b.PayerTotal != 100000 {
					t.Errorf("got %+v", b)
				}
			},
		},
		{
			name:  "no tier",
			base:  100000,
			rates: localRates(nil, "10", "9", "9"),
			check: func(t *testing.T, b Breakdown) {
				if b.Commission != 0 || b.PayeeNet != 90000 {
					t.Errorf("got %+v", b)
				}
			},
		},
		{
			name:  "fractional rates",
			base:  33333,
			rates: localRates(percentTier("12.5"), "7.25", "4.5", "0.75"),
			check: func(t *testing.T, b Breakdown) {
				// 4166.625 -> 4167, 2416.64 -> 2417, 1499.985 -> 1500, 249.9975 -> 250
				if b.Commission != 4167 || b.Withholding != 2417 || b.LocalTax != 1500 || b.RegionalTax != 250 {
					t.Errorf("got %+v", b)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := Calculate(tt.base, tt.rates)
			if err != nil {
				t.Fatalf("Calculate() error = %v", err)
			}
			if b.PayerTotal != b.BaseAmount+b.TotalTax {
				t.Errorf("payerTotal %d != base %d + tax %d", b.PayerTotal, b.BaseAmount, b.TotalTax)
			}
			if b.PayeeNet+b.Commission+b.Withholding != b.BaseAmount {
				t.Errorf("net %d + commission %d + withholding %d != base %d",
					b.PayeeNet, b.Commission, b.Withholding, b.BaseAmount)
			}
			if b.TotalTax != b.LocalTax+b.RegionalTax+b.InterstateTax {
				t.Errorf("totalTax %d does not sum its components", b.TotalTax)
			}
			tt.check(t, b)
		})
	}
}

func TestCalculateRejects(t *testing.T) {
	tests := []struct {
		name  string
		base  int64
		rates Rates
	}{
		{name: "commission plus withholding over base", base: 100000, rates: localRates(percentTier("60"), "50", "0", "0")},
		{name: "negative withholding", base: 100000, rates: localRates(percentTier("10"), "-1", "0", "0")},
		{name: "negative tax", base: 100000, rates: localRates(percentTier("10"), "10", "-9", "0")},
		{name: "negative commission", base: 100000, rates: localRates(percentTier("-5"), "10", "0", "0")},
		{name: "zero base", base: 0, rates: localRates(percentTier("10"), "10", "0", "0")},
		{name: "payer total past int64", base: 8_000_000_000_000_000_000, rates: localRates(percentTier("10"), "10", "9", "9")},
		{name: "max base with any tax", base: math.MaxInt64, rates: localRates(nil, "0", "0.01", "0")},
		{name: "withholding rate far above base", base: math.MaxInt64, rates: localRates(nil, "300", "0", "0")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Calculate(tt.base, tt.rates)
			if KindOf(err) != KindInvalidSettlementBreakdown {
				t.Fatalf("Calculate() error = %v, want InvalidSettlementBreakdown", err)
			}
		})
	}
}

func TestCalculateFullWithholdingLeavesZeroNet(t *testing.T) {
	b, err := Calculate(1000, localRates(percentTier("40"), "60", "0", "0"))
	if err != nil {
		t.Fatalf("Calculate() error = %v", err)
	}
	if b.PayeeNet != 0 {
		t.Fatalf("payeeNet = %d, want 0", b.PayeeNet)
	}
}

func TestCalculateAmountRange(t *testing.T) {
	b, err := Calculate(math.MaxInt64, localRates(percentTier("10"), "10", "0", "0"))
	if err != nil {
		t.Fatalf("Calculate() error = %v", err)
	}
	if b.PayerTotal != math.MaxInt64 || b.PayerTotal < b.BaseAmount {
		t.Fatalf("payerTotal = %d, want %d", b.PayerTotal, int64(math.MaxInt64))
	}
	if got := b.PayerTotal - b.PayeeNet; got != b.Commission+b.Withholding+b.TotalTax {
		t.Fatalf("conservation broken: %+v", b)
	}

	huge := &store.CommissionTier{ID: uuid.New(), Type: store.TierTypeFixed, Value: decimal.RequireFromString("1e30"), Active: true}
	b, err = Calculate(5000, localRates(huge, "0", "0", "0"))
	if err != nil {
		t.Fatalf("Calculate() with oversized fixed tier error = %v", err)
	}
	if b.Commission != 5000 || b.PayeeNet != 0 {
		t.Fatalf("commission = %d, payeeNet = %d; want clamp to base", b.Commission, b.PayeeNet)
	}
}
