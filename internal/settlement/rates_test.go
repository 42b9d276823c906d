package settlement

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Alijeyrad/simorq_settlement/internal/store"
)

func newResolver(src store.RateSource, platform string, log *slog.Logger) *resolver {
	return &resolver{
		src:                  src,
		platformJurisdiction: platform,
		fallbackWithholding:  pct("10"),
		stepTimeout:          time.Second,
		log:                  log,
	}
}

func TestSelectTier(t *testing.T) {
	old := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := old.Add(24 * time.Hour)
	upTo := func(v int64) *int64 { return &v }

	tiers := []store.CommissionTier{
		{Name: "small", MinAmount: 0, MaxAmount: upTo(49999), Value: pct("15"), Active: true, CreatedAt: old},
		{Name: "large", MinAmount: 50000, Value: pct("10"), Active: true, CreatedAt: old},
		{Name: "promo", MinAmount: 90000, MaxAmount: upTo(110000), Value: pct("5"), Active: true, CreatedAt: newer},
		{Name: "retired", MinAmount: 0, Value: pct("1"), Active: false, CreatedAt: newer.Add(time.Hour)},
	}

	tests := []struct {
		amount int64
		want   string
	}{
		{amount: 1000, want: "small"},
		{amount: 49999, want: "small"},
		{amount: 50000, want: "large"},
		{amount: 100000, want: "promo"},
		{amount: 110001, want: "large"},
	}
	for _, tt := range tests {
		got := selectTier(tiers, tt.amount)
		if got == nil || got.Name != tt.want {
			t.Errorf("selectTier(%d) = %v, want %s", tt.amount, got, tt.want)
		}
	}

	if got := selectTier(tiers[:1], 60000); got != nil {
		t.Errorf("selectTier() = %v, want nil when nothing covers the amount", got)
	}
}

func TestResolveScopes(t *testing.T) {
	tests := []struct {
		name      string
		platform  string
		payerCode string
		wantScope TaxScope
	}{
		{name: "same jurisdiction", platform: "07", payerCode: "07", wantScope: TaxScopeLocal},
		{name: "other jurisdiction", platform: "07", payerCode: "29", wantScope: TaxScopeInterstate},
		{name: "platform unset", platform: "", payerCode: "07", wantScope: TaxScopeAll},
		{name: "payer without jurisdiction", platform: "07", payerCode: "", wantScope: TaxScopeNone},
		{name: "unknown jurisdiction", platform: "07", payerCode: "99", wantScope: TaxScopeNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := exampleRates()
			src.jurisdiction = append(src.jurisdiction, store.JurisdictionTaxRate{Code: "29", InterstatePercent: pct("5")})
			src.profiles["payer-1"] = store.PayerProfile{UserID: "payer-1", JurisdictionCode: tt.payerCode}

			rates, err := newResolver(src, tt.platform, discard).resolve(context.Background(), exampleRequest())
			if err != nil {
				t.Fatalf("resolve() error = %v", err)
			}
			if rates.Scope != tt.wantScope {
				t.Errorf("scope = %s, want %s", rates.Scope, tt.wantScope)
			}
		})
	}
}

func TestResolveMissingRowsDefault(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, nil))

	src := exampleRates()
	src.withholding = nil
	src.profiles = nil
	src.tiers = nil

	rates, err := newResolver(src, "07", log).resolve(context.Background(), exampleRequest())
	if err != nil {
		t.Fatalf("resolve() error = %v", err)
	}
	if !rates.WithholdingFallback || !rates.WithholdingPercent.Equal(decimal.NewFromInt(10)) {
		t.Errorf("withholding = %s fallback=%v, want configured fallback", rates.WithholdingPercent, rates.WithholdingFallback)
	}
	if rates.Scope != TaxScopeNone || rates.Tier != nil {
		t.Errorf("rates = %+v, want no tax and no tier", rates)
	}

	out := buf.String()
	for _, want := range []string{"configured fallback", "no jurisdiction on file", "no commission tier"} {
		if !strings.Contains(out, want) {
			t.Errorf("log missing %q", want)
		}
	}
}

func TestResolveStoreFailure(t *testing.T) {
	src := exampleRates()
	src.err = errors.New("connection refused")

	_, err := newResolver(src, "07", discard).resolve(context.Background(), exampleRequest())
	if KindOf(err) != KindRateResolutionFailed {
		t.Fatalf("resolve() error = %v, want RateResolutionFailed", err)
	}
	var se *Error
	if !errors.As(err, &se) || !se.Retryable() {
		t.Fatalf("rate failure should be retryable: %v", err)
	}
}
