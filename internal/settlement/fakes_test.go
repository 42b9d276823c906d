package settlement

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Alijeyrad/simorq_settlement/config"
	"github.com/Alijeyrad/simorq_settlement/internal/alert"
	"github.com/Alijeyrad/simorq_settlement/internal/store"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

// memLedger is an in-memory Ledger with the same uniqueness and guard rules
// as the Postgres store.
type memLedger struct {
	mu       sync.Mutex
	deposits map[string]int64
	entries  []store.LedgerEntry

	debitErr    error
	creditErr   func(attempt int) error
	reverseErr  func(attempt int) error
	afterDebit  func()
	credits     int
	reversals   int
	balanceErr  error
	findLiveErr error
	// findLiveHang makes FindLiveEntry block until its context ends.
	findLiveHang bool
}

func newMemLedger(deposits map[string]int64) *memLedger {
	return &memLedger{deposits: deposits}
}

func (m *memLedger) FindLiveEntry(ctx context.Context, key string) (store.LedgerEntry, error) {
	if m.findLiveHang {
		<-ctx.Done()
		return store.LedgerEntry{}, ctx.Err()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findLiveErr != nil {
		return store.LedgerEntry{}, m.findLiveErr
	}
	for _, e := range m.entries {
		if e.SettlementKey == key && e.Status == store.EntryStatusCompleted {
			return e, nil
		}
	}
	return store.LedgerEntry{}, store.ErrNotFound
}

func (m *memLedger) GetEntry(_ context.Context, id uuid.UUID) (store.LedgerEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		if e.ID == id {
			return e, nil
		}
	}
	return store.LedgerEntry{}, store.ErrNotFound
}

func (m *memLedger) Balance(_ context.Context, owner string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.balanceErr != nil {
		return 0, m.balanceErr
	}
	return m.balanceLocked(owner), nil
}

func (m *memLedger) balanceLocked(owner string) int64 {
	total := m.deposits[owner]
	for _, e := range m.entries {
		if e.OwnerID == owner && e.Status == store.EntryStatusCompleted {
			total += e.Amount
		}
	}
	return total
}

func (m *memLedger) AppendGuardedDebit(_ context.Context, e store.LedgerEntry) (store.LedgerEntry, error) {
	m.mu.Lock()
	if m.debitErr != nil {
		m.mu.Unlock()
		return store.LedgerEntry{}, m.debitErr
	}
	if m.balanceLocked(e.OwnerID) < -e.Amount {
		m.mu.Unlock()
		return store.LedgerEntry{}, store.ErrInsufficientBalance
	}
	out, err := m.insertLocked(e)
	m.mu.Unlock()
	if err == nil && m.afterDebit != nil {
		m.afterDebit()
	}
	return out, err
}

func (m *memLedger) AppendEntry(ctx context.Context, e store.LedgerEntry) (store.LedgerEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.credits++
	if m.creditErr != nil {
		if err := m.creditErr(m.credits); err != nil {
			return store.LedgerEntry{}, err
		}
	}
	if err := ctx.Err(); err != nil {
		return store.LedgerEntry{}, err
	}
	return m.insertLocked(e)
}

func (m *memLedger) insertLocked(e store.LedgerEntry) (store.LedgerEntry, error) {
	for _, x := range m.entries {
		if e.SettlementKey != "" && x.SettlementKey == e.SettlementKey {
			return store.LedgerEntry{}, store.ErrDuplicateEntry
		}
	}
	e.ID = uuid.Must(uuid.NewV7())
	if e.Status == "" {
		e.Status = store.EntryStatusCompleted
	}
	e.CreatedAt = time.Now()
	m.entries = append(m.entries, e)
	return e, nil
}

func (m *memLedger) ReverseEntry(_ context.Context, id uuid.UUID, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reversals++
	if m.reverseErr != nil {
		if err := m.reverseErr(m.reversals); err != nil {
			return err
		}
	}
	for i := range m.entries {
		if m.entries[i].ID == id {
			m.entries[i].Status = store.EntryStatusReversed
			m.entries[i].SettlementKey = ""
			m.entries[i].ReversalReason = reason
			return nil
		}
	}
	return store.ErrNotFound
}

func (m *memLedger) live() []store.LedgerEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []store.LedgerEntry
	for _, e := range m.entries {
		if e.Status == store.EntryStatusCompleted {
			out = append(out, e)
		}
	}
	return out
}

func (m *memLedger) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// fakeRates is a static RateSource.
type fakeRates struct {
	tiers        []store.CommissionTier
	withholding  *store.WithholdingRate
	profiles     map[string]store.PayerProfile
	jurisdiction []store.JurisdictionTaxRate
	err          error
}

func (f *fakeRates) ActiveCommissionTiers(context.Context) ([]store.CommissionTier, error) {
	return f.tiers, f.err
}

func (f *fakeRates) ActiveWithholdingRate(context.Context) (store.WithholdingRate, error) {
	if f.err != nil {
		return store.WithholdingRate{}, f.err
	}
	if f.withholding == nil {
		return store.WithholdingRate{}, store.ErrNotFound
	}
	return *f.withholding, nil
}

func (f *fakeRates) PayerProfile(_ context.Context, id string) (store.PayerProfile, error) {
	if f.err != nil {
		return store.PayerProfile{}, f.err
	}
	p, ok := f.profiles[id]
	if !ok {
		return store.PayerProfile{}, store.ErrNotFound
	}
	return p, nil
}

func (f *fakeRates) JurisdictionRates(context.Context) ([]store.JurisdictionTaxRate, error) {
	return f.jurisdiction, f.err
}

type alertRecorder struct {
	mu  sync.Mutex
	got []alert.Alert
}

func (a *alertRecorder) Send(_ context.Context, al alert.Alert) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.got = append(a.got, al)
}

func (a *alertRecorder) kinds() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []string
	for _, al := range a.got {
		out = append(out, al.Kind)
	}
	return out
}

type fakeRecorder struct {
	name  string
	fails int
	panic bool

	mu    sync.Mutex
	calls int
	got   []Settled
}

func (r *fakeRecorder) Name() string { return r.name }

func (r *fakeRecorder) Record(_ context.Context, s Settled) error {
	if r.panic {
		panic("recorder exploded")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.calls <= r.fails {
		return errors.New("transient")
	}
	r.got = append(r.got, s)
	return nil
}

func pct(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// exampleRates is the reference configuration: a single 10% tier, 10%
// withholding and 9%+9% local/regional tax in the platform jurisdiction.
func exampleRates() *fakeRates {
	return &fakeRates{
		tiers: []store.CommissionTier{{
			ID:     uuid.MustParse("0190c8a0-0000-7000-8000-000000000001"),
			Name:   "standard",
			Type:   store.TierTypePercentage,
			Value:  pct("10"),
			Active: true,
		}},
		withholding: &store.WithholdingRate{Percent: pct("10"), Active: true},
		profiles: map[string]store.PayerProfile{
			"payer-1": {UserID: "payer-1", JurisdictionCode: "07"},
		},
		jurisdiction: []store.JurisdictionTaxRate{{
			Code:              "07",
			LocalPercent:      pct("9"),
			RegionalPercent:   pct("9"),
			InterstatePercent: pct("0"),
		}},
	}
}

func exampleRequest() Request {
	return Request{
		SessionID:       "sess-1",
		PayerID:         "payer-1",
		PayeeID:         "payee-1",
		BaseAmount:      100000,
		Category:        "video",
		DurationMinutes: 50,
	}
}

func testConfig() config.SettlementConfig {
	return config.SettlementConfig{
		PlatformJurisdiction:      "07",
		DefaultWithholdingPercent: "10",
		StepTimeoutMs:             1000,
		RollbackMaxAttempts:       3,
		RollbackInitialBackoffMs:  1,
		SideEffectMaxAttempts:     3,
		SideEffectTimeoutMs:       1000,
	}
}

type harness struct {
	svc    *service
	ledger *memLedger
	rates  *fakeRates
	alerts *alertRecorder
}

func newHarness(t interface{ Fatalf(string, ...any) }, ledger *memLedger, rates *fakeRates, recorders ...Recorder) *harness {
	alerts := &alertRecorder{}
	svc, err := New(Deps{
		Ledger:    ledger,
		Rates:     rates,
		Alerts:    alerts,
		Recorders: recorders,
		Logger:    discard,
		Config:    testConfig(),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	s := svc.(*service)
	s.effects.backoff = time.Millisecond
	return &harness{svc: s, ledger: ledger, rates: rates, alerts: alerts}
}
