package settlement

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Alijeyrad/simorq_settlement/internal/store"
)

// Request asks the engine to settle one ended session. It is immutable once
// submitted; retries must resend the same values.
type Request struct {
	SessionID       string `json:"sessionId"`
	PayerID         string `json:"payerId"`
	PayeeID         string `json:"payeeId"`
	BaseAmount      int64  `json:"baseAmount"`
	Category        string `json:"category"`
	DurationMinutes int    `json:"durationMinutes"`
}

func (r Request) Validate() error {
	var problems []string
	if strings.TrimSpace(r.SessionID) == "" {
		problems = append(problems, "sessionId is required")
	}
	if strings.TrimSpace(r.PayerID) == "" {
		problems = append(problems, "payerId is required")
	}
	if strings.TrimSpace(r.PayeeID) == "" {
		problems = append(problems, "payeeId is required")
	}
	if r.PayerID != "" && r.PayerID == r.PayeeID {
		problems = append(problems, "payer and payee must differ")
	}
	if r.BaseAmount <= 0 {
		problems = append(problems, "baseAmount must be positive")
	}
	if r.DurationMinutes < 0 {
		problems = append(problems, "durationMinutes must not be negative")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidRequest, strings.Join(problems, "; "))
	}
	return nil
}

// Breakdown is every derived amount for one settlement, in subunits.
type Breakdown struct {
	BaseAmount    int64 `json:"baseAmount"`
	LocalTax      int64 `json:"localTax"`
	RegionalTax   int64 `json:"regionalTax"`
	InterstateTax int64 `json:"interstateTax"`
	TotalTax      int64 `json:"totalTax"`
	PayerTotal    int64 `json:"payerTotal"`
	Commission    int64 `json:"commission"`
	Withholding   int64 `json:"withholding"`
	PayeeNet      int64 `json:"payeeNet"`
}

// TaxScope says which jurisdiction components applied.
type TaxScope string

const (
	TaxScopeNone       TaxScope = "none"
	TaxScopeLocal      TaxScope = "local"
	TaxScopeInterstate TaxScope = "interstate"
	// TaxScopeAll applies every stored component; used when the platform
	// jurisdiction is not configured.
	TaxScopeAll TaxScope = "all"
)

// Rates is the per-call snapshot the calculator works from.
type Rates struct {
	Tier                *store.CommissionTier     `json:"tier,omitempty"`
	WithholdingPercent  decimal.Decimal           `json:"withholdingPercent"`
	WithholdingFallback bool                      `json:"withholdingFallback"`
	Jurisdiction        string                    `json:"jurisdiction,omitempty"`
	Tax                 store.JurisdictionTaxRate `json:"tax"`
	Scope               TaxScope                  `json:"scope"`
}

// State is a position in the ledger write state machine.
type State string

const (
	StatePending      State = "Pending"
	StatePayerDebited State = "PayerDebited"
	StateSettled      State = "Settled"
	StateRollingBack  State = "RollingBack"
	StateFailed       State = "Failed"
)

type TransactionRefs struct {
	PayerEntryID uuid.UUID `json:"payerEntryId"`
	PayeeEntryID uuid.UUID `json:"payeeEntryId"`
}

// Result is the single outcome returned to the caller.
type Result struct {
	Settled         bool             `json:"settled"`
	SettlementID    *uuid.UUID       `json:"settlementId,omitempty"`
	TransactionRefs *TransactionRefs `json:"transactionRefs,omitempty"`
	Breakdown       *Breakdown       `json:"breakdown,omitempty"`
	ErrorKind       Kind             `json:"errorKind,omitempty"`
	Message         string           `json:"message,omitempty"`
	Retryable       bool             `json:"retryable"`
	Details         map[string]any   `json:"details,omitempty"`
}

// Quote is a dry-run breakdown with the rates it was computed from.
type Quote struct {
	Breakdown Breakdown `json:"breakdown"`
	Rates     Rates     `json:"rates"`
}

// Settlement is what Lookup returns for a settled session.
type Settlement struct {
	SessionID  string             `json:"sessionId"`
	PayerEntry store.LedgerEntry  `json:"payerEntry"`
	PayeeEntry *store.LedgerEntry `json:"payeeEntry,omitempty"`
}
