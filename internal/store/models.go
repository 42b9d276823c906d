package store

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type EntryKind string

const (
	EntryKindDebit  EntryKind = "debit"
	EntryKindCredit EntryKind = "credit"
)

type EntryPurpose string

const (
	PurposeSessionPayment EntryPurpose = "session_payment"
	PurposeSessionEarning EntryPurpose = "session_earning"
)

type EntryStatus string

const (
	EntryStatusPending   EntryStatus = "pending"
	EntryStatusCompleted EntryStatus = "completed"
	EntryStatusFailed    EntryStatus = "failed"
	EntryStatusReversed  EntryStatus = "reversed"
)

// LedgerEntry is one append-only balance movement. Only Status and the
// reversal fields change after insert; a reversal also clears SettlementKey.
type LedgerEntry struct {
	ID             uuid.UUID       `json:"id"`
	OwnerID        string          `json:"ownerId"`
	SessionID      string          `json:"sessionId"`
	SettlementID   uuid.UUID       `json:"settlementId"`
	Kind           EntryKind       `json:"kind"`
	Purpose        EntryPurpose    `json:"purpose"`
	Amount         int64           `json:"amount"`
	Status         EntryStatus     `json:"status"`
	SettlementKey  string          `json:"settlementKey,omitempty"`
	Description    string          `json:"description"`
	Metadata       json.RawMessage `json:"metadata,omitempty"`
	ReversalReason string          `json:"reversalReason,omitempty"`
	ReversedAt     *time.Time      `json:"reversedAt,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// DebitKey and CreditKey are the unique correlation keys tying a live entry to
// its session.
func DebitKey(sessionID string) string  { return sessionID + ":debit" }
func CreditKey(sessionID string) string { return sessionID + ":credit" }

type TierType string

const (
	TierTypePercentage TierType = "percentage"
	TierTypeFixed      TierType = "fixed"
)

type CommissionTier struct {
	ID        uuid.UUID       `json:"id"`
	Name      string          `json:"name"`
	MinAmount int64           `json:"minAmount"`
	MaxAmount *int64          `json:"maxAmount,omitempty"`
	Type      TierType        `json:"type"`
	Value     decimal.Decimal `json:"value"`
	Active    bool            `json:"active"`
	CreatedAt time.Time       `json:"createdAt"`
}

// Covers reports whether amount falls in [MinAmount, MaxAmount]; a nil
// MaxAmount is unbounded.
func (t CommissionTier) Covers(amount int64) bool {
	if amount < t.MinAmount {
		return false
	}
	return t.MaxAmount == nil || amount <= *t.MaxAmount
}

type WithholdingRate struct {
	ID        uuid.UUID       `json:"id"`
	Percent   decimal.Decimal `json:"percent"`
	Active    bool            `json:"active"`
	CreatedAt time.Time       `json:"createdAt"`
}

type JurisdictionTaxRate struct {
	Code              string          `json:"code"`
	LocalPercent      decimal.Decimal `json:"localPercent"`
	RegionalPercent   decimal.Decimal `json:"regionalPercent"`
	InterstatePercent decimal.Decimal `json:"interstatePercent"`
	UpdatedAt         time.Time       `json:"updatedAt"`
}

type PayerProfile struct {
	UserID           string `json:"userId"`
	JurisdictionCode string `json:"jurisdictionCode"`
	Email            string `json:"email"`
}

type CommissionRecord struct {
	ID           uuid.UUID  `json:"id"`
	SettlementID uuid.UUID  `json:"settlementId"`
	SessionID    string     `json:"sessionId"`
	PayeeID      string     `json:"payeeId"`
	TierID       *uuid.UUID `json:"tierId,omitempty"`
	Amount       int64      `json:"amount"`
	Withholding  int64      `json:"withholding"`
	CreatedAt    time.Time  `json:"createdAt"`
}

type Notification struct {
	ID          uuid.UUID       `json:"id"`
	RecipientID string          `json:"recipientId"`
	Type        string          `json:"type"`
	Title       string          `json:"title"`
	Body        string          `json:"body"`
	Data        json.RawMessage `json:"data,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
}

type InvoiceDocument struct {
	ID           uuid.UUID `json:"id"`
	SessionID    string    `json:"sessionId"`
	SettlementID uuid.UUID `json:"settlementId"`
	PayerID      string    `json:"payerId"`
	ObjectKey    string    `json:"objectKey"`
	ContentType  string    `json:"contentType"`
	Size         int64     `json:"size"`
	CreatedAt    time.Time `json:"createdAt"`
}
