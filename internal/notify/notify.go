package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/Alijeyrad/simorq_settlement/internal/settlement"
	"github.com/Alijeyrad/simorq_settlement/internal/store"
	"github.com/Alijeyrad/simorq_settlement/pkg/constants"
)

const (
	TypePaymentCharged  = "settlement_payment_charged"
	TypeEarningReceived = "settlement_earning_received"
)

// Store persists in-app notifications. Inserting an existing id is a no-op.
type Store interface {
	InsertNotification(ctx context.Context, n store.Notification) error
}

// Publisher pushes a realtime hint to connected clients. *nats.Conn
// satisfies it.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// Recorder notifies both parties of a settlement.
type Recorder struct {
	store Store
	pub   Publisher
	p     *message.Printer
}

var _ settlement.Recorder = (*Recorder)(nil)

// New returns a Recorder. pub may be nil.
func New(s Store, pub Publisher) *Recorder {
	return &Recorder{store: s, pub: pub, p: message.NewPrinter(language.English)}
}

func (r *Recorder) Name() string { return "notification" }

func (r *Recorder) Record(ctx context.Context, s settlement.Settled) error {
	for _, n := range r.build(s) {
		if err := r.store.InsertNotification(ctx, n); err != nil {
			return fmt.Errorf("insert %s notification: %w", n.Type, err)
		}
		if r.pub != nil {
			// Realtime delivery is a hint; the stored row is the record.
			_ = r.pub.Publish(constants.SubjectNotificationPrefix+"."+n.RecipientID, []byte(n.ID.String()))
		}
	}
	return nil
}

// build derives the payer and payee notifications. Ids are derived from the
// settlement so a retried Record writes the same rows.
func (r *Recorder) build(s settlement.Settled) []store.Notification {
	b := s.Breakdown
	data, _ := json.Marshal(map[string]any{
		"session_id":    s.Request.SessionID,
		"settlement_id": s.SettlementID.String(),
	})

	return []store.Notification{
		{
			ID:          uuid.NewSHA1(s.SettlementID, []byte(TypePaymentCharged)),
			RecipientID: s.Request.PayerID,
			Type:        TypePaymentCharged,
			Title:       "Session payment completed",
			Body: r.p.Sprintf("You were charged %d for session %s (%d base + %d tax).",
				b.PayerTotal, s.Request.SessionID, b.BaseAmount, b.TotalTax),
			Data:      data,
			CreatedAt: s.SettledAt,
		},
		{
			ID:          uuid.NewSHA1(s.SettlementID, []byte(TypeEarningReceived)),
			RecipientID: s.Request.PayeeID,
			Type:        TypeEarningReceived,
			Title:       "Session earning received",
			Body: r.p.Sprintf("You earned %d for session %s after %d commission and %d withholding.",
				b.PayeeNet, s.Request.SessionID, b.Commission, b.Withholding),
			Data:      data,
			CreatedAt: s.SettledAt,
		},
	}
}
