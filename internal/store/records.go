package store

import (
	"context"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"
)

// InsertCommission records the platform's cut for a settlement. A second
// insert for the same settlement is ignored, so recorder retries are safe.
func (s *Store) InsertCommission(ctx context.Context, r CommissionRecord) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.Must(uuid.NewV7())
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = s.now()
	}

	q := builder().Insert("platform_commissions").
		Columns("id", "settlement_id", "session_id", "payee_id", "tier_id", "amount", "withholding", "created_at").
		Values(r.ID, r.SettlementID, r.SessionID, r.PayeeID, r.TierID, r.Amount, r.Withholding, r.CreatedAt).
		OnConflict(entsql.ConflictColumns("settlement_id"), entsql.DoNothing())

	if _, err := s.execBuilder(ctx, q); err != nil {
		return mapError("insert commission", err)
	}
	return nil
}

// InsertNotification stores an in-app notification. Callers derive the ID
// from the settlement so a retried insert is a no-op.
func (s *Store) InsertNotification(ctx context.Context, n Notification) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.Must(uuid.NewV7())
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = s.now()
	}

	q := builder().Insert("notifications").
		Columns("id", "recipient_id", "type", "title", "body", "data", "created_at").
		Values(n.ID, n.RecipientID, n.Type, n.Title, n.Body, jsonArg(n.Data), n.CreatedAt).
		OnConflict(entsql.ConflictColumns("id"), entsql.DoNothing())

	if _, err := s.execBuilder(ctx, q); err != nil {
		return mapError("insert notification", err)
	}
	return nil
}

// UpsertInvoice records where a session's invoice document was stored.
func (s *Store) UpsertInvoice(ctx context.Context, d InvoiceDocument) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.Must(uuid.NewV7())
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = s.now()
	}

	q := builder().Insert("invoice_documents").
		Columns("id", "session_id", "settlement_id", "payer_id", "object_key", "content_type", "size", "created_at").
		Values(d.ID, d.SessionID, d.SettlementID, d.PayerID, d.ObjectKey, d.ContentType, d.Size, d.CreatedAt).
		OnConflict(
			entsql.ConflictColumns("session_id"),
			entsql.ResolveWith(func(u *entsql.UpdateSet) {
				u.SetExcluded("settlement_id")
				u.SetExcluded("object_key")
				u.SetExcluded("content_type")
				u.SetExcluded("size")
			}),
		)

	if _, err := s.execBuilder(ctx, q); err != nil {
		return mapError("upsert invoice", err)
	}
	return nil
}

// InvoiceBySession returns the invoice document stored for a session.
func (s *Store) InvoiceBySession(ctx context.Context, sessionID string) (InvoiceDocument, error) {
	b := builder()
	q := b.Select("id", "session_id", "settlement_id", "payer_id", "object_key", "content_type", "size", "created_at").
		From(b.Table("invoice_documents")).
		Where(entsql.EQ("session_id", sessionID)).
		Limit(1)

	var (
		d     InvoiceDocument
		found bool
	)
	err := s.queryBuilder(ctx, q, func(rows *entsql.Rows) error {
		if !rows.Next() {
			return nil
		}
		if err := rows.Scan(&d.ID, &d.SessionID, &d.SettlementID, &d.PayerID, &d.ObjectKey, &d.ContentType, &d.Size, &d.CreatedAt); err != nil {
			return err
		}
		found = true
		return nil
	})
	if err != nil {
		return InvoiceDocument{}, mapError("get invoice", err)
	}
	if !found {
		return InvoiceDocument{}, ErrNotFound
	}
	return d, nil
}
