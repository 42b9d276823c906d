package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"
)

const ledgerTable = "ledger_entries"

var ledgerColumns = []string{
	"id", "owner_id", "session_id", "settlement_id", "kind", "purpose", "amount", "status",
	"settlement_key", "description", "metadata", "reversal_reason", "reversed_at", "created_at", "updated_at",
}

func scanLedgerEntry(rows *entsql.Rows) (LedgerEntry, error) {
	var (
		e              LedgerEntry
		settlementKey  sql.NullString
		reversalReason sql.NullString
		reversedAt     sql.NullTime
		metadata       []byte
	)
	err := rows.Scan(
		&e.ID, &e.OwnerID, &e.SessionID, &e.SettlementID, &e.Kind, &e.Purpose, &e.Amount, &e.Status,
		&settlementKey, &e.Description, &metadata, &reversalReason, &reversedAt, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return LedgerEntry{}, err
	}
	e.SettlementKey = settlementKey.String
	e.ReversalReason = reversalReason.String
	if reversedAt.Valid {
		t := reversedAt.Time
		e.ReversedAt = &t
	}
	if len(metadata) > 0 {
		e.Metadata = metadata
	}
	return e, nil
}

func (s *Store) selectOneEntry(ctx context.Context, op string, where *entsql.Predicate) (LedgerEntry, error) {
	b := builder()
	q := b.Select(ledgerColumns...).From(b.Table(ledgerTable)).Where(where).Limit(1)

	var (
		entry LedgerEntry
		found bool
	)
	err := s.queryBuilder(ctx, q, func(rows *entsql.Rows) error {
		if !rows.Next() {
			return nil
		}
		e, err := scanLedgerEntry(rows)
		if err != nil {
			return err
		}
		entry, found = e, true
		return nil
	})
	if err != nil {
		return LedgerEntry{}, mapError(op, err)
	}
	if !found {
		return LedgerEntry{}, ErrNotFound
	}
	return entry, nil
}

// FindLiveEntry returns the completed entry holding settlementKey.
func (s *Store) FindLiveEntry(ctx context.Context, settlementKey string) (LedgerEntry, error) {
	return s.selectOneEntry(ctx, "find live entry", entsql.And(
		entsql.EQ("settlement_key", settlementKey),
		entsql.EQ("status", string(EntryStatusCompleted)),
	))
}

func (s *Store) GetEntry(ctx context.Context, id uuid.UUID) (LedgerEntry, error) {
	return s.selectOneEntry(ctx, "get entry", entsql.EQ("id", id))
}

// Balance is the sum of the owner's completed signed amounts.
func (s *Store) Balance(ctx context.Context, ownerID string) (int64, error) {
	const q = `SELECT COALESCE(SUM("amount"), 0) FROM "ledger_entries" WHERE "owner_id" = $1 AND "status" = $2`

	var balance int64
	err := s.query(ctx, q, []any{ownerID, string(EntryStatusCompleted)}, func(rows *entsql.Rows) error {
		if !rows.Next() {
			return nil
		}
		return rows.Scan(&balance)
	})
	if err != nil {
		return 0, mapError("balance", err)
	}
	return balance, nil
}

// guardedDebitSQL inserts the entry only when the owner's completed balance
// covers the debit. Casts are required because the parameters appear in a
// SELECT list rather than a VALUES clause.
var guardedDebitSQL = `INSERT INTO "ledger_entries" ("id", "owner_id", "session_id", "settlement_id", "kind", "purpose", "amount", "status", "settlement_key", "description", "metadata", "created_at", "updated_at")
SELECT $1::uuid, $2::text, $3::text, $4::uuid, $5::text, $6::text, $7::bigint, $8::text, $9::text, $10::text, $11::jsonb, $12::timestamptz, $12::timestamptz
WHERE (SELECT COALESCE(SUM("amount"), 0) FROM "ledger_entries" WHERE "owner_id" = $2::text AND "status" = $13::text) >= $14::bigint`

// AppendGuardedDebit writes a debit entry (negative Amount) conditional on the
// owner's balance covering it. It returns ErrInsufficientBalance when the
// guard rejects the insert and ErrDuplicateEntry when the settlement key is
// already live.
func (s *Store) AppendGuardedDebit(ctx context.Context, e LedgerEntry) (LedgerEntry, error) {
	if e.Amount >= 0 {
		return LedgerEntry{}, fmt.Errorf("append guarded debit: amount must be negative, got %d", e.Amount)
	}
	e = s.prepareEntry(e)

	n, err := s.exec(ctx, guardedDebitSQL, []any{
		e.ID, e.OwnerID, e.SessionID, e.SettlementID, string(e.Kind), string(e.Purpose), e.Amount,
		string(e.Status), nullString(e.SettlementKey), e.Description, jsonArg(e.Metadata), e.CreatedAt,
		string(EntryStatusCompleted), -e.Amount,
	})
	if err != nil {
		return LedgerEntry{}, mapError("append guarded debit", err)
	}
	if n == 0 {
		return LedgerEntry{}, ErrInsufficientBalance
	}
	return e, nil
}

// AppendEntry inserts an entry unconditionally.
func (s *Store) AppendEntry(ctx context.Context, e LedgerEntry) (LedgerEntry, error) {
	e = s.prepareEntry(e)

	q := builder().Insert(ledgerTable).
		Columns("id", "owner_id", "session_id", "settlement_id", "kind", "purpose", "amount", "status",
			"settlement_key", "description", "metadata", "created_at", "updated_at").
		Values(e.ID, e.OwnerID, e.SessionID, e.SettlementID, string(e.Kind), string(e.Purpose), e.Amount,
			string(e.Status), nullString(e.SettlementKey), e.Description, jsonArg(e.Metadata), e.CreatedAt, e.UpdatedAt)

	if _, err := s.execBuilder(ctx, q); err != nil {
		return LedgerEntry{}, mapError("append entry", err)
	}
	return e, nil
}

func (s *Store) prepareEntry(e LedgerEntry) LedgerEntry {
	if e.ID == uuid.Nil {
		e.ID = uuid.Must(uuid.NewV7())
	}
	if e.Status == "" {
		e.Status = EntryStatusCompleted
	}
	now := s.now()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = e.CreatedAt
	return e
}

// ReverseEntry marks a completed entry reversed and releases its settlement
// key. Reversing an already reversed entry succeeds, so callers may retry.
func (s *Store) ReverseEntry(ctx context.Context, id uuid.UUID, reason string) error {
	now := s.now()
	q := builder().Update(ledgerTable).
		Set("status", string(EntryStatusReversed)).
		SetNull("settlement_key").
		Set("reversal_reason", reason).
		Set("reversed_at", now).
		Set("updated_at", now).
		Where(entsql.And(
			entsql.EQ("id", id),
			entsql.EQ("status", string(EntryStatusCompleted)),
		))

	n, err := s.execBuilder(ctx, q)
	if err != nil {
		return mapError("reverse entry", err)
	}
	if n > 0 {
		return nil
	}

	e, err := s.GetEntry(ctx, id)
	if err != nil {
		return fmt.Errorf("reverse entry %s: %w", id, err)
	}
	if e.Status == EntryStatusReversed {
		return nil
	}
	return fmt.Errorf("reverse entry %s: unexpected status %q", id, e.Status)
}

// ListEntries pages through an owner's entries, newest first.
func (s *Store) ListEntries(ctx context.Context, ownerID string, limit, offset int) ([]LedgerEntry, int, error) {
	b := builder()

	var total int
	count := b.Select(entsql.Count("*")).From(b.Table(ledgerTable)).Where(entsql.EQ("owner_id", ownerID))
	err := s.queryBuilder(ctx, count, func(rows *entsql.Rows) error {
		if !rows.Next() {
			return nil
		}
		return rows.Scan(&total)
	})
	if err != nil {
		return nil, 0, mapError("count entries", err)
	}

	q := b.Select(ledgerColumns...).From(b.Table(ledgerTable)).
		Where(entsql.EQ("owner_id", ownerID)).
		OrderBy(entsql.Desc("created_at"), entsql.Desc("id")).
		Limit(limit).
		Offset(offset)

	entries := make([]LedgerEntry, 0, limit)
	err = s.queryBuilder(ctx, q, func(rows *entsql.Rows) error {
		for rows.Next() {
			e, err := scanLedgerEntry(rows)
			if err != nil {
				return err
			}
			entries = append(entries, e)
		}
		return nil
	})
	if err != nil {
		return nil, 0, mapError("list entries", err)
	}
	return entries, total, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: strings.TrimSpace(s) != ""}
}

func jsonArg(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}

// IsNotFound reports whether err is ErrNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
