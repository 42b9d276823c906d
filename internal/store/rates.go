package store

import (
	"context"
	"database/sql"

	entsql "entgo.io/ent/dialect/sql"
)

// ActiveCommissionTiers returns every active tier, most recently created
// first. Range matching happens in the caller.
func (s *Store) ActiveCommissionTiers(ctx context.Context) ([]CommissionTier, error) {
	b := builder()
	q := b.Select("id", "name", "min_amount", "max_amount", "type", "value", "active", "created_at").
		From(b.Table("commission_tiers")).
		Where(entsql.EQ("active", true)).
		OrderBy(entsql.Desc("created_at"))

	var tiers []CommissionTier
	err := s.queryBuilder(ctx, q, func(rows *entsql.Rows) error {
		for rows.Next() {
			var (
				t   CommissionTier
				max sql.NullInt64
			)
			if err := rows.Scan(&t.ID, &t.Name, &t.MinAmount, &max, &t.Type, &t.Value, &t.Active, &t.CreatedAt); err != nil {
				return err
			}
			if max.Valid {
				v := max.Int64
				t.MaxAmount = &v
			}
			tiers = append(tiers, t)
		}
		return nil
	})
	if err != nil {
		return nil, mapError("active commission tiers", err)
	}
	return tiers, nil
}

// ActiveWithholdingRate returns the newest active rate, or ErrNotFound.
func (s *Store) ActiveWithholdingRate(ctx context.Context) (WithholdingRate, error) {
	b := builder()
	q := b.Select("id", "percent", "active", "created_at").
		From(b.Table("withholding_rates")).
		Where(entsql.EQ("active", true)).
		OrderBy(entsql.Desc("created_at")).
		Limit(1)

	var (
		rate  WithholdingRate
		found bool
	)
	err := s.queryBuilder(ctx, q, func(rows *entsql.Rows) error {
		if !rows.Next() {
			return nil
		}
		found = true
		return rows.Scan(&rate.ID, &rate.Percent, &rate.Active, &rate.CreatedAt)
	})
	if err != nil {
		return WithholdingRate{}, mapError("active withholding rate", err)
	}
	if !found {
		return WithholdingRate{}, ErrNotFound
	}
	return rate, nil
}

// PayerProfile returns the payer's recorded jurisdiction and contact, or
// ErrNotFound.
func (s *Store) PayerProfile(ctx context.Context, userID string) (PayerProfile, error) {
	b := builder()
	q := b.Select("user_id", "jurisdiction_code", "email").
		From(b.Table("payer_profiles")).
		Where(entsql.EQ("user_id", userID)).
		Limit(1)

	var (
		p     PayerProfile
		found bool
	)
	err := s.queryBuilder(ctx, q, func(rows *entsql.Rows) error {
		if !rows.Next() {
			return nil
		}
		var code, email sql.NullString
		if err := rows.Scan(&p.UserID, &code, &email); err != nil {
			return err
		}
		p.JurisdictionCode, p.Email = code.String, email.String
		found = true
		return nil
	})
	if err != nil {
		return PayerProfile{}, mapError("payer profile", err)
	}
	if !found {
		return PayerProfile{}, ErrNotFound
	}
	return p, nil
}

// JurisdictionRates returns the whole jurisdiction table. It is small and
// reading it in full lets the lookup run concurrently with the payer profile
// read.
func (s *Store) JurisdictionRates(ctx context.Context) ([]JurisdictionTaxRate, error) {
	b := builder()
	q := b.Select("code", "local_percent", "regional_percent", "interstate_percent", "updated_at").
		From(b.Table("jurisdiction_tax_rates")).
		OrderBy("code")

	var rates []JurisdictionTaxRate
	err := s.queryBuilder(ctx, q, func(rows *entsql.Rows) error {
		for rows.Next() {
			var r JurisdictionTaxRate
			if err := rows.Scan(&r.Code, &r.LocalPercent, &r.RegionalPercent, &r.InterstatePercent, &r.UpdatedAt); err != nil {
				return err
			}
			rates = append(rates, r)
		}
		return nil
	})
	if err != nil {
		return nil, mapError("jurisdiction rates", err)
	}
	return rates, nil
}
