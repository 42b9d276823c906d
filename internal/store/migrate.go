package store

import (
	"context"
	"fmt"

	"entgo.io/ent/dialect"
	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"
)

const (
	numericRate  = "numeric(7,4)"
	numericFixed = "numeric(20,4)"
)

var (
	LedgerEntriesColumns = []*schema.Column{
		{Name: "id", Type: field.TypeUUID},
		{Name: "owner_id", Type: field.TypeString, Size: 64},
		{Name: "session_id", Type: field.TypeString, Size: 64},
		{Name: "settlement_id", Type: field.TypeUUID},
		{Name: "kind", Type: field.TypeEnum, Enums: []string{string(EntryKindDebit), string(EntryKindCredit)}},
		{Name: "purpose", Type: field.TypeString, Size: 32},
		{Name: "amount", Type: field.TypeInt64},
		{Name: "status", Type: field.TypeEnum, Enums: []string{
			string(EntryStatusPending), string(EntryStatusCompleted), string(EntryStatusFailed), string(EntryStatusReversed),
		}},
		{Name: "settlement_key", Type: field.TypeString, Size: 160, Nullable: true},
		{Name: "description", Type: field.TypeString, Size: 512},
		{Name: "metadata", Type: field.TypeJSON, Nullable: true},
		{Name: "reversal_reason", Type: field.TypeString, Size: 512, Nullable: true},
		{Name: "reversed_at", Type: field.TypeTime, Nullable: true},
		{Name: "created_at", Type: field.TypeTime},
		{Name: "updated_at", Type: field.TypeTime},
	}
	// LedgerEntriesTable holds the append-only ledger. The unique index on
	// settlement_key makes a second live debit for one session impossible;
	// NULL keys (reversed entries) never collide.
	LedgerEntriesTable = &schema.Table{
		Name:       "ledger_entries",
		Columns:    LedgerEntriesColumns,
		PrimaryKey: []*schema.Column{LedgerEntriesColumns[0]},
		Indexes: []*schema.Index{
			{Name: "ledgerentry_settlement_key", Unique: true, Columns: []*schema.Column{LedgerEntriesColumns[8]}},
			{Name: "ledgerentry_owner_id_status", Columns: []*schema.Column{LedgerEntriesColumns[1], LedgerEntriesColumns[7]}},
			{Name: "ledgerentry_session_id", Columns: []*schema.Column{LedgerEntriesColumns[2]}},
		},
	}

	CommissionTiersColumns = []*schema.Column{
		{Name: "id", Type: field.TypeUUID},
		{Name: "name", Type: field.TypeString, Size: 128},
		{Name: "min_amount", Type: field.TypeInt64, Default: 0},
		{Name: "max_amount", Type: field.TypeInt64, Nullable: true},
		{Name: "type", Type: field.TypeEnum, Enums: []string{string(TierTypePercentage), string(TierTypeFixed)}},
		{Name: "value", Type: field.TypeOther, SchemaType: map[string]string{dialect.Postgres: numericFixed}},
		{Name: "active", Type: field.TypeBool, Default: true},
		{Name: "created_at", Type: field.TypeTime},
	}
	CommissionTiersTable = &schema.Table{
		Name:       "commission_tiers",
		Columns:    CommissionTiersColumns,
		PrimaryKey: []*schema.Column{CommissionTiersColumns[0]},
		Indexes: []*schema.Index{
			{Name: "commissiontier_active_created_at", Columns: []*schema.Column{CommissionTiersColumns[6], CommissionTiersColumns[7]}},
		},
	}

	WithholdingRatesColumns = []*schema.Column{
		{Name: "id", Type: field.TypeUUID},
		{Name: "percent", Type: field.TypeOther, SchemaType: map[string]string{dialect.Postgres: numericRate}},
		{Name: "active", Type: field.TypeBool, Default: true},
		{Name: "created_at", Type: field.TypeTime},
	}
	WithholdingRatesTable = &schema.Table{
		Name:       "withholding_rates",
		Columns:    WithholdingRatesColumns,
		PrimaryKey: []*schema.Column{WithholdingRatesColumns[0]},
	}

	JurisdictionTaxRatesColumns = []*schema.Column{
		{Name: "code", Type: field.TypeString, Size: 32},
		{Name: "local_percent", Type: field.TypeOther, SchemaType: map[string]string{dialect.Postgres: numericRate}},
		{Name: "regional_percent", Type: field.TypeOther, SchemaType: map[string]string{dialect.Postgres: numericRate}},
		{Name: "interstate_percent", Type: field.TypeOther, SchemaType: map[string]string{dialect.Postgres: numericRate}},
		{Name: "updated_at", Type: field.TypeTime},
	}
	JurisdictionTaxRatesTable = &schema.Table{
		Name:       "jurisdiction_tax_rates",
		Columns:    JurisdictionTaxRatesColumns,
		PrimaryKey: []*schema.Column{JurisdictionTaxRatesColumns[0]},
	}

	PayerProfilesColumns = []*schema.Column{
		{Name: "user_id", Type: field.TypeString, Size: 64},
		{Name: "jurisdiction_code", Type: field.TypeString, Size: 32, Nullable: true},
		{Name: "email", Type: field.TypeString, Size: 255, Nullable: true},
		{Name: "updated_at", Type: field.TypeTime},
	}
	PayerProfilesTable = &schema.Table{
		Name:       "payer_profiles",
		Columns:    PayerProfilesColumns,
		PrimaryKey: []*schema.Column{PayerProfilesColumns[0]},
	}

	PlatformCommissionsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeUUID},
		{Name: "settlement_id", Type: field.TypeUUID, Unique: true},
		{Name: "session_id", Type: field.TypeString, Size: 64},
		{Name: "payee_id", Type: field.TypeString, Size: 64},
		{Name: "tier_id", Type: field.TypeUUID, Nullable: true},
		{Name: "amount", Type: field.TypeInt64},
		{Name: "withholding", Type: field.TypeInt64},
		{Name: "created_at", Type: field.TypeTime},
	}
	PlatformCommissionsTable = &schema.Table{
		Name:       "platform_commissions",
		Columns:    PlatformCommissionsColumns,
		PrimaryKey: []*schema.Column{PlatformCommissionsColumns[0]},
	}

	NotificationsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeUUID},
		{Name: "recipient_id", Type: field.TypeString, Size: 64},
		{Name: "type", Type: field.TypeString, Size: 64},
		{Name: "title", Type: field.TypeString, Size: 255},
		{Name: "body", Type: field.TypeString, Size: 2048},
		{Name: "data", Type: field.TypeJSON, Nullable: true},
		{Name: "read_at", Type: field.TypeTime, Nullable: true},
		{Name: "created_at", Type: field.TypeTime},
	}
	NotificationsTable = &schema.Table{
		Name:       "notifications",
		Columns:    NotificationsColumns,
		PrimaryKey: []*schema.Column{NotificationsColumns[0]},
		Indexes: []*schema.Index{
			{Name: "notification_recipient_id_created_at", Columns: []*schema.Column{NotificationsColumns[1], NotificationsColumns[7]}},
		},
	}

	InvoiceDocumentsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeUUID},
		{Name: "session_id", Type: field.TypeString, Size: 64, Unique: true},
		{Name: "settlement_id", Type: field.TypeUUID},
		{Name: "payer_id", Type: field.TypeString, Size: 64},
		{Name: "object_key", Type: field.TypeString, Size: 512},
		{Name: "content_type", Type: field.TypeString, Size: 64},
		{Name: "size", Type: field.TypeInt64},
		{Name: "created_at", Type: field.TypeTime},
	}
	InvoiceDocumentsTable = &schema.Table{
		Name:       "invoice_documents",
		Columns:    InvoiceDocumentsColumns,
		PrimaryKey: []*schema.Column{InvoiceDocumentsColumns[0]},
	}

	Tables = []*schema.Table{
		LedgerEntriesTable,
		CommissionTiersTable,
		WithholdingRatesTable,
		JurisdictionTaxRatesTable,
		PayerProfilesTable,
		PlatformCommissionsTable,
		NotificationsTable,
		InvoiceDocumentsTable,
	}
)

// MigrateOptions mirrors the database.migrations config section.
type MigrateOptions struct {
	// SafeMode forbids dropping columns and indexes.
	SafeMode bool
}

// Migrate creates or updates every settlement table.
func Migrate(ctx context.Context, drv dialect.Driver, opts MigrateOptions) error {
	m, err := schema.NewMigrate(drv,
		schema.WithDropColumn(!opts.SafeMode),
		schema.WithDropIndex(!opts.SafeMode),
		schema.WithForeignKeys(false),
	)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	if err := m.Create(ctx, Tables...); err != nil {
		return fmt.Errorf("migrate: create tables: %w", err)
	}
	return nil
}
