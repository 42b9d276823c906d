package invoice

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"path"
	"time"

	"github.com/Alijeyrad/simorq_settlement/config"
	"github.com/Alijeyrad/simorq_settlement/internal/settlement"
	"github.com/Alijeyrad/simorq_settlement/internal/store"
	"github.com/Alijeyrad/simorq_settlement/pkg/email"
)

const contentType = "text/html; charset=utf-8"

// ObjectStore is where rendered invoices are kept. *s3.Client satisfies it.
type ObjectStore interface {
	Put(ctx context.Context, key, contentType string, body []byte) error
}

type Store interface {
	UpsertInvoice(ctx context.Context, d store.InvoiceDocument) error
}

type Profiles interface {
	PayerProfile(ctx context.Context, userID string) (store.PayerProfile, error)
}

// Recorder renders the payer's invoice, stores it and optionally mails it.
type Recorder struct {
	cfg      config.InvoiceConfig
	objects  ObjectStore
	store    Store
	profiles Profiles
	mailer   email.Sender
}

var _ settlement.Recorder = (*Recorder)(nil)

// New returns a Recorder. mailer and profiles are only used when invoice
// email is enabled.
func New(cfg config.InvoiceConfig, objects ObjectStore, st Store, profiles Profiles, mailer email.Sender) *Recorder {
	return &Recorder{cfg: cfg, objects: objects, store: st, profiles: profiles, mailer: mailer}
}

func (r *Recorder) Name() string { return "invoice" }

// Key is the object key of a session's invoice.
func Key(prefix, sessionID string) string {
	if prefix == "" {
		prefix = "invoices"
	}
	return path.Join(prefix, sessionID+".html")
}

func (r *Recorder) Record(ctx context.Context, s settlement.Settled) error {
	doc, err := Render(r.cfg.IssuerName, s)
	if err != nil {
		return err
	}

	key := Key(r.cfg.KeyPrefix, s.Request.SessionID)
	if err := r.objects.Put(ctx, key, contentType, doc); err != nil {
		return fmt.Errorf("store invoice: %w", err)
	}

	err = r.store.UpsertInvoice(ctx, store.InvoiceDocument{
		SessionID:    s.Request.SessionID,
		SettlementID: s.SettlementID,
		PayerID:      s.Request.PayerID,
		ObjectKey:    key,
		ContentType:  contentType,
		Size:         int64(len(doc)),
		CreatedAt:    s.SettledAt,
	})
	if err != nil {
		return fmt.Errorf("record invoice: %w", err)
	}

	if !r.cfg.EmailEnabled || r.mailer == nil || r.profiles == nil {
		return nil
	}
	return r.mail(ctx, s, doc)
}

func (r *Recorder) mail(ctx context.Context, s settlement.Settled, doc []byte) error {
	profile, err := r.profiles.PayerProfile(ctx, s.Request.PayerID)
	if errors.Is(err, store.ErrNotFound) || (err == nil && profile.Email == "") {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load payer profile: %w", err)
	}

	err = r.mailer.Send(ctx, email.Message{
		To:       []string{profile.Email},
		Subject:  "Invoice for session " + s.Request.SessionID,
		TextBody: fmt.Sprintf("Your session %s has been settled. Total charged: %d.", s.Request.SessionID, s.Breakdown.PayerTotal),
		HTMLBody: string(doc),
		Attachments: []email.Attachment{{
			Filename:    "invoice-" + s.Request.SessionID + ".html",
			ContentType: contentType,
			Data:        doc,
		}},
	})
	var disabled email.ErrDisabled
	if errors.As(err, &disabled) {
		return nil
	}
	return err
}

var page = template.Must(template.New("invoice").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Invoice {{.SessionID}}</title></head>
<body>
<h1>{{.Issuer}}</h1>
<p>Invoice for session <strong>{{.SessionID}}</strong>{{if .Category}} ({{.Category}}{{if .Duration}}, {{.Duration}} min{{end}}){{end}}</p>
<p>Settlement {{.SettlementID}} &middot; {{.Date}}</p>
<table>
<tr><td>Session fee</td><td>{{.B.BaseAmount}}</td></tr>
{{if .B.LocalTax}}<tr><td>Local tax</td><td>{{.B.LocalTax}}</td></tr>{{end}}
{{if .B.RegionalTax}}<tr><td>Regional tax</td><td>{{.B.RegionalTax}}</td></tr>{{end}}
{{if .B.InterstateTax}}<tr><td>Interstate tax</td><td>{{.B.InterstateTax}}</td></tr>{{end}}
<tr><td><strong>Total</strong></td><td><strong>{{.B.PayerTotal}}</strong></td></tr>
</table>
</body>
</html>
`))

type pageData struct {
	Issuer       string
	SessionID    string
	SettlementID string
	Category     string
	Duration     int
	Date         string
	B            settlement.Breakdown
}

// Render produces the payer-facing invoice document.
func Render(issuer string, s settlement.Settled) ([]byte, error) {
	if issuer == "" {
		issuer = "Simorq"
	}
	var buf bytes.Buffer
	err := page.Execute(&buf, pageData{
		Issuer:       issuer,
		SessionID:    s.Request.SessionID,
		SettlementID: s.SettlementID.String(),
		Category:     s.Request.Category,
		Duration:     s.Request.DurationMinutes,
		Date:         s.SettledAt.UTC().Format(time.DateOnly),
		B:            s.Breakdown,
	})
	if err != nil {
		return nil, fmt.Errorf("render invoice: %w", err)
	}
	return buf.Bytes(), nil
}
