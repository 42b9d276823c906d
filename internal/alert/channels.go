package alert

import (
	"context"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/Alijeyrad/simorq_settlement/pkg/constants"
	"github.com/Alijeyrad/simorq_settlement/pkg/email"
)

// NATSChannel publishes alerts on simorq.alert.<kind>.
type NATSChannel struct {
	nc *nats.Conn
}

func NewNATSChannel(nc *nats.Conn) *NATSChannel { return &NATSChannel{nc: nc} }

func (c *NATSChannel) Name() string { return "nats" }

func (c *NATSChannel) Deliver(_ context.Context, a Alert) error {
	data, err := encode(a)
	if err != nil {
		return fmt.Errorf("encode alert: %w", err)
	}
	return c.nc.Publish(constants.SubjectAlertPrefix+"."+a.Kind, data)
}

// EmailChannel mails alerts to the configured operator addresses.
type EmailChannel struct {
	sender email.Sender
	to     []string
}

func NewEmailChannel(sender email.Sender, to []string) *EmailChannel {
	return &EmailChannel{sender: sender, to: to}
}

func (c *EmailChannel) Name() string { return "email" }

func (c *EmailChannel) Deliver(ctx context.Context, a Alert) error {
	return c.sender.Send(ctx, email.Message{
		To:       c.to,
		Subject:  fmt.Sprintf("[settlement %s] %s", a.Severity, a.Kind),
		TextBody: Text(a),
	})
}

// SMSSender is satisfied by pkg/sms.Client.
type SMSSender interface {
	Send(ctx context.Context, phoneNumber, templateID string, params map[string]string) error
}

// SMSChannel texts operators. Only critical alerts are sent this way.
type SMSChannel struct {
	sender     SMSSender
	numbers    []string
	templateID string
}

func NewSMSChannel(sender SMSSender, numbers []string, templateID string) *SMSChannel {
	return &SMSChannel{sender: sender, numbers: numbers, templateID: templateID}
}

func (c *SMSChannel) Name() string { return "sms" }

func (c *SMSChannel) Deliver(ctx context.Context, a Alert) error {
	if a.Severity != SeverityCritical {
		return nil
	}
	params := map[string]string{"kind": a.Kind, "session": a.SessionID}

	var errs []error
	for _, n := range c.numbers {
		if err := c.sender.Send(ctx, n, c.templateID, params); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", n, err))
		}
	}
	return errors.Join(errs...)
}
