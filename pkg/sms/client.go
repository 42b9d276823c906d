package sms

import (
	"context"
	"fmt"
	"sort"

	"github.com/arsmn/go-smsir/smsir"

	"github.com/Alijeyrad/simorq_settlement/config"
)

// Client sends templated SMS through sms.ir. Operators receive settlement
// alerts this way.
type Client struct {
	client  *smsir.Client
	enabled bool
}

// NewFromConfig creates a new SMS client from the application configuration.
// A disabled client accepts every Send and does nothing.
func NewFromConfig(cfg config.SMSConfig) (*Client, error) {
	if !cfg.Enabled {
		return &Client{enabled: false}, nil
	}

	if cfg.SMSIR.APIKey == "" {
		return nil, fmt.Errorf("sms.ir API key required when SMS enabled")
	}

	return &Client{
		client:  smsir.NewClient().WithAuthentication(cfg.SMSIR.APIKey, cfg.SMSIR.SecretKey),
		enabled: true,
	}, nil
}

// Send delivers an ultra-fast template message. Params fill the template's
// named placeholders.
func (c *Client) Send(ctx context.Context, phoneNumber, templateID string, params map[string]string) error {
	if !c.enabled {
		return nil
	}
	if phoneNumber == "" {
		return fmt.Errorf("phone number is required")
	}
	if templateID == "" {
		return fmt.Errorf("template ID is required")
	}

	req := &smsir.UltraFastSendRequest{
		Mobile:     phoneNumber,
		TemplateID: templateID,
		Parameters: templateParams(params),
	}

	if _, err := c.client.Verification.UltraFastSend(ctx, req); err != nil {
		return fmt.Errorf("sms.ir send failed: %w", err)
	}
	return nil
}

func (c *Client) IsEnabled() bool {
	return c.enabled
}

// templateParams orders parameters by key so requests are deterministic.
func templateParams(params map[string]string) []smsir.UltraFastParameter {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]smsir.UltraFastParameter, 0, len(keys))
	for _, k := range keys {
		out = append(out, smsir.UltraFastParameter{Key: k, Value: params[k]})
	}
	return out
}
