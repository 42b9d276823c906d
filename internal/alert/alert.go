// Package alert delivers operator alerts for settlements that need a human.
package alert

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/sourcegraph/conc"
)

type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

type Alert struct {
	Kind      string         `json:"kind"`
	Severity  Severity       `json:"severity"`
	SessionID string         `json:"sessionId,omitempty"`
	Summary   string         `json:"summary"`
	Details   map[string]any `json:"details,omitempty"`
	At        time.Time      `json:"at"`
}

// Sender is what the settlement engine depends on.
type Sender interface {
	Send(ctx context.Context, a Alert)
}

// Channel is one delivery route.
type Channel interface {
	Name() string
	Deliver(ctx context.Context, a Alert) error
}

// Dispatcher logs every alert and fans it out to all channels in parallel.
// Delivery failures are logged; Send never fails.
type Dispatcher struct {
	channels []Channel
	timeout  time.Duration
	log      *slog.Logger
	now      func() time.Time
}

var _ Sender = (*Dispatcher)(nil)

func NewDispatcher(log *slog.Logger, timeout time.Duration, channels ...Channel) *Dispatcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Dispatcher{channels: channels, timeout: timeout, log: log, now: time.Now}
}

func (d *Dispatcher) Send(ctx context.Context, a Alert) {
	if a.At.IsZero() {
		a.At = d.now().UTC()
	}

	d.log.ErrorContext(ctx, "operator alert",
		"kind", a.Kind, "severity", a.Severity, "session_id", a.SessionID, "summary", a.Summary, "details", a.Details)

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
	defer cancel()

	var wg conc.WaitGroup
	for _, ch := range d.channels {
		wg.Go(func() {
			if err := ch.Deliver(ctx, a); err != nil {
				d.log.WarnContext(ctx, "alert: delivery failed", "channel", ch.Name(), "kind", a.Kind, "err", err)
			}
		})
	}
	if r := wg.WaitAndRecover(); r != nil {
		d.log.ErrorContext(ctx, "alert: channel panicked", "panic", r.Value, "stack", string(r.Stack))
	}
}

// Text renders an alert as plain text for email and logs.
func Text(a Alert) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s\n", strings.ToUpper(string(a.Severity)), a.Kind)
	fmt.Fprintf(&b, "%s\n\n", a.Summary)
	if a.SessionID != "" {
		fmt.Fprintf(&b, "session: %s\n", a.SessionID)
	}
	fmt.Fprintf(&b, "at: %s\n", a.At.Format(time.RFC3339))

	keys := make([]string, 0, len(a.Details))
	for k := range a.Details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "%s: %v\n", k, a.Details[k])
	}
	return b.String()
}

func encode(a Alert) ([]byte, error) {
	return json.Marshal(a)
}
