package email

import "context"

// Sender is the subset of Client the alert and invoice mailers depend on.
type Sender interface {
	Send(ctx context.Context, m Message) error
}

type Message struct {
	To          []string
	CC          []string
	Subject     string
	TextBody    string
	HTMLBody    string
	Headers     map[string]string
	Attachments []Attachment
}

// Attachment is an in-memory file attached to a message.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}
