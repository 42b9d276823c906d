package email

import "fmt"

type ErrDisabled struct{}

func (e ErrDisabled) Error() string { return "email is disabled" }

type ErrInvalidMessage struct{ Reason string }

func (e ErrInvalidMessage) Error() string { return "invalid email message: " + e.Reason }

// ErrSend carries the subject so a failed alert or invoice mail can be told
// apart in logs.
type ErrSend struct {
	Subject string
	Err     error
}

func (e ErrSend) Error() string { return fmt.Sprintf("email %q not sent: %v", e.Subject, e.Err) }
func (e ErrSend) Unwrap() error { return e.Err }
