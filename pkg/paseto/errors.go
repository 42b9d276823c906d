package pasetotoken

import "fmt"

type ErrConfig struct{ Msg string }

func (e ErrConfig) Error() string { return "paseto config error: " + e.Msg }

type ErrInvalidToken struct{ Err error }

func (e ErrInvalidToken) Error() string { return fmt.Sprintf("invalid token: %v", e.Err) }
func (e ErrInvalidToken) Unwrap() error { return e.Err }

// ErrUnknownScope is returned when a token is requested for a scope the
// settlement API does not define.
type ErrUnknownScope struct{ Scope string }

func (e ErrUnknownScope) Error() string { return fmt.Sprintf("unknown scope %q", e.Scope) }
