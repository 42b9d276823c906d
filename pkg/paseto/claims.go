package pasetotoken

import (
	"slices"
	"time"
)

const (
	ScopeSettle = "settlement:write"
	ScopeRead   = "settlement:read"
)

// KnownScopes lists every scope a service token may carry.
var KnownScopes = []string{ScopeSettle, ScopeRead}

// Claims identifies the calling service.
type Claims struct {
	TokenID   string
	Service   string
	Scopes    []string
	ExpiresAt time.Time
}

func (c *Claims) Caller() string { return c.Service }

func (c *Claims) HasScope(scope string) bool {
	return slices.Contains(c.Scopes, scope)
}
