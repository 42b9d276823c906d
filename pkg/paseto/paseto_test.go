package pasetotoken

import (
	"errors"
	"testing"
	"time"
)

func newTestManager(t *testing.T, keys Keys) *Manager {
	t.Helper()
	m, err := New(Config{Mode: keys.Mode, Issuer: "simorq", Audience: "settlement", TTL: time.Minute}, keys)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return m
}

func TestIssueVerifyRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		keys Keys
	}{
		{"local", NewLocalKeys()},
		{"public", NewPublicKeys()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestManager(t, tt.keys)

			tok, err := m.Issue("session-lifecycle", ScopeSettle)
			if err != nil {
				t.Fatalf("Issue() error = %v", err)
			}

			claims, err := m.Verify(tok)
			if err != nil {
				t.Fatalf("Verify() error = %v", err)
			}
			if claims.Caller() != "session-lifecycle" {
				t.Errorf("Caller() = %q", claims.Caller())
			}
			if !claims.HasScope(ScopeSettle) || claims.HasScope(ScopeRead) {
				t.Errorf("Scopes = %v", claims.Scopes)
			}
		})
	}
}

func TestVerifyRejectsForeignKey(t *testing.T) {
	issuer := newTestManager(t, NewLocalKeys())
	verifier := newTestManager(t, NewLocalKeys())

	tok, err := issuer.Issue("svc")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	_, err = verifier.Verify(tok)
	var invalid ErrInvalidToken
	if !errors.As(err, &invalid) {
		t.Fatalf("Verify() err = %v, want ErrInvalidToken", err)
	}
}

func TestLoadKeysRoundTrip(t *testing.T) {
	generated := NewPublicKeys()

	loaded, err := LoadKeys(KeyStrings{Mode: ModePublic, PublicHex: generated.KeyHex().PublicHex})
	if err != nil {
		t.Fatalf("LoadKeys() error = %v", err)
	}
	if loaded.Secret != nil {
		t.Error("public-only load should not carry a secret key")
	}

	if _, err := LoadKeys(KeyStrings{Mode: "jwt"}); err == nil {
		t.Error("expected error for unknown mode")
	}
}

func TestIssueRejectsUnknownScope(t *testing.T) {
	m := newTestManager(t, NewLocalKeys())

	_, err := m.Issue("session-lifecycle", ScopeSettle, "ledger:admin")
	var unknown ErrUnknownScope
	if !errors.As(err, &unknown) || unknown.Scope != "ledger:admin" {
		t.Fatalf("Issue() err = %v, want ErrUnknownScope", err)
	}
}

func TestLoadKeysPublicPair(t *testing.T) {
	a, b := NewPublicKeys().KeyHex(), NewPublicKeys().KeyHex()

	tests := []struct {
		name     string
		in       KeyStrings
		wantErr  bool
		wantSign bool
	}{
		{name: "secret derives public", in: KeyStrings{Mode: ModePublic, SecretHex: a.SecretHex}, wantSign: true},
		{name: "matching pair", in: KeyStrings{Mode: ModePublic, SecretHex: a.SecretHex, PublicHex: a.PublicHex}, wantSign: true},
		{name: "public only", in: KeyStrings{Mode: ModePublic, PublicHex: a.PublicHex}},
		{name: "mismatched pair", in: KeyStrings{Mode: ModePublic, SecretHex: a.SecretHex, PublicHex: b.PublicHex}, wantErr: true},
		{name: "nothing", in: KeyStrings{Mode: ModePublic}, wantErr: true},
		{name: "local without key", in: KeyStrings{Mode: ModeLocal}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			keys, err := LoadKeys(tt.in)
			if tt.wantErr {
				var cfgErr ErrConfig
				if !errors.As(err, &cfgErr) {
					t.Fatalf("LoadKeys() err = %v, want ErrConfig", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("LoadKeys() error = %v", err)
			}
			if keys.Public == nil || keys.Public.ExportHex() != a.PublicHex {
				t.Errorf("public key not loaded from %+v", tt.in)
			}
			if keys.CanSign() != tt.wantSign {
				t.Errorf("CanSign() = %v, want %v", keys.CanSign(), tt.wantSign)
			}
		})
	}
}

func TestVerifyOnlyKeys(t *testing.T) {
	for _, keys := range []Keys{NewLocalKeys(), NewPublicKeys()} {
		t.Run(string(keys.Mode), func(t *testing.T) {
			issuer := newTestManager(t, keys)
			verifier := newTestManager(t, keys.VerifyOnly())

			tok, err := issuer.Issue("session-lifecycle", ScopeRead)
			if err != nil {
				t.Fatalf("Issue() error = %v", err)
			}
			if _, err := verifier.Verify(tok); err != nil {
				t.Fatalf("Verify() error = %v", err)
			}

			var cfgErr ErrConfig
			if _, err := verifier.Issue("session-lifecycle", ScopeRead); !errors.As(err, &cfgErr) {
				t.Fatalf("verify-only Issue() err = %v, want ErrConfig", err)
			}
			if keys.Mode == ModePublic && keys.VerifyOnly().Secret != nil {
				t.Error("VerifyOnly kept the secret key")
			}
		})
	}
}
