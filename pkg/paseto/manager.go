package pasetotoken

import (
	"time"

	"github.com/Alijeyrad/simorq_settlement/config"
)

// NewPasetoManager creates a manager that can issue and verify tokens. It
// backs the `system token` command.
func NewPasetoManager(cfg *config.Config) (*Manager, error) {
	keys, err := keysFromConfig(cfg.Authentication.Paseto)
	if err != nil {
		return nil, err
	}
	return newFromConfig(cfg.Authentication.Paseto, keys)
}

// NewVerifier creates the manager the settlement API authenticates callers
// with. It never holds signing material.
func NewVerifier(cfg *config.Config) (*Manager, error) {
	keys, err := keysFromConfig(cfg.Authentication.Paseto)
	if err != nil {
		return nil, err
	}
	return newFromConfig(cfg.Authentication.Paseto, keys.VerifyOnly())
}

func keysFromConfig(p config.PasetoConfig) (Keys, error) {
	return LoadKeys(KeyStrings{
		Mode:         Mode(p.Mode),
		SymmetricHex: p.LocalKeyHex,
		SecretHex:    p.SecretKeyHex,
		PublicHex:    p.PublicKeyHex,
	})
}

func newFromConfig(p config.PasetoConfig, keys Keys) (*Manager, error) {
	return New(Config{
		Mode:     Mode(p.Mode),
		Issuer:   p.Issuer,
		Audience: p.Audience,
		TTL:      time.Duration(p.AccessTTLMinutes) * time.Minute,
	}, keys)
}
