package pasetotoken

import (
	"strings"

	paseto "aidanwoods.dev/go-paseto"
)

type Mode string

const (
	ModeLocal  Mode = "local"  // v4.local (encrypted, shared key)
	ModePublic Mode = "public" // v4.public (signed by the issuing service)
)

// Keys holds the material for one token mode. The settlement API only ever
// needs to verify; signing material is loaded for `system token`.
type Keys struct {
	Mode Mode

	Symmetric *paseto.V4SymmetricKey

	Secret *paseto.V4AsymmetricSecretKey
	Public *paseto.V4AsymmetricPublicKey

	verifyOnly bool
}

// KeyStrings is the hex form kept in authentication.paseto.
type KeyStrings struct {
	Mode Mode

	SymmetricHex string

	SecretHex string
	PublicHex string
}

func LoadKeys(in KeyStrings) (Keys, error) {
	switch in.Mode {
	case ModeLocal:
		return loadLocal(strings.TrimSpace(in.SymmetricHex))
	case ModePublic:
		return loadPublic(strings.TrimSpace(in.SecretHex), strings.TrimSpace(in.PublicHex))
	default:
		return Keys{}, ErrConfig{Msg: "unknown mode (use local|public)"}
	}
}

func loadLocal(symHex string) (Keys, error) {
	if symHex == "" {
		return Keys{}, ErrConfig{Msg: "local mode requires local_key_hex"}
	}
	k, err := paseto.V4SymmetricKeyFromHex(symHex)
	if err != nil {
		return Keys{}, ErrConfig{Msg: "invalid local_key_hex: " + err.Error()}
	}
	return Keys{Mode: ModeLocal, Symmetric: &k}, nil
}

// loadPublic accepts a public key alone (verify only), a secret key alone
// (public key derived), or both, in which case they must form a pair.
func loadPublic(secHex, pubHex string) (Keys, error) {
	out := Keys{Mode: ModePublic}

	if pubHex != "" {
		pk, err := paseto.NewV4AsymmetricPublicKeyFromHex(pubHex)
		if err != nil {
			return Keys{}, ErrConfig{Msg: "invalid public_key_hex: " + err.Error()}
		}
		out.Public = &pk
	}

	if secHex != "" {
		sk, err := paseto.NewV4AsymmetricSecretKeyFromHex(secHex)
		if err != nil {
			return Keys{}, ErrConfig{Msg: "invalid secret_key_hex: " + err.Error()}
		}
		derived := sk.Public()
		if out.Public != nil && out.Public.ExportHex() != derived.ExportHex() {
			return Keys{}, ErrConfig{Msg: "public_key_hex does not belong to secret_key_hex"}
		}
		out.Secret = &sk
		out.Public = &derived
	}

	if out.Public == nil {
		return Keys{}, ErrConfig{Msg: "public mode requires public_key_hex or secret_key_hex"}
	}
	return out, nil
}

// VerifyOnly returns a copy that can check tokens but not mint them. In
// public mode the secret key is dropped; a local key is shared by nature,
// so Issue refuses instead.
func (k Keys) VerifyOnly() Keys {
	k.Secret = nil
	k.verifyOnly = true
	return k
}

// CanSign reports whether Issue can use these keys.
func (k Keys) CanSign() bool {
	if k.verifyOnly {
		return false
	}
	switch k.Mode {
	case ModeLocal:
		return k.Symmetric != nil
	case ModePublic:
		return k.Secret != nil
	}
	return false
}

func NewLocalKeys() Keys {
	k := paseto.NewV4SymmetricKey()
	return Keys{Mode: ModeLocal, Symmetric: &k}
}

func NewPublicKeys() Keys {
	sk := paseto.NewV4AsymmetricSecretKey()
	pk := sk.Public()
	return Keys{Mode: ModePublic, Secret: &sk, Public: &pk}
}

// KeyHex renders keys in the form LoadKeys accepts, for `system keys`.
func (k Keys) KeyHex() KeyStrings {
	out := KeyStrings{Mode: k.Mode}
	if k.Symmetric != nil {
		out.SymmetricHex = k.Symmetric.ExportHex()
	}
	if k.Secret != nil {
		out.SecretHex = k.Secret.ExportHex()
	}
	if k.Public != nil {
		out.PublicHex = k.Public.ExportHex()
	}
	return out
}
