package system

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	pasetotoken "github.com/Alijeyrad/simorq_settlement/pkg/paseto"
)

func NewKeysCommand() *cobra.Command {
	var mode string

	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Generate PASETO keys for authentication.paseto",
		RunE: func(cmd *cobra.Command, args []string) error {
			var keys pasetotoken.Keys
			switch pasetotoken.Mode(mode) {
			case pasetotoken.ModeLocal:
				keys = pasetotoken.NewLocalKeys()
			case pasetotoken.ModePublic:
				keys = pasetotoken.NewPublicKeys()
			default:
				return fmt.Errorf("unknown mode %q (use local|public)", mode)
			}

			hex := keys.KeyHex()
			fmt.Printf("mode: %s\n", hex.Mode)
			if hex.SymmetricHex != "" {
				fmt.Printf("local_key_hex: %s\n", hex.SymmetricHex)
			}
			if hex.SecretHex != "" {
				fmt.Printf("secret_key_hex: %s\n", hex.SecretHex)
				fmt.Printf("public_key_hex: %s\n", hex.PublicHex)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&mode, "mode", "public", "key mode: local or public")

	return cmd
}

func NewTokenCommand() *cobra.Command {
	var (
		service string
		scopes  []string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a service token for a caller of the settlement API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := readConfig(cmd)
			if err != nil {
				return err
			}
			if ttl > 0 {
				cfg.Authentication.Paseto.AccessTTLMinutes = int(ttl.Minutes())
			}

			mgr, err := pasetotoken.NewPasetoManager(cfg)
			if err != nil {
				return err
			}
			tok, err := mgr.Issue(service, scopes...)
			if err != nil {
				return err
			}
			fmt.Println(tok)
			return nil
		},
	}

	cmd.Flags().StringVar(&service, "service", "", "calling service name")
	cmd.Flags().StringSliceVar(&scopes, "scope", []string{pasetotoken.ScopeSettle, pasetotoken.ScopeRead},
		"scopes to grant ("+strings.Join(pasetotoken.KnownScopes, ", ")+")")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (defaults to authentication.paseto.access_ttl_minutes)")
	_ = cmd.MarkFlagRequired("service")

	return cmd
}
