package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/dkeye/CineMatch/internal/auth"
	"github.com/dkeye/CineMatch/internal/config"
	"github.com/dkeye/CineMatch/internal/domain"
)

// newTokenCmd mints identity tokens with the configured secret, standing
// in for the identity service during development.
func newTokenCmd() *cobra.Command {
	var id, name string
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Print a signed participant token.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cmd.Flags())
			if err != nil {
				return err
			}
			if id == "" {
				id = uuid.NewString()
			}
			p, err := domain.NewParticipant(id, name)
			if err != nil {
				return err
			}
			tokens, err := auth.NewTokenService(auth.Config{
				Secret: cfg.Auth.Secret,
				Issuer: cfg.Auth.Issuer,
				TTL:    cfg.Auth.TokenTTL,
			})
			if err != nil {
				return err
			}
			tok, err := tokens.Issue(p)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), tok)
			return err
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "participant id (default: random uuid)")
	cmd.Flags().StringVar(&name, "name", "", "participant display name")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}
