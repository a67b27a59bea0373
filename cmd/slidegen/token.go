package main

import (
	"errors"
	"fmt"

	"github.com/phrazzld/slidegen/internal/service/auth"
	"github.com/spf13/cobra"
)

func newTokenCommand(g *globalOptions) *cobra.Command {
	var subject string

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for the API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !g.cfg.Auth.Enabled() {
				return errors.New("auth.jwt_secret is not set; the API does not require tokens")
			}
			svc, err := auth.NewJWTService(g.cfg.Auth)
			if err != nil {
				return err
			}
			token, err := svc.GenerateToken(cmd.Context(), subject)
			if err != nil {
				return fmt.Errorf("failed to generate token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "slidegen-cli", "token subject")
	return cmd
}
