package main

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"vaultswap.backend/internal/interfaces/http/middleware"
	"vaultswap.backend/pkg/jwt"
)

func newTokenCmd(state *cli) *cobra.Command {
	var (
		userID string
		role   string
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an access token for a user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, err := uuid.Parse(userID)
			if err != nil {
				return fmt.Errorf("invalid --user: %w", err)
			}
			if state.cfg.JWT.Secret == "" {
				return errors.New("jwt secret is empty")
			}

			token, err := jwt.NewJWTService(state.cfg.JWT.Secret, state.cfg.JWT.AccessExpiry).GenerateToken(id, role)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id (uuid)")
	cmd.Flags().StringVar(&role, "role", "user", "role claim, e.g. user or "+middleware.RoleAdmin)
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
