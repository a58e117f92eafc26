package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/iliyamo/venue-reservation/internal/utils"
)

// newTokenCmd mints access tokens for local development.  Production
// tokens come from the identity service.
func newTokenCmd() *cobra.Command {
	var (
		userID uint64
		roles  []string
		ttl    int
		secret string
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a development access token",
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID == 0 {
				return errors.New("--user is required")
			}
			if secret == "" {
				_ = godotenv.Load()
				secret = os.Getenv("JWT_SECRET")
			}
			for i, r := range roles {
				roles[i] = strings.ToUpper(strings.TrimSpace(r))
			}
			tok, err := utils.NewAccessToken(secret, userID, roles, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok.Token)
			return nil
		},
	}

	cmd.Flags().Uint64Var(&userID, "user", 0, "user id placed in sub")
	cmd.Flags().StringSliceVar(&roles, "role", []string{"CUSTOMER"}, "roles, repeatable or comma separated")
	cmd.Flags().IntVar(&ttl, "ttl", 60, "lifetime in minutes")
	cmd.Flags().StringVar(&secret, "secret", "", "signing secret (defaults to JWT_SECRET)")
	return cmd
}
