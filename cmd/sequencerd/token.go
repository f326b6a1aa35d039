package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	auth "github.com/mind-engage/mindengage-sequencer/internal/auth/middleware"
	"github.com/mind-engage/mindengage-sequencer/internal/config"
	"github.com/mind-engage/mindengage-sequencer/internal/rbac"
)

// newTokenCmd issues tokens signed with AUTH_HMAC_SECRET, for local testing
// against serve.
func newTokenCmd() *cobra.Command {
	var sub, role string
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a development JWT",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, ok := rbac.RolePermissions[role]; !ok {
				return fmt.Errorf("unknown role %q", role)
			}
			cfg := config.FromEnv()
			tok, err := auth.NewAuthService(cfg.AuthSecret, time.Duration(cfg.TokenTTLMin)*time.Minute).IssueJWT(sub, role)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&sub, "sub", "dev-learner", "token subject (learner id)")
	cmd.Flags().StringVar(&role, "role", rbac.RoleLearner, "learner|instructor|admin")
	return cmd
}
