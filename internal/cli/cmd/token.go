package cmd

import (
	"fmt"
	"os"
	"time"

	"shipyard/internal/cli/client"
	"shipyard/internal/server/middleware"

	"github.com/spf13/cobra"
)

// NewTokenCommand signs an API token with the shared JWT key and keeps it
// for the rest of the session.
func NewTokenCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an API token signed with JWT_KEY",
		RunE:  runToken,
	}
	cmd.Flags().StringP("subject", "s", "", "Identity recorded as triggered_by / approved_by (required)")
	cmd.Flags().StringP("key", "k", "", "Signing key, defaults to $JWT_KEY")
	cmd.Flags().Duration("ttl", 24*time.Hour, "Token lifetime")
	cmd.MarkFlagRequired("subject")
	return cmd
}

func runToken(cmd *cobra.Command, args []string) error {
	subject, _ := cmd.Flags().GetString("subject")
	key, _ := cmd.Flags().GetString("key")
	ttl, _ := cmd.Flags().GetDuration("ttl")
	if key == "" {
		key = os.Getenv("JWT_KEY")
	}
	if key == "" {
		return fmt.Errorf("no signing key: pass --key or set JWT_KEY")
	}

	token, err := middleware.GenerateJWT(subject, key, ttl)
	if err != nil {
		return err
	}
	client.SaveToken(token)
	fmt.Fprintf(cmd.OutOrStdout(), "token for %s (valid %s):\n%s\n", subject, ttl, token)
	return nil
}
