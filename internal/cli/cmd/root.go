package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// RegisterCommands adds all available commands to the root command
func RegisterCommands(rootCmd *cobra.Command) {
	rootCmd.AddCommand(NewTokenCommand())
	rootCmd.AddCommand(NewAppsCommand())
	rootCmd.AddCommand(NewListCommand())
	rootCmd.AddCommand(NewTriggerCommand())
	rootCmd.AddCommand(NewStartCommand())
	rootCmd.AddCommand(NewApproveCommand())
	rootCmd.AddCommand(NewStatsCommand())
}

// NewRootCommand builds a fresh command tree so flag values never leak
// between interactive invocations.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "shipyard",
		Short:         "Pipeline orchestration CLI",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	RegisterCommands(rootCmd)
	return rootCmd
}

func printJSON(cmd *cobra.Command, v any) error {
	formatted, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to format output: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(formatted))
	return nil
}
