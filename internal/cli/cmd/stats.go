package cmd

import (
	"fmt"
	"net/http"

	"shipyard/internal/cli/client"
	"shipyard/pkg/api"

	"github.com/spf13/cobra"
)

func NewStatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show dashboard statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			var s api.DashboardStats
			if err := client.Call(http.MethodGet, "/api/dashboard/stats", nil, &s); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Applications:      %d\n", s.TotalApplications)
			fmt.Fprintf(out, "Pipelines:         %d\n", s.TotalPipelines)
			fmt.Fprintf(out, "Success rate:      %d%%\n", s.SuccessRate)
			fmt.Fprintf(out, "Pipelines today:   %d\n", s.PipelinesToday)
			fmt.Fprintf(out, "Pending approvals: %d\n", s.PendingApprovals)
			return nil
		},
	}
}
