package cmd

import (
	"fmt"
	"net/http"
	"net/url"
	"text/tabwriter"

	"shipyard/internal/cli/client"
	"shipyard/internal/server/model"

	"github.com/spf13/cobra"
)

// NewListCommand creates the list command
func NewListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List pipelines or get specific pipeline details",
		RunE:  runList,
	}

	cmd.Flags().StringP("id", "i", "", "Specific pipeline ID to show")
	cmd.Flags().StringP("app", "a", "", "Only pipelines of this application ID")
	cmd.Flags().StringP("status", "s", "", "Only pipelines in this status")
	cmd.Flags().StringP("env", "e", "", "Only pipelines for this environment")
	cmd.Flags().Bool("pending", false, "Only pipelines waiting for approval")

	return cmd
}

func runList(cmd *cobra.Command, args []string) error {
	id, _ := cmd.Flags().GetString("id")
	if id != "" {
		var pipeline model.Pipeline
		if err := client.Call(http.MethodGet, "/api/pipelines/"+url.PathEscape(id), nil, &pipeline); err != nil {
			return err
		}
		return printJSON(cmd, pipeline)
	}

	path := "/api/pipelines"
	if pending, _ := cmd.Flags().GetBool("pending"); pending {
		path = "/api/pipelines/pending-approvals"
	} else {
		query := url.Values{}
		for flag, param := range map[string]string{"app": "application_id", "status": "status", "env": "environment"} {
			if v, _ := cmd.Flags().GetString(flag); v != "" {
				query.Set(param, v)
			}
		}
		if len(query) > 0 {
			path += "?" + query.Encode()
		}
	}

	var pipelines []model.Pipeline
	if err := client.Call(http.MethodGet, path, nil, &pipelines); err != nil {
		return err
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tAPPLICATION\tENV\tSTATUS\tSTAGE\tTRIGGERED BY\tCREATED")
	for _, p := range pipelines {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n", p.ID, p.ApplicationName, p.Environment, p.Status,
			currentStage(&p), p.TriggeredBy, p.CreatedAt.Local().Format("2006-01-02 15:04:05"))
	}
	return w.Flush()
}

func currentStage(p *model.Pipeline) string {
	if idx := p.RunningStage(); idx >= 0 {
		return p.Stages[idx].Name
	}
	if p.Status == model.PipelineWaitingApproval || p.Status == model.PipelinePending {
		if idx := p.NextStage(); idx >= 0 {
			return p.Stages[idx].Name
		}
	}
	for i := len(p.Stages) - 1; i >= 0; i-- {
		if p.Stages[i].Status != model.StagePending {
			return p.Stages[i].Name
		}
	}
	return "-"
}
