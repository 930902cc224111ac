package cmd

import (
	"fmt"
	"net/http"

	"shipyard/internal/cli/client"
	"shipyard/internal/server/model"
	"shipyard/pkg/api"

	"github.com/spf13/cobra"
)

// NewTriggerCommand creates the trigger command
func NewTriggerCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trigger",
		Short: "Create a pipeline for an application",
		RunE:  runTrigger,
	}

	cmd.Flags().StringP("app", "a", "", "Application ID (required)")
	cmd.Flags().StringP("env", "e", "dev", "Target environment: dev, uat or production")
	cmd.Flags().StringP("by", "b", "", "Who triggers it, defaults to the token subject")
	cmd.Flags().Bool("start", false, "Start execution right away")
	cmd.MarkFlagRequired("app")

	return cmd
}

func runTrigger(cmd *cobra.Command, args []string) error {
	appID, _ := cmd.Flags().GetString("app")
	env, _ := cmd.Flags().GetString("env")
	by, _ := cmd.Flags().GetString("by")
	start, _ := cmd.Flags().GetBool("start")

	var pipeline model.Pipeline
	req := api.TriggerRequest{ApplicationID: appID, Environment: env, TriggeredBy: by}
	if err := client.Call(http.MethodPost, "/api/pipelines", req, &pipeline); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created pipeline %s for %s (%s)\n", pipeline.ID, pipeline.ApplicationName, pipeline.Environment)

	if start {
		return startPipeline(cmd, pipeline.ID)
	}
	return nil
}

func NewStartCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start simulated execution of a pending pipeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, _ := cmd.Flags().GetString("id")
			return startPipeline(cmd, id)
		},
	}
	cmd.Flags().StringP("id", "i", "", "Pipeline ID (required)")
	cmd.MarkFlagRequired("id")
	return cmd
}

func startPipeline(cmd *cobra.Command, id string) error {
	var pipeline model.Pipeline
	if err := client.Call(http.MethodPost, "/api/pipelines/"+id+"/simulate", nil, &pipeline); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Pipeline %s is %s\n", pipeline.ID, pipeline.Status)
	return nil
}
