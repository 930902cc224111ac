package cmd

import (
	"fmt"
	"net/http"

	"shipyard/internal/cli/client"
	"shipyard/internal/server/model"
	"shipyard/pkg/api"

	"github.com/spf13/cobra"
)

func NewApproveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "approve",
		Short: "Approve or reject a pipeline waiting at a gate",
		RunE:  runApprove,
	}
	cmd.Flags().StringP("id", "i", "", "Pipeline ID (required)")
	cmd.Flags().StringP("by", "b", "", "Approver, defaults to the token subject")
	cmd.Flags().StringP("comment", "c", "", "Optional comment")
	cmd.Flags().Bool("reject", false, "Reject instead of approve")
	cmd.Flags().String("stage", "", "Gated stage the decision is for, defaults to the one waiting")
	cmd.MarkFlagRequired("id")
	return cmd
}

func runApprove(cmd *cobra.Command, args []string) error {
	id, _ := cmd.Flags().GetString("id")
	by, _ := cmd.Flags().GetString("by")
	comment, _ := cmd.Flags().GetString("comment")
	reject, _ := cmd.Flags().GetBool("reject")
	stage, _ := cmd.Flags().GetString("stage")

	approved := !reject
	req := api.ApprovalRequest{Approved: &approved, ApprovedBy: by, Comment: comment, Stage: stage}
	var pipeline model.Pipeline
	if err := client.Call(http.MethodPost, "/api/pipelines/"+id+"/approve", req, &pipeline); err != nil {
		return err
	}
	verb := "Approved"
	if reject {
		verb = "Rejected"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s pipeline %s, now %s\n", verb, pipeline.ID, pipeline.Status)
	return nil
}
