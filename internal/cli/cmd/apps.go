package cmd

import (
	"fmt"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"

	"shipyard/internal/cli/client"
	"shipyard/internal/server/model"
	"shipyard/pkg/api"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func NewAppsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apps",
		Short: "Manage onboarded applications",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List applications",
		RunE:  runAppsList,
	}

	create := &cobra.Command{
		Use:   "create",
		Short: "Onboard an application from a yaml manifest",
		RunE:  runAppsCreate,
	}
	create.Flags().StringP("file", "f", "", "Path to the application manifest (required)")
	create.MarkFlagRequired("file")

	get := &cobra.Command{
		Use:   "get",
		Short: "Show one application",
		RunE:  runAppsGet,
	}
	get.Flags().StringP("id", "i", "", "Application ID (required)")
	get.MarkFlagRequired("id")

	del := &cobra.Command{
		Use:   "delete",
		Short: "Delete an application without pipelines",
		RunE:  runAppsDelete,
	}
	del.Flags().StringP("id", "i", "", "Application ID (required)")
	del.MarkFlagRequired("id")

	cmd.AddCommand(list, create, get, del)
	return cmd
}

func runAppsList(cmd *cobra.Command, args []string) error {
	var apps []model.Application
	if err := client.Call(http.MethodGet, "/api/applications", nil, &apps); err != nil {
		return err
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tSTACK\tDEPLOY\tREPOSITORY")
	for _, app := range apps {
		stack := make([]string, len(app.TechStack))
		for i, s := range app.TechStack {
			stack[i] = string(s)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s/%s\t%s@%s\n", app.ID, app.Name, strings.Join(stack, ","),
			app.DeploymentType, app.CloudProvider, app.RepositoryURL, app.Branch)
	}
	return w.Flush()
}

func runAppsCreate(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("file")
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read manifest: %w", err)
	}
	req, err := ParseManifest(content)
	if err != nil {
		return err
	}

	var app model.Application
	if err := client.Call(http.MethodPost, "/api/applications", req, &app); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Onboarded %s with ID %s\n", app.Name, app.ID)
	return nil
}

func runAppsGet(cmd *cobra.Command, args []string) error {
	id, _ := cmd.Flags().GetString("id")
	var app model.Application
	if err := client.Call(http.MethodGet, "/api/applications/"+id, nil, &app); err != nil {
		return err
	}
	return printJSON(cmd, app)
}

func runAppsDelete(cmd *cobra.Command, args []string) error {
	id, _ := cmd.Flags().GetString("id")
	if err := client.Call(http.MethodDelete, "/api/applications/"+id, nil, nil); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted application %s\n", id)
	return nil
}

// ParseManifest reads an application manifest in yaml.
func ParseManifest(content []byte) (*api.CreateApplicationRequest, error) {
	var req api.CreateApplicationRequest
	if err := yaml.Unmarshal(content, &req); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if req.Name == "" {
		return nil, fmt.Errorf("manifest has no name")
	}
	return &req, nil
}
