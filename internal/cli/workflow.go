package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewWorkflowCmd создаёт группу команд для управления workflows.
func NewWorkflowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workflow",
		Short: "Manage workflows",
	}

	cmd.AddCommand(
		newWorkflowListCmd(clientFn, outputFn),
		newWorkflowShowCmd(clientFn, outputFn),
		newWorkflowExecuteCmd(clientFn, outputFn),
		newWorkflowDeployCmd(clientFn, outputFn),
	)

	return cmd
}

func newWorkflowListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List deployed workflows",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			wfs, err := client.ListWorkflows()
			if err != nil {
				return err
			}

			headers := []string{"ID", "NAME", "ENDPOINT", "CREATED"}
			rows := make([][]string, len(wfs))
			for i, wf := range wfs {
				rows[i] = []string{wf.ID, wf.Name, wf.Endpoint, wf.CreatedAt}
			}

			out.Print(headers, rows, wfs)
			return nil
		},
	}
}

func newWorkflowShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show a deployed workflow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			wf, err := client.GetWorkflow(args[0])
			if err != nil {
				return err
			}

			out.Print(
				[]string{"ID", "NAME", "ENDPOINT", "CREATED"},
				[][]string{{wf.ID, wf.Name, wf.Endpoint, wf.CreatedAt}},
				wf,
			)
			return nil
		},
	}
}

func readSpecFile(path string) (json.RawMessage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read spec file: %w", err)
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("spec file is not valid JSON")
	}
	return json.RawMessage(data), nil
}

func newWorkflowExecuteCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var specFile string

	cmd := &cobra.Command{
		Use:   "execute",
		Short: "Execute a workflow graph from a JSON file without deploying",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			spec, err := readSpecFile(specFile)
			if err != nil {
				return err
			}

			run, err := client.ExecuteWorkflow(spec)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Run %s finished: %s (cost $%.6f)", run.RunID, run.Status, run.TotalCostUSD))
			printRun(out, run)
			return nil
		},
	}

	cmd.Flags().StringVar(&specFile, "file", "", "Path to workflow graph JSON file (required)")
	cmd.MarkFlagRequired("file")

	return cmd
}

func newWorkflowDeployCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var specFile string

	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Deploy a workflow as a composite endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			spec, err := readSpecFile(specFile)
			if err != nil {
				return err
			}

			resp, err := client.DeployWorkflow(spec)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Workflow deployed: %s (launch job %s)", resp.API.Endpoint, resp.API.Token.JobID))
			out.Print(
				[]string{"ID", "NAME", "ENDPOINT", "STATUS", "TOKEN"},
				[][]string{{resp.Workflow.ID, resp.Workflow.Name, resp.API.Endpoint, resp.API.Status, resp.API.Token.Symbol}},
				resp,
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&specFile, "file", "", "Path to workflow spec JSON file (required)")
	cmd.MarkFlagRequired("file")

	return cmd
}
