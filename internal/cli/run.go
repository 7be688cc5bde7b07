package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewRunCmd создаёт группу команд для просмотра запусков workflow.
func NewRunCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Inspect workflow runs",
	}

	cmd.AddCommand(
		newRunListCmd(clientFn, outputFn),
		newRunShowCmd(clientFn, outputFn),
	)

	return cmd
}

func newRunListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var workflowID string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List workflow runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			runs, err := client.ListRuns(ListRunsOpts{WorkflowID: workflowID, Limit: limit})
			if err != nil {
				return err
			}

			headers := []string{"RUN_ID", "WORKFLOW_ID", "STATUS", "COST", "STARTED"}
			rows := make([][]string, len(runs))
			for i, r := range runs {
				rows[i] = []string{r.RunID, r.WorkflowID, r.Status, fmt.Sprintf("$%.6f", r.TotalCostUSD), r.StartedAt}
			}

			out.Print(headers, rows, runs)
			return nil
		},
	}

	cmd.Flags().StringVar(&workflowID, "workflow-id", "", "Filter by workflow ID")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of runs")

	return cmd
}

func newRunShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show run details with the node log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			run, err := client.GetRun(args[0])
			if err != nil {
				return err
			}

			printRun(out, run)
			return nil
		},
	}
}

// printRun выводит run с построчным логом выполнения узлов.
func printRun(out *Output, run *RunResponse) {
	headers := []string{"NODE", "ENDPOINT", "STATUS", "PRICE", "ERROR"}
	rows := make([][]string, len(run.Log))
	for i, nr := range run.Log {
		rows[i] = []string{nr.NodeID, nr.Endpoint, nr.Status, fmt.Sprintf("$%.6f", nr.PriceUSD), nr.Error}
	}
	out.Print(headers, rows, run)
}
