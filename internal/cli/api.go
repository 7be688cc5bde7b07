package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
)

// NewAPICmd создаёт группу команд для управления зарегистрированными APIs.
func NewAPICmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "api",
		Short: "Manage registered APIs",
	}

	cmd.AddCommand(
		newAPIListCmd(clientFn, outputFn),
		newAPIRegisterCmd(clientFn, outputFn),
		newAPIShowCmd(clientFn, outputFn),
		newAPIStatusCmd(clientFn, outputFn),
		newAPIInfoCmd(clientFn, outputFn),
	)

	return cmd
}

func apiRow(a APIResponse) []string {
	return []string{
		a.Endpoint,
		a.Name,
		a.Kind,
		a.Status,
		a.Token.Symbol,
		fmt.Sprintf("$%.6f", a.PriceUSD),
	}
}

var apiHeaders = []string{"ENDPOINT", "NAME", "KIND", "STATUS", "TOKEN", "PRICE"}

func newAPIListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered APIs",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			apis, err := client.ListAPIs()
			if err != nil {
				return err
			}

			rows := make([][]string, len(apis))
			for i, a := range apis {
				rows[i] = apiRow(a)
			}

			out.Print(apiHeaders, rows, apis)
			return nil
		},
	}
}

func newAPIRegisterCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var specFile string

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register an API from a JSON spec file",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			data, err := os.ReadFile(specFile)
			if err != nil {
				return fmt.Errorf("failed to read spec file: %w", err)
			}

			// Валидируем что это валидный JSON
			if !json.Valid(data) {
				return fmt.Errorf("spec file is not valid JSON")
			}

			api, err := client.RegisterAPI(json.RawMessage(data))
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("API registered: %s (launch job %s)", api.Endpoint, api.Token.JobID))
			out.Print(apiHeaders, [][]string{apiRow(*api)}, api)
			return nil
		},
	}

	cmd.Flags().StringVar(&specFile, "file", "", "Path to API spec JSON file (required)")
	cmd.MarkFlagRequired("file")

	return cmd
}

func newAPIShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ENDPOINT",
		Short: "Show a registered API",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			api, err := client.GetAPI(args[0])
			if err != nil {
				return err
			}

			out.Print(apiHeaders, [][]string{apiRow(*api)}, api)
			return nil
		},
	}
}

func newAPIStatusCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "status ENDPOINT",
		Short: "Show token launch status for an API",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			status, err := client.GetAPIStatus(args[0])
			if err != nil {
				return err
			}

			out.Print(
				[]string{"ENDPOINT", "STATUS", "JOB_ID", "TOKEN_ADDRESS", "TX_HASH"},
				[][]string{{status.Endpoint, status.Status, status.Token.JobID, status.Token.Address, status.Token.TxHash}},
				status,
			)
			return nil
		},
	}
}

func newAPIInfoCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "info ENDPOINT",
		Short: "Show API details with a fresh token price",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			api, err := client.GetAPIInfo(args[0])
			if err != nil {
				return err
			}

			out.Print(
				[]string{"ENDPOINT", "NAME", "STATUS", "TOKEN", "MULTIPLIER", "PRICE"},
				[][]string{{
					api.Endpoint,
					api.Name,
					api.Status,
					api.Token.Symbol,
					strconv.FormatFloat(api.PriceMultiplier, 'f', -1, 64),
					fmt.Sprintf("$%.6f", api.PriceUSD),
				}},
				api,
			)
			return nil
		},
	}
}
