package commands

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/goccy/go-json"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/shafqat-a/scrapper/lib/engine"
	"github.com/shafqat-a/scrapper/lib/providers"
	"github.com/shafqat-a/scrapper/lib/workflow"
	"github.com/spf13/cobra"
)

const timeRounding = time.Millisecond

var (
	runOutput          *string
	runFormat          *string
	runDryRun          *bool
	runContinueOnError *bool
)

func init() {
	runOutput = runCmd.Flags().StringP("output", "o", "", "Write the execution result as JSON to this file.")
	runFormat = runCmd.Flags().String("format", "table", "Result rendering: 'table' or 'json'.")
	runDryRun = runCmd.Flags().Bool("dry-run", false, "Validate the workflow and exit without executing.")
	runContinueOnError = runCmd.Flags().Bool("continue-on-error", false, "Force every step to continue on failure.")
	rootCmd.AddCommand(runCmd)
}

var runCmd = &cobra.Command{
	Use:   "run <workflow.json>",
	Short: "Executes a workflow file.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		wf, err := workflow.Load(args[0])
		if err != nil {
			slog.Error("failed to load workflow", "path", args[0], "err", err)
			os.Exit(1)
		}
		if *runContinueOnError {
			wf.ForceContinueOnError()
		}

		eng := engine.New(providers.DefaultRegistry())

		if *runDryRun {
			if err := eng.Validate(wf); err != nil {
				slog.Error("workflow is invalid", "err", err)
				os.Exit(1)
			}
			fmt.Printf("workflow %q is valid\n", wf.Metadata.Name)
			return
		}

		result, err := eng.Execute(cmd.Context(), wf)
		if err != nil {
			slog.Error("workflow execution failed", "err", err)
			os.Exit(1)
		}

		if *runOutput != "" {
			if err := writeResult(*runOutput, result); err != nil {
				slog.Error("failed to write result file", "path", *runOutput, "err", err)
				os.Exit(1)
			}
		}

		switch *runFormat {
		case "json":
			out, err := json.MarshalIndent(result.Export(), "", "  ")
			if err != nil {
				slog.Error("failed to render result", "err", err)
				os.Exit(1)
			}
			fmt.Println(string(out))
		default:
			renderResultTable(result)
		}

		if !result.Success {
			os.Exit(1)
		}
	},
}

func writeResult(path string, result *engine.Result) error {
	out, err := json.MarshalIndent(result.Export(), "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, out, 0o644)
}

func renderResultTable(result *engine.Result) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Field", "Value"})
	t.AppendRows([]table.Row{
		{"success", result.Success},
		{"total steps", result.TotalSteps},
		{"completed steps", result.CompletedSteps},
		{"failed steps", result.FailedSteps},
		{"extracted elements", len(result.ExtractedData)},
		{"execution time", result.ExecutionTime.Round(timeRounding)},
	})
	t.SetStyle(table.StyleRounded)
	t.Render()

	if len(result.Errors) == 0 {
		return
	}
	errs := table.NewWriter()
	errs.SetOutputMirror(os.Stdout)
	errs.AppendHeader(table.Row{"Step", "Type", "Message"})
	for _, e := range result.Errors {
		errs.AppendRow(table.Row{e.StepID, e.ErrorType, e.Message})
	}
	errs.SetStyle(table.StyleRounded)
	errs.Render()
}
