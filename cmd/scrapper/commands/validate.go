package commands

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/goccy/go-json"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/shafqat-a/scrapper/lib/providers"
	"github.com/shafqat-a/scrapper/lib/workflow"
	"github.com/spf13/cobra"
)

var validateFormat *string

func init() {
	validateFormat = validateCmd.Flags().String("format", "table", "Report rendering: 'table' or 'json'.")
	rootCmd.AddCommand(validateCmd)
}

var validateCmd = &cobra.Command{
	Use:   "validate <workflow.json>",
	Short: "Checks a workflow file and reports every problem found.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		wf, err := workflow.Load(args[0])
		if err != nil {
			slog.Error("failed to load workflow", "path", args[0], "err", err)
			os.Exit(1)
		}

		issues := workflow.ValidateReport(wf, providers.DefaultRegistry())

		if *validateFormat == "json" {
			out, err := json.MarshalIndent(map[string]any{
				"workflow": wf.Metadata.Name,
				"valid":    len(issues) == 0,
				"issues":   issues,
			}, "", "  ")
			if err != nil {
				slog.Error("failed to render report", "err", err)
				os.Exit(1)
			}
			fmt.Println(string(out))
			if len(issues) > 0 {
				os.Exit(1)
			}
			return
		}

		if len(issues) == 0 {
			fmt.Printf("workflow %q is valid\n", wf.Metadata.Name)
			return
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Field", "Problem"})
		for _, issue := range issues {
			t.AppendRow(table.Row{issue.Field, issue.Message})
		}
		t.SetStyle(table.StyleRounded)
		t.Render()
		os.Exit(1)
	},
}
