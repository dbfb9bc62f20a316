package commands

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/shafqat-a/scrapper/lib/configutil"
	"github.com/shafqat-a/scrapper/lib/provider"
	"github.com/shafqat-a/scrapper/lib/providers"
	"github.com/spf13/cobra"
)

var (
	listKind   *string
	testConfig *string
)

func init() {
	listKind = listCmd.Flags().String("kind", "", "Filter by provider kind: 'scraping' or 'storage'.")
	testConfig = testCmd.Flags().String("config", "", "Path to a json5 provider config file.")

	providersCmd.AddCommand(listCmd)
	providersCmd.AddCommand(testCmd)
	rootCmd.AddCommand(providersCmd)
}

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "Inspect the built-in provider registry.",
}

var listCmd = &cobra.Command{
	Use:   "list [--kind scraping|storage]",
	Short: "Lists registered providers.",
	Run: func(cmd *cobra.Command, args []string) {
		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Name", "Kind", "Version", "Capabilities", "Description"})
		for _, md := range providers.DefaultRegistry().List(*listKind) {
			t.AppendRow(table.Row{
				md.Name,
				md.Kind,
				md.Version,
				strings.Join(md.Capabilities, ", "),
				md.Description,
			})
		}
		t.SetStyle(table.StyleRounded)
		t.Render()
	},
}

var testCmd = &cobra.Command{
	Use:   "test <name> [--config <path/to/config.json5>]",
	Short: "Instantiates a provider and runs its health check.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		name := args[0]

		config := provider.Config{}
		if *testConfig != "" {
			var err error
			config, err = configutil.ReadConfig[provider.Config](*testConfig)
			if err != nil {
				slog.Error("failed to read provider config", "path", *testConfig, "err", err)
				os.Exit(1)
			}
		}

		if providers.DefaultRegistry().TestConnection(cmd.Context(), name, config) {
			fmt.Printf("provider %q is healthy\n", name)
			return
		}
		fmt.Printf("provider %q failed its health check\n", name)
		os.Exit(1)
	},
}
