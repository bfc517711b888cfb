package commands

import (
	"github.com/spf13/cobra"

	"github.com/spherical/invoice-extractor/cmd/invoice-extractor/ui"
)

const version = "1.0.0"

var (
	cfgFile string
	verbose bool
	noColor bool
)

var rootCmd = &cobra.Command{
	Use:           "invoice-extractor",
	Short:         "Extract billed line items from invoice PDFs",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	Long: `invoice-extractor renders each page of an invoice PDF, asks a vision model
for the billed line items and returns them deduplicated with a computed total.

Environment Variables:
  GEMINI_API_KEY     Gemini API key (without it extraction returns no items)
  GEMINI_MODEL       Override the model (default gemini-1.5-flash)
  PDF_RENDER_DPI     Page render resolution (default 150)`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		ui.Init(noColor, verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
