package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/spherical/invoice-extractor/cmd/invoice-extractor/ui"
	"github.com/spherical/invoice-extractor/internal/domain"
	"github.com/spherical/invoice-extractor/internal/extract"
)

var extractOutputPath string

var extractCmd = &cobra.Command{
	Use:     "extract <document>",
	Short:   "Extract line items from a PDF URL or local path",
	Long:    "Run the extraction pipeline once and print the result envelope as JSON.",
	Example: "  invoice-extractor extract invoice.pdf\n  invoice-extractor extract https://example.com/bill.pdf -o bill.json",
	Args:    cobra.ExactArgs(1),
	RunE:    runExtract,
}

func init() {
	extractCmd.Flags().StringVarP(&extractOutputPath, "output", "o", "", "also write the JSON result to this file")
	rootCmd.AddCommand(extractCmd)
}

func runExtract(cmd *cobra.Command, args []string) error {
	document := args[0]

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	// Progress is shown by the UI; logs only surface problems.
	if !verbose {
		cfg.Observability.LogLevel = "warn"
	}
	logger := newLogger(cfg, "console")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	service, closeClients := extract.Build(ctx, cfg, logger)
	defer closeClients()

	if !cfg.Extraction.Available() {
		ui.Warning("GEMINI_API_KEY is not set; no line items will be extracted")
	}

	ui.Section("Invoice Extraction")
	ui.Info("Document: %s", document)

	eventCh := make(chan domain.StreamEvent, 100)
	type outcome struct {
		env *domain.Envelope
		err error
	}
	done := make(chan outcome, 1)

	start := time.Now()
	go func() {
		env, err := service.Process(ctx, document, eventCh)
		close(eventCh)
		done <- outcome{env, err}
	}()

	for event := range eventCh {
		printEvent(event)
	}

	res := <-done
	if res.err != nil {
		ui.Error("Extraction failed: %v", res.err)
		return res.err
	}

	data, err := json.MarshalIndent(res.env, "", "  ")
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}

	if extractOutputPath != "" {
		if err := os.WriteFile(extractOutputPath, data, 0o644); err != nil {
			return fmt.Errorf("write output file: %w", err)
		}
		ui.Success("Wrote result to %s", extractOutputPath)
	}

	for _, issue := range res.env.Data.Issues {
		ui.Warning("%s", issue)
	}
	ui.Success("%d unique items, total %.2f (%v)", res.env.Data.TotalItemsCount, res.env.Data.SumTotal, time.Since(start).Round(time.Millisecond))

	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}

func printEvent(event domain.StreamEvent) {
	switch event.Type {
	case domain.EventStart:
		ui.Debug("%v", event.Payload)
	case domain.EventPageRendered:
		ui.Success("Page %d ready", event.PageNumber)
	case domain.EventExtraction:
		ui.Info("%v", event.Payload)
	case domain.EventComplete:
		ui.Debug("%v", event.Payload)
	}
}
