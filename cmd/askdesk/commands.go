package main

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/liliang-cn/askdesk/internal/domain"
	"github.com/liliang-cn/askdesk/internal/service"
	"github.com/liliang-cn/askdesk/internal/textrepair"
)

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newAskCmd() *cobra.Command {
	var providerName string
	cmd := &cobra.Command{
		Use:   "ask QUESTION",
		Short: "Run one question through the pipeline and print the result",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd)
			if err != nil {
				return err
			}
			defer closeApp(a)

			resp, err := a.Orchestrator.Answer(cmd.Context(), service.Query{
				Text:     strings.Join(args, " "),
				Provider: providerName,
			})
			if err != nil {
				return err
			}
			return printJSON(resp)
		},
	}
	cmd.Flags().StringVarP(&providerName, "provider", "p", "", "Preferred generation provider (primary, secondary or its name)")
	return cmd
}

func newIngestCmd() *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Chunk and index every text and markdown document of a directory",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := setup(cmd)
			if err != nil {
				return err
			}
			defer closeApp(a)

			result, err := a.IngestService.Ingest(cmd.Context(), &domain.IngestRequest{Directory: dir})
			if err != nil {
				return err
			}
			return printJSON(result)
		},
	}
	cmd.Flags().StringVarP(&dir, "dir", "d", "", "Documents directory (defaults to storage.documents)")
	return cmd
}

func newRepairTextCmd() *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "repair-text",
		Short: "Repair stored text that was decoded as Windows-1252",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := setup(cmd)
			if err != nil {
				return err
			}
			defer closeApp(a)

			report, err := textrepair.RepairStore(cmd.Context(), a.Conversations, a.ResolvedAnswers, dryRun, a.Logger)
			if err != nil {
				return err
			}
			return printJSON(report)
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Only report what would change")
	return cmd
}
