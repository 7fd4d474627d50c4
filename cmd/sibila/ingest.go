package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/0xcro3dile/sibila-go/internal/adapters/loader"
	"github.com/0xcro3dile/sibila-go/internal/domain/entities"
)

var (
	ingestMode  string
	ingestAPI   string
	ingestToken string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [folder]",
	Short: "Ingest a folder of .txt and .pdf documents",
	Long: `Walks the folder (default: INGEST_FOLDER or the configured data dir),
reads each document with its optional <name>.meta.json sidecar and ingests
the batch. The document id is the file name without extension.

With --api the batch is posted to a running server instead of being
written to the local index.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVarP(&ingestMode, "mode", "m", string(entities.ModeUpsert), "ingest mode: upsert (chunked, idempotent) or add (whole documents)")
	ingestCmd.Flags().StringVar(&ingestAPI, "api", "", "base URL of a running sibila server (env API_BASE)")
	ingestCmd.Flags().StringVar(&ingestToken, "token", "", "bearer token sent with --api requests (env API_BEARER_TOKEN)")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	folder := cfg.IngestFolder
	if len(args) == 1 {
		folder = args[0]
	}
	mode := entities.IngestMode(ingestMode)
	if mode != entities.ModeUpsert && mode != entities.ModeAdd {
		return fmt.Errorf("%w: unknown mode %q", entities.ErrInvalidInput, ingestMode)
	}

	api := firstNonEmpty(ingestAPI, envOr("API_BASE", ""))
	if api != "" {
		docs, err := loader.NewMultiLoader(newExtractor(cfg, log), log).LoadDir(ctx, folder)
		if err != nil {
			return err
		}
		if len(docs) == 0 {
			cmd.Printf("No valid documents in %s\n", folder)
			return nil
		}
		client := newIngestClient(api, firstNonEmpty(ingestToken, envOr("API_BEARER_TOKEN", "")))
		summary, err := client.Ingest(ctx, docs, mode)
		if err != nil {
			return err
		}
		printSummary(cmd, folder, summary)
		return nil
	}

	svc, err := buildServices(cfg, log)
	if err != nil {
		return err
	}
	defer svc.Close()

	docs, err := svc.loader.LoadDir(ctx, folder)
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		cmd.Printf("No valid documents in %s\n", folder)
		return nil
	}

	summary, err := svc.ingest.Ingest(ctx, docs, mode)
	if err != nil {
		return err
	}
	printSummary(cmd, folder, summary)
	return nil
}

func printSummary(cmd *cobra.Command, folder string, s *entities.IngestSummary) {
	cmd.Printf("Ingested %d chunks from %d documents in %s (%s)\n", s.IngestedChunks, s.Documents, folder, s.Mode)
}
