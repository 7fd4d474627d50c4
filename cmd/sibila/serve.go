package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/0xcro3dile/sibila-go/internal/adapters/filewatcher"
	"github.com/0xcro3dile/sibila-go/internal/domain/usecases"
	httpserver "github.com/0xcro3dile/sibila-go/internal/infrastructure/http"
)

var serveWatch bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Serves ingestion, stored-document and query endpoints. With --watch,
documents created or changed in the data directory are upserted and
removed documents are dropped from the index.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().BoolVarP(&serveWatch, "watch", "w", false, "auto-ingest the data directory")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc, err := buildServices(cfg, log)
	if err != nil {
		return err
	}
	defer svc.Close()

	server := httpserver.NewServer(svc.ingest, svc.query, svc.catalog, svc.library, log, httpserver.Options{
		Addr:        cfg.Server.Addr(),
		CorsOrigins: cfg.Server.CorsOrigins,
		BodyLimitMB: cfg.Server.BodyLimitMB,
		DataDir:     svc.store.Dir(),
	})

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return server.Start(ctx) })

	if serveWatch || cfg.Watch.Enabled {
		watcher, err := filewatcher.NewFSNotifyWatcher(nil, log)
		if err != nil {
			return err
		}
		defer watcher.Stop()

		ingestor := usecases.NewWatchIngestor(watcher, svc.loader, svc.ingest, log)
		g.Go(func() error { return ingestor.Run(ctx, svc.store.Dir()) })
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
