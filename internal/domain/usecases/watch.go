package usecases

import (
	"context"

	"github.com/0xcro3dile/sibila-go/internal/domain/entities"
	"github.com/0xcro3dile/sibila-go/internal/domain/ports"
)

// WatchIngestor keeps the index in sync with a watched folder: created or
// modified documents are upserted, removed documents lose their chunks.
// Sidecar changes are not tracked; touch the document to re-ingest it.
type WatchIngestor struct {
	watcher ports.FileWatcher
	loader  ports.DocumentLoader
	ingest  *IngestUseCase
	log     ports.Logger
}

// NewWatchIngestor creates a WatchIngestor with injected dependencies.
func NewWatchIngestor(watcher ports.FileWatcher, loader ports.DocumentLoader, ingest *IngestUseCase, log ports.Logger) *WatchIngestor {
	if log == nil {
		log = ports.NopLogger{}
	}
	return &WatchIngestor{
		watcher: watcher,
		loader:  loader,
		ingest:  ingest,
		log:     log,
	}
}

// Run watches dir until ctx is cancelled or the watcher closes its channel.
// Failures on individual files are logged and never stop the loop.
func (w *WatchIngestor) Run(ctx context.Context, dir string) error {
	events, err := w.watcher.Watch(ctx, dir)
	if err != nil {
		return err
	}
	w.log.Info("watch", "watching folder", map[string]interface{}{"dir": dir})

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			w.Handle(ctx, ev)
		}
	}
}

// Handle applies a single file event to the index.
func (w *WatchIngestor) Handle(ctx context.Context, ev ports.FileEvent) {
	if _, ok := entities.DocumentExt(ev.Path); !ok {
		return
	}
	details := map[string]interface{}{"path": ev.Path}

	if ev.Operation == ports.FileDeleted {
		if err := w.ingest.Delete(ctx, entities.DocIDFromName(ev.Path)); err != nil {
			details["error"] = err.Error()
			w.log.Error("watch", "removing document failed", details)
		}
		return
	}

	doc, err := w.loader.Load(ctx, ev.Path)
	if err != nil {
		details["error"] = err.Error()
		w.log.Error("watch", "loading document failed", details)
		return
	}
	if doc == nil {
		return
	}
	summary, err := w.ingest.Ingest(ctx, []entities.Document{*doc}, entities.ModeUpsert)
	if err != nil {
		details["error"] = err.Error()
		w.log.Warn("watch", "ingesting document failed", details)
		return
	}
	details["chunks"] = summary.IngestedChunks
	w.log.Info("watch", "document ingested", details)
}
