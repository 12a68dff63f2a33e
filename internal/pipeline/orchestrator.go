// Package pipeline drives batch items through fetch, extract, process and
// export. Items are processed strictly one at a time: the host scene is a
// single shared mutable context and cannot hold two items at once.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/modelforge/fbxbatch/internal/archive"
	"github.com/modelforge/fbxbatch/internal/config"
	"github.com/modelforge/fbxbatch/internal/fetch"
	"github.com/modelforge/fbxbatch/internal/host"
	"github.com/modelforge/fbxbatch/internal/models"
)

// ExportError reports a failed host export call.
type ExportError struct {
	Path string
	Err  error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("export %s: %v", e.Path, e.Err)
}

func (e *ExportError) Unwrap() error { return e.Err }

// Orchestrator owns the batch run: the working directory tree, the item
// list and exclusive access to the host scene context.
type Orchestrator struct {
	fetcher    *fetch.Fetcher
	engine     host.Engine
	cfg        config.Config
	tempRoot   string
	outputRoot string
}

// New returns an orchestrator writing processed assets under outputRoot and
// per-item working directories under tempRoot.
func New(fetcher *fetch.Fetcher, engine host.Engine, cfg config.Config, tempRoot, outputRoot string) *Orchestrator {
	return &Orchestrator{
		fetcher:    fetcher,
		engine:     engine,
		cfg:        cfg,
		tempRoot:   tempRoot,
		outputRoot: outputRoot,
	}
}

// Run processes every URL in order and returns the batch summary. A failed
// item is recorded and the run continues with the next one; Run itself
// never fails mid-batch.
func (o *Orchestrator) Run(ctx context.Context, urls []string) *models.Summary {
	summary := &models.Summary{}

	for i, url := range urls {
		// An interrupt stops the batch between items, never mid-item, so
		// the shared scene context is not left half-mutated.
		if err := ctx.Err(); err != nil {
			slog.Warn("Batch interrupted", "processed", i, "remaining", len(urls)-i)
			break
		}

		item := o.newItem(url)
		slog.Info("Processing item", "index", i+1, "total", len(urls), "url", url)

		o.runItem(ctx, item)

		item.FinishedAt = time.Now()
		summary.Items = append(summary.Items, item)
		if item.State == models.StateFailed {
			summary.Failed++
			slog.Error("Item failed", "url", url, "error", item.Err)
		} else {
			summary.Succeeded++
			slog.Info("Item processed", "url", url, "output", item.OutputDir)
		}
	}

	slog.Info("Batch complete", "succeeded", summary.Succeeded, "failed", summary.Failed)
	return summary
}

func (o *Orchestrator) newItem(url string) *models.Item {
	id := uuid.NewString()
	stem := archiveStem(url)
	return &models.Item{
		ID:        id,
		URL:       url,
		WorkDir:   filepath.Join(o.tempRoot, fmt.Sprintf("%s-%s", stem, id[:8])),
		State:     models.StatePending,
		StartedAt: time.Now(),
	}
}

// runItem advances one item through every stage. Stage failures are
// recorded on the item, never returned: the caller moves on regardless.
func (o *Orchestrator) runItem(ctx context.Context, item *models.Item) {
	archivePath, err := o.fetcher.Fetch(ctx, item.URL, item.WorkDir)
	if err != nil {
		item.Fail(err)
		o.discardWorkDir(item)
		return
	}
	item.State = models.StateFetched

	extractDir := filepath.Join(item.WorkDir, "extracted")
	modelPath, texturePaths, err := archive.Extract(archivePath, extractDir)
	if err != nil {
		item.Fail(err)
		o.discardWorkDir(item)
		return
	}
	item.ModelPath = modelPath
	item.TexturePaths = texturePaths
	item.State = models.StateExtracted

	// From here on a failure leaves the working directory in place: the
	// half-processed files are what you need to diagnose it.
	if err := o.process(ctx, item); err != nil {
		item.Fail(err)
		return
	}
	item.State = models.StateProcessed

	if err := o.export(ctx, item); err != nil {
		item.Fail(err)
		return
	}
	item.State = models.StateExported
	o.discardWorkDir(item)
}

// discardWorkDir reclaims the item's temporary storage, best effort.
func (o *Orchestrator) discardWorkDir(item *models.Item) {
	if item.WorkDir == "" {
		return
	}
	if err := os.RemoveAll(item.WorkDir); err != nil {
		slog.Warn("Failed to clean working directory", "dir", item.WorkDir, "error", err)
	}
}

func (o *Orchestrator) export(ctx context.Context, item *models.Item) error {
	base := modelBaseName(item.ModelPath)
	outDir := filepath.Join(o.outputRoot, base)
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	outPath := filepath.Join(outDir, filepath.Base(item.ModelPath))
	if err := o.engine.ExportModel(ctx, outPath, o.cfg.ExportSettings); err != nil {
		return &ExportError{Path: outPath, Err: err}
	}
	item.OutputDir = outDir
	return nil
}

func archiveStem(url string) string {
	base := filepath.Base(strings.TrimSuffix(url, "/"))
	if i := strings.IndexAny(base, "?#"); i >= 0 {
		base = base[:i]
	}
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func modelBaseName(modelPath string) string {
	base := filepath.Base(modelPath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
