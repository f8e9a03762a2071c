package export

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Hussein-Mohammed/ScriptSight/internal/query"
	"github.com/Hussein-Mohammed/ScriptSight/pkg/config"
	apperrors "github.com/Hussein-Mohammed/ScriptSight/pkg/errors"
	"github.com/Hussein-Mohammed/ScriptSight/pkg/metrics"
	"github.com/Hussein-Mohammed/ScriptSight/pkg/resilience"
	"github.com/Hussein-Mohammed/ScriptSight/pkg/tracing"
)

// Run describes one completed (or failed) export.
type Run struct {
	ID           string        `json:"id"`
	Collection   string        `json:"collection"`
	Query        string        `json:"query"`
	Folder       string        `json:"folder"`
	PagesTotal   int           `json:"pages_total"`
	PagesCopied  int           `json:"pages_copied"`
	PagesSkipped int           `json:"pages_skipped"`
	StartedAt    time.Time     `json:"started_at"`
	Duration     time.Duration `json:"duration"`
	Status       string        `json:"status"`
	Error        string        `json:"error,omitempty"`
}

// manifestEntry is one line item in the manifest.json written alongside
// the copied images.
type manifestEntry struct {
	PageID   string `json:"page_id"`
	FileName string `json:"file_name"`
	Source   string `json:"source"`
	Copied   bool   `json:"copied"`
	Reason   string `json:"reason,omitempty"`
}

// Exporter copies the image files of a query result into a date-stamped
// folder under the output root, a bounded number of files at a time.
type Exporter struct {
	cfg     config.ExportConfig
	ledger  *Ledger
	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

func NewExporter(cfg config.ExportConfig, ledger *Ledger, m *metrics.Metrics, logger *slog.Logger) *Exporter {
	return &Exporter{
		cfg:     cfg,
		ledger:  ledger,
		metrics: m,
		logger:  logger.With("component", "exporter"),
		now:     time.Now,
	}
}

// Export materialises one result set. Pages whose image file could not be
// resolved are skipped with a warning rather than failing the run; the run
// fails only when the destination itself cannot be written. Every run,
// successful or not, is recorded in the ledger when one is configured.
func (e *Exporter) Export(ctx context.Context, plan *query.Plan, result *query.Result) (*Run, error) {
	ctx, span := tracing.StartChildSpan(ctx, "export.run")
	span.SetAttr("collection", plan.Collection)
	span.SetAttr("pages", result.TotalHits)
	defer span.End()

	started := e.now()
	run := &Run{
		ID:         fmt.Sprintf("%s-%d", plan.Collection, started.UnixNano()),
		Collection: plan.Collection,
		Query:      plan.Describe(),
		Folder:     FolderName(plan, started),
		PagesTotal: result.TotalHits,
		StartedAt:  started,
	}

	dest := filepath.Join(e.cfg.OutputDir, run.Folder)
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return e.finish(ctx, run, apperrors.Newf(apperrors.ErrExportFailed, http.StatusInternalServerError, "creating export folder %s: %v", dest, err))
	}

	entries := make([]manifestEntry, len(result.Pages))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Concurrency)
	for i, hit := range result.Pages {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			entry := manifestEntry{PageID: hit.PageID, FileName: hit.FileName, Source: hit.ImagePath}
			if hit.ImagePath == "" {
				entry.Reason = "image file not found"
				e.logger.WarnContext(gctx, "skipping page without image file", "page", hit.PageID)
			} else if err := e.copyImage(gctx, hit.ImagePath, filepath.Join(dest, filepath.Base(hit.ImagePath))); err != nil {
				// A copy abandoned on cancellation fails the run; a copy that
				// failed on its own merits only skips the page.
				if gctx.Err() != nil {
					return gctx.Err()
				}
				entry.Reason = err.Error()
				e.logger.WarnContext(gctx, "copy failed", "page", hit.PageID, "error", err)
			} else {
				entry.Copied = true
			}
			entries[i] = entry
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return e.finish(ctx, run, apperrors.Newf(apperrors.ErrExportFailed, http.StatusInternalServerError, "export interrupted: %v", err))
	}

	for _, entry := range entries {
		if entry.Copied {
			run.PagesCopied++
		} else {
			run.PagesSkipped++
		}
	}
	if err := e.writeManifest(dest, run, entries); err != nil {
		return e.finish(ctx, run, apperrors.Newf(apperrors.ErrExportFailed, http.StatusInternalServerError, "writing manifest: %v", err))
	}
	return e.finish(ctx, run, nil)
}

func (e *Exporter) finish(ctx context.Context, run *Run, err error) (*Run, error) {
	run.Duration = e.now().Sub(run.StartedAt)
	if err != nil {
		run.Status = "failed"
		run.Error = err.Error()
	} else {
		run.Status = "completed"
	}

	e.metrics.ExportsTotal.WithLabelValues(run.Status).Inc()
	e.metrics.ExportPagesTotal.Add(float64(run.PagesCopied))
	e.metrics.ExportDuration.Observe(run.Duration.Seconds())

	if e.ledger != nil {
		if lerr := e.ledger.Record(ctx, run); lerr != nil {
			e.logger.WarnContext(ctx, "ledger write failed", "run", run.ID, "error", lerr)
		}
	}
	if err != nil {
		return run, err
	}
	e.logger.InfoContext(ctx, "export completed",
		"run", run.ID,
		"folder", run.Folder,
		"copied", run.PagesCopied,
		"skipped", run.PagesSkipped,
		"duration", run.Duration)
	return run, nil
}

// copyImage copies one file, retrying transient failures under a per-file
// deadline. Source images may live on network-mounted scan archives.
func (e *Exporter) copyImage(ctx context.Context, src, dst string) error {
	return resilience.WithTimeout(ctx, e.cfg.CopyTimeout, "export-copy", func(ctx context.Context) error {
		return resilience.Retry(ctx, "export-copy", resilience.RetryConfig{MaxAttempts: 3}, func() error {
			return copyFile(src, dst)
		})
	})
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.CreateTemp(filepath.Dir(dst), ".ss-copy-*")
	if err != nil {
		return err
	}
	tmp := out.Name()
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(tmp)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, dst)
}

func (e *Exporter) writeManifest(dest string, run *Run, entries []manifestEntry) error {
	manifest := struct {
		Run     *Run            `json:"run"`
		Entries []manifestEntry `json:"entries"`
	}{Run: run, Entries: entries}

	raw, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dest, "manifest.json"), raw, 0o644)
}
