package sync

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/timschmidt/bugbot9000/internal/cloner"
	"github.com/timschmidt/bugbot9000/internal/db"
	"github.com/timschmidt/bugbot9000/internal/index"
	"github.com/timschmidt/bugbot9000/internal/metrics"
	"github.com/timschmidt/bugbot9000/internal/models"
	"github.com/timschmidt/bugbot9000/internal/registry"
)

// MetadataFetcher is the slice of the registry client the orchestrator needs.
type MetadataFetcher interface {
	FetchCrate(ctx context.Context, name string) (*registry.Metadata, error)
}

// Orchestrator drives the per-crate state machine: skip check, metadata
// fetch, clone, status record. Execution is strictly sequential; the
// registry client's rate limiter depends on that.
//
// Resumability contract: only a stored "cloned" status or an existing
// destination directory suppresses work. Every other recorded outcome is
// re-attempted on the next run, so transient failures heal by simply
// re-running the tool.
type Orchestrator struct {
	index     index.Source
	store     db.Store
	registry  MetadataFetcher
	cloner    cloner.Executor
	outputDir string
	logger    *logrus.Logger
}

func New(idx index.Source, store db.Store, reg MetadataFetcher, cln cloner.Executor, outputDir string, logger *logrus.Logger) *Orchestrator {
	return &Orchestrator{
		index:     idx,
		store:     store,
		registry:  reg,
		cloner:    cln,
		outputDir: outputDir,
		logger:    logger,
	}
}

// Run refreshes the index and processes every listed crate in order. Only an
// index failure (or a cancelled context) ends the run early; every per-crate
// failure is recorded and processing continues with the next crate.
func (o *Orchestrator) Run(ctx context.Context) (*models.SyncSummary, error) {
	summary := &models.SyncSummary{}

	if err := o.index.Refresh(ctx); err != nil {
		return summary, err
	}

	names, err := o.index.List(ctx)
	if err != nil {
		return summary, err
	}

	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		summary.Total++
		o.processCrate(ctx, name, summary)
	}

	o.logger.WithFields(logrus.Fields{
		"total":          summary.Total,
		"skipped":        summary.Skipped,
		"cloned":         summary.Cloned,
		"failed":         summary.Failed,
		"no_repo":        summary.NoRepo,
		"metadata_error": summary.MetadataError,
	}).Info("Sync run finished")

	return summary, nil
}

func (o *Orchestrator) processCrate(ctx context.Context, name string, summary *models.SyncSummary) {
	logger := o.logger.WithField("crate", name)
	dest := filepath.Join(o.outputDir, name)

	if o.shouldSkip(ctx, name, dest) {
		summary.Skipped++
		metrics.RecordOutcome("skipped")
		return
	}

	meta, err := o.registry.FetchCrate(ctx, name)
	if err != nil {
		logger.WithError(err).Error("Failed to fetch crate metadata")
		o.record(ctx, name, models.StatusMetadataError)
		summary.MetadataError++
		return
	}

	if meta.Repository == nil || *meta.Repository == "" {
		logger.Info("Crate declares no repository URL")
		o.record(ctx, name, models.StatusNoRepo)
		summary.NoRepo++
		return
	}
	repoURL := *meta.Repository

	// Pending is written before the clone so an interrupted run leaves an
	// honest record of what was in flight.
	if err := o.store.UpsertPending(ctx, name, repoURL); err != nil {
		logger.WithError(err).Warn("Failed to record pending status")
	}

	start := time.Now()
	err = o.cloner.Clone(ctx, repoURL, dest)
	metrics.ObserveClone(start)
	if err != nil {
		logger.WithError(err).WithField("repository", repoURL).Error("Failed to clone repository")
		o.record(ctx, name, models.StatusFailed)
		summary.Failed++
		return
	}

	logger.WithField("repository", repoURL).Info("Cloned repository")
	o.record(ctx, name, models.StatusCloned)
	summary.Cloned++
}

// shouldSkip reports whether the crate is already mirrored. Destination
// existence is authoritative even when it disagrees with the stored status,
// so externally placed or manually restored directories are respected.
func (o *Orchestrator) shouldSkip(ctx context.Context, name, dest string) bool {
	status, err := o.store.GetStatus(ctx, name)
	if err != nil {
		// A store read failure never gates processing; treat the crate as
		// unseen and let the filesystem check decide.
		o.logger.WithError(err).WithField("crate", name).Warn("Failed to read stored status")
	}
	if status == models.StatusCloned {
		return true
	}
	if _, err := os.Stat(dest); err == nil {
		return true
	}
	return false
}

// record writes a terminal status. Store writes are best-effort bookkeeping:
// a failure is logged and ignored, because the clone outcome, not the store
// write, decides whether the work was done.
func (o *Orchestrator) record(ctx context.Context, name string, status models.SyncStatus) {
	metrics.RecordOutcome(string(status))
	if err := o.store.SetStatus(ctx, name, status); err != nil {
		o.logger.WithError(err).WithFields(logrus.Fields{
			"crate":  name,
			"status": status,
		}).Warn("Failed to record status")
	}
}
