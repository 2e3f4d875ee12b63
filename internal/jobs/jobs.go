// Package jobs implements C5, the job manager: it accepts ingestion
// submissions, persists a Job record, and runs the pipeline on a bounded
// worker pool so the submitting request returns before any stage runs
// (§4.5).
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/knoguchi/ragdoc/internal/catalog"
	"github.com/knoguchi/ragdoc/internal/pipeline"
)

// Runner submits ingestion work and reports status, backed by a worker pool
// of bounded size (§5: "Parallel workers... default = CPU count").
type Runner struct {
	store    catalog.Store
	pipeline *pipeline.Pipeline
	logger   *slog.Logger
	sem      *semaphore.Weighted
}

// New builds a Runner. poolSize <= 0 defaults to runtime.NumCPU().
func New(store catalog.Store, p *pipeline.Pipeline, logger *slog.Logger, poolSize int) *Runner {
	if poolSize <= 0 {
		poolSize = runtime.NumCPU()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{store: store, pipeline: p, logger: logger, sem: semaphore.NewWeighted(int64(poolSize))}
}

// Submit creates a pending Job and schedules pipeline.Run on the worker
// pool, returning the job id immediately (§4.5: "must return before any
// stage runs").
func (r *Runner) Submit(ctx context.Context, collectionID uuid.UUID, title string, src pipeline.Source) (uuid.UUID, error) {
	job := &catalog.Job{
		ID:           uuid.New(),
		CollectionID: collectionID,
		DocumentID:   uuid.New(),
		Status:       catalog.JobPending,
		Progress:     0,
	}
	if err := r.store.CreateJob(ctx, job); err != nil {
		return uuid.Nil, fmt.Errorf("creating job: %w", err)
	}

	go r.run(job, title, src)

	return job.ID, nil
}

func (r *Runner) run(job *catalog.Job, title string, src pipeline.Source) {
	runCtx := context.Background()
	if err := r.sem.Acquire(runCtx, 1); err != nil {
		return
	}
	defer r.sem.Release(1)

	r.logger.Info("ingestion job starting", "job_id", job.ID, "collection_id", job.CollectionID)

	if err := r.pipeline.Run(runCtx, job, title, src); err != nil {
		r.logger.Error("ingestion job failed", "job_id", job.ID, "error", err)
		return
	}
	r.logger.Info("ingestion job completed", "job_id", job.ID)
}

// Status reads a job's current state directly from the durable store, the
// source of truth for progress (§4.5).
func (r *Runner) Status(ctx context.Context, jobID uuid.UUID) (*catalog.Job, error) {
	return r.store.GetJob(ctx, jobID)
}

// SweepInterrupted marks any non-terminal job failed at process start
// (§5 startup sweep).
func (r *Runner) SweepInterrupted(ctx context.Context) (int, error) {
	n, err := r.store.SweepInterruptedJobs(ctx)
	if err != nil {
		return 0, fmt.Errorf("sweeping interrupted jobs: %w", err)
	}
	if n > 0 {
		r.logger.Warn("swept interrupted jobs at startup", "count", n)
	}
	return n, nil
}
