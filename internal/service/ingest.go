package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dubaivisaervices/builder-pixel-hub-sub003/internal/cache"
	"github.com/dubaivisaervices/builder-pixel-hub-sub003/internal/dto"
	"github.com/dubaivisaervices/builder-pixel-hub-sub003/internal/entity"
	"github.com/dubaivisaervices/builder-pixel-hub-sub003/internal/ingest"
	"github.com/dubaivisaervices/builder-pixel-hub-sub003/internal/progress"
	"github.com/dubaivisaervices/builder-pixel-hub-sub003/internal/repository"
	"github.com/dubaivisaervices/builder-pixel-hub-sub003/internal/storage"
)

// Frame statuses sent to the progress stream.
const (
	StatusProcessing = "processing"

	interruptedReason = "interrupted by server restart"
	persistEvery      = 5
	recentJobsLimit   = 20
)

var (
	// ErrJobRunning is returned when a batch is requested while another one runs.
	ErrJobRunning = errors.New("an ingestion job is already running")
	// ErrJobNotRunning is returned when cancelling a job this process is not running.
	ErrJobNotRunning = errors.New("ingestion job is not running")
)

// IngestOptions bounds the batch parameters accepted from clients.
type IngestOptions struct {
	DefaultConcurrency int
	MaxConcurrency     int
	DefaultStrategy    string
}

// BatchResult is returned when a batch ends.
type BatchResult struct {
	Job     *entity.IngestJob `json:"job"`
	Summary ingest.Summary    `json:"summary"`
}

// IngestService runs ingestion batches as persisted, cancellable jobs.
type IngestService struct {
	jobs       repository.JobsRepository
	businesses ingest.Repository
	selectSrc  func(strategy string) (ingest.PhotoSource, error)
	store      storage.ImageStore
	broker     *progress.Broker
	cache      *cache.Cache
	opts       IngestOptions
	logger     *zap.Logger
	now        func() time.Time

	mu      sync.Mutex
	running map[uuid.UUID]context.CancelFunc
}

// NewIngestService wires the ingestion service. broker and c may be nil.
func NewIngestService(jobs repository.JobsRepository, businesses ingest.Repository, sources ingest.Sources, store storage.ImageStore, broker *progress.Broker, c *cache.Cache, opts IngestOptions, logger *zap.Logger) *IngestService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.DefaultConcurrency <= 0 {
		opts.DefaultConcurrency = 1
	}
	if opts.MaxConcurrency < opts.DefaultConcurrency {
		opts.MaxConcurrency = opts.DefaultConcurrency
	}
	if opts.DefaultStrategy == "" {
		opts.DefaultStrategy = ingest.StrategyHybrid
	}
	return &IngestService{
		jobs:       jobs,
		businesses: businesses,
		selectSrc:  sources.Select,
		store:      store,
		broker:     broker,
		cache:      c,
		opts:       opts,
		logger:     logger,
		now:        time.Now,
		running:    make(map[uuid.UUID]context.CancelFunc),
	}
}

// RunBatch runs one batch to completion and returns the final job and summary.
// The job outlives the caller's context; it stops on Cancel, StopAll or a
// failed pre-flight check.
func (s *IngestService) RunBatch(ctx context.Context, req dto.BatchUploadRequest) (*BatchResult, error) {
	var verr ValidationError
	if req.BatchNumber < 1 {
		verr.add("batchNumber", "must be 1 or greater")
	}
	strategy := req.Strategy
	if strategy == "" {
		strategy = s.opts.DefaultStrategy
	}
	source, err := s.selectSrc(strategy)
	if err != nil {
		verr.add("strategy", err.Error())
	}
	if err := verr.err(); err != nil {
		return nil, err
	}
	concurrency := s.clampConcurrency(req.Concurrency)

	job := &entity.IngestJob{
		ID:          uuid.New(),
		BatchNumber: req.BatchNumber,
		Strategy:    source.Name(),
		Concurrency: concurrency,
		State:       entity.JobQueued,
		Errors:      []string{},
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	defer cancel()
	if err := s.register(job.ID, cancel); err != nil {
		return nil, err
	}
	defer s.unregister(job.ID)

	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, err
	}
	logger := s.logger.With(zap.String("job_id", job.ID.String()), zap.Int("batch", job.BatchNumber))

	started := s.now()
	job.State = entity.JobRunning
	job.StartedAt = &started
	s.persist(runCtx, job, logger)
	s.publish(job, "")

	repo := evictingRepository{Repository: s.businesses, cache: s.cache, logger: logger}
	pipeline := ingest.NewPipeline(repo, source, s.store, logger)
	var (
		mu        sync.Mutex
		lastSaved int
	)
	observe := func(p ingest.Progress) {
		mu.Lock()
		defer mu.Unlock()
		applySummary(job, p.Summary)
		s.publish(job, p.Current)
		if job.Processed-lastSaved >= persistEvery {
			lastSaved = job.Processed
			s.persist(runCtx, job, logger)
		}
	}

	summary, runErr := pipeline.Run(runCtx, ingest.Batch{Number: job.BatchNumber, Concurrency: concurrency}, observe)

	mu.Lock()
	defer mu.Unlock()
	applySummary(job, summary)
	finished := s.now()
	job.FinishedAt = &finished
	switch {
	case runErr == nil:
		job.State = entity.JobCompleted
	case errors.Is(runErr, context.Canceled):
		job.State = entity.JobCancelled
	default:
		job.State = entity.JobFailed
		failure := runErr.Error()
		job.Failure = &failure
	}
	s.persist(runCtx, job, logger)
	s.publish(job, "")

	logger.Info("ingest job finished",
		zap.String("state", job.State),
		zap.Int("processed", job.Processed),
		zap.Int("errors", len(job.Errors)),
	)

	result := &BatchResult{Job: job, Summary: summary}
	if job.State == entity.JobFailed {
		return result, runErr
	}
	return result, nil
}

// Cancel stops a running job. The job ends as cancelled once the in-flight
// businesses settle.
func (s *IngestService) Cancel(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	cancel, ok := s.running[id]
	s.mu.Unlock()
	if ok {
		cancel()
		s.logger.Info("ingest job cancellation requested", zap.String("job_id", id.String()))
		return nil
	}

	job, err := s.jobs.Get(ctx, id)
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: job is %s", ErrJobNotRunning, job.State)
}

// StopAll cancels every running job and returns how many were signalled.
func (s *IngestService) StopAll() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, cancel := range s.running {
		cancel()
	}
	if n := len(s.running); n > 0 {
		s.logger.Info("stopping ingest jobs", zap.Int("jobs", n))
	}
	return len(s.running)
}

// Running reports whether a job is in progress in this process.
func (s *IngestService) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.running) > 0
}

// Get returns one job.
func (s *IngestService) Get(ctx context.Context, id uuid.UUID) (*entity.IngestJob, error) {
	return s.jobs.Get(ctx, id)
}

// Recent lists the latest jobs, newest first.
func (s *IngestService) Recent(ctx context.Context, limit int) ([]entity.IngestJob, error) {
	if limit <= 0 || limit > 100 {
		limit = recentJobsLimit
	}
	jobs, err := s.jobs.ListRecent(ctx, limit)
	if err != nil {
		return nil, err
	}
	if jobs == nil {
		jobs = []entity.IngestJob{}
	}
	return jobs, nil
}

// RecoverInterrupted fails jobs a previous process left queued or running.
func (s *IngestService) RecoverInterrupted(ctx context.Context) (int64, error) {
	n, err := s.jobs.FailInterrupted(ctx, interruptedReason)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Warn("marked interrupted ingest jobs as failed", zap.Int64("jobs", n))
	}
	return n, nil
}

// Probe checks the configured image store.
func (s *IngestService) Probe(ctx context.Context) (storage.ProbeResult, error) {
	if s.store == nil {
		return storage.ProbeResult{Message: "no image store configured"}, fmt.Errorf("%w: no image store configured", ingest.ErrPreflight)
	}
	return s.store.Probe(ctx)
}

func (s *IngestService) clampConcurrency(n int) int {
	if n <= 0 {
		return s.opts.DefaultConcurrency
	}
	if n > s.opts.MaxConcurrency {
		return s.opts.MaxConcurrency
	}
	return n
}

func (s *IngestService) register(id uuid.UUID, cancel context.CancelFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.running) > 0 {
		return ErrJobRunning
	}
	s.running[id] = cancel
	return nil
}

func (s *IngestService) unregister(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.running, id)
}

// evictingRepository drops the cached copy of a business once its images
// have been rewritten.
type evictingRepository struct {
	ingest.Repository
	cache  *cache.Cache
	logger *zap.Logger
}

func (r evictingRepository) UpdateImages(ctx context.Context, id, logoURL, logoRef string, photos []entity.Photo) error {
	if err := r.Repository.UpdateImages(ctx, id, logoURL, logoRef, photos); err != nil {
		return err
	}
	if err := r.cache.Delete(ctx, cache.BusinessKey(id)); err != nil {
		r.logger.Debug("evict cached business failed", zap.String("business_id", id), zap.Error(err))
	}
	return nil
}

func (s *IngestService) persist(ctx context.Context, job *entity.IngestJob, logger *zap.Logger) {
	if err := s.jobs.Update(context.WithoutCancel(ctx), job); err != nil {
		logger.Warn("persist ingest job failed", zap.Error(err))
	}
}

func (s *IngestService) publish(job *entity.IngestJob, current string) {
	if s.broker == nil {
		return
	}
	status := job.State
	if status == entity.JobRunning {
		status = StatusProcessing
	}
	s.broker.Publish(progress.Frame{
		JobID:           job.ID.String(),
		BatchNumber:     job.BatchNumber,
		CurrentBusiness: current,
		TotalBusinesses: job.Total,
		Processed:       job.Processed,
		Status:          status,
		Logos:           job.Logos,
		Photos:          job.Photos,
		Errors:          job.Errors,
	})
}

func applySummary(job *entity.IngestJob, summary ingest.Summary) {
	job.Total = summary.Total
	job.Processed = summary.Processed
	job.Successful = summary.Successful
	job.Logos = summary.TotalLogos
	job.Photos = summary.TotalPhotos
	job.Errors = append([]string{}, summary.Errors...)
}
