package handler

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/google/uuid"

	"github.com/dubaivisaervices/builder-pixel-hub-sub003/internal/dto"
	"github.com/dubaivisaervices/builder-pixel-hub-sub003/internal/entity"
	"github.com/dubaivisaervices/builder-pixel-hub-sub003/internal/repository"
	"github.com/dubaivisaervices/builder-pixel-hub-sub003/internal/storage"
)

type stubBusinessesRepo struct {
	list      func(ctx context.Context, filter dto.ListFilter) ([]entity.Business, error)
	get       func(ctx context.Context, id string) (*entity.Business, error)
	bulk      func(ctx context.Context, records []entity.Business) (repository.BulkUpsertResult, error)
	listBatch func(ctx context.Context, offset, limit int) ([]entity.Business, error)
}

func (s *stubBusinessesRepo) List(ctx context.Context, filter dto.ListFilter) ([]entity.Business, error) {
	if s.list != nil {
		return s.list(ctx, filter)
	}
	return nil, errors.New("database unavailable")
}

func (s *stubBusinessesRepo) Count(ctx context.Context, filter dto.ListFilter) (int, error) {
	records, err := s.List(ctx, filter)
	return len(records), err
}

func (s *stubBusinessesRepo) Get(ctx context.Context, id string) (*entity.Business, error) {
	if s.get != nil {
		return s.get(ctx, id)
	}
	return nil, repository.ErrBusinessNotFound
}

func (s *stubBusinessesRepo) Upsert(ctx context.Context, business *entity.Business) (bool, error) {
	return false, errors.New("not implemented")
}

func (s *stubBusinessesRepo) BulkUpsert(ctx context.Context, records []entity.Business) (repository.BulkUpsertResult, error) {
	if s.bulk != nil {
		return s.bulk(ctx, records)
	}
	return repository.BulkUpsertResult{}, errors.New("not implemented")
}

func (s *stubBusinessesRepo) ListBatch(ctx context.Context, offset, limit int) ([]entity.Business, error) {
	if s.listBatch != nil {
		return s.listBatch(ctx, offset, limit)
	}
	return nil, nil
}

func (s *stubBusinessesRepo) UpdateImages(ctx context.Context, id, logoURL, logoRef string, photos []entity.Photo) error {
	return nil
}

type stubReviewsRepo struct {
	reviews []entity.Review
}

func (s *stubReviewsRepo) ListByBusiness(ctx context.Context, businessID string) ([]entity.Review, error) {
	return s.reviews, nil
}

func (s *stubReviewsRepo) UpsertMany(ctx context.Context, reviews []entity.Review) error {
	return nil
}

type stubReportsRepo struct {
	mu      sync.Mutex
	reports map[uuid.UUID]*entity.Report
}

func newStubReportsRepo(seed ...entity.Report) *stubReportsRepo {
	repo := &stubReportsRepo{reports: make(map[uuid.UUID]*entity.Report)}
	for i := range seed {
		r := seed[i]
		repo.reports[r.ID] = &r
	}
	return repo
}

func (s *stubReportsRepo) Create(ctx context.Context, report *entity.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *report
	s.reports[report.ID] = &copied
	return nil
}

func (s *stubReportsRepo) Get(ctx context.Context, id uuid.UUID) (*entity.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reports[id]
	if !ok {
		return nil, repository.ErrReportNotFound
	}
	copied := *r
	return &copied, nil
}

func (s *stubReportsRepo) List(ctx context.Context, status string, limit int) ([]entity.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []entity.Report{}
	for _, r := range s.reports {
		if status == "" || r.Status == status {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (s *stubReportsRepo) UpdateStatus(ctx context.Context, id uuid.UUID, from, to string) (*entity.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reports[id]
	if !ok || r.Status != from {
		return nil, repository.ErrReportStatusChanged
	}
	r.Status = to
	copied := *r
	return &copied, nil
}

type stubJobsRepo struct {
	mu   sync.Mutex
	jobs map[uuid.UUID]entity.IngestJob
}

func newStubJobsRepo() *stubJobsRepo {
	return &stubJobsRepo{jobs: make(map[uuid.UUID]entity.IngestJob)}
}

func (s *stubJobsRepo) Create(ctx context.Context, job *entity.IngestJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = *job
	return nil
}

func (s *stubJobsRepo) Update(ctx context.Context, job *entity.IngestJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[job.ID]; !ok {
		return repository.ErrJobNotFound
	}
	s.jobs[job.ID] = *job
	return nil
}

func (s *stubJobsRepo) Get(ctx context.Context, id uuid.UUID) (*entity.IngestJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, repository.ErrJobNotFound
	}
	return &job, nil
}

func (s *stubJobsRepo) ListRecent(ctx context.Context, limit int) ([]entity.IngestJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []entity.IngestJob{}
	for _, job := range s.jobs {
		out = append(out, job)
	}
	return out, nil
}

func (s *stubJobsRepo) FailInterrupted(ctx context.Context, reason string) (int64, error) {
	return 0, nil
}

// memoryStore records uploads and answers probes with a fixed result.
type memoryStore struct {
	mu       sync.Mutex
	objects  map[string][]byte
	probeErr error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{objects: make(map[string][]byte)}
}

func (m *memoryStore) Name() string { return "memory" }

func (m *memoryStore) Put(ctx context.Context, name string, r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[name] = data
	return storage.PublicURL("https://files.example.com", name), nil
}

func (m *memoryStore) Probe(ctx context.Context) (storage.ProbeResult, error) {
	if m.probeErr != nil {
		return storage.ProbeResult{Backend: m.Name(), Message: m.probeErr.Error()}, m.probeErr
	}
	return storage.ProbeResult{Backend: m.Name(), Connected: true, Message: "ok"}, nil
}
