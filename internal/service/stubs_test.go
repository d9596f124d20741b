package service

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"github.com/dubaivisaervices/builder-pixel-hub-sub003/internal/dto"
	"github.com/dubaivisaervices/builder-pixel-hub-sub003/internal/entity"
	"github.com/dubaivisaervices/builder-pixel-hub-sub003/internal/places"
	"github.com/dubaivisaervices/builder-pixel-hub-sub003/internal/repository"
)

type mockBusinessesRepository struct {
	list         func(ctx context.Context, filter dto.ListFilter) ([]entity.Business, error)
	count        func(ctx context.Context, filter dto.ListFilter) (int, error)
	get          func(ctx context.Context, id string) (*entity.Business, error)
	bulk         func(ctx context.Context, records []entity.Business) (repository.BulkUpsertResult, error)
	listBatch    func(ctx context.Context, offset, limit int) ([]entity.Business, error)
	updateImages func(ctx context.Context, id, logoURL string, photos []entity.Photo) error
}

func (m *mockBusinessesRepository) List(ctx context.Context, filter dto.ListFilter) ([]entity.Business, error) {
	if m.list != nil {
		return m.list(ctx, filter)
	}
	return nil, errors.New("list not implemented")
}

func (m *mockBusinessesRepository) Count(ctx context.Context, filter dto.ListFilter) (int, error) {
	if m.count != nil {
		return m.count(ctx, filter)
	}
	return 0, errors.New("count not implemented")
}

func (m *mockBusinessesRepository) Get(ctx context.Context, id string) (*entity.Business, error) {
	if m.get != nil {
		return m.get(ctx, id)
	}
	return nil, errors.New("get not implemented")
}

func (m *mockBusinessesRepository) Upsert(ctx context.Context, business *entity.Business) (bool, error) {
	return false, errors.New("upsert not implemented")
}

func (m *mockBusinessesRepository) BulkUpsert(ctx context.Context, records []entity.Business) (repository.BulkUpsertResult, error) {
	if m.bulk != nil {
		return m.bulk(ctx, records)
	}
	return repository.BulkUpsertResult{}, errors.New("bulk not implemented")
}

func (m *mockBusinessesRepository) ListBatch(ctx context.Context, offset, limit int) ([]entity.Business, error) {
	if m.listBatch != nil {
		return m.listBatch(ctx, offset, limit)
	}
	return nil, errors.New("listBatch not implemented")
}

func (m *mockBusinessesRepository) UpdateImages(ctx context.Context, id, logoURL, logoRef string, photos []entity.Photo) error {
	if m.updateImages != nil {
		return m.updateImages(ctx, id, logoURL, photos)
	}
	return errors.New("updateImages not implemented")
}

type mockReviewsRepository struct {
	listByBusiness func(ctx context.Context, businessID string) ([]entity.Review, error)
	upserted       []entity.Review
}

func (m *mockReviewsRepository) ListByBusiness(ctx context.Context, businessID string) ([]entity.Review, error) {
	if m.listByBusiness != nil {
		return m.listByBusiness(ctx, businessID)
	}
	return nil, nil
}

func (m *mockReviewsRepository) UpsertMany(ctx context.Context, reviews []entity.Review) error {
	m.upserted = append(m.upserted, reviews...)
	return nil
}

type mockPlaces struct {
	search   func(ctx context.Context, query string, limit int) ([]entity.Business, error)
	details  func(ctx context.Context, placeID string) (places.Details, error)
	photoURI func(ctx context.Context, ref string) (string, error)
}

func (m *mockPlaces) SearchText(ctx context.Context, query string, limit int) ([]entity.Business, error) {
	if m.search != nil {
		return m.search(ctx, query, limit)
	}
	return nil, errors.New("search not implemented")
}

func (m *mockPlaces) Details(ctx context.Context, placeID string) (places.Details, error) {
	if m.details != nil {
		return m.details(ctx, placeID)
	}
	return places.Details{}, errors.New("details not implemented")
}

func (m *mockPlaces) PhotoURI(ctx context.Context, ref string) (string, error) {
	if m.photoURI != nil {
		return m.photoURI(ctx, ref)
	}
	return "", errors.New("photoURI not implemented")
}

// memoryRedis satisfies cache.Client with an in-memory map.
type memoryRedis struct {
	values map[string]string
}

func (m *memoryRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	v, ok := m.values[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *memoryRedis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	if m.values == nil {
		m.values = map[string]string{}
	}
	m.values[key] = string(value.([]byte))
	return redis.NewStatusResult("OK", nil)
}

func (m *memoryRedis) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	for _, k := range keys {
		delete(m.values, k)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}

type mockReportsRepository struct {
	created      []*entity.Report
	createErr    error
	get          func(ctx context.Context, id uuid.UUID) (*entity.Report, error)
	list         func(ctx context.Context, status string, limit int) ([]entity.Report, error)
	updateStatus func(ctx context.Context, id uuid.UUID, from, to string) (*entity.Report, error)
}

func (m *mockReportsRepository) Create(ctx context.Context, report *entity.Report) error {
	if m.createErr != nil {
		return m.createErr
	}
	now := time.Now()
	report.CreatedAt = now
	report.UpdatedAt = now
	m.created = append(m.created, report)
	return nil
}

func (m *mockReportsRepository) Get(ctx context.Context, id uuid.UUID) (*entity.Report, error) {
	if m.get != nil {
		return m.get(ctx, id)
	}
	return nil, repository.ErrReportNotFound
}

func (m *mockReportsRepository) List(ctx context.Context, status string, limit int) ([]entity.Report, error) {
	if m.list != nil {
		return m.list(ctx, status, limit)
	}
	return nil, nil
}

func (m *mockReportsRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to string) (*entity.Report, error) {
	if m.updateStatus != nil {
		return m.updateStatus(ctx, id, from, to)
	}
	return nil, errors.New("updateStatus not implemented")
}
