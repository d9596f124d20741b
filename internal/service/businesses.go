package service

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/dubaivisaervices/builder-pixel-hub-sub003/internal/cache"
	"github.com/dubaivisaervices/builder-pixel-hub-sub003/internal/directory"
	"github.com/dubaivisaervices/builder-pixel-hub-sub003/internal/dto"
	"github.com/dubaivisaervices/builder-pixel-hub-sub003/internal/entity"
	"github.com/dubaivisaervices/builder-pixel-hub-sub003/internal/ingest"
	"github.com/dubaivisaervices/builder-pixel-hub-sub003/internal/places"
	"github.com/dubaivisaervices/builder-pixel-hub-sub003/internal/repository"
	"github.com/dubaivisaervices/builder-pixel-hub-sub003/internal/resolver"
)

const companySearchLimit = 10

// PlacesClient is the subset of the Places client used by the directory.
type PlacesClient interface {
	SearchText(ctx context.Context, query string, limit int) ([]entity.Business, error)
	Details(ctx context.Context, placeID string) (places.Details, error)
	PhotoURI(ctx context.Context, photoRef string) (string, error)
}

// BusinessService serves directory views with tiered fallback and runs imports.
type BusinessService struct {
	repo    repository.BusinessesRepository
	reviews repository.ReviewsRepository
	cache   *cache.Cache
	places  PlacesClient
	logger  *zap.Logger
}

// CSVValidationError indicates that the provided CSV payload is invalid.
type CSVValidationError struct {
	Message string
}

// Error implements the error interface.
func (e CSVValidationError) Error() string {
	return e.Message
}

// UploadSummary reports how many rows were inserted or updated during import.
type UploadSummary struct {
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
	Total    int `json:"total"`
}

// NewBusinessService wires the directory service. cache and placesClient may be nil.
func NewBusinessService(repo repository.BusinessesRepository, reviews repository.ReviewsRepository, c *cache.Cache, placesClient PlacesClient, logger *zap.Logger) *BusinessService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BusinessService{repo: repo, reviews: reviews, cache: c, places: placesClient, logger: logger}
}

// Directory lists businesses from the database, the cache or the samples, in that order.
func (s *BusinessService) Directory(ctx context.Context, filter dto.ListFilter) dto.DirectoryResponse {
	if !directory.ValidSort(filter.Sort) {
		filter.Sort = ""
	}
	limit, offset := filter.Window()
	key := cache.ListKey(filter.Q, filter.Category, filter.Sort, limit, offset)

	total := 0
	database := resolver.Func(directory.SourceDatabase, func(ctx context.Context) ([]entity.Business, error) {
		records, err := s.repo.List(ctx, filter)
		if err != nil {
			return nil, err
		}
		if len(records) == 0 {
			return nil, nil
		}
		if total, err = s.repo.Count(ctx, filter); err != nil {
			s.logger.Warn("count businesses failed", zap.Error(err))
			total = len(records)
		}
		if err := s.cache.SetJSON(ctx, key, records); err != nil {
			s.logger.Debug("cache listing failed", zap.String("key", key), zap.Error(err))
		}
		return records, nil
	})
	cached := resolver.Func(directory.SourceCache, func(ctx context.Context) ([]entity.Business, error) {
		var records []entity.Business
		if err := s.cache.GetJSON(ctx, key, &records); err != nil {
			return nil, err
		}
		return records, nil
	})
	samples := directory.SampleSource(directory.Query{
		Q:        filter.Q,
		Category: filter.Category,
		Sort:     filter.Sort,
		Limit:    limit,
	})

	res := resolver.Resolve(ctx, database, cached, samples)
	s.logFallback("directory", res.Source, res.Attempts)

	resp := dto.DirectoryResponse{
		Businesses: withDisplayablePhotos(res.Data),
		Total:      len(res.Data),
		DataSource: sourceOrNone(res.Source),
	}
	if res.Source == directory.SourceDatabase && total > resp.Total {
		resp.Total = total
	}
	if res.Source != directory.SourceDatabase {
		resp.Error = resolver.Describe(res.Err)
	}
	if res.Source == directory.SourceSample {
		resp.Message = resolver.DemoModeMessage
	}
	return resp
}

// Get resolves one business by id.
func (s *BusinessService) Get(ctx context.Context, id string) dto.BusinessResponse {
	business, res := s.resolveBusiness(ctx, id)
	resp := dto.BusinessResponse{DataSource: sourceOrNone(res.Source)}
	if res.Source != "" {
		business.Photos = entity.DisplayablePhotos(business.ID, business.Photos)
		resp.Business = &business
	}
	if res.Source != directory.SourceDatabase {
		resp.Error = resolver.Describe(res.Err)
	}
	return resp
}

func (s *BusinessService) resolveBusiness(ctx context.Context, id string) (entity.Business, resolver.Result[entity.Business]) {
	key := cache.BusinessKey(id)
	database := resolver.Func(directory.SourceDatabase, func(ctx context.Context) ([]entity.Business, error) {
		b, err := s.repo.Get(ctx, id)
		if err != nil {
			if errors.Is(err, repository.ErrBusinessNotFound) {
				return nil, nil
			}
			return nil, err
		}
		if err := s.cache.SetJSON(ctx, key, b); err != nil {
			s.logger.Debug("cache business failed", zap.String("key", key), zap.Error(err))
		}
		return []entity.Business{*b}, nil
	})
	cached := resolver.Func(directory.SourceCache, func(ctx context.Context) ([]entity.Business, error) {
		var b entity.Business
		if err := s.cache.GetJSON(ctx, key, &b); err != nil {
			return nil, err
		}
		return []entity.Business{b}, nil
	})

	business, res := resolver.First(ctx, database, cached, directory.SampleRecordSource(id))
	s.logFallback("business", res.Source, res.Attempts)
	return business, res
}

// Photos returns displayable photos: stored ones, then live Places photos, then a placeholder.
func (s *BusinessService) Photos(ctx context.Context, id string) dto.PhotosResponse {
	business, found := s.resolveBusiness(ctx, id)

	stored := resolver.Func(directory.SourceDatabase, func(ctx context.Context) ([]entity.Photo, error) {
		if found.Source == "" {
			return nil, nil
		}
		var out []entity.Photo
		for _, p := range business.Photos {
			if p.Displayable() {
				out = append(out, p)
			}
		}
		return out, nil
	})
	live := resolver.Func(directory.SourcePlaces, func(ctx context.Context) ([]entity.Photo, error) {
		return s.livePhotos(ctx, id, business.Photos)
	})
	placeholder := resolver.Func(entity.PhotoSourceDefault, func(ctx context.Context) ([]entity.Photo, error) {
		return []entity.Photo{entity.PlaceholderPhoto(id)}, nil
	})

	res := resolver.Resolve(ctx, stored, live, placeholder)
	s.logFallback("photos", res.Source, res.Attempts)
	return dto.PhotosResponse{Photos: res.Data, DataSource: sourceOrNone(res.Source)}
}

func (s *BusinessService) livePhotos(ctx context.Context, id string, known []entity.Photo) ([]entity.Photo, error) {
	if s.places == nil {
		return nil, places.ErrMissingAPIKey
	}

	var refs []string
	for _, p := range known {
		if p.Reference != "" {
			refs = append(refs, p.Reference)
		}
	}
	if len(refs) == 0 {
		details, err := s.places.Details(ctx, id)
		if err != nil {
			return nil, err
		}
		refs = details.PhotoRefs
	}
	if len(refs) > ingest.MaxPhotos {
		refs = refs[:ingest.MaxPhotos]
	}

	out := make([]entity.Photo, 0, len(refs))
	var firstErr error
	for i, ref := range refs {
		uri, err := s.places.PhotoURI(ctx, ref)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		out = append(out, entity.Photo{
			ID:        fmt.Sprintf("%s-photo-%d", id, i+1),
			URL:       &uri,
			Source:    entity.PhotoSourceAPI,
			Reference: ref,
		})
	}
	if len(out) == 0 && firstErr != nil {
		return nil, firstErr
	}
	return out, nil
}

// Reviews returns stored reviews, falling back to Places and storing what it returns.
func (s *BusinessService) Reviews(ctx context.Context, id string) dto.ReviewsResponse {
	key := cache.ReviewsKey(id)
	stored := resolver.Func(directory.SourceDatabase, func(ctx context.Context) ([]entity.Review, error) {
		reviews, err := s.reviews.ListByBusiness(ctx, id)
		if err != nil || len(reviews) == 0 {
			return reviews, err
		}
		s.cacheReviews(ctx, key, reviews)
		return reviews, nil
	})
	cached := resolver.Func(directory.SourceCache, func(ctx context.Context) ([]entity.Review, error) {
		var reviews []entity.Review
		if err := s.cache.GetJSON(ctx, key, &reviews); err != nil {
			return nil, err
		}
		return reviews, nil
	})
	live := resolver.Func(directory.SourcePlaces, func(ctx context.Context) ([]entity.Review, error) {
		if s.places == nil {
			return nil, places.ErrMissingAPIKey
		}
		details, err := s.places.Details(ctx, id)
		if err != nil {
			return nil, err
		}
		if len(details.Reviews) > 0 {
			if err := s.reviews.UpsertMany(ctx, details.Reviews); err != nil {
				s.logger.Warn("store places reviews failed", zap.String("business_id", id), zap.Error(err))
			}
			s.cacheReviews(ctx, key, details.Reviews)
		}
		return details.Reviews, nil
	})

	res := resolver.Resolve(ctx, stored, cached, live)
	s.logFallback("reviews", res.Source, res.Attempts)
	return dto.ReviewsResponse{Reviews: res.Data, DataSource: sourceOrNone(res.Source)}
}

func (s *BusinessService) cacheReviews(ctx context.Context, key string, reviews []entity.Review) {
	if err := s.cache.SetJSON(ctx, key, reviews); err != nil {
		s.logger.Debug("cache reviews failed", zap.String("key", key), zap.Error(err))
	}
}

// SearchCompanies finds businesses for the complaint wizard.
func (s *BusinessService) SearchCompanies(ctx context.Context, q string) dto.CompanySearchResponse {
	q = strings.TrimSpace(q)
	filter := dto.ListFilter{Q: q, Limit: companySearchLimit}

	database := resolver.Func(directory.SourceDatabase, func(ctx context.Context) ([]entity.Business, error) {
		return s.repo.List(ctx, filter)
	})
	samples := directory.SampleSource(directory.Query{Q: q, Limit: companySearchLimit})

	res := resolver.Resolve(ctx, database, samples)
	s.logFallback("company search", res.Source, res.Attempts)

	out := make([]dto.CompanySearchResult, 0, len(res.Data))
	for _, b := range res.Data {
		out = append(out, dto.CompanySearchResult{
			ID:       b.ID,
			Name:     b.Name,
			Address:  b.Address,
			Category: b.Category,
			Rating:   b.Rating,
			LogoURL:  b.LogoURL,
		})
	}
	resp := dto.CompanySearchResponse{Companies: out, DataSource: sourceOrNone(res.Source)}
	if res.Source != directory.SourceDatabase {
		resp.Error = resolver.Describe(res.Err)
	}
	return resp
}

// ImportFromPlaces runs a text search and upserts the results.
func (s *BusinessService) ImportFromPlaces(ctx context.Context, query string, limit int) (UploadSummary, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return UploadSummary{}, ValidationError{Fields: map[string]string{"query": "is required"}}
	}
	if s.places == nil {
		return UploadSummary{}, places.ErrMissingAPIKey
	}

	found, err := s.places.SearchText(ctx, query, limit)
	if err != nil {
		return UploadSummary{}, fmt.Errorf("search places: %w", err)
	}
	for i := range found {
		if phone := normalizePhone(found[i].Phone, defaultPhoneRegion); phone != "" {
			found[i].Phone = phone
		}
	}

	result, err := s.repo.BulkUpsert(ctx, found)
	if err != nil {
		return UploadSummary{}, err
	}
	s.logger.Info("places import finished",
		zap.String("query", query),
		zap.Int("inserted", result.Inserted),
		zap.Int("updated", result.Updated),
	)
	return UploadSummary{Inserted: result.Inserted, Updated: result.Updated, Total: result.Total}, nil
}

// ImportCSV ingests businesses from a CSV reader, upserting by id.
func (s *BusinessService) ImportCSV(ctx context.Context, r io.Reader) (UploadSummary, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return UploadSummary{}, CSVValidationError{Message: "csv file is empty"}
		}
		return UploadSummary{}, fmt.Errorf("read csv header: %w", err)
	}

	index, valErr := buildHeaderIndex(header)
	if valErr != nil {
		return UploadSummary{}, valErr
	}

	var (
		records []entity.Business
		rowNum  = 1
	)
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return UploadSummary{}, fmt.Errorf("read csv row: %w", err)
		}
		rowNum++

		col := func(name string) string {
			i, ok := index[name]
			if !ok || i >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[i])
		}

		id, name := col("id"), col("name")
		if id == "" || name == "" {
			continue
		}

		rating, parseErr := parseOptionalFloat(col("rating"))
		if parseErr != nil || rating < 0 || rating > 5 {
			return UploadSummary{}, CSVValidationError{Message: fmt.Sprintf("invalid rating value on row %d", rowNum)}
		}
		reviews, parseErr := parseOptionalInt(col("reviews"))
		if parseErr != nil || reviews < 0 {
			return UploadSummary{}, CSVValidationError{Message: fmt.Sprintf("invalid reviews value on row %d", rowNum)}
		}

		phone := col("phone")
		if normalized := normalizePhone(phone, defaultPhoneRegion); normalized != "" {
			phone = normalized
		}
		email := ""
		if normalized, ok := normalizeEmail(col("email")); ok {
			email = normalized
		}

		records = append(records, entity.Business{
			ID:             id,
			Name:           name,
			Address:        col("address"),
			Category:       col("category"),
			Phone:          phone,
			Website:        normalizeWebsite(col("website")),
			Email:          email,
			Rating:         rating,
			ReviewCount:    reviews,
			BusinessStatus: col("business_status"),
		})
	}

	result, err := s.repo.BulkUpsert(ctx, records)
	if err != nil {
		return UploadSummary{}, err
	}

	return UploadSummary{
		Inserted: result.Inserted,
		Updated:  result.Updated,
		Total:    result.Total,
	}, nil
}

func (s *BusinessService) logFallback(view, source string, attempts []resolver.Attempt) {
	for _, a := range attempts {
		s.logger.Warn("data source failed",
			zap.String("view", view),
			zap.String("source", a.Source),
			zap.String("kind", string(resolver.Classify(a.Err))),
			zap.Error(a.Err),
		)
	}
	if source == "" {
		s.logger.Error("all data sources failed", zap.String("view", view))
	}
}

var requiredCSVHeaders = []string{"id", "name", "address"}

func buildHeaderIndex(header []string) (map[string]int, error) {
	index := make(map[string]int)
	for i, col := range header {
		index[strings.ToLower(strings.TrimSpace(col))] = i
	}

	missing := make([]string, 0)
	for _, required := range requiredCSVHeaders {
		if _, ok := index[required]; !ok {
			missing = append(missing, required)
		}
	}
	if len(missing) > 0 {
		return nil, CSVValidationError{Message: fmt.Sprintf("missing required columns: %s", strings.Join(missing, ", "))}
	}
	return index, nil
}

func parseOptionalFloat(value string) (float64, error) {
	if value == "" {
		return 0, nil
	}
	return strconv.ParseFloat(value, 64)
}

func parseOptionalInt(value string) (int, error) {
	if value == "" {
		return 0, nil
	}
	return strconv.Atoi(value)
}

func withDisplayablePhotos(records []entity.Business) []entity.Business {
	for i := range records {
		records[i].Photos = entity.DisplayablePhotos(records[i].ID, records[i].Photos)
	}
	return records
}

func sourceOrNone(source string) string {
	if source == "" {
		return directory.SourceNone
	}
	return source
}
