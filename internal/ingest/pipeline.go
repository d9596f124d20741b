// Package ingest copies business images from an upstream source onto the
// image store and rewrites the stored business records to point at them.
package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dubaivisaervices/builder-pixel-hub-sub003/internal/entity"
	"github.com/dubaivisaervices/builder-pixel-hub-sub003/internal/storage"
)

const (
	// BatchSize is the number of businesses processed per batch.
	BatchSize = 50
	// MaxPhotos is the number of gallery photos kept besides the logo.
	MaxPhotos = 5
)

var (
	// ErrInvalidBatch is returned for batch numbers below 1.
	ErrInvalidBatch = errors.New("batch number must be 1 or greater")
	// ErrPreflight wraps a failed source or store check.
	ErrPreflight = errors.New("pre-flight check failed")
	// ErrNoImages is recorded for businesses the source has nothing for.
	ErrNoImages = errors.New("no images available")
)

// Repository loads batches and persists rewritten image URLs.
type Repository interface {
	ListBatch(ctx context.Context, offset, limit int) ([]entity.Business, error)
	UpdateImages(ctx context.Context, id, logoURL, logoRef string, photos []entity.Photo) error
}

// Batch selects the slice of businesses to process.
type Batch struct {
	Number      int
	Concurrency int
}

// Offset is the position of the first business of the batch.
func (b Batch) Offset() int {
	return (b.Number - 1) * BatchSize
}

// Summary is reported when a batch ends.
type Summary struct {
	Total       int      `json:"total"`
	Processed   int      `json:"processed"`
	Successful  int      `json:"successful"`
	TotalLogos  int      `json:"totalLogos"`
	TotalPhotos int      `json:"totalPhotos"`
	Errors      []string `json:"errors"`
}

// Progress is passed to the observer after every business.
type Progress struct {
	Current string
	Summary Summary
}

// Observer receives progress updates. Calls are serialized.
type Observer func(Progress)

// Pipeline runs fetch, upload and rewrite for one batch.
type Pipeline struct {
	repo   Repository
	source PhotoSource
	store  storage.ImageStore
	logger *zap.Logger
}

// NewPipeline wires a pipeline.
func NewPipeline(repo Repository, source PhotoSource, store storage.ImageStore, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{repo: repo, source: source, store: store, logger: logger}
}

// Preflight checks the source and the store before any business is touched.
func (p *Pipeline) Preflight(ctx context.Context) error {
	if p.source == nil || p.store == nil {
		return fmt.Errorf("%w: source and store must be configured", ErrPreflight)
	}
	if checker, ok := p.source.(Checker); ok {
		if err := checker.Check(ctx); err != nil {
			return fmt.Errorf("%w: %s source: %w", ErrPreflight, p.source.Name(), err)
		}
	}
	if _, err := p.store.Probe(ctx); err != nil {
		return fmt.Errorf("%w: %s store: %w", ErrPreflight, p.store.Name(), err)
	}
	return nil
}

// Run processes one batch. Failures of single businesses are recorded in the
// summary and never stop the batch. Uploaded objects are not rolled back.
// When ctx is cancelled the partial summary is returned with ctx.Err().
func (p *Pipeline) Run(ctx context.Context, batch Batch, observe Observer) (Summary, error) {
	summary := Summary{Errors: []string{}}
	if batch.Number < 1 {
		return summary, ErrInvalidBatch
	}
	if batch.Concurrency < 1 {
		batch.Concurrency = 1
	}
	if observe == nil {
		observe = func(Progress) {}
	}

	if err := p.Preflight(ctx); err != nil {
		return summary, err
	}

	businesses, err := p.repo.ListBatch(ctx, batch.Offset(), BatchSize)
	if err != nil {
		return summary, fmt.Errorf("load batch %d: %w", batch.Number, err)
	}
	summary.Total = len(businesses)
	p.logger.Info("batch started",
		zap.Int("batch", batch.Number),
		zap.Int("businesses", len(businesses)),
		zap.Int("concurrency", batch.Concurrency),
		zap.String("source", p.source.Name()),
	)
	observe(Progress{Summary: snapshot(summary)})

	var mu sync.Mutex
	record := func(b entity.Business, logos, photos int, err error) {
		mu.Lock()
		defer mu.Unlock()
		summary.Processed++
		if err != nil {
			summary.Errors = append(summary.Errors, fmt.Sprintf("%s (%s): %v", b.Name, b.ID, err))
			p.logger.Warn("business failed", zap.String("id", b.ID), zap.Error(err))
		} else {
			summary.Successful++
			summary.TotalLogos += logos
			summary.TotalPhotos += photos
		}
		observe(Progress{Current: b.Name, Summary: snapshot(summary)})
	}

	if batch.Concurrency == 1 {
		for _, b := range businesses {
			if ctx.Err() != nil {
				break
			}
			logos, photos, err := p.process(ctx, b)
			record(b, logos, photos, err)
		}
	} else {
		var g errgroup.Group
		g.SetLimit(batch.Concurrency)
		for _, b := range businesses {
			if ctx.Err() != nil {
				break
			}
			g.Go(func() error {
				if ctx.Err() != nil {
					return nil
				}
				logos, photos, err := p.process(ctx, b)
				record(b, logos, photos, err)
				return nil
			})
		}
		_ = g.Wait()
	}

	p.logger.Info("batch finished",
		zap.Int("batch", batch.Number),
		zap.Int("processed", summary.Processed),
		zap.Int("successful", summary.Successful),
		zap.Int("errors", len(summary.Errors)),
	)
	return snapshot(summary), ctx.Err()
}

func (p *Pipeline) process(ctx context.Context, b entity.Business) (int, int, error) {
	images, err := p.source.Fetch(ctx, b)
	if err != nil {
		return 0, 0, err
	}
	if len(images) == 0 {
		return 0, 0, ErrNoImages
	}

	logoURL, err := p.store.Put(ctx, storage.LogoName(b.ID), bytes.NewReader(images[0].Data))
	if err != nil {
		return 0, 0, fmt.Errorf("upload logo: %w", err)
	}

	gallery := images[1:]
	if len(gallery) > MaxPhotos {
		gallery = gallery[:MaxPhotos]
	}
	photos := make([]entity.Photo, 0, len(gallery))
	for i, img := range gallery {
		url, err := p.store.Put(ctx, storage.PhotoName(b.ID, i+1), bytes.NewReader(img.Data))
		if err != nil {
			return 0, 0, fmt.Errorf("upload photo %d: %w", i+1, err)
		}
		hosted := url
		photos = append(photos, entity.Photo{
			ID:        fmt.Sprintf("%s-photo-%d", b.ID, i+1),
			URL:       &url,
			HostURL:   &hosted,
			Source:    entity.PhotoSourceHosted,
			Reference: img.Ref,
		})
	}

	if err := p.repo.UpdateImages(ctx, b.ID, logoURL, images[0].Ref, photos); err != nil {
		return 0, 0, fmt.Errorf("update images: %w", err)
	}
	return 1, len(photos), nil
}

func snapshot(s Summary) Summary {
	s.Errors = append([]string{}, s.Errors...)
	return s
}
