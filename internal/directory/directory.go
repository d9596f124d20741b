// Package directory holds the bundled sample listings and the filtering rules
// shared by every listing view.
package directory

import (
	"context"
	_ "embed"
	"encoding/json"
	"sort"
	"strings"

	"github.com/dubaivisaervices/builder-pixel-hub-sub003/internal/entity"
	"github.com/dubaivisaervices/builder-pixel-hub-sub003/internal/resolver"
)

// Data source names reported to clients.
const (
	SourceDatabase = "database"
	SourceCache    = "cache"
	SourceSample   = "sample"
	SourceAPI      = "api"
	SourceSnapshot = "snapshot"
	SourcePlaces   = "places"
	// SourceNone is reported when every tier came back empty.
	SourceNone = "none"
)

// Sort keys.
const (
	SortRating  = "rating"
	SortReviews = "reviews"
	SortName    = "name"
)

//go:embed samples.json
var samplesJSON []byte

var samples = mustLoadSamples()

func mustLoadSamples() []entity.Business {
	var records []entity.Business
	if err := json.Unmarshal(samplesJSON, &records); err != nil {
		panic("directory: invalid embedded samples: " + err.Error())
	}
	return records
}

// Samples returns a copy of the bundled sample records.
func Samples() []entity.Business {
	out := make([]entity.Business, len(samples))
	copy(out, samples)
	for i := range out {
		out[i].Photos = append([]entity.Photo(nil), samples[i].Photos...)
	}
	return out
}

// FindSample looks up a sample record by id.
func FindSample(id string) (entity.Business, bool) {
	for _, b := range Samples() {
		if b.ID == id {
			return b, true
		}
	}
	return entity.Business{}, false
}

// Query narrows and orders a listing.
type Query struct {
	Q        string
	Category string
	Sort     string
	Limit    int
}

// ValidSort reports whether key is a supported sort key. Empty means default.
func ValidSort(key string) bool {
	switch key {
	case "", SortRating, SortReviews, SortName:
		return true
	}
	return false
}

// Filter applies a query to records without modifying the input.
func Filter(records []entity.Business, q Query) []entity.Business {
	needle := strings.ToLower(strings.TrimSpace(q.Q))
	category := strings.TrimSpace(q.Category)

	out := make([]entity.Business, 0, len(records))
	for _, b := range records {
		if category != "" && !strings.EqualFold(b.Category, category) {
			continue
		}
		if needle != "" && !matches(b, needle) {
			continue
		}
		out = append(out, b)
	}

	sortRecords(out, q.Sort)
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out
}

func matches(b entity.Business, needle string) bool {
	return strings.Contains(strings.ToLower(b.Name), needle) ||
		strings.Contains(strings.ToLower(b.Category), needle) ||
		strings.Contains(strings.ToLower(b.Address), needle)
}

func sortRecords(records []entity.Business, key string) {
	byName := func(a, b entity.Business) bool {
		return strings.ToLower(a.Name) < strings.ToLower(b.Name)
	}
	var less func(a, b entity.Business) bool
	switch key {
	case SortName:
		less = byName
	case SortReviews:
		less = func(a, b entity.Business) bool {
			if a.ReviewCount != b.ReviewCount {
				return a.ReviewCount > b.ReviewCount
			}
			return byName(a, b)
		}
	default:
		less = func(a, b entity.Business) bool {
			if a.Rating != b.Rating {
				return a.Rating > b.Rating
			}
			if a.ReviewCount != b.ReviewCount {
				return a.ReviewCount > b.ReviewCount
			}
			return byName(a, b)
		}
	}
	sort.SliceStable(records, func(i, j int) bool { return less(records[i], records[j]) })
}

// SampleSource is the last listing tier.
func SampleSource(q Query) resolver.Source[entity.Business] {
	return resolver.Func(SourceSample, func(ctx context.Context) ([]entity.Business, error) {
		return Filter(Samples(), q), nil
	})
}

// SampleRecordSource is the last detail tier.
func SampleRecordSource(id string) resolver.Source[entity.Business] {
	return resolver.Func(SourceSample, func(ctx context.Context) ([]entity.Business, error) {
		if b, ok := FindSample(id); ok {
			return []entity.Business{b}, nil
		}
		return nil, nil
	})
}
