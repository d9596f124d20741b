package ingest

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/dubaivisaervices/builder-pixel-hub-sub003/internal/entity"
	"github.com/dubaivisaervices/builder-pixel-hub-sub003/internal/places"
	"github.com/dubaivisaervices/builder-pixel-hub-sub003/internal/resolver"
	"github.com/dubaivisaervices/builder-pixel-hub-sub003/internal/retry"
)

// Strategy names accepted by the batch endpoint.
const (
	StrategyGoogle = "google"
	StrategyCached = "cached"
	StrategyBase64 = "base64"
	StrategyHybrid = "hybrid"
)

// ErrUnknownStrategy is returned by Sources.Select.
var ErrUnknownStrategy = errors.New("unknown photo source strategy")

// Image is one fetched image. The first image of a business becomes its logo.
type Image struct {
	Data   []byte
	Origin string
	// Ref is the Places photo resource name, set only for images fetched from Places.
	Ref string
}

// PhotoSource produces the images of a business.
type PhotoSource interface {
	Name() string
	Fetch(ctx context.Context, b entity.Business) ([]Image, error)
}

// Checker is implemented by sources that need a pre-flight check.
type Checker interface {
	Check(ctx context.Context) error
}

// PlacesPhotos is the part of the Places client the Google source needs.
type PlacesPhotos interface {
	Check() error
	Details(ctx context.Context, placeID string) (places.Details, error)
	PhotoBytes(ctx context.Context, photoRef string) ([]byte, error)
}

// GoogleSource downloads photos from Google Places. A nil source or one
// without a Places client answers ErrMissingAPIKey.
type GoogleSource struct {
	Places PlacesPhotos
}

// Configured reports whether a Places client is wired.
func (s *GoogleSource) Configured() bool {
	return s != nil && s.Places != nil
}

// Name implements PhotoSource.
func (s *GoogleSource) Name() string { return StrategyGoogle }

// Check implements Checker.
func (s *GoogleSource) Check(ctx context.Context) error {
	if !s.Configured() {
		return places.ErrMissingAPIKey
	}
	return s.Places.Check()
}

// Fetch implements PhotoSource. Stored photo references are used when present
// so that only the media lookups hit the API.
func (s *GoogleSource) Fetch(ctx context.Context, b entity.Business) ([]Image, error) {
	if !s.Configured() {
		return nil, places.ErrMissingAPIKey
	}
	refs := storedReferences(b)
	if len(refs) == 0 {
		details, err := s.Places.Details(ctx, b.ID)
		if err != nil {
			return nil, err
		}
		refs = details.PhotoRefs
	}
	if len(refs) > MaxPhotos+1 {
		refs = refs[:MaxPhotos+1]
	}

	images := make([]Image, 0, len(refs))
	var firstErr error
	for _, ref := range refs {
		data, err := s.Places.PhotoBytes(ctx, ref)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			if errors.Is(err, places.ErrQuota) || ctx.Err() != nil {
				break
			}
			continue
		}
		images = append(images, Image{Data: data, Origin: ref, Ref: ref})
	}
	if len(images) == 0 && firstErr != nil {
		return nil, firstErr
	}
	return images, nil
}

// storedReferences rebuilds the logo-first reference list of an earlier run
// or import.
func storedReferences(b entity.Business) []string {
	var refs []string
	if b.LogoRef != "" {
		refs = append(refs, b.LogoRef)
	}
	for _, p := range b.Photos {
		if p.Reference != "" {
			refs = append(refs, p.Reference)
		}
	}
	return refs
}

// CachedSource re-hosts images that already have a remote URL.
type CachedSource struct {
	Client *http.Client
	Retry  retry.Policy
	// HostedPrefix marks URLs that already live on the image store.
	HostedPrefix string
}

// Name implements PhotoSource.
func (s *CachedSource) Name() string { return StrategyCached }

// Fetch implements PhotoSource.
func (s *CachedSource) Fetch(ctx context.Context, b entity.Business) ([]Image, error) {
	var urls []string
	if b.LogoURL != nil && isRemote(*b.LogoURL) {
		urls = append(urls, *b.LogoURL)
	}
	for _, p := range b.Photos {
		for _, candidate := range []*string{p.URL, p.HostURL} {
			if candidate != nil && isRemote(*candidate) {
				urls = append(urls, *candidate)
				break
			}
		}
	}

	policy := s.Retry
	if policy.MaxRetries == 0 && policy.Initial == 0 {
		policy = retry.DefaultPolicy
	}

	images := make([]Image, 0, len(urls))
	seen := make(map[string]bool, len(urls))
	var firstErr error
	for _, u := range urls {
		if seen[u] || (s.HostedPrefix != "" && strings.HasPrefix(u, s.HostedPrefix)) {
			continue
		}
		seen[u] = true
		if len(images) > MaxPhotos {
			break
		}
		data, err := places.Download(ctx, s.Client, policy, u)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		images = append(images, Image{Data: data, Origin: u})
	}
	if len(images) == 0 && firstErr != nil {
		return nil, firstErr
	}
	return images, nil
}

func isRemote(u string) bool {
	return strings.HasPrefix(u, "https://") || strings.HasPrefix(u, "http://")
}

// Base64Source decodes images stored inline on the record.
type Base64Source struct{}

// Name implements PhotoSource.
func (Base64Source) Name() string { return StrategyBase64 }

// Fetch implements PhotoSource.
func (Base64Source) Fetch(ctx context.Context, b entity.Business) ([]Image, error) {
	var payloads []string
	if b.LogoURL != nil && strings.HasPrefix(*b.LogoURL, "data:") {
		payloads = append(payloads, *b.LogoURL)
	}
	for _, p := range b.Photos {
		if p.Base64 != nil && *p.Base64 != "" {
			payloads = append(payloads, *p.Base64)
		}
	}

	images := make([]Image, 0, len(payloads))
	for i, payload := range payloads {
		if len(images) > MaxPhotos {
			break
		}
		data, err := DecodeInline(payload)
		if err != nil {
			return nil, fmt.Errorf("decode inline image %d: %w", i+1, err)
		}
		images = append(images, Image{Data: data, Origin: "inline"})
	}
	return images, nil
}

// DecodeInline decodes a data URI or a bare base64 payload.
func DecodeInline(payload string) ([]byte, error) {
	payload = strings.TrimSpace(payload)
	if strings.HasPrefix(payload, "data:") {
		comma := strings.IndexByte(payload, ',')
		if comma < 0 || !strings.HasSuffix(payload[:comma], ";base64") {
			return nil, errors.New("unsupported data uri")
		}
		payload = payload[comma+1:]
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(payload)
	}
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, errors.New("empty payload")
	}
	return data, nil
}

// HybridSource tries each source in order and keeps the first that yields images.
type HybridSource struct {
	Sources []PhotoSource
}

// Name implements PhotoSource.
func (s *HybridSource) Name() string { return StrategyHybrid }

// Check runs the check of every source and passes when at least one source
// is usable. Sources without a check are always usable.
func (s *HybridSource) Check(ctx context.Context) error {
	usable := 0
	var errs []error
	for _, src := range s.Sources {
		checker, ok := src.(Checker)
		if !ok {
			usable++
			continue
		}
		if err := checker.Check(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", src.Name(), err))
			continue
		}
		usable++
	}
	if usable == 0 {
		if len(errs) == 0 {
			return errors.New("no photo sources configured")
		}
		return errors.Join(errs...)
	}
	return nil
}

// Fetch implements PhotoSource.
func (s *HybridSource) Fetch(ctx context.Context, b entity.Business) ([]Image, error) {
	tiers := make([]resolver.Source[Image], 0, len(s.Sources))
	for _, src := range s.Sources {
		tiers = append(tiers, resolver.Func(src.Name(), func(ctx context.Context) ([]Image, error) {
			return src.Fetch(ctx, b)
		}))
	}
	res := resolver.Resolve(ctx, tiers...)
	if res.Source == "" {
		return nil, res.Err
	}
	return res.Data, nil
}

// Sources holds the configured variants.
type Sources struct {
	Google *GoogleSource
	Cached *CachedSource
	Base64 Base64Source
}

// Select returns the source for a strategy name. The hybrid strategy leaves
// out Google when no Places client is configured.
func (s Sources) Select(strategy string) (PhotoSource, error) {
	cached := s.Cached
	if cached == nil {
		cached = &CachedSource{}
	}
	switch strings.ToLower(strings.TrimSpace(strategy)) {
	case StrategyGoogle, "":
		if s.Google == nil {
			return &GoogleSource{}, nil
		}
		return s.Google, nil
	case StrategyCached:
		return cached, nil
	case StrategyBase64:
		return s.Base64, nil
	case StrategyHybrid:
		tiers := []PhotoSource{cached, s.Base64}
		if s.Google.Configured() {
			tiers = append(tiers, s.Google)
		}
		return &HybridSource{Sources: tiers}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, strategy)
	}
}
