// Package places is a thin client over the Google Places API (New).
package places

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	placesapi "google.golang.org/api/places/v1"

	"github.com/dubaivisaervices/builder-pixel-hub-sub003/internal/entity"
	"github.com/dubaivisaervices/builder-pixel-hub-sub003/internal/retry"
)

var (
	// ErrMissingAPIKey is returned by every call when no API key is configured.
	ErrMissingAPIKey = errors.New("google places api key is not configured")
	// ErrQuota is returned when the API denies the request or the quota is spent.
	ErrQuota = errors.New("google places request denied or over quota")
	// ErrNoPhoto is returned when a photo reference resolves to nothing.
	ErrNoPhoto = errors.New("google places returned no photo")
)

const (
	detailFields = "id,displayName,formattedAddress,primaryType,primaryTypeDisplayName," +
		"nationalPhoneNumber,internationalPhoneNumber,websiteUri,rating,userRatingCount,businessStatus,photos,reviews"
	searchFields = "places.id,places.displayName,places.formattedAddress,places.primaryType," +
		"places.primaryTypeDisplayName,places.nationalPhoneNumber,places.internationalPhoneNumber," +
		"places.websiteUri,places.rating,places.userRatingCount,places.businessStatus"

	maxPhotoBytes = 15 << 20
)

// Config configures the client.
type Config struct {
	APIKey        string
	Language      string
	PhotoMaxWidth int
	RPS           float64
	// Endpoint and HTTPClient override the defaults, mostly for tests.
	Endpoint   string
	HTTPClient *http.Client
	Retry      retry.Policy
}

// Client calls Places with throttling and retries. A nil *Client behaves as
// an unconfigured client and fails every call with ErrMissingAPIKey.
type Client struct {
	svc      *placesapi.Service
	http     *http.Client
	limiter  *rate.Limiter
	language string
	maxWidth int64
	retry    retry.Policy
}

// Details is the subset of a place used by the directory.
type Details struct {
	Business  entity.Business
	PhotoRefs []string
	Reviews   []entity.Review
}

// New builds a client. It returns ErrMissingAPIKey when no key is set.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}

	opts := []option.ClientOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}
	httpClient := cfg.HTTPClient
	if httpClient != nil {
		opts = append(opts, option.WithHTTPClient(httpClient))
	} else {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	svc, err := placesapi.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create places service: %w", err)
	}

	limit := rate.Inf
	if cfg.RPS > 0 {
		limit = rate.Limit(cfg.RPS)
	}
	maxWidth := int64(cfg.PhotoMaxWidth)
	if maxWidth <= 0 {
		maxWidth = 800
	}
	language := cfg.Language
	if language == "" {
		language = "en"
	}
	policy := cfg.Retry
	if policy.MaxRetries == 0 && policy.Initial == 0 {
		policy = retry.DefaultPolicy
	}

	return &Client{
		svc:      svc,
		http:     httpClient,
		limiter:  rate.NewLimiter(limit, 1),
		language: language,
		maxWidth: maxWidth,
		retry:    policy,
	}, nil
}

// Check reports whether the client can make calls.
func (c *Client) Check() error {
	if c == nil || c.svc == nil {
		return ErrMissingAPIKey
	}
	return nil
}

// SearchText runs a text search and maps the results onto businesses.
func (c *Client) SearchText(ctx context.Context, query string, limit int) ([]entity.Business, error) {
	if err := c.Check(); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 20 {
		limit = 20
	}

	req := &placesapi.GoogleMapsPlacesV1SearchTextRequest{
		TextQuery:    query,
		PageSize:     int64(limit),
		LanguageCode: c.language,
	}
	resp, err := call(ctx, c, func(ctx context.Context) (*placesapi.GoogleMapsPlacesV1SearchTextResponse, error) {
		return c.svc.Places.SearchText(req).Fields(searchFields).Context(ctx).Do()
	})
	if err != nil {
		return nil, fmt.Errorf("search places %q: %w", query, err)
	}

	out := make([]entity.Business, 0, len(resp.Places))
	for _, p := range resp.Places {
		if p == nil || p.Id == "" {
			continue
		}
		out = append(out, toBusiness(p))
	}
	return out, nil
}

// Details fetches a single place with its photo references and reviews.
func (c *Client) Details(ctx context.Context, placeID string) (Details, error) {
	if err := c.Check(); err != nil {
		return Details{}, err
	}

	place, err := call(ctx, c, func(ctx context.Context) (*placesapi.GoogleMapsPlacesV1Place, error) {
		return c.svc.Places.Get(resourceName(placeID)).
			Fields(detailFields).
			LanguageCode(c.language).
			Context(ctx).
			Do()
	})
	if err != nil {
		return Details{}, fmt.Errorf("get place %s: %w", placeID, err)
	}

	d := Details{Business: toBusiness(place)}
	for _, ph := range place.Photos {
		if ph != nil && ph.Name != "" {
			d.PhotoRefs = append(d.PhotoRefs, ph.Name)
		}
	}
	for i, r := range place.Reviews {
		if r == nil {
			continue
		}
		d.Reviews = append(d.Reviews, toReview(place.Id, i, r))
	}
	return d, nil
}

// PhotoURI resolves a photo reference into a short-lived public image URL.
func (c *Client) PhotoURI(ctx context.Context, photoRef string) (string, error) {
	if err := c.Check(); err != nil {
		return "", err
	}

	media, err := call(ctx, c, func(ctx context.Context) (*placesapi.GoogleMapsPlacesV1PhotoMedia, error) {
		return c.svc.Places.Photos.GetMedia(photoRef + "/media").
			MaxWidthPx(c.maxWidth).
			SkipHttpRedirect(true).
			Context(ctx).
			Do()
	})
	if err != nil {
		return "", fmt.Errorf("get photo media %s: %w", photoRef, err)
	}
	if media.PhotoUri == "" {
		return "", ErrNoPhoto
	}
	return media.PhotoUri, nil
}

// PhotoBytes downloads a photo by reference.
func (c *Client) PhotoBytes(ctx context.Context, photoRef string) ([]byte, error) {
	uri, err := c.PhotoURI(ctx, photoRef)
	if err != nil {
		return nil, err
	}
	return Download(ctx, c.http, c.retry, uri)
}

// Download fetches a remote image with retries on transient failures.
func Download(ctx context.Context, client *http.Client, policy retry.Policy, url string) ([]byte, error) {
	if client == nil {
		client = http.DefaultClient
	}
	return retry.Value(ctx, policy, func(ctx context.Context) ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, retry.Permanent(fmt.Errorf("build request: %w", err))
		}
		resp, err := client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("download %s: %w", url, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, &googleapi.Error{Code: resp.StatusCode, Message: "image download failed"}
		}
		data, err := io.ReadAll(io.LimitReader(resp.Body, maxPhotoBytes+1))
		if err != nil {
			return nil, fmt.Errorf("read image: %w", err)
		}
		if len(data) > maxPhotoBytes {
			return nil, retry.Permanent(fmt.Errorf("image exceeds %d bytes", maxPhotoBytes))
		}
		if len(data) == 0 {
			return nil, retry.Permanent(ErrNoPhoto)
		}
		return data, nil
	})
}

func call[T any](ctx context.Context, c *Client, fn func(ctx context.Context) (T, error)) (T, error) {
	out, err := retry.Value(ctx, c.retry, func(ctx context.Context) (T, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			var zero T
			return zero, retry.Permanent(err)
		}
		return fn(ctx)
	})
	return out, mapError(err)
}

func mapError(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && (apiErr.Code == http.StatusForbidden || apiErr.Code == http.StatusTooManyRequests) {
		return fmt.Errorf("%w: %s", ErrQuota, apiErr.Message)
	}
	return err
}

func resourceName(placeID string) string {
	if strings.HasPrefix(placeID, "places/") {
		return placeID
	}
	return "places/" + placeID
}

func toBusiness(p *placesapi.GoogleMapsPlacesV1Place) entity.Business {
	b := entity.Business{
		ID:             p.Id,
		Address:        p.FormattedAddress,
		Phone:          firstNonEmpty(p.InternationalPhoneNumber, p.NationalPhoneNumber),
		Website:        p.WebsiteUri,
		Rating:         p.Rating,
		ReviewCount:    int(p.UserRatingCount),
		BusinessStatus: p.BusinessStatus,
		Photos:         []entity.Photo{},
	}
	if p.DisplayName != nil {
		b.Name = p.DisplayName.Text
	}
	switch {
	case p.PrimaryTypeDisplayName != nil && p.PrimaryTypeDisplayName.Text != "":
		b.Category = p.PrimaryTypeDisplayName.Text
	case p.PrimaryType != "":
		b.Category = humanizeType(p.PrimaryType)
	}
	return b
}

func toReview(placeID string, index int, r *placesapi.GoogleMapsPlacesV1Review) entity.Review {
	review := entity.Review{
		ID:         r.Name,
		BusinessID: placeID,
		Rating:     int(math.Round(r.Rating)),
		TimeAgo:    r.RelativePublishTimeDescription,
	}
	if review.ID == "" {
		review.ID = fmt.Sprintf("%s-review-%d", placeID, index+1)
	}
	if r.Text != nil {
		review.Text = r.Text.Text
	}
	if a := r.AuthorAttribution; a != nil {
		review.AuthorName = a.DisplayName
		if a.PhotoUri != "" {
			photo := a.PhotoUri
			review.ProfilePhotoURL = &photo
		}
	}
	if t, err := time.Parse(time.RFC3339, r.PublishTime); err == nil {
		review.CreatedAt = t
	}
	return review
}

func humanizeType(t string) string {
	words := strings.Split(t, "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
