// Package client reads the directory API for the dirctl command line tool,
// degrading to the local snapshot and then to the bundled samples.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dubaivisaervices/builder-pixel-hub-sub003/internal/cache"
	"github.com/dubaivisaervices/builder-pixel-hub-sub003/internal/directory"
	"github.com/dubaivisaervices/builder-pixel-hub-sub003/internal/dto"
	"github.com/dubaivisaervices/builder-pixel-hub-sub003/internal/entity"
	"github.com/dubaivisaervices/builder-pixel-hub-sub003/internal/resolver"
	"github.com/dubaivisaervices/builder-pixel-hub-sub003/internal/retry"
	"github.com/dubaivisaervices/builder-pixel-hub-sub003/internal/snapshot"
)

const companySearchLimit = 10

// Options configures a Client.
type Options struct {
	BaseURL    string
	HTTPClient *http.Client
	Snapshots  *snapshot.Store
	Retry      retry.Policy
	Logger     *zap.Logger
}

// Client talks to the directory API.
type Client struct {
	base      *url.URL
	http      *http.Client
	snapshots *snapshot.Store
	retry     retry.Policy
	logger    *zap.Logger
	now       func() time.Time
}

// New validates the options and builds a client.
func New(opts Options) (*Client, error) {
	raw := strings.TrimSpace(opts.BaseURL)
	if raw == "" {
		return nil, errors.New("api base url must not be empty")
	}
	base, err := url.Parse(raw)
	if err != nil || base.Host == "" || (base.Scheme != "http" && base.Scheme != "https") {
		return nil, fmt.Errorf("invalid api base url %q", raw)
	}
	base.Path = strings.TrimRight(base.Path, "/")

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		base:      base,
		http:      httpClient,
		snapshots: opts.Snapshots,
		retry:     opts.Retry,
		logger:    logger,
		now:       time.Now,
	}, nil
}

// View is what a command renders: the records, where they came from and the
// banner to show when they did not come from the API.
type View[T any] struct {
	Items []T
	// Source is the client tier that answered: api, snapshot or sample.
	Source string
	// Origin is the data source the server reported for api answers.
	Origin  string
	Error   string
	Message string
}

// ListQuery narrows a directory listing.
type ListQuery struct {
	Q        string
	Category string
	Sort     string
	Limit    int
}

// Businesses lists the directory.
func (c *Client) Businesses(ctx context.Context, q ListQuery) View[entity.Business] {
	key := cache.ListKey(q.Q, q.Category, q.Sort, q.Limit, 0)
	params := url.Values{}
	setParam(params, "q", q.Q)
	setParam(params, "category", q.Category)
	setParam(params, "sort", q.Sort)
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}

	var origin string
	api := apiTier(c, key, "/api/dubai-visa-services", params, func(body []byte) ([]entity.Business, error) {
		var resp dto.DirectoryResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("%w: %v", resolver.ErrDecode, err)
		}
		origin = resp.DataSource
		return resp.Businesses, nil
	}, &origin)

	res := resolver.Resolve(ctx,
		api,
		snapshot.Source[entity.Business](c.snapshots, directory.SourceSnapshot, key),
		directory.SampleSource(directory.Query{Q: q.Q, Category: q.Category, Sort: q.Sort, Limit: q.Limit}),
	)
	return toView(res, origin)
}

// Business fetches one business.
func (c *Client) Business(ctx context.Context, id string) View[entity.Business] {
	key := cache.BusinessKey(id)
	var origin string
	api := apiTier(c, key, "/api/business-db/"+url.PathEscape(id), nil, func(body []byte) ([]entity.Business, error) {
		var resp dto.BusinessResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("%w: %v", resolver.ErrDecode, err)
		}
		origin = resp.DataSource
		if resp.Business == nil {
			return nil, resolver.ErrEmpty
		}
		return []entity.Business{*resp.Business}, nil
	}, &origin)

	res := resolver.Resolve(ctx,
		api,
		snapshot.Source[entity.Business](c.snapshots, directory.SourceSnapshot, key),
		directory.SampleRecordSource(id),
	)
	return toView(res, origin)
}

// Companies searches businesses the way the complaint form does.
func (c *Client) Companies(ctx context.Context, q string) View[dto.CompanySearchResult] {
	q = strings.TrimSpace(q)
	key := "directory:companies:" + strings.ToLower(q)

	var origin string
	api := apiTier(c, key, "/api/companies/search", url.Values{"q": {q}}, func(body []byte) ([]dto.CompanySearchResult, error) {
		var resp dto.CompanySearchResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("%w: %v", resolver.ErrDecode, err)
		}
		origin = resp.DataSource
		return resp.Companies, nil
	}, &origin)
	samples := resolver.Func(directory.SourceSample, func(ctx context.Context) ([]dto.CompanySearchResult, error) {
		matches := directory.Filter(directory.Samples(), directory.Query{Q: q, Limit: companySearchLimit})
		out := make([]dto.CompanySearchResult, 0, len(matches))
		for _, b := range matches {
			out = append(out, dto.CompanySearchResult{
				ID:       b.ID,
				Name:     b.Name,
				Address:  b.Address,
				Category: b.Category,
				Rating:   b.Rating,
				LogoURL:  b.LogoURL,
			})
		}
		return out, nil
	})

	res := resolver.Resolve(ctx,
		api,
		snapshot.Source[dto.CompanySearchResult](c.snapshots, directory.SourceSnapshot, key),
		samples,
	)
	return toView(res, origin)
}

// apiTier fetches path with retries and snapshots answers backed by real
// data. Answers the server itself served from its samples are not stored.
func apiTier[T any](c *Client, key, path string, params url.Values, decode func([]byte) ([]T, error), origin *string) resolver.Source[T] {
	src := &resolver.HTTPSource[T]{
		Label:  directory.SourceAPI,
		Client: c.http,
		URL:    c.url(path),
		Query:  params,
		Decode: decode,
		Now:    c.now,
	}
	return resolver.Func(directory.SourceAPI, func(ctx context.Context) ([]T, error) {
		items, err := retry.Value(ctx, c.retry, src.Fetch)
		if err != nil {
			return nil, err
		}
		if len(items) > 0 && persistable(*origin) && c.snapshots != nil {
			if err := c.snapshots.Save(ctx, key, items); err != nil {
				c.logger.Warn("save snapshot failed", zap.String("key", key), zap.Error(err))
			}
		}
		return items, nil
	})
}

func (c *Client) url(path string) string {
	u := *c.base
	u.Path = c.base.Path + path
	return u.String()
}

func persistable(origin string) bool {
	switch origin {
	case directory.SourceSample, directory.SourceNone:
		return false
	}
	return true
}

func toView[T any](res resolver.Result[T], origin string) View[T] {
	view := View[T]{Items: res.Data, Source: res.Source}
	if view.Source == "" {
		view.Source = directory.SourceNone
	}
	if res.Source == directory.SourceAPI {
		view.Origin = origin
		return view
	}
	view.Error = resolver.Describe(res.Err)
	if res.Source == directory.SourceSample {
		view.Message = resolver.DemoModeMessage
	}
	return view
}

func setParam(params url.Values, key, value string) {
	if value = strings.TrimSpace(value); value != "" {
		params.Set(key, value)
	}
}
