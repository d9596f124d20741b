package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const maxBodyBytes = 10 << 20

// HTTPSource fetches a JSON document and decodes it into records.
type HTTPSource[T any] struct {
	Label  string
	Client *http.Client
	URL    string
	Query  url.Values
	Decode func(body []byte) ([]T, error)
	Now    func() time.Time
}

// Name implements Source.
func (s *HTTPSource[T]) Name() string { return s.Label }

// Fetch requests the resource bypassing every cache layer on the way.
func (s *HTTPSource[T]) Fetch(ctx context.Context) ([]T, error) {
	u, err := url.Parse(s.URL)
	if err != nil {
		return nil, fmt.Errorf("parse url %q: %w", s.URL, err)
	}

	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	q := u.Query()
	for key, values := range s.Query {
		for _, v := range values {
			q.Add(key, v)
		}
	}
	q.Set("_t", strconv.FormatInt(now().UnixNano(), 10))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Pragma", "no-cache")

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", u.Path, err)
	}
	defer resp.Body.Close()

	body, err := ReadJSONBody(resp)
	if err != nil {
		return nil, err
	}
	return s.Decode(body)
}

// ReadJSONBody validates that a response carries JSON and returns its body.
// HTML is checked first so that a misrouted request is never reported as a
// plain status or parse error.
func ReadJSONBody(resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	if LooksLikeHTML(body) {
		return nil, ErrRoutingMisconfigured
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Code: resp.StatusCode}
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" {
		mediaType, _, err := mime.ParseMediaType(ct)
		if err != nil || (mediaType != "application/json" && !isJSONSuffix(mediaType)) {
			return nil, fmt.Errorf("%w: content type %q", ErrNotJSON, ct)
		}
	}
	if !json.Valid(body) {
		return nil, ErrDecode
	}
	return body, nil
}

func isJSONSuffix(mediaType string) bool {
	return len(mediaType) > 5 && mediaType[len(mediaType)-5:] == "+json"
}

// DecodeList decodes the array stored under field of a JSON object.
func DecodeList[T any](field string) func(body []byte) ([]T, error) {
	return func(body []byte) ([]T, error) {
		var envelope map[string]json.RawMessage
		if err := json.Unmarshal(body, &envelope); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDecode, err)
		}
		raw, ok := envelope[field]
		if !ok {
			return nil, fmt.Errorf("%w: missing %q field", ErrDecode, field)
		}
		var items []T
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDecode, err)
		}
		return items, nil
	}
}

// DecodeObject decodes a single JSON object, optionally nested under field.
func DecodeObject[T any](field string) func(body []byte) ([]T, error) {
	return func(body []byte) ([]T, error) {
		raw := json.RawMessage(body)
		if field != "" {
			var envelope map[string]json.RawMessage
			if err := json.Unmarshal(body, &envelope); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrDecode, err)
			}
			nested, ok := envelope[field]
			if !ok || string(nested) == "null" {
				return nil, ErrEmpty
			}
			raw = nested
		}
		var item T
		if err := json.Unmarshal(raw, &item); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDecode, err)
		}
		return []T{item}, nil
	}
}
