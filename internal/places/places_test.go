package places

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dubaivisaervices/builder-pixel-hub-sub003/internal/retry"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := New(context.Background(), Config{
		APIKey:     "test-key",
		Endpoint:   srv.URL + "/",
		HTTPClient: srv.Client(),
		Retry:      retry.Policy{Initial: time.Millisecond, Max: time.Millisecond, MaxRetries: 1},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return client, srv
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestNew_MissingKey(t *testing.T) {
	if _, err := New(context.Background(), Config{}); !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("expected ErrMissingAPIKey, got %v", err)
	}

	var disabled *Client
	if _, err := disabled.SearchText(context.Background(), "visa", 5); !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("expected nil client to report missing key, got %v", err)
	}
}

func TestSearchText(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || !strings.HasSuffix(r.URL.Path, "/v1/places:searchText") {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["textQuery"] != "visa services dubai" {
			t.Errorf("unexpected query body: %v", body)
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"places": []map[string]any{
				{
					"id":                       "ChIJ1",
					"displayName":              map[string]string{"text": "Emirates Visa"},
					"formattedAddress":         "Business Bay, Dubai",
					"primaryType":              "travel_agency",
					"internationalPhoneNumber": "+971 4 123 4567",
					"rating":                   4.7,
					"userRatingCount":          120,
				},
				{"displayName": map[string]string{"text": "no id"}},
			},
		})
	})

	got, err := client.SearchText(context.Background(), "visa services dubai", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected places without id to be skipped, got %d", len(got))
	}
	b := got[0]
	if b.ID != "ChIJ1" || b.Name != "Emirates Visa" || b.Category != "Travel Agency" || b.ReviewCount != 120 {
		t.Fatalf("unexpected mapping: %+v", b)
	}
}

func TestDetailsAndPhotoBytes(t *testing.T) {
	var srvURL string
	client, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/v1/places/ChIJ1":
			writeJSON(w, http.StatusOK, map[string]any{
				"id":          "ChIJ1",
				"displayName": map[string]string{"text": "Emirates Visa"},
				"photos": []map[string]any{
					{"name": "places/ChIJ1/photos/p1"},
					{"name": "places/ChIJ1/photos/p2"},
				},
				"reviews": []map[string]any{
					{
						"rating":                         4.6,
						"text":                           map[string]string{"text": "Fast service"},
						"relativePublishTimeDescription": "a month ago",
						"authorAttribution":              map[string]string{"displayName": "Sara", "photoUri": "https://img/sara"},
					},
				},
			})
		case r.URL.Path == "/v1/places/ChIJ1/photos/p1/media":
			if r.URL.Query().Get("skipHttpRedirect") != "true" {
				t.Errorf("expected redirect to be skipped")
			}
			writeJSON(w, http.StatusOK, map[string]string{"photoUri": srvURL + "/img/p1"})
		case r.URL.Path == "/img/p1":
			w.Header().Set("Content-Type", "image/jpeg")
			_, _ = w.Write([]byte("jpeg-bytes"))
		default:
			http.NotFound(w, r)
		}
	})
	srvURL = srv.URL

	d, err := client.Details(context.Background(), "ChIJ1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(d.PhotoRefs) != 2 || d.PhotoRefs[0] != "places/ChIJ1/photos/p1" {
		t.Fatalf("unexpected photo refs: %v", d.PhotoRefs)
	}
	if len(d.Reviews) != 1 || d.Reviews[0].Rating != 5 || d.Reviews[0].AuthorName != "Sara" || d.Reviews[0].ID != "ChIJ1-review-1" {
		t.Fatalf("unexpected reviews: %+v", d.Reviews)
	}

	data, err := client.PhotoBytes(context.Background(), d.PhotoRefs[0])
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != "jpeg-bytes" {
		t.Fatalf("unexpected photo bytes: %q", data)
	}
}

func TestQuotaErrors(t *testing.T) {
	calls := 0
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		writeJSON(w, http.StatusTooManyRequests, map[string]any{
			"error": map[string]any{"code": 429, "message": "quota exceeded", "status": "RESOURCE_EXHAUSTED"},
		})
	})

	_, err := client.Details(context.Background(), "ChIJ1")
	if !errors.Is(err, ErrQuota) {
		t.Fatalf("expected ErrQuota, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected one retry on 429, got %d calls", calls)
	}
}

func TestHumanizeType(t *testing.T) {
	if got := humanizeType("visa_consultant"); got != "Visa Consultant" {
		t.Fatalf("unexpected humanized type: %s", got)
	}
}
