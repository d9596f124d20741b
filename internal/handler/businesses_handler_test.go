package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/dubaivisaervices/builder-pixel-hub-sub003/internal/directory"
	"github.com/dubaivisaervices/builder-pixel-hub-sub003/internal/dto"
	"github.com/dubaivisaervices/builder-pixel-hub-sub003/internal/entity"
	"github.com/dubaivisaervices/builder-pixel-hub-sub003/internal/service"
)

func newBusinessesHandler(repo *stubBusinessesRepo, reviews *stubReviewsRepo) *BusinessesHandler {
	if reviews == nil {
		reviews = &stubReviewsRepo{}
	}
	return NewBusinessesHandler(service.NewBusinessService(repo, reviews, nil, nil, nil))
}

func getJSON(t *testing.T, h echo.HandlerFunc, target string, params map[string]string, dest any) int {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	for name, value := range params {
		c.SetParamNames(name)
		c.SetParamValues(value)
	}

	if err := h(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dest != nil {
		if err := json.Unmarshal(rec.Body.Bytes(), dest); err != nil {
			t.Fatalf("decode response: %v", err)
		}
	}
	return rec.Code
}

func TestBusinessesHandler_DirectoryFromDatabase(t *testing.T) {
	var seen dto.ListFilter
	handler := newBusinessesHandler(&stubBusinessesRepo{
		list: func(ctx context.Context, filter dto.ListFilter) ([]entity.Business, error) {
			seen = filter
			return []entity.Business{{ID: "p1", Name: "Acme Visa"}}, nil
		},
	}, nil)

	var resp dto.DirectoryResponse
	code := getJSON(t, handler.Directory, "/api/dubai-visa-services?limit=5000&q=%20visa%20&category=Visa&sort=rating", nil, &resp)
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if seen.Limit != maxDirectoryLimit || seen.Q != "visa" || seen.Category != "Visa" || seen.Sort != "rating" {
		t.Fatalf("unexpected filter: %+v", seen)
	}
	if resp.DataSource != directory.SourceDatabase || len(resp.Businesses) != 1 || resp.Error != "" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if len(resp.Businesses[0].Photos) != 1 || resp.Businesses[0].Photos[0].Source != entity.PhotoSourceDefault {
		t.Fatalf("expected placeholder photo, got %+v", resp.Businesses[0].Photos)
	}
}

func TestBusinessesHandler_DirectoryFallsBackToSamples(t *testing.T) {
	handler := newBusinessesHandler(&stubBusinessesRepo{}, nil)

	var resp dto.DirectoryResponse
	code := getJSON(t, handler.Directory, "/api/dubai-visa-services", nil, &resp)
	if code != http.StatusOK {
		t.Fatalf("expected 200 even in demo mode, got %d", code)
	}
	if resp.DataSource != directory.SourceSample || resp.Error == "" || resp.Message == "" {
		t.Fatalf("expected sample response with banner, got %+v", resp)
	}
	if len(resp.Businesses) != len(directory.Samples()) {
		t.Fatalf("expected every sample, got %d", len(resp.Businesses))
	}
}

func TestBusinessesHandler_ListPagination(t *testing.T) {
	var seen dto.ListFilter
	handler := newBusinessesHandler(&stubBusinessesRepo{
		list: func(ctx context.Context, filter dto.ListFilter) ([]entity.Business, error) {
			seen = filter
			return []entity.Business{{ID: "p1"}}, nil
		},
	}, nil)

	getJSON(t, handler.List, "/api/businesses?page=3&per_page=abc", nil, nil)
	if seen.Page != 3 || seen.PerPage != 20 || seen.Limit != 0 {
		t.Fatalf("unexpected pagination: %+v", seen)
	}
}

func TestBusinessesHandler_Get(t *testing.T) {
	handler := newBusinessesHandler(&stubBusinessesRepo{}, nil)

	var resp dto.BusinessResponse
	if code := getJSON(t, handler.Get, "/api/business-db/sample-golden-visa-hub", map[string]string{"id": "sample-golden-visa-hub"}, &resp); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if resp.Business == nil || resp.DataSource != directory.SourceSample {
		t.Fatalf("unexpected response: %+v", resp)
	}

	resp = dto.BusinessResponse{}
	if code := getJSON(t, handler.Get, "/api/business-db/missing", map[string]string{"id": "missing"}, &resp); code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", code)
	}
	if resp.DataSource != directory.SourceNone || resp.Error == "" {
		t.Fatalf("unexpected not found payload: %+v", resp)
	}
}

func TestBusinessesHandler_PhotosAndReviews(t *testing.T) {
	handler := newBusinessesHandler(&stubBusinessesRepo{}, &stubReviewsRepo{
		reviews: []entity.Review{{ID: "r1", BusinessID: "p1", Rating: 5, Text: "Fast service"}},
	})

	var photos dto.PhotosResponse
	getJSON(t, handler.Photos, "/api/business-photos/p1", map[string]string{"id": "p1"}, &photos)
	if len(photos.Photos) != 1 || photos.Photos[0].ID != "p1-default" {
		t.Fatalf("expected placeholder photo, got %+v", photos)
	}

	var reviews dto.ReviewsResponse
	getJSON(t, handler.Reviews, "/api/business-reviews/p1", map[string]string{"id": "p1"}, &reviews)
	if reviews.DataSource != directory.SourceDatabase || len(reviews.Reviews) != 1 {
		t.Fatalf("unexpected reviews: %+v", reviews)
	}
}

func TestBusinessesHandler_SearchCompanies(t *testing.T) {
	handler := newBusinessesHandler(&stubBusinessesRepo{}, nil)

	var resp dto.CompanySearchResponse
	getJSON(t, handler.SearchCompanies, "/api/companies/search?q=golden", nil, &resp)
	if resp.DataSource != directory.SourceSample || len(resp.Companies) == 0 {
		t.Fatalf("unexpected search response: %+v", resp)
	}
	if resp.Companies[0].ID != "sample-golden-visa-hub" {
		t.Fatalf("expected golden visa sample first, got %s", resp.Companies[0].ID)
	}
}
