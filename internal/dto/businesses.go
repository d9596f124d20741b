package dto

import "github.com/dubaivisaervices/builder-pixel-hub-sub003/internal/entity"

// ListFilter contains query parameters for business listing endpoints.
type ListFilter struct {
	Q        string
	Category string
	Sort     string
	Limit    int
	Page     int
	PerPage  int
}

// Window returns the row limit and offset the filter selects. An explicit
// Limit wins over page based pagination.
func (f ListFilter) Window() (limit, offset int) {
	if f.Limit > 0 {
		return f.Limit, 0
	}
	page := f.Page
	if page <= 0 {
		page = 1
	}
	perPage := f.PerPage
	if perPage <= 0 {
		perPage = 20
	}
	if perPage > 100 {
		perPage = 100
	}
	return perPage, (page - 1) * perPage
}

// DirectoryResponse is the listing payload consumed by the front end.
type DirectoryResponse struct {
	Businesses []entity.Business `json:"businesses"`
	Total      int               `json:"total"`
	DataSource string            `json:"dataSource"`
	Error      string            `json:"error,omitempty"`
	Message    string            `json:"message,omitempty"`
}

// BusinessResponse is the detail payload.
type BusinessResponse struct {
	Business   *entity.Business `json:"business"`
	DataSource string           `json:"dataSource"`
	Error      string           `json:"error,omitempty"`
}

// PhotosResponse lists displayable photos of a business.
type PhotosResponse struct {
	Photos     []entity.Photo `json:"photos"`
	DataSource string         `json:"dataSource"`
}

// ReviewsResponse lists reviews of a business.
type ReviewsResponse struct {
	Reviews    []entity.Review `json:"reviews"`
	DataSource string          `json:"dataSource"`
}

// CompanySearchResult is a compact match for the complaint wizard.
type CompanySearchResult struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Address  string  `json:"address"`
	Category string  `json:"category"`
	Rating   float64 `json:"rating"`
	LogoURL  *string `json:"logoUrl"`
}

// CompanySearchResponse wraps company search matches with their origin.
type CompanySearchResponse struct {
	Companies  []CompanySearchResult `json:"companies"`
	DataSource string                `json:"dataSource"`
	Error      string                `json:"error,omitempty"`
}

// ImportPlacesRequest asks for a Google Places text search import.
type ImportPlacesRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}
