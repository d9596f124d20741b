package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/dubaivisaervices/builder-pixel-hub-sub003/internal/dto"
	"github.com/dubaivisaervices/builder-pixel-hub-sub003/internal/service"
)

const (
	defaultDirectoryLimit = 50
	maxDirectoryLimit     = 1000
)

// BusinessesHandler exposes the public directory endpoints. Its responses use
// the bare payload shapes the front end reads, not the admin envelope.
type BusinessesHandler struct {
	service *service.BusinessService
}

// NewBusinessesHandler creates a new handler instance.
func NewBusinessesHandler(service *service.BusinessService) *BusinessesHandler {
	return &BusinessesHandler{service: service}
}

// Directory handles GET /api/dubai-visa-services requests.
func (h *BusinessesHandler) Directory(c echo.Context) error {
	limit := parseIntDefault(c.QueryParam("limit"), defaultDirectoryLimit)
	if limit <= 0 {
		limit = defaultDirectoryLimit
	}
	if limit > maxDirectoryLimit {
		limit = maxDirectoryLimit
	}

	filter := listFilter(c)
	filter.Limit = limit
	return c.JSON(http.StatusOK, h.service.Directory(c.Request().Context(), filter))
}

// List handles GET /api/businesses requests with page based pagination.
func (h *BusinessesHandler) List(c echo.Context) error {
	filter := listFilter(c)
	filter.Page = parseIntDefault(c.QueryParam("page"), 1)
	filter.PerPage = parseIntDefault(c.QueryParam("per_page"), 20)
	return c.JSON(http.StatusOK, h.service.Directory(c.Request().Context(), filter))
}

// Get handles GET /api/business-db/:id requests.
func (h *BusinessesHandler) Get(c echo.Context) error {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "business id is required"})
	}

	resp := h.service.Get(c.Request().Context(), id)
	if resp.Business == nil {
		return c.JSON(http.StatusNotFound, resp)
	}
	return c.JSON(http.StatusOK, resp)
}

// Photos handles GET /api/business-photos/:id requests.
func (h *BusinessesHandler) Photos(c echo.Context) error {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "business id is required"})
	}
	return c.JSON(http.StatusOK, h.service.Photos(c.Request().Context(), id))
}

// Reviews handles GET /api/business-reviews/:id requests.
func (h *BusinessesHandler) Reviews(c echo.Context) error {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "business id is required"})
	}
	return c.JSON(http.StatusOK, h.service.Reviews(c.Request().Context(), id))
}

// SearchCompanies handles GET /api/companies/search requests.
func (h *BusinessesHandler) SearchCompanies(c echo.Context) error {
	return c.JSON(http.StatusOK, h.service.SearchCompanies(c.Request().Context(), c.QueryParam("q")))
}

func listFilter(c echo.Context) dto.ListFilter {
	return dto.ListFilter{
		Q:        strings.TrimSpace(c.QueryParam("q")),
		Category: strings.TrimSpace(c.QueryParam("category")),
		Sort:     strings.TrimSpace(c.QueryParam("sort")),
	}
}

func parseIntDefault(input string, fallback int) int {
	if input == "" {
		return fallback
	}
	if value, err := strconv.Atoi(input); err == nil {
		return value
	}
	return fallback
}
