package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/dubaivisaervices/builder-pixel-hub-sub003/internal/dto"
	"github.com/dubaivisaervices/builder-pixel-hub-sub003/internal/places"
	"github.com/dubaivisaervices/builder-pixel-hub-sub003/internal/service"
)

// AdminUploadHandler handles business imports for administrators.
type AdminUploadHandler struct {
	businessService *service.BusinessService
}

// NewAdminUploadHandler wires a handler backed by the business service.
func NewAdminUploadHandler(businessService *service.BusinessService) *AdminUploadHandler {
	return &AdminUploadHandler{businessService: businessService}
}

// UploadCSV handles POST /api/admin/upload-csv requests.
func (h *AdminUploadHandler) UploadCSV(c echo.Context) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return Error(c, http.StatusBadRequest, "missing csv file")
	}

	file, err := fileHeader.Open()
	if err != nil {
		return Error(c, http.StatusBadRequest, "unable to open file")
	}
	defer file.Close()

	summary, err := h.businessService.ImportCSV(c.Request().Context(), file)
	if err != nil {
		var validationErr service.CSVValidationError
		if errors.As(err, &validationErr) {
			return Error(c, http.StatusBadRequest, validationErr.Error())
		}
		return Error(c, http.StatusInternalServerError, "failed to process csv")
	}

	return Success(c, http.StatusOK, "businesses CSV processed", summary)
}

// ImportPlaces handles POST /api/admin/import-places requests.
func (h *AdminUploadHandler) ImportPlaces(c echo.Context) error {
	var req dto.ImportPlacesRequest
	if err := c.Bind(&req); err != nil {
		return Error(c, http.StatusBadRequest, "invalid payload")
	}

	summary, err := h.businessService.ImportFromPlaces(c.Request().Context(), req.Query, req.Limit)
	if err != nil {
		if handled, werr := validationFailed(c, err); handled {
			return werr
		}
		switch {
		case errors.Is(err, places.ErrMissingAPIKey):
			return Error(c, http.StatusServiceUnavailable, "google places is not configured")
		case errors.Is(err, places.ErrQuota):
			return Error(c, http.StatusTooManyRequests, "google places quota exhausted")
		default:
			return Error(c, http.StatusBadGateway, "places import failed")
		}
	}

	return Success(c, http.StatusOK, "places import finished", summary)
}
