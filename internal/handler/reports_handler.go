package handler

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/dubaivisaervices/builder-pixel-hub-sub003/internal/dto"
	"github.com/dubaivisaervices/builder-pixel-hub-sub003/internal/middleware"
	"github.com/dubaivisaervices/builder-pixel-hub-sub003/internal/repository"
	"github.com/dubaivisaervices/builder-pixel-hub-sub003/internal/service"
)

const attachmentsField = "attachments"

// ReportsHandler accepts complaints and lets administrators moderate them.
type ReportsHandler struct {
	service *service.ReportService
	logger  *zap.Logger
}

// NewReportsHandler wires a handler backed by the report service.
func NewReportsHandler(service *service.ReportService, logger *zap.Logger) *ReportsHandler {
	return &ReportsHandler{service: service, logger: logger}
}

// Submit handles POST /api/reports/submit multipart requests.
func (h *ReportsHandler) Submit(c echo.Context) error {
	input := dto.ReportInput{
		CompanyID:       c.FormValue("companyId"),
		CompanyName:     c.FormValue("companyName"),
		CompanyLocation: c.FormValue("companyLocation"),
		CompanyWebsite:  c.FormValue("companyWebsite"),
		CompanyPhone:    c.FormValue("companyPhone"),
		IssueType:       c.FormValue("issueType"),
		Description:     c.FormValue("description"),
		AmountLost:      c.FormValue("amountLost"),
		DateOfIncident:  c.FormValue("dateOfIncident"),
		ReporterName:    c.FormValue("reporterName"),
		ReporterEmail:   c.FormValue("reporterEmail"),
		ReporterPhone:   c.FormValue("reporterPhone"),
	}

	if strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
		form, err := c.MultipartForm()
		if err != nil {
			return Error(c, http.StatusBadRequest, "invalid multipart form")
		}
		input.Attachments = attachments(form.File[attachmentsField])
	}

	report, err := h.service.Submit(c.Request().Context(), input)
	if err != nil {
		if handled, werr := validationFailed(c, err); handled {
			return werr
		}
		if errors.Is(err, service.ErrAttachmentsDisabled) {
			return Error(c, http.StatusServiceUnavailable, "attachments are not accepted right now")
		}
		middleware.Logger(c, h.logger).Error("submit report failed", zap.Error(err))
		return Error(c, http.StatusInternalServerError, "failed to submit report")
	}

	return Success(c, http.StatusCreated, "report submitted", report)
}

// List handles GET /api/admin/reports requests.
func (h *ReportsHandler) List(c echo.Context) error {
	reports, err := h.service.List(c.Request().Context(), c.QueryParam("status"), parseIntDefault(c.QueryParam("limit"), 0))
	if err != nil {
		if handled, werr := validationFailed(c, err); handled {
			return werr
		}
		return Error(c, http.StatusInternalServerError, "failed to list reports")
	}
	return Success(c, http.StatusOK, "reports retrieved", reports)
}

// Moderate handles PATCH /api/admin/reports/:id requests.
func (h *ReportsHandler) Moderate(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return Error(c, http.StatusBadRequest, "invalid report id")
	}

	var req dto.ModerateReportRequest
	if err := c.Bind(&req); err != nil {
		return Error(c, http.StatusBadRequest, "invalid payload")
	}

	report, err := h.service.Moderate(c.Request().Context(), id, req.Status)
	if err != nil {
		if handled, werr := validationFailed(c, err); handled {
			return werr
		}
		switch {
		case errors.Is(err, repository.ErrReportNotFound):
			return Error(c, http.StatusNotFound, "report not found")
		case errors.Is(err, service.ErrInvalidTransition), errors.Is(err, repository.ErrReportStatusChanged):
			return Error(c, http.StatusConflict, "report has already been moderated")
		default:
			middleware.Logger(c, h.logger).Error("moderate report failed", zap.String("report_id", id.String()), zap.Error(err))
			return Error(c, http.StatusInternalServerError, "failed to update report")
		}
	}

	middleware.Logger(c, h.logger).Info("report moderated",
		zap.String("report_id", id.String()),
		zap.String("status", report.Status),
		zap.String("moderator", middleware.Actor(c).Email),
	)
	return Success(c, http.StatusOK, "report updated", report)
}

func attachments(files []*multipart.FileHeader) []dto.Attachment {
	out := make([]dto.Attachment, 0, len(files))
	for _, fh := range files {
		out = append(out, dto.Attachment{
			Filename:    fh.Filename,
			ContentType: fh.Header.Get(echo.HeaderContentType),
			Size:        fh.Size,
			Open: func() (io.ReadCloser, error) {
				return fh.Open()
			},
		})
	}
	return out
}
