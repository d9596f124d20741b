package service

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dubaivisaervices/builder-pixel-hub-sub003/internal/dto"
	"github.com/dubaivisaervices/builder-pixel-hub-sub003/internal/entity"
	"github.com/dubaivisaervices/builder-pixel-hub-sub003/internal/repository"
	"github.com/dubaivisaervices/builder-pixel-hub-sub003/internal/storage"
)

const (
	MaxAttachments     = 5
	MaxAttachmentBytes = 10 << 20

	defaultReportListLimit = 50
	maxDescriptionLength   = 5000
)

var (
	// ErrInvalidTransition is returned when moderation would leave the pending -> approved|rejected path.
	ErrInvalidTransition = errors.New("invalid report status transition")
	// ErrAttachmentsDisabled is returned when attachments arrive but no store is configured.
	ErrAttachmentsDisabled = errors.New("attachment storage is not configured")
)

var allowedAttachmentTypes = map[string]bool{
	"image/jpeg":      true,
	"image/png":       true,
	"image/webp":      true,
	"image/gif":       true,
	"application/pdf": true,
}

// ReportService accepts complaint submissions and moderates them.
type ReportService struct {
	repo   repository.ReportsRepository
	store  storage.ImageStore
	logger *zap.Logger
	now    func() time.Time
}

// NewReportService constructs a ReportService. store may be nil, in which
// case submissions with attachments are rejected.
func NewReportService(repo repository.ReportsRepository, store storage.ImageStore, logger *zap.Logger) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportService{repo: repo, store: store, logger: logger, now: time.Now}
}

// Submit validates the complaint, uploads its attachments and stores it as pending.
func (s *ReportService) Submit(ctx context.Context, in dto.ReportInput) (*entity.Report, error) {
	report, err := s.validate(in)
	if err != nil {
		return nil, err
	}
	if len(in.Attachments) > 0 && s.store == nil {
		return nil, ErrAttachmentsDisabled
	}

	report.ID = uuid.New()
	report.Status = entity.ReportStatusPending
	report.Attachments = make([]string, 0, len(in.Attachments))

	for i, att := range in.Attachments {
		url, err := s.upload(ctx, report.ID, i+1, att)
		if err != nil {
			return nil, fmt.Errorf("upload attachment %q: %w", att.Filename, err)
		}
		report.Attachments = append(report.Attachments, url)
	}

	if err := s.repo.Create(ctx, report); err != nil {
		return nil, err
	}
	s.logger.Info("report submitted",
		zap.String("report_id", report.ID.String()),
		zap.String("company", report.CompanyName),
		zap.String("issue_type", report.IssueType),
		zap.Int("attachments", len(report.Attachments)),
	)
	return report, nil
}

func (s *ReportService) upload(ctx context.Context, reportID uuid.UUID, index int, att dto.Attachment) (string, error) {
	rc, err := att.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()
	return s.store.Put(ctx, storage.AttachmentName(reportID.String(), index, att.Filename), rc)
}

func (s *ReportService) validate(in dto.ReportInput) (*entity.Report, error) {
	var verr ValidationError
	report := &entity.Report{
		CompanyName:     strings.TrimSpace(in.CompanyName),
		CompanyLocation: strings.TrimSpace(in.CompanyLocation),
		CompanyWebsite:  strings.TrimSpace(in.CompanyWebsite),
		CompanyPhone:    strings.TrimSpace(in.CompanyPhone),
		IssueType:       strings.TrimSpace(in.IssueType),
		Description:     strings.TrimSpace(in.Description),
		ReporterName:    strings.TrimSpace(in.ReporterName),
	}
	if id := strings.TrimSpace(in.CompanyID); id != "" {
		report.BusinessID = &id
	}

	if report.CompanyName == "" {
		verr.add("companyName", "is required")
	}
	if report.IssueType == "" {
		verr.add("issueType", "is required")
	}
	switch {
	case report.Description == "":
		verr.add("description", "is required")
	case len([]rune(report.Description)) > maxDescriptionLength:
		verr.add("description", fmt.Sprintf("must be at most %d characters", maxDescriptionLength))
	}

	if report.CompanyWebsite != "" {
		if website := normalizeWebsite(report.CompanyWebsite); website != "" {
			report.CompanyWebsite = website
		} else {
			verr.add("companyWebsite", "is not a valid url")
		}
	}
	if report.CompanyPhone != "" {
		if phone := normalizePhone(report.CompanyPhone, defaultPhoneRegion); phone != "" {
			report.CompanyPhone = phone
		} else {
			verr.add("companyPhone", "is not a valid phone number")
		}
	}
	if raw := strings.TrimSpace(in.ReporterEmail); raw != "" {
		if email, ok := normalizeEmail(raw); ok {
			report.ReporterEmail = email
		} else {
			verr.add("reporterEmail", "is not a valid email address")
		}
	}
	if raw := strings.TrimSpace(in.ReporterPhone); raw != "" {
		if phone := normalizePhone(raw, defaultPhoneRegion); phone != "" {
			report.ReporterPhone = phone
		} else {
			verr.add("reporterPhone", "is not a valid phone number")
		}
	}

	if raw := strings.TrimSpace(in.AmountLost); raw != "" {
		amount, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", ""), 64)
		if err != nil || amount < 0 {
			verr.add("amountLost", "must be a non-negative number")
		} else {
			report.AmountLost = &amount
		}
	}
	if raw := strings.TrimSpace(in.DateOfIncident); raw != "" {
		date, err := time.Parse(time.DateOnly, raw)
		switch {
		case err != nil:
			verr.add("dateOfIncident", "must be a date in YYYY-MM-DD format")
		case date.After(s.now()):
			verr.add("dateOfIncident", "must not be in the future")
		default:
			report.DateOfIncident = &date
		}
	}

	if len(in.Attachments) > MaxAttachments {
		verr.add("attachments", fmt.Sprintf("at most %d files are allowed", MaxAttachments))
	}
	for _, att := range in.Attachments {
		if att.Size > MaxAttachmentBytes {
			verr.add("attachments", fmt.Sprintf("%s exceeds the %d MB limit", att.Filename, MaxAttachmentBytes>>20))
			continue
		}
		mediaType, _, err := mime.ParseMediaType(att.ContentType)
		if err != nil || !allowedAttachmentTypes[mediaType] {
			verr.add("attachments", fmt.Sprintf("%s has an unsupported file type", att.Filename))
		}
	}

	if err := verr.err(); err != nil {
		return nil, err
	}
	return report, nil
}

// List returns reports, optionally filtered by status.
func (s *ReportService) List(ctx context.Context, status string, limit int) ([]entity.Report, error) {
	status = strings.ToLower(strings.TrimSpace(status))
	if status != "" && !validReportStatus(status) {
		return nil, ValidationError{Fields: map[string]string{"status": "must be pending, approved or rejected"}}
	}
	if limit <= 0 || limit > 200 {
		limit = defaultReportListLimit
	}
	reports, err := s.repo.List(ctx, status, limit)
	if err != nil {
		return nil, err
	}
	if reports == nil {
		reports = []entity.Report{}
	}
	return reports, nil
}

// Moderate moves a pending report to approved or rejected.
func (s *ReportService) Moderate(ctx context.Context, id uuid.UUID, status string) (*entity.Report, error) {
	status = strings.ToLower(strings.TrimSpace(status))
	if status != entity.ReportStatusApproved && status != entity.ReportStatusRejected {
		return nil, ValidationError{Fields: map[string]string{"status": "must be approved or rejected"}}
	}

	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !entity.CanTransition(current.Status, status) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current.Status, status)
	}

	updated, err := s.repo.UpdateStatus(ctx, id, current.Status, status)
	if err != nil {
		return nil, err
	}
	s.logger.Info("report moderated",
		zap.String("report_id", id.String()),
		zap.String("from", current.Status),
		zap.String("to", status),
	)
	return updated, nil
}

func validReportStatus(status string) bool {
	switch status {
	case entity.ReportStatusPending, entity.ReportStatusApproved, entity.ReportStatusRejected:
		return true
	}
	return false
}
