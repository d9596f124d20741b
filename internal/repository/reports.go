package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dubaivisaervices/builder-pixel-hub-sub003/internal/entity"
)

var (
	// ErrReportNotFound is returned when no report matches the id.
	ErrReportNotFound = errors.New("report not found")
	// ErrReportStatusChanged is returned when a report left the expected status concurrently.
	ErrReportStatusChanged = errors.New("report status changed")
)

// ReportsRepository persists complaint reports.
type ReportsRepository interface {
	Create(ctx context.Context, report *entity.Report) error
	Get(ctx context.Context, id uuid.UUID) (*entity.Report, error)
	List(ctx context.Context, status string, limit int) ([]entity.Report, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to string) (*entity.Report, error)
}

// PGXReportsRepository implements ReportsRepository using pgx.
type PGXReportsRepository struct {
	pool pgxPool
}

// NewPGXReportsRepository wires a pgx backed repository.
func NewPGXReportsRepository(pool *pgxpool.Pool) *PGXReportsRepository {
	return &PGXReportsRepository{pool: pool}
}

const reportColumns = `id, business_id, company_name, company_location, company_website, company_phone,
            issue_type, description, amount_lost, date_of_incident, reporter_name, reporter_email,
            reporter_phone, attachments, status, created_at, updated_at`

// Create inserts a report and fills its timestamps.
func (r *PGXReportsRepository) Create(ctx context.Context, report *entity.Report) error {
	if report == nil {
		return fmt.Errorf("report payload is nil")
	}

	row := r.pool.QueryRow(ctx, `
        INSERT INTO reports (
            id, business_id, company_name, company_location, company_website, company_phone,
            issue_type, description, amount_lost, date_of_incident, reporter_name, reporter_email,
            reporter_phone, attachments, status
        ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
        RETURNING created_at, updated_at
    `,
		report.ID,
		ptrOrNil(report.BusinessID),
		report.CompanyName,
		stringOrNil(report.CompanyLocation),
		stringOrNil(report.CompanyWebsite),
		stringOrNil(report.CompanyPhone),
		report.IssueType,
		report.Description,
		report.AmountLost,
		report.DateOfIncident,
		stringOrNil(report.ReporterName),
		stringOrNil(report.ReporterEmail),
		stringOrNil(report.ReporterPhone),
		stringSliceOrEmpty(report.Attachments),
		report.Status,
	)
	if err := row.Scan(&report.CreatedAt, &report.UpdatedAt); err != nil {
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}

// Get fetches a report by id.
func (r *PGXReportsRepository) Get(ctx context.Context, id uuid.UUID) (*entity.Report, error) {
	report, err := scanReport(r.pool.QueryRow(ctx, "SELECT "+reportColumns+" FROM reports WHERE id = $1", id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrReportNotFound
		}
		return nil, fmt.Errorf("get report: %w", err)
	}
	return report, nil
}

// List returns reports, optionally filtered by status, newest first.
func (r *PGXReportsRepository) List(ctx context.Context, status string, limit int) ([]entity.Report, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	query := "SELECT " + reportColumns + " FROM reports"
	args := []any{}
	if status != "" {
		query += " WHERE status = $1"
		args = append(args, status)
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args)+1)
	args = append(args, limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	reports := []entity.Report{}
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		reports = append(reports, *report)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reports: %w", err)
	}
	return reports, nil
}

// UpdateStatus moves a report from one status to another. The update only
// applies while the report still has status from.
func (r *PGXReportsRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to string) (*entity.Report, error) {
	report, err := scanReport(r.pool.QueryRow(ctx, `
        UPDATE reports SET status = $3, updated_at = NOW()
        WHERE id = $1 AND status = $2
        RETURNING `+reportColumns, id, from, to))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrReportStatusChanged
		}
		return nil, fmt.Errorf("update report status: %w", err)
	}
	return report, nil
}

func scanReport(row pgx.Row) (*entity.Report, error) {
	var (
		report      entity.Report
		businessID  sql.NullString
		location    sql.NullString
		website     sql.NullString
		phone       sql.NullString
		amount      sql.NullFloat64
		incident    sql.NullTime
		name        sql.NullString
		email       sql.NullString
		reporterTel sql.NullString
		attachments []string
	)
	err := row.Scan(
		&report.ID,
		&businessID,
		&report.CompanyName,
		&location,
		&website,
		&phone,
		&report.IssueType,
		&report.Description,
		&amount,
		&incident,
		&name,
		&email,
		&reporterTel,
		&attachments,
		&report.Status,
		&report.CreatedAt,
		&report.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	report.BusinessID = nullStringToPtr(businessID)
	report.CompanyLocation = location.String
	report.CompanyWebsite = website.String
	report.CompanyPhone = phone.String
	if amount.Valid {
		val := amount.Float64
		report.AmountLost = &val
	}
	if incident.Valid {
		ts := incident.Time
		report.DateOfIncident = &ts
	}
	report.ReporterName = name.String
	report.ReporterEmail = email.String
	report.ReporterPhone = reporterTel.String
	report.Attachments = stringSliceOrEmpty(attachments)
	return &report, nil
}
