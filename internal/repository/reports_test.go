package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dubaivisaervices/builder-pixel-hub-sub003/internal/entity"
)

func reportScan(id uuid.UUID, status string) func(dest ...any) error {
	return func(dest ...any) error {
		now := time.Now()
		*dest[0].(*uuid.UUID) = id
		*dest[1].(*sql.NullString) = sql.NullString{String: "p1", Valid: true}
		*dest[2].(*string) = "Shady Visas LLC"
		*dest[3].(*sql.NullString) = sql.NullString{String: "Deira", Valid: true}
		*dest[4].(*sql.NullString) = sql.NullString{}
		*dest[5].(*sql.NullString) = sql.NullString{}
		*dest[6].(*string) = "fraud"
		*dest[7].(*string) = "Took the deposit and disappeared"
		*dest[8].(*sql.NullFloat64) = sql.NullFloat64{Float64: 2500, Valid: true}
		*dest[9].(*sql.NullTime) = sql.NullTime{Time: now.AddDate(0, -1, 0), Valid: true}
		*dest[10].(*sql.NullString) = sql.NullString{}
		*dest[11].(*sql.NullString) = sql.NullString{String: "victim@example.com", Valid: true}
		*dest[12].(*sql.NullString) = sql.NullString{}
		*dest[13].(*[]string) = nil
		*dest[14].(*string) = status
		*dest[15].(*time.Time) = now
		*dest[16].(*time.Time) = now
		return nil
	}
}

func TestPGXReportsRepository_Create(t *testing.T) {
	id := uuid.New()
	var gotArgs []any
	repo := &PGXReportsRepository{pool: &stubPool{
		queryRowFunc: func(ctx context.Context, query string, args ...any) pgx.Row {
			gotArgs = args
			return &stubRow{scan: func(dest ...any) error {
				*dest[0].(*time.Time) = time.Now()
				*dest[1].(*time.Time) = time.Now()
				return nil
			}}
		},
	}}

	report := &entity.Report{ID: id, CompanyName: "Shady Visas LLC", IssueType: "fraud", Description: "desc", Status: entity.ReportStatusPending}
	if err := repo.Create(context.Background(), report); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.CreatedAt.IsZero() {
		t.Fatalf("expected timestamps filled")
	}
	if len(gotArgs) != 15 || gotArgs[0] != id || gotArgs[1] != nil || gotArgs[3] != nil {
		t.Fatalf("unexpected args: %v", gotArgs)
	}
	if attachments, ok := gotArgs[13].([]string); !ok || attachments == nil {
		t.Fatalf("expected empty attachments slice, got %#v", gotArgs[13])
	}

	if err := repo.Create(context.Background(), nil); err == nil {
		t.Fatalf("expected error for nil report")
	}
}

func TestPGXReportsRepository_GetAndList(t *testing.T) {
	id := uuid.New()
	var listQuery string
	repo := &PGXReportsRepository{pool: &stubPool{
		queryRowFunc: func(ctx context.Context, query string, args ...any) pgx.Row {
			if args[0] == id {
				return &stubRow{scan: reportScan(id, entity.ReportStatusPending)}
			}
			return &stubRow{scan: func(dest ...any) error { return pgx.ErrNoRows }}
		},
		queryFunc: func(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
			listQuery = query
			return &stubRows{scans: []func(dest ...any) error{reportScan(id, entity.ReportStatusApproved)}}, nil
		},
	}}

	report, err := repo.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.AmountLost == nil || *report.AmountLost != 2500 || report.BusinessID == nil || *report.BusinessID != "p1" {
		t.Fatalf("unexpected report: %+v", report)
	}
	if report.Attachments == nil {
		t.Fatalf("expected non-nil attachments")
	}
	if _, err := repo.Get(context.Background(), uuid.New()); !errors.Is(err, ErrReportNotFound) {
		t.Fatalf("expected ErrReportNotFound, got %v", err)
	}

	reports, err := repo.List(context.Background(), entity.ReportStatusApproved, 0)
	if err != nil || len(reports) != 1 {
		t.Fatalf("unexpected list result: %+v %v", reports, err)
	}
	if !strings.Contains(listQuery, "WHERE status = $1") || !strings.Contains(listQuery, "LIMIT $2") {
		t.Fatalf("unexpected list query: %s", listQuery)
	}
}

func TestPGXReportsRepository_UpdateStatus(t *testing.T) {
	id := uuid.New()
	repo := &PGXReportsRepository{pool: &stubPool{
		queryRowFunc: func(ctx context.Context, query string, args ...any) pgx.Row {
			if args[1] != entity.ReportStatusPending {
				return &stubRow{scan: func(dest ...any) error { return pgx.ErrNoRows }}
			}
			return &stubRow{scan: reportScan(id, args[2].(string))}
		},
	}}

	report, err := repo.UpdateStatus(context.Background(), id, entity.ReportStatusPending, entity.ReportStatusApproved)
	if err != nil || report.Status != entity.ReportStatusApproved {
		t.Fatalf("unexpected result: %+v %v", report, err)
	}
	if _, err := repo.UpdateStatus(context.Background(), id, entity.ReportStatusApproved, entity.ReportStatusRejected); !errors.Is(err, ErrReportStatusChanged) {
		t.Fatalf("expected ErrReportStatusChanged, got %v", err)
	}
}
