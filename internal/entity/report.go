package entity

import (
	"time"

	"github.com/google/uuid"
)

// Report moderation states.
const (
	ReportStatusPending  = "pending"
	ReportStatusApproved = "approved"
	ReportStatusRejected = "rejected"
)

// Report is a complaint filed by a user against a business.
type Report struct {
	ID              uuid.UUID  `json:"id"`
	BusinessID      *string    `json:"businessId,omitempty"`
	CompanyName     string     `json:"companyName"`
	CompanyLocation string     `json:"companyLocation,omitempty"`
	CompanyWebsite  string     `json:"companyWebsite,omitempty"`
	CompanyPhone    string     `json:"companyPhone,omitempty"`
	IssueType       string     `json:"issueType"`
	Description     string     `json:"description"`
	AmountLost      *float64   `json:"amountLost,omitempty"`
	DateOfIncident  *time.Time `json:"dateOfIncident,omitempty"`
	ReporterName    string     `json:"reporterName,omitempty"`
	ReporterEmail   string     `json:"reporterEmail,omitempty"`
	ReporterPhone   string     `json:"reporterPhone,omitempty"`
	Attachments     []string   `json:"attachments"`
	Status          string     `json:"status"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

// CanTransition reports whether moderation may move a report from one status to another.
func CanTransition(from, to string) bool {
	return from == ReportStatusPending && (to == ReportStatusApproved || to == ReportStatusRejected)
}
