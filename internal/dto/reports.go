package dto

import "io"

// ReportInput is the complaint form after multipart decoding.
type ReportInput struct {
	CompanyID       string
	CompanyName     string
	CompanyLocation string
	CompanyWebsite  string
	CompanyPhone    string
	IssueType       string
	Description     string
	AmountLost      string
	DateOfIncident  string
	ReporterName    string
	ReporterEmail   string
	ReporterPhone   string
	Attachments     []Attachment
}

// Attachment is one uploaded evidence file.
type Attachment struct {
	Filename    string
	ContentType string
	Size        int64
	Open        func() (io.ReadCloser, error)
}

// ModerateReportRequest moves a report out of pending.
type ModerateReportRequest struct {
	Status string `json:"status"`
}
