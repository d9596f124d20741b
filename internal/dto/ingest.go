package dto

import "github.com/dubaivisaervices/builder-pixel-hub-sub003/internal/progress"

// BatchUploadRequest starts one ingestion batch.
type BatchUploadRequest struct {
	BatchNumber int    `json:"batchNumber"`
	Concurrency int    `json:"concurrency"`
	Strategy    string `json:"strategy"`
}

// ProgressStatus is the polled view of ingestion progress.
type ProgressStatus struct {
	Running     bool            `json:"running"`
	Subscribers int             `json:"subscribers"`
	Latest      *progress.Frame `json:"latest"`
}
