// Package storage hosts ingested images and report attachments on a public
// static host and hands back their public URLs.
package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"
)

// ImageStore uploads objects under deterministic names. Uploading the same
// name twice overwrites the earlier object.
type ImageStore interface {
	Name() string
	Put(ctx context.Context, name string, r io.Reader) (string, error)
	Probe(ctx context.Context) (ProbeResult, error)
}

// ProbeResult describes a connectivity check against the store.
type ProbeResult struct {
	Backend    string        `json:"backend"`
	Connected  bool          `json:"connected"`
	Target     string        `json:"target"`
	RemoteRoot string        `json:"remoteRoot,omitempty"`
	Entries    int           `json:"entries"`
	Latency    time.Duration `json:"latencyNs"`
	Message    string        `json:"message"`
}

// Object directories.
const (
	LogoDir       = "logos"
	PhotoDir      = "photos"
	AttachmentDir = "reports"
)

// LogoName is the object name of a business logo.
func LogoName(placeID string) string {
	return fmt.Sprintf("%s/logo-%s.jpg", LogoDir, sanitize(placeID))
}

// PhotoName is the object name of the index-th business photo, counted from 1.
func PhotoName(placeID string, index int) string {
	return fmt.Sprintf("%s/photo-%s-%d.jpg", PhotoDir, sanitize(placeID), index)
}

// AttachmentName is the object name of the index-th report attachment.
func AttachmentName(reportID string, index int, filename string) string {
	ext := sanitize(strings.ToLower(strings.TrimPrefix(path.Ext(filename), ".")))
	if ext != "" {
		ext = "." + ext
	}
	base := sanitize(strings.TrimSuffix(path.Base(filename), path.Ext(filename)))
	if base == "" {
		base = "file"
	}
	return fmt.Sprintf("%s/%s/%d-%s%s", AttachmentDir, sanitize(reportID), index, base, ext)
}

// PublicURL joins a public base URL and an object name.
func PublicURL(base, name string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(name, "/")
}

func sanitize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}
	return strings.Trim(b.String(), ".")
}
