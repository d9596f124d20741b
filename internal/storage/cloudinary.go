package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/admin"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

type cloudinaryUploader interface {
	Upload(ctx context.Context, file interface{}, params uploader.UploadParams) (*uploader.UploadResult, error)
}

type cloudinaryAdmin interface {
	Ping(ctx context.Context) (*admin.PingResult, error)
}

// CloudinaryStore uploads to Cloudinary using the object name as public id.
type CloudinaryStore struct {
	upload cloudinaryUploader
	admin  cloudinaryAdmin
	folder string
	cloud  string
}

// NewCloudinaryStore builds a store from a cloudinary:// URL.
func NewCloudinaryStore(cloudinaryURL, folder string) (*CloudinaryStore, error) {
	if strings.TrimSpace(cloudinaryURL) == "" {
		return nil, errors.New("cloudinary url must not be empty")
	}
	cld, err := cloudinary.NewFromURL(cloudinaryURL)
	if err != nil {
		return nil, fmt.Errorf("init cloudinary: %w", err)
	}
	return &CloudinaryStore{
		upload: &cld.Upload,
		admin:  &cld.Admin,
		folder: strings.Trim(folder, "/"),
		cloud:  cld.Config.Cloud.CloudName,
	}, nil
}

// Name implements ImageStore.
func (s *CloudinaryStore) Name() string { return "cloudinary" }

// PublicID maps an object name onto a Cloudinary public id.
func (s *CloudinaryStore) PublicID(name string) string {
	id := strings.TrimSuffix(name, path.Ext(name))
	if s.folder != "" {
		id = s.folder + "/" + id
	}
	return id
}

// Put uploads r with overwrite enabled and returns the secure URL.
func (s *CloudinaryStore) Put(ctx context.Context, name string, r io.Reader) (string, error) {
	result, err := s.upload.Upload(ctx, r, uploader.UploadParams{
		PublicID:       s.PublicID(name),
		Overwrite:      api.Bool(true),
		UniqueFilename: api.Bool(false),
		Invalidate:     api.Bool(true),
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", name, err)
	}
	if result.Error.Message != "" {
		return "", fmt.Errorf("upload %s: %s", name, result.Error.Message)
	}
	if result.SecureURL == "" {
		return "", fmt.Errorf("upload %s: no url returned", name)
	}
	return result.SecureURL, nil
}

// Probe pings the admin API.
func (s *CloudinaryStore) Probe(ctx context.Context) (ProbeResult, error) {
	result := ProbeResult{Backend: s.Name(), Target: s.cloud, RemoteRoot: s.folder}
	started := time.Now()

	ping, err := s.admin.Ping(ctx)
	if err != nil {
		result.Message = err.Error()
		return result, fmt.Errorf("cloudinary ping: %w", err)
	}
	if ping.Error.Message != "" {
		result.Message = ping.Error.Message
		return result, fmt.Errorf("cloudinary ping: %s", ping.Error.Message)
	}

	result.Connected = true
	result.Latency = time.Since(started)
	result.Message = ping.Status
	return result, nil
}
