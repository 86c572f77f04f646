package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"

	gcs "cloud.google.com/go/storage"
	"github.com/google/uuid"
)

var ErrNotConfigured = errors.New("storage bucket not configured")

// Uploader stores a blob and returns a public download URL for it.
type Uploader interface {
	Upload(ctx context.Context, objectPath, contentType string, data []byte) (string, error)
}

// GCS uploads to a Firebase Storage bucket with a download token, the URL
// form the mobile client can open without credentials.
type GCS struct {
	client *gcs.Client
	bucket string
}

var _ Uploader = (*GCS)(nil)

func NewGCS(client *gcs.Client, bucket string) *GCS {
	return &GCS{client: client, bucket: bucket}
}

func (s *GCS) Upload(ctx context.Context, objectPath, contentType string, data []byte) (string, error) {
	if s.client == nil || s.bucket == "" {
		return "", ErrNotConfigured
	}
	token := uuid.NewString()
	w := s.client.Bucket(s.bucket).Object(objectPath).NewWriter(ctx)
	w.ContentType = contentType
	w.Metadata = map[string]string{
		"firebaseStorageDownloadTokens": token,
	}
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("write %s: %w", objectPath, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalize %s: %w", objectPath, err)
	}
	return DownloadURL(s.bucket, objectPath, token), nil
}

func DownloadURL(bucket, objectPath, token string) string {
	return fmt.Sprintf("https://firebasestorage.googleapis.com/v0/b/%s/o/%s?alt=media&token=%s",
		bucket, url.PathEscape(objectPath), token)
}

// ReceiptPath names a new receipt object, keeping the uploaded file's
// extension ("jpg" when it has none).
func ReceiptPath(filename string) string {
	return objectPath("receipts", filename)
}

// ItemImagePath names a new listing photo object.
func ItemImagePath(filename string) string {
	return objectPath("items", filename)
}

func objectPath(dir, filename string) string {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(filename), "."))
	if ext == "" {
		ext = "jpg"
	}
	return dir + "/" + uuid.NewString() + "." + ext
}
