package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"github.com/Lllllllleong/identityonboardflow/internal/apperr"
	"google.golang.org/api/option"
)

// BlobStore is the contract over the managed object store. Upload overwrites
// unconditionally; last writer wins. URL fails with NotFound if nothing was
// ever uploaded to the path. There is no deletion primitive in the pipeline.
type BlobStore interface {
	Upload(ctx context.Context, path string, data []byte, contentType string) error
	URL(ctx context.Context, path string) (string, error)
	URI(path string) string
}

// GCSBlobStore implements BlobStore on one Cloud Storage bucket.
type GCSBlobStore struct {
	client *storage.Client
	bucket string
}

func NewGCSBlobStore(ctx context.Context, bucket, credentialsFile string) (*GCSBlobStore, error) {
	if bucket == "" {
		return nil, fmt.Errorf("bucket must be provided to create a blob store")
	}
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Storage client: %w", err)
	}
	return &GCSBlobStore{client: client, bucket: bucket}, nil
}

func (s *GCSBlobStore) Upload(ctx context.Context, path string, data []byte, contentType string) error {
	writer := s.client.Bucket(s.bucket).Object(path).NewWriter(ctx)
	writer.ContentType = contentType
	if _, err := io.Copy(writer, bytes.NewReader(data)); err != nil {
		_ = writer.Close()
		return apperr.Wrap(apperr.KindUpstream, "failed to write blob", err)
	}
	if err := writer.Close(); err != nil {
		return apperr.Wrap(apperr.KindUpstream, "failed to finalize blob write", err)
	}
	return nil
}

// URL checks that the object exists and returns its media link.
func (s *GCSBlobStore) URL(ctx context.Context, path string) (string, error) {
	attrs, err := s.client.Bucket(s.bucket).Object(path).Attrs(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return "", apperr.Newf(apperr.KindNotFound, "blob %s not found", path)
	}
	if err != nil {
		return "", apperr.Wrap(apperr.KindUpstream, "failed to read blob attributes", err)
	}
	if attrs.MediaLink != "" {
		return attrs.MediaLink, nil
	}
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", s.bucket, path), nil
}

// URI returns the gs:// address of a path, used by the Vertex detector.
func (s *GCSBlobStore) URI(path string) string {
	return fmt.Sprintf("gs://%s/%s", s.bucket, path)
}

func (s *GCSBlobStore) Close() error {
	return s.client.Close()
}
