package gcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/Lllllllleong/titlereport/internal/models"
	"google.golang.org/api/googleapi"
)

// ErrInvalidGCSURI is returned for URIs that are not gs://bucket/object.
var ErrInvalidGCSURI = errors.New("invalid gcs uri")

// IsGCSURI reports whether s names a Cloud Storage object.
func IsGCSURI(s string) bool {
	return strings.HasPrefix(s, "gs://")
}

// ParseGCSURI splits gs://bucket/object into its bucket and object names.
func ParseGCSURI(uri string) (bucket, object string, err error) {
	if !IsGCSURI(uri) {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidGCSURI, uri)
	}
	rest := strings.TrimPrefix(uri, "gs://")
	bucket, object, ok := strings.Cut(rest, "/")
	if !ok || bucket == "" || object == "" {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidGCSURI, uri)
	}
	return bucket, object, nil
}

// ReadObject downloads the object named by uri as an upload. The upload name
// is the object's base name so the extractor can dispatch on its extension.
func ReadObject(ctx context.Context, client *storage.Client, uri string) (models.Upload, error) {
	bucket, object, err := ParseGCSURI(uri)
	if err != nil {
		return models.Upload{}, err
	}

	reader, err := client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) && gerr.Code == 403 {
			return models.Upload{}, fmt.Errorf("permission denied reading %s: %w", uri, err)
		}
		return models.Upload{}, fmt.Errorf("failed to get GCS object reader for %s: %w", uri, err)
	}
	defer reader.Close()

	content, err := io.ReadAll(reader)
	if err != nil {
		return models.Upload{}, fmt.Errorf("failed to read GCS object %s: %w", uri, err)
	}
	return models.Upload{Name: path.Base(object), Content: content}, nil
}
