// Package imagesource resolves vision image references to raw bytes.
//
// A direct URL is fetched as-is. A storage path is checked for existence,
// exchanged for a short-lived signed URL, and then fetched. Resolved bytes
// live only for the duration of one request.
package imagesource

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hearthstash/hearthstash/gateway/pkg/models"
)

// SignedURLTTL is the lifetime of signed URLs issued for storage paths.
const SignedURLTTL = 5 * time.Minute

// maxImageBytes bounds a single fetched image (20 MiB, above every
// provider's own inline-image limit).
const maxImageBytes = 20 << 20

// ObjectStorage is the object-store collaborator: existence checks and
// signed-URL issuance. The surrounding application owns uploads.
type ObjectStorage interface {
	Exists(ctx context.Context, path string) (bool, error)
	SignedURL(ctx context.Context, path string, expires time.Duration) (string, error)
}

// NotFoundError reports a storage path with no object behind it.
type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string {
	return "image not found: " + e.Path
}

// FetchError reports a failed image download. Status is zero for
// transport-level failures.
type FetchError struct {
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("image fetch failed: status %d", e.Status)
	}
	return fmt.Sprintf("image fetch failed: %v", e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Resolver turns image refs into image inputs.
type Resolver struct {
	storage ObjectStorage // nil when no object storage is configured
	client  *http.Client
}

// NewResolver creates a resolver. storage may be nil; storage-path refs
// then fail until one is configured.
func NewResolver(storage ObjectStorage) *Resolver {
	return &Resolver{
		storage: storage,
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

// Resolve fetches the bytes behind a ref.
func (r *Resolver) Resolve(ctx context.Context, ref *models.VisionImageRef) (*models.VisionImageInput, error) {
	switch {
	case ref.URL != "":
		return r.fetch(ctx, ref.URL)

	case ref.StoragePath != "":
		url := ref.DownloadURL
		if url == "" {
			var err error
			url, err = r.signStoragePath(ctx, ref.StoragePath)
			if err != nil {
				return nil, err
			}
		}
		input, err := r.fetch(ctx, url)
		if err != nil {
			return nil, err
		}
		input.SourceURL = "" // signed URLs expire; do not carry them forward
		return input, nil

	default:
		return nil, fmt.Errorf("image ref has neither url nor storage path")
	}
}

func (r *Resolver) signStoragePath(ctx context.Context, path string) (string, error) {
	if r.storage == nil {
		return "", fmt.Errorf("object storage not configured")
	}

	exists, err := r.storage.Exists(ctx, path)
	if err != nil {
		return "", fmt.Errorf("check object %s: %w", path, err)
	}
	if !exists {
		return "", &NotFoundError{Path: path}
	}

	url, err := r.storage.SignedURL(ctx, path, SignedURLTTL)
	if err != nil {
		return "", fmt.Errorf("sign url for %s: %w", path, err)
	}
	return url, nil
}

func (r *Resolver) fetch(ctx context.Context, url string) (*models.VisionImageInput, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{Err: err}
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, &FetchError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, &NotFoundError{Path: url}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &FetchError{Status: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, &FetchError{Err: err}
	}

	mimeType := resp.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	return &models.VisionImageInput{
		MimeType:  mimeType,
		Bytes:     body,
		SourceURL: url,
	}, nil
}
