package backend

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"
)

// Uploader stores media payloads in the platform's object storage and
// returns their public URLs. It implements capture.ObjectStore.
type Uploader struct {
	baseURL string
	apiKey  string
	bucket  string
	http    *http.Client
}

func NewUploader(baseURL, apiKey, bucket string) *Uploader {
	if bucket == "" {
		bucket = "interview-media"
	}
	return &Uploader{
		baseURL: baseURL,
		apiKey:  apiKey,
		bucket:  bucket,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

func (u *Uploader) Upload(ctx context.Context, objectPath string, data []byte, contentType string) (string, error) {
	endpoint := fmt.Sprintf("%s/storage/v1/object/%s/%s", u.baseURL, u.bucket, objectPath)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	// Replays of the same object path overwrite instead of erroring.
	req.Header.Set("x-upsert", "true")
	if u.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+u.apiKey)
	}

	resp, err := u.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", objectPath, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", apiError("upload object", resp)
	}

	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", u.baseURL, u.bucket, objectPath), nil
}
