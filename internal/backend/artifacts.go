// Package backend talks to the recruitment platform's REST surface:
// the interview_artifacts table and the media object store.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/openhire/openhire-agent/internal/capture"
)

// ArtifactClient writes artifact rows through the platform's
// PostgREST-style API. It implements capture.ArtifactStore.
type ArtifactClient struct {
	baseURL string
	apiKey  string
	table   string
	http    *http.Client
}

func NewArtifactClient(baseURL, apiKey string) *ArtifactClient {
	return &ArtifactClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		table:   "interview_artifacts",
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

type artifactRow struct {
	InterviewID string `json:"interview_id"`
	ImageURLs   string `json:"image_urls,omitempty"`
	Status      string `json:"status,omitempty"`
	RecordedAt  string `json:"recorded_at,omitempty"`
}

// UpdateArtifactImages patches the interview's artifact row. The API
// returns the affected rows, so an empty result means the backend has
// not created the row yet.
func (c *ArtifactClient) UpdateArtifactImages(ctx context.Context, interviewID, imageURLs string) (int64, error) {
	endpoint := fmt.Sprintf("%s/rest/v1/%s?interview_id=eq.%s",
		c.baseURL, c.table, url.QueryEscape(interviewID))
	body, err := json.Marshal(artifactRow{ImageURLs: imageURLs})
	if err != nil {
		return 0, fmt.Errorf("encode artifact patch: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("build artifact patch: %w", err)
	}
	c.setHeaders(req)
	req.Header.Set("Prefer", "return=representation")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("patch artifact for %s: %w", interviewID, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, apiError("patch artifact", resp)
	}

	var updated []artifactRow
	if err := json.NewDecoder(resp.Body).Decode(&updated); err != nil {
		return 0, fmt.Errorf("decode artifact patch response: %w", err)
	}
	return int64(len(updated)), nil
}

// CreateArtifact inserts a new artifact row, mapping the API's 409 to
// capture.ErrConflict.
func (c *ArtifactClient) CreateArtifact(ctx context.Context, a capture.Artifact) error {
	endpoint := fmt.Sprintf("%s/rest/v1/%s", c.baseURL, c.table)
	body, err := json.Marshal(artifactRow{
		InterviewID: a.InterviewID,
		ImageURLs:   a.ImageURLs,
		Status:      a.Status,
		RecordedAt:  a.RecordedAt.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("encode artifact insert: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build artifact insert: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("insert artifact for %s: %w", a.InterviewID, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusConflict {
		return capture.ErrConflict
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return apiError("insert artifact", resp)
	}
	return nil
}

func (c *ArtifactClient) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("apikey", c.apiKey)
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

func apiError(op string, resp *http.Response) error {
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf("%s: backend returned %d: %s", op, resp.StatusCode, bytes.TrimSpace(snippet))
}
