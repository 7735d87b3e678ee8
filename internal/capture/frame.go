// Package capture implements the webcam snapshot loop: a timer-driven
// sampler that uploads each frame to object storage and links the
// accumulated frame references to the interview's backend artifact row.
package capture

import (
	"context"
	"time"
)

// Upload status of a captured frame.
const (
	StatusPending  = "pending"
	StatusUploaded = "uploaded"
	StatusFailed   = "failed"
)

// Frame is one snapshot taken during the interview. Frames are kept in
// memory for the session's duration; they are not persisted locally.
type Frame struct {
	ID         string    `json:"id"`
	CapturedAt time.Time `json:"captured_at"`
	Status     string    `json:"status"`
	URL        string    `json:"url,omitempty"`
}

// FrameSource produces one encoded image per call, sampling whatever
// video device backs it.
type FrameSource interface {
	Capture(ctx context.Context) ([]byte, error)
}

// ObjectStore persists frame payloads and returns the stored URL. Each
// upload is independent of whether the artifact row exists yet.
type ObjectStore interface {
	Upload(ctx context.Context, objectPath string, data []byte, contentType string) (string, error)
}
