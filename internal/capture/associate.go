package capture

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"
)

// ErrConflict reports that an artifact row already exists for the
// interview. Stores return it when the uniqueness constraint on the
// interview ID trips during a create.
var ErrConflict = errors.New("capture: artifact already exists")

// Artifact is the backend record tying an interview to its captured
// media. ImageURLs is the full comma-joined frame URL list; each
// association attempt carries the complete list so a late-arriving row
// still ends up with every frame.
type Artifact struct {
	InterviewID string
	ImageURLs   string
	Status      string
	RecordedAt  time.Time
}

// ArtifactStore is the backend surface the associator writes through.
type ArtifactStore interface {
	// UpdateArtifactImages replaces the image URL list on the
	// interview's artifact row and reports how many rows matched.
	// Zero rows means the backend has not created the row yet.
	UpdateArtifactImages(ctx context.Context, interviewID, imageURLs string) (int64, error)

	// CreateArtifact inserts a new artifact row, returning ErrConflict
	// if one already exists for the interview.
	CreateArtifact(ctx context.Context, a Artifact) error
}

// RetryPolicy bounds the association retries. Backoff is the delay
// schedule between attempts; attempts past the end of the schedule
// reuse its last entry.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     []time.Duration
}

// DefaultRetryPolicy matches the backend's observed artifact-creation
// lag: three attempts two seconds apart covers the normal case.
var DefaultRetryPolicy = RetryPolicy{
	MaxAttempts: 3,
	Backoff:     []time.Duration{2 * time.Second, 2 * time.Second, 4 * time.Second},
}

func (p RetryPolicy) delay(attempt int) time.Duration {
	if len(p.Backoff) == 0 {
		return 0
	}
	if attempt >= len(p.Backoff) {
		return p.Backoff[len(p.Backoff)-1]
	}
	return p.Backoff[attempt]
}

// Associator links the accumulated frame URL list to the interview's
// artifact row. The row is created asynchronously by the backend, so a
// zero-rows-affected update is not an error; attempts are counted and
// once MaxAttempts consecutive misses accumulate the record is created
// directly so the frame references are not lost.
type Associator struct {
	store       ArtifactStore
	interviewID string
	policy      RetryPolicy
	sleep       func(time.Duration)

	mu     sync.Mutex
	misses int
}

func NewAssociator(store ArtifactStore, interviewID string, policy RetryPolicy) *Associator {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = DefaultRetryPolicy.MaxAttempts
	}
	return &Associator{
		store:       store,
		interviewID: interviewID,
		policy:      policy,
		sleep:       time.Sleep,
	}
}

// Associate makes one opportunistic update attempt with the full URL
// list. Misses are counted across calls: the capture tick cadence is
// the retry spacing, and the attempt that exhausts the budget falls
// back to creating the row itself.
func (a *Associator) Associate(ctx context.Context, imageURLs string) error {
	n, err := a.store.UpdateArtifactImages(ctx, a.interviewID, imageURLs)
	if err != nil {
		return fmt.Errorf("update artifact images: %w", err)
	}
	if n > 0 {
		a.mu.Lock()
		a.misses = 0
		a.mu.Unlock()
		return nil
	}

	a.mu.Lock()
	a.misses++
	miss := a.misses
	a.mu.Unlock()
	if miss < a.policy.MaxAttempts {
		log.Printf("capture: artifact row for %s not present yet (attempt %d of %d)",
			a.interviewID, miss, a.policy.MaxAttempts)
		return nil
	}
	return a.createWithMerge(ctx, imageURLs)
}

// Flush blocks through the full retry schedule and guarantees the URL
// list lands somewhere: it is the end-of-interview save, where there is
// no next tick to lean on.
func (a *Associator) Flush(ctx context.Context, imageURLs string) error {
	if imageURLs == "" {
		return nil
	}
	for attempt := 0; attempt < a.policy.MaxAttempts; attempt++ {
		if attempt > 0 {
			a.sleep(a.policy.delay(attempt - 1))
		}
		n, err := a.store.UpdateArtifactImages(ctx, a.interviewID, imageURLs)
		if err != nil {
			return fmt.Errorf("update artifact images: %w", err)
		}
		if n > 0 {
			return nil
		}
	}
	return a.createWithMerge(ctx, imageURLs)
}

// createWithMerge inserts the artifact row, and if the backend won the
// race and created it first, merges by updating instead. Losing both
// ways means the row appeared and then vanished, which is a real error.
func (a *Associator) createWithMerge(ctx context.Context, imageURLs string) error {
	err := a.store.CreateArtifact(ctx, Artifact{
		InterviewID: a.interviewID,
		ImageURLs:   imageURLs,
		Status:      "completed",
		RecordedAt:  time.Now().UTC(),
	})
	if err == nil {
		a.mu.Lock()
		a.misses = 0
		a.mu.Unlock()
		log.Printf("capture: created artifact row for %s directly", a.interviewID)
		return nil
	}
	if !errors.Is(err, ErrConflict) {
		return fmt.Errorf("create artifact: %w", err)
	}
	n, err := a.store.UpdateArtifactImages(ctx, a.interviewID, imageURLs)
	if err != nil {
		return fmt.Errorf("merge artifact images: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("artifact row for %s conflicted on create but matched no update", a.interviewID)
	}
	a.mu.Lock()
	a.misses = 0
	a.mu.Unlock()
	return nil
}
