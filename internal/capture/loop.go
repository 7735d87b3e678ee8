package capture

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// tickTimeout bounds one full capture-upload-associate pass. A device
// or backend that hangs must not wedge later ticks.
const tickTimeout = 30 * time.Second

// Loop drives periodic frame capture for one interview. Each tick
// samples the source, uploads the frame, and re-associates the full
// accumulated URL list with the backend artifact row. A failed tick
// never blocks the next one.
type Loop struct {
	source   FrameSource
	store    ObjectStore
	assoc    *Associator
	id       string
	interval time.Duration
	onFrame  func(Frame)

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	wg      sync.WaitGroup
	frames  []Frame
	urls    []string
}

// NewLoop wires a capture loop for the given interview. onFrame, if
// non-nil, is invoked after each tick with the frame's final status.
func NewLoop(source FrameSource, store ObjectStore, assoc *Associator, interviewID string, interval time.Duration, onFrame func(Frame)) *Loop {
	if interval <= 0 {
		interval = 2 * time.Minute
	}
	return &Loop{
		source:   source,
		store:    store,
		assoc:    assoc,
		id:       interviewID,
		interval: interval,
		onFrame:  onFrame,
	}
}

// Start begins ticking. Calling Start on a running loop is a no-op.
func (l *Loop) Start() {
	l.mu.Lock()
	if l.running {
		l.mu.Unlock()
		return
	}
	l.running = true
	l.stop = make(chan struct{})
	stop := l.stop
	l.mu.Unlock()

	l.wg.Add(1)
	go l.run(stop)
}

// Stop halts the loop and waits for any in-flight tick to finish.
// Stopping a stopped loop is a no-op.
func (l *Loop) Stop() {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return
	}
	l.running = false
	close(l.stop)
	l.mu.Unlock()

	l.wg.Wait()
}

func (l *Loop) run(stop chan struct{}) {
	defer l.wg.Done()
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	// First frame immediately: a short interview should still yield
	// at least one capture.
	l.tick(stop)
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			l.tick(stop)
		}
	}
}

func (l *Loop) tick(stop chan struct{}) {
	ctx, cancel := context.WithTimeout(context.Background(), tickTimeout)
	defer cancel()

	frame := Frame{
		ID:         uuid.NewString(),
		CapturedAt: time.Now().UTC(),
		Status:     StatusPending,
	}

	data, err := l.source.Capture(ctx)
	if err != nil {
		log.Printf("capture: frame grab failed: %v", err)
		frame.Status = StatusFailed
		l.record(stop, frame)
		return
	}

	objectPath := fmt.Sprintf("interviews/%s/frame-%d.jpg", l.id, frame.CapturedAt.UnixMilli())
	url, err := l.store.Upload(ctx, objectPath, data, "image/jpeg")
	if err != nil {
		log.Printf("capture: upload failed for %s: %v", objectPath, err)
		frame.Status = StatusFailed
		l.record(stop, frame)
		return
	}
	frame.Status = StatusUploaded
	frame.URL = url

	urls, ok := l.record(stop, frame)
	if !ok {
		// Loop stopped while the upload was in flight; the final
		// flush owns association from here.
		return
	}
	if err := l.assoc.Associate(ctx, urls); err != nil {
		// Association failures are advisory: the frame is uploaded
		// and the list is retried on the next tick and at flush.
		log.Printf("capture: associate failed for %s: %v", l.id, err)
	}
}

// record appends the frame under the lock and returns the joined URL
// list. It reports false if the loop was stopped in the meantime, in
// which case the caller must not act on the result.
func (l *Loop) record(stop chan struct{}, frame Frame) (string, bool) {
	select {
	case <-stop:
		return "", false
	default:
	}
	l.mu.Lock()
	l.frames = append(l.frames, frame)
	if frame.URL != "" {
		l.urls = append(l.urls, frame.URL)
	}
	joined := strings.Join(l.urls, ",")
	l.mu.Unlock()

	if l.onFrame != nil {
		l.onFrame(frame)
	}
	return joined, true
}

// Frames returns a copy of every frame attempted so far.
func (l *Loop) Frames() []Frame {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Frame, len(l.frames))
	copy(out, l.frames)
	return out
}

// Flush pushes the accumulated URL list through the blocking
// association path. Call it after Stop, once the interview has ended.
func (l *Loop) Flush(ctx context.Context) error {
	l.mu.Lock()
	joined := strings.Join(l.urls, ",")
	l.mu.Unlock()
	return l.assoc.Flush(ctx, joined)
}
