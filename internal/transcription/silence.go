package transcription

import (
	"sync"
	"time"
)

// Detector watches for a silence window after the candidate stops
// talking and fires the auto-submit callback when it elapses. Speech
// cancels a pending window; each utterance end re-arms it.
type Detector struct {
	timeout   time.Duration
	mu        sync.Mutex
	timer     *time.Timer
	onSilence func()
}

func NewDetector(timeout time.Duration) *Detector {
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	return &Detector{timeout: timeout}
}

func (d *Detector) OnSilence(callback func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onSilence = callback
}

func (d *Detector) OnSpeech() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

func (d *Detector) OnUtteranceEnd() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}

	d.timer = time.AfterFunc(d.timeout, func() {
		d.mu.Lock()
		callback := d.onSilence
		d.timer = nil
		d.mu.Unlock()

		if callback != nil {
			callback()
		}
	})
}

// Stop cancels any pending silence window.
func (d *Detector) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
