package interview

import (
	"context"
	"strings"
	"sync"

	"github.com/openhire/openhire-agent/internal/protocol"
)

// ControlChannel is the control-plane socket owned by the conductor.
// Connect while already connecting or open must be a no-op, Close must
// be idempotent, and Send must drop (report false) when not open.
type ControlChannel interface {
	Sender
	Connect(ctx context.Context) error
	Close() error
}

// CaptureRunner is the frame capture loop. Start while running and Stop
// while stopped are no-ops.
type CaptureRunner interface {
	Start()
	Stop()
}

// VoiceChannel is the speech-transcription side-channel. Stop must be
// safe when never started or already stopped.
type VoiceChannel interface {
	Start(ctx context.Context) error
	Stop()
}

// Conductor drives one interview attempt: it owns the session reducer
// and starts or stops the capture loop and voice channel on phase
// transitions. The capture loop and voice channel run only while the
// phase is connected.
type Conductor struct {
	session *Session
	control ControlChannel
	capture CaptureRunner
	voice   VoiceChannel

	mu            sync.Mutex
	ctx           context.Context
	pending       string
	voiceDisabled bool
}

func NewConductor(start StartInfo, control ControlChannel, capture CaptureRunner, voice VoiceChannel, opts ...SessionOption) *Conductor {
	c := &Conductor{
		control: control,
		capture: capture,
		voice:   voice,
		ctx:     context.Background(),
	}

	c.session = NewSession(start, control, opts...)

	// Observe phase transitions before any externally registered
	// listener so resources are torn down first.
	user := c.session.onPhase
	c.session.onPhase = func(prev, next Phase) {
		c.handlePhase(prev, next)
		if user != nil {
			user(prev, next)
		}
	}

	return c
}

func (c *Conductor) Session() *Session { return c.session }

// Start opens the control channel. It returns ErrSessionActive when the
// session has already left the disconnected phase, so a double-clicked
// start cannot open a duplicate socket.
func (c *Conductor) Start(ctx context.Context) error {
	if !c.session.BeginConnecting() {
		return ErrSessionActive
	}

	c.mu.Lock()
	c.ctx = ctx
	c.mu.Unlock()

	if err := c.control.Connect(ctx); err != nil {
		c.session.ControlClosed(0, "", err)
		return err
	}
	return nil
}

// HandleOpen is invoked by the control channel once the socket is up.
func (c *Conductor) HandleOpen() {
	c.session.ControlOpened()
}

// HandleEvent feeds one inbound backend event into the session reducer.
// Events are delivered in arrival order by the control channel's single
// read loop.
func (c *Conductor) HandleEvent(ev protocol.Event) {
	c.session.Apply(ev)
}

// HandleClosed is invoked by the control channel when the socket closes
// or fails.
func (c *Conductor) HandleClosed(code int, reason string, err error) {
	c.session.ControlClosed(code, reason, err)
}

// SubmitAnswer submits typed answer text, clearing any pending voice
// transcript it supersedes.
func (c *Conductor) SubmitAnswer(text string) bool {
	ok := c.session.SubmitAnswer(text)
	if ok {
		c.mu.Lock()
		c.pending = ""
		c.mu.Unlock()
	}
	return ok
}

// SetPendingTranscript replaces the pending answer buffer with the
// latest voice transcript. The side-channel is the source of truth for
// what has been said so far, so the text replaces rather than appends.
func (c *Conductor) SetPendingTranscript(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.voiceDisabled {
		return
	}
	c.pending = text
}

// PendingTranscript returns the current voice transcript buffer.
func (c *Conductor) PendingTranscript() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}

// SubmitPending submits the buffered voice transcript as the answer.
func (c *Conductor) SubmitPending() bool {
	c.mu.Lock()
	pending := c.pending
	c.mu.Unlock()
	if strings.TrimSpace(pending) == "" {
		return false
	}
	return c.SubmitAnswer(pending)
}

// DisableVoice turns the transcription side-channel off for the rest of
// the session and reports the reason exactly once. The candidate falls
// back to typed input.
func (c *Conductor) DisableVoice(reason string) {
	c.mu.Lock()
	if c.voiceDisabled {
		c.mu.Unlock()
		return
	}
	c.voiceDisabled = true
	c.pending = ""
	c.mu.Unlock()

	if c.voice != nil {
		c.voice.Stop()
	}
	c.session.ReportError("Voice input disabled: " + reason)
}

func (c *Conductor) VoiceDisabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.voiceDisabled
}

func (c *Conductor) Pause() bool  { return c.session.RequestPause() }
func (c *Conductor) Resume() bool { return c.session.RequestResume() }
func (c *Conductor) End() bool    { return c.session.RequestEnd() }

// Shutdown tears down the session's resources on component teardown.
func (c *Conductor) Shutdown() {
	if c.capture != nil {
		c.capture.Stop()
	}
	if c.voice != nil {
		c.voice.Stop()
	}
	_ = c.control.Close()
}

func (c *Conductor) handlePhase(_, next Phase) {
	switch next {
	case PhaseConnected:
		if c.capture != nil {
			c.capture.Start()
		}
		c.startVoice()
	case PhaseCompleted:
		c.stopSideChannels()
		_ = c.control.Close()
	default:
		c.stopSideChannels()
	}
}

func (c *Conductor) startVoice() {
	c.mu.Lock()
	disabled := c.voiceDisabled
	ctx := c.ctx
	c.mu.Unlock()

	if c.voice == nil || disabled {
		return
	}
	if err := c.voice.Start(ctx); err != nil {
		c.DisableVoice(err.Error())
	}
}

func (c *Conductor) stopSideChannels() {
	if c.capture != nil {
		c.capture.Stop()
	}
	if c.voice != nil {
		c.voice.Stop()
	}
}

