package observer

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/openhire/openhire-agent/internal/capture"
	"github.com/openhire/openhire-agent/internal/interview"
	"github.com/openhire/openhire-agent/internal/protocol"
)

// Hub fans events out to every connected observer. Slow clients drop
// events rather than blocking the interview.
type Hub struct {
	mu      sync.RWMutex
	clients map[chan []byte]struct{}
}

func NewHub() *Hub {
	return &Hub{clients: make(map[chan []byte]struct{})}
}

func (h *Hub) Subscribe() chan []byte {
	ch := make(chan []byte, 64)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *Hub) Unsubscribe(ch chan []byte) {
	h.mu.Lock()
	delete(h.clients, ch)
	h.mu.Unlock()
	close(ch)
}

func (h *Hub) Broadcast(msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.clients {
		select {
		case ch <- msg:
		default:
		}
	}
}

func (h *Hub) BroadcastPhaseChanged(interviewID, phase string) {
	h.broadcastEvent(PhaseChangedEvent{
		Event:       newEvent("phase_changed", time.Now().UTC()),
		InterviewID: interviewID,
		Phase:       phase,
	})
}

func (h *Hub) BroadcastTranscriptMessage(interviewID string, msg interview.Message) {
	h.broadcastEvent(TranscriptMessageEvent{
		Event:       newEvent("transcript_message", msg.Timestamp),
		InterviewID: interviewID,
		Message:     msg,
	})
}

func (h *Hub) BroadcastInterimTranscript(text string) {
	h.broadcastEvent(InterimTranscriptEvent{
		Event: newEvent("interim_transcript", time.Now().UTC()),
		Text:  text,
	})
}

func (h *Hub) BroadcastFrameCaptured(interviewID string, frame capture.Frame) {
	h.broadcastEvent(FrameCapturedEvent{
		Event:       newEvent("frame_captured", frame.CapturedAt),
		InterviewID: interviewID,
		Frame:       frame,
	})
}

func (h *Hub) BroadcastAssessmentReady(interviewID string, assessment *protocol.FinalAssessment) {
	h.broadcastEvent(AssessmentReadyEvent{
		Event:       newEvent("assessment_ready", time.Now().UTC()),
		InterviewID: interviewID,
		Assessment:  assessment,
	})
}

func (h *Hub) BroadcastDebriefReady(interviewID, debrief, status string) {
	h.broadcastEvent(DebriefReadyEvent{
		Event:       newEvent("debrief_ready", time.Now().UTC()),
		InterviewID: interviewID,
		Debrief:     debrief,
		Status:      status,
	})
}

func (h *Hub) BroadcastStatusUpdate(message string, progress *float64, timeRemaining *int) {
	h.broadcastEvent(StatusUpdateEvent{
		Event:         newEvent("status_update", time.Now().UTC()),
		Message:       message,
		Progress:      progress,
		TimeRemaining: timeRemaining,
	})
}

func (h *Hub) broadcastEvent(event any) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("event marshal error: %v", err)
		return
	}
	h.Broadcast(payload)
}
