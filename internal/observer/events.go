// Package observer exposes a local HTTP and WebSocket surface for
// watching and steering a running interview: live transcript events,
// phase changes, capture activity, and pause/resume/answer controls.
package observer

import (
	"time"

	"github.com/openhire/openhire-agent/internal/capture"
	"github.com/openhire/openhire-agent/internal/interview"
	"github.com/openhire/openhire-agent/internal/protocol"
)

const EventVersion = 1

type Event struct {
	Type      string `json:"type"`
	Version   int    `json:"version"`
	Timestamp string `json:"timestamp"`
}

type PhaseChangedEvent struct {
	Event
	InterviewID string `json:"interview_id"`
	Phase       string `json:"phase"`
}

type TranscriptMessageEvent struct {
	Event
	InterviewID string            `json:"interview_id"`
	Message     interview.Message `json:"message"`
}

type InterimTranscriptEvent struct {
	Event
	Text string `json:"text"`
}

type FrameCapturedEvent struct {
	Event
	InterviewID string        `json:"interview_id"`
	Frame       capture.Frame `json:"frame"`
}

type AssessmentReadyEvent struct {
	Event
	InterviewID string                    `json:"interview_id"`
	Assessment  *protocol.FinalAssessment `json:"assessment"`
}

type DebriefReadyEvent struct {
	Event
	InterviewID string `json:"interview_id"`
	Debrief     string `json:"debrief"`
	Status      string `json:"status"`
}

type StatusUpdateEvent struct {
	Event
	Message       string   `json:"message,omitempty"`
	Progress      *float64 `json:"progress,omitempty"`
	TimeRemaining *int     `json:"time_remaining,omitempty"`
}

type ConnectionEvent struct {
	Event
	Connected bool `json:"connected"`
	Session   any  `json:"session,omitempty"`
}

func newEvent(eventType string, now time.Time) Event {
	if now.IsZero() {
		now = time.Now().UTC()
	}
	return Event{
		Type:      eventType,
		Version:   EventVersion,
		Timestamp: now.UTC().Format(time.RFC3339Nano),
	}
}
