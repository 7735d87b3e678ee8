// Package protocol defines the JSON message shapes exchanged with the
// interview backend over the control channel.
package protocol

import (
	"encoding/json"
	"fmt"
)

// Inbound event type tags.
const (
	TypeInterviewStarted = "interview_started"
	// Older backends tag the opening frame interview_initialized; it
	// carries the same payload as interview_started.
	TypeInterviewInitialized = "interview_initialized"

	TypeNewQuestion        = "new_question"
	TypeInterviewCompleted = "interview_completed"
	TypeInterviewPaused    = "interview_paused"
	TypeInterviewResumed   = "interview_resumed"
	TypeStatusUpdate       = "status_update"
	TypeError              = "error"
	TypePong               = "pong"
)

// Event is one inbound message from the backend, discriminated on its
// "type" tag. Tags the client does not recognize decode to Unknown so a
// newer backend never crashes an older client.
type Event interface {
	Kind() string
}

type InterviewStarted struct {
	CandidateName string `json:"candidate_name"`
}

func (InterviewStarted) Kind() string { return TypeInterviewStarted }

type NewQuestion struct {
	Question       string  `json:"question"`
	QuestionNumber int     `json:"question_number"`
	QuestionType   string  `json:"question_type"`
	Progress       float64 `json:"progress"`
	TimeRemaining  int     `json:"time_remaining"`
}

func (NewQuestion) Kind() string { return TypeNewQuestion }

type InterviewCompleted struct {
	FinalAssessment FinalAssessment `json:"final_assessment"`
}

func (InterviewCompleted) Kind() string { return TypeInterviewCompleted }

type InterviewPaused struct{}

func (InterviewPaused) Kind() string { return TypeInterviewPaused }

type InterviewResumed struct{}

func (InterviewResumed) Kind() string { return TypeInterviewResumed }

type StatusUpdate struct {
	Message       string   `json:"message"`
	Progress      *float64 `json:"progress"`
	TimeRemaining *int     `json:"time_remaining"`
}

func (StatusUpdate) Kind() string { return TypeStatusUpdate }

type ServerError struct {
	Message string `json:"message"`
}

func (ServerError) Kind() string { return TypeError }

type Pong struct {
	Timestamp string `json:"timestamp"`
}

func (Pong) Kind() string { return TypePong }

// Unknown carries an event whose tag this client does not handle. The
// raw payload is kept for logging.
type Unknown struct {
	Type string
	Raw  json.RawMessage
}

func (u Unknown) Kind() string { return u.Type }

// Decode parses one inbound control-channel frame. It returns an error
// only for malformed JSON or a missing type tag; unrecognized tags are
// not an error.
func Decode(data []byte) (Event, error) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("decode event envelope: %w", err)
	}
	if envelope.Type == "" {
		return nil, fmt.Errorf("event has no type tag: %s", data)
	}

	switch envelope.Type {
	case TypeInterviewStarted, TypeInterviewInitialized:
		return decodeAs[InterviewStarted](data)
	case TypeNewQuestion:
		return decodeAs[NewQuestion](data)
	case TypeInterviewCompleted:
		return decodeAs[InterviewCompleted](data)
	case TypeInterviewPaused:
		return InterviewPaused{}, nil
	case TypeInterviewResumed:
		return InterviewResumed{}, nil
	case TypeStatusUpdate:
		return decodeAs[StatusUpdate](data)
	case TypeError:
		return decodeAs[ServerError](data)
	case TypePong:
		return decodeAs[Pong](data)
	default:
		return Unknown{Type: envelope.Type, Raw: append(json.RawMessage(nil), data...)}, nil
	}
}

func decodeAs[T Event](data []byte) (Event, error) {
	var ev T
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, fmt.Errorf("decode %s event: %w", ev.Kind(), err)
	}
	return ev, nil
}
