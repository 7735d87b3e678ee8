// Package interview holds the client-side session state machine for one
// AI interview: the phase lifecycle, the append-only transcript, and the
// conductor that ties the control channel, capture loop, and voice
// side-channel to phase transitions.
package interview

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role identifies who produced a transcript entry.
type Role string

const (
	RoleSystem      Role = "system"
	RoleCandidate   Role = "candidate"
	RoleInterviewer Role = "interviewer"
	RoleError       Role = "error"
)

// Message is one transcript entry. Messages are never mutated after they
// are appended.
type Message struct {
	ID             string    `json:"id"`
	Role           Role      `json:"role"`
	Content        string    `json:"content"`
	Timestamp      time.Time `json:"timestamp"`
	QuestionNumber int       `json:"question_number,omitempty"`
	QuestionType   string    `json:"question_type,omitempty"`
}

// NewMessage stamps a transcript entry with a fresh identifier and the
// current UTC time.
func NewMessage(role Role, content string) Message {
	return Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UTC(),
	}
}

func (m Message) FormatMarkdown() string {
	ts := m.Timestamp.Format("15:04:05")
	label := string(m.Role)
	if m.Role == RoleInterviewer && m.QuestionNumber > 0 {
		label = fmt.Sprintf("interviewer (Q%d)", m.QuestionNumber)
	}
	return fmt.Sprintf("**[%s] %s:** %s", ts, label, strings.TrimSpace(m.Content))
}
