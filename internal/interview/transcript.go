package interview

import "sync"

// TranscriptLog is the append-only ordered record of exchanged messages.
// No deletion or reordering operation exists; length is monotonically
// non-decreasing for the life of a session.
type TranscriptLog struct {
	mu       sync.RWMutex
	messages []Message
}

func NewTranscriptLog() *TranscriptLog {
	return &TranscriptLog{}
}

// Append adds one message at the end of the log and returns it.
func (t *TranscriptLog) Append(msg Message) Message {
	t.mu.Lock()
	t.messages = append(t.messages, msg)
	t.mu.Unlock()
	return msg
}

func (t *TranscriptLog) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.messages)
}

// Messages returns a copy of the log in insertion order.
func (t *TranscriptLog) Messages() []Message {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]Message(nil), t.messages...)
}
