// Package transcription feeds the candidate's speech into the pending
// answer buffer: microphone audio streams to Deepgram, finalized
// utterances replace the draft answer, and a silence window submits it.
package transcription

import "strings"

// Word is one recognized word with its timing inside the audio stream.
type Word struct {
	PunctuatedWord string
	Start          float64
	End            float64
}

// UtteranceBuffer accumulates words from multiple is_final messages
// until speech_final signals the utterance is complete.
type UtteranceBuffer struct {
	words []Word
}

func NewUtteranceBuffer() *UtteranceBuffer {
	return &UtteranceBuffer{}
}

// AddWords appends words from an is_final message to the buffer.
func (b *UtteranceBuffer) AddWords(words []Word) {
	b.words = append(b.words, words...)
}

// Flush joins the accumulated words into one utterance and resets the
// buffer. Returns "" if the buffer is empty.
func (b *UtteranceBuffer) Flush() string {
	if len(b.words) == 0 {
		return ""
	}
	parts := make([]string, 0, len(b.words))
	for _, w := range b.words {
		if w.PunctuatedWord == "" {
			continue
		}
		parts = append(parts, w.PunctuatedWord)
	}
	b.words = nil
	return strings.TrimSpace(strings.Join(parts, " "))
}

// Len returns the number of words currently in the buffer.
func (b *UtteranceBuffer) Len() int {
	return len(b.words)
}
