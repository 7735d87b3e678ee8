package interview

import (
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/openhire/openhire-agent/internal/protocol"
)

type senderMock struct {
	mu     sync.Mutex
	sent   []protocol.ClientMessage
	refuse bool
}

func (s *senderMock) Send(msg protocol.ClientMessage) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.refuse {
		return false
	}
	s.sent = append(s.sent, msg)
	return true
}

func (s *senderMock) messages() []protocol.ClientMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]protocol.ClientMessage(nil), s.sent...)
}

func startInfo() StartInfo {
	return StartInfo{
		InterviewID:     "int-1",
		CandidateID:     "cand-1",
		JobDescription:  "Backend engineer",
		CandidateResume: "Ten years of Go",
	}
}

func connectedSession(t *testing.T, sender Sender, opts ...SessionOption) *Session {
	t.Helper()
	s := NewSession(startInfo(), sender, opts...)
	if !s.BeginConnecting() {
		t.Fatal("BeginConnecting failed from disconnected")
	}
	s.ControlOpened()
	if s.Phase() != PhaseConnected {
		t.Fatalf("expected connected, got %q", s.Phase())
	}
	return s
}

func deliverQuestion(s *Session, number int) {
	s.Apply(protocol.NewQuestion{
		Question:       "Tell me about a hard bug you fixed.",
		QuestionNumber: number,
		QuestionType:   "behavioral",
		Progress:       0.25,
		TimeRemaining:  1800,
	})
}

func TestConnectSendsStartInterview(t *testing.T) {
	sender := &senderMock{}
	var transitions []Phase
	s := NewSession(startInfo(), sender, WithPhaseListener(func(_, next Phase) {
		transitions = append(transitions, next)
	}))

	if !s.BeginConnecting() {
		t.Fatal("BeginConnecting failed")
	}
	if s.BeginConnecting() {
		t.Fatal("second BeginConnecting should report false")
	}

	s.ControlOpened()

	msgs := sender.messages()
	if len(msgs) != 1 {
		t.Fatalf("expected one outbound message, got %d", len(msgs))
	}
	if msgs[0].Type != "start_interview" {
		t.Fatalf("expected start_interview, got %q", msgs[0].Type)
	}

	want := []Phase{PhaseConnecting, PhaseConnected}
	if len(transitions) != len(want) {
		t.Fatalf("expected transitions %v, got %v", want, transitions)
	}
	for i, p := range want {
		if transitions[i] != p {
			t.Fatalf("transition %d: expected %q, got %q", i, p, transitions[i])
		}
	}
}

func TestControlOpenedOutOfPhaseIsNoOp(t *testing.T) {
	sender := &senderMock{}
	s := NewSession(startInfo(), sender)

	s.ControlOpened()

	if s.Phase() != PhaseDisconnected {
		t.Fatalf("expected disconnected, got %q", s.Phase())
	}
	if len(sender.messages()) != 0 {
		t.Fatalf("expected no outbound messages, got %d", len(sender.messages()))
	}
}

func TestQuestionUpdatesStateAndTranscript(t *testing.T) {
	sender := &senderMock{}
	s := connectedSession(t, sender)

	before := s.Transcript().Len()
	deliverQuestion(s, 3)

	snap := s.Snapshot()
	if snap.CurrentQuestion == "" {
		t.Fatal("expected current question to be set")
	}
	if snap.QuestionNumber != 3 {
		t.Fatalf("expected question number 3, got %d", snap.QuestionNumber)
	}
	if snap.Progress != 0.25 {
		t.Fatalf("expected progress 0.25, got %v", snap.Progress)
	}

	msgs := s.Transcript().Messages()
	if len(msgs) != before+1 {
		t.Fatalf("expected one new transcript entry, got %d", len(msgs)-before)
	}
	last := msgs[len(msgs)-1]
	if last.Role != RoleInterviewer {
		t.Fatalf("expected interviewer role, got %q", last.Role)
	}
	if last.QuestionNumber != 3 {
		t.Fatalf("expected question number on message, got %d", last.QuestionNumber)
	}
}

func TestSubmitAnswerClearsQuestion(t *testing.T) {
	sender := &senderMock{}
	s := connectedSession(t, sender)
	deliverQuestion(s, 1)

	if !s.SubmitAnswer("  I rewrote the scheduler.  ") {
		t.Fatal("SubmitAnswer failed")
	}

	msgs := sender.messages()
	last := msgs[len(msgs)-1]
	if last.Type != "submit_answer" {
		t.Fatalf("expected submit_answer, got %q", last.Type)
	}

	if q := s.Snapshot().CurrentQuestion; q != "" {
		t.Fatalf("expected question cleared, got %q", q)
	}

	entries := s.Transcript().Messages()
	answer := entries[len(entries)-1]
	if answer.Role != RoleCandidate {
		t.Fatalf("expected candidate entry, got %q", answer.Role)
	}
	if answer.Content != "I rewrote the scheduler." {
		t.Fatalf("expected trimmed answer, got %q", answer.Content)
	}
}

func TestSubmitAnswerNoOps(t *testing.T) {
	sender := &senderMock{}
	s := connectedSession(t, sender)

	// No pending question.
	if s.SubmitAnswer("early answer") {
		t.Fatal("expected submit to fail with no question")
	}

	deliverQuestion(s, 1)

	// Blank answers are dropped.
	if s.SubmitAnswer("   ") {
		t.Fatal("expected blank answer to be dropped")
	}

	// A refused send keeps the question pending.
	sender.refuse = true
	if s.SubmitAnswer("real answer") {
		t.Fatal("expected submit to fail when send is refused")
	}
	if q := s.Snapshot().CurrentQuestion; q == "" {
		t.Fatal("expected question to stay pending after refused send")
	}

	sender.refuse = false
	if !s.SubmitAnswer("real answer") {
		t.Fatal("expected submit to succeed after channel recovers")
	}
}

func TestPauseResumeCycle(t *testing.T) {
	sender := &senderMock{}
	s := connectedSession(t, sender)
	deliverQuestion(s, 1)

	// Phase does not change until the backend acknowledges.
	if !s.RequestPause() {
		t.Fatal("RequestPause failed")
	}
	if s.Phase() != PhaseConnected {
		t.Fatalf("expected connected before ack, got %q", s.Phase())
	}

	s.Apply(protocol.InterviewPaused{})
	if s.Phase() != PhasePaused {
		t.Fatalf("expected paused, got %q", s.Phase())
	}

	// Questions and answers are frozen while paused.
	before := s.Snapshot().QuestionNumber
	deliverQuestion(s, 2)
	if got := s.Snapshot().QuestionNumber; got != before {
		t.Fatalf("expected question dropped while paused, got number %d", got)
	}
	if s.SubmitAnswer("answer while paused") {
		t.Fatal("expected submit to fail while paused")
	}
	if s.RequestPause() {
		t.Fatal("expected pause request to fail while already paused")
	}

	if !s.RequestResume() {
		t.Fatal("RequestResume failed")
	}
	s.Apply(protocol.InterviewResumed{})
	if s.Phase() != PhaseConnected {
		t.Fatalf("expected connected after resume, got %q", s.Phase())
	}
}

func TestCompletionFiresOnce(t *testing.T) {
	sender := &senderMock{}
	var fired int
	var gotAssessment protocol.FinalAssessment
	var gotTranscript []Message

	s := connectedSession(t, sender, WithCompletionHandler(func(a protocol.FinalAssessment, msgs []Message) {
		fired++
		gotAssessment = a
		gotTranscript = msgs
	}))
	deliverQuestion(s, 1)
	s.SubmitAnswer("done")

	completed := protocol.InterviewCompleted{
		FinalAssessment: protocol.FinalAssessment{
			OverallScore:        4.2,
			FinalRecommendation: "hire",
		},
	}
	s.Apply(completed)
	s.Apply(completed)

	if fired != 1 {
		t.Fatalf("expected completion handler to fire once, fired %d times", fired)
	}
	if gotAssessment.OverallScore != 4.2 {
		t.Fatalf("expected overall score 4.2, got %v", gotAssessment.OverallScore)
	}
	if len(gotTranscript) == 0 {
		t.Fatal("expected transcript in completion handler")
	}
	if s.Phase() != PhaseCompleted {
		t.Fatalf("expected completed, got %q", s.Phase())
	}

	// Terminal: nothing moves the phase afterwards.
	lenBefore := s.Transcript().Len()
	deliverQuestion(s, 2)
	s.ControlClosed(1000, "normal", nil)
	if s.Phase() != PhaseCompleted {
		t.Fatalf("completed is terminal, got %q", s.Phase())
	}
	if s.Transcript().Len() != lenBefore {
		t.Fatal("expected transcript frozen after completion")
	}
}

func TestControlClosedRecordsReason(t *testing.T) {
	sender := &senderMock{}
	s := connectedSession(t, sender)

	s.ControlClosed(1006, "abnormal closure", errors.New("read tcp: connection reset"))

	if s.Phase() != PhaseDisconnected {
		t.Fatalf("expected disconnected, got %q", s.Phase())
	}
	snap := s.Snapshot()
	if snap.CloseCode != 1006 {
		t.Fatalf("expected close code 1006, got %d", snap.CloseCode)
	}
	if snap.CloseReason != "abnormal closure" {
		t.Fatalf("expected close reason recorded, got %q", snap.CloseReason)
	}

	msgs := s.Transcript().Messages()
	last := msgs[len(msgs)-1]
	if last.Role != RoleError {
		t.Fatalf("expected error entry for transport failure, got %q", last.Role)
	}
}

func TestUnknownEventIsIgnored(t *testing.T) {
	sender := &senderMock{}
	s := connectedSession(t, sender)

	before := s.Snapshot()
	s.Apply(protocol.Unknown{Type: "future_event"})
	after := s.Snapshot()

	if before.Phase != after.Phase || before.MessageCount != after.MessageCount {
		t.Fatal("expected unknown event to be a no-op")
	}
}

func TestStatusUpdateAppliesPartialFields(t *testing.T) {
	sender := &senderMock{}
	s := connectedSession(t, sender)
	deliverQuestion(s, 1)

	progress := 0.5
	s.Apply(protocol.StatusUpdate{Message: "Halfway there", Progress: &progress})

	snap := s.Snapshot()
	if snap.Progress != 0.5 {
		t.Fatalf("expected progress 0.5, got %v", snap.Progress)
	}
	if snap.TimeRemaining != 1800 {
		t.Fatalf("expected time remaining untouched, got %d", snap.TimeRemaining)
	}

	msgs := s.Transcript().Messages()
	if msgs[len(msgs)-1].Content != "Halfway there" {
		t.Fatalf("expected status message appended, got %q", msgs[len(msgs)-1].Content)
	}
}

func TestStatusListenerReceivesPartialFields(t *testing.T) {
	sender := &senderMock{}

	var gotMessage string
	var gotProgress *float64
	var gotTime *int
	calls := 0
	s := connectedSession(t, sender, WithStatusListener(func(message string, progress *float64, timeRemaining *int) {
		calls++
		gotMessage = message
		gotProgress = progress
		gotTime = timeRemaining
	}))

	progress := 0.75
	s.Apply(protocol.StatusUpdate{Message: "Wrapping up", Progress: &progress})

	if calls != 1 {
		t.Fatalf("expected 1 status callback, got %d", calls)
	}
	if gotMessage != "Wrapping up" {
		t.Fatalf("expected status message, got %q", gotMessage)
	}
	if gotProgress == nil || *gotProgress != 0.75 {
		t.Fatalf("expected progress pointer 0.75, got %v", gotProgress)
	}
	if gotTime != nil {
		t.Fatalf("expected absent time_remaining to stay nil, got %v", *gotTime)
	}

	// Out-of-phase updates are dropped before the listener fires.
	s.Apply(protocol.InterviewCompleted{FinalAssessment: protocol.FinalAssessment{}})
	s.Apply(protocol.StatusUpdate{Message: "too late"})
	if calls != 1 {
		t.Fatalf("expected no callback after completion, got %d", calls)
	}
}

func TestRequestEndSendsSentinel(t *testing.T) {
	sender := &senderMock{}
	s := connectedSession(t, sender)

	if !s.RequestEnd() {
		t.Fatal("RequestEnd failed")
	}

	msgs := sender.messages()
	last := msgs[len(msgs)-1]
	if last.Type != "submit_answer" {
		t.Fatalf("expected submit_answer frame, got %q", last.Type)
	}
}

func TestTranscriptAppendOnly(t *testing.T) {
	log := NewTranscriptLog()
	first := log.Append(NewMessage(RoleSystem, "one"))
	log.Append(NewMessage(RoleCandidate, "two"))

	msgs := log.Messages()
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].ID != first.ID {
		t.Fatal("expected insertion order preserved")
	}

	// Mutating the returned slice must not affect the log.
	msgs[0].Content = "mutated"
	if log.Messages()[0].Content != "one" {
		t.Fatal("expected Messages to return a copy")
	}
}

func TestFormatMarkdownLabels(t *testing.T) {
	msg := NewMessage(RoleInterviewer, "What is a goroutine?")
	msg.QuestionNumber = 2

	got := msg.FormatMarkdown()
	if want := "interviewer (Q2):"; !strings.Contains(got, want) {
		t.Fatalf("expected %q in %q", want, got)
	}

	plain := NewMessage(RoleCandidate, "  A lightweight thread.  ")
	if !strings.Contains(plain.FormatMarkdown(), "candidate:** A lightweight thread.") {
		t.Fatalf("unexpected format: %q", plain.FormatMarkdown())
	}
}
