package interview

import (
	"log"
	"strings"
	"sync"

	"github.com/openhire/openhire-agent/internal/protocol"
)

// Phase is the lifecycle state of a session.
//
//	disconnected → connecting → connected ⇄ paused → completed
//
// disconnected is re-entered from any non-terminal phase when the control
// channel closes; completed is terminal.
type Phase string

const (
	PhaseDisconnected Phase = "disconnected"
	PhaseConnecting   Phase = "connecting"
	PhaseConnected    Phase = "connected"
	PhasePaused       Phase = "paused"
	PhaseCompleted    Phase = "completed"
)

// Terminal reports whether no further transitions can leave the phase.
func (p Phase) Terminal() bool { return p == PhaseCompleted }

// Active reports whether the session holds live resources (capture loop,
// voice channel may run only while the phase is active).
func (p Phase) Active() bool {
	return p == PhaseConnecting || p == PhaseConnected || p == PhasePaused
}

// Sender carries outbound control messages. Send reports false when the
// channel is not open; nothing is queued for later delivery.
type Sender interface {
	Send(msg protocol.ClientMessage) bool
}

// StartInfo is the payload of the start_interview message sent as soon as
// the control channel opens.
type StartInfo struct {
	InterviewID     string
	CandidateID     string
	JobDescription  string
	CandidateResume string
}

// Session is the reducer for one interview attempt. Every inbound event
// and user action is a discrete transition with exactly one defined
// outcome, possibly a no-op. All callbacks fire outside the lock.
type Session struct {
	start  StartInfo
	sender Sender

	mu              sync.Mutex
	phase           Phase
	candidateName   string
	currentQuestion string
	questionNumber  int
	questionType    string
	progress        float64
	timeRemaining   int
	closeCode       int
	closeReason     string
	assessment      *protocol.FinalAssessment
	completedFired  bool

	transcript *TranscriptLog

	onPhase    func(prev, next Phase)
	onMessage  func(Message)
	onStatus   func(message string, progress *float64, timeRemaining *int)
	onComplete func(assessment protocol.FinalAssessment, transcript []Message)
}

type SessionOption func(*Session)

// WithPhaseListener registers a callback invoked after every phase
// transition.
func WithPhaseListener(fn func(prev, next Phase)) SessionOption {
	return func(s *Session) { s.onPhase = fn }
}

// WithMessageListener registers a callback invoked for every transcript
// append.
func WithMessageListener(fn func(Message)) SessionOption {
	return func(s *Session) { s.onMessage = fn }
}

// WithStatusListener registers a callback invoked for every accepted
// status update, with only the fields the backend actually sent.
func WithStatusListener(fn func(message string, progress *float64, timeRemaining *int)) SessionOption {
	return func(s *Session) { s.onStatus = fn }
}

// WithCompletionHandler registers the callback invoked exactly once when
// the backend delivers the final assessment.
func WithCompletionHandler(fn func(protocol.FinalAssessment, []Message)) SessionOption {
	return func(s *Session) { s.onComplete = fn }
}

func NewSession(start StartInfo, sender Sender, opts ...SessionOption) *Session {
	s := &Session{
		start:      start,
		sender:     sender,
		phase:      PhaseDisconnected,
		transcript: NewTranscriptLog(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Session) InterviewID() string { return s.start.InterviewID }

func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

func (s *Session) Transcript() *TranscriptLog { return s.transcript }

// Snapshot is a point-in-time view of the session for display layers.
type Snapshot struct {
	InterviewID     string                    `json:"interview_id"`
	Phase           Phase                     `json:"phase"`
	CandidateName   string                    `json:"candidate_name,omitempty"`
	CurrentQuestion string                    `json:"current_question,omitempty"`
	QuestionNumber  int                       `json:"question_number"`
	QuestionType    string                    `json:"question_type,omitempty"`
	Progress        float64                   `json:"progress"`
	TimeRemaining   int                       `json:"time_remaining"`
	CloseCode       int                       `json:"close_code,omitempty"`
	CloseReason     string                    `json:"close_reason,omitempty"`
	Assessment      *protocol.FinalAssessment `json:"assessment,omitempty"`
	MessageCount    int                       `json:"message_count"`
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		InterviewID:     s.start.InterviewID,
		Phase:           s.phase,
		CandidateName:   s.candidateName,
		CurrentQuestion: s.currentQuestion,
		QuestionNumber:  s.questionNumber,
		QuestionType:    s.questionType,
		Progress:        s.progress,
		TimeRemaining:   s.timeRemaining,
		CloseCode:       s.closeCode,
		CloseReason:     s.closeReason,
		Assessment:      s.assessment,
		MessageCount:    s.transcript.Len(),
	}
}

// BeginConnecting moves disconnected → connecting. It reports false from
// any other phase so a double-clicked start cannot open a second socket.
func (s *Session) BeginConnecting() bool {
	s.mu.Lock()
	if s.phase != PhaseDisconnected {
		s.mu.Unlock()
		return false
	}
	prev := s.phase
	s.phase = PhaseConnecting
	s.mu.Unlock()

	s.append(NewMessage(RoleSystem, "Connecting to the interview backend..."))
	s.notifyPhase(prev, PhaseConnecting)
	return true
}

// ControlOpened moves connecting → connected and immediately sends the
// start_interview message so the backend can create or resume its
// session state.
func (s *Session) ControlOpened() {
	s.mu.Lock()
	if s.phase != PhaseConnecting {
		s.mu.Unlock()
		return
	}
	prev := s.phase
	s.phase = PhaseConnected
	s.mu.Unlock()

	s.append(NewMessage(RoleSystem, "Connected. Starting interview..."))
	s.notifyPhase(prev, PhaseConnected)

	if s.sender != nil {
		s.sender.Send(protocol.StartInterview(
			s.start.InterviewID,
			s.start.CandidateID,
			s.start.JobDescription,
			s.start.CandidateResume,
		))
	}
}

// ControlClosed records the close code and reason and moves any
// non-terminal phase to disconnected. A completed session stays
// completed; the orchestrator closes the channel as a side effect of
// completion.
func (s *Session) ControlClosed(code int, reason string, transportErr error) {
	s.mu.Lock()
	s.closeCode = code
	s.closeReason = reason
	if s.phase == PhaseCompleted || s.phase == PhaseDisconnected {
		s.mu.Unlock()
		return
	}
	prev := s.phase
	s.phase = PhaseDisconnected
	s.mu.Unlock()

	if transportErr != nil {
		s.append(NewMessage(RoleError, "Connection error: "+transportErr.Error()))
	} else if reason != "" {
		s.append(NewMessage(RoleSystem, "Interview connection closed: "+reason))
	} else {
		s.append(NewMessage(RoleSystem, "Interview connection closed"))
	}
	s.notifyPhase(prev, PhaseDisconnected)
}

// Apply reduces one inbound backend event into the session. Unknown and
// out-of-phase events are logged and ignored without a state change.
func (s *Session) Apply(ev protocol.Event) {
	switch e := ev.(type) {
	case protocol.InterviewStarted:
		s.applyStarted(e)
	case protocol.NewQuestion:
		s.applyQuestion(e)
	case protocol.InterviewCompleted:
		s.applyCompleted(e)
	case protocol.InterviewPaused:
		s.applyPause(PhaseConnected, PhasePaused, "Interview has been paused")
	case protocol.InterviewResumed:
		s.applyPause(PhasePaused, PhaseConnected, "Interview has been resumed")
	case protocol.StatusUpdate:
		s.applyStatus(e)
	case protocol.ServerError:
		s.append(NewMessage(RoleError, "Error: "+e.Message))
	case protocol.Pong:
		// Keepalive, nothing to record.
	case protocol.Unknown:
		log.Printf("ignoring unknown event type %q", e.Type)
	default:
		log.Printf("ignoring unhandled event type %q", ev.Kind())
	}
}

func (s *Session) applyStarted(e protocol.InterviewStarted) {
	s.mu.Lock()
	if s.phase != PhaseConnected {
		s.mu.Unlock()
		return
	}
	s.candidateName = e.CandidateName
	s.mu.Unlock()

	name := e.CandidateName
	if name == "" {
		name = "candidate"
	}
	s.append(NewMessage(RoleSystem, "Interview started for "+name))
}

func (s *Session) applyQuestion(e protocol.NewQuestion) {
	s.mu.Lock()
	if s.phase != PhaseConnected {
		// A question delivered while paused or disconnected is dropped;
		// the backend re-sends the current question on resume.
		s.mu.Unlock()
		return
	}
	s.currentQuestion = e.Question
	s.questionNumber = e.QuestionNumber
	s.questionType = e.QuestionType
	s.progress = e.Progress
	s.timeRemaining = e.TimeRemaining
	s.mu.Unlock()

	msg := NewMessage(RoleInterviewer, e.Question)
	msg.QuestionNumber = e.QuestionNumber
	msg.QuestionType = e.QuestionType
	s.append(msg)
}

func (s *Session) applyCompleted(e protocol.InterviewCompleted) {
	s.mu.Lock()
	if s.phase != PhaseConnected && s.phase != PhasePaused {
		s.mu.Unlock()
		return
	}
	prev := s.phase
	s.phase = PhaseCompleted
	s.currentQuestion = ""
	assessment := e.FinalAssessment
	s.assessment = &assessment
	fire := !s.completedFired
	s.completedFired = true
	s.mu.Unlock()

	s.append(NewMessage(RoleSystem, "Interview completed"))
	s.notifyPhase(prev, PhaseCompleted)

	if fire && s.onComplete != nil {
		s.onComplete(assessment, s.transcript.Messages())
	}
}

func (s *Session) applyPause(from, to Phase, note string) {
	s.mu.Lock()
	if s.phase != from {
		s.mu.Unlock()
		return
	}
	s.phase = to
	s.mu.Unlock()

	s.append(NewMessage(RoleSystem, note))
	s.notifyPhase(from, to)
}

func (s *Session) applyStatus(e protocol.StatusUpdate) {
	s.mu.Lock()
	if s.phase != PhaseConnected && s.phase != PhasePaused {
		s.mu.Unlock()
		return
	}
	if e.Progress != nil {
		s.progress = *e.Progress
	}
	if e.TimeRemaining != nil {
		s.timeRemaining = *e.TimeRemaining
	}
	s.mu.Unlock()

	if strings.TrimSpace(e.Message) != "" {
		s.append(NewMessage(RoleSystem, e.Message))
	}
	if s.onStatus != nil {
		s.onStatus(e.Message, e.Progress, e.TimeRemaining)
	}
}

// SubmitAnswer records and sends the candidate's answer to the current
// question. It is a silent no-op when the phase is not connected, no
// question is pending, the text is blank, or the channel refuses the
// send.
func (s *Session) SubmitAnswer(text string) bool {
	answer := strings.TrimSpace(text)
	if answer == "" {
		return false
	}

	s.mu.Lock()
	if s.phase != PhaseConnected || s.currentQuestion == "" {
		s.mu.Unlock()
		return false
	}
	s.mu.Unlock()

	if s.sender == nil || !s.sender.Send(protocol.SubmitAnswer(answer)) {
		return false
	}

	s.mu.Lock()
	s.currentQuestion = ""
	s.mu.Unlock()

	s.append(NewMessage(RoleCandidate, answer))
	return true
}

// RequestEnd asks the backend to terminate early. Completion still
// arrives as a normal interview_completed event.
func (s *Session) RequestEnd() bool {
	s.mu.Lock()
	ok := s.phase == PhaseConnected
	s.mu.Unlock()
	if !ok || s.sender == nil {
		return false
	}
	if !s.sender.Send(protocol.EndInterview()) {
		return false
	}
	s.append(NewMessage(RoleCandidate, "Ending interview..."))
	return true
}

// RequestPause sends the pause control message. The phase changes only
// when the backend acknowledges with interview_paused.
func (s *Session) RequestPause() bool {
	s.mu.Lock()
	ok := s.phase == PhaseConnected
	s.mu.Unlock()
	if !ok || s.sender == nil {
		return false
	}
	return s.sender.Send(protocol.PauseInterview())
}

func (s *Session) RequestResume() bool {
	s.mu.Lock()
	ok := s.phase == PhasePaused
	s.mu.Unlock()
	if !ok || s.sender == nil {
		return false
	}
	return s.sender.Send(protocol.ResumeInterview())
}

// ReportError appends an error message without a phase change, used for
// local failures (device permissions, disabled features).
func (s *Session) ReportError(text string) {
	s.append(NewMessage(RoleError, text))
}

func (s *Session) append(msg Message) {
	s.transcript.Append(msg)
	if s.onMessage != nil {
		s.onMessage(msg)
	}
}

func (s *Session) notifyPhase(prev, next Phase) {
	if s.onPhase != nil && prev != next {
		s.onPhase(prev, next)
	}
}
