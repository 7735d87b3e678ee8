package protocol

// EndSentinel is the answer payload that asks the backend to terminate
// the interview early. The backend treats it like any other answer and
// responds with interview_completed.
const EndSentinel = "end"

// ClientMessage is one outbound control-channel frame.
type ClientMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type startPayload struct {
	InterviewID     string `json:"interview_id"`
	CandidateID     string `json:"candidate_id"`
	JobDescription  string `json:"job_description"`
	CandidateResume string `json:"candidate_resume"`
}

type answerPayload struct {
	Answer string `json:"answer"`
}

// StartInterview builds the message sent immediately after the control
// channel opens so the backend can create or resume its session state.
func StartInterview(interviewID, candidateID, jobDescription, resume string) ClientMessage {
	return ClientMessage{
		Type: "start_interview",
		Payload: startPayload{
			InterviewID:     interviewID,
			CandidateID:     candidateID,
			JobDescription:  jobDescription,
			CandidateResume: resume,
		},
	}
}

func SubmitAnswer(answer string) ClientMessage {
	return ClientMessage{Type: "submit_answer", Payload: answerPayload{Answer: answer}}
}

// EndInterview is modeled as a sentinel answer rather than a dedicated
// message type, matching the backend contract.
func EndInterview() ClientMessage {
	return SubmitAnswer(EndSentinel)
}

func PauseInterview() ClientMessage {
	return ClientMessage{Type: "pause_interview", Payload: struct{}{}}
}

func ResumeInterview() ClientMessage {
	return ClientMessage{Type: "resume_interview", Payload: struct{}{}}
}
