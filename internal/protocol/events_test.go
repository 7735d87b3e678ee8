package protocol

import (
	"encoding/json"
	"testing"
)

func TestDecodeInterviewStarted(t *testing.T) {
	ev, err := Decode([]byte(`{"type":"interview_started","candidate_name":"Ada Lovelace"}`))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	started, ok := ev.(InterviewStarted)
	if !ok {
		t.Fatalf("expected InterviewStarted, got %T", ev)
	}
	if started.CandidateName != "Ada Lovelace" {
		t.Fatalf("unexpected candidate name: %q", started.CandidateName)
	}
}

func TestDecodeInterviewInitializedAlias(t *testing.T) {
	ev, err := Decode([]byte(`{"type":"interview_initialized","candidate_name":"Ada Lovelace"}`))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	started, ok := ev.(InterviewStarted)
	if !ok {
		t.Fatalf("expected InterviewStarted for the alias tag, got %T", ev)
	}
	if started.CandidateName != "Ada Lovelace" {
		t.Fatalf("unexpected candidate name: %q", started.CandidateName)
	}
}

func TestDecodeNewQuestion(t *testing.T) {
	raw := `{
		"type": "new_question",
		"question": "Describe a production incident you handled.",
		"question_number": 4,
		"question_type": "behavioral",
		"progress": 0.57,
		"time_remaining": 900
	}`
	ev, err := Decode([]byte(raw))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	q, ok := ev.(NewQuestion)
	if !ok {
		t.Fatalf("expected NewQuestion, got %T", ev)
	}
	if q.QuestionNumber != 4 || q.QuestionType != "behavioral" {
		t.Fatalf("unexpected question fields: %+v", q)
	}
	if q.Progress != 0.57 || q.TimeRemaining != 900 {
		t.Fatalf("unexpected progress fields: %+v", q)
	}
}

func TestDecodeInterviewCompleted(t *testing.T) {
	raw := `{
		"type": "interview_completed",
		"final_assessment": {
			"overall_score": 4.1,
			"technical_score": 3.8,
			"final_recommendation": "hire",
			"confidence_level": "high",
			"industry_type": "software",
			"universal_scores": {"communication_score": 4.5},
			"industry_competency_scores": {"system_design": 4.0},
			"feedback": {
				"universal_feedback_for_candidate": "Strong communicator.",
				"areas_of_improvement_for_candidate": ["pacing"],
				"industry_specific_feedback": {
					"technical_feedback_for_candidate": "Solid fundamentals.",
					"domain_strengths": ["concurrency"],
					"domain_improvement_areas": ["profiling"]
				}
			},
			"interview_metrics": {
				"duration": "42m",
				"questions_answered": 8,
				"engagement_level": 0.9,
				"completion_status": "full"
			}
		}
	}`
	ev, err := Decode([]byte(raw))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	completed, ok := ev.(InterviewCompleted)
	if !ok {
		t.Fatalf("expected InterviewCompleted, got %T", ev)
	}
	a := completed.FinalAssessment
	if a.OverallScore != 4.1 || a.FinalRecommendation != "hire" {
		t.Fatalf("unexpected assessment: %+v", a)
	}
	if a.UniversalScores.Communication != 4.5 {
		t.Fatalf("unexpected universal scores: %+v", a.UniversalScores)
	}
	if a.IndustryCompetencyScores["system_design"] != 4.0 {
		t.Fatalf("unexpected competency scores: %+v", a.IndustryCompetencyScores)
	}
	if a.Feedback.IndustrySpecificFeedback == nil || a.Feedback.IndustrySpecificFeedback.DomainStrengths[0] != "concurrency" {
		t.Fatalf("unexpected feedback: %+v", a.Feedback)
	}
	if a.InterviewMetrics.QuestionsAnswered != 8 {
		t.Fatalf("unexpected metrics: %+v", a.InterviewMetrics)
	}
}

func TestDecodePauseResumePong(t *testing.T) {
	for raw, want := range map[string]string{
		`{"type":"interview_paused"}`:                      TypeInterviewPaused,
		`{"type":"interview_resumed"}`:                     TypeInterviewResumed,
		`{"type":"pong","timestamp":"2026-08-31T10:00:00Z"}`: TypePong,
	} {
		ev, err := Decode([]byte(raw))
		if err != nil {
			t.Fatalf("Decode(%s) failed: %v", raw, err)
		}
		if ev.Kind() != want {
			t.Fatalf("expected kind %q, got %q", want, ev.Kind())
		}
	}
}

func TestDecodeStatusUpdatePartialFields(t *testing.T) {
	ev, err := Decode([]byte(`{"type":"status_update","message":"Analyzing answer..."}`))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	status, ok := ev.(StatusUpdate)
	if !ok {
		t.Fatalf("expected StatusUpdate, got %T", ev)
	}
	if status.Progress != nil || status.TimeRemaining != nil {
		t.Fatalf("expected absent fields to stay nil: %+v", status)
	}

	ev, err = Decode([]byte(`{"type":"status_update","progress":0.0,"time_remaining":0}`))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	status = ev.(StatusUpdate)
	if status.Progress == nil || *status.Progress != 0 {
		t.Fatal("expected explicit zero progress to decode as present")
	}
	if status.TimeRemaining == nil || *status.TimeRemaining != 0 {
		t.Fatal("expected explicit zero time_remaining to decode as present")
	}
}

func TestDecodeServerError(t *testing.T) {
	ev, err := Decode([]byte(`{"type":"error","message":"session not found"}`))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	serverErr, ok := ev.(ServerError)
	if !ok {
		t.Fatalf("expected ServerError, got %T", ev)
	}
	if serverErr.Message != "session not found" {
		t.Fatalf("unexpected message: %q", serverErr.Message)
	}
}

func TestDecodeUnknownTag(t *testing.T) {
	raw := `{"type":"future_feature","payload":{"x":1}}`
	ev, err := Decode([]byte(raw))
	if err != nil {
		t.Fatalf("unrecognized tags are not an error, got %v", err)
	}
	unknown, ok := ev.(Unknown)
	if !ok {
		t.Fatalf("expected Unknown, got %T", ev)
	}
	if unknown.Type != "future_feature" {
		t.Fatalf("unexpected type: %q", unknown.Type)
	}
	if unknown.Kind() != "future_feature" {
		t.Fatalf("unexpected kind: %q", unknown.Kind())
	}
	if string(unknown.Raw) != raw {
		t.Fatalf("expected raw payload preserved, got %s", unknown.Raw)
	}
}

func TestDecodeMalformed(t *testing.T) {
	if _, err := Decode([]byte(`not json`)); err == nil {
		t.Fatal("expected error for malformed JSON")
	}
	if _, err := Decode([]byte(`{"message":"no tag"}`)); err == nil {
		t.Fatal("expected error for missing type tag")
	}
	if _, err := Decode([]byte(`{"type":"new_question","question_number":"four"}`)); err == nil {
		t.Fatal("expected error for mistyped payload field")
	}
}

func TestClientMessageShapes(t *testing.T) {
	start := StartInterview("int-1", "cand-1", "job desc", "resume text")
	data, err := json.Marshal(start)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	var envelope struct {
		Type    string `json:"type"`
		Payload struct {
			InterviewID     string `json:"interview_id"`
			CandidateID     string `json:"candidate_id"`
			JobDescription  string `json:"job_description"`
			CandidateResume string `json:"candidate_resume"`
		} `json:"payload"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if envelope.Type != "start_interview" {
		t.Fatalf("unexpected type: %q", envelope.Type)
	}
	if envelope.Payload.InterviewID != "int-1" || envelope.Payload.CandidateResume != "resume text" {
		t.Fatalf("unexpected payload: %+v", envelope.Payload)
	}

	answer := SubmitAnswer("42")
	data, _ = json.Marshal(answer)
	if string(data) != `{"type":"submit_answer","payload":{"answer":"42"}}` {
		t.Fatalf("unexpected submit_answer frame: %s", data)
	}

	if PauseInterview().Type != "pause_interview" {
		t.Fatalf("unexpected pause type: %q", PauseInterview().Type)
	}
	if ResumeInterview().Type != "resume_interview" {
		t.Fatalf("unexpected resume type: %q", ResumeInterview().Type)
	}
}

func TestEndInterviewIsSentinelAnswer(t *testing.T) {
	end := EndInterview()
	if end.Type != "submit_answer" {
		t.Fatalf("expected submit_answer frame, got %q", end.Type)
	}
	data, err := json.Marshal(end)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if string(data) != `{"type":"submit_answer","payload":{"answer":"end"}}` {
		t.Fatalf("unexpected end frame: %s", data)
	}
}
