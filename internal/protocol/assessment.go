package protocol

// FinalAssessment is the terminal scoring artifact delivered once with
// interview_completed. It is computed entirely by the backend; the client
// stores and forwards it without interpretation.
type FinalAssessment struct {
	OverallScore             float64            `json:"overall_score"`
	TechnicalScore           float64            `json:"technical_score"`
	FinalRecommendation      string             `json:"final_recommendation"`
	ConfidenceLevel          string             `json:"confidence_level"`
	IndustryType             string             `json:"industry_type"`
	UniversalScores          UniversalScores    `json:"universal_scores"`
	IndustryCompetencyScores map[string]float64 `json:"industry_competency_scores"`
	Feedback                 Feedback           `json:"feedback"`
	InterviewMetrics         InterviewMetrics   `json:"interview_metrics"`
}

type UniversalScores struct {
	Communication       float64 `json:"communication_score"`
	ProblemSolving      float64 `json:"problem_solving_score"`
	LeadershipPotential float64 `json:"leadership_potential_score"`
	Adaptability        float64 `json:"adaptability_score"`
	Teamwork            float64 `json:"teamwork_score"`
	CulturalFit         float64 `json:"cultural_fit_score"`
}

type Feedback struct {
	UniversalFeedbackForCandidate  string            `json:"universal_feedback_for_candidate"`
	AreasOfImprovementForCandidate []string          `json:"areas_of_improvement_for_candidate"`
	IndustrySpecificFeedback       *IndustryFeedback `json:"industry_specific_feedback,omitempty"`
}

type IndustryFeedback struct {
	TechnicalFeedbackForCandidate string   `json:"technical_feedback_for_candidate"`
	DomainStrengths               []string `json:"domain_strengths"`
	DomainImprovementAreas        []string `json:"domain_improvement_areas"`
}

type InterviewMetrics struct {
	Duration          string  `json:"duration"`
	QuestionsAnswered int     `json:"questions_answered"`
	EngagementLevel   float64 `json:"engagement_level"`
	CompletionStatus  string  `json:"completion_status"`
}
