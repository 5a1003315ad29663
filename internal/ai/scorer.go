package ai

import (
	"context"
	"time"
)

// Recommendation values produced by the holistic evaluation.
const (
	RecommendApply    = "apply"
	RecommendConsider = "consider"
	RecommendSkip     = "skip"
)

// JobContext is the slice of a job posting handed to the scorer.
type JobContext struct {
	ID          string
	Title       string
	Description string
	// Metadata carries structured location/type hints appended to the
	// description for the holistic pass (city, state, remote flag).
	Metadata map[string]string
}

// SkillAssessment is the result of the cheap skill-matching pass.
type SkillAssessment struct {
	SkillScore        float64  `json:"skill_score"`
	KeywordMatches    []string `json:"keyword_matches"`
	SemanticMatches   []string `json:"semantic_matches"`
	MissingCoreSkills []string `json:"missing_core_skills"`
}

// DimensionScore is a single 1-10 sub-score with its reasoning.
type DimensionScore struct {
	Score     float64 `json:"score"`
	Reasoning string  `json:"reasoning,omitempty"`
}

// LocationScore extends DimensionScore with what the model detected.
type LocationScore struct {
	Score            float64 `json:"score"`
	LocationType     string  `json:"location_type,omitempty"`
	LocationDetected string  `json:"location_detected,omitempty"`
	Reasoning        string  `json:"reasoning,omitempty"`
}

// FitAssessment is the result of the conditional holistic pass.
type FitAssessment struct {
	Experience     DimensionScore  `json:"experience_match"`
	Location       LocationScore   `json:"location_match"`
	Role           DimensionScore  `json:"role_match"`
	Industry       *DimensionScore `json:"industry_match,omitempty"`
	Recommendation string          `json:"overall_recommendation"`
	Summary        string          `json:"summary"`
}

// MatchAnalysis is the combined outcome of both tiers for one job in one run.
// It is created once and never mutated; it is not persisted across runs.
// Tier2 and FinalScore are nil whenever the skill score missed the tier-1
// threshold or a tier failed.
type MatchAnalysis struct {
	Tier1               *SkillAssessment `json:"tier1_result"`
	Tier2               *FitAssessment   `json:"tier2_result"`
	FinalScore          *float64         `json:"final_score"`
	MeetsFinalThreshold bool             `json:"meets_final_threshold"`
	Timestamp           time.Time        `json:"analysis_timestamp"`
	// Err records a tier failure. A non-empty Err never aborts the run;
	// the job simply carries a partial analysis.
	Err string `json:"error,omitempty"`
}

// Failed reports whether the analysis ended in a tier failure.
func (m *MatchAnalysis) Failed() bool {
	return m != nil && m.Err != ""
}

// Scorer evaluates one job posting against the candidate profile.
type Scorer interface {
	Analyze(ctx context.Context, job JobContext) *MatchAnalysis
}
