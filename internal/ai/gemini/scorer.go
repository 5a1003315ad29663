package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	_ "embed"

	"go.uber.org/zap"

	"github.com/jwhalen/jobwatch/internal/ai"
	"github.com/jwhalen/jobwatch/internal/logger"
	"github.com/jwhalen/jobwatch/internal/profile"
	"github.com/jwhalen/jobwatch/internal/utils"
)

type contentGenerator interface {
	GenerateJSON(ctx context.Context, system, user string) (string, error)
	Model() string
}

//go:embed tier1.md
var tier1Prompt string

//go:embed tier2.md
var tier2Prompt string

// Final score weights for the tier-2 component scores. The skill score is
// normalized from 0-100 to 0-10 before weighting.
const (
	weightSkill      = 0.40
	weightExperience = 0.25
	weightLocation   = 0.20
	weightRole       = 0.15
)

const (
	defaultTier1Threshold = 60.0
	defaultFinalThreshold = 75.0
	defaultMaxLogLength   = 200

	// interTierDelay paces the second API call after the first.
	interTierDelay = time.Second
)

// Config holds the scorer thresholds.
type Config struct {
	Tier1Threshold float64
	FinalThreshold float64
	MaxLogLength   int
}

// Scorer runs the two-tier match analysis against a Gemini model.
type Scorer struct {
	generator      contentGenerator
	profile        *profile.Profile
	tier1Threshold float64
	finalThreshold float64
	maxLogLen      int
	logger         *zap.Logger
}

func NewScorer(generator contentGenerator, prof *profile.Profile, cfg Config, log *zap.Logger) *Scorer {
	if cfg.Tier1Threshold <= 0 {
		cfg.Tier1Threshold = defaultTier1Threshold
	}
	if cfg.FinalThreshold <= 0 {
		cfg.FinalThreshold = defaultFinalThreshold
	}
	if cfg.MaxLogLength <= 0 {
		cfg.MaxLogLength = defaultMaxLogLength
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &Scorer{
		generator:      generator,
		profile:        prof,
		tier1Threshold: cfg.Tier1Threshold,
		finalThreshold: cfg.FinalThreshold,
		maxLogLen:      cfg.MaxLogLength,
		logger:         log,
	}
}

// Analyze runs the skill pass and, when it clears the threshold, the holistic
// pass. It always returns an analysis; a tier failure is recorded in Err and
// never aborts the caller's run.
func (s *Scorer) Analyze(ctx context.Context, job ai.JobContext) *ai.MatchAnalysis {
	analysis := &ai.MatchAnalysis{Timestamp: time.Now().UTC()}

	log := s.logger.With(
		zap.String(logger.FieldJobID, job.ID),
		zap.String(logger.FieldModel, s.generator.Model()),
	)

	if strings.TrimSpace(job.Description) == "" {
		log.Warn("skipping analysis, job has no description", zap.String("title", job.Title))
		analysis.Err = "missing description"
		return analysis
	}
	if s.profile == nil {
		analysis.Err = "candidate profile not loaded"
		return analysis
	}

	description := jobText(job)

	tier1, err := s.runTier1(ctx, log, description)
	if err != nil {
		log.Error("tier 1 analysis failed", zap.Error(err))
		analysis.Err = "tier 1 analysis failed"
		return analysis
	}
	analysis.Tier1 = tier1

	log.Info("tier 1 skill score", zap.Float64("skill_score", tier1.SkillScore))

	if tier1.SkillScore < s.tier1Threshold {
		log.Info("skill score below threshold, skipping holistic pass",
			zap.Float64("threshold", s.tier1Threshold),
		)
		return analysis
	}

	if err := utils.WaitFor(ctx, interTierDelay); err != nil {
		analysis.Err = "tier 2 analysis failed"
		return analysis
	}

	tier2, err := s.runTier2(ctx, log, description, tier1)
	if err != nil {
		log.Error("tier 2 analysis failed", zap.Error(err))
		analysis.Err = "tier 2 analysis failed"
		return analysis
	}
	analysis.Tier2 = tier2

	final := FinalScore(tier1.SkillScore, tier2.Experience.Score, tier2.Location.Score, tier2.Role.Score)
	analysis.FinalScore = &final
	analysis.MeetsFinalThreshold = final >= s.finalThreshold

	log.Info("analysis complete",
		zap.Float64("final_score", final),
		zap.Bool("meets_threshold", analysis.MeetsFinalThreshold),
		zap.String("recommendation", tier2.Recommendation),
	)

	return analysis
}

func (s *Scorer) runTier1(ctx context.Context, log *zap.Logger, description string) (*ai.SkillAssessment, error) {
	payload := map[string]any{
		"candidate_profile": map[string]any{
			"skills": s.profile.Skills,
		},
		"job_posting": description,
	}

	var result ai.SkillAssessment
	if err := s.callTier(ctx, log, tier1Prompt, payload, &result); err != nil {
		return nil, err
	}

	return &result, nil
}

func (s *Scorer) runTier2(ctx context.Context, log *zap.Logger, description string, tier1 *ai.SkillAssessment) (*ai.FitAssessment, error) {
	fullProfile := any(s.profile)
	if len(s.profile.Raw) > 0 {
		fullProfile = json.RawMessage(s.profile.Raw)
	}

	payload := map[string]any{
		"candidate_profile":    fullProfile,
		"job_description":      description,
		"tier1_skill_analysis": tier1,
	}

	var result ai.FitAssessment
	if err := s.callTier(ctx, log, tier2Prompt, payload, &result); err != nil {
		return nil, err
	}

	result.Recommendation = normalizeRecommendation(log, result.Recommendation)

	return &result, nil
}

// normalizeRecommendation maps the model's recommendation onto the known
// values, falling back to "consider" for anything off-rubric.
func normalizeRecommendation(log *zap.Logger, raw string) string {
	switch rec := strings.ToLower(strings.TrimSpace(raw)); rec {
	case ai.RecommendApply, ai.RecommendConsider, ai.RecommendSkip:
		return rec
	case "":
		return ai.RecommendConsider
	default:
		log.Warn("unknown recommendation from model", zap.String("recommendation", raw))
		return ai.RecommendConsider
	}
}

// callTier sends one tier request and decodes the JSON response into target.
// A response that fails to parse is retried once with a fresh API call.
func (s *Scorer) callTier(ctx context.Context, log *zap.Logger, system string, payload any, target any) error {
	user, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal tier payload: %w", err)
	}

	log.Debug("gemini tier request",
		zap.Int("prompt_length", utf8.RuneCountInString(string(user))),
		zap.String("prompt_preview", utils.TruncateForLog(string(user), s.maxLogLen)),
	)

	var parseErr error
	for attempt := 0; attempt < 2; attempt++ {
		raw, err := s.generator.GenerateJSON(ctx, system, string(user))
		if err != nil {
			return err
		}

		log.Debug("gemini tier response",
			zap.Int("response_length", utf8.RuneCountInString(raw)),
			zap.String("response_preview", utils.TruncateForLog(raw, s.maxLogLen)),
		)

		cleaned := extractJSON(raw)
		if parseErr = json.Unmarshal([]byte(cleaned), target); parseErr == nil {
			return nil
		}

		log.Warn("gemini response is not valid json, retrying",
			zap.Error(parseErr),
			zap.String("response_preview", utils.TruncateForLog(raw, s.maxLogLen)),
		)
	}

	return fmt.Errorf("parse gemini response: %w", parseErr)
}

// FinalScore combines the tier scores into a 0-100 value rounded to one
// decimal place. skill is on a 0-100 scale, the rest on 1-10.
func FinalScore(skill, experience, location, role float64) float64 {
	score10 := skill/10.0*weightSkill +
		experience*weightExperience +
		location*weightLocation +
		role*weightRole
	return math.Round(score10*100) / 10
}

// jobText appends the structured metadata block the holistic rubric reads for
// location and work arrangement.
func jobText(job ai.JobContext) string {
	if len(job.Metadata) == 0 {
		return job.Description
	}

	var builder strings.Builder
	builder.WriteString(job.Description)
	builder.WriteString("\n\n--- Job Metadata ---")
	for _, key := range []string{"title", "city", "state", "country", "remote", "employment_type", "pay_range"} {
		if value := strings.TrimSpace(job.Metadata[key]); value != "" {
			builder.WriteString(fmt.Sprintf("\n%s: %s", key, value))
		}
	}
	return builder.String()
}

func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}
