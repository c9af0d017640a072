package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"interview-intel/internal/domain"
	"interview-intel/internal/domain/model"
	"interview-intel/internal/domain/ports/repository"
)

var _ repository.IntelligenceRepository = (*intelligenceRepo)(nil)

// Minimum group sizes below which a pattern is noise.
const (
	minQuestionRepeats = 2
	minFocusRepeats    = 3
	minTimelineSample  = 3
)

type intelligenceRepo struct {
	pool *pgxpool.Pool
}

func NewIntelligenceRepo(pool *pgxpool.Pool) *intelligenceRepo {
	return &intelligenceRepo{pool: pool}
}

func (r *intelligenceRepo) HiringProcess(ctx context.Context, postIDs []string) (*model.HiringProcessAggregate, error) {
	defer observe("intel_hiring_process")()
	const q = `
SELECT
  COUNT(*),
  COUNT(DISTINCT company),
  ROUND(AVG(total_rounds)::numeric, 1)::float8,
  PERCENTILE_CONT(0.5) WITHIN GROUP (ORDER BY total_rounds),
  MIN(total_rounds),
  MAX(total_rounds),

  COUNT(*) FILTER (WHERE remote_or_onsite = 'remote'),
  COUNT(*) FILTER (WHERE remote_or_onsite = 'hybrid'),
  COUNT(*) FILTER (WHERE remote_or_onsite = 'onsite'),
  COUNT(remote_or_onsite),

  COUNT(*) FILTER (WHERE interview_format = 'video'),
  COUNT(*) FILTER (WHERE interview_format = 'phone'),
  COUNT(*) FILTER (WHERE interview_format = 'in-person'),
  COUNT(*) FILTER (WHERE interview_format = 'take-home'),
  COUNT(*) FILTER (WHERE interview_format = 'mixed'),
  COUNT(interview_format),
  COUNT(total_rounds),

  COUNT(*) FILTER (WHERE offer_accepted = true),
  COUNT(*) FILTER (WHERE offer_accepted = false),

  COUNT(*) FILTER (WHERE negotiation_occurred = true),
  COUNT(*) FILTER (WHERE negotiation_occurred = true AND offer_accepted = true),
  COUNT(*) FILTER (WHERE negotiation_occurred = false),
  COUNT(*) FILTER (WHERE negotiation_occurred = false AND offer_accepted = true),

  COUNT(*) FILTER (WHERE referral_used = true),
  COUNT(*) FILTER (WHERE referral_used = true AND llm_outcome = 'passed'),
  COUNT(*) FILTER (WHERE referral_used = false),
  COUNT(*) FILTER (WHERE referral_used = false AND llm_outcome = 'passed'),
  COUNT(*) FILTER (WHERE referral_used = true AND level = 'entry'),
  COUNT(*) FILTER (WHERE referral_used = true AND level = 'mid'),
  COUNT(*) FILTER (WHERE referral_used = true AND level = 'senior'),

  COUNT(*) FILTER (WHERE compensation_mentioned = true),
  COUNT(*) FILTER (WHERE compensation_mentioned = true AND llm_outcome = 'passed'),
  COUNT(*) FILTER (WHERE background_check_mentioned = true),

  COUNT(llm_extracted_at)
FROM posts
WHERE post_id = ANY($1)
  AND is_relevant = true
  AND llm_extracted_at IS NOT NULL`

	row, err := pickRow(ctx, r.pool, nil, q, postIDs)
	if err != nil {
		return nil, err
	}
	var a model.HiringProcessAggregate
	err = row.Scan(
		&a.TotalPosts, &a.CompaniesCovered, &a.AvgRounds, &a.MedianRounds, &a.MinRounds, &a.MaxRounds,
		&a.RemoteCount, &a.HybridCount, &a.OnsiteCount, &a.LocationDataPoints,
		&a.VideoCount, &a.PhoneCount, &a.InPersonCount, &a.TakeHomeCount, &a.MixedCount,
		&a.FormatDataPoints, &a.RoundsDataPoints,
		&a.OffersAccepted, &a.OffersDeclined,
		&a.NegotiationCount, &a.NegotiatedAccepted, &a.NotNegotiatedCount, &a.NotNegotiatedAccepted,
		&a.ReferralCount, &a.ReferralPassed, &a.NonReferralCount, &a.NonReferralPassed,
		&a.ReferralEntry, &a.ReferralMid, &a.ReferralSenior,
		&a.CompMentioned, &a.CompMentionedPassed, &a.BackgroundChecks,
		&a.PostsWithExtraction,
	)
	if err != nil {
		return nil, domain.NewTransient("hiring process aggregate", err)
	}
	return &a, nil
}

func (r *intelligenceRepo) Rejections(ctx context.Context, postIDs []string) ([]model.RejectionAggregate, error) {
	defer observe("intel_rejections")()
	const q = `
SELECT
  rejection_reason,
  COUNT(*) AS frequency,
  COALESCE(ARRAY_AGG(DISTINCT company) FILTER (WHERE company IS NOT NULL), '{}'),
  COALESCE(ARRAY_AGG(DISTINCT role) FILTER (WHERE role IS NOT NULL), '{}'),
  COALESCE(ARRAY_AGG(DISTINCT level) FILTER (WHERE level IS NOT NULL), '{}'),
  COUNT(*) FILTER (WHERE difficulty_level = 'easy'),
  COUNT(*) FILTER (WHERE difficulty_level = 'medium'),
  COUNT(*) FILTER (WHERE difficulty_level = 'hard'),
  MODE() WITHIN GROUP (ORDER BY company),
  MODE() WITHIN GROUP (ORDER BY difficulty_level),
  MODE() WITHIN GROUP (ORDER BY level)
FROM posts
WHERE post_id = ANY($1)
  AND rejection_reason IS NOT NULL
  AND rejection_reason <> ''
  AND llm_outcome = 'failed'
GROUP BY rejection_reason
ORDER BY frequency DESC, rejection_reason ASC
LIMIT 20`

	rows, err := queryRows(ctx, r.pool, nil, q, postIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.RejectionAggregate
	for rows.Next() {
		var a model.RejectionAggregate
		if err := rows.Scan(&a.Reason, &a.Frequency, &a.Companies, &a.Roles, &a.Levels,
			&a.Easy, &a.Medium, &a.Hard, &a.TopCompany, &a.TopDifficulty, &a.TopLevel); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrReadDatabaseRow, err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewTransient("rejection rows", err)
	}
	return out, nil
}

// jsonbUnion flattens one JSONB array column across every row of the same
// question in the pool.
func jsonbUnion(col string) string {
	return `COALESCE((
    SELECT JSONB_AGG(DISTINCT v)
    FROM (
      SELECT JSONB_ARRAY_ELEMENTS_TEXT(iq.` + col + `) AS v
      FROM interview_questions iq
      WHERE iq.question_text = q.question_text
        AND iq.post_id = ANY($1)
        AND iq.` + col + ` <> '[]'::jsonb
      LIMIT 100
    ) vals
  ), '[]'::jsonb)::text`
}

func (r *intelligenceRepo) Questions(ctx context.Context, postIDs []string) ([]model.QuestionAggregate, error) {
	defer observe("intel_questions")()
	q := `
SELECT
  q.question_text,
  COUNT(*) AS asked_count,
  q.llm_difficulty,
  q.llm_category,
  q.question_type,
  ROUND(AVG(q.estimated_time_minutes)::numeric, 0)::float8,
  MIN(q.estimated_time_minutes),
  MAX(q.estimated_time_minutes),
  MODE() WITHIN GROUP (ORDER BY q.optimal_approach),
  MODE() WITHIN GROUP (ORDER BY q.candidate_struggled_with),
  MODE() WITHIN GROUP (ORDER BY q.success_rate_reported),
  MODE() WITHIN GROUP (ORDER BY q.real_world_application),
  COALESCE(ARRAY_AGG(DISTINCT q.company) FILTER (WHERE q.company IS NOT NULL), '{}'),
  COALESCE(ARRAY_AGG(DISTINCT q.role_type) FILTER (WHERE q.role_type IS NOT NULL), '{}'),
  ` + jsonbUnion("hints_given") + `,
  ` + jsonbUnion("common_mistakes") + `,
  ` + jsonbUnion("preparation_resources") + `,
  ` + jsonbUnion("interviewer_focused_on") + `,
  ` + jsonbUnion("follow_up_questions") + `
FROM interview_questions q
WHERE q.post_id = ANY($1)
  AND q.llm_extracted_at IS NOT NULL
GROUP BY q.question_text, q.llm_difficulty, q.llm_category, q.question_type
HAVING COUNT(*) >= $2
ORDER BY asked_count DESC, q.llm_difficulty DESC NULLS LAST
LIMIT 50`

	rows, err := queryRows(ctx, r.pool, nil, q, postIDs, minQuestionRepeats)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.QuestionAggregate
	for rows.Next() {
		var (
			a   model.QuestionAggregate
			raw [5]string
		)
		if err := rows.Scan(&a.Text, &a.AskedCount, &a.Difficulty, &a.Category, &a.Type,
			&a.AvgMinutes, &a.MinMinutes, &a.MaxMinutes,
			&a.Approach, &a.Struggle, &a.SuccessRate, &a.RealWorld,
			&a.Companies, &a.Roles,
			&raw[0], &raw[1], &raw[2], &raw[3], &raw[4]); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrReadDatabaseRow, err)
		}
		for i, dst := range []*[]string{&a.Hints, &a.Mistakes, &a.Resources, &a.Focus, &a.FollowUps} {
			if err := decodeTextArray(raw[i], dst); err != nil {
				return nil, err
			}
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewTransient("question rows", err)
	}
	return out, nil
}

func decodeTextArray(raw string, dst *[]string) error {
	if raw == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrReadDatabaseRow, err)
	}
	return nil
}

func (r *intelligenceRepo) InterviewerFocus(ctx context.Context, postIDs []string) ([]model.FocusAggregate, error) {
	defer observe("intel_focus")()
	const q = `
SELECT
  f.focus_area,
  COUNT(*) AS frequency,
  ROUND(AVG(CASE WHEN p.llm_outcome = 'passed' THEN 1 ELSE 0 END)::numeric, 2)::float8 AS correlation,
  COALESCE(ARRAY_AGG(DISTINCT p.company) FILTER (WHERE p.company IS NOT NULL), '{}'),
  COALESCE(ARRAY_AGG(DISTINCT f.llm_difficulty) FILTER (WHERE f.llm_difficulty IS NOT NULL), '{}'),
  COUNT(*) FILTER (WHERE p.llm_outcome = 'passed'),
  COUNT(*) FILTER (WHERE p.llm_outcome = 'failed')
FROM (
  SELECT post_id, llm_difficulty, JSONB_ARRAY_ELEMENTS_TEXT(interviewer_focused_on) AS focus_area
  FROM interview_questions
  WHERE post_id = ANY($1)
    AND interviewer_focused_on <> '[]'::jsonb
) f
JOIN posts p ON p.post_id = f.post_id
GROUP BY f.focus_area
HAVING COUNT(*) >= $2
ORDER BY frequency DESC, correlation DESC
LIMIT 15`

	rows, err := queryRows(ctx, r.pool, nil, q, postIDs, minFocusRepeats)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.FocusAggregate
	for rows.Next() {
		var a model.FocusAggregate
		if err := rows.Scan(&a.Area, &a.Frequency, &a.CorrelationWithSuccess, &a.Companies, &a.Difficulties,
			&a.SuccessCount, &a.FailureCount); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrReadDatabaseRow, err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewTransient("focus rows", err)
	}
	return out, nil
}

func (r *intelligenceRepo) Timelines(ctx context.Context, postIDs []string) ([]model.TimelineAggregate, error) {
	defer observe("intel_timelines")()
	const q = `
SELECT
  company,
  role,
  level,
  ROUND(AVG(total_rounds)::numeric, 1)::float8 AS avg_rounds,
  PERCENTILE_CONT(0.5) WITHIN GROUP (ORDER BY total_rounds),
  MIN(total_rounds),
  MAX(total_rounds),
  MODE() WITHIN GROUP (ORDER BY timeline->>'description'),
  COUNT(*) AS sample_size,
  COUNT(*) FILTER (WHERE llm_outcome = 'passed'),
  COUNT(*) FILTER (WHERE llm_outcome = 'failed'),
  ROUND(AVG(CASE WHEN llm_outcome = 'passed' THEN 1 ELSE 0 END)::numeric, 2)::float8,
  MODE() WITHIN GROUP (ORDER BY interview_format),
  MODE() WITHIN GROUP (ORDER BY remote_or_onsite),
  AVG(CASE WHEN referral_used = true THEN 1 ELSE 0 END)::float8,
  AVG(CASE WHEN negotiation_occurred = true THEN 1 ELSE 0 END)::float8
FROM posts
WHERE post_id = ANY($1)
  AND company IS NOT NULL
  AND role IS NOT NULL
  AND total_rounds IS NOT NULL
  AND llm_extracted_at IS NOT NULL
GROUP BY company, role, level
HAVING COUNT(*) >= $2
ORDER BY sample_size DESC, avg_rounds DESC
LIMIT 20`

	rows, err := queryRows(ctx, r.pool, nil, q, postIDs, minTimelineSample)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.TimelineAggregate
	for rows.Next() {
		var a model.TimelineAggregate
		if err := rows.Scan(&a.Company, &a.Role, &a.Level, &a.AvgRounds, &a.MedianRounds, &a.MinRounds, &a.MaxRounds,
			&a.TypicalTimeline, &a.SampleSize, &a.Passed, &a.Failed, &a.SuccessRate,
			&a.Format, &a.Location, &a.ReferralRate, &a.NegotiationRate); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrReadDatabaseRow, err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewTransient("timeline rows", err)
	}
	return out, nil
}

func (r *intelligenceRepo) ExperienceLevels(ctx context.Context, postIDs []string) ([]model.LevelAggregate, error) {
	defer observe("intel_levels")()
	const q = `
SELECT
  level,
  COUNT(*),
  ROUND(AVG(total_rounds)::numeric, 1)::float8,
  (COUNT(*) FILTER (WHERE llm_outcome = 'passed'))::float8 / NULLIF(COUNT(llm_outcome), 0),
  COUNT(*) FILTER (WHERE difficulty_level = 'easy'),
  COUNT(*) FILTER (WHERE difficulty_level = 'medium'),
  COUNT(*) FILTER (WHERE difficulty_level = 'hard'),
  (COUNT(*) FILTER (WHERE referral_used = true))::float8 / COUNT(*),
  (COUNT(*) FILTER (WHERE negotiation_occurred = true))::float8 / NULLIF(COUNT(offer_accepted), 0),
  MODE() WITHIN GROUP (ORDER BY interview_format),
  MODE() WITHIN GROUP (ORDER BY remote_or_onsite)
FROM posts
WHERE post_id = ANY($1)
  AND level IS NOT NULL
  AND llm_extracted_at IS NOT NULL
GROUP BY level
ORDER BY
  CASE level
    WHEN 'intern' THEN 1
    WHEN 'entry' THEN 2
    WHEN 'mid' THEN 3
    WHEN 'senior' THEN 4
    WHEN 'executive' THEN 5
    ELSE 6
  END, level`

	rows, err := queryRows(ctx, r.pool, nil, q, postIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.LevelAggregate
	for rows.Next() {
		var a model.LevelAggregate
		if err := rows.Scan(&a.Level, &a.Total, &a.AvgRounds, &a.SuccessRate, &a.Easy, &a.Medium, &a.Hard,
			&a.ReferralRate, &a.NegotiationRate, &a.PreferredFormat, &a.PreferredLocation); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrReadDatabaseRow, err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewTransient("level rows", err)
	}
	return out, nil
}
