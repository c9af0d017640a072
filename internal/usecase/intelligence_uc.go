// File: internal/usecase/intelligence_uc.go
package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"interview-intel/internal/config"
	"interview-intel/internal/domain/model"
	"interview-intel/internal/domain/ports/repository"
	"interview-intel/internal/infra/logging"
)

const maxRejectionReasons = 10

// Compile-time check
var _ IntelligenceUseCase = (*intelligenceUC)(nil)

type IntelligenceUseCase interface {
	Generate(ctx context.Context, foundationPoolIDs []string) (*model.IntelligenceReport, error)
}

type intelligenceUC struct {
	repo repository.IntelligenceRepository
	cfg  config.AnalysisConfig
	now  func() time.Time

	log *zerolog.Logger
}

func NewIntelligenceUseCase(repo repository.IntelligenceRepository, cfg config.AnalysisConfig, logger *zerolog.Logger) *intelligenceUC {
	return &intelligenceUC{repo: repo, cfg: cfg, now: time.Now, log: logger}
}

// aggregates holds the raw results of one report run.
type aggregates struct {
	hiring     *model.HiringProcessAggregate
	rejections []model.RejectionAggregate
	questions  []model.QuestionAggregate
	focus      []model.FocusAggregate
	timelines  []model.TimelineAggregate
	levels     []model.LevelAggregate
}

func (u *intelligenceUC) Generate(ctx context.Context, foundationPoolIDs []string) (*model.IntelligenceReport, error) {
	pool := normalizePool(foundationPoolIDs)
	now := u.now().UTC()
	if len(pool) == 0 {
		return model.InsufficientReport(0, now), nil
	}

	log := logging.With(ctx, u.log)
	start := time.Now()

	var agg aggregates
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		agg.hiring, err = u.repo.HiringProcess(gctx, pool)
		return wrapAgg("hiring process", err)
	})
	g.Go(func() (err error) {
		agg.rejections, err = u.repo.Rejections(gctx, pool)
		return wrapAgg("rejections", err)
	})
	g.Go(func() (err error) {
		agg.questions, err = u.repo.Questions(gctx, pool)
		return wrapAgg("questions", err)
	})
	g.Go(func() (err error) {
		agg.focus, err = u.repo.InterviewerFocus(gctx, pool)
		return wrapAgg("interviewer focus", err)
	})
	g.Go(func() (err error) {
		agg.timelines, err = u.repo.Timelines(gctx, pool)
		return wrapAgg("timelines", err)
	})
	g.Go(func() (err error) {
		agg.levels, err = u.repo.ExperienceLevels(gctx, pool)
		return wrapAgg("experience levels", err)
	})
	if err := g.Wait(); err != nil {
		log.Error().Err(err).Int("pool_size", len(pool)).Msg("intelligence aggregation failed")
		return nil, err
	}

	log.Info().
		Int("pool_size", len(pool)).
		Int("posts", agg.hiring.TotalPosts).
		Int("rejections", len(agg.rejections)).
		Int("questions", len(agg.questions)).
		Int("focus_patterns", len(agg.focus)).
		Int("timelines", len(agg.timelines)).
		Int("levels", len(agg.levels)).
		Dur("duration", time.Since(start)).
		Msg("intelligence aggregation complete")

	if agg.hiring.TotalPosts == 0 {
		return model.InsufficientReport(len(pool), now), nil
	}
	return u.build(len(pool), agg, now), nil
}

func wrapAgg(name string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("aggregate %s: %w", name, err)
}

// normalizePool trims ids, drops blanks and duplicates, and keeps the first
// occurrence order.
func normalizePool(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func (u *intelligenceUC) build(poolSize int, agg aggregates, now time.Time) *model.IntelligenceReport {
	hp := agg.hiring
	confidence := ConfidenceLabel(hp.TotalPosts, u.cfg.ConfidenceMedium, u.cfg.ConfidenceHigh)
	explanation := ConfidenceExplanation(confidence, hp.TotalPosts)
	hiring := hiringSection(hp, poolSize)
	questions := questionSection(agg.questions, agg.focus)

	return &model.IntelligenceReport{
		ExecutiveSummary: model.ExecutiveSummary{
			Findings:              keyFindings(hp, hiring, agg.rejections),
			SampleSize:            hp.TotalPosts,
			Confidence:            confidence,
			ConfidenceExplanation: explanation,
		},
		HiringProcess:     hiring,
		RejectionAnalysis: rejectionSection(agg.rejections),
		Questions:         questions,
		Timelines:         timelineSection(agg.timelines),
		ExperienceLevels:  levelSection(agg.levels),
		DataQuality: model.DataQuality{
			FoundationPoolSize:    poolSize,
			PostsAnalyzed:         hp.TotalPosts,
			ExtractionCoveragePct: hiring.ExtractionCoverage,
			QuestionsAnalyzed:     questions.QuestionsAnalyzed,
			CompaniesCovered:      hp.CompaniesCovered,
			Confidence:            confidence,
			ConfidenceExplanation: explanation,
		},
		GeneratedAt: now,
	}
}

func hiringSection(a *model.HiringProcessAggregate, poolSize int) model.HiringProcessSection {
	offers := a.OffersAccepted + a.OffersDeclined
	decided := a.NegotiationCount + a.NotNegotiatedCount

	var declineFrac, negSuccessFrac, compFrac float64
	if offers > 0 {
		declineFrac = float64(a.OffersDeclined) / float64(offers)
	}
	if a.NegotiationCount > 0 {
		negSuccessFrac = float64(a.NegotiatedAccepted) / float64(a.NegotiationCount)
	}
	if a.TotalPosts > 0 {
		compFrac = float64(a.CompMentioned) / float64(a.TotalPosts)
	}

	multiplier := ReferralMultiplier(fraction(a.ReferralPassed, a.ReferralCount), fraction(a.NonReferralPassed, a.NonReferralCount))

	s := model.HiringProcessSection{
		TotalPosts: a.TotalPosts,
		Rounds: model.RoundStats{
			Avg:    a.AvgRounds,
			Median: a.MedianRounds,
			Min:    a.MinRounds,
			Max:    a.MaxRounds,
		},
		Location: model.LocationMix{
			RemotePct:  ratioPct(a.RemoteCount, a.LocationDataPoints),
			HybridPct:  ratioPct(a.HybridCount, a.LocationDataPoints),
			OnsitePct:  ratioPct(a.OnsiteCount, a.LocationDataPoints),
			DataPoints: a.LocationDataPoints,
		},
		Format: model.FormatMix{
			VideoPct:    ratioPct(a.VideoCount, a.FormatDataPoints),
			PhonePct:    ratioPct(a.PhoneCount, a.FormatDataPoints),
			InPersonPct: ratioPct(a.InPersonCount, a.FormatDataPoints),
			TakeHomePct: ratioPct(a.TakeHomeCount, a.FormatDataPoints),
			MixedPct:    ratioPct(a.MixedCount, a.FormatDataPoints),
			DataPoints:  a.FormatDataPoints,
		},
		Offers: model.OfferStats{
			Accepted:        a.OffersAccepted,
			Declined:        a.OffersDeclined,
			AcceptanceRate:  ratioPct(a.OffersAccepted, offers),
			DeclineRate:     ratioPct(a.OffersDeclined, offers),
			DecisionPattern: OfferDecisionPattern(declineFrac),
		},
		Negotiation: model.NegotiationStats{
			Count:                    a.NegotiationCount,
			Rate:                     ratioPct(a.NegotiationCount, decided),
			SuccessRate:              ratioPct(a.NegotiatedAccepted, a.NegotiationCount),
			NoNegotiationSuccessRate: ratioPct(a.NotNegotiatedAccepted, a.NotNegotiatedCount),
			Recommendation:           NegotiationRecommendation(negSuccessFrac),
		},
		Referral: model.ReferralStats{
			Count:                  a.ReferralCount,
			UsageRate:              ratioPct(a.ReferralCount, a.TotalPosts),
			SuccessRate:            ratioPct(a.ReferralPassed, a.ReferralCount),
			NonReferralSuccessRate: ratioPct(a.NonReferralPassed, a.NonReferralCount),
			Multiplier:             multiplier,
			ByLevel: map[string]int{
				"entry":  a.ReferralEntry,
				"mid":    a.ReferralMid,
				"senior": a.ReferralSenior,
			},
			Advice: ReferralAdvice(multiplier),
		},
		Compensation: model.CompensationStats{
			MentionedCount: a.CompMentioned,
			DiscussionRate: ratioPct(a.CompMentioned, a.TotalPosts),
			SuccessRate:    ratioPct(a.CompMentionedPassed, a.CompMentioned),
			Interpretation: CompensationInterpretation(compFrac),
		},
		BackgroundCheckRate: ratioPct(a.BackgroundChecks, a.TotalPosts),
		PostsWithExtraction: a.PostsWithExtraction,
	}
	if poolSize > 0 {
		s.ExtractionCoverage = roundTo(float64(a.PostsWithExtraction)/float64(poolSize)*100, 1)
	}
	return s
}

func fraction(n, d int) *float64 {
	if d == 0 {
		return nil
	}
	v := float64(n) / float64(d)
	return &v
}

func keyFindings(a *model.HiringProcessAggregate, s model.HiringProcessSection, rejections []model.RejectionAggregate) []model.Finding {
	avg := valueOr(a.AvgRounds, 0)
	findings := []model.Finding{{
		Category:    "Interview Process",
		Finding:     fmt.Sprintf("Average %.1f rounds", avg),
		Benchmark:   "Industry average: 3-4 rounds",
		Implication: RoundsImplication(avg),
		DataPoints:  a.RoundsDataPoints,
	}}

	if a.LocationDataPoints > 0 {
		remote := valueOr(s.Location.RemotePct, 0)
		findings = append(findings, model.Finding{
			Category:    "Remote Flexibility",
			Finding:     fmt.Sprintf("%.0f%% remote interviews", remote),
			Benchmark:   "Post-2020 trend: 60-70% remote",
			Implication: RemoteImplication(remote),
			DataPoints:  a.LocationDataPoints,
		})
	}

	if a.NegotiationCount > 0 {
		rate := valueOr(s.Negotiation.Rate, 0)
		findings = append(findings, model.Finding{
			Category:    "Negotiation Dynamics",
			Finding:     fmt.Sprintf("%.0f%% negotiate, %.0f%% succeed", rate, valueOr(s.Negotiation.SuccessRate, 0)),
			Benchmark:   "Industry benchmark: 40-50% negotiate, 60-70% succeed",
			Implication: NegotiationCultureImplication(rate),
			DataPoints:  a.NegotiationCount,
		})
	}

	if m := s.Referral.Multiplier; m != nil {
		findings = append(findings, model.Finding{
			Category: "Referral Impact",
			Finding: fmt.Sprintf("%.1fx higher success with referral (%.0f%% vs %.0f%%)",
				*m, valueOr(s.Referral.SuccessRate, 0), valueOr(s.Referral.NonReferralSuccessRate, 0)),
			Benchmark:   "Typical multiplier: 2-3x",
			Implication: ReferralImplication(*m),
			DataPoints:  a.ReferralCount,
		})
	}

	if len(rejections) > 0 {
		top := rejections[0]
		findings = append(findings, model.Finding{
			Category:    "Primary Risk Factor",
			Finding:     fmt.Sprintf("%s (%d cases)", top.Reason, top.Frequency),
			Benchmark:   fmt.Sprintf("Most common in %s interviews", model.StrOr(top.TopDifficulty, "medium-hard")),
			Implication: MitigationStrategy(top.Reason),
			DataPoints:  top.Frequency,
		})
	}
	return findings
}

func rejectionSection(rs []model.RejectionAggregate) model.RejectionSection {
	s := model.RejectionSection{
		TopReasons:   []model.RejectionReason{},
		ByDifficulty: []model.CountItem{},
		ByLevel:      []model.CountItem{},
	}
	if len(rs) == 0 {
		s.InsufficientData = true
		return s
	}

	byDifficulty := map[string]int{}
	byLevel := map[string]int{}
	for i, r := range rs {
		s.TotalRejectionCases += r.Frequency
		if d := model.StrOr(r.TopDifficulty, ""); d != "" {
			byDifficulty[d] += r.Frequency
		}
		if l := model.StrOr(r.TopLevel, ""); l != "" {
			byLevel[l] += r.Frequency
		}
		if i >= maxRejectionReasons {
			continue
		}
		s.TopReasons = append(s.TopReasons, model.RejectionReason{
			Reason:               r.Reason,
			Frequency:            r.Frequency,
			Priority:             RejectionPriority(r.Frequency),
			Companies:            orEmpty(r.Companies),
			Roles:                orEmpty(r.Roles),
			Levels:               orEmpty(r.Levels),
			Difficulty:           model.DifficultySplit{Easy: r.Easy, Medium: r.Medium, Hard: r.Hard},
			MostCommonCompany:    r.TopCompany,
			MostCommonDifficulty: r.TopDifficulty,
			MostCommonLevel:      r.TopLevel,
			Mitigation:           MitigationStrategy(r.Reason),
		})
	}
	s.ByDifficulty = rankCounts(byDifficulty)
	s.ByLevel = rankCounts(byLevel)
	return s
}

func questionSection(qs []model.QuestionAggregate, fs []model.FocusAggregate) model.QuestionSection {
	s := model.QuestionSection{
		Questions:         make([]model.QuestionInsight, 0, len(qs)),
		InterviewerFocus:  make([]model.FocusInsight, 0, len(fs)),
		QuestionsAnalyzed: len(qs),
		InsufficientData:  len(qs) == 0 && len(fs) == 0,
	}
	for _, q := range qs {
		t := model.TimeAllocation{
			AvgMinutes: q.AvgMinutes,
			MinMinutes: q.MinMinutes,
			MaxMinutes: q.MaxMinutes,
		}
		if q.AvgMinutes != nil {
			t.Interpretation = TimeAllocationNote(*q.AvgMinutes)
		}
		s.Questions = append(s.Questions, model.QuestionInsight{
			Text:                  q.Text,
			AskedCount:            q.AskedCount,
			Difficulty:            q.Difficulty,
			Category:              q.Category,
			Type:                  q.Type,
			PrepPriority:          PrepPriority(q.AskedCount, model.StrOr(q.Difficulty, "")),
			Time:                  t,
			OptimalApproach:       q.Approach,
			CommonStruggle:        q.Struggle,
			ReportedSuccessRate:   q.SuccessRate,
			RealWorldApplication:  q.RealWorld,
			Companies:             orEmpty(q.Companies),
			Roles:                 orEmpty(q.Roles),
			Hints:                 orEmpty(q.Hints),
			CommonMistakes:        orEmpty(q.Mistakes),
			Resources:             orEmpty(q.Resources),
			InterviewerPriorities: orEmpty(q.Focus),
			FollowUps:             orEmpty(q.FollowUps),
		})
	}
	for _, f := range fs {
		s.InterviewerFocus = append(s.InterviewerFocus, model.FocusInsight{
			Area:                   f.Area,
			Frequency:              f.Frequency,
			CorrelationWithSuccess: fracPct(f.CorrelationWithSuccess),
			Priority:               FocusPriority(f.CorrelationWithSuccess),
			Explanation:            SuccessCorrelationExplanation(f.CorrelationWithSuccess, f.Frequency),
			HowToDemonstrate:       DemonstrationAdvice(f.Area),
			TopCompanies:           orEmpty(f.Companies),
			DifficultyLevels:       orEmpty(f.Difficulties),
			SuccessCount:           f.SuccessCount,
			FailureCount:           f.FailureCount,
		})
	}
	return s
}

func timelineSection(ts []model.TimelineAggregate) model.TimelineSection {
	s := model.TimelineSection{Patterns: make([]model.TimelinePattern, 0, len(ts))}
	if len(ts) == 0 {
		s.InsufficientData = true
		return s
	}
	longest, best := -1, -1
	for i, t := range ts {
		s.Patterns = append(s.Patterns, model.TimelinePattern{
			Company: t.Company,
			Role:    t.Role,
			Level:   t.Level,
			Rounds: model.RoundStats{
				Avg:    t.AvgRounds,
				Median: t.MedianRounds,
				Min:    t.MinRounds,
				Max:    t.MaxRounds,
			},
			TypicalTimeline:     t.TypicalTimeline,
			SampleSize:          t.SampleSize,
			Passed:              t.Passed,
			Failed:              t.Failed,
			SuccessRate:         fracPct(t.SuccessRate),
			Format:              t.Format,
			Location:            t.Location,
			ReferralRate:        fracPct(t.ReferralRate),
			NegotiationRate:     fracPct(t.NegotiationRate),
			Confidence:          TimelineConfidence(t.SampleSize),
			PreparationStrategy: PreparationStrategy(valueOr(t.AvgRounds, 0), t.SuccessRate),
		})
		if longest < 0 || valueOr(t.AvgRounds, 0) > valueOr(ts[longest].AvgRounds, 0) {
			longest = i
		}
		if best < 0 || t.SuccessRate > ts[best].SuccessRate {
			best = i
		}
	}
	lp, bp := s.Patterns[longest], s.Patterns[best]
	s.LongestProcess = &lp
	s.MostSuccessfulCompany = &bp
	return s
}

func levelSection(ls []model.LevelAggregate) model.LevelSection {
	s := model.LevelSection{
		Levels:             make([]model.LevelInsight, 0, len(ls)),
		NegotiationByLevel: map[string]float64{},
	}
	if len(ls) == 0 {
		s.InsufficientData = true
		return s
	}
	var lowest *float64
	for _, l := range ls {
		s.Levels = append(s.Levels, model.LevelInsight{
			Level:             l.Level,
			Total:             l.Total,
			AvgRounds:         l.AvgRounds,
			SuccessRate:       fracPctPtr(l.SuccessRate),
			Difficulty:        model.DifficultySplit{Easy: l.Easy, Medium: l.Medium, Hard: l.Hard},
			ReferralRate:      fracPct(l.ReferralRate),
			NegotiationRate:   fracPctPtr(l.NegotiationRate),
			PreferredFormat:   l.PreferredFormat,
			PreferredLocation: l.PreferredLocation,
			Differentiator:    LevelDifferentiator(l.Level, valueOr(l.AvgRounds, 0), valueOr(l.SuccessRate, 0)),
		})
		if l.NegotiationRate != nil {
			s.NegotiationByLevel[l.Level] = fracPct(*l.NegotiationRate)
		}
		if l.SuccessRate != nil && (lowest == nil || *l.SuccessRate < *lowest) {
			lowest = l.SuccessRate
			s.MostChallengingLevel = l.Level
		}
	}
	return s
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
