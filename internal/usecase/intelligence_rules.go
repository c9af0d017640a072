package usecase

import (
	"fmt"
	"math"
	"strings"
)

// Thresholds and wording used to turn aggregates into report text. Every
// function here is pure.

const (
	ConfidenceLow    = "low"
	ConfidenceMedium = "medium"
	ConfidenceHigh   = "high"
)

// ConfidenceLabel grades a sample size: below medium is low, below high is
// medium, anything else high.
func ConfidenceLabel(n, medium, high int) string {
	switch {
	case n < medium:
		return ConfidenceLow
	case n < high:
		return ConfidenceMedium
	default:
		return ConfidenceHigh
	}
}

func ConfidenceExplanation(label string, n int) string {
	switch label {
	case ConfidenceHigh:
		return fmt.Sprintf("High confidence (n=%d): Statistically significant, robust insights", n)
	case ConfidenceMedium:
		return fmt.Sprintf("Medium confidence (n=%d): Directionally accurate, interpret with context", n)
	default:
		return fmt.Sprintf("Low confidence (n=%d): Preliminary insights, seek additional data", n)
	}
}

func RoundsImplication(avg float64) string {
	switch {
	case avg > 4:
		return "Longer process - prepare for endurance, maintain momentum over weeks"
	case avg < 3:
		return "Quick process - be ready early, first impression critical"
	default:
		return "Standard process - steady preparation, consistent performance key"
	}
}

func RemoteImplication(pct float64) string {
	if pct >= 60 {
		return "High remote flexibility - optimize home setup: lighting, audio, background"
	}
	return "Mixed environment - prepare for both remote and on-site logistics"
}

func NegotiationCultureImplication(pct float64) string {
	if pct > 40 {
		return "Strong negotiation culture - prepare 3 leverage points (competing offers, market data, unique value)"
	}
	return "Conservative culture - negotiate tactfully with thorough research"
}

// NegotiationRecommendation takes the success rate of negotiated offers as a
// fraction.
func NegotiationRecommendation(rate float64) string {
	if rate > 0.6 {
		return "High negotiation success rate - always negotiate, prepare leverage"
	}
	return "Moderate success - negotiate selectively with strong justification"
}

func OfferDecisionPattern(declineRate float64) string {
	if declineRate > 0.25 {
		return "High decline rate suggests candidates shopping offers - expect competition"
	}
	return "Low decline rate suggests strong company appeal"
}

func CompensationInterpretation(rate float64) string {
	if rate > 0.5 {
		return "High transparency - expect salary discussions early in process"
	}
	return "Conservative - salary typically discussed after final round"
}

// ReferralMultiplier is the ratio of referral to non-referral success, rounded
// to one decimal. It is undefined when either rate is zero or unknown.
func ReferralMultiplier(with, without *float64) *float64 {
	if with == nil || without == nil || *with == 0 || *without == 0 {
		return nil
	}
	m := math.Round(*with / *without * 10) / 10
	return &m
}

func ReferralImplication(m float64) string {
	if m >= 2 {
		return "Referrals are critical - allocate 30% of prep time to networking, meetups, informational interviews"
	}
	return "Referrals helpful but not decisive - focus on technical excellence"
}

func ReferralAdvice(m *float64) string {
	if m == nil {
		return "Insufficient data on referral impact. Network building generally recommended."
	}
	switch {
	case *m >= 2.5:
		return fmt.Sprintf("Referrals are CRITICAL (%.1fx multiplier). Allocate 30-40%% of prep time to networking: attend meetups, request informational interviews, leverage LinkedIn. This is your highest ROI activity.", *m)
	case *m >= 1.5:
		return fmt.Sprintf("Referrals are valuable (%.1fx multiplier). Spend 20-30%% of prep time networking. Target: 2-3 employee connections per target company.", *m)
	default:
		return fmt.Sprintf("Referrals helpful but not decisive (%.1fx multiplier). Focus primarily on technical preparation. Network strategically for cultural insights.", *m)
	}
}

var mitigations = []struct{ key, advice string }{
	{"system design", "Study: Grokking System Design Interview, Designing Data-Intensive Applications. Practice: 3 mock system designs weekly on Pramp/Interviewing.io. Focus: Distributed systems, scalability, trade-offs."},
	{"coding", "Practice: 3-5 LeetCode medium/hard daily. Focus: Time/space complexity analysis, edge cases. Resources: NeetCode roadmap, Blind 75."},
	{"communication", "Improve: Think-aloud problem solving, structured responses (STAR method). Practice: Mock interviews with feedback. Read: Cracking the Coding Interview Chapter 1-2."},
	{"cultural fit", "Research: Company values, mission, recent news. Prepare: Behavioral examples (STAR format). Network: Connect with current employees, attend meetups."},
	{"experience", "Demonstrate: Past projects with measurable impact. Prepare: Portfolio showcasing relevant skills. Bridge gaps: Online courses, side projects in target domain."},
	{"technical depth", "Deepen: Fundamentals (data structures, algorithms, OS, networks). Practice: Explain concepts simply. Resource: System Design Primer, CS fundamentals courses."},
}

func MitigationStrategy(reason string) string {
	r := strings.ToLower(reason)
	for _, m := range mitigations {
		if strings.Contains(r, m.key) {
			return m.advice
		}
	}
	return "Review detailed feedback. Identify specific skill gaps. Create targeted study plan. Seek mentorship in weak areas."
}

func RejectionPriority(freq int) string {
	switch {
	case freq >= 10:
		return "critical"
	case freq >= 5:
		return "important"
	default:
		return "monitor"
	}
}

func PrepPriority(count int, difficulty string) string {
	switch {
	case count >= 10 && strings.EqualFold(difficulty, "hard"):
		return "critical"
	case count >= 5:
		return "high"
	case count >= 2:
		return "medium"
	default:
		return "low"
	}
}

// FocusPriority takes the success correlation as a fraction.
func FocusPriority(corr float64) string {
	switch {
	case corr > 0.7:
		return "critical"
	case corr > 0.5:
		return "important"
	default:
		return "standard"
	}
}

func SuccessCorrelationExplanation(corr float64, freq int) string {
	p := math.Round(corr * 100)
	switch {
	case corr > 0.7:
		return fmt.Sprintf("Strong predictor of success (%.0f%% correlation, %d cases). Mastering this is critical.", p, freq)
	case corr > 0.5:
		return fmt.Sprintf("Moderate predictor (%.0f%% correlation, %d cases). Important but not decisive.", p, freq)
	default:
		return fmt.Sprintf("Weak correlation (%.0f%%). Necessary but not sufficient for success.", p)
	}
}

var demonstrations = []struct{ key, advice string }{
	{"code quality", "Write clean, readable code. Use meaningful variable names. Add comments for complex logic. Follow language conventions."},
	{"communication", "Think aloud. Explain your approach before coding. Clarify requirements. Ask questions."},
	{"problem solving", "Break down problem. Consider edge cases. Discuss trade-offs. Iterate on solution."},
	{"optimization", "Analyze time/space complexity. Identify bottlenecks. Propose improvements. Justify optimizations."},
	{"testing", "Write test cases. Cover edge cases. Discuss testing strategy. Mention integration tests."},
	{"scalability", "Discuss distributed systems. Consider load balancing. Address single points of failure. Plan for growth."},
}

func DemonstrationAdvice(area string) string {
	a := strings.ToLower(area)
	for _, d := range demonstrations {
		if strings.Contains(a, d.key) {
			return d.advice
		}
	}
	return fmt.Sprintf("Demonstrate %s through clear examples and structured communication.", area)
}

func TimeAllocationNote(avgMinutes float64) string {
	if avgMinutes > 45 {
		return "Extended discussion - expect deep dive, multiple approaches"
	}
	return "Standard duration - focus on optimal solution"
}

func TimelineConfidence(sample int) string {
	switch {
	case sample >= 5:
		return ConfidenceHigh
	case sample >= 3:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// PreparationStrategy takes average rounds and the success rate as a fraction.
func PreparationStrategy(rounds, rate float64) string {
	sr := math.Round(rate * 100)
	switch {
	case rounds >= 5:
		return fmt.Sprintf("Extended process (%.1f rounds) - pace yourself over 6-8 weeks. Maintain technical sharpness throughout. Success rate: %.0f%%.", rounds, sr)
	case rounds <= 2:
		return fmt.Sprintf("Quick process (%.1f rounds) - be ready immediately. First impression critical. Success rate: %.0f%%.", rounds, sr)
	default:
		return fmt.Sprintf("Standard process (%.1f rounds) - steady 3-4 week preparation. Success rate: %.0f%%.", rounds, sr)
	}
}

func LevelDifferentiator(level string, rounds, rate float64) string {
	sr := math.Round(rate * 100)
	switch strings.ToLower(level) {
	case "entry":
		return fmt.Sprintf("Entry-level: %.1f rounds avg. Focus on fundamentals, communication. Success rate: %.0f%%.", rounds, sr)
	case "mid":
		return fmt.Sprintf("Mid-level: %.1f rounds avg. Expect system design + coding depth. Success rate: %.0f%%.", rounds, sr)
	case "senior":
		return fmt.Sprintf("Senior: %.1f rounds avg. Leadership, architecture, mentoring focus. Success rate: %.0f%%.", rounds, sr)
	case "intern":
		return fmt.Sprintf("Intern: %.1f rounds avg. Fundamentals + eagerness to learn. Success rate: %.0f%%.", rounds, sr)
	default:
		return fmt.Sprintf("%.1f rounds, %.0f%% success rate.", rounds, sr)
	}
}

// ratioPct turns n/d into a rounded percentage, nil when d is zero.
func ratioPct(n, d int) *float64 {
	if d == 0 {
		return nil
	}
	v := math.Round(float64(n) / float64(d) * 100)
	return &v
}

func fracPct(f float64) float64 { return math.Round(f * 100) }

func fracPctPtr(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := fracPct(*f)
	return &v
}

func valueOr(f *float64, def float64) float64 {
	if f == nil {
		return def
	}
	return *f
}
