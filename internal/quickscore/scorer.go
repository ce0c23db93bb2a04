// Package quickscore implements the fast first-pass viability filter. It is
// a cheap, deterministic screen run before any deeper external evaluation:
// it never errors, and thin or missing text degrades the score instead.
package quickscore

import (
	"fmt"
	"math"

	"github.com/sells-group/bounty-cli/internal/config"
	"github.com/sells-group/bounty-cli/internal/model"
	"github.com/sells-group/bounty-cli/internal/signal"
)

// DefaultConfig returns a config.QuickConfig with the standard cutoffs.
func DefaultConfig() config.QuickConfig {
	return config.QuickConfig{
		MediumRewardCents:  50_000,
		HighRewardCents:    100_000,
		GoProbability:      50,
		CautionProbability: 30,
	}
}

// Result holds the quick-score output for a single bounty.
type Result struct {
	Complexity         int             `json:"complexity_score"`
	SuccessProbability int             `json:"success_probability"`
	RiskLevel          model.RiskLevel `json:"risk_level"`
	GoNoGo             model.GoNoGo    `json:"go_no_go"`
	EstimatedTimeline  string          `json:"estimated_timeline"`
	Confidence         int             `json:"confidence"`
	RedFlags           []string        `json:"red_flags,omitempty"`
	Notes              []string        `json:"notes,omitempty"`
	Signals            signal.Bundle   `json:"signals"`
}

// Scorer converts extracted signals plus the reward amount into a quick
// viability verdict.
type Scorer struct {
	catalog signal.Catalog
	cfg     config.QuickConfig
}

// New creates a Scorer with the given catalog and config.
func New(catalog signal.Catalog, cfg config.QuickConfig) *Scorer {
	return &Scorer{catalog: catalog, cfg: cfg}
}

// ScoreBounty scores a bounty record. A missing reward scores as zero here;
// the decision engine, not the quick filter, rejects malformed records.
func (s *Scorer) ScoreBounty(b *model.Bounty) Result {
	return s.Score(b.Title, b.Body, b.Reward())
}

// Score runs signal extraction and the quick-score arithmetic. The additive
// steps and their order are part of the contract; keep them in sync with
// the tests that pin each constant.
func (s *Scorer) Score(title, body string, rewardCents int64) Result {
	bundle := s.catalog.Extract(title, body)

	flags := append([]string(nil), bundle.RedFlags...)
	if bundle.ScopeHeavy && rewardCents < s.cfg.MediumRewardCents {
		flags = append(flags, signal.FlagLowRewardForScope)
	}

	complexity := s.complexity(bundle, flags)
	probability := s.probability(bundle, flags, complexity, rewardCents)

	criticals := 0
	for _, f := range flags {
		if s.catalog.Critical(f) {
			criticals++
		}
	}

	verdict := s.verdict(probability, criticals)

	res := Result{
		Complexity:         complexity,
		SuccessProbability: probability,
		RiskLevel:          riskLevel(len(flags), complexity),
		GoNoGo:             verdict,
		EstimatedTimeline:  timeline(complexity, bundle),
		Confidence:         confidence(bundle, len(flags)),
		RedFlags:           flags,
		Signals:            bundle,
	}
	res.Notes = notes(bundle, flags, criticals, s.catalog)
	return res
}

// complexity starts at base 3 and layers additive signals before clamping
// to [1,10].
func (s *Scorer) complexity(b signal.Bundle, flags []string) int {
	c := 3
	if !b.SpecificRequirements {
		c += 2
	}
	if !b.WellDefined {
		c += 2
	}
	if b.MentionsIntegration {
		c += 2
	}
	if b.MentionsArchitecture {
		c += 3
	}
	if b.SubjectiveCriteria {
		c += 2
	}
	c += len(flags)
	if b.HasCodeExamples {
		c--
	}
	if b.WordCount > 300 {
		c--
	}
	return clampInt(c, 1, 10)
}

// probability starts at 70 and subtracts for complexity and red flags,
// with a bonus for well-paid work, clamped to [0,100].
func (s *Scorer) probability(b signal.Bundle, flags []string, complexity int, rewardCents int64) int {
	p := 70
	if complexity > 3 {
		p -= 8 * (complexity - 3)
	}
	for _, f := range flags {
		if s.catalog.Critical(f) {
			p -= 25
		} else {
			p -= 10
		}
	}
	if rewardCents >= s.cfg.MediumRewardCents {
		p += 10
	}
	if rewardCents >= s.cfg.HighRewardCents {
		p += 5
	}
	return clampInt(p, 0, 100)
}

// verdict maps probability to go/caution/no-go. Any critical red flag is an
// unconditional no-go regardless of probability or reward.
func (s *Scorer) verdict(probability, criticals int) model.GoNoGo {
	if criticals > 0 {
		return model.GoNoGoNoGo
	}
	switch {
	case probability >= s.cfg.GoProbability:
		return model.GoNoGoGo
	case probability >= s.cfg.CautionProbability:
		return model.GoNoGoCaution
	default:
		return model.GoNoGoNoGo
	}
}

func riskLevel(flagCount, complexity int) model.RiskLevel {
	switch {
	case flagCount >= 3 || complexity >= 8:
		return model.RiskHigh
	case flagCount >= 1 || complexity >= 6:
		return model.RiskMedium
	default:
		return model.RiskLow
	}
}

// timeline renders a rough effort estimate: hours up to a day, days up to a
// week, weeks beyond.
func timeline(complexity int, b signal.Bundle) string {
	hours := float64(complexity * 4)
	if !b.WellDefined {
		hours *= 1.5
	}
	if b.MentionsArchitecture {
		hours *= 1.8
	}
	if b.HasCodeExamples {
		hours *= 0.8
	}

	switch {
	case hours <= 8:
		return fmt.Sprintf("~%dh", max(1, int(math.Round(hours))))
	case hours <= 40:
		return fmt.Sprintf("~%dd", max(1, int(math.Round(hours/8))))
	default:
		return fmt.Sprintf("~%dw", max(1, int(math.Round(hours/40))))
	}
}

// confidence reflects how much signal the text gave us, clamped to [20,85]:
// even perfect-looking text never earns full confidence from a heuristic
// pass, and even empty text tells us something.
func confidence(b signal.Bundle, flagCount int) int {
	c := 60
	if b.WellDefined {
		c += 15
	}
	if b.HasCodeExamples {
		c += 10
	}
	if b.SpecificRequirements {
		c += 10
	}
	if b.SubjectiveCriteria {
		c -= 15
	}
	if b.MentionsArchitecture {
		c -= 10
	}
	c -= 5 * flagCount
	return clampInt(c, 20, 85)
}

func notes(b signal.Bundle, flags []string, criticals int, catalog signal.Catalog) []string {
	var out []string
	for _, f := range flags {
		if catalog.Critical(f) {
			out = append(out, fmt.Sprintf("red flag (critical): %s", f))
		} else {
			out = append(out, fmt.Sprintf("red flag: %s", f))
		}
	}
	if criticals > 0 {
		out = append(out, "critical red flag forces no-go")
	}
	if !b.SpecificRequirements {
		out = append(out, "requirements not specific")
	}
	if !b.WellDefined {
		out = append(out, "issue lacks defined structure")
	}
	if b.HasCodeExamples {
		out = append(out, "code examples present")
	}
	return out
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
