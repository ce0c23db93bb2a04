// Package decision implements the history-aware implement/skip engine. It
// runs after quick evaluation: hard gates first, then a weighted composite
// of value, complexity, organization history, and the evaluation itself,
// compared against a value-tier threshold adjusted for risk tolerance.
package decision

import (
	"fmt"
	"math"

	"github.com/rotisserie/eris"

	"github.com/sells-group/bounty-cli/internal/config"
	"github.com/sells-group/bounty-cli/internal/history"
	"github.com/sells-group/bounty-cli/internal/model"
)

// RiskTolerance selects how much the decision threshold is tightened or
// relaxed for a run.
type RiskTolerance string

const (
	Conservative RiskTolerance = "conservative"
	Moderate     RiskTolerance = "moderate"
	Aggressive   RiskTolerance = "aggressive"
)

// ParseRiskTolerance maps a config string to a tolerance, defaulting to
// moderate for empty input.
func ParseRiskTolerance(s string) (RiskTolerance, error) {
	switch RiskTolerance(s) {
	case Conservative, Moderate, Aggressive:
		return RiskTolerance(s), nil
	case "":
		return Moderate, nil
	}
	return "", eris.Errorf("decision: unknown risk tolerance %q", s)
}

// ThresholdAdjustment is added to the tier threshold. Conservative raises
// the bar, aggressive lowers it.
func (t RiskTolerance) ThresholdAdjustment() float64 {
	switch t {
	case Conservative:
		return 15
	case Aggressive:
		return -10
	default:
		return 0
	}
}

// ComponentScores holds the four component scores and their average, each
// on a 0-100 scale.
type ComponentScores struct {
	Value      float64 `json:"value"`
	Complexity float64 `json:"complexity"`
	History    float64 `json:"history"`
	Evaluation float64 `json:"evaluation"`
	Overall    float64 `json:"overall"`
}

// Result is the outcome of a single decision. Reasoning records every gate
// and component contribution in evaluation order so a skip can always be
// explained after the fact.
type Result struct {
	BountyID             string          `json:"bounty_id"`
	ShouldImplement      bool            `json:"should_implement"`
	Confidence           float64         `json:"confidence"`
	Reasoning            []string        `json:"reasoning"`
	ThresholdUsed        float64         `json:"threshold_used"`
	RiskLevel            model.RiskLevel `json:"risk_level"`
	EstimatedSuccessRate float64         `json:"estimated_success_rate"`
	Scores               ComponentScores `json:"scores"`
	RiskTolerance        RiskTolerance   `json:"risk_tolerance"`
	RewardCents          int64           `json:"reward_cents"`
	ValueTier            string          `json:"value_tier"`
}

// Engine evaluates bounties against configured thresholds and an
// organization history snapshot. The snapshot is read-only; Engine is safe
// for concurrent use.
type Engine struct {
	cfg  config.DecisionConfig
	hist history.Snapshot
}

// DefaultConfig returns the production decision defaults.
func DefaultConfig() config.DecisionConfig {
	return config.DecisionConfig{
		MinConfidence:         50,
		Tier1Cents:            10_000,
		Tier2Cents:            50_000,
		Tier3Cents:            100_000,
		Tier1Threshold:        60,
		Tier2Threshold:        55,
		Tier3Threshold:        50,
		LowComplexityBonus:    5,
		HighComplexityPenalty: 10,
		MinHistoryAttempts:    3,
		HistoryWeight:         0.2,
		HistoryMaxAdjustment:  10,
		RiskTolerance:         string(Moderate),
	}
}

// NewEngine builds an engine. A nil snapshot is valid and treats every
// organization as unknown.
func NewEngine(cfg config.DecisionConfig, hist history.Snapshot) *Engine {
	return &Engine{cfg: cfg, hist: hist}
}

// Decide runs the full gate-then-score pipeline for one bounty. A
// validation failure is the only error; every other outcome, including a
// gated skip, is a Result.
func (e *Engine) Decide(b *model.Bounty, tol RiskTolerance) (*Result, error) {
	if err := b.Validate(); err != nil {
		return nil, eris.Wrapf(err, "decision: invalid bounty %s", b.ID)
	}

	res := &Result{
		BountyID:      b.ID,
		RiskTolerance: tol,
		RiskLevel:     model.RiskHigh,
		RewardCents:   b.Reward(),
		ValueTier:     e.valueTier(b.Reward()),
	}

	// Hard gates. A failed gate short-circuits with zero scores so
	// downstream consumers can distinguish "skipped" from "scored low".
	if reason, ok := e.gate(b); !ok {
		res.Reasoning = append(res.Reasoning, reason)
		return res, nil
	}

	t := &b.Tracking
	flagCount := len(t.RedFlags)

	scores := ComponentScores{
		Value:      e.valueScore(b.Reward()),
		Complexity: e.complexityScore(t.ComplexityScore),
		History:    e.historyScore(b.Org),
		Evaluation: 0.7*float64(t.SuccessProbability) + 0.3*float64(t.EvaluationConfidence),
	}
	scores.Overall = (scores.Value + scores.Complexity + scores.History + scores.Evaluation) / 4

	threshold := e.tierThreshold(b.Reward()) + tol.ThresholdAdjustment()

	res.Scores = scores
	res.ThresholdUsed = threshold
	res.ShouldImplement = scores.Overall >= threshold
	res.Confidence = math.Min(100, scores.Overall)
	res.RiskLevel = riskLevel(scores.Overall, t.ComplexityScore, flagCount)
	res.EstimatedSuccessRate = e.successRate(b, scores.Overall)

	res.Reasoning = append(res.Reasoning,
		fmt.Sprintf("value: %.1f (reward $%.2f, tier %s)", scores.Value, b.RewardUSD(), res.ValueTier),
		fmt.Sprintf("complexity: %.1f (score %d/10)", scores.Complexity, t.ComplexityScore),
		fmt.Sprintf("history: %.1f (org %s)", scores.History, b.Org),
		fmt.Sprintf("evaluation: %.1f (probability %d, confidence %d)", scores.Evaluation, t.SuccessProbability, t.EvaluationConfidence),
		fmt.Sprintf("overall %.1f vs threshold %.1f (%s tolerance)", scores.Overall, threshold, tol),
	)
	if res.ShouldImplement {
		res.Reasoning = append(res.Reasoning, "decision: implement")
	} else {
		res.Reasoning = append(res.Reasoning, "decision: skip")
	}

	return res, nil
}

// gate applies the hard preconditions. The returned reason is only
// meaningful when ok is false.
func (e *Engine) gate(b *model.Bounty) (string, bool) {
	t := &b.Tracking
	switch {
	case t.EvaluationStatus != model.EvalEvaluated:
		return fmt.Sprintf("gate: not evaluated (status %q)", t.EvaluationStatus), false
	case t.GoNoGo != model.GoNoGoGo:
		return fmt.Sprintf("gate: evaluation verdict is %q, not go", t.GoNoGo), false
	case t.EvaluationConfidence < e.cfg.MinConfidence:
		return fmt.Sprintf("gate: confidence %d below minimum %d", t.EvaluationConfidence, e.cfg.MinConfidence), false
	case t.ImplementationStatus == model.ImplCompleted:
		return "gate: implementation already completed", false
	}
	return "", true
}

func (e *Engine) valueTier(rewardCents int64) string {
	switch {
	case rewardCents >= e.cfg.Tier3Cents:
		return "tier3"
	case rewardCents >= e.cfg.Tier2Cents:
		return "tier2"
	case rewardCents >= e.cfg.Tier1Cents:
		return "tier1"
	}
	return "below"
}

func (e *Engine) valueScore(rewardCents int64) float64 {
	switch {
	case rewardCents >= e.cfg.Tier3Cents:
		return 85
	case rewardCents >= e.cfg.Tier2Cents:
		return 70
	case rewardCents >= e.cfg.Tier1Cents:
		return 60
	}
	return 30
}

func (e *Engine) complexityScore(cx int) float64 {
	switch {
	case cx <= 4:
		return 70 + e.cfg.LowComplexityBonus
	case cx <= 7:
		return 60
	}
	return math.Max(0, 50-e.cfg.HighComplexityPenalty)
}

// historyScore is neutral 50 for unknown or thinly-sampled organizations;
// otherwise the success rate shifts it by at most HistoryMaxAdjustment in
// either direction.
func (e *Engine) historyScore(org string) float64 {
	h := e.hist.Lookup(org)
	if h == nil || h.TotalAttempts < e.cfg.MinHistoryAttempts {
		return 50
	}
	adj := (h.SuccessRate - 50) * e.cfg.HistoryWeight
	adj = math.Max(-e.cfg.HistoryMaxAdjustment, math.Min(e.cfg.HistoryMaxAdjustment, adj))
	return 50 + adj
}

func (e *Engine) tierThreshold(rewardCents int64) float64 {
	switch {
	case rewardCents >= e.cfg.Tier3Cents:
		return e.cfg.Tier3Threshold
	case rewardCents >= e.cfg.Tier2Cents:
		return e.cfg.Tier2Threshold
	}
	// Below tier2 the tier1 threshold applies, including sub-tier1 rewards.
	return e.cfg.Tier1Threshold
}

func riskLevel(overall float64, cx, flagCount int) model.RiskLevel {
	switch {
	case overall >= 75 && cx <= 5 && flagCount == 0:
		return model.RiskLow
	case overall >= 60 && cx <= 7 && flagCount <= 2:
		return model.RiskMedium
	}
	return model.RiskHigh
}

// successRate starts from the evaluation probability, blends in observed
// organization history when the sample is large enough, then nudges by how
// far the overall score sits from the 60-point midline.
func (e *Engine) successRate(b *model.Bounty, overall float64) float64 {
	rate := float64(b.Tracking.SuccessProbability)
	if h := e.hist.Lookup(b.Org); h != nil && h.TotalAttempts >= e.cfg.MinHistoryAttempts {
		rate = 0.7*rate + 0.3*h.SuccessRate
	}
	rate += (overall - 60) * 0.2
	return math.Max(0, math.Min(100, rate))
}
