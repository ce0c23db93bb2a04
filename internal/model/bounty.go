package model

import (
	"fmt"
	"strings"
)

// EvaluationStatus represents where a bounty sits in the evaluation lifecycle.
type EvaluationStatus string

const (
	EvalNotEvaluated EvaluationStatus = "not_evaluated"
	EvalInProgress   EvaluationStatus = "in_progress"
	EvalEvaluated    EvaluationStatus = "evaluated"
	EvalFailed       EvaluationStatus = "evaluation_failed"
)

// GoNoGo is the tri-state viability verdict attached to a bounty.
type GoNoGo string

const (
	GoNoGoGo      GoNoGo = "go"
	GoNoGoNoGo    GoNoGo = "no-go"
	GoNoGoCaution GoNoGo = "caution"
	GoNoGoPending GoNoGo = "pending"
)

// ImplementationStatus tracks the downstream implementation attempt.
// The empty string means no attempt was ever recorded.
type ImplementationStatus string

const (
	ImplNotStarted ImplementationStatus = "not_started"
	ImplInProgress ImplementationStatus = "in_progress"
	ImplCompleted  ImplementationStatus = "completed"
	ImplFailed     ImplementationStatus = "failed"
)

// RiskLevel buckets a bounty's estimated risk.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Tracking is the mutable internal tracking block on a bounty. Scores and
// probabilities are stored clamped: complexity in [1,10] once evaluated,
// percentages in [0,100].
type Tracking struct {
	EvaluationStatus     EvaluationStatus     `json:"evaluation_status"`
	GoNoGo               GoNoGo               `json:"go_no_go"`
	ComplexityScore      int                  `json:"complexity_score"`
	SuccessProbability   int                  `json:"success_probability"`
	EvaluationConfidence int                  `json:"evaluation_confidence"`
	ImplementationStatus ImplementationStatus `json:"implementation_status,omitempty"`
	ReadyForRelease      bool                 `json:"ready_for_release"`
	RedFlags             []string             `json:"red_flags,omitempty"`
}

// Bounty is a unit of externally sourced work. Immutable once ingested
// except for the Tracking block. RewardCents is a pointer so a missing
// reward can be told apart from a zero reward; a nil reward fails
// validation rather than silently scoring as zero-value.
type Bounty struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Body        string   `json:"body"`
	RewardCents *int64   `json:"reward_cents"`
	Org         string   `json:"org"`
	Tracking    Tracking `json:"tracking"`
}

// Reward returns the reward in cents, or 0 when unset. Callers that must
// distinguish missing from zero should check RewardCents directly.
func (b *Bounty) Reward() int64 {
	if b.RewardCents == nil {
		return 0
	}
	return *b.RewardCents
}

// RewardUSD returns the reward in dollars for display.
func (b *Bounty) RewardUSD() float64 {
	return float64(b.Reward()) / 100
}

// ValidationError reports every shape or invariant violation found on a
// single bounty. It is fatal to that bounty's processing only; batch
// callers skip the record and continue.
type ValidationError struct {
	BountyID string
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("bounty %q invalid: %s", e.BountyID, strings.Join(e.Problems, "; "))
}

// Validate checks required fields and the tracking-block invariants:
// go_no_go = "go" requires evaluation_status = "evaluated", complexity stays
// in [1,10] once evaluated, percentages stay in [0,100], and the
// ready-for-release flag requires a completed implementation (a half-set
// success marker would silently skew organization history statistics).
func (b *Bounty) Validate() error {
	var problems []string

	if b.ID == "" {
		problems = append(problems, "id is required")
	}
	if b.Title == "" {
		problems = append(problems, "title is required")
	}
	if b.Org == "" {
		problems = append(problems, "org is required")
	}
	if b.RewardCents == nil {
		problems = append(problems, "reward_cents is required")
	} else if *b.RewardCents < 0 {
		problems = append(problems, "reward_cents must be >= 0")
	}

	t := b.Tracking
	switch t.EvaluationStatus {
	case "", EvalNotEvaluated, EvalInProgress, EvalEvaluated, EvalFailed:
	default:
		problems = append(problems, fmt.Sprintf("unknown evaluation_status %q", t.EvaluationStatus))
	}
	switch t.GoNoGo {
	case "", GoNoGoGo, GoNoGoNoGo, GoNoGoCaution, GoNoGoPending:
	default:
		problems = append(problems, fmt.Sprintf("unknown go_no_go %q", t.GoNoGo))
	}
	switch t.ImplementationStatus {
	case "", ImplNotStarted, ImplInProgress, ImplCompleted, ImplFailed:
	default:
		problems = append(problems, fmt.Sprintf("unknown implementation_status %q", t.ImplementationStatus))
	}

	if t.GoNoGo == GoNoGoGo && t.EvaluationStatus != EvalEvaluated {
		problems = append(problems, "go_no_go is \"go\" but evaluation_status is not \"evaluated\"")
	}
	if t.EvaluationStatus == EvalEvaluated && (t.ComplexityScore < 1 || t.ComplexityScore > 10) {
		problems = append(problems, fmt.Sprintf("complexity_score %d outside [1,10]", t.ComplexityScore))
	}
	if t.SuccessProbability < 0 || t.SuccessProbability > 100 {
		problems = append(problems, fmt.Sprintf("success_probability %d outside [0,100]", t.SuccessProbability))
	}
	if t.EvaluationConfidence < 0 || t.EvaluationConfidence > 100 {
		problems = append(problems, fmt.Sprintf("evaluation_confidence %d outside [0,100]", t.EvaluationConfidence))
	}
	if t.ReadyForRelease && t.ImplementationStatus != ImplCompleted {
		problems = append(problems, "ready_for_release set without completed implementation")
	}

	if len(problems) > 0 {
		return &ValidationError{BountyID: b.ID, Problems: problems}
	}
	return nil
}
