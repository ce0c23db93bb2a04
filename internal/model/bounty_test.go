package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cents(v int64) *int64 { return &v }

func validBounty() Bounty {
	return Bounty{
		ID:          "acme-1",
		Title:       "Fix CSV escaping",
		Body:        "Commas inside quoted fields split the row.",
		RewardCents: cents(50_000),
		Org:         "acme",
		Tracking: Tracking{
			EvaluationStatus:     EvalEvaluated,
			GoNoGo:               GoNoGoGo,
			ComplexityScore:      3,
			SuccessProbability:   75,
			EvaluationConfidence: 70,
		},
	}
}

func TestValidate_OK(t *testing.T) {
	b := validBounty()
	assert.NoError(t, b.Validate())
}

func TestValidate_ZeroRewardIsValid(t *testing.T) {
	b := validBounty()
	b.RewardCents = cents(0)
	assert.NoError(t, b.Validate())
}

func TestValidate_CollectsAllProblems(t *testing.T) {
	b := Bounty{
		Tracking: Tracking{
			EvaluationStatus:   "weird",
			SuccessProbability: 120,
		},
	}
	err := b.Validate()
	require.Error(t, err)

	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.GreaterOrEqual(t, len(vErr.Problems), 5)
	assert.Contains(t, err.Error(), "id is required")
	assert.Contains(t, err.Error(), "title is required")
	assert.Contains(t, err.Error(), "org is required")
	assert.Contains(t, err.Error(), "reward_cents is required")
	assert.Contains(t, err.Error(), `unknown evaluation_status "weird"`)
	assert.Contains(t, err.Error(), "success_probability 120 outside [0,100]")
}

func TestValidate_Violations(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Bounty)
		problem string
	}{
		{
			name:    "negative reward",
			mutate:  func(b *Bounty) { b.RewardCents = cents(-1) },
			problem: "reward_cents must be >= 0",
		},
		{
			name:    "nil reward",
			mutate:  func(b *Bounty) { b.RewardCents = nil },
			problem: "reward_cents is required",
		},
		{
			name: "go without evaluation",
			mutate: func(b *Bounty) {
				b.Tracking.EvaluationStatus = EvalInProgress
			},
			problem: `go_no_go is "go" but evaluation_status is not "evaluated"`,
		},
		{
			name:    "complexity out of range when evaluated",
			mutate:  func(b *Bounty) { b.Tracking.ComplexityScore = 11 },
			problem: "complexity_score 11 outside [1,10]",
		},
		{
			name:    "complexity zero when evaluated",
			mutate:  func(b *Bounty) { b.Tracking.ComplexityScore = 0 },
			problem: "complexity_score 0 outside [1,10]",
		},
		{
			name: "ready without completion",
			mutate: func(b *Bounty) {
				b.Tracking.ImplementationStatus = ImplInProgress
				b.Tracking.ReadyForRelease = true
			},
			problem: "ready_for_release set without completed implementation",
		},
		{
			name: "unknown implementation status",
			mutate: func(b *Bounty) {
				b.Tracking.ImplementationStatus = "shipped"
			},
			problem: `unknown implementation_status "shipped"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := validBounty()
			tt.mutate(&b)
			err := b.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.problem)
		})
	}
}

func TestValidate_ComplexityIgnoredBeforeEvaluation(t *testing.T) {
	b := validBounty()
	b.Tracking = Tracking{EvaluationStatus: EvalNotEvaluated}
	assert.NoError(t, b.Validate())
}

func TestReward(t *testing.T) {
	b := validBounty()
	assert.Equal(t, int64(50_000), b.Reward())
	assert.Equal(t, 500.0, b.RewardUSD())

	b.RewardCents = nil
	assert.Equal(t, int64(0), b.Reward())
}
