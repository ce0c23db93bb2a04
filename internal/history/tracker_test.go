package history

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/bounty-cli/internal/model"
)

func cents(v int64) *int64 { return &v }

func record(org string, impl model.ImplementationStatus, ready bool, complexity int) model.Bounty {
	b := model.Bounty{
		ID:          org + "-" + string(impl) + "-x",
		Title:       "task",
		Org:         org,
		RewardCents: cents(10_000),
		Tracking: model.Tracking{
			ImplementationStatus: impl,
			ReadyForRelease:      ready,
		},
	}
	if complexity > 0 {
		b.Tracking.EvaluationStatus = model.EvalEvaluated
		b.Tracking.ComplexityScore = complexity
	}
	return b
}

func TestBuild_Empty(t *testing.T) {
	snap, errs := Build(nil)
	assert.Empty(t, snap)
	assert.Empty(t, errs)
	assert.Nil(t, snap.Lookup("acme"))
}

func TestBuild_CountsAttemptsAndSuccesses(t *testing.T) {
	corpus := []model.Bounty{
		record("acme", model.ImplCompleted, true, 4),
		record("acme", model.ImplCompleted, false, 6),
		record("acme", model.ImplFailed, false, 0),
		record("acme", "", false, 0), // never attempted
		record("beta", model.ImplCompleted, true, 2),
	}
	// Give distinct IDs to the rows the helper made collide.
	for i := range corpus {
		corpus[i].ID = corpus[i].ID + string(rune('a'+i))
	}

	snap, errs := Build(corpus)
	require.Empty(t, errs)

	acme := snap.Lookup("acme")
	require.NotNil(t, acme)
	assert.Equal(t, 3, acme.TotalAttempts)
	assert.Equal(t, 1, acme.SuccessfulImplementations)
	assert.InDelta(t, 33.333, acme.SuccessRate, 0.01)
	assert.Equal(t, 5.0, acme.AverageComplexity)
	assert.Equal(t, int64(40_000), acme.TotalValueCents)

	beta := snap.Lookup("beta")
	require.NotNil(t, beta)
	assert.Equal(t, 1, beta.TotalAttempts)
	assert.Equal(t, 100.0, beta.SuccessRate)
}

func TestBuild_CompletedWithoutReadinessIsNotSuccess(t *testing.T) {
	snap, errs := Build([]model.Bounty{record("acme", model.ImplCompleted, false, 0)})
	require.Empty(t, errs)

	h := snap.Lookup("acme")
	require.NotNil(t, h)
	assert.Equal(t, 1, h.TotalAttempts)
	assert.Equal(t, 0, h.SuccessfulImplementations)
	assert.Equal(t, 0.0, h.SuccessRate)
}

func TestBuild_MalformedRecordsSkippedAndReported(t *testing.T) {
	bad := record("acme", model.ImplInProgress, true, 0) // ready without completion
	good := record("acme", model.ImplCompleted, true, 3)
	good.ID = "acme-good"

	snap, errs := Build([]model.Bounty{bad, good})
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "ready_for_release")

	h := snap.Lookup("acme")
	require.NotNil(t, h)
	assert.Equal(t, 1, h.TotalAttempts)
	assert.Equal(t, 1, h.SuccessfulImplementations)
}

func TestBuild_DefaultAverageComplexity(t *testing.T) {
	snap, errs := Build([]model.Bounty{record("acme", model.ImplFailed, false, 0)})
	require.Empty(t, errs)
	assert.Equal(t, DefaultAverageComplexity, snap.Lookup("acme").AverageComplexity)
}

func TestBuild_ZeroAttemptsZeroRate(t *testing.T) {
	snap, errs := Build([]model.Bounty{record("acme", "", false, 0)})
	require.Empty(t, errs)

	h := snap.Lookup("acme")
	require.NotNil(t, h)
	assert.Equal(t, 0, h.TotalAttempts)
	assert.Equal(t, 0.0, h.SuccessRate)
}
