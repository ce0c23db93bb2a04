package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/bounty-cli/internal/config"
	"github.com/sells-group/bounty-cli/internal/decision"
)

func testAnalyticsConfig() config.AnalyticsConfig {
	return config.AnalyticsConfig{
		PerAttemptUSD:               1.50,
		BaselineMinutes:             5,
		MaxAvgImplementationMinutes: 10,
		MinSuccessRatePct:           50,
		MaxGateFailureRatePct:       30,
	}
}

// newTestAggregator pins the session clock: the session starts at base and
// every tracked event lands one minute after the previous one.
func newTestAggregator(t *testing.T, base time.Time) *Aggregator {
	t.Helper()
	agg := NewAggregator(testAnalyticsConfig())
	agg.startedAt = base

	step := 0
	agg.nowFn = func() time.Time {
		step++
		return base.Add(time.Duration(step) * time.Minute)
	}
	return agg
}

func implementResult(id string, rewardCents int64, tier string) *decision.Result {
	return &decision.Result{BountyID: id, ShouldImplement: true, RewardCents: rewardCents, ValueTier: tier}
}

func skipResult(id string, rewardCents int64, tier string) *decision.Result {
	return &decision.Result{BountyID: id, ShouldImplement: false, RewardCents: rewardCents, ValueTier: tier}
}

func TestGenerateMetrics_FullSession(t *testing.T) {
	base := time.Date(2026, 1, 2, 9, 0, 0, 0, time.UTC)
	agg := newTestAggregator(t, base)

	agg.TrackDecision(implementResult("b1", 120_000, "tier3")) // +1m
	agg.TrackDecision(skipResult("b2", 20_000, "tier1"))       // +2m
	agg.TrackDecision(implementResult("b3", 60_000, "tier2"))  // +3m

	agg.TrackImplementationStart("b1")           // +4m
	agg.TrackImplementationComplete("b1", true)  // +5m, 1m duration
	agg.TrackImplementationStart("b3")           // +6m
	agg.TrackImplementationComplete("b3", false) // +7m, 1m duration

	agg.TrackQualityGates("b1", true)                   // +8m
	agg.TrackQualityGates("b3", false, "lint", "tests") // +9m

	agg.TrackImplementationStart("b4") // +10m, never completed

	m := agg.GenerateMetrics()

	assert.Equal(t, agg.SessionID(), m.SessionID)
	assert.Equal(t, base, m.StartedAt)

	assert.Equal(t, DecisionCounts{Total: 3, Implement: 2, Skip: 1, ImplementRate: 66.7}, m.Decisions)

	assert.Equal(t, 3, m.Implementation.Started)
	assert.Equal(t, 2, m.Implementation.Completed)
	assert.Equal(t, 1, m.Implementation.Succeeded)
	assert.Equal(t, 1, m.Implementation.Failed)
	assert.Equal(t, 50.0, m.Implementation.SuccessRatePct)
	assert.Equal(t, 1.0, m.Implementation.AvgDurationMinutes)

	assert.Equal(t, 2, m.Quality.Evaluated)
	assert.Equal(t, 1, m.Quality.Passed)
	assert.Equal(t, 1, m.Quality.Failed)
	assert.Equal(t, 50.0, m.Quality.FailureRatePct)
	assert.Equal(t, map[string]int{"lint": 1, "tests": 1}, m.Quality.BlockerCounts)

	assert.Equal(t, int64(180_000), m.Value.CommittedCents)
	assert.Equal(t, int64(120_000), m.Value.DeliveredCents)
	assert.Equal(t, map[string]int64{"tier3": 120_000, "tier2": 60_000}, m.Value.ByTier)

	// Last event at +10m: 3 decisions over 10 minutes, 2 completions over
	// a sixth of an hour.
	assert.Equal(t, 0.3, m.Rates.DecisionsPerMinute)
	assert.Equal(t, 12.0, m.Rates.ImplementationsPerHour)
	assert.Equal(t, 0.6, m.Rates.EstimatedCostUSD)
	assert.Equal(t, 2000.0, m.Rates.EstimatedROI)
	assert.Empty(t, m.Rates.Note)

	// Gate failure rate 50% exceeds the 30% limit; nothing else trips.
	require.Len(t, m.Bottlenecks, 1)
	assert.Equal(t, BottleneckQuality, m.Bottlenecks[0].Kind)
	assert.Equal(t, 50.0, m.Bottlenecks[0].Observed)
	assert.Equal(t, 30.0, m.Bottlenecks[0].Threshold)
}

func TestGenerateMetrics_Idempotent(t *testing.T) {
	base := time.Date(2026, 1, 2, 9, 0, 0, 0, time.UTC)
	agg := newTestAggregator(t, base)

	agg.TrackDecision(implementResult("b1", 120_000, "tier3"))
	agg.TrackImplementationStart("b1")
	agg.TrackImplementationComplete("b1", true)

	first := agg.GenerateMetrics()
	second := agg.GenerateMetrics()
	assert.Equal(t, first, second)
}

func TestGenerateMetrics_EmptySession(t *testing.T) {
	agg := NewAggregator(testAnalyticsConfig())
	m := agg.GenerateMetrics()

	assert.Equal(t, DecisionCounts{}, m.Decisions)
	assert.Equal(t, ImplementationStats{}, m.Implementation)
	assert.Equal(t, 0.0, m.Rates.EstimatedCostUSD)
	assert.Equal(t, 0.0, m.Rates.EstimatedROI)
	assert.Empty(t, m.Rates.Note)
	assert.Empty(t, m.Bottlenecks)
}

func TestGenerateMetrics_ZeroSpanNote(t *testing.T) {
	base := time.Date(2026, 1, 2, 9, 0, 0, 0, time.UTC)
	agg := NewAggregator(testAnalyticsConfig())
	agg.startedAt = base
	agg.nowFn = func() time.Time { return base }

	agg.TrackDecision(implementResult("b1", 120_000, "tier3"))
	m := agg.GenerateMetrics()

	assert.Equal(t, "session too short to estimate throughput", m.Rates.Note)
	assert.Equal(t, 0.0, m.Rates.DecisionsPerMinute)
}

func TestTrackDecision_NilIgnored(t *testing.T) {
	agg := NewAggregator(testAnalyticsConfig())
	agg.TrackDecision(nil)
	assert.Equal(t, 0, agg.GenerateMetrics().Decisions.Total)
}

func TestTrackImplementationComplete_WithoutStart(t *testing.T) {
	base := time.Date(2026, 1, 2, 9, 0, 0, 0, time.UTC)
	agg := newTestAggregator(t, base)

	agg.TrackImplementationComplete("b9", true)
	m := agg.GenerateMetrics()

	assert.Equal(t, 1, m.Implementation.Completed)
	assert.Equal(t, 1, m.Implementation.Started)
	assert.Equal(t, 0.0, m.Implementation.AvgDurationMinutes)
}
