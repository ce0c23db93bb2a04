// Package analytics collects per-session pipeline events and turns them
// into a metrics report: decision counts, implementation outcomes, quality
// gate results, value distribution, throughput rates, cost estimates, and
// detected bottlenecks.
package analytics

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sells-group/bounty-cli/internal/config"
	"github.com/sells-group/bounty-cli/internal/decision"
)

// DecisionCounts summarizes implement/skip outcomes.
type DecisionCounts struct {
	Total         int     `json:"total"`
	Implement     int     `json:"implement"`
	Skip          int     `json:"skip"`
	ImplementRate float64 `json:"implement_rate_pct"`
}

// ImplementationStats summarizes implementation attempts and durations.
type ImplementationStats struct {
	Started            int     `json:"started"`
	Completed          int     `json:"completed"`
	Succeeded          int     `json:"succeeded"`
	Failed             int     `json:"failed"`
	SuccessRatePct     float64 `json:"success_rate_pct"`
	AvgDurationMinutes float64 `json:"avg_duration_minutes"`
}

// QualityStats summarizes quality gate runs. BlockerCounts tallies failed
// checks by name so the report shows which check blocks most often.
type QualityStats struct {
	Evaluated      int            `json:"evaluated"`
	Passed         int            `json:"passed"`
	Failed         int            `json:"failed"`
	FailureRatePct float64        `json:"failure_rate_pct"`
	BlockerCounts  map[string]int `json:"blocker_counts,omitempty"`
}

// ValueStats summarizes reward value by decision outcome. ByTier buckets
// implement-decision reward cents by value tier.
type ValueStats struct {
	CommittedCents int64            `json:"committed_cents"`
	DeliveredCents int64            `json:"delivered_cents"`
	ByTier         map[string]int64 `json:"by_tier"`
}

// RateEstimates holds throughput and cost projections for the session.
type RateEstimates struct {
	DecisionsPerMinute     float64 `json:"decisions_per_minute"`
	ImplementationsPerHour float64 `json:"implementations_per_hour"`
	EstimatedCostUSD       float64 `json:"estimated_cost_usd"`
	EstimatedROI           float64 `json:"estimated_roi"`
	Note                   string  `json:"note,omitempty"`
}

// SessionMetrics is the full report generated from a session's events.
type SessionMetrics struct {
	SessionID      string              `json:"session_id"`
	StartedAt      time.Time           `json:"started_at"`
	Decisions      DecisionCounts      `json:"decisions"`
	Implementation ImplementationStats `json:"implementation"`
	Quality        QualityStats        `json:"quality"`
	Value          ValueStats          `json:"value"`
	Rates          RateEstimates       `json:"rates"`
	Bottlenecks    []Bottleneck        `json:"bottlenecks,omitempty"`
}

type decisionEvent struct {
	at  time.Time
	res *decision.Result
}

type implEvent struct {
	bountyID string
	success  bool
	at       time.Time
	duration time.Duration
}

type gateEvent struct {
	bountyID string
	passed   bool
	failed   []string
	at       time.Time
}

// Aggregator records pipeline events for one session. All Track methods
// are safe for concurrent use. GenerateMetrics derives every figure from
// recorded event timestamps, so calling it repeatedly without new events
// returns identical reports.
type Aggregator struct {
	mu        sync.Mutex
	sessionID string
	startedAt time.Time
	nowFn     func() time.Time
	cfg       config.AnalyticsConfig
	calc      *Calculator

	decisions []decisionEvent
	implOpen  map[string]time.Time
	impls     []implEvent
	gates     []gateEvent
}

// NewAggregator starts a fresh session.
func NewAggregator(cfg config.AnalyticsConfig) *Aggregator {
	now := time.Now().UTC()
	return &Aggregator{
		sessionID: uuid.NewString(),
		startedAt: now,
		nowFn:     func() time.Time { return time.Now().UTC() },
		cfg:       cfg,
		calc: NewCalculator(Rates{
			PerAttemptUSD:   cfg.PerAttemptUSD,
			BaselineMinutes: cfg.BaselineMinutes,
		}),
		implOpen: make(map[string]time.Time),
	}
}

// SessionID returns the session identifier assigned at construction.
func (a *Aggregator) SessionID() string {
	return a.sessionID
}

// TrackDecision records a decision engine result.
func (a *Aggregator) TrackDecision(res *decision.Result) {
	if res == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.decisions = append(a.decisions, decisionEvent{at: a.nowFn(), res: res})
}

// TrackImplementationStart marks the beginning of an implementation
// attempt for a bounty. Starting twice restarts the clock.
func (a *Aggregator) TrackImplementationStart(bountyID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.implOpen[bountyID] = a.nowFn()
}

// TrackImplementationComplete closes an open attempt. A completion with no
// matching start is recorded with zero duration rather than dropped.
func (a *Aggregator) TrackImplementationComplete(bountyID string, success bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.nowFn()
	var dur time.Duration
	if started, ok := a.implOpen[bountyID]; ok {
		dur = now.Sub(started)
		delete(a.implOpen, bountyID)
	}
	a.impls = append(a.impls, implEvent{
		bountyID: bountyID,
		success:  success,
		at:       now,
		duration: dur,
	})
}

// TrackQualityGates records the outcome of a quality gate run.
func (a *Aggregator) TrackQualityGates(bountyID string, passed bool, failedChecks ...string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.gates = append(a.gates, gateEvent{
		bountyID: bountyID,
		passed:   passed,
		failed:   failedChecks,
		at:       a.nowFn(),
	})
}

// GenerateMetrics computes the session report from the events recorded so
// far. It does not consume or reset anything.
func (a *Aggregator) GenerateMetrics() *SessionMetrics {
	a.mu.Lock()
	defer a.mu.Unlock()

	m := &SessionMetrics{
		SessionID: a.sessionID,
		StartedAt: a.startedAt,
		Value:     ValueStats{ByTier: make(map[string]int64)},
	}

	// Decisions and value distribution.
	rewardByID := make(map[string]int64)
	lastEvent := a.startedAt
	for _, ev := range a.decisions {
		m.Decisions.Total++
		rewardByID[ev.res.BountyID] = ev.res.RewardCents
		if ev.res.ShouldImplement {
			m.Decisions.Implement++
			m.Value.CommittedCents += ev.res.RewardCents
			m.Value.ByTier[ev.res.ValueTier] += ev.res.RewardCents
		} else {
			m.Decisions.Skip++
		}
		if ev.at.After(lastEvent) {
			lastEvent = ev.at
		}
	}
	if m.Decisions.Total > 0 {
		m.Decisions.ImplementRate = round1(float64(m.Decisions.Implement) / float64(m.Decisions.Total) * 100)
	}

	// Implementations.
	var totalDur time.Duration
	for _, ev := range a.impls {
		m.Implementation.Completed++
		if ev.success {
			m.Implementation.Succeeded++
			m.Value.DeliveredCents += rewardByID[ev.bountyID]
		} else {
			m.Implementation.Failed++
		}
		totalDur += ev.duration
		if ev.at.After(lastEvent) {
			lastEvent = ev.at
		}
	}
	m.Implementation.Started = m.Implementation.Completed + len(a.implOpen)
	if m.Implementation.Completed > 0 {
		m.Implementation.SuccessRatePct = round1(float64(m.Implementation.Succeeded) / float64(m.Implementation.Completed) * 100)
		m.Implementation.AvgDurationMinutes = round2(totalDur.Minutes() / float64(m.Implementation.Completed))
	}

	// Quality gates.
	for _, ev := range a.gates {
		m.Quality.Evaluated++
		if ev.passed {
			m.Quality.Passed++
		} else {
			m.Quality.Failed++
			for _, check := range ev.failed {
				if m.Quality.BlockerCounts == nil {
					m.Quality.BlockerCounts = make(map[string]int)
				}
				m.Quality.BlockerCounts[check]++
			}
		}
		if ev.at.After(lastEvent) {
			lastEvent = ev.at
		}
	}
	if m.Quality.Evaluated > 0 {
		m.Quality.FailureRatePct = round1(float64(m.Quality.Failed) / float64(m.Quality.Evaluated) * 100)
	}

	// Throughput is measured against the span from session start to the
	// last recorded event, not the wall clock, so a regenerated report
	// matches the previous one exactly.
	elapsed := lastEvent.Sub(a.startedAt)
	if elapsed > 0 {
		if m.Decisions.Total > 0 {
			m.Rates.DecisionsPerMinute = round2(float64(m.Decisions.Total) / elapsed.Minutes())
		}
		if m.Implementation.Completed > 0 {
			m.Rates.ImplementationsPerHour = round2(float64(m.Implementation.Completed) / elapsed.Hours())
		}
	} else if m.Decisions.Total > 0 || m.Implementation.Completed > 0 {
		m.Rates.Note = "session too short to estimate throughput"
	}

	m.Rates.EstimatedCostUSD = a.calc.Session(m.Implementation.Completed, m.Implementation.AvgDurationMinutes)
	m.Rates.EstimatedROI = a.calc.ROI(float64(m.Value.DeliveredCents)/100, m.Rates.EstimatedCostUSD)

	m.Bottlenecks = detectBottlenecks(a.cfg, m)
	return m
}
