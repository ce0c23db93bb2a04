package analytics

import (
	"fmt"

	"github.com/sells-group/bounty-cli/internal/config"
)

// BottleneckKind identifies the class of detected bottleneck.
type BottleneckKind string

const (
	BottleneckDuration    BottleneckKind = "duration"
	BottleneckReliability BottleneckKind = "reliability"
	BottleneckQuality     BottleneckKind = "quality"
)

// Bottleneck flags a session statistic that crossed its configured
// threshold.
type Bottleneck struct {
	Kind      BottleneckKind `json:"kind"`
	Message   string         `json:"message"`
	Observed  float64        `json:"observed"`
	Threshold float64        `json:"threshold"`
}

// detectBottlenecks checks the computed session statistics against the
// configured limits. Rates are only meaningful with at least one sample in
// the relevant denominator, which the caller guarantees by passing zero
// rates for empty categories.
func detectBottlenecks(cfg config.AnalyticsConfig, m *SessionMetrics) []Bottleneck {
	var out []Bottleneck

	if m.Implementation.Completed > 0 && cfg.MaxAvgImplementationMinutes > 0 &&
		m.Implementation.AvgDurationMinutes > cfg.MaxAvgImplementationMinutes {
		out = append(out, Bottleneck{
			Kind: BottleneckDuration,
			Message: fmt.Sprintf("average implementation took %.1f min, above the %.1f min limit",
				m.Implementation.AvgDurationMinutes, cfg.MaxAvgImplementationMinutes),
			Observed:  m.Implementation.AvgDurationMinutes,
			Threshold: cfg.MaxAvgImplementationMinutes,
		})
	}

	if m.Implementation.Completed > 0 && m.Implementation.SuccessRatePct < cfg.MinSuccessRatePct {
		out = append(out, Bottleneck{
			Kind: BottleneckReliability,
			Message: fmt.Sprintf("implementation success rate %.1f%% is below the %.1f%% floor",
				m.Implementation.SuccessRatePct, cfg.MinSuccessRatePct),
			Observed:  m.Implementation.SuccessRatePct,
			Threshold: cfg.MinSuccessRatePct,
		})
	}

	if m.Quality.Evaluated > 0 && m.Quality.FailureRatePct > cfg.MaxGateFailureRatePct {
		out = append(out, Bottleneck{
			Kind: BottleneckQuality,
			Message: fmt.Sprintf("quality gate failure rate %.1f%% exceeds %.1f%%",
				m.Quality.FailureRatePct, cfg.MaxGateFailureRatePct),
			Observed:  m.Quality.FailureRatePct,
			Threshold: cfg.MaxGateFailureRatePct,
		})
	}

	return out
}
