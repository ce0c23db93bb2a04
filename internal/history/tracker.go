// Package history aggregates per-organization outcome statistics from the
// bounty corpus. The snapshot is built once per session with a full corpus
// scan and read-only afterwards; there is no incremental patching — rebuild
// to refresh.
package history

import "github.com/sells-group/bounty-cli/internal/model"

// DefaultAverageComplexity is assumed for organizations with no observed
// complexity scores.
const DefaultAverageComplexity = 5.0

// OrgHistory holds aggregated past-performance statistics for one
// organization. An attempt is any record with a recorded implementation
// status; a success additionally requires a completed implementation that
// was marked ready for release.
type OrgHistory struct {
	Org                       string  `json:"org"`
	TotalAttempts             int     `json:"total_attempts"`
	SuccessfulImplementations int     `json:"successful_implementations"`
	SuccessRate               float64 `json:"success_rate"`
	AverageComplexity         float64 `json:"average_complexity"`
	TotalValueCents           int64   `json:"total_value_cents"`

	complexitySum   int
	complexityCount int
}

// Snapshot maps organization handle to its aggregated history.
type Snapshot map[string]*OrgHistory

// Lookup returns the history for an organization, or nil when none exists.
// Safe to call on a nil snapshot.
func (s Snapshot) Lookup(org string) *OrgHistory {
	if s == nil {
		return nil
	}
	return s[org]
}

// Build makes a single pass over the corpus and aggregates per-organization
// statistics. Records that fail validation are excluded from the counts and
// returned as errors — a half-set success marker would silently undercount,
// so malformed records are surfaced rather than folded in. Each record is
// validated independently; one bad record never affects another.
func Build(corpus []model.Bounty) (Snapshot, []error) {
	snap := make(Snapshot)
	var malformed []error

	for i := range corpus {
		b := &corpus[i]
		if err := b.Validate(); err != nil {
			malformed = append(malformed, err)
			continue
		}

		h, ok := snap[b.Org]
		if !ok {
			h = &OrgHistory{Org: b.Org}
			snap[b.Org] = h
		}

		h.TotalValueCents += b.Reward()

		if b.Tracking.ImplementationStatus != "" {
			h.TotalAttempts++
			if b.Tracking.ImplementationStatus == model.ImplCompleted && b.Tracking.ReadyForRelease {
				h.SuccessfulImplementations++
			}
		}

		if b.Tracking.ComplexityScore >= 1 {
			h.complexitySum += b.Tracking.ComplexityScore
			h.complexityCount++
		}
	}

	for _, h := range snap {
		if h.TotalAttempts > 0 {
			h.SuccessRate = float64(h.SuccessfulImplementations) / float64(h.TotalAttempts) * 100
		}
		if h.complexityCount > 0 {
			h.AverageComplexity = float64(h.complexitySum) / float64(h.complexityCount)
		} else {
			h.AverageComplexity = DefaultAverageComplexity
		}
	}

	return snap, malformed
}
