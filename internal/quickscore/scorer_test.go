package quickscore

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/bounty-cli/internal/model"
	"github.com/sells-group/bounty-cli/internal/signal"
)

// wellSpecified has structure, requirements, and a code example, with no
// red-flag phrases and enough body to clear the detail threshold.
const wellSpecified = `## Summary
The exporter must escape commas inside quoted fields.

## Steps to reproduce
1. Export a row whose name contains a comma.
2. Open the file and observe the column shift.

Expected: one row per record.
Actual: the row splits in two.

` + "```" + `
w.Write([]string{name})
` + "```"

func newScorer() *Scorer {
	return New(signal.DefaultCatalog(), DefaultConfig())
}

func TestScore_WellSpecified(t *testing.T) {
	res := newScorer().Score("Fix CSV escaping", wellSpecified, 50_000)

	assert.Equal(t, 2, res.Complexity)
	assert.Equal(t, 80, res.SuccessProbability)
	assert.Equal(t, model.GoNoGoGo, res.GoNoGo)
	assert.Equal(t, model.RiskLow, res.RiskLevel)
	assert.Equal(t, 85, res.Confidence)
	assert.Equal(t, "~6h", res.EstimatedTimeline)
	assert.Empty(t, res.RedFlags)
}

func TestScore_EmptyBody(t *testing.T) {
	res := newScorer().Score("Fix the thing", "", 0)

	assert.Equal(t, 8, res.Complexity)
	assert.Equal(t, 20, res.SuccessProbability)
	assert.Equal(t, model.GoNoGoNoGo, res.GoNoGo)
	assert.Equal(t, model.RiskHigh, res.RiskLevel)
	assert.Equal(t, 55, res.Confidence)
	assert.Equal(t, []string{signal.FlagInsufficientDetail}, res.RedFlags)
}

func TestScore_CriticalFlagForcesNoGo(t *testing.T) {
	body := wellSpecified + "\nThe change spans multiple repos."

	// Max out the reward; the critical flag must still win.
	res := newScorer().Score("Cross-repo sync", body, 100_000_000)

	assert.Contains(t, res.RedFlags, signal.FlagMultipleRepositories)
	assert.Equal(t, model.GoNoGoNoGo, res.GoNoGo)
	assert.GreaterOrEqual(t, res.SuccessProbability, 50,
		"probability alone would have passed; the verdict override is doing the work")
}

func TestScore_LowRewardForScope(t *testing.T) {
	body := "A complete rewrite of the import layer is needed, every stage is in scope. " +
		strings.Repeat("The stages are listed in the design document with their inputs. ", 4)

	s := newScorer()

	low := s.Score("Importer rewrite", body, 10_000)
	assert.Contains(t, low.RedFlags, signal.FlagLowRewardForScope)

	high := s.Score("Importer rewrite", body, 50_000)
	assert.NotContains(t, high.RedFlags, signal.FlagLowRewardForScope)
}

func TestScore_RewardBonuses(t *testing.T) {
	s := newScorer()

	base := s.Score("Fix CSV escaping", wellSpecified, 0)
	medium := s.Score("Fix CSV escaping", wellSpecified, 50_000)
	high := s.Score("Fix CSV escaping", wellSpecified, 100_000)

	assert.Equal(t, base.SuccessProbability+10, medium.SuccessProbability)
	assert.Equal(t, base.SuccessProbability+15, high.SuccessProbability)
}

func TestScore_Bounds(t *testing.T) {
	// Extremes in both directions must stay inside the documented ranges.
	inputs := []struct {
		title  string
		body   string
		reward int64
	}{
		{"", "", 0},
		{"Fix", "somehow maybe not sure figure out tbd", 0},
		{"Rework", "rearchitect across repos, coordinate with upstream, domain expertise needed, beautiful overhaul of the entire system", 0},
		{"Easy", wellSpecified, 100_000_000},
		{"Long", strings.Repeat("word ", 500), 100_000},
	}

	s := newScorer()
	for _, in := range inputs {
		res := s.Score(in.title, in.body, in.reward)
		assert.GreaterOrEqual(t, res.Complexity, 1)
		assert.LessOrEqual(t, res.Complexity, 10)
		assert.GreaterOrEqual(t, res.SuccessProbability, 0)
		assert.LessOrEqual(t, res.SuccessProbability, 100)
		assert.GreaterOrEqual(t, res.Confidence, 20)
		assert.LessOrEqual(t, res.Confidence, 85)
		assert.NotEmpty(t, res.EstimatedTimeline)
	}
}

func TestVerdictCutoffs(t *testing.T) {
	s := newScorer()

	tests := []struct {
		probability int
		criticals   int
		want        model.GoNoGo
	}{
		{50, 0, model.GoNoGoGo},
		{49, 0, model.GoNoGoCaution},
		{30, 0, model.GoNoGoCaution},
		{29, 0, model.GoNoGoNoGo},
		{0, 0, model.GoNoGoNoGo},
		{100, 1, model.GoNoGoNoGo},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, s.verdict(tt.probability, tt.criticals))
	}
}

func TestRiskLevel(t *testing.T) {
	tests := []struct {
		flags      int
		complexity int
		want       model.RiskLevel
	}{
		{0, 1, model.RiskLow},
		{0, 5, model.RiskLow},
		{0, 6, model.RiskMedium},
		{1, 1, model.RiskMedium},
		{2, 7, model.RiskMedium},
		{3, 1, model.RiskHigh},
		{0, 8, model.RiskHigh},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, riskLevel(tt.flags, tt.complexity))
	}
}

func TestTimeline(t *testing.T) {
	tests := []struct {
		complexity int
		bundle     signal.Bundle
		want       string
	}{
		{1, signal.Bundle{WellDefined: true, HasCodeExamples: true}, "~3h"},
		{2, signal.Bundle{WellDefined: true, HasCodeExamples: true}, "~6h"},
		{3, signal.Bundle{WellDefined: true, HasCodeExamples: true}, "~1d"},
		{5, signal.Bundle{WellDefined: true}, "~3d"},
		{10, signal.Bundle{WellDefined: true}, "~5d"},
		{10, signal.Bundle{MentionsArchitecture: true}, "~2w"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, timeline(tt.complexity, tt.bundle))
	}
}

func TestScoreBounty_MissingRewardScoresAsZero(t *testing.T) {
	s := newScorer()
	b := &model.Bounty{ID: "x-1", Title: "Fix CSV escaping", Body: wellSpecified, Org: "acme"}

	fromBounty := s.ScoreBounty(b)
	fromZero := s.Score(b.Title, b.Body, 0)
	assert.Equal(t, fromZero, fromBounty)
}

func TestScore_NotesMentionCriticalOverride(t *testing.T) {
	res := newScorer().Score("Sync", "Spans multiple repos. "+strings.Repeat("Context in the thread. ", 10), 0)
	assert.Contains(t, res.Notes, "critical red flag forces no-go")
}
