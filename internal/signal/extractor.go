package signal

import "strings"

// Bundle is the derived signal set for one bounty. It is computed fresh on
// every extraction and never mutated afterwards.
type Bundle struct {
	HasCodeExamples      bool `json:"has_code_examples"`
	SpecificRequirements bool `json:"specific_requirements"`
	WellDefined          bool `json:"well_defined"`
	MentionsIntegration  bool `json:"mentions_integration"`
	MentionsArchitecture bool `json:"mentions_architecture"`
	SubjectiveCriteria   bool `json:"subjective_criteria"`

	// ScopeHeavy means the text matched the low-reward-for-scope phrases;
	// the flag itself is only applied once the reward amount is known.
	ScopeHeavy bool `json:"scope_heavy"`

	WordCount int `json:"word_count"`

	// RedFlags preserves catalog rule order.
	RedFlags []string `json:"red_flags,omitempty"`
}

// Extract derives a signal bundle from raw title and body text. Pure and
// deterministic; empty input is valid and simply trips the
// insufficient-detail rule.
func (c Catalog) Extract(title, body string) Bundle {
	text := strings.ToLower(title + "\n" + body)

	b := Bundle{
		WordCount: len(strings.Fields(title)) + len(strings.Fields(body)),
	}

	b.HasCodeExamples = containsAny(text, c.CodeExamplePhrases)
	b.SpecificRequirements = containsAny(text, c.RequirementPhrases)
	b.WellDefined = containsAny(text, c.StructurePhrases)
	b.MentionsIntegration = containsAny(text, c.IntegrationPhrases)
	b.MentionsArchitecture = containsAny(text, c.ArchitecturePhrases)

	for _, r := range c.Rules {
		switch r.Name {
		case FlagInsufficientDetail:
			if len(strings.TrimSpace(body)) < c.MinBodyChars {
				b.RedFlags = append(b.RedFlags, r.Name)
			}
		case FlagLowRewardForScope:
			if containsAny(text, r.Phrases) {
				b.ScopeHeavy = true
			}
		case FlagAestheticSubjectivity:
			if containsAny(text, r.Phrases) {
				b.SubjectiveCriteria = true
				b.RedFlags = append(b.RedFlags, r.Name)
			}
		default:
			if containsAny(text, r.Phrases) {
				b.RedFlags = append(b.RedFlags, r.Name)
			}
		}
	}

	return b
}

// containsAny reports whether any phrase appears in text. Phrases are
// matched lowercase; text must already be lowercased.
func containsAny(text string, phrases []string) bool {
	for _, p := range phrases {
		if p == "" {
			continue
		}
		if strings.Contains(text, strings.ToLower(p)) {
			return true
		}
	}
	return false
}
