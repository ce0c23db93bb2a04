// Package signal extracts structured risk and complexity signals from raw
// bounty text. Detection is plain case-insensitive substring matching over a
// configuration catalog, deliberately not NLP: the full catalog is data so
// it can be tested verbatim and extended without touching scoring code.
package signal

import (
	"fmt"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Red-flag names. These strings are part of the external contract: they
// appear in tracking blocks, quick-score results, and reasoning traces.
const (
	FlagVagueRequirements      = "vague-requirements"
	FlagMultipleRepositories   = "multiple-repositories"
	FlagDomainExpertise        = "domain-expertise"
	FlagMaintainerCoordination = "maintainer-coordination"
	FlagAestheticSubjectivity  = "aesthetic-subjectivity"
	FlagArchitectureChange     = "architecture-change"
	FlagInsufficientDetail     = "insufficient-detail"
	FlagLowRewardForScope      = "low-reward-for-scope"
)

// Category separates flags that kill a bounty outright from ones that
// merely degrade its score.
type Category string

const (
	CategoryCritical Category = "critical"
	CategoryWarning  Category = "warning"
)

// Rule is one (flag-name, trigger-phrases, category) tuple.
// Two rules carry no phrases and are evaluated specially:
// insufficient-detail fires on body length under MinBodyChars, and
// low-reward-for-scope needs the reward amount, so the extractor only marks
// the bundle scope-heavy and the quick scorer applies the flag.
type Rule struct {
	Name     string   `yaml:"name" json:"name"`
	Category Category `yaml:"category" json:"category"`
	Phrases  []string `yaml:"phrases,omitempty" json:"phrases,omitempty"`
}

// Catalog is the full detection configuration: the red-flag rules plus the
// phrase sets behind the boolean bundle signals.
type Catalog struct {
	Rules        []Rule `yaml:"rules"`
	MinBodyChars int    `yaml:"min_body_chars"`

	CodeExamplePhrases  []string `yaml:"code_example_phrases"`
	RequirementPhrases  []string `yaml:"requirement_phrases"`
	StructurePhrases    []string `yaml:"structure_phrases"`
	IntegrationPhrases  []string `yaml:"integration_phrases"`
	ArchitecturePhrases []string `yaml:"architecture_phrases"`
}

// DefaultCatalog returns the built-in detection catalog.
func DefaultCatalog() Catalog {
	return Catalog{
		Rules: []Rule{
			{
				Name:     FlagVagueRequirements,
				Category: CategoryCritical,
				Phrases: []string{
					"somehow", "possibly", "maybe", "not sure",
					"figure out", "some way", "tbd", "to be determined",
				},
			},
			{
				Name:     FlagMultipleRepositories,
				Category: CategoryCritical,
				Phrases: []string{
					"multiple repos", "multiple repositories", "across repositories",
					"across repos", "several repos", "both repositories",
				},
			},
			{
				Name:     FlagDomainExpertise,
				Category: CategoryCritical,
				Phrases: []string{
					"domain expertise", "domain knowledge", "deep understanding of",
					"expert in", "specialized knowledge", "familiarity with the internals",
				},
			},
			{
				Name:     FlagMaintainerCoordination,
				Category: CategoryWarning,
				Phrases: []string{
					"coordinate with", "maintainer approval", "discuss with the maintainers",
					"sign-off from", "upstream approval",
				},
			},
			{
				Name:     FlagAestheticSubjectivity,
				Category: CategoryWarning,
				Phrases: []string{
					"beautiful", "elegant", "intuitive", "polished",
					"look and feel", "visually appealing", "clean design",
				},
			},
			{
				Name:     FlagArchitectureChange,
				Category: CategoryWarning,
				Phrases: []string{
					"rearchitect", "redesign", "architecture change",
					"restructure the", "breaking change",
				},
			},
			{
				Name:     FlagInsufficientDetail,
				Category: CategoryWarning,
			},
			{
				Name:     FlagLowRewardForScope,
				Category: CategoryWarning,
				Phrases: []string{
					"entire", "complete rewrite", "full rewrite",
					"end-to-end", "overhaul", "all platforms",
				},
			},
		},
		MinBodyChars: 200,

		CodeExamplePhrases: []string{
			"```", "code example", "for example:", "sample code", "snippet",
		},
		RequirementPhrases: []string{
			"must ", "should ", "shall ", "required", "acceptance criteria",
			"expected behavior",
		},
		StructurePhrases: []string{
			"## ", "acceptance criteria", "steps to reproduce",
			"expected:", "actual:", "1.", "- [ ]",
		},
		IntegrationPhrases: []string{
			"integration", "integrate with", "third-party api",
			"webhook", "oauth",
		},
		ArchitecturePhrases: []string{
			"architecture", "rearchitect", "redesign", "restructure",
		},
	}
}

// LoadCatalog reads a catalog from a YAML file. An empty path returns the
// built-in default.
func LoadCatalog(path string) (Catalog, error) {
	if path == "" {
		return DefaultCatalog(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, eris.Wrapf(err, "signal: read catalog %s", path)
	}

	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Catalog{}, eris.Wrapf(err, "signal: parse catalog %s", path)
	}
	if c.MinBodyChars <= 0 {
		c.MinBodyChars = DefaultCatalog().MinBodyChars
	}
	if err := c.Validate(); err != nil {
		return Catalog{}, err
	}
	return c, nil
}

// Validate checks the catalog is internally consistent.
func (c Catalog) Validate() error {
	var errs []string

	seen := make(map[string]bool, len(c.Rules))
	for _, r := range c.Rules {
		if r.Name == "" {
			errs = append(errs, "rule with empty name")
			continue
		}
		if seen[r.Name] {
			errs = append(errs, fmt.Sprintf("duplicate rule %q", r.Name))
		}
		seen[r.Name] = true

		if r.Category != CategoryCritical && r.Category != CategoryWarning {
			errs = append(errs, fmt.Sprintf("rule %q has unknown category %q", r.Name, r.Category))
		}
		// Only the length-based rule may omit phrases.
		if len(r.Phrases) == 0 && r.Name != FlagInsufficientDetail {
			errs = append(errs, fmt.Sprintf("rule %q has no trigger phrases", r.Name))
		}
	}
	if c.MinBodyChars <= 0 {
		errs = append(errs, "min_body_chars must be > 0")
	}

	if len(errs) > 0 {
		return eris.Errorf("signal: catalog validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Critical reports whether the named flag is in the critical category.
// Unknown flags are treated as warnings.
func (c Catalog) Critical(name string) bool {
	for _, r := range c.Rules {
		if r.Name == name {
			return r.Category == CategoryCritical
		}
	}
	return false
}
