package signal

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// wellSpecifiedBody is long enough to clear the insufficient-detail rule
// and trips the positive structure signals without any red-flag phrases.
const wellSpecifiedBody = `## Summary
The pagination component skips the last page when the result count is an exact multiple of the page size.

## Steps to reproduce
1. Seed the database with exactly 40 rows and a page size of 20.
2. Navigate to the list view and press next twice.

Expected: the second page renders rows 21-40.
Actual: the second page is empty.

The fix must update the page-count calculation. Code example:
` + "```" + `
pages := (total + size - 1) / size
` + "```"

func TestExtract_WellSpecified(t *testing.T) {
	b := DefaultCatalog().Extract("Fix pagination off-by-one", wellSpecifiedBody)

	assert.True(t, b.HasCodeExamples)
	assert.True(t, b.SpecificRequirements)
	assert.True(t, b.WellDefined)
	assert.False(t, b.MentionsIntegration)
	assert.False(t, b.MentionsArchitecture)
	assert.False(t, b.SubjectiveCriteria)
	assert.False(t, b.ScopeHeavy)
	assert.Empty(t, b.RedFlags)
}

func TestExtract_RedFlags(t *testing.T) {
	pad := strings.Repeat("The change is described in the linked document with screenshots attached. ", 4)

	tests := []struct {
		name  string
		title string
		body  string
		flags []string
	}{
		{
			name:  "multiple repositories",
			title: "Sync feature",
			body:  "This change spans multiple repos and needs synchronized merges. " + pad,
			flags: []string{FlagMultipleRepositories},
		},
		{
			name:  "vague requirements",
			title: "Improve startup",
			body:  "We should somehow make startup faster, not sure what the best approach is. " + pad,
			flags: []string{FlagVagueRequirements},
		},
		{
			name:  "domain expertise",
			title: "Codec work",
			body:  "Requires domain expertise in video codecs to get the bitstream right. " + pad,
			flags: []string{FlagDomainExpertise},
		},
		{
			name:  "maintainer coordination",
			title: "API addition",
			body:  "You will need to coordinate with upstream before merging this. " + pad,
			flags: []string{FlagMaintainerCoordination},
		},
		{
			name:  "architecture change",
			title: "Plugin system",
			body:  "This is a breaking change to the plugin loading path. " + pad,
			flags: []string{FlagArchitectureChange},
		},
		{
			name:  "empty body insufficient detail",
			title: "Fix it",
			body:  "",
			flags: []string{FlagInsufficientDetail},
		},
	}

	catalog := DefaultCatalog()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := catalog.Extract(tt.title, tt.body)
			assert.Equal(t, tt.flags, b.RedFlags)
		})
	}
}

func TestExtract_FlagOrderFollowsCatalog(t *testing.T) {
	body := "Somehow rework this across repos; you must coordinate with upstream first. " +
		strings.Repeat("Additional context lives in the linked thread. ", 4)

	b := DefaultCatalog().Extract("Rework", body)
	assert.Equal(t, []string{
		FlagVagueRequirements,
		FlagMultipleRepositories,
		FlagMaintainerCoordination,
	}, b.RedFlags)
}

func TestExtract_ScopeHeavyDoesNotFlag(t *testing.T) {
	body := "A complete rewrite of the import layer, details in the attached design document. " +
		strings.Repeat("Each stage is described with its inputs and outputs. ", 4)

	b := DefaultCatalog().Extract("Importer", body)
	assert.True(t, b.ScopeHeavy)
	assert.NotContains(t, b.RedFlags, FlagLowRewardForScope)
}

func TestExtract_SubjectivitySetsBothSignalAndFlag(t *testing.T) {
	body := "Make the dashboard beautiful and consistent with the brand guidelines. " +
		strings.Repeat("Reference screenshots are attached to the issue. ", 4)

	b := DefaultCatalog().Extract("Dashboard polish", body)
	assert.True(t, b.SubjectiveCriteria)
	assert.Contains(t, b.RedFlags, FlagAestheticSubjectivity)
}

func TestExtract_WordCount(t *testing.T) {
	b := DefaultCatalog().Extract("one two", "three four five")
	assert.Equal(t, 5, b.WordCount)
}

func TestExtract_CaseInsensitive(t *testing.T) {
	body := "This spans MULTIPLE REPOS and will take a while. " +
		strings.Repeat("More context is in the tracking issue. ", 5)

	b := DefaultCatalog().Extract("Sync", body)
	assert.Contains(t, b.RedFlags, FlagMultipleRepositories)
}

func TestExtract_Deterministic(t *testing.T) {
	catalog := DefaultCatalog()
	first := catalog.Extract("Fix pagination", wellSpecifiedBody)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, catalog.Extract("Fix pagination", wellSpecifiedBody))
	}
}

func TestLoadCatalog_EmptyPathReturnsDefault(t *testing.T) {
	c, err := LoadCatalog("")
	require.NoError(t, err)
	assert.Equal(t, DefaultCatalog(), c)
}

func TestLoadCatalog_YAML(t *testing.T) {
	path := t.TempDir() + "/catalog.yaml"
	content := `
rules:
  - name: vague-requirements
    category: critical
    phrases: ["somehow", "maybe"]
  - name: insufficient-detail
    category: warning
min_body_chars: 50
code_example_phrases: ["` + "```" + `"]
requirement_phrases: ["must "]
structure_phrases: ["## "]
integration_phrases: ["integration"]
architecture_phrases: ["architecture"]
`
	require.NoError(t, writeFile(path, content))

	c, err := LoadCatalog(path)
	require.NoError(t, err)
	assert.Len(t, c.Rules, 2)
	assert.Equal(t, 50, c.MinBodyChars)
	assert.True(t, c.Critical(FlagVagueRequirements))

	b := c.Extract("Task", "We should maybe do this somehow.")
	assert.Equal(t, []string{FlagVagueRequirements, FlagInsufficientDetail}, b.RedFlags)
}

func TestLoadCatalog_InvalidCatalog(t *testing.T) {
	path := t.TempDir() + "/bad.yaml"
	content := `
rules:
  - name: vague-requirements
    category: critical
`
	require.NoError(t, writeFile(path, content))

	_, err := LoadCatalog(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no trigger phrases")
}

func TestCatalogValidate_DuplicateRule(t *testing.T) {
	c := DefaultCatalog()
	c.Rules = append(c.Rules, c.Rules[0])
	err := c.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate rule")
}

func TestCritical(t *testing.T) {
	c := DefaultCatalog()
	assert.True(t, c.Critical(FlagVagueRequirements))
	assert.True(t, c.Critical(FlagMultipleRepositories))
	assert.True(t, c.Critical(FlagDomainExpertise))
	assert.False(t, c.Critical(FlagMaintainerCoordination))
	assert.False(t, c.Critical(FlagLowRewardForScope))
	assert.False(t, c.Critical("unknown-flag"))
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o644)
}
