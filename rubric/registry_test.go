package rubric_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/c360studio/coach/rubric"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const discoveryRubric = `role: ae
dimension: discovery
active: "1.1.0"
versions:
  - version: "1.0.0"
    criteria:
      - name: open_questions
        description: Uses open-ended discovery questions
        weight: 60
        max_score: 10
      - name: pain_identification
        description: Identifies concrete business pain
        weight: 40
        max_score: 10
  - version: "1.1.0"
    criteria:
      - name: open_questions
        description: Uses open-ended discovery questions
        weight: 50
        max_score: 10
      - name: pain_identification
        description: Identifies concrete business pain
        weight: 30
        max_score: 10
      - name: budget_authority
        description: Qualifies budget and authority
        weight: 20
        max_score: 5
`

func writeRubricDir(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
	}
	return dir
}

func TestRegistry_Active(t *testing.T) {
	dir := writeRubricDir(t, map[string]string{"ae_discovery.yaml": discoveryRubric})

	reg, err := rubric.NewRegistry(dir)
	require.NoError(t, err)

	v, err := reg.Active(rubric.RoleAE, rubric.DimensionDiscovery)
	require.NoError(t, err)
	assert.Equal(t, "1.1.0", v.Version)
	assert.Len(t, v.Criteria, 3)
	assert.Equal(t, 25, v.MaxScore())
}

func TestRegistry_GetSpecificVersion(t *testing.T) {
	dir := writeRubricDir(t, map[string]string{"ae_discovery.yaml": discoveryRubric})

	reg, err := rubric.NewRegistry(dir)
	require.NoError(t, err)

	v, err := reg.Get(rubric.RoleAE, rubric.DimensionDiscovery, "1.0.0")
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", v.Version)
	assert.Len(t, v.Criteria, 2)
}

func TestRegistry_MissingRubric(t *testing.T) {
	dir := writeRubricDir(t, map[string]string{"ae_discovery.yaml": discoveryRubric})

	reg, err := rubric.NewRegistry(dir)
	require.NoError(t, err)

	// Other dimension's criteria must never be substituted
	_, err = reg.Active(rubric.RoleAE, rubric.DimensionEngagement)
	require.Error(t, err)
	assert.ErrorIs(t, err, rubric.ErrRubricNotFound)

	_, err = reg.Get(rubric.RoleAE, rubric.DimensionDiscovery, "9.9.9")
	require.Error(t, err)
	assert.ErrorIs(t, err, rubric.ErrRubricNotFound)
}

func TestRegistry_RejectsBadWeightSum(t *testing.T) {
	badRubric := `role: ae
dimension: engagement
versions:
  - version: "1.0.0"
    criteria:
      - name: talk_ratio
        description: Balanced talk time
        weight: 50
        max_score: 10
`
	dir := writeRubricDir(t, map[string]string{"bad.yaml": badRubric})

	_, err := rubric.NewRegistry(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "weights sum to 50")
}

func TestRegistry_RejectsUnknownRole(t *testing.T) {
	badRubric := `role: intern
dimension: discovery
versions:
  - version: "1.0.0"
    criteria:
      - name: x
        description: y
        weight: 100
        max_score: 10
`
	dir := writeRubricDir(t, map[string]string{"bad.yaml": badRubric})

	_, err := rubric.NewRegistry(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown role")
}

func TestRegistry_ActiveDefaultsToHighestVersion(t *testing.T) {
	noActive := `role: se
dimension: product_knowledge
versions:
  - version: "1.0.0"
    criteria:
      - name: accuracy
        description: Claims match documentation
        weight: 100
        max_score: 10
  - version: "1.2.0"
    criteria:
      - name: accuracy
        description: Claims match documentation
        weight: 100
        max_score: 10
`
	dir := writeRubricDir(t, map[string]string{"se_pk.yaml": noActive})

	reg, err := rubric.NewRegistry(dir)
	require.NoError(t, err)

	v, err := reg.Active(rubric.RoleSE, rubric.DimensionProductKnowledge)
	require.NoError(t, err)
	assert.Equal(t, "1.2.0", v.Version)
}

func TestRegistry_List(t *testing.T) {
	dir := writeRubricDir(t, map[string]string{"ae_discovery.yaml": discoveryRubric})

	reg, err := rubric.NewRegistry(dir)
	require.NoError(t, err)

	all := reg.List()
	require.Len(t, all, 2)
	assert.Equal(t, "1.0.0", all[0].Version)
	assert.Equal(t, "1.1.0", all[1].Version)
}

func TestStaticRegistry(t *testing.T) {
	reg, err := rubric.NewStaticRegistry(&rubric.Version{
		Role:      rubric.RoleAE,
		Dimension: rubric.DimensionDiscovery,
		Version:   "1.0.0",
		Criteria: []rubric.Criterion{
			{Name: "open_questions", Description: "d", Weight: 100, MaxScore: 10},
		},
	})
	require.NoError(t, err)

	v, err := reg.Active(rubric.RoleAE, rubric.DimensionDiscovery)
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", v.Version)
}

func TestWatcher_ReloadsOnVersionBump(t *testing.T) {
	dir := writeRubricDir(t, map[string]string{"ae_discovery.yaml": discoveryRubric})

	reg, err := rubric.NewRegistry(dir)
	require.NoError(t, err)

	w, err := rubric.NewWatcher(reg, rubric.WithDebounce(50*time.Millisecond))
	require.NoError(t, err)

	ctx := t.Context()
	require.NoError(t, w.Start(ctx))
	defer w.Stop() //nolint:errcheck

	bumped := `role: ae
dimension: discovery
active: "2.0.0"
versions:
  - version: "2.0.0"
    criteria:
      - name: open_questions
        description: Uses open-ended discovery questions
        weight: 100
        max_score: 10
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ae_discovery.yaml"), []byte(bumped), 0644))

	require.Eventually(t, func() bool {
		v, err := reg.Active(rubric.RoleAE, rubric.DimensionDiscovery)
		return err == nil && v.Version == "2.0.0"
	}, 3*time.Second, 25*time.Millisecond)
}

func TestParseHelpers(t *testing.T) {
	assert.Equal(t, rubric.RoleAE, rubric.ParseRole("ae"))
	assert.Equal(t, rubric.Role(""), rubric.ParseRole("manager"))
	assert.Equal(t, rubric.DimensionNextSteps, rubric.ParseDimension("next_steps"))
	assert.Equal(t, rubric.Dimension(""), rubric.ParseDimension("vibes"))
	assert.True(t, rubric.DimensionProductKnowledge.IsValid())
}
