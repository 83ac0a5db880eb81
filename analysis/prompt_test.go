package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/coach/rubric"
)

func TestBuildPrompt_EmbedsCriteriaVerbatim(t *testing.T) {
	rub := testRubric()

	prompt, err := BuildPrompt(rubric.DimensionDiscovery, rubric.RoleAE, "Rep: hello.", rub, "")
	require.NoError(t, err)

	assert.Contains(t, prompt, "open_questions (weight 60, max score 12)")
	assert.Contains(t, prompt, "pain_identification (weight 40, max score 8)")
	assert.Contains(t, prompt, "rubric version 1.0.0")
	assert.Contains(t, prompt, "The total achievable score is 20.")
	assert.Contains(t, prompt, "Rep: hello.")
	assert.Contains(t, prompt, `"status": "met" | "partial" | "missed"`)
}

func TestBuildPrompt_ProductKnowledgeRequiresContent(t *testing.T) {
	rub := &rubric.Version{
		Role:      rubric.RoleAE,
		Dimension: rubric.DimensionProductKnowledge,
		Version:   "1.0.0",
		Criteria: []rubric.Criterion{
			{Name: "claim_accuracy", Description: "Claims match docs", Weight: 100, MaxScore: 10},
		},
	}

	_, err := BuildPrompt(rubric.DimensionProductKnowledge, rubric.RoleAE, "Rep: hello.", rub, "")
	require.Error(t, err)
	assert.True(t, IsKind(err, KindMissingKnowledgeBase))

	prompt, err := BuildPrompt(rubric.DimensionProductKnowledge, rubric.RoleAE, "Rep: hello.", rub,
		"## Pricing\n\nStarter tier is $49/seat.")
	require.NoError(t, err)
	assert.Contains(t, prompt, "$49/seat")
}

func TestBuildPrompt_OtherDimensionsIgnoreKB(t *testing.T) {
	rub := testRubric()

	prompt, err := BuildPrompt(rubric.DimensionDiscovery, rubric.RoleAE, "Rep: hello.", rub,
		"kb content that should not appear")
	require.NoError(t, err)
	assert.NotContains(t, prompt, "kb content that should not appear")
}

func TestBuildPrompt_RequiresRubricAndTranscript(t *testing.T) {
	_, err := BuildPrompt(rubric.DimensionDiscovery, rubric.RoleAE, "text", nil, "")
	require.Error(t, err)

	_, err = BuildPrompt(rubric.DimensionDiscovery, rubric.RoleAE, "", testRubric(), "")
	require.Error(t, err)
}
