package analysis

import (
	"fmt"
	"strings"

	"github.com/c360studio/coach/rubric"
)

// roleDescriptions give the model context for whose performance it is
// judging. Keyed by the closed role enum.
var roleDescriptions = map[rubric.Role]string{
	rubric.RoleAE:  "an account executive running a sales call",
	rubric.RoleSE:  "a solutions engineer supporting a technical evaluation",
	rubric.RoleCSM: "a customer success manager running an account review",
}

// dimensionFocus states what each dimension measures, in prompt language.
var dimensionFocus = map[rubric.Dimension]string{
	rubric.DimensionDiscovery:         "how thoroughly the rep uncovered the prospect's situation, pain, and buying process",
	rubric.DimensionEngagement:        "how well the rep kept the prospect engaged, including talk-time balance and responsiveness",
	rubric.DimensionObjectionHandling: "how the rep surfaced, acknowledged, and resolved objections",
	rubric.DimensionProductKnowledge:  "whether the rep's product claims were accurate against the reference documentation",
	rubric.DimensionNextSteps:         "whether the call closed with concrete, mutually agreed next steps",
}

// BuildPrompt renders the scoring instructions for one dimension. Criteria
// names, weights, and max scores from the resolved rubric version are
// embedded verbatim. The product-knowledge dimension requires knowledge-base
// content and fails fast without it, before any LLM spend.
func BuildPrompt(dimension rubric.Dimension, role rubric.Role, transcript string, rub *rubric.Version, kbContent string) (string, error) {
	if rub == nil {
		return "", fmt.Errorf("rubric is required")
	}
	if transcript == "" {
		return "", fmt.Errorf("transcript is required")
	}

	if dimension == rubric.DimensionProductKnowledge && kbContent == "" {
		return "", NewError(KindMissingKnowledgeBase, dimension,
			fmt.Errorf("product-knowledge scoring requires knowledge-base content"))
	}

	var sb strings.Builder

	fmt.Fprintf(&sb, "You are a sales coaching analyst. Evaluate the performance of %s.\n\n",
		roleDescriptions[role])
	fmt.Fprintf(&sb, "Score the %q dimension: %s.\n\n", dimension, dimensionFocus[dimension])

	fmt.Fprintf(&sb, "Apply exactly these criteria (rubric version %s):\n\n", rub.Version)
	for _, c := range rub.Criteria {
		fmt.Fprintf(&sb, "- %s (weight %d, max score %d): %s\n",
			c.Name, c.Weight, c.MaxScore, c.Description)
	}
	fmt.Fprintf(&sb, "\nThe total achievable score is %d.\n", rub.MaxScore())

	if dimension == rubric.DimensionProductKnowledge {
		sb.WriteString("\nReference product documentation. Judge the accuracy of the rep's claims against this content only:\n\n")
		sb.WriteString(kbContent)
		sb.WriteString("\n")
	}

	sb.WriteString("\nTranscript:\n\n")
	sb.WriteString(transcript)
	sb.WriteString("\n\n")

	fmt.Fprintf(&sb, `Respond with a single JSON object and nothing else, in this exact shape:

{
  "score": <number, 0 to %d>,
  "maxScore": %d,
  "status": "met" | "partial" | "missed",
  "strengths": ["..."],
  "improvements": ["..."],
  "evidence": [
    {"timestampStart": "MM:SS", "timestampEnd": "MM:SS", "summary": "...", "impact": "..."}
  ]
}

Evidence timestamps must refer to moments in the transcript. Do not include
any prose outside the JSON object.`, rub.MaxScore(), rub.MaxScore())

	return sb.String(), nil
}
