// Package rubric provides versioned coaching rubrics: the weighted criteria
// used to score a coaching dimension for a given evaluator role. Rubric
// content is owned externally; this package loads and serves immutable
// version snapshots.
package rubric

// Role is the business function of the evaluated speaker. The role determines
// which rubric applies, so it participates in cache addressing downstream.
type Role string

const (
	// RoleAE is an account executive.
	RoleAE Role = "ae"

	// RoleSE is a solutions engineer.
	RoleSE Role = "se"

	// RoleCSM is a customer success manager.
	RoleCSM Role = "csm"
)

// IsValid checks if a role string is a known role.
func (r Role) IsValid() bool {
	switch r {
	case RoleAE, RoleSE, RoleCSM:
		return true
	}
	return false
}

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// ParseRole converts a string to a Role, returning empty for invalid values.
func ParseRole(s string) Role {
	role := Role(s)
	if role.IsValid() {
		return role
	}
	return ""
}

// Dimension is one coaching axis being scored.
type Dimension string

const (
	// DimensionDiscovery covers discovery questioning and qualification.
	DimensionDiscovery Dimension = "discovery"

	// DimensionEngagement covers prospect engagement and talk-time balance.
	DimensionEngagement Dimension = "engagement"

	// DimensionObjectionHandling covers surfacing and resolving objections.
	DimensionObjectionHandling Dimension = "objection_handling"

	// DimensionProductKnowledge covers accuracy of product claims. Scoring
	// this dimension requires injected knowledge-base content.
	DimensionProductKnowledge Dimension = "product_knowledge"

	// DimensionNextSteps covers closing and mutual action plans.
	DimensionNextSteps Dimension = "next_steps"
)

// AllDimensions lists every known dimension in a stable order.
var AllDimensions = []Dimension{
	DimensionDiscovery,
	DimensionEngagement,
	DimensionObjectionHandling,
	DimensionProductKnowledge,
	DimensionNextSteps,
}

// IsValid checks if a dimension string is a known dimension.
func (d Dimension) IsValid() bool {
	for _, known := range AllDimensions {
		if d == known {
			return true
		}
	}
	return false
}

// String returns the string representation of the dimension.
func (d Dimension) String() string {
	return string(d)
}

// ParseDimension converts a string to a Dimension, returning empty for
// invalid values.
func ParseDimension(s string) Dimension {
	dim := Dimension(s)
	if dim.IsValid() {
		return dim
	}
	return ""
}

// Criterion is one weighted scoring criterion within a rubric version.
type Criterion struct {
	// Name identifies the criterion (embedded verbatim in prompts).
	Name string `yaml:"name" json:"name"`

	// Description explains what the criterion measures.
	Description string `yaml:"description" json:"description"`

	// Weight is the criterion's share of the dimension score. Weights for a
	// version sum to 100.
	Weight int `yaml:"weight" json:"weight"`

	// MaxScore is the maximum score the criterion can award.
	MaxScore int `yaml:"max_score" json:"max_score"`
}

// Version is an immutable snapshot of a rubric's criteria and weights.
// A content change never mutates a version in place; it produces a new
// version string, which changes the derived cache key downstream.
type Version struct {
	// Role is the evaluator role this rubric applies to.
	Role Role `yaml:"role" json:"role"`

	// Dimension is the coaching axis this rubric scores.
	Dimension Dimension `yaml:"dimension" json:"dimension"`

	// Version is the semantic version string identifying this snapshot.
	Version string `yaml:"version" json:"version"`

	// Criteria is the weighted criteria list.
	Criteria []Criterion `yaml:"criteria" json:"criteria"`
}

// MaxScore returns the total achievable score across all criteria.
func (v *Version) MaxScore() int {
	total := 0
	for _, c := range v.Criteria {
		total += c.MaxScore
	}
	return total
}

// weightSum returns the sum of criterion weights.
func (v *Version) weightSum() int {
	total := 0
	for _, c := range v.Criteria {
		total += c.Weight
	}
	return total
}
