// Package model provides capability-based model selection for coaching
// analysis. Instead of hardcoding model names, callers specify capabilities
// (scoring, fast) and the registry resolves them to available models with
// fallback chains.
package model

// Capability represents a semantic capability for model selection.
// Instead of specifying "claude-sonnet", callers specify "scoring" or "fast".
type Capability string

const (
	// CapabilityScoring is for rubric judgment: careful reading of a full
	// transcript against weighted criteria.
	CapabilityScoring Capability = "scoring"

	// CapabilityFast is for quick responses, simple tasks.
	CapabilityFast Capability = "fast"
)

// DimensionCapabilities maps coaching dimensions to their capability.
// Every dimension defaults to scoring; the table exists so an install can
// route a cheap dimension to a lighter tier.
var DimensionCapabilities = map[string]Capability{
	"discovery":          CapabilityScoring,
	"engagement":         CapabilityScoring,
	"objection_handling": CapabilityScoring,
	"product_knowledge":  CapabilityScoring,
	"next_steps":         CapabilityScoring,
}

// CapabilityForDimension returns the capability for a coaching dimension.
// Returns CapabilityScoring for unknown dimensions.
func CapabilityForDimension(dimension string) Capability {
	if c, ok := DimensionCapabilities[dimension]; ok {
		return c
	}
	return CapabilityScoring
}

// IsValid checks if a capability string is a known capability.
func (c Capability) IsValid() bool {
	switch c {
	case CapabilityScoring, CapabilityFast:
		return true
	}
	return false
}

// String returns the string representation of the capability.
func (c Capability) String() string {
	return string(c)
}

// ParseCapability converts a string to a Capability, returning empty for
// invalid values.
func ParseCapability(s string) Capability {
	c := Capability(s)
	if c.IsValid() {
		return c
	}
	return ""
}
