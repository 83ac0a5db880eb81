package analysis

import (
	"github.com/c360studio/coach/cache"
	"github.com/c360studio/coach/rubric"
)

// Status describes how well a dimension's criteria were satisfied.
type Status string

const (
	StatusMet     Status = "met"
	StatusPartial Status = "partial"
	StatusMissed  Status = "missed"
)

// IsValid reports whether s is a known status value.
func (s Status) IsValid() bool {
	switch s {
	case StatusMet, StatusPartial, StatusMissed:
		return true
	}
	return false
}

// Evidence cites a transcript span supporting a finding.
type Evidence struct {
	TimestampStart string `json:"timestampStart"`
	TimestampEnd   string `json:"timestampEnd"`
	Summary        string `json:"summary"`
	Impact         string `json:"impact"`
}

// DimensionResult is the scored output for one dimension. This is exactly
// the shape the model is asked to return and the shape that gets cached.
type DimensionResult struct {
	Score        float64    `json:"score"`
	MaxScore     float64    `json:"maxScore"`
	Status       Status     `json:"status"`
	Strengths    []string   `json:"strengths"`
	Improvements []string   `json:"improvements"`
	Evidence     []Evidence `json:"evidence"`
}

// DimensionError describes a failed dimension in the aggregate report.
type DimensionError struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
}

// DimensionOutcome is one dimension's slot in the aggregate report: either a
// result or an error, plus provenance.
type DimensionOutcome struct {
	*DimensionResult

	ServedFromCache bool            `json:"servedFromCache"`
	RubricVersion   string          `json:"rubricVersion,omitempty"`
	Error           *DimensionError `json:"error,omitempty"`
}

// Failed reports whether this dimension's pipeline ended in an error.
func (o *DimensionOutcome) Failed() bool {
	return o.Error != nil
}

// Report is the aggregate output of one Analyze call.
type Report struct {
	CallID string      `json:"callId,omitempty"`
	Role   rubric.Role `json:"role"`

	// OverallScore is the weight-normalized percentage over successful
	// dimensions only.
	OverallScore float64 `json:"overallScore"`

	Dimensions map[rubric.Dimension]*DimensionOutcome `json:"dimensions"`

	CacheStats cache.Stats `json:"cacheStats"`
}

// Request describes one analysis run.
type Request struct {
	// Transcript is the raw call text. When empty, CallID is resolved
	// through the transcript store.
	Transcript string `json:"transcript,omitempty"`

	// CallID identifies the call for reporting and transcript lookup.
	CallID string `json:"callId,omitempty"`

	// Dimensions to score. Empty means the configured default set.
	Dimensions []rubric.Dimension `json:"dimensions,omitempty"`

	// Role selects which rubrics apply. Empty means the configured default.
	Role rubric.Role `json:"role,omitempty"`

	// ForceReanalysis skips the cache read but still writes the fresh
	// result back.
	ForceReanalysis bool `json:"forceReanalysis,omitempty"`

	// UseCache defaults to true when nil.
	UseCache *bool `json:"useCache,omitempty"`

	// Product selects the knowledge base for the product-knowledge
	// dimension.
	Product string `json:"product,omitempty"`
}

func (r *Request) useCache() bool {
	return r.UseCache == nil || *r.UseCache
}
