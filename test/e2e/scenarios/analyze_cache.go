package scenarios

import (
	"context"
	"fmt"

	"github.com/c360studio/coach/test/e2e/config"
)

// AnalyzeCacheScenario verifies the core analysis flow: a first analysis
// reaches the LLM and caches its result, and a repeat of the identical
// request is served from cache without a second model call.
type AnalyzeCacheScenario struct {
	baseScenario
}

// NewAnalyzeCacheScenario creates the scenario.
func NewAnalyzeCacheScenario(cfg *config.Config) *AnalyzeCacheScenario {
	return &AnalyzeCacheScenario{baseScenario: newBaseScenario(cfg)}
}

// Name returns the scenario identifier.
func (s *AnalyzeCacheScenario) Name() string { return "analyze-cache" }

// Description returns what the scenario tests.
func (s *AnalyzeCacheScenario) Description() string {
	return "First analysis calls the LLM and caches; identical repeat is a cache hit"
}

// Setup verifies connectivity and prepares a fresh transcript.
func (s *AnalyzeCacheScenario) Setup(ctx context.Context) error {
	return s.setup(ctx, s.Name())
}

// Execute runs the scenario.
func (s *AnalyzeCacheScenario) Execute(ctx context.Context) (*Result, error) {
	result := NewResult(s.Name())
	defer result.Complete()

	baseline, err := s.llmCalls(ctx)
	if err != nil {
		result.Error = err.Error()
		result.AddError(result.Error)
		return result, nil
	}

	var firstScore float64

	err = stage(ctx, result, "first analysis misses cache", func(ctx context.Context) error {
		report, err := s.analyze(ctx, false)
		if err != nil {
			return err
		}
		outcome, err := outcomeOf(report)
		if err != nil {
			return err
		}
		if outcome.ServedFromCache {
			return fmt.Errorf("first analysis unexpectedly served from cache")
		}
		if outcome.Score <= 0 {
			return fmt.Errorf("expected a positive score, got %v", outcome.Score)
		}
		firstScore = outcome.Score
		result.SetMetric("first_score", outcome.Score)
		result.SetMetric("overall_score", report.OverallScore)
		return nil
	})
	if err != nil {
		result.Error = err.Error()
		return result, nil
	}

	err = stage(ctx, result, "llm called once", func(ctx context.Context) error {
		calls, err := s.llmCalls(ctx)
		if err != nil {
			return err
		}
		if calls != baseline+1 {
			return fmt.Errorf("expected %d llm calls, got %d", baseline+1, calls)
		}
		return nil
	})
	if err != nil {
		result.Error = err.Error()
		return result, nil
	}

	err = stage(ctx, result, "repeat served from cache", func(ctx context.Context) error {
		report, err := s.analyze(ctx, false)
		if err != nil {
			return err
		}
		outcome, err := outcomeOf(report)
		if err != nil {
			return err
		}
		if !outcome.ServedFromCache {
			return fmt.Errorf("repeat analysis not served from cache")
		}
		if outcome.Score != firstScore {
			return fmt.Errorf("cached score %v differs from original %v", outcome.Score, firstScore)
		}
		return nil
	})
	if err != nil {
		result.Error = err.Error()
		return result, nil
	}

	err = stage(ctx, result, "no second llm call", func(ctx context.Context) error {
		calls, err := s.llmCalls(ctx)
		if err != nil {
			return err
		}
		if calls != baseline+1 {
			return fmt.Errorf("cache hit still reached the llm: %d calls, expected %d", calls, baseline+1)
		}
		return nil
	})
	if err != nil {
		result.Error = err.Error()
		return result, nil
	}

	result.Success = true
	return result, nil
}

// Teardown purges the scenario's cache entries.
func (s *AnalyzeCacheScenario) Teardown(ctx context.Context) error {
	return s.teardown(ctx)
}
