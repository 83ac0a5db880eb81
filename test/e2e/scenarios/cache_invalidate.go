package scenarios

import (
	"context"
	"fmt"

	"github.com/c360studio/coach/test/e2e/config"
)

// CacheInvalidateScenario verifies the operator purge endpoint: after an
// invalidation, a previously cached analysis pays for a fresh model call.
type CacheInvalidateScenario struct {
	baseScenario
}

// NewCacheInvalidateScenario creates the scenario.
func NewCacheInvalidateScenario(cfg *config.Config) *CacheInvalidateScenario {
	return &CacheInvalidateScenario{baseScenario: newBaseScenario(cfg)}
}

// Name returns the scenario identifier.
func (s *CacheInvalidateScenario) Name() string { return "cache-invalidate" }

// Description returns what the scenario tests.
func (s *CacheInvalidateScenario) Description() string {
	return "Invalidating a role/dimension purges cached results"
}

// Setup verifies connectivity and prepares a fresh transcript.
func (s *CacheInvalidateScenario) Setup(ctx context.Context) error {
	return s.setup(ctx, s.Name())
}

// Execute runs the scenario.
func (s *CacheInvalidateScenario) Execute(ctx context.Context) (*Result, error) {
	result := NewResult(s.Name())
	defer result.Complete()

	err := stage(ctx, result, "seed the cache", func(ctx context.Context) error {
		report, err := s.analyze(ctx, false)
		if err != nil {
			return err
		}
		_, err = outcomeOf(report)
		return err
	})
	if err != nil {
		result.Error = err.Error()
		return result, nil
	}

	err = stage(ctx, result, "invalidate removes the entry", func(ctx context.Context) error {
		count, err := s.coach.InvalidateCache(ctx, scenarioRole, scenarioDimension, "")
		if err != nil {
			return err
		}
		if count < 1 {
			return fmt.Errorf("expected at least 1 invalidated entry, got %d", count)
		}
		result.SetMetric("invalidated", count)
		return nil
	})
	if err != nil {
		result.Error = err.Error()
		return result, nil
	}

	err = stage(ctx, result, "next analysis misses cache", func(ctx context.Context) error {
		before, err := s.llmCalls(ctx)
		if err != nil {
			return err
		}

		report, err := s.analyze(ctx, false)
		if err != nil {
			return err
		}
		outcome, err := outcomeOf(report)
		if err != nil {
			return err
		}
		if outcome.ServedFromCache {
			return fmt.Errorf("analysis served from cache after invalidation")
		}

		after, err := s.llmCalls(ctx)
		if err != nil {
			return err
		}
		if after != before+1 {
			return fmt.Errorf("expected a fresh llm call after invalidation (%d -> %d)", before, after)
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
func (s *CacheInvalidateScenario) Teardown(ctx context.Context) error {
	return s.teardown(ctx)
}
