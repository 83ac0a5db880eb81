package scenarios

import (
	"context"
	"fmt"
	"time"

	"github.com/c360studio/coach/analysis"
	"github.com/c360studio/coach/rubric"
	"github.com/c360studio/coach/test/e2e/client"
	"github.com/c360studio/coach/test/e2e/config"
)

// Every scenario scores a single dimension so mock LLM call counts map
// one-to-one onto analysis requests.
const (
	scenarioRole      = rubric.RoleAE
	scenarioDimension = rubric.DimensionEngagement
)

// baseScenario carries the clients and per-run state shared by all scenarios.
type baseScenario struct {
	cfg   *config.Config
	coach *client.CoachClient
	mock  *client.MockLLMClient

	// transcript is unique per run so earlier runs' cache entries never
	// satisfy this one.
	transcript string
}

func newBaseScenario(cfg *config.Config) baseScenario {
	return baseScenario{
		cfg:   cfg,
		coach: client.NewCoachClient(cfg.CoachURL, cfg.RequestTimeout),
		mock:  client.NewMockLLMClient(cfg.MockLLMURL),
	}
}

// setup verifies both servers are reachable and generates a fresh transcript.
func (b *baseScenario) setup(ctx context.Context, scenarioName string) error {
	if err := b.coach.Health(ctx); err != nil {
		return fmt.Errorf("coach server not reachable at %s: %w", b.cfg.CoachURL, err)
	}
	if _, err := b.mock.GetStats(ctx); err != nil {
		return fmt.Errorf("mock LLM not reachable at %s: %w", b.cfg.MockLLMURL, err)
	}

	b.transcript = fmt.Sprintf(`[00:00] Rep: Thanks for joining. What prompted you to look at us now?
[00:25] Prospect: Our forecast reviews keep slipping because the data is stale.
[01:10] Rep: How much time does your team spend reconciling it each week?
[01:30] Prospect: Easily a full day across the team.
[02:05] Rep: What would you do with that day back?
(run %s-%d)`, scenarioName, time.Now().UnixNano())

	return nil
}

// teardown purges the scenario's cache entries so runs stay independent.
func (b *baseScenario) teardown(ctx context.Context) error {
	_, err := b.coach.InvalidateCache(ctx, scenarioRole, scenarioDimension, "")
	return err
}

// analyze submits the scenario transcript for the single scenario dimension.
func (b *baseScenario) analyze(ctx context.Context, force bool) (*analysis.Report, error) {
	return b.coach.Analyze(ctx, &analysis.Request{
		Transcript:      b.transcript,
		Role:            scenarioRole,
		Dimensions:      []rubric.Dimension{scenarioDimension},
		ForceReanalysis: force,
	})
}

// outcomeOf extracts the scenario dimension's outcome from a report.
func outcomeOf(report *analysis.Report) (*analysis.DimensionOutcome, error) {
	outcome, ok := report.Dimensions[scenarioDimension]
	if !ok {
		return nil, fmt.Errorf("report has no %s outcome", scenarioDimension)
	}
	if outcome.Failed() {
		return nil, fmt.Errorf("%s scoring failed: %s (%s)",
			scenarioDimension, outcome.Error.Message, outcome.Error.Kind)
	}
	return outcome, nil
}

// llmCalls returns the mock server's total call count.
func (b *baseScenario) llmCalls(ctx context.Context) (int64, error) {
	stats, err := b.mock.GetStats(ctx)
	if err != nil {
		return 0, err
	}
	return stats.TotalCalls, nil
}
