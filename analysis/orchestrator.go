// Package analysis orchestrates coaching analysis: per-dimension pipelines
// that check the cache, prompt the model on a miss, validate its output, and
// write results back, then aggregate into one report.
package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/c360studio/coach/cache"
	"github.com/c360studio/coach/knowledge"
	"github.com/c360studio/coach/llm"
	"github.com/c360studio/coach/model"
	"github.com/c360studio/coach/rubric"
	"github.com/c360studio/coach/transcript"
)

// defaultLLMTimeout bounds one dimension's model call. The call runs on a
// context detached from the caller so a client disconnect never abandons a
// completion that is already billed.
const defaultLLMTimeout = 3 * time.Minute

// Analyzer drives analysis requests end to end.
type Analyzer struct {
	rubrics     *rubric.Registry
	store       cache.Store
	completer   llm.Completer
	knowledge   knowledge.Provider
	transcripts transcript.Store
	publisher   Publisher
	logger      *slog.Logger

	defaultRole       rubric.Role
	defaultDimensions []rubric.Dimension
	cacheTTL          time.Duration
	llmTimeout        time.Duration
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithKnowledge sets the knowledge-base provider used by the
// product-knowledge dimension.
func WithKnowledge(p knowledge.Provider) Option {
	return func(a *Analyzer) {
		a.knowledge = p
	}
}

// WithTranscripts sets the store used to resolve callID-only requests.
func WithTranscripts(s transcript.Store) Option {
	return func(a *Analyzer) {
		a.transcripts = s
	}
}

// WithPublisher sets the completion-event publisher.
func WithPublisher(p Publisher) Option {
	return func(a *Analyzer) {
		a.publisher = p
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Analyzer) {
		a.logger = logger
	}
}

// WithDefaultRole sets the role used when a request omits one.
func WithDefaultRole(role rubric.Role) Option {
	return func(a *Analyzer) {
		a.defaultRole = role
	}
}

// WithDefaultDimensions sets the dimensions scored when a request omits them.
func WithDefaultDimensions(dims []rubric.Dimension) Option {
	return func(a *Analyzer) {
		a.defaultDimensions = dims
	}
}

// WithCacheTTL sets the TTL applied to cache write-backs.
func WithCacheTTL(ttl time.Duration) Option {
	return func(a *Analyzer) {
		a.cacheTTL = ttl
	}
}

// WithLLMTimeout sets the per-dimension model call timeout.
func WithLLMTimeout(d time.Duration) Option {
	return func(a *Analyzer) {
		a.llmTimeout = d
	}
}

// NewAnalyzer creates an analyzer over the given rubric registry, cache
// store, and LLM completer.
func NewAnalyzer(rubrics *rubric.Registry, store cache.Store, completer llm.Completer, opts ...Option) *Analyzer {
	a := &Analyzer{
		rubrics:           rubrics,
		store:             store,
		completer:         completer,
		logger:            slog.Default(),
		defaultRole:       rubric.RoleAE,
		defaultDimensions: rubric.AllDimensions,
		cacheTTL:          cache.DefaultTTL,
		llmTimeout:        defaultLLMTimeout,
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// Analyze runs one analysis request. Dimension pipelines run concurrently
// and fail independently; the report always includes every requested
// dimension, with failures flagged rather than aborting siblings.
func (a *Analyzer) Analyze(ctx context.Context, req *Request) (*Report, error) {
	start := time.Now()
	defer func() {
		metricDuration.Observe(time.Since(start).Seconds())
	}()

	text, role, dims, err := a.validate(ctx, req)
	if err != nil {
		return nil, err
	}

	tHash := transcript.Hash(text)

	a.logger.Info("Starting analysis",
		"call_id", req.CallID,
		"role", role,
		"dimensions", len(dims),
		"force", req.ForceReanalysis,
		"use_cache", req.useCache())

	outcomes := make([]*DimensionOutcome, len(dims))
	g, gctx := errgroup.WithContext(ctx)
	for i, dim := range dims {
		g.Go(func() error {
			outcomes[i] = a.runDimension(gctx, req, dim, role, text, tHash)
			return nil
		})
	}
	// Pipelines report failures through their outcome slot, never as errors,
	// so the group can't abort siblings.
	_ = g.Wait()

	report := &Report{
		CallID:     req.CallID,
		Role:       role,
		Dimensions: make(map[rubric.Dimension]*DimensionOutcome, len(dims)),
		CacheStats: a.store.Stats(),
	}

	var scoreSum, maxSum float64
	for i, dim := range dims {
		outcome := outcomes[i]
		report.Dimensions[dim] = outcome
		if !outcome.Failed() && outcome.DimensionResult != nil {
			scoreSum += outcome.Score
			maxSum += outcome.MaxScore
		}
	}
	if maxSum > 0 {
		report.OverallScore = scoreSum / maxSum * 100
	}

	a.publishCompleted(req, report)

	return report, nil
}

// validate resolves the transcript text, role, and dimension set, rejecting
// request-scoped problems before any pipeline starts.
func (a *Analyzer) validate(ctx context.Context, req *Request) (string, rubric.Role, []rubric.Dimension, error) {
	text := req.Transcript
	if text == "" && req.CallID != "" && a.transcripts != nil {
		tr, err := a.transcripts.GetTranscript(ctx, req.CallID)
		if err != nil {
			return "", "", nil, NewError(KindValidation, "",
				fmt.Errorf("resolve transcript for call %q: %w", req.CallID, err))
		}
		text = tr.Text
	}
	if text == "" {
		return "", "", nil, NewError(KindValidation, "", fmt.Errorf("transcript is empty"))
	}

	role := req.Role
	if role == "" {
		role = a.defaultRole
	}
	if !role.IsValid() {
		return "", "", nil, NewError(KindValidation, "", fmt.Errorf("unknown role %q", req.Role))
	}

	requested := req.Dimensions
	if len(requested) == 0 {
		requested = a.defaultDimensions
	}

	// Deduplicate while preserving order: the report keys outcomes by
	// dimension, so a repeated dimension must not run a second pipeline or
	// count twice in the overall score.
	dims := make([]rubric.Dimension, 0, len(requested))
	seen := make(map[rubric.Dimension]struct{}, len(requested))
	for _, dim := range requested {
		if !dim.IsValid() {
			return "", "", nil, NewError(KindValidation, "", fmt.Errorf("unknown dimension %q", dim))
		}
		if _, ok := seen[dim]; ok {
			continue
		}
		seen[dim] = struct{}{}
		dims = append(dims, dim)
	}

	return text, role, dims, nil
}

// runDimension executes one dimension's pipeline: cache check, then on a
// miss prompt, model call, validation, and write-back. Failures land in the
// outcome's Error slot.
func (a *Analyzer) runDimension(ctx context.Context, req *Request, dim rubric.Dimension, role rubric.Role, text, tHash string) *DimensionOutcome {
	outcome, err := a.scoreDimension(ctx, req, dim, role, text, tHash)
	if err != nil {
		kind := KindOf(err)
		if kind == "" {
			kind = KindLLMUnavailable
		}

		a.logger.Warn("Dimension pipeline failed",
			"call_id", req.CallID,
			"dimension", dim,
			"kind", kind,
			"error", err)
		metricDimensionOutcomes.WithLabelValues(string(dim), string(kind)).Inc()

		return &DimensionOutcome{
			Error: &DimensionError{Kind: kind, Message: err.Error()},
		}
	}

	status := "computed"
	if outcome.ServedFromCache {
		status = "cache_hit"
	}
	metricDimensionOutcomes.WithLabelValues(string(dim), status).Inc()

	return outcome
}

func (a *Analyzer) scoreDimension(ctx context.Context, req *Request, dim rubric.Dimension, role rubric.Role, text, tHash string) (*DimensionOutcome, error) {
	rub, err := a.rubrics.Active(role, dim)
	if err != nil {
		return nil, NewError(KindRubricNotFound, dim, err)
	}

	key := cache.Key(dim, tHash, rub.Version, role)

	if req.useCache() && !req.ForceReanalysis {
		if entry, found := a.store.Get(ctx, key); found {
			result, err := decodeCached(entry)
			if err == nil {
				return &DimensionOutcome{
					DimensionResult: result,
					ServedFromCache: true,
					RubricVersion:   rub.Version,
				}, nil
			}
			// A corrupt entry is a miss; recompute and overwrite it.
			a.logger.Warn("Discarding undecodable cache entry",
				"key", key,
				"dimension", dim,
				"error", err)
		}
	}

	var kbContent string
	if dim == rubric.DimensionProductKnowledge {
		kbContent, err = a.knowledgeContent(ctx, req.Product)
		if err != nil {
			return nil, err
		}
	}

	prompt, err := BuildPrompt(dim, role, text, rub, kbContent)
	if err != nil {
		return nil, err
	}

	result, err := a.invokeModel(ctx, dim, prompt, rub)
	if err != nil {
		return nil, err
	}

	a.writeBack(key, result, rub)

	return &DimensionOutcome{
		DimensionResult: result,
		RubricVersion:   rub.Version,
	}, nil
}

// knowledgeContent fetches KB content for the product-knowledge dimension,
// failing fast before any model spend when none exists.
func (a *Analyzer) knowledgeContent(ctx context.Context, product string) (string, error) {
	if a.knowledge == nil {
		return "", NewError(KindMissingKnowledgeBase, rubric.DimensionProductKnowledge,
			fmt.Errorf("no knowledge-base provider configured"))
	}

	content, err := a.knowledge.Content(ctx, product)
	if err != nil {
		return "", NewError(KindMissingKnowledgeBase, rubric.DimensionProductKnowledge,
			fmt.Errorf("knowledge base for product %q: %w", product, err))
	}
	return content, nil
}

// invokeModel calls the LLM and validates its output. The call runs under a
// timeout context detached from the caller: once committed to a billed
// completion, a client disconnect should not abandon the result.
func (a *Analyzer) invokeModel(ctx context.Context, dim rubric.Dimension, prompt string, rub *rubric.Version) (*DimensionResult, error) {
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.llmTimeout)
	defer cancel()

	resp, err := a.completer.Complete(callCtx, llm.Request{
		Capability: string(model.CapabilityForDimension(string(dim))),
		Messages: []llm.Message{
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		metricLLMCalls.WithLabelValues(string(dim), "error").Inc()
		return nil, NewError(KindLLMUnavailable, dim, err)
	}
	metricLLMCalls.WithLabelValues(string(dim), "ok").Inc()

	result, err := ParseResult(resp.Content, rub)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// writeBack caches a freshly computed result. Runs on a background context:
// the result is already in hand, so caller cancellation is irrelevant, and
// a failed write only costs the next request a recompute.
func (a *Analyzer) writeBack(key string, result *DimensionResult, rub *rubric.Version) {
	payload, err := json.Marshal(result)
	if err != nil {
		a.logger.Error("Failed to marshal result for caching", "key", key, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	scope := cache.Scope{
		Role:          rub.Role,
		Dimension:     rub.Dimension,
		RubricVersion: rub.Version,
	}
	if err := a.store.Set(ctx, key, payload, scope, a.cacheTTL); err != nil {
		a.logger.Warn("Cache write-back failed", "key", key, "error", err)
	}
}

// decodeCached unmarshals a cache entry payload, transparently handling
// compression.
func decodeCached(entry *cache.Entry) (*DimensionResult, error) {
	data, err := entry.Data()
	if err != nil {
		return nil, err
	}

	var result DimensionResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// publishCompleted emits the completion event. Fire-and-forget: a publish
// failure is logged and never affects the response.
func (a *Analyzer) publishCompleted(req *Request, report *Report) {
	if a.publisher == nil {
		return
	}

	event := &CompletedEvent{
		CallID:      req.CallID,
		Role:        string(report.Role),
		CompletedAt: time.Now().UTC(),
		Report:      report,
	}
	if err := a.publisher.PublishCompleted(event); err != nil {
		a.logger.Warn("Failed to publish completion event", "call_id", req.CallID, "error", err)
	}
}
