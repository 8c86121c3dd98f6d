// Package scorer runs the bounded-concurrency evaluation of job listings
// against a candidate profile.
package scorer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/TheTrueAI/stellenscout/internal/cache"
	"github.com/TheTrueAI/stellenscout/internal/llm"
	"github.com/TheTrueAI/stellenscout/internal/model"
)

// DefaultConcurrency bounds in-flight scoring calls. Tuned for the
// collaborator's rate limits.
const DefaultConcurrency = 10

// FallbackScore is the neutral placeholder assigned when the collaborator
// cannot produce a real evaluation. One bad listing must never abort the
// batch.
const FallbackScore = 50

// The two failure classes keep the same neutral score but stay
// distinguishable in the stored reasoning and in the logs.
const (
	reasonAPIFailure   = "Could not evaluate (API error after retries)"
	reasonParseFailure = "Could not evaluate (failed to parse response)"
)

// ScoreFunc evaluates one listing against a profile. agent.Agent.ScoreJob
// satisfies it.
type ScoreFunc func(ctx context.Context, profile *model.CandidateProfile, job model.JobListing) (model.Evaluation, error)

// Engine fans scoring work out to a bounded worker pool and gathers the
// results into a deterministic order.
type Engine struct {
	score       ScoreFunc
	cache       *cache.Cache
	concurrency int64

	mu         sync.Mutex
	onProgress func(done, total int)
}

// NewEngine constructs an Engine. concurrency <= 0 selects the default.
func NewEngine(score ScoreFunc, c *cache.Cache, concurrency int) *Engine {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Engine{score: score, cache: c, concurrency: int64(concurrency)}
}

// OnProgress registers a callback invoked after each completed evaluation.
// The callback runs under the engine's lock and must not block.
func (e *Engine) OnProgress(fn func(done, total int)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onProgress = fn
}

// EvaluateAll scores every listing against the profile and returns one
// (listing, evaluation) pair per input, sorted by score descending with ties
// keeping their input order. Already-cached evaluations are reused without a
// collaborator call; fresh evaluations are cached only on the task's own
// success, so a cancelled batch leaves no partial fallback entries behind.
func (e *Engine) EvaluateAll(ctx context.Context, profile *model.CandidateProfile, jobs []model.JobListing) ([]model.EvaluatedJob, error) {
	if len(jobs) == 0 {
		return nil, nil
	}

	profileHash := model.ProfileHash(profile)
	pending, cached, err := e.cache.PartitionEvaluated(ctx, profileHash, jobs)
	if err != nil {
		return nil, fmt.Errorf("partition evaluations: %w", err)
	}

	fresh := make(map[string]model.EvaluatedJob, len(pending))
	var freshMu sync.Mutex

	sem := semaphore.NewWeighted(e.concurrency)
	total := len(pending)
	done := 0

	for _, job := range pending {
		if err := sem.Acquire(ctx, 1); err != nil {
			return nil, err
		}
		go func(job model.JobListing) {
			defer sem.Release(1)

			ej := e.evaluateOne(ctx, profileHash, profile, job)

			freshMu.Lock()
			fresh[job.URL()] = ej
			freshMu.Unlock()

			e.mu.Lock()
			done++
			if e.onProgress != nil {
				e.onProgress(done, total)
			}
			e.mu.Unlock()
		}(job)
	}

	// Wait for the pool to drain.
	if err := sem.Acquire(ctx, e.concurrency); err != nil {
		return nil, err
	}

	// Assemble in input order first so the final sort is stable on ties.
	out := make([]model.EvaluatedJob, 0, len(jobs))
	for _, job := range jobs {
		if ej, ok := cached[job.URL()]; ok {
			out = append(out, ej)
		} else if ej, ok := fresh[job.URL()]; ok {
			out = append(out, ej)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Evaluation.Score > out[j].Evaluation.Score
	})

	return out, nil
}

// evaluateOne scores a single listing, substituting the neutral fallback on
// any failure. Only real evaluations are written to the cache.
func (e *Engine) evaluateOne(ctx context.Context, profileHash string, profile *model.CandidateProfile, job model.JobListing) model.EvaluatedJob {
	eval, err := e.score(ctx, profile, job)
	if err != nil {
		return model.EvaluatedJob{Job: job, Evaluation: fallbackFor(err, job)}
	}

	ej := model.EvaluatedJob{Job: job, Evaluation: eval}
	if err := e.cache.SaveEvaluation(ctx, profileHash, ej); err != nil {
		slog.Warn("failed to cache evaluation", "job", job.URL(), "err", err)
	}
	return ej
}

func fallbackFor(err error, job model.JobListing) model.Evaluation {
	reason := reasonParseFailure
	class := "parse"
	if llm.IsTransient(err) {
		reason = reasonAPIFailure
		class = "transient-exhausted"
	} else {
		var parseErr *llm.ParseError
		if !errors.As(err, &parseErr) {
			reason = reasonAPIFailure
			class = "permanent"
		}
	}
	slog.Warn("scoring failed, assigning fallback",
		"job", job.URL(), "class", class, "err", err)

	return model.Evaluation{Score: FallbackScore, Reasoning: reason}
}
