// Package agent implements the LLM-backed pipeline steps: CV profiling,
// search-query generation, and per-listing screening.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/TheTrueAI/stellenscout/internal/cache"
	"github.com/TheTrueAI/stellenscout/internal/llm"
	"github.com/TheTrueAI/stellenscout/internal/model"
)

// Generator is the text-generation collaborator. *llm.Client satisfies it.
type Generator interface {
	Generate(ctx context.Context, prompt string, temperature float64, maxTokens int) (string, error)
}

// Agent drives the LLM steps and keeps their results in the content cache.
type Agent struct {
	gen   Generator
	cache *cache.Cache
}

// New constructs an Agent.
func New(gen Generator, c *cache.Cache) *Agent {
	return &Agent{gen: gen, cache: c}
}

// ProfileCandidate extracts a structured profile from raw CV text. The result
// is cached under the CV text's content hash, so calling it again with the
// same CV issues no collaborator calls. A malformed first response triggers
// one re-prompt recovery attempt before giving up.
func (a *Agent) ProfileCandidate(ctx context.Context, cvText string) (*model.CandidateProfile, error) {
	if p, ok, err := a.cache.LoadProfile(ctx, cvText); err != nil {
		return nil, fmt.Errorf("profile cache: %w", err)
	} else if ok {
		return p, nil
	}

	prompt := profilerSystemPrompt + "\n\nExtract the profile from this CV:\n\n" + cvText

	content, err := a.gen.Generate(ctx, prompt, 0.3, 8192)
	if err != nil {
		return nil, fmt.Errorf("profile generation: %w", err)
	}

	var profile model.CandidateProfile
	if err := llm.ParseInto(content, &profile); err != nil {
		var parseErr *llm.ParseError
		if !errors.As(err, &parseErr) {
			return nil, err
		}
		slog.Warn("profiler returned malformed JSON, re-prompting once")
		content, err = a.gen.Generate(ctx, prompt+repromptSuffix, 0.3, 8192)
		if err != nil {
			return nil, fmt.Errorf("profile re-prompt: %w", err)
		}
		if err := llm.ParseInto(content, &profile); err != nil {
			return nil, fmt.Errorf("profile re-prompt: %w", err)
		}
	}

	if err := a.cache.SaveProfile(ctx, cvText, &profile); err != nil {
		slog.Warn("failed to cache profile", "err", err)
	}
	return &profile, nil
}

// GenerateQueries produces n short search queries for the profile and target
// location, cached by (profile identity, location).
func (a *Agent) GenerateQueries(ctx context.Context, profile *model.CandidateProfile, location string, n int) ([]string, error) {
	profileHash := model.ProfileHash(profile)

	if queries, ok, err := a.cache.LoadQueries(ctx, profileHash, location); err != nil {
		return nil, fmt.Errorf("query cache: %w", err)
	} else if ok {
		return queries, nil
	}

	prompt := fmt.Sprintf(
		"%s\n\nGenerate exactly %d queries.\n\n%s",
		headhunterSystemPrompt, n, profileContext(profile, location),
	)

	content, err := a.gen.Generate(ctx, prompt, 0.5, 8192)
	if err != nil {
		return nil, fmt.Errorf("query generation: %w", err)
	}

	var queries []string
	if err := llm.ParseInto(content, &queries); err != nil {
		var parseErr *llm.ParseError
		if !errors.As(err, &parseErr) {
			return nil, err
		}
		slog.Warn("headhunter returned malformed JSON, re-prompting once")
		content, err = a.gen.Generate(ctx, prompt+repromptSuffix, 0.5, 8192)
		if err != nil {
			return nil, fmt.Errorf("query re-prompt: %w", err)
		}
		if err := llm.ParseInto(content, &queries); err != nil {
			return nil, fmt.Errorf("query re-prompt: %w", err)
		}
	}

	if len(queries) > n {
		queries = queries[:n]
	}

	if err := a.cache.SaveQueries(ctx, profileHash, location, queries); err != nil {
		slog.Warn("failed to cache queries", "err", err)
	}
	return queries, nil
}

// ScoreJob evaluates one listing against the profile. Errors are returned
// unscored; the scoring engine decides on fallback handling.
func (a *Agent) ScoreJob(ctx context.Context, profile *model.CandidateProfile, job model.JobListing) (model.Evaluation, error) {
	content, err := a.gen.Generate(ctx, screenerPrompt(profile, job), 0.2, 8192)
	if err != nil {
		return model.Evaluation{}, err
	}

	var eval model.Evaluation
	if err := llm.ParseInto(content, &eval); err != nil {
		return model.Evaluation{}, err
	}
	if eval.Score < 0 || eval.Score > 100 {
		return model.Evaluation{}, &llm.ParseError{Snippet: fmt.Sprintf("score %d out of range", eval.Score)}
	}
	return eval, nil
}
