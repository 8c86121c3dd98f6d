package scorer_test

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheTrueAI/stellenscout/internal/cache"
	"github.com/TheTrueAI/stellenscout/internal/llm"
	"github.com/TheTrueAI/stellenscout/internal/model"
	"github.com/TheTrueAI/stellenscout/internal/scorer"
)

func listings(n int) []model.JobListing {
	out := make([]model.JobListing, n)
	for i := range out {
		out[i] = model.JobListing{
			Title: fmt.Sprintf("Job %d", i),
			Link:  fmt.Sprintf("https://jobs.example/%d", i),
		}
	}
	return out
}

func newEngine(score scorer.ScoreFunc) *scorer.Engine {
	return scorer.NewEngine(score, cache.New(cache.NewMemoryBackend()), 4)
}

var profile = &model.CandidateProfile{Skills: []string{"Go"}, ExperienceLevel: model.LevelSenior}

func TestEvaluateAll_OnePairPerInput(t *testing.T) {
	jobs := listings(10)
	failed := map[string]bool{jobs[1].URL(): true, jobs[4].URL(): true, jobs[7].URL(): true}

	engine := newEngine(func(_ context.Context, _ *model.CandidateProfile, j model.JobListing) (model.Evaluation, error) {
		if failed[j.URL()] {
			return model.Evaluation{}, &llm.APIError{StatusCode: 503}
		}
		return model.Evaluation{Score: 80, Reasoning: "fine"}, nil
	})

	out, err := engine.EvaluateAll(context.Background(), profile, jobs)
	require.NoError(t, err)
	require.Len(t, out, 10, "every input listing must yield exactly one pair")

	fallbacks := 0
	for _, ej := range out {
		if failed[ej.Job.URL()] {
			fallbacks++
			assert.Equal(t, scorer.FallbackScore, ej.Evaluation.Score)
			assert.Contains(t, ej.Evaluation.Reasoning, "Could not evaluate")
			assert.Empty(t, ej.Evaluation.MissingSkills)
		}
	}
	assert.Equal(t, 3, fallbacks)
}

func TestEvaluateAll_SortedDescendingStableTies(t *testing.T) {
	jobs := listings(4)
	scores := map[string]int{
		jobs[0].URL(): 20,
		jobs[1].URL(): 90,
		jobs[2].URL(): 90,
		jobs[3].URL(): 55,
	}

	engine := newEngine(func(_ context.Context, _ *model.CandidateProfile, j model.JobListing) (model.Evaluation, error) {
		return model.Evaluation{Score: scores[j.URL()]}, nil
	})

	out, err := engine.EvaluateAll(context.Background(), profile, jobs)
	require.NoError(t, err)
	require.Len(t, out, 4)

	got := make([]int, len(out))
	for i, ej := range out {
		got[i] = ej.Evaluation.Score
	}
	assert.Equal(t, []int{90, 90, 55, 20}, got)

	// The two 90s keep their input order.
	assert.Equal(t, jobs[1].URL(), out[0].Job.URL())
	assert.Equal(t, jobs[2].URL(), out[1].Job.URL())
}

func TestEvaluateAll_CachedEvaluationsSkipCollaborator(t *testing.T) {
	jobs := listings(3)
	c := cache.New(cache.NewMemoryBackend())

	var calls atomic.Int32
	engine := scorer.NewEngine(func(_ context.Context, _ *model.CandidateProfile, j model.JobListing) (model.Evaluation, error) {
		calls.Add(1)
		return model.Evaluation{Score: 60}, nil
	}, c, 2)

	// First run populates the evaluation cache.
	_, err := engine.EvaluateAll(context.Background(), profile, jobs)
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())

	// Second run over the same jobs is fully served from cache.
	out, err := engine.EvaluateAll(context.Background(), profile, jobs)
	require.NoError(t, err)
	assert.Len(t, out, 3)
	assert.Equal(t, int32(3), calls.Load(), "cached evaluations must not call the collaborator")
}

func TestEvaluateAll_FallbacksAreNotCached(t *testing.T) {
	jobs := listings(1)
	c := cache.New(cache.NewMemoryBackend())

	var calls atomic.Int32
	engine := scorer.NewEngine(func(_ context.Context, _ *model.CandidateProfile, _ model.JobListing) (model.Evaluation, error) {
		if calls.Add(1) == 1 {
			return model.Evaluation{}, &llm.ParseError{Snippet: "garbage"}
		}
		return model.Evaluation{Score: 75}, nil
	}, c, 1)

	out, err := engine.EvaluateAll(context.Background(), profile, jobs)
	require.NoError(t, err)
	assert.Equal(t, scorer.FallbackScore, out[0].Evaluation.Score)

	// The failure was not cached, so the next run re-evaluates and succeeds.
	out, err = engine.EvaluateAll(context.Background(), profile, jobs)
	require.NoError(t, err)
	assert.Equal(t, 75, out[0].Evaluation.Score)
}

func TestEvaluateAll_ProgressCallback(t *testing.T) {
	jobs := listings(5)

	engine := newEngine(func(_ context.Context, _ *model.CandidateProfile, _ model.JobListing) (model.Evaluation, error) {
		return model.Evaluation{Score: 50}, nil
	})

	var events [][2]int
	engine.OnProgress(func(done, total int) {
		events = append(events, [2]int{done, total})
	})

	_, err := engine.EvaluateAll(context.Background(), profile, jobs)
	require.NoError(t, err)
	require.Len(t, events, 5, "one progress event per completed evaluation")

	for i, ev := range events {
		assert.Equal(t, i+1, ev[0], "done must increase monotonically")
		assert.Equal(t, 5, ev[1])
	}
}

func TestEvaluateAll_EmptyInput(t *testing.T) {
	engine := newEngine(func(_ context.Context, _ *model.CandidateProfile, _ model.JobListing) (model.Evaluation, error) {
		t.Fatal("score func must not be called for empty input")
		return model.Evaluation{}, nil
	})

	out, err := engine.EvaluateAll(context.Background(), profile, nil)
	require.NoError(t, err)
	assert.Empty(t, out)
}
