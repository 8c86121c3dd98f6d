package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheTrueAI/stellenscout/internal/cache"
	"github.com/TheTrueAI/stellenscout/internal/model"
)

func newCache() *cache.Cache {
	return cache.New(cache.NewMemoryBackend())
}

func listing(url, title string) model.JobListing {
	return model.JobListing{Title: title, CompanyName: "acme", Link: url}
}

// ── Profile layer ───────────────────────────────────────────────────────────

func TestProfileCache_RoundTrip(t *testing.T) {
	c := newCache()
	ctx := context.Background()
	cv := "some cv text"

	_, ok, err := c.LoadProfile(ctx, cv)
	require.NoError(t, err)
	assert.False(t, ok, "empty cache must miss")

	p := &model.CandidateProfile{Skills: []string{"Go"}, ExperienceLevel: model.LevelSenior}
	require.NoError(t, c.SaveProfile(ctx, cv, p))

	got, ok, err := c.LoadProfile(ctx, cv)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, p, got)
}

func TestProfileCache_ChangedCVMisses(t *testing.T) {
	c := newCache()
	ctx := context.Background()

	p := &model.CandidateProfile{Skills: []string{"Go"}}
	require.NoError(t, c.SaveProfile(ctx, "cv v1", p))

	_, ok, err := c.LoadProfile(ctx, "cv v2")
	require.NoError(t, err)
	assert.False(t, ok, "a changed CV must derive a different key")
}

func TestProfileCache_Invalidate(t *testing.T) {
	c := newCache()
	ctx := context.Background()
	cv := "cv"

	require.NoError(t, c.SaveProfile(ctx, cv, &model.CandidateProfile{}))
	require.NoError(t, c.InvalidateProfile(ctx, cv))

	_, ok, err := c.LoadProfile(ctx, cv)
	require.NoError(t, err)
	assert.False(t, ok)
}

// ── Query layer ─────────────────────────────────────────────────────────────

func TestQueryCache_KeyedByProfileAndLocation(t *testing.T) {
	c := newCache()
	ctx := context.Background()

	require.NoError(t, c.SaveQueries(ctx, "hash-a", "Berlin", []string{"golang backend berlin"}))

	got, ok, err := c.LoadQueries(ctx, "hash-a", "Berlin")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []string{"golang backend berlin"}, got)

	// Different profile identity misses.
	_, ok, err = c.LoadQueries(ctx, "hash-b", "Berlin")
	require.NoError(t, err)
	assert.False(t, ok)

	// Different location misses.
	_, ok, err = c.LoadQueries(ctx, "hash-a", "Hamburg")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestQueryCache_SaveIsIdempotent(t *testing.T) {
	c := newCache()
	ctx := context.Background()
	queries := []string{"q1", "q2"}

	require.NoError(t, c.SaveQueries(ctx, "hash", "Berlin", queries))
	require.NoError(t, c.SaveQueries(ctx, "hash", "Berlin", queries))

	got, ok, err := c.LoadQueries(ctx, "hash", "Berlin")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, queries, got)
}

// ── Listings layer ──────────────────────────────────────────────────────────

func TestListings_MergeNotOverwrite(t *testing.T) {
	c := newCache()
	ctx := context.Background()
	day := time.Date(2026, 8, 23, 10, 0, 0, 0, time.UTC)

	a := listing("https://x/a", "A")
	b := listing("https://x/b", "B original")
	require.NoError(t, c.MergeListings(ctx, day, []model.JobListing{a, b}))

	// Second merge re-sends B with different metadata plus a new C.
	bv2 := listing("https://x/b", "B rewritten")
	cNew := listing("https://x/c", "C")
	require.NoError(t, c.MergeListings(ctx, day, []model.JobListing{bv2, cNew}))

	got, err := c.LoadListings(ctx, day)
	require.NoError(t, err)
	require.Len(t, got, 3)

	byURL := make(map[string]model.JobListing)
	for _, j := range got {
		byURL[j.URL()] = j
	}
	assert.Contains(t, byURL, "https://x/a")
	assert.Contains(t, byURL, "https://x/c")
	assert.Equal(t, "B original", byURL["https://x/b"].Title, "first-seen listing must win")
}

func TestListings_KeyedByUTCDate(t *testing.T) {
	c := newCache()
	ctx := context.Background()

	// Same calendar day in UTC, different wall-clock hours.
	morning := time.Date(2026, 8, 23, 1, 0, 0, 0, time.UTC)
	evening := time.Date(2026, 8, 23, 23, 0, 0, 0, time.UTC)
	nextDay := time.Date(2026, 8, 24, 1, 0, 0, 0, time.UTC)

	require.NoError(t, c.MergeListings(ctx, morning, []model.JobListing{listing("https://x/a", "A")}))

	got, err := c.LoadListings(ctx, evening)
	require.NoError(t, err)
	assert.Len(t, got, 1, "same UTC day must share one listing set")

	got, err = c.LoadListings(ctx, nextDay)
	require.NoError(t, err)
	assert.Empty(t, got, "next day starts empty")
}

func TestListings_SkipsEmptyURL(t *testing.T) {
	c := newCache()
	ctx := context.Background()
	day := time.Now()

	require.NoError(t, c.MergeListings(ctx, day, []model.JobListing{{Title: "no url"}}))

	got, err := c.LoadListings(ctx, day)
	require.NoError(t, err)
	assert.Empty(t, got)
}

// ── Evaluation layer ────────────────────────────────────────────────────────

func TestEvaluations_AppendAndPartition(t *testing.T) {
	c := newCache()
	ctx := context.Background()
	const profileHash = "abc123"

	a := listing("https://x/a", "A")
	b := listing("https://x/b", "B")

	require.NoError(t, c.SaveEvaluation(ctx, profileHash, model.EvaluatedJob{
		Job:        a,
		Evaluation: model.Evaluation{Score: 88, Reasoning: "good fit"},
	}))

	pending, cached, err := c.PartitionEvaluated(ctx, profileHash, []model.JobListing{a, b})
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "https://x/b", pending[0].URL())
	require.Contains(t, cached, "https://x/a")
	assert.Equal(t, 88, cached["https://x/a"].Evaluation.Score)
}

func TestEvaluations_DoNotTransferAcrossProfiles(t *testing.T) {
	c := newCache()
	ctx := context.Background()

	a := listing("https://x/a", "A")
	require.NoError(t, c.SaveEvaluation(ctx, "profile-v1", model.EvaluatedJob{
		Job: a, Evaluation: model.Evaluation{Score: 90},
	}))

	pending, cached, err := c.PartitionEvaluated(ctx, "profile-v2", []model.JobListing{a})
	require.NoError(t, err)
	assert.Len(t, pending, 1, "new profile identity must re-evaluate everything")
	assert.Empty(t, cached)
}

func TestEvaluations_Drop(t *testing.T) {
	c := newCache()
	ctx := context.Background()

	a := listing("https://x/a", "A")
	require.NoError(t, c.SaveEvaluation(ctx, "ph", model.EvaluatedJob{Job: a, Evaluation: model.Evaluation{Score: 70}}))
	require.NoError(t, c.DropEvaluations(ctx, "ph"))

	got, err := c.LoadEvaluations(ctx, "ph")
	require.NoError(t, err)
	assert.Empty(t, got)
}
