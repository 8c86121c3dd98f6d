package search_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheTrueAI/stellenscout/internal/model"
	"github.com/TheTrueAI/stellenscout/internal/search"
)

func withOptions(title string, urls ...string) model.JobListing {
	opts := make([]model.ApplyOption, len(urls))
	for i, u := range urls {
		opts[i] = model.ApplyOption{Source: "test", URL: u}
	}
	return model.JobListing{Title: title, CompanyName: "acme", ApplyOptions: opts}
}

func TestFilterListings_DropsDenylistedOptions(t *testing.T) {
	in := []model.JobListing{
		withOptions("mixed", "https://de.bebee.com/job/1", "https://careers.acme.com/1"),
	}

	out := search.FilterListings(in, search.DefaultDenylist)
	require.Len(t, out, 1)
	require.Len(t, out[0].ApplyOptions, 1, "denylisted option must be removed")
	assert.Equal(t, "https://careers.acme.com/1", out[0].ApplyOptions[0].URL)
}

func TestFilterListings_DropsListingWithOnlyDenylistedOptions(t *testing.T) {
	in := []model.JobListing{
		withOptions("junk", "https://jooble.org/job/2", "https://simplyhired.com/job/2"),
		withOptions("good", "https://careers.acme.com/3"),
	}

	out := search.FilterListings(in, search.DefaultDenylist)
	require.Len(t, out, 1)
	assert.Equal(t, "good", out[0].Title)
}

func TestFilterListings_MergesByURLFirstSeenWins(t *testing.T) {
	in := []model.JobListing{
		withOptions("first copy", "https://careers.acme.com/4"),
		withOptions("second copy", "https://careers.acme.com/4"),
	}

	out := search.FilterListings(in, nil)
	require.Len(t, out, 1)
	assert.Equal(t, "first copy", out[0].Title)
}

func TestFilterListings_DenylistIsCaseInsensitive(t *testing.T) {
	in := []model.JobListing{
		withOptions("junk", "https://WWW.Jooble.ORG/job/5"),
	}
	out := search.FilterListings(in, search.DefaultDenylist)
	assert.Empty(t, out)
}

func TestFilterListings_Deterministic(t *testing.T) {
	in := []model.JobListing{
		withOptions("a", "https://careers.acme.com/a"),
		withOptions("junk", "https://trovit.de/x"),
		withOptions("b", "https://careers.acme.com/b"),
		withOptions("a again", "https://careers.acme.com/a"),
	}

	first := search.FilterListings(in, search.DefaultDenylist)
	second := search.FilterListings(in, search.DefaultDenylist)
	assert.Equal(t, first, second)
	require.Len(t, first, 2)
	assert.Equal(t, "a", first[0].Title)
	assert.Equal(t, "b", first[1].Title)
}

// ── SearchAll ────────────────────────────────────────────────────────────────

type fakeProvider struct {
	queries []string
	results map[string][]model.JobListing
	err     error
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Search(_ context.Context, query, _ string, _ int) ([]model.JobListing, error) {
	f.queries = append(f.queries, query)
	if f.err != nil {
		return nil, f.err
	}
	return f.results[query], nil
}

func TestSearchAll_AppendsLocationToLocationlessQueries(t *testing.T) {
	p := &fakeProvider{results: map[string][]model.JobListing{}}

	search.SearchAll(context.Background(), p,
		[]string{"golang backend", "devops engineer Berlin"}, "Berlin", 10, nil)

	require.Len(t, p.queries, 2)
	assert.Equal(t, "golang backend Berlin", p.queries[0])
	assert.Equal(t, "devops engineer Berlin", p.queries[1], "query already mentioning the location stays unchanged")
}

func TestSearchAll_LocalisesCityNames(t *testing.T) {
	p := &fakeProvider{results: map[string][]model.JobListing{}}

	search.SearchAll(context.Background(), p, []string{"golang backend"}, "Munich", 10, nil)

	require.Len(t, p.queries, 1)
	assert.Equal(t, "golang backend München", p.queries[0])
}

func TestSearchAll_RemoteCountsAsLocation(t *testing.T) {
	p := &fakeProvider{results: map[string][]model.JobListing{}}

	search.SearchAll(context.Background(), p, []string{"remote golang backend"}, "Berlin", 10, nil)

	require.Len(t, p.queries, 1)
	assert.Equal(t, "remote golang backend", p.queries[0])
}

func TestSearchAll_FailedQueryIsSkipped(t *testing.T) {
	good := withOptions("good", "https://careers.acme.com/6")
	p := &fakeProvider{
		results: map[string][]model.JobListing{"golang Berlin": {good}},
	}

	// First provider errors on everything; results must still be empty, not a
	// crash.
	failing := &fakeProvider{err: assert.AnError}
	out := search.SearchAll(context.Background(), failing, []string{"golang Berlin"}, "Berlin", 10, nil)
	assert.Empty(t, out)

	out = search.SearchAll(context.Background(), p, []string{"golang Berlin"}, "Berlin", 10, nil)
	require.Len(t, out, 1)
	assert.Equal(t, "good", out[0].Title)
}
