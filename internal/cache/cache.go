// Package cache implements the multi-layer content cache of the pipeline.
//
// Four independent layers, each with its own key derivation and
// invalidation rule:
//
//	profile:<cvHash>                 — no TTL, cleared only explicitly
//	queries:<profileHash>:<locHash>  — invalidated when either input changes
//	listings:<UTC date>              — merged by listing URL, never overwritten
//	evals:<profileHash>              — append-only map of job URL → evaluation
//
// All operations are safe to call with no prior state.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/TheTrueAI/stellenscout/internal/model"
)

// Backend is the minimal key/value contract the cache layers need.
// The production implementation is Redis; tests use NewMemoryBackend.
type Backend interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Del(ctx context.Context, key string) error

	// Hash operations back the listings and evaluation layers.
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HSet(ctx context.Context, key, field, value string) error
	// HSetNX writes only when the field is absent; returns true if written.
	HSetNX(ctx context.Context, key, field, value string) (bool, error)
}

// Cache is an explicit handle passed into every component that needs it.
// Lifecycle (open/close of the backend) is owned by the orchestrator's
// process, not by this type.
type Cache struct {
	b Backend
}

// New wraps a backend in the layered cache.
func New(b Backend) *Cache {
	return &Cache{b: b}
}

func profileKey(cvHash string) string { return "profile:" + cvHash }

func queriesKey(profileHash, location string) string {
	return "queries:" + profileHash + ":" + model.Hash(location)
}

func listingsKey(day time.Time) string {
	return "listings:" + day.UTC().Format("2006-01-02")
}

func evalsKey(profileHash string) string { return "evals:" + profileHash }

// ─── Profile layer ──────────────────────────────────────────────────────────

// LoadProfile returns the cached profile for the given CV text, keyed by its
// content hash. A changed CV yields a miss by construction.
func (c *Cache) LoadProfile(ctx context.Context, cvText string) (*model.CandidateProfile, bool, error) {
	raw, ok, err := c.b.Get(ctx, profileKey(model.Hash(cvText)))
	if err != nil || !ok {
		return nil, false, err
	}
	var p model.CandidateProfile
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		// Corrupt entry counts as a miss; it will be recomputed.
		return nil, false, nil
	}
	return &p, true, nil
}

// SaveProfile stores the profile under the CV text's content hash.
func (c *Cache) SaveProfile(ctx context.Context, cvText string, p *model.CandidateProfile) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal profile: %w", err)
	}
	return c.b.Set(ctx, profileKey(model.Hash(cvText)), string(raw))
}

// InvalidateProfile drops the cached profile for the given CV text.
func (c *Cache) InvalidateProfile(ctx context.Context, cvText string) error {
	return c.b.Del(ctx, profileKey(model.Hash(cvText)))
}

// ─── Query layer ────────────────────────────────────────────────────────────

// LoadQueries returns the cached search queries for (profile identity,
// location). Either input changing derives a different key, so stale entries
// are unreachable.
func (c *Cache) LoadQueries(ctx context.Context, profileHash, location string) ([]string, bool, error) {
	raw, ok, err := c.b.Get(ctx, queriesKey(profileHash, location))
	if err != nil || !ok {
		return nil, false, err
	}
	var queries []string
	if err := json.Unmarshal([]byte(raw), &queries); err != nil {
		return nil, false, nil
	}
	return queries, true, nil
}

// SaveQueries stores generated queries for (profile identity, location).
func (c *Cache) SaveQueries(ctx context.Context, profileHash, location string, queries []string) error {
	raw, err := json.Marshal(queries)
	if err != nil {
		return fmt.Errorf("marshal queries: %w", err)
	}
	return c.b.Set(ctx, queriesKey(profileHash, location), string(raw))
}

// InvalidateQueries drops the cached query set for (profile identity, location).
func (c *Cache) InvalidateQueries(ctx context.Context, profileHash, location string) error {
	return c.b.Del(ctx, queriesKey(profileHash, location))
}

// ─── Listings layer ─────────────────────────────────────────────────────────

// LoadListings returns the stored listing set for the given calendar day (UTC).
func (c *Cache) LoadListings(ctx context.Context, day time.Time) ([]model.JobListing, error) {
	fields, err := c.b.HGetAll(ctx, listingsKey(day))
	if err != nil {
		return nil, err
	}
	listings := make([]model.JobListing, 0, len(fields))
	for _, raw := range fields {
		var j model.JobListing
		if err := json.Unmarshal([]byte(raw), &j); err != nil {
			continue
		}
		listings = append(listings, j)
	}
	return listings, nil
}

// MergeListings upserts listings into the day's set keyed by listing URL.
// First-seen records win, so partial results from an earlier failed run are
// preserved and never overwritten destructively.
func (c *Cache) MergeListings(ctx context.Context, day time.Time, listings []model.JobListing) error {
	key := listingsKey(day)
	for _, j := range listings {
		url := j.URL()
		if url == "" {
			continue
		}
		raw, err := json.Marshal(j)
		if err != nil {
			return fmt.Errorf("marshal listing: %w", err)
		}
		if _, err := c.b.HSetNX(ctx, key, url, string(raw)); err != nil {
			return err
		}
	}
	return nil
}

// InvalidateListings drops the listing set for the given day.
func (c *Cache) InvalidateListings(ctx context.Context, day time.Time) error {
	return c.b.Del(ctx, listingsKey(day))
}

// ─── Evaluation layer ───────────────────────────────────────────────────────

// LoadEvaluations returns the append-only evaluation map for a profile
// identity, keyed by job URL. A different profile identity derives a
// different key, so evaluations never transfer across profile versions.
func (c *Cache) LoadEvaluations(ctx context.Context, profileHash string) (map[string]model.EvaluatedJob, error) {
	fields, err := c.b.HGetAll(ctx, evalsKey(profileHash))
	if err != nil {
		return nil, err
	}
	out := make(map[string]model.EvaluatedJob, len(fields))
	for url, raw := range fields {
		var ej model.EvaluatedJob
		if err := json.Unmarshal([]byte(raw), &ej); err != nil {
			continue
		}
		out[url] = ej
	}
	return out, nil
}

// SaveEvaluation appends one evaluation to the profile's map. Called only on
// a scoring task's own success, never with fallback results.
func (c *Cache) SaveEvaluation(ctx context.Context, profileHash string, ej model.EvaluatedJob) error {
	url := ej.Job.URL()
	if url == "" {
		return nil
	}
	raw, err := json.Marshal(ej)
	if err != nil {
		return fmt.Errorf("marshal evaluation: %w", err)
	}
	return c.b.HSet(ctx, evalsKey(profileHash), url, string(raw))
}

// DropEvaluations removes the entire evaluation map for a profile identity.
func (c *Cache) DropEvaluations(ctx context.Context, profileHash string) error {
	return c.b.Del(ctx, evalsKey(profileHash))
}

// PartitionEvaluated splits jobs into those still needing evaluation and the
// cached evaluations of the rest, in a single pass over the job set.
func (c *Cache) PartitionEvaluated(ctx context.Context, profileHash string, jobs []model.JobListing) (pending []model.JobListing, cached map[string]model.EvaluatedJob, err error) {
	all, err := c.LoadEvaluations(ctx, profileHash)
	if err != nil {
		return nil, nil, err
	}
	cached = make(map[string]model.EvaluatedJob)
	for _, j := range jobs {
		if ej, ok := all[j.URL()]; ok {
			cached[j.URL()] = ej
		} else {
			pending = append(pending, j)
		}
	}
	return pending, cached, nil
}
