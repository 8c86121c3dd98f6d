// Package digest orchestrates one end-to-end batch run: lifecycle
// maintenance, aggregated search, scoring, and per-subscriber delivery.
package digest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/TheTrueAI/stellenscout/internal/cache"
	"github.com/TheTrueAI/stellenscout/internal/mailer"
	"github.com/TheTrueAI/stellenscout/internal/model"
	"github.com/TheTrueAI/stellenscout/internal/registry"
)

// SubscriberSource is the registry surface one run needs.
type SubscriberSource interface {
	ExpireDue(ctx context.Context) (int64, error)
	Purge(ctx context.Context) (int64, error)
	ActiveWithContext(ctx context.Context) ([]registry.Subscriber, error)
	IssueUnsubscribeToken(ctx context.Context, id string) (string, error)
}

// JobStore is the persistence surface for listings and the sent log.
type JobStore interface {
	UpsertJobs(ctx context.Context, listings []model.JobListing) error
	JobIDsByURL(ctx context.Context, urls []string) (map[string]string, error)
	SentJobIDs(ctx context.Context, subscriberID string) (map[string]struct{}, error)
	LogSentJobs(ctx context.Context, subscriberID string, jobIDs []string) error
}

// Sender delivers one HTML email.
type Sender interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// Evaluator scores a listing batch against a profile.
type Evaluator interface {
	EvaluateAll(ctx context.Context, profile *model.CandidateProfile, jobs []model.JobListing) ([]model.EvaluatedJob, error)
}

// SearchFunc runs a localised multi-query search and returns the filtered
// listings. search.SearchAll curried with a provider satisfies it.
type SearchFunc func(ctx context.Context, queries []string, location string) []model.JobListing

// Orchestrator wires the pipeline stages together. All dependencies are
// injected so runs are testable without Postgres, Redis, SMTP, or the network.
type Orchestrator struct {
	subs   SubscriberSource
	jobs   JobStore
	cache  *cache.Cache
	search SearchFunc
	engine Evaluator
	mail   Sender
	appURL string

	now func() time.Time
}

// New constructs an Orchestrator. appURL is the public base URL used to build
// unsubscribe links.
func New(subs SubscriberSource, jobs JobStore, c *cache.Cache, search SearchFunc, engine Evaluator, mail Sender, appURL string) *Orchestrator {
	return &Orchestrator{
		subs:   subs,
		jobs:   jobs,
		cache:  c,
		search: search,
		engine: engine,
		mail:   mail,
		appURL: appURL,
		now:    time.Now,
	}
}

// Run executes one batch in a fixed order: expire, purge, aggregate searches,
// persist listings, then evaluate and deliver per subscriber. Lifecycle and
// storage failures abort the run; a single bad subscriber or query degrades it.
func (o *Orchestrator) Run(ctx context.Context) error {
	started := o.now()

	expired, err := o.subs.ExpireDue(ctx)
	if err != nil {
		return fmt.Errorf("expire subscribers: %w", err)
	}
	purged, err := o.subs.Purge(ctx)
	if err != nil {
		return fmt.Errorf("purge subscribers: %w", err)
	}
	slog.Info("lifecycle maintenance done", "expired", expired, "purged", purged)

	subscribers, err := o.subs.ActiveWithContext(ctx)
	if err != nil {
		return fmt.Errorf("load subscribers: %w", err)
	}
	if len(subscribers) == 0 {
		slog.Info("no active subscribers with context, skipping run")
		return nil
	}

	listings, err := o.aggregateListings(ctx, subscribers)
	if err != nil {
		return err
	}
	if len(listings) == 0 {
		slog.Info("no listings found today, skipping delivery")
		return nil
	}

	if err := o.jobs.UpsertJobs(ctx, listings); err != nil {
		return fmt.Errorf("persist listings: %w", err)
	}
	urls := make([]string, 0, len(listings))
	for _, j := range listings {
		urls = append(urls, j.URL())
	}
	idByURL, err := o.jobs.JobIDsByURL(ctx, urls)
	if err != nil {
		return fmt.Errorf("resolve listing ids: %w", err)
	}

	for _, sub := range subscribers {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := o.deliverOne(ctx, sub, listings, idByURL); err != nil {
			slog.Warn("subscriber delivery failed, continuing",
				"subscriber", sub.ID, "err", err)
		}
	}

	slog.Info("digest run complete",
		"subscribers", len(subscribers),
		"listings", len(listings),
		"duration", o.now().Sub(started).Round(time.Millisecond))
	return nil
}

// aggregateListings deduplicates (query, location) pairs across all
// subscribers, searches each location's query set once, merges results into
// the daily cache, and returns the full day's set.
func (o *Orchestrator) aggregateListings(ctx context.Context, subscribers []registry.Subscriber) ([]model.JobListing, error) {
	byLocation := make(map[string][]string)
	seen := make(map[string]struct{})
	for _, sub := range subscribers {
		location := ""
		if sub.TargetLocation != nil {
			location = *sub.TargetLocation
		}
		for _, q := range sub.SearchQueries {
			key := q + "\x00" + location
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			byLocation[location] = append(byLocation[location], q)
		}
	}

	today := o.now()
	for location, queries := range byLocation {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		found := o.search(ctx, queries, location)
		slog.Info("search batch done", "location", location,
			"queries", len(queries), "listings", len(found))
		if err := o.cache.MergeListings(ctx, today, found); err != nil {
			slog.Warn("failed to merge listings into cache", "err", err)
		}
	}

	listings, err := o.cache.LoadListings(ctx, today)
	if err != nil {
		return nil, fmt.Errorf("load daily listings: %w", err)
	}
	return listings, nil
}

// deliverOne evaluates the unseen listings for one subscriber, sends the
// digest when anything clears the threshold, and logs every evaluated job so
// it is never evaluated or delivered to this subscriber again.
func (o *Orchestrator) deliverOne(ctx context.Context, sub registry.Subscriber, listings []model.JobListing, idByURL map[string]string) error {
	var profile model.CandidateProfile
	if err := json.Unmarshal(sub.ProfileJSON, &profile); err != nil {
		return fmt.Errorf("invalid stored profile: %w", err)
	}

	sent, err := o.jobs.SentJobIDs(ctx, sub.ID)
	if err != nil {
		return fmt.Errorf("load sent log: %w", err)
	}

	var unseen []model.JobListing
	for _, j := range listings {
		id, ok := idByURL[j.URL()]
		if !ok {
			continue
		}
		if _, done := sent[id]; done {
			continue
		}
		unseen = append(unseen, j)
	}
	if len(unseen) == 0 {
		slog.Info("nothing new for subscriber", "subscriber", sub.ID)
		return nil
	}

	evaluated, err := o.engine.EvaluateAll(ctx, &profile, unseen)
	if err != nil {
		return fmt.Errorf("evaluate listings: %w", err)
	}

	var matches []model.EvaluatedJob
	for _, ej := range evaluated {
		if ej.Evaluation.Score >= sub.MinScore {
			matches = append(matches, ej)
		}
	}

	if len(matches) > 0 {
		token, err := o.subs.IssueUnsubscribeToken(ctx, sub.ID)
		if err != nil {
			return fmt.Errorf("issue unsubscribe token: %w", err)
		}
		subject, body := mailer.DigestEmail(matches, o.unsubscribeURL(token))
		if err := o.mail.Send(ctx, sub.Email, subject, body); err != nil {
			slog.Warn("digest email failed", "subscriber", sub.ID, "err", err)
		} else {
			slog.Info("digest sent", "subscriber", sub.ID, "matches", len(matches))
		}
	} else {
		slog.Info("no matches above threshold", "subscriber", sub.ID,
			"evaluated", len(evaluated), "min_score", sub.MinScore)
	}

	// Log everything evaluated, matches and non-matches alike, so below-
	// threshold listings are not re-scored on the next run.
	ids := make([]string, 0, len(evaluated))
	for _, ej := range evaluated {
		if id, ok := idByURL[ej.Job.URL()]; ok {
			ids = append(ids, id)
		}
	}
	if err := o.jobs.LogSentJobs(ctx, sub.ID, ids); err != nil {
		return fmt.Errorf("log evaluated jobs: %w", err)
	}
	return nil
}

func (o *Orchestrator) unsubscribeURL(token string) string {
	return o.appURL + "/unsubscribe?token=" + url.QueryEscape(token)
}
