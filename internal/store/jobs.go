package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/TheTrueAI/stellenscout/internal/model"
)

// Store splits job/sent-log access across the two pools: reads go through
// the reader credential, every mutation through the elevated one.
type Store struct {
	reader *pgxpool.Pool
	admin  *pgxpool.Pool
}

// New constructs a Store on the reader and elevated-privilege pools.
func New(reader, admin *pgxpool.Pool) *Store {
	return &Store{reader: reader, admin: admin}
}

// UpsertJobs inserts listings keyed by canonical URL. Listings are
// append-only once stored: a conflict only backfills an empty description,
// it never overwrites existing data.
func (s *Store) UpsertJobs(ctx context.Context, listings []model.JobListing) error {
	for _, j := range listings {
		url := j.URL()
		if url == "" {
			continue
		}
		_, err := s.admin.Exec(ctx,
			`INSERT INTO jobs (id, url, title, company, location, description)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 ON CONFLICT (url) DO UPDATE
			 SET description = CASE
			       WHEN jobs.description = '' THEN EXCLUDED.description
			       ELSE jobs.description
			     END`,
			uuid.NewString(), url, j.Title, j.CompanyName, j.Location, j.Description,
		)
		if err != nil {
			return fmt.Errorf("upsert job %s: %w", url, err)
		}
	}
	return nil
}

// JobIDsByURL returns the url → row-id mapping for the given URLs.
func (s *Store) JobIDsByURL(ctx context.Context, urls []string) (map[string]string, error) {
	if len(urls) == 0 {
		return map[string]string{}, nil
	}
	rows, err := s.reader.Query(ctx,
		`SELECT url, id FROM jobs WHERE url = ANY($1)`, urls)
	if err != nil {
		return nil, fmt.Errorf("query job ids: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string, len(urls))
	for rows.Next() {
		var url, id string
		if err := rows.Scan(&url, &id); err != nil {
			return nil, fmt.Errorf("scan job id: %w", err)
		}
		out[url] = id
	}
	return out, rows.Err()
}

// SentJobIDs returns the set of job ids already logged for a subscriber.
func (s *Store) SentJobIDs(ctx context.Context, subscriberID string) (map[string]struct{}, error) {
	rows, err := s.reader.Query(ctx,
		`SELECT job_id FROM job_sent_log WHERE subscriber_id = $1`, subscriberID)
	if err != nil {
		return nil, fmt.Errorf("query sent log: %w", err)
	}
	defer rows.Close()

	out := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan sent log: %w", err)
		}
		out[id] = struct{}{}
	}
	return out, rows.Err()
}

// LogSentJobs records job ids as handled for a subscriber. The primary key
// makes the log append-only and unique per (subscriber, job): re-logging a
// pair is a no-op, which is what guarantees at-most-once delivery.
func (s *Store) LogSentJobs(ctx context.Context, subscriberID string, jobIDs []string) error {
	if len(jobIDs) == 0 {
		return nil
	}
	_, err := s.admin.Exec(ctx,
		`INSERT INTO job_sent_log (subscriber_id, job_id)
		 SELECT $1, unnest($2::uuid[])
		 ON CONFLICT (subscriber_id, job_id) DO NOTHING`,
		subscriberID, jobIDs,
	)
	if err != nil {
		return fmt.Errorf("log sent jobs: %w", err)
	}
	return nil
}
