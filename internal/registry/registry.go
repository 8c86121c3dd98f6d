package registry

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Lifecycle windows. Overridable per instance for tests and configuration.
const (
	DefaultConfirmTokenTTL  = 24 * time.Hour
	DefaultSubscriptionDays = 30
	DefaultPurgeGraceDays   = 7

	// purgeBatchSize bounds each delete round so purge never turns into a
	// long-running statement.
	purgeBatchSize = 500
)

// ErrNotFound is returned when a subscriber is missing.
var ErrNotFound = errors.New("subscriber not found")

// ValidationError wraps a user-facing "already handled" outcome from the
// state machine (expired token, double confirm, …). Never an exception path.
type ValidationError struct{ Msg string }

func (e *ValidationError) Error() string { return e.Msg }

// Subscriber is one row of the subscribers table. Personal fields
// (ProfileJSON, SearchQueries, TargetLocation) are non-null only while the
// subscriber is active and non-expired.
type Subscriber struct {
	ID     string
	Email  string
	Status Status

	ConfirmToken          *string
	ConfirmTokenExpiresAt *time.Time

	UnsubscribeToken          *string
	UnsubscribeTokenExpiresAt *time.Time

	ProfileJSON    json.RawMessage
	SearchQueries  []string
	TargetLocation *string
	MinScore       int

	ExpiresAt *time.Time // set only at confirmation

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Registry persists the subscriber state machine. It must be constructed
// with the elevated-privilege pool: every method mutates or reads personal
// data.
type Registry struct {
	pool *pgxpool.Pool

	ConfirmTokenTTL  time.Duration
	SubscriptionDays int
	PurgeGraceDays   int
	DefaultMinScore  int
}

// New constructs a Registry with the default lifecycle windows.
func New(pool *pgxpool.Pool) *Registry {
	return &Registry{
		pool:             pool,
		ConfirmTokenTTL:  DefaultConfirmTokenTTL,
		SubscriptionDays: DefaultSubscriptionDays,
		PurgeGraceDays:   DefaultPurgeGraceDays,
		DefaultMinScore:  70,
	}
}

// NewToken returns a URL-safe random token for confirmation/unsubscribe links.
func NewToken() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Sprintf("crypto/rand unavailable: %v", err))
	}
	return base64.RawURLEncoding.EncodeToString(buf)
}

const subscriberColumns = `id, email, status, confirm_token, confirm_token_expires_at,
	unsubscribe_token, unsubscribe_token_expires_at,
	profile_json, search_queries, target_location, min_score,
	expires_at, created_at, updated_at`

func scanSubscriber(row pgx.Row) (*Subscriber, error) {
	var s Subscriber
	var status string
	err := row.Scan(
		&s.ID, &s.Email, &status, &s.ConfirmToken, &s.ConfirmTokenExpiresAt,
		&s.UnsubscribeToken, &s.UnsubscribeTokenExpiresAt,
		&s.ProfileJSON, &s.SearchQueries, &s.TargetLocation, &s.MinScore,
		&s.ExpiresAt, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	s.Status = Status(status)
	return &s, nil
}

// Create upserts a signup by email. An existing active subscription is
// returned unchanged (no duplicate signup). An existing pending row gets a
// fresh confirmation token. A terminal row is replaced by a brand-new
// pending row — no state carries forward. The boolean reports whether a
// confirmation email should be (re)sent.
func (r *Registry) Create(ctx context.Context, email string) (*Subscriber, bool, error) {
	existing, err := r.ByEmail(ctx, email)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, false, err
	}

	if existing != nil {
		switch existing.Status {
		case StatusActive:
			return existing, false, nil
		case StatusPending:
			// Re-signup before confirming: refresh the token.
			return r.refreshConfirmToken(ctx, existing.ID)
		default:
			// Terminal row: hard-delete so the new signup starts clean.
			if _, err := r.pool.Exec(ctx, `DELETE FROM subscribers WHERE id = $1`, existing.ID); err != nil {
				return nil, false, fmt.Errorf("delete terminal subscriber: %w", err)
			}
		}
	}

	token := NewToken()
	row := r.pool.QueryRow(ctx,
		`INSERT INTO subscribers (id, email, status, confirm_token, confirm_token_expires_at, min_score)
		 VALUES ($1, $2, 'pending', $3, NOW() + $4, $5)
		 RETURNING `+subscriberColumns,
		uuid.NewString(), email, token, r.ConfirmTokenTTL, r.DefaultMinScore,
	)
	s, err := scanSubscriber(row)
	if err != nil {
		return nil, false, fmt.Errorf("insert subscriber: %w", err)
	}
	return s, true, nil
}

func (r *Registry) refreshConfirmToken(ctx context.Context, id string) (*Subscriber, bool, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE subscribers
		 SET confirm_token = $1, confirm_token_expires_at = NOW() + $2, updated_at = NOW()
		 WHERE id = $3 AND status = 'pending'
		 RETURNING `+subscriberColumns,
		NewToken(), r.ConfirmTokenTTL, id,
	)
	s, err := scanSubscriber(row)
	if err != nil {
		return nil, false, fmt.Errorf("refresh confirm token: %w", err)
	}
	return s, true, nil
}

// Confirm completes the double opt-in. Valid only while pending with an
// unexpired token; the 30-day clock starts now, not at signup. Reuse of a
// spent or expired token yields a ValidationError, never a crash.
func (r *Registry) Confirm(ctx context.Context, token string) (*Subscriber, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE subscribers
		 SET status = 'active',
		     confirm_token = NULL,
		     confirm_token_expires_at = NULL,
		     expires_at = NOW() + make_interval(days => $1),
		     updated_at = NOW()
		 WHERE confirm_token = $2
		   AND status = 'pending'
		   AND confirm_token_expires_at > NOW()
		 RETURNING `+subscriberColumns,
		r.SubscriptionDays, token,
	)
	s, err := scanSubscriber(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &ValidationError{Msg: "confirmation link is invalid or has expired"}
	}
	if err != nil {
		return nil, fmt.Errorf("confirm subscriber: %w", err)
	}
	return s, nil
}

// SaveContext persists the personalization payload needed for unattended
// batch runs. Allowed only while active.
func (r *Registry) SaveContext(ctx context.Context, id string, profileJSON json.RawMessage, queries []string, location string, minScore int) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE subscribers
		 SET profile_json = $1, search_queries = $2, target_location = $3,
		     min_score = $4, updated_at = NOW()
		 WHERE id = $5 AND status = 'active'`,
		profileJSON, queries, location, minScore, id,
	)
	if err != nil {
		return fmt.Errorf("save context: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return &ValidationError{Msg: "subscription is not active"}
	}
	return nil
}

// IssueUnsubscribeToken stores a fresh single-use unsubscribe token for an
// active subscriber and returns it. Issued per batch run.
func (r *Registry) IssueUnsubscribeToken(ctx context.Context, id string) (string, error) {
	token := NewToken()
	tag, err := r.pool.Exec(ctx,
		`UPDATE subscribers
		 SET unsubscribe_token = $1,
		     unsubscribe_token_expires_at = NOW() + make_interval(days => $2),
		     updated_at = NOW()
		 WHERE id = $3 AND status = 'active'`,
		token, r.SubscriptionDays, id,
	)
	if err != nil {
		return "", fmt.Errorf("issue unsubscribe token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return "", ErrNotFound
	}
	return token, nil
}

// Deactivate is the user-initiated unsubscribe. The token is single-use and
// the personal fields are wiped synchronously, identically to expiry.
func (r *Registry) Deactivate(ctx context.Context, token string) (*Subscriber, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE subscribers
		 SET status = 'unsubscribed',
		     profile_json = NULL, search_queries = NULL, target_location = NULL,
		     confirm_token = NULL, confirm_token_expires_at = NULL,
		     unsubscribe_token = NULL, unsubscribe_token_expires_at = NULL,
		     updated_at = NOW()
		 WHERE unsubscribe_token = $1
		   AND status = 'active'
		   AND unsubscribe_token_expires_at > NOW()
		 RETURNING `+subscriberColumns,
		token,
	)
	s, err := scanSubscriber(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &ValidationError{Msg: "unsubscribe link is invalid or was already used"}
	}
	if err != nil {
		return nil, fmt.Errorf("deactivate subscriber: %w", err)
	}
	return s, nil
}

// ExpireDue transitions every active subscriber past their expires_at to
// expired and wipes their personal fields. Irreversible.
func (r *Registry) ExpireDue(ctx context.Context) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE subscribers
		 SET status = 'expired',
		     profile_json = NULL, search_queries = NULL, target_location = NULL,
		     unsubscribe_token = NULL, unsubscribe_token_expires_at = NULL,
		     updated_at = NOW()
		 WHERE status = 'active' AND expires_at < NOW()`,
	)
	if err != nil {
		return 0, fmt.Errorf("expire subscribers: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Purge hard-deletes pending and terminal rows older than the grace window,
// in bounded batches to avoid long-running deletes.
func (r *Registry) Purge(ctx context.Context) (int64, error) {
	var total int64
	for {
		tag, err := r.pool.Exec(ctx,
			`DELETE FROM subscribers
			 WHERE id IN (
			   SELECT id FROM subscribers
			   WHERE (status = 'pending' AND created_at < NOW() - make_interval(days => $1))
			      OR (status IN ('expired', 'unsubscribed') AND updated_at < NOW() - make_interval(days => $1))
			   LIMIT $2
			 )`,
			r.PurgeGraceDays, purgeBatchSize,
		)
		if err != nil {
			return total, fmt.Errorf("purge subscribers: %w", err)
		}
		total += tag.RowsAffected()
		if tag.RowsAffected() < purgeBatchSize {
			return total, nil
		}
	}
}

// ActiveWithContext returns every active, non-expired subscriber that has a
// saved personalization context — the working set of one batch run.
func (r *Registry) ActiveWithContext(ctx context.Context) ([]Subscriber, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+subscriberColumns+`
		 FROM subscribers
		 WHERE status = 'active'
		   AND expires_at > NOW()
		   AND profile_json IS NOT NULL
		   AND search_queries IS NOT NULL
		 ORDER BY created_at`,
	)
	if err != nil {
		return nil, fmt.Errorf("query active subscribers: %w", err)
	}
	defer rows.Close()

	var subs []Subscriber
	for rows.Next() {
		s, err := scanSubscriber(rows)
		if err != nil {
			return nil, fmt.Errorf("scan subscriber: %w", err)
		}
		subs = append(subs, *s)
	}
	return subs, rows.Err()
}

// ByEmail returns the subscriber row for an email, or ErrNotFound.
func (r *Registry) ByEmail(ctx context.Context, email string) (*Subscriber, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+subscriberColumns+` FROM subscribers WHERE email = $1`, email)
	s, err := scanSubscriber(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query subscriber by email: %w", err)
	}
	return s, nil
}
