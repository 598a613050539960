// Package fediverse drives idempotent follow attempts against the
// operator's Mastodon account.
//
// Each attempt is search-then-follow: a resolving account search for the
// bridge handle, an exact-match scan over the candidates, and a follow
// request for the matched account. Search and follow failures are recovered
// locally so one bad record never aborts a run; the record simply stays
// unfollowed and is retried on the next run. The remote follow action is
// itself idempotent, so re-attempting an already-followed record is safe.
package fediverse

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/mattn/go-mastodon"
	"golang.org/x/time/rate"

	"github.com/calebmh/fedisync/internal/config"
	"github.com/calebmh/fedisync/internal/follow"
)

// Store is the slice of the follow cache the follower needs: persisting a
// confirmed follow.
type Store interface {
	SetFollowed(ctx context.Context, rec follow.Record) error
}

// Outcome classifies one follow attempt.
type Outcome int

const (
	// OutcomeFollowed means the account was found and the follow request
	// succeeded; the cache row is marked followed.
	OutcomeFollowed Outcome = iota
	// OutcomeNoMatch means the search returned no exact match; nothing was
	// attempted and no state changed.
	OutcomeNoMatch
	// OutcomeSearchFailed means the search call itself errored; treated as
	// zero results so the run continues.
	OutcomeSearchFailed
	// OutcomeFollowFailed means the follow request was rejected; the record
	// stays unfollowed and is a retry candidate next run.
	OutcomeFollowFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeFollowed:
		return "followed"
	case OutcomeNoMatch:
		return "no match"
	case OutcomeSearchFailed:
		return "search failed"
	case OutcomeFollowFailed:
		return "follow failed"
	default:
		return "unknown"
	}
}

// Follower issues follow requests against a Mastodon account.
type Follower struct {
	client  *mastodon.Client
	store   Store
	limiter *rate.Limiter
	logger  *log.Logger
}

// New creates a Follower for the configured Mastodon account.
//
// Outbound calls are paced at one per second, comfortably inside
// Mastodon's default 300-requests-per-5-minutes budget.
func New(cfg *config.MastodonConfig, store Store, logger *log.Logger) *Follower {
	if logger == nil {
		logger = log.New(os.Stderr, "[fediverse] ", log.LstdFlags)
	}

	client := mastodon.NewClient(&mastodon.Config{
		Server:      cfg.Server,
		AccessToken: cfg.AccessToken,
	})
	client.Timeout = 30 * time.Second

	return &Follower{
		client:  client,
		store:   store,
		limiter: rate.NewLimiter(rate.Every(time.Second), 1),
		logger:  logger,
	}
}

// FollowByHandle attempts to follow the account behind a canonical bridge
// handle and records the result for rec.
//
// The handle is normalized (single leading '@' stripped), resolved through
// a search, and matched exactly against the candidates' acct identifiers.
// No error escapes this method; search and follow failures are logged and
// folded into the returned Outcome.
func (f *Follower) FollowByHandle(ctx context.Context, canonical string, rec *follow.Record) Outcome {
	handle := follow.NormalizeHandle(canonical)
	f.logger.Printf("Attempting to follow %s", handle)

	accounts, err := f.search(ctx, handle)
	if err != nil {
		// A failed search is treated as zero results; the run continues.
		f.logger.Printf("Failed to search for %s: %v", handle, err)
		return OutcomeSearchFailed
	}

	account := exactMatch(accounts, handle)
	if account == nil {
		f.logger.Printf("No exact match for %s among %d candidates", handle, len(accounts))
		return OutcomeNoMatch
	}

	f.logger.Printf("Discovered %s, attempting follow", account.Acct)
	if err := f.followAccount(ctx, account.ID); err != nil {
		f.logger.Printf("Failed to follow %s: %v", handle, err)
		return OutcomeFollowFailed
	}

	rec.Followed = true
	if err := f.store.SetFollowed(ctx, *rec); err != nil {
		// The remote follow went through; the row stays a retry candidate.
		f.logger.Printf("Failed to record follow of %s: %v", handle, err)
	}

	return OutcomeFollowed
}

// exactMatch returns the first candidate whose acct identifier equals the
// normalized handle, or nil.
func exactMatch(accounts []*mastodon.Account, handle string) *mastodon.Account {
	for _, account := range accounts {
		if account.Acct == handle {
			return account
		}
	}
	return nil
}

// search performs a resolving account search for the handle.
func (f *Follower) search(ctx context.Context, handle string) ([]*mastodon.Account, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	results, err := f.client.Search(ctx, handle, true)
	if err != nil {
		return nil, err
	}
	return results.Accounts, nil
}

// followAccount issues the follow request for an account id.
func (f *Follower) followAccount(ctx context.Context, id mastodon.ID) error {
	if err := f.limiter.Wait(ctx); err != nil {
		return err
	}

	_, err := f.client.AccountFollow(ctx, id)
	return err
}
