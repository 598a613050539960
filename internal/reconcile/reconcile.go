// Package reconcile orchestrates a follow synchronization run: resolve each
// source platform's follow list (cache first, fetch on miss), map every
// record to its canonical bridge handle, and drive the federated follower
// over the whole list.
package reconcile

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/calebmh/fedisync/internal/fediverse"
	"github.com/calebmh/fedisync/internal/follow"
	"github.com/calebmh/fedisync/internal/source"
	"github.com/calebmh/fedisync/internal/store"
)

// Follower abstracts the federated side so the driver can be exercised
// without a live server.
type Follower interface {
	FollowByHandle(ctx context.Context, canonical string, rec *follow.Record) fediverse.Outcome
}

// Options configures a reconciliation run.
type Options struct {
	// Refresh clears every source platform's cache rows before
	// reconciling, forcing a full re-fetch.
	Refresh bool
}

// PlatformSummary tallies one platform's run.
type PlatformSummary struct {
	Platform     follow.Platform
	FromCache    bool // follow list came from the cache, not a fresh fetch
	Attempted    int
	Followed     int
	NoMatch      int
	SearchFailed int
	FollowFailed int
}

// Summary tallies a whole run.
type Summary struct {
	Platforms []PlatformSummary
}

// Followed returns the total number of confirmed follows across platforms.
func (s *Summary) Followed() int {
	total := 0
	for _, p := range s.Platforms {
		total += p.Followed
	}
	return total
}

// Driver runs the reconciliation loop over a fixed set of sources.
//
// Execution is sequential and deterministic given a stable source order and
// stable adapter responses; there is no parallelism and every record is
// attempted regardless of its current followed flag. Re-attempting a
// followed record is redundant but harmless since the remote follow is
// idempotent.
type Driver struct {
	store    *store.Store
	follower Follower
	sources  []source.Source
	logger   *log.Logger
}

// New creates a Driver. If logger is nil, a default stderr logger is used.
func New(st *store.Store, follower Follower, sources []source.Source, logger *log.Logger) *Driver {
	if logger == nil {
		logger = log.New(os.Stderr, "[reconcile] ", log.LstdFlags)
	}
	return &Driver{
		store:    st,
		follower: follower,
		sources:  sources,
		logger:   logger,
	}
}

// Run reconciles every configured source platform in sequence.
//
// Authentication happened when the sources were constructed; the errors
// that can escape here are cache failures and mid-fetch errors, both fatal
// for the run. Per-record follow failures never escape; they are folded
// into the summary.
func (d *Driver) Run(ctx context.Context, opts Options) (*Summary, error) {
	summary := &Summary{}

	for _, src := range d.sources {
		if opts.Refresh {
			d.logger.Printf("Clearing out all follows for %s", src.Platform())
			if err := d.store.ClearPlatform(ctx, src.Platform()); err != nil {
				return nil, err
			}
		}

		ps, err := d.reconcileSource(ctx, src)
		if err != nil {
			return nil, err
		}
		summary.Platforms = append(summary.Platforms, ps)
	}

	return summary, nil
}

// reconcileSource runs the follow loop for one platform.
func (d *Driver) reconcileSource(ctx context.Context, src source.Source) (PlatformSummary, error) {
	ps := PlatformSummary{Platform: src.Platform()}

	records, fromCache, err := d.LoadOrFetch(ctx, src)
	if err != nil {
		return ps, err
	}
	ps.FromCache = fromCache

	for i := range records {
		rec := &records[i]
		canonical := follow.CanonicalHandle(rec.Handle, rec.Platform)

		ps.Attempted++
		switch d.follower.FollowByHandle(ctx, canonical, rec) {
		case fediverse.OutcomeFollowed:
			ps.Followed++
		case fediverse.OutcomeNoMatch:
			ps.NoMatch++
		case fediverse.OutcomeSearchFailed:
			ps.SearchFailed++
		case fediverse.OutcomeFollowFailed:
			ps.FollowFailed++
		}
	}

	d.logger.Printf("Reconciled %s: attempted=%d followed=%d no_match=%d search_failed=%d follow_failed=%d",
		ps.Platform, ps.Attempted, ps.Followed, ps.NoMatch, ps.SearchFailed, ps.FollowFailed)

	return ps, nil
}

// LoadOrFetch resolves the follow list for a source's platform: load from
// the cache, and only on an empty result fetch from the platform and fill
// the cache. The second return reports whether the cache was hit.
//
// After a fetch the list is re-loaded from the cache so duplicate entries
// in the fetched list collapse to their stored rows.
func (d *Driver) LoadOrFetch(ctx context.Context, src source.Source) ([]follow.Record, bool, error) {
	records, err := d.store.LoadByPlatform(ctx, src.Platform())
	if err != nil {
		return nil, false, err
	}
	if len(records) > 0 {
		d.logger.Printf("Loaded %d follows for %s from cache", len(records), src.Platform())
		return records, true, nil
	}

	fetched, err := src.FetchFollows(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("failed to fetch follows for %s: %w", src.Platform(), err)
	}
	if len(fetched) == 0 {
		return nil, false, nil
	}

	d.logger.Printf("Saving %d follows to cache", len(fetched))
	if err := d.store.SaveFollows(ctx, fetched); err != nil {
		return nil, false, err
	}

	records, err = d.store.LoadByPlatform(ctx, src.Platform())
	if err != nil {
		return nil, false, err
	}
	return records, false, nil
}
