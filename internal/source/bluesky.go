package source

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/bluesky-social/indigo/api/atproto"
	"github.com/bluesky-social/indigo/api/bsky"
	"github.com/bluesky-social/indigo/xrpc"

	"github.com/calebmh/fedisync/internal/config"
	"github.com/calebmh/fedisync/internal/follow"
)

// followPageSize is the page size requested from app.bsky.graph.getFollows.
// 100 is the API maximum.
const followPageSize = 100

// Bluesky fetches the operator's follow list from the atproto API.
//
// The account is authenticated up front in NewBluesky; a rejected login is
// reported immediately rather than on first fetch.
type Bluesky struct {
	client *xrpc.Client
	handle string
	logger *log.Logger
}

// NewBluesky logs into the configured Bluesky account and returns an
// adapter bound to that session.
//
// A rejected login returns an error wrapping ErrAuthentication.
func NewBluesky(ctx context.Context, cfg *config.BlueskyConfig, logger *log.Logger) (*Bluesky, error) {
	if logger == nil {
		logger = log.New(os.Stderr, "[bluesky] ", log.LstdFlags)
	}

	client := &xrpc.Client{
		Client: &http.Client{Timeout: 30 * time.Second},
		Host:   cfg.Host,
	}

	sess, err := atproto.ServerCreateSession(ctx, client, &atproto.ServerCreateSession_Input{
		Identifier: cfg.Username,
		Password:   cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("bluesky login for %q: %w: %v", cfg.Username, ErrAuthentication, err)
	}

	client.Auth = &xrpc.AuthInfo{
		AccessJwt:  sess.AccessJwt,
		RefreshJwt: sess.RefreshJwt,
		Handle:     sess.Handle,
		Did:        sess.Did,
	}

	return &Bluesky{
		client: client,
		handle: sess.Handle,
		logger: logger,
	}, nil
}

// Platform implements Source.
func (b *Bluesky) Platform() follow.Platform {
	return follow.Bluesky
}

// FetchFollows pages through the authenticated account's follow list until
// the server reports no further cursor. Page entries are appended in the
// order received; order is not semantically significant because the cache
// deduplicates on insert.
//
// A failed page fetch aborts the whole fetch and propagates to the caller.
func (b *Bluesky) FetchFollows(ctx context.Context) ([]follow.Record, error) {
	b.logger.Println("Fetching follows from the Bluesky API")

	var records []follow.Record
	cursor := ""

	for {
		page, err := bsky.GraphGetFollows(ctx, b.client, b.handle, cursor, followPageSize)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch follows page: %w", err)
		}

		for _, f := range page.Follows {
			records = append(records, follow.Record{
				Handle:   f.Handle,
				Platform: follow.Bluesky,
			})
		}

		if page.Cursor == nil || *page.Cursor == "" {
			break
		}
		cursor = *page.Cursor
	}

	b.logger.Printf("Fetched %d follows for %s", len(records), b.handle)
	return records, nil
}
