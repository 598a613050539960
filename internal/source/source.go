// Package source provides the follow-list adapters for each source
// platform.
//
// Every adapter produces normalized follow records tagged with its own
// platform discriminator and followed=false; deduplication is the cache's
// job, not the adapter's. Adapters are only consulted on a cache miss.
package source

import (
	"context"
	"errors"

	"github.com/calebmh/fedisync/internal/follow"
)

// ErrAuthentication marks a source platform login rejection. It is fatal
// for that platform's run; there is no fallback.
var ErrAuthentication = errors.New("authentication failed")

// Source is a platform the operator's follow list can be fetched from.
//
// FetchFollows produces the complete current follow list in the order the
// platform reports it. A mid-fetch error aborts the whole fetch; there is
// no partial-page checkpointing.
type Source interface {
	Platform() follow.Platform
	FetchFollows(ctx context.Context) ([]follow.Record, error)
}
