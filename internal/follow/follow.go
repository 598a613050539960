// Package follow defines the follow record model shared across fedisync:
// the source platforms follows can be imported from, the record persisted
// in the follow cache, and the mapping from a source-native handle to the
// fediverse handle of that platform's bridge.
package follow

import (
	"fmt"
	"strings"
)

// Platform identifies the source platform a follow was imported from.
// The string value is what gets stored in the cache's platform column.
type Platform string

const (
	// Bluesky follows are fetched live from the atproto API.
	Bluesky Platform = "bluesky"
	// Threads follows come from a Meta data-export file.
	Threads Platform = "threads"
)

// bridgeDomains maps each source platform to the fixed hostname suffix used
// to address its accounts on the fediverse.
var bridgeDomains = map[Platform]string{
	// Will probably not work for accounts with custom handles.
	Bluesky: "bsky.brid.gy",
	// Threads exposes accounts at @user@threads.net but its export file
	// only carries the bare username, so the domain is appended here.
	Threads: "threads.net",
}

// Platforms returns every known source platform in a stable order.
func Platforms() []Platform {
	return []Platform{Bluesky, Threads}
}

// Valid reports whether p is a known source platform.
func (p Platform) Valid() bool {
	_, ok := bridgeDomains[p]
	return ok
}

func (p Platform) String() string {
	return string(p)
}

// BridgeDomain returns the bridge domain for platform p, or an empty string
// for an unknown platform.
func BridgeDomain(p Platform) string {
	return bridgeDomains[p]
}

// Record is one cached fact: "source account Handle is followed by the
// operator on Platform". Followed records whether the corresponding follow
// has been confirmed on the fediverse side.
//
// Records are unique per (Handle, Platform). Followed only ever moves from
// false to true; the only way back is clearing the platform's cache rows
// entirely, which forces re-evaluation on the next run.
type Record struct {
	Handle   string
	Platform Platform
	Followed bool
}

// Validate checks that the record can be cached.
func (r *Record) Validate() error {
	if r.Handle == "" {
		return fmt.Errorf("handle is required")
	}
	if strings.HasPrefix(r.Handle, "@") {
		return fmt.Errorf("handle must be source-native without a leading '@' (got %q)", r.Handle)
	}
	if !r.Platform.Valid() {
		return fmt.Errorf("unknown platform %q", r.Platform)
	}
	return nil
}

// CanonicalHandle derives the fully-qualified fediverse address for a source
// handle: "@<handle>@<bridge domain>". The mapping is purely textual; the
// handle is not case-folded or otherwise normalized.
func CanonicalHandle(handle string, p Platform) string {
	return fmt.Sprintf("@%s@%s", handle, BridgeDomain(p))
}

// NormalizeHandle strips a single leading '@' if present, the form the
// fediverse search API expects.
func NormalizeHandle(handle string) string {
	return strings.TrimPrefix(handle, "@")
}
