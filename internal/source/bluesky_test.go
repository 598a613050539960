package source

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/calebmh/fedisync/internal/config"
	"github.com/calebmh/fedisync/internal/follow"
)

// fakeBluesky is a minimal atproto endpoint: a fixed session plus a
// paginated follow list served in pages of two.
type fakeBluesky struct {
	rejectLogin bool
	failPage    string // cursor value whose page request returns HTTP 500
	follows     []string
	loginCalls  int
	fetchCalls  int
}

func (f *fakeBluesky) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/xrpc/com.atproto.server.createSession", func(w http.ResponseWriter, r *http.Request) {
		f.loginCalls++
		if f.rejectLogin {
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, `{"error":"AuthenticationRequired","message":"Invalid identifier or password"}`)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"accessJwt":"aj","refreshJwt":"rj","handle":"operator.bsky.social","did":"did:plc:op"}`)
	})

	mux.HandleFunc("/xrpc/app.bsky.graph.getFollows", func(w http.ResponseWriter, r *http.Request) {
		f.fetchCalls++
		cursor := r.URL.Query().Get("cursor")
		if f.failPage != "" && cursor == f.failPage {
			w.WriteHeader(http.StatusInternalServerError)
			fmt.Fprint(w, `{"error":"InternalServerError","message":"boom"}`)
			return
		}

		start := 0
		if cursor != "" {
			fmt.Sscanf(cursor, "%d", &start)
		}
		end := start + 2
		if end > len(f.follows) {
			end = len(f.follows)
		}

		page := `{"subject":{"did":"did:plc:op","handle":"operator.bsky.social"},"follows":[`
		for i := start; i < end; i++ {
			if i > start {
				page += ","
			}
			page += fmt.Sprintf(`{"did":"did:plc:%d","handle":"%s"}`, i, f.follows[i])
		}
		page += `]`
		if end < len(f.follows) {
			page += fmt.Sprintf(`,"cursor":"%d"`, end)
		}
		page += `}`

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, page)
	})

	return mux
}

// newTestBluesky spins up a fake atproto server and an adapter logged into it.
func newTestBluesky(t *testing.T, fake *fakeBluesky) *Bluesky {
	t.Helper()

	srv := httptest.NewServer(fake.handler())
	t.Cleanup(srv.Close)

	adapter, err := NewBluesky(context.Background(), &config.BlueskyConfig{
		Host:     srv.URL,
		Username: "operator.bsky.social",
		Password: "app-password",
	}, testLogger())
	if err != nil {
		t.Fatalf("NewBluesky failed: %v", err)
	}
	return adapter
}

func TestNewBlueskyRejectedLogin(t *testing.T) {
	fake := &fakeBluesky{rejectLogin: true}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	_, err := NewBluesky(context.Background(), &config.BlueskyConfig{
		Host:     srv.URL,
		Username: "operator.bsky.social",
		Password: "wrong",
	}, testLogger())
	if err == nil {
		t.Fatal("expected login error")
	}
	if !errors.Is(err, ErrAuthentication) {
		t.Errorf("error does not wrap ErrAuthentication: %v", err)
	}
}

func TestBlueskyFetchFollowsPaginates(t *testing.T) {
	fake := &fakeBluesky{
		follows: []string{"a.bsky.social", "b.bsky.social", "c.bsky.social", "d.bsky.social", "e.bsky.social"},
	}
	adapter := newTestBluesky(t, fake)

	records, err := adapter.FetchFollows(context.Background())
	if err != nil {
		t.Fatalf("FetchFollows failed: %v", err)
	}

	if len(records) != len(fake.follows) {
		t.Fatalf("expected %d records, got %d", len(fake.follows), len(records))
	}
	for i, rec := range records {
		if rec.Handle != fake.follows[i] {
			t.Errorf("record %d = %q, want %q (page order must be preserved)", i, rec.Handle, fake.follows[i])
		}
		if rec.Platform != follow.Bluesky {
			t.Errorf("record %d platform = %s", i, rec.Platform)
		}
	}

	// Five follows in pages of two means three page fetches.
	if fake.fetchCalls != 3 {
		t.Errorf("expected 3 page fetches, got %d", fake.fetchCalls)
	}
}

func TestBlueskyFetchFollowsEmpty(t *testing.T) {
	adapter := newTestBluesky(t, &fakeBluesky{})

	records, err := adapter.FetchFollows(context.Background())
	if err != nil {
		t.Fatalf("FetchFollows failed: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("expected no records, got %d", len(records))
	}
}

func TestBlueskyFetchFollowsMidStreamError(t *testing.T) {
	// A failing second page aborts the whole fetch; there is no partial
	// result and no checkpointing.
	fake := &fakeBluesky{
		follows:  []string{"a.bsky.social", "b.bsky.social", "c.bsky.social"},
		failPage: "2",
	}
	adapter := newTestBluesky(t, fake)

	records, err := adapter.FetchFollows(context.Background())
	if err == nil {
		t.Fatal("expected mid-stream fetch error")
	}
	if records != nil {
		t.Errorf("expected no partial records, got %d", len(records))
	}
}
