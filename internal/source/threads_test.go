package source

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"testing"

	"github.com/calebmh/fedisync/internal/follow"
)

// writeExport writes a Threads export document to a temp file.
func writeExport(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "following.json")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write export file: %v", err)
	}
	return path
}

func testLogger() *log.Logger {
	return log.New(os.Stderr, "[test] ", 0)
}

func TestThreadsFetchFollows(t *testing.T) {
	path := writeExport(t, `{
		"text_post_app_text_post_app_following": [
			{"string_list_data": [{"value": "alice", "href": "https://threads.net/@alice"}]},
			{"string_list_data": [{"value": "bob"}, {"value": "carol"}]}
		]
	}`)

	adapter := NewThreads(path, testLogger())
	if adapter.Platform() != follow.Threads {
		t.Errorf("Platform() = %s", adapter.Platform())
	}

	records, err := adapter.FetchFollows(context.Background())
	if err != nil {
		t.Fatalf("FetchFollows failed: %v", err)
	}

	want := []string{"alice", "bob", "carol"}
	if len(records) != len(want) {
		t.Fatalf("expected %d records, got %d", len(want), len(records))
	}
	for i, rec := range records {
		if rec.Handle != want[i] {
			t.Errorf("record %d handle = %q, want %q", i, rec.Handle, want[i])
		}
		if rec.Platform != follow.Threads {
			t.Errorf("record %d platform = %s", i, rec.Platform)
		}
		if rec.Followed {
			t.Errorf("record %d should start unfollowed", i)
		}
	}
}

func TestThreadsSkipsMalformedEntries(t *testing.T) {
	// One entry lacks string_list_data entirely, one has an item without a
	// value, one is fine with two values. Malformed entries are skipped
	// silently, not errors.
	path := writeExport(t, `{
		"text_post_app_text_post_app_following": [
			{"title": "no string list data here"},
			{"string_list_data": [{"href": "https://threads.net/@nameless"}]},
			{"string_list_data": [{"value": "dana"}, {"value": "erin"}]}
		]
	}`)

	records, err := NewThreads(path, testLogger()).FetchFollows(context.Background())
	if err != nil {
		t.Fatalf("FetchFollows failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected exactly 2 records, got %d", len(records))
	}
	if records[0].Handle != "dana" || records[1].Handle != "erin" {
		t.Errorf("unexpected handles: %q, %q", records[0].Handle, records[1].Handle)
	}
}

func TestThreadsStripsLeadingAtFromValues(t *testing.T) {
	// Some exports carry the display form of the handle. The stripped
	// record must be cacheable; a value that stays malformed is skipped
	// rather than aborting the fetch.
	path := writeExport(t, `{
		"text_post_app_text_post_app_following": [
			{"string_list_data": [{"value": "@alice"}]},
			{"string_list_data": [{"value": "@@weird"}]},
			{"string_list_data": [{"value": "bob"}]}
		]
	}`)

	records, err := NewThreads(path, testLogger()).FetchFollows(context.Background())
	if err != nil {
		t.Fatalf("FetchFollows failed: %v", err)
	}

	want := []string{"alice", "bob"}
	if len(records) != len(want) {
		t.Fatalf("expected %d records, got %d", len(want), len(records))
	}
	for i, rec := range records {
		if rec.Handle != want[i] {
			t.Errorf("record %d handle = %q, want %q", i, rec.Handle, want[i])
		}
		if err := rec.Validate(); err != nil {
			t.Errorf("record %d not cacheable: %v", i, err)
		}
	}
}

func TestThreadsMissingExportFile(t *testing.T) {
	adapter := NewThreads(filepath.Join(t.TempDir(), "nope.json"), testLogger())
	if _, err := adapter.FetchFollows(context.Background()); err == nil {
		t.Error("expected error for missing export file")
	}
}

func TestThreadsMalformedDocument(t *testing.T) {
	path := writeExport(t, `{not json`)
	if _, err := NewThreads(path, testLogger()).FetchFollows(context.Background()); err == nil {
		t.Error("expected error for malformed document")
	}
}

func TestThreadsEmptyFollowingList(t *testing.T) {
	path := writeExport(t, `{"text_post_app_text_post_app_following": []}`)

	records, err := NewThreads(path, testLogger()).FetchFollows(context.Background())
	if err != nil {
		t.Fatalf("FetchFollows failed: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("expected no records, got %d", len(records))
	}
}
