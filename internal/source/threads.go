package source

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/goccy/go-json"

	"github.com/calebmh/fedisync/internal/follow"
)

// threadsExport mirrors the shape of the Meta data-export document.
// Everything except the handle values is ignored.
type threadsExport struct {
	Following []threadsEntry `json:"text_post_app_text_post_app_following"`
}

type threadsEntry struct {
	StringListData []threadsStringItem `json:"string_list_data"`
}

type threadsStringItem struct {
	Value string `json:"value"`
}

// Threads reads the operator's follow list from a Threads data-export file.
//
// Threads has no follow-list API, so the export file is the only source.
// Parsing is permissive: entries missing the expected structure contribute
// nothing and are skipped silently.
type Threads struct {
	exportPath string
	logger     *log.Logger
}

// NewThreads returns an adapter reading from the given export file path.
func NewThreads(exportPath string, logger *log.Logger) *Threads {
	if logger == nil {
		logger = log.New(os.Stderr, "[threads] ", log.LstdFlags)
	}
	return &Threads{
		exportPath: exportPath,
		logger:     logger,
	}
}

// Platform implements Source.
func (t *Threads) Platform() follow.Platform {
	return follow.Threads
}

// FetchFollows reads the export document once and extracts every non-empty
// handle value. Values are normalized to the source-native form (leading
// '@' stripped); values that still don't form a cacheable record are
// skipped. A missing or unreadable file is an error; a malformed entry
// is not.
func (t *Threads) FetchFollows(ctx context.Context) ([]follow.Record, error) {
	t.logger.Printf("Fetching follows from Threads export %s", t.exportPath)

	data, err := os.ReadFile(t.exportPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read Threads export: %w", err)
	}

	var export threadsExport
	if err := json.Unmarshal(data, &export); err != nil {
		return nil, fmt.Errorf("failed to parse Threads export: %w", err)
	}

	var records []follow.Record
	for _, entry := range export.Following {
		for _, item := range entry.StringListData {
			rec := follow.Record{
				Handle:   follow.NormalizeHandle(item.Value),
				Platform: follow.Threads,
			}
			if rec.Validate() != nil {
				continue
			}
			records = append(records, rec)
		}
	}

	t.logger.Printf("Fetched %d follows from export", len(records))
	return records, nil
}
