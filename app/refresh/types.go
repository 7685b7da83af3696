package refresh

import (
	"context"
	"time"

	"github.com/feedloop/feedloop/app/database"
	"github.com/feedloop/feedloop/app/feed"
)

var _ Fetcher = (*feed.Fetcher)(nil)
var _ Parser = (*feed.Parser)(nil)
var _ Extractor = (*feed.ContentExtractor)(nil)

// Result is the outcome of refreshing a single source.
type Result struct {
	SourceID     string
	Success      bool
	NewItems     int
	UpdatedItems int
	Duration     time.Duration
	Err          error
}

// BatchStats aggregates one scheduled refresh pass over all sources.
type BatchStats struct {
	Sources      int
	Due          int
	Succeeded    int
	Failed       int
	NewItems     int
	UpdatedItems int
}

type Fetcher interface {
	Fetch(ctx context.Context, url string, opts feed.FetchOptions) ([]byte, error)
	FetchArticle(ctx context.Context, url string, opts feed.FetchOptions) ([]byte, error)
}

type Parser interface {
	Run(data []byte) (*feed.Document, error)
}

type Extractor interface {
	Run(data []byte) (string, error)
}

// Notifier receives stored-item events for downstream consumers.
// Implementations must not block.
type Notifier interface {
	ItemStored(item *database.Item, isNew bool)
	EmbeddingRequested(itemID string, text string)
}
