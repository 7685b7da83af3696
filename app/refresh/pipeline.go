package refresh

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/feedloop/feedloop/app/database"
	"github.com/feedloop/feedloop/app/feed"
	"github.com/feedloop/feedloop/app/settings"
)

const extractBatchSize = 20

// Pipeline refreshes sources: fetch, parse, dedupe against stored
// fingerprints, upsert, clean up, and optionally extract full content.
// Refreshes of the same source are serialized; different sources may run
// concurrently.
type Pipeline struct {
	sourceRepo  database.SourceRepository
	itemRepo    database.ItemRepository
	subRepo     database.SubscriptionRepository
	resolver    *settings.Resolver
	fetcher     Fetcher
	parser      Parser
	extractor   Extractor
	cleaner     *Cleaner
	notifier    Notifier
	workerCount int
	locks       sync.Map
}

func NewPipeline(sourceRepo database.SourceRepository, itemRepo database.ItemRepository,
	subRepo database.SubscriptionRepository, resolver *settings.Resolver,
	fetcher Fetcher, parser Parser, extractor Extractor,
	cleaner *Cleaner, notifier Notifier, workerCount int) *Pipeline {
	return &Pipeline{
		sourceRepo:  sourceRepo,
		itemRepo:    itemRepo,
		subRepo:     subRepo,
		resolver:    resolver,
		fetcher:     fetcher,
		parser:      parser,
		extractor:   extractor,
		cleaner:     cleaner,
		notifier:    notifier,
		workerCount: workerCount,
	}
}

// RefreshSource runs the full refresh pipeline for one source. A failure at
// any stage is recorded on the source row and reported in the result; nothing
// written by earlier stages is rolled back.
func (p *Pipeline) RefreshSource(ctx context.Context, id string) Result {
	mu := p.lockFor(id)
	mu.Lock()
	defer mu.Unlock()

	start := time.Now()

	source, err := p.sourceRepo.GetSource(ctx, id)
	if err != nil {
		return Result{SourceID: id, Duration: time.Since(start), Err: fmt.Errorf("failed to load source: %w", err)}
	}
	if source == nil {
		return Result{SourceID: id, Duration: time.Since(start), Err: fmt.Errorf("source not found: %s", id)}
	}

	if source.Settings.Disabled {
		slog.Debug("Source disabled, skipping", "source", source.URL)
		return Result{SourceID: id, Success: true, Duration: time.Since(start)}
	}

	opts := fetchOptions(source.Settings)

	data, err := p.fetcher.Fetch(ctx, source.URL, opts)
	if err != nil {
		return p.fail(ctx, source, start, fmt.Errorf("failed to fetch source: %w", err))
	}

	doc, err := p.parser.Run(data)
	if err != nil {
		return p.fail(ctx, source, start, err)
	}

	if doc.Title != "" && doc.Title != source.Title {
		if err := p.sourceRepo.UpdateSourceTitle(ctx, source.ID, doc.Title); err != nil {
			return p.fail(ctx, source, start, fmt.Errorf("failed to update source title: %w", err))
		}
	}

	newCount := 0
	updatedCount := 0

	for _, entry := range doc.Items {
		stored, isNew, err := p.storeItem(ctx, source.ID, entry)
		if err != nil {
			return p.fail(ctx, source, start, err)
		}
		if stored == nil {
			continue
		}
		if isNew {
			newCount++
		} else {
			updatedCount++
		}
		p.notifier.ItemStored(stored, isNew)
	}

	// Retention failures must not undo a successful fetch, so they only warn.
	if deleted, err := p.cleaner.CleanupSource(ctx, source.ID); err != nil {
		slog.Warn("Failed to clean up source", "source", source.URL, "error", err)
	} else if deleted > 0 {
		slog.Debug("Source cleaned up", "source", source.URL, "deleted", deleted)
	}

	if err := p.sourceRepo.RecordRefreshSuccess(ctx, source.ID, time.Now().UTC()); err != nil {
		return p.fail(ctx, source, start, fmt.Errorf("failed to record refresh: %w", err))
	}

	if source.Settings.ExtractContent {
		p.extractContent(ctx, source, opts)
	}

	slog.Info("Task completed",
		"type", "RefreshSource",
		"source", source.URL,
		"duration", time.Since(start),
		"total", len(doc.Items),
		"new", newCount,
		"updated", updatedCount)

	return Result{
		SourceID:     id,
		Success:      true,
		NewItems:     newCount,
		UpdatedItems: updatedCount,
		Duration:     time.Since(start),
	}
}

// RunRefreshJob refreshes every due source through a worker pool. Per-source
// failures are reported in the batch stats without failing the run.
func (p *Pipeline) RunRefreshJob(ctx context.Context, log *slog.Logger) error {
	sources, err := p.sourceRepo.ListSources(ctx)
	if err != nil {
		return fmt.Errorf("failed to list sources: %w", err)
	}

	start := time.Now()
	due := p.dueSources(ctx, sources, log)
	stats := BatchStats{Sources: len(sources), Due: len(due)}

	if len(due) > 0 {
		queue := make(chan string, len(due))
		results := make(chan Result, len(due))

		var wg sync.WaitGroup
		for i := 0; i < max(p.workerCount, 1); i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for id := range queue {
					results <- p.RefreshSource(ctx, id)
				}
			}()
		}

		for _, id := range due {
			queue <- id
		}
		close(queue)
		wg.Wait()
		close(results)

		for result := range results {
			if result.Success {
				stats.Succeeded++
			} else {
				stats.Failed++
				log.Warn("Source refresh failed", "source", result.SourceID, "error", result.Err)
			}
			stats.NewItems += result.NewItems
			stats.UpdatedItems += result.UpdatedItems
		}
	}

	log.Info("Task completed",
		"type", "RefreshBatch",
		"sources", stats.Sources,
		"due", stats.Due,
		"succeeded", stats.Succeeded,
		"failed", stats.Failed,
		"new", stats.NewItems,
		"updated", stats.UpdatedItems,
		"duration", time.Since(start))

	return nil
}

// dueSources selects the sources whose resolved refresh interval has elapsed.
// Never-fetched sources are always due; disabled ones never are.
func (p *Pipeline) dueSources(ctx context.Context, sources []database.Source, log *slog.Logger) []string {
	now := time.Now().UTC()
	var due []string

	for _, source := range sources {
		if source.Settings.Disabled {
			continue
		}

		if source.LastFetchedAt == nil {
			due = append(due, source.ID)
			continue
		}

		chains, err := p.subRepo.GetSettingsForSource(ctx, source.ID)
		if err != nil {
			log.Warn("Failed to load refresh settings, skipping", "source", source.URL, "error", err)
			continue
		}

		if now.Sub(*source.LastFetchedAt) >= p.resolver.ForSource(chains).RefreshInterval {
			due = append(due, source.ID)
		} else {
			log.Debug("Source not due for refresh yet", "source", source.URL, "last_fetched_at", source.LastFetchedAt)
		}
	}

	return due
}

// storeItem classifies one parsed entry against storage: unseen fingerprints
// insert, changed metadata updates in place, everything else is a no-op. The
// returned item is nil for no-ops.
func (p *Pipeline) storeItem(ctx context.Context, sourceID string, entry feed.Item) (*database.Item, bool, error) {
	existing, err := p.itemRepo.GetItemBySourceAndFingerprint(ctx, sourceID, entry.Fingerprint)
	if err != nil {
		return nil, false, fmt.Errorf("failed to check for duplicates: %w", err)
	}

	if existing == nil {
		item := &database.Item{
			SourceID:    sourceID,
			GUID:        entry.GUID,
			Link:        entry.Link,
			Title:       entry.Title,
			Body:        entry.Body,
			Author:      entry.Author,
			ImageURL:    entry.ImageURL,
			Fingerprint: entry.Fingerprint,
			PublishedAt: entry.PublishedAt,
		}
		if item.PublishedAt.IsZero() {
			item.PublishedAt = time.Now().UTC()
		}
		if err := p.itemRepo.InsertItem(ctx, item); err != nil {
			return nil, false, err
		}
		return item, true, nil
	}

	if !metadataChanged(existing, entry) {
		return nil, false, nil
	}

	existing.Title = entry.Title
	existing.Link = entry.Link
	existing.Author = entry.Author
	existing.ImageURL = entry.ImageURL
	if !entry.PublishedAt.IsZero() {
		existing.PublishedAt = entry.PublishedAt
	}
	if err := p.itemRepo.UpdateItemContent(ctx, existing); err != nil {
		return nil, false, err
	}

	return existing, false, nil
}

// metadataChanged reports whether a re-seen entry carries different metadata.
// A zero incoming date means the feed stopped sending dates, not an update.
func metadataChanged(existing *database.Item, entry feed.Item) bool {
	if existing.Title != entry.Title || existing.Link != entry.Link ||
		existing.Author != entry.Author || existing.ImageURL != entry.ImageURL {
		return true
	}
	return !entry.PublishedAt.IsZero() && !existing.PublishedAt.Equal(entry.PublishedAt)
}

// extractContent fetches and extracts the full article body for items that
// still carry only their feed snippet. Per-item failures are logged and the
// batch keeps going.
func (p *Pipeline) extractContent(ctx context.Context, source *database.Source, opts feed.FetchOptions) {
	items, err := p.itemRepo.GetItemsForExtraction(ctx, source.ID, extractBatchSize)
	if err != nil {
		slog.Error("Failed to get items for content extraction", "source", source.URL, "error", err)
		return
	}
	if len(items) == 0 {
		return
	}

	successCount := 0
	errorCount := 0

	for _, item := range items {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := p.extractItem(ctx, item, opts); err != nil {
			slog.Error("Failed to extract content for item", "item_id", item.ID, "url", item.Link, "error", err)
			errorCount++
			continue
		}
		successCount++
	}

	slog.Debug("Content extraction finished",
		"source", source.URL,
		"success", successCount,
		"errors", errorCount)
}

func (p *Pipeline) extractItem(ctx context.Context, item database.Item, opts feed.FetchOptions) error {
	data, err := p.fetcher.FetchArticle(ctx, item.Link, opts)
	if err != nil {
		return fmt.Errorf("failed to fetch article content: %w", err)
	}

	body, err := p.extractor.Run(data)
	if err != nil {
		return err
	}

	if err := p.itemRepo.UpdateExtractedBody(ctx, item.ID, body, time.Now().UTC()); err != nil {
		return err
	}

	p.notifier.EmbeddingRequested(item.ID, body)

	return nil
}

// fail records the failure on the source row and returns a failed result.
// Recording itself failing only logs; the original error wins.
func (p *Pipeline) fail(ctx context.Context, source *database.Source, start time.Time, err error) Result {
	if recordErr := p.sourceRepo.RecordRefreshFailure(ctx, source.ID, err.Error()); recordErr != nil {
		slog.Error("Failed to record refresh failure", "source", source.URL, "error", recordErr)
	}
	return Result{SourceID: source.ID, Duration: time.Since(start), Err: err}
}

func (p *Pipeline) lockFor(id string) *sync.Mutex {
	mu, _ := p.locks.LoadOrStore(id, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

func fetchOptions(s database.SourceSettings) feed.FetchOptions {
	return feed.FetchOptions{
		Timeout:   time.Duration(s.FetchTimeout) * time.Second,
		UserAgent: s.UserAgent,
	}
}
