package refresh

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/feedloop/feedloop/app/database"
	"github.com/feedloop/feedloop/app/settings"
)

// Cleaner enforces per-source retention. Items past the resolved age limit or
// ranked beyond the resolved count limit are deleted in one pass; pinned items
// are never touched.
type Cleaner struct {
	sourceRepo database.SourceRepository
	subRepo    database.SubscriptionRepository
	itemRepo   database.ItemRepository
	resolver   *settings.Resolver
}

func NewCleaner(sourceRepo database.SourceRepository, subRepo database.SubscriptionRepository,
	itemRepo database.ItemRepository, resolver *settings.Resolver) *Cleaner {
	return &Cleaner{
		sourceRepo: sourceRepo,
		subRepo:    subRepo,
		itemRepo:   itemRepo,
		resolver:   resolver,
	}
}

// CleanupSource resolves the retention settings for one source and deletes
// whatever falls outside them. Returns the number of deleted items.
func (c *Cleaner) CleanupSource(ctx context.Context, sourceID string) (int, error) {
	chains, err := c.subRepo.GetSettingsForSource(ctx, sourceID)
	if err != nil {
		return 0, fmt.Errorf("failed to load retention settings: %w", err)
	}

	return c.cleanupWithRetention(ctx, sourceID, c.resolver.ForSource(chains))
}

// cleanupWithRetention collects the ids doomed by each retention rule, unions
// them, and deletes the set in a single statement. Both rules absent means
// unlimited retention.
func (c *Cleaner) cleanupWithRetention(ctx context.Context, sourceID string, retention settings.Resolved) (int, error) {
	if retention.MaxItems == 0 && retention.MaxItemAge == 0 {
		return 0, nil
	}

	doomed := make(map[string]struct{})

	if retention.MaxItemAge > 0 {
		cutoff := time.Now().UTC().Add(-retention.MaxItemAge)
		ids, err := c.itemRepo.GetItemsOlderThan(ctx, sourceID, cutoff)
		if err != nil {
			return 0, fmt.Errorf("failed to collect expired items: %w", err)
		}
		for _, id := range ids {
			doomed[id] = struct{}{}
		}
	}

	if retention.MaxItems > 0 {
		ids, err := c.itemRepo.GetItemsBeyondLimit(ctx, sourceID, retention.MaxItems)
		if err != nil {
			return 0, fmt.Errorf("failed to collect surplus items: %w", err)
		}
		for _, id := range ids {
			doomed[id] = struct{}{}
		}
	}

	if len(doomed) == 0 {
		return 0, nil
	}

	ids := make([]string, 0, len(doomed))
	for id := range doomed {
		ids = append(ids, id)
	}

	deleted, err := c.itemRepo.DeleteItemsByID(ctx, ids)
	if err != nil {
		return 0, fmt.Errorf("failed to delete items: %w", err)
	}

	return deleted, nil
}

// RunCleanupJob sweeps every source. Per-source failures are logged and
// counted without aborting the sweep.
func (c *Cleaner) RunCleanupJob(ctx context.Context, log *slog.Logger) error {
	sources, err := c.sourceRepo.ListSources(ctx)
	if err != nil {
		return fmt.Errorf("failed to list sources: %w", err)
	}

	start := time.Now()
	deletedTotal := 0
	failed := 0

	for _, source := range sources {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		deleted, err := c.CleanupSource(ctx, source.ID)
		if err != nil {
			log.Error("Failed to clean up source", "source", source.URL, "error", err)
			failed++
			continue
		}

		if deleted > 0 {
			log.Debug("Source cleaned up", "source", source.URL, "deleted", deleted)
		}
		deletedTotal += deleted
	}

	log.Info("Task completed",
		"type", "CleanupBatch",
		"sources", len(sources),
		"deleted", deletedTotal,
		"failures", failed,
		"duration", time.Since(start))

	return nil
}
