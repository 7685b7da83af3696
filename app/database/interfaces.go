package database

import (
	"context"
	"time"

	"github.com/feedloop/feedloop/app/settings"
)

type SourceRepository interface {
	GetSource(ctx context.Context, id string) (*Source, error)
	GetSourceByURL(ctx context.Context, url string) (*Source, error)
	ListSources(ctx context.Context) ([]Source, error)
	GetSourceCount(ctx context.Context) (int, error)

	CreateSource(ctx context.Context, source *Source) error
	UpdateSourceSeed(ctx context.Context, id string, title string, settings SourceSettings) error
	UpdateSourceTitle(ctx context.Context, id string, title string) error

	RecordRefreshSuccess(ctx context.Context, id string, fetchedAt time.Time) error
	RecordRefreshFailure(ctx context.Context, id string, message string) error
}

type ItemRepository interface {
	GetItemBySourceAndFingerprint(ctx context.Context, sourceID, fingerprint string) (*Item, error)
	GetItemCount(ctx context.Context, sourceID string) (int, error)
	GetTotalItemCount(ctx context.Context) (int, error)

	InsertItem(ctx context.Context, item *Item) error
	UpdateItemContent(ctx context.Context, item *Item) error

	GetItemsOlderThan(ctx context.Context, sourceID string, cutoff time.Time) ([]string, error)
	GetItemsBeyondLimit(ctx context.Context, sourceID string, keep int) ([]string, error)
	DeleteItemsByID(ctx context.Context, ids []string) (int, error)

	GetItemsForExtraction(ctx context.Context, sourceID string, limit int) ([]Item, error)
	UpdateExtractedBody(ctx context.Context, itemID string, body string, extractedAt time.Time) error
	SetItemEmbedding(ctx context.Context, itemID string, embeddingID string) error
}

type SubscriptionRepository interface {
	GetSubscription(ctx context.Context, id string) (*Subscription, error)
	ListSubscriptionsByUser(ctx context.Context, userID string) ([]Subscription, error)
	GetSubscriptionCount(ctx context.Context) (int, error)

	CreateSubscription(ctx context.Context, sub *Subscription) error
	UpdateSubscription(ctx context.Context, sub *Subscription) error
	DeleteSubscription(ctx context.Context, id string) error

	GetSettingsForSource(ctx context.Context, sourceID string) ([]settings.SubscriptionSettings, error)
	GetSettingsForSubscription(ctx context.Context, id string) (*settings.SubscriptionSettings, error)
}

type CategoryRepository interface {
	GetCategory(ctx context.Context, id string) (*Category, error)
	CreateCategory(ctx context.Context, category *Category) error
	UpdateCategory(ctx context.Context, category *Category) error
}

type PreferenceRepository interface {
	GetPreferences(ctx context.Context, userID string) (settings.Overrides, error)
	UpsertPreferences(ctx context.Context, userID string, overrides settings.Overrides) error
}

type PinRepository interface {
	PinItem(ctx context.Context, userID, itemID string) error
	UnpinItem(ctx context.Context, userID, itemID string) error
}

type JobRunRepository interface {
	CreateJobRun(ctx context.Context, jobName string) (*JobRun, error)
	CompleteJobRun(ctx context.Context, id string, status string, errorMessage string, logs []LogEntry, duration time.Duration) error

	GetRunningJobRun(ctx context.Context, jobName string) (*JobRun, error)
	GetLatestJobRun(ctx context.Context, jobName string) (*JobRun, error)
	ListJobRuns(ctx context.Context, jobName string, limit int) ([]JobRun, error)
	GetJobRunCountsByStatus(ctx context.Context) (map[string]int, error)

	MarkStuckJobRuns(ctx context.Context, threshold time.Duration) (int, error)
}
