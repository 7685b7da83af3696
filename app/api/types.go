package api

import (
	"context"

	"github.com/feedloop/feedloop/app/database"
	"github.com/feedloop/feedloop/app/jobs"
	"github.com/feedloop/feedloop/app/refresh"
	"github.com/feedloop/feedloop/app/settings"
)

type SchedulerInterface interface {
	Status() jobs.SchedulerStatus
	TriggerManually(name string) (*database.JobRun, error)
}

type RefresherInterface interface {
	RefreshSource(ctx context.Context, id string) refresh.Result
}

type ReconcilerInterface interface {
	ReconcileStuckRuns() (int, error)
}

var _ SchedulerInterface = (*jobs.Scheduler)(nil)
var _ RefresherInterface = (*refresh.Pipeline)(nil)
var _ ReconcilerInterface = (*jobs.Executor)(nil)

type Handler struct {
	sourceRepo   database.SourceRepository
	itemRepo     database.ItemRepository
	subRepo      database.SubscriptionRepository
	categoryRepo database.CategoryRepository
	prefRepo     database.PreferenceRepository
	runRepo      database.JobRunRepository
	resolver     *settings.Resolver
	scheduler    SchedulerInterface
	refresher    RefresherInterface
	reconciler   ReconcilerInterface
}

type sourceSettingsRequest struct {
	Disabled       bool   `json:"disabled"`
	FetchTimeout   int    `json:"fetch_timeout"`
	UserAgent      string `json:"user_agent"`
	ExtractContent bool   `json:"extract_content"`
}

type createSourceRequest struct {
	URL      string                `json:"url"`
	Title    string                `json:"title"`
	Settings sourceSettingsRequest `json:"settings"`
}

type createSubscriptionRequest struct {
	UserID                 string  `json:"user_id"`
	SourceURL              string  `json:"source_url"`
	DisplayName            string  `json:"display_name"`
	CategoryID             *string `json:"category_id"`
	RefreshIntervalMinutes *int    `json:"refresh_interval_minutes"`
	MaxItems               *int    `json:"max_items"`
	MaxItemAgeDays         *int    `json:"max_item_age_days"`
}

type updateSubscriptionRequest struct {
	DisplayName            *string `json:"display_name"`
	CategoryID             *string `json:"category_id"`
	RefreshIntervalMinutes *int    `json:"refresh_interval_minutes"`
	MaxItems               *int    `json:"max_items"`
	MaxItemAgeDays         *int    `json:"max_item_age_days"`
}

type createCategoryRequest struct {
	UserID                 string `json:"user_id"`
	Name                   string `json:"name"`
	RefreshIntervalMinutes *int   `json:"refresh_interval_minutes"`
	MaxItems               *int   `json:"max_items"`
	MaxItemAgeDays         *int   `json:"max_item_age_days"`
}

type updateCategoryRequest struct {
	Name                   *string `json:"name"`
	RefreshIntervalMinutes *int    `json:"refresh_interval_minutes"`
	MaxItems               *int    `json:"max_items"`
	MaxItemAgeDays         *int    `json:"max_item_age_days"`
}

type preferencesRequest struct {
	RefreshIntervalMinutes *int `json:"refresh_interval_minutes"`
	MaxItems               *int `json:"max_items"`
	MaxItemAgeDays         *int `json:"max_item_age_days"`
}
