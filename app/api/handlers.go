package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/feedloop/feedloop/app/database"
	"github.com/feedloop/feedloop/app/jobs"
	"github.com/feedloop/feedloop/app/settings"
)

func NewHandler(
	sourceRepo database.SourceRepository,
	itemRepo database.ItemRepository,
	subRepo database.SubscriptionRepository,
	categoryRepo database.CategoryRepository,
	prefRepo database.PreferenceRepository,
	runRepo database.JobRunRepository,
	resolver *settings.Resolver,
	scheduler SchedulerInterface,
	refresher RefresherInterface,
	reconciler ReconcilerInterface,
) *Handler {
	return &Handler{
		sourceRepo:   sourceRepo,
		itemRepo:     itemRepo,
		subRepo:      subRepo,
		categoryRepo: categoryRepo,
		prefRepo:     prefRepo,
		runRepo:      runRepo,
		resolver:     resolver,
		scheduler:    scheduler,
		refresher:    refresher,
		reconciler:   reconciler,
	}
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := gin.H{
		"status":    "ok",
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
	}

	if sourceCount, err := h.sourceRepo.GetSourceCount(c.Request.Context()); err == nil {
		health["sources"] = sourceCount
	}

	c.JSON(http.StatusOK, health)
}

func (h *Handler) GetStats(c *gin.Context) {
	ctx := c.Request.Context()
	stats := gin.H{}

	if count, err := h.sourceRepo.GetSourceCount(ctx); err == nil {
		stats["sources"] = count
	}

	if count, err := h.subRepo.GetSubscriptionCount(ctx); err == nil {
		stats["subscriptions"] = count
	}

	if count, err := h.itemRepo.GetTotalItemCount(ctx); err == nil {
		stats["items"] = count
	}

	if counts, err := h.runRepo.GetJobRunCountsByStatus(ctx); err == nil {
		stats["job_runs"] = counts
	}

	c.JSON(http.StatusOK, stats)
}

func (h *Handler) GetScheduler(c *gin.Context) {
	status := h.scheduler.Status()

	jobList := make([]gin.H, 0, len(status.Jobs))
	for _, job := range status.Jobs {
		jobList = append(jobList, gin.H{
			"name":        job.Name,
			"schedule":    job.Schedule,
			"running":     job.Running,
			"last_status": job.LastStatus,
			"last_run_at": job.LastRunAt,
			"last_error":  job.LastError,
			"next_run_at": job.NextRunAt,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"enabled":     status.Enabled,
		"initialized": status.Initialized,
		"jobs":        jobList,
	})
}

func (h *Handler) ListJobRuns(c *gin.Context) {
	name := c.Query("name")

	limit := 20
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit parameter"})
			return
		}
		limit = min(parsed, 100)
	}

	runs, err := h.runRepo.ListJobRuns(c.Request.Context(), name, limit)
	if err != nil {
		slog.Error("Database error", "operation", "list_job_runs", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	list := make([]gin.H, 0, len(runs))
	for _, run := range runs {
		list = append(list, jobRunJSON(&run))
	}

	c.JSON(http.StatusOK, gin.H{
		"runs":  list,
		"total": len(list),
	})
}

func (h *Handler) TriggerJob(c *gin.Context) {
	name := c.Param("name")

	run, err := h.scheduler.TriggerManually(name)
	if err != nil {
		switch {
		case errors.Is(err, jobs.ErrUnknownJob):
			c.JSON(http.StatusNotFound, gin.H{"error": "Unknown job", "job": name})
		case errors.Is(err, jobs.ErrAlreadyRunning):
			c.JSON(http.StatusConflict, gin.H{"error": "Job is already running", "job": name})
		default:
			slog.Error("Failed to trigger job", "job", name, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to trigger job"})
		}
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"message": "Job triggered",
		"run":     jobRunJSON(run),
	})
}

func (h *Handler) ReconcileJobs(c *gin.Context) {
	count, err := h.reconciler.ReconcileStuckRuns()
	if err != nil {
		slog.Error("Failed to reconcile stuck job runs", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to reconcile stuck job runs"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"reconciled": count})
}

func (h *Handler) ListSources(c *gin.Context) {
	ctx := c.Request.Context()

	sources, err := h.sourceRepo.ListSources(ctx)
	if err != nil {
		slog.Error("Database error", "operation", "list_sources", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	list := make([]gin.H, 0, len(sources))
	for _, source := range sources {
		info := sourceJSON(&source)

		if itemCount, err := h.itemRepo.GetItemCount(ctx, source.ID); err == nil {
			info["item_count"] = itemCount
		}

		list = append(list, info)
	}

	c.JSON(http.StatusOK, gin.H{
		"sources": list,
		"total":   len(list),
	})
}

func (h *Handler) CreateSource(c *gin.Context) {
	var req createSourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	if req.URL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url is required"})
		return
	}

	ctx := c.Request.Context()

	existing, err := h.sourceRepo.GetSourceByURL(ctx, req.URL)
	if err != nil {
		slog.Error("Database error", "operation", "get_source_by_url", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	if existing != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "Source already exists", "id": existing.ID})
		return
	}

	source := &database.Source{
		URL:   req.URL,
		Title: req.Title,
		Settings: database.SourceSettings{
			Disabled:       req.Settings.Disabled,
			FetchTimeout:   req.Settings.FetchTimeout,
			UserAgent:      req.Settings.UserAgent,
			ExtractContent: req.Settings.ExtractContent,
		},
	}

	if err := h.sourceRepo.CreateSource(ctx, source); err != nil {
		slog.Error("Database error", "operation", "create_source", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusCreated, sourceJSON(source))
}

func (h *Handler) RefreshSource(c *gin.Context) {
	id := c.Param("id")
	ctx := c.Request.Context()

	source, err := h.sourceRepo.GetSource(ctx, id)
	if err != nil {
		slog.Error("Database error", "operation", "get_source", "source_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	if source == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Source not found"})
		return
	}

	result := h.refresher.RefreshSource(ctx, id)

	response := gin.H{
		"source_id":     result.SourceID,
		"success":       result.Success,
		"new_items":     result.NewItems,
		"updated_items": result.UpdatedItems,
		"duration":      result.Duration.String(),
	}
	if result.Err != nil {
		response["error"] = result.Err.Error()
	}

	c.JSON(http.StatusOK, response)
}

func (h *Handler) ListSubscriptions(c *gin.Context) {
	userID := c.Query("user_id")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id parameter is required"})
		return
	}

	ctx := c.Request.Context()

	subs, err := h.subRepo.ListSubscriptionsByUser(ctx, userID)
	if err != nil {
		slog.Error("Database error", "operation", "list_subscriptions", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	list := make([]gin.H, 0, len(subs))
	for _, sub := range subs {
		info := subscriptionJSON(&sub)

		if chain, err := h.subRepo.GetSettingsForSubscription(ctx, sub.ID); err == nil && chain != nil {
			resolved := h.resolver.ForUser(*chain)
			info["effective"] = gin.H{
				"refresh_interval":  resolved.RefreshInterval.String(),
				"max_items":         resolved.MaxItems,
				"max_item_age_days": int(resolved.MaxItemAge.Hours() / 24),
			}
		}

		list = append(list, info)
	}

	c.JSON(http.StatusOK, gin.H{
		"subscriptions": list,
		"total":         len(list),
	})
}

func (h *Handler) CreateSubscription(c *gin.Context) {
	var req createSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	if req.UserID == "" || req.SourceURL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id and source_url are required"})
		return
	}

	overrides := settings.Overrides{
		RefreshIntervalMinutes: req.RefreshIntervalMinutes,
		MaxItems:               req.MaxItems,
		MaxItemAgeDays:         req.MaxItemAgeDays,
	}
	if err := settings.Validate(overrides); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()

	if req.CategoryID != nil {
		category, err := h.categoryRepo.GetCategory(ctx, *req.CategoryID)
		if err != nil {
			slog.Error("Database error", "operation", "get_category", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
			return
		}
		if category == nil || category.UserID != req.UserID {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Category not found for user"})
			return
		}
	}

	source, err := h.sourceRepo.GetSourceByURL(ctx, req.SourceURL)
	if err != nil {
		slog.Error("Database error", "operation", "get_source_by_url", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	if source == nil {
		// First subscriber brings the source into rotation.
		source = &database.Source{URL: req.SourceURL, Title: req.DisplayName}
		if err := h.sourceRepo.CreateSource(ctx, source); err != nil {
			slog.Error("Database error", "operation", "create_source", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
			return
		}
	}

	sub := &database.Subscription{
		UserID:                 req.UserID,
		SourceID:               source.ID,
		CategoryID:             req.CategoryID,
		DisplayName:            req.DisplayName,
		RefreshIntervalMinutes: req.RefreshIntervalMinutes,
		MaxItems:               req.MaxItems,
		MaxItemAgeDays:         req.MaxItemAgeDays,
	}

	if err := h.subRepo.CreateSubscription(ctx, sub); err != nil {
		slog.Error("Database error", "operation", "create_subscription", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusCreated, subscriptionJSON(sub))
}

func (h *Handler) UpdateSubscription(c *gin.Context) {
	id := c.Param("id")

	var req updateSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	ctx := c.Request.Context()

	sub, err := h.subRepo.GetSubscription(ctx, id)
	if err != nil {
		slog.Error("Database error", "operation", "get_subscription", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	if sub == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Subscription not found"})
		return
	}

	if req.DisplayName != nil {
		sub.DisplayName = *req.DisplayName
	}

	if req.CategoryID != nil {
		if *req.CategoryID == "" {
			sub.CategoryID = nil
		} else {
			category, err := h.categoryRepo.GetCategory(ctx, *req.CategoryID)
			if err != nil {
				slog.Error("Database error", "operation", "get_category", "error", err)
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
				return
			}
			if category == nil || category.UserID != sub.UserID {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Category not found for user"})
				return
			}
			sub.CategoryID = req.CategoryID
		}
	}

	sub.RefreshIntervalMinutes = applyOverride(sub.RefreshIntervalMinutes, req.RefreshIntervalMinutes)
	sub.MaxItems = applyOverride(sub.MaxItems, req.MaxItems)
	sub.MaxItemAgeDays = applyOverride(sub.MaxItemAgeDays, req.MaxItemAgeDays)

	overrides := settings.Overrides{
		RefreshIntervalMinutes: sub.RefreshIntervalMinutes,
		MaxItems:               sub.MaxItems,
		MaxItemAgeDays:         sub.MaxItemAgeDays,
	}
	if err := settings.Validate(overrides); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.subRepo.UpdateSubscription(ctx, sub); err != nil {
		slog.Error("Database error", "operation", "update_subscription", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, subscriptionJSON(sub))
}

func (h *Handler) DeleteSubscription(c *gin.Context) {
	id := c.Param("id")
	ctx := c.Request.Context()

	sub, err := h.subRepo.GetSubscription(ctx, id)
	if err != nil {
		slog.Error("Database error", "operation", "get_subscription", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	if sub == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Subscription not found"})
		return
	}

	if err := h.subRepo.DeleteSubscription(ctx, id); err != nil {
		slog.Error("Database error", "operation", "delete_subscription", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) CreateCategory(c *gin.Context) {
	var req createCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	if req.UserID == "" || req.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id and name are required"})
		return
	}

	overrides := settings.Overrides{
		RefreshIntervalMinutes: req.RefreshIntervalMinutes,
		MaxItems:               req.MaxItems,
		MaxItemAgeDays:         req.MaxItemAgeDays,
	}
	if err := settings.Validate(overrides); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	category := &database.Category{
		UserID:                 req.UserID,
		Name:                   req.Name,
		RefreshIntervalMinutes: req.RefreshIntervalMinutes,
		MaxItems:               req.MaxItems,
		MaxItemAgeDays:         req.MaxItemAgeDays,
	}

	if err := h.categoryRepo.CreateCategory(c.Request.Context(), category); err != nil {
		slog.Error("Database error", "operation", "create_category", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusCreated, categoryJSON(category))
}

func (h *Handler) UpdateCategory(c *gin.Context) {
	id := c.Param("id")

	var req updateCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	ctx := c.Request.Context()

	category, err := h.categoryRepo.GetCategory(ctx, id)
	if err != nil {
		slog.Error("Database error", "operation", "get_category", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	if category == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Category not found"})
		return
	}

	if req.Name != nil {
		if *req.Name == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "name must not be empty"})
			return
		}
		category.Name = *req.Name
	}

	category.RefreshIntervalMinutes = applyOverride(category.RefreshIntervalMinutes, req.RefreshIntervalMinutes)
	category.MaxItems = applyOverride(category.MaxItems, req.MaxItems)
	category.MaxItemAgeDays = applyOverride(category.MaxItemAgeDays, req.MaxItemAgeDays)

	overrides := settings.Overrides{
		RefreshIntervalMinutes: category.RefreshIntervalMinutes,
		MaxItems:               category.MaxItems,
		MaxItemAgeDays:         category.MaxItemAgeDays,
	}
	if err := settings.Validate(overrides); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.categoryRepo.UpdateCategory(ctx, category); err != nil {
		slog.Error("Database error", "operation", "update_category", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, categoryJSON(category))
}

func (h *Handler) PutUserPreferences(c *gin.Context) {
	userID := c.Param("id")

	var req preferencesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	overrides := settings.Overrides{
		RefreshIntervalMinutes: req.RefreshIntervalMinutes,
		MaxItems:               req.MaxItems,
		MaxItemAgeDays:         req.MaxItemAgeDays,
	}
	if err := settings.Validate(overrides); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.prefRepo.UpsertPreferences(c.Request.Context(), userID, overrides); err != nil {
		slog.Error("Database error", "operation", "upsert_preferences", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user_id":                  userID,
		"refresh_interval_minutes": overrides.RefreshIntervalMinutes,
		"max_items":                overrides.MaxItems,
		"max_item_age_days":        overrides.MaxItemAgeDays,
	})
}

// applyOverride implements the patch convention for override fields: absent
// keeps the current value, zero clears it, anything else replaces it.
func applyOverride(current, incoming *int) *int {
	if incoming == nil {
		return current
	}

	if *incoming == 0 {
		return nil
	}

	return incoming
}

func sourceJSON(source *database.Source) gin.H {
	return gin.H{
		"id":              source.ID,
		"url":             source.URL,
		"title":           source.Title,
		"disabled":        source.Settings.Disabled,
		"extract_content": source.Settings.ExtractContent,
		"last_fetched_at": source.LastFetchedAt,
		"error_count":     source.ErrorCount,
		"last_error":      source.LastError,
		"created_at":      source.CreatedAt,
		"updated_at":      source.UpdatedAt,
	}
}

func subscriptionJSON(sub *database.Subscription) gin.H {
	return gin.H{
		"id":                       sub.ID,
		"user_id":                  sub.UserID,
		"source_id":                sub.SourceID,
		"category_id":              sub.CategoryID,
		"display_name":             sub.DisplayName,
		"refresh_interval_minutes": sub.RefreshIntervalMinutes,
		"max_items":                sub.MaxItems,
		"max_item_age_days":        sub.MaxItemAgeDays,
		"created_at":               sub.CreatedAt,
		"updated_at":               sub.UpdatedAt,
	}
}

func categoryJSON(category *database.Category) gin.H {
	return gin.H{
		"id":                       category.ID,
		"user_id":                  category.UserID,
		"name":                     category.Name,
		"refresh_interval_minutes": category.RefreshIntervalMinutes,
		"max_items":                category.MaxItems,
		"max_item_age_days":        category.MaxItemAgeDays,
		"created_at":               category.CreatedAt,
		"updated_at":               category.UpdatedAt,
	}
}

func jobRunJSON(run *database.JobRun) gin.H {
	return gin.H{
		"id":            run.ID,
		"job_name":      run.JobName,
		"status":        run.Status,
		"started_at":    run.StartedAt,
		"completed_at":  run.CompletedAt,
		"duration_ms":   run.DurationMs,
		"error_message": run.ErrorMessage,
		"logs":          run.Logs,
	}
}
