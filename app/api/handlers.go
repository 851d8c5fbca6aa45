package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"

	"github.com/lysyi3m/job-comb/app/database"
	"github.com/lysyi3m/job-comb/app/feed"
	"github.com/lysyi3m/job-comb/app/tasks"
)

const (
	defaultFeedItems = 50
	defaultRunsLimit = 20
	maxRunsLimit     = 200
)

func NewHandler(configCache *feed.ConfigCache, feedRepo database.FeedRepository,
	jobRepo database.JobRepository, runRepo database.RunRepository,
	generator GeneratorInterface, importer ImporterInterface, scheduler tasks.Scheduler,
	version string) *Handler {
	return &Handler{
		feedRepo:    feedRepo,
		jobRepo:     jobRepo,
		runRepo:     runRepo,
		generator:   generator,
		configCache: configCache,
		importer:    importer,
		scheduler:   scheduler,
		version:     version,
		startedAt:   time.Now(),
	}
}

// GetFeed republishes the imported jobs of a feed as RSS.
func (h *Handler) GetFeed(c *gin.Context) {
	name := c.Param("id")

	stored, err := h.feedRepo.GetFeed(name)
	if err != nil {
		slog.Error("Database error", "operation", "get_feed", "feed", name, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	if stored == nil {
		c.Status(http.StatusNotFound)
		return
	}

	limit := defaultFeedItems
	if feedConfig, err := h.configCache.GetConfig(name); err == nil && feedConfig.Settings.MaxItems > 0 {
		limit = feedConfig.Settings.MaxItems
	}

	jobs, err := h.jobRepo.GetJobs(name, limit)
	if err != nil {
		slog.Error("Database error", "operation", "get_jobs", "feed", name, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	rss, err := h.generator.Run(*stored, jobs)
	if err != nil {
		slog.Error("RSS generation error", "feed", name, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	c.Header("Content-Type", "application/xml; charset=utf-8")
	c.Header("X-Feed-Items", strconv.Itoa(len(jobs)))
	c.Header("X-Feed-Name", name)
	c.Header("X-Last-Updated", stored.UpdatedAt.Format(time.RFC3339))

	c.String(http.StatusOK, rss)
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]interface{}{
		"status":    "ok",
		"version":   h.version,
		"uptime":    time.Since(h.startedAt).Round(time.Second).String(),
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
	}

	if feedCount, err := h.feedRepo.GetFeedCount(); err == nil {
		health["feeds"] = feedCount
	}

	if activeCount, err := h.feedRepo.GetActiveFeedCount(); err == nil {
		health["active_feeds"] = activeCount
	}

	health["loaded_configurations"] = h.configCache.GetConfigCount()
	health["scheduled_hooks"] = len(h.scheduler.Hooks())

	c.JSON(http.StatusOK, health)
}

func (h *Handler) APIListFeeds(c *gin.Context) {
	feeds, err := h.feedRepo.GetFeeds()
	if err != nil {
		slog.Error("Database error", "operation", "get_feeds", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	summaries := lo.Map(feeds, func(f database.Feed, _ int) feedSummary {
		return h.summarize(f)
	})

	c.JSON(http.StatusOK, gin.H{
		"feeds": summaries,
		"total": len(summaries),
	})
}

func (h *Handler) APIGetFeedDetails(c *gin.Context) {
	name := c.Param("id")

	stored, ok := h.loadFeed(c, name)
	if !ok {
		return
	}

	details := gin.H{
		"feed": h.summarize(*stored),
	}

	if feedConfig, err := h.configCache.GetConfig(name); err == nil {
		details["config"] = gin.H{
			"default_category": feedConfig.DefaultCategory,
			"default_region":   feedConfig.DefaultRegion,
			"field_mapping":    feedConfig.FieldMapping,
			"settings":         feedConfig.Settings,
			"whatjobs":         feedConfig.WhatJobs != nil,
		}
		details["mapping_suggestions"] = feed.MappingSuggestions(feed.ResolveProvider(feedConfig).ID)
	}

	if stats, err := h.jobRepo.GetJobStats(name); err == nil {
		details["jobs"] = gin.H{
			"total":  stats.Total,
			"active": stats.Active,
			"remote": stats.Remote,
		}
	}

	c.JSON(http.StatusOK, details)
}

func (h *Handler) APIGetFeedRuns(c *gin.Context) {
	name := c.Param("id")

	if _, ok := h.loadFeed(c, name); !ok {
		return
	}

	limit := defaultRunsLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit parameter"})
			return
		}
		limit = min(parsed, maxRunsLimit)
	}

	runs, err := h.runRepo.GetRuns(name, limit)
	if err != nil {
		slog.Error("Database error", "operation", "get_runs", "feed", name, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"feed":  name,
		"runs":  lo.Map(runs, func(r database.Run, _ int) gin.H { return runView(r) }),
		"total": len(runs),
	})
}

func (h *Handler) APIImportFeed(c *gin.Context) {
	name := c.Param("id")

	if _, err := h.configCache.GetConfig(name); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Feed configuration not found"})
		return
	}

	result, err := h.importer.Import(c.Request.Context(), name, tasks.OriginManual)
	if errors.Is(err, tasks.ErrImportInProgress) {
		c.JSON(http.StatusConflict, gin.H{"error": "Import already in progress"})
		return
	}
	if err != nil {
		slog.Warn("Manual import failed", "feed", name, "error", err)
		c.JSON(http.StatusBadGateway, gin.H{
			"success": false,
			"error":   err.Error(),
			"result":  result,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"result":  result,
	})
}

func (h *Handler) APITestFeed(c *gin.Context) {
	name := c.Param("id")

	if _, err := h.configCache.GetConfig(name); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Feed configuration not found"})
		return
	}

	result, err := h.importer.Test(c.Request.Context(), name)
	if err != nil {
		status := http.StatusBadGateway
		var parseErr *feed.ParseError
		if errors.As(err, &parseErr) {
			status = http.StatusUnprocessableEntity
		}
		c.JSON(status, gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"result":  result,
	})
}

func (h *Handler) APIToggleFeed(c *gin.Context) {
	name := c.Param("id")

	stored, ok := h.loadFeed(c, name)
	if !ok {
		return
	}

	active := !stored.Active
	if err := h.importer.SetActive(c.Request.Context(), name, active); err != nil {
		slog.Error("Error toggling feed", "feed", name, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to toggle feed",
			"details": err.Error(),
		})
		return
	}

	slog.Info("Feed toggled", "feed", name, "active", active)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"feed":    name,
		"active":  active,
	})
}

func (h *Handler) APIReloadFeeds(c *gin.Context) {
	if err := h.configCache.Run(); err != nil {
		slog.Error("Error reloading configurations", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to reload configurations",
			"details": err.Error(),
		})
		return
	}

	if err := h.importer.SyncFeeds(c.Request.Context()); err != nil {
		slog.Error("Error syncing feeds", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to sync feeds",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Configurations reloaded",
		"feeds":   h.configCache.GetNames(),
		"hooks":   h.scheduler.Hooks(),
	})
}

func (h *Handler) APIImportAll(c *gin.Context) {
	result, err := h.importer.Sweep(c.Request.Context())
	if err != nil {
		slog.Error("Sweep failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Sweep failed",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"result":  result,
	})
}

func (h *Handler) loadFeed(c *gin.Context, name string) (*database.Feed, bool) {
	stored, err := h.feedRepo.GetFeed(name)
	if err != nil {
		slog.Error("Database error", "operation", "get_feed", "feed", name, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return nil, false
	}

	if stored == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Feed not found"})
		return nil, false
	}

	return stored, true
}

func (h *Handler) summarize(f database.Feed) feedSummary {
	summary := feedSummary{
		Name:                f.Name,
		Title:               f.Title,
		URL:                 f.URL,
		Provider:            f.Provider,
		CronInterval:        f.CronInterval,
		Active:              f.Active,
		LastRunAt:           f.LastRunAt,
		LastStatus:          f.LastStatus,
		LastError:           f.LastError,
		ConsecutiveFailures: f.ConsecutiveFailures,
	}

	hook := tasks.HookName(f.Name)
	summary.Scheduled = h.scheduler.IsRegistered(hook)
	if next, ok := h.scheduler.Next(hook); ok && !next.IsZero() {
		summary.NextRunAt = &next
	}

	if count, err := h.jobRepo.GetJobCount(f.Name); err == nil {
		summary.JobCount = count
	}

	return summary
}

func runView(r database.Run) gin.H {
	return gin.H{
		"id":          r.ID,
		"origin":      r.Origin,
		"state":       r.State,
		"format":      r.Dialect,
		"found":       r.Found,
		"imported":    r.Imported,
		"skipped":     r.Skipped,
		"errors":      r.Errors,
		"messages":    r.Messages,
		"started_at":  r.StartedAt,
		"finished_at": r.FinishedAt,
		"duration":    r.FinishedAt.Sub(r.StartedAt).String(),
	}
}
