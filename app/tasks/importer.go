package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"
	"golang.org/x/time/rate"

	"github.com/lysyi3m/job-comb/app/database"
	"github.com/lysyi3m/job-comb/app/feed"
	"github.com/lysyi3m/job-comb/app/metrics"
)

const sampleSize = 3

// Settings are the global import settings. Per-feed settings override
// the age filter, description length, item limit and timeout.
type Settings struct {
	ImportLimit          int
	AgeFilterDays        int
	MinDescriptionLength int
	DeduplicationEnabled bool
	AutoTaxonomies       bool
	Timeout              time.Duration
	RequestDelay         time.Duration
	MaxFailures          int
	UserAgent            string
}

type Importer struct {
	settings    Settings
	configCache *feed.ConfigCache
	feedRepo    database.FeedRepository
	jobRepo     database.JobRepository
	runRepo     database.RunRepository
	fetcher     Fetcher
	parser      *feed.Parser
	mapper      *feed.Mapper
	filterer    *feed.Filterer
	enricher    *feed.Enricher
	scheduler   Scheduler
	notifier    Notifier
	locks       sync.Map
	now         func() time.Time
}

func NewImporter(settings Settings, configCache *feed.ConfigCache, feedRepo database.FeedRepository,
	jobRepo database.JobRepository, runRepo database.RunRepository, fetcher Fetcher,
	scheduler Scheduler, notifier Notifier) *Importer {
	return &Importer{
		settings:    settings,
		configCache: configCache,
		feedRepo:    feedRepo,
		jobRepo:     jobRepo,
		runRepo:     runRepo,
		fetcher:     fetcher,
		parser:      feed.NewParser(),
		mapper:      feed.NewMapper(),
		filterer:    feed.NewFilterer(),
		enricher:    feed.NewEnricher(settings.AutoTaxonomies),
		scheduler:   scheduler,
		notifier:    notifier,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Import runs a single feed. Concurrent imports of the same feed are
// rejected with ErrImportInProgress.
func (im *Importer) Import(ctx context.Context, feedName string, origin Origin) (*RunResult, error) {
	feedConfig, err := im.configCache.GetConfig(feedName)
	if err != nil {
		return nil, err
	}

	lock, _ := im.locks.LoadOrStore(feedName, &sync.Mutex{})
	mu := lock.(*sync.Mutex)
	if !mu.TryLock() {
		return nil, ErrImportInProgress
	}
	defer mu.Unlock()

	task := NewImportFeedTask(feedConfig, origin, im)
	if err := im.runTask(ctx, task); err != nil {
		return task.Result, err
	}
	return task.Result, nil
}

func (im *Importer) runTask(ctx context.Context, task TaskInterface) error {
	task.Start()
	slog.Debug("Task started", "id", task.GetID(), "type", task.GetType(), "feed", task.GetFeedName())
	return task.Execute(ctx)
}

type SweepResult struct {
	Feeds    int         `json:"feeds"`
	Imported int         `json:"imported"`
	Skipped  int         `json:"skipped"`
	Errors   int         `json:"errors"`
	Failed   []string    `json:"failed,omitempty"`
	Runs     []RunResult `json:"runs"`
}

// Sweep imports every active feed in turn, waiting RequestDelay between
// feeds. A failing feed never stops the sweep.
func (im *Importer) Sweep(ctx context.Context) (*SweepResult, error) {
	feeds, err := im.feedRepo.GetFeeds()
	if err != nil {
		return nil, fmt.Errorf("failed to list feeds: %w", err)
	}

	active := lo.Filter(feeds, func(f database.Feed, _ int) bool {
		return f.Active
	})

	limit := rate.Inf
	if im.settings.RequestDelay > 0 {
		limit = rate.Every(im.settings.RequestDelay)
	}
	limiter := rate.NewLimiter(limit, 1)

	result := &SweepResult{}
	for _, f := range active {
		if err := limiter.Wait(ctx); err != nil {
			return result, err
		}

		run, err := im.Import(ctx, f.Name, OriginSweep)
		if run == nil {
			slog.Warn("Feed skipped during sweep", "feed", f.Name, "error", err)
			continue
		}

		result.Feeds++
		result.Imported += run.Imported
		result.Skipped += run.Skipped
		result.Errors += run.Errors
		result.Runs = append(result.Runs, *run)
		if err != nil {
			result.Failed = append(result.Failed, f.Name)
		}
	}

	slog.Info("Sweep completed",
		"feeds", result.Feeds,
		"imported", result.Imported,
		"skipped", result.Skipped,
		"errors", result.Errors,
		"failed", len(result.Failed))

	if result.Imported > 0 && im.notifier != nil {
		if err := im.notifier.NotifyImport(ctx, result); err != nil {
			slog.Warn("Failed to send import notification", "error", err)
		}
	}

	return result, nil
}

type TestResult struct {
	FeedName    string       `json:"feed"`
	Provider    string       `json:"provider"`
	Dialect     feed.Dialect `json:"format"`
	Title       string       `json:"title,omitempty"`
	Description string       `json:"description,omitempty"`
	ItemsCount  int          `json:"items_count"`
	JobsFound   int          `json:"jobs_found"`
	Duplicates  int          `json:"duplicates"`
	Samples     []feed.Job   `json:"samples"`
}

// Test runs fetch, parse, filter and validation for a feed without
// storing anything.
func (im *Importer) Test(ctx context.Context, feedName string) (*TestResult, error) {
	feedConfig, err := im.configCache.GetConfig(feedName)
	if err != nil {
		return nil, err
	}

	data, err := im.fetch(ctx, feedConfig)
	if err != nil {
		return nil, err
	}

	inspection, items, err := im.parser.Inspect(data)
	if err != nil {
		return nil, err
	}

	provider := feed.ResolveProvider(feedConfig)
	jobs := im.filter(feedConfig, provider, items)
	valid := lo.Filter(jobs, func(job feed.Job, _ int) bool {
		return feed.Validate(job) == nil
	})

	duplicates := 0
	if im.settings.DeduplicationEnabled {
		for _, job := range valid {
			imported, err := im.jobRepo.IsImported(feed.Fingerprint(job.Title, job.Company, job.Location))
			if err != nil {
				return nil, err
			}
			if imported {
				duplicates++
			}
		}
	}

	return &TestResult{
		FeedName:    feedName,
		Provider:    provider.Name,
		Dialect:     inspection.Dialect,
		Title:       inspection.Title,
		Description: inspection.Description,
		ItemsCount:  inspection.ItemsCount,
		JobsFound:   len(valid),
		Duplicates:  duplicates,
		Samples:     lo.Slice(valid, 0, sampleSize),
	}, nil
}

// SyncFeeds mirrors the loaded feed configs into the store and the
// schedule. Feed hooks without a config are removed; other hooks are kept.
func (im *Importer) SyncFeeds(ctx context.Context) error {
	configs := im.configCache.GetConfigs()

	var firstErr error
	for _, name := range im.configCache.GetNames() {
		task := NewSyncFeedConfigTask(configs[name], im)
		if err := im.runTask(ctx, task); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	known := lo.Map(im.configCache.GetNames(), func(name string, _ int) string {
		return HookName(name)
	})
	feedHooks := lo.Filter(im.scheduler.Hooks(), func(hook string, _ int) bool {
		return strings.HasPrefix(hook, hookPrefix)
	})
	for _, hook := range lo.Without(feedHooks, known...) {
		im.scheduler.Unregister(hook)
	}

	return firstErr
}

// schedule registers the recurring import of a feed. Hooks outlive the
// caller, so runs use ctx values without its cancellation.
func (im *Importer) schedule(ctx context.Context, feedConfig *feed.Config) error {
	name := feedConfig.Name
	runCtx := context.WithoutCancel(ctx)
	return im.scheduler.Register(HookName(name), string(feedConfig.Settings.CronInterval), func() {
		if _, err := im.Import(runCtx, name, OriginSchedule); err != nil {
			slog.Debug("Scheduled import did not complete", "feed", name, "error", err)
		}
	})
}

// SetActive toggles a feed and adds or removes its hook accordingly.
func (im *Importer) SetActive(ctx context.Context, feedName string, active bool) error {
	feedConfig, err := im.configCache.GetConfig(feedName)
	if err != nil {
		return err
	}

	if err := im.feedRepo.SetFeedActive(feedName, active); err != nil {
		return err
	}

	if !active {
		im.scheduler.Unregister(HookName(feedName))
		return nil
	}
	return im.schedule(ctx, feedConfig)
}

func (im *Importer) deactivate(feedName string, failures int) {
	if err := im.feedRepo.SetFeedActive(feedName, false); err != nil {
		slog.Error("Failed to deactivate feed", "feed", feedName, "error", err)
		return
	}
	im.scheduler.Unregister(HookName(feedName))
	metrics.DeactivatedFeeds.Inc()

	slog.Warn("Feed deactivated after repeated failures", "feed", feedName, "failures", failures)
}

// collect fetches, parses and filters a feed, advancing the run state.
func (im *Importer) collect(ctx context.Context, feedConfig *feed.Config, result *RunResult) ([]feed.Job, feed.Dialect, int, error) {
	result.State = StateFetching
	data, err := im.fetch(ctx, feedConfig)
	if err != nil {
		return nil, "", 0, err
	}

	result.State = StateParsing
	_, dialect, items, err := im.parser.Run(data)
	if err != nil {
		return nil, "", 0, err
	}

	result.State = StateFiltering
	jobs := im.filter(feedConfig, feed.ResolveProvider(feedConfig), items)

	limit := im.settings.ImportLimit
	if feedConfig.Settings.MaxItems > 0 {
		limit = feedConfig.Settings.MaxItems
	}

	return im.filterer.Truncate(jobs, limit), dialect, len(items), nil
}

func (im *Importer) fetch(ctx context.Context, feedConfig *feed.Config) ([]byte, error) {
	url := feedConfig.URL
	if feedConfig.WhatJobs != nil {
		var err error
		url, err = feedConfig.WhatJobs.BuildURL(im.settings.UserAgent)
		if err != nil {
			return nil, err
		}
	}

	timeout := im.settings.Timeout
	if feedConfig.Settings.Timeout > 0 {
		timeout = time.Duration(feedConfig.Settings.Timeout) * time.Second
	}

	return im.fetcher.Run(ctx, url, timeout)
}

func (im *Importer) filter(feedConfig *feed.Config, provider feed.Provider, items []feed.Item) []feed.Job {
	mapping := provider.EffectiveMapping(feedConfig.FieldMapping)

	jobs := make([]feed.Job, 0, len(items))
	for _, item := range items {
		job := im.mapper.Run(item, mapping, feedConfig)
		provider.Extract(item, &job)
		jobs = append(jobs, job)
	}

	settings := feed.FilterSettings{
		MaxAgeDays:           im.settings.AgeFilterDays,
		MinDescriptionLength: im.settings.MinDescriptionLength,
	}
	if feedConfig.Settings.AgeFilterDays != nil {
		settings.MaxAgeDays = *feedConfig.Settings.AgeFilterDays
	}
	if feedConfig.Settings.MinDescriptionLength != nil {
		settings.MinDescriptionLength = *feedConfig.Settings.MinDescriptionLength
	}

	return im.filterer.Run(jobs, settings, im.now())
}
