package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lysyi3m/job-comb/app/database"
	"github.com/lysyi3m/job-comb/app/feed"
)

var _ TaskInterface = (*SyncFeedConfigTask)(nil)

type SyncFeedConfigTask struct {
	Task
	FeedConfig *feed.Config
	importer   *Importer
}

func NewSyncFeedConfigTask(feedConfig *feed.Config, importer *Importer) *SyncFeedConfigTask {
	return &SyncFeedConfigTask{
		Task:       NewTask(TaskTypeSyncFeedConfig, feedConfig.Name),
		FeedConfig: feedConfig,
		importer:   importer,
	}
}

// Execute upserts the feed row and re-registers its hook when active.
func (t *SyncFeedConfigTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	im := t.importer
	provider := feed.ResolveProvider(t.FeedConfig)

	stored, err := im.feedRepo.UpsertFeed(database.FeedSource{
		Name:         t.FeedConfig.Name,
		Title:        t.FeedConfig.DisplayName(),
		URL:          t.FeedConfig.URL,
		Provider:     string(provider.ID),
		CronInterval: string(t.FeedConfig.Settings.CronInterval),
		Enabled:      t.FeedConfig.Settings.Enabled,
	})
	if err != nil {
		slog.Error("Task failed", "type", "SyncFeedConfig", "feed", t.FeedName, "error", err)
		return fmt.Errorf("failed to sync feed config to database: %w", err)
	}

	hook := HookName(t.FeedName)
	im.scheduler.Unregister(hook)

	if stored.Active {
		if err := im.schedule(ctx, t.FeedConfig); err != nil {
			slog.Error("Task failed", "type", "SyncFeedConfig", "feed", t.FeedName, "error", err)
			return fmt.Errorf("failed to schedule feed: %w", err)
		}
	}

	slog.Info("Task completed",
		"type", "SyncFeedConfig",
		"feed", t.FeedName,
		"active", stored.Active,
		"scheduled", im.scheduler.IsRegistered(hook),
		"duration", t.GetDuration())

	return nil
}
