package api

import (
	"context"
	"time"

	"github.com/lysyi3m/job-comb/app/database"
	"github.com/lysyi3m/job-comb/app/feed"
	"github.com/lysyi3m/job-comb/app/tasks"
)

type GeneratorInterface interface {
	Run(feed database.Feed, jobs []database.Job) (string, error)
}

var _ GeneratorInterface = (*feed.Generator)(nil)

// ImporterInterface is the part of the importer exposed to operators.
type ImporterInterface interface {
	Import(ctx context.Context, feedName string, origin tasks.Origin) (*tasks.RunResult, error)
	Test(ctx context.Context, feedName string) (*tasks.TestResult, error)
	Sweep(ctx context.Context) (*tasks.SweepResult, error)
	SetActive(ctx context.Context, feedName string, active bool) error
	SyncFeeds(ctx context.Context) error
}

var _ ImporterInterface = (*tasks.Importer)(nil)

type Handler struct {
	feedRepo    database.FeedRepository
	jobRepo     database.JobRepository
	runRepo     database.RunRepository
	generator   GeneratorInterface
	configCache *feed.ConfigCache
	importer    ImporterInterface
	scheduler   tasks.Scheduler
	version     string
	startedAt   time.Time
}

type feedSummary struct {
	Name                string     `json:"name"`
	Title               string     `json:"title"`
	URL                 string     `json:"url,omitempty"`
	Provider            string     `json:"provider"`
	CronInterval        string     `json:"cron_interval"`
	Active              bool       `json:"active"`
	Scheduled           bool       `json:"scheduled"`
	NextRunAt           *time.Time `json:"next_run_at,omitempty"`
	LastRunAt           *time.Time `json:"last_run_at,omitempty"`
	LastStatus          string     `json:"last_status,omitempty"`
	LastError           string     `json:"last_error,omitempty"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
	JobCount            int        `json:"job_count"`
}
