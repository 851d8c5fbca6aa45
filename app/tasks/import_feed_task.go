package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lysyi3m/job-comb/app/database"
	"github.com/lysyi3m/job-comb/app/feed"
	"github.com/lysyi3m/job-comb/app/metrics"
)

type State string

const (
	StateIdle      State = "idle"
	StateFetching  State = "fetching"
	StateParsing   State = "parsing"
	StateFiltering State = "filtering"
	StateImporting State = "importing"
	StateDone      State = "done"
	StateFailed    State = "failed"
)

// Origin tells what started a run.
type Origin string

const (
	OriginSchedule Origin = "schedule"
	OriginManual   Origin = "manual"
	OriginSweep    Origin = "sweep"
)

type OutcomeKind string

const (
	OutcomeImported OutcomeKind = "imported"
	OutcomeSkipped  OutcomeKind = "skipped"
	OutcomeFailed   OutcomeKind = "failed"
)

// Outcome is the result of importing a single record.
type Outcome struct {
	Kind   OutcomeKind
	Reason string
	Err    error
}

func Imported() Outcome {
	return Outcome{Kind: OutcomeImported}
}

func Skipped(reason string) Outcome {
	return Outcome{Kind: OutcomeSkipped, Reason: reason}
}

func Failed(err error) Outcome {
	return Outcome{Kind: OutcomeFailed, Err: err}
}

type RunResult struct {
	FeedName   string       `json:"feed"`
	Origin     Origin       `json:"origin"`
	State      State        `json:"state"`
	Dialect    feed.Dialect `json:"format,omitempty"`
	Found      int          `json:"found"`
	Imported   int          `json:"imported"`
	Skipped    int          `json:"skipped"`
	Errors     int          `json:"errors"`
	Messages   []string     `json:"messages,omitempty"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
	Err        error        `json:"-"`
}

func (r *RunResult) record(title string, outcome Outcome) {
	switch outcome.Kind {
	case OutcomeImported:
		r.Imported++
	case OutcomeSkipped:
		r.Skipped++
		slog.Debug("Job skipped", "feed", r.FeedName, "title", title, "reason", outcome.Reason)
	case OutcomeFailed:
		r.Errors++
		r.Messages = append(r.Messages, fmt.Sprintf("%s: %v", title, outcome.Err))
		slog.Warn("Job import failed", "feed", r.FeedName, "title", title, "error", outcome.Err)
	}
	metrics.Records.WithLabelValues(r.FeedName, string(outcome.Kind)).Inc()
}

var _ TaskInterface = (*ImportFeedTask)(nil)

type ImportFeedTask struct {
	Task
	Origin     Origin
	FeedConfig *feed.Config
	Result     *RunResult
	importer   *Importer
}

func NewImportFeedTask(feedConfig *feed.Config, origin Origin, importer *Importer) *ImportFeedTask {
	return &ImportFeedTask{
		Task:       NewTask(TaskTypeImportFeed, feedConfig.Name),
		Origin:     origin,
		FeedConfig: feedConfig,
		importer:   importer,
	}
}

// Execute runs the feed through fetch, parse, filter and import. The
// returned error is non-nil only when the run failed as a whole.
func (t *ImportFeedTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	im := t.importer
	t.Result = &RunResult{
		FeedName:  t.FeedName,
		Origin:    t.Origin,
		State:     StateIdle,
		StartedAt: im.now(),
	}

	err := t.run(ctx)
	if err != nil {
		t.Result.State = StateFailed
		t.Result.Err = err
		t.Result.Messages = append(t.Result.Messages, err.Error())
	} else {
		t.Result.State = StateDone
	}
	t.Result.FinishedAt = im.now()

	t.finish()

	return err
}

func (t *ImportFeedTask) run(ctx context.Context) error {
	im := t.importer
	result := t.Result

	jobs, dialect, found, err := im.collect(ctx, t.FeedConfig, result)
	if err != nil {
		return err
	}
	result.Dialect = dialect
	result.Found = found

	result.State = StateImporting
	now := im.now()
	for _, job := range jobs {
		result.record(job.Title, t.importJob(job, now))
	}

	return nil
}

func (t *ImportFeedTask) importJob(job feed.Job, now time.Time) Outcome {
	im := t.importer

	if err := feed.Validate(job); err != nil {
		return Skipped(err.Error())
	}

	enrichment := im.enricher.Run(job, now)

	record := &database.Job{
		FeedName:       t.FeedName,
		Fingerprint:    enrichment.Fingerprint,
		Title:          job.Title,
		Description:    job.Description,
		Company:        job.Company,
		Location:       job.Location,
		URL:            job.URL,
		Salary:         job.Salary,
		EmploymentType: enrichment.EmploymentType,
		Region:         enrichment.Region,
		Remote:         enrichment.Remote,
		Meta:           job.Extra,
		Taxonomies:     enrichment.Taxonomies,
		PostedAt:       enrichment.PostedAt,
		ExpiresAt:      enrichment.ExpiresAt,
		ImportedAt:     now,
	}

	inserted, err := im.jobRepo.CreateJob(record, im.settings.DeduplicationEnabled)
	if err != nil {
		return Failed(&PersistenceError{Op: "store job", Err: err})
	}
	if !inserted {
		return Skipped("duplicate")
	}

	return Imported()
}

// finish persists the run log and the feed's run outcome.
func (t *ImportFeedTask) finish() {
	im := t.importer
	result := t.Result

	run := &database.Run{
		FeedName:   result.FeedName,
		Origin:     string(result.Origin),
		State:      string(result.State),
		Dialect:    string(result.Dialect),
		Found:      result.Found,
		Imported:   result.Imported,
		Skipped:    result.Skipped,
		Errors:     result.Errors,
		Messages:   result.Messages,
		StartedAt:  result.StartedAt,
		FinishedAt: result.FinishedAt,
	}
	if err := im.runRepo.CreateRun(run); err != nil {
		slog.Error("Failed to store run log", "feed", t.FeedName, "error", err)
	}

	if result.State == StateDone {
		if err := im.feedRepo.RecordRunSuccess(t.FeedName, string(result.State), result.FinishedAt); err != nil {
			slog.Error("Failed to record run", "feed", t.FeedName, "error", err)
		}
	} else {
		failures, err := im.feedRepo.RecordRunFailure(t.FeedName, result.Err.Error(), result.FinishedAt)
		if err != nil {
			slog.Error("Failed to record run failure", "feed", t.FeedName, "error", err)
		} else if im.settings.MaxFailures > 0 && failures >= im.settings.MaxFailures {
			im.deactivate(t.FeedName, failures)
		}
	}

	metrics.Runs.WithLabelValues(t.FeedName, string(result.State)).Inc()
	metrics.RunDuration.WithLabelValues(t.FeedName).Observe(result.FinishedAt.Sub(result.StartedAt).Seconds())

	if result.State == StateFailed {
		slog.Error("Task failed", "type", "ImportFeed", "feed", t.FeedName, "origin", t.Origin, "error", result.Err)
		return
	}

	slog.Info("Task completed",
		"type", "ImportFeed",
		"feed", t.FeedName,
		"origin", t.Origin,
		"format", result.Dialect,
		"found", result.Found,
		"imported", result.Imported,
		"skipped", result.Skipped,
		"errors", result.Errors,
		"duration", t.GetDuration())
}
