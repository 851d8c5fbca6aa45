package database

import (
	"time"
)

type FeedRepository interface {
	GetFeed(feedName string) (*Feed, error)
	GetFeeds() ([]Feed, error)
	GetFeedCount() (int, error)
	GetActiveFeedCount() (int, error)

	UpsertFeed(source FeedSource) (*Feed, error)
	SetFeedActive(feedName string, active bool) error
	RecordRunSuccess(feedName string, status string, at time.Time) error
	RecordRunFailure(feedName string, lastError string, at time.Time) (int, error)
}

type JobRepository interface {
	// CreateJob stores the job. With claim set, the job's fingerprint is
	// recorded in the same transaction and an already recorded fingerprint
	// makes it a no-op returning false.
	CreateJob(job *Job, claim bool) (bool, error)
	IsImported(fingerprint string) (bool, error)

	GetJobs(feedName string, limit int) ([]Job, error)
	GetJobCount(feedName string) (int, error)
	GetJobStats(feedName string) (JobStats, error)
}

type RunRepository interface {
	CreateRun(run *Run) error
	GetRuns(feedName string, limit int) ([]Run, error)
}
