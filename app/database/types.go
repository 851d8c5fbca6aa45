package database

import (
	"time"
)

type Feed struct {
	Name                string // Configuration feed identifier derived from filename
	Title               string
	URL                 string
	Provider            string
	CronInterval        string
	Active              bool
	LastRunAt           *time.Time
	LastStatus          string
	LastError           string
	ConsecutiveFailures int
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// FeedSource is the configuration-owned part of a feed row.
type FeedSource struct {
	Name         string
	Title        string
	URL          string
	Provider     string
	CronInterval string
	Enabled      bool
}

type Job struct {
	ID             int64
	FeedName       string
	Fingerprint    string
	Title          string
	Description    string
	Company        string
	Location       string
	URL            string
	Salary         string
	EmploymentType string
	Region         string
	Remote         bool
	Status         string
	Meta           map[string]string
	Taxonomies     map[string]string // taxonomy -> term
	PostedAt       *time.Time
	ExpiresAt      time.Time
	ImportedAt     time.Time
}

type Run struct {
	ID         int64
	FeedName   string
	Origin     string // schedule, manual, sweep
	State      string
	Dialect    string
	Found      int
	Imported   int
	Skipped    int
	Errors     int
	Messages   []string
	StartedAt  time.Time
	FinishedAt time.Time
}

type JobStats struct {
	Total  int
	Active int
	Remote int
}
