package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

var _ FeedRepository = (*SQLFeedRepository)(nil)

type SQLFeedRepository struct {
	db *DB
}

func NewFeedRepository(db *DB) *SQLFeedRepository {
	return &SQLFeedRepository{db: db}
}

const feedColumns = `name, title, url, provider, cron_interval, active, last_run_at,
	last_status, last_error, consecutive_failures, created_at, updated_at`

// UpsertFeed registers a feed or refreshes its configuration-owned columns.
// The active flag follows the config only when the config's enabled value
// changes, so operator toggles survive restarts.
func (r *SQLFeedRepository) UpsertFeed(source FeedSource) (*Feed, error) {
	_, err := r.db.Exec(`
		INSERT INTO feeds (name, title, url, provider, cron_interval, config_enabled, active)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (name) DO UPDATE SET
			title = excluded.title,
			url = excluded.url,
			provider = excluded.provider,
			cron_interval = excluded.cron_interval,
			active = CASE WHEN feeds.config_enabled != excluded.config_enabled
				THEN excluded.config_enabled ELSE feeds.active END,
			consecutive_failures = CASE WHEN feeds.config_enabled != excluded.config_enabled AND excluded.config_enabled
				THEN 0 ELSE feeds.consecutive_failures END,
			config_enabled = excluded.config_enabled,
			updated_at = CURRENT_TIMESTAMP
	`, source.Name, source.Title, source.URL, source.Provider, source.CronInterval, source.Enabled, source.Enabled)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert feed: %w", err)
	}

	feed, err := r.GetFeed(source.Name)
	if err != nil {
		return nil, err
	}
	if feed == nil {
		return nil, fmt.Errorf("feed %s missing after upsert", source.Name)
	}

	return feed, nil
}

func (r *SQLFeedRepository) GetFeed(feedName string) (*Feed, error) {
	row := r.db.QueryRow(`SELECT `+feedColumns+` FROM feeds WHERE name = ?`, feedName)

	feed, err := scanFeed(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get feed: %w", err)
	}

	return feed, nil
}

func (r *SQLFeedRepository) GetFeeds() ([]Feed, error) {
	rows, err := r.db.Query(`SELECT ` + feedColumns + ` FROM feeds ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to get feeds: %w", err)
	}
	defer rows.Close()

	var feeds []Feed
	for rows.Next() {
		feed, err := scanFeed(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan feed row: %w", err)
		}
		feeds = append(feeds, *feed)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating feed rows: %w", err)
	}

	return feeds, nil
}

// SetFeedActive toggles a feed. Activating it clears the failure streak.
func (r *SQLFeedRepository) SetFeedActive(feedName string, active bool) error {
	result, err := r.db.Exec(`
		UPDATE feeds
		SET active = ?,
		    consecutive_failures = CASE WHEN ? THEN 0 ELSE consecutive_failures END,
		    updated_at = CURRENT_TIMESTAMP
		WHERE name = ?
	`, active, active, feedName)
	if err != nil {
		return fmt.Errorf("failed to set feed active status: %w", err)
	}

	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("feed %s not found", feedName)
	}

	return nil
}

// RecordRunSuccess stamps the last-run time and resets the failure streak.
func (r *SQLFeedRepository) RecordRunSuccess(feedName string, status string, at time.Time) error {
	_, err := r.db.Exec(`
		UPDATE feeds
		SET last_run_at = ?, last_status = ?, last_error = '', consecutive_failures = 0, updated_at = CURRENT_TIMESTAMP
		WHERE name = ?
	`, at.UTC(), status, feedName)
	if err != nil {
		return fmt.Errorf("failed to record run success: %w", err)
	}

	return nil
}

// RecordRunFailure stores the error and returns the new failure streak.
// The last-run time is left untouched.
func (r *SQLFeedRepository) RecordRunFailure(feedName string, lastError string, at time.Time) (int, error) {
	var failures int
	err := r.db.QueryRow(`
		UPDATE feeds
		SET last_status = 'failed', last_error = ?, consecutive_failures = consecutive_failures + 1, updated_at = ?
		WHERE name = ?
		RETURNING consecutive_failures
	`, lastError, at.UTC(), feedName).Scan(&failures)
	if err != nil {
		return 0, fmt.Errorf("failed to record run failure: %w", err)
	}

	return failures, nil
}

func (r *SQLFeedRepository) GetFeedCount() (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM feeds").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get feed count: %w", err)
	}
	return count, nil
}

func (r *SQLFeedRepository) GetActiveFeedCount() (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM feeds WHERE active = 1").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get active feed count: %w", err)
	}
	return count, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanFeed(s scanner) (*Feed, error) {
	var feed Feed
	var lastRunAt sql.NullTime

	err := s.Scan(
		&feed.Name, &feed.Title, &feed.URL, &feed.Provider, &feed.CronInterval, &feed.Active, &lastRunAt,
		&feed.LastStatus, &feed.LastError, &feed.ConsecutiveFailures, &feed.CreatedAt, &feed.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if lastRunAt.Valid {
		t := lastRunAt.Time
		feed.LastRunAt = &t
	}

	return &feed, nil
}
