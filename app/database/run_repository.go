package database

import (
	"encoding/json"
	"fmt"
)

var _ RunRepository = (*SQLRunRepository)(nil)

type SQLRunRepository struct {
	db *DB
}

func NewRunRepository(db *DB) *SQLRunRepository {
	return &SQLRunRepository{db: db}
}

func (r *SQLRunRepository) CreateRun(run *Run) error {
	messages, err := json.Marshal(run.Messages)
	if err != nil {
		return fmt.Errorf("failed to encode run messages: %w", err)
	}
	if run.Messages == nil {
		messages = []byte("[]")
	}

	result, err := r.db.Exec(`
		INSERT INTO import_runs (
			feed_name, origin, state, dialect, found, imported, skipped, errors,
			messages, started_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.FeedName, run.Origin, run.State, run.Dialect, run.Found, run.Imported, run.Skipped, run.Errors,
		string(messages), run.StartedAt.UTC(), run.FinishedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	run.ID, err = result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read run id: %w", err)
	}

	return nil
}

// GetRuns lists the most recent runs, optionally for a single feed.
func (r *SQLRunRepository) GetRuns(feedName string, limit int) ([]Run, error) {
	rows, err := r.db.Query(`
		SELECT id, feed_name, origin, state, dialect, found, imported, skipped, errors,
		       messages, started_at, finished_at
		FROM import_runs
		WHERE ? = '' OR feed_name = ?
		ORDER BY started_at DESC, id DESC
		LIMIT ?
	`, feedName, feedName, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		var messages string

		err := rows.Scan(
			&run.ID, &run.FeedName, &run.Origin, &run.State, &run.Dialect, &run.Found, &run.Imported, &run.Skipped, &run.Errors,
			&messages, &run.StartedAt, &run.FinishedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}

		if err := json.Unmarshal([]byte(messages), &run.Messages); err != nil {
			return nil, fmt.Errorf("failed to decode run messages: %w", err)
		}

		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating run rows: %w", err)
	}

	return runs, nil
}
