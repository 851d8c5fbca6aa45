package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

var _ JobRepository = (*SQLJobRepository)(nil)

type SQLJobRepository struct {
	db *DB
}

func NewJobRepository(db *DB) *SQLJobRepository {
	return &SQLJobRepository{db: db}
}

func (r *SQLJobRepository) CreateJob(job *Job, claim bool) (bool, error) {
	if job.ImportedAt.IsZero() {
		job.ImportedAt = time.Now().UTC()
	}
	if job.Status == "" {
		job.Status = "active"
	}

	meta, err := json.Marshal(job.Meta)
	if err != nil {
		return false, fmt.Errorf("failed to encode job meta: %w", err)
	}
	if job.Meta == nil {
		meta = []byte("{}")
	}

	tx, err := r.db.Begin()
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if claim {
		result, err := tx.Exec(`
			INSERT INTO imports (fingerprint, feed_name, imported_at)
			VALUES (?, ?, ?)
			ON CONFLICT (fingerprint) DO NOTHING
		`, job.Fingerprint, job.FeedName, job.ImportedAt.UTC())
		if err != nil {
			return false, fmt.Errorf("failed to claim fingerprint: %w", err)
		}

		claimed, err := result.RowsAffected()
		if err != nil {
			return false, fmt.Errorf("failed to read claim result: %w", err)
		}
		if claimed == 0 {
			return false, nil
		}
	}

	var postedAt any
	if job.PostedAt != nil {
		postedAt = job.PostedAt.UTC()
	}

	result, err := tx.Exec(`
		INSERT INTO jobs (
			feed_name, fingerprint, title, description, company, location, url,
			salary, employment_type, region, remote, status, meta,
			posted_at, expires_at, imported_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, job.FeedName, job.Fingerprint, job.Title, job.Description, job.Company, job.Location, job.URL,
		job.Salary, job.EmploymentType, job.Region, job.Remote, job.Status, string(meta),
		postedAt, job.ExpiresAt.UTC(), job.ImportedAt.UTC())
	if err != nil {
		return false, fmt.Errorf("failed to insert job: %w", err)
	}

	job.ID, err = result.LastInsertId()
	if err != nil {
		return false, fmt.Errorf("failed to read job id: %w", err)
	}

	for taxonomy, term := range job.Taxonomies {
		if term == "" {
			continue
		}
		_, err := tx.Exec(`
			INSERT OR IGNORE INTO job_taxonomies (job_id, taxonomy, term) VALUES (?, ?, ?)
		`, job.ID, taxonomy, term)
		if err != nil {
			return false, fmt.Errorf("failed to assign %s term: %w", taxonomy, err)
		}
	}

	if claim {
		_, err := tx.Exec(`UPDATE imports SET job_id = ? WHERE fingerprint = ?`, job.ID, job.Fingerprint)
		if err != nil {
			return false, fmt.Errorf("failed to link import record: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit job: %w", err)
	}

	return true, nil
}

func (r *SQLJobRepository) IsImported(fingerprint string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(`SELECT EXISTS (SELECT 1 FROM imports WHERE fingerprint = ?)`, fingerprint).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check import record: %w", err)
	}
	return exists, nil
}

// GetJobs returns the newest imported jobs of a feed with their taxonomies.
func (r *SQLJobRepository) GetJobs(feedName string, limit int) ([]Job, error) {
	rows, err := r.db.Query(`
		SELECT id, feed_name, fingerprint, title, description, company, location, url,
		       salary, employment_type, region, remote, status, meta,
		       posted_at, expires_at, imported_at
		FROM jobs
		WHERE feed_name = ?
		ORDER BY imported_at DESC, id DESC
		LIMIT ?
	`, feedName, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get jobs: %w", err)
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		var job Job
		var meta string
		var postedAt sql.NullTime

		err := rows.Scan(
			&job.ID, &job.FeedName, &job.Fingerprint, &job.Title, &job.Description, &job.Company, &job.Location, &job.URL,
			&job.Salary, &job.EmploymentType, &job.Region, &job.Remote, &job.Status, &meta,
			&postedAt, &job.ExpiresAt, &job.ImportedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job row: %w", err)
		}

		if postedAt.Valid {
			t := postedAt.Time
			job.PostedAt = &t
		}
		if err := json.Unmarshal([]byte(meta), &job.Meta); err != nil {
			return nil, fmt.Errorf("failed to decode job meta: %w", err)
		}

		jobs = append(jobs, job)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating job rows: %w", err)
	}
	rows.Close()

	for i := range jobs {
		jobs[i].Taxonomies, err = r.getTaxonomies(jobs[i].ID)
		if err != nil {
			return nil, err
		}
	}

	return jobs, nil
}

func (r *SQLJobRepository) getTaxonomies(jobID int64) (map[string]string, error) {
	rows, err := r.db.Query(`SELECT taxonomy, term FROM job_taxonomies WHERE job_id = ?`, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to get taxonomies: %w", err)
	}
	defer rows.Close()

	taxonomies := make(map[string]string)
	for rows.Next() {
		var taxonomy, term string
		if err := rows.Scan(&taxonomy, &term); err != nil {
			return nil, fmt.Errorf("failed to scan taxonomy row: %w", err)
		}
		taxonomies[taxonomy] = term
	}

	return taxonomies, rows.Err()
}

func (r *SQLJobRepository) GetJobCount(feedName string) (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM jobs WHERE feed_name = ?", feedName).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get job count: %w", err)
	}
	return count, nil
}

func (r *SQLJobRepository) GetJobStats(feedName string) (JobStats, error) {
	var stats JobStats
	err := r.db.QueryRow(`
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN status = 'active' AND expires_at > ? THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(remote), 0)
		FROM jobs
		WHERE feed_name = ?
	`, time.Now().UTC(), feedName).Scan(&stats.Total, &stats.Active, &stats.Remote)
	if err != nil {
		return JobStats{}, fmt.Errorf("failed to get job stats: %w", err)
	}
	return stats, nil
}
