package feed

import (
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/araddon/dateparse"
)

// Zero disables a filter.
type FilterSettings struct {
	MaxAgeDays           int
	MinDescriptionLength int
}

type Filterer struct{}

func NewFilterer() *Filterer {
	return &Filterer{}
}

// Run drops jobs that fail the enabled filters. Surviving jobs keep
// their order.
func (f *Filterer) Run(jobs []Job, settings FilterSettings, now time.Time) []Job {
	if settings.MaxAgeDays <= 0 && settings.MinDescriptionLength <= 0 {
		return jobs
	}

	cutoff := now.AddDate(0, 0, -settings.MaxAgeDays)

	filtered := make([]Job, 0, len(jobs))
	for _, job := range jobs {
		if settings.MaxAgeDays > 0 {
			published, err := ParseDate(job.Date)
			if err != nil || published.Before(cutoff) {
				continue
			}
		}

		if settings.MinDescriptionLength > 0 && TextLength(job.Description) < settings.MinDescriptionLength {
			continue
		}

		filtered = append(filtered, job)
	}

	return filtered
}

// Truncate keeps at most limit jobs. When every job carries a parseable
// date the oldest are kept first, otherwise source order is used.
func (f *Filterer) Truncate(jobs []Job, limit int) []Job {
	if limit <= 0 || len(jobs) <= limit {
		return jobs
	}

	dates := make([]time.Time, len(jobs))
	for i, job := range jobs {
		published, err := ParseDate(job.Date)
		if err != nil {
			return jobs[:limit]
		}
		dates[i] = published
	}

	indexes := make([]int, len(jobs))
	for i := range indexes {
		indexes[i] = i
	}
	sort.SliceStable(indexes, func(a, b int) bool {
		return dates[indexes[a]].Before(dates[indexes[b]])
	})

	kept := make([]Job, 0, limit)
	for _, i := range indexes[:limit] {
		kept = append(kept, jobs[i])
	}
	return kept
}

// Validate rejects jobs that cannot be published.
func Validate(job Job) error {
	title := strings.TrimSpace(job.Title)
	if title == "" {
		return &ValidationError{Field: FieldTitle, Reason: "empty"}
	}
	if strings.TrimSpace(job.Description) == "" {
		return &ValidationError{Field: FieldDescription, Reason: "empty"}
	}

	titleLength := utf8.RuneCountInString(title)
	if titleLength < 3 || titleLength > 200 {
		return &ValidationError{Field: FieldTitle, Reason: "length must be between 3 and 200 characters"}
	}

	if TextLength(job.Description) < 10 {
		return &ValidationError{Field: FieldDescription, Reason: "shorter than 10 characters"}
	}

	return nil
}

// TextLength counts the characters of the markup-stripped text.
func TextLength(s string) int {
	return utf8.RuneCountInString(strings.TrimSpace(StripTags(s)))
}

func ParseDate(s string) (time.Time, error) {
	return dateparse.ParseAny(strings.TrimSpace(s))
}
