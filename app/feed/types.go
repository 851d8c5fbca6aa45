package feed

import (
	"time"
)

// Feed processing types

type Dialect string

const (
	DialectJSON  Dialect = "json"
	DialectRSS   Dialect = "rss"   // channel/item
	DialectItem  Dialect = "item"  // top-level item elements
	DialectJob   Dialect = "job"   // top-level job elements
	DialectAtom  Dialect = "atom"  // top-level entry elements
	DialectField Dialect = "field" // <Field name="..."> children
)

// Item is one raw record as found in the payload. Values are strings,
// nested Items or slices of either.
type Item map[string]any

// TextKey holds the direct text of an XML element that also has children.
const TextKey = "#text"

// Canonical field names
const (
	FieldTitle       = "title"
	FieldDescription = "description"
	FieldCompany     = "company"
	FieldLocation    = "location"
	FieldURL         = "url"
	FieldDate        = "date"
	FieldSalary      = "salary"
	FieldType        = "type"
	FieldExpires     = "expires"
)

var CanonicalFields = []string{
	FieldTitle, FieldDescription, FieldCompany, FieldLocation,
	FieldURL, FieldDate, FieldSalary, FieldType,
}

// Mapping maps a canonical field name to a source path in the raw item.
type Mapping map[string]string

type Job struct {
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Company     string            `json:"company,omitempty"`
	Location    string            `json:"location,omitempty"`
	URL         string            `json:"url,omitempty"`
	Date        string            `json:"date,omitempty"`
	Salary      string            `json:"salary,omitempty"`
	Type        string            `json:"type,omitempty"`
	Expires     string            `json:"expires,omitempty"`
	Extra       map[string]string `json:"extra,omitempty"`

	// Provenance
	FeedName        string `json:"-"`
	DefaultCategory string `json:"-"`
	DefaultRegion   string `json:"-"`
}

func (j *Job) Get(field string) string {
	switch field {
	case FieldTitle:
		return j.Title
	case FieldDescription:
		return j.Description
	case FieldCompany:
		return j.Company
	case FieldLocation:
		return j.Location
	case FieldURL:
		return j.URL
	case FieldDate:
		return j.Date
	case FieldSalary:
		return j.Salary
	case FieldType:
		return j.Type
	case FieldExpires:
		return j.Expires
	default:
		return j.Extra[field]
	}
}

func (j *Job) Set(field, value string) {
	switch field {
	case FieldTitle:
		j.Title = value
	case FieldDescription:
		j.Description = value
	case FieldCompany:
		j.Company = value
	case FieldLocation:
		j.Location = value
	case FieldURL:
		j.URL = value
	case FieldDate:
		j.Date = value
	case FieldSalary:
		j.Salary = value
	case FieldType:
		j.Type = value
	case FieldExpires:
		j.Expires = value
	default:
		if j.Extra == nil {
			j.Extra = make(map[string]string)
		}
		j.Extra[field] = value
	}
}

// Enrichment derived from a mapped job before it is stored.
type Enrichment struct {
	Fingerprint    string
	EmploymentType string
	Region         string
	Remote         bool
	PostedAt       *time.Time
	ExpiresAt      time.Time
	Taxonomies     map[string]string // taxonomy -> term
}

// Inspection summarises a payload without importing anything.
type Inspection struct {
	Dialect     Dialect `json:"format"`
	Title       string  `json:"title,omitempty"`
	Description string  `json:"description,omitempty"`
	ItemsCount  int     `json:"items_count"`
}

// Configuration types

type Interval string

const (
	IntervalEvery30Minutes Interval = "every_30_minutes"
	IntervalHourly         Interval = "hourly"
	IntervalEvery2Hours    Interval = "every_2_hours"
	IntervalEvery6Hours    Interval = "every_6_hours"
	IntervalTwiceDaily     Interval = "twicedaily"
	IntervalDaily          Interval = "daily"
)

const DefaultInterval = IntervalTwiceDaily

var Intervals = []Interval{
	IntervalEvery30Minutes, IntervalHourly, IntervalEvery2Hours,
	IntervalEvery6Hours, IntervalTwiceDaily, IntervalDaily,
}

type Config struct {
	Name            string          // Derived from filename (without .yml extension)
	Title           string          `yaml:"title"`
	URL             string          `yaml:"url" validate:"omitempty,url"`
	Provider        ProviderID      `yaml:"provider" validate:"omitempty,oneof=indeed catho infojobs vagas linkedin whatjobs generic"`
	DefaultCategory string          `yaml:"default_category"`
	DefaultRegion   string          `yaml:"default_region"`
	FieldMapping    Mapping         `yaml:"field_mapping"`
	Settings        Settings        `yaml:"settings"`
	WhatJobs        *WhatJobsConfig `yaml:"whatjobs"`
}

type Settings struct {
	Enabled              bool     `yaml:"enabled"`
	CronInterval         Interval `yaml:"cron_interval"`
	MaxItems             int      `yaml:"max_items" validate:"gte=0"`
	Timeout              int      `yaml:"timeout" validate:"gte=0"` // seconds
	AgeFilterDays        *int     `yaml:"age_filter_days" validate:"omitempty,gte=0"`
	MinDescriptionLength *int     `yaml:"min_description_length" validate:"omitempty,gte=0"`
}

type WhatJobsConfig struct {
	PublisherID string `yaml:"publisher_id" validate:"required"`
	Keyword     string `yaml:"keyword"`
	Location    string `yaml:"location"`
	Limit       int    `yaml:"limit"`
	Page        int    `yaml:"page"`
	AgeDays     int    `yaml:"age_days"`
	UserIP      string `yaml:"user_ip"`
	UserAgent   string `yaml:"user_agent"`
}

func (c *Config) DisplayName() string {
	if c.Title != "" {
		return c.Title
	}
	return c.Name
}
