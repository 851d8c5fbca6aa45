package cfg

import (
	"time"
)

type Cfg struct {
	// Storage configuration
	DBPath   string
	RedisURL string

	// Application configuration
	FeedsDir     string
	Port         string
	BaseUrl      string
	APIAccessKey string

	// Import settings
	Timeout              time.Duration
	CacheDuration        time.Duration
	ImportLimit          int
	AgeFilterDays        int
	MinDescriptionLength int
	DedupEnabled         bool
	AutoTaxonomies       bool
	RequestDelay         time.Duration
	MaxFailures          int
	SweepSchedule        string

	// Notifications
	NotificationEmail string
	SMTPAddr          string
	SMTPFrom          string
	SMTPUser          string
	SMTPPassword      string
	SendGridAPIKey    string

	// Application metadata
	SiteName  string
	UserAgent string
	Timezone  string
	Debug     bool
	Version   string
}

// NotificationsEnabled reports whether a recipient and a transport are set.
func (c *Cfg) NotificationsEnabled() bool {
	return c.NotificationEmail != "" && (c.SMTPAddr != "" || c.SendGridAPIKey != "")
}
