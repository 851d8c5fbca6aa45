package cfg

import (
	"cmp"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Storage configuration
	DBPath   string `long:"db-path" env:"DB_PATH" default:"./data/job-comb.db" description:"SQLite database file"`
	RedisURL string `long:"redis-url" env:"REDIS_URL" description:"Redis URL for the shared fetch cache (in-memory cache when empty)"`

	// Application configuration
	FeedsDir     string `long:"feeds-dir" env:"FEEDS_DIR" default:"./feeds" description:"Directory containing feed configuration files"`
	Port         string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	BaseUrl      string `long:"base-url" env:"BASE_URL" description:"Public base URL for the service (e.g., https://jobs.example.com)"`
	APIAccessKey string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for authentication (optional)"`

	// Import settings
	Timeout              time.Duration `long:"timeout" env:"TIMEOUT" default:"30s" description:"Timeout for each fetch attempt"`
	CacheDuration        time.Duration `long:"cache-duration" env:"CACHE_DURATION" default:"1h" description:"How long fetched payloads are cached (0 disables)"`
	ImportLimit          int           `long:"import-limit" env:"IMPORT_LIMIT" default:"50" description:"Maximum jobs imported per feed run"`
	AgeFilterDays        int           `long:"age-filter-days" env:"AGE_FILTER_DAYS" default:"0" description:"Skip jobs older than this many days (0 disables)"`
	MinDescriptionLength int           `long:"min-description-length" env:"MIN_DESCRIPTION_LENGTH" default:"0" description:"Skip jobs with shorter descriptions (0 disables)"`
	NoDedup              bool          `long:"no-dedup" env:"NO_DEDUP" description:"Disable duplicate detection"`
	AutoTaxonomies       bool          `long:"auto-taxonomies" env:"AUTO_TAXONOMIES" description:"Derive region terms from job locations"`
	RequestDelay         time.Duration `long:"request-delay" env:"REQUEST_DELAY" default:"2s" description:"Delay between feeds during a sweep"`
	MaxFailures          int           `long:"max-failures" env:"MAX_FAILURES" default:"0" description:"Deactivate a feed after this many consecutive failed runs (0 disables)"`
	SweepSchedule        string        `long:"sweep-schedule" env:"SWEEP_SCHEDULE" description:"Interval for sweeping all active feeds (e.g., daily; empty disables)"`

	// Notifications
	NotificationEmail string `long:"notification-email" env:"NOTIFICATION_EMAIL" description:"Recipient of import notifications"`
	SMTPAddr          string `long:"smtp-addr" env:"SMTP_ADDR" description:"SMTP server address (host:port)"`
	SMTPFrom          string `long:"smtp-from" env:"SMTP_FROM" default:"job-comb@localhost" description:"Sender address for notifications"`
	SMTPUser          string `long:"smtp-user" env:"SMTP_USER" description:"SMTP username"`
	SMTPPassword      string `long:"smtp-password" env:"SMTP_PASSWORD" description:"SMTP password"`
	SendGridAPIKey    string `long:"sendgrid-api-key" env:"SENDGRID_API_KEY" description:"SendGrid API key, used instead of SMTP when set"`

	// Application metadata
	SiteName  string `long:"site-name" env:"SITE_NAME" default:"Job Comb" description:"Name used in notifications"`
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"Job Comb/1.0" description:"User agent string for HTTP requests"`
	Timezone  string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps (e.g., UTC, America/Sao_Paulo)"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

// Load parses the process arguments and environment. A nil config with a
// nil error means help was requested.
func Load() (*Cfg, error) {
	return LoadArgs(os.Args[1:])
}

func LoadArgs(args []string) (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.ParseArgs(args); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		DBPath:               raw.DBPath,
		RedisURL:             raw.RedisURL,
		FeedsDir:             raw.FeedsDir,
		Port:                 raw.Port,
		BaseUrl:              raw.BaseUrl,
		APIAccessKey:         raw.APIAccessKey,
		Timeout:              raw.Timeout,
		CacheDuration:        raw.CacheDuration,
		ImportLimit:          raw.ImportLimit,
		AgeFilterDays:        raw.AgeFilterDays,
		MinDescriptionLength: raw.MinDescriptionLength,
		DedupEnabled:         !raw.NoDedup,
		AutoTaxonomies:       raw.AutoTaxonomies,
		RequestDelay:         raw.RequestDelay,
		MaxFailures:          raw.MaxFailures,
		SweepSchedule:        raw.SweepSchedule,
		NotificationEmail:    raw.NotificationEmail,
		SMTPAddr:             raw.SMTPAddr,
		SMTPFrom:             raw.SMTPFrom,
		SMTPUser:             raw.SMTPUser,
		SMTPPassword:         raw.SMTPPassword,
		SendGridAPIKey:       raw.SendGridAPIKey,
		SiteName:             raw.SiteName,
		UserAgent:            raw.UserAgent,
		Timezone:             raw.Timezone,
		Debug:                raw.Debug,
		Version:              GetVersion(),
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		fmt.Printf("Warning: Invalid timezone '%s', using system default: %v\n", cfg.Timezone, err)
	}

	return cfg, nil
}

func validate(cfg *Cfg) error {
	if cfg.ImportLimit < 0 {
		return fmt.Errorf("import limit must not be negative: %d", cfg.ImportLimit)
	}
	if cfg.AgeFilterDays < 0 {
		return fmt.Errorf("age filter days must not be negative: %d", cfg.AgeFilterDays)
	}
	if cfg.MinDescriptionLength < 0 {
		return fmt.Errorf("min description length must not be negative: %d", cfg.MinDescriptionLength)
	}
	if cfg.MaxFailures < 0 {
		return fmt.Errorf("max failures must not be negative: %d", cfg.MaxFailures)
	}
	return nil
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err != nil {
			return err
		} else {
			time.Local = loc
		}
	}
	return nil
}
