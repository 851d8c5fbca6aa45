package tasks

import (
	"context"
	"time"
)

// Fetcher retrieves a raw feed payload.
type Fetcher interface {
	Run(ctx context.Context, url string, timeout time.Duration) ([]byte, error)
}

// Notifier is told about sweeps that imported at least one job.
type Notifier interface {
	NotifyImport(ctx context.Context, result *SweepResult) error
}

// Scheduler keeps one recurring hook per feed.
// Example usage:
//
//	registry := NewRegistry()
//	registry.Register(HookName("indeed"), feed.IntervalHourly, func() { ... })
//	registry.Start()
//	defer registry.Stop()
type Scheduler interface {
	Register(hook string, interval string, fn func()) error
	Unregister(hook string)
	IsRegistered(hook string) bool
	Next(hook string) (time.Time, bool)
	Hooks() []string
	Start()
	Stop()
}
