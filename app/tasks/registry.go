package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/samber/lo"

	"github.com/lysyi3m/job-comb/app/feed"
)

var _ Scheduler = (*Registry)(nil)

const hookPrefix = "import_feed_"

var cronSpecs = map[feed.Interval]string{
	feed.IntervalEvery30Minutes: "@every 30m",
	feed.IntervalHourly:         "@hourly",
	feed.IntervalEvery2Hours:    "@every 2h",
	feed.IntervalEvery6Hours:    "@every 6h",
	feed.IntervalTwiceDaily:     "@every 12h",
	feed.IntervalDaily:          "@daily",
}

func HookName(feedName string) string {
	return hookPrefix + feedName
}

// CronSpec translates a recurrence interval into a cron schedule. An empty
// interval means the default one.
func CronSpec(interval string) (string, error) {
	if interval == "" {
		interval = string(feed.DefaultInterval)
	}
	spec, ok := cronSpecs[feed.Interval(interval)]
	if !ok {
		return "", fmt.Errorf("unknown interval: %s", interval)
	}
	return spec, nil
}

// Registry is a named-hook facade over a cron runner.
type Registry struct {
	cron  *cron.Cron
	mu    sync.Mutex
	hooks map[string]cron.EntryID
}

func NewRegistry() *Registry {
	logger := cronLogger{}

	return &Registry{
		cron: cron.New(
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
		hooks: make(map[string]cron.EntryID),
	}
}

// Register schedules fn under hook, replacing any previous registration.
func (r *Registry) Register(hook string, interval string, fn func()) error {
	spec, err := CronSpec(interval)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.hooks[hook]; ok {
		r.cron.Remove(id)
		delete(r.hooks, hook)
	}

	id, err := r.cron.AddFunc(spec, fn)
	if err != nil {
		return fmt.Errorf("failed to schedule %s: %w", hook, err)
	}
	r.hooks[hook] = id

	slog.Debug("Hook registered", "hook", hook, "spec", spec)
	return nil
}

func (r *Registry) Unregister(hook string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.hooks[hook]
	if !ok {
		return
	}
	r.cron.Remove(id)
	delete(r.hooks, hook)

	slog.Debug("Hook unregistered", "hook", hook)
}

func (r *Registry) IsRegistered(hook string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.hooks[hook]
	return ok
}

// Next reports the next activation of hook. Before Start it is zero.
func (r *Registry) Next(hook string) (time.Time, bool) {
	r.mu.Lock()
	id, ok := r.hooks[hook]
	r.mu.Unlock()

	if !ok {
		return time.Time{}, false
	}
	return r.cron.Entry(id).Next, true
}

func (r *Registry) Hooks() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	hooks := lo.Keys(r.hooks)
	sort.Strings(hooks)
	return hooks
}

func (r *Registry) Start() {
	r.mu.Lock()
	count := len(r.hooks)
	r.mu.Unlock()

	r.cron.Start()
	slog.Info("Schedule registry started", "hooks", count)
}

// Stop halts the runner and waits for running hooks to return.
func (r *Registry) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
	slog.Info("Schedule registry stopped")
}

// StopWithTimeout is Stop bounded by the given context.
func (r *Registry) StopWithTimeout(ctx context.Context) error {
	done := r.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	slog.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	slog.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
