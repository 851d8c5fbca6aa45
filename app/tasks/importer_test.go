package tasks

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/lysyi3m/job-comb/app/database"
	"github.com/lysyi3m/job-comb/app/feed"
)

const jobsRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Vagas de Tecnologia</title>
    <link>https://example.com</link>
    <description>Últimas vagas</description>
    <item>
      <title>Desenvolvedor Go Sênior</title>
      <description><![CDATA[<p>Trabalho remoto com Go, PostgreSQL e Kubernetes.</p>]]></description>
      <company>Acme</company>
      <location>São Paulo, SP</location>
      <link>https://example.com/jobs/1</link>
      <pubDate>Mon, 03 Mar 2025 09:00:00 +0000</pubDate>
      <type>Tempo integral</type>
    </item>
    <item>
      <title>Desenvolvedor Go Sênior</title>
      <description>Mesma vaga publicada novamente pelo anunciante.</description>
      <company>ACME</company>
      <location>são paulo, sp</location>
      <link>https://example.com/jobs/2</link>
      <pubDate>Mon, 03 Mar 2025 10:00:00 +0000</pubDate>
    </item>
    <item>
      <title>Go</title>
      <description>Título curto demais para publicar.</description>
      <company>Acme</company>
      <link>https://example.com/jobs/3</link>
      <pubDate>Mon, 03 Mar 2025 11:00:00 +0000</pubDate>
    </item>
  </channel>
</rss>`

type mockFetcher struct {
	mock.Mock
}

func (m *mockFetcher) Run(ctx context.Context, url string, timeout time.Duration) ([]byte, error) {
	args := m.Called(ctx, url, timeout)
	data, _ := args.Get(0).([]byte)
	return data, args.Error(1)
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) NotifyImport(ctx context.Context, result *SweepResult) error {
	args := m.Called(ctx, result)
	return args.Error(0)
}

type testEnv struct {
	importer *Importer
	fetcher  *mockFetcher
	notifier *mockNotifier
	registry *Registry
	feeds    *database.SQLFeedRepository
	jobs     *database.SQLJobRepository
	runs     *database.SQLRunRepository
	cache    *feed.ConfigCache
}

func writeFeedConfig(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name+".yml"), []byte(content), 0644))
}

func newTestEnv(t *testing.T, settings Settings, configs map[string]string) *testEnv {
	t.Helper()

	db, err := database.NewConnection(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, _, err = database.RunMigrations(db)
	require.NoError(t, err)

	dir := t.TempDir()
	for name, content := range configs {
		writeFeedConfig(t, dir, name, content)
	}

	configCache := feed.NewConfigCache(dir)
	require.NoError(t, configCache.Run())

	env := &testEnv{
		fetcher:  &mockFetcher{},
		notifier: &mockNotifier{},
		registry: NewRegistry(),
		feeds:    database.NewFeedRepository(db),
		jobs:     database.NewJobRepository(db),
		runs:     database.NewRunRepository(db),
		cache:    configCache,
	}

	env.importer = NewImporter(settings, configCache, env.feeds, env.jobs, env.runs,
		env.fetcher, env.registry, env.notifier)
	env.importer.now = func() time.Time {
		return time.Date(2025, 3, 5, 12, 0, 0, 0, time.UTC)
	}

	require.NoError(t, env.importer.SyncFeeds(context.Background()))

	return env
}

const techFeed = `
title: Vagas Tech
url: https://example.com/jobs.xml
default_category: Tecnologia
settings:
  enabled: true
  cron_interval: hourly
`

func defaultSettings() Settings {
	return Settings{
		ImportLimit:          50,
		DeduplicationEnabled: true,
		AutoTaxonomies:       true,
		Timeout:              5 * time.Second,
		UserAgent:            "JobComb/test",
	}
}

func TestImporter_ImportClassifiesRecords(t *testing.T) {
	env := newTestEnv(t, defaultSettings(), map[string]string{"tech": techFeed})
	env.fetcher.On("Run", mock.Anything, "https://example.com/jobs.xml", 5*time.Second).
		Return([]byte(jobsRSS), nil).Once()

	result, err := env.importer.Import(context.Background(), "tech", OriginManual)
	require.NoError(t, err)

	assert.Equal(t, StateDone, result.State)
	assert.Equal(t, feed.DialectRSS, result.Dialect)
	assert.Equal(t, 3, result.Found)
	assert.Equal(t, 1, result.Imported)
	assert.Equal(t, 2, result.Skipped)
	assert.Equal(t, 0, result.Errors)

	jobs, err := env.jobs.GetJobs("tech", 10)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	job := jobs[0]
	assert.Equal(t, "Desenvolvedor Go Sênior", job.Title)
	assert.Equal(t, "FULL_TIME", job.EmploymentType)
	assert.Equal(t, "São Paulo", job.Region)
	assert.True(t, job.Remote)
	assert.Equal(t, "Tecnologia", job.Taxonomies["category"])
	assert.Equal(t, "São Paulo", job.Taxonomies["region"])
	assert.Equal(t, feed.Fingerprint("Desenvolvedor Go Sênior", "Acme", "São Paulo, SP"), job.Fingerprint)

	stored, err := env.feeds.GetFeed("tech")
	require.NoError(t, err)
	require.NotNil(t, stored.LastRunAt)
	assert.Equal(t, "done", stored.LastStatus)

	runs, err := env.runs.GetRuns("tech", 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "manual", runs[0].Origin)
	assert.Equal(t, 1, runs[0].Imported)

	env.fetcher.AssertExpectations(t)
}

func TestImporter_SecondRunSkipsImportedJobs(t *testing.T) {
	env := newTestEnv(t, defaultSettings(), map[string]string{"tech": techFeed})
	env.fetcher.On("Run", mock.Anything, mock.Anything, mock.Anything).Return([]byte(jobsRSS), nil).Twice()

	_, err := env.importer.Import(context.Background(), "tech", OriginManual)
	require.NoError(t, err)

	result, err := env.importer.Import(context.Background(), "tech", OriginSchedule)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Imported)
	assert.Equal(t, 3, result.Skipped)

	count, err := env.jobs.GetJobCount("tech")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestImporter_DeduplicationDisabled(t *testing.T) {
	settings := defaultSettings()
	settings.DeduplicationEnabled = false
	env := newTestEnv(t, settings, map[string]string{"tech": techFeed})
	env.fetcher.On("Run", mock.Anything, mock.Anything, mock.Anything).Return([]byte(jobsRSS), nil).Once()

	result, err := env.importer.Import(context.Background(), "tech", OriginManual)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Imported)
	assert.Equal(t, 1, result.Skipped)
}

func TestImporter_EmptyFeedIsDone(t *testing.T) {
	env := newTestEnv(t, defaultSettings(), map[string]string{"tech": techFeed})
	env.fetcher.On("Run", mock.Anything, mock.Anything, mock.Anything).
		Return([]byte(`<rss version="2.0"><channel><title>Vazio</title></channel></rss>`), nil).Once()

	result, err := env.importer.Import(context.Background(), "tech", OriginManual)
	require.NoError(t, err)
	assert.Equal(t, StateDone, result.State)
	assert.Equal(t, 0, result.Imported)
	assert.Equal(t, 0, result.Errors)
}

func TestImporter_FetchFailureMarksRunFailed(t *testing.T) {
	env := newTestEnv(t, defaultSettings(), map[string]string{"tech": techFeed})
	env.fetcher.On("Run", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("all tiers failed")).Once()

	result, err := env.importer.Import(context.Background(), "tech", OriginManual)
	require.Error(t, err)
	require.NotNil(t, result)
	assert.Equal(t, StateFailed, result.State)

	stored, err := env.feeds.GetFeed("tech")
	require.NoError(t, err)
	assert.Nil(t, stored.LastRunAt)
	assert.Equal(t, 1, stored.ConsecutiveFailures)
	assert.Equal(t, "all tiers failed", stored.LastError)
}

func TestImporter_ParseFailureMarksRunFailed(t *testing.T) {
	env := newTestEnv(t, defaultSettings(), map[string]string{"tech": techFeed})
	env.fetcher.On("Run", mock.Anything, mock.Anything, mock.Anything).
		Return([]byte("<rss><channel><item>"), nil).Once()

	result, err := env.importer.Import(context.Background(), "tech", OriginManual)
	require.Error(t, err)

	var parseErr *feed.ParseError
	assert.ErrorAs(t, err, &parseErr)
	assert.Equal(t, StateFailed, result.State)
}

func TestImporter_DeactivatesAfterMaxFailures(t *testing.T) {
	settings := defaultSettings()
	settings.MaxFailures = 2
	env := newTestEnv(t, settings, map[string]string{"tech": techFeed})
	env.fetcher.On("Run", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("timeout")).Twice()

	require.True(t, env.registry.IsRegistered(HookName("tech")))

	for i := 0; i < 2; i++ {
		_, err := env.importer.Import(context.Background(), "tech", OriginSchedule)
		require.Error(t, err)
	}

	stored, err := env.feeds.GetFeed("tech")
	require.NoError(t, err)
	assert.False(t, stored.Active)
	assert.False(t, env.registry.IsRegistered(HookName("tech")))
}

func TestImporter_MaxItemsTruncatesOldestFirst(t *testing.T) {
	env := newTestEnv(t, defaultSettings(), map[string]string{"tech": `
url: https://example.com/jobs.xml
settings:
  enabled: true
  max_items: 1
`})
	env.fetcher.On("Run", mock.Anything, mock.Anything, mock.Anything).Return([]byte(jobsRSS), nil).Once()

	result, err := env.importer.Import(context.Background(), "tech", OriginManual)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Found)
	assert.Equal(t, 1, result.Imported)
	assert.Equal(t, 0, result.Skipped)

	jobs, err := env.jobs.GetJobs("tech", 10)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "https://example.com/jobs/1", jobs[0].URL)
}

func TestImporter_ConcurrentImportRejected(t *testing.T) {
	env := newTestEnv(t, defaultSettings(), map[string]string{"tech": techFeed})

	lock, _ := env.importer.locks.LoadOrStore("tech", &sync.Mutex{})
	lock.(*sync.Mutex).Lock()
	defer lock.(*sync.Mutex).Unlock()

	_, err := env.importer.Import(context.Background(), "tech", OriginManual)
	assert.ErrorIs(t, err, ErrImportInProgress)
}

func TestImporter_UnknownFeed(t *testing.T) {
	env := newTestEnv(t, defaultSettings(), nil)

	_, err := env.importer.Import(context.Background(), "missing", OriginManual)
	assert.Error(t, err)
}

func TestImporter_SweepContinuesPastFailures(t *testing.T) {
	env := newTestEnv(t, defaultSettings(), map[string]string{
		"broken": `
url: https://broken.example.com/feed.xml
settings:
  enabled: true
`,
		"tech": techFeed,
		"paused": `
url: https://paused.example.com/feed.xml
settings:
  enabled: false
`,
	})
	env.fetcher.On("Run", mock.Anything, "https://broken.example.com/feed.xml", mock.Anything).
		Return(nil, errors.New("connection refused")).Once()
	env.fetcher.On("Run", mock.Anything, "https://example.com/jobs.xml", mock.Anything).
		Return([]byte(jobsRSS), nil).Once()
	env.notifier.On("NotifyImport", mock.Anything, mock.MatchedBy(func(r *SweepResult) bool {
		return r.Imported == 1
	})).Return(nil).Once()

	result, err := env.importer.Sweep(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, result.Feeds)
	assert.Equal(t, 1, result.Imported)
	assert.Equal(t, []string{"broken"}, result.Failed)

	env.fetcher.AssertExpectations(t)
	env.notifier.AssertExpectations(t)
}

func TestImporter_SweepWithoutImportsDoesNotNotify(t *testing.T) {
	env := newTestEnv(t, defaultSettings(), map[string]string{"tech": techFeed})
	env.fetcher.On("Run", mock.Anything, mock.Anything, mock.Anything).
		Return([]byte(`<rss version="2.0"><channel></channel></rss>`), nil).Once()

	result, err := env.importer.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, result.Imported)

	env.notifier.AssertNotCalled(t, "NotifyImport", mock.Anything, mock.Anything)
}

func TestImporter_TestDoesNotPersist(t *testing.T) {
	env := newTestEnv(t, defaultSettings(), map[string]string{"tech": techFeed})
	env.fetcher.On("Run", mock.Anything, mock.Anything, mock.Anything).Return([]byte(jobsRSS), nil).Once()

	result, err := env.importer.Test(context.Background(), "tech")
	require.NoError(t, err)

	assert.Equal(t, feed.DialectRSS, result.Dialect)
	assert.Equal(t, "Vagas de Tecnologia", result.Title)
	assert.Equal(t, 3, result.ItemsCount)
	assert.Equal(t, 2, result.JobsFound)
	assert.Len(t, result.Samples, 2)

	count, err := env.jobs.GetJobCount("tech")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestImporter_WhatJobsURL(t *testing.T) {
	env := newTestEnv(t, defaultSettings(), map[string]string{"whatjobs": `
whatjobs:
  publisher_id: "1234"
  keyword: golang
  limit: 500
settings:
  enabled: true
`})
	env.fetcher.On("Run", mock.Anything, mock.MatchedBy(func(url string) bool {
		if !strings.HasPrefix(url, feed.WhatJobsBaseURL) {
			return false
		}
		for _, param := range []string{"publisher=1234", "keyword=golang", "limit=100", "snippet=full"} {
			if !strings.Contains(url, param) {
				return false
			}
		}
		return true
	}), mock.Anything).Return([]byte(`<data></data>`), nil).Once()

	_, err := env.importer.Import(context.Background(), "whatjobs", OriginManual)
	require.NoError(t, err)
	env.fetcher.AssertExpectations(t)
}

func TestImporter_SyncFeedsSchedulesActiveFeeds(t *testing.T) {
	env := newTestEnv(t, defaultSettings(), map[string]string{
		"tech": techFeed,
		"paused": `
url: https://paused.example.com/feed.xml
settings:
  enabled: false
`,
	})

	assert.Equal(t, []string{HookName("tech")}, env.registry.Hooks())

	require.NoError(t, env.importer.SetActive(context.Background(), "paused", true))
	assert.True(t, env.registry.IsRegistered(HookName("paused")))

	require.NoError(t, env.importer.SetActive(context.Background(), "tech", false))
	assert.False(t, env.registry.IsRegistered(HookName("tech")))

	// Orphaned hooks are dropped on the next sync
	require.NoError(t, env.registry.Register(HookName("gone"), "daily", func() {}))
	require.NoError(t, env.importer.SyncFeeds(context.Background()))
	assert.False(t, env.registry.IsRegistered(HookName("gone")))
	assert.True(t, env.registry.IsRegistered(HookName("paused")))
}

func TestImporter_SyncFeedsKeepsNonFeedHooks(t *testing.T) {
	env := newTestEnv(t, defaultSettings(), map[string]string{"tech": techFeed})

	require.NoError(t, env.registry.Register("import_all_feeds", "daily", func() {}))

	require.NoError(t, env.importer.SyncFeeds(context.Background()))

	assert.True(t, env.registry.IsRegistered("import_all_feeds"))
	assert.Equal(t, []string{"import_all_feeds", HookName("tech")}, env.registry.Hooks())
}

func TestImporter_ReenabledFeedStartsFreshFailureStreak(t *testing.T) {
	settings := defaultSettings()
	settings.MaxFailures = 3
	env := newTestEnv(t, settings, map[string]string{"tech": techFeed})
	env.fetcher.On("Run", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("timeout")).Times(4)

	for i := 0; i < 3; i++ {
		_, err := env.importer.Import(context.Background(), "tech", OriginSchedule)
		require.Error(t, err)
	}

	stored, err := env.feeds.GetFeed("tech")
	require.NoError(t, err)
	require.False(t, stored.Active)

	require.NoError(t, env.importer.SetActive(context.Background(), "tech", true))

	_, err = env.importer.Import(context.Background(), "tech", OriginSchedule)
	require.Error(t, err)

	stored, err = env.feeds.GetFeed("tech")
	require.NoError(t, err)
	assert.True(t, stored.Active)
	assert.Equal(t, 1, stored.ConsecutiveFailures)
	assert.True(t, env.registry.IsRegistered(HookName("tech")))
}

// failingJobRepository fails the first CreateJob and delegates the rest.
type failingJobRepository struct {
	database.JobRepository
	mu     sync.Mutex
	failed bool
}

func (r *failingJobRepository) CreateJob(job *database.Job, claim bool) (bool, error) {
	r.mu.Lock()
	first := !r.failed
	r.failed = true
	r.mu.Unlock()

	if first {
		return false, errors.New("disk full")
	}
	return r.JobRepository.CreateJob(job, claim)
}

func TestImporter_PersistenceErrorDoesNotStopRun(t *testing.T) {
	env := newTestEnv(t, defaultSettings(), map[string]string{"tech": techFeed})
	env.importer.jobRepo = &failingJobRepository{JobRepository: env.jobs}
	env.fetcher.On("Run", mock.Anything, mock.Anything, mock.Anything).Return([]byte(`<rss version="2.0"><channel>
<item><title>Engineer One</title><description>Build and run Go services.</description><company>Acme</company></item>
<item><title>Engineer Two</title><description>Operate data pipelines in Go.</description><company>Beta</company></item>
</channel></rss>`), nil).Once()

	result, err := env.importer.Import(context.Background(), "tech", OriginManual)
	require.NoError(t, err)

	assert.Equal(t, StateDone, result.State)
	assert.Equal(t, 1, result.Imported)
	assert.Equal(t, 1, result.Errors)
	require.Len(t, result.Messages, 1)
	assert.Contains(t, result.Messages[0], "Engineer One")
	assert.Contains(t, result.Messages[0], "disk full")

	stored, err := env.feeds.GetFeed("tech")
	require.NoError(t, err)
	require.NotNil(t, stored.LastRunAt)
	assert.Equal(t, 0, stored.ConsecutiveFailures)

	// The failed record was not claimed, so it imports on the next run
	imported, err := env.jobs.IsImported(feed.Fingerprint("Engineer One", "Acme", ""))
	require.NoError(t, err)
	assert.False(t, imported)
}

func TestImporter_TestCountsAlreadyImportedJobs(t *testing.T) {
	env := newTestEnv(t, defaultSettings(), map[string]string{"tech": techFeed})
	env.fetcher.On("Run", mock.Anything, mock.Anything, mock.Anything).Return([]byte(jobsRSS), nil).Twice()

	_, err := env.importer.Import(context.Background(), "tech", OriginManual)
	require.NoError(t, err)

	result, err := env.importer.Test(context.Background(), "tech")
	require.NoError(t, err)
	assert.Equal(t, 2, result.JobsFound)
	assert.Equal(t, 2, result.Duplicates)
}
