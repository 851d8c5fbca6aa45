package tasks

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCronSpec(t *testing.T) {
	tests := []struct {
		interval string
		expected string
	}{
		{"every_30_minutes", "@every 30m"},
		{"hourly", "@hourly"},
		{"every_2_hours", "@every 2h"},
		{"every_6_hours", "@every 6h"},
		{"twicedaily", "@every 12h"},
		{"daily", "@daily"},
		{"", "@every 12h"},
	}

	for _, tt := range tests {
		spec, err := CronSpec(tt.interval)
		require.NoError(t, err, tt.interval)
		assert.Equal(t, tt.expected, spec)
	}

	_, err := CronSpec("weekly")
	assert.Error(t, err)
}

func TestRegistry_RegisterReplacesHook(t *testing.T) {
	registry := NewRegistry()

	require.NoError(t, registry.Register(HookName("indeed"), "hourly", func() {}))
	require.NoError(t, registry.Register(HookName("indeed"), "daily", func() {}))
	require.NoError(t, registry.Register(HookName("catho"), "hourly", func() {}))

	assert.Equal(t, []string{"import_feed_catho", "import_feed_indeed"}, registry.Hooks())
	assert.Len(t, registry.cron.Entries(), 2)

	registry.Unregister(HookName("indeed"))
	registry.Unregister(HookName("indeed"))
	assert.False(t, registry.IsRegistered(HookName("indeed")))
	assert.Len(t, registry.cron.Entries(), 1)

	_, ok := registry.Next(HookName("indeed"))
	assert.False(t, ok)
}

func TestRegistry_RejectsUnknownInterval(t *testing.T) {
	registry := NewRegistry()

	assert.Error(t, registry.Register(HookName("indeed"), "fortnightly", func() {}))
	assert.False(t, registry.IsRegistered(HookName("indeed")))
}

func TestRegistry_NextAfterStart(t *testing.T) {
	registry := NewRegistry()
	require.NoError(t, registry.Register(HookName("indeed"), "every_30_minutes", func() {}))

	registry.Start()
	defer registry.Stop()

	next, ok := registry.Next(HookName("indeed"))
	assert.True(t, ok)
	assert.False(t, next.IsZero())
}

func TestRegistry_StartWhileRegistering(t *testing.T) {
	registry := NewRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, registry.Register(HookName(fmt.Sprintf("feed%d", i)), "hourly", func() {}))
		}(i)
	}

	registry.Start()
	wg.Wait()
	registry.Stop()

	assert.Len(t, registry.Hooks(), 4)
}
