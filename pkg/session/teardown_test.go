package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harun/xlsession/internal/metrics"
)

func TestJanitorSweep_SaveFailureStillExpires(t *testing.T) {
	m := metrics.NewMetrics()
	env := setupTestStore(t, nil, WithMetrics(m))
	ctx := context.Background()

	a, err := env.store.Open(ctx, env.path("a.xlsx"), false, false)
	require.NoError(t, err)
	b, err := env.store.Open(ctx, env.path("b.xlsx"), false, false)
	require.NoError(t, err)
	env.launcher.handle(0).failWith(errors.New("disk full"), nil)

	env.clock.Advance(11 * time.Second)
	assert.Equal(t, 2, env.store.Janitor().Sweep(ctx))

	assert.Empty(t, env.store.List())
	history := env.store.History()
	require.Len(t, history, 2)
	assert.ElementsMatch(t, []string{a, b}, []string{history[0].ID, history[1].ID})

	saves, quits := env.launcher.handle(0).counts()
	assert.Equal(t, 0, saves)
	assert.Equal(t, 1, quits, "a failed save must not keep the application running")
	saves, quits = env.launcher.handle(1).counts()
	assert.Equal(t, 1, saves)
	assert.Equal(t, 1, quits)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.TeardownErrorTotal.WithLabelValues("expire")))

	acq, err := env.store.Acquire(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, OutcomeRecovered, acq.Outcome)
}

func TestOpen_EvictionSurvivesTeardownFailure(t *testing.T) {
	m := metrics.NewMetrics()
	env := setupTestStore(t, func(c *Config) { c.MaxLiveSessions = 1 }, WithMetrics(m))
	ctx := context.Background()

	_, err := env.store.Open(ctx, env.path("a.xlsx"), false, false)
	require.NoError(t, err)
	env.launcher.handle(0).failWith(nil, errors.New("application hung"))

	b, err := env.store.Open(ctx, env.path("b.xlsx"), false, false)
	require.NoError(t, err)

	live := env.store.List()
	require.Len(t, live, 1)
	assert.Equal(t, b, live[0].ID)

	_, quits := env.launcher.handle(0).counts()
	assert.Equal(t, 1, quits)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TeardownErrorTotal.WithLabelValues("evict")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SessionsEvicted))
	assert.Contains(t, env.events.types(), EventEvicted)
}

func TestCloseAll_DrainsDespiteFailures(t *testing.T) {
	m := metrics.NewMetrics()
	env := setupTestStore(t, nil, WithMetrics(m))
	ctx := context.Background()

	for _, name := range []string{"a.xlsx", "b.xlsx", "c.xlsx"} {
		_, err := env.store.Open(ctx, env.path(name), false, false)
		require.NoError(t, err)
	}
	env.launcher.handle(0).failWith(nil, errors.New("quit timed out"))
	env.launcher.handle(2).failWith(nil, errors.New("quit timed out"))

	env.store.CloseAll(ctx)

	for i := 0; i < 3; i++ {
		_, quits := env.launcher.handle(i).counts()
		assert.Equal(t, 1, quits, "handle %d", i)
	}
	assert.Empty(t, env.store.List())
	assert.True(t, env.store.Stats().Closed)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.TeardownErrorTotal.WithLabelValues("shutdown")))

	closed := 0
	for _, typ := range env.events.types() {
		if typ == EventClosed {
			closed++
		}
	}
	assert.Equal(t, 3, closed)
}
