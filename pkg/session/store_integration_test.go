package session

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harun/xlsession/pkg/workbook"
)

func setupExcelStore(t *testing.T, mutate func(*Config), opts ...Option) *Store {
	t.Helper()

	cfg := DefaultConfig()
	cfg.DisableJanitor = true
	if mutate != nil {
		mutate(&cfg)
	}

	base := []Option{
		WithLauncher(workbook.NewExcelLauncher(workbook.AppConfig{})),
		WithLogger(zerolog.Nop()),
	}
	store, err := New(cfg, append(base, opts...)...)
	require.NoError(t, err)

	t.Cleanup(func() {
		store.CloseAll(context.Background())
	})
	return store
}

func TestExcelStore_ExpiredEditsSurviveRecovery(t *testing.T) {
	clock := newFakeClock()
	store := setupExcelStore(t, func(c *Config) { c.TTL = time.Second }, WithClock(clock.Now))
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "book.xlsx")

	id, err := store.Open(ctx, path, false, false)
	require.NoError(t, err)

	err = store.WithSession(ctx, id, func(h workbook.Handle) error {
		return h.(*workbook.ExcelHandle).File().SetCellValue("Sheet1", "A1", "kept")
	})
	require.NoError(t, err)

	clock.Advance(2 * time.Second)

	acq, err := store.Acquire(ctx, id)
	require.NoError(t, err)
	require.Equal(t, OutcomeRecovered, acq.Outcome)

	var value string
	err = acq.Session.Do(ctx, func(h workbook.Handle) error {
		var err error
		value, err = h.(*workbook.ExcelHandle).File().GetCellValue("Sheet1", "A1")
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, "kept", value)
}

func TestExcelStore_DetectsExternalModification(t *testing.T) {
	events := &eventLog{}
	store := setupExcelStore(t, func(c *Config) {
		c.WatchFiles = true
		c.WatchDebounce = 50 * time.Millisecond
	}, WithEventHandler(events.record))
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "shared.xlsx")

	_, err := store.Open(ctx, path, false, false)
	require.NoError(t, err)
	require.False(t, store.List()[0].ExternallyModified)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("external")
	require.NoError(t, err)
	require.NoError(t, f.Close())
	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(path, past, past))

	require.Eventually(t, func() bool {
		sessions := store.List()
		return len(sessions) == 1 && sessions[0].ExternallyModified
	}, 3*time.Second, 25*time.Millisecond)

	assert.Contains(t, events.types(), EventModified)
}
