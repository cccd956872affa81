package daemon

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventLoopRun(t *testing.T) {
	d := createTestDaemon(t, testConfig(t))

	_, err := d.Store().Open(context.Background(), filepath.Join(t.TempDir(), "a.xlsx"), false, false)
	require.NoError(t, err)

	loop := NewEventLoop(d)
	loop.interval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		loop.Run(ctx)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("event loop did not stop")
	}
	assert.Equal(t, 1, d.Store().Stats().Live)
}
