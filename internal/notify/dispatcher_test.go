package notify

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// lockedBuffer is a bytes.Buffer safe for concurrent log writes.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func captureLogs(t *testing.T) *lockedBuffer {
	t.Helper()
	buf := &lockedBuffer{}
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { slog.SetDefault(prev) })
	return buf
}

func TestDispatcher_DoesNotBlockCaller(t *testing.T) {
	// Given: a notifier that blocks until released
	release := make(chan struct{})
	var calls atomic.Int32
	d := NewDispatcher(Func(func(context.Context) error {
		<-release
		calls.Add(1)
		return nil
	}))

	// When: dispatching
	done := make(chan struct{})
	go func() {
		d.Dispatch(context.Background(), "plugin-a")
		close(done)
	}()

	// Then: Dispatch returns before the notifier finishes
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Dispatch blocked on the notifier")
	}
	close(release)
	d.Wait()
	assert.Equal(t, int32(1), calls.Load())
}

func TestDispatcher_FailureIsLoggedWithPluginID(t *testing.T) {
	logs := captureLogs(t)
	d := NewDispatcher(Func(func(context.Context) error {
		return errors.New("front end unreachable")
	}))

	d.Dispatch(context.Background(), "plugin-a")
	d.Wait()

	out := logs.String()
	assert.Contains(t, out, "requesting search results update because search index update for plugin")
	assert.Contains(t, out, `"msg":"notify_failed"`)
	assert.Contains(t, out, `"plugin_id":"plugin-a"`)
	assert.Contains(t, out, "front end unreachable")
}

func TestDispatcher_PanicIsContained(t *testing.T) {
	logs := captureLogs(t)
	d := NewDispatcher(Func(func(context.Context) error {
		panic("boom")
	}))

	d.Dispatch(context.Background(), "plugin-b")
	d.Wait()

	assert.Contains(t, logs.String(), "notify_panicked")
}

func TestDispatcher_IgnoresCallerCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var sawErr error
	d := NewDispatcher(Func(func(ctx context.Context) error {
		sawErr = ctx.Err()
		return nil
	}))
	d.Dispatch(ctx, "plugin-a")
	d.Wait()

	assert.NoError(t, sawErr)
}

func TestDispatcher_NilNotifier(t *testing.T) {
	d := NewDispatcher(nil)
	d.Dispatch(context.Background(), "plugin-a")
	d.Wait()
}

func TestWriter_PrintsOneLinePerSignal(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	w.now = func() time.Time { return time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC) }

	require.NoError(t, w.NotifyResultsChanged(context.Background()))
	require.NoError(t, w.NotifyResultsChanged(context.Background()))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Equal(t, []string{"15:04:05 results changed", "15:04:05 results changed"}, lines)
}
