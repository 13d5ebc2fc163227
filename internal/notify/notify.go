// Package notify signals the front end that search results may have changed.
package notify

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"
)

// Notifier receives "results changed" signals.
type Notifier interface {
	NotifyResultsChanged(ctx context.Context) error
}

// Func adapts a function to Notifier.
type Func func(ctx context.Context) error

// NotifyResultsChanged implements Notifier.
func (f Func) NotifyResultsChanged(ctx context.Context) error {
	return f(ctx)
}

// Nop discards every signal.
type Nop struct{}

// NotifyResultsChanged implements Notifier.
func (Nop) NotifyResultsChanged(context.Context) error { return nil }

// Log records every signal in the log at Debug level.
type Log struct{}

// NotifyResultsChanged implements Notifier.
func (Log) NotifyResultsChanged(context.Context) error {
	slog.Debug("search_results_changed")
	return nil
}

// Writer prints one line per signal, for CLI front ends that follow a
// watch session on stdout.
type Writer struct {
	mu  sync.Mutex
	out io.Writer
	now func() time.Time
}

// NewWriter creates a Writer that prints to out.
func NewWriter(out io.Writer) *Writer {
	return &Writer{out: out, now: time.Now}
}

// NotifyResultsChanged implements Notifier.
func (w *Writer) NotifyResultsChanged(context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	_, err := fmt.Fprintf(w.out, "%s results changed\n", w.now().Format(time.TimeOnly))
	return err
}
