package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/kirillkom/judgment-search/internal/core/domain"
)

// terminalReporter prints progress and the per-file log to stderr.
type terminalReporter struct {
	w io.Writer
}

func newTerminalReporter(w io.Writer) *terminalReporter {
	return &terminalReporter{w: w}
}

func (r *terminalReporter) BatchStarted(batchID string, total int) {
	fmt.Fprintf(r.w, "batch %s: uploading %d files\n", batchID, total)
}

func (r *terminalReporter) Progress(_ string, progress domain.BatchProgress, current string) {
	if current == "" {
		fmt.Fprintf(r.w, "[%3d%%] done\n", progress.Percent)
		return
	}
	fmt.Fprintf(r.w, "[%3d%%] %s\n", progress.Percent, current)
}

func (r *terminalReporter) FileCompleted(_ string, outcome domain.UploadOutcome) {
	fmt.Fprintln(r.w, "       "+outcome.LogLine())
}

func (r *terminalReporter) BatchFinished(summary domain.BatchSummary) {
	if summary.Status == domain.BatchStatusCanceled {
		fmt.Fprintf(r.w, "canceled after %d of %d files\n", len(summary.Outcomes), summary.Total)
	}
}

// promptConfirmer asks on the terminal; only an explicit y or yes confirms.
type promptConfirmer struct {
	in     *bufio.Reader
	out    io.Writer
	assume bool
}

func (c promptConfirmer) Confirm(_ context.Context, prompt string) (bool, error) {
	if c.assume {
		return true, nil
	}
	fmt.Fprintf(c.out, "%s [y/N]: ", prompt)
	line, err := c.in.ReadString('\n')
	if err != nil && err != io.EOF {
		return false, fmt.Errorf("read confirmation: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}

// settleWaiter is the CLI's completion notifier. The process waits for it so
// that delayed notifications are delivered before exit.
type settleWaiter struct {
	settled  chan domain.ViewSwitch
	reloaded chan struct{}
}

func newSettleWaiter() *settleWaiter {
	return &settleWaiter{
		settled:  make(chan domain.ViewSwitch, 1),
		reloaded: make(chan struct{}, 1),
	}
}

func (w *settleWaiter) BatchSettled(_ context.Context, _ domain.BatchSummary, view domain.ViewSwitch) error {
	select {
	case w.settled <- view:
	default:
	}
	return nil
}

func (w *settleWaiter) ReloadRequested(context.Context) error {
	select {
	case w.reloaded <- struct{}{}:
	default:
	}
	return nil
}

func (w *settleWaiter) waitSettled(ctx context.Context, delay time.Duration) (domain.ViewSwitch, bool) {
	timer := time.NewTimer(delay + 5*time.Second)
	defer timer.Stop()
	select {
	case view := <-w.settled:
		return view, true
	case <-ctx.Done():
	case <-timer.C:
	}
	return domain.ViewSwitch{}, false
}

func (w *settleWaiter) waitReload(ctx context.Context, delay time.Duration) bool {
	timer := time.NewTimer(delay + 5*time.Second)
	defer timer.Stop()
	select {
	case <-w.reloaded:
		return true
	case <-ctx.Done():
	case <-timer.C:
	}
	return false
}
