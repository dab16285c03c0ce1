package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/kirillkom/judgment-search/internal/core/domain"
	"github.com/kirillkom/judgment-search/internal/core/ports"
)

type scheduleFunc func(delay time.Duration, fn func())

// afterDelay runs fn on a timer, or inline when no delay is configured.
func afterDelay(delay time.Duration, fn func()) {
	if delay <= 0 {
		fn()
		return
	}
	time.AfterFunc(delay, fn)
}

// Notifiers fans a completion signal out to every surface that cares.
type Notifiers []ports.CompletionNotifier

func (n Notifiers) BatchSettled(ctx context.Context, summary domain.BatchSummary, view domain.ViewSwitch) error {
	var errs []error
	for _, notifier := range n {
		if notifier == nil {
			continue
		}
		if err := notifier.BatchSettled(ctx, summary, view); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (n Notifiers) ReloadRequested(ctx context.Context) error {
	var errs []error
	for _, notifier := range n {
		if notifier == nil {
			continue
		}
		if err := notifier.ReloadRequested(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
