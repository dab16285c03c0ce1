package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/judgment-search/internal/core/domain"
	"github.com/kirillkom/judgment-search/internal/core/ports"
)

const (
	DefaultResetReloadDelay = 2 * time.Second

	ResetWarning = "Warning: this removes every imported judgment and cannot be undone. Continue?"
)

type ResetDatabaseUseCase struct {
	endpoint    ports.ResetEndpoint
	notifier    ports.CompletionNotifier
	reloadDelay time.Duration
	logger      *slog.Logger

	schedule scheduleFunc
}

func NewResetDatabaseUseCase(
	endpoint ports.ResetEndpoint,
	notifier ports.CompletionNotifier,
	reloadDelay time.Duration,
	logger *slog.Logger,
) *ResetDatabaseUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &ResetDatabaseUseCase{
		endpoint:    endpoint,
		notifier:    notifier,
		reloadDelay: reloadDelay,
		logger:      logger,
		schedule:    afterDelay,
	}
}

// Reset asks for confirmation before sending anything. A declined or missing
// confirmation returns ErrResetDeclined with no request issued.
func (uc *ResetDatabaseUseCase) Reset(ctx context.Context, confirmer ports.Confirmer) error {
	if confirmer == nil {
		return domain.ErrResetDeclined
	}
	ok, err := confirmer.Confirm(ctx, ResetWarning)
	if err != nil {
		return fmt.Errorf("confirm reset: %w", err)
	}
	if !ok {
		uc.logger.InfoContext(ctx, "database_reset_declined")
		return domain.ErrResetDeclined
	}

	if err := uc.endpoint.ClearDatabase(ctx); err != nil {
		uc.logger.ErrorContext(ctx, "database_reset_failed", "error", err)
		return fmt.Errorf("clear database: %w", err)
	}
	uc.logger.InfoContext(ctx, "database_reset_completed", "reload_in", uc.reloadDelay.String())

	if uc.notifier != nil {
		uc.schedule(uc.reloadDelay, func() {
			if err := uc.notifier.ReloadRequested(context.WithoutCancel(ctx)); err != nil {
				uc.logger.Warn("reload_notify_failed", "error", err)
			}
		})
	}
	return nil
}
