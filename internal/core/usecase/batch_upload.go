package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/judgment-search/internal/core/domain"
	"github.com/kirillkom/judgment-search/internal/core/ports"
)

const DefaultUploadSettleDelay = 3 * time.Second

type BatchUploadOptions struct {
	SettleDelay time.Duration
	Reports     ports.BatchReportStore
	Observer    ports.UploadObserver
	Logger      *slog.Logger
}

type BatchUploadUseCase struct {
	endpoint    ports.UploadEndpoint
	notifier    ports.CompletionNotifier
	reports     ports.BatchReportStore
	observer    ports.UploadObserver
	settleDelay time.Duration
	logger      *slog.Logger

	now      func() time.Time
	schedule scheduleFunc
}

func NewBatchUploadUseCase(
	endpoint ports.UploadEndpoint,
	notifier ports.CompletionNotifier,
	opts BatchUploadOptions,
) *BatchUploadUseCase {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &BatchUploadUseCase{
		endpoint:    endpoint,
		notifier:    notifier,
		reports:     opts.Reports,
		observer:    opts.Observer,
		settleDelay: opts.SettleDelay,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
		schedule:    afterDelay,
	}
}

// FilterUploadJob keeps the files with an accepted extension, in input order.
func FilterUploadJob(files []domain.CandidateFile) []domain.CandidateFile {
	job := make([]domain.CandidateFile, 0, len(files))
	for _, f := range files {
		if domain.IsAcceptedFile(f.Name) {
			job = append(job, f)
		}
	}
	return job
}

// Run uploads the accepted files one at a time. The next upload is issued only
// after the previous one settled; individual failures never abort the batch.
func (uc *BatchUploadUseCase) Run(
	ctx context.Context,
	files []domain.CandidateFile,
	reporter ports.ProgressReporter,
) (*domain.BatchSummary, error) {
	if len(files) == 0 {
		return nil, fmt.Errorf("batch upload: %w", domain.ErrNoFilesSelected)
	}
	job := FilterUploadJob(files)
	if len(job) == 0 {
		return nil, fmt.Errorf("batch upload: %w", domain.ErrNoValidFiles)
	}
	if reporter == nil {
		reporter = nopReporter{}
	}

	total := len(job)
	summary := &domain.BatchSummary{
		ID:        uuid.NewString(),
		Total:     total,
		Status:    domain.BatchStatusRunning,
		Outcomes:  make([]domain.UploadOutcome, 0, total),
		StartedAt: uc.now(),
	}
	uc.logger.Info("batch_upload_started", "batch_id", summary.ID, "total", total, "skipped", len(files)-total)
	reporter.BatchStarted(summary.ID, total)

	for i, file := range job {
		if err := ctx.Err(); err != nil {
			summary.Status = domain.BatchStatusCanceled
			summary.FinishedAt = uc.now()
			uc.logger.Warn("batch_upload_canceled", "batch_id", summary.ID, "completed", i, "total", total)
			uc.record(ctx, *summary)
			reporter.BatchFinished(*summary)
			return summary, err
		}

		reporter.Progress(summary.ID, domain.BatchProgress{
			Completed: i,
			Total:     total,
			Percent:   domain.ProgressPercent(i, total),
		}, file.Name)

		outcome := uc.dispatch(ctx, summary.ID, file)
		summary.Outcomes = append(summary.Outcomes, outcome)
		if outcome.Succeeded {
			summary.SuccessCount++
		} else {
			summary.FailCount++
		}
		reporter.FileCompleted(summary.ID, outcome)
	}

	reporter.Progress(summary.ID, domain.BatchProgress{Completed: total, Total: total, Percent: 100}, "")
	summary.Status = domain.StatusFor(summary.FailCount)
	summary.FinishedAt = uc.now()
	uc.logger.Info("batch_upload_finished",
		"batch_id", summary.ID,
		"status", summary.Status.String(),
		"succeeded", summary.SuccessCount,
		"failed", summary.FailCount,
	)
	uc.record(ctx, *summary)
	reporter.BatchFinished(*summary)

	if uc.notifier == nil {
		return summary, nil
	}
	settled := *summary
	uc.schedule(uc.settleDelay, func() {
		view := domain.ViewSwitch{CloseUpload: true, Source: domain.SourceImported}
		if err := uc.notifier.BatchSettled(context.WithoutCancel(ctx), settled, view); err != nil {
			uc.logger.Warn("batch_settle_notify_failed", "batch_id", settled.ID, "error", err)
		}
	})
	return summary, nil
}

func (uc *BatchUploadUseCase) dispatch(ctx context.Context, batchID string, file domain.CandidateFile) domain.UploadOutcome {
	start := time.Now()
	err := uc.endpoint.Upload(ctx, file)
	outcome := outcomeFor(file.Name, err)
	if uc.observer != nil {
		uc.observer.ObserveUpload(outcome, time.Since(start))
	}
	if err != nil {
		uc.logger.WarnContext(ctx, "upload_failed", "batch_id", batchID, "file", file.Name, "error", err)
	}
	return outcome
}

func (uc *BatchUploadUseCase) record(ctx context.Context, summary domain.BatchSummary) {
	if uc.observer != nil {
		uc.observer.ObserveBatch(summary)
	}
	if uc.reports == nil {
		return
	}
	if err := uc.reports.SaveBatch(context.WithoutCancel(ctx), summary); err != nil {
		uc.logger.Warn("batch_report_save_failed", "batch_id", summary.ID, "error", err)
	}
}

// outcomeFor keeps the server message for application-level failures and
// hides everything else behind a generic network error.
func outcomeFor(name string, err error) domain.UploadOutcome {
	if err == nil {
		return domain.UploadOutcome{Name: name, Succeeded: true}
	}
	if msg, ok := domain.RemoteMessage(err); ok {
		return domain.UploadOutcome{Name: name, Error: msg}
	}
	return domain.UploadOutcome{Name: name, Error: domain.NetworkErrorMessage}
}

type nopReporter struct{}

func (nopReporter) BatchStarted(string, int) {}
func (nopReporter) Progress(string, domain.BatchProgress, string) {}
func (nopReporter) FileCompleted(string, domain.UploadOutcome) {}
func (nopReporter) BatchFinished(domain.BatchSummary) {}
