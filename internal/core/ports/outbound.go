package ports

import (
	"context"
	"time"

	"github.com/kirillkom/judgment-search/internal/core/domain"
)

// ProgressReporter receives batch progress from the single upload loop.
// Calls arrive sequentially from one goroutine.
type ProgressReporter interface {
	BatchStarted(batchID string, total int)
	Progress(batchID string, progress domain.BatchProgress, current string)
	FileCompleted(batchID string, outcome domain.UploadOutcome)
	BatchFinished(summary domain.BatchSummary)
}

// CompletionNotifier is told when a surface should change after an operation settles.
type CompletionNotifier interface {
	BatchSettled(ctx context.Context, summary domain.BatchSummary, view domain.ViewSwitch) error
	ReloadRequested(ctx context.Context) error
}

// Confirmer gates irreversible operations behind an explicit yes.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) (bool, error)
}

// BatchReportStore journals finished batch summaries for diagnostics.
type BatchReportStore interface {
	SaveBatch(ctx context.Context, summary domain.BatchSummary) error
}

// UploadObserver records upload telemetry.
type UploadObserver interface {
	ObserveUpload(outcome domain.UploadOutcome, duration time.Duration)
	ObserveBatch(summary domain.BatchSummary)
}
