package httpadapter

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/kirillkom/judgment-search/internal/core/domain"
	"github.com/kirillkom/judgment-search/internal/core/ports"
	"github.com/kirillkom/judgment-search/internal/observability/logging"
)

const maxTrackedBatches = 100

// BatchState is the pollable view of one batch.
type BatchState struct {
	ID        string               `json:"id"`
	Status    domain.BatchStatus   `json:"status"`
	Completed int                  `json:"completed"`
	Total     int                  `json:"total"`
	Percent   int                  `json:"percent"`
	Current   string               `json:"current,omitempty"`
	Log       []string             `json:"log"`
	Summary   *domain.BatchSummary `json:"summary,omitempty"`
	Message   string               `json:"message,omitempty"`
	Settled   bool                 `json:"settled"`
}

type batchHistory interface {
	GetBatch(ctx context.Context, id string) (*domain.BatchSummary, error)
}

// BatchTracker runs console batches in the background and keeps their
// progress for polling. It is also the console's completion notifier.
type BatchTracker struct {
	ctx     context.Context
	view    *ViewState
	history batchHistory
	logger  *slog.Logger

	mu      sync.RWMutex
	batches map[string]*BatchState
	order   []string
	wg      sync.WaitGroup
}

// NewBatchTracker ties batch lifetimes to ctx: canceling it stops dispatch
// at the next file boundary.
func NewBatchTracker(ctx context.Context, view *ViewState, logger *slog.Logger) *BatchTracker {
	if logger == nil {
		logger = slog.Default()
	}
	if view == nil {
		view = NewViewState()
	}
	return &BatchTracker{
		ctx:     ctx,
		view:    view,
		logger:  logger,
		batches: make(map[string]*BatchState),
	}
}

// Start launches the batch and returns its ID once the uploader accepted the
// job. Validation errors are returned synchronously. cleanup runs after the
// batch finished, whatever the outcome. requestID, when set, tags the
// batch's logs and its calls to the judgment service.
func (t *BatchTracker) Start(requestID string, uploader ports.BatchUploader, files []domain.CandidateFile, cleanup func()) (string, error) {
	ctx := t.ctx
	if requestID != "" {
		ctx = logging.WithRequestID(ctx, requestID)
	}
	started := make(chan string, 1)
	failed := make(chan error, 1)
	reporter := &trackerReporter{tracker: t, started: started}

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		if cleanup != nil {
			defer cleanup()
		}
		summary, err := uploader.Run(ctx, files, reporter)
		if summary == nil {
			if err == nil {
				err = errors.New("batch upload returned no summary")
			}
			failed <- err
			return
		}
		if err != nil {
			t.logger.WarnContext(ctx, "console_batch_stopped", "batch_id", summary.ID, "error", err)
		}
	}()

	select {
	case id := <-started:
		return id, nil
	case err := <-failed:
		return "", err
	}
}

// UseHistory lets Get answer for batches that are no longer tracked in memory.
func (t *BatchTracker) UseHistory(history batchHistory) {
	t.history = history
}

// Wait blocks until every started batch returned.
func (t *BatchTracker) Wait() {
	t.wg.Wait()
}

func (t *BatchTracker) Get(ctx context.Context, id string) (BatchState, error) {
	t.mu.RLock()
	state, ok := t.batches[id]
	if ok {
		snapshot := state.clone()
		t.mu.RUnlock()
		return snapshot, nil
	}
	t.mu.RUnlock()

	if t.history != nil {
		summary, err := t.history.GetBatch(ctx, id)
		if err != nil {
			return BatchState{}, err
		}
		return stateFromSummary(*summary), nil
	}
	return BatchState{}, domain.WrapError(domain.ErrBatchNotFound, "get batch", errors.New(id))
}

func (t *BatchTracker) BatchSettled(_ context.Context, summary domain.BatchSummary, view domain.ViewSwitch) error {
	t.mu.Lock()
	if state, ok := t.batches[summary.ID]; ok {
		state.Settled = true
	}
	t.mu.Unlock()
	t.view.ApplyBatch(summary, view)
	return nil
}

func (t *BatchTracker) ReloadRequested(context.Context) error {
	t.view.Reload()
	return nil
}

func (t *BatchTracker) update(id string, fn func(*BatchState)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if state, ok := t.batches[id]; ok {
		fn(state)
	}
}

func (t *BatchTracker) register(id string, total int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.batches[id] = &BatchState{
		ID:     id,
		Status: domain.BatchStatusRunning,
		Total:  total,
		Log:    []string{},
	}
	t.order = append(t.order, id)
	t.evictLocked()
}

// evictLocked drops the oldest finished batches beyond the cap.
func (t *BatchTracker) evictLocked() {
	for len(t.order) > maxTrackedBatches {
		evicted := false
		for i, id := range t.order {
			if t.batches[id].Status.IsTerminal() {
				delete(t.batches, id)
				t.order = append(t.order[:i], t.order[i+1:]...)
				evicted = true
				break
			}
		}
		if !evicted {
			return
		}
	}
}

func (s *BatchState) clone() BatchState {
	out := *s
	out.Log = append([]string(nil), s.Log...)
	if s.Summary != nil {
		summary := *s.Summary
		summary.Outcomes = append([]domain.UploadOutcome(nil), s.Summary.Outcomes...)
		out.Summary = &summary
	}
	return out
}

func stateFromSummary(summary domain.BatchSummary) BatchState {
	state := BatchState{
		ID:        summary.ID,
		Status:    summary.Status,
		Completed: len(summary.Outcomes),
		Total:     summary.Total,
		Percent:   100,
		Log:       make([]string, 0, len(summary.Outcomes)),
		Summary:   &summary,
		Message:   summary.ResultMessage(),
		Settled:   true,
	}
	if summary.Status == domain.BatchStatusCanceled {
		state.Percent = domain.ProgressPercent(state.Completed, summary.Total)
	}
	for _, outcome := range summary.Outcomes {
		state.Log = append(state.Log, outcome.LogLine())
	}
	return state
}

type trackerReporter struct {
	tracker *BatchTracker
	started chan<- string
}

func (r *trackerReporter) BatchStarted(batchID string, total int) {
	r.tracker.register(batchID, total)
	// Opened before the batch can settle, so the settle always closes it.
	r.tracker.view.OpenUpload()
	r.started <- batchID
}

func (r *trackerReporter) Progress(batchID string, progress domain.BatchProgress, current string) {
	r.tracker.update(batchID, func(s *BatchState) {
		s.Completed = progress.Completed
		s.Total = progress.Total
		s.Percent = progress.Percent
		s.Current = current
	})
}

func (r *trackerReporter) FileCompleted(batchID string, outcome domain.UploadOutcome) {
	r.tracker.update(batchID, func(s *BatchState) {
		s.Log = append(s.Log, outcome.LogLine())
	})
}

func (r *trackerReporter) BatchFinished(summary domain.BatchSummary) {
	r.tracker.update(summary.ID, func(s *BatchState) {
		s.Status = summary.Status
		s.Current = ""
		s.Summary = &summary
		s.Message = summary.ResultMessage()
	})
	r.tracker.logger.Info("console_batch_finished",
		"batch_id", summary.ID,
		"status", summary.Status.String(),
	)
}
