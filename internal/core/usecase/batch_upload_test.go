package usecase

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kirillkom/judgment-search/internal/core/domain"
)

type uploadEndpointFake struct {
	mu       sync.Mutex
	inFlight int
	maxSeen  int
	calls    []string
	results  map[string]error
	onUpload func(name string)
}

func (f *uploadEndpointFake) Upload(_ context.Context, file domain.CandidateFile) error {
	f.mu.Lock()
	f.inFlight++
	if f.inFlight > f.maxSeen {
		f.maxSeen = f.inFlight
	}
	f.calls = append(f.calls, file.Name)
	f.mu.Unlock()

	if f.onUpload != nil {
		f.onUpload(file.Name)
	}
	time.Sleep(time.Millisecond)

	f.mu.Lock()
	f.inFlight--
	f.mu.Unlock()
	return f.results[file.Name]
}

type reporterFake struct {
	started  int
	percents []int
	logs     []string
	finished *domain.BatchSummary
}

func (r *reporterFake) BatchStarted(_ string, total int) { r.started = total }
func (r *reporterFake) Progress(_ string, progress domain.BatchProgress, _ string) {
	r.percents = append(r.percents, progress.Percent)
}
func (r *reporterFake) FileCompleted(_ string, outcome domain.UploadOutcome) {
	r.logs = append(r.logs, outcome.LogLine())
}
func (r *reporterFake) BatchFinished(summary domain.BatchSummary) { r.finished = &summary }

type notifierFake struct {
	settled []domain.BatchSummary
	views   []domain.ViewSwitch
	reloads int
	err     error
}

func (n *notifierFake) BatchSettled(_ context.Context, summary domain.BatchSummary, view domain.ViewSwitch) error {
	n.settled = append(n.settled, summary)
	n.views = append(n.views, view)
	return n.err
}

func (n *notifierFake) ReloadRequested(context.Context) error {
	n.reloads++
	return n.err
}

type reportStoreFake struct {
	saved []domain.BatchSummary
	err   error
}

func (s *reportStoreFake) SaveBatch(_ context.Context, summary domain.BatchSummary) error {
	s.saved = append(s.saved, summary)
	return s.err
}

func candidate(name string) domain.CandidateFile {
	return domain.CandidateFile{
		Name: name,
		Size: int64(len(name)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader(name)), nil
		},
	}
}

func newBatchUseCase(endpoint *uploadEndpointFake, notifier *notifierFake, reports *reportStoreFake) *BatchUploadUseCase {
	opts := BatchUploadOptions{}
	if reports != nil {
		opts.Reports = reports
	}
	uc := NewBatchUploadUseCase(endpoint, notifier, opts)
	uc.schedule = func(_ time.Duration, fn func()) { fn() }
	return uc
}

func TestFilterUploadJobKeepsAcceptedExtensionsInOrder(t *testing.T) {
	files := []domain.CandidateFile{
		candidate("z.DOCX"), candidate("notes.txt"), candidate("a.doc"),
		candidate("scan.pdf"), candidate("b.Doc"), candidate("archive.docx.zip"),
	}
	job := FilterUploadJob(files)

	want := []string{"z.DOCX", "a.doc", "b.Doc"}
	if len(job) != len(want) {
		t.Fatalf("expected %d files, got %d", len(want), len(job))
	}
	for i, name := range want {
		if job[i].Name != name {
			t.Fatalf("position %d: expected %s, got %s", i, name, job[i].Name)
		}
	}
	if len(files) != 6 {
		t.Fatalf("filter must not mutate input")
	}
}

func TestBatchUploadMixedOutcomes(t *testing.T) {
	endpoint := &uploadEndpointFake{results: map[string]error{
		"b.doc": &domain.RemoteError{Operation: "upload", Message: "bad format"},
	}}
	notifier := &notifierFake{}
	reports := &reportStoreFake{}
	reporter := &reporterFake{}
	uc := newBatchUseCase(endpoint, notifier, reports)

	summary, err := uc.Run(context.Background(), []domain.CandidateFile{
		candidate("a.docx"), candidate("b.doc"), candidate("c.pdf"),
	}, reporter)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if got := strings.Join(endpoint.calls, ","); got != "a.docx,b.doc" {
		t.Fatalf("unexpected upload calls: %s", got)
	}
	want := []domain.UploadOutcome{
		{Name: "a.docx", Succeeded: true},
		{Name: "b.doc", Succeeded: false, Error: "bad format"},
	}
	if len(summary.Outcomes) != len(want) {
		t.Fatalf("expected %d outcomes, got %d", len(want), len(summary.Outcomes))
	}
	for i := range want {
		if summary.Outcomes[i] != want[i] {
			t.Fatalf("outcome %d: expected %+v, got %+v", i, want[i], summary.Outcomes[i])
		}
	}
	if summary.SuccessCount != 1 || summary.FailCount != 1 {
		t.Fatalf("expected 1/1, got %d/%d", summary.SuccessCount, summary.FailCount)
	}
	if summary.Status != domain.BatchStatusPartial {
		t.Fatalf("expected partial status, got %s", summary.Status)
	}
	if reporter.logs[1] != "✖ b.doc - failed: bad format" {
		t.Fatalf("unexpected log line: %s", reporter.logs[1])
	}
	if len(reports.saved) != 1 || reports.saved[0].ID != summary.ID {
		t.Fatalf("expected summary journaled once")
	}
	if len(notifier.views) != 1 || notifier.views[0].Source != domain.SourceImported || !notifier.views[0].CloseUpload {
		t.Fatalf("expected switch to imported source, got %+v", notifier.views)
	}
}

func TestBatchUploadNetworkFailureUsesGenericMessage(t *testing.T) {
	endpoint := &uploadEndpointFake{results: map[string]error{
		"a.doc": domain.WrapError(domain.ErrTransport, "upload", errors.New("connection refused")),
	}}
	uc := newBatchUseCase(endpoint, &notifierFake{}, nil)

	summary, err := uc.Run(context.Background(), []domain.CandidateFile{candidate("a.doc"), candidate("b.doc")}, nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if summary.Outcomes[0].Error != domain.NetworkErrorMessage {
		t.Fatalf("expected generic network error, got %q", summary.Outcomes[0].Error)
	}
	if !summary.Outcomes[1].Succeeded {
		t.Fatalf("expected batch to continue after failure")
	}
}

func TestBatchUploadUndecodableResponseMidBatch(t *testing.T) {
	endpoint := &uploadEndpointFake{results: map[string]error{
		"b.docx": domain.WrapError(domain.ErrTransport, "upload",
			errors.New("decode response: invalid character '<' looking for beginning of value")),
	}}
	reporter := &reporterFake{}
	uc := newBatchUseCase(endpoint, &notifierFake{}, nil)

	summary, err := uc.Run(context.Background(), []domain.CandidateFile{
		candidate("a.docx"), candidate("b.docx"), candidate("c.doc"),
	}, reporter)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if got := strings.Join(endpoint.calls, ","); got != "a.docx,b.docx,c.doc" {
		t.Fatalf("expected the next file to be dispatched, got calls %s", got)
	}
	want := []domain.UploadOutcome{
		{Name: "a.docx", Succeeded: true},
		{Name: "b.docx", Error: domain.NetworkErrorMessage},
		{Name: "c.doc", Succeeded: true},
	}
	for i := range want {
		if summary.Outcomes[i] != want[i] {
			t.Fatalf("outcome %d: expected %+v, got %+v", i, want[i], summary.Outcomes[i])
		}
	}
	if summary.SuccessCount != 2 || summary.FailCount != 1 || summary.Status != domain.BatchStatusPartial {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if reporter.logs[1] != "✖ b.docx - failed: "+domain.NetworkErrorMessage {
		t.Fatalf("unexpected log line: %s", reporter.logs[1])
	}
}

func TestBatchUploadIsStrictlySequential(t *testing.T) {
	endpoint := &uploadEndpointFake{}
	uc := newBatchUseCase(endpoint, &notifierFake{}, nil)

	files := make([]domain.CandidateFile, 0, 7)
	for _, name := range []string{"1.doc", "2.doc", "3.docx", "4.doc", "5.docx", "6.doc", "7.doc"} {
		files = append(files, candidate(name))
	}
	summary, err := uc.Run(context.Background(), files, nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(endpoint.calls) != 7 {
		t.Fatalf("expected 7 upload calls, got %d", len(endpoint.calls))
	}
	if endpoint.maxSeen != 1 {
		t.Fatalf("expected at most one upload in flight, saw %d", endpoint.maxSeen)
	}
	if summary.SuccessCount+summary.FailCount != 7 {
		t.Fatalf("counts must add up to job size")
	}
	if summary.Status != domain.BatchStatusSuccess {
		t.Fatalf("expected success status, got %s", summary.Status)
	}
}

func TestBatchUploadProgressEndsAtHundred(t *testing.T) {
	for _, n := range []int{1, 3, 7} {
		endpoint := &uploadEndpointFake{}
		reporter := &reporterFake{}
		uc := newBatchUseCase(endpoint, &notifierFake{}, nil)

		files := make([]domain.CandidateFile, 0, n)
		for i := 0; i < n; i++ {
			files = append(files, candidate(strings.Repeat("x", i+1)+".doc"))
		}
		if _, err := uc.Run(context.Background(), files, reporter); err != nil {
			t.Fatalf("Run() error = %v", err)
		}

		if len(reporter.percents) != n+1 {
			t.Fatalf("n=%d: expected %d progress reports, got %d", n, n+1, len(reporter.percents))
		}
		for i := 0; i < n; i++ {
			if reporter.percents[i] != i*100/n {
				t.Fatalf("n=%d: report %d expected %d, got %d", n, i, i*100/n, reporter.percents[i])
			}
		}
		if last := reporter.percents[n]; last != 100 {
			t.Fatalf("n=%d: expected final progress 100, got %d", n, last)
		}
		for i := 1; i < len(reporter.percents); i++ {
			if reporter.percents[i] < reporter.percents[i-1] {
				t.Fatalf("n=%d: progress went backwards: %v", n, reporter.percents)
			}
		}
	}
}

func TestBatchUploadEmptyInput(t *testing.T) {
	endpoint := &uploadEndpointFake{}
	reporter := &reporterFake{}
	notifier := &notifierFake{}
	uc := newBatchUseCase(endpoint, notifier, nil)

	_, err := uc.Run(context.Background(), nil, reporter)
	if !errors.Is(err, domain.ErrNoFilesSelected) {
		t.Fatalf("expected ErrNoFilesSelected, got %v", err)
	}
	if len(endpoint.calls) != 0 || reporter.started != 0 || len(notifier.settled) != 0 {
		t.Fatalf("expected no side effects for empty input")
	}
}

func TestBatchUploadNoValidFiles(t *testing.T) {
	endpoint := &uploadEndpointFake{}
	reporter := &reporterFake{}
	uc := newBatchUseCase(endpoint, &notifierFake{}, nil)

	_, err := uc.Run(context.Background(), []domain.CandidateFile{candidate("a.pdf"), candidate("b.txt")}, reporter)
	if !errors.Is(err, domain.ErrNoValidFiles) {
		t.Fatalf("expected ErrNoValidFiles, got %v", err)
	}
	if len(endpoint.calls) != 0 {
		t.Fatalf("expected no network calls, got %d", len(endpoint.calls))
	}
	if len(reporter.percents) != 0 {
		t.Fatalf("expected no progress to be shown")
	}
}

func TestBatchUploadStopsAtIterationBoundaryWhenCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	endpoint := &uploadEndpointFake{onUpload: func(name string) {
		if name == "2.doc" {
			cancel()
		}
	}}
	notifier := &notifierFake{}
	reports := &reportStoreFake{}
	uc := newBatchUseCase(endpoint, notifier, reports)

	summary, err := uc.Run(ctx, []domain.CandidateFile{candidate("1.doc"), candidate("2.doc"), candidate("3.doc")}, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if summary == nil || summary.Status != domain.BatchStatusCanceled {
		t.Fatalf("expected canceled summary, got %+v", summary)
	}
	if len(endpoint.calls) != 2 {
		t.Fatalf("expected in-flight upload to finish and no further dispatch, got %v", endpoint.calls)
	}
	if len(notifier.settled) != 0 {
		t.Fatalf("canceled batch must not switch views")
	}
	if len(reports.saved) != 1 {
		t.Fatalf("expected canceled batch to be journaled")
	}
}

func TestBatchUploadSettleDelayIsHonored(t *testing.T) {
	var gotDelay time.Duration
	uc := NewBatchUploadUseCase(&uploadEndpointFake{}, &notifierFake{}, BatchUploadOptions{SettleDelay: 3 * time.Second})
	uc.schedule = func(delay time.Duration, fn func()) { gotDelay = delay }

	if _, err := uc.Run(context.Background(), []domain.CandidateFile{candidate("a.doc")}, nil); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if gotDelay != 3*time.Second {
		t.Fatalf("expected 3s settle delay, got %s", gotDelay)
	}
}
