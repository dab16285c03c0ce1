package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kirillkom/judgment-search/internal/bootstrap"
	"github.com/kirillkom/judgment-search/internal/config"
	"github.com/kirillkom/judgment-search/internal/core/domain"
)

type judgmentServerFake struct {
	mu       sync.Mutex
	uploaded []string
	cleared  int
}

func (f *judgmentServerFake) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/api/search":
		_ = json.NewEncoder(w).Encode([]domain.Document{{
			ID:      7,
			Title:   "Loan dispute",
			Content: "The borrower failed to repay the loan.",
			Source:  "温岭法院 2020 前",
			Type:    "民事",
		}})
	case r.URL.Path == "/api/document/7":
		_ = json.NewEncoder(w).Encode(domain.Document{ID: 7, Title: "Loan dispute", Content: "line one\nline two"})
	case r.URL.Path == "/api/upload":
		_, header, err := r.FormFile("file")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		f.uploaded = append(f.uploaded, header.Filename)
		f.mu.Unlock()
		if strings.HasSuffix(header.Filename, ".doc") {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"bad format"}`))
			return
		}
		_, _ = w.Write([]byte(`{"message":"ok"}`))
	case r.URL.Path == "/api/clear-db":
		f.mu.Lock()
		f.cleared++
		f.mu.Unlock()
		_, _ = w.Write([]byte(`{"message":"cleared"}`))
	default:
		http.NotFound(w, r)
	}
}

type cliFixture struct {
	cli    *cli
	server *judgmentServerFake
	stdout *bytes.Buffer
	stderr *bytes.Buffer
}

func newCLIFixture(t *testing.T, stdin string) *cliFixture {
	t.Helper()

	fake := &judgmentServerFake{}
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	waiter := newSettleWaiter()
	app, err := bootstrap.New(context.Background(), config.Config{
		APIBaseURL:    server.URL,
		HTTPTimeout:   time.Second,
		MCPServerName: "judgment-search",
	}, bootstrap.Options{
		Service:  "judgectl-test",
		Notifier: waiter,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("bootstrap.New() error = %v", err)
	}
	t.Cleanup(app.Close)

	fx := &cliFixture{server: fake, stdout: &bytes.Buffer{}, stderr: &bytes.Buffer{}}
	fx.cli = &cli{
		app:    app,
		waiter: waiter,
		stdin:  strings.NewReader(stdin),
		stdout: fx.stdout,
		stderr: fx.stderr,
	}
	return fx
}

func writeFiles(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, name := range names {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("judgment "+name), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
}

func TestRunWithoutCommandPrintsUsage(t *testing.T) {
	var stderr bytes.Buffer
	if code := run(nil, strings.NewReader(""), io.Discard, &stderr); code != 2 {
		t.Fatalf("exit code = %d, want 2", code)
	}
	if !strings.Contains(stderr.String(), "usage: judgectl") {
		t.Fatalf("stderr = %q, want usage", stderr.String())
	}
}

func TestDispatchUnknownCommand(t *testing.T) {
	fx := newCLIFixture(t, "")
	if code := fx.cli.dispatch(context.Background(), "frobnicate", nil); code != 2 {
		t.Fatalf("exit code = %d, want 2", code)
	}
}

func TestSearchPrintsResultsAndWritesSpreadsheet(t *testing.T) {
	fx := newCLIFixture(t, "")
	out := filepath.Join(t.TempDir(), "results.xlsx")

	code := fx.cli.dispatch(context.Background(), "search", []string{"-xlsx", out, "loan"})
	if code != 0 {
		t.Fatalf("exit code = %d, stderr = %s", code, fx.stderr.String())
	}
	got := fx.stdout.String()
	for _, want := range []string{"1 results", "[7] Loan dispute", "民事", "The borrower failed"} {
		if !strings.Contains(got, want) {
			t.Fatalf("stdout missing %q:\n%s", want, got)
		}
	}
	info, err := os.Stat(out)
	if err != nil || info.Size() == 0 {
		t.Fatalf("spreadsheet not written: %v", err)
	}
}

func TestSearchWithoutKeywordsFails(t *testing.T) {
	fx := newCLIFixture(t, "")
	if code := fx.cli.dispatch(context.Background(), "search", nil); code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
	if !strings.Contains(fx.stderr.String(), "enter search keywords") {
		t.Fatalf("stderr = %q", fx.stderr.String())
	}
}

func TestShowRequiresSourceAndID(t *testing.T) {
	fx := newCLIFixture(t, "")
	if code := fx.cli.dispatch(context.Background(), "show", []string{"7"}); code != 2 {
		t.Fatalf("exit code = %d, want 2", code)
	}
	if code := fx.cli.dispatch(context.Background(), "show", []string{"-source", "全部", "x"}); code != 2 {
		t.Fatalf("non-numeric id exit code = %d, want 2", code)
	}
}

func TestShowPrintsDocument(t *testing.T) {
	fx := newCLIFixture(t, "")
	code := fx.cli.dispatch(context.Background(), "show", []string{"-source", "已导入数据", "-q", "loan", "7"})
	if code != 0 {
		t.Fatalf("exit code = %d, stderr = %s", code, fx.stderr.String())
	}
	if !strings.Contains(fx.stdout.String(), "line one\nline two") {
		t.Fatalf("stdout = %q", fx.stdout.String())
	}
}

func TestUploadReportsPartialBatch(t *testing.T) {
	fx := newCLIFixture(t, "")
	dir := t.TempDir()
	writeFiles(t, dir, "a.docx", "b.txt", "c.doc")
	report := filepath.Join(t.TempDir(), "report.xlsx")

	code := fx.cli.dispatch(context.Background(), "upload", []string{"-report", report, dir})
	if code != 1 {
		t.Fatalf("exit code = %d, want 1 for partial batch", code)
	}

	fx.server.mu.Lock()
	uploaded := append([]string(nil), fx.server.uploaded...)
	fx.server.mu.Unlock()
	if strings.Join(uploaded, ",") != "a.docx,c.doc" {
		t.Fatalf("uploaded = %v, want a.docx then c.doc", uploaded)
	}

	stderr := fx.stderr.String()
	for _, want := range []string{"3 files selected, 2 valid", "[  0%] a.docx", "[ 50%] c.doc", "[100%] done", "✔ a.docx", "✖ c.doc - failed: bad format"} {
		if !strings.Contains(stderr, want) {
			t.Fatalf("stderr missing %q:\n%s", want, stderr)
		}
	}
	stdout := fx.stdout.String()
	if !strings.Contains(stdout, "1 succeeded, 1 failed") {
		t.Fatalf("stdout = %q, want result message", stdout)
	}
	if !strings.Contains(stdout, "search source switched to 已导入数据") {
		t.Fatalf("stdout = %q, want settle notice", stdout)
	}
	if info, err := os.Stat(report); err != nil || info.Size() == 0 {
		t.Fatalf("report not written: %v", err)
	}
}

func TestUploadWithoutValidFiles(t *testing.T) {
	fx := newCLIFixture(t, "")
	dir := t.TempDir()
	writeFiles(t, dir, "notes.txt")

	if code := fx.cli.dispatch(context.Background(), "upload", []string{dir}); code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
	if !strings.Contains(fx.stderr.String(), "no .doc or .docx files") {
		t.Fatalf("stderr = %q", fx.stderr.String())
	}
	if len(fx.server.uploaded) != 0 {
		t.Fatalf("uploads issued for an empty job: %v", fx.server.uploaded)
	}
}

func TestUploadWithoutPaths(t *testing.T) {
	fx := newCLIFixture(t, "")
	if code := fx.cli.dispatch(context.Background(), "upload", nil); code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
	if !strings.Contains(fx.stderr.String(), "select files to upload first") {
		t.Fatalf("stderr = %q", fx.stderr.String())
	}
}

func TestClearDBDeclinedSendsNothing(t *testing.T) {
	fx := newCLIFixture(t, "n\n")
	if code := fx.cli.dispatch(context.Background(), "clear-db", nil); code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
	if fx.server.cleared != 0 {
		t.Fatalf("clear-db requests = %d, want 0", fx.server.cleared)
	}
	if !strings.Contains(fx.stderr.String(), "database reset canceled") {
		t.Fatalf("stderr = %q", fx.stderr.String())
	}
}

func TestClearDBConfirmed(t *testing.T) {
	fx := newCLIFixture(t, "")
	if code := fx.cli.dispatch(context.Background(), "clear-db", []string{"-yes"}); code != 0 {
		t.Fatalf("exit code = %d, stderr = %s", code, fx.stderr.String())
	}
	if fx.server.cleared != 1 {
		t.Fatalf("clear-db requests = %d, want 1", fx.server.cleared)
	}
	if !strings.Contains(fx.stdout.String(), "database cleared") {
		t.Fatalf("stdout = %q", fx.stdout.String())
	}
}

func TestReportsRequiresJournal(t *testing.T) {
	fx := newCLIFixture(t, "")
	if code := fx.cli.dispatch(context.Background(), "reports", nil); code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
	if !strings.Contains(fx.stderr.String(), "REPORT_POSTGRES_DSN") {
		t.Fatalf("stderr = %q", fx.stderr.String())
	}
}

func TestPromptConfirmerAcceptsOnlyYes(t *testing.T) {
	cases := map[string]bool{
		"y\n":   true,
		"YES\n": true,
		"\n":    false,
		"no\n":  false,
		"":      false,
		"yep\n": false,
	}
	for input, want := range cases {
		var prompt bytes.Buffer
		confirmer := promptConfirmer{in: bufio.NewReader(strings.NewReader(input)), out: &prompt}
		got, err := confirmer.Confirm(context.Background(), "Clear?")
		if err != nil {
			t.Fatalf("Confirm(%q) error = %v", input, err)
		}
		if got != want {
			t.Fatalf("Confirm(%q) = %v, want %v", input, got, want)
		}
		if !strings.Contains(prompt.String(), "Clear? [y/N]") {
			t.Fatalf("prompt = %q", prompt.String())
		}
	}
}
