package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	mcpadapter "github.com/kirillkom/judgment-search/internal/adapters/mcp"
	"github.com/kirillkom/judgment-search/internal/bootstrap"
	"github.com/kirillkom/judgment-search/internal/core/domain"
	"github.com/kirillkom/judgment-search/internal/core/highlight"
	"github.com/kirillkom/judgment-search/internal/core/usecase"
	"github.com/kirillkom/judgment-search/internal/infrastructure/export/xlsx"
	"github.com/kirillkom/judgment-search/internal/infrastructure/storage/localfs"
)

type cli struct {
	app    *bootstrap.App
	waiter *settleWaiter
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

func (c *cli) dispatch(ctx context.Context, command string, args []string) int {
	var err error
	switch command {
	case "search":
		err = c.search(ctx, args)
	case "show":
		err = c.show(ctx, args)
	case "upload":
		err = c.upload(ctx, args)
	case "clear-db":
		err = c.clearDB(ctx, args)
	case "reports":
		err = c.reports(ctx, args)
	case "mcp":
		err = mcpadapter.NewServer(c.app.Config.MCPServerName, version, c.app.SearchUC, c.app.ViewUC, c.app.Logger).ServeStdio()
	case "help", "-h", "--help":
		fmt.Fprint(c.stdout, usage)
		return 0
	default:
		fmt.Fprintf(c.stderr, "unknown command %q\n\n%s", command, usage)
		return 2
	}

	var usageErr usageError
	switch {
	case err == nil:
		return 0
	case errors.As(err, &usageErr):
		fmt.Fprintf(c.stderr, "%s\n\n%s", usageErr.msg, usage)
		return 2
	case errors.Is(err, flag.ErrHelp):
		return 2
	default:
		fmt.Fprintln(c.stderr, userMessage(err))
		return 1
	}
}

type usageError struct{ msg string }

func (e usageError) Error() string { return e.msg }

// userMessage hides transport detail; it is in the JSON log on stderr.
func userMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrNoFilesSelected):
		return "select files to upload first"
	case errors.Is(err, domain.ErrNoValidFiles):
		return "no .doc or .docx files among the selection"
	case errors.Is(err, domain.ErrResetDeclined):
		return "database reset canceled"
	case errors.Is(err, domain.ErrInvalidInput):
		return usecase.MessageEnterKeywords
	case errors.Is(err, errPartialBatch):
		return err.Error()
	}
	if msg, ok := domain.RemoteMessage(err); ok {
		return msg
	}
	return err.Error()
}

func (c *cli) newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	return fs
}

func (c *cli) search(ctx context.Context, args []string) error {
	fs := c.newFlagSet("search")
	exclude := fs.String("exclude", "", "keywords that must not appear")
	field := fs.String("type", string(domain.FieldContent), "field to search: content, title or all")
	docType := fs.String("doctype", domain.DocTypeAll, "case type")
	source := fs.String("source", domain.SourceAll, "court source")
	xlsxPath := fs.String("xlsx", "", "also write results to this spreadsheet")
	if err := fs.Parse(args); err != nil {
		return err
	}

	page, err := c.app.SearchUC.Search(ctx, domain.SearchQuery{
		Query:   strings.Join(fs.Args(), " "),
		Exclude: *exclude,
		Field:   domain.SearchField(*field),
		DocType: *docType,
		Source:  *source,
	})
	if err != nil {
		if domain.IsKind(err, domain.ErrRemote) {
			return errors.New(usecase.MessageSearchFailed)
		}
		return err
	}

	writeSearchPage(c.stdout, page)
	if *xlsxPath != "" {
		if err := writeFile(*xlsxPath, func(w io.Writer) error { return xlsx.WriteSearchPage(w, page) }); err != nil {
			return err
		}
		fmt.Fprintf(c.stderr, "results written to %s\n", *xlsxPath)
	}
	return nil
}

func writeSearchPage(w io.Writer, page *domain.SearchPage) {
	if page.Count == 0 {
		fmt.Fprintln(w, page.Message)
		return
	}
	fmt.Fprintf(w, "%d results\n\n", page.Count)
	for _, result := range page.Results {
		doc := result.Document
		fmt.Fprintf(w, "[%d] %s\n    %s · %s\n    %s\n\n", doc.ID, doc.Title, doc.Source, doc.Type,
			highlight.Snippet(doc.Content, highlight.SnippetRunes))
	}
}

func (c *cli) show(ctx context.Context, args []string) error {
	fs := c.newFlagSet("show")
	source := fs.String("source", "", "source of the search result")
	query := fs.String("q", "", "keywords of the originating search")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 || *source == "" {
		return usageError{"show needs -source and exactly one document id"}
	}
	id, err := strconv.Atoi(fs.Arg(0))
	if err != nil || id <= 0 {
		return usageError{"document id must be a positive integer"}
	}

	view, err := c.app.ViewUC.View(ctx, domain.DocumentRef{ID: id, Source: *source, Query: *query})
	if err != nil {
		return errors.New(usecase.MessageDocumentFailed)
	}
	doc := view.Document
	fmt.Fprintf(c.stdout, "%s\n%s · %s\n\n%s\n", doc.Title, doc.Source, doc.Type, doc.Content)
	return nil
}

var errPartialBatch = errors.New("some files failed to upload")

func (c *cli) upload(ctx context.Context, args []string) error {
	fs := c.newFlagSet("upload")
	report := fs.String("report", "", "write a batch report spreadsheet")
	if err := fs.Parse(args); err != nil {
		return err
	}

	paths := make([]string, 0, fs.NArg())
	for _, arg := range fs.Args() {
		abs, err := filepath.Abs(arg)
		if err != nil {
			return fmt.Errorf("resolve %s: %w", arg, err)
		}
		paths = append(paths, abs)
	}
	files, err := localfs.New(string(filepath.Separator)).Collect(paths)
	if err != nil {
		return err
	}
	valid := len(usecase.FilterUploadJob(files))
	if len(files) > 0 {
		fmt.Fprintf(c.stderr, "%d files selected, %d valid (.doc/.docx)\n", len(files), valid)
	}

	summary, err := c.app.UploadUC.Run(ctx, files, newTerminalReporter(c.stderr))
	if summary == nil {
		return err
	}
	if *report != "" {
		if werr := writeFile(*report, func(w io.Writer) error { return xlsx.WriteBatchReport(w, *summary) }); werr != nil {
			return werr
		}
		fmt.Fprintf(c.stderr, "report written to %s\n", *report)
	}
	if err != nil {
		return fmt.Errorf("upload stopped after %d of %d files: %w", len(summary.Outcomes), summary.Total, err)
	}

	fmt.Fprintln(c.stdout, summary.ResultMessage())
	if view, ok := c.waiter.waitSettled(ctx, c.app.Config.UploadSettleDelay); ok {
		fmt.Fprintf(c.stdout, "search source switched to %s\n", view.Source)
	}
	if summary.Status == domain.BatchStatusPartial {
		return errPartialBatch
	}
	return nil
}

func (c *cli) clearDB(ctx context.Context, args []string) error {
	fs := c.newFlagSet("clear-db")
	yes := fs.Bool("yes", false, "skip the confirmation prompt")
	if err := fs.Parse(args); err != nil {
		return err
	}

	confirmer := promptConfirmer{in: bufio.NewReader(c.stdin), out: c.stderr, assume: *yes}
	if err := c.app.ResetUC.Reset(ctx, confirmer); err != nil {
		if errors.Is(err, domain.ErrResetDeclined) {
			return err
		}
		if _, ok := domain.RemoteMessage(err); ok {
			return err
		}
		return errors.New("clearing the database failed")
	}
	fmt.Fprintln(c.stdout, "database cleared")
	c.waiter.waitReload(ctx, c.app.Config.ResetReloadDelay)
	return nil
}

func (c *cli) reports(ctx context.Context, args []string) error {
	fs := c.newFlagSet("reports")
	limit := fs.Int("limit", 20, "number of batches to list")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if c.app.Reports == nil {
		return errors.New("batch reports are disabled: set REPORT_POSTGRES_DSN")
	}

	batches, err := c.app.Reports.ListRecent(ctx, *limit)
	if err != nil {
		return err
	}
	for _, b := range batches {
		fmt.Fprintf(c.stdout, "%s  %-8s  %d/%d ok  %s\n",
			b.FinishedAt.Local().Format("2006-01-02 15:04:05"), b.Status, b.SuccessCount, b.Total, b.ID)
	}
	return nil
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
