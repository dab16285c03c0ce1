package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/kirillkom/judgment-search/internal/core/domain"
	"github.com/kirillkom/judgment-search/internal/core/ports"
	"github.com/kirillkom/judgment-search/internal/core/usecase"
	"github.com/kirillkom/judgment-search/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/judgment-search/internal/observability/logging"
	"github.com/kirillkom/judgment-search/internal/observability/metrics"
)

const (
	serviceName     = "console"
	maxUploadMemory = 32 << 20
)

type RouterOptions struct {
	RateLimitRPS     float64
	RateLimitBurst   int
	MaxInFlight      int
	BackpressureWait time.Duration
	SpoolDir         string
	Metrics          *metrics.HTTPServerMetrics
	Logger           *slog.Logger
}

type Router struct {
	searcher ports.DocumentSearcher
	viewer   ports.DocumentViewer
	uploader ports.BatchUploader
	resetter ports.DatabaseResetter
	tracker  *BatchTracker
	view     *ViewState
	opts     RouterOptions
	logger   *slog.Logger
}

func NewRouter(
	searcher ports.DocumentSearcher,
	viewer ports.DocumentViewer,
	uploader ports.BatchUploader,
	resetter ports.DatabaseResetter,
	tracker *BatchTracker,
	opts RouterOptions,
) *Router {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.BackpressureWait <= 0 {
		opts.BackpressureWait = 250 * time.Millisecond
	}
	return &Router{
		searcher: searcher,
		viewer:   viewer,
		uploader: uploader,
		resetter: resetter,
		tracker:  tracker,
		view:     tracker.view,
		opts:     opts,
		logger:   logger,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	if rt.opts.Metrics != nil {
		mux.Handle("GET /metrics", rt.opts.Metrics.Handler())
	}
	mux.HandleFunc("GET /{$}", rt.search)
	mux.HandleFunc("GET /documents/{id}", rt.document)
	mux.HandleFunc("POST /batches", rt.startBatch)
	mux.HandleFunc("GET /batches/{id}", rt.batchStatus)
	mux.HandleFunc("POST /clear-db", rt.clearDatabase)

	var handler http.Handler = mux
	handler = backpressureMiddleware(handler, rt.opts.MaxInFlight, rt.opts.BackpressureWait)
	handler = rateLimitMiddleware(handler, rt.opts.RateLimitRPS, rt.opts.RateLimitBurst)
	if rt.opts.Metrics != nil {
		handler = rt.opts.Metrics.Middleware(serviceName, handler)
	}
	handler = accessLogMiddleware(handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) search(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	view := rt.view.Snapshot()

	query := domain.SearchQuery{
		Query:   params.Get("q"),
		Exclude: params.Get("exclude"),
		Field:   domain.SearchField(params.Get("type")),
		DocType: params.Get("docType"),
		Source:  params.Get("source"),
	}
	if !params.Has("source") {
		query.Source = view.Source
	}
	data := newSearchPageData(view, query.Normalize())

	if !params.Has("q") && !params.Has("exclude") {
		renderHTML(w, http.StatusOK, searchTemplate, data)
		return
	}

	data.Searched = true
	page, err := rt.searcher.Search(r.Context(), query)
	switch {
	case err == nil:
		data.Query = page.Query
		data.Results = page.Results
		data.Count = page.Count
		data.Message = page.Message
		rt.recordSearch(searchOutcome(page), page.Count)
		renderHTML(w, http.StatusOK, searchTemplate, data)
	case domain.IsKind(err, domain.ErrInvalidInput):
		data.Searched = false
		data.Message = usecase.MessageEnterKeywords
		rt.recordSearch("invalid", 0)
		renderHTML(w, http.StatusOK, searchTemplate, data)
	default:
		data.Message = usecase.MessageSearchFailed
		rt.recordSearch("failed", 0)
		renderHTML(w, mapErrorToHTTPStatus(err), searchTemplate, data)
	}
}

func searchOutcome(page *domain.SearchPage) string {
	if page.Count == 0 {
		return "empty"
	}
	return "ok"
}

func (rt *Router) recordSearch(outcome string, results int) {
	if rt.opts.Metrics != nil {
		rt.opts.Metrics.RecordSearch(serviceName, outcome, results)
	}
}

func (rt *Router) document(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	ref := domain.DocumentRef{
		ID:     id,
		Source: r.URL.Query().Get("source"),
		Query:  r.URL.Query().Get("q"),
	}
	data := documentPageData{
		Title:   "Judgment",
		View:    rt.view.Snapshot(),
		BackURL: backURL(ref),
	}
	if err != nil || id <= 0 {
		data.Message = "document id must be a positive integer"
		renderHTML(w, http.StatusBadRequest, documentTemplate, data)
		return
	}

	doc, err := rt.viewer.View(r.Context(), ref)
	if err != nil {
		data.Message = usecase.MessageDocumentFailed
		renderHTML(w, mapErrorToHTTPStatus(err), documentTemplate, data)
		return
	}
	data.Title = doc.Document.Title
	data.Doc = doc
	renderHTML(w, http.StatusOK, documentTemplate, data)
}

func (rt *Router) startBatch(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid multipart form"})
		return
	}

	spool, err := localfs.NewSpool(rt.opts.SpoolDir)
	if err != nil {
		rt.logger.ErrorContext(r.Context(), "spool_create_failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "could not stage upload"})
		return
	}
	cleanup := func() {
		if err := spool.Close(); err != nil {
			rt.logger.Warn("spool_cleanup_failed", "error", err)
		}
	}

	if r.MultipartForm != nil {
		for _, header := range r.MultipartForm.File["files"] {
			if err := spoolPart(spool, header); err != nil {
				cleanup()
				rt.logger.ErrorContext(r.Context(), "spool_write_failed", "file", header.Filename, "error", err)
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "could not stage upload"})
				return
			}
		}
	}

	id, err := rt.tracker.Start(logging.RequestID(r.Context()), rt.uploader, spool.Files(), cleanup)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": batchErrorMessage(err)})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"id": id})
}

func spoolPart(spool *localfs.Spool, header *multipart.FileHeader) error {
	part, err := header.Open()
	if err != nil {
		return fmt.Errorf("open part: %w", err)
	}
	defer part.Close()
	return spool.Add(header.Filename, part)
}

func batchErrorMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrNoFilesSelected):
		return "select files to upload first"
	case errors.Is(err, domain.ErrNoValidFiles):
		return "no .doc or .docx files among the selection"
	default:
		return "upload failed to start"
	}
}

func (rt *Router) batchStatus(w http.ResponseWriter, r *http.Request) {
	state, err := rt.tracker.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": "batch not found"})
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (rt *Router) clearDatabase(w http.ResponseWriter, r *http.Request) {
	confirmer := formConfirmer{confirmed: strings.EqualFold(strings.TrimSpace(r.FormValue("confirm")), "yes")}

	err := rt.resetter.Reset(r.Context(), confirmer)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
	case errors.Is(err, domain.ErrResetDeclined):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "confirmation required", "warning": usecase.ResetWarning})
	default:
		message := "clearing the database failed"
		if remote, ok := domain.RemoteMessage(err); ok {
			message = remote
		}
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": message})
	}
}

// formConfirmer carries the explicit confirm=yes the browser sends after the
// user accepted the warning dialog.
type formConfirmer struct {
	confirmed bool
}

func (c formConfirmer) Confirm(context.Context, string) (bool, error) {
	return c.confirmed, nil
}

func renderHTML(w http.ResponseWriter, status int, tmpl *template.Template, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := tmpl.Execute(w, data); err != nil {
		slog.Error("render_template_failed", "template", tmpl.Name(), "error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
