package ports

import (
	"context"

	"github.com/kirillkom/judgment-search/internal/core/domain"
)

// DocumentSearcher is the inbound contract for keyword search with rendered snippets.
type DocumentSearcher interface {
	Search(ctx context.Context, query domain.SearchQuery) (*domain.SearchPage, error)
}

// DocumentViewer is the inbound contract for the full-document view.
type DocumentViewer interface {
	View(ctx context.Context, ref domain.DocumentRef) (*domain.DocumentView, error)
}

// BatchUploader is the inbound contract for sequential batch uploads.
type BatchUploader interface {
	Run(ctx context.Context, files []domain.CandidateFile, reporter ProgressReporter) (*domain.BatchSummary, error)
}

// DatabaseResetter is the inbound contract for the confirmed database reset.
type DatabaseResetter interface {
	Reset(ctx context.Context, confirmer Confirmer) error
}
