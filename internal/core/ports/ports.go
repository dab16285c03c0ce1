package ports

import (
	"context"

	"github.com/kirillkom/judgment-search/internal/core/domain"
)

// SearchService runs keyword searches against the judgment service.
type SearchService interface {
	Search(ctx context.Context, query domain.SearchQuery) ([]domain.Document, error)
}

// DocumentService fetches a single judgment with its full content.
type DocumentService interface {
	GetDocument(ctx context.Context, ref domain.DocumentRef) (*domain.Document, error)
}

// UploadEndpoint accepts one judgment file per call.
type UploadEndpoint interface {
	Upload(ctx context.Context, file domain.CandidateFile) error
}

// ResetEndpoint clears every imported judgment on the service.
type ResetEndpoint interface {
	ClearDatabase(ctx context.Context) error
}
