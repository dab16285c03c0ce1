package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kirillkom/judgment-search/internal/core/domain"
	"github.com/kirillkom/judgment-search/internal/core/highlight"
	"github.com/kirillkom/judgment-search/internal/core/ports"
)

type DocumentViewUseCase struct {
	docs   ports.DocumentService
	logger *slog.Logger
}

func NewDocumentViewUseCase(docs ports.DocumentService, logger *slog.Logger) *DocumentViewUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &DocumentViewUseCase{docs: docs, logger: logger}
}

func (uc *DocumentViewUseCase) View(ctx context.Context, ref domain.DocumentRef) (*domain.DocumentView, error) {
	doc, err := uc.docs.GetDocument(ctx, ref)
	if err != nil {
		uc.logger.WarnContext(ctx, "document_fetch_failed", "id", ref.ID, "source", ref.Source, "error", err)
		return nil, fmt.Errorf("view document %d: %w", ref.ID, err)
	}

	return &domain.DocumentView{
		Document: *doc,
		Query:    ref.Query,
		Body:     highlight.Body(doc.Content, highlight.Keywords(ref.Query)),
	}, nil
}
