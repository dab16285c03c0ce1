package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kirillkom/judgment-search/internal/core/domain"
)

type documentServiceFake struct {
	ref domain.DocumentRef
	doc *domain.Document
	err error
}

func (f *documentServiceFake) GetDocument(_ context.Context, ref domain.DocumentRef) (*domain.Document, error) {
	f.ref = ref
	return f.doc, f.err
}

func TestDocumentViewHighlightsBody(t *testing.T) {
	svc := &documentServiceFake{doc: &domain.Document{
		ID: 7, Title: "民事判决书", Content: "原告诉称\n被告 Li 辩称", Source: "温岭法院", Type: domain.DocTypeCivil,
	}}
	view, err := NewDocumentViewUseCase(svc, nil).View(context.Background(), domain.DocumentRef{ID: 7, Source: "温岭法院", Query: "li 原告"})
	if err != nil {
		t.Fatalf("View() error = %v", err)
	}
	body := string(view.Body)
	if !strings.Contains(body, `<span class="highlight">原告</span>诉称<br>`) {
		t.Fatalf("unexpected body: %q", body)
	}
	if !strings.Contains(body, `<span class="highlight">Li</span>`) {
		t.Fatalf("expected case-insensitive highlight, got %q", body)
	}
	if svc.ref.Source != "温岭法院" || svc.ref.Query != "li 原告" {
		t.Fatalf("expected ref to be forwarded, got %+v", svc.ref)
	}
}

func TestDocumentViewPropagatesFailure(t *testing.T) {
	svc := &documentServiceFake{err: domain.WrapError(domain.ErrDocumentNotFound, "get document", errors.New("404"))}
	_, err := NewDocumentViewUseCase(svc, nil).View(context.Background(), domain.DocumentRef{ID: 9, Source: "温岭法院"})
	if !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
}
