package httpadapter

import (
	"net/http"

	"github.com/kirillkom/judgment-search/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput),
		domain.IsKind(err, domain.ErrNoFilesSelected),
		domain.IsKind(err, domain.ErrResetDeclined):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrNoValidFiles):
		return http.StatusUnprocessableEntity
	case domain.IsKind(err, domain.ErrDocumentNotFound),
		domain.IsKind(err, domain.ErrBatchNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	case domain.IsKind(err, domain.ErrRemote),
		domain.IsKind(err, domain.ErrTransport):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
