package domain

import (
	"errors"
	"fmt"
)

var (
	ErrDocumentNotFound = errors.New("document not found")
	ErrBatchNotFound    = errors.New("batch not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrNoFilesSelected  = errors.New("no files selected")
	ErrNoValidFiles     = errors.New("no .doc or .docx files selected")
	ErrResetDeclined    = errors.New("database reset declined")
	ErrRemote           = errors.New("remote service error")
	ErrTransport        = errors.New("transport failure")
	ErrTemporary        = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// RemoteError is an application-level failure reported by the service in an
// {"error": "..."} payload. Message is the server text, unmodified.
type RemoteError struct {
	Operation string
	Message   string
}

func (e *RemoteError) Error() string {
	if e == nil {
		return "remote error"
	}
	return fmt.Sprintf("%s: %s", e.Operation, e.Message)
}

func (e *RemoteError) Is(target error) bool {
	return target == ErrRemote
}

// RemoteMessage returns the server-supplied message carried by err, if any.
func RemoteMessage(err error) (string, bool) {
	var remoteErr *RemoteError
	if errors.As(err, &remoteErr) {
		return remoteErr.Message, true
	}
	return "", false
}
