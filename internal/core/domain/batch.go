package domain

import (
	"fmt"
	"io"
	"strings"
	"time"
)

// AcceptedExtensions lists the file suffixes the upload endpoint accepts.
var AcceptedExtensions = []string{".doc", ".docx"}

// NetworkErrorMessage is recorded for uploads that failed below the application layer.
const NetworkErrorMessage = "network error"

// CandidateFile is a file offered for upload. Content is opened lazily at
// dispatch time so large folders are never held in memory.
type CandidateFile struct {
	Name string
	Size int64
	Open func() (io.ReadCloser, error)
}

// IsAcceptedFile reports whether name carries an accepted extension, ignoring case.
func IsAcceptedFile(name string) bool {
	lower := strings.ToLower(name)
	for _, ext := range AcceptedExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

type UploadOutcome struct {
	Name      string `json:"name"`
	Succeeded bool   `json:"succeeded"`
	Error     string `json:"error,omitempty"`
}

// LogLine renders the per-file log entry shown after each completed upload.
func (o UploadOutcome) LogLine() string {
	if o.Succeeded {
		return "✔ " + o.Name + " - ok"
	}
	return "✖ " + o.Name + " - failed: " + o.Error
}

type BatchProgress struct {
	Completed int `json:"completed"`
	Total     int `json:"total"`
	Percent   int `json:"percent"`
}

// ProgressPercent is floor(index/total*100). The final 100 is set explicitly
// by the uploader once the last file settles.
func ProgressPercent(index, total int) int {
	if total <= 0 {
		return 0
	}
	return index * 100 / total
}

type BatchStatus string

const (
	BatchStatusRunning  BatchStatus = "running"
	BatchStatusSuccess  BatchStatus = "success"
	BatchStatusPartial  BatchStatus = "partial"
	BatchStatusCanceled BatchStatus = "canceled"
)

func (s BatchStatus) String() string { return string(s) }

func (s BatchStatus) IsTerminal() bool {
	switch s {
	case BatchStatusSuccess, BatchStatusPartial, BatchStatusCanceled:
		return true
	}
	return false
}

type BatchSummary struct {
	ID           string          `json:"id"`
	Total        int             `json:"total"`
	SuccessCount int             `json:"success_count"`
	FailCount    int             `json:"fail_count"`
	Status       BatchStatus     `json:"status"`
	Outcomes     []UploadOutcome `json:"outcomes"`
	StartedAt    time.Time       `json:"started_at"`
	FinishedAt   time.Time       `json:"finished_at"`
}

// ResultMessage is the one-line completion banner.
func (s BatchSummary) ResultMessage() string {
	return fmt.Sprintf("upload finished: %d succeeded, %d failed", s.SuccessCount, s.FailCount)
}

// StatusFor derives the terminal status from the failure count.
func StatusFor(failCount int) BatchStatus {
	if failCount > 0 {
		return BatchStatusPartial
	}
	return BatchStatusSuccess
}

// ViewSwitch describes what the surface should do once a batch settles.
type ViewSwitch struct {
	CloseUpload bool   `json:"close_upload"`
	Source      string `json:"source"`
}
