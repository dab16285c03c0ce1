package httpadapter

import (
	"sync"

	"github.com/kirillkom/judgment-search/internal/core/domain"
)

// ViewState is the console state shared by every page: the default source
// filter, whether the upload panel is open and the last status banner.
type ViewState struct {
	mu         sync.RWMutex
	source     string
	uploadOpen bool
	banner     string
	generation int
}

func NewViewState() *ViewState {
	return &ViewState{source: domain.SourceAll}
}

type ViewSnapshot struct {
	Source     string
	UploadOpen bool
	Banner     string
	Generation int
}

func (v *ViewState) Snapshot() ViewSnapshot {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return ViewSnapshot{
		Source:     v.source,
		UploadOpen: v.uploadOpen,
		Banner:     v.banner,
		Generation: v.generation,
	}
}

func (v *ViewState) OpenUpload() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.uploadOpen = true
}

// ApplyBatch closes the upload panel and switches the source filter.
func (v *ViewState) ApplyBatch(summary domain.BatchSummary, view domain.ViewSwitch) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if view.CloseUpload {
		v.uploadOpen = false
	}
	if view.Source != "" {
		v.source = view.Source
	}
	v.banner = summary.ResultMessage()
}

// Reload resets search state after the database was cleared.
func (v *ViewState) Reload() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.source = domain.SourceAll
	v.uploadOpen = false
	v.banner = "database cleared"
	v.generation++
}
