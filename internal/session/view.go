package session

import (
	"encoding/json"
	"os"
	"time"

	"github.com/jurriaanhof/aico-go/internal/aicoerr"
	"github.com/jurriaanhof/aico-go/internal/fsutil"
	"github.com/jurriaanhof/aico-go/internal/models"
)

// LoadView reads the session view file at path.
func LoadView(path string) (*models.SessionView, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, aicoerr.IO("read session view", err)
	}
	var view models.SessionView
	if err := json.Unmarshal(data, &view); err != nil {
		return nil, aicoerr.Serialization("parse session view", err)
	}
	return &view, nil
}

// SaveView atomically rewrites the session view file at path.
func SaveView(path string, view *models.SessionView) error {
	return fsutil.AtomicWriteJSON(path, view)
}

// NewView initializes an empty session view for a freshly created
// session, pinned to model and rooted at the current wall-clock time.
func NewView(model string) *models.SessionView {
	return &models.SessionView{
		Model:            model,
		ContextFiles:     []string{},
		MessageIndices:   []int{},
		HistoryStartPair: 0,
		ExcludedPairs:    []int{},
		CreatedAt:        time.Now().UTC(),
	}
}
