package chatui

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/jurriaanhof/aico-go/internal/models"
)

// LoadContextFiles reads every tracked context file concurrently,
// returning its content and on-disk mtime. relPaths are slash-separated
// paths relative to root, as stored in the session view.
func LoadContextFiles(root string, relPaths []string) ([]models.ContextFile, error) {
	files := make([]models.ContextFile, len(relPaths))
	errs := make([]error, len(relPaths))

	var wg sync.WaitGroup
	for i, rel := range relPaths {
		wg.Add(1)
		go func(i int, rel string) {
			defer wg.Done()
			abs := filepath.Join(root, filepath.FromSlash(rel))
			data, err := os.ReadFile(abs)
			if err != nil {
				errs[i] = fmt.Errorf("read context file %s: %w", rel, err)
				return
			}
			info, err := os.Stat(abs)
			if err != nil {
				errs[i] = fmt.Errorf("stat context file %s: %w", rel, err)
				return
			}
			files[i] = models.ContextFile{
				Path:    rel,
				Content: string(data),
				Mtime:   float64(info.ModTime().UnixNano()) / 1e9,
			}
		}(i, rel)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return files, nil
}

// Baseline builds the patch resolver's baseline map from loaded context
// files, keyed the same way the session view stores them.
func Baseline(files []models.ContextFile) map[string]string {
	baseline := make(map[string]string, len(files))
	for _, f := range files {
		baseline[f.Path] = f.Content
	}
	return baseline
}
