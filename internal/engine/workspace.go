package engine

import (
	"fmt"
	"os"
	"path/filepath"
)

// workspace stages conversion inputs and outputs in the engine scratch
// directory and tracks every entry it creates so a single Cleanup removes
// them all, including anything the engine wrote as output.
type workspace struct {
	root    string
	tracked []string
}

func newWorkspace(root string) (*workspace, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("prepare workspace: %w", err)
	}
	return &workspace{root: root}, nil
}

// WriteFile stages data under name and tracks the entry for cleanup.
func (w *workspace) WriteFile(name string, data []byte) error {
	path := filepath.Join(w.root, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("stage %s: %w", name, err)
	}
	w.tracked = append(w.tracked, name)
	return nil
}

// Track registers a name the engine is expected to create so Cleanup removes
// it even though the workspace never wrote it.
func (w *workspace) Track(name string) {
	w.tracked = append(w.tracked, name)
}

// ReadFile returns the contents of a staged or engine-produced entry.
func (w *workspace) ReadFile(name string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(w.root, name))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return data, nil
}

// Cleanup removes every tracked entry. Missing entries are ignored: a failed
// conversion may never have produced its output.
func (w *workspace) Cleanup() {
	for _, name := range w.tracked {
		os.Remove(filepath.Join(w.root, name))
	}
	w.tracked = nil
}
