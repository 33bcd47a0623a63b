package plugin

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Manifest describes one native plugin: the shared library backing it
// and the function names it exports through the plugin_call_json ABI.
type Manifest struct {
	Name      string   `json:"name"`
	Library   string   `json:"library"` // path to the .so/.dylib/.dll, relative to the manifest file
	Functions []string `json:"functions"`
}

func readManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plugin manifest %s: %w", path, err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse plugin manifest %s: %w", path, err)
	}
	if m.Name == "" {
		return nil, fmt.Errorf("plugin manifest %s: missing name", path)
	}
	if m.Library == "" {
		return nil, fmt.Errorf("plugin manifest %s: missing library", path)
	}
	if len(m.Functions) == 0 {
		return nil, fmt.Errorf("plugin manifest %s: no functions exported", path)
	}
	return &m, nil
}

// libraryPath resolves Library relative to the directory holding the
// manifest itself, the way a plugin ships both files side by side.
func (m *Manifest) libraryPath(manifestPath string) string {
	if filepath.IsAbs(m.Library) {
		return m.Library
	}
	return filepath.Join(filepath.Dir(manifestPath), m.Library)
}
