package pipeline

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
)

// writeJSON writes an indented JSON artifact and returns its path. Artifacts
// are the product of a run, so a write failure is fatal to the caller.
func writeJSON(dir, name string, v any) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", eris.Wrapf(err, "pipeline: create output dir %s", dir)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", eris.Wrapf(err, "pipeline: marshal %s", name)
	}

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", eris.Wrapf(err, "pipeline: write %s", path)
	}
	return path, nil
}
