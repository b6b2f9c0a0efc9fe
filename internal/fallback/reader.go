package fallback

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
)

// Rows loads the bundled fallback rows for one track and year, trying
// <dir>/<name>_<year>.csv then <dir>/<name>_<year>.json. Returns
// os.ErrNotExist (wrapped) when neither file is bundled.
func Rows(dir, name string, year int) ([]map[string]any, error) {
	base := filepath.Join(dir, fmt.Sprintf("%s_%d", name, year))

	if f, err := os.Open(base + ".csv"); err == nil {
		defer f.Close() //nolint:errcheck
		parsed, err := ParseDelimited(f)
		if err != nil {
			return nil, err
		}
		rows := make([]map[string]any, len(parsed))
		for i, r := range parsed {
			row := make(map[string]any, len(r))
			for k, v := range r {
				row[k] = v
			}
			rows[i] = row
		}
		return rows, nil
	}

	data, err := os.ReadFile(base + ".json")
	if err != nil {
		return nil, eris.Wrapf(err, "fallback: no bundled file for %s_%d", name, year)
	}
	var rows []map[string]any
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, eris.Wrapf(err, "fallback: parse %s.json", base)
	}
	return rows, nil
}
