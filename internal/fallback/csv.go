// Package fallback reads the bundled reference files used when live
// retrieval yields no usable rows for a track.
package fallback

import (
	"encoding/csv"
	"io"
	"strings"

	"github.com/rotisserie/eris"
)

// ParseDelimited parses delimited text into header-keyed rows. The
// delimiter is auto-detected (comma vs semicolon, French exports favor
// semicolons); quoted fields with embedded delimiters and doubled quotes
// are handled by the csv reader.
func ParseDelimited(r io.Reader) ([]map[string]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, eris.Wrap(err, "fallback: read")
	}
	text := string(data)
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	reader := csv.NewReader(strings.NewReader(text))
	reader.Comma = detectDelimiter(text)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, eris.Wrap(err, "fallback: parse delimited text")
	}
	if len(records) == 0 {
		return nil, nil
	}

	headers := records[0]
	for i, h := range headers {
		headers[i] = strings.TrimSpace(h)
	}

	rows := make([]map[string]string, 0, len(records)-1)
	for _, cols := range records[1:] {
		row := make(map[string]string, len(headers))
		for i, h := range headers {
			if i < len(cols) {
				row[h] = cols[i]
			} else {
				row[h] = ""
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func detectDelimiter(text string) rune {
	first := text
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		first = text[:i]
	}
	if strings.Contains(first, ";") &&
		(!strings.Contains(first, ",") || strings.Count(first, ";") > strings.Count(first, ",")) {
		return ';'
	}
	return ','
}
