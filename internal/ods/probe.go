package ods

import (
	"context"
	"fmt"
	"strings"
)

// yearFieldCandidates are the column names known to carry the fiscal year.
var yearFieldCandidates = []string{"annee", "exercice", "annee_budgetaire", "year"}

// ProbeFields retrieves one sample record and returns its lower-cased field
// names. Datasets that are not year-scoped by id expose a year column; the
// probe lets the caller filter server-side instead of pulling every year.
func ProbeFields(ctx context.Context, c Client, dataset string) ([]string, error) {
	recs, err := c.FetchRecords(ctx, dataset, PageOptions{Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, nil
	}
	fields := make([]string, 0, len(recs[0].Fields))
	for k := range recs[0].Fields {
		fields = append(fields, strings.ToLower(k))
	}
	return fields, nil
}

// BuildYearWhere returns a server-side filter expression restricting records
// to the given year, or "" when no known year field is present. Years are
// numeric in the portal's SQL dialect, so no quoting.
func BuildYearWhere(year int, fields []string) string {
	present := make(map[string]bool, len(fields))
	for _, f := range fields {
		present[f] = true
	}
	for _, candidate := range yearFieldCandidates {
		if present[candidate] {
			return fmt.Sprintf("%s = %d", candidate, year)
		}
	}
	return ""
}
