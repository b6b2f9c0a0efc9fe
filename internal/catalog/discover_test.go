package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SorbetUP/BudgetExplorer/internal/ods"
)

// fakeCatalog returns the same fixture set for every search query.
type fakeCatalog struct {
	byQuery map[string][]ods.CatalogDataset
	all     []ods.CatalogDataset
	queries []string
}

func (f *fakeCatalog) SearchCatalog(_ context.Context, search string) ([]ods.CatalogDataset, error) {
	f.queries = append(f.queries, search)
	if f.byQuery != nil {
		return f.byQuery[search], nil
	}
	return f.all, nil
}

func (f *fakeCatalog) FetchRecords(context.Context, string, ods.PageOptions) ([]ods.Record, error) {
	return nil, nil
}

func (f *fakeCatalog) FetchAllRecords(context.Context, string, ...ods.RecordOption) ([]ods.Record, error) {
	return nil, nil
}

func fixtures() []ods.CatalogDataset {
	return []ods.CatalogDataset{
		{DatasetID: "plf25-depenses-2025-selon-destination", Title: "PLF 2025 — Dépenses selon destination"},
		{DatasetID: "lfi24-depenses-2024-selon-destination", Title: "LFI 2024 — Dépenses selon destination"},
		{DatasetID: "plf25-recettes-du-budget-general", Title: "PLF 2025 — Recettes du budget général"},
		{DatasetID: "plf25-budget-vert", Title: "Budget vert"},
		{DatasetID: "performance-de-la-depense", Title: "Performance de la dépense"},
		{DatasetID: "barometre-qualite-service", Title: "Baromètre qualité"},
	}
}

func TestDiscoverChoosesPerCategory(t *testing.T) {
	client := &fakeCatalog{all: fixtures()}

	trace, err := Discover(context.Background(), client, 2025, ods.DefaultDomain, DefaultScoring())
	require.NoError(t, err)

	assert.Equal(t, Queries(2025), trace.Searched)
	assert.Equal(t, "plf25-depenses-2025-selon-destination", trace.Chosen.Spending)
	assert.Equal(t, SelectionStrict, trace.SpendingSelection)
	assert.Equal(t, "plf25-recettes-du-budget-general", trace.Chosen.Revenues)
	assert.Equal(t, "plf25-budget-vert", trace.Chosen.Green)
	assert.Equal(t, "performance-de-la-depense", trace.Chosen.Performance)

	// wrong-year dataset scores negative and is filtered out entirely
	for _, c := range trace.Candidates {
		assert.NotEqual(t, "lfi24-depenses-2024-selon-destination", c.ID)
		assert.Positive(t, c.Score)
	}

	// candidates are unique, sorted by score descending
	seen := map[string]bool{}
	for i, c := range trace.Candidates {
		assert.False(t, seen[c.ID])
		seen[c.ID] = true
		if i > 0 {
			assert.GreaterOrEqual(t, trace.Candidates[i-1].Score, c.Score)
		}
	}

	// every chosen id appears in the candidate list
	for _, id := range []string{trace.Chosen.Spending, trace.Chosen.Revenues, trace.Chosen.Green, trace.Chosen.Performance} {
		assert.True(t, seen[id], "chosen id %q missing from candidates", id)
	}
}

func TestDiscoverDeterministic(t *testing.T) {
	first, err := Discover(context.Background(), &fakeCatalog{all: fixtures()}, 2025, ods.DefaultDomain, DefaultScoring())
	require.NoError(t, err)
	second, err := Discover(context.Background(), &fakeCatalog{all: fixtures()}, 2025, ods.DefaultDomain, DefaultScoring())
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestDiscoverRelaxedSpendingSelection(t *testing.T) {
	client := &fakeCatalog{all: []ods.CatalogDataset{
		{DatasetID: "depenses-budget-general", Title: "Dépenses du budget général"},
	}}

	trace, err := Discover(context.Background(), client, 2025, ods.DefaultDomain, DefaultScoring())
	require.NoError(t, err)

	assert.Equal(t, "depenses-budget-general", trace.Chosen.Spending)
	assert.Equal(t, SelectionRelaxed, trace.SpendingSelection, "no year-matching candidate: relaxed path")
}

func TestDiscoverDedupKeepsHighestScore(t *testing.T) {
	queries := Queries(2025)
	client := &fakeCatalog{byQuery: map[string][]ods.CatalogDataset{
		queries[0]: {{DatasetID: "plf25-depenses", Title: "Dépenses"}},
		queries[1]: {{DatasetID: "plf25-depenses", Title: "Dépenses selon destination 2025"}},
	}}

	trace, err := Discover(context.Background(), client, 2025, ods.DefaultDomain, DefaultScoring())
	require.NoError(t, err)

	require.Len(t, trace.Candidates, 1)
	assert.Equal(t, "Dépenses selon destination 2025", trace.Candidates[0].Title,
		"the higher-scoring sighting wins the dedup")
}

func TestScoreSignals(t *testing.T) {
	s := newScorer(DefaultScoring(), 2025)

	assert.Positive(t, s.score(ods.CatalogDataset{DatasetID: "plf25-budget-vert"}))
	assert.Negative(t, s.score(ods.CatalogDataset{DatasetID: "lfi24-depenses"}),
		"id year token mismatch dominates")

	right := s.score(ods.CatalogDataset{DatasetID: "depenses-destination-2025"})
	wrong := s.score(ods.CatalogDataset{DatasetID: "depenses-destination-2023"})
	assert.Greater(t, right, wrong, "wrong four-digit year is penalized")

	accented := s.score(ods.CatalogDataset{DatasetID: "x-2025", Title: "Dépenses selon destination"})
	plain := s.score(ods.CatalogDataset{DatasetID: "x-2025", Title: "Depenses selon destination"})
	assert.Equal(t, plain, accented, "accents do not change the score")
}
