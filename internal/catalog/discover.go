package catalog

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/SorbetUP/BudgetExplorer/internal/ods"
)

// Candidate is one scored catalog hit. Ids are unique within a trace after
// dedup (highest score seen across all queries wins).
type Candidate struct {
	ID    string `json:"id"`
	Title string `json:"title,omitempty"`
	Score int    `json:"score"`
}

// Chosen holds the selected dataset ids per category; any may be absent.
type Chosen struct {
	Spending    string `json:"spending,omitempty"`
	Revenues    string `json:"revenues,omitempty"`
	Green       string `json:"green,omitempty"`
	Performance string `json:"performance,omitempty"`
}

// Selection paths for the spending dataset.
const (
	SelectionStrict  = "strict"
	SelectionRelaxed = "relaxed"
)

// Trace is the audit record of one discovery run: every query issued,
// every surviving candidate in score order, and the final selections.
type Trace struct {
	Year              int         `json:"year"`
	Domain            string      `json:"domain"`
	Searched          []string    `json:"searched"`
	Candidates        []Candidate `json:"candidates"`
	Chosen            Chosen      `json:"chosen"`
	SpendingSelection string      `json:"spending_selection,omitempty"`
}

// Queries returns the fixed, ordered search set for a year. The variants
// mirror the naming schemes the portal has used across cycles.
func Queries(year int) []string {
	return []string{
		fmt.Sprintf("%d depenses destination", year),
		fmt.Sprintf("%d budget lolf", year),
		fmt.Sprintf("%d recettes", year),
		fmt.Sprintf("%d budget vert", year),
		fmt.Sprintf("plf%02d budget vert", year%100),
		fmt.Sprintf("plf-%d-budget-vert", year),
		"performance-de-la-depense",
	}
}

var (
	spendingRe    = regexp.MustCompile(`depens|destination`)
	spendingLaxRe = regexp.MustCompile(`depens|destination|lolf`)
	revenueRe     = regexp.MustCompile(`recett|revenu|fiscal|impo`)
	greenPlfRe    = regexp.MustCompile(`plf.*budget.*vert`)
	greenRe       = regexp.MustCompile(`vert|green`)
	performanceRe = regexp.MustCompile(`performance|indicateur`)
)

// Discover searches the catalog and selects the best dataset per category.
// Deterministic for a fixed candidate set: ties keep first-found order.
func Discover(ctx context.Context, client ods.Client, year int, domain string, policy ScoringPolicy) (*Trace, error) {
	log := zap.L().With(zap.String("component", "catalog"), zap.Int("year", year))
	s := newScorer(policy, year)

	trace := &Trace{Year: year, Domain: domain}

	var order []string
	byID := make(map[string]Candidate)
	for _, q := range Queries(year) {
		trace.Searched = append(trace.Searched, q)

		results, err := client.SearchCatalog(ctx, q)
		if err != nil {
			return nil, eris.Wrapf(err, "catalog: search %q", q)
		}
		log.Debug("catalog query", zap.String("query", q), zap.Int("results", len(results)))

		for _, ds := range results {
			score := s.score(ds)
			if score <= 0 {
				continue
			}
			prev, seen := byID[ds.DatasetID]
			if !seen {
				order = append(order, ds.DatasetID)
			}
			if !seen || score > prev.Score {
				byID[ds.DatasetID] = Candidate{ID: ds.DatasetID, Title: ds.Title, Score: score}
			}
		}
	}

	trace.Candidates = make([]Candidate, 0, len(order))
	for _, id := range order {
		trace.Candidates = append(trace.Candidates, byID[id])
	}
	sort.SliceStable(trace.Candidates, func(i, j int) bool {
		return trace.Candidates[i].Score > trace.Candidates[j].Score
	})

	s.choose(trace)

	log.Info("discovery complete",
		zap.Int("candidates", len(trace.Candidates)),
		zap.String("spending", trace.Chosen.Spending),
		zap.String("revenues", trace.Chosen.Revenues),
		zap.String("green", trace.Chosen.Green),
		zap.String("performance", trace.Chosen.Performance),
	)
	return trace, nil
}

func (s *scorer) choose(trace *Trace) {
	find := func(pred func(hay string) bool) string {
		for _, c := range trace.Candidates {
			if pred(foldText(c.ID + " " + c.Title)) {
				return c.ID
			}
		}
		return ""
	}

	trace.Chosen.Spending = find(func(hay string) bool {
		return spendingRe.MatchString(hay) && s.hasYear(hay)
	})
	if trace.Chosen.Spending != "" {
		trace.SpendingSelection = SelectionStrict
	} else if id := find(spendingLaxRe.MatchString); id != "" {
		// may silently pick a wrong-year dataset; the trace says so
		trace.Chosen.Spending = id
		trace.SpendingSelection = SelectionRelaxed
	}

	trace.Chosen.Revenues = find(revenueRe.MatchString)

	trace.Chosen.Green = find(greenPlfRe.MatchString)
	if trace.Chosen.Green == "" {
		trace.Chosen.Green = find(greenRe.MatchString)
	}

	trace.Chosen.Performance = find(performanceRe.MatchString)
}

func (s *scorer) hasYear(hay string) bool {
	return strings.Contains(hay, s.yearStr) || s.shortRe.MatchString(hay)
}
