// Package catalog discovers the correct budget datasets for a target year.
// The portal renames datasets every cycle (plf25-..., lfi24-...), so
// candidates from several searches are scored heuristically and the best
// match per category is chosen.
package catalog

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/SorbetUP/BudgetExplorer/internal/ods"
)

// ScoringPolicy holds the signal weights. The defaults are empirically
// tuned against past budget cycles; their absolute values only matter
// relative to each other.
type ScoringPolicy struct {
	YearExact        int      // target year appears verbatim in id/title
	YearShort        int      // two-digit year token with a boundary
	IDYearMatch      int      // {plf|lfi}{yy} token matches the target year
	IDYearMismatch   int      // {plf|lfi}{yy} token names another year
	Depenses         int      // "depens" hit
	Destination      int      // "destination" hit
	Lolf             int      // "lolf" hit
	LevelWords       int      // mission/programme/action hit
	WrongYearPenalty int      // a different four-digit year appears
	Keywords         []string // generic keywords, one point per occurrence
}

// DefaultScoring returns the weights the selection contract is built on.
func DefaultScoring() ScoringPolicy {
	return ScoringPolicy{
		YearExact:        12,
		YearShort:        6,
		IDYearMatch:      20,
		IDYearMismatch:   -30,
		Depenses:         6,
		Destination:      6,
		Lolf:             4,
		LevelWords:       3,
		WrongYearPenalty: -8,
		Keywords:         []string{"depenses", "destination", "budget", "lolf", "mission", "programme"},
	}
}

var (
	idYearRe    = regexp.MustCompile(`\b(plf|lfi)(\d{2})\b`)
	levelWordRe = regexp.MustCompile(`mission|programme|action`)
	fourDigitRe = regexp.MustCompile(`\b(20\d{2})\b`)
)

// scorer precompiles the year and keyword patterns for one (policy, year).
type scorer struct {
	policy    ScoringPolicy
	year      int
	yearStr   string
	shortRe   *regexp.Regexp
	keywordRe []*regexp.Regexp
}

func newScorer(policy ScoringPolicy, year int) *scorer {
	yy := fmt.Sprintf("%02d", year%100)
	s := &scorer{
		policy:  policy,
		year:    year,
		yearStr: fmt.Sprint(year),
		shortRe: regexp.MustCompile(`(^|\b|[-_])` + yy + `(\b|[-_])`),
	}
	for _, kw := range policy.Keywords {
		s.keywordRe = append(s.keywordRe, regexp.MustCompile(`\b`+regexp.QuoteMeta(strings.ToLower(kw))+`\b`))
	}
	return s
}

// score sums the independent signals for one catalog hit.
func (s *scorer) score(ds ods.CatalogDataset) int {
	id := foldText(ds.DatasetID)
	hay := id + " " + foldText(ds.Title)

	score := 0
	if strings.Contains(hay, s.yearStr) {
		score += s.policy.YearExact
	}
	if s.shortRe.MatchString(hay) {
		score += s.policy.YearShort
	}

	if m := idYearRe.FindStringSubmatch(id); m != nil {
		if m[2] == fmt.Sprintf("%02d", s.year%100) {
			score += s.policy.IDYearMatch
		} else {
			score += s.policy.IDYearMismatch
		}
	}

	if strings.Contains(hay, "depens") {
		score += s.policy.Depenses
	}
	if strings.Contains(hay, "destination") {
		score += s.policy.Destination
	}
	if strings.Contains(hay, "lolf") {
		score += s.policy.Lolf
	}
	if levelWordRe.MatchString(hay) {
		score += s.policy.LevelWords
	}

	for _, re := range s.keywordRe {
		score += len(re.FindAllString(hay, -1))
	}

	// the first four-digit year found decides the penalty
	if m := fourDigitRe.FindStringSubmatch(hay); m != nil && m[1] != s.yearStr {
		score += s.policy.WrongYearPenalty
	}

	return score
}

var foldTransformer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// foldText lower-cases and strips accents so "Dépenses" matches "depens".
func foldText(s string) string {
	folded, _, err := transform.String(foldTransformer, strings.ToLower(s))
	if err != nil {
		return strings.ToLower(s)
	}
	return folded
}
