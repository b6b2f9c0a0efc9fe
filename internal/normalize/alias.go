package normalize

import (
	_ "embed"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

//go:embed aliases.yaml
var aliasesYAML []byte

// AmountRule resolves one monetary field.
type AmountRule struct {
	// Aliases are tried in order; the first present, non-null value wins.
	Aliases []string `yaml:"aliases"`
	// Variants are sum-groups tried when the primary aliases yield zero.
	// All present members of a group are summed.
	Variants [][]string `yaml:"variants"`
	// Generic single-amount fallbacks (e.g. montant, value).
	Generic []string `yaml:"generic"`
}

// AliasTable maps canonical row fields to ordered provider alias lists.
type AliasTable struct {
	Labels  map[string][]string   `yaml:"labels"`
	Amounts map[string]AmountRule `yaml:"amounts"`
}

// LoadAliasTable parses an alias table from YAML.
func LoadAliasTable(data []byte) (*AliasTable, error) {
	var t AliasTable
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, eris.Wrap(err, "normalize: parse alias table")
	}
	return &t, nil
}

var defaultTable = func() *AliasTable {
	t, err := LoadAliasTable(aliasesYAML)
	if err != nil {
		panic(err)
	}
	return t
}()

// DefaultAliases returns the embedded alias table covering all known
// provider schema generations.
func DefaultAliases() *AliasTable { return defaultTable }

// Row is the canonical shape of one budget line. Absent label fields stay
// empty; monetary fields always carry a number so summation is total-safe.
type Row struct {
	MissionCode   string
	Mission       string
	ProgrammeCode string
	Programme     string
	ActionCode    string
	Action        string
	SubActionCode string
	SubAction     string
	AE            float64
	CP            float64
}

// Placeable reports whether the row carries enough structure to sit in the
// hierarchy. Rows with neither mission nor programme information are dropped.
func (r Row) Placeable() bool {
	return r.MissionCode != "" || r.Mission != "" || r.ProgrammeCode != "" || r.Programme != ""
}

// LowerKeys returns a copy of the record with all keys lower-cased.
// Providers vary column casing per year, so matching is case-insensitive.
func LowerKeys(record map[string]any) map[string]any {
	out := make(map[string]any, len(record))
	for k, v := range record {
		out[strings.ToLower(k)] = v
	}
	return out
}

// Resolve maps one raw record onto a canonical Row using the alias table.
func (t *AliasTable) Resolve(record map[string]any) Row {
	r := LowerKeys(record)

	var row Row
	row.MissionCode = pickString(r, t.Labels["mission_code"])
	row.Mission = pickString(r, t.Labels["mission"])
	row.ProgrammeCode = pickString(r, t.Labels["programme_code"])
	row.Programme = pickString(r, t.Labels["programme"])
	row.ActionCode = pickString(r, t.Labels["action_code"])
	row.Action = pickString(r, t.Labels["action"])
	row.SubActionCode = pickString(r, t.Labels["sous_action_code"])
	row.SubAction = pickString(r, t.Labels["sous_action"])

	row.AE = t.Amounts["ae"].resolve(r)
	row.CP = t.Amounts["cp"].resolve(r)

	// A code without a label still needs a displayable name.
	row.Mission = synthesizeLabel(row.Mission, "Mission", row.MissionCode)
	row.Programme = synthesizeLabel(row.Programme, "Programme", row.ProgrammeCode)
	row.Action = synthesizeLabel(row.Action, "Action", row.ActionCode)
	row.SubAction = synthesizeLabel(row.SubAction, "Sous-action", row.SubActionCode)

	return row
}

func (a AmountRule) resolve(r map[string]any) float64 {
	for _, k := range a.Aliases {
		if v, ok := r[k]; ok && v != nil {
			if n, ok := ParseNumberFR(v); ok && n != 0 {
				return n
			}
			// first present alias wins; zero or unparseable falls
			// through to the variant groups
			break
		}
	}

	for _, group := range a.Variants {
		present := false
		sum := 0.0
		for _, k := range group {
			if v, ok := r[k]; ok && v != nil {
				present = true
				if n, ok := ParseNumberFR(v); ok {
					sum += n
				}
			}
		}
		if present && sum != 0 {
			return sum
		}
	}

	for _, k := range a.Generic {
		if v, ok := r[k]; ok && v != nil {
			if n, ok := ParseNumberFR(v); ok && n != 0 {
				return n
			}
		}
	}

	return 0
}

func pickString(r map[string]any, aliases []string) string {
	for _, k := range aliases {
		v, ok := r[k]
		if !ok || v == nil {
			continue
		}
		if s := stringify(v); s != "" {
			return s
		}
	}
	return ""
}

func stringify(v any) string {
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case float64:
		// JSON numbers: codes like 129 must not render as "129.000000".
		return strconv.FormatFloat(s, 'f', -1, 64)
	case int:
		return strconv.Itoa(s)
	case int64:
		return strconv.FormatInt(s, 10)
	case bool:
		return ""
	default:
		return ""
	}
}

func synthesizeLabel(label, prefix, code string) string {
	if label != "" || code == "" {
		return label
	}
	return prefix + " " + code
}
