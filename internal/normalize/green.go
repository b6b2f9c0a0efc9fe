package normalize

// GreenRow is one environmental-tagging line ("budget vert").
type GreenRow struct {
	Domaine  string  `json:"domaine,omitempty"`
	Objectif string  `json:"objectif,omitempty"`
	Note     string  `json:"note,omitempty"`
	Montant  float64 `json:"montant,omitempty"`
}

// Green flattens raw budget-vert records. The tagging datasets are loosely
// structured; rows with none of the known fields are dropped.
func Green(records []map[string]any) []GreenRow {
	out := make([]GreenRow, 0, len(records))
	for _, rec := range records {
		r := LowerKeys(rec)

		row := GreenRow{
			Domaine:  pickString(r, []string{"domaine"}),
			Objectif: pickString(r, []string{"objectif"}),
			Note:     pickString(r, []string{"note", "cotation_globale"}),
		}
		if v, ok := r["montant"]; ok && v != nil {
			if n, ok := ParseNumberFR(v); ok {
				row.Montant = n
			}
		}

		if row != (GreenRow{}) {
			out = append(out, row)
		}
	}
	return out
}
