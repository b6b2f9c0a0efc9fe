package normalize

// Revenue is one flat revenue line of the budget général.
type Revenue struct {
	Source  string  `json:"source"`
	Montant float64 `json:"montant"`
}

var revenueLabelAliases = []string{"source", "titre", "intitule", "label"}
var revenueAmountAliases = []string{"montant", "value", "cp", "amount"}

// Revenues flattens raw revenue records. Rows without a label or with a
// zero amount carry no information and are skipped.
func Revenues(records []map[string]any) []Revenue {
	out := make([]Revenue, 0, len(records))
	for _, rec := range records {
		r := LowerKeys(rec)

		label := pickString(r, revenueLabelAliases)

		var montant float64
		for _, k := range revenueAmountAliases {
			if v, ok := r[k]; ok && v != nil {
				if n, ok := ParseNumberFR(v); ok && n != 0 {
					montant = n
					break
				}
			}
		}

		if label != "" && montant != 0 {
			out = append(out, Revenue{Source: label, Montant: montant})
		}
	}
	return out
}
