package fuzzy

import "sort"

// Schema score contributions.
const (
	ScorePrimary         = 1.0
	ScoreUnique          = 0.9
	ScoreForeignKey      = 0.4
	ScoreIndex           = 0.3
	NullablePenaltyRatio = 0.8
)

// SchemaInfo maps a column name to its schema-derived score.
// A nil or empty SchemaInfo means "no schema information".
type SchemaInfo map[string]float64

// Column describes what schema introspection learned about one column.
type Column struct {
	Name     string
	Primary  bool
	Unique   bool
	Indexed  bool
	Foreign  bool
	Nullable bool
}

// ScoreSchema folds introspected columns into per-column schema scores.
// A column covered by several indexes keeps its best score.
func ScoreSchema(cols []Column) SchemaInfo {
	info := make(SchemaInfo, len(cols))
	for _, c := range cols {
		score := 0.0
		switch {
		case c.Primary:
			score = ScorePrimary
		case c.Unique:
			score = ScoreUnique
		case c.Indexed:
			score = ScoreIndex
		}
		if c.Foreign && score < ScoreForeignKey {
			score = ScoreForeignKey
		}
		if c.Nullable {
			score *= NullablePenaltyRatio
		}
		info[c.Name] = score
	}
	return info
}

// Columns returns the names with a non-zero score, sorted. Used in logs.
func (s SchemaInfo) Columns() []string {
	var names []string
	for name, score := range s {
		if score > 0 {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}
