package fuzzy

import (
	"sort"
	"sync"

	"github.com/roach88/sheetsync/internal/record"
)

// Scored is a field name and its final score.
type Scored struct {
	Field string
	Score float64
}

// Rank scores every sample field and orders them best-first.
// Ties keep the sample row's order.
func Rank(sample []record.Field, schema SchemaInfo, creationField string) []Scored {
	ranked := make([]Scored, 0, len(sample))
	seen := make(map[string]bool, len(sample))
	for _, f := range sample {
		if seen[f.Name] {
			continue
		}
		seen[f.Name] = true
		ranked = append(ranked, Scored{
			Field: f.Name,
			Score: FieldScore(f.Name, f.Value, schema, creationField),
		})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	return ranked
}

// Analyze returns the identifying fields for a record type.
//
// creationField is the type's creation timestamp column, or "" when the type
// has no timestamps.
func Analyze(sample []record.Field, schema SchemaInfo, creationField string) []string {
	ranked := Rank(sample, schema, creationField)

	var fields []string
	for _, s := range ranked {
		if s.Score < Threshold || len(fields) == MaxFields {
			break
		}
		fields = append(fields, s.Field)
	}

	// Top up from the remaining best fields regardless of threshold.
	for i := len(fields); len(fields) < MinFields && i < len(ranked); i++ {
		fields = append(fields, ranked[i].Field)
	}

	if creationField != "" && !contains(fields, creationField) {
		if len(fields) >= MaxFields {
			fields[MaxFields-1] = creationField
		} else {
			fields = append(fields, creationField)
		}
	}
	return fields
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// Memo caches Analyze results per record type.
// Thread-safety: Memo is safe for concurrent use.
type Memo struct {
	mu     sync.Mutex
	fields map[string][]string
}

// NewMemo creates an empty cache.
func NewMemo() *Memo {
	return &Memo{fields: make(map[string][]string)}
}

// Fields returns the cached fields for recordType, computing them on first use.
func (m *Memo) Fields(recordType string, compute func() []string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if f, ok := m.fields[recordType]; ok {
		return f
	}
	f := compute()
	m.fields[recordType] = f
	return f
}

// Forget drops the cached fields for recordType.
func (m *Memo) Forget(recordType string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.fields, recordType)
}
