package fuzzy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sheetsync/internal/record"
)

func orderSample() []record.Field {
	return []record.Field{
		{Name: "id", Value: int64(5)},
		{Name: "customer_email", Value: "alice@example.com"},
		{Name: "total", Value: 99.95},
		{Name: "status", Value: "paid"},
		{Name: "is_gift", Value: false},
		{Name: "created_at", Value: time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)},
	}
}

func TestAnalyze_OrderSample(t *testing.T) {
	schema := SchemaInfo{"id": ScorePrimary}

	fields := Analyze(orderSample(), schema, "created_at")

	assert.Equal(t, []string{"id", "created_at", "customer_email"}, fields)
}

func TestAnalyze_Deterministic(t *testing.T) {
	schema := SchemaInfo{"id": ScorePrimary}
	first := Analyze(orderSample(), schema, "created_at")
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, Analyze(orderSample(), schema, "created_at"))
	}
}

func TestAnalyze_TopsUpToMinimum(t *testing.T) {
	sample := []record.Field{
		{Name: "status", Value: "paid"},
		{Name: "flag", Value: true},
		{Name: "qty", Value: 3},
	}

	fields := Analyze(sample, nil, "")

	assert.Equal(t, []string{"status", "qty"}, fields)
}

func TestAnalyze_CapsAtMaximum(t *testing.T) {
	var sample []record.Field
	for _, name := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		sample = append(sample, record.Field{Name: name, Value: "a medium length value"})
	}

	fields := Analyze(sample, nil, "")
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, fields)

	withCreation := Analyze(sample, nil, "inserted_at")
	require.Len(t, withCreation, MaxFields)
	assert.Equal(t, []string{"a", "b", "c", "d", "inserted_at"}, withCreation)
}

func TestAnalyze_AlwaysIncludesCreationField(t *testing.T) {
	sample := []record.Field{
		{Name: "sku", Value: "SKU-000123-XL"},
		{Name: "title", Value: "Blue running shoe"},
	}

	fields := Analyze(sample, nil, "created_at")

	assert.Equal(t, []string{"sku", "title", "created_at"}, fields)
}

func TestAnalyze_WithoutSchemaInfo(t *testing.T) {
	fields := Analyze(orderSample(), SchemaInfo{}, "created_at")

	// id keeps its name bonus: 0.3 + 0.1 is below threshold.
	assert.Equal(t, []string{"created_at", "customer_email"}, fields)
}

func TestAnalyze_EmptySample(t *testing.T) {
	assert.Empty(t, Analyze(nil, nil, ""))
	assert.Equal(t, []string{"created_at"}, Analyze(nil, nil, "created_at"))
}

func TestFieldScore_ValueShapes(t *testing.T) {
	tests := []struct {
		name  string
		field string
		value any
		want  float64
	}{
		{"medium string", "title", "a medium length value", 0.6},
		{"short string", "title", "short", 0.2},
		{"json string", "payload", `{"a":1,"b":[1,2]}`, 0},
		{"emoji string", "note", "great product 🎉 yes", 0},
		{"small int", "qty", 7, 0.1},
		{"large int", "views", 1500, 0.4},
		{"negative int", "delta", -1, 0.4},
		{"price", "total", 12.5, 0.5},
		{"whole float", "weight", 3.0, 0.4},
		{"long decimals", "ratio", 0.123456, 0.4},
		{"creation time", "registered_at", time.Now(), 0.8},
		{"other time", "shipped_at", time.Now(), 0.2},
		{"bool", "active", true, 0},
		{"small list", "tags", []string{"a", "b"}, 0.3},
		{"large list", "tags", []int{1, 2, 3, 4}, 0},
		{"nested list", "matrix", []any{[]int{1}}, 0},
		{"nil", "deleted_at", nil, 0},
		{"identifier name", "uuid", "0190a8f2-5c3e-7000-8000-000000000000", 0.9},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, FieldScore(tt.field, tt.value, nil, ""), 1e-9)
		})
	}
}

func TestFieldScore_Capped(t *testing.T) {
	score := FieldScore("id", int64(42), SchemaInfo{"id": ScorePrimary}, "")
	assert.Equal(t, 1.0, score)
}

func TestLikelyIdentifier(t *testing.T) {
	for _, name := range []string{"id", "ID", "customer_id", "uuid", "email", "username", "slug", "code", "sku", "reference"} {
		assert.True(t, LikelyIdentifier(name), name)
	}
	for _, name := range []string{"identity", "emails", "description", "idle"} {
		assert.False(t, LikelyIdentifier(name), name)
	}
}

func TestScoreSchema(t *testing.T) {
	info := ScoreSchema([]Column{
		{Name: "id", Primary: true},
		{Name: "email", Unique: true, Nullable: true},
		{Name: "customer_id", Foreign: true, Indexed: true},
		{Name: "status", Indexed: true},
		{Name: "notes", Nullable: true},
	})

	assert.InDelta(t, 1.0, info["id"], 1e-9)
	assert.InDelta(t, 0.72, info["email"], 1e-9)
	assert.InDelta(t, 0.4, info["customer_id"], 1e-9)
	assert.InDelta(t, 0.3, info["status"], 1e-9)
	assert.InDelta(t, 0.0, info["notes"], 1e-9)
	assert.Equal(t, []string{"customer_id", "email", "id", "status"}, info.Columns())
}

func TestMemo_ComputesOnce(t *testing.T) {
	memo := NewMemo()
	calls := 0
	compute := func() []string {
		calls++
		return []string{"id", "email"}
	}

	assert.Equal(t, []string{"id", "email"}, memo.Fields("users", compute))
	assert.Equal(t, []string{"id", "email"}, memo.Fields("users", compute))
	assert.Equal(t, 1, calls)

	memo.Forget("users")
	memo.Fields("users", compute)
	assert.Equal(t, 2, calls)
}
