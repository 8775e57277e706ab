package fuzzy

import (
	"encoding/json"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// Selection limits.
const (
	MinStringLength = 10
	MaxStringLength = 150
	MinFields       = 2
	MaxFields       = 5
	Threshold       = 0.6
)

// NameBonus is added for identifier-like field names.
const NameBonus = 0.3

var identifierPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^id$`),
	regexp.MustCompile(`(?i)_id$`),
	regexp.MustCompile(`(?i)^uuid$`),
	regexp.MustCompile(`(?i)^email$`),
	regexp.MustCompile(`(?i)^username$`),
	regexp.MustCompile(`(?i)^slug$`),
	regexp.MustCompile(`(?i)^code$`),
	regexp.MustCompile(`(?i)^sku$`),
	regexp.MustCompile(`(?i)^reference$`),
}

var creationNames = []string{
	"created_at",
	"creation_date",
	"registered_at",
	"joined_at",
	"published_at",
}

// emojiRanges are the pictographic blocks that disqualify a string.
var emojiRanges = [][2]rune{
	{0x1F300, 0x1F64F},
	{0x1F680, 0x1F6FF},
	{0x2600, 0x26FF},
	{0x2700, 0x27BF},
	{0x1F900, 0x1F9FF},
	{0x1F1E0, 0x1F1FF},
}

// LikelyIdentifier reports whether a field name looks like an identifier.
func LikelyIdentifier(field string) bool {
	for _, p := range identifierPatterns {
		if p.MatchString(field) {
			return true
		}
	}
	return false
}

// likelyCreation reports whether a timestamp field is a creation time.
func likelyCreation(field, creationField string) bool {
	if creationField != "" && field == creationField {
		return true
	}
	lower := strings.ToLower(field)
	for _, name := range creationNames {
		if strings.Contains(lower, name) {
			return true
		}
	}
	return false
}

// FieldScore returns the capped score of one field.
func FieldScore(field string, value any, schema SchemaInfo, creationField string) float64 {
	score := schema[field]
	if LikelyIdentifier(field) {
		score += NameBonus
	}
	score += valueScore(field, value, creationField)
	if score > 1.0 {
		return 1.0
	}
	return score
}

// valueScore scores the shape of a sampled value.
func valueScore(field string, value any, creationField string) float64 {
	switch v := value.(type) {
	case nil:
		return 0
	case time.Time:
		if likelyCreation(field, creationField) {
			return 0.8
		}
		return 0.2
	case *time.Time:
		if v == nil {
			return 0
		}
		return valueScore(field, *v, creationField)
	case string:
		return stringScore(v)
	case []byte:
		return stringScore(string(v))
	case bool:
		return 0
	case float32:
		return floatScore(float64(v), 32)
	case float64:
		return floatScore(v, 64)
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if n := rv.Int(); n >= 0 && n <= 12 {
			return 0.1
		}
		return 0.4
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if rv.Uint() <= 12 {
			return 0.1
		}
		return 0.4
	case reflect.Slice, reflect.Array, reflect.Map:
		if simpleComposite(rv) {
			return 0.3
		}
		return 0
	}
	return 0.1
}

func stringScore(s string) float64 {
	if looksLikeJSON(s) || containsEmoji(s) {
		return 0
	}
	n := utf8.RuneCountInString(s)
	if n >= MinStringLength && n <= MaxStringLength {
		return 0.6
	}
	return 0.2
}

func floatScore(f float64, bits int) float64 {
	text := strconv.FormatFloat(f, 'f', -1, bits)
	if dot := strings.IndexByte(text, '.'); dot >= 0 {
		if decimals := len(text) - dot - 1; decimals > 0 && decimals <= 3 {
			return 0.5
		}
	}
	return 0.4
}

func looksLikeJSON(s string) bool {
	if s == "" || (s[0] != '{' && s[0] != '[') {
		return false
	}
	return json.Valid([]byte(s))
}

func containsEmoji(s string) bool {
	for _, r := range s {
		for _, rng := range emojiRanges {
			if r >= rng[0] && r <= rng[1] {
				return true
			}
		}
	}
	return false
}

// simpleComposite allows at most three members, none of them composite.
func simpleComposite(rv reflect.Value) bool {
	if rv.Len() > 3 {
		return false
	}
	isComposite := func(v reflect.Value) bool {
		for v.Kind() == reflect.Interface || v.Kind() == reflect.Pointer {
			if v.IsNil() {
				return false
			}
			v = v.Elem()
		}
		switch v.Kind() {
		case reflect.Slice, reflect.Array, reflect.Map, reflect.Struct:
			return true
		}
		return false
	}
	if rv.Kind() == reflect.Map {
		iter := rv.MapRange()
		for iter.Next() {
			if isComposite(iter.Value()) {
				return false
			}
		}
		return true
	}
	for i := 0; i < rv.Len(); i++ {
		if isComposite(rv.Index(i)) {
			return false
		}
	}
	return true
}
