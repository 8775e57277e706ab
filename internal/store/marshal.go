package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// marshalJSON converts a value to compact JSON TEXT for storage.
// HTML escaping is disabled so stored text matches what was written.
func marshalJSON(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	// Encoder adds a trailing newline, remove it
	return strings.TrimSpace(buf.String()), nil
}

// marshalIDs stores record ids as a JSON array. nil becomes "[]".
func marshalIDs(ids []int64) (string, error) {
	if ids == nil {
		ids = []int64{}
	}
	s, err := marshalJSON(ids)
	if err != nil {
		return "", fmt.Errorf("marshal record ids: %w", err)
	}
	return s, nil
}

// unmarshalIDs parses a JSON array of record ids.
func unmarshalIDs(data string) ([]int64, error) {
	ids := []int64{}
	if data == "" {
		return ids, nil
	}
	if err := json.Unmarshal([]byte(data), &ids); err != nil {
		return nil, fmt.Errorf("unmarshal record ids: %w", err)
	}
	return ids, nil
}

// marshalTags stores job tags as a JSON array. nil becomes "[]".
func marshalTags(tags []string) (string, error) {
	if tags == nil {
		tags = []string{}
	}
	s, err := marshalJSON(tags)
	if err != nil {
		return "", fmt.Errorf("marshal tags: %w", err)
	}
	return s, nil
}

// unmarshalTags parses a JSON array of tags. Empty input yields nil.
func unmarshalTags(data string) ([]string, error) {
	var tags []string
	if data == "" || data == "[]" {
		return nil, nil
	}
	if err := json.Unmarshal([]byte(data), &tags); err != nil {
		return nil, fmt.Errorf("unmarshal tags: %w", err)
	}
	return tags, nil
}
