package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalIDs(t *testing.T) {
	s, err := marshalIDs([]int64{1, 9007199254740993})
	require.NoError(t, err)
	assert.Equal(t, "[1,9007199254740993]", s)

	back, err := unmarshalIDs(s)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 9007199254740993}, back)

	empty, err := marshalIDs(nil)
	require.NoError(t, err)
	assert.Equal(t, "[]", empty)
}

func TestUnmarshalIDs_Invalid(t *testing.T) {
	_, err := unmarshalIDs("[1,")
	assert.Error(t, err)
}

func TestMarshalTags_NoHTMLEscape(t *testing.T) {
	s, err := marshalTags([]string{"a<b", "c&d"})
	require.NoError(t, err)
	assert.Equal(t, `["a<b","c&d"]`, s)

	tags, err := unmarshalTags("[]")
	require.NoError(t, err)
	assert.Nil(t, tags)
}
