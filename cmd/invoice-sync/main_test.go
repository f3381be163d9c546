package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTokenIDs(t *testing.T) {
	ids, err := parseTokenIDs([]string{"1", " 2", "0"}, "9")
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 0}, ids)

	ids, err = parseTokenIDs(nil, "4,5,,6")
	require.NoError(t, err)
	assert.Equal(t, []int64{4, 5, 6}, ids)

	ids, err = parseTokenIDs(nil, "")
	require.NoError(t, err)
	assert.Empty(t, ids)

	_, err = parseTokenIDs([]string{"abc"}, "")
	assert.Error(t, err)
	_, err = parseTokenIDs([]string{"-3"}, "")
	assert.Error(t, err)
}
