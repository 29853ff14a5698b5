package pseudonym

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasher_Hash(t *testing.T) {
	h, err := New("secret-key")
	require.NoError(t, err)

	first := h.Hash("203.0.113.7")
	assert.Len(t, first, 64)
	assert.Equal(t, first, h.Hash("203.0.113.7"), "hash must be deterministic")
	assert.NotEqual(t, first, h.Hash("203.0.113.8"))
	assert.NotContains(t, first, "203")
	assert.Empty(t, h.Hash(""))

	other, err := New("another-key")
	require.NoError(t, err)
	assert.NotEqual(t, first, other.Hash("203.0.113.7"), "different keys give different pseudonyms")
}

func TestNew_KeyTooLong(t *testing.T) {
	_, err := New(strings.Repeat("k", 65))
	assert.Error(t, err)
}
