package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "interdict/pkg/domain-errors"
)

func TestParseTicketID(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseTicketID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects invalid format", func(t *testing.T) {
		_, err := ParseTicketID("not-an-identifier")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("accepts generated identifiers", func(t *testing.T) {
		generated := NewTicketID()
		parsed, err := ParseTicketID(generated.String())
		require.NoError(t, err)
		assert.Equal(t, generated, parsed)
	})
}

func TestParseAccountID(t *testing.T) {
	valid := uuid.NewString()
	parsed, err := ParseAccountID(valid)
	require.NoError(t, err)
	assert.Equal(t, AccountID(valid), parsed)

	_, err = ParseAccountID("  ")
	require.Error(t, err)
}

func TestGeneratedIDsAreUnique(t *testing.T) {
	a := NewTicketItemID()
	b := NewTicketItemID()
	assert.NotEqual(t, a, b)
}
