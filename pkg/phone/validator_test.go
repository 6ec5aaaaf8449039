package phone

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	t.Run("Success - E.164 Indonesian number", func(t *testing.T) {
		result := Validate("+6281234567890")

		assert.True(t, result.IsValid)
		assert.Equal(t, "+6281234567890", result.E164Format)
		assert.Equal(t, "ID", result.CountryCode)
	})

	t.Run("Success - Local format defaults to ID", func(t *testing.T) {
		result := Validate("081234567890")

		assert.True(t, result.IsValid)
		assert.Equal(t, "+6281234567890", result.E164Format)
	})

	t.Run("Failure - Too short", func(t *testing.T) {
		result := Validate("12345")

		assert.False(t, result.IsValid)
		assert.NotEmpty(t, result.ErrorMessage)
	})

	t.Run("Failure - Not a number", func(t *testing.T) {
		result := Validate("not-a-phone")

		assert.False(t, result.IsValid)
	})
}

func TestNormalize(t *testing.T) {
	t.Run("Success - Local to E.164", func(t *testing.T) {
		normalized, err := Normalize("0812-3456-7890")

		require.NoError(t, err)
		assert.Equal(t, "+6281234567890", normalized)
	})

	t.Run("Failure - Invalid number", func(t *testing.T) {
		_, err := Normalize("999")

		assert.Error(t, err)
	})
}
