package shared

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTooLong(t *testing.T) {
	err := TooLong("name", 60)
	require.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, "name: must be at most 60 characters", err.Error())
}

func TestNormalizeText(t *testing.T) {
	assert.Equal(t, "Y\u00e9ka", NormalizeText("  Ye\u0301ka "))
}
