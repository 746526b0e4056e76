package helpers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetSplitPart(t *testing.T) {
	part, err := GetSplitPart("Dakar, Sénégal", ",", 0)
	assert.NoError(t, err)
	assert.Equal(t, "Dakar", part)

	part, err = GetSplitPart("Thiès", ",", 0)
	assert.NoError(t, err)
	assert.Equal(t, "Thiès", part)

	_, err = GetSplitPart("Thiès", ",", 1)
	assert.Error(t, err)
}

func TestCollapseSpaces(t *testing.T) {
	assert.Equal(t, "12 500 CFA", CollapseSpaces("  12 500 \n CFA "))
	assert.Equal(t, "", CollapseSpaces(" \t "))
}
