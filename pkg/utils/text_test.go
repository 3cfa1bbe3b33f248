package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeText(t *testing.T) {
	assert.Equal(t, "Mleko 3,49", SanitizeText("Mleko\x00 3,49\x07"))
	assert.Equal(t, "a\nb\tc", SanitizeText("a\nb\tc"), "newlines and tabs survive")
}

func TestCollapseSpaces(t *testing.T) {
	assert.Equal(t, "Mleko 2% 1L", CollapseSpaces("  Mleko   2%\t1L "))
	assert.Equal(t, "", CollapseSpaces("   "))
}
