package ui

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestColorFuncPassthroughWithoutTerminal(t *testing.T) {
	// test binaries never run attached to a terminal
	original := supportsColor
	supportsColor = false
	defer func() { supportsColor = original }()

	assert.Equal(t, "deployed", ColorSuccess("deployed"))
	assert.Equal(t, "failed", ColorError("failed"))
}

func TestColorFuncAppliesColor(t *testing.T) {
	original := supportsColor
	supportsColor = true
	defer func() { supportsColor = original }()

	colored := ColorSuccess("deployed")
	assert.NotEqual(t, "deployed", colored)
	assert.Contains(t, colored, "deployed")
}
