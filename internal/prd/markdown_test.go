package prd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderTerminal(t *testing.T) {
	out, err := RenderTerminal(sampleDocument().ToMarkdown())
	require.NoError(t, err)
	assert.NotEmpty(t, out)
	assert.Contains(t, out, "Checkout Redesign")
	assert.Contains(t, out, "Add cart summary")
}
