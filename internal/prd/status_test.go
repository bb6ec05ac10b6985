package prd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadStatus(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prd.json")
	require.NoError(t, sampleDocument().Save(path))

	status, err := ReadStatus(path)
	require.NoError(t, err)
	assert.Equal(t, 2, status.Total)
	assert.Equal(t, 1, status.Passed)
	assert.Equal(t, []string{"US-1"}, status.Remaining)
	assert.False(t, status.Complete())
}

func TestReadStatusInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prd.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	_, err := ReadStatus(path)
	assert.ErrorContains(t, err, "not valid JSON")
}

func TestStatusComplete(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prd.json")
	doc := sampleDocument()
	doc.UserStories[0].Passes = true
	require.NoError(t, doc.Save(path))

	status, err := ReadStatus(path)
	require.NoError(t, err)
	assert.True(t, status.Complete())
}

func TestToMarkdown(t *testing.T) {
	md := sampleDocument().ToMarkdown()
	assert.Contains(t, md, "# Checkout Redesign")
	assert.Contains(t, md, "- [ ] **Add cart summary** (US-1, high)")
	assert.Contains(t, md, "- [x] **Support promo codes** (US-2, medium)")
}
