package main

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codefionn/promptloop/internal/config"
	"github.com/codefionn/promptloop/internal/loop"
	"github.com/codefionn/promptloop/internal/prd"
	"github.com/codefionn/promptloop/internal/vcs"
)

func TestEnsureBranchPrefersFlagOverPRD(t *testing.T) {
	mock := &vcs.Mock{Branch: "main", Clean: true}
	doc := &prd.Document{Project: "Checkout", BranchName: "feature/from-prd"}

	require.NoError(t, ensureBranch(context.Background(), mock, "feature/from-flag", doc))
	assert.Equal(t, []string{"feature/from-flag"}, mock.EnsuredWith)
	assert.Equal(t, "feature/from-flag", mock.Branch)
}

func TestEnsureBranchFallsBackToPRD(t *testing.T) {
	mock := &vcs.Mock{Branch: "main", Clean: true}
	doc := &prd.Document{Project: "Checkout", BranchName: "feature/from-prd"}

	require.NoError(t, ensureBranch(context.Background(), mock, "", doc))
	assert.Equal(t, []string{"feature/from-prd"}, mock.EnsuredWith)
}

func TestEnsureBranchKeepsCurrentBranchWhenUnset(t *testing.T) {
	mock := &vcs.Mock{Branch: "main", Clean: true}

	require.NoError(t, ensureBranch(context.Background(), mock, "", nil))
	assert.Empty(t, mock.EnsuredWith, "no checkout without a branch name")
	assert.Equal(t, "main", mock.Branch)
}

func TestEnsureBranchWrapsCheckoutError(t *testing.T) {
	checkoutErr := errors.New("worktree is dirty")
	mock := &vcs.Mock{Branch: "main", Err: checkoutErr}

	err := ensureBranch(context.Background(), mock, "feature/x", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, checkoutErr)
	assert.Contains(t, err.Error(), `"feature/x"`)
}

func TestApplyFlagsOverridesConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	applyFlags(cfg, &options{worker: "codex", maxIterations: 3, prdPath: "docs/prd.json"})

	assert.Equal(t, "codex", cfg.Worker)
	assert.Equal(t, 3, cfg.MaxIterations)
	assert.Equal(t, "docs/prd.json", cfg.PRDPath)
	assert.Equal(t, "info", cfg.LogLevel, "unset flags leave the config alone")
}

func TestParseArgsRejectsPositionalArguments(t *testing.T) {
	_, err := parseArgs([]string{"leftover"})
	assert.Error(t, err)
}

func TestPromptFromPRDMentionsCompletionMarker(t *testing.T) {
	doc := &prd.Document{
		Project:    "Checkout Redesign",
		BranchName: "feature/checkout",
		UserStories: []prd.UserStory{
			{ID: "US-1", Title: "One-click checkout", Priority: prd.PriorityHigh},
		},
	}

	prompt := promptFromPRD(doc)
	assert.Contains(t, prompt, loop.CompletionMarker)
	assert.Contains(t, prompt, "Checkout Redesign")
	assert.Contains(t, prompt, "One-click checkout")
}
