package vcs

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"
)

// Git implements the VCS interface by shelling out to the git binary.
type Git struct {
	workingDir string

	// repoRootOnce ensures we only look up the repo root once
	repoRootOnce sync.Once
	repoRoot     string
	repoRootErr  error
}

// NewGit creates a Git instance for the given working directory. The
// working directory should be within a Git repository.
func NewGit(workingDir string) *Git {
	return &Git{workingDir: workingDir}
}

func (g *Git) getRepoRoot(ctx context.Context) (string, error) {
	g.repoRootOnce.Do(func() {
		g.repoRoot, g.repoRootErr = g.RepositoryRoot(ctx, g.workingDir)
	})
	return g.repoRoot, g.repoRootErr
}

// RepositoryRoot returns the root directory of the Git repository
// containing dir.
func (g *Git) RepositoryRoot(ctx context.Context, dir string) (string, error) {
	if dir == "" {
		dir = g.workingDir
	}

	cmd := exec.CommandContext(ctx, "git", "-C", dir, "rev-parse", "--show-toplevel")
	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("not in a git repository: %w", err)
	}
	return strings.TrimSpace(string(output)), nil
}

// CurrentBranch returns the name of the current branch.
// Returns an empty string if not in a repository or on a detached HEAD.
func (g *Git) CurrentBranch(ctx context.Context) (string, error) {
	repoRoot, err := g.getRepoRoot(ctx)
	if err != nil {
		return "", nil
	}

	cmd := exec.CommandContext(ctx, "git", "-C", repoRoot, "rev-parse", "--abbrev-ref", "HEAD")
	output, err := cmd.Output()
	if err != nil {
		return "", nil
	}

	branch := strings.TrimSpace(string(output))
	if branch == "HEAD" {
		return "", nil
	}
	return branch, nil
}

// EnsureBranch creates the branch if it does not exist and switches to it.
// Already being on the branch is a no-op.
func (g *Git) EnsureBranch(ctx context.Context, name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("branch name cannot be empty")
	}

	current, err := g.CurrentBranch(ctx)
	if err == nil && current == name {
		return nil
	}

	repoRoot, err := g.getRepoRoot(ctx)
	if err != nil {
		return err
	}

	// checkout -B: create if missing, reset to current HEAD if present
	cmd := exec.CommandContext(ctx, "git", "-C", repoRoot, "checkout", "-B", name)
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("failed to switch to branch %s: %s", name, strings.TrimSpace(string(output)))
	}
	return nil
}

// IsClean reports whether the working tree has no uncommitted changes.
func (g *Git) IsClean(ctx context.Context) (bool, error) {
	repoRoot, err := g.getRepoRoot(ctx)
	if err != nil {
		return false, err
	}

	cmd := exec.CommandContext(ctx, "git", "-C", repoRoot, "status", "--porcelain")
	output, err := cmd.Output()
	if err != nil {
		return false, fmt.Errorf("failed to read git status: %w", err)
	}
	return len(strings.TrimSpace(string(output))) == 0, nil
}
