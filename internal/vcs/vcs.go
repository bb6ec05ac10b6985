// Package vcs handles the git bookkeeping around a run: putting the
// repository on the PRD's branch before the loop starts and archiving the
// run artifacts afterwards.
package vcs

import "context"

// VCS abstracts the version-control operations the run lifecycle needs.
type VCS interface {
	// RepositoryRoot returns the root of the repository containing dir.
	RepositoryRoot(ctx context.Context, dir string) (string, error)

	// CurrentBranch returns the checked-out branch, or "" on detached HEAD
	// or outside a repository.
	CurrentBranch(ctx context.Context) (string, error)

	// EnsureBranch creates the branch if needed and switches to it.
	EnsureBranch(ctx context.Context, name string) error

	// IsClean reports whether the working tree has no uncommitted changes.
	IsClean(ctx context.Context) (bool, error)
}
