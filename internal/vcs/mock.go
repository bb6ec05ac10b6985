package vcs

import "context"

// Mock is a test implementation of the VCS interface.
type Mock struct {
	Root        string
	Branch      string
	Clean       bool
	EnsuredWith []string
	Err         error
}

// RepositoryRoot returns the mock root
func (m *Mock) RepositoryRoot(ctx context.Context, dir string) (string, error) {
	return m.Root, m.Err
}

// CurrentBranch returns the mock branch
func (m *Mock) CurrentBranch(ctx context.Context) (string, error) {
	return m.Branch, m.Err
}

// EnsureBranch records the requested branch name
func (m *Mock) EnsureBranch(ctx context.Context, name string) error {
	if m.Err != nil {
		return m.Err
	}
	m.EnsuredWith = append(m.EnsuredWith, name)
	m.Branch = name
	return nil
}

// IsClean returns the mock cleanliness
func (m *Mock) IsClean(ctx context.Context) (bool, error) {
	return m.Clean, m.Err
}

// Ensure Mock implements VCS
var _ VCS = (*Mock)(nil)
