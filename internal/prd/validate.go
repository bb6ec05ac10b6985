package prd

import "fmt"

var validPriorities = map[Priority]bool{
	"":             true, // treated as medium
	PriorityHigh:   true,
	PriorityMedium: true,
	PriorityLow:    true,
}

// Validate checks the document's shape: required fields, unique story ids,
// known priorities. It reports the first problem found.
func (d *Document) Validate() error {
	if d.Project == "" {
		return fmt.Errorf("project name is required")
	}
	if d.BranchName == "" {
		return fmt.Errorf("branch name is required")
	}
	if len(d.UserStories) == 0 {
		return fmt.Errorf("at least one user story is required")
	}

	seen := make(map[string]bool, len(d.UserStories))
	for i, s := range d.UserStories {
		if s.ID == "" {
			return fmt.Errorf("story %d has no id", i+1)
		}
		if seen[s.ID] {
			return fmt.Errorf("duplicate story id %q", s.ID)
		}
		seen[s.ID] = true
		if s.Title == "" {
			return fmt.Errorf("story %q has no title", s.ID)
		}
		if !validPriorities[s.Priority] {
			return fmt.Errorf("story %q has unknown priority %q", s.ID, s.Priority)
		}
	}
	return nil
}
