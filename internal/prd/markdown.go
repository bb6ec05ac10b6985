package prd

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
)

// ToMarkdown renders the document as the markdown twin stored next to the
// JSON file. The format mirrors what the authoring UI produces.
func (d *Document) ToMarkdown() string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", d.Project)
	fmt.Fprintf(&b, "Branch: `%s`\n\n", d.BranchName)
	if d.Description != "" {
		b.WriteString(d.Description)
		b.WriteString("\n\n")
	}

	b.WriteString("## User Stories\n\n")
	for _, s := range d.UserStories {
		check := " "
		if s.Passes {
			check = "x"
		}
		priority := s.Priority
		if priority == "" {
			priority = PriorityMedium
		}
		fmt.Fprintf(&b, "- [%s] **%s** (%s, %s)\n", check, s.Title, s.ID, priority)
		if s.Description != "" {
			fmt.Fprintf(&b, "  %s\n", s.Description)
		}
		for _, ac := range s.AcceptanceCriteria {
			fmt.Fprintf(&b, "  - %s\n", ac)
		}
	}

	return b.String()
}

// RenderTerminal renders markdown for display in the operator's terminal
func RenderTerminal(markdown string) (string, error) {
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create markdown renderer: %w", err)
	}
	out, err := renderer.Render(markdown)
	if err != nil {
		return "", fmt.Errorf("failed to render markdown: %w", err)
	}
	return out, nil
}
