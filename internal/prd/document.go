// Package prd models the product requirements document the loop works
// through: a markdown file authored by a human and its JSON twin the
// workers read and update.
package prd

import (
	"encoding/json"
	"fmt"
	"os"
)

// Priority of a user story
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// UserStory is one unit of work in the PRD. Workers flip Passes to true
// once the story's acceptance criteria are met.
type UserStory struct {
	ID                 string   `json:"id"`
	Title              string   `json:"title"`
	Description        string   `json:"description,omitempty"`
	AcceptanceCriteria []string `json:"acceptanceCriteria,omitempty"`
	Priority           Priority `json:"priority,omitempty"`
	Passes             bool     `json:"passes"`
}

// Document is the JSON representation of a PRD
type Document struct {
	Project     string      `json:"project"`
	BranchName  string      `json:"branchName"`
	Description string      `json:"description,omitempty"`
	UserStories []UserStory `json:"userStories"`
}

// Load reads and parses a PRD JSON file
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read PRD: %w", err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse PRD: %w", err)
	}
	return &doc, nil
}

// Save writes the document as indented JSON
func (d *Document) Save(path string) error {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal PRD: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("failed to write PRD: %w", err)
	}
	return nil
}

// Remaining returns the stories that have not passed yet
func (d *Document) Remaining() []UserStory {
	var remaining []UserStory
	for _, s := range d.UserStories {
		if !s.Passes {
			remaining = append(remaining, s)
		}
	}
	return remaining
}

// AllComplete reports whether every story has passed
func (d *Document) AllComplete() bool {
	return len(d.Remaining()) == 0 && len(d.UserStories) > 0
}
