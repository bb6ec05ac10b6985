package prd

import (
	"fmt"
	"os"

	"github.com/tidwall/gjson"
)

// Status is a cheap read of a PRD file's progress without a full parse.
// The loop's surrounding bookkeeping queries this between iterations; the
// workers rewrite the file freely, so only the story array is trusted.
type Status struct {
	Total     int
	Passed    int
	Remaining []string // ids of stories that have not passed
}

// ReadStatus extracts story progress from raw PRD JSON on disk.
func ReadStatus(path string) (*Status, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read PRD: %w", err)
	}
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("PRD file %s is not valid JSON", path)
	}

	status := &Status{}
	stories := gjson.GetBytes(data, "userStories")
	stories.ForEach(func(_, story gjson.Result) bool {
		status.Total++
		if story.Get("passes").Bool() {
			status.Passed++
		} else {
			status.Remaining = append(status.Remaining, story.Get("id").String())
		}
		return true
	})
	return status, nil
}

// Complete reports whether every story has passed
func (s *Status) Complete() bool {
	return s.Total > 0 && s.Passed == s.Total
}
