package prd

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/tidwall/gjson"

	"github.com/codefionn/promptloop/internal/logger"
	"github.com/codefionn/promptloop/internal/loop"
)

const conversionInstructions = `Convert the following PRD markdown into JSON with this exact shape:
{"project": string, "branchName": string, "description": string,
 "userStories": [{"id": string, "title": string, "description": string,
 "acceptanceCriteria": [string], "priority": "high"|"medium"|"low",
 "passes": false}]}
Use kebab-case ids (US-1, US-2, ...). Respond with the JSON only.

`

// Converter turns authored PRD markdown into a Document. Conversion is a
// single best-effort transform; callers fall back to FromTemplate when it
// fails.
type Converter interface {
	Convert(ctx context.Context, markdown string) (*Document, error)
}

// WorkerConverter converts through one invocation of the same external
// agent CLI the loop uses.
type WorkerConverter struct {
	invoker loop.Invoker
	workDir string
}

// NewWorkerConverter creates a converter backed by a worker invocation
func NewWorkerConverter(invoker loop.Invoker, workDir string) *WorkerConverter {
	return &WorkerConverter{invoker: invoker, workDir: workDir}
}

// Convert runs the worker once and parses the JSON from its output
func (c *WorkerConverter) Convert(ctx context.Context, markdown string) (*Document, error) {
	output, err := c.invoker.Invoke(ctx, c.workDir, conversionInstructions+markdown)
	if err != nil {
		return nil, fmt.Errorf("conversion invocation failed: %w", err)
	}
	return parseDocumentJSON(output)
}

// APIConverter converts through the Anthropic API directly, for setups
// where no worker CLI is installed on the authoring machine.
type APIConverter struct {
	client anthropic.Client
	model  string
}

// NewAPIConverter creates an API-backed converter. The key is read from the
// environment when empty.
func NewAPIConverter(apiKey, model string) *APIConverter {
	var opts []option.RequestOption
	if key := strings.TrimSpace(apiKey); key != "" {
		opts = append(opts, option.WithAPIKey(key))
	}
	if strings.TrimSpace(model) == "" {
		model = "claude-3-5-sonnet-20241022"
	}
	return &APIConverter{
		client: anthropic.NewClient(opts...),
		model:  model,
	}
}

// Convert sends one message and parses the JSON from the reply
func (c *APIConverter) Convert(ctx context.Context, markdown string) (*Document, error) {
	msg, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: 4096,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(conversionInstructions + markdown)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("anthropic conversion failed: %w", err)
	}

	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	return parseDocumentJSON(b.String())
}

// ConvertMarkdown converts with the given converter and falls back to the
// deterministic template when conversion fails or produces an invalid
// document. It never returns an error: the authoring flow always gets a
// usable document.
func ConvertMarkdown(ctx context.Context, conv Converter, markdown string) *Document {
	if conv != nil {
		doc, err := conv.Convert(ctx, markdown)
		if err == nil {
			if err := doc.Validate(); err == nil {
				return doc
			} else {
				logger.Warn("Converted PRD failed validation: %v", err)
			}
		} else {
			logger.Warn("PRD conversion failed, using template fallback: %v", err)
		}
	}
	return FromTemplate(markdown)
}

// FromTemplate builds a minimal valid document from raw markdown. Used when
// agent-backed conversion is unavailable or fails.
func FromTemplate(markdown string) *Document {
	project := "Untitled Project"
	for _, line := range strings.Split(markdown, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			project = strings.TrimSpace(strings.TrimPrefix(trimmed, "# "))
			break
		}
	}

	return &Document{
		Project:     project,
		BranchName:  "feature/" + slugify(project),
		Description: strings.TrimSpace(markdown),
		UserStories: []UserStory{
			{
				ID:       "US-1",
				Title:    "Implement the PRD",
				Priority: PriorityHigh,
				AcceptanceCriteria: []string{
					"Every requirement described in the PRD is implemented",
				},
			},
		},
	}
}

// parseDocumentJSON extracts the first JSON object from free-form agent
// output (possibly inside a code fence) and unmarshals it.
func parseDocumentJSON(output string) (*Document, error) {
	raw := extractJSONObject(output)
	if raw == "" {
		return nil, fmt.Errorf("no JSON object found in conversion output")
	}
	var doc Document
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, fmt.Errorf("conversion output is not a valid PRD: %w", err)
	}
	return &doc, nil
}

func extractJSONObject(s string) string {
	start := strings.IndexByte(s, '{')
	for start >= 0 {
		depth := 0
		inString := false
		escaped := false
		for i := start; i < len(s); i++ {
			c := s[i]
			if inString {
				switch {
				case escaped:
					escaped = false
				case c == '\\':
					escaped = true
				case c == '"':
					inString = false
				}
				continue
			}
			switch c {
			case '"':
				inString = true
			case '{':
				depth++
			case '}':
				depth--
				if depth == 0 {
					candidate := s[start : i+1]
					if gjson.Valid(candidate) {
						return candidate
					}
					i = len(s)
				}
			}
		}
		next := strings.IndexByte(s[start+1:], '{')
		if next < 0 {
			return ""
		}
		start = start + 1 + next
	}
	return ""
}

func slugify(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '_':
			if b.Len() > 0 && !strings.HasSuffix(b.String(), "-") {
				b.WriteByte('-')
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
