package web

import "time"

// Message types
const (
	MessageTypeRunProgress = "run_progress"
	MessageTypeRunFinished = "run_finished"
	MessageTypePRDUpdated  = "prd_updated"
	MessageTypeStatus      = "status"
	MessageTypeGetStatus   = "get_status"
	MessageTypeError       = "error"
)

// WebMessage represents a message sent over WebSocket
type WebMessage struct {
	Type      string                 `json:"type"`
	Content   string                 `json:"content,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Error     string                 `json:"error,omitempty"`
	Timestamp time.Time              `json:"timestamp,omitempty"`
}

// StatusInfo is the payload of the /api/status endpoint.
type StatusInfo struct {
	Worker       string   `json:"worker"`
	Iteration    int      `json:"iteration"`
	MaxIteration int      `json:"max_iteration"`
	Running      bool     `json:"running"`
	Total        int      `json:"total_stories"`
	Passed       int      `json:"passed_stories"`
	Remaining    []string `json:"remaining_stories"`
}
