package nativemsg

import "encoding/json"

// Actions understood by the host
const (
	ActionAnalyze = "analyze"
	ActionPing    = "ping"
)

// Request is a message sent to the host
type Request struct {
	Action string `json:"action"`
	Prompt string `json:"prompt,omitempty"`
	Model  string `json:"model,omitempty"`
}

// Response is the host's answer to one Request
type Response struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Status  string          `json:"status,omitempty"`
	Error   string          `json:"error,omitempty"`
}
