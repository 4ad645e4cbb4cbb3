package model

import "encoding/json"

// Actions carried by observer-facing messages
const (
	ActionStatusUpdate    = "status_update"
	ActionTimingsReady    = "timings_ready"
	ActionSettingsChanged = "settings_changed"
)

// Message is a notification delivered to an observer
type Message struct {
	Action  string   `json:"action"`
	VideoID VideoID  `json:"videoId,omitempty"`
	Text    string   `json:"text,omitempty"`
	IsError bool     `json:"isError,omitempty"`
	Timings Artifact `json:"timings,omitempty"`
	// Settings is set on settings_changed only
	Settings *Settings `json:"settings,omitempty"`
}

// NewStatus creates a progress status update
func NewStatus(videoID VideoID, text string) Message {
	return Message{Action: ActionStatusUpdate, VideoID: videoID, Text: text}
}

// NewError creates an error status update ending the flow
func NewError(videoID VideoID, text string) Message {
	return Message{Action: ActionStatusUpdate, VideoID: videoID, Text: text, IsError: true}
}

// NewTimingsReady creates the terminal success message
func NewTimingsReady(videoID VideoID, timings Artifact) Message {
	if timings == nil {
		timings = Artifact{}
	}
	return Message{Action: ActionTimingsReady, VideoID: videoID, Timings: timings}
}

// NewSettingsChanged tells observers the auto-skip preferences changed
func NewSettingsChanged(s Settings) Message {
	return Message{Action: ActionSettingsChanged, Settings: &s}
}

// IsTerminal reports whether the message ends an analysis flow for the observer
func (m Message) IsTerminal() bool {
	return m.Action == ActionTimingsReady || (m.Action == ActionStatusUpdate && m.IsError)
}

// AnalyzeRequest is sent by a player tab to ask for a video's timeline
type AnalyzeRequest struct {
	VideoID   VideoID `json:"videoId"`
	VideoURL  string  `json:"videoUrl"`
	SessionID string  `json:"sessionId"`
}

// AnalyzeAck is the immediate answer to an AnalyzeRequest
type AnalyzeAck struct {
	Status  string `json:"status"`
	Outcome string `json:"outcome,omitempty"`
}

// MarshalJSON always emits the timings array on timings_ready, even when empty
func (m Message) MarshalJSON() ([]byte, error) {
	type alias Message
	if m.Action != ActionTimingsReady {
		return json.Marshal(alias(m))
	}
	timings := m.Timings
	if timings == nil {
		timings = Artifact{}
	}
	return json.Marshal(struct {
		alias
		Timings Artifact `json:"timings"`
	}{alias(m), timings})
}
