package envelope

import (
	"encoding/json"
)

// Session is the session upsert body. The backend keys it on ExternalID and
// treats every upsert as a full replacement of the aggregate counters.
type Session struct {
	ExternalID       string  `json:"externalId"`
	Title            string  `json:"title,omitempty"`
	ProjectPath      string  `json:"projectPath,omitempty"`
	ProjectName      string  `json:"projectName,omitempty"`
	Model            string  `json:"model,omitempty"`
	Source           string  `json:"source"`
	PromptTokens     int     `json:"promptTokens,omitempty"`
	CompletionTokens int     `json:"completionTokens,omitempty"`
	Cost             float64 `json:"cost,omitempty"`
	DurationMs       int64   `json:"durationMs,omitempty"`
	MessageCount     int     `json:"messageCount,omitempty"`
	ToolCallCount    int     `json:"toolCallCount,omitempty"`
}

// Part types
const (
	PartToolUse  = "tool_use"
	PartThinking = "thinking"
)

// Part is a structured sub-record of a message
type Part struct {
	Type    string      `json:"type"`
	Content interface{} `json:"content"`
}

// ToolUseContent is the content of a tool_use part
type ToolUseContent struct {
	ToolName string                 `json:"toolName"`
	Args     map[string]interface{} `json:"args"`
	Result   interface{}            `json:"result"`
}

// Message is one logical record in a batch
type Message struct {
	SessionExternalID string `json:"sessionExternalId"`
	ExternalID        string `json:"externalId"`
	Role              string `json:"role"`
	TextContent       string `json:"textContent,omitempty"`
	DurationMs        int64  `json:"durationMs,omitempty"`
	Source            string `json:"source"`
	Parts             []Part `json:"parts,omitempty"`
}

// Batch is the batch upsert body
type Batch struct {
	Sessions []Session `json:"sessions"`
	Messages []Message `json:"messages"`
}

// NewBatch creates a batch carrying one session and its messages
func NewBatch(session *Session, messages []Message) *Batch {
	b := &Batch{Sessions: []Session{}, Messages: messages}
	if session != nil {
		b.Sessions = append(b.Sessions, *session)
	}
	if b.Messages == nil {
		b.Messages = []Message{}
	}
	return b
}

// ToJSON serializes the batch to JSON
func (b *Batch) ToJSON() ([]byte, error) {
	return json.Marshal(b)
}
