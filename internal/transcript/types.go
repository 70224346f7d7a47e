package transcript

import (
	"strings"
	"time"

	"github.com/promptconduit/sessionsync/internal/schema"
)

// BlockType tags a content block variant
type BlockType string

const (
	BlockText       BlockType = "text"
	BlockThinking   BlockType = "thinking"
	BlockToolUse    BlockType = "tool_use"
	BlockToolResult BlockType = "tool_result"
	BlockImage      BlockType = "image"
)

// Block is one content block of a message. Which fields are set depends on Type:
//
//	text, thinking: Text
//	tool_use:       ToolUseID, ToolName, Input
//	tool_result:    ToolUseID, Result, IsError
//	image:          nothing (never transmitted)
type Block struct {
	Type      BlockType
	Text      string
	ToolUseID string
	ToolName  string
	Input     map[string]interface{}
	Result    interface{}
	IsError   bool
}

// SessionStart is the optional session-metadata record heading a transcript
type SessionStart struct {
	ID       string
	Title    string
	Cwd      string
	Metadata map[string]interface{}
}

// Usage holds token counters reported by the model
type Usage struct {
	InputTokens         int
	OutputTokens        int
	CacheCreationTokens int
	CacheReadTokens     int
}

// PromptTokens is every token billed as input
func (u Usage) PromptTokens() int {
	return u.InputTokens + u.CacheCreationTokens + u.CacheReadTokens
}

func (u *Usage) add(o Usage) {
	u.InputTokens += o.InputTokens
	u.OutputTokens += o.OutputTokens
	u.CacheCreationTokens += o.CacheCreationTokens
	u.CacheReadTokens += o.CacheReadTokens
}

// Message is a decoded user or assistant record
type Message struct {
	ID        string
	Timestamp time.Time
	Role      schema.Role
	Model     string
	Cwd       string
	Blocks    []Block
}

// Text concatenates the message's text blocks
func (m *Message) Text() string {
	return m.join(BlockText)
}

// Thinking concatenates the message's thinking blocks
func (m *Message) Thinking() string {
	return m.join(BlockThinking)
}

func (m *Message) join(t BlockType) string {
	var parts []string
	for _, b := range m.Blocks {
		if b.Type == t && b.Text != "" {
			parts = append(parts, b.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// ToolUses returns the message's tool_use blocks in order
func (m *Message) ToolUses() []Block {
	var out []Block
	for _, b := range m.Blocks {
		if b.Type == BlockToolUse {
			out = append(out, b)
		}
	}
	return out
}

// IsToolResultOnly reports whether the message only relays tool results back to
// the model. The host writes those with role "user", but they are not prompts.
func (m *Message) IsToolResultOnly() bool {
	hasResult := false
	for _, b := range m.Blocks {
		switch b.Type {
		case BlockToolResult:
			hasResult = true
		case BlockText, BlockImage:
			return false
		}
	}
	return hasResult
}

// Transcript is the decoded view of a transcript file. It is the only
// representation consumers see; nothing re-reads the raw file.
type Transcript struct {
	Path     string
	Session  *SessionStart
	Messages []Message

	// Summary is the last summary record, used as a fallback title
	Summary string
	// Cwd is the first working directory seen on any record
	Cwd string
	// Model is the most frequent assistant model
	Model string

	MessageCount  int
	ToolCallCount int
	Usage         Usage
	Cost          float64
	FirstAt       time.Time
	LastAt        time.Time

	// ToolResults maps a tool-call id to its tool_result block
	ToolResults map[string]Block

	// Skipped counts lines that failed to decode
	Skipped int
}

// Empty reports whether the transcript holds no messages
func (t *Transcript) Empty() bool {
	return len(t.Messages) == 0
}

// Duration is the span between the first and last timestamped records
func (t *Transcript) Duration() time.Duration {
	if t.FirstAt.IsZero() || t.LastAt.Before(t.FirstAt) {
		return 0
	}
	return t.LastAt.Sub(t.FirstAt)
}
