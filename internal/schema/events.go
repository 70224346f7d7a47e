package schema

import (
	"errors"
	"strings"
)

var (
	// ErrMissingEvent is returned when neither the argument nor the payload names an event
	ErrMissingEvent = errors.New("hook event name is required")
	// ErrMalformedPayload is returned when the hook payload is not a JSON object
	ErrMalformedPayload = errors.New("malformed hook payload")
	// ErrPayloadTooLarge is returned when the hook payload exceeds the configured limit
	ErrPayloadTooLarge = errors.New("hook payload too large")
)

// HookInput is the canonical hook payload. Every field is optional; absent
// fields stay at their zero value.
type HookInput struct {
	Event          HookEvent
	SessionID      string
	TranscriptPath string
	Cwd            string
	PermissionMode string

	// UserPromptSubmit
	Prompt string

	// PreToolUse / PostToolUse
	ToolName     string
	ToolUseID    string
	ToolInput    map[string]interface{}
	ToolResponse interface{}

	// SessionStart
	Source string
	// SessionEnd
	Reason string
}

// ParseEvent maps a user-supplied event name onto a HookEvent. Matching is
// case-insensitive and tolerates kebab/snake spellings ("session-end").
// Unknown names are returned verbatim so the dispatcher can route them to its no-op sink.
func ParseEvent(name string) HookEvent {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	folded := strings.ToLower(strings.NewReplacer("-", "", "_", "").Replace(name))
	for _, ev := range []HookEvent{
		EventSessionStart, EventUserPromptSubmit, EventPreToolUse, EventPostToolUse,
		EventStop, EventSubagentStop, EventSessionEnd,
	} {
		if strings.ToLower(string(ev)) == folded {
			return ev
		}
	}
	return HookEvent(name)
}
