package schema

// HookEvent is a lifecycle notification name fired by the host tool
type HookEvent string

const (
	EventSessionStart     HookEvent = "SessionStart"
	EventUserPromptSubmit HookEvent = "UserPromptSubmit"
	EventPreToolUse       HookEvent = "PreToolUse"
	EventPostToolUse      HookEvent = "PostToolUse"
	EventStop             HookEvent = "Stop"
	EventSubagentStop     HookEvent = "SubagentStop"
	EventSessionEnd       HookEvent = "SessionEnd"
)

// InstalledEvents are the events `install` registers a hook for
var InstalledEvents = []HookEvent{
	EventSessionStart,
	EventUserPromptSubmit,
	EventPostToolUse,
	EventStop,
	EventSessionEnd,
}

// Source identifies records produced by this tool on the backend
const Source = "claude-code"

// Role of a transcript message
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)
