package adapters

import (
	"github.com/promptconduit/sessionsync/internal/schema"
)

// Normalize reconciles a raw hook payload into the canonical HookInput.
// Host tool revisions disagree on casing (sessionId vs session_id), so every
// field lists its accepted spellings explicitly; nothing downstream looks at raw keys.
// eventArg, when non-empty, takes precedence over the payload's own event name.
func Normalize(raw map[string]interface{}, eventArg string) *schema.HookInput {
	if raw == nil {
		raw = map[string]interface{}{}
	}

	in := &schema.HookInput{
		SessionID:      GetString(raw, "sessionId", "session_id"),
		TranscriptPath: GetString(raw, "transcriptPath", "transcript_path"),
		Cwd:            GetString(raw, "cwd", "workingDirectory", "working_directory"),
		PermissionMode: GetString(raw, "permissionMode", "permission_mode"),
		Prompt:         GetString(raw, "prompt", "userPrompt", "user_prompt"),
		ToolName:       GetString(raw, "toolName", "tool_name"),
		ToolUseID:      GetString(raw, "toolUseId", "tool_use_id"),
		ToolInput:      GetMap(raw, "toolInput", "tool_input", "toolArgs", "tool_args"),
		ToolResponse:   GetValue(raw, "toolResponse", "tool_response", "toolResult", "tool_result"),
		Source:         GetString(raw, "source"),
		Reason:         GetString(raw, "reason"),
	}

	name := eventArg
	if name == "" {
		name = GetString(raw, "hookEventName", "hook_event_name", "event")
	}
	in.Event = schema.ParseEvent(name)

	return in
}
