package sync

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/promptconduit/sessionsync/internal/envelope"
	"github.com/promptconduit/sessionsync/internal/git"
	"github.com/promptconduit/sessionsync/internal/redact"
	"github.com/promptconduit/sessionsync/internal/schema"
	"github.com/promptconduit/sessionsync/internal/transcript"
)

// titleMaxRunes bounds a title taken from the first prompt
const titleMaxRunes = 100

// ExtractNew returns the records of t whose ids are not in synced, in transcript
// order, and the set of synced ids extended with theirs. synced is not modified.
//
// A message yields at most one text record, keyed by its id, and one record per
// tool call, keyed by ToolRecordID. Each id is checked on its own, so a tool call
// is emitted even when its parent's text record was sent earlier.
func ExtractNew(sessionID string, t *transcript.Transcript, synced IDSet, p Policy, redactFn redact.Func) ([]Record, IDSet) {
	updated := synced.Union(nil)
	if t == nil {
		return nil, updated
	}
	if redactFn == nil {
		redactFn = redact.None
	}

	var records []Record
	var prev time.Time

	for i := range t.Messages {
		msg := &t.Messages[i]

		if !updated.Has(msg.ID) {
			if rec, ok := textRecord(msg, prev, p, redactFn); ok {
				records = append(records, rec)
				updated.Add(rec.ID)
			}
		}

		if p.IncludeToolCalls {
			for _, use := range msg.ToolUses() {
				if use.ToolUseID == "" {
					continue
				}
				id := ToolRecordID(msg.ID, use.ToolUseID)
				if updated.Has(id) {
					continue
				}
				records = append(records, toolRecord(id, msg, use, t.ToolResults, redactFn))
				updated.Add(id)
			}
		}

		if !msg.Timestamp.IsZero() {
			prev = msg.Timestamp
		}
	}

	return records, updated
}

func textRecord(msg *transcript.Message, prev time.Time, p Policy, redactFn redact.Func) (Record, bool) {
	text := msg.Text()
	var thinking string
	if p.IncludeThinking {
		thinking = msg.Thinking()
	}

	switch {
	case text != "", thinking != "":
	case msg.Role == schema.RoleUser && !msg.IsToolResultOnly():
		// prompts are recorded even when they carry no text
	default:
		return Record{}, false
	}

	rec := Record{
		ID:        msg.ID,
		MessageID: msg.ID,
		Kind:      KindText,
		Role:      msg.Role,
		Text:      redactFn(text),
		Thinking:  redactFn(thinking),
		Timestamp: msg.Timestamp,
	}
	if msg.Role == schema.RoleAssistant && !prev.IsZero() && msg.Timestamp.After(prev) {
		rec.DurationMs = msg.Timestamp.Sub(prev).Milliseconds()
	}
	return rec, true
}

func toolRecord(id string, msg *transcript.Message, use transcript.Block, results map[string]transcript.Block, redactFn redact.Func) Record {
	rec := Record{
		ID:         id,
		MessageID:  msg.ID,
		Kind:       KindTool,
		Role:       msg.Role,
		ToolCallID: use.ToolUseID,
		ToolName:   use.ToolName,
		Timestamp:  msg.Timestamp,
		Args:       map[string]interface{}{},
	}
	if use.Input != nil {
		if args, ok := redactFn.Value(use.Input).(map[string]interface{}); ok {
			rec.Args = args
		}
	}
	if res, ok := results[use.ToolUseID]; ok {
		rec.Result = redactFn.Value(res.Result)
	}
	return rec
}

// ComputeMetadata rebuilds the session aggregate from the whole transcript.
// It never reads previous values; the backend replaces them on every upsert.
func ComputeMetadata(sessionID string, t *transcript.Transcript, project git.Project, redactFn redact.Func) *envelope.Session {
	if redactFn == nil {
		redactFn = redact.None
	}
	s := &envelope.Session{
		ExternalID:  sessionID,
		Source:      schema.Source,
		ProjectPath: project.Path,
		ProjectName: project.Name,
	}
	if t == nil {
		return s
	}

	s.Title = redactFn(sessionTitle(t))
	s.Model = t.Model
	s.PromptTokens = t.Usage.PromptTokens()
	s.CompletionTokens = t.Usage.OutputTokens
	s.Cost = t.Cost
	s.DurationMs = t.Duration().Milliseconds()
	s.MessageCount = t.MessageCount
	s.ToolCallCount = t.ToolCallCount
	return s
}

func sessionTitle(t *transcript.Transcript) string {
	if t.Session != nil && t.Session.Title != "" {
		return t.Session.Title
	}
	if t.Summary != "" {
		return t.Summary
	}
	for i := range t.Messages {
		msg := &t.Messages[i]
		if msg.Role != schema.RoleUser {
			continue
		}
		if text := strings.TrimSpace(msg.Text()); text != "" {
			return truncate(text, titleMaxRunes)
		}
	}
	return ""
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max]) + "..."
}
