package sync

import (
	"sort"
	"time"

	"github.com/promptconduit/sessionsync/internal/envelope"
	"github.com/promptconduit/sessionsync/internal/schema"
)

// IDSet is a set of logical record ids
type IDSet map[string]struct{}

// NewIDSet creates a set holding ids
func NewIDSet(ids ...string) IDSet {
	s := make(IDSet, len(ids))
	for _, id := range ids {
		s.Add(id)
	}
	return s
}

func (s IDSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

func (s IDSet) Add(id string) {
	s[id] = struct{}{}
}

// Union returns a new set holding the ids of s and other
func (s IDSet) Union(other IDSet) IDSet {
	out := make(IDSet, len(s)+len(other))
	for id := range s {
		out.Add(id)
	}
	for id := range other {
		out.Add(id)
	}
	return out
}

// Sorted returns the ids in lexical order
func (s IDSet) Sorted() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// SyncedState is what has been transmitted for one session
type SyncedState struct {
	SessionID  string
	Synced     IDSet
	LastSyncAt time.Time
	// Ended is set when the session was cleared at SessionEnd and not synced since
	Ended bool
}

// Len returns the number of synced ids
func (s *SyncedState) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Synced)
}

// Policy controls which content becomes records
type Policy struct {
	IncludeToolCalls bool
	IncludeThinking  bool
}

// RecordKind distinguishes message text records from tool-call records
type RecordKind string

const (
	KindText RecordKind = "text"
	KindTool RecordKind = "tool"
)

// Record is one logical record: a message's text or one tool call within it
type Record struct {
	ID         string
	MessageID  string
	Kind       RecordKind
	Role       schema.Role
	Text       string
	Thinking   string
	ToolCallID string
	ToolName   string
	Args       map[string]interface{}
	Result     interface{}
	DurationMs int64
	Timestamp  time.Time
}

// ToolRecordID returns the composite id of a tool-call record
func ToolRecordID(messageID, toolCallID string) string {
	return messageID + "-tool-" + toolCallID
}

// Envelope converts the record to its wire form
func (r Record) Envelope(sessionID string) envelope.Message {
	msg := envelope.Message{
		SessionExternalID: sessionID,
		ExternalID:        r.ID,
		Role:              string(r.Role),
		Source:            schema.Source,
	}

	switch r.Kind {
	case KindTool:
		msg.Parts = []envelope.Part{{
			Type: envelope.PartToolUse,
			Content: envelope.ToolUseContent{
				ToolName: r.ToolName,
				Args:     r.Args,
				Result:   r.Result,
			},
		}}
	default:
		msg.TextContent = r.Text
		msg.DurationMs = r.DurationMs
		if r.Thinking != "" {
			msg.Parts = []envelope.Part{{Type: envelope.PartThinking, Content: r.Thinking}}
		}
	}
	return msg
}

// SyncResult summarizes one sync run
type SyncResult struct {
	SessionID   string
	Found       int
	Sent        int
	Batches     int
	TotalSynced int
	NoOp        bool
	DryRun      bool
}
