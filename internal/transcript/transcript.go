package transcript

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/promptconduit/sessionsync/internal/schema"
)

// rawLine is the union of every record shape we read from a transcript line
type rawLine struct {
	Type      string                 `json:"type"`
	UUID      string                 `json:"uuid"`
	ID        string                 `json:"id"`
	SessionID string                 `json:"sessionId"`
	Title     string                 `json:"title"`
	Summary   string                 `json:"summary"`
	Cwd       string                 `json:"cwd"`
	Metadata  map[string]interface{} `json:"metadata"`
	Timestamp string                 `json:"timestamp"`
	Role      string                 `json:"role"`
	CostUSD   float64                `json:"costUSD"`
	Message   json.RawMessage        `json:"message"`
	Content   json.RawMessage        `json:"content"`
}

type rawMessage struct {
	ID      string          `json:"id"`
	Role    string          `json:"role"`
	Model   string          `json:"model"`
	Content json.RawMessage `json:"content"`
	Usage   *struct {
		InputTokens         int `json:"input_tokens"`
		OutputTokens        int `json:"output_tokens"`
		CacheCreationTokens int `json:"cache_creation_input_tokens"`
		CacheReadTokens     int `json:"cache_read_input_tokens"`
	} `json:"usage"`
}

type rawBlock struct {
	Type      string          `json:"type"`
	Text      string          `json:"text"`
	Thinking  string          `json:"thinking"`
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Input     json.RawMessage `json:"input"`
	ToolUseID string          `json:"tool_use_id"`
	Content   json.RawMessage `json:"content"`
	IsError   bool            `json:"is_error"`
}

// syntheticModel marks assistant lines the host writes itself
const syntheticModel = "<synthetic>"

// Decode reads the transcript at path. A missing file is not an error: the
// hook can fire before the host has created it. Lines that fail to decode are
// skipped and counted; they never abort decoding of the lines that follow.
func Decode(path string) (*Transcript, error) {
	t := &Transcript{Path: path, ToolResults: make(map[string]Block)}
	if path == "" {
		return t, nil
	}

	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return t, nil
		}
		return nil, fmt.Errorf("failed to open transcript: %w", err)
	}
	defer file.Close()

	if err := decodeFrom(file, t); err != nil {
		return nil, fmt.Errorf("error reading transcript: %w", err)
	}
	return t, nil
}

// DecodeReader decodes a transcript from r
func DecodeReader(r io.Reader) (*Transcript, error) {
	t := &Transcript{ToolResults: make(map[string]Block)}
	if err := decodeFrom(r, t); err != nil {
		return nil, err
	}
	return t, nil
}

// maxLineBytes bounds one transcript line; longer lines are skipped and counted
var maxLineBytes = 10 * 1024 * 1024

func decodeFrom(r io.Reader, t *Transcript) error {
	// bufio.Reader instead of Scanner: an oversized line must be skipped, not end the read
	reader := bufio.NewReaderSize(r, 64*1024)
	d := &decoder{t: t, modelCounts: make(map[string]int), usageSeen: make(map[string]bool)}

	for {
		line, tooLong, err := readLine(reader, maxLineBytes)
		switch {
		case tooLong:
			t.Skipped++
		case len(bytes.TrimSpace(line)) > 0:
			d.decodeLine(line)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return err
		}
	}

	d.finish()
	return nil
}

// readLine returns the next line, or tooLong with the line discarded once it
// exceeds limit bytes. The rest of an oversized line is still consumed.
func readLine(r *bufio.Reader, limit int) (line []byte, tooLong bool, err error) {
	for {
		frag, err := r.ReadSlice('\n')
		if !tooLong {
			if len(line)+len(bytes.TrimRight(frag, "\r\n")) > limit {
				tooLong = true
				line = nil
			} else {
				line = append(line, frag...)
			}
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		return line, tooLong, err
	}
}

type decoder struct {
	t           *Transcript
	modelCounts map[string]int
	// usageSeen dedupes usage across lines split from one model response
	usageSeen map[string]bool
}

func (d *decoder) decodeLine(line []byte) {
	var raw rawLine
	if err := json.Unmarshal(line, &raw); err != nil {
		d.t.Skipped++
		return
	}

	ts := parseTimestamp(raw.Timestamp)
	if !ts.IsZero() {
		if d.t.FirstAt.IsZero() || ts.Before(d.t.FirstAt) {
			d.t.FirstAt = ts
		}
		if ts.After(d.t.LastAt) {
			d.t.LastAt = ts
		}
	}
	if d.t.Cwd == "" && raw.Cwd != "" {
		d.t.Cwd = raw.Cwd
	}

	switch raw.Type {
	case "session", "session_start", "session-start":
		if d.t.Session == nil {
			id := raw.ID
			if id == "" {
				id = raw.SessionID
			}
			d.t.Session = &SessionStart{ID: id, Title: raw.Title, Cwd: raw.Cwd, Metadata: raw.Metadata}
		}
	case "summary":
		if raw.Summary != "" {
			d.t.Summary = raw.Summary
		}
	case "user", "assistant", "message":
		msg, ok := d.decodeMessage(&raw, ts)
		if !ok {
			d.t.Skipped++
			return
		}
		d.t.Messages = append(d.t.Messages, *msg)
		d.t.MessageCount++
		for _, b := range msg.Blocks {
			switch b.Type {
			case BlockToolUse:
				d.t.ToolCallCount++
			case BlockToolResult:
				if b.ToolUseID != "" {
					d.t.ToolResults[b.ToolUseID] = b
				}
			}
		}
	default:
		// system, file-history-snapshot, queue-operation and friends carry nothing to sync
	}
}

func (d *decoder) decodeMessage(raw *rawLine, ts time.Time) (*Message, bool) {
	var inner rawMessage
	if len(raw.Message) > 0 {
		if err := json.Unmarshal(raw.Message, &inner); err != nil {
			return nil, false
		}
	}

	role := inner.Role
	if role == "" {
		role = raw.Role
	}
	if role == "" && raw.Type != "message" {
		role = raw.Type
	}
	if role != string(schema.RoleUser) && role != string(schema.RoleAssistant) {
		return nil, false
	}

	id := raw.UUID
	if id == "" {
		id = raw.ID
	}
	if id == "" {
		id = inner.ID
	}
	if id == "" {
		return nil, false
	}

	content := inner.Content
	if len(content) == 0 {
		content = raw.Content
	}
	blocks, ok := decodeContent(content)
	if !ok {
		return nil, false
	}

	msg := &Message{
		ID:        id,
		Timestamp: ts,
		Role:      schema.Role(role),
		Model:     inner.Model,
		Cwd:       raw.Cwd,
		Blocks:    blocks,
	}

	if msg.Role == schema.RoleAssistant {
		if inner.Model != "" && inner.Model != syntheticModel {
			d.modelCounts[inner.Model]++
		}
		usageKey := inner.ID
		if usageKey == "" {
			usageKey = id
		}
		if inner.Usage != nil && !d.usageSeen[usageKey] {
			d.usageSeen[usageKey] = true
			d.t.Usage.add(Usage{
				InputTokens:         inner.Usage.InputTokens,
				OutputTokens:        inner.Usage.OutputTokens,
				CacheCreationTokens: inner.Usage.CacheCreationTokens,
				CacheReadTokens:     inner.Usage.CacheReadTokens,
			})
		}
		d.t.Cost += raw.CostUSD
	}

	return msg, true
}

// decodeContent accepts either a bare string (one text block) or an array of blocks.
// Unknown block types are dropped; a block that is not an object is ignored.
func decodeContent(content json.RawMessage) ([]Block, bool) {
	content = bytes.TrimSpace(content)
	if len(content) == 0 || bytes.Equal(content, []byte("null")) {
		return nil, true
	}

	var text string
	if err := json.Unmarshal(content, &text); err == nil {
		if text == "" {
			return nil, true
		}
		return []Block{{Type: BlockText, Text: text}}, true
	}

	var items []json.RawMessage
	if err := json.Unmarshal(content, &items); err != nil {
		return nil, false
	}

	blocks := make([]Block, 0, len(items))
	for _, item := range items {
		var rb rawBlock
		if err := json.Unmarshal(item, &rb); err != nil {
			continue
		}
		switch BlockType(rb.Type) {
		case BlockText:
			blocks = append(blocks, Block{Type: BlockText, Text: rb.Text})
		case BlockThinking:
			blocks = append(blocks, Block{Type: BlockThinking, Text: rb.Thinking})
		case BlockToolUse:
			blocks = append(blocks, Block{
				Type:      BlockToolUse,
				ToolUseID: rb.ID,
				ToolName:  rb.Name,
				Input:     decodeInput(rb.Input),
			})
		case BlockToolResult:
			blocks = append(blocks, Block{
				Type:      BlockToolResult,
				ToolUseID: rb.ToolUseID,
				Result:    decodeResult(rb.Content),
				IsError:   rb.IsError,
			})
		case BlockImage:
			blocks = append(blocks, Block{Type: BlockImage})
		default:
			// redacted_thinking, document and future tags
		}
	}
	return blocks, true
}

// decodeInput returns tool arguments as an object; a non-object input is wrapped
func decodeInput(raw json.RawMessage) map[string]interface{} {
	if len(raw) == 0 {
		return nil
	}
	var obj map[string]interface{}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return obj
	}
	var v interface{}
	if err := json.Unmarshal(raw, &v); err == nil && v != nil {
		return map[string]interface{}{"input": v}
	}
	return nil
}

// decodeResult flattens text-block arrays into one string and keeps other
// structured content as decoded JSON
func decodeResult(raw json.RawMessage) interface{} {
	if len(raw) == 0 {
		return nil
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text
	}

	var items []rawBlock
	if err := json.Unmarshal(raw, &items); err == nil {
		var parts []string
		allText := true
		for _, it := range items {
			if it.Type != string(BlockText) {
				allText = false
				break
			}
			parts = append(parts, it.Text)
		}
		if allText {
			return strings.Join(parts, "\n")
		}
	}

	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	return v
}

func (d *decoder) finish() {
	var maxCount int
	for model, count := range d.modelCounts {
		// ties broken by name so the result is stable across map iteration
		if count > maxCount || (count == maxCount && model < d.t.Model) {
			maxCount = count
			d.t.Model = model
		}
	}
	if d.t.Session != nil && d.t.Session.Cwd != "" {
		d.t.Cwd = d.t.Session.Cwd
	}
}

func parseTimestamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	ts, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return ts.UTC()
}
