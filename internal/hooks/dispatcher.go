// Package hooks routes one host-tool hook event to its handler.
package hooks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/promptconduit/sessionsync/internal/adapters"
	"github.com/promptconduit/sessionsync/internal/client"
	"github.com/promptconduit/sessionsync/internal/redact"
	"github.com/promptconduit/sessionsync/internal/schema"
	"github.com/promptconduit/sessionsync/internal/sync"
)

// Dispatcher handles a single hook invocation. Everything it needs is
// constructed by the caller for this invocation and passed in.
type Dispatcher struct {
	Config    *client.Config
	Transport sync.Transport
	Store     sync.Store
	Logger    *slog.Logger

	// Now is overridable in tests
	Now func() time.Time
}

// Run reads the payload from r and dispatches it. Only a broken host contract
// is returned as an error: a payload that is too large or not a JSON object, or
// no event name at all. Handler failures are logged and swallowed.
func (d *Dispatcher) Run(ctx context.Context, eventArg string, r io.Reader) error {
	log := d.logger()

	raw, err := d.readPayload(r)
	if err != nil {
		log.Warn("rejected hook payload", "error", err)
		return err
	}

	in := adapters.Normalize(raw, eventArg)
	if in.Event == "" {
		return schema.ErrMissingEvent
	}
	if raw == nil {
		log.Debug("empty payload, skipping", "event", in.Event)
		return nil
	}

	log = log.With("event", string(in.Event), "session", in.SessionID)
	log.Debug("hook received", "transcript", in.TranscriptPath, "cwd", in.Cwd)

	if d.Config == nil || !d.Config.IsConfigured() {
		log.Debug("not configured, skipping")
		return nil
	}

	if err := d.dispatch(ctx, in, log); err != nil {
		log.Error("hook handler failed", "error", err)
	}
	return nil
}

// readPayload reads the whole payload before anything acts on it. An empty
// payload yields a nil map and no error.
func (d *Dispatcher) readPayload(r io.Reader) (map[string]interface{}, error) {
	limit := int64(client.DefaultMaxInputBytes)
	if d.Config != nil && d.Config.MaxInputBytes > 0 {
		limit = d.Config.MaxInputBytes
	}

	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read hook input: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: more than %d bytes", schema.ErrPayloadTooLarge, limit)
	}

	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", schema.ErrMalformedPayload, err)
	}
	if raw == nil {
		// literal null
		return nil, fmt.Errorf("%w: not an object", schema.ErrMalformedPayload)
	}
	return raw, nil
}

func (d *Dispatcher) dispatch(ctx context.Context, in *schema.HookInput, log *slog.Logger) error {
	switch in.Event {
	case schema.EventSessionStart:
		return d.handleSessionStart(ctx, in, log)
	case schema.EventUserPromptSubmit:
		return d.handlePrompt(ctx, in, log)
	case schema.EventPostToolUse:
		return d.handleToolUse(ctx, in, log)
	case schema.EventStop, schema.EventSubagentStop:
		return d.handleStop(ctx, in, log)
	case schema.EventSessionEnd:
		return d.handleSessionEnd(ctx, in, log)
	default:
		log.Debug("no handler for event")
		return nil
	}
}

func (d *Dispatcher) redactor() redact.Func {
	if d.Config.Redact {
		return redact.String
	}
	return redact.None
}

func (d *Dispatcher) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.New(slog.DiscardHandler)
}

func (d *Dispatcher) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now().UTC()
}
