package hooks

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"github.com/google/uuid"

	"github.com/promptconduit/sessionsync/internal/envelope"
	"github.com/promptconduit/sessionsync/internal/git"
	"github.com/promptconduit/sessionsync/internal/schema"
	"github.com/promptconduit/sessionsync/internal/sync"
)

// realtimeNamespace scopes the ids of records sent straight from hook payloads
var realtimeNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://promptconduit.dev/sessionsync/realtime"))

var errNoSession = errors.New("hook payload has no session id")

// handleSessionStart registers the session so it shows up before the first sync
func (d *Dispatcher) handleSessionStart(ctx context.Context, in *schema.HookInput, log *slog.Logger) error {
	if in.SessionID == "" {
		return errNoSession
	}

	project := git.ResolveProject(in.Cwd)
	session := &envelope.Session{
		ExternalID:  in.SessionID,
		Source:      schema.Source,
		ProjectPath: project.Path,
		ProjectName: project.Name,
	}
	if err := d.Transport.UpsertSession(ctx, session); err != nil {
		return err
	}
	log.Info("session registered", "project", project.Name, "start_source", in.Source)
	return nil
}

// handlePrompt sends the submitted prompt as it happens when realtime events are on
func (d *Dispatcher) handlePrompt(ctx context.Context, in *schema.HookInput, log *slog.Logger) error {
	if !d.Config.RealtimeEvents {
		return nil
	}
	if in.SessionID == "" {
		return errNoSession
	}

	// prompts carry no host id; the timestamp keeps repeated prompts distinct
	key := "prompt/" + strconv.FormatInt(d.now().UnixNano(), 10) + "/" + in.Prompt
	msg := envelope.Message{
		SessionExternalID: in.SessionID,
		ExternalID:        realtimeID(in.SessionID, key),
		Role:              string(schema.RoleUser),
		TextContent:       d.redactor()(in.Prompt),
		Source:            schema.Source,
	}
	return d.sendRealtime(ctx, msg, log)
}

// handleToolUse sends one completed tool call when realtime events are on
func (d *Dispatcher) handleToolUse(ctx context.Context, in *schema.HookInput, log *slog.Logger) error {
	if !d.Config.RealtimeEvents || !d.Config.SyncToolCalls {
		return nil
	}
	if in.SessionID == "" {
		return errNoSession
	}

	key := "tool/" + in.ToolUseID
	if in.ToolUseID == "" {
		key = "tool/" + strconv.FormatInt(d.now().UnixNano(), 10) + "/" + in.ToolName
	}

	redactFn := d.redactor()
	args, _ := redactFn.Value(in.ToolInput).(map[string]interface{})
	if args == nil {
		args = map[string]interface{}{}
	}

	msg := envelope.Message{
		SessionExternalID: in.SessionID,
		ExternalID:        realtimeID(in.SessionID, key),
		Role:              string(schema.RoleAssistant),
		Source:            schema.Source,
		Parts: []envelope.Part{{
			Type: envelope.PartToolUse,
			Content: envelope.ToolUseContent{
				ToolName: in.ToolName,
				Args:     args,
				Result:   redactFn.Value(in.ToolResponse),
			},
		}},
	}
	return d.sendRealtime(ctx, msg, log)
}

func (d *Dispatcher) sendRealtime(ctx context.Context, msg envelope.Message, log *slog.Logger) error {
	if err := d.Transport.UpsertBatch(ctx, envelope.NewBatch(nil, []envelope.Message{msg})); err != nil {
		return err
	}
	log.Debug("realtime record sent", "record", msg.ExternalID)
	return nil
}

// handleStop runs the transcript delta sync
func (d *Dispatcher) handleStop(ctx context.Context, in *schema.HookInput, log *slog.Logger) error {
	if !d.Config.AutoSync {
		log.Debug("auto sync disabled, skipping")
		return nil
	}

	syncer := &sync.Syncer{
		Store:     d.Store,
		Transport: d.Transport,
		Policy: sync.Policy{
			IncludeToolCalls: d.Config.SyncToolCalls,
			IncludeThinking:  d.Config.SyncThinking,
		},
		Redact:    d.redactor(),
		BatchSize: d.Config.BatchSize,
		Logger:    log,
		Now:       d.Now,
	}

	_, err := syncer.Sync(ctx, sync.SyncRequest{
		SessionID:      in.SessionID,
		TranscriptPath: in.TranscriptPath,
		Cwd:            in.Cwd,
	})
	return err
}

// handleSessionEnd forgets what was synced for the session
func (d *Dispatcher) handleSessionEnd(ctx context.Context, in *schema.HookInput, log *slog.Logger) error {
	if in.SessionID == "" {
		return errNoSession
	}
	if err := d.Store.Clear(ctx, in.SessionID); err != nil {
		return err
	}
	log.Debug("sync state cleared", "reason", in.Reason)
	return nil
}

func realtimeID(sessionID, key string) string {
	return uuid.NewSHA1(realtimeNamespace, []byte(sessionID+"/"+key)).String()
}
