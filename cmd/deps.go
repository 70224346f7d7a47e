package cmd

import (
	"fmt"
	"log/slog"

	"github.com/promptconduit/sessionsync/internal/client"
	"github.com/promptconduit/sessionsync/internal/logging"
	"github.com/promptconduit/sessionsync/internal/redact"
	"github.com/promptconduit/sessionsync/internal/sync"
)

// deps holds what one invocation needs. It is built once per process and
// passed down; nothing here is global.
type deps struct {
	cfg    *client.Config
	log    *slog.Logger
	client *client.Client
	store  sync.Store

	closeLog func() error
}

// newDeps loads config and builds the logger, client and state store
func newDeps() (*deps, error) {
	cfg := client.LoadConfig()
	log, closeLog := logging.New(logging.Options{Debug: cfg.Debug, LogFile: cfg.LogFile, Stderr: verbose})

	store, err := sync.OpenStore(cfg.StateBackend, cfg.StateDir)
	if err != nil {
		closeLog()
		return nil, fmt.Errorf("failed to open sync state: %w", err)
	}

	return &deps{
		cfg:      cfg,
		log:      log,
		client:   client.NewClient(cfg, Version),
		store:    store,
		closeLog: closeLog,
	}, nil
}

func (r *deps) Close() {
	r.store.Close()
	r.closeLog()
}

func (r *deps) syncer() *sync.Syncer {
	redactFn := redact.Func(redact.None)
	if r.cfg.Redact {
		redactFn = redact.String
	}
	return &sync.Syncer{
		Store:     r.store,
		Transport: r.client,
		Policy: sync.Policy{
			IncludeToolCalls: r.cfg.SyncToolCalls,
			IncludeThinking:  r.cfg.SyncThinking,
		},
		Redact:    redactFn,
		BatchSize: r.cfg.BatchSize,
		Logger:    r.log,
	}
}
