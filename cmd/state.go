package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/promptconduit/sessionsync/internal/sync"
)

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Inspect or reset per-session sync state",
	Long: `Inspect or reset the set of record ids already sent for each session.

Clearing a session makes the next sync resend its whole transcript; the
backend upserts by id, so this is safe but not free.`,
}

var stateListCmd = &cobra.Command{
	Use:   "list",
	Short: "List sessions with sync state",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := newDeps()
		if err != nil {
			return err
		}
		defer d.Close()

		ids, err := d.store.Sessions(cmd.Context())
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			cmd.Println("No sessions tracked")
			return nil
		}
		for _, id := range ids {
			cmd.Println(id)
		}
		return nil
	},
}

var stateShowCmd = &cobra.Command{
	Use:   "show <session>",
	Short: "Print a session's sync state as YAML",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := newDeps()
		if err != nil {
			return err
		}
		defer d.Close()

		state, err := d.store.Load(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		out, err := yaml.Marshal(newStateReport(d.cfg.StateBackend, state))
		if err != nil {
			return err
		}
		cmd.Print(string(out))
		return nil
	},
}

var stateClearCmd = &cobra.Command{
	Use:   "clear <session>",
	Short: "Forget which records of a session were sent",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := newDeps()
		if err != nil {
			return err
		}
		defer d.Close()

		if err := d.store.Clear(cmd.Context(), args[0]); err != nil {
			return fmt.Errorf("failed to clear state: %w", err)
		}
		cmd.Println(successStyle.Render("Cleared sync state for " + args[0]))
		return nil
	},
}

func init() {
	stateCmd.AddCommand(stateListCmd)
	stateCmd.AddCommand(stateShowCmd)
	stateCmd.AddCommand(stateClearCmd)
}

type stateReport struct {
	SessionID  string   `yaml:"session_id"`
	Backend    string   `yaml:"backend"`
	Synced     int      `yaml:"synced"`
	LastSyncAt string   `yaml:"last_sync_at,omitempty"`
	RecordIDs  []string `yaml:"record_ids"`
}

func newStateReport(backend string, state *sync.SyncedState) *stateReport {
	r := &stateReport{
		SessionID: state.SessionID,
		Backend:   backend,
		Synced:    state.Len(),
		RecordIDs: state.Synced.Sorted(),
	}
	if r.RecordIDs == nil {
		r.RecordIDs = []string{}
	}
	if !state.LastSyncAt.IsZero() {
		r.LastSyncAt = state.LastSyncAt.UTC().Format(time.RFC3339)
	}
	return r
}
