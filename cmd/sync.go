package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/promptconduit/sessionsync/internal/client"
	"github.com/promptconduit/sessionsync/internal/sync"
	"github.com/promptconduit/sessionsync/internal/watcher"
)

var (
	syncSession    string
	syncTranscript string
	syncAll        bool
	syncDryRun     bool
	syncWatch      bool
	syncSince      string
	syncLimit      int
	syncWithEnded  bool
)

// watchDebounce coalesces the burst of writes the host tool makes per turn
const watchDebounce = 2 * time.Second

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Sync session transcripts to the backend",
	Long: `Sync conversation transcripts from ~/.claude/projects to the backend.

Only records that have not been sent before are uploaded. The same sync
state is shared with the Stop hook, so running this by hand never
duplicates what the hook already sent.

SessionEnd forgets what a session sent, so syncing an ended session sends
its whole transcript again. --all skips ended sessions unless
--include-ended is given; the backend upserts by id either way.

Examples:
  sessionsync sync --session 3f1c...        # Sync one session by id
  sessionsync sync --transcript ./x.jsonl   # Sync a specific file
  sessionsync sync --all                    # Sync every transcript
  sessionsync sync --all --since 2025-01-01 --limit 10
  sessionsync sync --all --dry-run          # Show what would be sent
  sessionsync sync --watch                  # Keep syncing as transcripts change`,
	Args: cobra.NoArgs,
	RunE: runSync,
}

func init() {
	syncCmd.Flags().StringVar(&syncSession, "session", "", "Session id to sync")
	syncCmd.Flags().StringVar(&syncTranscript, "transcript", "", "Transcript file to sync")
	syncCmd.Flags().BoolVar(&syncAll, "all", false, "Sync every transcript under ~/.claude/projects")
	syncCmd.Flags().BoolVar(&syncDryRun, "dry-run", false, "Show what would be synced without uploading")
	syncCmd.Flags().BoolVar(&syncWatch, "watch", false, "Watch transcripts and sync on change")
	syncCmd.Flags().StringVar(&syncSince, "since", "", "With --all, only transcripts modified after this date (YYYY-MM-DD)")
	syncCmd.Flags().IntVar(&syncLimit, "limit", 0, "With --all, maximum number of transcripts (0 = unlimited)")
	syncCmd.Flags().BoolVar(&syncWithEnded, "include-ended", false, "With --all, also resend sessions that have ended")
}

func runSync(cmd *cobra.Command, args []string) error {
	d, err := newDeps()
	if err != nil {
		return err
	}
	defer d.Close()

	if !d.cfg.IsConfigured() && !syncDryRun {
		return client.ErrNotConfigured
	}

	projectsDir, err := sync.DefaultProjectsDir()
	if err != nil {
		return err
	}

	if syncWatch {
		return watchAndSync(cmd, d, projectsDir)
	}

	paths, err := selectTranscripts(projectsDir)
	if err != nil {
		return err
	}
	if syncAll && syncTranscript == "" && syncSession == "" && !syncWithEnded {
		var skipped int
		if paths, skipped, err = withoutEnded(cmd.Context(), d.store, paths); err != nil {
			return err
		}
		if skipped > 0 {
			cmd.Println(dimStyle.Render(fmt.Sprintf("Skipping %d ended session(s); use --include-ended to resend them", skipped)))
		}
	}
	if len(paths) == 0 {
		cmd.Println("No transcripts found")
		return nil
	}

	syncer := d.syncer()
	var sent, failed int
	for _, path := range paths {
		res, err := syncer.Sync(cmd.Context(), sync.SyncRequest{
			SessionID:      syncSession,
			TranscriptPath: path,
			DryRun:         syncDryRun,
		})
		if err != nil {
			failed++
			cmd.Println(errorStyle.Render(fmt.Sprintf("  %s: %v", displayName(path), err)))
			continue
		}
		printSyncResult(cmd, path, res)
		sent += res.Sent
	}

	cmd.Println()
	if syncDryRun {
		cmd.Println(titleStyle.Render(fmt.Sprintf("Dry run complete: %d transcript(s) checked", len(paths))))
	} else {
		cmd.Println(titleStyle.Render(fmt.Sprintf("Sync complete: %d record(s) sent, %d error(s)", sent, failed)))
	}
	if failed > 0 {
		return fmt.Errorf("%d transcript(s) failed to sync", failed)
	}
	return nil
}

// selectTranscripts resolves the flags to the transcript files to sync
func selectTranscripts(projectsDir string) ([]string, error) {
	switch {
	case syncTranscript != "":
		return []string{syncTranscript}, nil

	case syncSession != "":
		path, err := findSessionTranscript(projectsDir, syncSession)
		if err != nil {
			return nil, err
		}
		return []string{path}, nil

	case syncAll:
		paths, err := sync.FindTranscripts(projectsDir)
		if err != nil {
			return nil, err
		}
		return filterTranscripts(paths, syncSince, syncLimit)

	default:
		return nil, errors.New("specify one of --session, --transcript, --all or --watch")
	}
}

// withoutEnded drops transcripts whose session was cleared at SessionEnd
func withoutEnded(ctx context.Context, store sync.Store, paths []string) ([]string, int, error) {
	var kept []string
	skipped := 0
	for _, p := range paths {
		state, err := store.Load(ctx, sync.SessionIDFromPath(p))
		if err != nil {
			return nil, 0, fmt.Errorf("failed to load sync state: %w", err)
		}
		if state.Ended {
			skipped++
			continue
		}
		kept = append(kept, p)
	}
	return kept, skipped, nil
}

// findSessionTranscript locates <sessionID>.jsonl under the projects tree
func findSessionTranscript(projectsDir, sessionID string) (string, error) {
	paths, err := sync.FindTranscripts(projectsDir)
	if err != nil {
		return "", err
	}
	for _, p := range paths {
		if sync.SessionIDFromPath(p) == sessionID {
			return p, nil
		}
	}
	return "", fmt.Errorf("no transcript found for session %s in %s", sessionID, projectsDir)
}

// filterTranscripts applies --since and --limit to paths already sorted newest first
func filterTranscripts(paths []string, since string, limit int) ([]string, error) {
	var sinceTime time.Time
	if since != "" {
		parsed, err := time.Parse("2006-01-02", since)
		if err != nil {
			return nil, fmt.Errorf("invalid --since date format (use YYYY-MM-DD): %w", err)
		}
		sinceTime = parsed
	}

	var out []string
	for _, p := range paths {
		if limit > 0 && len(out) >= limit {
			break
		}
		if !sinceTime.IsZero() {
			info, err := os.Stat(p)
			if err != nil || info.ModTime().Before(sinceTime) {
				continue
			}
		}
		out = append(out, p)
	}
	return out, nil
}

func watchAndSync(cmd *cobra.Command, d *deps, projectsDir string) error {
	if err := os.MkdirAll(projectsDir, 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", projectsDir, err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	syncer := d.syncer()
	w, err := watcher.New(projectsDir, watchDebounce, d.log, func(path string) {
		res, err := syncer.Sync(ctx, sync.SyncRequest{TranscriptPath: path, DryRun: syncDryRun})
		if err != nil {
			cmd.Println(errorStyle.Render(fmt.Sprintf("  %s: %v", displayName(path), err)))
			return
		}
		printSyncResult(cmd, path, res)
	})
	if err != nil {
		return err
	}
	if err := w.Start(); err != nil {
		return err
	}
	defer w.Close()

	cmd.Printf("Watching %s (Ctrl+C to stop)\n", projectsDir)
	<-ctx.Done()
	cmd.Println()
	cmd.Println(dimStyle.Render("Stopped"))
	return nil
}

func printSyncResult(cmd *cobra.Command, path string, res *sync.SyncResult) {
	name := displayName(path)
	switch {
	case res.NoOp:
		if verbose {
			cmd.Println(dimStyle.Render(fmt.Sprintf("  = %s: up to date (%d synced)", name, res.TotalSynced)))
		}
	case res.DryRun:
		cmd.Printf("  [dry-run] %s: %d new record(s)\n", name, res.Found)
	default:
		cmd.Println(successStyle.Render(fmt.Sprintf("  ✓ %s: %d record(s) in %d batch(es), %d total", name, res.Sent, res.Batches, res.TotalSynced)))
	}
}

// displayName shortens a transcript path to project/file
func displayName(path string) string {
	name := filepath.Base(filepath.Dir(path)) + "/" + filepath.Base(path)
	if len(name) > 60 {
		name = "..." + name[len(name)-57:]
	}
	return name
}
