package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/promptconduit/sessionsync/internal/client"
)

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Install sessionsync hooks for Claude Code",
	Long: `Register sessionsync hooks in ~/.claude/settings.json.

Hooks of other tools are left untouched. Running install again replaces the
existing sessionsync entries, for example after moving the binary.`,
	Args: cobra.NoArgs,
	RunE: runInstall,
}

func runInstall(cmd *cobra.Command, args []string) error {
	// Get the executable path for hook commands
	exePath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}

	// Resolve symlinks to get actual binary path
	exePath, err = filepath.EvalSymlinks(exePath)
	if err != nil {
		return fmt.Errorf("failed to resolve executable path: %w", err)
	}

	settingsPath, err := claudeSettingsPath()
	if err != nil {
		return err
	}

	settings, err := readSettings(settingsPath)
	if err != nil {
		return err
	}

	events := installHooks(settings, exePath)

	if err := writeSettings(settingsPath, settings); err != nil {
		return err
	}

	cmd.Println(successStyle.Render("Installed sessionsync hooks for Claude Code"))
	cmd.Printf("Settings file: %s\n", settingsPath)
	for _, ev := range events {
		cmd.Printf("  %s\n", ev)
	}

	if !client.LoadConfig().IsConfigured() {
		cmd.Println()
		cmd.Println(warnStyle.Render("Not logged in yet. Run: sessionsync login"))
	}
	return nil
}
