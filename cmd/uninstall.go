package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var uninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Remove sessionsync hooks from Claude Code",
	Long:  `Remove sessionsync hooks from ~/.claude/settings.json. Other hooks are kept.`,
	Args:  cobra.NoArgs,
	RunE:  runUninstall,
}

func runUninstall(cmd *cobra.Command, args []string) error {
	settingsPath, err := claudeSettingsPath()
	if err != nil {
		return err
	}

	if _, err := os.Stat(settingsPath); os.IsNotExist(err) {
		cmd.Println("No Claude Code settings file found - nothing to uninstall")
		return nil
	}

	settings, err := readSettings(settingsPath)
	if err != nil {
		return err
	}

	removed := uninstallHooks(settings)
	if removed == 0 {
		cmd.Println("No sessionsync hooks found in Claude Code settings")
		return nil
	}

	if err := writeSettings(settingsPath, settings); err != nil {
		return err
	}

	cmd.Println(successStyle.Render("Removed sessionsync hooks from Claude Code"))
	cmd.Printf("  %d event(s) updated in %s\n", removed, settingsPath)
	return nil
}
