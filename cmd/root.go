package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	// Version is set at build time via ldflags
	Version = "dev"

	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "sessionsync",
	Short: "sessionsync - Sync coding assistant sessions to your own backend",
	Long: `sessionsync runs as a Claude Code hook. After each turn it reads the session
transcript, works out which messages and tool calls have not been sent yet,
redacts secret-looking text, and sends them to your backend.

Get started:
  1. Log in:          sessionsync login
  2. Install hooks:   sessionsync install
  3. Use Claude Code as normal - sessions sync automatically`,
	SilenceUsage: true,
}

func Execute() error {
	// cmd.Print* defaults to stderr; command output belongs on stdout
	rootCmd.SetOut(os.Stdout)
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log to stderr")

	rootCmd.AddCommand(installCmd)
	rootCmd.AddCommand(uninstallCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(hookCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(stateCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("sessionsync %s\n", Version)
	},
}
