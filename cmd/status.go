package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/promptconduit/sessionsync/internal/client"
	"github.com/promptconduit/sessionsync/internal/sync"
)

var statusYAML bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show sessionsync configuration and installation status",
	Long:  `Display the current configuration, hook installation and tracked sessions.`,
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().BoolVar(&statusYAML, "yaml", false, "Print status as YAML")
}

// statusReport is the machine-readable form of `status`
type statusReport struct {
	Version        string   `yaml:"version"`
	Configured     bool     `yaml:"configured"`
	APIURL         string   `yaml:"api_url"`
	SiteURL        string   `yaml:"site_url"`
	APIKey         string   `yaml:"api_key"`
	ConfigPath     string   `yaml:"config_path"`
	AutoSync       bool     `yaml:"auto_sync"`
	SyncToolCalls  bool     `yaml:"sync_tool_calls"`
	SyncThinking   bool     `yaml:"sync_thinking"`
	Redact         bool     `yaml:"redact"`
	RealtimeEvents bool     `yaml:"realtime_events"`
	StateBackend   string   `yaml:"state_backend"`
	StateDir       string   `yaml:"state_dir"`
	Debug          bool     `yaml:"debug"`
	LogFile        string   `yaml:"log_file,omitempty"`
	HooksInstalled []string `yaml:"hooks_installed"`
	Sessions       int      `yaml:"tracked_sessions"`
}

func buildStatus(ctx context.Context, cfg *client.Config) *statusReport {
	r := &statusReport{
		Version:        Version,
		Configured:     cfg.IsConfigured(),
		APIURL:         cfg.APIURL,
		SiteURL:        client.SiteURL(cfg.APIURL),
		ConfigPath:     client.ConfigPath(),
		AutoSync:       cfg.AutoSync,
		SyncToolCalls:  cfg.SyncToolCalls,
		SyncThinking:   cfg.SyncThinking,
		Redact:         cfg.Redact,
		RealtimeEvents: cfg.RealtimeEvents,
		StateBackend:   cfg.StateBackend,
		StateDir:       cfg.StateDir,
		Debug:          cfg.Debug,
		HooksInstalled: []string{},
	}
	if cfg.APIKey != "" {
		r.APIKey = client.MaskAPIKey(cfg.APIKey)
	}
	if cfg.Debug {
		r.LogFile = cfg.LogFile
	}

	if path, err := claudeSettingsPath(); err == nil {
		if settings, err := readSettings(path); err == nil {
			if events := installedEvents(settings); events != nil {
				r.HooksInstalled = events
			}
		}
	}

	if store, err := sync.OpenStore(cfg.StateBackend, cfg.StateDir); err == nil {
		if ids, err := store.Sessions(ctx); err == nil {
			r.Sessions = len(ids)
		}
		store.Close()
	}
	return r
}

func runStatus(cmd *cobra.Command, args []string) error {
	r := buildStatus(cmd.Context(), client.LoadConfig())

	if statusYAML {
		out, err := yaml.Marshal(r)
		if err != nil {
			return err
		}
		cmd.Print(string(out))
		return nil
	}

	cmd.Println(titleStyle.Render(fmt.Sprintf("sessionsync %s", r.Version)))
	cmd.Println()

	if r.Configured {
		cmd.Println(field("API key", r.APIKey+" "+successStyle.Render("(configured)")))
	} else {
		cmd.Println(field("API key", warnStyle.Render("not configured")))
		cmd.Println(dimStyle.Render("  Set with: sessionsync login"))
	}
	cmd.Println(field("API URL", valueOr(r.APIURL, "-")))
	if r.SiteURL != r.APIURL {
		cmd.Println(field("Site URL", r.SiteURL))
	}
	cmd.Println(field("Config", r.ConfigPath))
	cmd.Println()

	cmd.Println(field("Auto sync", onOff(r.AutoSync)))
	cmd.Println(field("Tool calls", onOff(r.SyncToolCalls)))
	cmd.Println(field("Thinking", onOff(r.SyncThinking)))
	cmd.Println(field("Redaction", onOff(r.Redact)))
	cmd.Println(field("Realtime", onOff(r.RealtimeEvents)))
	cmd.Println(field("State", fmt.Sprintf("%s (%s)", r.StateBackend, r.StateDir)))
	cmd.Println(field("Sessions", fmt.Sprintf("%d tracked", r.Sessions)))
	if r.Debug {
		cmd.Println(field("Debug log", r.LogFile))
	}
	cmd.Println()

	if len(r.HooksInstalled) > 0 {
		cmd.Println(field("Claude Code", successStyle.Render("installed")+" "+dimStyle.Render(strings.Join(r.HooksInstalled, ", "))))
	} else {
		cmd.Println(field("Claude Code", warnStyle.Render("not installed")))
		cmd.Println(dimStyle.Render("  Install with: sessionsync install"))
	}
	return nil
}

func onOff(b bool) string {
	if b {
		return successStyle.Render("on")
	}
	return dimStyle.Render("off")
}

func valueOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
