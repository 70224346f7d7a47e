package cmd

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/promptconduit/sessionsync/internal/client"
	"github.com/promptconduit/sessionsync/internal/sync"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage sessionsync configuration",
	Long: `Manage sessionsync configuration stored in ~/.config/sessionsync/config.toml.

This config file is used by hooks when environment variables are not set,
since Claude Code spawns hooks as plain subprocesses.

Quick start:
  sessionsync config set api_key sk_xxx

Priority order: environment variables > config file > defaults`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := client.LoadConfig()
		if _, err := client.LoadFileConfig(); err != nil {
			cmd.Println(warnStyle.Render(fmt.Sprintf("Config file ignored: %v", err)))
			cmd.Println()
		}

		cmd.Println(configField("api_url", valueOr(cfg.APIURL, "-")))
		cmd.Println(configField("api_key", valueOr(maskedKey(cfg.APIKey), "-")))
		cmd.Println(configField("auto_sync", strconv.FormatBool(cfg.AutoSync)))
		cmd.Println(configField("sync_tool_calls", strconv.FormatBool(cfg.SyncToolCalls)))
		cmd.Println(configField("sync_thinking", strconv.FormatBool(cfg.SyncThinking)))
		cmd.Println(configField("redact", strconv.FormatBool(cfg.Redact)))
		cmd.Println(configField("realtime_events", strconv.FormatBool(cfg.RealtimeEvents)))
		cmd.Println(configField("state_backend", cfg.StateBackend))
		cmd.Println(configField("state_dir", cfg.StateDir))
		cmd.Println(configField("timeout_seconds", strconv.Itoa(cfg.TimeoutSeconds)))
		cmd.Println(configField("compress", strconv.FormatBool(cfg.Compress)))
		cmd.Println(configField("batch_size", strconv.Itoa(cfg.BatchSize)))
		cmd.Println(configField("max_input_bytes", strconv.FormatInt(cfg.MaxInputBytes, 10)))
		cmd.Println(configField("debug", strconv.FormatBool(cfg.Debug)))
		cmd.Println(configField("log_file", cfg.LogFile))
		cmd.Println()
		cmd.Println(configField("Config", client.ConfigPath()))
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value in ~/.config/sessionsync/config.toml.

Keys: ` + strings.Join(configKeys(), ", ") + `

Examples:
  sessionsync config set api_url https://happy-otter-123.convex.cloud
  sessionsync config set sync_thinking true
  sessionsync config set state_backend sqlite`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		fc, err := client.LoadFileConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if fc == nil {
			fc = &client.FileConfig{}
		}

		key, value := args[0], args[1]
		if err := setConfigValue(fc, key, value); err != nil {
			return err
		}

		if err := client.SaveFileConfig(fc); err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}

		if key == "api_key" {
			value = client.MaskAPIKey(value)
		}
		cmd.Println("Configuration saved")
		cmd.Printf("  %s = %s\n", key, value)
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show the config file path",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Println(client.ConfigPath())
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configPathCmd)
}

type configSetter func(fc *client.FileConfig, value string) error

var configSetters = map[string]configSetter{
	"api_url": func(fc *client.FileConfig, v string) error { fc.APIURL = v; return nil },
	"api_key": func(fc *client.FileConfig, v string) error { fc.APIKey = v; return nil },
	"auto_sync": func(fc *client.FileConfig, v string) error {
		return parseBoolInto(&fc.AutoSync, v)
	},
	"sync_tool_calls": func(fc *client.FileConfig, v string) error {
		return parseBoolInto(&fc.SyncToolCalls, v)
	},
	"sync_thinking": func(fc *client.FileConfig, v string) error {
		return parseBoolInto(&fc.SyncThinking, v)
	},
	"redact": func(fc *client.FileConfig, v string) error {
		return parseBoolInto(&fc.Redact, v)
	},
	"realtime_events": func(fc *client.FileConfig, v string) error {
		return parseBoolInto(&fc.RealtimeEvents, v)
	},
	"compress": func(fc *client.FileConfig, v string) error {
		return parseBoolInto(&fc.Compress, v)
	},
	"debug": func(fc *client.FileConfig, v string) error {
		return parseBoolInto(&fc.Debug, v)
	},
	"state_backend": func(fc *client.FileConfig, v string) error {
		v = strings.ToLower(v)
		if v != sync.BackendFile && v != sync.BackendSQLite {
			return fmt.Errorf("state_backend must be %q or %q", sync.BackendFile, sync.BackendSQLite)
		}
		fc.StateBackend = v
		return nil
	},
	"state_dir": func(fc *client.FileConfig, v string) error { fc.StateDir = v; return nil },
	"log_file":  func(fc *client.FileConfig, v string) error { fc.LogFile = v; return nil },
	"timeout_seconds": func(fc *client.FileConfig, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return fmt.Errorf("timeout_seconds must be a non-negative integer")
		}
		fc.TimeoutSeconds = &n
		return nil
	},
	"batch_size": func(fc *client.FileConfig, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return fmt.Errorf("batch_size must be a positive integer")
		}
		fc.BatchSize = &n
		return nil
	},
	"max_input_bytes": func(fc *client.FileConfig, v string) error {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n <= 0 {
			return fmt.Errorf("max_input_bytes must be a positive integer")
		}
		fc.MaxInputBytes = &n
		return nil
	},
}

func setConfigValue(fc *client.FileConfig, key, value string) error {
	set, ok := configSetters[strings.ToLower(key)]
	if !ok {
		return fmt.Errorf("unknown config key %q. Keys: %s", key, strings.Join(configKeys(), ", "))
	}
	return set(fc, strings.TrimSpace(value))
}

func configKeys() []string {
	keys := make([]string, 0, len(configSetters))
	for k := range configSetters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func parseBoolInto(dst **bool, v string) error {
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("expected true or false, got %q", v)
	}
	*dst = &b
	return nil
}

// configField widens the label column to fit the longest key
func configField(label, value string) string {
	return labelStyle.Width(18).Render(label+":") + " " + value
}

func maskedKey(key string) string {
	if key == "" {
		return ""
	}
	return client.MaskAPIKey(key)
}
