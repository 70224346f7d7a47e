package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/promptconduit/sessionsync/internal/schema"
)

// hookMarker is the executable name our hook commands run
const hookMarker = "sessionsync"

// hookTimeoutSecs is how long the host waits for one hook invocation
const hookTimeoutSecs = 60

func claudeSettingsPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".claude", "settings.json"), nil
}

// readSettings returns the settings object; a missing file is an empty object
func readSettings(path string) (map[string]interface{}, error) {
	settings := make(map[string]interface{})
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return settings, nil
		}
		return nil, fmt.Errorf("failed to read settings: %w", err)
	}
	if err := json.Unmarshal(data, &settings); err != nil {
		return nil, fmt.Errorf("failed to parse existing settings: %w", err)
	}
	if settings == nil {
		settings = make(map[string]interface{})
	}
	return settings, nil
}

func writeSettings(path string, settings map[string]interface{}) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}
	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}
	return nil
}

// installHooks adds one hook entry per event, replacing any earlier entry of
// ours and leaving other tools' hooks in place. Returns the events installed.
func installHooks(settings map[string]interface{}, exePath string) []schema.HookEvent {
	hooks, ok := settings["hooks"].(map[string]interface{})
	if !ok {
		hooks = make(map[string]interface{})
		settings["hooks"] = hooks
	}

	for _, ev := range schema.InstalledEvents {
		entries := withoutOurs(hooks[string(ev)])
		entry := map[string]interface{}{
			"hooks": []interface{}{
				map[string]interface{}{
					"type":    "command",
					"command": fmt.Sprintf("%s hook %s", quoteIfNeeded(exePath), ev),
					"timeout": hookTimeoutSecs,
				},
			},
		}
		if ev == schema.EventPostToolUse {
			entry["matcher"] = "*"
		}
		hooks[string(ev)] = append(entries, entry)
	}
	return schema.InstalledEvents
}

// uninstallHooks removes our entries and drops events left empty. Returns how
// many events had an entry of ours.
func uninstallHooks(settings map[string]interface{}) int {
	hooks, ok := settings["hooks"].(map[string]interface{})
	if !ok {
		return 0
	}

	removed := 0
	for name, value := range hooks {
		if !containsOurHook(value) {
			continue
		}
		removed++
		if rest := withoutOurs(value); len(rest) > 0 {
			hooks[name] = rest
		} else {
			delete(hooks, name)
		}
	}

	if len(hooks) == 0 {
		delete(settings, "hooks")
	}
	return removed
}

// installedEvents lists the events that currently carry one of our hooks
func installedEvents(settings map[string]interface{}) []string {
	hooks, ok := settings["hooks"].(map[string]interface{})
	if !ok {
		return nil
	}
	var events []string
	for _, ev := range schema.InstalledEvents {
		if containsOurHook(hooks[string(ev)]) {
			events = append(events, string(ev))
		}
	}
	return events
}

// withoutOurs returns the matcher entries of an event that are not ours
func withoutOurs(v interface{}) []interface{} {
	list, _ := v.([]interface{})
	out := make([]interface{}, 0, len(list))
	for _, item := range list {
		if !containsOurHook(item) {
			out = append(out, item)
		}
	}
	return out
}

// containsOurHook checks if a value contains a command that runs our binary's hook subcommand
func containsOurHook(v interface{}) bool {
	switch val := v.(type) {
	case string:
		return isOurHookCommand(val)
	case map[string]interface{}:
		for _, v := range val {
			if containsOurHook(v) {
				return true
			}
		}
	case []interface{}:
		for _, item := range val {
			if containsOurHook(item) {
				return true
			}
		}
	}
	return false
}

// isOurHookCommand matches `<dir>/sessionsync hook <Event>`, with the
// executable optionally quoted
func isOurHookCommand(command string) bool {
	command = strings.TrimSpace(command)
	var exe, rest string
	if strings.HasPrefix(command, `"`) {
		end := strings.Index(command[1:], `"`)
		if end < 0 {
			return false
		}
		exe, rest = command[1:end+1], command[end+2:]
	} else {
		exe, rest, _ = strings.Cut(command, " ")
	}

	name := strings.TrimSuffix(strings.ToLower(filepath.Base(exe)), ".exe")
	args := strings.Fields(rest)
	return name == hookMarker && len(args) > 0 && args[0] == "hook"
}

func quoteIfNeeded(path string) string {
	if strings.ContainsAny(path, " \t") {
		return `"` + path + `"`
	}
	return path
}
