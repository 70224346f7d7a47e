package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/promptconduit/sessionsync/internal/hooks"
)

var hookCmd = &cobra.Command{
	Use:    "hook [event]",
	Short:  "Process a hook event from Claude Code",
	Long:   `Internal command called by Claude Code hooks. Reads one JSON event from stdin and syncs the session.`,
	Hidden: true,
	Args:   cobra.MaximumNArgs(1),
	RunE:   runHook,
}

// runHook returns an error only when the host broke the hook contract.
// Everything else, including sync failures, exits 0 with {"continue": true}.
func runHook(cmd *cobra.Command, args []string) error {
	var event string
	if len(args) > 0 {
		event = args[0]
	}

	dep, err := newDeps()
	if err != nil {
		// no state store means nothing can be synced safely; stay out of the host's way
		outputContinueResponse()
		return nil
	}
	defer dep.Close()

	d := &hooks.Dispatcher{
		Config:    dep.cfg,
		Transport: dep.client,
		Store:     dep.store,
		Logger:    dep.log,
	}

	if err := d.Run(context.Background(), event, os.Stdin); err != nil {
		return fmt.Errorf("hook %s: %w", event, err)
	}

	outputContinueResponse()
	return nil
}

// outputContinueResponse writes the success response to stdout
func outputContinueResponse() {
	response := map[string]interface{}{
		"continue": true,
	}
	data, _ := json.Marshal(response)
	fmt.Println(string(data))
}
