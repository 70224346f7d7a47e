package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/promptconduit/sessionsync/internal/client"
)

const verifyTimeout = 15 * time.Second

var verifyCmd = &cobra.Command{
	Use:     "verify",
	Aliases: []string{"test"},
	Short:   "Verify backend connectivity",
	Long: `Call the backend health endpoint to verify connectivity and authentication.

Unlike hooks, which silently skip when nothing is configured, verify fails
when no endpoint or API key is set.`,
	RunE: runVerify,
}

func runVerify(cmd *cobra.Command, args []string) error {
	cfg := client.LoadConfig()
	if !cfg.IsConfigured() {
		return client.ErrNotConfigured
	}

	apiClient := client.NewClient(cfg, Version)
	cmd.Printf("Testing connection to %s...\n", apiClient.BaseURL())

	ctx, cancel := context.WithTimeout(cmd.Context(), verifyTimeout)
	defer cancel()

	response := apiClient.Health(ctx)
	if response.Success {
		cmd.Println(successStyle.Render("Success! Backend connection verified."))
		cmd.Printf("  Status: %d\n", response.StatusCode)
		return nil
	}

	cmd.Println(errorStyle.Render("Verification failed"))
	return fmt.Errorf("health check failed: %s", response.Error)
}
