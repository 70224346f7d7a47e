package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/promptconduit/sessionsync/internal/client"
)

var (
	loginAPIURL   string
	loginAPIKey   string
	loginNoVerify bool
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Save the backend endpoint and API key",
	Long: `Prompt for the backend endpoint and API key, check them against the
health endpoint, and save them to the config file.

The API key is read without echo when stdin is a terminal. Both values can
also be passed as flags for scripted setups.`,
	Args: cobra.NoArgs,
	RunE: runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove the saved endpoint and API key",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		fc, err := client.LoadFileConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if fc == nil || (fc.APIKey == "" && fc.APIURL == "") {
			cmd.Println("Not logged in")
			return nil
		}

		fc.APIKey = ""
		fc.APIURL = ""
		if err := client.SaveFileConfig(fc); err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}
		cmd.Println(successStyle.Render("Logged out"))
		if os.Getenv(client.EnvAPIKey) != "" {
			cmd.Println(warnStyle.Render(client.EnvAPIKey + " is still set in the environment"))
		}
		return nil
	},
}

func init() {
	loginCmd.Flags().StringVar(&loginAPIURL, "api-url", "", "Backend endpoint")
	loginCmd.Flags().StringVar(&loginAPIKey, "api-key", "", "API key")
	loginCmd.Flags().BoolVar(&loginNoVerify, "no-verify", false, "Save without calling the health endpoint")
}

func runLogin(cmd *cobra.Command, args []string) error {
	fc, err := client.LoadFileConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if fc == nil {
		fc = &client.FileConfig{}
	}

	reader := bufio.NewReader(cmd.InOrStdin())

	apiURL := loginAPIURL
	if apiURL == "" {
		prompt := "Backend URL"
		if fc.APIURL != "" {
			prompt += fmt.Sprintf(" [%s]", fc.APIURL)
		}
		if apiURL, err = readLine(cmd, reader, prompt+": "); err != nil {
			return err
		}
		if apiURL == "" {
			apiURL = fc.APIURL
		}
	}
	if apiURL == "" {
		return fmt.Errorf("a backend URL is required")
	}

	apiKey := loginAPIKey
	if apiKey == "" {
		if apiKey, err = readSecret(cmd, reader, "API key: "); err != nil {
			return err
		}
	}
	if apiKey == "" {
		return fmt.Errorf("an API key is required")
	}

	if !loginNoVerify {
		cfg := client.LoadConfig()
		cfg.APIURL = apiURL
		cfg.APIKey = apiKey

		ctx, cancel := context.WithTimeout(cmd.Context(), verifyTimeout)
		defer cancel()

		if resp := client.NewClient(cfg, Version).Health(ctx); !resp.Success {
			return fmt.Errorf("could not verify credentials against %s: %s", client.SiteURL(apiURL), resp.Error)
		}
	}

	fc.APIURL = apiURL
	fc.APIKey = apiKey
	if err := client.SaveFileConfig(fc); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	cmd.Println(successStyle.Render("Logged in"))
	cmd.Printf("  API URL: %s\n", apiURL)
	cmd.Printf("  API Key: %s\n", client.MaskAPIKey(apiKey))
	cmd.Printf("  Config:  %s\n", client.ConfigPath())
	return nil
}

func readLine(cmd *cobra.Command, reader *bufio.Reader, prompt string) (string, error) {
	cmd.Print(prompt)
	line, err := reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// readSecret reads without echo from a terminal and falls back to a plain line otherwise
func readSecret(cmd *cobra.Command, reader *bufio.Reader, prompt string) (string, error) {
	if f, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		cmd.Print(prompt)
		b, err := term.ReadPassword(int(f.Fd()))
		cmd.Println()
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(b)), nil
	}
	return readLine(cmd, reader, prompt)
}
