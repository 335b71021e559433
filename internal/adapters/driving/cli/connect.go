package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var connectToken string

var connectCmd = &cobra.Command{
	Use:   "connect [url]",
	Short: "Store the game server connection",
	Long: `Stores the server URL and session token used by every other command.

The URL is the server's socket endpoint, e.g. wss://game.example.com/socket.
The session token is prompted for interactively unless --token is given.`,
	Args: cobra.ExactArgs(1),
	RunE: runConnect,
}

var disconnectCmd = &cobra.Command{
	Use:   "disconnect",
	Short: "Forget the stored connection",
	RunE:  runDisconnect,
}

func init() {
	connectCmd.Flags().StringVar(&connectToken, "token", "", "session token (prompted when omitted)")
	rootCmd.AddCommand(connectCmd)
	rootCmd.AddCommand(disconnectCmd)
}

func runConnect(cmd *cobra.Command, args []string) error {
	if configStore == nil {
		return errors.New("config store not configured")
	}

	url := strings.TrimSpace(args[0])
	if !strings.HasPrefix(url, "ws://") && !strings.HasPrefix(url, "wss://") {
		return fmt.Errorf("server url must use the ws:// or wss:// scheme, got %q", url)
	}

	token := connectToken
	if token == "" {
		read, err := promptToken(cmd)
		if err != nil {
			return err
		}
		token = read
	}
	if token == "" {
		return errors.New("a session token is required")
	}

	if err := configStore.Set("server.url", url); err != nil {
		return fmt.Errorf("failed to save server url: %w", err)
	}
	if err := configStore.Set("server.token", token); err != nil {
		return fmt.Errorf("failed to save session token: %w", err)
	}

	cmd.Printf("Connection saved: %s\n", url)
	return nil
}

func runDisconnect(cmd *cobra.Command, _ []string) error {
	if configStore == nil {
		return errors.New("config store not configured")
	}
	if err := configStore.Set("server.url", ""); err != nil {
		return fmt.Errorf("failed to clear server url: %w", err)
	}
	if err := configStore.Set("server.token", ""); err != nil {
		return fmt.Errorf("failed to clear session token: %w", err)
	}
	cmd.Println("Connection forgotten.")
	return nil
}

// promptToken reads the session token without echoing when stdin is a
// terminal, falling back to a plain line read otherwise.
func promptToken(cmd *cobra.Command) (string, error) {
	cmd.Print("Session token: ")
	if in, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(in.Fd())) {
		raw, err := term.ReadPassword(int(in.Fd()))
		cmd.Println()
		if err != nil {
			return "", fmt.Errorf("failed to read token: %w", err)
		}
		return strings.TrimSpace(string(raw)), nil
	}
	var line string
	if _, err := fmt.Fscanln(cmd.InOrStdin(), &line); err != nil {
		return "", fmt.Errorf("failed to read token: %w", err)
	}
	return strings.TrimSpace(line), nil
}
