package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var version = "0.1.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "chatctl",
		Short: "voluntrack chat command-line client",
		Long: `chatctl talks to a voluntrack server or drives a local chat store.

Examples:
  chatctl login --server http://localhost:8080 --email asha@example.org --role volunteer
  chatctl conversations
  chatctl send conv_123 "See you at 8"
  chatctl watch

  # Local store, no server needed
  chatctl local list
  chatctl local open conv_demo_beach --redis redis://localhost:6379/0`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().String("settings", defaultSettingsPath(), "Settings file holding the server URL and token")
	root.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")

	root.AddCommand(newLoginCmd())
	root.AddCommand(newConversationsCmd())
	root.AddCommand(newMessagesCmd())
	root.AddCommand(newSendCmd())
	root.AddCommand(newWatchCmd())
	root.AddCommand(newLocalCmd())
	return root
}
