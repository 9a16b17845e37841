// Package cli provides the command-line interface for spoilerguard.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/raphaelgruber/spoilerguard/internal/app"
	"github.com/raphaelgruber/spoilerguard/internal/client"
	"github.com/raphaelgruber/spoilerguard/internal/config"
	"github.com/spf13/cobra"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	verbose   bool
	serverURL string
	userID    string

	// Global config and API client
	cfg       config.Config
	apiClient *client.Client
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "spoilerguard",
	Short: "Spoiler-free questions about the episode you are watching",
	Long: `Spoilerguard answers questions about an episode using only the dialogue
you have already seen. Every answer, recap, graph and character card is cut
at your current playback position.

Most commands talk to a running spoilerguard-server. Seeding fixtures and
local SRT ingest open the configured store directly.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}

		cfg = config.Load()
		if serverURL == "" {
			serverURL = cfg.ServerURL
		}
		apiClient = client.New(serverURL).WithUser(userID)
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "server URL (default $SPOILERGUARD_SERVER_URL)")
	rootCmd.PersistentFlags().StringVarP(&userID, "user", "u", os.Getenv("SPOILERGUARD_USER"), "user id for chat history")

	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(recapCmd)
	rootCmd.AddCommand(graphCmd)
	rootCmd.AddCommand(relationCmd)
	rootCmd.AddCommand(characterCmd)
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(jobsCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(statsCmd)
}

// openLocalApp wires the store and services in-process for commands that
// bypass the server. The caller must Close the app.
func openLocalApp(ctx context.Context) (*app.App, error) {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.StoreBackend, err)
	}
	return a, nil
}
