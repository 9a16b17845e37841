package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/raphaelgruber/spoilerguard/internal/models"
	"github.com/spf13/cobra"
)

var (
	historyTitle   string
	historyEpisode string
	historyLimit   int
	historyClear   bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show or clear your chat history for an episode",
	Long: `Show the questions and answers you exchanged for an episode.

History is stored per user; pass --user or set SPOILERGUARD_USER.

Examples:
  spoilerguard history -u alice -e ep1
  spoilerguard history -u alice -e ep1 -n 20
  spoilerguard history -u alice -e ep1 --clear`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().StringVar(&historyTitle, "title", "", "title id")
	historyCmd.Flags().StringVarP(&historyEpisode, "episode", "e", "", "episode id (required)")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 0, "max messages (server default when 0)")
	historyCmd.Flags().BoolVar(&historyClear, "clear", false, "delete the history instead of showing it")
	_ = historyCmd.MarkFlagRequired("episode")
}

func runHistory(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	if userID == "" {
		return errors.New("history is per user: pass --user")
	}

	if historyClear {
		resp, err := apiClient.ClearHistory(ctx, historyTitle, historyEpisode)
		if err != nil {
			return fmt.Errorf("clear history: %w", err)
		}
		if outputJSON {
			return printJSON(os.Stdout, resp)
		}
		fmt.Printf("Deleted %d messages in %d sessions\n", resp.DeletedMessages, resp.DeletedSessions)
		return nil
	}

	resp, err := apiClient.History(ctx, historyTitle, historyEpisode, historyLimit)
	if err != nil {
		return fmt.Errorf("get history: %w", err)
	}
	if outputJSON {
		return printJSON(os.Stdout, resp)
	}
	if len(resp.Messages) == 0 {
		fmt.Println("No history found")
		return nil
	}

	for _, m := range resp.Messages {
		who := defaultTheme.statusStyle().Render(m.Role)
		fmt.Printf("%s %s @ %s\n", who, m.CreatedAt.Format("2006-01-02 15:04"), models.FormatMs(m.CurrentTimeMs))
		fmt.Printf("  %s\n\n", m.Content)
	}
	return nil
}
