package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/raphaelgruber/spoilerguard/internal/models"
	"github.com/spf13/cobra"
)

var (
	recapPos      position
	recapPreset   string
	recapMode     string
	recapLanguage string
	recapStyle    string
)

var recapCmd = &cobra.Command{
	Use:   "recap",
	Short: "Summarize the episode up to your playback position",
	Long: `Summarize what happened so far, without spoilers.

Presets: TWENTY_SEC, ONE_MIN, THREE_MIN
Modes:   GENERAL, CHARACTER_FOCUSED, CONFLICT_FOCUSED

Examples:
  spoilerguard recap -e ep1 -t 25:00
  spoilerguard recap -e ep1 -t 25:00 --preset THREE_MIN --mode CONFLICT_FOCUSED`,
	Args: cobra.NoArgs,
	RunE: runRecap,
}

func init() {
	recapPos.register(recapCmd)
	recapCmd.Flags().StringVar(&recapPreset, "preset", string(models.RecapOneMin), "recap length")
	recapCmd.Flags().StringVar(&recapMode, "mode", string(models.RecapGeneral), "recap focus")
	recapCmd.Flags().StringVar(&recapLanguage, "lang", "ko", "recap language (ko, en)")
	recapCmd.Flags().StringVar(&recapStyle, "style", "FRIEND", "response style (FRIEND, ASSISTANT, CRITIC)")
}

func runRecap(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cutoff, err := recapPos.cutoff()
	if err != nil {
		return err
	}
	resp, err := apiClient.Recap(ctx, models.RecapRequest{
		TitleID:       recapPos.titleID,
		EpisodeID:     recapPos.episodeID,
		CurrentTimeMs: cutoff,
		Preset:        models.RecapPreset(strings.ToUpper(recapPreset)),
		Mode:          models.RecapMode(strings.ToUpper(recapMode)),
		Language:      models.ParseLanguage(recapLanguage),
		ResponseStyle: models.ParseResponseStyle(recapStyle),
	})
	if err != nil {
		return fmt.Errorf("recap: %w", err)
	}
	if outputJSON {
		return printJSON(os.Stdout, resp)
	}

	fmt.Println(resp.Recap.Text)
	for _, b := range resp.Recap.Bullets {
		fmt.Printf("  • %s\n", b)
	}
	if len(resp.WatchPoints) > 0 {
		fmt.Println("\nWatch for:")
		for _, wp := range resp.WatchPoints {
			fmt.Printf("  - %s\n", wp)
		}
	}
	printEvidences(os.Stdout, resp.Evidences)
	printWarnings(os.Stdout, resp.Warnings)
	return nil
}
