package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var indexNoWait bool

var indexCmd = &cobra.Command{
	Use:   "index <episode-id>",
	Short: "Rebuild the retrieval chunks of an episode",
	Long: `Start a background job that re-chunks and re-embeds an episode's
dialogue and refreshes the chunk cache.

Progress is shown until the job finishes; press Ctrl+C to leave it running
in the background.

Examples:
  spoilerguard index ep1
  spoilerguard index ep1 --no-wait`,
	Args: cobra.ExactArgs(1),
	RunE: runIndex,
}

func init() {
	indexCmd.Flags().BoolVar(&indexNoWait, "no-wait", false, "return as soon as the job is queued")
}

func runIndex(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	job, err := apiClient.IndexEpisode(ctx, args[0])
	if err != nil {
		return fmt.Errorf("start index: %w", err)
	}
	if outputJSON {
		return printJSON(os.Stdout, job)
	}
	if indexNoWait {
		fmt.Printf("Queued job %s\n", job.ID)
		return nil
	}
	return RunJobProgress(apiClient, job)
}
