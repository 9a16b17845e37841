package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/raphaelgruber/spoilerguard/internal/models"
	"github.com/raphaelgruber/spoilerguard/internal/parser"
	"github.com/spf13/cobra"
)

var (
	ingestEpisode string
	ingestLocal   bool
	ingestWait    bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <file.srt>",
	Short: "Add subtitle lines from an SRT file to an episode",
	Long: `Parse an SRT subtitle file and append its cues to an episode as dialogue
lines. A chunk rebuild for the episode is queued afterwards.

Cues of the form "NAME: text" keep NAME as the speaker.

By default the lines are sent to the server. With --local the configured
store is opened directly and the rebuild runs in-process.

Examples:
  spoilerguard ingest -e ep1 ep1.ko.srt
  spoilerguard ingest -e ep1 ep1.ko.srt --wait
  STORE_BACKEND=sqlite spoilerguard ingest -e ep1 ep1.ko.srt --local`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVarP(&ingestEpisode, "episode", "e", "", "episode id (required)")
	ingestCmd.Flags().BoolVar(&ingestLocal, "local", false, "write to the configured store instead of the server")
	ingestCmd.Flags().BoolVar(&ingestWait, "wait", false, "wait for the queued index job")
	_ = ingestCmd.MarkFlagRequired("episode")
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("open subtitles: %w", err)
	}
	defer f.Close()

	if ingestLocal {
		return ingestLocally(ctx, f)
	}

	lines, err := parser.ParseSRT(f)
	if err != nil {
		return fmt.Errorf("parse %s: %w", args[0], err)
	}
	resp, err := apiClient.IngestLines(ctx, ingestEpisode, models.IngestLinesRequest{Lines: lines})
	if err != nil {
		return fmt.Errorf("ingest: %w", err)
	}
	if outputJSON {
		return printJSON(os.Stdout, resp)
	}
	fmt.Printf("Inserted %d lines into %s\n", resp.InsertedCount, ingestEpisode)

	if resp.JobID == "" {
		return nil
	}
	if !ingestWait {
		fmt.Printf("Queued index job %s\n", resp.JobID)
		return nil
	}
	job, err := apiClient.GetJob(ctx, resp.JobID)
	if err != nil {
		return fmt.Errorf("get job: %w", err)
	}
	return RunJobProgress(apiClient, job)
}

func ingestLocally(ctx context.Context, f *os.File) error {
	a, err := openLocalApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	resp, err := a.Ingest.IngestSRT(ctx, ingestEpisode, f)
	if err != nil {
		return fmt.Errorf("ingest: %w", err)
	}

	// The process exits after this command, so the rebuild is always awaited.
	var summary string
	if resp.JobID != "" {
		job, err := a.Jobs.Wait(ctx, resp.JobID)
		if err != nil {
			return fmt.Errorf("wait for index job: %w", err)
		}
		if err := jobError(&job); err != nil {
			return err
		}
		summary = jobSummary(&job, defaultTheme)
	}

	if outputJSON {
		return printJSON(os.Stdout, resp)
	}
	fmt.Printf("Inserted %d lines into %s\n", resp.InsertedCount, ingestEpisode)
	fmt.Print(summary)
	return nil
}
