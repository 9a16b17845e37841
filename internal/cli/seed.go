package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/raphaelgruber/spoilerguard/internal/service"
	"github.com/spf13/cobra"
)

var seedNoIndex bool

var seedCmd = &cobra.Command{
	Use:   "seed <fixture.yaml>",
	Short: "Load a title fixture into the configured store",
	Long: `Load a YAML fixture (title, episodes with dialogue lines, characters,
relations and relation evidence) straight into the configured store, then
build the retrieval chunks of every loaded episode.

The store is opened in-process; the server does not need to be running.

Examples:
  spoilerguard seed testdata/fixture.yaml
  STORE_BACKEND=sqlite SQLITE_PATH=./sg.db spoilerguard seed show.yaml
  spoilerguard seed show.yaml --no-index`,
	Args: cobra.ExactArgs(1),
	RunE: runSeed,
}

func init() {
	seedCmd.Flags().BoolVar(&seedNoIndex, "no-index", false, "skip building chunks after loading")
}

func runSeed(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("open fixture: %w", err)
	}
	defer f.Close()

	fx, err := service.ParseFixture(f)
	if err != nil {
		return fmt.Errorf("parse %s: %w", args[0], err)
	}

	a, err := openLocalApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	result, err := a.Ingest.LoadFixture(ctx, fx)
	if err != nil {
		return fmt.Errorf("load fixture: %w", err)
	}

	var job service.Job
	if !seedNoIndex && len(result.EpisodeIDs) > 0 {
		started, err := a.Jobs.StartIndex(result.EpisodeIDs...)
		if err != nil {
			return fmt.Errorf("start index: %w", err)
		}
		job, err = a.Jobs.Wait(ctx, started.ID)
		if err != nil {
			return fmt.Errorf("wait for index job: %w", err)
		}
		if err := jobError(&job); err != nil {
			return err
		}
	}

	if outputJSON {
		return printJSON(os.Stdout, result)
	}

	fmt.Println(defaultTheme.completedStyle().Render("✓ Loaded " + result.TitleID))
	fmt.Printf("  Episodes:   %d\n", result.Episodes)
	fmt.Printf("  Lines:      %d\n", result.Lines)
	fmt.Printf("  Characters: %d\n", result.Characters)
	fmt.Printf("  Relations:  %d\n", result.Relations)
	fmt.Printf("  Evidence:   %d\n", result.Evidence)
	if job.ID != "" {
		fmt.Printf("\nIndexed (job %s):\n", job.ID)
		fmt.Print(jobSummary(&job, defaultTheme))
	}
	return nil
}
