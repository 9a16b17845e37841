package cli

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/raphaelgruber/spoilerguard/internal/models"
	"github.com/spf13/cobra"
)

var (
	resolvePos  position
	resolveLine string
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <mention>",
	Short: "Find which character a name or nickname refers to",
	Long: `Resolve a mention such as a nickname or title to candidate characters,
ranked by confidence.

Examples:
  spoilerguard resolve --title show1 -e ep1 -t 10:00 "the boy"
  spoilerguard resolve --title show1 -e ep1 -t 10:00 --line l42 "Captain"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runResolve,
}

func init() {
	resolvePos.register(resolveCmd)
	resolveCmd.Flags().StringVar(&resolveLine, "line", "", "subtitle line id the mention appeared in")
}

func runResolve(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cutoff, err := resolvePos.cutoff()
	if err != nil {
		return err
	}
	resp, err := apiClient.ResolveEntity(ctx, models.ResolveEntityRequest{
		TitleID:       resolvePos.titleID,
		EpisodeID:     resolvePos.episodeID,
		CurrentTimeMs: cutoff,
		MentionText:   strings.Join(args, " "),
		ContextLineID: resolveLine,
	})
	if err != nil {
		return fmt.Errorf("resolve: %w", err)
	}
	if outputJSON {
		return printJSON(os.Stdout, resp)
	}
	if len(resp.Candidates) == 0 {
		fmt.Printf("No character matches %q\n", resp.MentionText)
		printWarnings(os.Stdout, resp.Warnings)
		return nil
	}

	rows := make([][]string, 0, len(resp.Candidates))
	for _, c := range resp.Candidates {
		rows = append(rows, []string{
			c.CharacterID,
			c.CanonicalName,
			strconv.FormatFloat(c.Confidence, 'f', 2, 64),
			c.Reason,
		})
	}
	fmt.Println(renderTable(
		[]string{"ID", "NAME", "CONF", "REASON"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft},
	))
	printWarnings(os.Stdout, resp.Warnings)
	return nil
}
