package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/raphaelgruber/spoilerguard/internal/client"
	"github.com/raphaelgruber/spoilerguard/internal/models"
	"github.com/spf13/cobra"
)

var relationAt string

var relationCmd = &cobra.Command{
	Use:   "relation <relation-id>",
	Short: "Show one relation and its evidence",
	Long: `Show a single relation as known at your playback position.

Examples:
  spoilerguard relation r1 -t 12:00`,
	Args: cobra.ExactArgs(1),
	RunE: runRelation,
}

func init() {
	relationCmd.Flags().StringVarP(&relationAt, "at", "t", "0", "playback position: milliseconds, mm:ss or hh:mm:ss[.mmm]")
}

func runRelation(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cutoff, err := parsePlayback(relationAt)
	if err != nil {
		return err
	}
	resp, err := apiClient.Relation(ctx, args[0], cutoff)
	if err != nil {
		if client.IsNotFound(err) {
			return fmt.Errorf("relation %s is not known at %s", args[0], models.FormatMs(cutoff))
		}
		return fmt.Errorf("get relation: %w", err)
	}
	if outputJSON {
		return printJSON(os.Stdout, resp)
	}

	r := resp.Relation
	fmt.Printf("Relation: %s\n", r.ID)
	fmt.Printf("  %s -[%s]-> %s\n", r.FromCharacterID, r.RelationType, r.ToCharacterID)
	fmt.Printf("  Hypothesis: %s\n", yesNo(r.IsHypothesis))
	fmt.Printf("  Confidence: %.2f\n", r.Confidence)
	fmt.Printf("  Since: %s\n", models.FormatMs(r.ValidFromTimeMs))
	if r.ValidToTimeMs != nil {
		fmt.Printf("  Until: %s\n", models.FormatMs(*r.ValidToTimeMs))
	}
	printEvidences(os.Stdout, r.Evidences)
	printWarnings(os.Stdout, resp.Warnings)
	return nil
}
