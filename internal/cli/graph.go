package cli

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/raphaelgruber/spoilerguard/internal/models"
	"github.com/spf13/cobra"
)

var (
	graphPos        position
	graphFocus      string
	graphKinds      []string
	graphHypothesis bool
)

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Show the relationship graph at your playback position",
	Long: `Show the characters and relations known at your playback position.

Relations that started later, or that already ended, are left out.

Examples:
  spoilerguard graph --title show1 -e ep1 -t 30:00
  spoilerguard graph --title show1 -e ep1 -t 30:00 --focus c1 --kind ALLY,ENEMY
  spoilerguard graph --title show1 -e ep1 -t 30:00 --hypothesis=false`,
	Args: cobra.NoArgs,
	RunE: runGraph,
}

func init() {
	graphPos.register(graphCmd)
	graphCmd.Flags().StringVar(&graphFocus, "focus", "", "only relations touching this character id")
	graphCmd.Flags().StringSliceVar(&graphKinds, "kind", nil, "only these relation kinds")
	graphCmd.Flags().BoolVar(&graphHypothesis, "hypothesis", true, "include hypothesized relations")
}

func runGraph(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cutoff, err := graphPos.cutoff()
	if err != nil {
		return err
	}
	req := models.GraphRequest{
		TitleID:           graphPos.titleID,
		EpisodeID:         graphPos.episodeID,
		CurrentTimeMs:     cutoff,
		FocusCharacterID:  graphFocus,
		IncludeHypothesis: &graphHypothesis,
	}
	for _, k := range graphKinds {
		req.RelationKinds = append(req.RelationKinds, models.ParseRelationKind(k))
	}

	resp, err := apiClient.Graph(ctx, req)
	if err != nil {
		return fmt.Errorf("graph: %w", err)
	}
	if outputJSON {
		return printJSON(os.Stdout, resp)
	}
	if len(resp.Edges) == 0 {
		fmt.Println("No relations known yet")
		printWarnings(os.Stdout, resp.Warnings)
		return nil
	}

	names := make(map[string]string, len(resp.Nodes))
	for _, n := range resp.Nodes {
		names[n.ID] = n.Label
	}
	label := func(id string) string {
		if name, ok := names[id]; ok {
			return name
		}
		return id
	}

	rows := make([][]string, 0, len(resp.Edges))
	for _, e := range resp.Edges {
		kind := string(e.RelationType)
		if e.IsHypothesis {
			kind += "?"
		}
		rows = append(rows, []string{
			e.ID,
			label(e.FromCharacterID),
			kind,
			label(e.ToCharacterID),
			strconv.FormatFloat(e.Confidence, 'f', 2, 64),
			models.FormatMs(e.ValidFromTimeMs),
			strconv.Itoa(len(e.Evidences)),
		})
	}
	fmt.Println(renderTable(
		[]string{"ID", "FROM", "RELATION", "TO", "CONF", "SINCE", "EVIDENCE"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight},
	))
	fmt.Printf("%d characters, %d relations @ %s\n", len(resp.Nodes), len(resp.Edges), models.FormatMs(cutoff))
	printWarnings(os.Stdout, resp.Warnings)
	return nil
}
