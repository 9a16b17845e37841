package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/raphaelgruber/spoilerguard/internal/client"
	"github.com/spf13/cobra"
)

var characterPos position

var characterCmd = &cobra.Command{
	Use:   "character <character-id>",
	Short: "Show a character card at your playback position",
	Long: `Show what is known about a character so far: aliases, key events and
the lines that introduced them.

Examples:
  spoilerguard character c1 -e ep1 -t 18:45`,
	Args: cobra.ExactArgs(1),
	RunE: runCharacter,
}

func init() {
	characterPos.register(characterCmd)
}

func runCharacter(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cutoff, err := characterPos.cutoff()
	if err != nil {
		return err
	}
	resp, err := apiClient.CharacterCard(ctx, args[0], characterPos.episodeID, cutoff)
	if err != nil {
		if client.IsNotFound(err) {
			return fmt.Errorf("character not found: %s", args[0])
		}
		return fmt.Errorf("get character card: %w", err)
	}
	if outputJSON {
		return printJSON(os.Stdout, resp)
	}

	c := resp.Character
	fmt.Println(defaultTheme.completedStyle().Render(c.CanonicalName))
	if len(c.Aliases) > 0 {
		fmt.Printf("  Also known as: %s\n", strings.Join(c.Aliases, ", "))
	}
	if c.Description != "" {
		fmt.Printf("  %s\n", c.Description)
	}
	fmt.Printf("\n%s\n", resp.Summary.Text)
	for _, ev := range resp.Summary.KeyEvents {
		fmt.Printf("  • %s\n", ev)
	}
	printEvidences(os.Stdout, resp.Evidences)
	printWarnings(os.Stdout, resp.Warnings)
	return nil
}
