package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/raphaelgruber/spoilerguard/internal/models"
	"github.com/raphaelgruber/spoilerguard/internal/service"
	"github.com/spf13/cobra"
)

var (
	askPos        position
	askLanguage   string
	askStyle      string
	askCharacters []string
	askRelation   string
	askStream     bool
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a question about the episode so far",
	Long: `Ask a question about the episode up to your playback position.

The answer only uses dialogue you have already seen; evidence lines are
quoted with their timestamps. With --stream the request runs over a
websocket and pipeline progress is shown while the answer is generated.

Examples:
  spoilerguard ask -e ep1 -t 12:30 "Why is Mina angry at Joon?"
  spoilerguard ask -e ep1 -t 754000 --lang en --style CRITIC "Who lied?"
  spoilerguard ask -e ep1 -t 12:30 --stream "What happened at the station?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askPos.register(askCmd)
	askCmd.Flags().StringVar(&askLanguage, "lang", "ko", "answer language (ko, en)")
	askCmd.Flags().StringVar(&askStyle, "style", "FRIEND", "response style (FRIEND, ASSISTANT, CRITIC)")
	askCmd.Flags().StringSliceVar(&askCharacters, "character", nil, "focus on character ids")
	askCmd.Flags().StringVar(&askRelation, "relation", "", "focus on a relation id")
	askCmd.Flags().BoolVar(&askStream, "stream", false, "stream the answer over a websocket")
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cutoff, err := askPos.cutoff()
	if err != nil {
		return err
	}
	req := models.QARequest{
		TitleID:       askPos.titleID,
		EpisodeID:     askPos.episodeID,
		CurrentTimeMs: cutoff,
		Question:      strings.Join(args, " "),
		Language:      models.ParseLanguage(askLanguage),
		ResponseStyle: models.ParseResponseStyle(askStyle),
		UserID:        userID,
	}
	if len(askCharacters) > 0 || askRelation != "" {
		req.Focus = &models.Focus{CharacterIDs: askCharacters, RelationID: askRelation}
	}

	var resp *models.QAResponse
	if askStream {
		resp, err = streamAnswer(ctx, req)
	} else {
		resp, err = apiClient.Ask(ctx, req)
	}
	if err != nil {
		return fmt.Errorf("ask: %w", err)
	}

	if outputJSON {
		return printJSON(os.Stdout, resp)
	}
	printAnswer(resp)
	return nil
}

// streamAnswer follows the pipeline over the websocket. Status lines go to
// stderr; raw model tokens are echoed there too in verbose mode.
func streamAnswer(ctx context.Context, req models.QARequest) (*models.QAResponse, error) {
	tokens := 0
	resp, err := apiClient.AskStream(ctx, req, func(e service.Event) error {
		switch e.Type {
		case service.EventStatus:
			fmt.Fprintln(os.Stderr, defaultTheme.statusStyle().Render("["+e.Message+"]"))
		case service.EventToken:
			tokens++
			if verbose {
				fmt.Fprint(os.Stderr, defaultTheme.hintStyle().Render(e.Token))
			}
		}
		return nil
	})
	if verbose && tokens > 0 {
		fmt.Fprintln(os.Stderr)
	}
	return resp, err
}

func printAnswer(resp *models.QAResponse) {
	fmt.Println(resp.Answer.Conclusion)
	for _, c := range resp.Answer.Context {
		fmt.Printf("  - %s\n", c)
	}
	if len(resp.Answer.Interpretations) > 0 {
		fmt.Println("\nInterpretations:")
		for _, in := range resp.Answer.Interpretations {
			fmt.Printf("  [%s %.2f] %s\n", in.Label, in.Confidence, in.Text)
		}
	}

	printEvidences(os.Stdout, resp.Evidences)

	if resp.RelatedGraphFocus != nil {
		fmt.Printf("\nRelated relation: %s\n", resp.RelatedGraphFocus.RelationID)
	}

	meta := fmt.Sprintf("\n%s @ %s · model %s · confidence %.2f",
		resp.Meta.EpisodeID, models.FormatMs(resp.Meta.CurrentTimeMs), resp.Meta.Model, resp.Answer.OverallConfidence)
	fmt.Println(defaultTheme.hintStyle().Render(meta))

	printWarnings(os.Stdout, resp.Warnings)
}
