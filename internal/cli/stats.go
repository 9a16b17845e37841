package cli

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/raphaelgruber/spoilerguard/internal/metrics"
	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show server runtime statistics",
	Long: `Show in-memory runtime statistics of the server since its last restart:
call counts and latencies of embedding, LLM, retrieval, QA and indexing,
plus LLM token totals.

Examples:
  spoilerguard stats
  spoilerguard stats --json`,
	Args: cobra.NoArgs,
	RunE: runStats,
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	stats, err := apiClient.Stats(ctx)
	if err != nil {
		return fmt.Errorf("get server stats: %w", err)
	}
	if outputJSON {
		return printJSON(os.Stdout, stats)
	}
	printServerStats(stats)
	return nil
}

// printServerStats displays server runtime statistics.
func printServerStats(stats *metrics.Snapshot) {
	uptime := time.Duration(stats.UptimeSeconds * float64(time.Second)).Round(time.Second)
	fmt.Printf("Server Statistics (in-memory, since restart)\n")
	fmt.Printf("Uptime: %s\n\n", uptime)

	ops := []struct {
		name string
		op   *metrics.OperationSnapshot
	}{
		{"embedding", stats.Embedding},
		{"llm generate", stats.LLMGenerate},
		{"llm stream", stats.LLMStream},
		{"retrieval vector", stats.RetrievalVector},
		{"retrieval cache", stats.RetrievalCache},
		{"retrieval scan", stats.RetrievalScan},
		{"qa", stats.QA},
		{"index", stats.Index},
	}

	rows := make([][]string, 0, len(ops))
	for _, o := range ops {
		if o.op == nil {
			continue
		}
		rows = append(rows, []string{
			o.name,
			strconv.FormatInt(o.op.Count, 10),
			strconv.FormatInt(o.op.Errors, 10),
			fmt.Sprintf("%.1f", o.op.AvgTimeMs),
			strconv.FormatInt(o.op.MinTimeMs, 10),
			strconv.FormatInt(o.op.MaxTimeMs, 10),
			tokenCell(o.op.TotalInputTokens),
			tokenCell(o.op.TotalOutputTokens),
		})
	}
	if len(rows) == 0 {
		fmt.Println("No operations recorded yet")
		return
	}
	right := alignRight
	fmt.Println(renderTable(
		[]string{"OPERATION", "CALLS", "ERRORS", "AVG MS", "MIN MS", "MAX MS", "TOKENS IN", "TOKENS OUT"},
		rows,
		[]columnAlignment{alignLeft, right, right, right, right, right, right, right},
	))
}

func tokenCell(v *int64) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatInt(*v, 10)
}
