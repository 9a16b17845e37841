package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/raphaelgruber/spoilerguard/internal/models"
	"golang.org/x/term"
)

var outputJSON bool

func init() {
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "print raw JSON responses")
}

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := range columns {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := range columns {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	columnConfigs := make([]table.ColumnConfig, 0, columns)
	for i := range columns {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		columnConfigs = append(columnConfigs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
			WidthMax:    60,
		})
	}
	tw.SetColumnConfigs(columnConfigs)

	return tw.Render()
}

// isTerminal reports whether stdout is an interactive terminal.
func isTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

func printEvidences(w io.Writer, evidences []models.Evidence) {
	if len(evidences) == 0 {
		return
	}
	fmt.Fprintf(w, "\nEvidence (%d):\n", len(evidences))
	for _, ev := range evidences {
		fmt.Fprintf(w, "  @ %s", models.FormatMs(ev.RepresentativeTimeMs))
		if ev.Summary != "" {
			fmt.Fprintf(w, "  %s", ev.Summary)
		}
		fmt.Fprintln(w)
		for _, l := range ev.Lines {
			speaker := l.SpeakerText
			if speaker == "" {
				speaker = "?"
			}
			fmt.Fprintf(w, "    [%s] %s: %s\n", models.FormatMs(l.StartMs), speaker, l.Text)
		}
	}
}

func printWarnings(w io.Writer, warnings []models.Warning) {
	if len(warnings) == 0 {
		return
	}
	var b strings.Builder
	fmt.Fprintf(&b, "\nWarnings (%d):\n", len(warnings))
	for _, warn := range warnings {
		fmt.Fprintf(&b, "  • %s: %s\n", warn.Code, warn.Message)
	}
	fmt.Fprint(w, defaultTheme.errorStyle().Render(b.String()))
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
