package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

// position is the playback position shared by episode-scoped commands.
type position struct {
	titleID   string
	episodeID string
	at        string
}

func (p *position) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&p.titleID, "title", "", "title id")
	cmd.Flags().StringVarP(&p.episodeID, "episode", "e", "", "episode id (required)")
	cmd.Flags().StringVarP(&p.at, "at", "t", "0", "playback position: milliseconds, mm:ss or hh:mm:ss[.mmm]")
	_ = cmd.MarkFlagRequired("episode")
}

func (p *position) cutoff() (int64, error) {
	return parsePlayback(p.at)
}

// parsePlayback converts a playback position into milliseconds. A bare
// integer is taken as milliseconds; colon-separated values as [hh:]mm:ss
// with an optional fractional second.
func parsePlayback(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty playback position")
	}
	if !strings.Contains(s, ":") {
		ms, err := strconv.ParseInt(s, 10, 64)
		if err != nil || ms < 0 {
			return 0, fmt.Errorf("invalid playback position %q", s)
		}
		return ms, nil
	}

	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return 0, fmt.Errorf("invalid playback position %q", s)
	}

	secPart := parts[len(parts)-1]
	var frac int64
	if whole, f, ok := strings.Cut(secPart, "."); ok {
		secPart = whole
		if f == "" || len(f) > 3 {
			return 0, fmt.Errorf("invalid playback position %q", s)
		}
		f += strings.Repeat("0", 3-len(f))
		v, err := strconv.ParseInt(f, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid playback position %q", s)
		}
		frac = v
	}
	parts[len(parts)-1] = secPart

	var total int64
	for i, p := range parts {
		v, err := strconv.ParseInt(p, 10, 64)
		if err != nil || v < 0 {
			return 0, fmt.Errorf("invalid playback position %q", s)
		}
		// Every field after the first is bounded by 60.
		if i > 0 && v >= 60 {
			return 0, fmt.Errorf("invalid playback position %q", s)
		}
		total = total*60 + v
	}
	return total*1000 + frac, nil
}
