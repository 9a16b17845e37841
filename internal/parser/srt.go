// Package parser turns subtitle sources into dialogue lines and groups lines
// into retrieval chunks.
package parser

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/raphaelgruber/spoilerguard/internal/models"
)

// ErrMalformedSRT is returned when a cue cannot be parsed.
var ErrMalformedSRT = errors.New("malformed srt")

var (
	timingPattern  = regexp.MustCompile(`^(\d{1,2}):(\d{2}):(\d{2})[,.](\d{1,3})\s*-->\s*(\d{1,2}):(\d{2}):(\d{2})[,.](\d{1,3})`)
	speakerPattern = regexp.MustCompile(`^([\p{L}][\p{L}\p{N} ._'-]{0,23}?)\s*[:：]\s*(.+)$`)
	tagPattern     = regexp.MustCompile(`</?[a-zA-Z][^>]*>|\{\\[^}]*\}`)
)

// ParseSRT reads SubRip cues. Multi-line cue text is joined with a space and
// formatting tags are removed. A leading "NAME:" is split off into the
// speaker. Cues without text are skipped.
func ParseSRT(r io.Reader) ([]models.DialogueLineInput, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var (
		out   []models.DialogueLineInput
		block []string
		cue   int
	)
	flush := func() error {
		if len(block) == 0 {
			return nil
		}
		cue++
		line, ok, err := parseCue(block)
		block = block[:0]
		if err != nil {
			return fmt.Errorf("%w: cue %d: %w", ErrMalformedSRT, cue, err)
		}
		if ok {
			out = append(out, line)
		}
		return nil
	}

	first := true
	for scanner.Scan() {
		text := strings.TrimRight(scanner.Text(), "\r")
		if first {
			text = strings.TrimPrefix(text, "\ufeff")
			first = false
		}
		if strings.TrimSpace(text) == "" {
			if err := flush(); err != nil {
				return nil, err
			}
			continue
		}
		block = append(block, text)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read srt: %w", err)
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return out, nil
}

func parseCue(block []string) (models.DialogueLineInput, bool, error) {
	// the numeric counter is optional
	if _, err := strconv.Atoi(strings.TrimSpace(block[0])); err == nil {
		block = block[1:]
	}
	if len(block) == 0 {
		return models.DialogueLineInput{}, false, errors.New("missing timing line")
	}

	m := timingPattern.FindStringSubmatch(strings.TrimSpace(block[0]))
	if m == nil {
		return models.DialogueLineInput{}, false, fmt.Errorf("bad timing line %q", block[0])
	}
	start := timestampMs(m[1], m[2], m[3], m[4])
	end := timestampMs(m[5], m[6], m[7], m[8])
	if end < start {
		return models.DialogueLineInput{}, false, fmt.Errorf("end %d before start %d", end, start)
	}

	parts := make([]string, 0, len(block)-1)
	for _, l := range block[1:] {
		l = strings.TrimSpace(tagPattern.ReplaceAllString(l, ""))
		l = strings.TrimPrefix(l, "- ")
		if l != "" {
			parts = append(parts, l)
		}
	}
	text := strings.Join(parts, " ")
	if text == "" {
		return models.DialogueLineInput{}, false, nil
	}

	in := models.DialogueLineInput{StartMs: start, EndMs: end, Text: text}
	if sm := speakerPattern.FindStringSubmatch(text); sm != nil {
		in.SpeakerText = strings.TrimSpace(sm[1])
		in.Text = strings.TrimSpace(sm[2])
	}
	return in, true, nil
}

func timestampMs(h, m, s, frac string) int64 {
	hh, _ := strconv.ParseInt(h, 10, 64)
	mm, _ := strconv.ParseInt(m, 10, 64)
	ss, _ := strconv.ParseInt(s, 10, 64)
	// "5" and "500" are both half a second
	for len(frac) < 3 {
		frac += "0"
	}
	ms, _ := strconv.ParseInt(frac, 10, 64)
	return ((hh*60+mm)*60+ss)*1000 + ms
}
