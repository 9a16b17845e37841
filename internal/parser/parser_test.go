package parser

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/raphaelgruber/spoilerguard/internal/models"
)

const sample = "\ufeff1\r\n00:00:01,000 --> 00:00:02,500\r\nMINA: Where were you\r\nlast night?\r\n\r\n" +
	"2\n00:00:03,000 --> 00:00:04,200 X1:100\n<i>At the harbor.</i>\n\n" +
	"3\n00:00:05,5 --> 00:00:06,000\n\n" +
	"00:01:02.250 --> 01:00:00.000\n- 12:30 already?\n"

func TestParseSRT(t *testing.T) {
	got, err := ParseSRT(strings.NewReader(sample))
	if err != nil {
		t.Fatalf("ParseSRT() error = %v", err)
	}

	want := []models.DialogueLineInput{
		{StartMs: 1000, EndMs: 2500, SpeakerText: "MINA", Text: "Where were you last night?"},
		{StartMs: 3000, EndMs: 4200, Text: "At the harbor."},
		{StartMs: 62250, EndMs: 3600000, Text: "12:30 already?"},
	}
	if len(got) != len(want) {
		t.Fatalf("ParseSRT() got %d lines, want %d: %+v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestParseSRT_Malformed(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"bad timing", "1\n00:00:01 -> 00:00:02\ntext\n"},
		{"end before start", "1\n00:00:05,000 --> 00:00:02,000\ntext\n"},
		{"counter only", "7\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSRT(strings.NewReader(tt.input))
			if !errors.Is(err, ErrMalformedSRT) {
				t.Errorf("ParseSRT() error = %v, want ErrMalformedSRT", err)
			}
		})
	}
}

func TestParseSRT_Empty(t *testing.T) {
	got, err := ParseSRT(strings.NewReader("\n\n"))
	if err != nil {
		t.Fatalf("ParseSRT() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("ParseSRT() = %+v, want nothing", got)
	}
}

func testLines(n int) []models.DialogueLine {
	lines := make([]models.DialogueLine, 0, n)
	// reverse order on purpose
	for i := n; i >= 1; i-- {
		lines = append(lines, models.DialogueLine{
			ID:      fmt.Sprintf("l%d", i),
			StartMs: int64(i * 1000),
			EndMs:   int64(i*1000 + 500),
			Text:    fmt.Sprintf(" line %d ", i),
		})
	}
	return lines
}

func TestChunkLines(t *testing.T) {
	n := 0
	cfg := ChunkConfig{SizeLines: 3, NewID: func() string { n++; return fmt.Sprintf("k%d", n) }}

	chunks := ChunkLines("e1", testLines(7), cfg)
	if len(chunks) != 3 {
		t.Fatalf("ChunkLines() got %d chunks, want 3", len(chunks))
	}

	first := chunks[0]
	if first.ID != "k1" || first.EpisodeID != "e1" {
		t.Errorf("first chunk ids = %q/%q", first.ID, first.EpisodeID)
	}
	if first.StartMs != 1000 || first.EndMs != 3500 {
		t.Errorf("first chunk span = %d-%d, want 1000-3500", first.StartMs, first.EndMs)
	}
	if first.Text != "line 1 line 2 line 3" {
		t.Errorf("first chunk text = %q", first.Text)
	}
	if got := strings.Join(chunks[2].LineIDs, ","); got != "l7" {
		t.Errorf("last chunk lines = %q, want l7", got)
	}
}

func TestChunkLines_MinimumSize(t *testing.T) {
	chunks := ChunkLines("e1", testLines(4), ChunkConfig{SizeLines: 1})
	if len(chunks) != 2 {
		t.Fatalf("ChunkLines() got %d chunks, want 2", len(chunks))
	}
	if chunks[0].ID == "" || chunks[0].ID == chunks[1].ID {
		t.Errorf("chunk ids not unique: %q %q", chunks[0].ID, chunks[1].ID)
	}
}

func TestChunkLines_Empty(t *testing.T) {
	if chunks := ChunkLines("e1", nil, DefaultChunkConfig()); chunks != nil {
		t.Errorf("ChunkLines(nil) = %+v, want nil", chunks)
	}
}
