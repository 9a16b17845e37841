package prompts

import (
	"testing"

	"github.com/raphaelgruber/spoilerguard/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalog(t *testing.T) {
	c := Default()
	require.NotNil(t, c)

	assert.Contains(t, c.System.QA, "JSON")
	assert.Equal(t, "English", c.LanguageName(models.LangEnglish))
	assert.Equal(t, "Korean", c.LanguageName("ja"))
	assert.InDelta(t, 0.93, c.Casual.Confidence, 1e-9)
	assert.Equal(t, 230, c.Recap.MaxRunes)
	assert.Len(t, c.Recap.WatchPoints, 3)
	assert.Same(t, c, Default())
}

func TestStyleFallbacks(t *testing.T) {
	c := Default()

	assert.Contains(t, c.StyleInstruction(models.StyleCritic), "film-critic")
	assert.Equal(t, c.StyleInstruction(models.StyleFriend), c.StyleInstruction("PIRATE"))
	assert.Contains(t, c.RecapStyleInstruction(models.StyleCritic), "pacing")

	assert.Equal(t, c.CasualReply(models.LangKorean, models.StyleFriend), c.CasualReply("ja", "PIRATE"))
	assert.Contains(t, c.MenuReply(models.LangEnglish, models.StyleAssistant), "Recommended dinner")
	assert.Equal(t, "Intent: casual chat", c.CasualIntentLabel(models.LangEnglish))
}

func TestFallbackConclusion(t *testing.T) {
	c := Default()
	assert.Equal(t, "핵심은 Mina의 최근 발언이 갈등의 단서로 보인다는 점이야.", c.FallbackConclusion(models.LangKorean, models.StyleFriend, "Mina"))
	assert.Contains(t, c.FallbackConclusion(models.LangKorean, models.StyleCritic, ""), "인물")
	assert.Contains(t, c.FallbackConclusion(models.LangEnglish, models.StyleAssistant, ""), "someone")
	assert.Contains(t, c.FallbackInterpretations("ja")[0], "모순")
}

func TestRecapSeed(t *testing.T) {
	c := Default()
	assert.Equal(t, "갈등과 의심의 흐름", c.RecapSeed(models.RecapConflictFocused))
	assert.Equal(t, "지난 이야기 핵심", c.RecapSeed(""))
}

func TestParseRejectsIncompleteCatalog(t *testing.T) {
	_, err := Parse([]byte("system:\n  qa: hello\n"))
	assert.ErrorIs(t, err, ErrIncomplete)

	_, err = Parse([]byte("system: [unclosed"))
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrIncomplete)
}
