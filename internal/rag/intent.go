package rag

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/raphaelgruber/spoilerguard/internal/models"
)

var (
	casualKeywords = []string{
		"안녕", "하이", "hello", "hi", "반가워", "고마워", "thanks", "thankyou",
		"날씨", "몇시", "시간", "농담", "joke", "이름", "너누구", "뭐해", "심심해",
		"심심", "고민", "그냥", "추천", "도와줘", "조언", "고민상담",
		"recommend", "help", "advice",
	}

	casualPrefixes = []string{
		"안녕", "하이", "hello", "hi", "너 누구", "몇 시", "나 오늘", "나 요즘", "요즘",
	}

	episodeKeywords = []string{
		"에피소드", "작품", "장면", "대사", "자막", "영상", "타임라인", "관계", "인물",
		"갈등", "근거", "요약", "스토리", "내용",
		"episode", "scene", "subtitle", "character", "plot", "story", "timeline",
	}

	casualPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\bwhat should i eat\b`),
		regexp.MustCompile(`\bwhat to eat\b`),
		regexp.MustCompile(`(오늘|저녁|점심|아침).*(먹을까|먹지|메뉴)`),
		regexp.MustCompile(`뭐\s*먹`),
		regexp.MustCompile(`(추천해줘|추천해주세요)`),
		regexp.MustCompile(`(배고파|헛가래)`),
		regexp.MustCompile(`(뭐해|뭐하냐|뭐할까)`),
		regexp.MustCompile(`(도와줘|조언해줘|상담해줘)`),
		regexp.MustCompile(`(?i)(recommend|advice|help me)`),
	}

	spaceRun = regexp.MustCompile(`\s+`)
)

// Intent scoring constants.
const (
	episodeBaseScore      = 0.2
	casualPrefixBoost     = 0.55
	casualPatternBoost    = 0.7
	casualKeywordStep     = 0.18
	casualKeywordCap      = 0.5
	episodeKeywordStep    = 0.16
	episodeKeywordCap     = 0.6
	timelineBoost         = 0.15
	shortUtteranceBoost   = 0.15
	shortQuestionBoost    = 0.18
	maxIntentConfidence   = 0.98
	emptyQuestionCasual   = 0.9
	shortUtteranceTokens  = 2
	shortQuestionMaxToken = 12
)

// NormalizeQuestion folds case and compatibility forms, replaces
// punctuation and symbols with spaces and collapses whitespace.
func NormalizeQuestion(question string) string {
	folded := fold(question)
	stripped := strings.Map(func(r rune) rune {
		if unicode.IsPunct(r) || unicode.IsSymbol(r) {
			return ' '
		}
		return r
	}, folded)
	return strings.TrimSpace(spaceRun.ReplaceAllString(stripped, " "))
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}

// ClassifyIntent decides whether a question is casual chat or about the
// episode. Casual questions skip retrieval entirely. The decision is
// deterministic and reports the signals that fired in Reason.
func ClassifyIntent(question string) models.IntentResult {
	normalized := NormalizeQuestion(question)
	if normalized == "" {
		return models.IntentResult{
			Intent:     models.IntentCasual,
			Confidence: emptyQuestionCasual,
			Reason:     "empty_question",
		}
	}

	compact := strings.ReplaceAll(normalized, " ", "")
	tokens := tokenPattern.FindAllString(normalized, -1)
	tokenSet := make(map[string]struct{}, len(tokens))
	for _, tok := range tokens {
		tokenSet[tok] = struct{}{}
	}

	episode := episodeBaseScore
	casual := 0.0
	var reasons []string

	if hasCasualPrefix(normalized, compact) {
		casual += casualPrefixBoost
		reasons = append(reasons, "casual_prefix")
	}

	for _, p := range casualPatterns {
		if p.MatchString(normalized) {
			casual += casualPatternBoost
			reasons = append(reasons, "casual_pattern")
			break
		}
	}

	casualHits := 0
	for _, kw := range casualKeywords {
		if isASCII(kw) {
			if _, ok := tokenSet[kw]; ok {
				casualHits++
			}
		} else if strings.Contains(compact, kw) {
			casualHits++
		}
	}
	if casualHits > 0 {
		casual += min(casualKeywordCap, float64(casualHits)*casualKeywordStep)
		reasons = append(reasons, fmt.Sprintf("casual_keywords=%d", casualHits))
	}

	episodeHits := 0
	for _, kw := range episodeKeywords {
		if isASCII(kw) {
			if hasTokenPrefix(tokens, kw) {
				episodeHits++
			}
		} else if strings.Contains(compact, kw) {
			episodeHits++
		}
	}
	if episodeHits > 0 {
		episode += min(episodeKeywordCap, float64(episodeHits)*episodeKeywordStep)
		reasons = append(reasons, fmt.Sprintf("episode_keywords=%d", episodeHits))
	}

	if hasDigitToken(tokens) && (strings.Contains(normalized, "분") || strings.Contains(question, ":")) {
		episode += timelineBoost
		reasons = append(reasons, "timeline_expression")
	}

	if len(tokens) <= shortUtteranceTokens && casual >= 0.5 {
		casual += shortUtteranceBoost
		reasons = append(reasons, "short_casual_utterance")
	}

	if episodeHits == 0 && len(tokens) <= shortQuestionMaxToken &&
		(strings.Contains(question, "?") || strings.HasSuffix(normalized, "까")) {
		casual += shortQuestionBoost
		reasons = append(reasons, "short_question_without_episode_signals")
	}

	result := func(intent models.Intent, confidence float64, fallbackReason string) models.IntentResult {
		reason := strings.Join(reasons, ",")
		if reason == "" {
			reason = fallbackReason
		}
		return models.IntentResult{
			Intent:             intent,
			Confidence:         min(maxIntentConfidence, confidence),
			NormalizedQuestion: normalized,
			Reason:             reason,
		}
	}

	switch {
	case episodeHits == 0 && casualHits >= 1:
		return result(models.IntentCasual, max(casual, 0.76), "casual_keyword_without_episode_signals")
	case episodeHits == 0 && casual >= 0.6:
		return result(models.IntentCasual, max(casual, 0.8), "casual_without_episode_signals")
	case casual >= 0.75 && casual > episode+0.15:
		return result(models.IntentCasual, casual, "casual_rule")
	default:
		return result(models.IntentEpisode, episode, "episode_default_bias")
	}
}

// hasCasualPrefix matches ASCII prefixes on a word boundary ("hi" must not
// match "his") and Hangul prefixes regardless of spacing.
func hasCasualPrefix(normalized, compact string) bool {
	for _, p := range casualPrefixes {
		if isASCII(p) {
			if normalized == p || strings.HasPrefix(normalized, p+" ") {
				return true
			}
			continue
		}
		if strings.HasPrefix(compact, strings.ReplaceAll(p, " ", "")) {
			return true
		}
	}
	return false
}

func hasTokenPrefix(tokens []string, prefix string) bool {
	for _, tok := range tokens {
		if strings.HasPrefix(tok, prefix) {
			return true
		}
	}
	return false
}

func hasDigitToken(tokens []string) bool {
	for _, tok := range tokens {
		if isDigits(tok) {
			return true
		}
	}
	return false
}
