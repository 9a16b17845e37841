package rag

import (
	"strings"

	"github.com/raphaelgruber/spoilerguard/internal/models"
)

// Degraded answer confidences.
const (
	DegradedConfidence  = 0.3
	degradedConfidenceA = 0.35
	degradedConfidenceB = 0.28
)

var hedgeVocabulary = []string{
	"확실", "어렵", "가능", "추정", "단정", "아마", "것 같",
	"maybe", "might", "possibly", "perhaps", "likely", "unclear", "uncertain",
	"not sure", "hard to say",
}

type hedgeKey struct {
	style models.ResponseStyle
	lang  models.Language
}

type hedgeText struct {
	conclusion string
	context    string
}

var hedgeTemplates = map[hedgeKey]hedgeText{
	{models.StyleFriend, models.LangKorean}: {
		conclusion: "현재 시점 기준으로는 확실한 근거가 부족해서 단정하긴 어려워.",
		context:    "자막 기반으로는 질문의 원인을 확정하기 어렵고, 복수 해석이 가능해요.",
	},
	{models.StyleAssistant, models.LangKorean}: {
		conclusion: "현재 시점 기준으로는 근거가 부족하여 확정적으로 답변드리기 어렵습니다.",
		context:    "현재까지의 자막만으로는 원인을 특정하기 어렵고, 여러 해석이 가능합니다.",
	},
	{models.StyleCritic, models.LangKorean}: {
		conclusion: "지금까지의 장면만으로는 단서가 부족해 결론을 단정하기 어렵습니다.",
		context:    "서사가 아직 원인을 드러내지 않았고, 복수의 해석이 열려 있습니다.",
	},
	{models.StyleFriend, models.LangEnglish}: {
		conclusion: "Up to this point it's hard to say for sure, the evidence just isn't there yet.",
		context:    "The subtitles so far can't pin down the cause, so a few readings are possible.",
	},
	{models.StyleAssistant, models.LangEnglish}: {
		conclusion: "Based on the current playback position, the answer remains uncertain due to insufficient evidence.",
		context:    "The dialogue so far does not establish the cause; several interpretations remain possible.",
	},
	{models.StyleCritic, models.LangEnglish}: {
		conclusion: "The story hasn't shown enough yet, so any firm conclusion is unclear.",
		context:    "The narrative is still withholding its cause, leaving more than one reading open.",
	},
}

var hedgeInterpretations = map[models.Language][2]string{
	models.LangKorean:  {"상황 오해로 갈등이 커졌을 가능성", "숨겨진 배경 사건이 아직 드러나지 않았을 가능성"},
	models.LangEnglish: {"A misunderstanding may have escalated the conflict", "A hidden background event may not have been revealed yet"},
}

// HedgedAnswer is the fixed answer used when no evidence survives.
func HedgedAnswer(style models.ResponseStyle, lang models.Language) models.Answer {
	if lang != models.LangEnglish {
		lang = models.LangKorean
	}
	tmpl, ok := hedgeTemplates[hedgeKey{style, lang}]
	if !ok {
		tmpl = hedgeTemplates[hedgeKey{models.StyleFriend, lang}]
	}
	interp := hedgeInterpretations[lang]
	return models.Answer{
		Conclusion: tmpl.conclusion,
		Context:    []string{tmpl.context},
		Interpretations: []models.Interpretation{
			{Label: "A", Text: interp[0], Confidence: degradedConfidenceA},
			{Label: "B", Text: interp[1], Confidence: degradedConfidenceB},
		},
		OverallConfidence: DegradedConfidence,
	}
}

// IsAssertive reports whether a conclusion states something as fact: it
// carries no hedge vocabulary and ends with a declarative terminator.
func IsAssertive(conclusion string) bool {
	text := strings.TrimSpace(conclusion)
	if text == "" {
		return false
	}
	lower := strings.ToLower(text)
	for _, h := range hedgeVocabulary {
		if strings.Contains(lower, h) {
			return false
		}
	}
	for _, term := range []string{"다.", "요.", ".", "!"} {
		if strings.HasSuffix(text, term) {
			return true
		}
	}
	return false
}

// Enforce replaces the answer with the hedged template when evidences is
// empty. With any evidence the answer is returned unchanged and no warning
// is produced. The result depends only on its inputs.
func Enforce(answer models.Answer, evidences []models.Evidence, style models.ResponseStyle, lang models.Language) (models.Answer, []models.Warning) {
	if len(evidences) > 0 {
		return answer, nil
	}

	var warnings []models.Warning
	if IsAssertive(answer.Conclusion) {
		warnings = append(warnings, models.Warning{Code: models.WarnAssertiveWithoutEvidence, Message: msgAssertiveWithoutEvidence})
	}
	warnings = append(warnings, InsufficientEvidence(msgEvidenceInsufficient))
	return HedgedAnswer(style, lang), warnings
}

// InsufficientEvidence builds an EVIDENCE_INSUFFICIENT warning.
func InsufficientEvidence(message string) models.Warning {
	if message == "" {
		message = msgEvidenceInsufficient
	}
	return models.Warning{Code: models.WarnEvidenceInsufficient, Message: message}
}

// DedupeWarnings drops repeated (code, message) pairs, keeping first
// occurrences in order.
func DedupeWarnings(warnings []models.Warning) []models.Warning {
	if len(warnings) == 0 {
		return []models.Warning{}
	}
	seen := make(map[models.Warning]struct{}, len(warnings))
	out := make([]models.Warning, 0, len(warnings))
	for _, w := range warnings {
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}
	return out
}
